// Package team manages team seats, each of which counts against the plan's
// team member quota.
package team
