// Package snippet stores code snippets under the plan's snippet quota.
//
// Creating a snippet claims a quota slot and inserts the row as one unit of
// work; deleting one removes the row and frees the slot the same way.
package snippet
