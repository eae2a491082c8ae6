package plan

import "strings"

// Tier identifies a plan. Tiers are totally ordered from the most restrictive
// (free) to the most permissive (enterprise).
type Tier string

const (
	TierFree       Tier = "free"
	TierBasic      Tier = "basic"
	TierPro        Tier = "pro"
	TierEnterprise Tier = "enterprise"
)

// tiers lists every tier in ascending order. Rank is the index in this slice.
var tiers = []Tier{TierFree, TierBasic, TierPro, TierEnterprise}

// Tiers returns all tiers ordered from cheapest to most expensive.
func Tiers() []Tier {
	out := make([]Tier, len(tiers))
	copy(out, tiers)
	return out
}

// Rank returns the position of the tier in the ordered set, or -1 if unknown.
func (t Tier) Rank() int {
	for i, v := range tiers {
		if v == t {
			return i
		}
	}
	return -1
}

// Valid reports whether t is one of the known tiers.
func (t Tier) Valid() bool { return t.Rank() >= 0 }

func (t Tier) String() string { return string(t) }

// ParseTier converts a case-insensitive name into a Tier.
func ParseTier(s string) (Tier, error) {
	t := Tier(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", ErrUnknownTier
	}
	return t, nil
}

// Feature is a boolean capability granted by a plan.
type Feature string

const (
	FeatureAnalytics       Feature = "analytics"
	FeatureTeamManagement  Feature = "team_management"
	FeatureAIGeneration    Feature = "ai_generation"
	FeatureAPIAccess       Feature = "api_access"
	FeatureSSO             Feature = "sso"
	FeatureWhiteLabel      Feature = "white_label"
	FeaturePrioritySupport Feature = "priority_support"
	FeatureAdvancedExport  Feature = "advanced_export"
)

// featureNames is the single translation table from feature to display name.
// Every declared Feature must have an entry; Valid relies on it.
var featureNames = map[Feature]string{
	FeatureAnalytics:       "Analytics",
	FeatureTeamManagement:  "Team Management",
	FeatureAIGeneration:    "AI Snippet Generation",
	FeatureAPIAccess:       "API Access",
	FeatureSSO:             "Single Sign-On",
	FeatureWhiteLabel:      "White Label",
	FeaturePrioritySupport: "Priority Support",
	FeatureAdvancedExport:  "Advanced Export",
}

// Features returns every known feature in a stable order.
func Features() []Feature {
	return []Feature{
		FeatureAnalytics,
		FeatureTeamManagement,
		FeatureAIGeneration,
		FeatureAPIAccess,
		FeatureSSO,
		FeatureWhiteLabel,
		FeaturePrioritySupport,
		FeatureAdvancedExport,
	}
}

// Valid reports whether f is a declared feature.
func (f Feature) Valid() bool {
	_, ok := featureNames[f]
	return ok
}

// DisplayName returns the human readable feature name used in denial messages.
func (f Feature) DisplayName() string {
	if name, ok := featureNames[f]; ok {
		return name
	}
	return string(f)
}

func (f Feature) String() string { return string(f) }

// ParseFeature converts a feature key into a Feature.
func ParseFeature(s string) (Feature, error) {
	f := Feature(strings.ToLower(strings.TrimSpace(s)))
	if !f.Valid() {
		return "", ErrUnknownFeature
	}
	return f, nil
}

// Resource is a count-bounded resource owned by a principal.
type Resource string

const (
	ResourceSnippets    Resource = "snippets"
	ResourceTeamMembers Resource = "team_members"
)

// Resources returns every quota-bounded resource.
func Resources() []Resource {
	return []Resource{ResourceSnippets, ResourceTeamMembers}
}

// Valid reports whether r is a declared resource.
func (r Resource) Valid() bool {
	return r == ResourceSnippets || r == ResourceTeamMembers
}

func (r Resource) String() string { return string(r) }

// Limit is the ceiling for a resource. Unlimited is a sentinel, never compared
// numerically against a count.
type Limit int64

// Unlimited marks a resource without a ceiling (-1 for SQL compatibility).
const Unlimited Limit = -1

// IsUnlimited reports whether the limit is the unlimited sentinel.
func (l Limit) IsUnlimited() bool { return l == Unlimited }

// Allows reports whether one more unit fits when current units are in use.
func (l Limit) Allows(current int64) bool {
	if l.IsUnlimited() {
		return true
	}
	return current < int64(l)
}
