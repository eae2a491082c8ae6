package plan

import (
	"maps"
	"slices"
)

// Plan is the feature set and resource limits of a single tier.
type Plan struct {
	Tier     Tier
	Name     string
	Features []Feature
	Limits   map[Resource]Limit
}

// HasFeature reports whether the plan grants f.
func (p Plan) HasFeature(f Feature) bool {
	return slices.Contains(p.Features, f)
}

// Limit returns the ceiling for res. A resource missing from the plan has a zero limit.
func (p Plan) Limit(res Resource) Limit {
	return p.Limits[res]
}

// Paid reports whether the plan is above the lowest tier.
func (p Plan) Paid() bool {
	return p.Tier.Rank() > 0
}

func (p Plan) clone() Plan {
	return Plan{
		Tier:     p.Tier,
		Name:     p.Name,
		Features: slices.Clone(p.Features),
		Limits:   maps.Clone(p.Limits),
	}
}
