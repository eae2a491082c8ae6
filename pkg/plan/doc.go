// Package plan holds the plan registry: the immutable mapping from a tier to
// its feature flags and resource limits.
//
// Tiers, features and resources are closed sets. Adding a feature means adding
// a constant and an entry to the display-name table; call sites never match on
// raw strings.
//
// The registry is built once at startup from a Source and never mutated:
//
//	reg, err := plan.NewRegistry(ctx, plan.Defaults())
//	if err != nil {
//	    return err
//	}
//
//	reg.HasFeature(plan.TierPro, plan.FeatureAnalytics)   // true
//	reg.Limit(plan.TierFree, plan.ResourceSnippets)       // 50
//	reg.Limit(plan.TierPro, plan.ResourceSnippets)        // plan.Unlimited
//	reg.CheapestWith(plan.FeatureAIGeneration)            // plan.TierPro, true
//
// Plans can also be loaded from YAML with NewFileSource. Unknown tiers resolve
// to the lowest tier, so lookups for a corrupted plan value never widen access.
package plan
