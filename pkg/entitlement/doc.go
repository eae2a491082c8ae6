// Package entitlement decides whether a principal's plan grants a feature.
//
// The decision uses the effective tier: a paid plan whose subscription is
// canceled, expired or past its expiry timestamp is treated as the free tier.
// Lookup failures refuse access with a Denial whose reason is "unavailable".
//
//	if _, err := checker.CheckFeature(ctx, principalID, plan.FeatureAnalytics); err != nil {
//	    var d *entitlement.Denial
//	    if errors.As(err, &d) {
//	        // 403 with d.FeatureName and d.RecommendedPlan
//	    }
//	}
package entitlement
