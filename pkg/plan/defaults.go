package plan

// DefaultPlans returns the built-in plan table.
func DefaultPlans() []Plan {
	return []Plan{
		{
			Tier:     TierFree,
			Name:     "Free",
			Features: []Feature{},
			Limits: map[Resource]Limit{
				ResourceSnippets:    50,
				ResourceTeamMembers: 0,
			},
		},
		{
			Tier: TierBasic,
			Name: "Basic",
			Features: []Feature{
				FeatureAnalytics,
				FeatureTeamManagement,
				FeatureAPIAccess,
				FeatureAdvancedExport,
			},
			Limits: map[Resource]Limit{
				ResourceSnippets:    500,
				ResourceTeamMembers: 3,
			},
		},
		{
			Tier: TierPro,
			Name: "Pro",
			Features: []Feature{
				FeatureAnalytics,
				FeatureTeamManagement,
				FeatureAIGeneration,
				FeatureAPIAccess,
				FeatureAdvancedExport,
				FeaturePrioritySupport,
			},
			Limits: map[Resource]Limit{
				ResourceSnippets:    Unlimited,
				ResourceTeamMembers: 10,
			},
		},
		{
			Tier:     TierEnterprise,
			Name:     "Enterprise",
			Features: Features(),
			Limits: map[Resource]Limit{
				ResourceSnippets:    Unlimited,
				ResourceTeamMembers: Unlimited,
			},
		},
	}
}

// Defaults returns a Source serving DefaultPlans.
func Defaults() Source {
	return NewMemorySource(DefaultPlans()...)
}
