package plan_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/snipflow/pkg/plan"
)

func TestTier(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []plan.Tier{plan.TierFree, plan.TierBasic, plan.TierPro, plan.TierEnterprise}, plan.Tiers())
	assert.Less(t, plan.TierFree.Rank(), plan.TierBasic.Rank())
	assert.Less(t, plan.TierPro.Rank(), plan.TierEnterprise.Rank())
	assert.Equal(t, -1, plan.Tier("gold").Rank())

	tier, err := plan.ParseTier(" PRO ")
	require.NoError(t, err)
	assert.Equal(t, plan.TierPro, tier)

	_, err = plan.ParseTier("gold")
	assert.ErrorIs(t, err, plan.ErrUnknownTier)
}

func TestFeature(t *testing.T) {
	t.Parallel()

	t.Run("every feature has a display name", func(t *testing.T) {
		t.Parallel()

		for _, f := range plan.Features() {
			assert.True(t, f.Valid(), f)
			assert.NotEqual(t, string(f), f.DisplayName(), f)
		}
	})

	t.Run("parse", func(t *testing.T) {
		t.Parallel()

		f, err := plan.ParseFeature("Team_Management")
		require.NoError(t, err)
		assert.Equal(t, plan.FeatureTeamManagement, f)

		_, err = plan.ParseFeature("teleport")
		assert.ErrorIs(t, err, plan.ErrUnknownFeature)
	})
}
