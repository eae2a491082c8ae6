package main

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/snipflow/pkg/apikey"
	"github.com/dmitrymomot/snipflow/pkg/entitlement"
	"github.com/dmitrymomot/snipflow/pkg/plan"
	"github.com/dmitrymomot/snipflow/pkg/principal"
	"github.com/dmitrymomot/snipflow/pkg/quota"
)

func TestCommand_Execute(t *testing.T) {
	t.Parallel()

	var called []string
	leaf := func(name string) *command {
		return &command{name: name, run: func(_ context.Context, args []string, _ io.Writer) error {
			called = append(called, name)
			called = append(called, args...)
			return nil
		}}
	}
	root := &command{
		name: "snipflow",
		subcommands: []*command{
			leaf("serve"),
			{name: "keys", subcommands: []*command{leaf("issue"), leaf("list")}},
		},
	}

	var out bytes.Buffer
	require.NoError(t, root.execute(context.Background(), []string{"keys", "issue", "-name", "ci"}, &out))
	assert.Equal(t, []string{"issue", "-name", "ci"}, called)

	out.Reset()
	require.NoError(t, root.execute(context.Background(), nil, &out))
	assert.Contains(t, out.String(), "serve")
	assert.Contains(t, out.String(), "keys")

	err := root.execute(context.Background(), []string{"keys", "rotate"}, &out)
	assert.ErrorContains(t, err, `unknown command "rotate"`)
}

func TestRootCommand_Tree(t *testing.T) {
	t.Parallel()

	names := map[string][]string{}
	for _, c := range rootCommand().subcommands {
		for _, s := range c.subcommands {
			names[c.name] = append(names[c.name], s.name)
		}
		if len(c.subcommands) == 0 {
			assert.NotNil(t, c.run, c.name)
		}
	}
	assert.ElementsMatch(t, []string{"create", "set-plan", "show"}, names["principal"])
	assert.ElementsMatch(t, []string{"issue", "list", "revoke"}, names["keys"])
}

func TestPlanFlags_Parse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		args    []string
		tier    plan.Tier
		expires bool
		wantErr bool
	}{
		{name: "defaults", args: nil, tier: plan.TierFree},
		{name: "paid with expiry", args: []string{"-plan", "pro", "-expires", "2026-12-31T00:00:00Z"}, tier: plan.TierPro, expires: true},
		{name: "unknown tier", args: []string{"-plan", "gold"}, wantErr: true},
		{name: "unknown status", args: []string{"-status", "paused"}, wantErr: true},
		{name: "bad expiry", args: []string{"-expires", "tomorrow"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			fs := newFlagSet("test", io.Discard)
			pf := addPlanFlags(fs, string(plan.TierFree))
			require.NoError(t, fs.Parse(tt.args))

			tier, sub, err := pf.parse()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.tier, tier)
			assert.Equal(t, principal.StatusActive, sub.Status)
			assert.Equal(t, tt.expires, sub.ExpiresAt != nil)
		})
	}
}

func TestParseUUIDFlag(t *testing.T) {
	t.Parallel()

	_, err := parseUUIDFlag("id", "")
	assert.ErrorIs(t, err, errMissingFlag)

	_, err = parseUUIDFlag("id", "nope")
	assert.Error(t, err)

	id := uuid.New()
	got, err := parseUUIDFlag("id", id.String())
	require.NoError(t, err)
	assert.Equal(t, id, got)
}

func TestPrintEntitlements(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	err := printEntitlements(&out, &entitlement.Entitlements{
		Plan:          plan.TierPro,
		EffectiveTier: plan.TierFree,
		Subscription:  principal.Subscription{Status: principal.StatusExpired},
		Features:      []plan.Feature{plan.FeatureAnalytics},
	}, map[plan.Resource]quota.UsageInfo{
		plan.ResourceSnippets:    {Current: 12, Max: 50},
		plan.ResourceTeamMembers: {Current: 0, Max: plan.Unlimited},
	})
	require.NoError(t, err)

	s := out.String()
	assert.Contains(t, s, "effective plan  free")
	assert.Contains(t, s, "Analytics")
	assert.Contains(t, s, "12 / 50")
	assert.Contains(t, s, "0 / unlimited")
}

func TestPrintKeys_NeverShowsHash(t *testing.T) {
	t.Parallel()

	used := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	k := apikey.Key{
		ID:         uuid.New(),
		Name:       "ci",
		Prefix:     "sf_abcdefgh",
		Hash:       "deadbeef",
		RateLimit:  1000,
		Active:     true,
		LastUsedAt: &used,
	}

	var out bytes.Buffer
	require.NoError(t, printKeys(&out, []apikey.Key{k}))
	assert.Contains(t, out.String(), "sf_abcdefgh")
	assert.Contains(t, out.String(), "2026-01-02T03:04:05Z")
	assert.NotContains(t, out.String(), "deadbeef")
}
