package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/snipflow/pkg/entitlement"
	"github.com/dmitrymomot/snipflow/pkg/logger"
	"github.com/dmitrymomot/snipflow/pkg/plan"
	"github.com/dmitrymomot/snipflow/pkg/principal"
	"github.com/dmitrymomot/snipflow/pkg/quota"
)

var errMissingFlag = errors.New("missing required flag")

func principalCommand() *command {
	return &command{
		name:        "principal",
		description: "Create principals and change their plan",
		subcommands: []*command{
			{name: "create", description: "Create a principal (signup)", run: runPrincipalCreate},
			{name: "set-plan", description: "Change plan and subscription (billing webhook)", run: runPrincipalSetPlan},
			{name: "show", description: "Show effective plan, features and quota usage", run: runPrincipalShow},
		},
	}
}

// planFlags are shared by create and set-plan.
type planFlags struct {
	tier    *string
	status  *string
	expires *string
}

func addPlanFlags(fs *flag.FlagSet, defaultTier string) planFlags {
	return planFlags{
		tier:    fs.String("plan", defaultTier, "plan tier: "+joinTiers()),
		status:  fs.String("status", string(principal.StatusActive), "subscription status: active, past_due, canceled, expired"),
		expires: fs.String("expires", "", "subscription expiry (RFC 3339), empty for none"),
	}
}

func (f planFlags) parse() (plan.Tier, principal.Subscription, error) {
	tier, err := plan.ParseTier(*f.tier)
	if err != nil {
		return "", principal.Subscription{}, err
	}
	sub := principal.Subscription{Status: principal.Status(*f.status)}
	if !sub.Status.Valid() {
		return "", principal.Subscription{}, principal.ErrInvalidStatus
	}
	if *f.expires != "" {
		t, err := time.Parse(time.RFC3339, *f.expires)
		if err != nil {
			return "", principal.Subscription{}, fmt.Errorf("invalid -expires: %w", err)
		}
		t = t.UTC()
		sub.ExpiresAt = &t
	}
	return tier, sub, nil
}

func joinTiers() string {
	tiers := plan.Tiers()
	names := make([]string, len(tiers))
	for i, t := range tiers {
		names[i] = t.String()
	}
	return strings.Join(names, ", ")
}

func parseUUIDFlag(name, value string) (uuid.UUID, error) {
	if value == "" {
		return uuid.Nil, fmt.Errorf("%w: -%s", errMissingFlag, name)
	}
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid -%s: %w", name, err)
	}
	return id, nil
}

func runPrincipalCreate(ctx context.Context, args []string, out io.Writer) error {
	fs := newFlagSet("principal create", out)
	idFlag := fs.String("id", "", "principal ID (generated when empty)")
	pf := addPlanFlags(fs, string(plan.TierFree))
	if err := fs.Parse(args); err != nil {
		return err
	}

	tier, sub, err := pf.parse()
	if err != nil {
		return err
	}
	id := uuid.New()
	if *idFlag != "" {
		if id, err = parseUUIDFlag("id", *idFlag); err != nil {
			return err
		}
	}

	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	p := principal.New(id, time.Now())
	p.Plan = tier
	p.Subscription = sub
	if err := a.principals.Create(ctx, p); err != nil {
		return err
	}

	fmt.Fprintln(out, p.ID)
	return nil
}

func runPrincipalSetPlan(ctx context.Context, args []string, out io.Writer) error {
	fs := newFlagSet("principal set-plan", out)
	idFlag := fs.String("id", "", "principal ID")
	pf := addPlanFlags(fs, "")
	if err := fs.Parse(args); err != nil {
		return err
	}

	id, err := parseUUIDFlag("id", *idFlag)
	if err != nil {
		return err
	}
	tier, sub, err := pf.parse()
	if err != nil {
		return err
	}

	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.principals.ChangePlan(ctx, id, tier, sub); err != nil {
		return err
	}
	a.log.InfoContext(ctx, "plan changed",
		logger.PrincipalID(id),
		slog.String("plan", tier.String()),
		slog.String("status", string(sub.Status)),
	)
	fmt.Fprintf(out, "%s now on %s (%s)\n", id, tier, sub.Status)
	return nil
}

func runPrincipalShow(ctx context.Context, args []string, out io.Writer) error {
	fs := newFlagSet("principal show", out)
	idFlag := fs.String("id", "", "principal ID")
	if err := fs.Parse(args); err != nil {
		return err
	}
	id, err := parseUUIDFlag("id", *idFlag)
	if err != nil {
		return err
	}

	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	ents, err := entitlement.NewChecker(a.registry, a.principals).Entitlements(ctx, id)
	if err != nil {
		return err
	}
	counters, err := quota.NewEnforcer(a.registry, a.principals, a.principals).Usage(ctx, id)
	if err != nil {
		return err
	}

	return printEntitlements(out, ents, counters)
}

func printEntitlements(out io.Writer, ents *entitlement.Entitlements, counters map[plan.Resource]quota.UsageInfo) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "plan\t%s\n", ents.Plan)
	fmt.Fprintf(tw, "effective plan\t%s\n", ents.EffectiveTier)
	fmt.Fprintf(tw, "subscription\t%s\n", ents.Subscription.Status)
	if ents.Subscription.ExpiresAt != nil {
		fmt.Fprintf(tw, "expires\t%s\n", ents.Subscription.ExpiresAt.Format(time.RFC3339))
	}

	names := make([]string, 0, len(ents.Features))
	for _, f := range ents.Features {
		names = append(names, f.DisplayName())
	}
	fmt.Fprintf(tw, "features\t%s\n", strings.Join(names, ", "))

	for _, res := range plan.Resources() {
		u := counters[res]
		limit := "unlimited"
		if !u.Max.IsUnlimited() {
			limit = fmt.Sprint(int64(u.Max))
		}
		fmt.Fprintf(tw, "%s\t%d / %s\n", res, u.Current, limit)
	}
	return tw.Flush()
}
