// Package quota enforces per-plan caps on countable resources (snippets and
// team members).
//
// Every reservation is a single conditional increment in the backing store,
// so N concurrent requests against k free slots produce exactly k grants. The
// limit always comes from the plan registry for the principal's effective
// tier: a paid plan whose subscription has lapsed is capped at the free tier.
//
// Storage errors refuse the reservation with ErrUnavailable.
//
//	err := enforcer.Do(ctx, principalID, plan.ResourceSnippets, func(ctx context.Context, _ *quota.Reservation) error {
//	    return repo.Insert(ctx, snippet)
//	})
//	var ex *quota.Exceeded
//	if errors.As(err, &ex) {
//	    // 403 quota_exceeded, ex.Current / ex.Max
//	}
package quota
