// Package async runs independent lookups concurrently and joins their
// results.
//
//	ents := async.Go(ctx, func(ctx context.Context) (*entitlement.Entitlements, error) {
//		return checker.Entitlements(ctx, id)
//	})
//	usage := async.Go(ctx, func(ctx context.Context) (map[plan.Resource]quota.UsageInfo, error) {
//		return enforcer.Usage(ctx, id)
//	})
//	e, err := ents.Await(ctx)
//	...
//
// Futures of different result types are awaited one by one; WaitAll covers
// the homogeneous case.
package async
