// Package principal models the accounts subject to entitlement checks: their
// plan tier, subscription state and the live counters of quota-bounded
// resources.
//
// Counters are owned by the Store, which exposes Reserve as a single atomic
// conditional increment and Release as a decrement floored at zero. The
// PostgreSQL store implements Reserve as one UPDATE ... WHERE count < max
// statement and can join a caller's transaction through WithTx.
//
// EffectiveTier folds subscription state into the plan: a paid plan whose
// subscription is canceled, expired or past its expiry timestamp is treated
// as the lowest tier.
package principal
