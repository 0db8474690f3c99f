package invariants

import (
	"fmt"

	"vaultguard/pkg/types"
)

// EpochParityCheck verifies the epoch numbering scheme never breaks: deposit
// epochs are odd, redeem epochs are even.
type EpochParityCheck struct{}

func (c *EpochParityCheck) Name() string     { return "epoch-parity" }
func (c *EpochParityCheck) Severity() string { return types.SeverityCritical }

func (c *EpochParityCheck) Triggers() []types.Operation {
	return []types.Operation{
		types.OpUpdateNav,
		types.OpSettleDeposit,
		types.OpSettleRedeem,
		types.OpRequestDeposit,
		types.OpRequestRedeem,
		types.OpCancelRequest,
	}
}

func (c *EpochParityCheck) Evaluate(ctx *Context) error {
	for _, snap := range []*types.Snapshot{ctx.Pre, ctx.Post} {
		if snap.DepositEpochID%2 != 1 {
			return fail(c, ctx, fmt.Sprintf("deposit epoch id %d is not odd", snap.DepositEpochID), nil)
		}
		if snap.RedeemEpochID%2 != 0 {
			return fail(c, ctx, fmt.Sprintf("redeem epoch id %d is not even", snap.RedeemEpochID), nil)
		}
	}
	return nil
}

// EpochSettledLagCheck verifies the last-settled markers always trail the
// live counters by at least one full round.
type EpochSettledLagCheck struct{}

func (c *EpochSettledLagCheck) Name() string     { return "epoch-settled-lag" }
func (c *EpochSettledLagCheck) Severity() string { return types.SeverityCritical }

func (c *EpochSettledLagCheck) Triggers() []types.Operation {
	return []types.Operation{
		types.OpUpdateNav,
		types.OpSettleDeposit,
		types.OpSettleRedeem,
	}
}

func (c *EpochSettledLagCheck) Evaluate(ctx *Context) error {
	post := ctx.Post
	// Skip below 2: the subtraction would underflow and the first round has
	// nothing settled yet anyway.
	if post.DepositEpochID >= 2 && post.LastDepositEpochSettled > post.DepositEpochID-2 {
		return fail(c, ctx, fmt.Sprintf("last settled deposit epoch %d exceeds current %d - 2",
			post.LastDepositEpochSettled, post.DepositEpochID), nil)
	}
	if post.RedeemEpochID >= 2 && post.LastRedeemEpochSettled > post.RedeemEpochID-2 {
		return fail(c, ctx, fmt.Sprintf("last settled redeem epoch %d exceeds current %d - 2",
			post.LastRedeemEpochSettled, post.RedeemEpochID), nil)
	}
	return nil
}

// EpochStepCheck verifies each counter moves by 0 or +2 per operation. +1
// would break parity; more than 2 would orphan a cohort of pending requests.
type EpochStepCheck struct{}

func (c *EpochStepCheck) Name() string     { return "epoch-step" }
func (c *EpochStepCheck) Severity() string { return types.SeverityCritical }

func (c *EpochStepCheck) Triggers() []types.Operation {
	return []types.Operation{
		types.OpUpdateNav,
		types.OpSettleDeposit,
		types.OpSettleRedeem,
		types.OpRequestDeposit,
		types.OpRequestRedeem,
	}
}

func (c *EpochStepCheck) Evaluate(ctx *Context) error {
	deltas := map[string][2]uint64{
		"deposit": {ctx.Pre.DepositEpochID, ctx.Post.DepositEpochID},
		"redeem":  {ctx.Pre.RedeemEpochID, ctx.Post.RedeemEpochID},
	}
	for kind, pair := range deltas {
		if pair[1] < pair[0] {
			return fail(c, ctx, fmt.Sprintf("%s epoch id went backwards: %d -> %d", kind, pair[0], pair[1]), nil)
		}
		if d := pair[1] - pair[0]; d != 0 && d != 2 {
			return fail(c, ctx, fmt.Sprintf("%s epoch id moved by %d, want 0 or 2", kind, d), map[string]interface{}{
				"pre":  pair[0],
				"post": pair[1],
			})
		}
	}
	return nil
}

// EpochSyncIsolationCheck verifies the fast path never touches the epoch
// system: a sync deposit leaves all four counters unchanged.
type EpochSyncIsolationCheck struct{}

func (c *EpochSyncIsolationCheck) Name() string     { return "epoch-sync-isolation" }
func (c *EpochSyncIsolationCheck) Severity() string { return types.SeverityHigh }

func (c *EpochSyncIsolationCheck) Triggers() []types.Operation {
	return []types.Operation{types.OpSyncDeposit}
}

func (c *EpochSyncIsolationCheck) Evaluate(ctx *Context) error {
	pre, post := ctx.Pre, ctx.Post
	if pre.DepositEpochID != post.DepositEpochID ||
		pre.RedeemEpochID != post.RedeemEpochID ||
		pre.LastDepositEpochSettled != post.LastDepositEpochSettled ||
		pre.LastRedeemEpochSettled != post.LastRedeemEpochSettled {
		return fail(c, ctx, "sync deposit moved an epoch counter", map[string]interface{}{
			"pre_deposit":  pre.DepositEpochID,
			"post_deposit": post.DepositEpochID,
			"pre_redeem":   pre.RedeemEpochID,
			"post_redeem":  post.RedeemEpochID,
		})
	}
	return nil
}
