package invariants

import (
	"math/big"

	"vaultguard/pkg/types"
)

// The silo is a passive escrow between request and settle. Its balances must
// cover every outstanding request, but unsolicited transfers into it are
// tolerated, so the bound is one-directional (>=, never ==).

// SiloBackingCheck verifies the holding area always covers the outstanding
// requests, for both the asset side and the share side.
type SiloBackingCheck struct{}

func (c *SiloBackingCheck) Name() string     { return "silo-backing" }
func (c *SiloBackingCheck) Severity() string { return types.SeverityCritical }

func (c *SiloBackingCheck) Triggers() []types.Operation {
	return []types.Operation{
		types.OpRequestDeposit,
		types.OpRequestRedeem,
		types.OpCancelRequest,
		types.OpSettleDeposit,
		types.OpSettleRedeem,
		types.OpSyncDeposit,
	}
}

func (c *SiloBackingCheck) Evaluate(ctx *Context) error {
	if ctx.Post.SiloAssets.Cmp(ctx.Post.PendingAssets) < 0 {
		return fail(c, ctx, "holding area assets below outstanding deposit requests", map[string]interface{}{
			"silo_assets":    ctx.Post.SiloAssets.String(),
			"pending_assets": ctx.Post.PendingAssets.String(),
		})
	}
	if ctx.Post.SiloShares.Cmp(ctx.Post.PendingShares) < 0 {
		return fail(c, ctx, "holding area shares below outstanding redeem requests", map[string]interface{}{
			"silo_shares":    ctx.Post.SiloShares.String(),
			"pending_shares": ctx.Post.PendingShares.String(),
		})
	}
	return nil
}

// SiloOutflowCheck verifies settlement moved exactly the settled cohort out
// of the holding area. Requests made after the NAV snapshot being settled
// stay behind; with nothing pending the balance must not move at all.
type SiloOutflowCheck struct{}

func (c *SiloOutflowCheck) Name() string     { return "silo-settlement-outflow" }
func (c *SiloOutflowCheck) Severity() string { return types.SeverityCritical }

func (c *SiloOutflowCheck) Triggers() []types.Operation {
	return []types.Operation{types.OpSettleDeposit, types.OpSettleRedeem}
}

func (c *SiloOutflowCheck) Evaluate(ctx *Context) error {
	switch ctx.Op {
	case types.OpSettleDeposit:
		settles, err := ctx.SettleDeposits()
		if err != nil {
			return err
		}
		settled := big.NewInt(0)
		if len(settles) > 0 {
			settled = settles[len(settles)-1].AssetsDeposit
		}
		outflow := new(big.Int).Sub(ctx.Pre.SiloAssets, ctx.Post.SiloAssets)
		if outflow.Cmp(settled) != 0 {
			return fail(c, ctx, "holding area asset outflow does not match settled cohort", map[string]interface{}{
				"outflow": outflow.String(),
				"settled": settled.String(),
			})
		}
	case types.OpSettleRedeem:
		settles, err := ctx.SettleRedeems()
		if err != nil {
			return err
		}
		settled := big.NewInt(0)
		if len(settles) > 0 {
			settled = settles[len(settles)-1].SharesBurned
		}
		outflow := new(big.Int).Sub(ctx.Pre.SiloShares, ctx.Post.SiloShares)
		if outflow.Cmp(settled) != 0 {
			return fail(c, ctx, "holding area share outflow does not match settled cohort", map[string]interface{}{
				"outflow": outflow.String(),
				"settled": settled.String(),
			})
		}
	}
	return nil
}

// SiloSyncIsolationCheck verifies the fast path never touches the escrow:
// a sync deposit leaves both silo balances exactly as they were.
type SiloSyncIsolationCheck struct{}

func (c *SiloSyncIsolationCheck) Name() string     { return "silo-sync-isolation" }
func (c *SiloSyncIsolationCheck) Severity() string { return types.SeverityHigh }

func (c *SiloSyncIsolationCheck) Triggers() []types.Operation {
	return []types.Operation{types.OpSyncDeposit}
}

func (c *SiloSyncIsolationCheck) Evaluate(ctx *Context) error {
	if ctx.Pre.SiloAssets.Cmp(ctx.Post.SiloAssets) != 0 {
		return fail(c, ctx, "sync deposit moved the holding area's asset balance", map[string]interface{}{
			"pre":  ctx.Pre.SiloAssets.String(),
			"post": ctx.Post.SiloAssets.String(),
		})
	}
	if ctx.Pre.SiloShares.Cmp(ctx.Post.SiloShares) != 0 {
		return fail(c, ctx, "sync deposit moved the holding area's share balance", map[string]interface{}{
			"pre":  ctx.Pre.SiloShares.String(),
			"post": ctx.Post.SiloShares.String(),
		})
	}
	return nil
}
