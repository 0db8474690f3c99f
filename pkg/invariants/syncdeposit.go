package invariants

import (
	"fmt"
	"math/big"

	"vaultguard/pkg/types"
)

// SyncModeCheck enforces mutual exclusion between the two deposit paths:
// a fast-path deposit only runs while the NAV is valid, a request-style
// deposit only runs while it is expired.
type SyncModeCheck struct{}

func (c *SyncModeCheck) Name() string     { return "sync-mode-exclusive" }
func (c *SyncModeCheck) Severity() string { return types.SeverityHigh }

func (c *SyncModeCheck) Triggers() []types.Operation {
	return []types.Operation{types.OpSyncDeposit, types.OpRequestDeposit}
}

func (c *SyncModeCheck) Evaluate(ctx *Context) error {
	mode := ctx.Pre.ModeAt(ctx.Now)
	switch ctx.Op {
	case types.OpSyncDeposit:
		if mode != types.ModeSync {
			return fail(c, ctx, "fast-path deposit executed with expired nav", map[string]interface{}{
				"expiration": ctx.Pre.NavExpiration,
				"now":        ctx.Now,
			})
		}
	case types.OpRequestDeposit:
		if mode != types.ModeAsync {
			return fail(c, ctx, "request-style deposit executed inside the sync window", map[string]interface{}{
				"expiration": ctx.Pre.NavExpiration,
				"now":        ctx.Now,
			})
		}
	}
	return nil
}

// SyncAccountingCheck verifies a fast-path deposit in full: NAV grows by the
// deposited amount, the assets land on the safe, and the minted shares
// follow the proportional-issuance formula with floor division.
type SyncAccountingCheck struct{}

func (c *SyncAccountingCheck) Name() string     { return "sync-accounting" }
func (c *SyncAccountingCheck) Severity() string { return types.SeverityCritical }

func (c *SyncAccountingCheck) Triggers() []types.Operation {
	return []types.Operation{types.OpSyncDeposit}
}

func (c *SyncAccountingCheck) Evaluate(ctx *Context) error {
	deposits, err := ctx.SyncDeposits()
	if err != nil {
		return err
	}
	if len(deposits) == 0 {
		return fail(c, ctx, "fast-path deposit emitted no deposit record", nil)
	}
	if len(deposits) > 1 {
		return fail(c, ctx, fmt.Sprintf("one operation emitted %d deposit records", len(deposits)), nil)
	}
	dep := deposits[0]

	wantNav := new(big.Int).Add(ctx.Pre.Nav, dep.Assets)
	if ctx.Post.Nav.Cmp(wantNav) != 0 {
		return fail(c, ctx, "post nav does not equal pre nav plus deposited assets", map[string]interface{}{
			"pre_nav":  ctx.Pre.Nav.String(),
			"post_nav": ctx.Post.Nav.String(),
			"assets":   dep.Assets.String(),
		})
	}

	// Counterparty: the underlying goes to the treasury safe, never the
	// holding area.
	safeDelta := new(big.Int).Sub(ctx.Post.SafeAssets, ctx.Pre.SafeAssets)
	if safeDelta.Cmp(dep.Assets) != 0 {
		return fail(c, ctx, "deposited assets did not arrive on the safe", map[string]interface{}{
			"safe_delta": safeDelta.String(),
			"assets":     dep.Assets.String(),
		})
	}

	wantShares := sharesForDeposit(dep.Assets, ctx.Pre)
	if dep.Shares.Cmp(wantShares) != 0 {
		return fail(c, ctx, "minted shares deviate from proportional issuance", map[string]interface{}{
			"minted": dep.Shares.String(),
			"want":   wantShares.String(),
		})
	}

	supplyDelta := new(big.Int).Sub(ctx.Post.TotalSupply, ctx.Pre.TotalSupply)
	if supplyDelta.Cmp(dep.Shares) != 0 {
		return fail(c, ctx, "supply delta does not match minted shares", map[string]interface{}{
			"supply_delta": supplyDelta.String(),
			"minted":       dep.Shares.String(),
		})
	}
	return nil
}

// sharesForDeposit computes the proportional-issuance mint amount:
// assets * offset for an empty vault, otherwise
// assets * (supply + offset) / (nav + 1) with floor division.
func sharesForDeposit(assets *big.Int, pre *types.Snapshot) *big.Int {
	if pre.TotalSupply.Sign() == 0 {
		return new(big.Int).Mul(assets, pre.DecimalsOffset)
	}
	num := new(big.Int).Add(pre.TotalSupply, pre.DecimalsOffset)
	num.Mul(num, assets)
	den := new(big.Int).Add(pre.Nav, big.NewInt(1))
	return num.Quo(num, den)
}
