package invariants

import (
	"fmt"
	"math/big"

	"vaultguard/pkg/types"
)

// Decoded records are the source of amounts; snapshots are the source of
// final state. Balance deltas are never used where a record exists, since
// deltas can be polluted by donations.

// SettleDepositAccountingCheck verifies deposit-settlement conservation:
// the post NAV equals the freshly decoded NAV plus exactly the pending
// assets the settlement record absorbed.
type SettleDepositAccountingCheck struct{}

func (c *SettleDepositAccountingCheck) Name() string     { return "accounting-settle-deposit" }
func (c *SettleDepositAccountingCheck) Severity() string { return types.SeverityCritical }

func (c *SettleDepositAccountingCheck) Triggers() []types.Operation {
	return []types.Operation{types.OpSettleDeposit}
}

func (c *SettleDepositAccountingCheck) Evaluate(ctx *Context) error {
	navUpdates, err := ctx.NavUpdates()
	if err != nil {
		return err
	}
	settles, err := ctx.SettleDeposits()
	if err != nil {
		return err
	}
	if len(navUpdates) == 0 && len(settles) == 0 {
		return fmt.Errorf("%w: operation %s", ErrExpectedNavUpdate, ctx.Op)
	}
	if len(navUpdates) == 0 {
		// A settlement with pending requests still re-bases NAV first.
		return fmt.Errorf("%w: settlement record without nav update", ErrExpectedNavUpdate)
	}

	newNav := navUpdates[len(navUpdates)-1].NewNav
	want := new(big.Int).Set(newNav)
	if len(settles) > 0 {
		want.Add(want, settles[len(settles)-1].AssetsDeposit)
	}
	if ctx.Post.Nav.Cmp(want) != 0 {
		return fail(c, ctx, "post nav does not equal decoded nav plus settled pending assets", map[string]interface{}{
			"post_nav":    ctx.Post.Nav.String(),
			"decoded_nav": newNav.String(),
			"want":        want.String(),
		})
	}
	if ctx.Post.PendingNav.Cmp(types.PendingNavSentinel) != 0 {
		return fail(c, ctx, "nav proposal not consumed by settlement", map[string]interface{}{
			"pending_nav": ctx.Post.PendingNav.String(),
		})
	}
	return nil
}

// SettleRedeemAccountingCheck is the subtraction-side mirror: the post NAV
// equals the freshly decoded NAV minus the assets the settlement withdrew.
type SettleRedeemAccountingCheck struct{}

func (c *SettleRedeemAccountingCheck) Name() string     { return "accounting-settle-redeem" }
func (c *SettleRedeemAccountingCheck) Severity() string { return types.SeverityCritical }

func (c *SettleRedeemAccountingCheck) Triggers() []types.Operation {
	return []types.Operation{types.OpSettleRedeem}
}

func (c *SettleRedeemAccountingCheck) Evaluate(ctx *Context) error {
	navUpdates, err := ctx.NavUpdates()
	if err != nil {
		return err
	}
	settles, err := ctx.SettleRedeems()
	if err != nil {
		return err
	}
	if len(navUpdates) == 0 && len(settles) == 0 {
		return fmt.Errorf("%w: operation %s", ErrExpectedNavUpdate, ctx.Op)
	}
	if len(navUpdates) == 0 {
		return fmt.Errorf("%w: settlement record without nav update", ErrExpectedNavUpdate)
	}

	newNav := navUpdates[len(navUpdates)-1].NewNav
	want := new(big.Int).Set(newNav)
	if len(settles) > 0 {
		want.Sub(want, settles[len(settles)-1].AssetsWithdrawn)
	}
	if want.Sign() < 0 {
		return fail(c, ctx, "settlement withdrew more than the decoded nav", map[string]interface{}{
			"decoded_nav": newNav.String(),
			"withdrawn":   settles[len(settles)-1].AssetsWithdrawn.String(),
		})
	}
	if ctx.Post.Nav.Cmp(want) != 0 {
		return fail(c, ctx, "post nav does not equal decoded nav minus withdrawn assets", map[string]interface{}{
			"post_nav":    ctx.Post.Nav.String(),
			"decoded_nav": newNav.String(),
			"want":        want.String(),
		})
	}
	if ctx.Post.PendingNav.Cmp(types.PendingNavSentinel) != 0 {
		return fail(c, ctx, "nav proposal not consumed by settlement", map[string]interface{}{
			"pending_nav": ctx.Post.PendingNav.String(),
		})
	}
	return nil
}

// RedeemSolvencyCheck verifies the withdrawn assets actually arrived: the
// vault's own asset balance grows by exactly the decoded amount, and stays
// untouched when nothing was pending.
type RedeemSolvencyCheck struct{}

func (c *RedeemSolvencyCheck) Name() string     { return "accounting-redeem-solvency" }
func (c *RedeemSolvencyCheck) Severity() string { return types.SeverityCritical }

func (c *RedeemSolvencyCheck) Triggers() []types.Operation {
	return []types.Operation{types.OpSettleRedeem}
}

func (c *RedeemSolvencyCheck) Evaluate(ctx *Context) error {
	settles, err := ctx.SettleRedeems()
	if err != nil {
		return err
	}
	delta := new(big.Int).Sub(ctx.Post.VaultAssets, ctx.Pre.VaultAssets)
	if len(settles) == 0 {
		if delta.Sign() != 0 {
			return fail(c, ctx, "vault balance moved during a zero-pending settlement", map[string]interface{}{
				"delta": delta.String(),
			})
		}
		return nil
	}
	withdrawn := settles[len(settles)-1].AssetsWithdrawn
	if delta.Cmp(withdrawn) != 0 {
		return fail(c, ctx, "vault balance delta does not match withdrawn amount", map[string]interface{}{
			"delta":     delta.String(),
			"withdrawn": withdrawn.String(),
		})
	}
	return nil
}
