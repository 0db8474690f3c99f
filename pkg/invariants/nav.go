package invariants

import (
	"fmt"

	"vaultguard/pkg/types"
)

// NavValidityCheck verifies that the vault's validity predicate equals
// expiration > 0 && now < expiration after every operation that can move
// the expiration. The boundary now == expiration must read as invalid.
type NavValidityCheck struct{}

func (c *NavValidityCheck) Name() string     { return "nav-validity-consistency" }
func (c *NavValidityCheck) Severity() string { return types.SeverityCritical }

func (c *NavValidityCheck) Triggers() []types.Operation {
	return []types.Operation{
		types.OpUpdateNav,
		types.OpSettleDeposit,
		types.OpSettleRedeem,
		types.OpExpireNav,
	}
}

func (c *NavValidityCheck) Evaluate(ctx *Context) error {
	want := ctx.Post.NavValidAt(ctx.Now)
	if ctx.Post.NavValid != want {
		return fail(c, ctx, "validity predicate disagrees with expiration fields", map[string]interface{}{
			"reported":   ctx.Post.NavValid,
			"computed":   want,
			"expiration": ctx.Post.NavExpiration,
			"now":        ctx.Now,
		})
	}
	return nil
}

// NavUpdateGateCheck verifies a NAV update only began while the previous NAV
// was already expired. Updates during the sync window are forbidden.
type NavUpdateGateCheck struct{}

func (c *NavUpdateGateCheck) Name() string     { return "nav-update-requires-expired" }
func (c *NavUpdateGateCheck) Severity() string { return types.SeverityHigh }

func (c *NavUpdateGateCheck) Triggers() []types.Operation {
	return []types.Operation{types.OpUpdateNav}
}

func (c *NavUpdateGateCheck) Evaluate(ctx *Context) error {
	if ctx.Pre.NavValid || ctx.Pre.NavValidAt(ctx.Now) {
		return fail(c, ctx, "nav update started while previous nav still valid", map[string]interface{}{
			"expiration": ctx.Pre.NavExpiration,
			"now":        ctx.Now,
		})
	}
	return nil
}

// NavSettlementExpirationCheck ties the post-settlement expiration to the
// settlement time: settleTime + lifespan when a lifespan is configured,
// otherwise an already-expired value.
type NavSettlementExpirationCheck struct{}

func (c *NavSettlementExpirationCheck) Name() string     { return "nav-settlement-expiration" }
func (c *NavSettlementExpirationCheck) Severity() string { return types.SeverityHigh }

func (c *NavSettlementExpirationCheck) Triggers() []types.Operation {
	return []types.Operation{types.OpSettleDeposit, types.OpSettleRedeem}
}

func (c *NavSettlementExpirationCheck) Evaluate(ctx *Context) error {
	settleTime := ctx.Post.Timestamp
	lifespan := ctx.Post.NavLifespan

	if lifespan > 0 {
		want := settleTime + lifespan
		if ctx.Post.NavExpiration != want {
			return fail(c, ctx, fmt.Sprintf("expiration %d != settlement time %d + lifespan %d",
				ctx.Post.NavExpiration, settleTime, lifespan), nil)
		}
		return nil
	}
	// Zero lifespan: the settled NAV must come out already expired. The vault
	// normalizes to 0 but anything <= the settlement time satisfies the rule.
	if ctx.Post.NavExpiration > settleTime {
		return fail(c, ctx, "zero lifespan settlement produced a live expiration", map[string]interface{}{
			"expiration":  ctx.Post.NavExpiration,
			"settle_time": settleTime,
		})
	}
	return nil
}

// LifespanEventCheck verifies a lifespan update emitted its change record and
// that the record's new value matches the post-state lifespan.
type LifespanEventCheck struct{}

func (c *LifespanEventCheck) Name() string     { return "nav-lifespan-event" }
func (c *LifespanEventCheck) Severity() string { return types.SeverityMedium }

func (c *LifespanEventCheck) Triggers() []types.Operation {
	return []types.Operation{types.OpUpdateLifespan}
}

func (c *LifespanEventCheck) Evaluate(ctx *Context) error {
	events, err := ctx.LifespanUpdates()
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return fail(c, ctx, "lifespan update emitted no change record", nil)
	}
	last := events[len(events)-1]
	if last.NewLifespan != ctx.Post.NavLifespan {
		return fail(c, ctx, fmt.Sprintf("change record new value %d != post-state lifespan %d",
			last.NewLifespan, ctx.Post.NavLifespan), nil)
	}
	if events[0].OldLifespan != ctx.Pre.NavLifespan {
		return fail(c, ctx, fmt.Sprintf("change record old value %d != pre-state lifespan %d",
			events[0].OldLifespan, ctx.Pre.NavLifespan), nil)
	}
	return nil
}

// ManualExpireCheck verifies a manual expiration zeroed the expiration and
// left the NAV invalid, unconditionally.
type ManualExpireCheck struct{}

func (c *ManualExpireCheck) Name() string     { return "nav-manual-expire" }
func (c *ManualExpireCheck) Severity() string { return types.SeverityHigh }

func (c *ManualExpireCheck) Triggers() []types.Operation {
	return []types.Operation{types.OpExpireNav}
}

func (c *ManualExpireCheck) Evaluate(ctx *Context) error {
	if ctx.Post.NavExpiration != 0 {
		return fail(c, ctx, fmt.Sprintf("manual expire left expiration %d, want 0", ctx.Post.NavExpiration), nil)
	}
	if ctx.Post.NavValid || ctx.Post.NavValidAt(ctx.Now) {
		return fail(c, ctx, "nav still valid after manual expire", nil)
	}
	return nil
}
