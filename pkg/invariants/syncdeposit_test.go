package invariants

import (
	"math/big"
	"testing"

	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"

	"vaultguard/pkg/types"
)

func TestSyncModeExclusive(t *testing.T) {
	check := &SyncModeCheck{}
	const t0 = uint64(1_700_000_000)

	liveNav := func() *types.Snapshot {
		return modify(healthySnap(), func(s *types.Snapshot) {
			s.NavExpiration = t0 + 1000
			s.NavValid = true
		})
	}

	tests := []struct {
		name     string
		op       types.Operation
		pre      *types.Snapshot
		now      uint64
		wantFail bool
	}{
		{"sync deposit inside window", types.OpSyncDeposit, liveNav(), t0, false},
		{"sync deposit just before expiry", types.OpSyncDeposit, liveNav(), t0 + 999, false},
		{"sync deposit at expiry boundary", types.OpSyncDeposit, liveNav(), t0 + 1000, true},
		{"sync deposit with expired nav", types.OpSyncDeposit, healthySnap(), t0, true},
		{"request deposit after expiry", types.OpRequestDeposit, liveNav(), t0 + 1000, false},
		{"request deposit inside window", types.OpRequestDeposit, liveNav(), t0 + 500, true},
		{"request deposit with expired nav", types.OpRequestDeposit, healthySnap(), t0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pre := tt.pre
			// The vault's own predicate follows the recomputed one here; the
			// stale-predicate case is nav-validity-consistency's job.
			pre.NavValid = pre.NavValidAt(tt.now)
			ctx := evalCtx(t, tt.op, pre, healthySnap(), nil, tt.now)
			err := check.Evaluate(ctx)
			if tt.wantFail {
				requireViolation(t, err, "sync-mode-exclusive")
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestSyncAccounting(t *testing.T) {
	check := &SyncAccountingCheck{}
	sender := testSafe

	// pre: nav 50,000, supply 50,000, offset 1. A 10,000 deposit mints
	// 10,000*(50,000+1)/(50,000+1) = 10,000 shares.
	goodPost := func() *types.Snapshot {
		return modify(healthySnap(), func(s *types.Snapshot) {
			s.Nav = big.NewInt(60_000)
			s.TotalSupply = big.NewInt(60_000)
			s.SafeAssets = big.NewInt(110_000)
		})
	}

	t.Run("conserving deposit passes", func(t *testing.T) {
		lgs := []ethtypes.Log{syncDepositLog(sender, sender, 10_000, 10_000)}
		ctx := evalCtx(t, types.OpSyncDeposit, healthySnap(), goodPost(), lgs, 1000)
		require.NoError(t, check.Evaluate(ctx))
	})

	t.Run("missing deposit record fails", func(t *testing.T) {
		ctx := evalCtx(t, types.OpSyncDeposit, healthySnap(), goodPost(), nil, 1000)
		requireViolation(t, check.Evaluate(ctx), "sync-accounting")
	})

	t.Run("nav not credited fails", func(t *testing.T) {
		post := modify(goodPost(), func(s *types.Snapshot) { s.Nav = big.NewInt(50_000) })
		lgs := []ethtypes.Log{syncDepositLog(sender, sender, 10_000, 10_000)}
		ctx := evalCtx(t, types.OpSyncDeposit, healthySnap(), post, lgs, 1000)
		requireViolation(t, check.Evaluate(ctx), "sync-accounting")
	})

	t.Run("assets that bypass the safe fail", func(t *testing.T) {
		post := modify(goodPost(), func(s *types.Snapshot) { s.SafeAssets = big.NewInt(100_000) })
		lgs := []ethtypes.Log{syncDepositLog(sender, sender, 10_000, 10_000)}
		ctx := evalCtx(t, types.OpSyncDeposit, healthySnap(), post, lgs, 1000)
		requireViolation(t, check.Evaluate(ctx), "sync-accounting")
	})

	t.Run("over-minted shares fail", func(t *testing.T) {
		post := modify(goodPost(), func(s *types.Snapshot) { s.TotalSupply = big.NewInt(60_001) })
		lgs := []ethtypes.Log{syncDepositLog(sender, sender, 10_000, 10_001)}
		ctx := evalCtx(t, types.OpSyncDeposit, healthySnap(), post, lgs, 1000)
		requireViolation(t, check.Evaluate(ctx), "sync-accounting")
	})

	t.Run("supply delta must match the record", func(t *testing.T) {
		post := modify(goodPost(), func(s *types.Snapshot) { s.TotalSupply = big.NewInt(60_500) })
		lgs := []ethtypes.Log{syncDepositLog(sender, sender, 10_000, 10_000)}
		ctx := evalCtx(t, types.OpSyncDeposit, healthySnap(), post, lgs, 1000)
		requireViolation(t, check.Evaluate(ctx), "sync-accounting")
	})
}

func TestSharesForDeposit(t *testing.T) {
	t.Run("empty supply uses the decimals offset", func(t *testing.T) {
		pre := modify(healthySnap(), func(s *types.Snapshot) {
			s.TotalSupply = big.NewInt(0)
			s.DecimalsOffset = big.NewInt(1000)
		})
		got := sharesForDeposit(big.NewInt(7), pre)
		require.Equal(t, int64(7000), got.Int64())
	})

	t.Run("floor division", func(t *testing.T) {
		pre := modify(healthySnap(), func(s *types.Snapshot) {
			s.TotalSupply = big.NewInt(10)
			s.Nav = big.NewInt(3)
		})
		// 7 * (10+1) / (3+1) = 19.25 -> 19
		got := sharesForDeposit(big.NewInt(7), pre)
		require.Equal(t, int64(19), got.Int64())
	})

	t.Run("proportional round case", func(t *testing.T) {
		got := sharesForDeposit(big.NewInt(10_000), healthySnap())
		require.Equal(t, int64(10_000), got.Int64())
	})
}
