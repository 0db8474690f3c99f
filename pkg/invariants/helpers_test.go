package invariants

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"vaultguard/pkg/logs"
	"vaultguard/pkg/types"
)

var (
	testVault = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	testSafe  = common.HexToAddress("0x00000000000000000000000000000000000000a2")

	topicNavUpdated     = crypto.Keccak256Hash([]byte("TotalAssetsUpdated(uint256)"))
	topicSettleDeposit  = crypto.Keccak256Hash([]byte("SettleDeposit(uint40,uint40,uint256,uint256,uint256,uint256)"))
	topicSettleRedeem   = crypto.Keccak256Hash([]byte("SettleRedeem(uint40,uint40,uint256,uint256,uint256,uint256)"))
	topicSyncDeposit    = crypto.Keccak256Hash([]byte("Deposit(address,address,uint256,uint256)"))
	topicLifespanUpdate = crypto.Keccak256Hash([]byte("TotalAssetsLifespanUpdated(uint128,uint128)"))
)

// healthySnap is a consistent idle vault: expired NAV, epochs 3/2 with epoch
// 1/0 settled, nothing pending.
func healthySnap() *types.Snapshot {
	return &types.Snapshot{
		Vault:                   testVault,
		Nav:                     big.NewInt(50_000),
		PendingNav:              new(big.Int).Set(types.PendingNavSentinel),
		DepositEpochID:          3,
		RedeemEpochID:           2,
		LastDepositEpochSettled: 1,
		LastRedeemEpochSettled:  0,
		NavExpiration:           0,
		NavLifespan:             0,
		NavValid:                false,
		TotalSupply:             big.NewInt(50_000),
		DecimalsOffset:          big.NewInt(1),
		PendingAssets:           big.NewInt(0),
		PendingShares:           big.NewInt(0),
		SiloAssets:              big.NewInt(0),
		SiloShares:              big.NewInt(0),
		SafeAssets:              big.NewInt(100_000),
		VaultAssets:             big.NewInt(0),
		Timestamp:               1_700_000_000,
	}
}

func modify(s *types.Snapshot, mut func(*types.Snapshot)) *types.Snapshot {
	mut(s)
	return s
}

func evalCtx(t *testing.T, op types.Operation, pre, post *types.Snapshot, lgs []ethtypes.Log, now uint64) *Context {
	t.Helper()
	ext, err := logs.NewExtractor()
	require.NoError(t, err)
	return NewContext(ext, op, pre, post, lgs, now)
}

func words(vals ...*big.Int) []byte {
	out := make([]byte, 0, len(vals)*32)
	for _, v := range vals {
		out = append(out, common.LeftPadBytes(v.Bytes(), 32)...)
	}
	return out
}

func navUpdatedLog(newNav int64) ethtypes.Log {
	return ethtypes.Log{
		Address: testVault,
		Topics:  []common.Hash{topicNavUpdated},
		Data:    words(big.NewInt(newNav)),
	}
}

func settleDepositLog(epochID, settledID uint64, totalAssets, totalSupply, assetsDeposited, sharesMinted int64) ethtypes.Log {
	return ethtypes.Log{
		Address: testVault,
		Topics: []common.Hash{
			topicSettleDeposit,
			common.BigToHash(new(big.Int).SetUint64(epochID)),
			common.BigToHash(new(big.Int).SetUint64(settledID)),
		},
		Data: words(big.NewInt(totalAssets), big.NewInt(totalSupply), big.NewInt(assetsDeposited), big.NewInt(sharesMinted)),
	}
}

func settleRedeemLog(epochID, settledID uint64, totalAssets, totalSupply, assetsWithdrawn, sharesBurned int64) ethtypes.Log {
	return ethtypes.Log{
		Address: testVault,
		Topics: []common.Hash{
			topicSettleRedeem,
			common.BigToHash(new(big.Int).SetUint64(epochID)),
			common.BigToHash(new(big.Int).SetUint64(settledID)),
		},
		Data: words(big.NewInt(totalAssets), big.NewInt(totalSupply), big.NewInt(assetsWithdrawn), big.NewInt(sharesBurned)),
	}
}

func syncDepositLog(sender, owner common.Address, assets, shares int64) ethtypes.Log {
	return ethtypes.Log{
		Address: testVault,
		Topics: []common.Hash{
			topicSyncDeposit,
			common.BytesToHash(sender.Bytes()),
			common.BytesToHash(owner.Bytes()),
		},
		Data: words(big.NewInt(assets), big.NewInt(shares)),
	}
}

func lifespanLog(oldLifespan, newLifespan uint64) ethtypes.Log {
	return ethtypes.Log{
		Address: testVault,
		Topics:  []common.Hash{topicLifespanUpdate},
		Data:    words(new(big.Int).SetUint64(oldLifespan), new(big.Int).SetUint64(newLifespan)),
	}
}

func requireViolation(t *testing.T, err error, check string) *types.Violation {
	t.Helper()
	require.Error(t, err)
	v, ok := err.(*types.Violation)
	require.True(t, ok, "expected *types.Violation, got %T: %v", err, err)
	require.Equal(t, check, v.Check)
	return v
}
