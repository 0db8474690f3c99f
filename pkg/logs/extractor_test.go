package logs

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

var (
	vault    = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	stranger = common.HexToAddress("0x00000000000000000000000000000000000000b2")

	navUpdatedID    = crypto.Keccak256Hash([]byte("TotalAssetsUpdated(uint256)"))
	settleDepositID = crypto.Keccak256Hash([]byte("SettleDeposit(uint40,uint40,uint256,uint256,uint256,uint256)"))
	depositID       = crypto.Keccak256Hash([]byte("Deposit(address,address,uint256,uint256)"))
)

func pad(vals ...int64) []byte {
	out := make([]byte, 0, len(vals)*32)
	for _, v := range vals {
		out = append(out, common.LeftPadBytes(big.NewInt(v).Bytes(), 32)...)
	}
	return out
}

func newTestExtractor(t *testing.T) *Extractor {
	t.Helper()
	ext, err := NewExtractor()
	require.NoError(t, err)
	return ext
}

func TestExtractorZeroMatchesIsNotAnError(t *testing.T) {
	ext := newTestExtractor(t)

	got, err := ext.NavUpdates(nil, vault)
	require.NoError(t, err)
	require.Empty(t, got)

	// Unrelated record kinds are simply skipped.
	lgs := []ethtypes.Log{{Address: vault, Topics: []common.Hash{depositID, {}, {}}, Data: pad(1, 1)}}
	settles, err := ext.SettleDeposits(lgs, vault)
	require.NoError(t, err)
	require.Empty(t, settles)
}

func TestExtractorFiltersByEmitter(t *testing.T) {
	ext := newTestExtractor(t)
	lgs := []ethtypes.Log{
		{Address: stranger, Topics: []common.Hash{navUpdatedID}, Data: pad(111)},
		{Address: vault, Topics: []common.Hash{navUpdatedID}, Data: pad(222)},
	}

	got, err := ext.NavUpdates(lgs, vault)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, int64(222), got[0].NewNav.Int64())
}

func TestExtractorPreservesEmissionOrder(t *testing.T) {
	ext := newTestExtractor(t)
	lgs := []ethtypes.Log{
		{Address: vault, Topics: []common.Hash{navUpdatedID}, Data: pad(1)},
		{Address: vault, Topics: []common.Hash{navUpdatedID}, Data: pad(2)},
		{Address: vault, Topics: []common.Hash{navUpdatedID}, Data: pad(3)},
	}

	got, err := ext.NavUpdates(lgs, vault)
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i, ev := range got {
		require.Equal(t, int64(i+1), ev.NewNav.Int64())
	}
}

func TestExtractorDecodesSettleDeposit(t *testing.T) {
	ext := newTestExtractor(t)
	lgs := []ethtypes.Log{{
		Address: vault,
		Topics: []common.Hash{
			settleDepositID,
			common.BigToHash(big.NewInt(3)),
			common.BigToHash(big.NewInt(1)),
		},
		Data: pad(60_000, 60_000, 10_000, 10_000),
	}}

	got, err := ext.SettleDeposits(lgs, vault)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, uint64(3), got[0].EpochID)
	require.Equal(t, uint64(1), got[0].SettledID)
	require.Equal(t, int64(60_000), got[0].TotalAssets.Int64())
	require.Equal(t, int64(10_000), got[0].AssetsDeposit.Int64())
	require.Equal(t, int64(10_000), got[0].SharesMinted.Int64())
}

func TestExtractorDecodesSyncDepositTopics(t *testing.T) {
	ext := newTestExtractor(t)
	sender := common.HexToAddress("0x00000000000000000000000000000000000000c1")
	owner := common.HexToAddress("0x00000000000000000000000000000000000000c2")
	lgs := []ethtypes.Log{{
		Address: vault,
		Topics: []common.Hash{
			depositID,
			common.BytesToHash(sender.Bytes()),
			common.BytesToHash(owner.Bytes()),
		},
		Data: pad(10_000, 9_900),
	}}

	got, err := ext.SyncDeposits(lgs, vault)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, sender, got[0].Sender)
	require.Equal(t, owner, got[0].Owner)
	require.Equal(t, int64(10_000), got[0].Assets.Int64())
	require.Equal(t, int64(9_900), got[0].Shares.Int64())
}

func TestExtractorGarbledDataIsDecodeError(t *testing.T) {
	ext := newTestExtractor(t)
	lgs := []ethtypes.Log{{
		Address: vault,
		Topics: []common.Hash{
			settleDepositID,
			common.BigToHash(big.NewInt(3)),
			common.BigToHash(big.NewInt(1)),
		},
		Data: pad(60_000), // three words short
		Index: 7,
	}}

	_, err := ext.SettleDeposits(lgs, vault)
	require.Error(t, err)
	var de *DecodeError
	require.True(t, errors.As(err, &de))
	require.Equal(t, "SettleDeposit", de.Event)
	require.Equal(t, uint(7), de.LogIndex)
}

func TestExtractorMissingIndexedTopicIsDecodeError(t *testing.T) {
	ext := newTestExtractor(t)
	lgs := []ethtypes.Log{{
		Address: vault,
		Topics:  []common.Hash{depositID},
		Data:    pad(10_000, 9_900),
	}}

	_, err := ext.SyncDeposits(lgs, vault)
	var de *DecodeError
	require.True(t, errors.As(err, &de))
}
