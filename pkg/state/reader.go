package state

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/holiman/uint256"

	"vaultguard/pkg/types"
)

// Reader reads a full vault snapshot at one block.
type Reader interface {
	Read(ctx context.Context, block *big.Int) (*types.Snapshot, error)
}

// Accessor fragments of the vault and of the underlying ERC20. The vault is
// itself the share token, so balanceOf serves for both share and asset
// balances depending on the target address.
const accessorABIJSON = `[
{"type":"function","name":"totalAssets","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"newTotalAssets","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"totalSupply","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"isTotalAssetsValid","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"bool"}]},
{"type":"function","name":"pendingDepositAssets","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"pendingRedeemShares","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]}
]`

// ChainConfig identifies the monitored vault and its custodial parties.
type ChainConfig struct {
	Vault common.Address
	Asset common.Address
	Silo  common.Address
	Safe  common.Address

	// Raw storage slots for the two packed words (no accessor exists).
	NavWordSlot   common.Hash
	EpochWordSlot common.Hash

	DecimalsOffset *big.Int
}

// ChainReader reads snapshots from a live node. Accessor fields go through
// eth_call; the packed words are read raw and unpacked.
type ChainReader struct {
	client *ethclient.Client
	cfg    ChainConfig
	abi    abi.ABI
}

// NewChainReader creates a chain-backed snapshot reader.
func NewChainReader(client *ethclient.Client, cfg ChainConfig) (*ChainReader, error) {
	parsed, err := abi.JSON(strings.NewReader(accessorABIJSON))
	if err != nil {
		return nil, fmt.Errorf("parse accessor abi: %w", err)
	}
	if cfg.DecimalsOffset == nil {
		cfg.DecimalsOffset = big.NewInt(1)
	}
	return &ChainReader{client: client, cfg: cfg, abi: parsed}, nil
}

// Read captures the vault's state at the given block.
func (r *ChainReader) Read(ctx context.Context, block *big.Int) (*types.Snapshot, error) {
	header, err := r.client.HeaderByNumber(ctx, block)
	if err != nil {
		return nil, fmt.Errorf("fetch header %v: %w", block, err)
	}

	snap := &types.Snapshot{
		Vault:          r.cfg.Vault,
		DecimalsOffset: new(big.Int).Set(r.cfg.DecimalsOffset),
		Timestamp:      header.Time,
	}

	if snap.Nav, err = r.callUint(ctx, r.cfg.Vault, "totalAssets", block); err != nil {
		return nil, err
	}
	if snap.PendingNav, err = r.callUint(ctx, r.cfg.Vault, "newTotalAssets", block); err != nil {
		return nil, err
	}
	if snap.TotalSupply, err = r.callUint(ctx, r.cfg.Vault, "totalSupply", block); err != nil {
		return nil, err
	}
	if snap.PendingAssets, err = r.callUint(ctx, r.cfg.Vault, "pendingDepositAssets", block); err != nil {
		return nil, err
	}
	if snap.PendingShares, err = r.callUint(ctx, r.cfg.Vault, "pendingRedeemShares", block); err != nil {
		return nil, err
	}
	if snap.NavValid, err = r.callBool(ctx, r.cfg.Vault, "isTotalAssetsValid", block); err != nil {
		return nil, err
	}

	// Custodial balances: underlying asset held by silo/safe/vault, and the
	// vault's own share token held by the silo (pending redeems).
	if snap.SiloAssets, err = r.callUint(ctx, r.cfg.Asset, "balanceOf", block, r.cfg.Silo); err != nil {
		return nil, err
	}
	if snap.SafeAssets, err = r.callUint(ctx, r.cfg.Asset, "balanceOf", block, r.cfg.Safe); err != nil {
		return nil, err
	}
	if snap.VaultAssets, err = r.callUint(ctx, r.cfg.Asset, "balanceOf", block, r.cfg.Vault); err != nil {
		return nil, err
	}
	if snap.SiloShares, err = r.callUint(ctx, r.cfg.Vault, "balanceOf", block, r.cfg.Silo); err != nil {
		return nil, err
	}

	navWord, err := r.storageWord(ctx, r.cfg.NavWordSlot, block)
	if err != nil {
		return nil, err
	}
	nw := UnpackNavWord(navWord)
	snap.NavExpiration = nw.Expiration
	snap.NavLifespan = nw.Lifespan

	epochWord, err := r.storageWord(ctx, r.cfg.EpochWordSlot, block)
	if err != nil {
		return nil, err
	}
	ew := UnpackEpochWord(epochWord)
	snap.DepositEpochID = ew.DepositEpochID
	snap.LastDepositEpochSettled = ew.LastDepositEpochSettled
	snap.RedeemEpochID = ew.RedeemEpochID
	snap.LastRedeemEpochSettled = ew.LastRedeemEpochSettled

	return snap, nil
}

func (r *ChainReader) callUint(ctx context.Context, to common.Address, method string, block *big.Int, args ...interface{}) (*big.Int, error) {
	out, err := r.call(ctx, to, method, block, args...)
	if err != nil {
		return nil, err
	}
	v, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%s: unexpected return type %T", method, out[0])
	}
	return v, nil
}

func (r *ChainReader) callBool(ctx context.Context, to common.Address, method string, block *big.Int, args ...interface{}) (bool, error) {
	out, err := r.call(ctx, to, method, block, args...)
	if err != nil {
		return false, err
	}
	v, ok := out[0].(bool)
	if !ok {
		return false, fmt.Errorf("%s: unexpected return type %T", method, out[0])
	}
	return v, nil
}

func (r *ChainReader) call(ctx context.Context, to common.Address, method string, block *big.Int, args ...interface{}) ([]interface{}, error) {
	data, err := r.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	ret, err := r.client.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, block)
	if err != nil {
		return nil, fmt.Errorf("call %s on %s: %w", method, to.Hex(), err)
	}
	out, err := r.abi.Unpack(method, ret)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s: empty return", method)
	}
	return out, nil
}

func (r *ChainReader) storageWord(ctx context.Context, slot common.Hash, block *big.Int) (*uint256.Int, error) {
	raw, err := r.client.StorageAt(ctx, r.cfg.Vault, slot, block)
	if err != nil {
		return nil, fmt.Errorf("read slot %s: %w", slot.Hex(), err)
	}
	return new(uint256.Int).SetBytes(raw), nil
}
