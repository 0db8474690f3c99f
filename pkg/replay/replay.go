// Package replay backtests the registered invariant checks against recorded
// transaction history: it rebuilds the pre/post snapshot pair around a
// historical transaction and feeds the engine exactly as a live trigger
// would.
package replay

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"vaultguard/pkg/engine"
	"vaultguard/pkg/state"
	"vaultguard/pkg/types"
)

// Monitored entry-point signatures, mapped to the operation each triggers.
var methodSignatures = map[string]types.Operation{
	"updateNewTotalAssets(uint256)":           types.OpUpdateNav,
	"settleDeposit(uint256)":                  types.OpSettleDeposit,
	"settleRedeem(uint256)":                   types.OpSettleRedeem,
	"syncDeposit(uint256,address,address)":    types.OpSyncDeposit,
	"requestDeposit(uint256,address,address)": types.OpRequestDeposit,
	"requestRedeem(uint256,address,address)":  types.OpRequestRedeem,
	"cancelRequestDeposit()":                  types.OpCancelRequest,
	"updateTotalAssetsLifespan(uint128)":      types.OpUpdateLifespan,
	"expireTotalAssets()":                     types.OpExpireNav,
}

var selectorTable = buildSelectorTable()

func buildSelectorTable() map[[4]byte]types.Operation {
	table := make(map[[4]byte]types.Operation, len(methodSignatures))
	for sig, op := range methodSignatures {
		var sel [4]byte
		copy(sel[:], crypto.Keccak256([]byte(sig))[:4])
		table[sel] = op
	}
	return table
}

// OperationForInput classifies a transaction by its calldata selector.
func OperationForInput(input []byte) (types.Operation, bool) {
	if len(input) < 4 {
		return "", false
	}
	var sel [4]byte
	copy(sel[:], input[:4])
	op, ok := selectorTable[sel]
	return op, ok
}

// Replayer re-evaluates historical transactions against the registry.
type Replayer struct {
	client *ethclient.Client
	reader state.Reader
	eng    *engine.Engine
}

// NewReplayer creates a replayer. The reader must observe the same vault the
// transactions were sent to.
func NewReplayer(client *ethclient.Client, reader state.Reader, eng *engine.Engine) *Replayer {
	return &Replayer{client: client, reader: reader, eng: eng}
}

// ReplayTransaction evaluates every check registered for the operation the
// transaction invoked. The "before" state is the parent block, the "after"
// state the containing block, mirroring how the live trigger brackets one
// operation.
func (r *Replayer) ReplayTransaction(ctx context.Context, txHash common.Hash) error {
	tx, pending, err := r.client.TransactionByHash(ctx, txHash)
	if err != nil {
		return fmt.Errorf("fetch transaction %s: %w", txHash.Hex(), err)
	}
	if pending {
		return fmt.Errorf("transaction %s still pending", txHash.Hex())
	}

	op, ok := OperationForInput(tx.Data())
	if !ok {
		return fmt.Errorf("transaction %s does not invoke a monitored operation", txHash.Hex())
	}

	receipt, err := r.client.TransactionReceipt(ctx, txHash)
	if err != nil {
		return fmt.Errorf("fetch receipt %s: %w", txHash.Hex(), err)
	}
	if receipt.Status != ethtypes.ReceiptStatusSuccessful {
		// A reverted transaction left no effects to check.
		return fmt.Errorf("transaction %s reverted", txHash.Hex())
	}

	provider := state.NewProvider(r.reader)
	parent := new(big.Int).Sub(receipt.BlockNumber, big.NewInt(1))
	pre, err := provider.Before(ctx, parent)
	if err != nil {
		return err
	}
	provider.OperationComplete()
	post, err := provider.After(ctx, receipt.BlockNumber)
	if err != nil {
		return err
	}

	lgs := make([]ethtypes.Log, 0, len(receipt.Logs))
	for _, lg := range receipt.Logs {
		lgs = append(lgs, *lg)
	}

	return r.eng.Evaluate(op, pre, post, lgs, post.Timestamp)
}

// ReplayRange evaluates every monitored transaction in a list, continuing
// past violations so a backtest surveys the whole window. It returns the
// violations encountered, in order.
func (r *Replayer) ReplayRange(ctx context.Context, txHashes []common.Hash) []error {
	var failures []error
	for _, h := range txHashes {
		if err := r.ReplayTransaction(ctx, h); err != nil {
			failures = append(failures, fmt.Errorf("%s: %w", h.Hex(), err))
		}
	}
	return failures
}
