package types

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Operation identifies a monitored vault entry point. Checks register
// against one or more operations.
type Operation string

const (
	OpUpdateNav      Operation = "updateNewTotalAssets"
	OpSettleDeposit  Operation = "settleDeposit"
	OpSettleRedeem   Operation = "settleRedeem"
	OpSyncDeposit    Operation = "syncDeposit"
	OpRequestDeposit Operation = "requestDeposit"
	OpRequestRedeem  Operation = "requestRedeem"
	OpCancelRequest  Operation = "cancelRequestDeposit"
	OpUpdateLifespan Operation = "updateTotalAssetsLifespan"
	OpExpireNav      Operation = "expireTotalAssets"
)

// PendingNavSentinel marks a vault with no staged NAV proposal
// (type(uint256).max on chain).
var PendingNavSentinel = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// Snapshot is a read-only view of the vault taken either immediately before
// or immediately after one monitored operation. Amounts are in the
// underlying asset's smallest unit except SiloShares/PendingShares/
// TotalSupply, which are share amounts.
type Snapshot struct {
	Vault common.Address `json:"vault"`

	Nav        *big.Int `json:"nav"`
	PendingNav *big.Int `json:"pending_nav"` // PendingNavSentinel when none staged

	DepositEpochID          uint64 `json:"deposit_epoch_id"`
	RedeemEpochID           uint64 `json:"redeem_epoch_id"`
	LastDepositEpochSettled uint64 `json:"last_deposit_epoch_settled"`
	LastRedeemEpochSettled  uint64 `json:"last_redeem_epoch_settled"`

	NavExpiration uint64 `json:"nav_expiration"`
	NavLifespan   uint64 `json:"nav_lifespan"`
	NavValid      bool   `json:"nav_valid"` // the vault's own predicate, re-checked against the fields above

	TotalSupply    *big.Int `json:"total_supply"`
	DecimalsOffset *big.Int `json:"decimals_offset"` // 10^(share decimals - asset decimals)

	PendingAssets *big.Int `json:"pending_assets"` // outstanding deposit requests, current epoch
	PendingShares *big.Int `json:"pending_shares"` // outstanding redeem requests, current epoch

	SiloAssets  *big.Int `json:"silo_assets"`
	SiloShares  *big.Int `json:"silo_shares"`
	SafeAssets  *big.Int `json:"safe_assets"`
	VaultAssets *big.Int `json:"vault_assets"`

	Timestamp uint64 `json:"timestamp"`
}

// NavValidAt recomputes the validity predicate from raw fields. The boundary
// now == expiration is invalid (strict less-than).
func (s *Snapshot) NavValidAt(now uint64) bool {
	return s.NavExpiration > 0 && now < s.NavExpiration
}

// Mode is the deposit mode derived from a snapshot; it is never stored.
type Mode string

const (
	ModeSync  Mode = "sync"
	ModeAsync Mode = "async"
)

// ModeAt derives the deposit mode at a given time.
func (s *Snapshot) ModeAt(now uint64) Mode {
	if s.NavValidAt(now) {
		return ModeSync
	}
	return ModeAsync
}

// NavUpdateEvent is the decoded NAV-update record.
type NavUpdateEvent struct {
	NewNav *big.Int
}

// SettleDepositEvent is the decoded deposit-settlement record.
type SettleDepositEvent struct {
	EpochID       uint64
	SettledID     uint64
	TotalAssets   *big.Int
	TotalSupply   *big.Int
	AssetsDeposit *big.Int // pending assets absorbed by this settlement
	SharesMinted  *big.Int
}

// SettleRedeemEvent is the decoded redeem-settlement record.
type SettleRedeemEvent struct {
	EpochID         uint64
	SettledID       uint64
	TotalAssets     *big.Int
	TotalSupply     *big.Int
	AssetsWithdrawn *big.Int
	SharesBurned    *big.Int // pending shares absorbed by this settlement
}

// SyncDepositEvent is the decoded fast-path deposit record.
type SyncDepositEvent struct {
	Sender common.Address
	Owner  common.Address
	Assets *big.Int
	Shares *big.Int
}

// LifespanUpdateEvent is the decoded lifespan-change record.
type LifespanUpdateEvent struct {
	OldLifespan uint64
	NewLifespan uint64
}

// Severity levels for violations, in the reporter's ordering.
const (
	SeverityCritical = "critical"
	SeverityHigh     = "high"
	SeverityMedium   = "medium"
)

// Violation is a failed invariant check. It aborts the triggering operation;
// it is never retried or downgraded to a warning.
type Violation struct {
	Check     string                 `json:"check"`
	Operation Operation              `json:"operation"`
	Severity  string                 `json:"severity"`
	Reason    string                 `json:"reason"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

func (v *Violation) Error() string {
	return fmt.Sprintf("invariant %s violated on %s: %s", v.Check, v.Operation, v.Reason)
}
