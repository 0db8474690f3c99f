package invariants

import (
	"errors"

	ethtypes "github.com/ethereum/go-ethereum/core/types"

	"vaultguard/pkg/logs"
	"vaultguard/pkg/types"
)

// ErrExpectedNavUpdate reports a settlement that emitted neither a NAV-update
// nor a settlement record. Every settlement re-bases NAV, so this is a
// violation in its own right, not a benign empty result.
var ErrExpectedNavUpdate = errors.New("settlement emitted no nav-update and no settlement record")

// Check is one invariant evaluated against the pre/post snapshot pair and
// the log records of a triggering operation. Checks are pure: no retained
// state, no side effects, callable offline against recorded history.
type Check interface {
	// Name is the check's stable selector.
	Name() string

	// Severity classifies a failure for reporting.
	Severity() string

	// Triggers lists the operations this check registers against.
	Triggers() []types.Operation

	// Evaluate returns nil on pass, a *types.Violation (or a decode/modeling
	// error) on failure. Any non-nil result aborts the triggering operation.
	Evaluate(ctx *Context) error
}

// Context carries everything one evaluation may inspect. Snapshots are
// immutable; Logs is the full ordered record sequence of the operation.
type Context struct {
	Op   types.Operation
	Pre  *types.Snapshot
	Post *types.Snapshot
	Logs []ethtypes.Log
	Now  uint64

	ext *logs.Extractor
}

// NewContext builds an evaluation context. The extractor is shared and
// stateless; snapshots and logs are scoped to this one operation.
func NewContext(ext *logs.Extractor, op types.Operation, pre, post *types.Snapshot, lgs []ethtypes.Log, now uint64) *Context {
	return &Context{Op: op, Pre: pre, Post: post, Logs: lgs, Now: now, ext: ext}
}

// NavUpdates decodes the operation's NAV-update records.
func (c *Context) NavUpdates() ([]types.NavUpdateEvent, error) {
	return c.ext.NavUpdates(c.Logs, c.Post.Vault)
}

// SettleDeposits decodes the operation's deposit-settlement records.
func (c *Context) SettleDeposits() ([]types.SettleDepositEvent, error) {
	return c.ext.SettleDeposits(c.Logs, c.Post.Vault)
}

// SettleRedeems decodes the operation's redeem-settlement records.
func (c *Context) SettleRedeems() ([]types.SettleRedeemEvent, error) {
	return c.ext.SettleRedeems(c.Logs, c.Post.Vault)
}

// SyncDeposits decodes the operation's fast-path deposit records.
func (c *Context) SyncDeposits() ([]types.SyncDepositEvent, error) {
	return c.ext.SyncDeposits(c.Logs, c.Post.Vault)
}

// LifespanUpdates decodes the operation's lifespan-change records.
func (c *Context) LifespanUpdates() ([]types.LifespanUpdateEvent, error) {
	return c.ext.LifespanUpdates(c.Logs, c.Post.Vault)
}

// fail builds the violation a check reports on its own invariant.
func fail(c Check, ctx *Context, reason string, details map[string]interface{}) *types.Violation {
	return &types.Violation{
		Check:     c.Name(),
		Operation: ctx.Op,
		Severity:  c.Severity(),
		Reason:    reason,
		Details:   details,
	}
}
