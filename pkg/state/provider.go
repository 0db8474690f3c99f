package state

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"vaultguard/pkg/types"
)

// ErrSnapshotOrdering signals misuse of the provider: the "after" snapshot
// was requested before the monitored operation completed. This is a wiring
// bug in the host, not a protocol violation.
var ErrSnapshotOrdering = errors.New("after-snapshot requested before operation completed")

// Provider captures the pre/post snapshot pair around exactly one monitored
// operation. Snapshots are never cached across operations; each evaluation
// gets a fresh pair.
type Provider struct {
	reader Reader

	pre      *types.Snapshot
	executed bool
}

// NewProvider creates a snapshot provider over the given reader.
func NewProvider(reader Reader) *Provider {
	return &Provider{reader: reader}
}

// Before captures the pre-operation snapshot and arms the provider.
func (p *Provider) Before(ctx context.Context, block *big.Int) (*types.Snapshot, error) {
	snap, err := p.reader.Read(ctx, block)
	if err != nil {
		return nil, fmt.Errorf("before-snapshot: %w", err)
	}
	p.pre = snap
	p.executed = false
	return snap, nil
}

// OperationComplete marks the monitored operation as finished, unlocking After.
func (p *Provider) OperationComplete() {
	p.executed = true
}

// After captures the post-operation snapshot. It fails with
// ErrSnapshotOrdering unless Before ran and OperationComplete was called.
func (p *Provider) After(ctx context.Context, block *big.Int) (*types.Snapshot, error) {
	if p.pre == nil || !p.executed {
		return nil, ErrSnapshotOrdering
	}
	snap, err := p.reader.Read(ctx, block)
	if err != nil {
		return nil, fmt.Errorf("after-snapshot: %w", err)
	}
	if snap.Timestamp < p.pre.Timestamp {
		return nil, fmt.Errorf("%w: post timestamp %d precedes pre timestamp %d",
			ErrSnapshotOrdering, snap.Timestamp, p.pre.Timestamp)
	}
	// Disarm so the next operation must start with a fresh Before.
	p.pre = nil
	p.executed = false
	return snap, nil
}
