package invariants

import (
	"vaultguard/pkg/types"
)

// Registry maps each monitored operation to the ordered set of checks
// registered against it. Built once at startup and never mutated after.
type Registry struct {
	byOp map[types.Operation][]Check
	all  []Check
}

// NewRegistry builds a registry from the given checks, preserving
// registration order per operation.
func NewRegistry(checks ...Check) *Registry {
	r := &Registry{byOp: make(map[types.Operation][]Check), all: checks}
	for _, c := range checks {
		for _, op := range c.Triggers() {
			r.byOp[op] = append(r.byOp[op], c)
		}
	}
	return r
}

// For returns the checks registered for an operation, in order. The returned
// slice must not be mutated.
func (r *Registry) For(op types.Operation) []Check {
	return r.byOp[op]
}

// Checks returns every registered check.
func (r *Registry) Checks() []Check {
	return r.all
}

// Lookup finds a check by its stable name, for standalone replay.
func (r *Registry) Lookup(name string) (Check, bool) {
	for _, c := range r.all {
		if c.Name() == name {
			return c, true
		}
	}
	return nil, false
}

// Default builds the full production registry: the five check families in
// evaluation order.
func Default() *Registry {
	return NewRegistry(
		// NAV validity & expiration lifecycle
		&NavValidityCheck{},
		&NavUpdateGateCheck{},
		&NavSettlementExpirationCheck{},
		&LifespanEventCheck{},
		&ManualExpireCheck{},

		// Epoch settlement ordering
		&EpochParityCheck{},
		&EpochSettledLagCheck{},
		&EpochStepCheck{},
		&EpochSyncIsolationCheck{},

		// Accounting conservation & solvency
		&SettleDepositAccountingCheck{},
		&SettleRedeemAccountingCheck{},
		&RedeemSolvencyCheck{},

		// Sync deposit mode
		&SyncModeCheck{},
		&SyncAccountingCheck{},

		// Holding-area balance consistency
		&SiloBackingCheck{},
		&SiloOutflowCheck{},
		&SiloSyncIsolationCheck{},
	)
}
