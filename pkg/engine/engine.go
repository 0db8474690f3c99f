// Package engine dispatches registered invariant checks around monitored
// vault operations. The checks themselves carry no dependency on the host
// runtime; this adapter is the only place that knows about triggering.
package engine

import (
	"errors"
	"fmt"

	ethtypes "github.com/ethereum/go-ethereum/core/types"

	"vaultguard/pkg/invariants"
	"vaultguard/pkg/logs"
	"vaultguard/pkg/reporter"
	"vaultguard/pkg/types"
)

// Engine evaluates every check registered for an operation, in registration
// order, against one pre/post snapshot pair. First failure wins: evaluation
// stops and the triggering operation must be aborted by the caller.
type Engine struct {
	registry *invariants.Registry
	ext      *logs.Extractor
	rep      *reporter.Reporter
}

// New creates an engine over a registry. The reporter may be nil for
// standalone replay where the caller only wants the error.
func New(registry *invariants.Registry, rep *reporter.Reporter) (*Engine, error) {
	ext, err := logs.NewExtractor()
	if err != nil {
		return nil, fmt.Errorf("build log extractor: %w", err)
	}
	return &Engine{registry: registry, ext: ext, rep: rep}, nil
}

// Evaluate runs the checks triggered by op. A nil return means every
// registered check passed; a non-nil return is the first failure and the
// operation's effects must be discarded.
func (e *Engine) Evaluate(op types.Operation, pre, post *types.Snapshot, lgs []ethtypes.Log, now uint64) error {
	if post.Timestamp < pre.Timestamp {
		return fmt.Errorf("post snapshot (t=%d) precedes pre snapshot (t=%d)", post.Timestamp, pre.Timestamp)
	}
	ctx := invariants.NewContext(e.ext, op, pre, post, lgs, now)

	if e.rep != nil {
		e.rep.RecordOperation(op)
	}
	for _, check := range e.registry.For(op) {
		if err := check.Evaluate(ctx); err != nil {
			e.record(op, check, err)
			return err
		}
	}
	return nil
}

// EvaluateCheck runs one check by name against the given inputs, for
// offline backtesting against recorded history.
func (e *Engine) EvaluateCheck(name string, op types.Operation, pre, post *types.Snapshot, lgs []ethtypes.Log, now uint64) error {
	check, ok := e.registry.Lookup(name)
	if !ok {
		return fmt.Errorf("unknown check %q", name)
	}
	ctx := invariants.NewContext(e.ext, op, pre, post, lgs, now)
	if err := check.Evaluate(ctx); err != nil {
		e.record(op, check, err)
		return err
	}
	return nil
}

func (e *Engine) record(op types.Operation, check invariants.Check, err error) {
	if e.rep == nil {
		return
	}
	var v *types.Violation
	if errors.As(err, &v) {
		e.rep.RecordViolation(*v)
		return
	}
	// Decode and modeling failures abort just as violations do; report them
	// at the failing check's severity.
	e.rep.RecordViolation(types.Violation{
		Check:     check.Name(),
		Operation: op,
		Severity:  check.Severity(),
		Reason:    err.Error(),
	})
}
