// Package pass holds the infrastructure shared by the nugget instrumentation
// passes: the runtime hook ABI names, the reserved-function denylist, the
// block eligibility rule, the ROI entry-point insertion helper, and the
// structural error types.
//
// The passes themselves live in the subpackages bblabel, interval and bound;
// param implements the shared parameter grammar and pipeline the
// parameterized-name dispatch.
package pass

import (
	"fmt"

	"github.com/sarchlab/nugget/internal/ir"
)

// BlockIDKey is the metadata key under which the labeler attaches a block's
// globally unique id to the block's terminator instruction.
const BlockIDKey = "bb.id"

// Runtime hook ABI. These are the fixed names of the externally defined
// functions the passes insert calls to. The runtime library provides their
// implementations; the passes only require the symbols to be present in the
// module as definitions or declarations.
const (
	// HookBB is called before every eligible terminator by the interval
	// instrumentor: nugget_bb_hook(inst_count, bb_id, threshold).
	HookBB = "nugget_bb_hook"

	// HookIntervalInit is called once from the ROI entry point with the
	// total number of instrumented blocks.
	HookIntervalInit = "nugget_interval_init"

	// HookBoundInit is called once from the ROI entry point with the
	// warmup, start and end marker counts.
	HookBoundInit = "nugget_bound_init"

	// Marker hooks, called with no arguments when the corresponding marker
	// block executes.
	HookWarmupMarker = "nugget_warmup_marker_hook"
	HookStartMarker  = "nugget_start_marker_hook"
	HookEndMarker    = "nugget_end_marker_hook"

	// ROIBegin is the entry-point function whose body receives the
	// one-time *_init calls. ROIEnd closes the region of interest; the
	// passes never touch it but it belongs to the reserved set.
	ROIBegin = "nugget_roi_begin_"
	ROIEnd   = "nugget_roi_end_"
)

// ReservedFuncs is the set of runtime helper function names whose bodies
// must never be labeled or instrumented. It is threaded explicitly into
// every pass rather than consulted as package state, so the core stays
// reusable across runtime-hook naming schemes.
type ReservedFuncs map[string]struct{}

// DefaultReserved returns the reserved set for the nugget runtime: the hook
// functions, the init functions and the ROI entry points. Instrumenting any
// of these would recurse the runtime into itself.
func DefaultReserved() ReservedFuncs {
	return NewReserved(
		HookBB,
		HookIntervalInit,
		HookBoundInit,
		HookWarmupMarker,
		HookStartMarker,
		HookEndMarker,
		ROIBegin,
		ROIEnd,
	)
}

// NewReserved builds a reserved set from explicit names.
func NewReserved(names ...string) ReservedFuncs {
	r := make(ReservedFuncs, len(names))
	for _, n := range names {
		r[n] = struct{}{}
	}
	return r
}

// Contains reports whether name is reserved. A nil set reserves nothing.
func (r ReservedFuncs) Contains(name string) bool {
	_, ok := r[name]
	return ok
}

// Eligible reports whether a function's blocks participate in labeling and
// instrumentation: the function must have a body and must not be reserved.
func Eligible(f *ir.Function, reserved ReservedFuncs) bool {
	return !f.IsDeclaration() && !reserved.Contains(f.Name)
}

// CheckROIInit verifies the structural preconditions of InsertROIInit
// without mutating anything: the init hook symbol exists, the ROI entry
// point exists with a body, and the body's last block has a terminator.
// Passes that want to surface structural failures before their own
// mutations call this up front.
func CheckROIInit(m *ir.Module, initHook string) error {
	if m.Func(initHook) == nil {
		return &MissingSymbolError{Symbol: initHook}
	}
	roi := m.Func(ROIBegin)
	if roi == nil {
		return &MissingSymbolError{Symbol: ROIBegin}
	}
	if roi.IsDeclaration() {
		return fmt.Errorf("entry point %s is a declaration, cannot insert %s call", ROIBegin, initHook)
	}
	last := roi.Blocks[len(roi.Blocks)-1]
	if last.Terminator() == nil {
		return &NoTerminatorError{Function: roi.Name, Block: last.Name}
	}
	return nil
}

// InsertROIInit inserts a call to the named init hook at the end of the ROI
// entry-point function's body, immediately before the terminator of its
// last block. Both the init hook symbol and the entry point must exist, and
// the entry point must have a well-formed body; any violation is a
// structural error and the module is left unchanged.
func InsertROIInit(m *ir.Module, initHook string, args ...uint64) error {
	if err := CheckROIInit(m, initHook); err != nil {
		return err
	}
	roi := m.Func(ROIBegin)
	last := roi.Blocks[len(roi.Blocks)-1]
	last.InsertBefore(ir.NewCall(initHook, args...), last.Terminator())
	return nil
}
