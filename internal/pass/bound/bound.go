// Package bound implements the phase-boundary instrumentor pass.
//
// The pass demarcates the region of interest: it locates up to three
// marker basic blocks (warmup, start, end) by the ids the labeler
// attached, and arms each one with an action inserted immediately before
// the block's terminator. In Call mode the action is a zero-argument call
// to the marker's runtime hook; in LabelOnly mode it is an inert,
// side-effecting inline-asm label used for binary-level verification after
// codegen. In both modes one nugget_bound_init call carrying the three
// required execution counts is inserted at the ROI entry point.
//
// The warmup marker is optional: a required count of zero disables it
// entirely, waives its hook symbol, and reports zero as the first init
// argument. Start and end are always required.
//
// Marker matching is two-phase. One read-only traversal resolves every
// enabled marker to its block (stopping early once all are matched), and
// only then does a second step perform the insertions. This keeps the work
// list immutable while the module is being walked, and it means structural
// and marker-resolution failures surface before anything is mutated.
package bound

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/sarchlab/nugget/internal/ir"
	"github.com/sarchlab/nugget/internal/pass"
	"github.com/sarchlab/nugget/internal/pass/param"
)

// PassName is the pipeline element name of the boundary instrumentor.
const PassName = "phase-bound-pass"

// OptionSchema declares the instrumentor's options. The six marker options
// are required; label_only defaults to false (Call mode).
func OptionSchema() param.Schema {
	return param.Schema{
		{Name: "warmup_marker_bb_id", Default: ""},
		{Name: "warmup_marker_count", Default: ""},
		{Name: "start_marker_bb_id", Default: ""},
		{Name: "start_marker_count", Default: ""},
		{Name: "end_marker_bb_id", Default: ""},
		{Name: "end_marker_count", Default: ""},
		{Name: "label_only", Default: "false"},
	}
}

// Role identifies which phase transition a marker drives.
type Role int

// The three marker roles.
const (
	RoleWarmup Role = iota
	RoleStart
	RoleEnd
)

func (r Role) String() string {
	switch r {
	case RoleWarmup:
		return "warmup"
	case RoleStart:
		return "start"
	case RoleEnd:
		return "end"
	}
	return fmt.Sprintf("Role(%d)", int(r))
}

// Hook returns the runtime hook symbol called for this role in Call mode.
func (r Role) Hook() string {
	switch r {
	case RoleWarmup:
		return pass.HookWarmupMarker
	case RoleStart:
		return pass.HookStartMarker
	case RoleEnd:
		return pass.HookEndMarker
	}
	return ""
}

// Label returns the inline-asm label emitted for this role in LabelOnly
// mode. The trailing newline keeps the label on its own assembly line.
func (r Role) Label() string {
	switch r {
	case RoleWarmup:
		return "nugget_warmup_marker:\n"
	case RoleStart:
		return "nugget_start_marker:\n"
	case RoleEnd:
		return "nugget_end_marker:\n"
	}
	return ""
}

// MarkerSpec designates one marker: the target block id and the number of
// times the block must execute before the transition fires. Specs come
// from external configuration; the pass only consumes them.
type MarkerSpec struct {
	Role    Role
	BlockID uint64
	Count   uint64
}

// Mode selects the action inserted at each marker block.
type Mode int

const (
	// ModeCall inserts a zero-argument call to the role's hook function.
	ModeCall Mode = iota

	// ModeLabelOnly inserts an inert labeled assembly marker with a memory
	// clobber so optimization cannot discard it. Used to verify marker
	// placement in the final binary; no hook symbols are required.
	ModeLabelOnly
)

// DuplicateMarkerError reports two enabled marker roles configured with the
// same target block id. The runtime cannot tell which transition such a
// block should fire, so the configuration is rejected before any traversal
// or mutation.
type DuplicateMarkerError struct {
	BlockID uint64
	Roles   [2]Role
}

func (e *DuplicateMarkerError) Error() string {
	return fmt.Sprintf("markers %s and %s share target basic block id %d",
		e.Roles[0], e.Roles[1], e.BlockID)
}

// MarkerNotFoundError reports markers whose block ids were never observed
// during the traversal. Reported after the traversal completes, before any
// mutation.
type MarkerNotFoundError struct {
	Missing []MarkerSpec
}

func (e *MarkerNotFoundError) Error() string {
	parts := make([]string, len(e.Missing))
	for i, spec := range e.Missing {
		parts[i] = fmt.Sprintf("%s(bb_id=%d)", spec.Role, spec.BlockID)
	}
	sort.Strings(parts)
	return "marker basic blocks not found: " + strings.Join(parts, ", ")
}

// Instrumentor inserts the boundary marker actions and the bound init
// call. Like the interval instrumentor it only reads the labeler's
// annotations.
type Instrumentor struct {
	warmup   *MarkerSpec // nil when the warmup marker is disabled
	start    MarkerSpec
	end      MarkerSpec
	mode     Mode
	reserved pass.ReservedFuncs
	log      zerolog.Logger
}

// New creates a boundary instrumentor. A nil warmup spec, or one with a
// required count of zero, disables the warmup marker.
func New(warmup *MarkerSpec, start, end MarkerSpec, mode Mode, reserved pass.ReservedFuncs, log zerolog.Logger) *Instrumentor {
	if warmup != nil && warmup.Count == 0 {
		warmup = nil
	}
	start.Role = RoleStart
	end.Role = RoleEnd
	if warmup != nil {
		w := *warmup
		w.Role = RoleWarmup
		warmup = &w
	}
	return &Instrumentor{
		warmup:   warmup,
		start:    start,
		end:      end,
		mode:     mode,
		reserved: reserved,
		log:      log,
	}
}

// Run validates the marker configuration, resolves every enabled marker to
// its block in one read-only traversal, then inserts the marker actions
// and the nugget_bound_init call.
//
// Failure ordering: duplicate marker ids and missing hook or entry-point
// symbols are rejected first; an unresolved marker after the traversal is
// a fatal marker-resolution error. All of these surface before the module
// is mutated.
func (p *Instrumentor) Run(m *ir.Module) error {
	pending := []MarkerSpec{p.start, p.end}
	if p.warmup != nil {
		pending = append(pending, *p.warmup)
	}

	if err := checkDuplicates(pending); err != nil {
		return err
	}
	if p.mode == ModeCall {
		for _, spec := range pending {
			if m.Func(spec.Role.Hook()) == nil {
				return &pass.MissingSymbolError{Symbol: spec.Role.Hook()}
			}
		}
	}
	if err := pass.CheckROIInit(m, pass.HookBoundInit); err != nil {
		return fmt.Errorf("instrumenting %s: %w", pass.ROIBegin, err)
	}

	matches, err := p.resolve(m, pending)
	if err != nil {
		return err
	}

	for _, mt := range matches {
		mt.block.InsertBefore(p.action(mt.spec.Role), mt.term)
		p.log.Debug().
			Stringer("role", mt.spec.Role).
			Uint64("bb_id", mt.spec.BlockID).
			Msg("inserted boundary marker")
	}

	var warmupCount uint64
	if p.warmup != nil {
		warmupCount = p.warmup.Count
	}
	if err := pass.InsertROIInit(m, pass.HookBoundInit, warmupCount, p.start.Count, p.end.Count); err != nil {
		return fmt.Errorf("instrumenting %s: %w", pass.ROIBegin, err)
	}
	return nil
}

// match pairs a resolved marker with its block and terminator.
type match struct {
	spec  MarkerSpec
	block *ir.Block
	term  *ir.Instruction
}

// resolve walks the module under the standard eligibility rules and pairs
// every pending marker with the block carrying its id. The traversal stops
// early once all markers are matched; blocks without the id annotation are
// skipped with a warning, since they may have been deliberately excluded
// upstream. Markers still pending when the traversal completes yield a
// MarkerNotFoundError.
func (p *Instrumentor) resolve(m *ir.Module, pending []MarkerSpec) ([]match, error) {
	matches := make([]match, 0, len(pending))
	matched := make(map[Role]bool, len(pending))

traversal:
	for _, f := range m.Funcs {
		if !pass.Eligible(f, p.reserved) {
			continue
		}
		for _, b := range f.Blocks {
			term := b.Terminator()
			if term == nil {
				p.log.Warn().
					Str("function", f.Name).
					Str("block", b.Name).
					Msg("basic block has no terminator, skipping")
				continue
			}
			bbID, ok := term.MetaUint(pass.BlockIDKey)
			if !ok {
				p.log.Warn().
					Str("function", f.Name).
					Str("block", b.Name).
					Msg("basic block is missing bb.id metadata, skipping")
				continue
			}
			for _, spec := range pending {
				if spec.BlockID != bbID || matched[spec.Role] {
					continue
				}
				matched[spec.Role] = true
				matches = append(matches, match{spec: spec, block: b, term: term})
			}
			if len(matches) == len(pending) {
				break traversal
			}
		}
	}

	if len(matches) != len(pending) {
		var missing []MarkerSpec
		for _, spec := range pending {
			if !matched[spec.Role] {
				missing = append(missing, spec)
			}
		}
		return nil, &MarkerNotFoundError{Missing: missing}
	}
	return matches, nil
}

// action builds the instruction inserted at a marker block for the
// configured mode.
func (p *Instrumentor) action(role Role) *ir.Instruction {
	if p.mode == ModeLabelOnly {
		return ir.NewAsm(role.Label(), "~{memory}", true)
	}
	return ir.NewCall(role.Hook())
}

func checkDuplicates(pending []MarkerSpec) error {
	seen := make(map[uint64]Role, len(pending))
	for _, spec := range pending {
		if prev, dup := seen[spec.BlockID]; dup {
			return &DuplicateMarkerError{
				BlockID: spec.BlockID,
				Roles:   [2]Role{prev, spec.Role},
			}
		}
		seen[spec.BlockID] = spec.Role
	}
	return nil
}
