// Package interval implements the phase-interval instrumentor pass.
//
// The pass consumes the block ids attached by the labeler and arms every
// eligible block for periodic execution sampling: a call to the
// nugget_bb_hook runtime function is inserted immediately before each
// annotated terminator, carrying the block's instruction count, its id and
// the caller-supplied sampling threshold. One nugget_interval_init call
// with the total instrumented block count is appended to the ROI entry
// point so the runtime can size its phase vectors.
package interval

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/sarchlab/nugget/internal/ir"
	"github.com/sarchlab/nugget/internal/pass"
	"github.com/sarchlab/nugget/internal/pass/param"
)

// PassName is the pipeline element name of the interval instrumentor.
const PassName = "phase-analysis-pass"

// OptionSchema declares the instrumentor's options. interval_length is the
// sampling threshold in executed IR instructions and has no default: the
// caller must always choose one.
func OptionSchema() param.Schema {
	return param.Schema{
		{Name: "interval_length", Default: ""},
	}
}

// Instrumentor inserts the interval sampling hooks. It reads the labeler's
// annotations and never writes them; any number of instrumentor runs after
// one labeler run observe the same ids.
type Instrumentor struct {
	threshold uint64
	reserved  pass.ReservedFuncs
	log       zerolog.Logger
}

// New creates an interval instrumentor with the given sampling threshold.
func New(threshold uint64, reserved pass.ReservedFuncs, log zerolog.Logger) *Instrumentor {
	return &Instrumentor{threshold: threshold, reserved: reserved, log: log}
}

// Run instruments the module in one traversal and returns the number of
// blocks instrumented.
//
// Preconditions: the nugget_bb_hook symbol must exist in the module as a
// definition or declaration; the instrumented program cannot work without
// it, so its absence aborts before anything is mutated.
//
// Per block: the traversal applies the same eligibility rule as the
// labeler. A block whose terminator lacks the id annotation is skipped
// with a warning rather than aborting the run, because blocks may have
// been deliberately excluded upstream. For every annotated block a
//
//	call nugget_bb_hook(inst_count, bb_id, threshold)
//
// is inserted immediately before the terminator, with the instruction
// count captured before the insertion.
//
// After the traversal one nugget_interval_init(total) call is inserted at
// the end of the nugget_roi_begin_ body. A missing entry point or init
// symbol at that stage is fatal; the hook calls already inserted are not
// rolled back, since a failed compilation attempt is discarded wholesale.
func (p *Instrumentor) Run(m *ir.Module) (uint64, error) {
	if m.Func(pass.HookBB) == nil {
		return 0, &pass.MissingSymbolError{Symbol: pass.HookBB}
	}

	var total uint64
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

			instCount := uint64(len(b.Instrs))
			b.InsertBefore(ir.NewCall(pass.HookBB, instCount, bbID, p.threshold), term)
			total++
		}
	}

	if total == 0 {
		return 0, fmt.Errorf("no basic blocks were instrumented; was ir-bb-label-pass run first?")
	}

	if err := pass.InsertROIInit(m, pass.HookIntervalInit, total); err != nil {
		return 0, fmt.Errorf("instrumenting %s: %w", pass.ROIBegin, err)
	}

	p.log.Debug().
		Uint64("blocks", total).
		Uint64("interval_length", p.threshold).
		Msg("inserted interval sampling hooks")
	return total, nil
}
