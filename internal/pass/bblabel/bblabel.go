// Package bblabel implements the basic-block labeler pass.
//
// The labeler establishes the identity contract every later pass depends
// on: one traversal of the module assigns a globally unique, monotonically
// increasing id to every eligible basic block and attaches it as a typed
// annotation on the block's terminator. The instrumentor passes read those
// annotations back; they never run correctly on an unlabeled module.
//
// Alongside the annotations the labeler produces an ordered record per
// block (function name, function ordinal, block name, instruction count,
// block id) for export to external analysis tooling. Serialization is a
// boundary concern: the pass hands the records to a RecordWriter and never
// touches the encoding.
package bblabel

import (
	"github.com/rs/zerolog"

	"github.com/sarchlab/nugget/internal/ir"
	"github.com/sarchlab/nugget/internal/pass"
	"github.com/sarchlab/nugget/internal/pass/param"
)

// PassName is the pipeline element name of the labeler.
const PassName = "ir-bb-label-pass"

// OptionSchema declares the labeler's options: the CSV output path, with a
// non-empty default so the bare pass name is valid.
func OptionSchema() param.Schema {
	return param.Schema{
		{Name: "output_csv", Default: "bb_info.csv"},
	}
}

// Record describes one labeled basic block. Records are created once
// during the traversal and never mutated afterwards; the ordered list is
// the labeler's export artifact.
type Record struct {
	FunctionName string
	FunctionID   uint64
	BlockName    string
	InstCount    uint64
	BlockID      uint64
}

// RecordWriter is the export boundary for the record list. The CLI backs
// it with a CSV encoder; tests back it with an in-memory collector.
type RecordWriter interface {
	Write(path string, records []Record) error
}

// Labeler runs the labeling traversal. Zero state is carried between runs:
// both counters live on the stack of Run, so every invocation is
// independently deterministic. Re-running the labeler on an already
// labeled module reassigns all ids.
type Labeler struct {
	reserved pass.ReservedFuncs
	log      zerolog.Logger
}

// New creates a labeler. The reserved set is the externally supplied
// denylist of runtime helper functions whose blocks must not be labeled.
func New(reserved pass.ReservedFuncs, log zerolog.Logger) *Labeler {
	return &Labeler{reserved: reserved, log: log}
}

// Run traverses the module once, annotating every eligible block's
// terminator with the next global block id and collecting a Record per
// block.
//
// Traversal order fixes the ids: functions in module order, blocks within
// a function in body order. Declarations and reserved functions are
// skipped without advancing either counter; the function ordinal advances
// once per eligible function, the block counter advances once per eligible
// block and never resets at function boundaries.
//
// A block without a terminator is a structural error: every well-formed
// producer guarantees one, so its absence means the input is corrupted and
// the run aborts.
func (l *Labeler) Run(m *ir.Module) ([]Record, error) {
	var (
		functionID uint64
		blockID    uint64
		records    []Record
	)

	for _, f := range m.Funcs {
		if !pass.Eligible(f, l.reserved) {
			continue
		}
		for _, b := range f.Blocks {
			term := b.Terminator()
			if term == nil {
				return nil, &pass.NoTerminatorError{Function: f.Name, Block: b.Name}
			}

			id := blockID
			blockID++
			term.SetMetaUint(pass.BlockIDKey, id)

			records = append(records, Record{
				FunctionName: f.Name,
				FunctionID:   functionID,
				BlockName:    b.Name,
				InstCount:    uint64(len(b.Instrs)),
				BlockID:      id,
			})
		}
		functionID++
	}

	l.log.Debug().
		Uint64("functions", functionID).
		Uint64("blocks", blockID).
		Msg("labeled basic blocks")
	return records, nil
}
