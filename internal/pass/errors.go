package pass

import "fmt"

// The error taxonomy follows the failure categories of the pipeline:
// configuration errors (see the param subpackage) are detected before any
// mutation and are safe to correct and retry; the structural errors here
// void the enclosing compilation attempt. Mutations applied before a
// structural error surfaces are not rolled back.

// MissingSymbolError reports that a required fixed-name function (a hook or
// the ROI entry point) is neither defined nor declared in the module. The
// instrumented program could not link or run without it, so the run aborts.
type MissingSymbolError struct {
	Symbol string
}

func (e *MissingSymbolError) Error() string {
	return fmt.Sprintf("function %s not found in module", e.Symbol)
}

// NoTerminatorError reports a basic block whose last instruction is not a
// terminator. A well-formed producer guarantees one per block, so this
// signals corrupted input, not a recoverable condition.
type NoTerminatorError struct {
	Function string
	Block    string
}

func (e *NoTerminatorError) Error() string {
	return fmt.Sprintf("basic block %q in function %s has no terminator instruction", e.Block, e.Function)
}
