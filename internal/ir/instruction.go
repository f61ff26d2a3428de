package ir

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Op classifies an instruction. The set is open: front ends may produce any
// mnemonic for ordinary instructions, and the passes only care about the
// distinguished opcodes below.
type Op string

// Distinguished opcodes. The terminator group determines control transfer
// out of a block; OpCall and OpAsm are what the instrumentors insert.
const (
	OpCall Op = "call"
	OpAsm  Op = "asm"

	OpRet         Op = "ret"
	OpJump        Op = "jump"
	OpIf          Op = "if"
	OpPanic       Op = "panic"
	OpUnreachable Op = "unreachable"
)

// IsTerminator reports whether the opcode ends a basic block.
func (op Op) IsTerminator() bool {
	switch op {
	case OpRet, OpJump, OpIf, OpPanic, OpUnreachable:
		return true
	}
	return false
}

// Instruction is a single IR instruction.
//
// Only the fields relevant to its opcode are populated: Callee/Args for
// OpCall, Asm/Constraints/SideEffect for OpAsm. Ordinary instructions carry
// just their opcode (and whatever mnemonic the front end chose for it).
//
// Instructions carry a typed metadata side channel keyed by string. The
// labeler uses it to attach block ids to terminators; the instrumentors
// read it back. Values are uint64, so there is no string round-trip and no
// parse-failure path on the read side.
type Instruction struct {
	Op Op

	// Callee is the target symbol name for OpCall instructions.
	Callee string

	// Args holds the materialized integer constant arguments for OpCall.
	// The hook ABI only ever passes u64 constants, so no other operand
	// kind is modeled.
	Args []uint64

	// Asm is the inline assembly template for OpAsm instructions.
	Asm string

	// Constraints is the inline assembly constraint string for OpAsm.
	Constraints string

	// SideEffect marks an OpAsm instruction as having side effects, which
	// prevents later optimization from discarding it.
	SideEffect bool

	meta map[string]uint64
}

// NewInstr creates an ordinary instruction with the given opcode.
func NewInstr(op Op) *Instruction {
	return &Instruction{Op: op}
}

// NewCall creates a call instruction to the named symbol with the given
// integer constant arguments.
func NewCall(callee string, args ...uint64) *Instruction {
	return &Instruction{Op: OpCall, Callee: callee, Args: args}
}

// NewAsm creates an inline assembly instruction.
func NewAsm(template, constraints string, sideEffect bool) *Instruction {
	return &Instruction{
		Op:          OpAsm,
		Asm:         template,
		Constraints: constraints,
		SideEffect:  sideEffect,
	}
}

// SetMetaUint attaches a typed uint64 annotation under key. There is at
// most one value per key; a second attach overwrites the first.
func (in *Instruction) SetMetaUint(key string, v uint64) {
	if in.meta == nil {
		in.meta = make(map[string]uint64, 1)
	}
	in.meta[key] = v
}

// MetaUint reads the annotation under key. The second result reports
// whether the annotation is present.
func (in *Instruction) MetaUint(key string) (uint64, bool) {
	v, ok := in.meta[key]
	return v, ok
}

// ClearMeta removes the annotation under key, if any.
func (in *Instruction) ClearMeta(key string) {
	delete(in.meta, key)
}

// String renders the instruction in the textual dump form.
func (in *Instruction) String() string {
	var sb strings.Builder
	switch in.Op {
	case OpCall:
		sb.WriteString("call ")
		sb.WriteString(in.Callee)
		sb.WriteByte('(')
		for i, a := range in.Args {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(strconv.FormatUint(a, 10))
		}
		sb.WriteByte(')')
	case OpAsm:
		fmt.Fprintf(&sb, "asm sideeffect %q, %q", in.Asm, in.Constraints)
	default:
		sb.WriteString(string(in.Op))
	}
	if len(in.meta) > 0 {
		keys := make([]string, 0, len(in.meta))
		for key := range in.meta {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			// Printed in the original metadata form for continuity with
			// external tooling that greps dumps.
			fmt.Fprintf(&sb, ", !%s !{%q}", key, strconv.FormatUint(in.meta[key], 10))
		}
	}
	return sb.String()
}
