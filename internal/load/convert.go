package load

import (
	"fmt"
	"go/types"
	"sort"
	"strings"

	"golang.org/x/tools/go/ssa"

	"github.com/sarchlab/nugget/internal/ir"
)

// FromPackages converts the SSA form of the given packages into an
// ir.Module the passes can traverse and mutate. The SSA program must
// already be built.
//
// Function order is deterministic: packages by import path, then package
// members by name, with each function followed by its anonymous functions
// and each named type by its methods. Within a function, SSA block order
// and instruction order carry over unchanged, so labeling the same program
// twice yields the same ids.
//
// Block naming follows the convention of the CSV export: the entry block
// has an empty name, every other block is named from its SSA comment and
// index (for example "if.then.2").
func FromPackages(prog *ssa.Program, pkgs []*ssa.Package, name string) *ir.Module {
	m := ir.NewModule(name)

	sorted := make([]*ssa.Package, 0, len(pkgs))
	for _, p := range pkgs {
		if p != nil {
			sorted = append(sorted, p)
		}
	}
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Pkg.Path() < sorted[j].Pkg.Path()
	})

	seen := make(map[*ssa.Function]bool)
	for _, p := range sorted {
		for _, fn := range packageFunctions(prog, p) {
			addFunction(m, fn, seen)
		}
	}
	return m
}

// packageFunctions collects the package's functions in member-name order:
// plain functions first as declared, then the methods of each named type.
func packageFunctions(prog *ssa.Program, p *ssa.Package) []*ssa.Function {
	names := make([]string, 0, len(p.Members))
	for name := range p.Members {
		names = append(names, name)
	}
	sort.Strings(names)

	var fns []*ssa.Function
	for _, name := range names {
		switch mem := p.Members[name].(type) {
		case *ssa.Function:
			fns = append(fns, mem)
		case *ssa.Type:
			fns = append(fns, typeMethods(prog, mem)...)
		}
	}
	return fns
}

// typeMethods returns the concrete methods of a named type, value and
// pointer receivers both, in method-set order. Abstract (interface)
// methods have no function and are skipped.
func typeMethods(prog *ssa.Program, t *ssa.Type) []*ssa.Function {
	var fns []*ssa.Function
	for _, typ := range []types.Type{t.Type(), types.NewPointer(t.Type())} {
		mset := prog.MethodSets.MethodSet(typ)
		for i := 0; i < mset.Len(); i++ {
			if fn := prog.MethodValue(mset.At(i)); fn != nil {
				fns = append(fns, fn)
			}
		}
	}
	return fns
}

// addFunction converts fn and, recursively, its anonymous functions.
func addFunction(m *ir.Module, fn *ssa.Function, seen map[*ssa.Function]bool) {
	if seen[fn] {
		return
	}
	seen[fn] = true

	m.AddFunc(convertFunction(fn))
	for _, anon := range fn.AnonFuncs {
		addFunction(m, anon, seen)
	}
}

// convertFunction maps one SSA function. A function without SSA blocks
// (external or intrinsic) becomes a declaration.
func convertFunction(fn *ssa.Function) *ir.Function {
	if fn.Blocks == nil {
		return ir.NewDeclaration(fn.String())
	}

	f := ir.NewFunction(fn.String())
	for _, b := range fn.Blocks {
		block := ir.NewBlock(blockName(b))
		for _, instr := range b.Instrs {
			block.Append(convertInstr(instr))
		}
		f.AddBlock(block)
	}
	return f
}

func blockName(b *ssa.BasicBlock) string {
	if b.Index == 0 {
		return ""
	}
	comment := b.Comment
	if comment == "" {
		comment = "bb"
	}
	return fmt.Sprintf("%s.%d", comment, b.Index)
}

// convertInstr maps one SSA instruction to its IR counterpart. SSA
// guarantees every block ends in a Return, Jump, If or Panic, which map
// to the IR terminator opcodes; calls keep their static callee name so
// dumps stay readable; everything else becomes an ordinary instruction
// named after its SSA kind.
func convertInstr(instr ssa.Instruction) *ir.Instruction {
	switch v := instr.(type) {
	case *ssa.Return:
		return ir.NewInstr(ir.OpRet)
	case *ssa.Jump:
		return ir.NewInstr(ir.OpJump)
	case *ssa.If:
		return ir.NewInstr(ir.OpIf)
	case *ssa.Panic:
		return ir.NewInstr(ir.OpPanic)
	case *ssa.Call:
		in := ir.NewInstr(ir.OpCall)
		if callee := v.Common().StaticCallee(); callee != nil {
			in.Callee = callee.String()
		} else if builtin, ok := v.Common().Value.(*ssa.Builtin); ok {
			in.Callee = builtin.Name()
		}
		return in
	default:
		return ir.NewInstr(opFor(instr))
	}
}

// opFor derives an opcode mnemonic from the SSA instruction kind, e.g.
// *ssa.BinOp -> "binop".
func opFor(instr ssa.Instruction) ir.Op {
	name := fmt.Sprintf("%T", instr)
	name = strings.TrimPrefix(name, "*ssa.")
	return ir.Op(strings.ToLower(name))
}
