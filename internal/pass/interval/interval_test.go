package interval

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/sarchlab/nugget/internal/ir"
	"github.com/sarchlab/nugget/internal/pass"
)

// labeledModule builds a module whose three eligible blocks already carry
// block-id annotations, as if the labeler had run, plus the runtime symbols
// the instrumentor requires.
func labeledModule() *ir.Module {
	m := ir.NewModule("test")
	m.AddFunc(ir.NewDeclaration(pass.HookBB))
	m.AddFunc(ir.NewDeclaration(pass.HookIntervalInit))
	m.AddFunc(ir.NewFunction(pass.ROIBegin, ir.NewBlock("", ir.NewInstr(ir.OpRet))))

	f := ir.NewFunction("main.main",
		ir.NewBlock("", ir.NewInstr("binop"), ir.NewInstr(ir.OpIf)),
		ir.NewBlock("if.then.1", ir.NewInstr(ir.OpJump)),
		ir.NewBlock("if.done.2", ir.NewInstr("store"), ir.NewInstr("store"), ir.NewInstr(ir.OpRet)),
	)
	for i, b := range f.Blocks {
		b.Terminator().SetMetaUint(pass.BlockIDKey, uint64(i))
	}
	m.AddFunc(f)
	return m
}

func TestRun(t *testing.T) {
	m := labeledModule()
	inst := New(10000, pass.DefaultReserved(), zerolog.Nop())

	total, err := inst.Run(m)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if total != 3 {
		t.Fatalf("instrumented %d blocks, want 3", total)
	}

	f := m.Func("main.main")
	// Instruction counts captured before the insertion.
	wantArgs := [][3]uint64{
		{2, 0, 10000},
		{1, 1, 10000},
		{3, 2, 10000},
	}
	for i, b := range f.Blocks {
		if len(b.Instrs) != int(wantArgs[i][0])+1 {
			t.Fatalf("block %d has %d instructions, want %d", i, len(b.Instrs), wantArgs[i][0]+1)
		}
		hook := b.Instrs[len(b.Instrs)-2]
		if hook.Op != ir.OpCall || hook.Callee != pass.HookBB {
			t.Fatalf("block %d: instruction before terminator = %v, want call %s", i, hook, pass.HookBB)
		}
		if len(hook.Args) != 3 || [3]uint64{hook.Args[0], hook.Args[1], hook.Args[2]} != wantArgs[i] {
			t.Errorf("block %d: hook args = %v, want %v", i, hook.Args, wantArgs[i])
		}
	}
}

func TestRunInsertsInit(t *testing.T) {
	m := labeledModule()
	inst := New(100000, pass.DefaultReserved(), zerolog.Nop())

	total, err := inst.Run(m)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	roi := m.Func(pass.ROIBegin)
	last := roi.Blocks[len(roi.Blocks)-1]
	initCall := last.Instrs[len(last.Instrs)-2]
	if initCall.Op != ir.OpCall || initCall.Callee != pass.HookIntervalInit {
		t.Fatalf("instruction before entry-point terminator = %v, want call %s",
			initCall, pass.HookIntervalInit)
	}
	if len(initCall.Args) != 1 || initCall.Args[0] != total {
		t.Errorf("init args = %v, want [%d]", initCall.Args, total)
	}
}

func TestRunMissingHook(t *testing.T) {
	m := labeledModule()
	// Rebuild without the hook declaration.
	m2 := ir.NewModule("test")
	for _, f := range m.Funcs {
		if f.Name != pass.HookBB {
			m2.AddFunc(f)
		}
	}
	inst := New(10000, pass.DefaultReserved(), zerolog.Nop())

	_, err := inst.Run(m2)
	var missing *pass.MissingSymbolError
	if !errors.As(err, &missing) {
		t.Fatalf("got %v, want MissingSymbolError", err)
	}
	if missing.Symbol != pass.HookBB {
		t.Errorf("missing symbol = %s, want %s", missing.Symbol, pass.HookBB)
	}
	// Nothing was mutated before the precondition failed.
	for _, b := range m2.Func("main.main").Blocks {
		for _, in := range b.Instrs {
			if in.Op == ir.OpCall && in.Callee == pass.HookBB {
				t.Fatal("hook call inserted despite missing symbol")
			}
		}
	}
}

func TestRunSkipsUnannotatedBlocks(t *testing.T) {
	m := labeledModule()
	f := m.Func("main.main")
	f.Blocks[1].Terminator().ClearMeta(pass.BlockIDKey)

	var buf bytes.Buffer
	inst := New(10000, pass.DefaultReserved(), zerolog.New(&buf))

	total, err := inst.Run(m)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if total != 2 {
		t.Errorf("instrumented %d blocks, want 2", total)
	}
	if len(f.Blocks[1].Instrs) != 1 {
		t.Error("unannotated block was instrumented")
	}
	if !strings.Contains(buf.String(), "missing bb.id metadata") {
		t.Errorf("expected a skip warning, log was:\n%s", buf.String())
	}
}

func TestRunNothingInstrumented(t *testing.T) {
	m := labeledModule()
	for _, b := range m.Func("main.main").Blocks {
		b.Terminator().ClearMeta(pass.BlockIDKey)
	}
	inst := New(10000, pass.DefaultReserved(), zerolog.Nop())

	if _, err := inst.Run(m); err == nil {
		t.Fatal("Run succeeded with zero annotated blocks")
	}
}

func TestRunMissingEntryPoint(t *testing.T) {
	m := labeledModule()
	m2 := ir.NewModule("test")
	for _, f := range m.Funcs {
		if f.Name != pass.ROIBegin {
			m2.AddFunc(f)
		}
	}
	inst := New(10000, pass.DefaultReserved(), zerolog.Nop())

	_, err := inst.Run(m2)
	var missing *pass.MissingSymbolError
	if !errors.As(err, &missing) {
		t.Fatalf("got %v, want MissingSymbolError", err)
	}
	if missing.Symbol != pass.ROIBegin {
		t.Errorf("missing symbol = %s, want %s", missing.Symbol, pass.ROIBegin)
	}
}
