package bblabel

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/sarchlab/nugget/internal/ir"
	"github.com/sarchlab/nugget/internal/pass"
)

// testModule builds a module with two defined functions (3 + 2 blocks), one
// declaration, and one reserved function with a body.
func testModule() *ir.Module {
	m := ir.NewModule("test")
	m.AddFunc(ir.NewDeclaration("fmt.Println"))
	m.AddFunc(ir.NewFunction("main.main",
		ir.NewBlock("", ir.NewInstr("binop"), ir.NewInstr(ir.OpIf)),
		ir.NewBlock("if.then.1", ir.NewInstr(ir.OpJump)),
		ir.NewBlock("if.done.2", ir.NewInstr(ir.OpRet)),
	))
	m.AddFunc(ir.NewFunction(pass.ROIBegin, ir.NewBlock("", ir.NewInstr(ir.OpRet))))
	m.AddFunc(ir.NewFunction("main.work",
		ir.NewBlock("", ir.NewInstr("alloc"), ir.NewInstr("store"), ir.NewInstr(ir.OpJump)),
		ir.NewBlock("loop.1", ir.NewInstr(ir.OpRet)),
	))
	return m
}

func TestRun(t *testing.T) {
	m := testModule()
	labeler := New(pass.DefaultReserved(), zerolog.Nop())

	records, err := labeler.Run(m)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := []Record{
		{FunctionName: "main.main", FunctionID: 0, BlockName: "", InstCount: 2, BlockID: 0},
		{FunctionName: "main.main", FunctionID: 0, BlockName: "if.then.1", InstCount: 1, BlockID: 1},
		{FunctionName: "main.main", FunctionID: 0, BlockName: "if.done.2", InstCount: 1, BlockID: 2},
		{FunctionName: "main.work", FunctionID: 1, BlockName: "", InstCount: 3, BlockID: 3},
		{FunctionName: "main.work", FunctionID: 1, BlockName: "loop.1", InstCount: 1, BlockID: 4},
	}
	if len(records) != len(want) {
		t.Fatalf("got %d records, want %d", len(records), len(want))
	}
	for i, w := range want {
		if records[i] != w {
			t.Errorf("records[%d] = %+v, want %+v", i, records[i], w)
		}
	}
}

func TestRunAnnotatesTerminators(t *testing.T) {
	m := testModule()
	labeler := New(pass.DefaultReserved(), zerolog.Nop())

	records, err := labeler.Run(m)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	i := 0
	for _, f := range m.Funcs {
		if !pass.Eligible(f, pass.DefaultReserved()) {
			continue
		}
		for _, b := range f.Blocks {
			id, ok := b.Terminator().MetaUint(pass.BlockIDKey)
			if !ok {
				t.Fatalf("%s/%s: terminator has no %s annotation", f.Name, b.Name, pass.BlockIDKey)
			}
			if id != records[i].BlockID {
				t.Errorf("%s/%s: annotation = %d, record = %d", f.Name, b.Name, id, records[i].BlockID)
			}
			// Only the terminator carries the annotation.
			for _, in := range b.Instrs[:len(b.Instrs)-1] {
				if _, ok := in.MetaUint(pass.BlockIDKey); ok {
					t.Errorf("%s/%s: non-terminator instruction annotated", f.Name, b.Name)
				}
			}
			i++
		}
	}
}

func TestRunSkipsIneligible(t *testing.T) {
	m := testModule()
	labeler := New(pass.DefaultReserved(), zerolog.Nop())

	records, err := labeler.Run(m)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	for _, r := range records {
		if r.FunctionName == "fmt.Println" || r.FunctionName == pass.ROIBegin {
			t.Errorf("ineligible function %s was labeled", r.FunctionName)
		}
	}

	roi := m.Func(pass.ROIBegin)
	if _, ok := roi.Blocks[0].Terminator().MetaUint(pass.BlockIDKey); ok {
		t.Error("reserved function block was annotated")
	}
}

func TestRunMissingTerminator(t *testing.T) {
	m := ir.NewModule("test")
	m.AddFunc(ir.NewFunction("main.broken",
		ir.NewBlock("", ir.NewInstr("store")),
	))
	labeler := New(pass.DefaultReserved(), zerolog.Nop())

	_, err := labeler.Run(m)
	var noTerm *pass.NoTerminatorError
	if !errors.As(err, &noTerm) {
		t.Fatalf("got %v, want NoTerminatorError", err)
	}
	if noTerm.Function != "main.broken" {
		t.Errorf("error names function %s, want main.broken", noTerm.Function)
	}
}

func TestRunIsDeterministic(t *testing.T) {
	labeler := New(pass.DefaultReserved(), zerolog.Nop())

	first, err := labeler.Run(testModule())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	second, err := labeler.Run(testModule())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(first) != len(second) {
		t.Fatalf("record counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("records[%d] differ: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestOptionSchema(t *testing.T) {
	schema := OptionSchema()
	if len(schema) != 1 || schema[0].Name != "output_csv" || schema[0].Default == "" {
		t.Errorf("unexpected schema: %+v", schema)
	}
}
