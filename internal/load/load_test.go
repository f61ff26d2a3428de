package load

import (
	"testing"

	"github.com/sarchlab/nugget/internal/ir"
	"github.com/sarchlab/nugget/internal/pass"
)

func TestAddRuntimeStubs(t *testing.T) {
	m := ir.NewModule("test")
	AddRuntimeStubs(m)

	declared := []string{
		pass.HookBB,
		pass.HookIntervalInit,
		pass.HookBoundInit,
		pass.HookWarmupMarker,
		pass.HookStartMarker,
		pass.HookEndMarker,
	}
	for _, name := range declared {
		f := m.Func(name)
		if f == nil {
			t.Errorf("stub %s not added", name)
			continue
		}
		if !f.IsDeclaration() {
			t.Errorf("hook stub %s has a body", name)
		}
	}

	for _, name := range []string{pass.ROIBegin, pass.ROIEnd} {
		f := m.Func(name)
		if f == nil {
			t.Errorf("stub %s not added", name)
			continue
		}
		if f.IsDeclaration() {
			t.Errorf("entry-point stub %s has no body", name)
		}
		if f.Blocks[len(f.Blocks)-1].Terminator() == nil {
			t.Errorf("entry-point stub %s body has no terminator", name)
		}
	}
}

func TestAddRuntimeStubsKeepsExisting(t *testing.T) {
	m := ir.NewModule("test")
	existing := m.AddFunc(ir.NewFunction(pass.ROIBegin,
		ir.NewBlock("", ir.NewInstr("store"), ir.NewInstr(ir.OpRet)),
	))

	AddRuntimeStubs(m)

	if m.Func(pass.ROIBegin) != existing {
		t.Error("existing entry point was replaced by a stub")
	}
	if len(m.Func(pass.ROIBegin).Blocks[0].Instrs) != 2 {
		t.Error("existing entry point body was modified")
	}
}
