// Package ir holds the in-memory program representation the nugget passes
// operate on: a module of functions, each function a sequence of basic
// blocks, each block a sequence of instructions ending in one terminator.
//
// The representation is deliberately small. It models exactly the surface
// the passes need from a host compiler IR:
//   - enumerate functions, blocks and instructions in declaration order
//   - look up a function by exact name
//   - test whether a function is a pure declaration (no body)
//   - read and attach a typed annotation on an instruction
//   - insert a new instruction before a given instruction
//   - materialize integer constants as call arguments
//
// Everything else a real compiler IR carries (values, types, use lists) is
// out of scope for the passes and is not represented.
package ir

// Module is an ordered collection of functions.
//
// Function order is declaration order and is significant: the labeler
// assigns ids in module iteration order, and the instrumentors rely on
// observing blocks in the same order.
type Module struct {
	// Name identifies the module in diagnostics and dumps. Typically the
	// package or module path of the program it was built from.
	Name string

	// Funcs lists the functions in declaration order.
	Funcs []*Function

	byName map[string]*Function
}

// NewModule creates an empty module.
func NewModule(name string) *Module {
	return &Module{
		Name:   name,
		byName: make(map[string]*Function),
	}
}

// AddFunc appends a function to the module. Later additions shadow earlier
// ones in name lookup, matching how a linker would resolve the symbol.
func (m *Module) AddFunc(f *Function) *Function {
	m.Funcs = append(m.Funcs, f)
	if m.byName == nil {
		m.byName = make(map[string]*Function)
	}
	m.byName[f.Name] = f
	return f
}

// Func returns the function with the exact given name, or nil when the
// module defines or declares no such symbol.
func (m *Module) Func(name string) *Function {
	return m.byName[name]
}

// Function is a named sequence of basic blocks. A function with no blocks
// is a pure declaration: an external symbol the module references but does
// not define.
type Function struct {
	// Name is the symbol name, unique within the module.
	Name string

	// Blocks lists the basic blocks in body order. Empty for declarations.
	Blocks []*Block
}

// NewFunction creates a function with the given blocks. Passing no blocks
// yields a declaration.
func NewFunction(name string, blocks ...*Block) *Function {
	return &Function{Name: name, Blocks: blocks}
}

// NewDeclaration creates a body-less function, i.e. a reference to an
// externally defined symbol such as a runtime hook.
func NewDeclaration(name string) *Function {
	return &Function{Name: name}
}

// IsDeclaration reports whether the function has no body.
func (f *Function) IsDeclaration() bool {
	return len(f.Blocks) == 0
}

// AddBlock appends a block to the function body.
func (f *Function) AddBlock(b *Block) *Block {
	f.Blocks = append(f.Blocks, b)
	return b
}

// Block is a basic block: a straight-line instruction sequence whose last
// instruction, when well formed, is a terminator.
type Block struct {
	// Name is the block label. The entry block of a function conventionally
	// has an empty name.
	Name string

	// Instrs lists the instructions in execution order.
	Instrs []*Instruction
}

// NewBlock creates a block with the given instructions.
func NewBlock(name string, instrs ...*Instruction) *Block {
	return &Block{Name: name, Instrs: instrs}
}

// Append adds instructions at the end of the block.
func (b *Block) Append(instrs ...*Instruction) {
	b.Instrs = append(b.Instrs, instrs...)
}

// Terminator returns the block's terminating instruction, or nil when the
// block is empty or its last instruction is not a terminator. A nil return
// means the block is structurally malformed; a well-formed producer
// guarantees every block ends in exactly one terminator.
func (b *Block) Terminator() *Instruction {
	if len(b.Instrs) == 0 {
		return nil
	}
	last := b.Instrs[len(b.Instrs)-1]
	if !last.Op.IsTerminator() {
		return nil
	}
	return last
}

// InsertBefore inserts newInstr immediately before the instruction at,
// which must be present in the block. It reports whether at was found;
// when it was not, the block is left unchanged.
func (b *Block) InsertBefore(newInstr, at *Instruction) bool {
	for i, in := range b.Instrs {
		if in != at {
			continue
		}
		b.Instrs = append(b.Instrs, nil)
		copy(b.Instrs[i+1:], b.Instrs[i:])
		b.Instrs[i] = newInstr
		return true
	}
	return false
}
