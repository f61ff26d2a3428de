// Package load is the Go front end for the instrumentation pipeline: it
// builds the ir.Module the passes consume from real Go packages.
//
// The original pipeline ran inside a host compiler and received its module
// ready-made; this package plays that producer role for the standalone
// tool. Packages are loaded with golang.org/x/tools/go/packages, built to
// SSA form, and converted block-for-block into the mutable IR. The
// enclosing go.mod (located with golang.org/x/mod/modfile) names the
// resulting module.
package load

import (
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/tools/go/packages"
	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/ssa/ssautil"

	"github.com/sarchlab/nugget/internal/ir"
	"github.com/sarchlab/nugget/internal/pass"
)

// Options configures a Load call.
type Options struct {
	// Dir is the working directory for package resolution. Empty means
	// the process working directory.
	Dir string

	// Patterns are the package patterns to load, in the syntax of the go
	// command (e.g. "./..." or an import path).
	Patterns []string

	// Stubs controls whether the nugget runtime symbols are synthesized
	// into the module: declarations for the hook functions and defined
	// no-op bodies for the ROI entry points, standing in for what the
	// runtime library provides at link time. Without them the
	// instrumentor passes fail their symbol preconditions by design.
	Stubs bool

	Log zerolog.Logger
}

// Load builds an ir.Module from the Go packages matching the patterns.
func Load(opts Options) (*ir.Module, error) {
	cfg := &packages.Config{
		Mode: packages.NeedName | packages.NeedFiles | packages.NeedCompiledGoFiles |
			packages.NeedImports | packages.NeedDeps | packages.NeedTypes |
			packages.NeedSyntax | packages.NeedTypesInfo,
		Dir: opts.Dir,
	}
	pkgs, err := packages.Load(cfg, opts.Patterns...)
	if err != nil {
		return nil, fmt.Errorf("loading packages: %w", err)
	}
	if len(pkgs) == 0 {
		return nil, fmt.Errorf("no packages matched %v", opts.Patterns)
	}
	var loadErrs []packages.Error
	packages.Visit(pkgs, nil, func(p *packages.Package) {
		loadErrs = append(loadErrs, p.Errors...)
	})
	if len(loadErrs) > 0 {
		return nil, fmt.Errorf("loading packages: %v", loadErrs[0])
	}

	prog, ssaPkgs := ssautil.Packages(pkgs, ssa.SanityCheckFunctions)
	prog.Build()

	name := moduleName(opts, pkgs)
	m := FromPackages(prog, ssaPkgs, name)
	if opts.Stubs {
		AddRuntimeStubs(m)
	}

	opts.Log.Debug().
		Str("module", name).
		Int("functions", len(m.Funcs)).
		Msg("built module from Go packages")
	return m, nil
}

// moduleName prefers the enclosing module path; a program outside any
// module falls back to the first loaded package's path.
func moduleName(opts Options, pkgs []*packages.Package) string {
	_, path, err := FindModule(opts.Dir)
	if err == nil {
		return path
	}
	opts.Log.Debug().Err(err).Msg("no enclosing module, naming module after first package")
	return pkgs[0].PkgPath
}

// AddRuntimeStubs synthesizes the nugget runtime symbols the passes
// expect: hook declarations, plus defined no-op bodies for the ROI entry
// points so the init calls have somewhere to land. Symbols the module
// already carries are left alone.
func AddRuntimeStubs(m *ir.Module) {
	for _, hook := range []string{
		pass.HookBB,
		pass.HookIntervalInit,
		pass.HookBoundInit,
		pass.HookWarmupMarker,
		pass.HookStartMarker,
		pass.HookEndMarker,
	} {
		if m.Func(hook) == nil {
			m.AddFunc(ir.NewDeclaration(hook))
		}
	}
	for _, entry := range []string{pass.ROIBegin, pass.ROIEnd} {
		if m.Func(entry) == nil {
			m.AddFunc(ir.NewFunction(entry, ir.NewBlock("", ir.NewInstr(ir.OpRet))))
		}
	}
}
