package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/sarchlab/nugget/internal/load"
	"github.com/sarchlab/nugget/internal/pass"
	"github.com/sarchlab/nugget/internal/pass/pipeline"
)

// instrumentConfig holds the options for the instrument command.
type instrumentConfig struct {
	dir      string
	passes   string
	output   string
	patterns []string
	verbose  bool
}

// instrumentCommand loads the target packages, runs the requested pass
// pipeline and dumps the annotated module.
func instrumentCommand(args []string) {
	fs := flag.NewFlagSet("instrument", flag.ExitOnError)
	cfg := instrumentConfig{}
	fs.StringVar(&cfg.dir, "dir", ".", "working directory for package resolution")
	fs.StringVar(&cfg.passes, "passes", "", "comma-separated pass pipeline (required)")
	fs.StringVar(&cfg.output, "o", "-", "module dump output path, - for stdout")
	fs.BoolVar(&cfg.verbose, "v", false, "enable verbose logging")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: nugget instrument -passes <pipeline> [options] [patterns...]

Runs an instrumentation pass pipeline over the matched packages and dumps
the annotated module. Patterns default to ./...

Registered passes: %v

Options:
`, pipeline.Names())
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	cfg.patterns = fs.Args()
	if len(cfg.patterns) == 0 {
		cfg.patterns = []string{"./..."}
	}
	if cfg.passes == "" {
		fmt.Fprintf(os.Stderr, "Error: -passes is required\n\n")
		fs.Usage()
		os.Exit(1)
	}

	log := newLogger(cfg.verbose)

	deps := pipeline.Deps{
		Reserved: pass.DefaultReserved(),
		Records:  csvRecordWriter{},
		Log:      log,
	}
	passes, err := pipeline.Parse(cfg.passes, deps)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	m, err := load.Load(load.Options{
		Dir:      cfg.dir,
		Patterns: cfg.patterns,
		Stubs:    true,
		Log:      log,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	for _, p := range passes {
		log.Debug().Str("pass", p.Name()).Msg("running pass")
		if err := p.Run(m); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %s: %v\n", p.Name(), err)
			os.Exit(1)
		}
	}

	out := os.Stdout
	if cfg.output != "-" {
		f, err := os.Create(cfg.output)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		out = f
	}
	if err := m.WriteText(out); err != nil {
		fmt.Fprintf(os.Stderr, "Error: writing module dump: %v\n", err)
		os.Exit(1)
	}
}
