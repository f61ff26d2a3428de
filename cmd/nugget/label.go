package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/sarchlab/nugget/internal/load"
	"github.com/sarchlab/nugget/internal/pass"
	"github.com/sarchlab/nugget/internal/pass/bblabel"
)

// labelConfig holds the options for the label command.
type labelConfig struct {
	dir      string
	csvPath  string
	patterns []string
	verbose  bool
}

// labelCommand runs only the basic-block labeler and exports the CSV.
// It is shorthand for `instrument -passes "ir-bb-label-pass<output_csv=...>"`
// without the module dump.
func labelCommand(args []string) {
	fs := flag.NewFlagSet("label", flag.ExitOnError)
	cfg := labelConfig{}
	fs.StringVar(&cfg.dir, "dir", ".", "working directory for package resolution")
	fs.StringVar(&cfg.csvPath, "csv", "bb_info.csv", "output path for the block-id CSV")
	fs.BoolVar(&cfg.verbose, "v", false, "enable verbose logging")
	fs.Usage = func() {
		fmt.Fprint(os.Stderr, `Usage: nugget label [options] [patterns...]

Assigns a globally unique id to every eligible basic block and writes the
function/block table to a CSV file. Patterns default to ./...

Options:
`)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	cfg.patterns = fs.Args()
	if len(cfg.patterns) == 0 {
		cfg.patterns = []string{"./..."}
	}

	log := newLogger(cfg.verbose)

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

	labeler := bblabel.New(pass.DefaultReserved(), log)
	records, err := labeler.Run(m)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := (csvRecordWriter{}).Write(cfg.csvPath, records); err != nil {
		fmt.Fprintf(os.Stderr, "Error: writing %s: %v\n", cfg.csvPath, err)
		os.Exit(1)
	}

	fmt.Printf("Labeled %d basic blocks, wrote %s\n", len(records), cfg.csvPath)
}
