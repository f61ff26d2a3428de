// Package main implements the nugget CLI tool.
//
// The nugget tool runs the basic-block instrumentation pipeline over Go
// programs:
//
//  1. Load Go packages and build the in-memory module representation
//  2. Label every basic block with a globally unique id (CSV export)
//  3. Insert phase-analysis sampling hooks and/or phase-boundary markers
//  4. Dump the annotated module for inspection
//
// Usage:
//
//	nugget label ./...                      # Label blocks, write bb_info.csv
//	nugget instrument -passes "..." ./...   # Run a full pass pipeline
//
// Pass pipelines use the same parameterized names the host-compiler plugin
// form of these passes uses, e.g.
//
//	ir-bb-label-pass<output_csv=bb_info.csv>
//	phase-analysis-pass<interval_length=100000>
//	phase-bound-pass<warmup_marker_bb_id=3;warmup_marker_count=1;...>
package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
)

const version = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	switch command {
	case "label":
		labelCommand(os.Args[2:])
	case "instrument":
		instrumentCommand(os.Args[2:])
	case "version", "--version", "-v":
		fmt.Printf("nugget version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

// newLogger builds the console logger shared by all commands. Warnings
// (skipped blocks) always show; debug detail is opt-in via -v.
func newLogger(verbose bool) zerolog.Logger {
	level := zerolog.WarnLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Logger()
}

func printUsage() {
	fmt.Print(`nugget - basic-block labeling and phase instrumentation for Go programs

USAGE:
    nugget <command> [arguments]

COMMANDS:
    label        Label basic blocks and export the bb_info CSV
    instrument   Run an instrumentation pass pipeline and dump the module
    version      Show version information
    help         Show this help message

EXAMPLES:
    # Label all blocks in the current module
    nugget label ./...

    # Label with a custom CSV path
    nugget label -csv out/bb_info.csv ./...

    # Label, then insert interval sampling hooks
    nugget instrument -passes "ir-bb-label-pass,phase-analysis-pass<interval_length=100000>" ./...

    # Label, then place ROI boundary markers (label-only form)
    nugget instrument -passes "ir-bb-label-pass,phase-bound-pass<warmup_marker_bb_id=3;warmup_marker_count=1;start_marker_bb_id=5;start_marker_count=2;end_marker_bb_id=9;end_marker_count=1;label_only=true>" ./...

ABOUT:
    nugget assigns a stable id to every eligible basic block and uses those
    ids to insert lightweight runtime probes: periodic sampling hooks for
    phase analysis, and warmup/start/end markers demarcating a region of
    interest. The pass semantics mirror the host-compiler plugin form of
    the same pipeline, including the parameterized pass-name grammar.
`)
}
