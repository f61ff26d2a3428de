package main

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/sarchlab/nugget/internal/pass/bblabel"
)

// csvRecordWriter exports labeler records in the bb_info CSV layout the
// downstream phase-analysis tooling parses.
type csvRecordWriter struct{}

var csvHeader = []string{
	"FunctionName",
	"FunctionID",
	"BasicBlockName",
	"BasicBlockInstCount",
	"BasicBlockID",
}

func (csvRecordWriter) Write(path string, records []bblabel.Record) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return err
	}
	for _, r := range records {
		row := []string{
			r.FunctionName,
			strconv.FormatUint(r.FunctionID, 10),
			r.BlockName,
			strconv.FormatUint(r.InstCount, 10),
			strconv.FormatUint(r.BlockID, 10),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", path, err)
	}
	return nil
}
