// Package pipeline dispatches parameterized pass names to runnable passes.
//
// It plays the role the plugin registration callback plays in the host
// compiler: given one pipeline element such as
//
//	phase-analysis-pass<interval_length=100000>
//
// it tries each registered pass's name matcher. A name mismatch means "try
// the next pass"; a matching name with a broken configuration is reported
// against that pass and nothing else, so a dispatcher never emits errors
// for passes the element was not addressed to.
package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/sarchlab/nugget/internal/ir"
	"github.com/sarchlab/nugget/internal/pass"
	"github.com/sarchlab/nugget/internal/pass/bblabel"
	"github.com/sarchlab/nugget/internal/pass/bound"
	"github.com/sarchlab/nugget/internal/pass/interval"
	"github.com/sarchlab/nugget/internal/pass/param"
)

// Pass is one runnable, configured pipeline element. Passes run strictly
// sequentially on the same module; a pass either completes all of its
// mutation or returns an error that voids the run.
type Pass interface {
	Name() string
	Run(m *ir.Module) error
}

// Deps carries the collaborators a pass needs beyond its own options: the
// reserved-function denylist, the record export boundary and the logger.
type Deps struct {
	Reserved pass.ReservedFuncs
	Records  bblabel.RecordWriter
	Log      zerolog.Logger
}

// UnknownPassError reports a pipeline element no registered pass claims.
type UnknownPassError struct {
	Element string
	Known   []string
}

func (e *UnknownPassError) Error() string {
	return fmt.Sprintf("no such pass: %q (registered passes: %s)",
		e.Element, strings.Join(e.Known, ", "))
}

// builder binds a pass name and option schema to a constructor.
type builder struct {
	name   string
	schema param.Schema
	build  func(cfg param.Config, deps Deps) (Pass, error)
}

func registered() []builder {
	return []builder{
		{bblabel.PassName, bblabel.OptionSchema(), buildLabel},
		{interval.PassName, interval.OptionSchema(), buildAnalysis},
		{bound.PassName, bound.OptionSchema(), buildBound},
	}
}

// Names lists the registered pass names in registration order.
func Names() []string {
	bs := registered()
	names := make([]string, len(bs))
	for i, b := range bs {
		names[i] = b.name
	}
	return names
}

// Dispatch resolves one pipeline element to a configured pass. Returns
// UnknownPassError when no registered pass name matches, or the matching
// pass's configuration error otherwise.
func Dispatch(element string, deps Deps) (Pass, error) {
	for _, b := range registered() {
		cfg, err := param.Match(element, b.name, b.schema)
		if errors.Is(err, param.ErrNameNotMatched) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", b.name, err)
		}
		p, err := b.build(cfg, deps)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", b.name, err)
		}
		return p, nil
	}
	return nil, &UnknownPassError{Element: element, Known: Names()}
}

// Parse resolves a comma-separated pipeline string to its passes, in
// order. Empty elements are rejected rather than skipped: a stray comma in
// a pipeline string is a typo worth surfacing.
func Parse(pipeline string, deps Deps) ([]Pass, error) {
	elements := strings.Split(pipeline, ",")
	passes := make([]Pass, 0, len(elements))
	for _, element := range elements {
		element = strings.TrimSpace(element)
		if element == "" {
			return nil, fmt.Errorf("empty pipeline element in %q", pipeline)
		}
		p, err := Dispatch(element, deps)
		if err != nil {
			return nil, err
		}
		passes = append(passes, p)
	}
	return passes, nil
}

// labelPass runs the labeler and hands its records to the export boundary.
type labelPass struct {
	labeler   *bblabel.Labeler
	outputCSV string
	records   bblabel.RecordWriter
}

func buildLabel(cfg param.Config, deps Deps) (Pass, error) {
	return &labelPass{
		labeler:   bblabel.New(deps.Reserved, deps.Log),
		outputCSV: cfg["output_csv"],
		records:   deps.Records,
	}, nil
}

func (p *labelPass) Name() string { return bblabel.PassName }

func (p *labelPass) Run(m *ir.Module) error {
	records, err := p.labeler.Run(m)
	if err != nil {
		return err
	}
	if p.records == nil {
		return nil
	}
	if err := p.records.Write(p.outputCSV, records); err != nil {
		return fmt.Errorf("writing %s: %w", p.outputCSV, err)
	}
	return nil
}

// analysisPass adapts the interval instrumentor to the Pass interface.
type analysisPass struct {
	inst *interval.Instrumentor
}

func buildAnalysis(cfg param.Config, deps Deps) (Pass, error) {
	threshold, err := cfg.Uint64("interval_length")
	if err != nil {
		return nil, err
	}
	return &analysisPass{inst: interval.New(threshold, deps.Reserved, deps.Log)}, nil
}

func (p *analysisPass) Name() string { return interval.PassName }

func (p *analysisPass) Run(m *ir.Module) error {
	_, err := p.inst.Run(m)
	return err
}

// boundPass adapts the boundary instrumentor to the Pass interface.
type boundPass struct {
	inst *bound.Instrumentor
}

func buildBound(cfg param.Config, deps Deps) (Pass, error) {
	var (
		specs = make(map[string]uint64, 6)
		err   error
	)
	for _, key := range []string{
		"warmup_marker_bb_id", "warmup_marker_count",
		"start_marker_bb_id", "start_marker_count",
		"end_marker_bb_id", "end_marker_count",
	} {
		if specs[key], err = cfg.Uint64(key); err != nil {
			return nil, err
		}
	}

	mode := bound.ModeCall
	if cfg.Bool("label_only") {
		mode = bound.ModeLabelOnly
	}

	warmup := &bound.MarkerSpec{
		BlockID: specs["warmup_marker_bb_id"],
		Count:   specs["warmup_marker_count"],
	}
	start := bound.MarkerSpec{
		BlockID: specs["start_marker_bb_id"],
		Count:   specs["start_marker_count"],
	}
	end := bound.MarkerSpec{
		BlockID: specs["end_marker_bb_id"],
		Count:   specs["end_marker_count"],
	}
	return &boundPass{
		inst: bound.New(warmup, start, end, mode, deps.Reserved, deps.Log),
	}, nil
}

func (p *boundPass) Name() string { return bound.PassName }

func (p *boundPass) Run(m *ir.Module) error {
	return p.inst.Run(m)
}
