package binning

import (
	"fmt"
	"sort"
	"time"

	"github.com/TSE-Systems/tse-analytics-sub003/internal/model"
)

const (
	LabelLight = "Light"
	LabelDark  = "Dark"
)

// IntervalOperator resamples rows into fixed-width time buckets measured
// from the earliest timestamp of the input. Policies holds the per-variable
// aggregations used when Operation is auto; the other operators share it.
type IntervalOperator struct {
	Width     time.Duration
	Operation model.Aggregation
	Policies  map[string]model.Aggregation
	Grouping  Grouping
}

func (o IntervalOperator) Process(in *model.Table) (*model.Table, error) {
	if o.Width <= 0 {
		return nil, fmt.Errorf("binning: interval width must be positive, got %s", o.Width)
	}
	if in.Len() == 0 {
		return emptyLike(in, o.Grouping, ""), nil
	}
	origin := in.Start()
	out, groups, err := aggregate(in, o.Grouping, columnOps(in.Variables, o.Operation, o.Policies), func(r *model.Row) (int, string, bool) {
		return int(r.Timestamp.Sub(origin) / o.Width), "", true
	})
	if err != nil {
		return nil, err
	}
	for i, g := range groups {
		offset := time.Duration(g.bin) * o.Width
		out.Rows[i].Timestamp = origin.Add(offset)
		out.Rows[i].Elapsed = offset
	}
	return out, nil
}

// CycleOperator splits every day into Light and Dark using two clock times.
type CycleOperator struct {
	LightStart model.TimeOfDay
	DarkStart  model.TimeOfDay
	Operation  model.Aggregation
	Policies   map[string]model.Aggregation
	Grouping   Grouping
}

// Classify returns LabelLight or LabelDark for t.
func (o CycleOperator) Classify(t time.Time) string {
	tod := model.Of(t)
	var light bool
	if o.LightStart < o.DarkStart {
		light = tod >= o.LightStart && tod < o.DarkStart
	} else {
		// light period wraps midnight
		light = tod >= o.LightStart || tod < o.DarkStart
	}
	if light {
		return LabelLight
	}
	return LabelDark
}

func (o CycleOperator) Process(in *model.Table) (*model.Table, error) {
	if o.LightStart == o.DarkStart {
		return nil, fmt.Errorf("binning: light and dark start must differ")
	}
	if in.Len() == 0 {
		return emptyLike(in, o.Grouping, "Cycle"), nil
	}
	out, groups, err := aggregate(in, o.Grouping, columnOps(in.Variables, o.Operation, o.Policies), func(r *model.Row) (int, string, bool) {
		label := o.Classify(r.Timestamp)
		if label == LabelLight {
			return 0, label, true
		}
		return 1, label, true
	})
	if err != nil {
		return nil, err
	}
	out.LabelName = "Cycle"
	for i, g := range groups {
		out.Rows[i].Timestamp, out.Rows[i].Elapsed = earliest(g.rows)
	}
	return out, nil
}

// PhaseOperator assigns every row to the last phase starting at or before
// its elapsed time. Rows before the first phase are dropped.
type PhaseOperator struct {
	Phases    []model.TimePhase
	Operation model.Aggregation
	Policies  map[string]model.Aggregation
	Grouping  Grouping
}

func (o PhaseOperator) sorted() []model.TimePhase {
	phases := append([]model.TimePhase(nil), o.Phases...)
	sort.SliceStable(phases, func(i, j int) bool { return phases[i].Start < phases[j].Start })
	return phases
}

// Assign returns the index and name of the phase containing elapsed.
func (o PhaseOperator) Assign(elapsed time.Duration) (int, string, bool) {
	return assignPhase(o.sorted(), elapsed)
}

// assignPhase finds the last of the sorted phases starting at or before
// elapsed.
func assignPhase(phases []model.TimePhase, elapsed time.Duration) (int, string, bool) {
	idx := sort.Search(len(phases), func(i int) bool { return phases[i].Start > elapsed }) - 1
	if idx < 0 {
		return 0, "", false
	}
	return idx, phases[idx].Name, true
}

func (o PhaseOperator) Process(in *model.Table) (*model.Table, error) {
	if len(o.Phases) == 0 {
		return nil, fmt.Errorf("binning: no phases defined")
	}
	if in.Len() == 0 {
		return emptyLike(in, o.Grouping, "Phase"), nil
	}
	phases := o.sorted()
	out, groups, err := aggregate(in, o.Grouping, columnOps(in.Variables, o.Operation, o.Policies), func(r *model.Row) (int, string, bool) {
		return assignPhase(phases, r.Elapsed)
	})
	if err != nil {
		return nil, err
	}
	out.LabelName = "Phase"
	for i, g := range groups {
		out.Rows[i].Timestamp, _ = earliest(g.rows)
		out.Rows[i].Elapsed = phases[g.bin].Start
	}
	return out, nil
}

func emptyLike(in *model.Table, g Grouping, labelName string) *model.Table {
	out := &model.Table{Variables: append([]string(nil), in.Variables...), LabelName: labelName}
	if g.Mode == model.GroupByFactor {
		out.Factors = []string{g.Factor}
	} else if len(in.Factors) > 0 {
		out.Factors = append([]string(nil), in.Factors...)
	}
	return out
}

// FromSettings builds the operator described by s. Policies supplies the
// per-variable aggregations for the auto operation and may be nil.
func FromSettings(s model.BinningSettings, policies map[string]model.Aggregation) (Operator, error) {
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("binning settings: %w", err)
	}
	g := Grouping{Mode: s.Grouping, Factor: s.Factor}
	switch s.Mode {
	case model.BinCycles:
		return CycleOperator{LightStart: s.Cycle.LightStart, DarkStart: s.Cycle.DarkStart, Operation: s.Operation, Policies: policies, Grouping: g}, nil
	case model.BinPhases:
		return PhaseOperator{Phases: s.Phases, Operation: s.Operation, Policies: policies, Grouping: g}, nil
	default:
		w, err := s.Interval.Width()
		if err != nil {
			return nil, err
		}
		return IntervalOperator{Width: w, Operation: s.Operation, Policies: policies, Grouping: g}, nil
	}
}

// Apply bins t according to s. It returns t unchanged when s.Apply is false.
func Apply(t *model.Table, s model.BinningSettings, policies map[string]model.Aggregation) (*model.Table, error) {
	if !s.Apply {
		return t, nil
	}
	op, err := FromSettings(s, policies)
	if err != nil {
		return nil, err
	}
	return op.Process(t)
}
