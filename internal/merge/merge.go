package merge

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/TSE-Systems/tse-analytics-sub003/internal/model"
)

// Mode selects how timelines of merged datasets are combined.
type Mode string

const (
	// Continuous places each dataset right after the previous one.
	Continuous Mode = "continuous"
	// Overlap keeps original timestamps.
	Overlap Mode = "overlap"
)

// ErrTooFewDatasets is returned when fewer than two datasets are given.
var ErrTooFewDatasets = errors.New("at least two datasets are required to merge")

// IncompatibleError reports datasets whose tables or variables differ.
type IncompatibleError struct {
	Dataset string
	Table   string
	Reason  string
}

func (e *IncompatibleError) Error() string {
	if e.Table != "" {
		return fmt.Sprintf("dataset %q table %q is incompatible: %s", e.Dataset, e.Table, e.Reason)
	}
	return fmt.Sprintf("dataset %q is incompatible: %s", e.Dataset, e.Reason)
}

// Options configures a merge.
type Options struct {
	Name string
	Mode Mode
	// SingleRun labels every row with run 1.
	SingleRun bool
	// GenerateNewAnimalNames renames colliding animal IDs of later datasets
	// to "<id>-<run>" instead of letting them overwrite earlier animals.
	GenerateNewAnimalNames bool
}

// ParseMode accepts continuous or overlap.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case Continuous:
		return Continuous, nil
	case Overlap:
		return Overlap, nil
	}
	return "", fmt.Errorf("unsupported merge mode: %q (use continuous|overlap)", s)
}

type source struct {
	ds      *model.Dataset
	start   time.Time
	runBase int
	rename  map[string]string
}

// Merge combines datasets into a new dataset. Inputs are not modified.
func Merge(datasets []*model.Dataset, opt Options) (*model.Dataset, error) {
	if len(datasets) < 2 {
		return nil, ErrTooFewDatasets
	}
	if opt.Mode == "" {
		opt.Mode = Continuous
	}
	if opt.Mode != Continuous && opt.Mode != Overlap {
		return nil, fmt.Errorf("unsupported merge mode: %q", string(opt.Mode))
	}
	if err := checkCompatible(datasets); err != nil {
		return nil, err
	}

	srcs := make([]*source, len(datasets))
	for i, ds := range datasets {
		srcs[i] = &source{ds: ds, start: ds.Start()}
	}
	// datasets without rows have no start and go last
	sort.SliceStable(srcs, func(i, j int) bool {
		a, b := srcs[i].start, srcs[j].start
		if a.IsZero() || b.IsZero() {
			return !a.IsZero() && b.IsZero()
		}
		return a.Before(b)
	})

	name := opt.Name
	if name == "" {
		names := make([]string, len(srcs))
		for i, s := range srcs {
			names[i] = s.ds.Name
		}
		name = strings.Join(names, " + ")
	}
	out := model.NewDataset(name)
	out.Binning = srcs[0].ds.Binning
	out.Binning.Apply = false
	if out.Binning.Grouping == model.GroupByFactor {
		out.Binning.Grouping = model.GroupByAnimal
		out.Binning.Factor = ""
	}

	// Runs, animals and metadata.
	runBase := 0
	var merged []string
	for _, s := range srcs {
		s.runBase = runBase
		maxRun := 1
		for _, dt := range s.ds.Tables {
			for _, r := range dt.Original.Rows {
				if r.Run > maxRun {
					maxRun = r.Run
				}
			}
		}
		runBase += maxRun

		s.rename = map[string]string{}
		for _, id := range s.ds.AnimalIDs() {
			a := s.ds.Animals[id].Clone()
			if _, taken := out.Animals[id]; taken && opt.GenerateNewAnimalNames {
				newID := uniqueAnimalID(out.Animals, fmt.Sprintf("%s-%d", id, s.runBase+1))
				s.rename[id] = newID
				a.ID = newID
			}
			out.Animals[a.ID] = a
		}
		for k, v := range s.ds.Metadata {
			out.Metadata[k] = v
		}
		merged = append(merged, s.ds.Name)
	}
	out.Metadata["merged_from"] = strings.Join(merged, ", ")
	out.Metadata["merge_mode"] = string(opt.Mode)

	for _, tableName := range srcs[0].ds.TableNames() {
		dt, err := mergeTable(tableName, srcs, opt)
		if err != nil {
			return nil, err
		}
		out.AddTable(dt)
	}
	return out, nil
}

func mergeTable(name string, srcs []*source, opt Options) (*model.Datatable, error) {
	first := srcs[0].ds.Tables[name]
	vars := make(map[string]*model.Variable, len(first.Variables))
	for k, v := range first.Variables {
		vars[k] = v.Clone()
	}
	columns := first.Original.Variables

	interval := first.SamplingInterval
	for _, s := range srcs[1:] {
		iv := s.ds.Tables[name].SamplingInterval
		if opt.Mode == Overlap && iv > 0 && (interval <= 0 || iv < interval) {
			interval = iv
		}
		if opt.Mode == Continuous && iv > interval {
			interval = iv
		}
	}

	combined := model.NewTable(columns...)
	var shift time.Duration
	var prevEnd time.Time
	for _, s := range srcs {
		dt := s.ds.Tables[name]
		t := dt.Original
		// column order may differ between inputs
		idx := make([]int, len(columns))
		for j, c := range columns {
			idx[j] = t.VariableIndex(c)
		}
		if opt.Mode == Continuous && t.Len() > 0 {
			if prevEnd.IsZero() {
				// first input with rows keeps its timeline
				shift = 0
			} else {
				step := dt.SamplingInterval
				if step <= 0 {
					step = interval
				}
				shift = prevEnd.Add(step).Sub(t.Start())
			}
			prevEnd = t.End().Add(shift)
		}
		for _, r := range t.Rows {
			nr := model.Row{
				Animal:    r.Animal,
				Box:       r.Box,
				Timestamp: r.Timestamp,
				Values:    make(model.Values, len(columns)),
			}
			if renamed, ok := s.rename[r.Animal]; ok {
				nr.Animal = renamed
			}
			run := r.Run
			if run <= 0 {
				run = 1
			}
			nr.Run = s.runBase + run
			if opt.SingleRun {
				nr.Run = 1
			}
			if opt.Mode == Continuous {
				nr.Timestamp = r.Timestamp.Add(shift)
			}
			for j, k := range idx {
				nr.Values[j] = r.Values[k]
			}
			combined.Rows = append(combined.Rows, nr)
		}
		if opt.Mode == Overlap {
			// elapsed is measured per input so overlapping runs share an axis
			for ri := len(combined.Rows) - t.Len(); ri < len(combined.Rows); ri++ {
				r := &combined.Rows[ri]
				r.Elapsed = r.Timestamp.Sub(t.Start())
			}
		}
	}

	if opt.Mode == Continuous {
		start := combined.Start()
		for i := range combined.Rows {
			combined.Rows[i].Elapsed = combined.Rows[i].Timestamp.Sub(start)
		}
	}
	for i := range combined.Rows {
		r := &combined.Rows[i]
		if interval > 0 {
			r.Bin = int(r.Elapsed / interval)
		}
	}
	combined.SortByTime()
	dt := model.NewDatatable(name, combined, vars, interval)
	dt.Description = first.Description
	return dt, nil
}

func checkCompatible(datasets []*model.Dataset) error {
	ref := datasets[0]
	refNames := ref.TableNames()
	if len(refNames) == 0 {
		return &IncompatibleError{Dataset: ref.Name, Reason: "no datatables"}
	}
	for _, ds := range datasets[1:] {
		names := ds.TableNames()
		if strings.Join(names, "\x00") != strings.Join(refNames, "\x00") {
			return &IncompatibleError{Dataset: ds.Name, Reason: fmt.Sprintf("tables %v differ from %v", names, refNames)}
		}
		for _, n := range refNames {
			if !ds.Tables[n].SameVariables(ref.Tables[n]) {
				return &IncompatibleError{Dataset: ds.Name, Table: n, Reason: "variable sets differ"}
			}
		}
	}
	return nil
}

func uniqueAnimalID(taken map[string]*model.Animal, candidate string) string {
	id := candidate
	for n := 2; ; n++ {
		if _, ok := taken[id]; !ok {
			return id
		}
		id = fmt.Sprintf("%s.%d", candidate, n)
	}
}
