// Package toolbox runs statistical processors over a prepared table and
// renders their results as self-contained HTML fragments.
package toolbox

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/TSE-Systems/tse-analytics-sub003/internal/model"
)

// Status tags a Result.
type Status int

const (
	// Active results carry a Report.
	Active Status = iota + 1
	// Inactive results carry a Reason instead.
	Inactive
)

// Result is either an Active HTML report or an Inactive reason.
type Result struct {
	Status Status
	Title  string
	Report string
	Reason string
}

// IsActive reports whether r carries a report.
func (r Result) IsActive() bool { return r.Status == Active }

func inactive(title, format string, args ...any) Result {
	return Result{Status: Inactive, Title: title, Reason: fmt.Sprintf(format, args...)}
}

// Split selects how a variable is divided into groups.
type Split string

const (
	SplitNone    Split = "none"
	SplitAnimals Split = "animals"
	SplitFactors Split = "factors"
	SplitRuns    Split = "runs"
)

// ParseSplit accepts none, animals, factors or runs.
func ParseSplit(s string) (Split, error) {
	switch Split(strings.ToLower(strings.TrimSpace(s))) {
	case "", SplitNone:
		return SplitNone, nil
	case SplitAnimals, "animal":
		return SplitAnimals, nil
	case SplitFactors, "factor":
		return SplitFactors, nil
	case SplitRuns, "run":
		return SplitRuns, nil
	}
	return "", fmt.Errorf("unsupported split: %q (use none|animals|factors|runs)", s)
}

// Params configures a processor run.
type Params struct {
	// Variable is the dependent variable.
	Variable string
	// Covariate is the second variable for correlation and regression.
	Covariate string
	Split     Split
	// Factor names the factor when Split is SplitFactors.
	Factor string
	// Bins is the histogram bin count.
	Bins  int
	Alpha float64
	Plot  PlotSize
}

// Processor computes a Result for a table of dataset ds.
type Processor func(ds *model.Dataset, t *model.Table, p Params) Result

// Processors lists the available processors by name.
var Processors = map[string]Processor{
	"anova":        OneWayANOVAProcessor,
	"correlation":  CorrelationProcessor,
	"regression":   RegressionProcessor,
	"distribution": DistributionProcessor,
	"histogram":    HistogramProcessor,
	"normality":    NormalityProcessor,
}

// Names returns the registered processor names, sorted.
func Names() []string {
	out := make([]string, 0, len(Processors))
	for k := range Processors {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Run looks up a processor by name and runs it.
func Run(name string, ds *model.Dataset, t *model.Table, p Params) (Result, error) {
	proc, ok := Processors[strings.ToLower(name)]
	if !ok {
		return Result{}, fmt.Errorf("unknown processor %q (available: %s)", name, strings.Join(Names(), ", "))
	}
	return proc(ds, t, p), nil
}

func (p Params) alpha() float64 {
	if p.Alpha <= 0 || p.Alpha >= 1 {
		return 0.05
	}
	return p.Alpha
}

// sample is one group of non-missing values.
type sample struct {
	Name   string
	Values []float64
}

// groupValues splits the non-missing values of variable into groups.
// Rows with an NA factor level are dropped.
func groupValues(t *model.Table, variable string, split Split, factor string) ([]sample, error) {
	vi := t.VariableIndex(variable)
	if vi < 0 {
		return nil, fmt.Errorf("%w: %s", model.ErrVariableNotFound, variable)
	}
	key := func(r *model.Row) (string, bool) { return "All", true }
	switch split {
	case SplitNone, "":
	case SplitAnimals:
		key = func(r *model.Row) (string, bool) { return r.Animal, r.Animal != "" }
	case SplitRuns:
		key = func(r *model.Row) (string, bool) { return "Run " + strconv.Itoa(r.Run), true }
	case SplitFactors:
		fi := t.FactorIndex(factor)
		if fi < 0 {
			return nil, fmt.Errorf("%w: %q", model.ErrFactorNotFound, factor)
		}
		key = func(r *model.Row) (string, bool) {
			l := r.Level(fi)
			return l, l != ""
		}
	default:
		return nil, fmt.Errorf("unsupported split %q", string(split))
	}
	index := map[string]int{}
	var out []sample
	for i := range t.Rows {
		r := &t.Rows[i]
		v := r.Values[vi]
		if math.IsNaN(v) {
			continue
		}
		k, ok := key(r)
		if !ok {
			continue
		}
		gi, seen := index[k]
		if !seen {
			gi = len(out)
			index[k] = gi
			out = append(out, sample{Name: k})
		}
		out[gi].Values = append(out[gi].Values, v)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// pairedValues returns rows where both variables are present.
func pairedValues(t *model.Table, xName, yName string) ([]float64, []float64, error) {
	xi, yi := t.VariableIndex(xName), t.VariableIndex(yName)
	if xi < 0 {
		return nil, nil, fmt.Errorf("%w: %s", model.ErrVariableNotFound, xName)
	}
	if yi < 0 {
		return nil, nil, fmt.Errorf("%w: %s", model.ErrVariableNotFound, yName)
	}
	var x, y []float64
	for _, r := range t.Rows {
		a, b := r.Values[xi], r.Values[yi]
		if math.IsNaN(a) || math.IsNaN(b) {
			continue
		}
		x = append(x, a)
		y = append(y, b)
	}
	return x, y, nil
}

func unitLabel(ds *model.Dataset, t *model.Table, variable string) string {
	if ds != nil {
		for _, dt := range ds.Tables {
			if v, ok := dt.Variables[variable]; ok && v.Unit != "" {
				return fmt.Sprintf("%s [%s]", variable, v.Unit)
			}
		}
	}
	return variable
}

func splitLabel(p Params) string {
	switch p.Split {
	case SplitFactors:
		return "factor " + p.Factor
	case SplitAnimals:
		return "animal"
	case SplitRuns:
		return "run"
	}
	return "none"
}
