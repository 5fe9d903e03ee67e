package binning

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/TSE-Systems/tse-analytics-sub003/internal/model"
)

// Operator transforms a table into a binned table. Implementations hold
// configuration only and may be reused across calls.
type Operator interface {
	Process(in *model.Table) (*model.Table, error)
}

// Grouping selects the subject key rows are aggregated under.
type Grouping struct {
	Mode   model.GroupingMode
	Factor string
}

// assignment places a row in a bin. ok=false drops the row.
type assignFunc func(r *model.Row) (bin int, label string, ok bool)

type group struct {
	sortKey string
	run     int
	bin     int
	label   string
	rows    []*model.Row
}

// columnOps resolves the reduction of every column of vars. Policies maps
// variable names to their own aggregation and is consulted only for auto.
func columnOps(vars []string, op model.Aggregation, policies map[string]model.Aggregation) []model.Aggregation {
	ops := make([]model.Aggregation, len(vars))
	for i, v := range vars {
		ops[i] = op.Resolve(policies[v])
	}
	return ops
}

// aggregate groups rows by (subject key, bin) and reduces column j with
// ops[j]. Rows without a key or a bin are dropped. The returned rows carry
// the grouping fields; Timestamp and Elapsed are set by the caller.
func aggregate(in *model.Table, g Grouping, ops []model.Aggregation, assign assignFunc) (*model.Table, []*group, error) {
	if in == nil {
		return nil, nil, fmt.Errorf("binning: nil table")
	}
	if len(ops) != len(in.Variables) {
		return nil, nil, fmt.Errorf("binning: %d reductions for %d variables", len(ops), len(in.Variables))
	}
	fi := -1
	switch g.Mode {
	case model.GroupByAnimal, model.GroupByRun, "":
	case model.GroupByFactor:
		fi = in.FactorIndex(g.Factor)
		if fi < 0 {
			return nil, nil, fmt.Errorf("binning: %w: %s", model.ErrFactorNotFound, g.Factor)
		}
	default:
		return nil, nil, fmt.Errorf("binning: unsupported grouping %q", string(g.Mode))
	}

	index := map[string]*group{}
	var groups []*group
	for i := range in.Rows {
		r := &in.Rows[i]
		var sk string
		run := 0
		switch g.Mode {
		case model.GroupByFactor:
			sk = r.Level(fi)
			if sk == "" {
				continue
			}
		case model.GroupByRun:
			run = r.Run
			sk = strconv.Itoa(r.Run)
		default:
			sk = r.Animal
		}
		bin, label, ok := assign(r)
		if !ok {
			continue
		}
		id := sk + "\x00" + strconv.Itoa(bin)
		gr := index[id]
		if gr == nil {
			gr = &group{sortKey: sk, run: run, bin: bin, label: label}
			index[id] = gr
			groups = append(groups, gr)
		}
		gr.rows = append(gr.rows, r)
	}
	sort.SliceStable(groups, func(i, j int) bool {
		a, b := groups[i], groups[j]
		if g.Mode == model.GroupByRun && a.run != b.run {
			return a.run < b.run
		}
		if a.sortKey != b.sortKey {
			return a.sortKey < b.sortKey
		}
		return a.bin < b.bin
	})

	out := &model.Table{Variables: append([]string(nil), in.Variables...)}
	if g.Mode == model.GroupByFactor {
		out.Factors = []string{g.Factor}
	} else {
		out.Factors = append([]string(nil), in.Factors...)
	}
	if len(out.Factors) == 0 {
		out.Factors = nil
	}
	out.Rows = make([]model.Row, len(groups))
	col := make([]float64, 0, 64)
	for gi, gr := range groups {
		row := model.Row{
			Bin:    gr.bin,
			Label:  gr.label,
			Values: make(model.Values, len(in.Variables)),
			Run:    constantInt(gr.rows, func(r *model.Row) int { return r.Run }),
		}
		switch g.Mode {
		case model.GroupByFactor:
			row.Levels = []string{gr.sortKey}
		case model.GroupByRun:
			row.Levels = constantLevels(gr.rows, len(in.Factors))
		default:
			row.Animal = gr.sortKey
			row.Box = constantInt(gr.rows, func(r *model.Row) int { return r.Box })
			row.Levels = constantLevels(gr.rows, len(in.Factors))
		}
		for j := range in.Variables {
			col = col[:0]
			for _, r := range gr.rows {
				col = append(col, r.Values[j])
			}
			row.Values[j] = ops[j].Apply(col)
		}
		out.Rows[gi] = row
	}
	return out, groups, nil
}

func constantInt(rows []*model.Row, get func(*model.Row) int) int {
	if len(rows) == 0 {
		return 0
	}
	v := get(rows[0])
	for _, r := range rows[1:] {
		if get(r) != v {
			return 0
		}
	}
	return v
}

// constantLevels keeps a factor level only when every row of the group agrees.
func constantLevels(rows []*model.Row, n int) []string {
	if n == 0 || len(rows) == 0 {
		return nil
	}
	out := make([]string, n)
	for fi := 0; fi < n; fi++ {
		v := rows[0].Level(fi)
		for _, r := range rows[1:] {
			if r.Level(fi) != v {
				v = ""
				break
			}
		}
		out[fi] = v
	}
	return out
}

func earliest(rows []*model.Row) (time.Time, time.Duration) {
	ts, el := rows[0].Timestamp, rows[0].Elapsed
	for _, r := range rows[1:] {
		if r.Timestamp.Before(ts) {
			ts = r.Timestamp
		}
		if r.Elapsed < el {
			el = r.Elapsed
		}
	}
	return ts, el
}
