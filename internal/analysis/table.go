package analysis

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/TSE-Systems/tse-analytics-sub003/internal/model"
	"gonum.org/v1/gonum/stat"
)

// Options controls descriptive analysis of a table.
type Options struct {
	// SampleRows determines how many example rows to include in the report.
	SampleRows int
	// GroupBy computes per-level summaries for the named factor.
	GroupBy string
	// Correlations computes Pearson correlations among variables.
	Correlations bool
	// Outlier detection via robust Z-score (MAD). If Outliers is true, counts |z|>threshold.
	Outliers         bool
	OutlierThreshold float64
}

// DefaultOptions returns reasonable defaults for table description.
func DefaultOptions() Options {
	return Options{
		SampleRows:       5,
		Outliers:         true,
		OutlierThreshold: DefaultOutlierThreshold,
	}
}

// DefaultOutlierThreshold is the robust |z| above which a value is an outlier.
const DefaultOutlierThreshold = 3.5

// Report is a markdown-friendly description of a datatable.
type Report struct {
	Name     string
	Rows     int
	Animals  int
	Cols     []ColumnSummary
	Samples  []model.Row
	Warnings []string
	Groups   []GroupResult
	Corr     *CorrMatrix
	vars     []string
}

// ColumnSummary captures statistics per variable.
type ColumnSummary struct {
	Name    string
	Unit    string
	NonNull int
	Missing int
	Min     float64
	Max     float64
	Mean    float64
	Std     float64
	// Outliers (robust Z via MAD)
	OutliersCount    int
	OutliersMaxAbsZ  float64
	OutlierThreshold float64
}

// GroupResult captures aggregated metrics per factor level.
type GroupResult struct {
	Key     string
	Size    int
	Metrics map[string]NumSummary // by variable name
}

type NumSummary struct {
	Count          int
	Min, Max, Mean float64
}

// CorrMatrix holds a symmetric Pearson correlation matrix across variables.
type CorrMatrix struct {
	Columns []string
	Values  [][]float64 // row-major, Values[i][j]
}

// Describe summarizes every variable of t. units maps variable name to unit
// and may be nil.
func Describe(name string, t *model.Table, units map[string]string, opt Options) (*Report, error) {
	if t == nil {
		return nil, fmt.Errorf("describe %s: nil table", name)
	}
	rep := &Report{Name: name, Rows: t.Len(), Animals: len(t.Animals()), vars: t.Variables}
	sampleRows := opt.SampleRows
	if sampleRows <= 0 {
		sampleRows = 5
	}
	for i := 0; i < len(t.Rows) && i < sampleRows; i++ {
		rep.Samples = append(rep.Samples, t.Rows[i])
	}

	gIdx := -1
	if opt.GroupBy != "" {
		gIdx = t.FactorIndex(opt.GroupBy)
		if gIdx < 0 {
			return nil, fmt.Errorf("%w: %s", model.ErrFactorNotFound, opt.GroupBy)
		}
	}
	type gAcc struct {
		size int
		sum  map[int]float64
		cnt  map[int]int
		min  map[int]float64
		max  map[int]float64
	}
	groups := map[string]*gAcc{}
	naRows := 0

	rep.Cols = make([]ColumnSummary, len(t.Variables))
	for j, v := range t.Variables {
		s := ColumnSummary{Name: v, Min: math.Inf(1), Max: math.Inf(-1)}
		if units != nil {
			s.Unit = units[v]
		}
		vals := make([]float64, 0, len(t.Rows))
		for _, r := range t.Rows {
			x := r.Values[j]
			if math.IsNaN(x) {
				s.Missing++
				continue
			}
			s.NonNull++
			vals = append(vals, x)
			if x < s.Min {
				s.Min = x
			}
			if x > s.Max {
				s.Max = x
			}
		}
		switch len(vals) {
		case 0:
			s.Min, s.Max = math.NaN(), math.NaN()
		case 1:
			s.Mean = vals[0]
		default:
			s.Mean, s.Std = stat.MeanStdDev(vals, nil)
		}
		if opt.Outliers && len(vals) >= 8 {
			thr := opt.OutlierThreshold
			if thr <= 0 {
				thr = DefaultOutlierThreshold
			}
			median, mad := medianMAD(vals)
			if mad > 0 {
				for _, x := range vals {
					az := math.Abs(0.6745 * (x - median) / mad)
					if az > thr {
						s.OutliersCount++
					}
					if az > s.OutliersMaxAbsZ {
						s.OutliersMaxAbsZ = az
					}
				}
			}
			s.OutlierThreshold = thr
		}
		rep.Cols[j] = s
	}

	if gIdx >= 0 {
		for _, r := range t.Rows {
			key := r.Level(gIdx)
			if key == "" {
				naRows++
				continue
			}
			ga := groups[key]
			if ga == nil {
				ga = &gAcc{sum: map[int]float64{}, cnt: map[int]int{}, min: map[int]float64{}, max: map[int]float64{}}
				groups[key] = ga
			}
			ga.size++
			for j, x := range r.Values {
				if math.IsNaN(x) {
					continue
				}
				ga.sum[j] += x
				ga.cnt[j]++
				if _, ok := ga.min[j]; !ok || x < ga.min[j] {
					ga.min[j] = x
				}
				if _, ok := ga.max[j]; !ok || x > ga.max[j] {
					ga.max[j] = x
				}
			}
		}
		out := make([]GroupResult, 0, len(groups))
		for k, ga := range groups {
			gr := GroupResult{Key: fmt.Sprintf("%s=%s", opt.GroupBy, k), Size: ga.size, Metrics: map[string]NumSummary{}}
			for j, v := range t.Variables {
				if ga.cnt[j] == 0 {
					continue
				}
				gr.Metrics[v] = NumSummary{Count: ga.cnt[j], Min: ga.min[j], Max: ga.max[j], Mean: ga.sum[j] / float64(ga.cnt[j])}
			}
			out = append(out, gr)
		}
		sort.Slice(out, func(i, j int) bool {
			if out[i].Size == out[j].Size {
				return out[i].Key < out[j].Key
			}
			return out[i].Size > out[j].Size
		})
		rep.Groups = out
		if naRows > 0 {
			rep.Warnings = append(rep.Warnings, fmt.Sprintf("%d rows have no level for factor %s", naRows, opt.GroupBy))
		}
	}

	if opt.Correlations && len(t.Variables) >= 2 {
		rep.Corr = correlationMatrix(t)
	}
	return rep, nil
}

// correlationMatrix computes pairwise Pearson r using rows where both values are present.
func correlationMatrix(t *model.Table) *CorrMatrix {
	n := len(t.Variables)
	mat := make([][]float64, n)
	for i := range mat {
		mat[i] = make([]float64, n)
	}
	for a := 0; a < n; a++ {
		mat[a][a] = 1
		for b := a + 1; b < n; b++ {
			xs := make([]float64, 0, len(t.Rows))
			ys := make([]float64, 0, len(t.Rows))
			for _, r := range t.Rows {
				x, y := r.Values[a], r.Values[b]
				if math.IsNaN(x) || math.IsNaN(y) {
					continue
				}
				xs = append(xs, x)
				ys = append(ys, y)
			}
			var r float64
			if len(xs) >= 2 {
				r = stat.Correlation(xs, ys, nil)
			}
			if r > 1 {
				r = 1
			} else if r < -1 {
				r = -1
			}
			if math.IsNaN(r) || math.IsInf(r, 0) {
				r = 0
			}
			mat[a][b], mat[b][a] = r, r
		}
	}
	return &CorrMatrix{Columns: append([]string(nil), t.Variables...), Values: mat}
}

// Markdown renders a compact report suitable for terminals or standalone docs.
func (r *Report) Markdown() string {
	var b strings.Builder
	b.WriteString("[DATATABLE SUMMARY]\n")
	if r.Name != "" {
		b.WriteString(fmt.Sprintf("Table: %s\n", r.Name))
	}
	b.WriteString(fmt.Sprintf("Rows: %d\n", r.Rows))
	b.WriteString(fmt.Sprintf("Animals: %d\n", r.Animals))
	b.WriteString(fmt.Sprintf("Variables: %d\n\n", len(r.Cols)))

	b.WriteString("[VARIABLES]\n")
	for _, c := range r.Cols {
		total := c.NonNull + c.Missing
		missPct := 0.0
		if total > 0 {
			missPct = float64(c.Missing) * 100.0 / float64(total)
		}
		name := c.Name
		if c.Unit != "" {
			name = fmt.Sprintf("%s [%s]", name, c.Unit)
		}
		b.WriteString(fmt.Sprintf("- %s: non-null %d, missing %.1f%%", name, c.NonNull, missPct))
		if c.NonNull > 0 {
			b.WriteString(fmt.Sprintf("; min %.4g, max %.4g, mean %.4g, std %.4g", c.Min, c.Max, c.Mean, c.Std))
		}
		if c.OutlierThreshold > 0 {
			b.WriteString(fmt.Sprintf("; outliers: %d above |z|>%.1f", c.OutliersCount, c.OutlierThreshold))
			if c.OutliersMaxAbsZ > 0 {
				b.WriteString(fmt.Sprintf(" (max |z|≈%.2f)", c.OutliersMaxAbsZ))
			}
		}
		b.WriteString("\n")
	}
	if len(r.Groups) > 0 {
		b.WriteString("\n[GROUP-BY SUMMARY]\n")
		for _, g := range r.Groups {
			b.WriteString(fmt.Sprintf("- %s (n=%d)\n", g.Key, g.Size))
			keys := make([]string, 0, len(g.Metrics))
			for k := range g.Metrics {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				m := g.Metrics[k]
				b.WriteString(fmt.Sprintf("  • %s: mean %.4g (min %.4g, max %.4g)\n", k, m.Mean, m.Min, m.Max))
			}
		}
	}
	if r.Corr != nil && len(r.Corr.Columns) >= 2 {
		b.WriteString("\n[CORRELATIONS]\n")
		type pr struct {
			A, B string
			R    float64
		}
		var pairs []pr
		n := len(r.Corr.Columns)
		for i := 0; i < n; i++ {
			for j := i + 1; j < n; j++ {
				pairs = append(pairs, pr{A: r.Corr.Columns[i], B: r.Corr.Columns[j], R: r.Corr.Values[i][j]})
			}
		}
		sort.Slice(pairs, func(i, j int) bool {
			ai := math.Abs(pairs[i].R)
			aj := math.Abs(pairs[j].R)
			if ai == aj {
				return pairs[i].A+pairs[i].B < pairs[j].A+pairs[j].B
			}
			return ai > aj
		})
		if len(pairs) > 10 {
			pairs = pairs[:10]
		}
		for _, p := range pairs {
			b.WriteString(fmt.Sprintf("- %s ~ %s: r=%.3f\n", p.A, p.B, p.R))
		}
	}
	if len(r.Samples) > 0 {
		b.WriteString("\n[HEAD ROWS]\n")
		b.WriteString("| Animal | Timestamp | Bin")
		for _, v := range r.vars {
			b.WriteString(" | ")
			b.WriteString(v)
		}
		b.WriteString(" |\n|---|---|---")
		for range r.vars {
			b.WriteString("|---")
		}
		b.WriteString("|\n")
		for _, row := range r.Samples {
			b.WriteString(fmt.Sprintf("| %s | %s | %d", row.Animal, row.Timestamp.Format("2006-01-02 15:04:05"), row.Bin))
			for _, x := range row.Values {
				if math.IsNaN(x) {
					b.WriteString(" | ")
					continue
				}
				b.WriteString(fmt.Sprintf(" | %.4g", x))
			}
			b.WriteString(" |\n")
		}
	}
	if len(r.Warnings) > 0 {
		b.WriteString("\n[NOTES]\n")
		for _, w := range r.Warnings {
			b.WriteString("- ")
			b.WriteString(w)
			b.WriteString("\n")
		}
	}
	return b.String()
}
