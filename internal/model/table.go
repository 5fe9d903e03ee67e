package model

import (
	"bytes"
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"time"
)

// Values holds one row's numeric columns. NaN marks a missing value and is
// encoded as JSON null.
type Values []float64

func (v Values) MarshalJSON() ([]byte, error) {
	var b bytes.Buffer
	b.WriteByte('[')
	for i, x := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		if math.IsNaN(x) || math.IsInf(x, 0) {
			b.WriteString("null")
			continue
		}
		b.WriteString(strconv.FormatFloat(x, 'g', -1, 64))
	}
	b.WriteByte(']')
	return b.Bytes(), nil
}

func (v *Values) UnmarshalJSON(data []byte) error {
	var raw []*float64
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Values, len(raw))
	for i, p := range raw {
		if p == nil {
			out[i] = math.NaN()
			continue
		}
		out[i] = *p
	}
	*v = out
	return nil
}

// Row is one (animal, timestamp) measurement, or one aggregated bin after
// binning. Levels is aligned with Table.Factors; "" means NA.
type Row struct {
	Animal    string        `json:"animal"`
	Box       int           `json:"box,omitempty"`
	Run       int           `json:"run"`
	Bin       int           `json:"bin"`
	Timestamp time.Time     `json:"timestamp"`
	Elapsed   time.Duration `json:"elapsed"`
	Label     string        `json:"label,omitempty"`
	Values    Values        `json:"values"`
	Levels    []string      `json:"levels,omitempty"`
}

// Table is a row-per-measurement table with named numeric and factor columns.
type Table struct {
	Variables []string `json:"variables"`
	Factors   []string `json:"factors,omitempty"`
	// LabelName names the Row.Label column ("Cycle", "Phase") when set.
	LabelName string `json:"label_name,omitempty"`
	Rows      []Row  `json:"rows"`
}

// NewTable returns an empty table with the given variable columns.
func NewTable(variables ...string) *Table {
	return &Table{Variables: append([]string(nil), variables...)}
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// VariableIndex returns the column index of name, or -1.
func (t *Table) VariableIndex(name string) int {
	for i, v := range t.Variables {
		if v == name {
			return i
		}
	}
	return -1
}

// FactorIndex returns the factor column index of name, or -1.
func (t *Table) FactorIndex(name string) int {
	for i, f := range t.Factors {
		if f == name {
			return i
		}
	}
	return -1
}

// Level returns the row's level for the factor at index fi, or "" when unset.
func (r *Row) Level(fi int) string {
	if fi < 0 || fi >= len(r.Levels) {
		return ""
	}
	return r.Levels[fi]
}

// Clone returns a deep copy of the row.
func (r Row) Clone() Row {
	r.Values = append(Values(nil), r.Values...)
	if r.Levels != nil {
		r.Levels = append([]string(nil), r.Levels...)
	}
	return r
}

// Clone returns a deep copy of the table.
func (t *Table) Clone() *Table {
	if t == nil {
		return nil
	}
	c := &Table{
		Variables: append([]string(nil), t.Variables...),
		Factors:   append([]string(nil), t.Factors...),
		LabelName: t.LabelName,
		Rows:      make([]Row, len(t.Rows)),
	}
	for i, r := range t.Rows {
		c.Rows[i] = r.Clone()
	}
	return c
}

// Start returns the earliest timestamp in the table.
func (t *Table) Start() time.Time {
	var start time.Time
	for i, r := range t.Rows {
		if i == 0 || r.Timestamp.Before(start) {
			start = r.Timestamp
		}
	}
	return start
}

// End returns the latest timestamp in the table.
func (t *Table) End() time.Time {
	var end time.Time
	for i, r := range t.Rows {
		if i == 0 || r.Timestamp.After(end) {
			end = r.Timestamp
		}
	}
	return end
}

// SortByTime orders rows by timestamp, then animal, stably.
func (t *Table) SortByTime() {
	sort.SliceStable(t.Rows, func(i, j int) bool {
		a, b := t.Rows[i], t.Rows[j]
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.Before(b.Timestamp)
		}
		return a.Animal < b.Animal
	})
}

// Animals returns the distinct animal IDs in the table, sorted.
func (t *Table) Animals() []string {
	seen := map[string]bool{}
	var out []string
	for _, r := range t.Rows {
		if r.Animal != "" && !seen[r.Animal] {
			seen[r.Animal] = true
			out = append(out, r.Animal)
		}
	}
	sort.Strings(out)
	return out
}

// Project returns a copy limited to the named variables, in the given order.
// Unknown names are skipped.
func (t *Table) Project(variables []string) *Table {
	idx := make([]int, 0, len(variables))
	names := make([]string, 0, len(variables))
	for _, v := range variables {
		if i := t.VariableIndex(v); i >= 0 {
			idx = append(idx, i)
			names = append(names, v)
		}
	}
	out := &Table{
		Variables: names,
		Factors:   append([]string(nil), t.Factors...),
		LabelName: t.LabelName,
		Rows:      make([]Row, len(t.Rows)),
	}
	for i, r := range t.Rows {
		nr := r.Clone()
		nr.Values = make(Values, len(idx))
		for j, k := range idx {
			nr.Values[j] = r.Values[k]
		}
		out.Rows[i] = nr
	}
	return out
}

// Filter returns a copy containing only rows for which keep returns true.
func (t *Table) Filter(keep func(Row) bool) *Table {
	out := &Table{
		Variables: append([]string(nil), t.Variables...),
		Factors:   append([]string(nil), t.Factors...),
		LabelName: t.LabelName,
	}
	for _, r := range t.Rows {
		if keep(r) {
			out.Rows = append(out.Rows, r.Clone())
		}
	}
	return out
}
