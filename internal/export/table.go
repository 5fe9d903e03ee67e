// Package export writes tables and reports to CSV, XLSX and HTML files.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"time"

	"github.com/TSE-Systems/tse-analytics-sub003/internal/model"
	"github.com/TSE-Systems/tse-analytics-sub003/internal/utils"
)

// TimestampLayout is used for timestamps in every output format.
const TimestampLayout = "2006-01-02 15:04:05"

// Columns returns the header of an exported table.
func Columns(t *model.Table) []string {
	cols := []string{"Timestamp", "Elapsed", "Animal", "Box", "Run", "Bin"}
	if t.LabelName != "" {
		cols = append(cols, t.LabelName)
	}
	cols = append(cols, t.Factors...)
	return append(cols, t.Variables...)
}

// cells returns one row as typed values: string, int, float64 or nil for a
// missing number.
func cells(t *model.Table, r *model.Row) []any {
	out := []any{r.Timestamp.Format(TimestampLayout), FormatElapsed(r.Elapsed), r.Animal, r.Box, r.Run, r.Bin}
	if t.LabelName != "" {
		out = append(out, r.Label)
	}
	for fi := range t.Factors {
		out = append(out, r.Level(fi))
	}
	for _, v := range r.Values {
		if math.IsNaN(v) {
			out = append(out, nil)
		} else {
			out = append(out, v)
		}
	}
	return out
}

// FormatElapsed renders d as H:MM:SS with unbounded hours.
func FormatElapsed(d time.Duration) string {
	neg := d < 0
	if neg {
		d = -d
	}
	h := int64(d / time.Hour)
	m := int64(d % time.Hour / time.Minute)
	s := int64(d % time.Minute / time.Second)
	out := fmt.Sprintf("%d:%02d:%02d", h, m, s)
	if neg {
		return "-" + out
	}
	return out
}

func csvCell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int:
		return strconv.Itoa(x)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	}
	return fmt.Sprint(v)
}

// CSVOptions configures WriteCSV. A zero Delimiter means ','.
type CSVOptions struct {
	Delimiter rune
}

// WriteCSV writes a header and one line per row. Missing numbers are empty.
func WriteCSV(w io.Writer, t *model.Table, opt CSVOptions) error {
	cw := csv.NewWriter(w)
	if opt.Delimiter != 0 {
		cw.Comma = opt.Delimiter
	}
	if err := cw.Write(Columns(t)); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	rec := make([]string, 0, len(t.Variables)+8)
	for i := range t.Rows {
		rec = rec[:0]
		for _, c := range cells(t, &t.Rows[i]) {
			rec = append(rec, csvCell(c))
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// CSVFile writes t to path through a temp file.
func CSVFile(path string, t *model.Table, opt CSVOptions) error {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, t, opt); err != nil {
		return err
	}
	return utils.SafeWriteFile(path, buf.Bytes())
}
