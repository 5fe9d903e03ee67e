package export_test

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/TSE-Systems/tse-analytics-sub003/internal/export"
	"github.com/TSE-Systems/tse-analytics-sub003/internal/model"
	"github.com/TSE-Systems/tse-analytics-sub003/internal/toolbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func binnedTable() *model.Table {
	start := time.Date(2024, 3, 1, 7, 0, 0, 0, time.UTC)
	return &model.Table{
		Variables: []string{"VO2", "Drink"},
		Factors:   []string{"Group"},
		LabelName: "Cycle",
		Rows: []model.Row{
			{Animal: "A1", Box: 1, Run: 1, Bin: 0, Timestamp: start, Label: "Light", Values: model.Values{0.85, 1.5}, Levels: []string{"Control"}},
			{Animal: "A1", Box: 1, Run: 1, Bin: 1, Timestamp: start.Add(12 * time.Hour), Elapsed: 12 * time.Hour, Label: "Dark", Values: model.Values{1.1, math.NaN()}, Levels: []string{"Control"}},
		},
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, export.WriteCSV(&buf, binnedTable(), export.CSVOptions{Delimiter: ';'}))
	want := "Timestamp;Elapsed;Animal;Box;Run;Bin;Cycle;Group;VO2;Drink\n" +
		"2024-03-01 07:00:00;0:00:00;A1;1;1;0;Light;Control;0.85;1.5\n" +
		"2024-03-01 19:00:00;12:00:00;A1;1;1;1;Dark;Control;1.1;\n"
	assert.Equal(t, want, buf.String())
}

func TestCSVFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "table.csv")
	require.NoError(t, export.CSVFile(path, binnedTable(), export.CSVOptions{}))
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), "Timestamp,Elapsed,Animal")

	// rewriting replaces the file and leaves no temp files behind
	require.NoError(t, export.CSVFile(path, binnedTable(), export.CSVOptions{Delimiter: ';'}))
	b, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), "Timestamp;Elapsed;Animal")
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestFormatElapsed(t *testing.T) {
	assert.Equal(t, "49:05:07", export.FormatElapsed(49*time.Hour+5*time.Minute+7*time.Second))
	assert.Equal(t, "-0:30:00", export.FormatElapsed(-30*time.Minute))
}

func TestXLSXFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.xlsx")
	require.NoError(t, export.XLSXFile(path, []export.Sheet{
		{Name: "Main", Table: binnedTable(), Units: map[string]string{"VO2": "ml/h"}},
		{Name: "Copy", Table: binnedTable()},
	}))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{"Main", "Copy"}, f.GetSheetList())

	rows, err := f.GetRows("Main")
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "VO2", rows[0][8])
	assert.Equal(t, "ml/h", rows[1][8])
	assert.Equal(t, "A1", rows[2][2])
	assert.Equal(t, "0.85", rows[2][8])

	assert.Error(t, export.XLSXFile(path, nil))
}

func TestXLSXTruncatesSheetNamesByRune(t *testing.T) {
	path := filepath.Join(t.TempDir(), "long.xlsx")
	name := strings.Repeat("é", 40)
	require.NoError(t, export.XLSXFile(path, []export.Sheet{{Name: name, Table: binnedTable()}}))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	sheets := f.GetSheetList()
	require.Len(t, sheets, 1)
	assert.Equal(t, strings.Repeat("é", 31), sheets[0])
	assert.True(t, utf8.ValidString(sheets[0]))
}

func TestReportFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.html")
	results := []toolbox.Result{
		{Status: toolbox.Active, Title: "A", Report: `<div class="report"><h2>A</h2></div>`},
		{Status: toolbox.Inactive, Title: "B", Reason: "too few groups"},
	}
	require.NoError(t, export.ReportFile(path, "Study <1>", results))
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	html := string(b)
	assert.Contains(t, html, "<!doctype html>")
	assert.Contains(t, html, `<div class="report"><h2>A</h2></div>`)
	assert.Contains(t, html, "Not available: too few groups")
	assert.Contains(t, html, "Study &lt;1&gt;")
}
