package parser_test

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/TSE-Systems/tse-analytics-sub003/internal/model"
	"github.com/TSE-Systems/tse-analytics-sub003/internal/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

const sectioned = `PhenoMaster Export
Experiment;Diet study
Operator;lab-2

Box;Animal;Weight
1;A1;24,5
2;A2;25,1
3;A3;23,9

Sample Interval;00:10

Group;Animal
Control;A1
Control;A2
Treatment;A3

Date;Time;Animal;Box;VO2;Drink
;;;;[ml/h];[ml]
01.03.2024;07:00;A1;1;0,85;0,1
01.03.2024;07:00;A2;2;0,90;0,2
01.03.2024;07:00;A3;3;1,10;-
01.03.2024;07:10;A1;1;0,80;0,3
01.03.2024;07:10;A2;2;0,95;0,1
01.03.2024;07:10;A3;3;1,20;0,4
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestImportSectionedCSV(t *testing.T) {
	path := writeFile(t, "diet.csv", sectioned)

	ds, err := parser.ImportFile(path, parser.Options{})
	require.NoError(t, err)

	assert.Equal(t, "diet", ds.Name)
	assert.Equal(t, "PhenoMaster Export", ds.Metadata["title"])
	assert.Equal(t, "Diet study", ds.Metadata["Experiment"])
	assert.Equal(t, path, ds.Metadata["source"])

	require.Len(t, ds.Animals, 3)
	a2, err := ds.Animal("A2")
	require.NoError(t, err)
	assert.Equal(t, 2, a2.Box)
	assert.Equal(t, "25,1", a2.Properties["Weight"])

	dt, err := ds.DefaultTable()
	require.NoError(t, err)
	assert.Equal(t, model.MainTable, dt.Name)
	assert.Equal(t, 10*time.Minute, dt.SamplingInterval)
	assert.Equal(t, []string{"VO2", "Drink"}, dt.Original.Variables)
	assert.Equal(t, "ml/h", dt.Variables["VO2"].Unit)
	assert.Equal(t, model.AggregateSum, dt.Variables["Drink"].Aggregation)

	tab := dt.Original
	require.Equal(t, 6, tab.Len())
	assert.InDelta(t, 0.85, tab.Rows[0].Values[0], 1e-9)
	assert.Equal(t, time.Date(2024, 3, 1, 7, 0, 0, 0, time.UTC), tab.Rows[0].Timestamp)
	assert.True(t, math.IsNaN(tab.Rows[2].Values[1]), "dash is missing")
	last := tab.Rows[tab.Len()-1]
	assert.Equal(t, 10*time.Minute, last.Elapsed)
	assert.Equal(t, 1, last.Bin)
	assert.Equal(t, 1, last.Run)

	f, err := ds.Factor(parser.GroupFactor)
	require.NoError(t, err)
	assert.Equal(t, []string{"Control", "Treatment"}, f.LevelNames())

	active := dt.Active()
	require.Equal(t, []string{parser.GroupFactor}, active.Factors)
	for _, r := range active.Rows {
		want := "Control"
		if r.Animal == "A3" {
			want = "Treatment"
		}
		assert.Equal(t, want, r.Level(0), r.Animal)
	}
}

func TestImportDetectsTabDelimiterAndUnknownAnimals(t *testing.T) {
	content := "DateTime\tAnimal\tVO2 (ml/h)\n" +
		"2024-03-01 07:00\tX9\t1.5\n" +
		"2024-03-01 07:05\tX9\t1.7\n"
	path := writeFile(t, "plain.tsv", content)

	ds, err := parser.ImportFile(path, parser.Options{})
	require.NoError(t, err)
	require.Contains(t, ds.Animals, "X9")
	dt, err := ds.DefaultTable()
	require.NoError(t, err)
	assert.Equal(t, "ml/h", dt.Variables["VO2"].Unit)
	assert.Equal(t, 5*time.Minute, dt.SamplingInterval, "inferred from timestamps")
}

func TestImportErrors(t *testing.T) {
	_, err := parser.ImportFile(writeFile(t, "x.pdf", "nope"), parser.Options{})
	assert.ErrorIs(t, err, parser.ErrUnsupported)

	_, err = parser.ImportFile(writeFile(t, "nodata.csv", "Title\nKey;Value\n"), parser.Options{})
	assert.ErrorIs(t, err, parser.ErrNoData)

	bad := "Date;Time;Animal;VO2\n01.03.2024;07:00;A1;1\nnot-a-date;07:10;A1;2\n"
	_, err = parser.ImportFile(writeFile(t, "bad.csv", bad), parser.Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid timestamp")
}

func TestImportXLSX(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	rows := [][]any{
		{"Date", "Time", "Animal", "Box", "RER"},
		{"01.03.2024", "07:00", "B1", "1", "0.91"},
		{"01.03.2024", "07:30", "B1", "1", "0.93"},
	}
	for i, r := range rows {
		cellName, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cellName, &r))
	}
	path := filepath.Join(t.TempDir(), "run.xlsx")
	require.NoError(t, f.SaveAs(path))

	ds, err := parser.ImportFile(path, parser.Options{})
	require.NoError(t, err)
	dt, err := ds.DefaultTable()
	require.NoError(t, err)
	assert.Equal(t, 2, dt.Original.Len())
	assert.Equal(t, 30*time.Minute, dt.SamplingInterval)
	assert.Equal(t, sheet, ds.Metadata["sheet"])
}
