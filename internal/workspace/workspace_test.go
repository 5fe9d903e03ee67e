package workspace_test

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/TSE-Systems/tse-analytics-sub003/internal/model"
	"github.com/TSE-Systems/tse-analytics-sub003/internal/workspace"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDataset(name string) *model.Dataset {
	ds := model.NewDataset(name)
	start := time.Date(2024, 3, 1, 7, 0, 0, 0, time.UTC)
	tab := model.NewTable("VO2")
	for i, id := range []string{"A1", "A2"} {
		ds.Animals[id] = model.NewAnimal(id, i+1)
		tab.Rows = append(tab.Rows,
			model.Row{Animal: id, Box: i + 1, Run: 1, Timestamp: start, Values: model.Values{1 + float64(i)}},
			model.Row{Animal: id, Box: i + 1, Run: 1, Timestamp: start.Add(time.Hour), Elapsed: time.Hour, Bin: 1, Values: model.Values{math.NaN()}},
		)
	}
	ds.AddTable(model.NewDatatable(model.MainTable, tab, nil, time.Hour))
	ds.SetFactors(map[string]*model.Factor{
		"Diet": {Name: "Diet", Levels: []model.FactorLevel{{Name: "HFD", AnimalIDs: []string{"A1"}}}},
	})
	return ds
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ws", workspace.FileName)
	w := workspace.New("study")
	ds := sampleDataset("run1")
	w.Add(ds)
	require.NoError(t, w.SaveAs(path))
	assert.Equal(t, path, w.Path())

	got, err := workspace.Load(path)
	require.NoError(t, err)
	assert.Equal(t, workspace.FormatVersion, got.FormatVersion)
	assert.Equal(t, "study", got.Name)

	loaded, err := got.Find("run1")
	require.NoError(t, err)
	assert.Equal(t, ds.ID, loaded.ID)
	dt, err := loaded.DefaultTable()
	require.NoError(t, err)
	assert.Equal(t, time.Hour, dt.SamplingInterval)
	require.Equal(t, 4, dt.Original.Len())
	assert.True(t, math.IsNaN(dt.Original.Rows[1].Values[0]))

	active := dt.Active()
	assert.Equal(t, []string{"Diet"}, active.Factors)
	for _, r := range active.Rows {
		if r.Animal == "A1" {
			assert.Equal(t, "HFD", r.Level(0))
		} else {
			assert.Equal(t, "", r.Level(0), "A2 is unassigned")
		}
	}
}

func TestLoadRejectsUnknownVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ws.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"format_version": 99, "name": "x"}`), 0o644))
	_, err := workspace.Load(path)
	assert.ErrorIs(t, err, workspace.ErrUnsupportedVersion)

	require.NoError(t, os.WriteFile(path, []byte(`{"name": "x"}`), 0o644))
	_, err = workspace.Load(path)
	assert.ErrorIs(t, err, workspace.ErrUnsupportedVersion)

	_, err = workspace.Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestFindAndRemove(t *testing.T) {
	w := workspace.New("study")
	a, b := sampleDataset("same"), sampleDataset("same")
	w.Add(a)
	w.Add(b)

	_, err := w.Find("same")
	assert.ErrorIs(t, err, workspace.ErrAmbiguousDataset)
	got, err := w.Find(a.ID[:13])
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)

	require.NoError(t, w.Remove(a.ID))
	assert.ErrorIs(t, w.Remove(a.ID), workspace.ErrDatasetNotFound)
	assert.Len(t, w.List(), 1)

	assert.ErrorIs(t, workspace.New("x").Save(), workspace.ErrNoPath)
}
