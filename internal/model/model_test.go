package model_test

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/TSE-Systems/tse-analytics-sub003/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func threeAnimals() *model.Dataset {
	ds := model.NewDataset("study")
	tab := model.NewTable("VO2")
	start := time.Date(2024, 3, 1, 7, 0, 0, 0, time.UTC)
	for i, id := range []string{"A1", "A2", "A3"} {
		ds.Animals[id] = model.NewAnimal(id, i+1)
		for k := 0; k < 2; k++ {
			tab.Rows = append(tab.Rows, model.Row{
				Animal: id, Box: i + 1, Run: 1,
				Timestamp: start.Add(time.Duration(k) * time.Hour),
				Values:    model.Values{float64(i + k)},
			})
		}
	}
	ds.AddTable(model.NewDatatable(model.MainTable, tab, nil, time.Hour))
	return ds
}

func TestSetFactorsBuildsActiveLevels(t *testing.T) {
	ds := threeAnimals()
	treatment := &model.Factor{Name: "Treatment", Levels: []model.FactorLevel{
		{Name: "Control", AnimalIDs: []string{"A1", "A2"}},
		{Name: "Treatment", AnimalIDs: []string{"A3"}},
	}}
	ds.SetFactors(map[string]*model.Factor{"Treatment": treatment})

	// the dataset holds its own copy
	treatment.Levels[0].AnimalIDs = nil
	assert.Equal(t, "Control", ds.Factors["Treatment"].LevelOf("A1"))

	dt, err := ds.DefaultTable()
	require.NoError(t, err)
	active := dt.Active()
	require.Equal(t, []string{"Treatment"}, active.Factors)
	want := map[string]string{"A1": "Control", "A2": "Control", "A3": "Treatment"}
	for _, r := range active.Rows {
		assert.Equal(t, want[r.Animal], r.Level(0))
	}

	// removing A3 from every level makes it NA
	ds.SetFactors(map[string]*model.Factor{"Treatment": {Name: "Treatment", Levels: []model.FactorLevel{
		{Name: "Control", AnimalIDs: []string{"A1", "A2"}},
	}}})
	for _, r := range dt.Active().Rows {
		if r.Animal == "A3" {
			assert.Equal(t, "", r.Level(0))
		}
	}

	ds.SetFactors(nil)
	assert.Empty(t, dt.Active().Factors)
	assert.Nil(t, dt.Active().Rows[0].Levels)
}

func TestFactorValidate(t *testing.T) {
	f := &model.Factor{Name: "Diet", Levels: []model.FactorLevel{
		{Name: "HFD", AnimalIDs: []string{"A1"}},
		{Name: "Chow", AnimalIDs: []string{"A1"}},
	}}
	assert.Error(t, f.Validate())
	f.Levels[1].AnimalIDs = []string{"A2"}
	assert.NoError(t, f.Validate())
	f.Levels[1].Name = "HFD"
	assert.Error(t, f.Validate())
	var nilFactor *model.Factor
	assert.Equal(t, "", nilFactor.LevelOf("A1"))
}

func TestSelectFiltersAnimalsAndVariables(t *testing.T) {
	ds := threeAnimals()
	require.NoError(t, ds.SetAnimalEnabled("A2", false))
	dt, err := ds.DefaultTable()
	require.NoError(t, err)

	sel, err := dt.Select(ds.EnabledAnimals(), "VO2")
	require.NoError(t, err)
	assert.Equal(t, []string{"A1", "A3"}, sel.Animals())

	_, err = dt.Select(nil, "RER")
	assert.ErrorIs(t, err, model.ErrVariableNotFound)
	assert.ErrorIs(t, ds.SetAnimalEnabled("Z9", true), model.ErrAnimalNotFound)
}

func TestValuesJSONUsesNullForNaN(t *testing.T) {
	b, err := json.Marshal(model.Values{1.5, math.NaN()})
	require.NoError(t, err)
	assert.JSONEq(t, `[1.5, null]`, string(b))

	var v model.Values
	require.NoError(t, json.Unmarshal([]byte(`[null, 2]`), &v))
	require.Len(t, v, 2)
	assert.True(t, math.IsNaN(v[0]))
	assert.Equal(t, 2.0, v[1])
}

func TestAggregationApply(t *testing.T) {
	vals := []float64{1, math.NaN(), 3, 8}
	assert.Equal(t, 4.0, model.AggregateMean.Apply(vals))
	assert.Equal(t, 3.0, model.AggregateMedian.Apply(vals))
	assert.Equal(t, 12.0, model.AggregateSum.Apply(vals))
	assert.True(t, math.IsNaN(model.AggregateSum.Apply([]float64{math.NaN()})))

	_, err := model.ParseAggregation("mode")
	assert.Error(t, err)
}

func TestAggregationResolve(t *testing.T) {
	assert.Equal(t, model.AggregateSum, model.AggregateAuto.Resolve(model.AggregateSum))
	assert.Equal(t, model.AggregateMean, model.AggregateAuto.Resolve(""))
	assert.Equal(t, model.AggregateMedian, model.AggregateMedian.Resolve(model.AggregateSum))

	a, err := model.ParseAggregation(" Auto ")
	require.NoError(t, err)
	assert.Equal(t, model.AggregateAuto, a)
}

func TestNewVariableGuessesAggregation(t *testing.T) {
	assert.Equal(t, model.AggregateSum, model.NewVariable("Drink1", "ml").Aggregation)
	assert.Equal(t, model.AggregateSum, model.NewVariable("Feed", "g").Aggregation)
	assert.Equal(t, model.AggregateMean, model.NewVariable("VO2", "ml/h").Aggregation)
}

func TestTimeOfDay(t *testing.T) {
	tod, err := model.ParseTimeOfDay("19:30")
	require.NoError(t, err)
	assert.Equal(t, "19:30", tod.String())
	assert.Equal(t, model.TimeOfDay(8*time.Hour), model.Of(time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)))

	b, err := json.Marshal(struct{ T model.TimeOfDay }{tod})
	require.NoError(t, err)
	assert.JSONEq(t, `{"T":"19:30"}`, string(b))

	_, err = model.ParseTimeOfDay("7pm")
	assert.Error(t, err)
}

func TestBinningSettingsValidate(t *testing.T) {
	s := model.DefaultBinningSettings()
	assert.NoError(t, s.Validate())
	s.Interval.Delta = 0
	assert.Error(t, s.Validate())

	s = model.DefaultBinningSettings()
	s.Mode = model.BinPhases
	assert.Error(t, s.Validate())
	s.Phases = []model.TimePhase{{Name: "Baseline", Start: 0}}
	assert.NoError(t, s.Validate())
}
