package binning_test

import (
	"testing"
	"time"

	"github.com/TSE-Systems/tse-analytics-sub003/internal/binning"
	"github.com/TSE-Systems/tse-analytics-sub003/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var start = time.Date(2024, 3, 1, 6, 0, 0, 0, time.UTC)

// sampled returns n rows per animal every step, value = sample index.
func sampled(step time.Duration, n int, animals ...string) *model.Table {
	t := model.NewTable("VO2")
	for a, id := range animals {
		for i := 0; i < n; i++ {
			d := time.Duration(i) * step
			t.Rows = append(t.Rows, model.Row{
				Animal: id, Box: a + 1, Run: 1,
				Timestamp: start.Add(d), Elapsed: d,
				Values: model.Values{float64(i)},
			})
		}
	}
	return t
}

func TestIntervalAtSamplingRateKeepsRows(t *testing.T) {
	in := sampled(30*time.Minute, 6, "A1", "A2")
	out, err := binning.IntervalOperator{Width: 30 * time.Minute, Operation: model.AggregateMean}.Process(in)
	require.NoError(t, err)
	require.Equal(t, in.Len(), out.Len())
	for i, r := range out.Rows {
		assert.Equal(t, in.Rows[i].Values[0], r.Values[0])
		assert.Equal(t, in.Rows[i].Timestamp, r.Timestamp)
	}
}

func TestIntervalAggregates(t *testing.T) {
	in := sampled(30*time.Minute, 4, "A1")
	mean, err := binning.IntervalOperator{Width: time.Hour, Operation: model.AggregateMean}.Process(in)
	require.NoError(t, err)
	require.Equal(t, 2, mean.Len())
	assert.Equal(t, 0.5, mean.Rows[0].Values[0])
	assert.Equal(t, 2.5, mean.Rows[1].Values[0])
	assert.Equal(t, time.Hour, mean.Rows[1].Elapsed)
	assert.Equal(t, start.Add(time.Hour), mean.Rows[1].Timestamp)
	assert.Equal(t, 1, mean.Rows[1].Box)

	sum, err := binning.IntervalOperator{Width: time.Hour, Operation: model.AggregateSum}.Process(in)
	require.NoError(t, err)
	assert.Equal(t, 5.0, sum.Rows[1].Values[0])

	_, err = binning.IntervalOperator{}.Process(in)
	assert.Error(t, err)
}

func TestAutoOperationUsesVariablePolicies(t *testing.T) {
	in := model.NewTable("VO2", "Drink")
	for i := 0; i < 4; i++ {
		d := time.Duration(i) * 30 * time.Minute
		in.Rows = append(in.Rows, model.Row{
			Animal: "A1", Box: 1, Run: 1, Timestamp: start.Add(d), Elapsed: d,
			Values: model.Values{float64(i), 0.1},
		})
	}
	policies := map[string]model.Aggregation{"VO2": model.AggregateMean, "Drink": model.AggregateSum}
	s := model.DefaultBinningSettings()
	s.Apply = true

	out, err := binning.Apply(in, s, policies)
	require.NoError(t, err)
	require.Equal(t, 2, out.Len())
	for _, r := range out.Rows {
		assert.InDelta(t, 0.2, r.Values[1], 1e-12, "drink is summed per hour")
	}
	assert.Equal(t, 0.5, out.Rows[0].Values[0])

	s.Operation = model.AggregateMean
	out, err = binning.Apply(in, s, policies)
	require.NoError(t, err)
	assert.InDelta(t, 0.1, out.Rows[0].Values[1], 1e-12, "explicit operation overrides the policy")
}

func TestCycleClassify(t *testing.T) {
	op := binning.CycleOperator{LightStart: model.TimeOfDay(7 * time.Hour), DarkStart: model.TimeOfDay(19 * time.Hour)}
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, binning.LabelLight, op.Classify(day.Add(8*time.Hour)))
	assert.Equal(t, binning.LabelDark, op.Classify(day.Add(20*time.Hour)))
	assert.Equal(t, binning.LabelLight, op.Classify(day.Add(7*time.Hour)))
	assert.Equal(t, binning.LabelDark, op.Classify(day.Add(19*time.Hour)))

	wrap := binning.CycleOperator{LightStart: model.TimeOfDay(20 * time.Hour), DarkStart: model.TimeOfDay(8 * time.Hour)}
	assert.Equal(t, binning.LabelLight, wrap.Classify(day.Add(2*time.Hour)))
	assert.Equal(t, binning.LabelDark, wrap.Classify(day.Add(12*time.Hour)))
}

func TestCycleProcess(t *testing.T) {
	// 06:00 .. 21:00 hourly: 06 is dark, 07-18 light, 19-21 dark
	in := sampled(time.Hour, 16, "A1")
	s := model.DefaultBinningSettings()
	s.Apply = true
	s.Mode = model.BinCycles
	out, err := binning.Apply(in, s, nil)
	require.NoError(t, err)
	assert.Equal(t, "Cycle", out.LabelName)
	require.Equal(t, 2, out.Len())
	assert.Equal(t, binning.LabelLight, out.Rows[0].Label)
	assert.Equal(t, 6.5, out.Rows[0].Values[0])
	assert.Equal(t, binning.LabelDark, out.Rows[1].Label)
	assert.Equal(t, start, out.Rows[1].Timestamp, "earliest dark sample")
}

func TestPhasesDropRowsBeforeFirstPhase(t *testing.T) {
	in := sampled(time.Hour, 6, "A1")
	op := binning.PhaseOperator{
		Operation: model.AggregateMean,
		Phases: []model.TimePhase{
			{Name: "Treatment", Start: 4 * time.Hour},
			{Name: "Baseline", Start: 2 * time.Hour},
		},
	}
	out, err := op.Process(in)
	require.NoError(t, err)
	require.Equal(t, 2, out.Len())
	assert.Equal(t, "Baseline", out.Rows[0].Label)
	assert.Equal(t, 2.5, out.Rows[0].Values[0])
	assert.Equal(t, "Treatment", out.Rows[1].Label)
	assert.Equal(t, 4*time.Hour, out.Rows[1].Elapsed)

	_, _, ok := op.Assign(time.Hour)
	assert.False(t, ok)
	idx, name, ok := op.Assign(5 * time.Hour)
	assert.True(t, ok)
	assert.Equal(t, 1, idx)
	assert.Equal(t, out.Rows[1].Label, name, "Assign and Process agree")
}

func TestFactorGroupingDropsNA(t *testing.T) {
	in := sampled(time.Hour, 2, "A1", "A2", "A3")
	in.Factors = []string{"Group"}
	levels := map[string]string{"A1": "Control", "A2": "Control", "A3": ""}
	for i := range in.Rows {
		in.Rows[i].Levels = []string{levels[in.Rows[i].Animal]}
	}
	op := binning.IntervalOperator{
		Width:     time.Hour,
		Operation: model.AggregateMean,
		Grouping:  binning.Grouping{Mode: model.GroupByFactor, Factor: "Group"},
	}
	out, err := op.Process(in)
	require.NoError(t, err)
	require.Equal(t, 2, out.Len())
	for _, r := range out.Rows {
		assert.Equal(t, "Control", r.Level(0))
		assert.Empty(t, r.Animal)
	}

	op.Grouping.Factor = "Diet"
	_, err = op.Process(in)
	assert.ErrorIs(t, err, model.ErrFactorNotFound)
}

func TestApplyDisabledReturnsInput(t *testing.T) {
	in := sampled(time.Hour, 3, "A1")
	out, err := binning.Apply(in, model.DefaultBinningSettings(), nil)
	require.NoError(t, err)
	assert.Same(t, in, out)
}
