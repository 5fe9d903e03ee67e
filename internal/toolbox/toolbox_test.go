package toolbox_test

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/TSE-Systems/tse-analytics-sub003/internal/model"
	"github.com/TSE-Systems/tse-analytics-sub003/internal/toolbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// groupTable builds four animals in two factor levels with a clear shift in
// VO2 between levels and RER roughly proportional to VO2.
func groupTable() *model.Table {
	t := &model.Table{Variables: []string{"VO2", "RER"}, Factors: []string{"Group"}}
	start := time.Date(2024, 3, 1, 7, 0, 0, 0, time.UTC)
	animals := []struct {
		id, level string
		base      float64
	}{
		{"A1", "Control", 1.0}, {"A2", "Control", 1.1},
		{"A3", "Treatment", 2.0}, {"A4", "Treatment", 2.2},
	}
	for i := 0; i < 6; i++ {
		for _, a := range animals {
			v := a.base + 0.05*float64(i%3)
			t.Rows = append(t.Rows, model.Row{
				Animal:    a.id,
				Run:       1,
				Timestamp: start.Add(time.Duration(i) * 10 * time.Minute),
				Values:    model.Values{v, 0.7 + 0.1*v + 0.001*float64(i)},
				Levels:    []string{a.level},
			})
		}
	}
	// one unassigned animal is dropped from factor splits
	t.Rows = append(t.Rows, model.Row{Animal: "A5", Run: 1, Values: model.Values{9, 0.9}, Levels: []string{""}})
	return t
}

func TestOneWayANOVAProcessor(t *testing.T) {
	res := toolbox.OneWayANOVAProcessor(nil, groupTable(), toolbox.Params{
		Variable: "VO2", Split: toolbox.SplitFactors, Factor: "Group",
	})
	require.True(t, res.IsActive(), res.Reason)
	assert.Contains(t, res.Report, "data:image/png;base64,")
	assert.Contains(t, res.Report, "Shapiro-Wilk")
	assert.Contains(t, res.Report, "Control")
	assert.Contains(t, res.Report, "Treatment")
	assert.NotContains(t, res.Report, "A5")
	assert.True(t, strings.Contains(res.Report, "Tukey HSD") || strings.Contains(res.Report, "Games-Howell"))
}

func TestOneWayANOVAProcessorInactive(t *testing.T) {
	tab := groupTable()
	cases := map[string]toolbox.Params{
		"missing variable": {Variable: "Nope", Split: toolbox.SplitFactors, Factor: "Group"},
		"unknown factor":   {Variable: "VO2", Split: toolbox.SplitFactors, Factor: "Diet"},
		"no split":         {Variable: "VO2", Split: toolbox.SplitNone},
		"single group":     {Variable: "VO2", Split: toolbox.SplitRuns},
	}
	for name, p := range cases {
		t.Run(name, func(t *testing.T) {
			res := toolbox.OneWayANOVAProcessor(nil, tab, p)
			assert.Equal(t, toolbox.Inactive, res.Status)
			assert.NotEmpty(t, res.Reason)
			assert.Empty(t, res.Report)
		})
	}
}

func TestCorrelationAndRegressionProcessors(t *testing.T) {
	tab := groupTable()
	p := toolbox.Params{Variable: "RER", Covariate: "VO2"}

	res := toolbox.CorrelationProcessor(nil, tab, p)
	require.True(t, res.IsActive(), res.Reason)
	assert.Contains(t, res.Report, "Pearson")
	assert.Contains(t, res.Report, "Spearman")

	res = toolbox.RegressionProcessor(nil, tab, p)
	require.True(t, res.IsActive(), res.Reason)
	assert.Contains(t, res.Report, "R²")

	res = toolbox.CorrelationProcessor(nil, tab, toolbox.Params{Variable: "RER"})
	assert.False(t, res.IsActive())
}

func TestDistributionHistogramNormality(t *testing.T) {
	tab := groupTable().Filter(func(r model.Row) bool { return r.Animal != "A5" })
	tab.Rows[0].Values[0] = math.NaN()

	for _, name := range toolbox.Names() {
		if name == "anova" || name == "correlation" || name == "regression" {
			continue
		}
		res, err := toolbox.Run(name, nil, tab, toolbox.Params{Variable: "VO2", Split: toolbox.SplitAnimals, Bins: 5})
		require.NoError(t, err)
		assert.True(t, res.IsActive(), "%s: %s", name, res.Reason)
		assert.Contains(t, res.Report, "<img", name)
	}

	_, err := toolbox.Run("pca", nil, tab, toolbox.Params{})
	assert.Error(t, err)
}

func TestParseSplit(t *testing.T) {
	s, err := toolbox.ParseSplit("Factor")
	require.NoError(t, err)
	assert.Equal(t, toolbox.SplitFactors, s)
	s, err = toolbox.ParseSplit("")
	require.NoError(t, err)
	assert.Equal(t, toolbox.SplitNone, s)
	_, err = toolbox.ParseSplit("cages")
	assert.Error(t, err)
}
