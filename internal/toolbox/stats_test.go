package toolbox

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShapiroWilk(t *testing.T) {
	res, err := ShapiroWilk([]float64{1, 2, 3})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, res.W, 1e-9)
	assert.InDelta(t, 1.0, res.P, 1e-9)

	res, err = ShapiroWilk([]float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10})
	require.NoError(t, err)
	assert.InDelta(t, 0.970, res.W, 0.005)
	assert.Greater(t, res.P, 0.5)

	skewed := []float64{1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 2, 2, 2, 3, 50}
	res, err = ShapiroWilk(skewed)
	require.NoError(t, err)
	assert.Less(t, res.P, 0.01)

	_, err = ShapiroWilk([]float64{1, 2})
	assert.ErrorIs(t, err, errDegenerate)
	_, err = ShapiroWilk([]float64{4, 4, 4, 4})
	assert.ErrorIs(t, err, errDegenerate)
}

func TestOneWayANOVA(t *testing.T) {
	a, err := OneWayANOVA([][]float64{{1, 2, 3}, {4, 5, 6}})
	require.NoError(t, err)
	assert.InDelta(t, 13.5, a.SSBetween, 1e-9)
	assert.InDelta(t, 4.0, a.SSWithin, 1e-9)
	assert.InDelta(t, 13.5, a.F, 1e-9)
	assert.Equal(t, 1.0, a.DF1)
	assert.Equal(t, 4.0, a.DF2)
	assert.InDelta(t, 0.0213, a.P, 0.001)
	assert.InDelta(t, 13.5/17.5, a.EtaSq, 1e-9)

	_, err = OneWayANOVA([][]float64{{1, 2}, {}})
	assert.ErrorIs(t, err, errDegenerate)
}

func TestWelchANOVADetectsShift(t *testing.T) {
	g1 := []float64{1.0, 1.2, 0.9, 1.1, 1.05}
	g2 := []float64{3.0, 4.5, 2.5, 5.0, 3.8}
	w, err := WelchANOVA([][]float64{g1, g2})
	require.NoError(t, err)
	assert.Greater(t, w.F, 10.0)
	assert.Less(t, w.P, 0.01)
	assert.Less(t, w.DF2, 8.0, "welch df shrinks with unequal variances")

	_, err = WelchANOVA([][]float64{{1, 1, 1}, {2, 3, 4}})
	assert.ErrorIs(t, err, errDegenerate)
}

func TestLeveneEqualSpread(t *testing.T) {
	f, err := Levene([][]float64{{1, 2, 3, 4}, {11, 12, 13, 14}})
	require.NoError(t, err)
	assert.InDelta(t, 0, f.F, 1e-9)
	assert.InDelta(t, 1, f.P, 1e-9)
}

func TestPTukey(t *testing.T) {
	// two means: the range is |Z1-Z2|, so q/sqrt(2) follows Student's t
	for _, c := range []struct{ q, df float64 }{{3, 10}, {2.5, 30}, {1, 4}} {
		want := 1 - tTwoSided(c.q/math.Sqrt2, c.df)
		assert.InDelta(t, want, PTukey(c.q, 2, c.df), 1e-5, "q=%v df=%v", c.q, c.df)
	}

	// upper 5% points of the studentized range
	assert.InDelta(t, 0.95, PTukey(3.877, 3, 10), 1e-3)
	assert.InDelta(t, 0.95, PTukey(3.958, 4, 20), 1e-3)
	assert.InDelta(t, 0.95, PTukey(3.314, 3, 1e6), 1e-3)
	assert.InDelta(t, 0.99, PTukey(5.270, 3, 10), 1e-3)

	assert.Equal(t, 0.0, PTukey(0, 3, 10))
	assert.True(t, math.IsNaN(PTukey(1, 1, 10)))
	assert.True(t, math.IsNaN(PTukey(1, 3, 1)))
}

func TestTukeyHSD(t *testing.T) {
	// with two groups Tukey HSD reduces to the pooled t-test
	a, err := OneWayANOVA([][]float64{{1, 2, 3}, {4, 5, 6}})
	require.NoError(t, err)
	pairs, err := TukeyHSD([]string{"a", "b"}, [][]float64{{1, 2, 3}, {4, 5, 6}}, 0.05)
	require.NoError(t, err)
	require.Len(t, pairs, 1)
	assert.InDelta(t, -3, pairs[0].Diff, 1e-12)
	assert.InDelta(t, 3*math.Sqrt(3), pairs[0].Q, 1e-9)
	assert.Equal(t, 4.0, pairs[0].DF)
	assert.InDelta(t, a.P, pairs[0].P, 1e-5)
	assert.True(t, pairs[0].Reject)

	names := []string{"a", "b", "c"}
	groups := [][]float64{{1, 2, 3}, {1.1, 2.1, 2.9}, {10, 11, 12}}
	pairs, err = TukeyHSD(names, groups, 0.05)
	require.NoError(t, err)
	require.Len(t, pairs, 3)
	assert.Equal(t, "a", pairs[0].A)
	assert.Equal(t, "b", pairs[0].B)
	assert.False(t, pairs[0].Reject)
	assert.Greater(t, pairs[0].P, 0.9)
	assert.True(t, pairs[1].Reject)
	assert.True(t, pairs[2].Reject)
}

func TestGamesHowell(t *testing.T) {
	// with two groups Games-Howell reduces to Welch's t-test
	g1 := []float64{1.0, 1.2, 0.9, 1.1, 1.05}
	g2 := []float64{3.0, 4.5, 2.5, 5.0, 3.8}
	w, err := WelchANOVA([][]float64{g1, g2})
	require.NoError(t, err)
	pairs, err := GamesHowell([]string{"low", "high"}, [][]float64{g1, g2}, 0.05)
	require.NoError(t, err)
	require.Len(t, pairs, 1)
	assert.InDelta(t, w.DF2, pairs[0].DF, 1e-9)
	assert.InDelta(t, w.P, pairs[0].P, 1e-5)
	assert.True(t, pairs[0].Reject)

	g3 := []float64{1.1, 0.8, 1.3, 0.95, 1.0}
	pairs, err = GamesHowell([]string{"low", "high", "other"}, [][]float64{g1, g2, g3}, 0.05)
	require.NoError(t, err)
	require.Len(t, pairs, 3)
	assert.True(t, pairs[0].Reject)
	assert.False(t, pairs[1].Reject, "low vs other")

	_, err = GamesHowell([]string{"a", "b"}, [][]float64{{1}, {2, 3}}, 0.05)
	assert.ErrorIs(t, err, errDegenerate)
}

func TestCorrelation(t *testing.T) {
	x := []float64{1, 2, 3, 4, 5}
	y := []float64{2, 4, 6, 8, 10}
	r, err := Pearson(x, y)
	require.NoError(t, err)
	assert.InDelta(t, 1, r.R, 1e-12)
	assert.InDelta(t, 0, r.P, 1e-9)

	s, err := Spearman(x, []float64{1, 4, 9, 16, 100})
	require.NoError(t, err)
	assert.InDelta(t, 1, s.R, 1e-12)

	assert.Equal(t, []float64{1, 2.5, 2.5, 4}, ranks([]float64{1, 2, 2, 3}))

	_, err = Pearson([]float64{1, 1, 1}, []float64{1, 2, 3})
	assert.ErrorIs(t, err, errDegenerate)
}

func TestLinearRegression(t *testing.T) {
	x := []float64{0, 1, 2, 3, 4}
	y := []float64{2, 5, 8, 11, 14}
	fit, err := LinearRegression(x, y)
	require.NoError(t, err)
	assert.InDelta(t, 2, fit.Intercept, 1e-9)
	assert.InDelta(t, 3, fit.Slope, 1e-9)
	assert.InDelta(t, 1, fit.RSquared, 1e-9)

	noisy := []float64{2.1, 4.8, 8.3, 10.7, 14.2}
	fit, err = LinearRegression(x, noisy)
	require.NoError(t, err)
	assert.Less(t, fit.P, 0.001)
	assert.False(t, math.IsNaN(fit.SlopeSE))
}

func TestDescribe(t *testing.T) {
	d := describe([]float64{4, 1, 3, 2})
	assert.Equal(t, 4, d.N)
	assert.InDelta(t, 2.5, d.Mean, 1e-12)
	assert.InDelta(t, 2.5, d.Median, 1e-12)
	assert.Equal(t, 1.0, d.Min)
	assert.Equal(t, 4.0, d.Max)
	assert.True(t, math.IsNaN(describe(nil).Mean))
}
