package toolbox

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/TSE-Systems/tse-analytics-sub003/internal/analysis"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

var errDegenerate = errors.New("degenerate input")

// Descriptive holds summary statistics of one sample.
type Descriptive struct {
	N      int
	Mean   float64
	SD     float64
	Median float64
	Q1, Q3 float64
	Min    float64
	Max    float64
}

func describe(x []float64) Descriptive {
	d := Descriptive{N: len(x), Mean: math.NaN(), SD: math.NaN(), Median: math.NaN(), Q1: math.NaN(), Q3: math.NaN(), Min: math.NaN(), Max: math.NaN()}
	if len(x) == 0 {
		return d
	}
	s := append([]float64(nil), x...)
	sort.Float64s(s)
	d.Mean = stat.Mean(s, nil)
	if len(s) > 1 {
		d.SD = stat.StdDev(s, nil)
	}
	d.Median = analysis.Quantile(s, 0.5)
	d.Q1 = analysis.Quantile(s, 0.25)
	d.Q3 = analysis.Quantile(s, 0.75)
	d.Min, d.Max = s[0], s[len(s)-1]
	return d
}

// ShapiroResult is the outcome of a Shapiro-Wilk normality test.
type ShapiroResult struct {
	W float64
	P float64
	N int
}

// ShapiroWilk tests normality using Royston's approximation. It needs 3 to
// 5000 values with a non-zero range.
func ShapiroWilk(x []float64) (ShapiroResult, error) {
	n := len(x)
	if n < 3 || n > 5000 {
		return ShapiroResult{}, fmt.Errorf("shapiro-wilk needs 3..5000 values, got %d: %w", n, errDegenerate)
	}
	s := append([]float64(nil), x...)
	sort.Float64s(s)
	if s[n-1]-s[0] == 0 {
		return ShapiroResult{}, fmt.Errorf("shapiro-wilk: all values identical: %w", errDegenerate)
	}
	nf := float64(n)
	m := make([]float64, n)
	var mm float64
	for i := range m {
		m[i] = distuv.UnitNormal.Quantile((float64(i+1) - 0.375) / (nf + 0.25))
		mm += m[i] * m[i]
	}
	a := make([]float64, n)
	if n == 3 {
		a[0], a[2] = -math.Sqrt(0.5), math.Sqrt(0.5)
	} else {
		u := 1 / math.Sqrt(nf)
		an := m[n-1]/math.Sqrt(mm) + poly(u, 0, 0.221157, -0.147981, -2.071190, 4.434685, -2.706056)
		if n > 5 {
			an1 := m[n-2]/math.Sqrt(mm) + poly(u, 0, 0.042981, -0.293762, -1.752461, 5.682633, -3.582633)
			phi := (mm - 2*m[n-1]*m[n-1] - 2*m[n-2]*m[n-2]) / (1 - 2*an*an - 2*an1*an1)
			for i := 2; i < n-2; i++ {
				a[i] = m[i] / math.Sqrt(phi)
			}
			a[0], a[1], a[n-2], a[n-1] = -an, -an1, an1, an
		} else {
			phi := (mm - 2*m[n-1]*m[n-1]) / (1 - 2*an*an)
			for i := 1; i < n-1; i++ {
				a[i] = m[i] / math.Sqrt(phi)
			}
			a[0], a[n-1] = -an, an
		}
	}
	mean := stat.Mean(s, nil)
	var num, ssq float64
	for i, v := range s {
		num += a[i] * v
		ssq += (v - mean) * (v - mean)
	}
	w := num * num / ssq
	if w > 1 {
		w = 1
	}

	var p float64
	switch {
	case n == 3:
		p = 6 / math.Pi * (math.Asin(math.Sqrt(w)) - math.Asin(math.Sqrt(0.75)))
		p = math.Max(0, math.Min(1, p))
	case n <= 11:
		gamma := 0.459*nf - 2.273
		y := -math.Log(gamma - math.Log1p(-w))
		mu := poly(nf, 0.5440, -0.39978, 0.025054, -0.0006714)
		sigma := math.Exp(poly(nf, 1.3822, -0.77857, 0.062767, -0.0020322))
		p = 1 - distuv.UnitNormal.CDF((y-mu)/sigma)
	default:
		ln := math.Log(nf)
		mu := poly(ln, -1.5861, -0.31082, -0.083751, 0.0038915)
		sigma := math.Exp(poly(ln, -0.4803, -0.082676, 0.0030302))
		p = 1 - distuv.UnitNormal.CDF((math.Log1p(-w)-mu)/sigma)
	}
	if math.IsNaN(p) {
		p = 1
	}
	return ShapiroResult{W: w, P: p, N: n}, nil
}

// poly evaluates c0 + c1*x + c2*x² + ...
func poly(x float64, c ...float64) float64 {
	var out, pow float64 = 0, 1
	for _, k := range c {
		out += k * pow
		pow *= x
	}
	return out
}

// FTest is an F statistic with its degrees of freedom and p-value.
type FTest struct {
	F        float64
	DF1, DF2 float64
	P        float64
}

func fPValue(f, d1, d2 float64) float64 {
	if math.IsInf(f, 1) {
		return 0
	}
	if math.IsNaN(f) || d1 <= 0 || d2 <= 0 {
		return math.NaN()
	}
	return 1 - distuv.F{D1: d1, D2: d2}.CDF(f)
}

// Levene tests equality of variances with median centering (Brown-Forsythe).
func Levene(groups [][]float64) (FTest, error) {
	k := len(groups)
	if k < 2 {
		return FTest{}, fmt.Errorf("levene needs at least 2 groups: %w", errDegenerate)
	}
	z := make([][]float64, k)
	for i, g := range groups {
		s := append([]float64(nil), g...)
		sort.Float64s(s)
		med := analysis.Quantile(s, 0.5)
		z[i] = make([]float64, len(g))
		for j, v := range g {
			z[i][j] = math.Abs(v - med)
		}
	}
	a, err := OneWayANOVA(z)
	if err != nil {
		return FTest{}, err
	}
	return a.FTest, nil
}

// ANOVAResult holds a one-way ANOVA table.
type ANOVAResult struct {
	FTest
	SSBetween float64
	SSWithin  float64
	MSWithin  float64
	EtaSq     float64
}

// OneWayANOVA runs a classic one-way analysis of variance.
func OneWayANOVA(groups [][]float64) (ANOVAResult, error) {
	k := len(groups)
	var total, n float64
	for _, g := range groups {
		if len(g) == 0 {
			return ANOVAResult{}, fmt.Errorf("anova: empty group: %w", errDegenerate)
		}
		for _, v := range g {
			total += v
		}
		n += float64(len(g))
	}
	if k < 2 || n-float64(k) <= 0 {
		return ANOVAResult{}, fmt.Errorf("anova: not enough observations: %w", errDegenerate)
	}
	grand := total / n
	var ssb, ssw float64
	for _, g := range groups {
		m := stat.Mean(g, nil)
		ssb += float64(len(g)) * (m - grand) * (m - grand)
		for _, v := range g {
			ssw += (v - m) * (v - m)
		}
	}
	df1, df2 := float64(k-1), n-float64(k)
	res := ANOVAResult{SSBetween: ssb, SSWithin: ssw, MSWithin: ssw / df2}
	res.DF1, res.DF2 = df1, df2
	switch {
	case ssw == 0 && ssb == 0:
		res.F, res.P = math.NaN(), 1
	case ssw == 0:
		res.F, res.P = math.Inf(1), 0
	default:
		res.F = (ssb / df1) / (ssw / df2)
		res.P = fPValue(res.F, df1, df2)
	}
	if ssb+ssw > 0 {
		res.EtaSq = ssb / (ssb + ssw)
	}
	return res, nil
}

// WelchANOVA runs Welch's heteroscedasticity-robust one-way ANOVA.
func WelchANOVA(groups [][]float64) (FTest, error) {
	k := float64(len(groups))
	if len(groups) < 2 {
		return FTest{}, fmt.Errorf("welch anova needs at least 2 groups: %w", errDegenerate)
	}
	w := make([]float64, len(groups))
	means := make([]float64, len(groups))
	var sw float64
	for i, g := range groups {
		if len(g) < 2 {
			return FTest{}, fmt.Errorf("welch anova: group with fewer than 2 values: %w", errDegenerate)
		}
		v := stat.Variance(g, nil)
		if v == 0 {
			return FTest{}, fmt.Errorf("welch anova: zero variance group: %w", errDegenerate)
		}
		w[i] = float64(len(g)) / v
		means[i] = stat.Mean(g, nil)
		sw += w[i]
	}
	var xw float64
	for i := range groups {
		xw += w[i] * means[i]
	}
	xw /= sw
	var a, tmp float64
	for i, g := range groups {
		a += w[i] * (means[i] - xw) * (means[i] - xw)
		tmp += (1 - w[i]/sw) * (1 - w[i]/sw) / float64(len(g)-1)
	}
	a /= k - 1
	b := 1 + 2*(k-2)/(k*k-1)*tmp
	res := FTest{F: a / b, DF1: k - 1, DF2: (k*k - 1) / (3 * tmp)}
	res.P = fPValue(res.F, res.DF1, res.DF2)
	return res, nil
}

// PairTest is one post-hoc pairwise comparison. Q is the studentized range
// statistic of the difference.
type PairTest struct {
	A, B   string
	Diff   float64
	SE     float64
	Q      float64
	DF     float64
	P      float64
	Reject bool
}

func tTwoSided(t, df float64) float64 {
	if math.IsNaN(t) || df <= 0 {
		return math.NaN()
	}
	return 2 * (1 - distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}.CDF(math.Abs(t)))
}

// TukeyHSD compares every pair of groups using the within-group mean square
// of a classic one-way ANOVA (Tukey-Kramer for unequal sizes).
func TukeyHSD(names []string, groups [][]float64, alpha float64) ([]PairTest, error) {
	a, err := OneWayANOVA(groups)
	if err != nil {
		return nil, err
	}
	return pairwise(names, groups, alpha, func(gi, gj []float64) (float64, float64) {
		ni, nj := float64(len(gi)), float64(len(gj))
		return math.Sqrt(a.MSWithin / 2 * (1/ni + 1/nj)), a.DF2
	})
}

// GamesHowell compares every pair of groups with Welch standard errors and
// degrees of freedom, for groups with unequal variances.
func GamesHowell(names []string, groups [][]float64, alpha float64) ([]PairTest, error) {
	for _, g := range groups {
		if len(g) < 2 {
			return nil, fmt.Errorf("games-howell: group with fewer than 2 values: %w", errDegenerate)
		}
	}
	return pairwise(names, groups, alpha, func(gi, gj []float64) (float64, float64) {
		ni, nj := float64(len(gi)), float64(len(gj))
		vi, vj := stat.Variance(gi, nil)/ni, stat.Variance(gj, nil)/nj
		df := (vi + vj) * (vi + vj) / (vi*vi/(ni-1) + vj*vj/(nj-1))
		return math.Sqrt((vi + vj) / 2), df
	})
}

// pairwise evaluates q = |diff|/se against the studentized range with k
// groups. errTerm returns se and the error degrees of freedom of a pair.
func pairwise(names []string, groups [][]float64, alpha float64, errTerm func(gi, gj []float64) (float64, float64)) ([]PairTest, error) {
	if len(names) != len(groups) {
		return nil, fmt.Errorf("post-hoc: %d names for %d groups", len(names), len(groups))
	}
	if len(groups) < 2 {
		return nil, fmt.Errorf("post-hoc needs at least 2 groups: %w", errDegenerate)
	}
	k := float64(len(groups))
	var out []PairTest
	for i := 0; i < len(groups); i++ {
		for j := i + 1; j < len(groups); j++ {
			gi, gj := groups[i], groups[j]
			pt := PairTest{A: names[i], B: names[j], Diff: stat.Mean(gi, nil) - stat.Mean(gj, nil)}
			pt.SE, pt.DF = errTerm(gi, gj)
			pt.Q = math.Abs(pt.Diff) / pt.SE
			pt.P = math.Max(0, 1-PTukey(pt.Q, k, pt.DF))
			pt.Reject = pt.P < alpha
			out = append(out, pt)
		}
	}
	return out, nil
}

// CorrResult is a correlation coefficient with its t-based p-value.
type CorrResult struct {
	R float64
	P float64
	N int
}

// Pearson computes the Pearson correlation of paired samples.
func Pearson(x, y []float64) (CorrResult, error) {
	n := len(x)
	if n != len(y) || n < 3 {
		return CorrResult{}, fmt.Errorf("correlation needs at least 3 paired values: %w", errDegenerate)
	}
	if stat.Variance(x, nil) == 0 || stat.Variance(y, nil) == 0 {
		return CorrResult{}, fmt.Errorf("correlation: constant input: %w", errDegenerate)
	}
	r := stat.Correlation(x, y, nil)
	r = math.Max(-1, math.Min(1, r))
	res := CorrResult{R: r, N: n}
	if math.Abs(r) == 1 {
		res.P = 0
		return res, nil
	}
	t := r * math.Sqrt(float64(n-2)/(1-r*r))
	res.P = tTwoSided(t, float64(n-2))
	return res, nil
}

// Spearman computes the rank correlation of paired samples.
func Spearman(x, y []float64) (CorrResult, error) {
	return Pearson(ranks(x), ranks(y))
}

// ranks returns 1-based ranks with ties averaged.
func ranks(x []float64) []float64 {
	idx := make([]int, len(x))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return x[idx[a]] < x[idx[b]] })
	out := make([]float64, len(x))
	for i := 0; i < len(idx); {
		j := i
		for j+1 < len(idx) && x[idx[j+1]] == x[idx[i]] {
			j++
		}
		avg := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			out[idx[k]] = avg
		}
		i = j + 1
	}
	return out
}

// RegressionResult is a simple least-squares fit y = Intercept + Slope*x.
type RegressionResult struct {
	Intercept float64
	Slope     float64
	RSquared  float64
	SlopeSE   float64
	P         float64
	N         int
}

// LinearRegression fits y on x by ordinary least squares.
func LinearRegression(x, y []float64) (RegressionResult, error) {
	n := len(x)
	if n != len(y) || n < 3 {
		return RegressionResult{}, fmt.Errorf("regression needs at least 3 paired values: %w", errDegenerate)
	}
	if stat.Variance(x, nil) == 0 {
		return RegressionResult{}, fmt.Errorf("regression: constant predictor: %w", errDegenerate)
	}
	alpha, beta := stat.LinearRegression(x, y, nil, false)
	res := RegressionResult{Intercept: alpha, Slope: beta, N: n}
	res.RSquared = stat.RSquared(x, y, nil, alpha, beta)
	mx := stat.Mean(x, nil)
	var ssr, sxx float64
	for i := range x {
		e := y[i] - (alpha + beta*x[i])
		ssr += e * e
		sxx += (x[i] - mx) * (x[i] - mx)
	}
	res.SlopeSE = math.Sqrt(ssr / float64(n-2) / sxx)
	if res.SlopeSE == 0 {
		res.P = 0
	} else {
		res.P = tTwoSided(beta/res.SlopeSE, float64(n-2))
	}
	return res, nil
}
