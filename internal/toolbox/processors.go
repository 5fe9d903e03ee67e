package toolbox

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/TSE-Systems/tse-analytics-sub003/internal/model"
	"gonum.org/v1/gonum/stat/distuv"
	. "maragu.dev/gomponents"
)

const (
	minGroupSize   = 3
	defaultBins    = 20
	maxQQPlots     = 6
	descriptiveTbl = "Descriptive statistics"
)

var descriptiveHeaders = []string{"Group", "N", "Mean", "SD", "Median", "Q1", "Q3", "Min", "Max"}

func descriptiveRows(groups []sample) [][]string {
	rows := make([][]string, len(groups))
	for i, g := range groups {
		d := describe(g.Values)
		rows[i] = []string{g.Name, strconv.Itoa(d.N), num(d.Mean), num(d.SD), num(d.Median), num(d.Q1), num(d.Q3), num(d.Min), num(d.Max)}
	}
	return rows
}

func normalityRows(groups []sample, alpha float64) [][]string {
	rows := make([][]string, len(groups))
	for i, g := range groups {
		sw, err := ShapiroWilk(g.Values)
		if err != nil {
			rows[i] = []string{g.Name, strconv.Itoa(len(g.Values)), "NA", "NA", "NA"}
			continue
		}
		rows[i] = []string{g.Name, strconv.Itoa(sw.N), num(sw.W), pval(sw.P), yesNo(sw.P >= alpha)}
	}
	return rows
}

func valuesOf(groups []sample) [][]float64 {
	out := make([][]float64, len(groups))
	for i, g := range groups {
		out[i] = g.Values
	}
	return out
}

func namesOf(groups []sample) []string {
	out := make([]string, len(groups))
	for i, g := range groups {
		out[i] = g.Name
	}
	return out
}

// OneWayANOVAProcessor compares group means of Variable. Normality and
// variance homogeneity decide between classic and Welch ANOVA.
func OneWayANOVAProcessor(ds *model.Dataset, t *model.Table, p Params) Result {
	title := fmt.Sprintf("One-way ANOVA: %s by %s", p.Variable, splitLabel(p))
	if p.Split == SplitNone || p.Split == "" {
		return inactive(title, "ANOVA needs a split (animals, factors or runs)")
	}
	groups, err := groupValues(t, p.Variable, p.Split, p.Factor)
	if err != nil {
		return inactive(title, "%v", err)
	}
	if len(groups) < 2 {
		return inactive(title, "at least 2 groups are required, got %d", len(groups))
	}
	for _, g := range groups {
		if len(g.Values) < minGroupSize {
			return inactive(title, "group %q has %d values, at least %d are required", g.Name, len(g.Values), minGroupSize)
		}
	}
	alpha := p.alpha()
	vals, names := valuesOf(groups), namesOf(groups)

	lev, err := Levene(vals)
	if err != nil {
		return inactive(title, "levene test: %v", err)
	}
	homoscedastic := math.IsNaN(lev.P) || lev.P >= alpha

	var anovaNode Node
	var pairs []PairTest
	if homoscedastic {
		a, err := OneWayANOVA(vals)
		if err != nil {
			return inactive(title, "%v", err)
		}
		anovaNode = reportSection("Classic ANOVA",
			dataTable([]string{"Source", "SS", "df", "F", "p", "η²"}, [][]string{
				{"Between", num(a.SSBetween), num(a.DF1), num(a.F), pval(a.P), num(a.EtaSq)},
				{"Within", num(a.SSWithin), num(a.DF2), "", "", ""},
			}))
		pairs, err = TukeyHSD(names, vals, alpha)
		if err != nil {
			return inactive(title, "%v", err)
		}
	} else {
		w, err := WelchANOVA(vals)
		if err != nil {
			return inactive(title, "%v", err)
		}
		anovaNode = reportSection("Welch ANOVA",
			dataTable([]string{"F", "df1", "df2", "p"}, [][]string{
				{num(w.F), num(w.DF1), num(w.DF2), pval(w.P)},
			}))
		pairs, err = GamesHowell(names, vals, alpha)
		if err != nil {
			return inactive(title, "%v", err)
		}
	}

	pairRows := make([][]string, len(pairs))
	for i, pt := range pairs {
		pairRows[i] = []string{pt.A, pt.B, num(pt.Diff), num(pt.SE), num(pt.Q), num(pt.DF), pval(pt.P), yesNo(pt.Reject)}
	}
	posthoc := "Tukey HSD"
	if !homoscedastic {
		posthoc = "Games-Howell"
	}

	img, err := boxPlot(title, unitLabel(ds, t, p.Variable), groups, p.Plot)
	if err != nil {
		return inactive(title, "%v", err)
	}
	html, err := render(title,
		reportSection(descriptiveTbl, dataTable(descriptiveHeaders, descriptiveRows(groups))),
		reportSection("Normality (Shapiro-Wilk)", dataTable([]string{"Group", "N", "W", "p", "Normal"}, normalityRows(groups, alpha))),
		reportSection("Homogeneity of variances (Levene, median)",
			dataTable([]string{"F", "df1", "df2", "p", "Equal variances"}, [][]string{
				{num(lev.F), num(lev.DF1), num(lev.DF2), pval(lev.P), yesNo(homoscedastic)},
			})),
		anovaNode,
		reportSection(posthoc, dataTable([]string{"A", "B", "Diff", "SE", "q", "df", "p", "Significant"}, pairRows)),
		figure(img, "box plot"),
		note("α = %s", num(alpha)),
	)
	if err != nil {
		return inactive(title, "%v", err)
	}
	return Result{Status: Active, Title: title, Report: html}
}

// CorrelationProcessor reports Pearson and Spearman correlation between
// Covariate and Variable.
func CorrelationProcessor(ds *model.Dataset, t *model.Table, p Params) Result {
	title := fmt.Sprintf("Correlation: %s vs %s", p.Covariate, p.Variable)
	if p.Covariate == "" {
		return inactive(title, "correlation needs a second variable")
	}
	x, y, err := pairedValues(t, p.Covariate, p.Variable)
	if err != nil {
		return inactive(title, "%v", err)
	}
	pr, err := Pearson(x, y)
	if err != nil {
		return inactive(title, "%v", err)
	}
	sr, err := Spearman(x, y)
	if err != nil {
		return inactive(title, "%v", err)
	}
	fit, err := LinearRegression(x, y)
	if err != nil {
		return inactive(title, "%v", err)
	}
	img, err := scatterPlot(title, unitLabel(ds, t, p.Covariate), unitLabel(ds, t, p.Variable), x, y, &fit, p.Plot)
	if err != nil {
		return inactive(title, "%v", err)
	}
	html, err := render(title,
		reportSection("Coefficients", dataTable([]string{"Method", "r", "p", "N"}, [][]string{
			{"Pearson", num(pr.R), pval(pr.P), strconv.Itoa(pr.N)},
			{"Spearman", num(sr.R), pval(sr.P), strconv.Itoa(sr.N)},
		})),
		figure(img, "scatter plot"),
	)
	if err != nil {
		return inactive(title, "%v", err)
	}
	return Result{Status: Active, Title: title, Report: html}
}

// RegressionProcessor fits Variable = a + b*Covariate.
func RegressionProcessor(ds *model.Dataset, t *model.Table, p Params) Result {
	title := fmt.Sprintf("Linear regression: %s on %s", p.Variable, p.Covariate)
	if p.Covariate == "" {
		return inactive(title, "regression needs a predictor variable")
	}
	x, y, err := pairedValues(t, p.Covariate, p.Variable)
	if err != nil {
		return inactive(title, "%v", err)
	}
	fit, err := LinearRegression(x, y)
	if err != nil {
		return inactive(title, "%v", err)
	}
	img, err := scatterPlot(title, unitLabel(ds, t, p.Covariate), unitLabel(ds, t, p.Variable), x, y, &fit, p.Plot)
	if err != nil {
		return inactive(title, "%v", err)
	}
	html, err := render(title,
		reportSection("Model", dataTable([]string{"Intercept", "Slope", "SE slope", "p slope", "R²", "N"}, [][]string{
			{num(fit.Intercept), num(fit.Slope), num(fit.SlopeSE), pval(fit.P), num(fit.RSquared), strconv.Itoa(fit.N)},
		})),
		figure(img, "regression plot"),
	)
	if err != nil {
		return inactive(title, "%v", err)
	}
	return Result{Status: Active, Title: title, Report: html}
}

// DistributionProcessor summarizes Variable per group with a box plot.
func DistributionProcessor(ds *model.Dataset, t *model.Table, p Params) Result {
	title := fmt.Sprintf("Distribution: %s by %s", p.Variable, splitLabel(p))
	groups, err := groupValues(t, p.Variable, p.Split, p.Factor)
	if err != nil {
		return inactive(title, "%v", err)
	}
	if len(groups) == 0 {
		return inactive(title, "no values for %s", p.Variable)
	}
	img, err := boxPlot(title, unitLabel(ds, t, p.Variable), groups, p.Plot)
	if err != nil {
		return inactive(title, "%v", err)
	}
	html, err := render(title,
		reportSection(descriptiveTbl, dataTable(descriptiveHeaders, descriptiveRows(groups))),
		figure(img, "box plot"),
	)
	if err != nil {
		return inactive(title, "%v", err)
	}
	return Result{Status: Active, Title: title, Report: html}
}

// HistogramProcessor draws a histogram of all non-missing Variable values.
func HistogramProcessor(ds *model.Dataset, t *model.Table, p Params) Result {
	title := fmt.Sprintf("Histogram: %s", p.Variable)
	groups, err := groupValues(t, p.Variable, SplitNone, "")
	if err != nil {
		return inactive(title, "%v", err)
	}
	if len(groups) == 0 || len(groups[0].Values) < 2 {
		return inactive(title, "at least 2 values are required")
	}
	bins := p.Bins
	if bins <= 0 {
		bins = defaultBins
	}
	img, err := histogram(title, unitLabel(ds, t, p.Variable), groups[0].Values, bins, p.Plot)
	if err != nil {
		return inactive(title, "%v", err)
	}
	html, err := render(title,
		reportSection(descriptiveTbl, dataTable(descriptiveHeaders, descriptiveRows(groups))),
		figure(img, "histogram"),
		note("%d bins", bins),
	)
	if err != nil {
		return inactive(title, "%v", err)
	}
	return Result{Status: Active, Title: title, Report: html}
}

// NormalityProcessor runs Shapiro-Wilk per group and draws Q-Q plots.
func NormalityProcessor(ds *model.Dataset, t *model.Table, p Params) Result {
	title := fmt.Sprintf("Normality: %s by %s", p.Variable, splitLabel(p))
	groups, err := groupValues(t, p.Variable, p.Split, p.Factor)
	if err != nil {
		return inactive(title, "%v", err)
	}
	if len(groups) == 0 {
		return inactive(title, "no values for %s", p.Variable)
	}
	for _, g := range groups {
		if len(g.Values) < minGroupSize {
			return inactive(title, "group %q has %d values, at least %d are required", g.Name, len(g.Values), minGroupSize)
		}
	}
	alpha := p.alpha()
	nodes := []Node{
		reportSection("Shapiro-Wilk", dataTable([]string{"Group", "N", "W", "p", "Normal"}, normalityRows(groups, alpha))),
	}
	for i, g := range groups {
		if i == maxQQPlots {
			nodes = append(nodes, note("Q-Q plots limited to the first %d groups", maxQQPlots))
			break
		}
		obs := append([]float64(nil), g.Values...)
		sort.Float64s(obs)
		theo := make([]float64, len(obs))
		n := float64(len(obs))
		for k := range theo {
			theo[k] = distuv.UnitNormal.Quantile((float64(k+1) - 0.375) / (n + 0.25))
		}
		img, err := qqPlot("Q-Q: "+g.Name, theo, obs, p.Plot)
		if err != nil {
			return inactive(title, "%v", err)
		}
		nodes = append(nodes, figure(img, "Q-Q plot "+g.Name))
	}
	html, err := render(title, nodes...)
	if err != nil {
		return inactive(title, "%v", err)
	}
	return Result{Status: Active, Title: title, Report: html}
}
