package analysis

import (
	"math"
	"sort"

	"github.com/TSE-Systems/tse-analytics-sub003/internal/model"
)

// RemoveOutliers returns a copy of t where values of the named variables
// with robust |z| above threshold are replaced by NaN, plus the number of
// values removed. Columns with fewer than 8 values or zero MAD are left as is.
func RemoveOutliers(t *model.Table, variables []string, threshold float64) (*model.Table, int) {
	out := t.Clone()
	if threshold <= 0 {
		threshold = DefaultOutlierThreshold
	}
	removed := 0
	for _, v := range variables {
		j := out.VariableIndex(v)
		if j < 0 {
			continue
		}
		vals := make([]float64, 0, len(out.Rows))
		for _, r := range out.Rows {
			if x := r.Values[j]; !math.IsNaN(x) {
				vals = append(vals, x)
			}
		}
		if len(vals) < 8 {
			continue
		}
		median, mad := medianMAD(vals)
		if mad == 0 {
			continue
		}
		for i := range out.Rows {
			x := out.Rows[i].Values[j]
			if math.IsNaN(x) {
				continue
			}
			if math.Abs(0.6745*(x-median)/mad) > threshold {
				out.Rows[i].Values[j] = math.NaN()
				removed++
			}
		}
	}
	return out, removed
}

// medianMAD computes median and MAD (median absolute deviation) of values.
func medianMAD(vals []float64) (median, mad float64) {
	if len(vals) == 0 {
		return 0, 0
	}
	cp := make([]float64, len(vals))
	copy(cp, vals)
	sort.Float64s(cp)
	median = Quantile(cp, 0.5)
	dev := make([]float64, len(cp))
	for i, v := range cp {
		dev[i] = math.Abs(v - median)
	}
	sort.Float64s(dev)
	mad = Quantile(dev, 0.5)
	return
}

// Quantile linearly interpolates the q-quantile of sorted values.
func Quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return math.NaN()
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	w := pos - float64(lo)
	return sorted[lo]*(1-w) + sorted[hi]*w
}
