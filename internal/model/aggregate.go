package model

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Aggregation is the reduction applied when rows are collapsed into a bin.
type Aggregation string

const (
	// AggregateAuto reduces every variable with its own Variable.Aggregation.
	AggregateAuto   Aggregation = "auto"
	AggregateMean   Aggregation = "mean"
	AggregateMedian Aggregation = "median"
	AggregateSum    Aggregation = "sum"
)

// ParseAggregation accepts auto, mean, median or sum (case-insensitive).
func ParseAggregation(s string) (Aggregation, error) {
	switch a := Aggregation(strings.ToLower(strings.TrimSpace(s))); a {
	case AggregateAuto, AggregateMean, AggregateMedian, AggregateSum:
		return a, nil
	}
	return "", fmt.Errorf("unsupported aggregation: %q (use auto|mean|median|sum)", s)
}

// Resolve returns the reduction for a column whose variable carries policy.
// An explicit aggregation overrides the policy; auto defers to it and falls
// back to mean when the policy is unset.
func (a Aggregation) Resolve(policy Aggregation) Aggregation {
	if a != AggregateAuto && a != "" {
		return a
	}
	switch policy {
	case AggregateMean, AggregateMedian, AggregateSum:
		return policy
	}
	return AggregateMean
}

// Apply reduces vals, ignoring NaN. All-NaN or empty input yields NaN.
// Auto reduces by mean.
func (a Aggregation) Apply(vals []float64) float64 {
	clean := make([]float64, 0, len(vals))
	for _, v := range vals {
		if !math.IsNaN(v) {
			clean = append(clean, v)
		}
	}
	if len(clean) == 0 {
		return math.NaN()
	}
	switch a {
	case AggregateSum:
		return floats.Sum(clean)
	case AggregateMedian:
		sort.Float64s(clean)
		n := len(clean)
		if n%2 == 1 {
			return clean[n/2]
		}
		return (clean[n/2-1] + clean[n/2]) / 2
	default:
		return stat.Mean(clean, nil)
	}
}
