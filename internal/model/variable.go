package model

import "strings"

// Variable describes one numeric column of a datatable.
type Variable struct {
	Name           string      `json:"name"`
	Unit           string      `json:"unit,omitempty"`
	Description    string      `json:"description,omitempty"`
	Type           string      `json:"type"`
	Aggregation    Aggregation `json:"aggregation"`
	RemoveOutliers bool        `json:"remove_outliers,omitempty"`
}

// NewVariable builds a float variable with an aggregation guessed from its name.
// Consumption counters (drink, feed) accumulate, everything else is averaged.
func NewVariable(name, unit string) *Variable {
	agg := AggregateMean
	lower := strings.ToLower(name)
	for _, p := range []string{"drink", "feed", "food", "water", "count"} {
		if strings.Contains(lower, p) {
			agg = AggregateSum
			break
		}
	}
	return &Variable{Name: name, Unit: unit, Type: "float64", Aggregation: agg}
}

// Equal reports whether two variables describe the same column.
func (v *Variable) Equal(o *Variable) bool {
	if v == nil || o == nil {
		return v == o
	}
	return v.Name == o.Name && v.Unit == o.Unit
}

// Clone returns a copy of the variable.
func (v *Variable) Clone() *Variable {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
