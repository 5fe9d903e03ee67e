package model

import (
	"fmt"
	"sort"
	"time"
)

// Datatable is one measurement table attached to a dataset. Original is the
// immutable import; the active view is derived from it and never persisted.
type Datatable struct {
	Name             string               `json:"name"`
	Description      string               `json:"description,omitempty"`
	Variables        map[string]*Variable `json:"variables"`
	SamplingInterval time.Duration        `json:"sampling_interval"`
	Original         *Table               `json:"original"`

	active *Table
}

// NewDatatable wraps a table. Variables lacking metadata get defaults.
func NewDatatable(name string, original *Table, variables map[string]*Variable, interval time.Duration) *Datatable {
	if variables == nil {
		variables = map[string]*Variable{}
	}
	for _, v := range original.Variables {
		if _, ok := variables[v]; !ok {
			variables[v] = NewVariable(v, "")
		}
	}
	dt := &Datatable{
		Name:             name,
		Variables:        variables,
		SamplingInterval: interval,
		Original:         original,
	}
	dt.applyFactors(nil)
	return dt
}

// Active returns the current derived view with factor columns applied.
func (dt *Datatable) Active() *Table {
	if dt.active == nil {
		dt.applyFactors(nil)
	}
	return dt.active
}

// VariableNames returns variable names in table column order.
func (dt *Datatable) VariableNames() []string {
	return append([]string(nil), dt.Original.Variables...)
}

// Policies maps every variable to its aggregation policy.
func (dt *Datatable) Policies() map[string]Aggregation {
	out := make(map[string]Aggregation, len(dt.Variables))
	for name, v := range dt.Variables {
		out[name] = v.Aggregation
	}
	return out
}

// Variable returns the named variable or ErrVariableNotFound.
func (dt *Datatable) Variable(name string) (*Variable, error) {
	v, ok := dt.Variables[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrVariableNotFound, name)
	}
	return v, nil
}

// Select returns the active view limited to enabled animals and the given
// variables. With no variables every column is kept.
func (dt *Datatable) Select(enabled map[string]bool, variables ...string) (*Table, error) {
	active := dt.Active()
	for _, v := range variables {
		if active.VariableIndex(v) < 0 {
			return nil, fmt.Errorf("%w: %s", ErrVariableNotFound, v)
		}
	}
	out := active.Filter(func(r Row) bool {
		if enabled == nil {
			return true
		}
		return enabled[r.Animal]
	})
	if len(variables) > 0 {
		out = out.Project(variables)
	}
	return out, nil
}

// applyFactors rebuilds the active view from a fresh copy of Original,
// adding one level column per factor (sorted by factor name).
func (dt *Datatable) applyFactors(factors map[string]*Factor) {
	t := dt.Original.Clone()
	names := sortedFactorNames(factors)
	t.Factors = names
	// animal -> levels, computed once per animal
	cache := map[string][]string{}
	for i := range t.Rows {
		r := &t.Rows[i]
		levels, ok := cache[r.Animal]
		if !ok {
			levels = make([]string, len(names))
			for fi, name := range names {
				levels[fi] = factors[name].LevelOf(r.Animal)
			}
			cache[r.Animal] = levels
		}
		if len(names) == 0 {
			r.Levels = nil
			continue
		}
		r.Levels = append([]string(nil), levels...)
	}
	dt.active = t
}

// Clone returns a deep copy of the datatable, active view included.
func (dt *Datatable) Clone() *Datatable {
	vars := make(map[string]*Variable, len(dt.Variables))
	for k, v := range dt.Variables {
		vars[k] = v.Clone()
	}
	c := &Datatable{
		Name:             dt.Name,
		Description:      dt.Description,
		Variables:        vars,
		SamplingInterval: dt.SamplingInterval,
		Original:         dt.Original.Clone(),
	}
	if dt.active != nil {
		c.active = dt.active.Clone()
	}
	return c
}

// SameVariables reports whether two datatables carry identical variable sets.
func (dt *Datatable) SameVariables(o *Datatable) bool {
	if len(dt.Variables) != len(o.Variables) {
		return false
	}
	for name, v := range dt.Variables {
		ov, ok := o.Variables[name]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}

func sortedTableNames(tables map[string]*Datatable) []string {
	names := make([]string, 0, len(tables))
	for n := range tables {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
