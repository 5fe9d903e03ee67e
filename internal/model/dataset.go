package model

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// MainTable is the name importers give the primary measurement table.
const MainTable = "Main"

// Dataset is the aggregate root: one imported source file or merge result.
type Dataset struct {
	ID          string                `json:"id"`
	Name        string                `json:"name"`
	Description string                `json:"description,omitempty"`
	Metadata    map[string]string     `json:"metadata"`
	Animals     map[string]*Animal    `json:"animals"`
	Tables      map[string]*Datatable `json:"tables"`
	Factors     map[string]*Factor    `json:"factors"`
	Binning     BinningSettings       `json:"binning"`
	CreatedAt   time.Time             `json:"created_at"`
}

// NewDataset constructs an empty dataset with a fresh ID.
func NewDataset(name string) *Dataset {
	return &Dataset{
		ID:        uuid.NewString(),
		Name:      name,
		Metadata:  map[string]string{},
		Animals:   map[string]*Animal{},
		Tables:    map[string]*Datatable{},
		Factors:   map[string]*Factor{},
		Binning:   DefaultBinningSettings(),
		CreatedAt: time.Now(),
	}
}

// AddTable attaches a datatable and applies the current factors to it.
func (d *Dataset) AddTable(dt *Datatable) {
	if d.Tables == nil {
		d.Tables = map[string]*Datatable{}
	}
	dt.applyFactors(d.Factors)
	d.Tables[dt.Name] = dt
}

// Table returns the named datatable or ErrTableNotFound.
func (d *Dataset) Table(name string) (*Datatable, error) {
	dt, ok := d.Tables[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTableNotFound, name)
	}
	return dt, nil
}

// DefaultTable returns the Main table, or the first table by name.
func (d *Dataset) DefaultTable() (*Datatable, error) {
	if dt, ok := d.Tables[MainTable]; ok {
		return dt, nil
	}
	names := d.TableNames()
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: dataset %q has no tables", ErrTableNotFound, d.Name)
	}
	return d.Tables[names[0]], nil
}

// TableNames returns datatable names sorted.
func (d *Dataset) TableNames() []string { return sortedTableNames(d.Tables) }

// SetFactors replaces the factor mapping and rebuilds every active table.
// Animals not claimed by any level receive NA.
func (d *Dataset) SetFactors(factors map[string]*Factor) {
	next := make(map[string]*Factor, len(factors))
	for name, f := range factors {
		next[name] = f.Clone()
	}
	d.Factors = next
	d.Refresh()
}

// Refresh recomputes the active view of every datatable.
func (d *Dataset) Refresh() {
	for _, dt := range d.Tables {
		dt.applyFactors(d.Factors)
	}
}

// FactorNames returns factor names sorted.
func (d *Dataset) FactorNames() []string { return sortedFactorNames(d.Factors) }

// Factor returns the named factor or ErrFactorNotFound.
func (d *Dataset) Factor(name string) (*Factor, error) {
	f, ok := d.Factors[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFactorNotFound, name)
	}
	return f, nil
}

// Animal returns the animal with id or ErrAnimalNotFound.
func (d *Dataset) Animal(id string) (*Animal, error) {
	a, ok := d.Animals[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAnimalNotFound, id)
	}
	return a, nil
}

// AnimalIDs returns animal IDs sorted.
func (d *Dataset) AnimalIDs() []string {
	ids := make([]string, 0, len(d.Animals))
	for id := range d.Animals {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// SetAnimalEnabled toggles whether an animal takes part in analyses.
func (d *Dataset) SetAnimalEnabled(id string, enabled bool) error {
	a, err := d.Animal(id)
	if err != nil {
		return err
	}
	a.Enabled = enabled
	return nil
}

// SetAnimalProperty sets one free-form property on an animal.
func (d *Dataset) SetAnimalProperty(id, key, value string) error {
	a, err := d.Animal(id)
	if err != nil {
		return err
	}
	if a.Properties == nil {
		a.Properties = map[string]string{}
	}
	a.Properties[key] = value
	return nil
}

// EnabledAnimals returns the set of enabled animal IDs.
func (d *Dataset) EnabledAnimals() map[string]bool {
	out := make(map[string]bool, len(d.Animals))
	for id, a := range d.Animals {
		if a.Enabled {
			out[id] = true
		}
	}
	return out
}

// Start returns the earliest timestamp across all datatables.
func (d *Dataset) Start() time.Time {
	var start time.Time
	for _, dt := range d.Tables {
		if dt.Original.Len() == 0 {
			continue
		}
		s := dt.Original.Start()
		if start.IsZero() || s.Before(start) {
			start = s
		}
	}
	return start
}
