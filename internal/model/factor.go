package model

import (
	"fmt"
	"sort"
)

// FactorLevel is one named partition of animals within a factor.
type FactorLevel struct {
	Name      string   `json:"name"`
	Color     string   `json:"color,omitempty"`
	AnimalIDs []string `json:"animal_ids"`
}

// Factor is a user-defined grouping criterion.
type Factor struct {
	Name   string        `json:"name"`
	Levels []FactorLevel `json:"levels"`
}

// LevelOf returns the name of the first level listing the animal, or "" (NA).
func (f *Factor) LevelOf(animalID string) string {
	if f == nil {
		return ""
	}
	for _, l := range f.Levels {
		for _, id := range l.AnimalIDs {
			if id == animalID {
				return l.Name
			}
		}
	}
	return ""
}

// LevelNames returns the level names in declaration order.
func (f *Factor) LevelNames() []string {
	out := make([]string, 0, len(f.Levels))
	for _, l := range f.Levels {
		out = append(out, l.Name)
	}
	return out
}

// Validate checks level names are unique and non-empty and that no animal
// is listed under two levels.
func (f *Factor) Validate() error {
	if f.Name == "" {
		return fmt.Errorf("factor name is required")
	}
	seenLevel := map[string]bool{}
	owner := map[string]string{}
	for _, l := range f.Levels {
		if l.Name == "" {
			return fmt.Errorf("factor %q: level name is required", f.Name)
		}
		if seenLevel[l.Name] {
			return fmt.Errorf("factor %q: duplicate level %q", f.Name, l.Name)
		}
		seenLevel[l.Name] = true
		for _, id := range l.AnimalIDs {
			if prev, ok := owner[id]; ok && prev != l.Name {
				return fmt.Errorf("factor %q: animal %q assigned to both %q and %q", f.Name, id, prev, l.Name)
			}
			owner[id] = l.Name
		}
	}
	return nil
}

// Clone returns a deep copy of the factor.
func (f *Factor) Clone() *Factor {
	if f == nil {
		return nil
	}
	c := &Factor{Name: f.Name, Levels: make([]FactorLevel, len(f.Levels))}
	for i, l := range f.Levels {
		c.Levels[i] = FactorLevel{Name: l.Name, Color: l.Color, AnimalIDs: append([]string(nil), l.AnimalIDs...)}
	}
	return c
}

func sortedFactorNames(factors map[string]*Factor) []string {
	names := make([]string, 0, len(factors))
	for name := range factors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
