package model

// Animal is one experimental subject tracked across a dataset's tables.
type Animal struct {
	ID         string            `json:"id"`
	Box        int               `json:"box"`
	Enabled    bool              `json:"enabled"`
	Color      string            `json:"color,omitempty"`
	Properties map[string]string `json:"properties,omitempty"`
}

// NewAnimal returns an enabled animal with an empty property map.
func NewAnimal(id string, box int) *Animal {
	return &Animal{ID: id, Box: box, Enabled: true, Properties: map[string]string{}}
}

// Clone returns a deep copy of the animal.
func (a *Animal) Clone() *Animal {
	if a == nil {
		return nil
	}
	c := *a
	c.Properties = make(map[string]string, len(a.Properties))
	for k, v := range a.Properties {
		c.Properties[k] = v
	}
	return &c
}
