package filetype

import "fmt"

// SpecConfig is the configuration-file form of a Spec. The preferred reader
// is named rather than indexed.
type SpecConfig struct {
	Name        string       `yaml:"name"`
	Extensions  []string     `yaml:"extensions"`
	ReaderOrder []ReaderKind `yaml:"reader_order"`
	Preferred   ReaderKind   `yaml:"preferred"`
}

// Spec converts c, resolving Preferred to its position in ReaderOrder.
// An empty Preferred selects the first reader.
func (c SpecConfig) Spec() (Spec, error) {
	s := Spec{
		Name:       c.Name,
		Extensions: c.Extensions,
		Readers:    c.ReaderOrder,
	}
	if c.Preferred == "" {
		return s, nil
	}
	for i, r := range c.ReaderOrder {
		if r == c.Preferred {
			s.Preferred = i
			return s, nil
		}
	}
	return Spec{}, fmt.Errorf("file type %q: preferred reader %q is not in reader_order", c.Name, c.Preferred)
}

// RegistryFromConfig builds a registry from configuration records, keeping
// their order.
func RegistryFromConfig(cfgs []SpecConfig) (*Registry, error) {
	specs := make([]Spec, 0, len(cfgs))
	for _, c := range cfgs {
		s, err := c.Spec()
		if err != nil {
			return nil, err
		}
		specs = append(specs, s)
	}
	return NewRegistry(specs)
}
