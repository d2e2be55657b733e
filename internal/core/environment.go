package core

// Variable is a key/value pair of an environment. Keys need not be unique;
// resolution uses the first enabled match.
type Variable struct {
	ID      string `json:"id" yaml:"id"`
	Key     string `json:"key" yaml:"key"`
	Value   string `json:"value" yaml:"value"`
	Enabled bool   `json:"enabled" yaml:"enabled"`
}

// Environment represents a named set of variables (e.g., Production, Staging).
type Environment struct {
	ID        string
	Name      string
	Variables []Variable
}

// NewEnvironment creates an environment with no variables.
func NewEnvironment(id, name string) *Environment {
	return &Environment{
		ID:        id,
		Name:      name,
		Variables: make([]Variable, 0),
	}
}

// Variable returns a pointer to the variable with the given id.
func (e *Environment) Variable(id string) *Variable {
	for i := range e.Variables {
		if e.Variables[i].ID == id {
			return &e.Variables[i]
		}
	}
	return nil
}

// Enabled returns the enabled variables in order.
func (e *Environment) Enabled() []Variable {
	out := make([]Variable, 0, len(e.Variables))
	for _, v := range e.Variables {
		if v.Enabled {
			out = append(out, v)
		}
	}
	return out
}

// Keys returns the keys of the enabled variables.
func (e *Environment) Keys() []string {
	keys := make([]string, 0, len(e.Variables))
	for _, v := range e.Variables {
		if v.Enabled {
			keys = append(keys, v.Key)
		}
	}
	return keys
}

// Clone creates a deep copy of the environment. A nil environment clones to nil.
func (e *Environment) Clone() *Environment {
	if e == nil {
		return nil
	}
	out := &Environment{
		ID:        e.ID,
		Name:      e.Name,
		Variables: make([]Variable, len(e.Variables)),
	}
	copy(out.Variables, e.Variables)
	return out
}
