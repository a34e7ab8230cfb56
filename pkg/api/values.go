package api

import (
	"maps"
	"slices"
	"strconv"
)

type (
	// Values is a set of named, resolved string values passed to or
	// produced by a step implementation
	Values map[Name]string

	// Value is one typed entry of a flow instance's global data table
	Value struct {
		Type  string `json:"type,omitempty" yaml:"type,omitempty"`
		Value string `json:"value" yaml:"value"`
	}
)

// Set creates a new Values with the specified name-value pair added
func (v Values) Set(name Name, value string) Values {
	if v == nil {
		return Values{name: value}
	}
	res := maps.Clone(v)
	res[name] = value
	return res
}

// GetString retrieves a value, returning defaultValue if it is not present
func (v Values) GetString(name Name, defaultValue string) string {
	val, ok := v[name]
	if !ok {
		return defaultValue
	}
	return val
}

// GetBool retrieves a value parsed as a boolean, returning defaultValue if it
// is not present or cannot be parsed
func (v Values) GetBool(name Name, defaultValue bool) bool {
	val, ok := v[name]
	if !ok {
		return defaultValue
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return defaultValue
	}
	return b
}

// GetInt retrieves a value parsed as an integer, returning defaultValue if it
// is not present or cannot be parsed
func (v Values) GetInt(name Name, defaultValue int) int {
	val, ok := v[name]
	if !ok {
		return defaultValue
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultValue
	}
	return i
}

// SortedNames returns the names in the Values in lexical order
func (v Values) SortedNames() []Name {
	names := slices.Collect(maps.Keys(v))
	slices.Sort(names)
	return names
}
