// Package builtin provides the step implementations, converters, and
// option providers every engine registers by default
package builtin

import (
	"errors"

	"github.com/kode4food/sequin/pkg/capability"
)

const (
	CategoryData  = "data"
	CategoryFlow  = "flow"
	CategoryEvent = "event"
	CategoryJSON  = "json"
	CategoryText  = "text"
	CategoryMath  = "math"
)

// Register adds every built-in capability to the registries
func Register(caps *capability.Registries) error {
	var errs []error
	for name, s := range Steps() {
		errs = append(errs, caps.Steps.Register(name.Category, name.Name, s))
	}
	for name, c := range Converters() {
		errs = append(errs,
			caps.Converters.Register(name.Category, name.Name, c),
		)
	}
	for name, o := range OptionProviders() {
		errs = append(errs, caps.Options.Register(name.Category, name.Name, o))
	}
	return errors.Join(errs...)
}

// NewRegistries creates capability registries holding the built-ins
func NewRegistries() (*capability.Registries, error) {
	caps := capability.NewRegistries()
	if err := Register(caps); err != nil {
		return nil, err
	}
	return caps, nil
}
