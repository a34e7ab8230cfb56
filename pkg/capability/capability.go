package capability

import (
	"context"

	"github.com/kode4food/sequin/pkg/api"
)

type (
	// StepContext exposes the flow instance an attempt runs within
	StepContext interface {
		InstanceID() api.InstanceID
		Path() api.Path
		StepID() api.StepID
		GetData(name api.Name) (api.Value, bool)
		EventPayload(name string) (string, bool)
		AwaitEvent(ctx context.Context, name string) (string, error)
	}

	// Step is a pluggable step implementation. It accepts resolved inputs
	// and produces named outputs, and should return promptly once ctx is
	// done
	Step interface {
		Execute(
			ctx context.Context, sc StepContext, in api.Values,
		) (api.Values, error)
	}

	// StepFunc adapts an ordinary function into a Step
	StepFunc func(
		ctx context.Context, sc StepContext, in api.Values,
	) (api.Values, error)

	// Converter maps a list of resolved inputs to one string result
	Converter func(ctx context.Context, in []string) (string, error)

	// OptionProvider returns the selectable values of an enumeration
	OptionProvider func(ctx context.Context) ([]string, error)

	// Registries bundles the capability registries consumed by the engine
	Registries struct {
		Steps      *Registry[Step]
		Converters *Registry[Converter]
		Options    *Registry[OptionProvider]
	}
)

// Execute calls the function
func (f StepFunc) Execute(
	ctx context.Context, sc StepContext, in api.Values,
) (api.Values, error) {
	return f(ctx, sc, in)
}

// NewRegistries creates an empty set of capability registries
func NewRegistries() *Registries {
	return &Registries{
		Steps:      NewRegistry[Step](),
		Converters: NewRegistry[Converter](),
		Options:    NewRegistry[OptionProvider](),
	}
}
