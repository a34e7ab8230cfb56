package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kode4food/sequin/pkg/api"
	"github.com/kode4food/sequin/pkg/log"
)

// Resolve produces the string value of an Input. A converter takes
// priority, then a data or event reference. A data reference naming no
// entry falls back to the Input's literal value, and an event without a
// payload yields the default, as does an empty literal. Nothing is cached:
// every call re-reads the current global state
func (x *Execution) Resolve(
	ctx context.Context, in *api.Input, def string,
) (string, error) {
	if in == nil {
		return def, nil
	}
	if in.Converter != nil {
		return x.convert(ctx, in.Converter)
	}

	switch in.Mode {
	case api.InputData:
		if v, ok := x.data.Get(api.Name(in.Value)); ok {
			return v.Value, nil
		}
		return literal(in, def), nil
	case api.InputEvent:
		if p, ok := x.EventPayload(in.Value); ok {
			return p, nil
		}
		return def, nil
	default:
		return literal(in, def), nil
	}
}

func literal(in *api.Input, def string) string {
	if in.Value == "" {
		return def
	}
	return in.Value
}

// ResolveInputs resolves a list of named Inputs
func (x *Execution) ResolveInputs(
	ctx context.Context, inputs []*api.Input,
) (api.Values, error) {
	res := make(api.Values, len(inputs))
	for _, in := range inputs {
		v, err := x.Resolve(ctx, in, "")
		if err != nil {
			return nil, fmt.Errorf("input %s: %w", in.Name, err)
		}
		res[in.Name] = v
	}
	return res, nil
}

// convert resolves the converter's own inputs and invokes it. Any leading
// values are passed ahead of the resolved inputs
func (x *Execution) convert(
	ctx context.Context, ref *api.ConverterRef, leading ...string,
) (string, error) {
	conv, err := x.engine.caps.Converters.Get(ref.Category, ref.Name)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrConverterNotFound, err)
	}

	args := append(make([]string, 0, len(leading)+len(ref.Inputs)), leading...)
	for _, in := range ref.Inputs {
		v, err := x.Resolve(ctx, in, "")
		if err != nil {
			return "", err
		}
		args = append(args, v)
	}

	return callSafely(func() (string, error) {
		return conv(ctx, args)
	})
}

// WriteOutputs delivers every declared output of a step. Produced values
// the step does not declare are dropped
func (x *Execution) WriteOutputs(
	ctx context.Context, step *api.Step, out api.Values,
) error {
	for _, o := range step.Outputs {
		v, ok := out[o.Name]
		if !ok {
			continue
		}
		if err := x.WriteOutput(ctx, o, v); err != nil {
			return fmt.Errorf("output %s: %w", o.Name, err)
		}
	}
	return nil
}

// WriteOutput delivers one produced value according to the Output's mode.
// Without an explicit mode, an Output with a target is written to global
// data and one without is dropped
func (x *Execution) WriteOutput(
	ctx context.Context, o *api.Output, value string,
) error {
	switch outputMode(o) {
	case api.OutputData:
		x.data.Set(o.Target, value)
	case api.OutputConverter:
		if o.Converter == nil {
			return fmt.Errorf("%w: output %s", ErrConverterNotFound, o.Name)
		}
		res, err := x.convert(ctx, o.Converter, value)
		if err != nil {
			return err
		}
		x.data.Set(o.Target, res)
	default:
		slog.Debug("Output dropped",
			log.InstanceID(x.ID()),
			slog.String("output", string(o.Name)))
	}
	return nil
}

func outputMode(o *api.Output) api.OutputMode {
	if o.Mode != "" {
		return o.Mode
	}
	if o.Target != "" {
		return api.OutputData
	}
	return api.OutputDrop
}
