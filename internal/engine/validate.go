package engine

import (
	"context"
	"fmt"
	"slices"

	"github.com/kode4food/sequin/pkg/api"
	"github.com/kode4food/sequin/pkg/capability"
)

// checkFlow validates a definition's structure and verifies that every
// step implementation, converter, and checker script it names can be
// resolved by this engine. Embedded flows are checked recursively
func (e *Engine) checkFlow(flow *api.FlowDefinition) error {
	if err := flow.Validate(); err != nil {
		return definitionError(err)
	}
	if err := e.checkCapabilities(flow); err != nil {
		return definitionError(
			fmt.Errorf("flow %s/%s: %w", flow.Category, flow.Name, err),
		)
	}
	return nil
}

func (e *Engine) checkCapabilities(flow *api.FlowDefinition) error {
	for _, s := range flow.Steps {
		if s.EffectiveKind() == api.StepKindStep {
			key := capability.NewKey(s.Category, s.Implementation)
			if !e.caps.Steps.Contains(key) {
				return fmt.Errorf("%w: %s", ErrStepNotFound, key)
			}
		}
		inputs := slices.Concat(s.Inputs, []*api.Input{
			s.TimeOut, s.Retry, s.Repeat, s.ErrorHandling, s.Finally,
		})
		if err := e.checkConverters(inputs); err != nil {
			return fmt.Errorf("step %s: %w", s.ID, err)
		}
		for _, o := range s.Outputs {
			if outputMode(o) != api.OutputConverter {
				continue
			}
			if err := e.checkConverter(o.Converter); err != nil {
				return fmt.Errorf("step %s: %w", s.ID, err)
			}
		}
	}

	for _, c := range flow.Checkers {
		if err := e.checkConverters(c.Inputs); err != nil {
			return fmt.Errorf("checker %s: %w", c.ID, err)
		}
		names := make([]api.Name, 0, len(c.Inputs))
		for _, in := range c.Inputs {
			names = append(names, in.Name)
		}
		slices.Sort(names)
		if err := e.scripts.Validate(c.Language, c.Script, names); err != nil {
			return fmt.Errorf("checker %s: %w", c.ID, err)
		}
	}

	for _, d := range flow.Data {
		if d.Options == "" {
			continue
		}
		if !e.caps.Options.Contains(capability.ParseKey(d.Options)) {
			return fmt.Errorf("%w: %s", ErrOptionsNotFound, d.Options)
		}
	}

	for _, ef := range flow.EmbeddedFlows {
		if err := e.checkCapabilities(ef.Flow); err != nil {
			return fmt.Errorf("embedded flow %s: %w", ef.StepID, err)
		}
	}
	return nil
}

func (e *Engine) checkConverters(inputs []*api.Input) error {
	for _, in := range inputs {
		if in == nil || in.Converter == nil {
			continue
		}
		if err := e.checkConverter(in.Converter); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) checkConverter(ref *api.ConverterRef) error {
	if ref == nil {
		return ErrConverterNotFound
	}
	key := capability.NewKey(ref.Category, ref.Name)
	if !e.caps.Converters.Contains(key) {
		return fmt.Errorf("%w: %s", ErrConverterNotFound, key)
	}
	return e.checkConverters(ref.Inputs)
}

// checkOptions verifies that every data entry backed by an option
// provider starts out holding one of the provided values. Empty values
// are not checked
func (e *Engine) checkOptions(
	ctx context.Context, flow *api.FlowDefinition, data *Data,
) error {
	for _, d := range flow.Data {
		if d.Options == "" {
			continue
		}
		v, ok := data.Get(d.Name)
		if !ok || v.Value == "" {
			continue
		}
		provide, err := e.caps.Options.Lookup(capability.ParseKey(d.Options))
		if err != nil {
			return definitionError(
				fmt.Errorf("%w: %s", ErrOptionsNotFound, d.Options),
			)
		}
		opts, err := callSafely(func() ([]string, error) {
			return provide(ctx)
		})
		if err != nil {
			return fmt.Errorf("options %s: %w", d.Options, err)
		}
		if !slices.Contains(opts, v.Value) {
			return fmt.Errorf("%w: %s=%q", ErrInvalidOption, d.Name, v.Value)
		}
	}
	return nil
}
