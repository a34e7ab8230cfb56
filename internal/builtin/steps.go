package builtin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"strconv"
	"strings"
	"time"

	"github.com/kode4food/sequin/pkg/api"
	"github.com/kode4food/sequin/pkg/capability"
	"github.com/kode4food/sequin/pkg/log"
)

const (
	InputDuration = api.Name("duration")
	InputMessage  = api.Name("message")
	InputLevel    = api.Name("level")
	InputEvent    = api.Name("event")
	OutputPayload = api.Name("payload")
)

var (
	ErrStepFailed      = errors.New("step failed")
	ErrInvalidDuration = errors.New("invalid duration")
	ErrEventRequired   = errors.New("event name required")
)

// Steps returns the built-in step implementations
func Steps() map[capability.Key]capability.Step {
	return map[capability.Key]capability.Step{
		capability.NewKey(CategoryData, "set"):   capability.StepFunc(setData),
		capability.NewKey(CategoryFlow, "delay"): capability.StepFunc(delay),
		capability.NewKey(CategoryFlow, "fail"):  capability.StepFunc(fail),
		capability.NewKey(CategoryFlow, "log"):   capability.StepFunc(logMessage),
		capability.NewKey(CategoryEvent, "wait"): capability.StepFunc(awaitEvent),
	}
}

// setData produces every input as an output of the same name
func setData(
	_ context.Context, _ capability.StepContext, in api.Values,
) (api.Values, error) {
	return maps.Clone(in), nil
}

// delay waits for the duration input, either a Go duration string or a
// number of milliseconds
func delay(
	ctx context.Context, _ capability.StepContext, in api.Values,
) (api.Values, error) {
	d, err := parseDuration(in.GetString(InputDuration, "0"))
	if err != nil {
		return nil, err
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return api.Values{}, nil
	case <-ctx.Done():
		return nil, context.Cause(ctx)
	}
}

func fail(
	_ context.Context, _ capability.StepContext, in api.Values,
) (api.Values, error) {
	msg := in.GetString(InputMessage, "")
	if msg == "" {
		return nil, ErrStepFailed
	}
	return nil, fmt.Errorf("%w: %s", ErrStepFailed, msg)
}

func logMessage(
	ctx context.Context, sc capability.StepContext, in api.Values,
) (api.Values, error) {
	lvl := log.ParseLevel(in.GetString(InputLevel, "info"))
	slog.Log(ctx, lvl, in.GetString(InputMessage, ""),
		log.InstanceID(sc.InstanceID()),
		log.Path(sc.Path()),
		log.StepID(sc.StepID()))
	return api.Values{}, nil
}

// awaitEvent suspends until the named external event has a payload
func awaitEvent(
	ctx context.Context, sc capability.StepContext, in api.Values,
) (api.Values, error) {
	name := in.GetString(InputEvent, "")
	if name == "" {
		return nil, ErrEventRequired
	}
	p, err := sc.AwaitEvent(ctx, name)
	if err != nil {
		return nil, err
	}
	return api.Values{OutputPayload: p}, nil
}

func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDuration, s)
	}
	return d, nil
}
