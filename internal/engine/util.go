package engine

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/kode4food/sequin/pkg/api"
)

// callSafely converts a panic raised by a pluggable capability into an
// error
func callSafely[T any](fn func() (T, error)) (res T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrCapabilityPanicked, r)
		}
	}()
	return fn()
}

func (x *Execution) resolveInt(
	ctx context.Context, in *api.Input, def int64,
) (int64, error) {
	s, err := x.Resolve(ctx, in, "")
	if err != nil {
		return 0, err
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return def, nil
	}
	i, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidControlValue, s)
	}
	return i, nil
}

func (x *Execution) resolveBool(
	ctx context.Context, in *api.Input, def bool,
) (bool, error) {
	s, err := x.Resolve(ctx, in, "")
	if err != nil {
		return false, err
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("%w: %q", ErrInvalidControlValue, s)
	}
	return b, nil
}

func (x *Execution) resolveErrorHandling(
	ctx context.Context, in *api.Input, def api.ErrorHandling,
) (api.ErrorHandling, error) {
	s, err := x.Resolve(ctx, in, string(def))
	if err != nil {
		return "", err
	}
	eh, ok := api.ParseErrorHandling(strings.TrimSpace(s))
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidControlValue, s)
	}
	return eh, nil
}
