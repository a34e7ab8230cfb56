package builtin

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/kode4food/sequin/pkg/capability"
)

var (
	ErrConverterArgs = errors.New("wrong number of converter arguments")
	ErrInvalidJSON   = errors.New("invalid JSON document")
	ErrNotANumber    = errors.New("value is not a number")
)

// Converters returns the built-in converters
func Converters() map[capability.Key]capability.Converter {
	return map[capability.Key]capability.Converter{
		capability.NewKey(CategoryJSON, "path"):   jsonPath,
		capability.NewKey(CategoryText, "concat"): concat,
		capability.NewKey(CategoryText, "format"): format,
		capability.NewKey(CategoryText, "upper"):  upper,
		capability.NewKey(CategoryMath, "add"):    add,
	}
}

// jsonPath extracts the value at a gjson path from a JSON document. The
// document comes first, the path second. A missing value yields ""
func jsonPath(_ context.Context, in []string) (string, error) {
	if len(in) != 2 {
		return "", fmt.Errorf("%w: json/path takes 2, got %d",
			ErrConverterArgs, len(in))
	}
	if !gjson.Valid(in[0]) {
		return "", ErrInvalidJSON
	}
	res := gjson.Get(in[0], in[1])
	if !res.Exists() {
		return "", nil
	}
	if res.IsObject() || res.IsArray() {
		return res.Raw, nil
	}
	return res.String(), nil
}

func concat(_ context.Context, in []string) (string, error) {
	return strings.Join(in, ""), nil
}

// format applies a fmt template, the first argument, to the rest
func format(_ context.Context, in []string) (string, error) {
	if len(in) == 0 {
		return "", fmt.Errorf("%w: text/format needs a template",
			ErrConverterArgs)
	}
	args := make([]any, len(in)-1)
	for i, a := range in[1:] {
		args[i] = a
	}
	return fmt.Sprintf(in[0], args...), nil
}

func upper(_ context.Context, in []string) (string, error) {
	if len(in) != 1 {
		return "", fmt.Errorf("%w: text/upper takes 1, got %d",
			ErrConverterArgs, len(in))
	}
	return strings.ToUpper(in[0]), nil
}

// add sums its arguments as decimal numbers
func add(_ context.Context, in []string) (string, error) {
	var sum float64
	for _, s := range in {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return "", fmt.Errorf("%w: %q", ErrNotANumber, s)
		}
		sum += f
	}
	return strconv.FormatFloat(sum, 'f', -1, 64), nil
}
