package script

import (
	"strconv"

	"github.com/kode4food/sequin/pkg/api"
)

// bindValue converts a resolved input string into the richest scalar it
// represents, so that checkers can compare numbers and booleans directly
func bindValue(s string) any {
	switch s {
	case "true":
		return true
	case "false":
		return false
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

func bindValues(inputs api.Values) map[string]any {
	res := make(map[string]any, len(inputs))
	for k, v := range inputs {
		res[string(k)] = bindValue(v)
	}
	return res
}
