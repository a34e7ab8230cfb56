package script

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/kode4food/sequin/pkg/api"
)

type (
	// JSONEnv evaluates gjson path queries against a document built from
	// the checker's inputs, keyed by input name. The predicate holds when
	// the path matches a truthy value
	JSONEnv struct {
		*compiler[string]
	}
)

var (
	ErrJSONPath      = errors.New("invalid json path")
	ErrJSONBadScript = errors.New("expected compiled json path")
)

// NewJSONEnv creates a new gjson path checker environment
func NewJSONEnv(cacheSize int) *JSONEnv {
	return &JSONEnv{
		compiler: newCompiler(cacheSize, compileJSONPath),
	}
}

// EvaluatePredicate queries the inputs document with the compiled path
func (e *JSONEnv) EvaluatePredicate(
	c Compiled, inputs api.Values,
) (bool, error) {
	path, ok := c.(string)
	if !ok {
		return false, fmt.Errorf("%w, got %T", ErrJSONBadScript, c)
	}

	doc, err := json.Marshal(jsonDocument(inputs))
	if err != nil {
		return false, err
	}

	res := gjson.GetBytes(doc, path)
	if !res.Exists() {
		return false, nil
	}
	if res.IsArray() {
		return len(res.Array()) > 0, nil
	}
	if res.IsObject() {
		return true, nil
	}
	return res.Bool(), nil
}

// jsonDocument binds each input like the other environments do, except
// that inputs holding a JSON object or array are embedded as documents
func jsonDocument(inputs api.Values) map[string]any {
	res := bindValues(inputs)
	for k, v := range inputs {
		t := strings.TrimSpace(v)
		if (strings.HasPrefix(t, "{") || strings.HasPrefix(t, "[")) &&
			gjson.Valid(t) {
			res[string(k)] = json.RawMessage(t)
		}
	}
	return res
}

func compileJSONPath(script string, _ []api.Name) (string, error) {
	if strings.Count(script, "[") != strings.Count(script, "]") ||
		strings.Count(script, "(") != strings.Count(script, ")") {
		return "", fmt.Errorf("%w: %s", ErrJSONPath, script)
	}
	return script, nil
}
