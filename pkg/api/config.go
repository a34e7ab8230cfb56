package api

type (
	// ConfigDefinition holds the run parameters for one flow
	ConfigDefinition struct {
		Category      string          `json:"category" yaml:"category"`
		Name          string          `json:"name" yaml:"name"`
		ConfigName    string          `json:"config_name" yaml:"config_name"`
		Retry         int             `json:"retry,omitempty" yaml:"retry,omitempty"`
		Repeat        int             `json:"repeat,omitempty" yaml:"repeat,omitempty"`
		TimeOut       int64           `json:"timeout,omitempty" yaml:"timeout,omitempty"`
		ErrorHandling ErrorHandling   `json:"error_handling,omitempty" yaml:"error_handling,omitempty"`
		Middleware    MiddlewareNames `json:"middleware,omitzero" yaml:"middleware,omitempty"`
		Data          Values          `json:"data,omitempty" yaml:"data,omitempty"`
	}

	// MiddlewareNames selects optional middleware for each pipeline kind, in
	// registration order
	MiddlewareNames struct {
		Flow    []string `json:"flow,omitempty" yaml:"flow,omitempty"`
		Group   []string `json:"group,omitempty" yaml:"group,omitempty"`
		Attempt []string `json:"attempt,omitempty" yaml:"attempt,omitempty"`
	}
)

// DefaultConfigName is the config loaded when none is specified
const DefaultConfigName = "default"

// NewConfigDefinition creates a default config for the given flow
func NewConfigDefinition(category, name string) *ConfigDefinition {
	return &ConfigDefinition{
		Category:   category,
		Name:       name,
		ConfigName: DefaultConfigName,
		Repeat:     1,
		Data:       Values{},
	}
}

// IsEmpty returns whether no middleware has been selected
func (m MiddlewareNames) IsEmpty() bool {
	return len(m.Flow) == 0 && len(m.Group) == 0 && len(m.Attempt) == 0
}
