package builtin

import (
	"context"

	"github.com/kode4food/sequin/pkg/capability"
)

// OptionProviders returns the built-in option providers
func OptionProviders() map[capability.Key]capability.OptionProvider {
	return map[capability.Key]capability.OptionProvider{
		capability.NewKey("", "bool"): func(context.Context) ([]string, error) {
			return []string{"true", "false"}, nil
		},
	}
}
