package main

import (
	"github.com/spf13/cobra"

	app "github.com/kode4food/sequin"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   app.Name,
		Short: "Sequin flow execution engine",
		Long: `Sequin runs flow definitions: step graphs driven by data and
event dependencies, with repeat, retry, timeouts and nested sub-flows.

Configuration is read from the environment (PROVIDER_URL, ARCHIVE_URL,
LOG_LEVEL, API_HOST, API_PORT and friends).`,
		Version:       app.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetVersionTemplate(app.Name + " {{.Version}}\n")
	root.AddCommand(newServeCmd(), newRunCmd())
	return root
}
