package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kode4food/sequin/internal/engine/runopt"
	"github.com/kode4food/sequin/pkg/api"
)

var (
	ErrInvalidSet = errors.New("expected name=value")
	ErrRunFailed  = errors.New("flow did not succeed")
)

func newRunCmd() *cobra.Command {
	var (
		configName string
		sets       []string
	)

	cmd := &cobra.Command{
		Use:   "run <category> <name>",
		Short: "Run a stored flow to completion and print its result",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := parseSets(sets)
			if err != nil {
				return err
			}

			s, err := newSequin(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if err := s.initialize(ctx); err != nil {
				return err
			}
			defer s.close()

			res, err := s.engine.RunFlow(ctx, args[0], args[1],
				runopt.WithConfigName(configName),
				runopt.WithData(data),
			)
			if err != nil {
				return err
			}
			if err := printResult(cmd, res); err != nil {
				return err
			}
			if !res.Success {
				return fmt.Errorf("%w: %s", ErrRunFailed, res.State)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configName, "config", "c", "",
		"config definition to run the flow with",
	)
	cmd.Flags().StringArrayVarP(&sets, "set", "s", nil,
		"initial data value as name=value (repeatable)",
	)
	return cmd
}

func parseSets(sets []string) (api.Values, error) {
	res := api.Values{}
	for _, s := range sets {
		name, value, ok := strings.Cut(s, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidSet, s)
		}
		res[api.Name(name)] = value
	}
	return res, nil
}

func printResult(cmd *cobra.Command, res *api.FlowResult) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}
