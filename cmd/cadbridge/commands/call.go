package commands

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cadbridge/cadbridge/pkg/bridge"
)

func newCallCommand() *cobra.Command {
	var (
		paramsJSON string
		mode       string
		retry      bool
	)

	cmd := &cobra.Command{
		Use:   "call <command> [key=value ...]",
		Short: "Execute one command through the bridge",
		Long: `Execute a single command and print the result as JSON.

Parameters are given as key=value pairs; values that parse as JSON
(numbers, booleans, arrays) keep their type, anything else is a string.
--params supplies a JSON object that key=value pairs are merged over.

The bridge picks a mode the usual way: plugin, then direct, then
simulation. --mode forces one and fails when it is unavailable.
The command exits non-zero when the result is an error.`,
		Example: `  # Read the active design
  cadbridge call get_design_info

  # Create a sketch and a rectangle against a running plugin
  cadbridge call create_sketch plane=XZ name=Base
  cadbridge call create_rectangle sketch_name=Base width=20 height=5

  # Retry recoverable failures
  cadbridge call get_features --retry

  # Use simulated data
  cadbridge call draw_polygon sketch_name=Sketch1 sides=8 --mode simulation`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			params, err := parseParams(paramsJSON, args[1:])
			if err != nil {
				return err
			}

			runCfg := *cfg
			if retry {
				runCfg.Bridge.Retry = true
			}

			rt, err := newRuntime(ctx, &runCfg)
			if err != nil {
				return err
			}
			defer rt.Close(ctx)

			b, err := rt.newBridge(ctx, mode)
			if err != nil {
				return err
			}
			defer b.Cleanup()

			result := b.Execute(ctx, args[0], params)
			if err := printResult(cmd, b, result); err != nil {
				return err
			}
			if result.Failed() {
				return errFailed
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&paramsJSON, "params", "", "parameters as a JSON object")
	cmd.Flags().StringVarP(&mode, "mode", "m", modeAuto, "bridge mode: auto, plugin, direct or simulation")
	cmd.Flags().BoolVar(&retry, "retry", false, "retry recoverable failures")

	return cmd
}

// parseParams merges key=value pairs over an optional JSON object.
func parseParams(base string, pairs []string) (map[string]any, error) {
	params := map[string]any{}
	if base != "" {
		if err := json.Unmarshal([]byte(base), &params); err != nil {
			return nil, fmt.Errorf("invalid --params: %w", err)
		}
		if params == nil {
			return nil, fmt.Errorf("invalid --params: want a JSON object, got %s", base)
		}
	}
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid parameter %q: want key=value", pair)
		}
		var value any
		if err := json.Unmarshal([]byte(raw), &value); err != nil {
			value = raw
		}
		params[key] = value
	}
	return params, nil
}

func printResult(cmd *cobra.Command, b *bridge.Bridge, result bridge.Result) error {
	out := cmd.OutOrStdout()
	if !jsonOutput {
		fmt.Fprintf(out, "# mode: %s\n", b.Mode())
	}
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	fmt.Fprintln(out, string(data))
	return nil
}
