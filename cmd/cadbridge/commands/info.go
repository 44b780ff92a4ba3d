package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cadbridge/cadbridge/pkg/bridge"
)

func newInfoCommand() *cobra.Command {
	var mode string

	cmd := &cobra.Command{
		Use:   "info",
		Short: "Show the selected bridge mode and the active design",
		Long: `Initialize the bridge and report which mode it selected, whether a
design is active, the design summary and the error summary.`,
		Example: `  cadbridge info
  cadbridge info --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			rt, err := newRuntime(ctx, cfg)
			if err != nil {
				return err
			}
			defer rt.Close(ctx)

			b, err := rt.newBridge(ctx, mode)
			if err != nil {
				return err
			}
			defer b.Cleanup()

			active := b.HasActiveDesign(ctx)
			design := b.GetDesignInfo(ctx)
			summary := b.ErrorSummary()

			out := cmd.OutOrStdout()
			if jsonOutput {
				data, err := json.MarshalIndent(map[string]any{
					"mode":          b.Mode(),
					"active_design": active,
					"design":        design,
					"errors":        summary,
				}, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(out, string(data))
				return nil
			}

			fmt.Fprintf(out, "Mode:          %s\n", b.Mode())
			fmt.Fprintf(out, "Active design: %v\n", active)
			if !design.Failed() {
				name, _ := design.Get("design_name")
				fmt.Fprintf(out, "Design:        %v\n", name)
				if details, ok := design.Get("design_info"); ok {
					printDesignDetails(cmd, details)
				}
			} else {
				fmt.Fprintf(out, "Design:        unavailable (%s)\n", failureMessage(design))
			}
			fmt.Fprintf(out, "Errors:        %d total, %d recent\n", summary.TotalErrors, summary.RecentErrors)
			return nil
		},
	}

	cmd.Flags().StringVarP(&mode, "mode", "m", modeAuto, "bridge mode: auto, plugin, direct or simulation")

	return cmd
}

func printDesignDetails(cmd *cobra.Command, details any) {
	info, ok := details.(map[string]any)
	if !ok {
		return
	}
	out := cmd.OutOrStdout()
	for _, key := range []string{"rootComponent", "component_count", "sketches", "features", "bodies", "units"} {
		if v, ok := info[key]; ok {
			fmt.Fprintf(out, "  %-16s %v\n", key+":", v)
		}
	}
}

func failureMessage(r bridge.Result) string {
	if r.Report != nil {
		return r.Report.UserMessage
	}
	return r.Error
}
