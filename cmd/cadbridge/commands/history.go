package commands

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/cadbridge/cadbridge/pkg/activity"
)

func newHistoryCommand() *cobra.Command {
	var filter activity.Filter

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded bridge operations",
		Long: `List the operations recorded in the activity log, newest first.

The log is written when activity.enabled is set in the config file.`,
		Example: `  # Last 50 operations
  cadbridge history -c cadbridge.yaml

  # Only extrusions, as JSON
  cadbridge history -c cadbridge.yaml --action create_extrude --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, err := openStore(ctx, cfg.Activity.Config)
			if err != nil {
				return err
			}
			defer store.Close()

			entries, err := store.List(ctx, filter)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				data, err := json.MarshalIndent(entries, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(out, string(data))
				return nil
			}

			if len(entries) == 0 {
				fmt.Fprintln(out, "No recorded operations")
				return nil
			}
			for _, e := range entries {
				status := "ok"
				if !e.Success {
					status = "failed"
				}
				fmt.Fprintf(out, "%s  %-24s %-10s %-6s %s\n",
					e.Timestamp.Local().Format(time.DateTime), e.ActionType, e.Mode, status, e.ID)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&filter.ActionType, "action", "", "only show this command")
	cmd.Flags().IntVarP(&filter.Limit, "limit", "n", activity.DefaultLimit, "maximum entries")
	cmd.Flags().IntVar(&filter.Offset, "offset", 0, "entries to skip")

	return cmd
}
