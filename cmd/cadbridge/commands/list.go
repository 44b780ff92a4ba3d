package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cadbridge/cadbridge/pkg/plugin/handlers"
)

func newCommandsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "commands",
		Short: "List the protocol commands and their parameter defaults",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			names := handlers.NewTable(nil).Names()

			direct := map[string]bool{}
			for _, name := range cfg.Bridge.DirectCommands {
				direct[name] = true
			}

			if jsonOutput {
				listing := make([]map[string]any, 0, len(names))
				for _, name := range names {
					listing = append(listing, map[string]any{
						"command":  name,
						"defaults": handlers.Defaults(name),
						"direct":   direct[name],
					})
				}
				data, err := json.MarshalIndent(listing, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(out, string(data))
				return nil
			}

			for _, name := range names {
				marker := " "
				if direct[name] {
					marker = "*"
				}
				defaults := "-"
				if d := handlers.Defaults(name); d != nil {
					raw, err := json.Marshal(d)
					if err != nil {
						return err
					}
					defaults = string(raw)
				}
				fmt.Fprintf(out, "%s %-24s %s\n", marker, name, defaults)
			}
			fmt.Fprintln(out, "\n* available in direct mode")
			return nil
		},
	}
}
