package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// resourcesCmd lists the readable resources
var resourcesCmd = &cobra.Command{
	Use:   "resources",
	Short: "List the readable resources",
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, res := range registry.Resources() {
			fmt.Fprintf(cmd.OutOrStdout(), "%-28s %s\n", res.URI, res.Description)
		}
		return nil
	},
}

// readCmd prints a resource snapshot
var readCmd = &cobra.Command{
	Use:   "read <uri>",
	Short: "Print a JSON snapshot of a resource",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		content := registry.Read(cmd.Context(), args[0])
		fmt.Fprintln(cmd.OutOrStdout(), content.Text)
		if content.MimeType != "application/json" {
			return fmt.Errorf("failed to read %s", args[0])
		}
		return nil
	},
}
