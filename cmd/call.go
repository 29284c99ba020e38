package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var (
	callArgs   string
	jsonOutput bool
)

// toolsCmd lists the available tools
var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the available tools",
	RunE:  runTools,
}

// callCmd invokes a tool
var callCmd = &cobra.Command{
	Use:   "call <tool>",
	Short: "Invoke a tool with JSON arguments",
	Long: `Invoke a tool by name. Arguments are passed as a JSON object, for example:

  qbitctl call list_torrents --args '{"filter": "downloading"}'
  qbitctl call pause_torrent --args '{"hash": "abc123"}'`,
	Args: cobra.ExactArgs(1),
	RunE: runCall,
}

func init() {
	toolsCmd.Flags().BoolVar(&jsonOutput, "json", false, "print tool definitions as JSON")
	callCmd.Flags().StringVarP(&callArgs, "args", "a", "{}", "tool arguments as a JSON object")
}

func runTools(cmd *cobra.Command, args []string) error {
	tools := registry.Tools()
	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(tools)
	}

	for _, tool := range tools {
		fmt.Fprintf(cmd.OutOrStdout(), "%-22s %s\n", tool.Name, tool.Description)
	}
	return nil
}

func runCall(cmd *cobra.Command, args []string) error {
	raw := strings.TrimSpace(callArgs)
	if raw != "" && !json.Valid([]byte(raw)) {
		return fmt.Errorf("--args is not valid JSON")
	}

	result := registry.Call(cmd.Context(), args[0], json.RawMessage(raw))
	fmt.Fprintln(cmd.OutOrStdout(), result.Text)
	if result.IsError {
		return fmt.Errorf("tool %s failed", args[0])
	}
	return nil
}
