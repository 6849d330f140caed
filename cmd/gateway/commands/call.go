package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/plexmcp/plexmcp/pkg/router"
)

var callArgs string

func init() {
	callCmd.Flags().StringVar(&callArgs, "args", "", "tool arguments as a JSON object")
	rootCmd.AddCommand(callCmd)
}

var callCmd = &cobra.Command{
	Use:   "call {upstream}:{tool}",
	Short: "Invoke a tool by its gateway-qualified name",
	Long: `Invoke a tool on the upstream encoded in its gateway-qualified name.
The name is split on the first ":"; everything after it is passed to the
upstream verbatim, so native tool names containing ":" work.`,
	Example: `  gateway call github:search_issues --args '{"query":"is:open author:me"}'
  gateway call local:echo --args '{"text":"hello"}'`,
	Args: cobra.ExactArgs(1),
	RunE: runCall,
}

func runCall(cmd *cobra.Command, args []string) error {
	upstreamID, tool, ok := router.ParseToolName(args[0])
	if !ok {
		return fmt.Errorf("tool name %q is not gateway-qualified (want {upstream}:{tool})", args[0])
	}

	var toolArgs map[string]any
	if callArgs != "" {
		if err := json.Unmarshal([]byte(callArgs), &toolArgs); err != nil {
			return fmt.Errorf("parsing --args: %w", err)
		}
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	client, err := buildClient(cfg)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	defer client.Shutdown(ctx)

	if !client.HasUpstream(upstreamID) {
		return fmt.Errorf("unknown upstream %q in tool name %q", upstreamID, args[0])
	}

	res, err := client.CallToolWithRetry(ctx, upstreamID, tool, toolArgs)
	if err != nil {
		return fmt.Errorf("calling %s: %w", args[0], err)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}
