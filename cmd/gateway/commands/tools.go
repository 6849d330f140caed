package commands

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/plexmcp/plexmcp/pkg/router"
)

var toolsJSON bool

func init() {
	toolsCmd.Flags().BoolVar(&toolsJSON, "json", false, "output in JSON format")
	rootCmd.AddCommand(toolsCmd)
}

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List tools across all configured upstreams",
	Long: `List every tool published by the configured upstreams under its
gateway-qualified name ({upstream}:{tool}). Upstreams that cannot be
reached are skipped with a warning; the remaining listings still merge.`,
	RunE: runTools,
}

func runTools(cmd *cobra.Command, args []string) error {
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

	type toolRow struct {
		Name        string `json:"name"`
		Description string `json:"description,omitempty"`
	}
	var rows []toolRow
	for _, id := range client.ListUpstreams() {
		res, err := client.ListToolsWithRetry(ctx, id)
		if err != nil {
			logger.Warn("skipping upstream", "upstream", id, "error", err)
			continue
		}
		for _, tool := range router.PrefixTools(id, res.Tools) {
			rows = append(rows, toolRow{Name: tool.Name, Description: tool.Description})
		}
	}

	if toolsJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TOOL\tDESCRIPTION")
	for _, row := range rows {
		fmt.Fprintf(w, "%s\t%s\n", row.Name, row.Description)
	}
	return w.Flush()
}
