// Package commands implements the gateway CLI command tree.
package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

const version = "0.1.0"

var (
	configPath string
	logFormat  string
	verbose    bool

	logger *slog.Logger
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"path to the gateway config file (default: ./gateway.yaml)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text",
		"log format: text, json")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"enable debug logging")

	rootCmd.Version = version
	rootCmd.SetVersionTemplate("gateway version {{.Version}}\n")

	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
}

var rootCmd = &cobra.Command{
	Use:   "gateway",
	Short: "Multi-upstream MCP proxy gateway",
	Long: `gateway aggregates tools, resources, and prompts from multiple MCP
upstreams behind namespaced identifiers. Upstreams are defined in a YAML
config file and may speak streaming HTTP, SSE, or stdio.

Tool names are published as {upstream}:{tool}; resource URIs as
gateway://{upstream}/{uri}.`,
	Example: `  # List every tool across all configured upstreams
  gateway tools --config gateway.yaml

  # Invoke a namespaced tool
  gateway call github:search_issues --args '{"query":"is:open"}'`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setupLogging(cmd)
	},
}

func setupLogging(cmd *cobra.Command) error {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch logFormat {
	case "text":
		handler = slog.NewTextHandler(cmd.ErrOrStderr(), opts)
	case "json":
		handler = slog.NewJSONHandler(cmd.ErrOrStderr(), opts)
	default:
		return fmt.Errorf("unknown log format %q (want text or json)", logFormat)
	}
	logger = slog.New(handler)
	return nil
}

// Execute runs the root command under a signal-aware context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "gateway: %v\n", err)
		return err
	}
	return nil
}
