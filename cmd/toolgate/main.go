package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// version can be set during build with -ldflags.
var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "toolgate",
		Short: "Authorization gateway for MCP tool servers",
		Long: `toolgate sits between a trusted MCP gateway and a downstream
first-party API. Every tool call must carry a bearer credential; the
gate validates it against the configured policy and, when delegated
exchange is enabled, redeems it for a narrower-scoped downstream
credential before the tool body runs.

Configuration is read from the environment; see the repository
documentation for the full variable list.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			return run(cmd.Context(), cfg)
		},
	}

	rootCmd.Version = version

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
