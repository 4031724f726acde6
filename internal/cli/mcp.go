package cli

import (
	"context"

	"github.com/boobootoo2/medbilldozer-sub000/internal/mcp"
	"github.com/spf13/cobra"
)

// mcpCmd represents the mcp command
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve analysis tools over the Model Context Protocol (stdio)",
	Long: `Start an MCP server on stdin/stdout exposing the tools analyze_document,
classify_document and list_providers. With the store enabled, list_runs and
get_run are exposed as well.

Logs go to stderr so they never corrupt the protocol stream.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		a, err := newApp(ctx, cfg, true)
		if err != nil {
			return err
		}
		defer a.Close()

		serverCfg := mcp.ServerConfig{
			Pipeline: a.pipeline,
			Registry: a.registry,
			Version:  Version,
		}
		if a.store != nil {
			serverCfg.Store = a.store
		}
		return mcp.Serve(serverCfg)
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
