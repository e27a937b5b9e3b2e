package cmd

import (
	"github.com/spf13/cobra"

	"zeta/pkg/mcpserver"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the tools and chat pipeline over MCP stdio",
	Long:  "Exposes every registered tool plus the zeta_chat pipeline as MCP tools on stdin/stdout. Logs go to stderr.",
	RunE: func(cmd *cobra.Command, args []string) error {
		_ = args

		cfg, log, err := loadRuntime("cmd.mcp")
		if err != nil {
			return err
		}

		application, err := buildApp(cfg, log)
		if err != nil {
			return err
		}
		application.startBackground(cmd.Context(), false)

		log.Info("MCP server starting", "tools", len(application.registry.List()))
		return mcpserver.Serve(mcpserver.New(application.registry, application.orchestrator))
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
