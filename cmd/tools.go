package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"zeta/pkg/config"
	"zeta/pkg/tools"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the registered tools",
	RunE: func(cmd *cobra.Command, args []string) error {
		_ = args

		cfg, err := config.LoadOrDefault()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		printTools(cmd.OutOrStdout(), newRegistry(cfg.Tools).List())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(toolsCmd)
}

var toolNameStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("44"))

func printTools(w io.Writer, infos []tools.Info) {
	width := 0
	for _, info := range infos {
		width = max(width, len(info.Name))
	}
	for _, info := range infos {
		name := info.Name + strings.Repeat(" ", width-len(info.Name))
		fmt.Fprintf(w, "%s  %s\n", toolNameStyle.Render(name), info.Description)
	}
}
