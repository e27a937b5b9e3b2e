package chat

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	agentruntime "zeta/pkg/agent/runtime"
)

// PromptFunc sends one prompt and returns the decoded reply.
type PromptFunc func(ctx context.Context, prompt string) (agentruntime.PromptResult, error)

// RuntimeInfo is shown in the header.
type RuntimeInfo struct {
	Provider string
	Model    string
	Tools    int
}

// Options configures a chat program. Prompt is required; Reset backs the /reset command.
type Options struct {
	Prompt PromptFunc
	Reset  func()
	Info   RuntimeInfo
}

func RunInteractive(ctx context.Context, opts Options) error {
	model := newModel(ctx, opts, modeInteractive, "")
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseCellMotion())
	_, err := program.Run()
	if err != nil {
		return err
	}

	fmt.Println(renderGoodbyeBanner())
	return nil
}

func RunOneShot(ctx context.Context, opts Options, prompt string) error {
	model := newModel(ctx, opts, modeOneShot, prompt)
	program := tea.NewProgram(model)
	_, err := program.Run()
	return err
}

func renderGoodbyeBanner() string {
	style := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("230")).
		Background(lipgloss.Color("88")).
		Padding(1, 2)

	return style.Render("✨ Zeta'yı kullandığın için teşekkürler")
}
