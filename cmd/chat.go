/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	agentruntime "zeta/pkg/agent/runtime"
	"zeta/pkg/orchestrator"
	"zeta/pkg/ui/chat"
)

var (
	promptText string
	plainMode  bool
)

// chatCmd represents the chat command
var chatCmd = &cobra.Command{
	Use:     "chat [prompt]",
	Aliases: []string{"agent"},
	Short:   "Send a prompt or start an interactive chat",
	Long:    "Loads Zeta configuration, wires the assistant pipeline, and sends one prompt or starts an interactive chat in the terminal.",
	RunE: func(cmd *cobra.Command, args []string) error {
		prompt := resolvePrompt(args)

		cfg, log, err := loadRuntime("cmd.chat")
		if err != nil {
			return err
		}

		application, err := buildApp(cfg, log)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		application.startBackground(ctx, false)

		session, err := agentruntime.StartLocalSession(ctx, agentruntime.Options{
			Processor:     application.orchestrator,
			Bus:           application.bus,
			ObserveEvents: strings.EqualFold(cfg.Logging.Level, "debug"),
		})
		if err != nil {
			return fmt.Errorf("start local session: %w", err)
		}
		defer session.Close()

		if plainMode {
			if prompt != "" {
				return runPlainPrompt(ctx, session.Prompt, prompt)
			}
			return runPlainInteractive(ctx, session.Prompt, os.Stdin)
		}

		info := application.client.ModelInfo()
		opts := chat.Options{
			Prompt: session.Prompt,
			Reset:  session.Reset,
			Info: chat.RuntimeInfo{
				Provider: info.Provider,
				Model:    info.Model,
				Tools:    len(application.registry.List()),
			},
		}
		if prompt != "" {
			return chat.RunOneShot(ctx, opts, prompt)
		}
		return chat.RunInteractive(ctx, opts)
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().StringVarP(&promptText, "prompt", "p", "", "prompt text to send")
	chatCmd.Flags().BoolVar(&plainMode, "plain", false, "line-based output without the terminal UI")
}

func resolvePrompt(args []string) string {
	if value := strings.TrimSpace(promptText); value != "" {
		return value
	}

	if len(args) == 0 {
		return ""
	}

	value := strings.TrimSpace(strings.Join(args, " "))
	if value == "" {
		return ""
	}

	return value
}

func runPlainPrompt(ctx context.Context, promptFn chat.PromptFunc, prompt string) error {
	result, err := promptFn(ctx, prompt)
	if err != nil {
		return fmt.Errorf("prompt failed: %w", err)
	}

	printOutcome(result)
	if result.Outcome.Kind != orchestrator.KindSuccess {
		return fmt.Errorf("prompt not answered: %s", result.Outcome.Kind)
	}
	return nil
}

func runPlainInteractive(ctx context.Context, promptFn chat.PromptFunc, input io.Reader) error {
	scanner := bufio.NewScanner(input)

	for {
		fmt.Print("👤 ")
		if !scanner.Scan() {
			return scanner.Err()
		}

		prompt := strings.TrimSpace(scanner.Text())
		if prompt == "" {
			continue
		}
		if isExitCommand(prompt) {
			return nil
		}

		result, err := promptFn(ctx, prompt)
		if err != nil {
			fmt.Printf("prompt failed: %v\n", err)
			continue
		}

		printOutcome(result)
	}
}

func printOutcome(result agentruntime.PromptResult) {
	out := result.Outcome
	switch out.Kind {
	case orchestrator.KindSafetyBlock:
		fmt.Printf("⛔ %s\n\n", strings.TrimSpace(out.Message))
	case orchestrator.KindError:
		fmt.Printf("🚨 %s\n\n", strings.TrimSpace(out.Message))
	default:
		if out.ToolUsed != "" {
			fmt.Printf("🔧 %s\n", out.ToolUsed)
		}
		printAssistantMessage(out.Message)
	}
}

func printAssistantMessage(message string) {
	lines := assistantLines(message)
	for _, line := range lines {
		fmt.Printf("🤖 %s\n", line)
	}
	if len(lines) > 0 {
		fmt.Println()
	}
}

func assistantLines(message string) []string {
	trimmed := strings.TrimSpace(message)
	if trimmed == "" {
		return nil
	}

	return strings.Split(trimmed, "\n")
}

func isExitCommand(input string) bool {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "exit", "quit", ":q":
		return true
	default:
		return false
	}
}
