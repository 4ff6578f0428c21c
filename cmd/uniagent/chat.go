// UniAgent - Unified OpenAI chat agent for the terminal
// License: MIT
//
// Copyright (c) 2026 UniAgent contributors

package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/uniagent/uniagent/pkg/agent"
	"github.com/uniagent/uniagent/pkg/config"
)

func newChatCommand() *cobra.Command {
	var (
		agentID string
		message string
		debug   bool
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with an agent",
		Long: strings.TrimSpace(`Chat with an agent, streaming the reply as it arrives.

Without --message an interactive session starts. Wrap a filename in braces,
like {notes.md}, to inline its contents into the prompt. Ctrl-C during a
reply aborts the stream but keeps the partial answer in history.`),
		Example: strings.Join([]string{
			"  uniagent chat",
			"  uniagent chat --agent work -m \"summarize {report.md}\"",
		}, "\n"),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := agent.Open(cfg.AgentsPath(), agentID)
			if err != nil {
				return err
			}
			defer a.Close()
			setupLogging(a, debug)

			if message != "" {
				return askOnce(a, cfg, message)
			}
			return interactiveChat(a, cfg)
		},
	}

	cmd.Flags().StringVarP(&agentID, "agent", "a", "default", "Agent id")
	cmd.Flags().StringVarP(&message, "message", "m", "", "Send one message and exit")
	cmd.Flags().BoolVar(&debug, "debug", false, "Enable debug logging")
	return cmd
}

func interactiveChat(a *agent.Agent, cfg *config.Config) error {
	fmt.Printf("Chatting with %q (model: %s). Type 'exit' to quit.\n\n", a.ID, a.Config().Model)

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "you> ",
		HistoryFile:     filepath.Join(os.TempDir(), ".uniagent_chat_history"),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		// Fall back to a plain reader when no tty is available.
		return simpleInteractiveChat(a, cfg)
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			if len(line) == 0 {
				break
			}
			continue
		}
		if err == io.EOF {
			break
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			break
		}

		if err := askOnce(a, cfg, line); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
	}

	fmt.Println("Goodbye.")
	return nil
}

func simpleInteractiveChat(a *agent.Agent, cfg *config.Config) error {
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("you> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			break
		}
		if err := askOnce(a, cfg, line); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
	}
	return scanner.Err()
}

// askOnce runs one request/reply exchange. Ctrl-C cancels the in-flight
// request; whatever streamed before the interrupt is committed by Close.
func askOnce(a *agent.Agent, cfg *config.Config, text string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	interrupts := make(chan os.Signal, 1)
	signal.Notify(interrupts, os.Interrupt)
	defer signal.Stop(interrupts)
	go func() {
		select {
		case <-interrupts:
			cancel()
		case <-ctx.Done():
		}
	}()

	turn, err := a.Call(ctx, cfg.GetAPIBase(), text)
	if err != nil {
		return err
	}

	for turn.Next() {
		fmt.Print(turn.Fragment())
	}
	fmt.Println()

	streamErr := turn.Err()
	if closeErr := turn.Close(); closeErr != nil {
		return closeErr
	}
	if streamErr != nil && ctx.Err() == nil {
		fmt.Fprintf(os.Stderr, "\n[stream ended early: %v]\n", streamErr)
	}
	if ctx.Err() != nil {
		fmt.Fprintln(os.Stderr, "[interrupted, partial reply kept]")
	}
	return nil
}
