package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/uniagent/uniagent/pkg/agent"
	"github.com/uniagent/uniagent/pkg/config"
	"github.com/uniagent/uniagent/pkg/credentials"
	"github.com/uniagent/uniagent/pkg/export"
	"github.com/uniagent/uniagent/pkg/logger"
)

func executeCLI() error {
	return buildRootCommand().Execute()
}

func buildRootCommand() *cobra.Command {
	var showVersion bool

	root := &cobra.Command{
		Use:   "uniagent",
		Short: "OpenAI chat agent with per-agent history, exports, and a Discord gateway",
		Long: strings.TrimSpace(`uniagent is a terminal chat client for OpenAI-compatible APIs.

Each agent keeps its own configuration, persistent conversation history,
rolling backups, and exports. Chat locally with streaming replies, or run
the Discord gateway to answer messages from a channel.`),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVersion {
				printVersion()
				return nil
			}
			_ = cmd.Help()
			return fmt.Errorf("a subcommand is required")
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.Flags().BoolVarP(&showVersion, "version", "v", false, "Show build/version metadata")

	root.AddCommand(newOnboardCommand())
	root.AddCommand(newChatCommand())
	root.AddCommand(newHistoryCommand())
	root.AddCommand(newExportCommand())
	root.AddCommand(newModelsCommand())
	root.AddCommand(newStatusCommand())
	root.AddCommand(newGatewayCommand())
	root.AddCommand(newVersionCommand())

	return root
}

func newOnboardCommand() *cobra.Command {
	var (
		agentID string
		model   string
		apiKey  string
	)

	cmd := &cobra.Command{
		Use:   "onboard",
		Short: "Create configuration and a new agent",
		Example: strings.Join([]string{
			"  uniagent onboard",
			"  uniagent onboard --agent work --model gpt-4.1-mini",
		}, "\n"),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			configPath := getConfigPath()
			if _, err := os.Stat(configPath); os.IsNotExist(err) {
				if err := config.SaveConfig(configPath, cfg); err != nil {
					return fmt.Errorf("write config: %w", err)
				}
				fmt.Printf("Config created at %s\n", configPath)
			}

			if model == "" {
				model = cfg.Agents.DefaultModel
			}
			a, err := agent.Create(cfg.AgentsPath(), agentID, model)
			if err != nil {
				return err
			}
			defer a.Close()

			if apiKey == "" && os.Getenv("OPENAI_API_KEY") == "" {
				fmt.Print("OpenAI API key (leave empty to use OPENAI_API_KEY later): ")
				reader := bufio.NewReader(os.Stdin)
				line, _ := reader.ReadString('\n')
				apiKey = strings.TrimSpace(line)
			}
			if apiKey != "" {
				if err := credentials.SaveKey(a.Dir, "", apiKey); err != nil {
					return err
				}
				fmt.Printf("API key saved (%s)\n", credentials.Mask(apiKey))
			}

			fmt.Printf("\nAgent %q is ready (model: %s)\n", agentID, a.Config().Model)
			fmt.Println("\nNext steps:")
			fmt.Printf("  1. Chat: uniagent chat --agent %s\n", agentID)
			fmt.Printf("  2. Check readiness: uniagent status\n")
			return nil
		},
	}

	cmd.Flags().StringVarP(&agentID, "agent", "a", "default", "Agent id to create")
	cmd.Flags().StringVarP(&model, "model", "m", "", "Model for the new agent")
	cmd.Flags().StringVar(&apiKey, "api-key", "", "API key to store in the agent's secrets file")
	return cmd
}

func newHistoryCommand() *cobra.Command {
	var agentID string

	historyRoot := &cobra.Command{
		Use:   "history",
		Short: "Inspect and manage conversation history",
	}
	historyRoot.PersistentFlags().StringVarP(&agentID, "agent", "a", "default", "Agent id")

	var limit int
	show := &cobra.Command{
		Use:     "show",
		Short:   "Print the retained conversation",
		Example: "  uniagent history show --agent default --limit 20",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openAgent(agentID)
			if err != nil {
				return err
			}
			defer a.Close()

			msgs, err := a.History(cmd.Context())
			if err != nil {
				return err
			}
			if limit > 0 && len(msgs) > limit {
				msgs = msgs[len(msgs)-limit:]
			}
			for _, m := range msgs {
				fmt.Printf("[%s] %s: %s\n", m.CreatedAt.Format("2006-01-02 15:04"), m.Role, m.Content)
			}
			return nil
		},
	}
	show.Flags().IntVarP(&limit, "limit", "n", 0, "Show only the newest N messages")
	historyRoot.AddCommand(show)

	historyRoot.AddCommand(&cobra.Command{
		Use:     "search <query>",
		Short:   "Search message content",
		Args:    cobra.ExactArgs(1),
		Example: "  uniagent history search deadline",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openAgent(agentID)
			if err != nil {
				return err
			}
			defer a.Close()

			msgs, err := a.Search(cmd.Context(), args[0], 50)
			if err != nil {
				return err
			}
			if len(msgs) == 0 {
				fmt.Println("No matches.")
				return nil
			}
			for _, m := range msgs {
				fmt.Printf("[%s] %s: %s\n", m.CreatedAt.Format("2006-01-02 15:04"), m.Role, m.Content)
			}
			return nil
		},
	})

	historyRoot.AddCommand(&cobra.Command{
		Use:     "stats",
		Short:   "Summarize the stored conversation",
		Example: "  uniagent history stats",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openAgent(agentID)
			if err != nil {
				return err
			}
			defer a.Close()

			stats, err := a.Stats(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("Messages: %d\n", stats.Total)
			for role, count := range stats.ByRole {
				fmt.Printf("  %s: %d\n", role, count)
			}
			if stats.Total > 0 {
				fmt.Printf("Characters: %d (avg %.0f per message)\n", stats.Chars, stats.AvgLength)
				fmt.Printf("First: %s\n", stats.FirstAt.Format("2006-01-02 15:04"))
				fmt.Printf("Last:  %s\n", stats.LastAt.Format("2006-01-02 15:04"))
			}
			return nil
		},
	})

	var force bool
	clear := &cobra.Command{
		Use:     "clear",
		Short:   "Delete the conversation (a backup is taken first)",
		Example: "  uniagent history clear --agent default --yes",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !force {
				fmt.Print("Clear all history? A backup will be taken first. (y/n): ")
				reader := bufio.NewReader(os.Stdin)
				response, err := reader.ReadString('\n')
				if err != nil {
					return err
				}
				response = strings.ToLower(strings.TrimSpace(response))
				if response != "y" && response != "yes" {
					fmt.Println("Aborted.")
					return nil
				}
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := openAgent(agentID)
			if err != nil {
				return err
			}
			defer a.Close()

			n, err := a.ClearHistory(cmd.Context(), cfg.Maintenance.MaxBackups)
			if err != nil {
				return err
			}
			fmt.Printf("Cleared %d messages.\n", n)
			return nil
		},
	}
	clear.Flags().BoolVarP(&force, "yes", "y", false, "Skip the confirmation prompt")
	historyRoot.AddCommand(clear)

	return historyRoot
}

func newExportCommand() *cobra.Command {
	var (
		agentID string
		format  string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the conversation to a file",
		Example: strings.Join([]string{
			"  uniagent export --agent default --format md",
			"  uniagent export --format html",
		}, "\n"),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := export.ParseFormat(format)
			if err != nil {
				return err
			}
			a, err := openAgent(agentID)
			if err != nil {
				return err
			}
			defer a.Close()

			msgs, err := a.History(cmd.Context())
			if err != nil {
				return err
			}
			if len(msgs) == 0 {
				return fmt.Errorf("nothing to export: history is empty")
			}
			path, err := export.Write(filepath.Join(a.Dir, "exports"), a.ID, msgs, f)
			if err != nil {
				return err
			}
			fmt.Printf("Exported %d messages to %s\n", len(msgs), path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&agentID, "agent", "a", "default", "Agent id")
	cmd.Flags().StringVarP(&format, "format", "f", "json", "Export format: json, txt, md, html")
	return cmd
}

func newModelsCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "models",
		Short:   "List supported models",
		Example: "  uniagent models",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range config.ListModels() {
				info, _ := config.GetModelInfo(name)
				fmt.Printf("%-14s %s\n", name, info.Description)
				fmt.Printf("               timeout: %s, max tokens: %d, tier: %s\n",
					info.Timeout, info.MaxTokens, info.CostTier)
			}
			return nil
		},
	}
}

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "status",
		Short:   "Show configuration and runtime readiness",
		Example: "  uniagent status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			fmt.Printf("%s Status\n", appName)
			fmt.Printf("Version: %s\n", formatVersion())
			fmt.Println()

			configPath := getConfigPath()
			mark := func(ok bool) string {
				if ok {
					return "✓"
				}
				return "✗"
			}

			_, err = os.Stat(configPath)
			fmt.Println("Config:", configPath, mark(err == nil))
			fmt.Println("Agents dir:", cfg.AgentsPath())

			ids, err := agent.List(cfg.AgentsPath())
			if err != nil {
				return err
			}
			if len(ids) == 0 {
				fmt.Println("Agents: none (run: uniagent onboard)")
			}
			for _, id := range ids {
				a, err := agent.Open(cfg.AgentsPath(), id)
				if err != nil {
					fmt.Printf("  %s: %v\n", id, err)
					continue
				}
				count, countErr := a.Stats(cmd.Context())
				_, keyErr := credentials.Resolve(a.Dir, a.Config().Model)
				fmt.Printf("  %s: model=%s key=%s", id, a.Config().Model, mark(keyErr == nil))
				if countErr == nil {
					fmt.Printf(" messages=%d", count.Total)
				}
				fmt.Println()
				a.Close()
			}

			discordReady := strings.TrimSpace(cfg.Channels.Discord.Token) != ""
			fmt.Println("Discord token:", mark(discordReady))
			fmt.Println("Gateway ready:", mark(discordReady && len(ids) > 0))
			return nil
		},
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "version",
		Short:   "Show build/version metadata",
		Example: "  uniagent version",
		RunE: func(cmd *cobra.Command, args []string) error {
			printVersion()
			return nil
		},
	}
}

func openAgent(agentID string) (*agent.Agent, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return agent.Open(cfg.AgentsPath(), agentID)
}

func setupLogging(a *agent.Agent, debug bool) {
	if debug {
		logger.SetLevel(logger.DEBUG)
	}
	if err := logger.OpenFile(filepath.Join(a.Dir, "logs")); err != nil {
		fmt.Fprintf(os.Stderr, "warning: file logging disabled: %v\n", err)
	}
}
