// UniAgent - Unified OpenAI chat agent for the terminal
// License: MIT
//
// Copyright (c) 2026 UniAgent contributors

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/uniagent/uniagent/pkg/agent"
	"github.com/uniagent/uniagent/pkg/bus"
	"github.com/uniagent/uniagent/pkg/channels"
	"github.com/uniagent/uniagent/pkg/config"
	"github.com/uniagent/uniagent/pkg/logger"
	"github.com/uniagent/uniagent/pkg/maintenance"
)

func newGatewayCommand() *cobra.Command {
	var (
		agentID string
		debug   bool
	)

	cmd := &cobra.Command{
		Use:   "gateway",
		Short: "Run the Discord gateway",
		Long: strings.TrimSpace(`Run the gateway: listen on the configured channels and answer with the
chosen agent. Also runs the scheduled history backup sweep. Stops on
SIGINT/SIGTERM.`),
		Example: "  uniagent gateway --agent default",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runGateway(cfg, agentID, debug)
		},
	}

	cmd.Flags().StringVarP(&agentID, "agent", "a", "default", "Agent that answers channel messages")
	cmd.Flags().BoolVar(&debug, "debug", false, "Enable debug logging")
	return cmd
}

func runGateway(cfg *config.Config, agentID string, debug bool) error {
	a, err := agent.Open(cfg.AgentsPath(), agentID)
	if err != nil {
		return err
	}
	defer a.Close()
	setupLogging(a, debug)

	messageBus := bus.NewMessageBus()
	defer messageBus.Close()

	manager, err := channels.NewManager(cfg, messageBus)
	if err != nil {
		return err
	}

	scheduler, err := maintenance.NewScheduler(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := manager.StartAll(ctx); err != nil {
		return err
	}
	go scheduler.Run(ctx)
	go respondLoop(ctx, a, cfg, messageBus)

	fmt.Printf("Gateway running with agent %q (model: %s). Press Ctrl-C to stop.\n",
		a.ID, a.Config().Model)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	<-sigs

	fmt.Println("\nShutting down...")
	cancel()
	if err := manager.StopAll(context.Background()); err != nil {
		logger.WarnCF("gateway", "Channel shutdown reported errors", map[string]interface{}{
			"error": err.Error(),
		})
	}
	return nil
}

// respondLoop answers each inbound channel message with a full agent turn.
// Replies are collected rather than streamed; chat channels deliver whole
// messages.
func respondLoop(ctx context.Context, a *agent.Agent, cfg *config.Config, messageBus *bus.MessageBus) {
	for {
		msg, ok := messageBus.ConsumeInbound(ctx)
		if !ok {
			return
		}

		logger.InfoCF("gateway", "Handling channel message", map[string]interface{}{
			"channel": msg.Channel,
			"sender":  msg.SenderID,
		})

		reply, err := answer(ctx, a, cfg, msg.Content)
		if err != nil {
			logger.ErrorCF("gateway", "Agent call failed", map[string]interface{}{
				"channel": msg.Channel,
				"error":   err.Error(),
			})
			reply = "Sorry, something went wrong handling that message."
		}

		// Publish even an empty reply: the channel sends nothing for it but
		// uses the delivery to clear its typing indicator.
		messageBus.PublishOutbound(bus.OutboundMessage{
			Channel: msg.Channel,
			ChatID:  msg.ChatID,
			Content: reply,
		})
	}
}

func answer(ctx context.Context, a *agent.Agent, cfg *config.Config, text string) (string, error) {
	turn, err := a.Call(ctx, cfg.GetAPIBase(), text)
	if err != nil {
		return "", err
	}
	for turn.Next() {
	}
	reply := turn.Message()
	if err := turn.Close(); err != nil {
		return reply, err
	}
	return reply, turn.Err()
}
