/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/bayanihan-data/povassess/config"
	"github.com/bayanihan-data/povassess/internal/mq"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Inspect published domain events",
}

var eventsTailCmd = &cobra.Command{
	Use:   "tail [channel...]",
	Short: "Print events from the configured broker until interrupted",
	Long: `Subscribe to domain event channels and print each event as it arrives.
With no arguments every channel is followed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		log, err := newLogger(cfg)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		defer func() { _ = log.Sync() }()

		bus, err := mq.FromConfig(cmd.Context(), cfg.MQ)
		if err != nil {
			return err
		}
		if bus == nil {
			return errors.New("MQ_BACKEND is not configured")
		}
		defer bus.Close()

		channels := args
		if len(channels) == 0 {
			channels = mq.Channels
		}

		out := cmd.OutOrStdout()
		g, ctx := errgroup.WithContext(cmd.Context())
		for _, channel := range channels {
			g.Go(func() error {
				return bus.Subscribe(ctx, channel, func(_ context.Context, msg mq.Message) error {
					event, err := mq.DecodeEvent(msg)
					if err != nil {
						log.Warn("skipping undecodable message", zap.String("channel", channel), zap.Error(err))
						return nil
					}
					fmt.Fprintf(out, "%s %s %s %s\n", event.OccurredAt.Format("2006-01-02T15:04:05Z07:00"), event.Type, event.ID, event.Payload)
					return nil
				})
			})
		}
		if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.AddCommand(eventsTailCmd)
}
