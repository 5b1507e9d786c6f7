package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"canvasConverter/worker/config"
	"canvasConverter/worker/kafka"
)

var errNoBrokers = errors.New("no kafka brokers configured, set KAFKA_BROKERS or --brokers")

func newEventsCmd(cfg *config.Config, logger *zap.Logger) *cobra.Command {
	var (
		brokers []string
		topic   string
		group   string
	)

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Follow finished batch events published by the API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(brokers) == 0 {
				return errNoBrokers
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			consumer, err := kafka.NewConsumer(brokers, group, logger)
			if err != nil {
				return fmt.Errorf("create consumer: %w", err)
			}
			defer consumer.Close()

			logger.Info("Following batch events",
				zap.Strings("brokers", brokers),
				zap.String("topic", topic),
				zap.String("group", group),
			)
			return consumer.Consume(ctx, topic, printEvent(cmd.OutOrStdout()))
		},
	}

	flags := cmd.Flags()
	flags.StringSliceVar(&brokers, "brokers", cfg.KafkaBrokers, "kafka brokers")
	flags.StringVar(&topic, "topic", cfg.KafkaTopic, "batch event topic")
	flags.StringVar(&group, "group", cfg.KafkaGroupID, "consumer group id")

	return cmd
}

func printEvent(out io.Writer) kafka.EventHandler {
	return func(_ context.Context, e *kafka.BatchEvent) error {
		line := fmt.Sprintf("%s %s %s: %d/%d converted", e.CompletedAt.Format("15:04:05"), e.ID, e.Status, e.Succeeded, e.Total)
		if e.Error != "" {
			line += " (" + e.Error + ")"
		}
		_, err := fmt.Fprintln(out, line)
		return err
	}
}
