package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/frahmantamala/merchant-settlement/internal/core/events"
	"github.com/frahmantamala/merchant-settlement/internal/messaging"
	"github.com/frahmantamala/merchant-settlement/pkg/logger"
	"github.com/oklog/ulid/v2"
	"github.com/spf13/cobra"
)

var eventCmd = &cobra.Command{
	Use:   "event",
	Short: "Event management commands",
	Long:  `Publish test events to the in-process bus and, when messaging.amqp_url is set, to the broker exchange.`,
}

var publishEventCmd = &cobra.Command{
	Use:   "publish [event-type]",
	Short: "Publish a test event",
	Long:  `Publish a test event for checking subscribers and the broker binding, e.g. payment.released`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := publishTestEvent(args[0]); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
	},
}

var eventData string

func publishTestEvent(eventType string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	log := logger.LoggerWrapper()

	bus := events.NewEventBus(log)
	bus.Subscribe(eventType, func(ctx context.Context, event events.Event) error {
		log.Info("test handler received event",
			"event_id", event.EventID(),
			"event_type", event.EventType(),
			"payload", event.Payload())
		return nil
	})

	if cfg.Messaging.AMQPURL != "" {
		fwd, err := messaging.Dial(cfg.Messaging.AMQPURL, cfg.Messaging.Exchange, log)
		if err != nil {
			return fmt.Errorf("failed to connect to message broker: %w", err)
		}
		defer fwd.Close()
		fwd.Attach(bus)
	}

	testEvent := events.BaseEvent{
		ID:        ulid.Make().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Data: map[string]interface{}{
			"message": eventData,
			"source":  "cli-command",
		},
	}

	log.Info("publishing test event", "event_type", eventType, "event_id", testEvent.ID)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := bus.PublishSync(ctx, testEvent); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	log.Info("test event published successfully")
	return nil
}

func init() {
	publishEventCmd.Flags().StringVar(&eventData, "data", "test message", "Event data message")

	eventCmd.AddCommand(publishEventCmd)

	rootCmd.AddCommand(eventCmd)
}
