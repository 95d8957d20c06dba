package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/rl1809/shop-cart/internal/core/domain"
	"github.com/rl1809/shop-cart/internal/port"
)

const publishTimeout = 5 * time.Second

// RunEventWorker drains queue into publisher until the queue is closed.
// Failures are logged and the event is dropped; the order is already committed.
func RunEventWorker(id int, queue <-chan domain.OrderPlaced, publisher port.EventPublisher, log zerolog.Logger) {
	log = log.With().Str("component", "event_worker").Int("worker", id).Logger()

	for event := range queue {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)

		if err := publisher.PublishOrderPlaced(ctx, event); err != nil {
			log.Error().Err(err).Int64("order_id", event.OrderID).Str("event_id", event.EventID).
				Msg("failed to publish order placed event")
		} else {
			log.Debug().Int64("order_id", event.OrderID).Msg("published order placed event")
		}

		cancel()
	}
}
