package events

import (
	"context"
	"errors"
	"log/slog"

	"SafeHold/internal/escrow"
)

// LogPublisher records events in the service log. Used when no broker is
// configured.
type LogPublisher struct {
	log *slog.Logger
}

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogPublisher{log: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, evt escrow.Event) error {
	p.log.InfoContext(ctx, "escrow event",
		"type", evt.Type,
		"transaction_id", evt.TransactionID,
		"provider", evt.ProviderID,
		"escrow_id", evt.EscrowID,
		"amount", evt.Amount.String(),
		"currency", evt.Currency,
	)
	return nil
}

// Fanout delivers each event to every publisher, even if some fail.
type Fanout []escrow.Publisher

func (f Fanout) Publish(ctx context.Context, evt escrow.Event) error {
	var errs []error
	for _, p := range f {
		if err := p.Publish(ctx, evt); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
