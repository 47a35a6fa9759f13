package report

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/apiprobe/apiprobe/shared/rabbitmq"
)

// Publisher ships reports to the broker as JSON messages.
type Publisher struct {
	client *rabbitmq.Client
	logger *slog.Logger
}

// NewPublisher creates a report publisher on an established broker client.
func NewPublisher(client *rabbitmq.Client, logger *slog.Logger) *Publisher {
	return &Publisher{
		client: client,
		logger: logger,
	}
}

// Publish marshals the report and hands it to the broker client.
func (p *Publisher) Publish(ctx context.Context, rep Report) error {
	body, err := json.Marshal(rep)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	if err := p.client.Publish(ctx, body, "application/json"); err != nil {
		return fmt.Errorf("failed to publish report: %w", err)
	}

	p.logger.Info("Report published",
		slog.String("run_id", rep.RunID),
		slog.Int("checks", len(rep.Checks)),
	)
	return nil
}
