package producer

import (
	"context"
	"encoding/json"
	"fmt"

	wbfkafka "github.com/wb-go/wbf/kafka"
	"github.com/wb-go/wbf/retry"

	"github.com/aliskhannn/image-proxy/internal/config"
	"github.com/aliskhannn/image-proxy/internal/model"
)

// Producer publishes warm-up requests to Kafka.
type Producer struct {
	Client   *wbfkafka.Producer
	strategy retry.Strategy
	cfg      *config.Kafka
}

// New creates a new Producer.
// - cfg: Kafka configuration struct
// - s: retry strategy used for every send
func New(cfg *config.Kafka, s retry.Strategy) *Producer {
	producer := wbfkafka.NewProducer(cfg.Brokers, cfg.Topic)

	return &Producer{
		Client:   producer,
		cfg:      cfg,
		strategy: s,
	}
}

// Produce serializes req to JSON and sends it to Kafka.
// The source URL is the message key, so requests for one source stay ordered
// on a single partition.
func (p *Producer) Produce(ctx context.Context, req model.WarmRequest) error {
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal warm request: %w", err)
	}

	if err = p.Client.SendWithRetry(ctx, p.strategy, []byte(req.URL), data); err != nil {
		return fmt.Errorf("failed to send warm request: %w", err)
	}

	return nil
}
