package publisher

import (
	"context"
	"fmt"

	"alphaspike/internal/domain/models"
	appkafka "alphaspike/pkg/kafka"
	applogger "alphaspike/pkg/logger"
)

// KafkaPublisher pushes freshly scanned signal sets to a Kafka topic,
// keyed by feature name so each feature's sets stay ordered.
type KafkaPublisher struct {
	producer *appkafka.Producer
	topic    string
	l        *applogger.Logger
}

// New creates a publisher over an existing producer.
func New(producer *appkafka.Producer, topic string, l *applogger.Logger) *KafkaPublisher {
	if l == nil {
		l = applogger.Nop()
	}
	return &KafkaPublisher{producer: producer, topic: topic, l: l}
}

// PublishSignals sends one signal set.
func (p *KafkaPublisher) PublishSignals(ctx context.Context, set models.SignalSet) error {
	if err := p.producer.Publish(ctx, p.topic, []byte(set.Feature), set); err != nil {
		return fmt.Errorf("publish %s@%s: %w", set.Feature, set.Date, err)
	}
	p.l.Debug("signal set published",
		applogger.String("feature", set.Feature),
		applogger.String("date", set.Date),
		applogger.Int("symbols", len(set.Symbols)),
	)
	return nil
}

// Close flushes the underlying producer.
func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}
