package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/region-data-service/internal/config"
	"github.com/couchcryptid/region-data-service/internal/domain"
)

// Publisher produces one message per applied patch to the region update
// topic. It implements refresh.Publisher.
type Publisher struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewPublisher creates a Kafka producer for the configured update topic.
func NewPublisher(cfg *config.Config, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Publisher{writer: w, logger: logger}
}

// Publish writes every patch in cs in a single WriteMessages call. Messages
// are keyed by ZIP so one region's updates stay ordered on a partition.
func (p *Publisher) Publish(ctx context.Context, cs domain.ChangeSet) error {
	if len(cs.Patches) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(cs.Patches))
	for i := range cs.Patches {
		msg, err := serializeToMessage(cs, cs.Patches[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish %d %s updates: %w", len(msgs), cs.Category, err)
	}
	p.logger.Debug("published region updates", "category", cs.Category, "run_id", cs.RunID, "messages", len(msgs))
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// UpdateMessage is the JSON value of one region update. Fields carries
// explicit nulls for cleared fields.
type UpdateMessage struct {
	ZIP      string               `json:"zip"`
	Category domain.Category      `json:"category"`
	Fields   map[domain.Field]any `json:"fields"`
	Sources  []string             `json:"sources,omitempty"`
	RunID    string               `json:"runId"`
	MergedAt time.Time            `json:"mergedAt"`
}

// serializeToMessage marshals one patch of a change set into a Kafka message.
func serializeToMessage(cs domain.ChangeSet, patch domain.Patch) (kafkago.Message, error) {
	data, err := json.Marshal(UpdateMessage{
		ZIP:      patch.ZIP,
		Category: patch.Category,
		Fields:   patch.Fields,
		Sources:  patch.Sources,
		RunID:    cs.RunID,
		MergedAt: cs.MergedAt.UTC(),
	})
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize region update %s: %w", patch.ZIP, err)
	}
	return kafkago.Message{
		Key:   []byte(patch.ZIP),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "category", Value: []byte(cs.Category)},
			{Key: "run_id", Value: []byte(cs.RunID)},
			{Key: "merged_at", Value: []byte(cs.MergedAt.UTC().Format(time.RFC3339))},
		},
	}, nil
}
