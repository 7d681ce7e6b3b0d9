package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"

	audit "agora/pkg/platform/audit"
)

// Kafka publishes audit events to a Kafka topic. Delivery is asynchronous;
// a failed produce is logged and dropped rather than surfaced to the
// triggering operation.
type Kafka struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

// NewKafka connects a producer to the given brokers.
func NewKafka(brokers []string, topic string, logger *slog.Logger) (*Kafka, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return &Kafka{client: client, topic: topic, logger: logger}, nil
}

type wireEvent struct {
	Category    string `json:"category"`
	Action      string `json:"action"`
	Timestamp   string `json:"timestamp"`
	ActorID     string `json:"actor_id,omitempty"`
	OrgID       string `json:"org_id,omitempty"`
	CandidateID string `json:"candidate_id,omitempty"`
	Subject     string `json:"subject,omitempty"`
	Reason      string `json:"reason,omitempty"`
	RequestID   string `json:"request_id,omitempty"`
}

func (k *Kafka) Emit(ctx context.Context, event audit.Event) error {
	payload, err := json.Marshal(wireEvent{
		Category:    string(event.Category),
		Action:      string(event.Action),
		Timestamp:   event.Timestamp.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		ActorID:     zeroless(event.ActorID.String()),
		OrgID:       zeroless(event.OrgID.String()),
		CandidateID: zeroless(event.CandidateID.String()),
		Subject:     event.Subject,
		Reason:      event.Reason,
		RequestID:   event.RequestID,
	})
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}

	record := &kgo.Record{
		Topic: k.topic,
		Key:   []byte(event.Action),
		Value: payload,
	}
	k.client.Produce(ctx, record, func(_ *kgo.Record, err error) {
		if err != nil && k.logger != nil {
			k.logger.Warn("audit event publish failed",
				"action", string(event.Action), "error", err)
		}
	})
	return nil
}

// Close flushes buffered records and releases the client.
func (k *Kafka) Close(ctx context.Context) error {
	if err := k.client.Flush(ctx); err != nil {
		return fmt.Errorf("flush audit producer: %w", err)
	}
	k.client.Close()
	return nil
}

const nilUUID = "00000000-0000-0000-0000-000000000000"

func zeroless(s string) string {
	if s == nilUUID {
		return ""
	}
	return s
}
