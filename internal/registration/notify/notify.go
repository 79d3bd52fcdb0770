// Package notify announces submitted applications to downstream reviewers.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"intake/internal/registration/models"
	"intake/pkg/requestcontext"
)

// EventApplicationSubmitted is the event type header on every record.
const EventApplicationSubmitted = "application_submitted"

// KafkaNotifier publishes notifications as JSON records keyed by account ID.
type KafkaNotifier struct {
	client *kgo.Client
	topic  string
}

// NewKafka connects a producer to brokers. Extra client options are appended
// after the defaults.
func NewKafka(brokers []string, topic string, opts ...kgo.Opt) (*KafkaNotifier, error) {
	if len(brokers) == 0 {
		return nil, errors.New("notify: at least one broker is required")
	}
	if topic == "" {
		return nil, errors.New("notify: topic is required")
	}
	base := []kgo.Opt{
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	}
	client, err := kgo.NewClient(append(base, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("notify: create kafka client: %w", err)
	}
	return &KafkaNotifier{client: client, topic: topic}, nil
}

// EnsureTopic creates the topic if it does not exist.
func (n *KafkaNotifier) EnsureTopic(ctx context.Context, partitions int32, replication int16) error {
	resp, err := kadm.NewClient(n.client).CreateTopics(ctx, partitions, replication, nil, n.topic)
	if err != nil {
		return fmt.Errorf("notify: create topic: %w", err)
	}
	if r, ok := resp[n.topic]; ok && r.Err != nil && !errors.Is(r.Err, kerr.TopicAlreadyExists) {
		return fmt.Errorf("notify: create topic %s: %w", n.topic, r.Err)
	}
	return nil
}

// ApplicationSubmitted produces one record and waits for the broker ack.
func (n *KafkaNotifier) ApplicationSubmitted(ctx context.Context, notification models.Notification) error {
	value, err := json.Marshal(notification)
	if err != nil {
		return fmt.Errorf("notify: encode notification: %w", err)
	}
	record := &kgo.Record{
		Topic: n.topic,
		Key:   []byte(notification.AccountID.String()),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "event_type", Value: []byte(EventApplicationSubmitted)},
		},
	}
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		record.Headers = append(record.Headers, kgo.RecordHeader{Key: "request_id", Value: []byte(requestID)})
	}
	if err := n.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("notify: produce: %w", err)
	}
	return nil
}

func (n *KafkaNotifier) Close() {
	n.client.Close()
}

// LogNotifier writes notifications to the log for deployments without a
// broker.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLog(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) ApplicationSubmitted(ctx context.Context, notification models.Notification) error {
	n.logger.InfoContext(ctx, notification.Message,
		"event", EventApplicationSubmitted,
		"application_id", notification.ApplicationID.String(),
		"account_id", notification.AccountID.String(),
		"request_id", requestcontext.RequestID(ctx),
	)
	return nil
}
