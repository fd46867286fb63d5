package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"

	pkglog "github.com/weiawesome/wes-io-live/liveroom/pkg/log"
)

// ErrProducerClosed is returned by ProduceSessionEvent after Close.
var ErrProducerClosed = errors.New("session event producer closed")

const (
	headerEventType = "event_type"
	headerUserID    = "user_id"
	flushTimeoutMs  = 5000
)

// ConfluentProducer implements SessionEventProducer using confluent-kafka-go.
type ConfluentProducer struct {
	producer *kafka.Producer
	topic    string
	doneCh   chan struct{}
}

// NewConfluentProducer connects to brokers and makes sure topic exists.
func NewConfluentProducer(brokers, topic string, partitions int) (*ConfluentProducer, error) {
	p, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers":  brokers,
		"enable.idempotence": true,
		"linger.ms":          20,
		"compression.type":   "snappy",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	cp := &ConfluentProducer{
		producer: p,
		topic:    topic,
		doneCh:   make(chan struct{}),
	}
	go cp.watchDeliveries()

	if err := cp.ensureTopic(partitions); err != nil {
		l := pkglog.L()
		l.Warn().Err(err).Str("topic", topic).Msg("failed to ensure topic, may already exist")
	}

	return cp, nil
}

func (cp *ConfluentProducer) ensureTopic(partitions int) error {
	admin, err := kafka.NewAdminClientFromProducer(cp.producer)
	if err != nil {
		return fmt.Errorf("failed to create admin client: %w", err)
	}
	defer admin.Close()

	if partitions <= 0 {
		partitions = 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	results, err := admin.CreateTopics(ctx, []kafka.TopicSpecification{{
		Topic:             cp.topic,
		NumPartitions:     partitions,
		ReplicationFactor: 1,
	}})
	if err != nil {
		return err
	}
	for _, result := range results {
		if code := result.Error.Code(); code != kafka.ErrNoError && code != kafka.ErrTopicAlreadyExists {
			return fmt.Errorf("failed to create topic %s: %v", result.Topic, result.Error)
		}
	}
	return nil
}

func (cp *ConfluentProducer) watchDeliveries() {
	defer close(cp.doneCh)
	l := pkglog.L()
	for e := range cp.producer.Events() {
		m, ok := e.(*kafka.Message)
		if !ok || m.TopicPartition.Error == nil {
			continue
		}
		l.Error().Err(m.TopicPartition.Error).
			Str(pkglog.FieldRoomID, string(m.Key)).
			Str(pkglog.FieldEventType, headerValue(m, headerEventType)).
			Msg("session event delivery failed")
	}
}

// sessionMessage keys event by room so a room's transitions stay ordered
// within one partition.
func sessionMessage(topic string, event *SessionEvent) (*kafka.Message, error) {
	if event.RoomID == "" {
		return nil, fmt.Errorf("session event %s has no room", event.Type)
	}
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().Unix()
	}

	value, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal session event: %w", err)
	}

	return &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
		Key:            []byte(event.RoomID),
		Value:          value,
		Headers: []kafka.Header{
			{Key: headerEventType, Value: []byte(event.Type)},
			{Key: headerUserID, Value: []byte(event.UserID)},
		},
	}, nil
}

func headerValue(m *kafka.Message, key string) string {
	for _, h := range m.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

// ProduceSessionEvent enqueues event without waiting for delivery. Delivery
// failures are logged by the report watcher.
func (cp *ConfluentProducer) ProduceSessionEvent(ctx context.Context, event *SessionEvent) error {
	msg, err := sessionMessage(cp.topic, event)
	if err != nil {
		return err
	}

	if err := cp.producer.Produce(msg, nil); err != nil {
		var kerr kafka.Error
		if errors.As(err, &kerr) && kerr.Code() == kafka.ErrQueueFull {
			return fmt.Errorf("session event queue full: %w", err)
		}
		if cp.producer.IsClosed() {
			return ErrProducerClosed
		}
		return fmt.Errorf("failed to produce session event: %w", err)
	}

	l := pkglog.Ctx(ctx)
	l.Debug().Str(pkglog.FieldEventType, event.Type).Str(pkglog.FieldRoomID, event.RoomID).Msg("session event produced")
	return nil
}

// Close flushes pending events and closes the producer.
func (cp *ConfluentProducer) Close() error {
	if n := cp.producer.Flush(flushTimeoutMs); n > 0 {
		l := pkglog.L()
		l.Warn().Int("pending", n).Str("topic", cp.topic).Msg("closing with undelivered session events")
	}
	cp.producer.Close()
	<-cp.doneCh
	return nil
}
