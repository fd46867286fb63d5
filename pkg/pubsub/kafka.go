package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/google/uuid"

	pkglog "github.com/weiawesome/wes-io-live/liveroom/pkg/log"
)

// Topics backing the two channel families.
const (
	TopicClientToServer = "client-to-server"
	TopicServerToClient = "server-to-client"
)

const (
	headerEventType  = "event_type"
	pollTimeoutMs    = 500
	flushTimeoutMs   = 5000
	kafkaEventBuffer = 100
)

// channelToTopicAndKey maps a room channel onto a Kafka topic and the room ID
// used as the message key, so every room keeps its ordering on one partition.
//
//	"client:room:R1:to_server" -> topic "client-to-server", key "R1"
//	"server:room:R1:to_client" -> topic "server-to-client", key "R1"
func channelToTopicAndKey(channel string) (topic, key string, err error) {
	parts := strings.Split(channel, ":")
	if len(parts) != 4 || parts[1] != "room" || parts[2] == "" || !strings.HasPrefix(parts[3], "to_") {
		return "", "", fmt.Errorf("invalid channel format: %s", channel)
	}

	topic = parts[0] + "-" + strings.ReplaceAll(parts[3], "_", "-")
	return topic, parts[2], nil
}

// patternToTopic maps a wildcard subscription onto its topic.
//
//	"server:room:*:to_client" -> "server-to-client"
func patternToTopic(pattern string) (string, error) {
	topic, _, err := channelToTopicAndKey(strings.ReplaceAll(pattern, "*", "any"))
	return topic, err
}

var groupIDRegexp = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// consumerGroup names the consumer group of a subscription. Groups are unique
// per process: every instance hosts its own sessions and must see every push
// event of their rooms, so instances never share partitions.
func consumerGroup(base, instance, subKey string) string {
	if base == "" {
		base = "pubsub-default"
	}
	return fmt.Sprintf("%s-%s-%s", base, instance, groupIDRegexp.ReplaceAllString(subKey, "-"))
}

// roomConsumer feeds one subscription. roomID is empty for pattern
// subscriptions, which take the whole topic.
type roomConsumer struct {
	consumer *kafka.Consumer
	roomID   string
	cancel   context.CancelFunc
}

// KafkaPubSub implements PubSub on Kafka. Each channel family is one topic
// keyed by room ID.
type KafkaPubSub struct {
	producer *kafka.Producer
	config   KafkaConfig
	instance string
	doneCh   chan struct{}

	mu        sync.Mutex
	consumers map[string]*roomConsumer // channel or pattern -> consumer
}

// NewKafkaPubSub creates a Kafka-backed PubSub. The producer is idempotent so
// requests of one room are never reordered by retries.
func NewKafkaPubSub(cfg KafkaConfig) (*KafkaPubSub, error) {
	p, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers":  cfg.Brokers,
		"enable.idempotence": true,
		"linger.ms":          5,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	k := &KafkaPubSub{
		producer:  p,
		config:    cfg,
		instance:  uuid.NewString()[:8],
		doneCh:    make(chan struct{}),
		consumers: make(map[string]*roomConsumer),
	}

	go k.watchDeliveries()

	if err := k.ensureTopics(); err != nil {
		l := pkglog.L()
		l.Warn().Err(err).Msg("failed to ensure kafka topics, they may already exist")
	}

	return k, nil
}

func (k *KafkaPubSub) ensureTopics() error {
	admin, err := kafka.NewAdminClientFromProducer(k.producer)
	if err != nil {
		return fmt.Errorf("failed to create admin client: %w", err)
	}
	defer admin.Close()

	partitions := k.config.Partitions
	if partitions <= 0 {
		partitions = 4
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	specs := make([]kafka.TopicSpecification, 0, 2)
	for _, topic := range []string{TopicClientToServer, TopicServerToClient} {
		specs = append(specs, kafka.TopicSpecification{Topic: topic, NumPartitions: partitions, ReplicationFactor: 1})
	}

	results, err := admin.CreateTopics(ctx, specs)
	if err != nil {
		return fmt.Errorf("failed to create topics: %w", err)
	}
	for _, r := range results {
		if code := r.Error.Code(); code != kafka.ErrNoError && code != kafka.ErrTopicAlreadyExists {
			return fmt.Errorf("failed to create topic %s: %v", r.Topic, r.Error)
		}
	}
	return nil
}

func (k *KafkaPubSub) watchDeliveries() {
	defer close(k.doneCh)
	l := pkglog.L()
	for e := range k.producer.Events() {
		m, ok := e.(*kafka.Message)
		if !ok || m.TopicPartition.Error == nil {
			continue
		}
		l.Error().Err(m.TopicPartition.Error).
			Str("topic", *m.TopicPartition.Topic).
			Str(pkglog.FieldRoomID, string(m.Key)).
			Msg("kafka pubsub delivery failed")
	}
}

// Publish produces event on the channel's topic, keyed by room.
func (k *KafkaPubSub) Publish(ctx context.Context, channel string, event *Event) error {
	topic, roomID, err := channelToTopicAndKey(channel)
	if err != nil {
		return err
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
		Key:            []byte(roomID),
		Value:          data,
		Headers:        []kafka.Header{{Key: headerEventType, Value: []byte(event.Type)}},
	}
	if err := k.producer.Produce(msg, nil); err != nil {
		return fmt.Errorf("failed to produce to %s: %w", topic, err)
	}
	return nil
}

// Subscribe consumes the channel's topic and keeps only the channel's room.
func (k *KafkaPubSub) Subscribe(ctx context.Context, channel string) (<-chan *Event, error) {
	topic, roomID, err := channelToTopicAndKey(channel)
	if err != nil {
		return nil, err
	}
	return k.subscribe(ctx, channel, topic, roomID)
}

// SubscribePattern consumes every room of the pattern's topic.
func (k *KafkaPubSub) SubscribePattern(ctx context.Context, pattern string) (<-chan *Event, error) {
	topic, err := patternToTopic(pattern)
	if err != nil {
		return nil, err
	}
	return k.subscribe(ctx, pattern, topic, "")
}

func (k *KafkaPubSub) subscribe(ctx context.Context, subKey, topic, roomID string) (<-chan *Event, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if existing, ok := k.consumers[subKey]; ok {
		existing.cancel()
		existing.consumer.Close()
		delete(k.consumers, subKey)
	}

	c, err := kafka.NewConsumer(&kafka.ConfigMap{
		"bootstrap.servers":  k.config.Brokers,
		"group.id":           consumerGroup(k.config.GroupID, k.instance, subKey),
		"auto.offset.reset":  "latest",
		"enable.auto.commit": true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka consumer: %w", err)
	}
	if err := c.Subscribe(topic, nil); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to subscribe to topic %s: %w", topic, err)
	}

	subCtx, cancel := context.WithCancel(ctx)
	rc := &roomConsumer{consumer: c, roomID: roomID, cancel: cancel}
	k.consumers[subKey] = rc

	out := make(chan *Event, kafkaEventBuffer)
	go rc.run(subCtx, out)
	return out, nil
}

// run polls until ctx is done, forwarding the room's events to out. A full
// buffer drops the event rather than stalling the partition.
func (rc *roomConsumer) run(ctx context.Context, out chan<- *Event) {
	defer close(out)
	l := pkglog.L()

	for ctx.Err() == nil {
		switch e := rc.consumer.Poll(pollTimeoutMs).(type) {
		case *kafka.Message:
			if rc.roomID != "" && string(e.Key) != rc.roomID {
				continue
			}
			event, err := decodeMessage(e)
			if err != nil {
				l.Warn().Err(err).Str(pkglog.FieldRoomID, string(e.Key)).Msg("dropping undecodable kafka message")
				continue
			}
			select {
			case out <- event:
			case <-ctx.Done():
				return
			default:
				l.Warn().Str(pkglog.FieldEventType, event.Type).Str(pkglog.FieldRoomID, event.RoomID).Msg("subscriber buffer full, event dropped")
			}

		case kafka.Error:
			l.Error().Err(e).Bool("fatal", e.IsFatal()).Msg("kafka pubsub error")
			if e.IsFatal() {
				return
			}
		}
	}
}

// decodeMessage unmarshals a message value. A missing room ID is taken from
// the message key.
func decodeMessage(m *kafka.Message) (*Event, error) {
	var event Event
	if err := json.Unmarshal(m.Value, &event); err != nil {
		return nil, err
	}
	if event.RoomID == "" {
		event.RoomID = string(m.Key)
	}
	if event.Type == "" {
		for _, h := range m.Headers {
			if h.Key == headerEventType {
				event.Type = string(h.Value)
			}
		}
	}
	return &event, nil
}

// Unsubscribe stops the subscription of a channel or pattern.
func (k *KafkaPubSub) Unsubscribe(ctx context.Context, channel string) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	rc, ok := k.consumers[channel]
	if !ok {
		return nil
	}
	delete(k.consumers, channel)
	rc.cancel()
	if err := rc.consumer.Close(); err != nil {
		return fmt.Errorf("failed to close consumer: %w", err)
	}
	return nil
}

// Close stops every subscription and flushes pending requests.
func (k *KafkaPubSub) Close() error {
	k.mu.Lock()
	for key, rc := range k.consumers {
		rc.cancel()
		rc.consumer.Close()
		delete(k.consumers, key)
	}
	k.mu.Unlock()

	if n := k.producer.Flush(flushTimeoutMs); n > 0 {
		l := pkglog.L()
		l.Warn().Int("pending", n).Msg("kafka pubsub closed with undelivered requests")
	}
	k.producer.Close()
	<-k.doneCh
	return nil
}
