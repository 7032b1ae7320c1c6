package broker

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"passenger-service/internal/domain/entity"
	"passenger-service/pkg/logger"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

// Kafka record header names
const (
	HeaderEventType = "event_type"
	HeaderMessageID = "message_id"
)

// KafkaConfig configures a KafkaPublisher
type KafkaConfig struct {
	Brokers           []string
	Topic             string
	Partitions        int32
	ReplicationFactor int16
}

// producer is the part of *kgo.Client the publisher uses
type producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
	Close()
}

// topicCreator is the part of *kadm.Client used at startup
type topicCreator interface {
	CreateTopic(ctx context.Context, partitions int32, replicationFactor int16, configs map[string]*string, topic string) (kadm.CreateTopicResponse, error)
}

// KafkaPublisher publishes envelopes to a single topic. The franz-go client is
// safe for concurrent use and reconnects on its own.
type KafkaPublisher struct {
	client producer
	topic  string
	logger logger.Logger
}

// NewKafkaPublisher connects to the cluster and makes sure the topic exists
func NewKafkaPublisher(ctx context.Context, cfg KafkaConfig, log logger.Logger) (*KafkaPublisher, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(cfg.Topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka client: %w", err)
	}

	if err := ensureTopic(ctx, kadm.NewClient(client), cfg); err != nil {
		client.Close()
		return nil, err
	}

	log.Info("Connected to Kafka", "brokers", cfg.Brokers, "topic", cfg.Topic)

	return &KafkaPublisher{
		client: client,
		topic:  cfg.Topic,
		logger: log,
	}, nil
}

func ensureTopic(ctx context.Context, adm topicCreator, cfg KafkaConfig) error {
	partitions := cfg.Partitions
	if partitions <= 0 {
		partitions = 1
	}
	replication := cfg.ReplicationFactor
	if replication <= 0 {
		replication = 1
	}

	// CreateTopic also returns the per-topic error as err
	resp, err := adm.CreateTopic(ctx, partitions, replication, nil, cfg.Topic)
	if err == nil {
		err = resp.Err
	}
	if err != nil && !errors.Is(err, kerr.TopicAlreadyExists) {
		return fmt.Errorf("failed to create topic %s: %w", cfg.Topic, err)
	}
	return nil
}

// buildRecord keys the record by passenger so one passenger's events stay
// ordered within a partition
func buildRecord(topic string, env *entity.Envelope) (*kgo.Record, error) {
	body, err := env.Encode()
	if err != nil {
		return nil, err
	}

	return &kgo.Record{
		Topic: topic,
		Key:   []byte(strconv.FormatInt(env.AggregateID, 10)),
		Value: body,
		Headers: []kgo.RecordHeader{
			{Key: HeaderEventType, Value: []byte(env.EventType)},
			{Key: HeaderMessageID, Value: []byte(env.ID)},
		},
		Timestamp: env.Timestamp,
	}, nil
}

// Publish produces env and waits for the broker acknowledgement
func (p *KafkaPublisher) Publish(ctx context.Context, env *entity.Envelope) error {
	rec, err := buildRecord(p.topic, env)
	if err != nil {
		return err
	}

	if err := p.client.ProduceSync(ctx, rec).FirstErr(); err != nil {
		if errors.Is(err, kgo.ErrClientClosed) {
			return ErrPublisherClosed
		}
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %v", ErrBrokerUnavailable, err)
		}
		return fmt.Errorf("failed to publish %s: %w", env.EventType, err)
	}
	return nil
}

// Close flushes nothing; ProduceSync already waited for every record
func (p *KafkaPublisher) Close() error {
	p.client.Close()
	return nil
}
