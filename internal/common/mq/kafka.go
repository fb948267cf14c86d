package mq

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
)

const (
	headerID        = "x-message-id"
	headerTimestamp = "x-message-ts"
)

// KafkaConfig defines configuration for the Kafka producer.
type KafkaConfig struct {
	Brokers  []string `yaml:"brokers"`
	ClientID string   `yaml:"clientID"`

	RequiredAcks int           `yaml:"requiredAcks"`
	BatchSize    int           `yaml:"batchSize"`
	BatchTimeout time.Duration `yaml:"batchTimeout"`

	DialTimeout  time.Duration `yaml:"dialTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
}

// KafkaProducer implements Producer using kafka-go.
type KafkaProducer struct {
	config KafkaConfig
	writer *kafka.Writer
}

// NewKafkaProducer creates a Kafka-backed producer.
func NewKafkaProducer(cfg KafkaConfig) (*KafkaProducer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("brokers are required")
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 100
	}
	if cfg.BatchTimeout == 0 {
		cfg.BatchTimeout = 50 * time.Millisecond
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.RequiredAcks == 0 {
		cfg.RequiredAcks = int(kafka.RequireOne)
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequiredAcks(cfg.RequiredAcks),
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchTimeout,
		WriteTimeout: cfg.WriteTimeout,
		Transport: &kafka.Transport{
			ClientID:    cfg.ClientID,
			DialTimeout: cfg.DialTimeout,
		},
	}

	return &KafkaProducer{config: cfg, writer: writer}, nil
}

// Publish publishes one message to the topic. The message ID is used as the
// partition key so results of the same match land on the same partition.
func (p *KafkaProducer) Publish(ctx context.Context, topic string, message *Message) error {
	if topic == "" {
		return errors.New("topic is required")
	}
	if message == nil {
		return errors.New("message is nil")
	}
	if message.Timestamp.IsZero() {
		message.Timestamp = time.Now()
	}

	headers := make([]kafka.Header, 0, len(message.Headers)+2)
	headers = append(headers,
		kafka.Header{Key: headerID, Value: []byte(message.ID)},
		kafka.Header{Key: headerTimestamp, Value: []byte(strconv.FormatInt(message.Timestamp.UnixMilli(), 10))},
	)
	for k, v := range message.Headers {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
	}

	return p.writer.WriteMessages(ctx, kafka.Message{
		Topic:   topic,
		Key:     []byte(message.ID),
		Value:   message.Body,
		Headers: headers,
		Time:    message.Timestamp,
	})
}

// Ping dials the first broker to verify connectivity.
func (p *KafkaProducer) Ping(ctx context.Context) error {
	dialer := &kafka.Dialer{Timeout: p.config.DialTimeout, DualStack: true}
	conn, err := dialer.DialContext(ctx, "tcp", p.config.Brokers[0])
	if err != nil {
		return err
	}
	return conn.Close()
}

// Close closes the underlying writer.
func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}
