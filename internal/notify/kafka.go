package notify

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl"
	"github.com/segmentio/kafka-go/sasl/plain"
	"github.com/segmentio/kafka-go/sasl/scram"
)

// KafkaConfig configures the Kafka notification sink.
type KafkaConfig struct {
	Brokers               []string
	Topic                 string
	SASLMechanism         string // "", "plain", "scram-sha256", "scram-sha512"
	SASLUsername          string
	SASLPassword          string
	TLSEnable             bool
	TLSInsecureSkipVerify bool
	WriteTimeout          time.Duration
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Kafka publishes messages to a topic keyed by viewer id. The hash balancer
// sends every message for a viewer to the same partition, which keeps them
// in order.
type Kafka struct {
	w messageWriter
}

// NewKafka builds a synchronous writer for cfg.
func NewKafka(cfg KafkaConfig) (*Kafka, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka: no brokers configured")
	}
	if cfg.Topic == "" {
		return nil, errors.New("kafka: no topic configured")
	}

	mech, err := saslMechanism(cfg)
	if err != nil {
		return nil, err
	}

	transport := &kafka.Transport{
		DialTimeout: 10 * time.Second,
		SASL:        mech,
	}
	if cfg.TLSEnable {
		transport.TLS = &tls.Config{
			InsecureSkipVerify: cfg.TLSInsecureSkipVerify,
			MinVersion:         tls.VersionTLS12,
		}
	}

	timeout := cfg.WriteTimeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}

	return &Kafka{w: &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		WriteTimeout: timeout,
		BatchSize:    1,
		Transport:    transport,
	}}, nil
}

func saslMechanism(cfg KafkaConfig) (sasl.Mechanism, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.SASLMechanism)) {
	case "":
		return nil, nil
	case "plain":
		return plain.Mechanism{Username: cfg.SASLUsername, Password: cfg.SASLPassword}, nil
	case "scram-sha256":
		mech, err := scram.Mechanism(scram.SHA256, cfg.SASLUsername, cfg.SASLPassword)
		if err != nil {
			return nil, fmt.Errorf("scram-sha256: %w", err)
		}
		return mech, nil
	case "scram-sha512":
		mech, err := scram.Mechanism(scram.SHA512, cfg.SASLUsername, cfg.SASLPassword)
		if err != nil {
			return nil, fmt.Errorf("scram-sha512: %w", err)
		}
		return mech, nil
	default:
		return nil, fmt.Errorf("unsupported SASL mechanism: %s", cfg.SASLMechanism)
	}
}

// Publish writes one message synchronously.
func (k *Kafka) Publish(ctx context.Context, viewerID string, msg Message) error {
	value, err := msg.Encode()
	if err != nil {
		return fmt.Errorf("encoding %s message: %w", msg.Status, err)
	}
	return k.w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(viewerID),
		Value: value,
	})
}

// Close flushes and closes the writer.
func (k *Kafka) Close() error {
	return k.w.Close()
}
