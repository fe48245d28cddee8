// Package events publishes leg records to Kafka.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/ClipFinance/stargate-bridger/common/types"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// messageWriter is the subset of *kafka.Writer used by the publisher.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher writes every leg record as a JSON message keyed by wallet address,
// so the legs of one wallet stay ordered within a partition.
type Publisher struct {
	mu     sync.RWMutex // Guards writer only, never held across a write.
	writer messageWriter
	topic  string
	logger *logrus.Logger
}

// NewPublisher creates a publisher.
//
// Parameters:
// - brokers: the Kafka bootstrap addresses.
// - topic: the topic receiving leg records.
// - batchTimeout: the longest a message waits for its batch to fill.
// - logger: the logger for published records.
//
// Returns:
// - *Publisher: the publisher.
func NewPublisher(brokers []string, topic string, batchTimeout time.Duration, logger *logrus.Logger) *Publisher {
	return &Publisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			BatchTimeout: batchTimeout,
			RequiredAcks: kafka.RequireOne,
		},
		topic:  topic,
		logger: logger,
	}
}

// RecordLeg publishes one leg record.
func (p *Publisher) RecordLeg(ctx context.Context, rec *types.LegRecord) error {
	value, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrap(err, "failed to marshal leg record")
	}

	p.mu.RLock()
	w := p.writer
	p.mu.RUnlock()
	if w == nil {
		return errors.New("publisher closed")
	}

	err = w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(rec.Wallet),
		Value: value,
		Time:  rec.FinishedAt,
	})
	if err != nil {
		return errors.Wrapf(err, "failed to write leg %s to %s", rec.Route, p.topic)
	}

	p.logger.WithFields(logrus.Fields{
		"wallet": rec.Wallet,
		"route":  rec.Route,
		"topic":  p.topic,
	}).Debug("Leg published")
	return nil
}

// Close flushes pending messages and closes the writer.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.writer == nil {
		return nil
	}
	err := p.writer.Close()
	p.writer = nil
	return err
}
