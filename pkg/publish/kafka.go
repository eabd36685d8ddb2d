// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package publish

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Thermoquad/dl24log/pkg/config"
)

type kafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Kafka writes every payload to one topic keyed by session id, so all
// readings of a run land in the same partition in order
type Kafka struct {
	writer kafkaWriter
	topic  string
	now    func() time.Time
}

// NewKafka creates a synchronous writer. No connection is made until the
// first message.
func NewKafka(cfg config.KafkaConfig) *Kafka {
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 10 * time.Millisecond,
	}
	return newKafka(w, cfg.Topic)
}

func newKafka(w kafkaWriter, topic string) *Kafka {
	return &Kafka{writer: w, topic: topic, now: time.Now}
}

func (k *Kafka) Name() string { return "kafka" }

func (k *Kafka) Publish(ctx context.Context, key string, payload []byte) error {
	msg := kafka.Message{Key: []byte(key), Value: payload, Time: k.now()}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write %s: %w", k.topic, err)
	}
	return nil
}

func (k *Kafka) Close() error {
	return k.writer.Close()
}
