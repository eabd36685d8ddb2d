// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package publish

import (
	"context"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/Thermoquad/dl24log/pkg/config"
)

const (
	mqttConnectTimeout = 10 * time.Second
	mqttQuiesceMillis  = 250
)

var errMQTTTimeout = errors.New("mqtt publish timed out")

// mqttClient is the subset of mqtt.Client used here
type mqttClient interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// MQTT publishes every payload to one topic
type MQTT struct {
	client mqttClient
	topic  string
	qos    byte
}

// NewMQTT connects to the broker
func NewMQTT(cfg config.MQTTConfig) (*MQTT, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetKeepAlive(60 * time.Second).
		SetPingTimeout(10 * time.Second)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(mqttConnectTimeout) {
		return nil, fmt.Errorf("connect mqtt %s: timed out", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect mqtt %s: %w", cfg.Broker, err)
	}
	return newMQTT(client, cfg.Topic, cfg.QoS), nil
}

func newMQTT(client mqttClient, topic string, qos byte) *MQTT {
	return &MQTT{client: client, topic: topic, qos: qos}
}

func (m *MQTT) Name() string { return "mqtt" }

func (m *MQTT) Publish(ctx context.Context, _ string, payload []byte) error {
	token := m.client.Publish(m.topic, m.qos, false, payload)

	select {
	case <-token.Done():
	case <-ctx.Done():
		return errMQTTTimeout
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", m.topic, err)
	}
	return nil
}

func (m *MQTT) Close() error {
	m.client.Disconnect(mqttQuiesceMillis)
	return nil
}
