// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package config holds the dl24log run configuration. A YAML file is
// overlaid on Default(); command line flags override both.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Thermoquad/dl24log/pkg/sensor"
	"github.com/Thermoquad/dl24log/pkg/session"
)

type Config struct {
	Serial    SerialConfig    `yaml:"serial"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Output    OutputConfig    `yaml:"output"`
	Session   SessionConfig   `yaml:"session"`
	Sensor    SensorConfig    `yaml:"sensor"`
	Log       LogConfig       `yaml:"log"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Redis     RedisConfig     `yaml:"redis"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Kafka     KafkaConfig     `yaml:"kafka"`
}

type SerialConfig struct {
	Port string `yaml:"port"`
	Baud int    `yaml:"baud"`
}

// WebSocketConfig selects a serial-to-WebSocket bridge instead of a local
// port. The password is never stored here.
type WebSocketConfig struct {
	URL         string `yaml:"url"`
	Username    string `yaml:"username"`
	NoSSLVerify bool   `yaml:"no_ssl_verify"`
}

type OutputConfig struct {
	ConsoleFormat   string `yaml:"console_format"`
	FileFormat      string `yaml:"file_format"`
	FilePrefix      string `yaml:"file_prefix"`
	TimestampSuffix bool   `yaml:"timestamp_suffix"`
}

type SessionConfig struct {
	Autostop       bool `yaml:"autostop"`
	CapacityDiff   bool `yaml:"capacity_diff"`
	StrictChecksum bool `yaml:"strict_checksum"`
	PowerOn        bool `yaml:"power_on"`
}

type SensorConfig struct {
	ID      string  `yaml:"id"`
	BaseDir string  `yaml:"base_dir"`
	Offset  float64 `yaml:"offset"`
}

type LogConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

type RedisConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	Channel   string `yaml:"channel"`
	ListLimit int64  `yaml:"list_limit"`
}

type MQTTConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
	Topic    string `yaml:"topic"`
	QoS      byte   `yaml:"qos"`
}

type KafkaConfig struct {
	Enabled bool     `yaml:"enabled"`
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// Default returns the configuration used when no file is given
func Default() *Config {
	return &Config{
		Serial: SerialConfig{
			Port: "/dev/rfcomm0",
			Baud: 9600,
		},
		Output: OutputConfig{
			ConsoleFormat:   "none",
			FileFormat:      "none",
			TimestampSuffix: true,
		},
		Sensor: SensorConfig{
			BaseDir: "/sys/bus/w1/devices",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Metrics: MetricsConfig{
			Listen: ":9124",
		},
		Redis: RedisConfig{
			Addr:      "localhost:6379",
			Channel:   "dl24_readings",
			ListLimit: 10000,
		},
		MQTT: MQTTConfig{
			Broker:   "tcp://localhost:1883",
			ClientID: "dl24log",
			Topic:    "dl24/readings",
		},
		Kafka: KafkaConfig{
			Brokers: []string{"localhost:9092"},
			Topic:   "dl24.readings",
		},
	}
}

// Load reads a YAML file on top of Default
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

var (
	consoleFormats = []string{"none", "bin", "json", "tab"}
	fileFormats    = []string{"none", "json", "tab", "cbor"}
	logFormats     = []string{"text", "json"}
)

// Validate checks cross-field rules. All problems are reported together.
func (c *Config) Validate() error {
	var errs []error

	if c.WebSocket.URL == "" && c.Serial.Port == "" {
		errs = append(errs, errors.New("serial.port or websocket.url is required"))
	}
	if c.Serial.Baud <= 0 {
		errs = append(errs, fmt.Errorf("serial.baud must be positive, got %d", c.Serial.Baud))
	}
	if !oneOf(c.Output.ConsoleFormat, consoleFormats) {
		errs = append(errs, fmt.Errorf("output.console_format %q: use %s", c.Output.ConsoleFormat, strings.Join(consoleFormats, ", ")))
	}
	if !oneOf(c.Output.FileFormat, fileFormats) {
		errs = append(errs, fmt.Errorf("output.file_format %q: use %s", c.Output.FileFormat, strings.Join(fileFormats, ", ")))
	}

	fileEnabled := c.Output.FileFormat != "" && !strings.EqualFold(c.Output.FileFormat, "none")
	if fileEnabled && c.Output.FilePrefix == "" {
		errs = append(errs, errors.New("output.file_format requires output.file_prefix"))
	}
	if !fileEnabled && c.Output.FilePrefix != "" {
		errs = append(errs, errors.New("output.file_prefix requires output.file_format"))
	}

	if c.Sensor.ID != "" {
		if err := sensor.CheckID(c.Sensor.ID); err != nil {
			errs = append(errs, fmt.Errorf("sensor.id: %w", err))
		}
	}
	if math.IsNaN(c.Sensor.Offset) || math.IsInf(c.Sensor.Offset, 0) {
		errs = append(errs, fmt.Errorf("sensor.offset must be a finite number, got %v", c.Sensor.Offset))
	}

	if c.Log.Format != "" && !oneOf(c.Log.Format, logFormats) {
		errs = append(errs, fmt.Errorf("log.format %q: use %s", c.Log.Format, strings.Join(logFormats, ", ")))
	}
	if c.Metrics.Enabled && c.Metrics.Listen == "" {
		errs = append(errs, errors.New("metrics.listen is required when metrics are enabled"))
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		errs = append(errs, errors.New("redis.addr is required"))
	}
	if c.MQTT.Enabled {
		if c.MQTT.Broker == "" || c.MQTT.Topic == "" {
			errs = append(errs, errors.New("mqtt.broker and mqtt.topic are required"))
		}
		if c.MQTT.QoS > 2 {
			errs = append(errs, fmt.Errorf("mqtt.qos must be 0, 1 or 2, got %d", c.MQTT.QoS))
		}
	}
	if c.Kafka.Enabled && (len(c.Kafka.Brokers) == 0 || c.Kafka.Topic == "") {
		errs = append(errs, errors.New("kafka.brokers and kafka.topic are required"))
	}

	return errors.Join(errs...)
}

// HasSink reports whether at least one output or publisher is active
func (c *Config) HasSink() bool {
	active := func(f string) bool { return f != "" && !strings.EqualFold(f, "none") }
	return active(c.Output.ConsoleFormat) || active(c.Output.FileFormat) ||
		c.Redis.Enabled || c.MQTT.Enabled || c.Kafka.Enabled
}

// Transport returns a short description of the configured connection
func (c *Config) Transport() string {
	if c.WebSocket.URL != "" {
		return c.WebSocket.URL
	}
	return fmt.Sprintf("%s @ %d baud", c.Serial.Port, c.Serial.Baud)
}

func oneOf(v string, allowed []string) bool {
	for _, a := range allowed {
		if strings.EqualFold(v, a) {
			return true
		}
	}
	return false
}

// SessionOptions returns the session switches
func (c *Config) SessionOptions() session.Options {
	return session.Options{
		Autostop:     c.Session.Autostop,
		CapacityDiff: c.Session.CapacityDiff,
	}
}
