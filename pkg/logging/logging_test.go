// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/Thermoquad/dl24log/pkg/config"
)

func TestNew_Level(t *testing.T) {
	tests := []struct {
		level string
		want  logrus.Level
	}{
		{"debug", logrus.DebugLevel},
		{"warn", logrus.WarnLevel},
		{"", logrus.InfoLevel},
		{"loud", logrus.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			if got := New(config.LogConfig{Level: tt.level}).GetLevel(); got != tt.want {
				t.Errorf("level = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNew_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	log := newWithFallback(config.LogConfig{Level: "info", Format: "json"}, &buf)
	log.WithField("session", "abc").Info("started")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("not JSON: %v (%q)", err, buf.String())
	}
	if entry["session"] != "abc" || entry["msg"] != "started" {
		t.Errorf("entry = %v", entry)
	}
}

func TestNew_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dl24log.log")
	log := New(config.LogConfig{Level: "info", Output: "file", FilePath: path})
	log.Info("to file")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "to file") {
		t.Errorf("log file = %q", data)
	}
}

func TestNew_FileFallback(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "missing", "dl24log.log")
	log := newWithFallback(config.LogConfig{Output: "file", FilePath: path}, &buf)
	log.Info("still logged")

	if !strings.Contains(buf.String(), "cannot open log file") || !strings.Contains(buf.String(), "still logged") {
		t.Errorf("fallback output = %q", buf.String())
	}
}
