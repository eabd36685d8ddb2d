// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/Thermoquad/dl24log/pkg/capture"
	"github.com/Thermoquad/dl24log/pkg/config"
	"github.com/Thermoquad/dl24log/pkg/logging"
)

// fileConfig returns a config writing a JSON document to a fixed path in
// a temporary directory
func fileConfig(t *testing.T) (*config.Config, string) {
	t.Helper()
	prev := logger
	logger = logging.Discard()
	t.Cleanup(func() { logger = prev })

	c := config.Default()
	c.Output.FileFormat = "json"
	c.Output.FilePrefix = filepath.Join(t.TempDir(), "run")
	c.Output.TimestampSuffix = false
	return c, c.Output.FilePrefix + ".json"
}

func assertNoFile(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("output file %s left behind (stat error = %v)", path, err)
	}
}

func assertDocument(t *testing.T, path string, records int) {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var doc struct {
		Data []json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("invalid JSON document %q: %v", data, err)
	}
	if len(doc.Data) != records {
		t.Errorf("records = %d, want %d", len(doc.Data), records)
	}
}

func TestNewPipeline_MetricsBindFailureLeavesNoFile(t *testing.T) {
	c, path := fileConfig(t)

	busy, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer busy.Close()
	c.Metrics.Enabled = true
	c.Metrics.Listen = busy.Addr().String()

	p, err := newPipeline(context.Background(), c, nil)
	if err == nil {
		p.close()
		t.Fatal("expected a metrics bind error")
	}
	if p != nil {
		t.Error("failed setup should not return a pipeline")
	}
	assertNoFile(t, path)
}

func TestNewPipeline_BadProbeLeavesNoFile(t *testing.T) {
	c, path := fileConfig(t)
	c.Sensor.ID = "../bad"

	if err := c.Validate(); err == nil {
		t.Error("Validate() should reject the probe id")
	}
	if _, err := newPipeline(context.Background(), c, nil); err == nil {
		t.Fatal("expected a probe id error")
	}
	assertNoFile(t, path)
}

func TestNewPipeline_EmptyRunIsWellFormed(t *testing.T) {
	c, path := fileConfig(t)

	var stdout bytes.Buffer
	c.Output.ConsoleFormat = "json"
	p, err := newPipeline(context.Background(), c, &stdout)
	if err != nil {
		t.Fatalf("newPipeline: %v", err)
	}
	if p.fileName != path {
		t.Errorf("fileName = %q, want %q", p.fileName, path)
	}

	res, err := capture.Run(context.Background(), bytes.NewReader(nil), p.captureConfig(c, nil))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Reason != capture.ReasonEOF {
		t.Errorf("reason = %v", res.Reason)
	}
	if err := p.close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	assertDocument(t, path, 0)
	var arr []json.RawMessage
	if err := json.Unmarshal(stdout.Bytes(), &arr); err != nil {
		t.Errorf("console stream %q: %v", stdout.String(), err)
	}
}

func TestPipelineAbort_FinalizesFile(t *testing.T) {
	c, path := fileConfig(t)

	p, err := newPipeline(context.Background(), c, nil)
	if err != nil {
		t.Fatalf("newPipeline: %v", err)
	}
	p.abort()

	assertDocument(t, path, 0)
}
