// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package logging builds the logrus logger used by every command. Logs go
// to stderr or a file, never stdout: stdout carries the data stream.
package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/Thermoquad/dl24log/pkg/config"
)

const timestampFormat = "2006-01-02 15:04:05"

// New creates a logger from the log section of the configuration
func New(cfg config.LogConfig) *logrus.Logger {
	return newWithFallback(cfg, os.Stderr)
}

func newWithFallback(cfg config.LogConfig, fallback io.Writer) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(fallback)

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	if cfg.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: timestampFormat,
		})
	} else {
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: timestampFormat,
		})
	}

	if cfg.Output == "file" && cfg.FilePath != "" {
		file, err := os.OpenFile(cfg.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			log.Warnf("cannot open log file %s, logging to stderr: %v", cfg.FilePath, err)
		} else {
			log.SetOutput(file)
		}
	}

	return log
}

// Discard returns a logger that drops everything, for tests and library
// callers that pass no logger
func Discard() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}
