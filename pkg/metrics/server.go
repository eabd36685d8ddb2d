// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

const shutdownTimeout = 5 * time.Second

// NewRouter serves /metrics, /healthz and /reading for c
func NewRouter(c *Collector) *mux.Router {
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(c.Registry(), promhttp.HandlerOpts{})).Methods(http.MethodGet)
	r.HandleFunc("/healthz", handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/reading", readingHandler(c)).Methods(http.MethodGet)
	return r
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

func readingHandler(c *Collector) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		snap := c.Latest()
		if snap == nil {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(snap)
	}
}

// Server is the metrics HTTP endpoint
type Server struct {
	srv       *http.Server
	log       *logrus.Logger
	accessLog *io.PipeWriter
}

// NewServer creates a server on addr. Access logs go through log at info
// level.
func NewServer(addr string, c *Collector, log *logrus.Logger) *Server {
	accessLog := log.Writer()
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           handlers.LoggingHandler(accessLog, NewRouter(c)),
			ReadHeaderTimeout: 5 * time.Second,
		},
		log:       log,
		accessLog: accessLog,
	}
}

// Start binds the listener and serves on a background goroutine. Bind
// errors are returned; later serve errors are logged.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		s.accessLog.Close()
		return err
	}
	s.srv.Addr = ln.Addr().String()
	s.log.WithField("addr", s.srv.Addr).Info("metrics server listening")

	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.WithError(err).Error("metrics server stopped")
		}
	}()
	return nil
}

// Addr returns the listen address, resolved once Start has bound it
func (s *Server) Addr() string {
	return s.srv.Addr
}

// Shutdown stops the server, waiting briefly for in-flight requests
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	defer s.accessLog.Close()
	return s.srv.Shutdown(ctx)
}
