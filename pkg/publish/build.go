// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package publish

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/Thermoquad/dl24log/pkg/config"
)

// FromConfig connects every enabled publisher. On error the publishers
// opened so far are closed.
func FromConfig(ctx context.Context, cfg *config.Config, sessionID string, log *logrus.Logger) ([]*Writer, error) {
	var pubs []Publisher

	fail := func(err error) ([]*Writer, error) {
		errs := []error{err}
		for _, p := range pubs {
			errs = append(errs, p.Close())
		}
		return nil, errors.Join(errs...)
	}

	if cfg.Redis.Enabled {
		r, err := NewRedis(ctx, cfg.Redis)
		if err != nil {
			return fail(err)
		}
		pubs = append(pubs, r)
	}
	if cfg.MQTT.Enabled {
		m, err := NewMQTT(cfg.MQTT)
		if err != nil {
			return fail(err)
		}
		pubs = append(pubs, m)
	}
	if cfg.Kafka.Enabled {
		pubs = append(pubs, NewKafka(cfg.Kafka))
	}

	writers := make([]*Writer, 0, len(pubs))
	for _, p := range pubs {
		log.WithField("sink", p.Name()).Info("publisher connected")
		writers = append(writers, NewWriter(p, sessionID, log))
	}
	return writers, nil
}
