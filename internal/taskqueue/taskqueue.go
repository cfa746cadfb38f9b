// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package taskqueue publishes entity-touched events to NATS, implementing
// the put_task collaborator historymanager.HistoryManager depends on (§6).
package taskqueue

import (
	"encoding/json"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/dp3/historymgr/internal/historymanager"
	"github.com/dp3/historymgr/pkg/log"
	ccnats "github.com/dp3/historymgr/pkg/nats"
)

var _ historymanager.TaskQueueWriter = (*Writer)(nil)

// envelope is the JSON body published to dp3.tasks.<etype>.
type envelope struct {
	EID    string   `json:"eid"`
	Events []string `json:"events"`
}

// Writer publishes PutTask calls onto a NATS connection, rate-limited so a
// large housekeeping pass cannot flood the broker (§4.6.a).
type Writer struct {
	client  *ccnats.Client
	limiter *rate.Limiter
}

// New wraps client. A nil or zero limit means unlimited: rate.NewLimiter
// with rate.Inf admits every call.
func New(client *ccnats.Client, tasksPerSecond float64) *Writer {
	limit := rate.Inf
	burst := 1
	if tasksPerSecond > 0 {
		limit = rate.Limit(tasksPerSecond)
		burst = int(tasksPerSecond)
		if burst < 1 {
			burst = 1
		}
	}
	return &Writer{client: client, limiter: rate.NewLimiter(limit, burst)}
}

// PutTask publishes events for (etype, eid) to subject dp3.tasks.<etype>.
// The call never blocks: a task that would exceed the configured rate is
// logged and dropped rather than queued, because Allow reports immediately
// where Wait would block the caller. Delivery is therefore not guaranteed
// once the limiter is saturated.
func (w *Writer) PutTask(etype, eid string, events []string) error {
	if w == nil || w.client == nil {
		return nil
	}
	if !w.limiter.Allow() {
		log.Warnf("taskqueue: dropped task for %s/%s: rate limit exceeded", etype, eid)
		return nil
	}

	data, err := json.Marshal(envelope{EID: eid, Events: events})
	if err != nil {
		return fmt.Errorf("taskqueue: encode envelope: %w", err)
	}

	subject := "dp3.tasks." + etype
	if err := w.client.Publish(subject, data); err != nil {
		return fmt.Errorf("taskqueue: publish to %s: %w", subject, err)
	}
	log.Debugf("taskqueue: published %d event(s) for %s/%s", len(events), etype, eid)
	return nil
}
