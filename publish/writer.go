// Licensed to Elasticsearch B.V. under one or more contributor
// license agreements. See the NOTICE file distributed with
// this work for additional information regarding copyright
// ownership. Elasticsearch B.V. licenses this file to you under
// the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied.  See the License for the
// specific language governing permissions and limitations
// under the License.

package publish

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/elastic/beats/v7/libbeat/beat"
	"github.com/elastic/beats/v7/libbeat/logp"

	logs "github.com/elastic/apm-rum/log"
	"github.com/elastic/apm-rum/model"
)

// BeatWriter publishes RUM events to a libbeat pipeline.
type BeatWriter struct {
	client beat.Client
	logger *logp.Logger
}

// NewBeatWriter connects to pipeline, returning a BeatWriter publishing
// events through the connection. Close must be called to release it.
func NewBeatWriter(pipeline beat.PipelineConnector) (*BeatWriter, error) {
	client, err := pipeline.ConnectWith(beat.ClientConfig{
		PublishMode: beat.GuaranteedSend,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to pipeline")
	}
	return &BeatWriter{client: client, logger: logp.NewLogger(logs.Writer)}, nil
}

// Write publishes event.
func (w *BeatWriter) Write(event *model.RUMEvent) {
	w.logger.Debugw("publishing event",
		"processor.event", event.Processor.Event,
		"session.id", event.Session.ID,
	)
	w.client.Publish(event.BeatEvent())
}

// Close closes the pipeline connection.
func (w *BeatWriter) Close() error {
	return w.client.Close()
}

// Recorder keeps the events written to it in memory.
type Recorder struct {
	mu     sync.Mutex
	events []*model.RUMEvent
}

// Write records event.
func (r *Recorder) Write(event *model.RUMEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

// Events returns the recorded events, in the order they were written.
func (r *Recorder) Events() []*model.RUMEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*model.RUMEvent(nil), r.events...)
}

// Filter returns the recorded events of the given kind.
func (r *Recorder) Filter(p model.Processor) []*model.RUMEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.RUMEvent
	for _, event := range r.events {
		if event.Processor == p {
			out = append(out, event)
		}
	}
	return out
}

// Reset discards the recorded events.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
