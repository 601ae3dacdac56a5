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

package main

import (
	"io"
	"sync"

	jsoniter "github.com/json-iterator/go"

	"github.com/elastic/beats/v7/libbeat/common"
	"github.com/elastic/beats/v7/libbeat/logp"

	logs "github.com/elastic/apm-rum/log"
	"github.com/elastic/apm-rum/model"
	"github.com/elastic/apm-rum/rum"
	"github.com/elastic/apm-rum/rum/command"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ndjsonWriter writes events as newline-delimited JSON documents, in the
// shape they would be indexed.
type ndjsonWriter struct {
	mu     sync.Mutex
	w      countingWriter
	enc    *jsoniter.Encoder
	counts map[string]int64
	logger *logp.Logger
}

func newNDJSONWriter(w io.Writer) *ndjsonWriter {
	out := &ndjsonWriter{
		w:      countingWriter{w: w},
		counts: make(map[string]int64),
		logger: logp.NewLogger(logs.Writer),
	}
	out.enc = json.NewEncoder(&out.w)
	return out
}

func (w *ndjsonWriter) Write(event *model.RUMEvent) {
	w.mu.Lock()
	defer w.mu.Unlock()
	beatEvent := event.BeatEvent()
	doc := common.MapStr{"@timestamp": beatEvent.Timestamp}
	doc.Update(beatEvent.Fields)
	if err := w.enc.Encode(doc); err != nil {
		w.logger.Errorw("failed to encode event", "error", err)
		return
	}
	w.counts[event.Processor.Event]++
}

// Counts returns the number of events written, per event kind.
func (w *ndjsonWriter) Counts() map[string]int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make(map[string]int64, len(w.counts))
	for k, v := range w.counts {
		out[k] = v
	}
	return out
}

// Bytes returns the number of bytes written.
func (w *ndjsonWriter) Bytes() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.w.n
}

type countingWriter struct {
	w io.Writer
	n uint64
}

func (w *countingWriter) Write(p []byte) (int, error) {
	n, err := w.w.Write(p)
	w.n += uint64(n)
	return n, err
}

// lifecycleScope tracks the application state reported by lifecycle
// commands, before handing them to the application.
type lifecycleScope struct {
	app   *rum.Application
	state command.AppState
}

func (s *lifecycleScope) Process(cmd command.Command, ctx rum.Context, w rum.Writer) bool {
	if lifecycle, ok := cmd.(command.AppLifecycle); ok {
		s.state = lifecycle.State
	}
	return s.app.Process(cmd, ctx, w)
}

// AppState returns the last reported application state. It is only called
// by the application, while processing a command.
func (s *lifecycleScope) AppState() command.AppState {
	return s.state
}
