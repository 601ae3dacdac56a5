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

package rum

import (
	"fmt"
	"time"

	"github.com/elastic/apm-rum/config"
	"github.com/elastic/apm-rum/model"
	"github.com/elastic/apm-rum/rum/command"
)

var t0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

// at returns a command base at t0+d.
func at(d time.Duration) command.Base {
	return command.At(t0.Add(d))
}

type sequentialIDs struct {
	n int
}

func (g *sequentialIDs) Generate() string {
	g.n++
	return fmt.Sprintf("id-%d", g.n)
}

type fixedSampler bool

func (s fixedSampler) Sample() bool { return bool(s) }

func (s fixedSampler) Rate() float64 {
	if s {
		return 1
	}
	return 0
}

type recordingWriter struct {
	events []*model.RUMEvent
}

func (w *recordingWriter) Write(event *model.RUMEvent) {
	w.events = append(w.events, event)
}

func (w *recordingWriter) filter(p model.Processor) []*model.RUMEvent {
	var out []*model.RUMEvent
	for _, event := range w.events {
		if event.Processor == p {
			out = append(out, event)
		}
	}
	return out
}

// views returns the view events of the view with the given URL.
func (w *recordingWriter) views(url string) []*model.RUMEvent {
	var out []*model.RUMEvent
	for _, event := range w.filter(model.ViewProcessor) {
		if event.View.URL == url {
			out = append(out, event)
		}
	}
	return out
}

// lastView returns the last view event of the view with the given URL.
func (w *recordingWriter) lastView(url string) *model.RUMEvent {
	views := w.views(url)
	if len(views) == 0 {
		return nil
	}
	return views[len(views)-1]
}

type recordingTelemetry struct {
	errors []string
	debugs []string
}

func (t *recordingTelemetry) Error(msg string, keysAndValues ...interface{}) {
	t.errors = append(t.errors, msg)
}

func (t *recordingTelemetry) Debug(msg string, keysAndValues ...interface{}) {
	t.debugs = append(t.debugs, msg)
}

type recordingNetworkSettled struct {
	started []string
	updated []string
	ended   []string
	dropped []string
}

func (r *recordingNetworkSettled) TrackResourceStart(_ time.Time, id, _ string) {
	r.started = append(r.started, id)
}

func (r *recordingNetworkSettled) TrackResourceUpdate(id string, _, _ time.Time) {
	r.updated = append(r.updated, id)
}

func (r *recordingNetworkSettled) TrackResourceEnd(_ time.Time, id string, _ time.Duration) {
	r.ended = append(r.ended, id)
}

func (r *recordingNetworkSettled) TrackResourceDropped(id string) {
	r.dropped = append(r.dropped, id)
}

type firstPartyFunc func(string) bool

func (f firstPartyFunc) IsFirstParty(url string) bool { return f(url) }

// testApp bundles an Application with the fakes it was built with.
type testApp struct {
	*Application
	w         *recordingWriter
	telemetry *recordingTelemetry
	network   *recordingNetworkSettled
	state     command.AppState
}

func newTestApp(deps Dependencies) *testApp {
	app := &testApp{
		w:         &recordingWriter{},
		telemetry: &recordingTelemetry{},
		network:   &recordingNetworkSettled{},
		state:     command.AppStateActive,
	}
	if deps.Config == nil {
		deps.Config = config.DefaultConfig()
	}
	if deps.IDs == nil {
		deps.IDs = &sequentialIDs{}
	}
	if deps.Telemetry == nil {
		deps.Telemetry = app.telemetry
	}
	if deps.NetworkSettled == nil {
		deps.NetworkSettled = app.network
	}
	if deps.AppState == nil {
		deps.AppState = AppStateFunc(func() command.AppState { return app.state })
	}
	app.Application = NewApplication(deps)
	return app
}

func (a *testApp) process(cmds ...command.Command) {
	for _, cmd := range cmds {
		a.Process(cmd, Context{}, a.w)
	}
}

func startView(d time.Duration, identity string) command.StartView {
	return command.StartView{Base: at(d), Identity: identity, Path: "/" + identity, Name: identity}
}

func stopView(d time.Duration, identity string) command.StopView {
	return command.StopView{Base: at(d), Identity: identity}
}
