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
	"time"

	"github.com/gofrs/uuid"

	"github.com/elastic/beats/v7/libbeat/logp"

	"github.com/elastic/apm-rum/config"
	logs "github.com/elastic/apm-rum/log"
	"github.com/elastic/apm-rum/model"
	"github.com/elastic/apm-rum/rum/command"
	"github.com/elastic/apm-rum/vitals"
)

// Writer accepts finalized events for persistence.
type Writer interface {
	Write(event *model.RUMEvent)
}

// WriterFunc is a function type that implements Writer.
type WriterFunc func(event *model.RUMEvent)

// Write calls f(event).
func (f WriterFunc) Write(event *model.RUMEvent) {
	f(event)
}

// Sampler decides whether a session is kept.
type Sampler interface {
	// Sample returns true if the session should be kept.
	Sample() bool

	// Rate returns the configured sample rate, recorded on every event.
	Rate() float64
}

// IDGenerator generates unique identifiers for sessions, views, resources,
// actions, errors, and long tasks.
type IDGenerator interface {
	Generate() string
}

// UUIDGenerator is an IDGenerator producing random (version 4) UUIDs.
type UUIDGenerator struct{}

// Generate returns a new random UUID.
func (UUIDGenerator) Generate() string {
	id, err := uuid.NewV4()
	if err != nil {
		// The random source failed, fall back to a UUID
		// derived from the current time.
		id = uuid.Must(uuid.NewV1())
	}
	return id.String()
}

// FirstPartyMatcher reports whether a URL belongs to a first party host.
type FirstPartyMatcher interface {
	IsFirstParty(url string) bool
}

// AppStateProvider reports the current state of the application.
type AppStateProvider interface {
	AppState() command.AppState
}

// AppStateFunc is a function type that implements AppStateProvider.
type AppStateFunc func() command.AppState

// AppState calls f().
func (f AppStateFunc) AppState() command.AppState {
	return f()
}

// NetworkSettledTracker aggregates resource loads to compute the time at
// which the network settled after a view started.
type NetworkSettledTracker interface {
	TrackResourceStart(at time.Time, resourceID, url string)
	TrackResourceUpdate(resourceID string, fetchStart, fetchEnd time.Time)
	TrackResourceEnd(at time.Time, resourceID string, duration time.Duration)
	TrackResourceDropped(resourceID string)
}

// SessionListener is notified of every new session, with its identifier and
// whether the session is discarded by sampling.
type SessionListener func(sessionID string, discarded bool)

// Dependencies holds the capabilities shared by every scope.
//
// Zero-valued fields are replaced by defaults by NewApplication.
type Dependencies struct {
	Config *config.Config

	Sampler        Sampler
	IDs            IDGenerator
	Builder        EventBuilder
	FirstParty     FirstPartyMatcher
	AppState       AppStateProvider
	NetworkSettled NetworkSettledTracker
	Telemetry      Telemetry
	Vitals         vitals.Reader

	// ServerTimeOffset returns the offset between the device clock and
	// the server clock. It is called each time an event is built.
	ServerTimeOffset func() time.Duration

	// SessionListener, if non-nil, is called when a session is created.
	SessionListener SessionListener

	Logger *logp.Logger
}

func (d Dependencies) withDefaults() *Dependencies {
	if d.Config == nil {
		d.Config = config.DefaultConfig()
	}
	if d.Sampler == nil {
		d.Sampler = alwaysSample{}
	}
	if d.IDs == nil {
		d.IDs = UUIDGenerator{}
	}
	if d.Builder == nil {
		d.Builder = Mappers{}
	}
	if d.FirstParty == nil {
		d.FirstParty = noFirstParty{}
	}
	if d.AppState == nil {
		d.AppState = AppStateFunc(func() command.AppState { return command.AppStateActive })
	}
	if d.NetworkSettled == nil {
		d.NetworkSettled = nopNetworkSettled{}
	}
	if d.Logger == nil {
		d.Logger = logp.NewLogger(logs.RUM)
	}
	if d.Telemetry == nil {
		d.Telemetry = NewLogTelemetry(d.Config.Telemetry, nil)
	}
	if d.ServerTimeOffset == nil {
		d.ServerTimeOffset = func() time.Duration { return 0 }
	}
	return &d
}

// eventTime returns t corrected by the server time offset.
func (d *Dependencies) eventTime(t time.Time) time.Time {
	return t.Add(d.ServerTimeOffset())
}

func (d *Dependencies) isAppInForeground() bool {
	return d.AppState.AppState().IsForeground()
}

type alwaysSample struct{}

func (alwaysSample) Sample() bool { return true }
func (alwaysSample) Rate() float64 { return 1 }

type noFirstParty struct{}

func (noFirstParty) IsFirstParty(string) bool { return false }

type nopNetworkSettled struct{}

func (nopNetworkSettled) TrackResourceStart(time.Time, string, string) {}
func (nopNetworkSettled) TrackResourceUpdate(string, time.Time, time.Time) {}
func (nopNetworkSettled) TrackResourceEnd(time.Time, string, time.Duration) {}
func (nopNetworkSettled) TrackResourceDropped(string) {}
