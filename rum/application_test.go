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
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elastic/beats/v7/libbeat/monitoring"

	"github.com/elastic/apm-rum/model"
	"github.com/elastic/apm-rum/rum/command"
)

func TestApplicationSDKInitForeground(t *testing.T) {
	app := newTestApp(Dependencies{})
	app.process(command.SDKInit{Base: at(0)})

	require.Len(t, app.Sessions(), 1)
	session := app.Sessions()[0]
	assert.Equal(t, model.PreconditionUserAppLaunch, session.StartPrecondition())
	assert.True(t, session.IsActive())

	actions := app.w.filter(model.ActionProcessor)
	require.Len(t, actions, 1)
	assert.Equal(t, string(command.ActionApplicationStart), actions[0].Action.Type)

	view := app.w.lastView(ApplicationLaunchViewPath)
	require.NotNil(t, view)
	assert.Equal(t, ApplicationLaunchViewName, view.View.Name)
	assert.Equal(t, 1, view.View.ActionCount)
	assert.Equal(t, view.View.ID, actions[0].View.ID)
	assert.Equal(t, session.ID(), view.Session.ID)
}

func TestApplicationSDKInitBackground(t *testing.T) {
	app := newTestApp(Dependencies{})
	app.state = command.AppStateBackground
	app.process(command.SDKInit{Base: at(0)})

	require.Len(t, app.Sessions(), 1)
	assert.Equal(t, model.PreconditionBackgroundLaunch, app.Sessions()[0].StartPrecondition())
	assert.Empty(t, app.Sessions()[0].Views())
	assert.Empty(t, app.w.events)
}

func TestApplicationForegroundAfterBackgroundSDKInit(t *testing.T) {
	app := newTestApp(Dependencies{})
	app.state = command.AppStateBackground
	app.process(command.SDKInit{Base: at(0)})
	assert.Nil(t, app.w.lastView(ApplicationLaunchViewPath))

	app.state = command.AppStateActive
	app.process(command.AppLifecycle{Base: at(time.Second), State: command.AppStateActive})

	view := app.w.lastView(ApplicationLaunchViewPath)
	require.NotNil(t, view)
	assert.True(t, *view.View.IsActive)
	assert.Equal(t, app.Sessions()[0].ID(), view.Session.ID)
	assert.Len(t, app.w.filter(model.ActionProcessor), 1)
}

func TestApplicationSDKInitTwice(t *testing.T) {
	app := newTestApp(Dependencies{})
	app.process(command.SDKInit{Base: at(0)}, command.SDKInit{Base: at(time.Second)})

	assert.Len(t, app.Sessions(), 1)
	assert.Equal(t, []string{"SDK init received after the initial session was created"}, app.telemetry.errors)
}

func TestApplicationCommandBeforeSDKInit(t *testing.T) {
	app := newTestApp(Dependencies{})
	app.process(startView(0, "home"))

	require.Len(t, app.Sessions(), 1)
	assert.Len(t, app.telemetry.debugs, 1)
	assert.Empty(t, app.telemetry.errors)

	// The application launch view is replaced by the explicit view.
	session := app.ActiveSession()
	require.NotNil(t, session)
	require.NotNil(t, session.ActiveView())
	assert.Equal(t, "/home", app.Context().ActiveViewPath)
	launch := app.w.lastView(ApplicationLaunchViewPath)
	require.NotNil(t, launch)
	assert.False(t, *launch.View.IsActive)
}

func TestApplicationStopSession(t *testing.T) {
	app := newTestApp(Dependencies{})
	app.process(startView(0, "v1"))
	first := app.ActiveSession()
	require.NotNil(t, first)

	app.process(command.StopSession{Base: at(time.Second)})
	assert.Equal(t, EndReasonStopAPI, first.EndReason())
	assert.Empty(t, app.Sessions())
	last := app.w.lastView("/v1")
	require.NotNil(t, last)
	assert.False(t, *last.View.IsActive)

	app.process(startView(2*time.Second, "v2"))
	second := app.ActiveSession()
	require.NotNil(t, second)
	assert.NotEqual(t, first.ID(), second.ID())
	assert.Equal(t, model.PreconditionExplicitStop, second.StartPrecondition())

	view := app.w.lastView("/v2")
	require.NotNil(t, view)
	assert.Equal(t, second.ID(), view.Session.ID)
	assert.Equal(t, model.PreconditionExplicitStop, view.Session.StartPrecondition)
}

func TestApplicationTimeoutRetroactivity(t *testing.T) {
	app := newTestApp(Dependencies{})
	app.process(startView(0, "v1"))
	first := app.ActiveSession()
	require.NotNil(t, first)

	// Errors are not user interactions, and do not extend the session.
	app.process(command.AddError{Base: at(15*time.Minute - time.Second), Message: "early"})
	assert.True(t, first.IsActive())

	app.process(command.AddError{Base: at(15*time.Minute + time.Second), Message: "late"})
	assert.False(t, first.IsActive())
	assert.Equal(t, EndReasonTimeout, first.EndReason())

	require.Len(t, app.Sessions(), 1)
	second := app.Sessions()[0]
	assert.NotEqual(t, first.ID(), second.ID())
	assert.Equal(t, model.PreconditionInactivityTimeout, second.StartPrecondition())

	// The active view of the expired session is resumed in the new
	// session, which handles the command.
	errors := app.w.filter(model.ErrorProcessor)
	require.Len(t, errors, 2)
	assert.Equal(t, first.ID(), errors[0].Session.ID)
	assert.Equal(t, second.ID(), errors[1].Session.ID)
	assert.Equal(t, "/v1", errors[1].View.URL)
	assert.NotEqual(t, errors[0].View.ID, errors[1].View.ID)
	assert.Equal(t, model.PreconditionInactivityTimeout, errors[1].Session.StartPrecondition)
}

func TestApplicationTimeoutCompletesResources(t *testing.T) {
	for name, stopViewFirst := range map[string]bool{
		"active view":  false,
		"stopped view": true,
	} {
		t.Run(name, func(t *testing.T) {
			app := newTestApp(Dependencies{})
			app.process(
				startView(0, "v1"),
				command.StartResource{Base: at(time.Second), Key: "r1", URL: "https://example.com/cart", Method: "GET"},
			)
			if stopViewFirst {
				app.process(stopView(2*time.Second, "v1"))
			}
			first := app.ActiveSession()
			require.NotNil(t, first)

			app.process(command.StopResource{Base: at(16 * time.Minute), Key: "r1", StatusCode: 200})
			assert.Equal(t, EndReasonTimeout, first.EndReason())

			resources := app.w.filter(model.ResourceProcessor)
			require.Len(t, resources, 1)
			assert.Equal(t, first.ID(), resources[0].Session.ID)
			assert.Equal(t, "/v1", resources[0].View.URL)

			require.Len(t, app.network.started, 1)
			assert.Equal(t, app.network.started, app.network.ended)
			assert.Empty(t, app.network.dropped)

			for _, session := range app.Sessions() {
				assert.NotEqual(t, first.ID(), session.ID())
			}
		})
	}
}

func TestApplicationTimeoutKeepsLoadingResources(t *testing.T) {
	app := newTestApp(Dependencies{})
	app.process(
		startView(0, "v1"),
		command.StartResource{Base: at(time.Second), Key: "r1", URL: "https://example.com/cart", Method: "GET"},
	)
	first := app.ActiveSession()
	require.NotNil(t, first)

	app.process(command.AddError{Base: at(16 * time.Minute), Message: "late"})
	assert.Equal(t, EndReasonTimeout, first.EndReason())
	require.Len(t, app.Sessions(), 2)
	assert.Same(t, first, app.Sessions()[0])
	second := app.ActiveSession()
	require.NotNil(t, second)
	assert.NotEqual(t, first.ID(), second.ID())
	assert.Equal(t, "/v1", app.Context().ActiveViewPath)

	app.process(command.StopResource{Base: at(16*time.Minute + time.Second), Key: "r1", StatusCode: 200})
	require.Len(t, app.Sessions(), 1)
	assert.Same(t, second, app.Sessions()[0])

	resources := app.w.filter(model.ResourceProcessor)
	require.Len(t, resources, 1)
	assert.Equal(t, first.ID(), resources[0].Session.ID)
	assert.Equal(t, app.network.started, app.network.ended)
	assert.Empty(t, app.network.dropped)

	var last *model.RUMEvent
	for _, view := range app.w.views("/v1") {
		if view.Session.ID == first.ID() {
			last = view
		}
	}
	require.NotNil(t, last)
	assert.False(t, *last.View.IsActive)
	assert.Equal(t, 1, last.View.ResourceCount)
	assert.Empty(t, app.telemetry.errors)
}

func TestApplicationTimeoutAndMaxDuration(t *testing.T) {
	app := newTestApp(Dependencies{})
	app.process(startView(0, "v1"))
	first := app.ActiveSession()
	require.NotNil(t, first)

	// Both the inactivity timeout and the maximum duration are exceeded.
	app.process(command.AddError{Base: at(5 * time.Hour), Message: "late"})
	assert.Equal(t, EndReasonTimeout, first.EndReason())
	second := app.ActiveSession()
	require.NotNil(t, second)
	assert.Equal(t, model.PreconditionInactivityTimeout, second.StartPrecondition())
}

func TestApplicationTimeoutLifecycleCommand(t *testing.T) {
	app := newTestApp(Dependencies{})
	app.process(startView(0, "v1"))
	first := app.ActiveSession()

	app.process(command.KeepAlive{Base: at(15*time.Minute + time.Second)})
	assert.Equal(t, EndReasonTimeout, first.EndReason())
	assert.Empty(t, app.Sessions())

	app.process(startView(16*time.Minute, "v2"))
	second := app.ActiveSession()
	require.NotNil(t, second)
	assert.Equal(t, model.PreconditionInactivityTimeout, second.StartPrecondition())
}

func TestApplicationMaxDuration(t *testing.T) {
	app := newTestApp(Dependencies{})
	app.process(startView(0, "v1"))
	first := app.ActiveSession()

	for d := 10 * time.Minute; d < 4*time.Hour; d += 10 * time.Minute {
		app.process(command.AddAction{Base: at(d), Type: command.ActionTap, Name: "button"})
		require.True(t, first.IsActive(), d)
	}
	app.process(command.AddAction{Base: at(4 * time.Hour), Type: command.ActionTap, Name: "button"})
	assert.Equal(t, EndReasonMaxDuration, first.EndReason())

	second := app.ActiveSession()
	require.NotNil(t, second)
	assert.Equal(t, model.PreconditionMaxDuration, second.StartPrecondition())
}

func TestApplicationUnsampledSession(t *testing.T) {
	type notification struct {
		id        string
		discarded bool
	}
	var notifications []notification
	app := newTestApp(Dependencies{
		Sampler: fixedSampler(false),
		SessionListener: func(id string, discarded bool) {
			notifications = append(notifications, notification{id, discarded})
		},
	})

	app.process(
		command.SDKInit{Base: at(0)},
		startView(time.Second, "v1"),
		command.StartResource{Base: at(2 * time.Second), Key: "r1", URL: "https://example.com", Method: "GET"},
		command.StopResource{Base: at(3 * time.Second), Key: "r1", StatusCode: 200},
		command.AddError{Base: at(4 * time.Second), Message: "boom"},
		command.AddAction{Base: at(5 * time.Second), Type: command.ActionTap},
	)
	session := app.ActiveSession()
	require.NotNil(t, session)
	assert.False(t, session.IsSampled())
	assert.Equal(t, model.NullSessionID, session.ID())
	assert.Empty(t, session.Views())
	assert.Equal(t, model.NullSessionID, app.Context().SessionID)

	app.process(command.StopSession{Base: at(6 * time.Second)})
	assert.Equal(t, EndReasonStopAPI, session.EndReason())
	assert.Empty(t, app.Sessions())

	assert.Empty(t, app.w.events)
	assert.Equal(t, []notification{{model.NullSessionID, true}}, notifications)
}

func TestApplicationSessionMetrics(t *testing.T) {
	before := monitoring.CollectFlatSnapshot(monitoring.GetRegistry("rum.sessions"), monitoring.Full, false)

	app := newTestApp(Dependencies{})
	app.process(startView(0, "v1"), command.StopSession{Base: at(time.Second)}, startView(2*time.Second, "v2"))

	after := monitoring.CollectFlatSnapshot(monitoring.GetRegistry("rum.sessions"), monitoring.Full, false)
	assert.Equal(t, int64(2), after.Ints["started"]-before.Ints["started"])
	assert.Equal(t, int64(1), after.Ints["ended"]-before.Ints["ended"])
	assert.Equal(t, int64(0), after.Ints["discarded"]-before.Ints["discarded"])
}

// TestApplicationExclusivity processes random command sequences, checking
// that at most one session is active, and at most one view is active per
// session, after every command.
func TestApplicationExclusivity(t *testing.T) {
	identities := []string{"home", "cart", "checkout"}
	keys := []string{"r1", "r2", "r3"}
	rng := rand.New(rand.NewSource(42))

	randomCommand := func(d time.Duration) command.Command {
		base := at(d)
		switch rng.Intn(11) {
		case 0:
			return command.StartView{Base: base, Identity: identities[rng.Intn(len(identities))]}
		case 1:
			return command.StopView{Base: base, Identity: identities[rng.Intn(len(identities))]}
		case 2:
			return command.StartAction{Base: base, Type: command.ActionScroll}
		case 3:
			return command.StopAction{Base: base, Type: command.ActionScroll}
		case 4:
			return command.AddAction{Base: base, Type: command.ActionTap}
		case 5:
			return command.StartResource{Base: base, Key: keys[rng.Intn(len(keys))], URL: "https://example.com"}
		case 6:
			return command.StopResource{Base: base, Key: keys[rng.Intn(len(keys))], StatusCode: 200}
		case 7:
			return command.AddError{Base: base, IsCrash: rng.Intn(10) == 0}
		case 8:
			return command.KeepAlive{Base: base}
		case 9:
			return command.StopSession{Base: base}
		}
		return command.AddLongTask{Base: base, Duration: time.Duration(rng.Intn(1000)) * time.Millisecond}
	}

	app := newTestApp(Dependencies{})
	var d time.Duration
	for i := 0; i < 5000; i++ {
		d += time.Duration(rng.Int63n(int64(3 * time.Minute)))
		app.process(randomCommand(d))

		var activeSessions int
		for _, session := range app.Sessions() {
			if session.IsActive() {
				activeSessions++
			}
			var activeViews int
			for _, view := range session.Views() {
				if view.IsActive() {
					activeViews++
				}
			}
			require.LessOrEqual(t, activeViews, 1, "command %d", i)
		}
		require.LessOrEqual(t, activeSessions, 1, "command %d", i)
	}
	assert.Empty(t, app.telemetry.errors)
}
