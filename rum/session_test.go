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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elastic/beats/v7/libbeat/logp"

	"github.com/elastic/apm-rum/config"
	"github.com/elastic/apm-rum/model"
	"github.com/elastic/apm-rum/rum/command"
)

func TestSessionSingleActiveView(t *testing.T) {
	app := newTestApp(Dependencies{})
	app.process(startView(0, "v1"), startView(time.Second, "v2"))

	session := app.ActiveSession()
	require.NotNil(t, session)
	require.Len(t, session.Views(), 1)
	assert.Equal(t, "/v2", app.Context().ActiveViewPath)

	last := app.w.lastView("/v1")
	require.NotNil(t, last)
	assert.False(t, *last.View.IsActive)
}

func TestSessionUserInteractionExtendsTimeout(t *testing.T) {
	app := newTestApp(Dependencies{})
	app.process(
		startView(0, "v1"),
		command.AddAction{Base: at(10 * time.Minute), Type: command.ActionTap},
		command.AddError{Base: at(20 * time.Minute), Message: "boom"},
	)
	session := app.ActiveSession()
	require.NotNil(t, session)
	assert.Len(t, app.Sessions(), 1)
	assert.Equal(t, model.PreconditionUserAppLaunch, session.StartPrecondition())

	app.process(command.AddError{Base: at(25*time.Minute + time.Second), Message: "boom"})
	assert.Equal(t, EndReasonTimeout, session.EndReason())
}

func TestSessionDrainsStoppedViews(t *testing.T) {
	app := newTestApp(Dependencies{})
	app.process(
		startView(0, "v1"),
		command.StartResource{Base: at(time.Second), Key: "r1", URL: "https://example.com"},
		command.StopSession{Base: at(2 * time.Second)},
	)
	// The stopped session is kept until the resource completes.
	require.Len(t, app.Sessions(), 1)
	stopped := app.Sessions()[0]
	assert.False(t, stopped.IsActive())

	app.process(command.StopResource{Base: at(3 * time.Second), Key: "r1", StatusCode: 200})
	resources := app.w.filter(model.ResourceProcessor)
	require.Len(t, resources, 1)
	assert.Equal(t, stopped.ID(), resources[0].Session.ID)
	assert.False(t, *resources[0].Session.IsActive)

	// The resource stop is not a lifecycle command, and started a new
	// session while the stopped one completed.
	require.Len(t, app.Sessions(), 1)
	assert.NotEqual(t, stopped.ID(), app.Sessions()[0].ID())
	assert.Equal(t, model.PreconditionExplicitStop, app.Sessions()[0].StartPrecondition())
}

func TestSessionOffViewBackground(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.TrackBackgroundEvents = true
	app := newTestApp(Dependencies{Config: cfg})
	app.process(startView(0, "v1"), stopView(time.Second, "v1"))

	app.state = command.AppStateBackground
	app.process(
		command.StartResource{Base: at(2 * time.Second), Key: "r2", URL: "https://example.com/sync", Method: "GET"},
		command.StopResource{Base: at(3 * time.Second), Key: "r2", StatusCode: 200},
	)

	resources := app.w.filter(model.ResourceProcessor)
	require.Len(t, resources, 1)
	assert.Equal(t, BackgroundViewPath, resources[0].View.URL)
	assert.Equal(t, BackgroundViewName, resources[0].View.Name)

	view := app.w.lastView(BackgroundViewPath)
	require.NotNil(t, view)
	assert.Equal(t, 1, view.View.ResourceCount)
	assert.True(t, *view.View.IsActive)
}

func TestSessionOffViewDropped(t *testing.T) {
	for name, state := range map[string]command.AppState{
		"background": command.AppStateBackground,
		"foreground": command.AppStateActive,
	} {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, logp.DevelopmentSetup(logp.ToObserverOutput()))
			app := newTestApp(Dependencies{})
			app.process(startView(0, "v1"), stopView(time.Second, "v1"))

			app.state = state
			app.process(
				command.StartResource{Base: at(2 * time.Second), Key: "r2", URL: "https://example.com/sync"},
				command.StopResource{Base: at(3 * time.Second), Key: "r2", StatusCode: 200},
			)
			assert.Empty(t, app.w.filter(model.ResourceProcessor))
			assert.Nil(t, app.w.lastView(BackgroundViewPath))

			logs := logp.ObserverLogs().FilterMessageSnippet("while no view is active").TakeAll()
			require.Len(t, logs, 1)
			assert.Equal(t, "start_resource", logs[0].ContextMap()["command"])
		})
	}
}

func TestSessionOffViewLifecycleNotReported(t *testing.T) {
	require.NoError(t, logp.DevelopmentSetup(logp.ToObserverOutput()))
	app := newTestApp(Dependencies{})
	app.process(
		startView(0, "v1"),
		stopView(time.Second, "v1"),
		command.KeepAlive{Base: at(2 * time.Second)},
		command.StopAction{Base: at(2 * time.Second), Type: command.ActionScroll},
	)
	assert.Empty(t, logp.ObserverLogs().FilterMessageSnippet("while no view is active").TakeAll())
}

func TestSessionApplicationStartCommand(t *testing.T) {
	app := newTestApp(Dependencies{})
	app.state = command.AppStateBackground
	app.process(command.SDKInit{Base: at(0)})
	app.state = command.AppStateActive
	app.process(command.ApplicationStart{Base: at(time.Second)})

	view := app.w.lastView(ApplicationLaunchViewPath)
	require.NotNil(t, view)
	assert.True(t, *view.View.IsActive)
	assert.Len(t, app.w.filter(model.ActionProcessor), 1)
}

func TestOffViewRule(t *testing.T) {
	for _, test := range []struct {
		tracked, foreground, trackBackground bool
		expected                             offViewHandling
	}{
		{tracked: false, foreground: true, trackBackground: false, expected: handleInApplicationLaunchView},
		{tracked: false, foreground: true, trackBackground: true, expected: handleInApplicationLaunchView},
		{tracked: true, foreground: true, trackBackground: true, expected: dropOffViewCommand},
		{tracked: true, foreground: false, trackBackground: true, expected: handleInBackgroundView},
		{tracked: false, foreground: false, trackBackground: true, expected: handleInBackgroundView},
		{tracked: true, foreground: false, trackBackground: false, expected: dropOffViewCommand},
		{tracked: false, foreground: false, trackBackground: false, expected: dropOffViewCommand},
	} {
		assert.Equal(t, test.expected, offViewRule(test.tracked, test.foreground, test.trackBackground), "%+v", test)
	}
}
