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

	"github.com/elastic/apm-rum/model"
	"github.com/elastic/apm-rum/rum/command"
)

// Application is the root of the scope tree. It owns the sessions, making
// sure a session is active whenever possible: it creates the initial
// session, refreshes sessions which expired, and starts a new session
// after one was stopped.
//
// Application is not safe for concurrent use: commands must be processed
// one at a time, see publish.Processor.
type Application struct {
	deps *Dependencies

	sessions                []*SessionScope
	didCreateInitialSession bool
	applicationActive       bool

	// nextPrecondition holds the start precondition of the next session,
	// derived from the end reason of the last session which ended.
	nextPrecondition model.SessionPrecondition
}

// NewApplication returns a new Application. Zero-valued dependencies are
// replaced by defaults.
func NewApplication(deps Dependencies) *Application {
	return &Application{deps: deps.withDefaults()}
}

// Sessions returns the sessions currently tracked. The slice must not be
// modified.
func (a *Application) Sessions() []*SessionScope {
	return a.sessions
}

// ActiveSession returns the active session, or nil.
func (a *Application) ActiveSession() *SessionScope {
	for _, session := range a.sessions {
		if session.IsActive() {
			return session
		}
	}
	return nil
}

// Context returns the context of the application: the active session, its
// active view, and the active action of that view.
func (a *Application) Context() Context {
	ctx := Context{ApplicationID: a.deps.Config.ApplicationID}
	if session := a.ActiveSession(); session != nil {
		return session.context(ctx)
	}
	return ctx
}

// Process handles cmd, forwarding it to every session. It always returns
// true: the application is never discarded.
func (a *Application) Process(cmd command.Command, parent Context, w Writer) bool {
	if _, ok := cmd.(command.SDKInit); ok {
		a.sdkInit(cmd)
	} else if !a.didCreateInitialSession {
		a.deps.Telemetry.Debug("command received before SDK init, creating the initial session",
			"command", command.Name(cmd),
		)
		a.createInitialSession(cmd)
	}

	lifecycle := command.IsLifecycle(cmd)
	if !lifecycle && a.ActiveSession() == nil {
		a.startSession(cmd.Time(), a.nextPrecondition)
	}
	if _, ok := cmd.(command.SDKInit); !ok && !a.applicationActive {
		a.startApplicationLaunchView(cmd)
	}

	ctx := parent
	if ctx.ApplicationID == "" {
		ctx.ApplicationID = a.deps.Config.ApplicationID
	}
	sessions := make([]*SessionScope, 0, len(a.sessions)+1)
	for _, session := range a.sessions {
		wasActive := session.IsActive()
		if a.processSession(session, cmd, ctx, w) {
			sessions = append(sessions, session)
		}
		if !wasActive || session.IsActive() {
			continue
		}
		switch reason := session.EndReason(); reason {
		case EndReasonTimeout, EndReasonMaxDuration:
			if lifecycle {
				// The next session is started lazily, by the
				// next command which is not a lifecycle one.
				continue
			}
			if refreshed := a.refresh(session, cmd, ctx, w); refreshed != nil {
				sessions = append(sessions, refreshed)
			}
		case EndReasonStopAPI:
		default:
			a.deps.Telemetry.Error("session discarded without a known end reason",
				"session.id", session.ID(), "session.end_reason", reason,
			)
		}
	}
	a.sessions = sessions

	if n := a.countActiveSessions(); n > 1 {
		a.deps.Telemetry.Error("more than one active session",
			"sessions.active", n, "session.id", a.ActiveSession().ID(),
		)
	}
	return true
}

// processSession forwards cmd to session, recording the start precondition
// of the next session if session ends.
func (a *Application) processSession(session *SessionScope, cmd command.Command, ctx Context, w Writer) bool {
	wasActive := session.IsActive()
	keep := session.Process(cmd, ctx, w)
	if wasActive && !session.IsActive() {
		if precondition, ok := session.EndReason().precondition(); ok {
			a.nextPrecondition = precondition
		}
	}
	return keep
}

func (a *Application) sdkInit(cmd command.Command) {
	if a.didCreateInitialSession {
		a.deps.Telemetry.Error("SDK init received after the initial session was created")
		return
	}
	a.createInitialSession(cmd)
	if a.deps.isAppInForeground() {
		a.startApplicationLaunchView(cmd)
	}
}

func (a *Application) createInitialSession(cmd command.Command) {
	if a.didCreateInitialSession {
		a.deps.Telemetry.Error("attempted to create the initial session more than once")
		return
	}
	a.didCreateInitialSession = true
	precondition := model.PreconditionBackgroundLaunch
	if a.deps.isAppInForeground() {
		precondition = model.PreconditionUserAppLaunch
	}
	a.startSession(cmd.Time(), precondition)
}

func (a *Application) startSession(startTime time.Time, precondition model.SessionPrecondition) *SessionScope {
	session := newSessionScope(a.deps, precondition, startTime)
	a.sessions = append(a.sessions, session)
	return session
}

// startApplicationLaunchView starts the application launch view in the
// active session, and marks the application as active. Nothing happens
// while there is no active session.
func (a *Application) startApplicationLaunchView(cmd command.Command) {
	session := a.ActiveSession()
	if session == nil {
		return
	}
	a.applicationActive = true
	session.startApplicationLaunchView(cmd)
}

// refresh replaces an expired session by a new one, resuming the view which
// was active in the expired session if the application is in the
// foreground. The new session processes cmd; it is returned unless it has
// nothing left to do.
func (a *Application) refresh(expired *SessionScope, cmd command.Command, ctx Context, w Writer) *SessionScope {
	precondition, _ := expired.EndReason().precondition()
	session := newSessionScope(a.deps, precondition, cmd.Time())
	if _, isStartView := cmd.(command.StartView); !isStartView && a.deps.isAppInForeground() {
		if view := expired.viewAtExpiry; view != nil {
			session.resumeView(view, cmd)
		}
	}
	if !a.processSession(session, cmd, ctx, w) {
		return nil
	}
	return session
}

func (a *Application) countActiveSessions() int {
	var n int
	for _, session := range a.sessions {
		if session.IsActive() {
			n++
		}
	}
	return n
}
