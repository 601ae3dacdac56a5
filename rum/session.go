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

	"github.com/elastic/beats/v7/libbeat/monitoring"

	"github.com/elastic/apm-rum/model"
	"github.com/elastic/apm-rum/rum/command"
)

var (
	sessionRegistry   = monitoring.Default.NewRegistry("rum.sessions")
	sessionsStarted   = monitoring.NewInt(sessionRegistry, "started")
	sessionsDiscarded = monitoring.NewInt(sessionRegistry, "discarded")
	sessionsEnded     = monitoring.NewInt(sessionRegistry, "ended")
)

// EndReason describes why a session ended.
type EndReason int

const (
	// EndReasonNone is the end reason of a session which has not ended.
	EndReasonNone EndReason = iota
	// EndReasonTimeout means no user interaction was tracked for longer
	// than the session timeout.
	EndReasonTimeout
	// EndReasonMaxDuration means the session lasted longer than the
	// maximum session duration.
	EndReasonMaxDuration
	// EndReasonStopAPI means the session was stopped explicitly.
	EndReasonStopAPI
)

func (r EndReason) String() string {
	switch r {
	case EndReasonNone:
		return "none"
	case EndReasonTimeout:
		return "timeout"
	case EndReasonMaxDuration:
		return "max_duration"
	case EndReasonStopAPI:
		return "stop_api"
	}
	return "unknown"
}

// precondition returns the start precondition of the session following a
// session which ended for reason r.
func (r EndReason) precondition() (model.SessionPrecondition, bool) {
	switch r {
	case EndReasonTimeout:
		return model.PreconditionInactivityTimeout, true
	case EndReasonMaxDuration:
		return model.PreconditionMaxDuration, true
	case EndReasonStopAPI:
		return model.PreconditionExplicitStop, true
	}
	return "", false
}

// SessionScope tracks a session and its views. At most one of its views is
// active; inactive views are kept until their resources complete.
type SessionScope struct {
	deps *Dependencies

	id           string
	sampled      bool
	precondition model.SessionPrecondition

	startTime       time.Time
	lastInteraction time.Time

	isActive  bool
	endReason EndReason

	views             []*ViewScope
	hasTrackedAnyView bool

	// viewAtExpiry is the view which was active when the session expired.
	viewAtExpiry *ViewScope
}

func newSessionScope(deps *Dependencies, precondition model.SessionPrecondition, startTime time.Time) *SessionScope {
	s := &SessionScope{
		deps:            deps,
		id:              model.NullSessionID,
		sampled:         deps.Sampler.Sample(),
		precondition:    precondition,
		startTime:       startTime,
		lastInteraction: startTime,
		isActive:        true,
	}
	if s.sampled {
		s.id = deps.IDs.Generate()
	} else {
		sessionsDiscarded.Inc()
	}
	sessionsStarted.Inc()
	if deps.SessionListener != nil {
		deps.SessionListener(s.id, !s.sampled)
	}
	deps.Logger.Debugw("session started",
		"session.id", s.id, "session.sampled", s.sampled,
		"session.start_precondition", precondition,
	)
	return s
}

// ID returns the session identifier, or model.NullSessionID if the session
// is not sampled.
func (s *SessionScope) ID() string { return s.id }

// IsSampled reports whether the session is kept by sampling.
func (s *SessionScope) IsSampled() bool { return s.sampled }

// IsActive reports whether the session is still active.
func (s *SessionScope) IsActive() bool { return s.isActive }

// EndReason returns the reason the session ended, or EndReasonNone.
func (s *SessionScope) EndReason() EndReason { return s.endReason }

// StartPrecondition returns the reason the session was started.
func (s *SessionScope) StartPrecondition() model.SessionPrecondition { return s.precondition }

// Views returns the views of the session. The slice must not be modified.
func (s *SessionScope) Views() []*ViewScope { return s.views }

// ActiveView returns the active view, or nil.
func (s *SessionScope) ActiveView() *ViewScope {
	for _, view := range s.views {
		if view.IsActive() {
			return view
		}
	}
	return nil
}

// context overlays the session, and its active view if any, on ctx.
func (s *SessionScope) context(ctx Context) Context {
	ctx.SessionID = s.id
	ctx.SessionActive = s.isActive
	ctx.SessionPrecondition = s.precondition
	if view := s.ActiveView(); view != nil {
		return view.context(ctx)
	}
	return ctx
}

// checkExpiry ends the session if, at time t, it has been inactive for
// longer than the session timeout or has lasted longer than the maximum
// session duration. The timeout takes precedence when both are exceeded.
func (s *SessionScope) checkExpiry(t time.Time) bool {
	cfg := s.deps.Config.Session
	if t.Sub(s.lastInteraction) >= cfg.Timeout {
		s.end(EndReasonTimeout)
	} else if t.Sub(s.startTime) >= cfg.MaxDuration {
		s.end(EndReasonMaxDuration)
	}
	return !s.isActive
}

// expire ends the active view of an expired session. Inactive views are
// kept until their loading resources complete.
func (s *SessionScope) expire() {
	s.viewAtExpiry = s.ActiveView()
	for _, view := range s.views {
		view.deactivate()
	}
}

func (s *SessionScope) end(reason EndReason) {
	if s.isActive {
		sessionsEnded.Inc()
	}
	s.isActive = false
	s.endReason = reason
}

// Process handles cmd. Time-based expiry is evaluated first, from the
// command timestamp: an expired session only forwards the command to its
// remaining views, so that loading resources can complete. A stopped or
// expired session is kept until its views complete.
func (s *SessionScope) Process(cmd command.Command, parent Context, w Writer) bool {
	if s.isActive && s.checkExpiry(cmd.Time()) {
		s.deps.Logger.Debugw("session expired",
			"session.id", s.id, "session.end_reason", s.endReason,
		)
		s.expire()
	}

	if !s.sampled {
		if _, ok := cmd.(command.StopSession); ok && s.isActive {
			s.end(EndReasonStopAPI)
		}
		return s.isActive
	}

	if s.isActive {
		if command.IsUserInteraction(cmd) {
			s.lastInteraction = cmd.Time()
		}
		switch cmd := cmd.(type) {
		case command.StopSession:
			s.end(EndReasonStopAPI)
		case command.ApplicationStart:
			s.startApplicationLaunchView(cmd)
		case command.StartView:
			s.startView(cmd.Identity, cmd.Path, cmd.Name, cmd)
		default:
			if s.ActiveView() == nil {
				s.handleOffViewCommand(cmd)
			}
		}
	}

	ctx := parent
	ctx.SessionID = s.id
	ctx.SessionActive = s.isActive
	ctx.SessionPrecondition = s.precondition
	views := s.views[:0]
	for _, view := range s.views {
		if view.Process(cmd, ctx, w) {
			views = append(views, view)
		}
	}
	for i := len(views); i < len(s.views); i++ {
		s.views[i] = nil
	}
	s.views = views

	return s.isActive || len(s.views) > 0
}

// resumeView starts a view with the identity of a view of an expired
// session.
func (s *SessionScope) resumeView(from *ViewScope, cmd command.Command) {
	if !s.sampled {
		return
	}
	kind := viewKindExplicit
	if from.kind == viewKindBackground {
		kind = viewKindBackground
	}
	view := s.addView(newViewScope(s.deps, kind, from.identity, from.path, from.name, cmd))
	view.didReceiveStartCommand = true
}

func (s *SessionScope) startView(identity, path, name string, cmd command.Command) *ViewScope {
	return s.addView(newViewScope(s.deps, viewKindExplicit, identity, path, name, cmd))
}

// startApplicationLaunchView starts the synthetic view tracking the
// application launch, unless a view was already tracked.
func (s *SessionScope) startApplicationLaunchView(cmd command.Command) {
	if !s.sampled || !s.isActive || s.hasTrackedAnyView {
		return
	}
	s.addView(newViewScope(s.deps, viewKindApplicationLaunch,
		ApplicationLaunchViewPath, ApplicationLaunchViewPath, ApplicationLaunchViewName, cmd,
	))
}

func (s *SessionScope) startBackgroundView(cmd command.Command) {
	s.addView(newViewScope(s.deps, viewKindBackground,
		BackgroundViewPath, BackgroundViewPath, BackgroundViewName, cmd,
	))
}

func (s *SessionScope) addView(view *ViewScope) *ViewScope {
	s.views = append(s.views, view)
	s.hasTrackedAnyView = true
	return view
}

// handleOffViewCommand decides what happens to a command which arrived
// while no view is active.
func (s *SessionScope) handleOffViewCommand(cmd command.Command) {
	rule := offViewRule(s.hasTrackedAnyView, s.deps.isAppInForeground(), s.deps.Config.TrackBackgroundEvents)
	switch {
	case rule == handleInApplicationLaunchView && command.CanStartApplicationLaunchView(cmd):
		s.startApplicationLaunchView(cmd)
	case rule == handleInBackgroundView && command.CanStartBackgroundView(cmd):
		s.startBackgroundView(cmd)
	default:
		if !command.TargetsActiveView(cmd) {
			return
		}
		s.deps.Logger.Warnw(
			"event was detected while no view is active, it will be ignored; "+
				"make sure a view is started before tracking events",
			"command", command.Name(cmd),
		)
	}
}
