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

package model

import (
	"github.com/elastic/beats/v7/libbeat/common"
)

// NullSessionID is the session identifier of sessions which were not
// sampled.
const NullSessionID = "00000000-0000-0000-0000-000000000000"

// SessionPrecondition describes why a session was started.
type SessionPrecondition string

const (
	PreconditionUserAppLaunch     SessionPrecondition = "user_app_launch"
	PreconditionBackgroundLaunch  SessionPrecondition = "background_launch"
	PreconditionInactivityTimeout SessionPrecondition = "inactivity_timeout"
	PreconditionMaxDuration       SessionPrecondition = "max_duration"
	PreconditionExplicitStop      SessionPrecondition = "explicit_stop"
)

// Session holds information about the session an event belongs to.
type Session struct {
	// ID holds the session ID, or NullSessionID for unsampled sessions.
	ID string

	// Type holds the session type: "user" for real sessions.
	Type string

	// IsActive records whether the session was still active when the
	// event was built.
	IsActive *bool

	// StartPrecondition holds the reason the session was started.
	StartPrecondition SessionPrecondition
}

func (s *Session) fields() common.MapStr {
	if s.ID == "" {
		return nil
	}
	var fields mapStr
	fields.set("id", s.ID)
	fields.maybeSetString("type", s.Type)
	fields.maybeSetBool("is_active", s.IsActive)
	fields.maybeSetString("start_precondition", string(s.StartPrecondition))
	return common.MapStr(fields)
}
