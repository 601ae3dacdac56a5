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
	"github.com/elastic/apm-rum/model"
	"github.com/elastic/apm-rum/rum/command"
)

// Context is the read-only state flowing down the scope tree with every
// command. Each scope overlays the fields it owns before passing the
// context to its children, and never modifies the fields of its ancestors.
type Context struct {
	ApplicationID string

	SessionID           string
	SessionActive       bool
	SessionPrecondition model.SessionPrecondition

	ActiveViewID   string
	ActiveViewPath string
	ActiveViewName string

	ActiveActionID string
}

// Scope is implemented by every node of the scope tree.
type Scope interface {
	// Process handles cmd, writing finalized events to w. It returns
	// false if the scope has no further purpose and may be discarded.
	Process(cmd command.Command, ctx Context, w Writer) bool
}

// newEvent returns an event of the given kind, populated from ctx.
func (d *Dependencies) newEvent(p model.Processor, ctx Context) *model.RUMEvent {
	active := ctx.SessionActive
	event := &model.RUMEvent{
		Processor:   p,
		Application: model.Application{ID: ctx.ApplicationID},
		Session: model.Session{
			ID:                ctx.SessionID,
			Type:              "user",
			IsActive:          &active,
			StartPrecondition: ctx.SessionPrecondition,
		},
		View: model.View{
			ID:   ctx.ActiveViewID,
			Name: ctx.ActiveViewName,
			URL:  ctx.ActiveViewPath,
		},
		Configuration: model.Configuration{SessionSampleRate: d.Sampler.Rate()},
	}
	if ctx.ActiveActionID != "" {
		event.Action = &model.Action{ID: ctx.ActiveActionID}
	}
	return event
}
