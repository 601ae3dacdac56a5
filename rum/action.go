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

	"github.com/elastic/beats/v7/libbeat/common"

	"github.com/elastic/apm-rum/model"
	"github.com/elastic/apm-rum/rum/command"
)

// ActionScope tracks the active user action of a view.
//
// Actions expire lazily: when a command arrives after the action's ceiling
// has elapsed and no resource started during the action is still loading,
// the action is finalized before the command is otherwise handled.
type ActionScope struct {
	deps *Dependencies

	id         string
	actionType command.ActionType
	name       string
	continuous bool
	attributes common.MapStr

	startTime    time.Time
	lastActivity time.Time

	// resources holds the keys of the resources started during the action
	// and still loading.
	resources     map[string]struct{}
	resourceCount int
	errorCount    int
	longTaskCount int

	// sent holds the action event, once it was accepted by the builder.
	sent *model.Action
}

func newActionScope(
	deps *Dependencies,
	actionType command.ActionType,
	name string,
	continuous bool,
	cmd command.Command,
) *ActionScope {
	return &ActionScope{
		deps:         deps,
		id:           deps.IDs.Generate(),
		actionType:   actionType,
		name:         name,
		continuous:   continuous,
		attributes:   cmd.Attrs().Clone(),
		startTime:    cmd.Time(),
		lastActivity: cmd.Time(),
		resources:    make(map[string]struct{}),
	}
}

func (s *ActionScope) ceiling() time.Duration {
	if s.continuous {
		return s.deps.Config.Action.ContinuousMaxDuration
	}
	return s.deps.Config.Action.DiscreteTimeout
}

// expired reports whether the action has outlived its ceiling at time t.
func (s *ActionScope) expired(t time.Time) bool {
	return t.Sub(s.startTime) >= s.ceiling()
}

// Process updates the action's counters, and finalizes it when it ends or
// expires.
func (s *ActionScope) Process(cmd command.Command, ctx Context, w Writer) bool {
	if s.expired(cmd.Time()) && len(s.resources) == 0 {
		s.finalize(s.lastActivity, ctx, w)
		return false
	}

	switch cmd := cmd.(type) {
	case command.StartView, command.StopView:
		s.finalize(cmd.Time(), ctx, w)
		return false
	case command.StopAction:
		if cmd.Name != "" {
			s.name = cmd.Name
		}
		s.attributes.Update(cmd.Attrs())
		s.finalize(cmd.Time(), ctx, w)
		return false
	case command.StartResource:
		s.resources[cmd.Key] = struct{}{}
		s.lastActivity = cmd.Time()
	case command.StopResource:
		if _, ok := s.resources[cmd.Key]; ok {
			delete(s.resources, cmd.Key)
			s.resourceCount++
			s.lastActivity = cmd.Time()
		}
	case command.StopResourceWithError:
		if _, ok := s.resources[cmd.Key]; ok {
			delete(s.resources, cmd.Key)
			s.errorCount++
			s.lastActivity = cmd.Time()
		}
	case command.AddError:
		s.errorCount++
		s.lastActivity = cmd.Time()
		if cmd.IsCrash {
			s.finalize(cmd.Time(), ctx, w)
			return false
		}
	case command.AddLongTask:
		s.longTaskCount++
		s.lastActivity = cmd.Time()
	}
	return true
}

// finalize builds the action event, ending at the given time.
func (s *ActionScope) finalize(end time.Time, ctx Context, w Writer) {
	loadingTime := end.Sub(s.startTime)
	if loadingTime < 0 {
		loadingTime = 0
	}

	action := &model.Action{
		ID:            s.id,
		Type:          string(s.actionType),
		Name:          s.name,
		ResourceCount: s.resourceCount,
		ErrorCount:    s.errorCount,
		LongTaskCount: s.longTaskCount,
	}
	if s.continuous || loadingTime > 0 {
		action.LoadingTime = &loadingTime
	}
	if s.deps.Config.TrackFrustrations && s.errorCount > 0 && s.actionType == command.ActionTap {
		action.Frustrations = []string{model.FrustrationErrorTap}
	}

	event := s.deps.newEvent(model.ActionProcessor, ctx)
	event.Timestamp = s.deps.eventTime(s.startTime)
	event.Action = action
	if len(s.attributes) > 0 {
		event.Context = s.attributes
	}
	if s.deps.write(event, w) {
		s.sent = action
	}
}
