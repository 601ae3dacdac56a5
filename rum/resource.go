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
	"net/url"
	"time"

	"go.elastic.co/apm"

	"github.com/elastic/beats/v7/libbeat/common"

	"github.com/elastic/apm-rum/model"
	"github.com/elastic/apm-rum/rum/command"
)

const (
	// Attribute keys from which trace correlation is lifted.
	AttributeTraceID         = "trace.id"
	AttributeSpanID          = "span.id"
	AttributeTraceSampleRate = "trace.sample_rate"

	// minimumDuration replaces resource durations which are zero or negative.
	minimumDuration = time.Nanosecond
)

type resourceOutcome int

const (
	resourcePending resourceOutcome = iota
	resourceSucceeded
	resourceFailed
	resourceDropped
)

// ResourceScope tracks a single resource load. It produces exactly one
// event, a resource event on success or an error event on failure, and is
// discarded right after.
type ResourceScope struct {
	deps *Dependencies

	key          string
	id           string
	url          string
	method       string
	kind         command.ResourceKind
	startTime    time.Time
	attributes   common.MapStr
	spanContext  *apm.TraceContext
	isFirstParty bool

	// actionID holds the action active when the resource started.
	actionID string

	metrics *command.ResourceMetrics
	outcome resourceOutcome
}

func newResourceScope(deps *Dependencies, cmd command.StartResource, ctx Context) *ResourceScope {
	s := &ResourceScope{
		deps:         deps,
		key:          cmd.Key,
		id:           deps.IDs.Generate(),
		url:          cmd.URL,
		method:       cmd.Method,
		kind:         cmd.Kind,
		startTime:    cmd.Time(),
		attributes:   cmd.Attrs().Clone(),
		spanContext:  cmd.SpanContext,
		isFirstParty: deps.FirstParty.IsFirstParty(cmd.URL),
		actionID:     ctx.ActiveActionID,
	}
	deps.NetworkSettled.TrackResourceStart(cmd.Time(), s.id, cmd.URL)
	return s
}

// Process handles commands addressed to the resource key.
func (s *ResourceScope) Process(cmd command.Command, ctx Context, w Writer) bool {
	switch cmd := cmd.(type) {
	case command.AddResourceMetrics:
		if cmd.Key == s.key {
			metrics := cmd.Metrics
			s.metrics = &metrics
			s.deps.NetworkSettled.TrackResourceUpdate(s.id, metrics.Fetch.Start, metrics.Fetch.End)
		}
	case command.StopResource:
		if cmd.Key == s.key {
			s.sendResourceEvent(cmd, ctx, w)
			return false
		}
	case command.StopResourceWithError:
		if cmd.Key == s.key {
			s.sendErrorEvent(cmd, ctx, w)
			return false
		}
	}
	return true
}

func (s *ResourceScope) sendResourceEvent(cmd command.StopResource, ctx Context, w Writer) {
	s.attributes.Update(cmd.Attrs())

	startTime := s.startTime
	duration := cmd.Time().Sub(s.startTime)
	size := cmd.Size
	if s.metrics != nil {
		startTime = s.metrics.Fetch.Start
		duration = s.metrics.Fetch.Duration()
		if s.metrics.ResponseSize != nil {
			size = s.metrics.ResponseSize
		}
	}
	if duration <= 0 {
		s.deps.Logger.Warnw(
			"computed resource duration is zero or negative, forcing it to 1ns",
			"url.original", s.url, "duration", duration,
		)
		duration = minimumDuration
	}

	kind := cmd.Kind
	if kind == "" {
		kind = s.kind
	}
	if kind == "" {
		kind = command.ResourceOther
	}

	event := s.deps.newEvent(model.ResourceProcessor, s.attributedContext(ctx))
	event.Timestamp = s.deps.eventTime(startTime)
	event.Resource = &model.Resource{
		ID:         s.id,
		Type:       string(kind),
		Method:     s.method,
		URL:        s.url,
		StatusCode: cmd.StatusCode,
		Duration:   duration,
		Size:       size,
		Provider:   s.provider(),
	}
	if s.metrics != nil {
		event.Resource.DNS = s.timing(s.metrics.DNS)
		event.Resource.Connect = s.timing(s.metrics.Connect)
		event.Resource.SSL = s.timing(s.metrics.SSL)
		event.Resource.FirstByte = s.timing(s.metrics.FirstByte)
		event.Resource.Download = s.timing(s.metrics.Download)
	}
	event.Trace = s.trace()
	event.Context = s.context()

	if s.deps.write(event, w) {
		s.outcome = resourceSucceeded
		s.deps.NetworkSettled.TrackResourceEnd(cmd.Time(), s.id, duration)
		return
	}
	s.outcome = resourceDropped
	s.deps.NetworkSettled.TrackResourceDropped(s.id)
}

func (s *ResourceScope) sendErrorEvent(cmd command.StopResourceWithError, ctx Context, w Writer) {
	s.attributes.Update(cmd.Attrs())

	category := model.ErrorCategoryException
	if cmd.IsNetworkError {
		category = model.ErrorCategoryNetwork
	}
	source := cmd.Source
	if source == "" {
		source = command.ErrorSourceNetwork
	}

	event := s.deps.newEvent(model.ErrorProcessor, s.attributedContext(ctx))
	event.Timestamp = s.deps.eventTime(cmd.Time())
	event.Error = &model.Error{
		ID:       s.deps.IDs.Generate(),
		Message:  cmd.Message,
		Type:     cmd.Type,
		Source:   string(source),
		Category: category,
		Resource: &model.ErrorResource{
			Method:     s.method,
			URL:        s.url,
			StatusCode: cmd.StatusCode,
			Provider:   s.provider(),
		},
	}
	event.Context = s.context()

	if s.deps.write(event, w) {
		s.outcome = resourceFailed
		s.deps.NetworkSettled.TrackResourceEnd(cmd.Time(), s.id, cmd.Time().Sub(s.startTime))
		return
	}
	s.outcome = resourceDropped
	s.deps.NetworkSettled.TrackResourceDropped(s.id)
}

// attributedContext overlays the action which was active when the resource
// started.
func (s *ResourceScope) attributedContext(ctx Context) Context {
	ctx.ActiveActionID = s.actionID
	return ctx
}

func (s *ResourceScope) timing(interval *command.Interval) *model.Timing {
	if interval == nil {
		return nil
	}
	return &model.Timing{
		Start:    interval.Start.Sub(s.metrics.Fetch.Start),
		Duration: interval.Duration(),
	}
}

func (s *ResourceScope) provider() *model.Provider {
	if !s.isFirstParty {
		return nil
	}
	provider := &model.Provider{Type: model.FirstPartyProvider}
	if u, err := url.Parse(s.url); err == nil {
		provider.Domain = u.Hostname()
	}
	return provider
}

// trace returns the trace correlation of the resource. Explicit trace
// attributes take precedence over the injected span context.
func (s *ResourceScope) trace() *model.Trace {
	var trace model.Trace
	if traceID, ok := s.attributes[AttributeTraceID].(string); ok {
		trace.TraceID = traceID
		trace.SpanID, _ = s.attributes[AttributeSpanID].(string)
	} else if s.spanContext != nil {
		trace.TraceID = s.spanContext.Trace.String()
		trace.SpanID = s.spanContext.Span.String()
	}
	if trace.TraceID == "" {
		return nil
	}
	switch rate := s.attributes[AttributeTraceSampleRate].(type) {
	case float64:
		trace.SampleRate = &rate
	case int:
		r := float64(rate)
		trace.SampleRate = &r
	}
	return &trace
}

// context returns the user attributes, without the trace correlation
// attributes which are recorded separately.
func (s *ResourceScope) context() common.MapStr {
	if len(s.attributes) == 0 {
		return nil
	}
	out := s.attributes.Clone()
	delete(out, AttributeTraceID)
	delete(out, AttributeSpanID)
	delete(out, AttributeTraceSampleRate)
	if len(out) == 0 {
		return nil
	}
	return out
}
