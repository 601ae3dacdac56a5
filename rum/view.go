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
	"regexp"
	"time"

	"github.com/elastic/beats/v7/libbeat/common"

	"github.com/elastic/apm-rum/model"
	"github.com/elastic/apm-rum/rum/command"
	"github.com/elastic/apm-rum/vitals"
)

const (
	// ApplicationLaunchViewName and ApplicationLaunchViewPath identify the
	// synthetic view tracking the application launch.
	ApplicationLaunchViewName = "ApplicationLaunch"
	ApplicationLaunchViewPath = "rum/application-launch/view"

	// BackgroundViewName and BackgroundViewPath identify the synthetic view
	// collecting events tracked while the application is in the background.
	BackgroundViewName = "Background"
	BackgroundViewPath = "rum/background/view"

	// frozenFrameThreshold is the duration from which a long task is
	// considered a frozen frame.
	frozenFrameThreshold = 700 * time.Millisecond
)

var invalidTimingNameChars = regexp.MustCompile(`[^a-zA-Z0-9_.@$-]`)

type viewKind int

const (
	viewKindExplicit viewKind = iota
	viewKindApplicationLaunch
	viewKindBackground
)

// ViewScope tracks a view, its active user action, and the resources it
// is loading. It emits versioned view update events.
type ViewScope struct {
	deps *Dependencies

	kind       viewKind
	identity   string
	id         string
	path       string
	name       string
	startTime  time.Time
	attributes common.MapStr

	isActive               bool
	didReceiveStartCommand bool
	needsViewUpdate        bool
	sentApplicationStart   bool

	// version holds the number of accepted view update events.
	version int

	actionCount      int
	resourceCount    int
	errorCount       int
	longTaskCount    int
	frozenFrameCount int
	frustrationCount int

	customTimings      map[string]time.Duration
	performanceMetrics map[string]float64
	featureFlags       common.MapStr

	action    *ActionScope
	resources map[string]*ResourceScope

	vitals viewVitals
}

func newViewScope(
	deps *Dependencies,
	kind viewKind,
	identity, path, name string,
	cmd command.Command,
) *ViewScope {
	v := &ViewScope{
		deps:                   deps,
		kind:                   kind,
		identity:               identity,
		id:                     deps.IDs.Generate(),
		path:                   path,
		name:                   name,
		startTime:              cmd.Time(),
		attributes:             cmd.Attrs().Clone(),
		isActive:               true,
		didReceiveStartCommand: kind != viewKindExplicit,
		needsViewUpdate:        true,
		customTimings:          make(map[string]time.Duration),
		performanceMetrics:     make(map[string]float64),
		featureFlags:           make(common.MapStr),
		resources:              make(map[string]*ResourceScope),
	}
	v.vitals.start(deps)
	return v
}

// IsActive reports whether the view is the active view of its session.
func (v *ViewScope) IsActive() bool {
	return v.isActive
}

// ID returns the view identifier.
func (v *ViewScope) ID() string {
	return v.id
}

// Version returns the number of view update events accepted so far.
func (v *ViewScope) Version() int {
	return v.version
}

// context overlays the view and its active action on ctx.
func (v *ViewScope) context(ctx Context) Context {
	ctx.ActiveViewID = v.id
	ctx.ActiveViewPath = v.path
	ctx.ActiveViewName = v.name
	ctx.ActiveActionID = ""
	if v.action != nil {
		ctx.ActiveActionID = v.action.id
	}
	return ctx
}

// Process handles cmd and propagates it to the active action and the
// loading resources. It returns false once the view is inactive and has no
// resource left.
func (v *ViewScope) Process(cmd command.Command, parent Context, w Writer) bool {
	if v.action != nil {
		if !v.action.Process(cmd, v.context(parent), w) {
			v.actionEnded(v.action)
			v.action = nil
		}
	}

	if v.kind == viewKindApplicationLaunch && !v.sentApplicationStart {
		v.sentApplicationStart = true
		v.sendApplicationStartAction(cmd, v.context(parent), w)
	}

	switch cmd := cmd.(type) {
	case command.StopSession:
		v.deactivate()
	case command.StartView:
		if cmd.Identity == v.identity && !v.didReceiveStartCommand {
			v.didReceiveStartCommand = true
			v.needsViewUpdate = true
		} else {
			// Another view started, or this view was started twice.
			v.deactivate()
		}
	case command.StopView:
		if cmd.Identity == v.identity {
			v.deactivate()
		}
	case command.AddViewTiming:
		if v.isActive {
			v.addTiming(cmd)
		}
	case command.AddFeatureFlag:
		if v.isActive {
			v.featureFlags[cmd.Name] = cmd.Value
			v.needsViewUpdate = true
		}
	case command.AddPerformanceMetric:
		if v.isActive {
			v.performanceMetrics[cmd.Name] = cmd.Value
			v.needsViewUpdate = true
		}
	case command.StartResource:
		if v.isActive {
			v.startResource(cmd, parent)
		}
	case command.StartAction:
		if v.isActive {
			v.startAction(cmd, cmd.Type, cmd.Name, true)
		}
	case command.AddAction:
		if v.isActive {
			if cmd.Type == command.ActionCustom {
				v.sendInstantAction(cmd, parent, w)
			} else {
				v.startAction(cmd, cmd.Type, cmd.Name, false)
			}
		}
	case command.AddError:
		if v.isActive {
			v.sendError(cmd, v.context(parent), w)
		}
	case command.AddLongTask:
		if v.isActive {
			v.sendLongTask(cmd, v.context(parent), w)
		}
	}

	if !v.isActive && v.action != nil {
		v.action.finalize(cmd.Time(), v.context(parent), w)
		v.actionEnded(v.action)
		v.action = nil
	}

	ctx := v.context(parent)
	for key, resource := range v.resources {
		if !resource.Process(cmd, ctx, w) {
			v.resourceEnded(resource)
			delete(v.resources, key)
		}
	}

	if v.needsViewUpdate {
		v.sendViewUpdate(cmd, v.context(parent), w)
	}
	return v.isActive || len(v.resources) > 0
}

func (v *ViewScope) deactivate() {
	if v.isActive {
		v.isActive = false
		v.needsViewUpdate = true
	}
}

func (v *ViewScope) startResource(cmd command.StartResource, parent Context) {
	if existing, ok := v.resources[cmd.Key]; ok {
		v.deps.Logger.Warnw(
			"resource started with a key already in use, replacing the loading resource",
			"resource.key", cmd.Key, "url.original", existing.url,
		)
		v.deps.NetworkSettled.TrackResourceDropped(existing.id)
	}
	v.resources[cmd.Key] = newResourceScope(v.deps, cmd, v.context(parent))
}

func (v *ViewScope) startAction(cmd command.Command, actionType command.ActionType, name string, continuous bool) {
	if v.action != nil {
		v.deps.Logger.Warnw(
			"user action dropped because another action is already active",
			"action.type", actionType, "action.name", name,
			"active.action.type", v.action.actionType, "active.action.name", v.action.name,
		)
		return
	}
	v.action = newActionScope(v.deps, actionType, name, continuous, cmd)
}

// sendInstantAction sends a custom action immediately, regardless of the
// active action.
func (v *ViewScope) sendInstantAction(cmd command.AddAction, parent Context, w Writer) {
	action := newActionScope(v.deps, cmd.Type, cmd.Name, false, cmd)
	ctx := v.context(parent)
	ctx.ActiveActionID = action.id
	action.finalize(cmd.Time(), ctx, w)
	v.actionEnded(action)
}

func (v *ViewScope) sendApplicationStartAction(cmd command.Command, ctx Context, w Writer) {
	action := newActionScope(v.deps, command.ActionApplicationStart, string(command.ActionApplicationStart), false, cmd)
	ctx.ActiveActionID = action.id
	action.finalize(cmd.Time(), ctx, w)
	v.actionEnded(action)
}

func (v *ViewScope) actionEnded(action *ActionScope) {
	if action.sent == nil {
		return
	}
	v.actionCount++
	v.frustrationCount += len(action.sent.Frustrations)
	v.needsViewUpdate = true
}

func (v *ViewScope) resourceEnded(resource *ResourceScope) {
	switch resource.outcome {
	case resourceSucceeded:
		v.resourceCount++
		v.needsViewUpdate = true
	case resourceFailed:
		v.errorCount++
		v.needsViewUpdate = true
	}
}

func (v *ViewScope) addTiming(cmd command.AddViewTiming) {
	name := invalidTimingNameChars.ReplaceAllString(cmd.Name, "_")
	if name != cmd.Name {
		v.deps.Logger.Warnw(
			"custom timing name contains invalid characters, they were replaced by underscores",
			"timing.name", cmd.Name, "timing.sanitized_name", name,
		)
	}
	v.customTimings[name] = cmd.Time().Sub(v.startTime)
	v.needsViewUpdate = true
}

func (v *ViewScope) sendError(cmd command.AddError, ctx Context, w Writer) {
	source := cmd.Source
	if source == "" {
		source = command.ErrorSourceCustom
	}
	event := v.deps.newEvent(model.ErrorProcessor, ctx)
	event.Timestamp = v.deps.eventTime(cmd.Time())
	event.Error = &model.Error{
		ID:       v.deps.IDs.Generate(),
		Message:  cmd.Message,
		Type:     cmd.Type,
		Source:   string(source),
		Stack:    cmd.Stack,
		Category: model.ErrorCategoryException,
		IsCrash:  cmd.IsCrash,
	}
	event.FeatureFlags = v.featureFlagsSnapshot()
	if attrs := cmd.Attrs(); len(attrs) > 0 {
		event.Context = attrs.Clone()
	}
	if v.deps.write(event, w) {
		v.errorCount++
		v.needsViewUpdate = true
	}
}

func (v *ViewScope) sendLongTask(cmd command.AddLongTask, ctx Context, w Writer) {
	isFrozenFrame := cmd.Duration >= frozenFrameThreshold
	event := v.deps.newEvent(model.LongTaskProcessor, ctx)
	event.Timestamp = v.deps.eventTime(cmd.Time().Add(-cmd.Duration))
	event.LongTask = &model.LongTask{
		ID:            v.deps.IDs.Generate(),
		Duration:      cmd.Duration,
		IsFrozenFrame: isFrozenFrame,
	}
	if attrs := cmd.Attrs(); len(attrs) > 0 {
		event.Context = attrs.Clone()
	}
	if v.deps.write(event, w) {
		v.longTaskCount++
		if isFrozenFrame {
			v.frozenFrameCount++
		}
		v.needsViewUpdate = true
	}
}

// sendViewUpdate sends the next version of the view. The version is rolled
// back if the event is dropped by the builder.
func (v *ViewScope) sendViewUpdate(cmd command.Command, ctx Context, w Writer) {
	v.needsViewUpdate = false

	// A view which lost its active status is still reported as active
	// until its last resource completes.
	isActive := v.isActive || len(v.resources) > 0
	timeSpent := cmd.Time().Sub(v.startTime)
	if timeSpent <= 0 {
		timeSpent = minimumDuration
	}

	v.version++
	event := v.deps.newEvent(model.ViewProcessor, ctx)
	event.Timestamp = v.deps.eventTime(v.startTime)
	event.Action = nil
	event.View = model.View{
		ID:                 v.id,
		Name:               v.name,
		URL:                v.path,
		IsActive:           &isActive,
		DocumentVersion:    v.version,
		TimeSpent:          timeSpent,
		ActionCount:        v.actionCount,
		ResourceCount:      v.resourceCount,
		ErrorCount:         v.errorCount,
		LongTaskCount:      v.longTaskCount,
		FrozenFrameCount:   v.frozenFrameCount,
		FrustrationCount:   v.frustrationCount,
		CustomTimings:      copyTimings(v.customTimings),
		PerformanceMetrics: copyMetrics(v.performanceMetrics),
		Vitals:             v.vitals.update(v.deps, timeSpent),
	}
	event.FeatureFlags = v.featureFlagsSnapshot()
	if len(v.attributes) > 0 {
		event.Context = v.attributes.Clone()
	}
	if !v.deps.write(event, w) {
		v.version--
	}
}

func (v *ViewScope) featureFlagsSnapshot() common.MapStr {
	if len(v.featureFlags) == 0 {
		return nil
	}
	return v.featureFlags.Clone()
}

func copyTimings(in map[string]time.Duration) map[string]time.Duration {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]time.Duration, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func copyMetrics(in map[string]float64) map[string]float64 {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]float64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// viewVitals aggregates vitals sampled over the life of a view.
type viewVitals struct {
	baseline    *vitals.Snapshot
	memorySum   float64
	memoryMax   float64
	memoryCount int
}

func (vv *viewVitals) start(deps *Dependencies) {
	if deps.Vitals == nil {
		return
	}
	snapshot, err := deps.Vitals.Read()
	if err != nil {
		deps.Logger.Debugw("failed to read vitals", "error", err)
		return
	}
	vv.baseline = &snapshot
}

func (vv *viewVitals) update(deps *Dependencies, timeSpent time.Duration) *model.Vitals {
	if vv.baseline == nil {
		return nil
	}
	snapshot, err := deps.Vitals.Read()
	if err != nil {
		deps.Logger.Debugw("failed to read vitals", "error", err)
		return nil
	}
	vv.memoryCount++
	vv.memorySum += snapshot.MemoryBytes
	if snapshot.MemoryBytes > vv.memoryMax {
		vv.memoryMax = snapshot.MemoryBytes
	}
	out := &model.Vitals{
		CPUTicksCount: snapshot.CPUTicks - vv.baseline.CPUTicks,
		MemoryAverage: vv.memorySum / float64(vv.memoryCount),
		MemoryMax:     vv.memoryMax,
	}
	// Ticks per second are only meaningful over a long enough period.
	if timeSpent >= time.Second {
		perSecond := out.CPUTicksCount / timeSpent.Seconds()
		out.CPUTicksPerSecond = &perSecond
	}
	return out
}
