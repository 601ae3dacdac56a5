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

package command

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	type flags struct {
		lifecycle, interaction, background, launch, targetsView bool
	}
	for name, test := range map[string]struct {
		cmd      Command
		expected flags
	}{
		"sdk_init":                 {SDKInit{}, flags{lifecycle: true}},
		"application_start":        {ApplicationStart{}, flags{launch: true}},
		"app_lifecycle":            {AppLifecycle{State: AppStateBackground}, flags{lifecycle: true}},
		"keep_alive":               {KeepAlive{}, flags{lifecycle: true}},
		"stop_session":             {StopSession{}, flags{}},
		"start_view":               {StartView{}, flags{interaction: true, launch: true}},
		"stop_view":                {StopView{}, flags{interaction: true, launch: true}},
		"add_view_timing":          {AddViewTiming{}, flags{launch: true, targetsView: true}},
		"add_feature_flag":         {AddFeatureFlag{}, flags{launch: true, targetsView: true}},
		"add_performance_metric":   {AddPerformanceMetric{}, flags{launch: true, targetsView: true}},
		"start_resource":           {StartResource{}, flags{background: true, launch: true, targetsView: true}},
		"add_resource_metrics":     {AddResourceMetrics{}, flags{launch: true}},
		"stop_resource":            {StopResource{}, flags{launch: true}},
		"stop_resource_with_error": {StopResourceWithError{}, flags{launch: true}},
		"start_action":             {StartAction{}, flags{interaction: true, background: true, launch: true, targetsView: true}},
		"stop_action":              {StopAction{}, flags{interaction: true, launch: true}},
		"add_action":               {AddAction{}, flags{interaction: true, background: true, launch: true, targetsView: true}},
		"add_error":                {AddError{}, flags{background: true, launch: true, targetsView: true}},
		"add_long_task":            {AddLongTask{}, flags{launch: true, targetsView: true}},
	} {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, name, Name(test.cmd))
			assert.Equal(t, test.expected, flags{
				lifecycle:   IsLifecycle(test.cmd),
				interaction: IsUserInteraction(test.cmd),
				background:  CanStartBackgroundView(test.cmd),
				launch:      CanStartApplicationLaunchView(test.cmd),
				targetsView: TargetsActiveView(test.cmd),
			})
		})
	}
}

func TestClassifyPointer(t *testing.T) {
	cmd := &AddError{}
	assert.False(t, IsLifecycle(cmd))
	assert.False(t, TargetsActiveView(cmd))
	assert.Equal(t, "*command.AddError", Name(cmd))
}

func TestBase(t *testing.T) {
	now := time.Now()
	cmd := StartView{Base: At(now), Identity: "home"}
	assert.Equal(t, now, cmd.Time())
	assert.Nil(t, cmd.Attrs())
}

func TestAppState(t *testing.T) {
	assert.True(t, AppStateActive.IsForeground())
	assert.True(t, AppStateInactive.IsForeground())
	assert.False(t, AppStateBackground.IsForeground())
	assert.Equal(t, "background", AppStateBackground.String())
}

func TestIntervalDuration(t *testing.T) {
	start := time.Now()
	assert.Equal(t, time.Second, Interval{Start: start, End: start.Add(time.Second)}.Duration())
}
