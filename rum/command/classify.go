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

import "fmt"

// IsLifecycle reports whether cmd only describes the application lifecycle.
// Lifecycle commands never cause a new session to be started.
func IsLifecycle(cmd Command) bool {
	switch cmd.(type) {
	case SDKInit, AppLifecycle, KeepAlive:
		return true
	case ApplicationStart, StopSession,
		StartView, StopView, AddViewTiming, AddFeatureFlag, AddPerformanceMetric,
		StartResource, AddResourceMetrics, StopResource, StopResourceWithError,
		StartAction, StopAction, AddAction,
		AddError, AddLongTask:
		return false
	}
	return false
}

// IsUserInteraction reports whether cmd is caused by the user. Only user
// interactions extend a session beyond its inactivity timeout.
func IsUserInteraction(cmd Command) bool {
	switch cmd.(type) {
	case StartView, StopView, StartAction, StopAction, AddAction:
		return true
	case SDKInit, AppLifecycle, KeepAlive, ApplicationStart, StopSession,
		AddViewTiming, AddFeatureFlag, AddPerformanceMetric,
		StartResource, AddResourceMetrics, StopResource, StopResourceWithError,
		AddError, AddLongTask:
		return false
	}
	return false
}

// CanStartBackgroundView reports whether cmd may open a synthetic background
// view when it arrives while no view is active.
func CanStartBackgroundView(cmd Command) bool {
	switch cmd.(type) {
	case StartResource, StartAction, AddAction, AddError:
		return true
	case SDKInit, AppLifecycle, KeepAlive, ApplicationStart, StopSession,
		StartView, StopView, AddViewTiming, AddFeatureFlag, AddPerformanceMetric,
		AddResourceMetrics, StopResource, StopResourceWithError,
		StopAction, AddLongTask:
		return false
	}
	return false
}

// CanStartApplicationLaunchView reports whether cmd may open the synthetic
// application launch view when no view has been tracked yet.
func CanStartApplicationLaunchView(cmd Command) bool {
	switch cmd.(type) {
	case SDKInit, AppLifecycle, KeepAlive, StopSession:
		return false
	case ApplicationStart,
		StartView, StopView, AddViewTiming, AddFeatureFlag, AddPerformanceMetric,
		StartResource, AddResourceMetrics, StopResource, StopResourceWithError,
		StartAction, StopAction, AddAction,
		AddError, AddLongTask:
		return true
	}
	return false
}

// TargetsActiveView reports whether cmd only has an effect on the active
// view. Other commands are addressed to scopes which may outlive the active
// view, such as loading resources, or to the session itself.
func TargetsActiveView(cmd Command) bool {
	switch cmd.(type) {
	case AddViewTiming, AddFeatureFlag, AddPerformanceMetric,
		StartResource, StartAction, AddAction, AddError, AddLongTask:
		return true
	case SDKInit, AppLifecycle, KeepAlive, ApplicationStart, StopSession,
		StartView, StopView, AddResourceMetrics, StopResource, StopResourceWithError,
		StopAction:
		return false
	}
	return false
}

// Name returns a short name for the kind of cmd, for use in logs.
func Name(cmd Command) string {
	switch cmd.(type) {
	case SDKInit:
		return "sdk_init"
	case ApplicationStart:
		return "application_start"
	case AppLifecycle:
		return "app_lifecycle"
	case KeepAlive:
		return "keep_alive"
	case StopSession:
		return "stop_session"
	case StartView:
		return "start_view"
	case StopView:
		return "stop_view"
	case AddViewTiming:
		return "add_view_timing"
	case AddFeatureFlag:
		return "add_feature_flag"
	case AddPerformanceMetric:
		return "add_performance_metric"
	case StartResource:
		return "start_resource"
	case AddResourceMetrics:
		return "add_resource_metrics"
	case StopResource:
		return "stop_resource"
	case StopResourceWithError:
		return "stop_resource_with_error"
	case StartAction:
		return "start_action"
	case StopAction:
		return "stop_action"
	case AddAction:
		return "add_action"
	case AddError:
		return "add_error"
	case AddLongTask:
		return "add_long_task"
	}
	return fmt.Sprintf("%T", cmd)
}
