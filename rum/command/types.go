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

// AppState describes the state of the application as reported by the OS.
type AppState int

const (
	// AppStateActive means the application is in the foreground and
	// receiving events.
	AppStateActive AppState = iota
	// AppStateInactive means the application is in the foreground but
	// not receiving events, e.g. during a system prompt.
	AppStateInactive
	// AppStateBackground means the application runs in the background.
	AppStateBackground
)

// IsForeground reports whether s is a foreground-capable state.
func (s AppState) IsForeground() bool {
	return s == AppStateActive || s == AppStateInactive
}

func (s AppState) String() string {
	switch s {
	case AppStateActive:
		return "active"
	case AppStateInactive:
		return "inactive"
	case AppStateBackground:
		return "background"
	}
	return "unknown"
}

// ActionType is the type of a user action.
type ActionType string

const (
	ActionTap              ActionType = "tap"
	ActionClick            ActionType = "click"
	ActionScroll           ActionType = "scroll"
	ActionSwipe            ActionType = "swipe"
	ActionBack             ActionType = "back"
	ActionCustom           ActionType = "custom"
	ActionApplicationStart ActionType = "application_start"
)

// ResourceKind is the kind of a loaded resource.
type ResourceKind string

const (
	ResourceDocument ResourceKind = "document"
	ResourceXHR      ResourceKind = "xhr"
	ResourceFetch    ResourceKind = "fetch"
	ResourceImage    ResourceKind = "image"
	ResourceNative   ResourceKind = "native"
	ResourceOther    ResourceKind = "other"
)

// ErrorSource is the origin of an error.
type ErrorSource string

const (
	ErrorSourceSource  ErrorSource = "source"
	ErrorSourceNetwork ErrorSource = "network"
	ErrorSourceConsole ErrorSource = "console"
	ErrorSourceCustom  ErrorSource = "custom"
)
