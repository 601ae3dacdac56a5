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

// offViewHandling is the decision taken for a command arriving while no
// view is active.
type offViewHandling int

const (
	dropOffViewCommand offViewHandling = iota
	handleInApplicationLaunchView
	handleInBackgroundView
)

// offViewRule decides how a command arriving while no view is active is
// handled:
//
//   - until a view was tracked, commands in the foreground open the
//     application launch view;
//   - in the background, commands open a background view if background
//     event tracking is enabled;
//   - otherwise the command is dropped.
func offViewRule(hasTrackedAnyView, isAppInForeground, trackBackgroundEvents bool) offViewHandling {
	switch {
	case !hasTrackedAnyView && isAppInForeground:
		return handleInApplicationLaunchView
	case !isAppInForeground && trackBackgroundEvents:
		return handleInBackgroundView
	}
	return dropOffViewCommand
}
