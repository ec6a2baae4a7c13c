/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package version reports the fleetkeeper build.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Set with -ldflags "-X github.com/carverauto/fleetkeeper/pkg/version.version=...".
//
//nolint:gochecknoglobals // ldflags targets
var (
	version = "dev"
	buildID = ""
)

// GetVersion returns the release version, or the module version recorded
// by the go toolchain when no release version was linked in.
func GetVersion() string {
	if version != "dev" {
		return version
	}

	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}

	return version
}

// GetBuildID returns the linked build id, falling back to the VCS revision.
func GetBuildID() string {
	if buildID != "" {
		return buildID
	}

	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "unknown"
	}

	for _, s := range info.Settings {
		if s.Key == "vcs.revision" && len(s.Value) >= 12 {
			return s.Value[:12]
		}
	}

	return "unknown"
}

// GetFullVersion is the string printed by -version.
func GetFullVersion() string {
	return fmt.Sprintf("%s (build: %s, %s)", GetVersion(), GetBuildID(), runtime.Version())
}

// UserAgent identifies fleetkeeper in outbound HTTP requests.
func UserAgent() string {
	return "fleetkeeper/" + GetVersion()
}
