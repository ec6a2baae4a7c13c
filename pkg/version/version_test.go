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

package version

import (
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLinkedVersionWins(t *testing.T) {
	prevVersion, prevBuild := version, buildID

	t.Cleanup(func() { version, buildID = prevVersion, prevBuild })

	version, buildID = "1.4.0", "abc123"

	assert.Equal(t, "1.4.0", GetVersion())
	assert.Equal(t, "abc123", GetBuildID())
	assert.Equal(t, "1.4.0 (build: abc123, "+runtime.Version()+")", GetFullVersion())
	assert.Equal(t, "fleetkeeper/1.4.0", UserAgent())
}

func TestUnlinkedVersionFallsBack(t *testing.T) {
	prevVersion, prevBuild := version, buildID

	t.Cleanup(func() { version, buildID = prevVersion, prevBuild })

	version, buildID = "dev", ""

	assert.NotEmpty(t, GetVersion())
	assert.NotEmpty(t, GetBuildID())
	assert.True(t, strings.HasPrefix(UserAgent(), "fleetkeeper/"))
}
