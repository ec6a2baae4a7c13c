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

package fleet

import "errors"

var (
	ErrGatewayRequired          = errors.New("gateway is required")
	ErrRepositoryRequired       = errors.New("repository is required")
	ErrIdentityResolverRequired = errors.New("identity resolver is required")
	ErrPresenceResolverRequired = errors.New("presence resolver is required when presence checks are enabled")
	ErrLoadState                = errors.New("failed to load fleet state")
	ErrDeviceList               = errors.New("failed to list devices")
	ErrDeviceUnresponsive       = errors.New("device did not answer responsiveness probe")
	ErrInstanceList             = errors.New("failed to list instances")
	ErrUnexpected               = errors.New("keep-alive loop stopped unexpectedly")
	ErrEmptyIdentity            = errors.New("identity must not be empty")
	ErrEmptyTarget              = errors.New("workload target must not be empty")
	ErrTemplateNotFound         = errors.New("workload template not found")
	ErrAssignmentNotFound       = errors.New("assignment not found")
)
