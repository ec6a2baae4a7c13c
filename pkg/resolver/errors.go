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

// Package resolver provides the identity and presence resolvers the
// keep-alive loop consults.
package resolver

import "errors"

var (
	errCommandRequired   = errors.New("identity command is required")
	errInstancePattern   = errors.New("identity command must contain " + instancePlaceholder)
	errURLRequired       = errors.New("presence url is required")
	errIdentityPattern   = errors.New("presence url must contain " + identityPlaceholder)
	errGatewayRequired   = errors.New("gateway is required")
	errInvalidPattern    = errors.New("invalid identity pattern")
	errPresenceStatus    = errors.New("presence service returned non-success status")
	errPresenceMalformed = errors.New("presence response is malformed")
)
