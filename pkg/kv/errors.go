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

package kv

import (
	"errors"
)

// ErrRevisionMismatch reports that a key changed since it was read.
var ErrRevisionMismatch = errors.New("kv revision mismatch")

var (
	errNatsURLRequired    = errors.New("nats_url is required")
	errMaxBytesNegative   = errors.New("max_bytes must not be negative")
	errHistoryTooLarge    = errors.New("history must not exceed 64")
	errReplicasOutOfRange = errors.New("replicas must be between 1 and 5")
)
