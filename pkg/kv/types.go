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
	"github.com/carverauto/fleetkeeper/pkg/models"
)

// Config locates the JetStream bucket fleetkeeper documents live in.
type Config struct {
	NATSURL  string            `json:"nats_url"`
	TLS      *models.TLSConfig `json:"tls,omitempty"`
	Domain   string            `json:"domain,omitempty"`
	Bucket   string            `json:"bucket,omitempty"`
	History  uint8             `json:"history,omitempty"`   // revisions kept per key
	MaxBytes int64             `json:"max_bytes,omitempty"` // 0 = unlimited
	Replicas int               `json:"replicas,omitempty"`
}
