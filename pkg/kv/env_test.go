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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("KV_NATS_URL", "nats://kv:4222")
	t.Setenv("KV_BUCKET", "lab")
	t.Setenv("KV_DOMAIN", "")
	t.Setenv("KV_REPLICAS", "3")
	t.Setenv("KV_TLS_CERT_FILE", "")
	t.Setenv("KV_TLS_KEY_FILE", "")
	t.Setenv("KV_TLS_CA_FILE", "/etc/ca.pem")

	cfg, err := ConfigFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "nats://kv:4222", cfg.NATSURL)
	assert.Equal(t, "lab", cfg.Bucket)
	assert.Equal(t, 3, cfg.Replicas)
	assert.Equal(t, uint8(defaultHistory), cfg.History)
	require.NotNil(t, cfg.TLS)
	assert.Equal(t, "/etc/ca.pem", cfg.TLS.CAFile)
}

func TestConfigFromEnvDefaultsWithoutTLS(t *testing.T) {
	t.Setenv("KV_NATS_URL", "nats://kv:4222")
	t.Setenv("KV_BUCKET", "")
	t.Setenv("KV_REPLICAS", "")
	t.Setenv("KV_TLS_CERT_FILE", "")
	t.Setenv("KV_TLS_KEY_FILE", "")
	t.Setenv("KV_TLS_CA_FILE", "")

	cfg, err := ConfigFromEnv()
	require.NoError(t, err)

	assert.Equal(t, defaultBucket, cfg.Bucket)
	assert.Nil(t, cfg.TLS)
}

func TestConfigFromEnvRejectsBadReplicas(t *testing.T) {
	t.Setenv("KV_NATS_URL", "nats://kv:4222")
	t.Setenv("KV_REPLICAS", "three")

	_, err := ConfigFromEnv()
	require.ErrorIs(t, err, errInvalidKVEnv)
}
