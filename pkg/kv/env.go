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
	"fmt"
	"os"
	"strconv"

	"github.com/carverauto/fleetkeeper/pkg/models"
)

var errInvalidKVEnv = errors.New("invalid KV environment value")

// ConfigFromEnv builds a Config from KV_NATS_URL, KV_BUCKET, KV_DOMAIN,
// KV_REPLICAS and the KV_TLS_{CERT,KEY,CA}_FILE variables. TLS is enabled
// when any of the file variables is set.
func ConfigFromEnv() (*Config, error) {
	cfg := &Config{
		NATSURL: os.Getenv("KV_NATS_URL"),
		Bucket:  os.Getenv("KV_BUCKET"),
		Domain:  os.Getenv("KV_DOMAIN"),
	}

	if raw := os.Getenv("KV_REPLICAS"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: KV_REPLICAS=%q", errInvalidKVEnv, raw)
		}

		cfg.Replicas = n
	}

	tls := &models.TLSConfig{
		CertFile: os.Getenv("KV_TLS_CERT_FILE"),
		KeyFile:  os.Getenv("KV_TLS_KEY_FILE"),
		CAFile:   os.Getenv("KV_TLS_CA_FILE"),
	}

	if tls.CertFile != "" || tls.KeyFile != "" || tls.CAFile != "" {
		cfg.TLS = tls
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}
