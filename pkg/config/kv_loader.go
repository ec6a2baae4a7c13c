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

package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/carverauto/fleetkeeper/pkg/kv"
)

// DefaultKVPrefix namespaces config documents in the KV bucket.
const DefaultKVPrefix = "config/"

var (
	errKVKeyNotFound = errors.New("key not found in KV store")
)

// KVConfigLoader overlays a JSON document stored in a KV bucket onto dst.
type KVConfigLoader struct {
	store  kv.KVStore
	prefix string
}

// NewKVConfigLoader returns a loader reading keys under prefix, or
// DefaultKVPrefix when prefix is empty.
func NewKVConfigLoader(store kv.KVStore, prefix string) *KVConfigLoader {
	if prefix == "" {
		prefix = DefaultKVPrefix
	}

	return &KVConfigLoader{store: store, prefix: prefix}
}

// KeyForPath maps a config file path to its KV key under DefaultKVPrefix.
func KeyForPath(path string) string {
	return NewKVConfigLoader(nil, "").key(path)
}

func (k *KVConfigLoader) key(path string) string {
	return k.prefix + filepath.Base(path)
}

// Load fills dst from the stored document. Fields absent from the document
// keep their current values; an empty value counts as missing.
func (k *KVConfigLoader) Load(ctx context.Context, path string, dst interface{}) error {
	key := k.key(path)

	data, found, err := k.store.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to get key '%s' from KV store: %w", key, err)
	}

	if !found || len(data) == 0 {
		return fmt.Errorf("%w: '%s'", errKVKeyNotFound, key)
	}

	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("failed to unmarshal JSON from key '%s': %w", key, err)
	}

	return nil
}

// ConnectKVFromEnv opens the KV store named by the KV_* environment
// variables when CONFIG_SOURCE=kv and installs it on c. The returned func
// closes the store and is a no-op for other sources.
func (c *Config) ConnectKVFromEnv(ctx context.Context) (func() error, error) {
	noop := func() error { return nil }

	if Source() != configSourceKV {
		return noop, nil
	}

	kvCfg, err := kv.ConfigFromEnv()
	if err != nil {
		return noop, err
	}

	store, err := kv.NewNatsStore(ctx, kvCfg, c.logger)
	if err != nil {
		return noop, fmt.Errorf("failed to connect config KV store: %w", err)
	}

	c.SetKVStore(store)

	return store.Close, nil
}

func kvPrefixFromEnv() string {
	return os.Getenv("CONFIG_KV_PREFIX")
}
