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

// Package config loads service configuration from a file, the environment
// or a KV store, selected by CONFIG_SOURCE.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/carverauto/fleetkeeper/pkg/kv"
	"github.com/carverauto/fleetkeeper/pkg/logger"
)

var (
	errKVStoreNotSet       = errors.New("KV store not initialized for CONFIG_SOURCE=kv; call SetKVStore first")
	errInvalidConfigSource = errors.New("invalid CONFIG_SOURCE value")
	errLoadConfigFailed    = errors.New("failed to load configuration")
)

const (
	configSourceKV   = "kv"
	configSourceFile = "file"
	configSourceEnv  = "env"

	// DefaultEnvPrefix prefixes every variable read when CONFIG_SOURCE=env.
	DefaultEnvPrefix = "FLEETKEEPER_"
)

// ConfigLoader fills dst from a configuration source.
type ConfigLoader interface {
	Load(ctx context.Context, path string, dst interface{}) error
}

// Validator is implemented by configs that check and default themselves.
type Validator interface {
	Validate() error
}

// Config holds the configuration loading dependencies.
type Config struct {
	kvStore       kv.KVStore
	defaultLoader ConfigLoader
	logger        logger.Logger
}

// NewConfig initializes a new Config instance with a default file loader and logger.
// If logger is nil, a warn-level stderr logger is used.
func NewConfig(log logger.Logger) *Config {
	if log == nil {
		log = logger.Wrap(zerolog.New(os.Stderr).Level(zerolog.WarnLevel).With().Timestamp().Logger())
	}

	return &Config{
		defaultLoader: &FileConfigLoader{},
		logger:        log,
	}
}

// ValidateConfig validates a configuration if it implements Validator.
func ValidateConfig(cfg interface{}) error {
	v, ok := cfg.(Validator)
	if !ok {
		return nil
	}

	return v.Validate()
}

// LoadAndValidate loads a configuration and validates it.
func (c *Config) LoadAndValidate(ctx context.Context, path string, cfg interface{}) error {
	if err := c.loadWithSource(ctx, path, cfg); err != nil {
		return err
	}

	return ValidateConfig(cfg)
}

// SetKVStore sets the KV store to be used when CONFIG_SOURCE=kv.
func (c *Config) SetKVStore(store kv.KVStore) {
	c.kvStore = store
}

// Source returns the configuration source selected by CONFIG_SOURCE.
func Source() string {
	return strings.ToLower(os.Getenv("CONFIG_SOURCE"))
}

func (c *Config) loadWithSource(ctx context.Context, path string, cfg interface{}) error {
	source := Source()

	switch source {
	case configSourceKV:
		return c.loadFromKV(ctx, path, cfg)
	case configSourceEnv:
		prefix := os.Getenv("CONFIG_ENV_PREFIX")
		if prefix == "" {
			prefix = DefaultEnvPrefix
		}

		return NewEnvConfigLoader(c.logger, prefix).Load(ctx, path, cfg)
	case configSourceFile, "":
		return c.defaultLoader.Load(ctx, path, cfg)
	default:
		return fmt.Errorf("%w: %s (expected '%s', '%s', or '%s')",
			errInvalidConfigSource, source, configSourceFile, configSourceKV, configSourceEnv)
	}
}

// loadFromKV reads the file as defaults when present and overlays the KV
// document on top. A missing KV key falls back to the file alone.
func (c *Config) loadFromKV(ctx context.Context, path string, cfg interface{}) error {
	if c.kvStore == nil {
		return errKVStoreNotSet
	}

	fileErr := c.defaultLoader.Load(ctx, path, cfg)
	if fileErr != nil {
		c.logger.Debug().Err(fileErr).Str("path", path).Msg("No file defaults for KV config")
	}

	kvErr := NewKVConfigLoader(c.kvStore, kvPrefixFromEnv()).Load(ctx, path, cfg)
	if kvErr == nil {
		c.logger.Info().Str("path", path).Msg("Loaded configuration overlay from KV")

		return nil
	}

	if fileErr != nil {
		return fmt.Errorf("%w from KV: %w, and from fallback file: %w", errLoadConfigFailed, kvErr, fileErr)
	}

	c.logger.Warn().Err(kvErr).Msg("KV config unavailable, using file configuration")

	return nil
}
