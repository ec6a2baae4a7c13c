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

// Package keeper wires the configured gateway, resolvers, repository and
// event publisher into a running keep-alive service.
package keeper

import (
	"errors"
	"fmt"
	"time"

	"github.com/carverauto/fleetkeeper/pkg/adb"
	"github.com/carverauto/fleetkeeper/pkg/fleet"
	"github.com/carverauto/fleetkeeper/pkg/kv"
	"github.com/carverauto/fleetkeeper/pkg/logger"
	"github.com/carverauto/fleetkeeper/pkg/models"
	"github.com/carverauto/fleetkeeper/pkg/natsutil"
	"github.com/carverauto/fleetkeeper/pkg/resolver"
	"github.com/carverauto/fleetkeeper/pkg/store"
)

const (
	BackendFile     = "file"
	BackendKV       = "kv"
	BackendPostgres = "postgres"

	defaultServiceName     = "fleetkeeper"
	defaultStatePath       = "/var/lib/fleetkeeper/state.json"
	defaultShutdownTimeout = 30 * time.Second
)

var (
	errUnknownBackend      = errors.New("unknown store backend")
	errKVConfigRequired    = errors.New("store.kv is required for the kv backend")
	errPostgresRequired    = errors.New("store.postgres with host and database is required for the postgres backend")
	errEventsURLRequired   = errors.New("events.nats_url is required when events are enabled")
	errNegativeConcurrency = errors.New("scan_concurrency must not be negative")
)

// StoreConfig selects where the persisted document lives.
type StoreConfig struct {
	Backend  string                `json:"backend"`
	Path     string                `json:"path,omitempty"`
	KV       *kv.Config            `json:"kv,omitempty"`
	KVKey    string                `json:"kv_key,omitempty"`
	Postgres *store.PostgresConfig `json:"postgres,omitempty"`
}

// EventsConfig enables keep-alive events on NATS JetStream.
type EventsConfig struct {
	Enabled       bool              `json:"enabled"`
	NATSURL       string            `json:"nats_url"`
	TLS           *models.TLSConfig `json:"tls,omitempty"`
	Domain        string            `json:"domain,omitempty"`
	Stream        string            `json:"stream,omitempty"`
	Subjects      []string          `json:"subjects,omitempty"`
	SubjectPrefix string            `json:"subject_prefix,omitempty"`
}

// TimingConfig overrides loop timings. The persisted document still wins
// for the tick interval, fleet reboot interval, presence interval and
// device timeout.
type TimingConfig struct {
	KeepAliveInterval models.Duration `json:"keep_alive_interval,omitempty"`
	DeviceTimeout     models.Duration `json:"device_timeout,omitempty"`
	IdentityTTL       models.Duration `json:"identity_ttl,omitempty"`
	FailureBackoff    models.Duration `json:"failure_backoff,omitempty"`
	PresenceTTL       models.Duration `json:"presence_ttl,omitempty"`
	LaunchDelay       models.Duration `json:"launch_delay,omitempty"`
	LaunchTimeout     models.Duration `json:"launch_timeout,omitempty"`
	CommandTimeout    models.Duration `json:"command_timeout,omitempty"`
	RecoveryAttempts  int             `json:"recovery_attempts,omitempty"`
	RecoveryInterval  models.Duration `json:"recovery_interval,omitempty"`
}

// Config is the fleetkeeper service configuration.
type Config struct {
	ServiceName     string                       `json:"service_name"`
	Logging         *logger.Config               `json:"logging,omitempty"`
	Store           StoreConfig                  `json:"store"`
	Events          *EventsConfig                `json:"events,omitempty"`
	ADB             adb.Config                   `json:"adb"`
	Identity        resolver.ShellIdentityConfig `json:"identity"`
	Presence        *resolver.HTTPPresenceConfig `json:"presence,omitempty"`
	Timing          TimingConfig                 `json:"timing"`
	InstancePrefix  string                       `json:"instance_prefix,omitempty"`
	ScanConcurrency int                          `json:"scan_concurrency,omitempty"`
	ShutdownTimeout models.Duration              `json:"shutdown_timeout,omitempty"`

	// TraceSampleRatio samples keep-alive tick traces; 0 keeps all.
	TraceSampleRatio float64 `json:"trace_sample_ratio,omitempty"`
}

// Validate implements config.Validator.
func (c *Config) Validate() error {
	if c.ServiceName == "" {
		c.ServiceName = defaultServiceName
	}

	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = models.Duration(defaultShutdownTimeout)
	}

	if c.ScanConcurrency < 0 {
		return errNegativeConcurrency
	}

	if err := c.Store.validate(); err != nil {
		return err
	}

	if c.Events != nil && c.Events.Enabled && c.Events.NATSURL == "" {
		return errEventsURLRequired
	}

	if err := c.ADB.Validate(); err != nil {
		return fmt.Errorf("adb: %w", err)
	}

	if err := c.Identity.Validate(); err != nil {
		return fmt.Errorf("identity: %w", err)
	}

	if c.Presence != nil {
		if err := c.Presence.Validate(); err != nil {
			return fmt.Errorf("presence: %w", err)
		}
	}

	return nil
}

func (s *StoreConfig) validate() error {
	if s.Backend == "" {
		s.Backend = BackendFile
	}

	switch s.Backend {
	case BackendFile:
		if s.Path == "" {
			s.Path = defaultStatePath
		}
	case BackendKV:
		if s.KV == nil {
			return errKVConfigRequired
		}

		if err := s.KV.Validate(); err != nil {
			return fmt.Errorf("store.kv: %w", err)
		}

		if s.KVKey == "" {
			s.KVKey = store.DefaultKVKey
		}
	case BackendPostgres:
		if s.Postgres == nil || s.Postgres.Host == "" || s.Postgres.Database == "" {
			return errPostgresRequired
		}
	default:
		return fmt.Errorf("%w: %q", errUnknownBackend, s.Backend)
	}

	return nil
}

// Settings derives the loop settings before the persisted document is
// overlaid.
func (c *Config) Settings() fleet.Settings {
	t := c.Timing

	return fleet.Settings{
		KeepAliveInterval: t.KeepAliveInterval.Std(),
		DeviceTimeout:     t.DeviceTimeout.Std(),
		IdentityTTL:       t.IdentityTTL.Std(),
		FailureBackoff:    t.FailureBackoff.Std(),
		PresenceTTL:       t.PresenceTTL.Std(),
		LaunchDelay:       t.LaunchDelay.Std(),
		LaunchTimeout:     t.LaunchTimeout.Std(),
		CommandTimeout:    t.CommandTimeout.Std(),
		RecoveryAttempts:  t.RecoveryAttempts,
		RecoveryInterval:  t.RecoveryInterval.Std(),
		ScanConcurrency:   c.ScanConcurrency,
		InstancePrefix:    c.InstancePrefix,
	}.WithDefaults()
}

func (e *EventsConfig) stream() string {
	if e.Stream == "" {
		return natsutil.DefaultStreamName
	}

	return e.Stream
}
