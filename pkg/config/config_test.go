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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/carverauto/fleetkeeper/pkg/kv"
	"github.com/carverauto/fleetkeeper/pkg/logger"
	"github.com/carverauto/fleetkeeper/pkg/models"
)

var errKVDown = errors.New("kv unavailable")

type testStore struct {
	Backend string `json:"backend"`
	Path    string `json:"path,omitempty"`
}

type testEvents struct {
	Enabled bool   `json:"enabled"`
	NATSURL string `json:"nats_url"`
}

type testConfig struct {
	Name     string          `json:"name"`
	Interval models.Duration `json:"interval"`
	Timeout  time.Duration   `json:"timeout"`
	Workers  int             `json:"workers"`
	Ratio    float64         `json:"ratio"`
	Tags     []string        `json:"tags"`
	Store    testStore       `json:"store"`
	Events   *testEvents     `json:"events,omitempty"`
	History  *uint32         `json:"history,omitempty"`
	Ignored  string          `json:"-"`

	validated bool
}

func (c *testConfig) Validate() error {
	c.validated = true

	if c.Name == "" {
		c.Name = "default"
	}

	return nil
}

func writeJSON(t *testing.T, path string, v any) {
	t.Helper()

	data, err := json.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o600))
}

func TestLoadAndValidateFromFile(t *testing.T) {
	t.Setenv("CONFIG_SOURCE", "")

	path := filepath.Join(t.TempDir(), "fleetkeeper.json")
	writeJSON(t, path, map[string]any{
		"interval": "45s",
		"workers":  4,
		"store":    map[string]any{"backend": "file", "path": "/var/lib/fleetkeeper/state.json"},
	})

	var cfg testConfig

	require.NoError(t, NewConfig(logger.NewTestLogger()).LoadAndValidate(context.Background(), path, &cfg))
	assert.True(t, cfg.validated)
	assert.Equal(t, "default", cfg.Name)
	assert.Equal(t, 45*time.Second, cfg.Interval.Std())
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, "file", cfg.Store.Backend)
	assert.Nil(t, cfg.Events)
}

func TestFileLoaderExpandsEnvReferences(t *testing.T) {
	t.Setenv("FK_TEST_NAME", `quoted "name"`)

	path := filepath.Join(t.TempDir(), "fleetkeeper.json")
	require.NoError(t, os.WriteFile(path,
		[]byte(`{"name": "${FK_TEST_NAME}", "store": {"backend": "${FK_TEST_UNSET}", "path": "pa$word"}}`), 0o600))

	var cfg testConfig

	require.NoError(t, (&FileConfigLoader{}).Load(context.Background(), path, &cfg))
	assert.Equal(t, `quoted "name"`, cfg.Name)
	assert.Equal(t, "${FK_TEST_UNSET}", cfg.Store.Backend)
	assert.Equal(t, "pa$word", cfg.Store.Path)
}

func TestLoadAndValidateMissingFile(t *testing.T) {
	t.Setenv("CONFIG_SOURCE", "file")

	var cfg testConfig

	err := NewConfig(nil).LoadAndValidate(context.Background(), filepath.Join(t.TempDir(), "missing.json"), &cfg)
	require.Error(t, err)
	assert.False(t, cfg.validated)
}

func TestLoadAndValidateInvalidSource(t *testing.T) {
	t.Setenv("CONFIG_SOURCE", "consul")

	var cfg testConfig

	err := NewConfig(nil).LoadAndValidate(context.Background(), "unused.json", &cfg)
	require.ErrorIs(t, err, errInvalidConfigSource)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("CONFIG_SOURCE", "env")
	t.Setenv("FLEETKEEPER_NAME", "keeper-1")
	t.Setenv("FLEETKEEPER_INTERVAL", "2m")
	t.Setenv("FLEETKEEPER_TIMEOUT", "5s")
	t.Setenv("FLEETKEEPER_WORKERS", "8")
	t.Setenv("FLEETKEEPER_RATIO", "0.5")
	t.Setenv("FLEETKEEPER_TAGS", "a, b,c")
	t.Setenv("FLEETKEEPER_STORE_BACKEND", "postgres")
	t.Setenv("FLEETKEEPER_HISTORY", "5")
	t.Setenv("FLEETKEEPER_IGNORED", "nope")

	var cfg testConfig

	require.NoError(t, NewConfig(logger.NewTestLogger()).LoadAndValidate(context.Background(), "unused.json", &cfg))
	assert.Equal(t, "keeper-1", cfg.Name)
	assert.Equal(t, 2*time.Minute, cfg.Interval.Std())
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.Equal(t, 8, cfg.Workers)
	assert.InDelta(t, 0.5, cfg.Ratio, 0.0001)
	assert.Equal(t, []string{"a", "b", "c"}, cfg.Tags)
	assert.Equal(t, "postgres", cfg.Store.Backend)
	require.NotNil(t, cfg.History)
	assert.Equal(t, uint32(5), *cfg.History)
	assert.Empty(t, cfg.Ignored)
	assert.Nil(t, cfg.Events, "nested pointer stays nil when none of its fields are set")
}

func TestLoadFromEnvAllocatesNestedPointer(t *testing.T) {
	t.Setenv("APP_EVENTS_ENABLED", "true")
	t.Setenv("APP_EVENTS_NATS_URL", "nats://nats:4222")

	var cfg testConfig

	require.NoError(t, NewEnvConfigLoader(logger.NewTestLogger(), "APP_").Load(context.Background(), "", &cfg))
	require.NotNil(t, cfg.Events)
	assert.True(t, cfg.Events.Enabled)
	assert.Equal(t, "nats://nats:4222", cfg.Events.NATSURL)
}

func TestLoadFromEnvNumericDuration(t *testing.T) {
	t.Setenv("APP_INTERVAL", "1500000000")

	var cfg testConfig

	require.NoError(t, NewEnvConfigLoader(logger.NewTestLogger(), "APP_").Load(context.Background(), "", &cfg))
	assert.Equal(t, 1500*time.Millisecond, cfg.Interval.Std())
}

func TestLoadFromEnvRejectsBadValue(t *testing.T) {
	t.Setenv("APP_WORKERS", "many")

	var cfg testConfig

	err := NewEnvConfigLoader(logger.NewTestLogger(), "APP_").Load(context.Background(), "", &cfg)
	require.ErrorIs(t, err, errInvalidEnvValue)
	assert.Contains(t, err.Error(), "APP_WORKERS")
}

func TestLoadFromEnvConfigJSON(t *testing.T) {
	t.Setenv("APP_CONFIG_JSON", `{"name":"from-json","workers":3}`)
	t.Setenv("APP_NAME", "ignored")

	var cfg testConfig

	require.NoError(t, NewEnvConfigLoader(logger.NewTestLogger(), "APP_").Load(context.Background(), "", &cfg))
	assert.Equal(t, "from-json", cfg.Name)
	assert.Equal(t, 3, cfg.Workers)
}

func TestEnvLoaderRequiresStructPointer(t *testing.T) {
	loader := NewEnvConfigLoader(logger.NewTestLogger(), "APP_")

	var cfg testConfig

	require.ErrorIs(t, loader.Load(context.Background(), "", cfg), ErrDstMustBeNonNilPointer)

	name := "x"
	require.ErrorIs(t, loader.Load(context.Background(), "", &name), ErrDstMustBePointerToStruct)
}

func TestLoadFromKVOverlaysFile(t *testing.T) {
	t.Setenv("CONFIG_SOURCE", "kv")

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	path := filepath.Join(t.TempDir(), "fleetkeeper.json")
	writeJSON(t, path, map[string]any{
		"name":    "file-name",
		"workers": 2,
		"store":   map[string]any{"backend": "file", "path": "/data/state.json"},
	})

	store := kv.NewMockKVStore(ctrl)
	store.EXPECT().Get(gomock.Any(), "config/fleetkeeper.json").
		Return([]byte(`{"name":"kv-name","store":{"backend":"kv"}}`), true, nil)

	loader := NewConfig(logger.NewTestLogger())
	loader.SetKVStore(store)

	var cfg testConfig

	require.NoError(t, loader.LoadAndValidate(context.Background(), path, &cfg))
	assert.Equal(t, "kv-name", cfg.Name)
	assert.Equal(t, 2, cfg.Workers)
	assert.Equal(t, "kv", cfg.Store.Backend)
	assert.Equal(t, "/data/state.json", cfg.Store.Path)
}

func TestLoadFromKVFallsBackToFile(t *testing.T) {
	t.Setenv("CONFIG_SOURCE", "kv")

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	path := filepath.Join(t.TempDir(), "fleetkeeper.json")
	writeJSON(t, path, map[string]any{"name": "file-name"})

	store := kv.NewMockKVStore(ctrl)
	store.EXPECT().Get(gomock.Any(), "config/fleetkeeper.json").Return(nil, false, errKVDown)

	loader := NewConfig(logger.NewTestLogger())
	loader.SetKVStore(store)

	var cfg testConfig

	require.NoError(t, loader.LoadAndValidate(context.Background(), path, &cfg))
	assert.Equal(t, "file-name", cfg.Name)
}

func TestLoadFromKVWithoutFile(t *testing.T) {
	t.Setenv("CONFIG_SOURCE", "kv")

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	path := filepath.Join(t.TempDir(), "fleetkeeper.json")

	store := kv.NewMockKVStore(ctrl)
	store.EXPECT().Get(gomock.Any(), "config/fleetkeeper.json").Return([]byte(`{"workers":6}`), true, nil)

	loader := NewConfig(logger.NewTestLogger())
	loader.SetKVStore(store)

	var cfg testConfig

	require.NoError(t, loader.LoadAndValidate(context.Background(), path, &cfg))
	assert.Equal(t, 6, cfg.Workers)

	store.EXPECT().Get(gomock.Any(), "config/fleetkeeper.json").Return(nil, false, nil)

	err := loader.LoadAndValidate(context.Background(), path, &cfg)
	require.ErrorIs(t, err, errLoadConfigFailed)
	require.ErrorIs(t, err, errKVKeyNotFound)
}

func TestLoadFromKVRequiresStore(t *testing.T) {
	t.Setenv("CONFIG_SOURCE", "kv")

	var cfg testConfig

	require.ErrorIs(t, NewConfig(nil).LoadAndValidate(context.Background(), "x.json", &cfg), errKVStoreNotSet)
}

func TestKeyForPath(t *testing.T) {
	assert.Equal(t, "config/fleetkeeper.json", KeyForPath("/etc/fleetkeeper/fleetkeeper.json"))
	assert.Equal(t, "config/fleetkeeper.json", KeyForPath("fleetkeeper.json"))
}

func TestLoadFromKVCustomPrefix(t *testing.T) {
	t.Setenv("CONFIG_SOURCE", "kv")
	t.Setenv("CONFIG_KV_PREFIX", "sites/lab-a/")

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	path := filepath.Join(t.TempDir(), "fleetkeeper.json")

	store := kv.NewMockKVStore(ctrl)
	store.EXPECT().Get(gomock.Any(), "sites/lab-a/fleetkeeper.json").Return([]byte(`{"name":"lab-a"}`), true, nil)

	loader := NewConfig(logger.NewTestLogger())
	loader.SetKVStore(store)

	var cfg testConfig

	require.NoError(t, loader.LoadAndValidate(context.Background(), path, &cfg))
	assert.Equal(t, "lab-a", cfg.Name)
}

func TestKVLoaderTreatsEmptyValueAsMissing(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := kv.NewMockKVStore(ctrl)
	store.EXPECT().Get(gomock.Any(), "config/fleetkeeper.json").Return([]byte{}, true, nil)

	var cfg testConfig

	err := NewKVConfigLoader(store, "").Load(context.Background(), "fleetkeeper.json", &cfg)
	require.ErrorIs(t, err, errKVKeyNotFound)
}

func TestConnectKVFromEnvSkipsOtherSources(t *testing.T) {
	t.Setenv("CONFIG_SOURCE", "file")

	loader := NewConfig(logger.NewTestLogger())

	closeFn, err := loader.ConnectKVFromEnv(context.Background())
	require.NoError(t, err)
	require.NoError(t, closeFn())
	assert.Nil(t, loader.kvStore)
}

func TestConnectKVFromEnvRequiresURL(t *testing.T) {
	t.Setenv("CONFIG_SOURCE", "kv")
	t.Setenv("KV_NATS_URL", "")

	_, err := NewConfig(logger.NewTestLogger()).ConnectKVFromEnv(context.Background())
	require.Error(t, err)
}
