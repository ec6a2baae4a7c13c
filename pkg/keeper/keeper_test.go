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

package keeper

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/carverauto/fleetkeeper/pkg/fleet"
	"github.com/carverauto/fleetkeeper/pkg/kv"
	"github.com/carverauto/fleetkeeper/pkg/logger"
	"github.com/carverauto/fleetkeeper/pkg/models"
	"github.com/carverauto/fleetkeeper/pkg/resolver"
	"github.com/carverauto/fleetkeeper/pkg/store"
)

var errStoreDown = errors.New("store down")

func validConfig() *Config {
	return &Config{
		Identity: resolver.ShellIdentityConfig{Command: "run-as {instance} cat shared_prefs/account.xml"},
	}
}

func TestConfigValidateDefaults(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "fleetkeeper", cfg.ServiceName)
	assert.Equal(t, BackendFile, cfg.Store.Backend)
	assert.Equal(t, "/var/lib/fleetkeeper/state.json", cfg.Store.Path)
	assert.Equal(t, "adb", cfg.ADB.Binary)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout.Std())
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(*Config)
		wantErr    error
		wantAnyErr bool
	}{
		{
			name:    "unknown backend",
			mutate:  func(c *Config) { c.Store.Backend = "s3" },
			wantErr: errUnknownBackend,
		},
		{
			name:    "kv backend without kv config",
			mutate:  func(c *Config) { c.Store.Backend = BackendKV },
			wantErr: errKVConfigRequired,
		},
		{
			name: "kv backend",
			mutate: func(c *Config) {
				c.Store.Backend = BackendKV
				c.Store.KV = &kv.Config{NATSURL: "nats://nats:4222"}
			},
		},
		{
			name:    "postgres backend without database",
			mutate:  func(c *Config) { c.Store.Backend = BackendPostgres; c.Store.Postgres = &store.PostgresConfig{Host: "db"} },
			wantErr: errPostgresRequired,
		},
		{
			name: "events without url",
			mutate: func(c *Config) {
				c.Events = &EventsConfig{Enabled: true}
			},
			wantErr: errEventsURLRequired,
		},
		{
			name: "disabled events need no url",
			mutate: func(c *Config) {
				c.Events = &EventsConfig{}
			},
		},
		{
			name:    "negative concurrency",
			mutate:  func(c *Config) { c.ScanConcurrency = -1 },
			wantErr: errNegativeConcurrency,
		},
		{
			name:       "missing identity command",
			mutate:     func(c *Config) { c.Identity = resolver.ShellIdentityConfig{} },
			wantAnyErr: true,
		},
		{
			name:       "presence without placeholder",
			mutate:     func(c *Config) { c.Presence = &resolver.HTTPPresenceConfig{URL: "http://presence/api"} },
			wantAnyErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()

			switch {
			case tt.wantErr != nil:
				require.ErrorIs(t, err, tt.wantErr)
			case tt.wantAnyErr:
				require.Error(t, err)
			default:
				require.NoError(t, err)
			}
		})
	}
}

func TestConfigSettings(t *testing.T) {
	cfg := validConfig()
	cfg.Timing = TimingConfig{
		KeepAliveInterval: models.Duration(2 * time.Second),
		IdentityTTL:       models.Duration(10 * time.Minute),
		LaunchDelay:       models.Duration(time.Second),
		RecoveryAttempts:  5,
	}
	cfg.ScanConcurrency = 4
	cfg.InstancePrefix = "com.example.clone"

	s := cfg.Settings()

	assert.Equal(t, fleet.MinKeepAliveInterval, s.KeepAliveInterval)
	assert.Equal(t, 10*time.Minute, s.IdentityTTL)
	assert.Equal(t, 10*time.Minute, s.FailureBackoff)
	assert.Equal(t, time.Second, s.LaunchDelay)
	assert.Equal(t, 5, s.RecoveryAttempts)
	assert.Equal(t, 4, s.ScanConcurrency)
	assert.Equal(t, "com.example.clone", s.InstancePrefix)
	assert.Equal(t, fleet.DefaultCommandTimeout, s.CommandTimeout)
}

func TestNewServiceFileBackend(t *testing.T) {
	cfg := validConfig()
	cfg.Store.Path = filepath.Join(t.TempDir(), "state.json")
	cfg.Presence = &resolver.HTTPPresenceConfig{URL: "http://presence/users/{identity}"}
	require.NoError(t, cfg.Validate())

	svc, err := NewService(context.Background(), cfg, logger.NewTestLogger())
	require.NoError(t, err)

	defer func() { require.NoError(t, svc.Close()) }()

	repo, ok := svc.Repository().(*store.FileRepository)
	require.True(t, ok)
	assert.Equal(t, cfg.Store.Path, repo.Path())
	assert.NotNil(t, svc.deps.Presence)
	assert.Nil(t, svc.deps.Events)
}

func TestServiceStartStop(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	gateway := fleet.NewMockGateway(ctrl)
	identities := fleet.NewMockIdentityResolver(ctrl)
	repo := fleet.NewMockRepository(ctrl)

	listed := make(chan struct{}, 1)

	repo.EXPECT().Load(gomock.Any()).Return(&models.FleetState{KeepAliveInterval: 60}, nil).MinTimes(1)
	gateway.EXPECT().ListDevices(gomock.Any()).DoAndReturn(func(context.Context) ([]models.DeviceListing, error) {
		select {
		case listed <- struct{}{}:
		default:
		}

		return nil, nil
	}).MinTimes(1)

	svc := NewServiceWithDeps(validConfig(), fleet.Deps{
		Gateway:    gateway,
		Identities: identities,
		Repository: repo,
	}, logger.NewTestLogger())

	ctx := context.Background()

	_, _, running := svc.Session()
	assert.False(t, running)

	require.NoError(t, svc.Start(ctx))
	require.ErrorIs(t, svc.Start(ctx), errAlreadyStarted)

	select {
	case <-listed:
	case <-time.After(5 * time.Second):
		t.Fatal("keep-alive loop never scanned")
	}

	session, _, running := svc.Session()
	require.True(t, running)
	assert.Equal(t, 60*time.Second, session.Interval)

	stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	require.NoError(t, svc.Stop(stopCtx))
}

func TestServiceDoneAfterLoopPanic(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	gateway := fleet.NewMockGateway(ctrl)
	repo := fleet.NewMockRepository(ctrl)

	repo.EXPECT().Load(gomock.Any()).Return(&models.FleetState{}, nil).MinTimes(1)
	gateway.EXPECT().ListDevices(gomock.Any()).DoAndReturn(func(context.Context) ([]models.DeviceListing, error) {
		panic("adb server vanished")
	})

	svc := NewServiceWithDeps(validConfig(), fleet.Deps{
		Gateway:    gateway,
		Identities: fleet.NewMockIdentityResolver(ctrl),
		Repository: repo,
	}, logger.NewTestLogger())

	assert.Nil(t, svc.Done())
	require.NoError(t, svc.Start(context.Background()))

	select {
	case <-svc.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("loop never reported its exit")
	}

	require.ErrorIs(t, svc.Err(), fleet.ErrUnexpected)

	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.ErrorIs(t, svc.Stop(stopCtx), fleet.ErrUnexpected)
}

func TestServiceStartLoadFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := fleet.NewMockRepository(ctrl)
	repo.EXPECT().Load(gomock.Any()).Return(nil, errStoreDown)

	svc := NewServiceWithDeps(validConfig(), fleet.Deps{
		Gateway:    fleet.NewMockGateway(ctrl),
		Identities: fleet.NewMockIdentityResolver(ctrl),
		Repository: repo,
	}, nil)

	err := svc.Start(context.Background())
	require.ErrorIs(t, err, fleet.ErrLoadState)
	require.ErrorIs(t, err, errStoreDown)

	require.NoError(t, svc.Stop(context.Background()))
}

func TestServiceStartRequiresPresenceResolver(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := fleet.NewMockRepository(ctrl)
	repo.EXPECT().Load(gomock.Any()).Return(&models.FleetState{PresenceCheckInterval: 5}, nil)

	svc := NewServiceWithDeps(validConfig(), fleet.Deps{
		Gateway:    fleet.NewMockGateway(ctrl),
		Identities: fleet.NewMockIdentityResolver(ctrl),
		Repository: repo,
	}, nil)

	require.ErrorIs(t, svc.Start(context.Background()), fleet.ErrPresenceResolverRequired)
}

func TestServiceScan(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	gateway := fleet.NewMockGateway(ctrl)
	repo := fleet.NewMockRepository(ctrl)

	repo.EXPECT().Load(gomock.Any()).Return(&models.FleetState{}, nil).Times(2)
	gateway.EXPECT().ListDevices(gomock.Any()).Return([]models.DeviceListing{
		{ID: "emulator-5554", Status: models.DeviceStatusOffline},
	}, nil)

	svc := NewServiceWithDeps(validConfig(), fleet.Deps{
		Gateway:    gateway,
		Identities: fleet.NewMockIdentityResolver(ctrl),
		Repository: repo,
	}, nil)

	snapshots, err := svc.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, snapshots, 1)
	assert.Equal(t, "emulator-5554", snapshots[0].Device.ID)
	assert.False(t, snapshots[0].Device.Responsive)
	assert.Empty(t, snapshots[0].Instances)
}

func TestServiceCloseRunsClosersInReverse(t *testing.T) {
	var order []int

	svc := NewServiceWithDeps(validConfig(), fleet.Deps{}, nil)
	svc.closers = []func() error{
		func() error { order = append(order, 1); return nil },
		func() error { order = append(order, 2); return errStoreDown },
	}

	require.ErrorIs(t, svc.Close(), errStoreDown)
	assert.Equal(t, []int{2, 1}, order)
	require.NoError(t, svc.Close())
}
