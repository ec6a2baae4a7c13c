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

package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigParseLevel(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		want    zerolog.Level
		wantErr bool
	}{
		{name: "empty defaults to info", config: Config{}, want: zerolog.InfoLevel},
		{name: "explicit warn", config: Config{Level: "warn"}, want: zerolog.WarnLevel},
		{name: "debug flag wins", config: Config{Level: "error", Debug: true}, want: zerolog.DebugLevel},
		{name: "invalid level", config: Config{Level: "loud"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			level, err := tt.config.ParseLevel()
			if tt.wantErr {
				require.Error(t, err)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, level)
		})
	}
}

func TestNewWithOTelDisabled(t *testing.T) {
	l, err := New(context.Background(), &Config{Level: "debug", Output: "stdout"})
	require.NoError(t, err)
	assert.Equal(t, zerolog.DebugLevel, l.GetLevel())
}

func TestNewRejectsInvalidLevel(t *testing.T) {
	_, err := New(context.Background(), &Config{Level: "chatty"})
	require.Error(t, err)
}

func TestWrapAddsComponent(t *testing.T) {
	var buf bytes.Buffer

	log := Wrap(zerolog.New(&buf))
	component := log.WithComponent("aggregator")
	component.Info().Msg("scan finished")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "aggregator", entry["component"])
	assert.Equal(t, "scan finished", entry["message"])
}

func TestSetDebug(t *testing.T) {
	var buf bytes.Buffer

	log := Wrap(zerolog.New(&buf).Level(zerolog.InfoLevel))

	log.Debug().Msg("hidden")
	assert.Zero(t, buf.Len())

	log.SetDebug(true)
	log.Debug().Msg("visible")
	assert.Contains(t, buf.String(), "visible")
}

func TestDefaultConfig(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("FLEETKEEPER_LOG_LEVEL", "")
	t.Setenv("LOG_OUTPUT", "")
	t.Setenv("FLEETKEEPER_LOG_OUTPUT", "")
	t.Setenv("OTEL_SERVICE_NAME", "")

	config := DefaultConfig()

	assert.Equal(t, "info", config.Level)
	assert.Equal(t, "stdout", config.Output)
	assert.Equal(t, defaultServiceName, config.OTel.ServiceName)
}

func TestDefaultConfigPrefixedVariablesWin(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("FLEETKEEPER_LOG_LEVEL", "warn")
	t.Setenv("FLEETKEEPER_DEBUG", "yes")

	config := DefaultConfig()

	assert.Equal(t, "warn", config.Level)
	assert.True(t, config.Debug)
}

func TestNewTestLoggerDiscards(t *testing.T) {
	log := NewTestLogger()
	log.Info().Str("k", "v").Msg("dropped")
	assert.NotNil(t, log.With())
}
