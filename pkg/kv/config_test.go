package kv

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr error
	}{
		{name: "missing url", cfg: Config{}, wantErr: errNatsURLRequired},
		{name: "negative max bytes", cfg: Config{NATSURL: "nats://x", MaxBytes: -1}, wantErr: errMaxBytesNegative},
		{name: "history too deep", cfg: Config{NATSURL: "nats://x", History: maxHistory + 1}, wantErr: errHistoryTooLarge},
		{name: "too many replicas", cfg: Config{NATSURL: "nats://x", Replicas: 7}, wantErr: errReplicasOutOfRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.ErrorIs(t, tt.cfg.Validate(), tt.wantErr)
		})
	}
}

func TestConfigValidateDefaults(t *testing.T) {
	cfg := &Config{NATSURL: "nats://127.0.0.1:4222"}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, defaultBucket, cfg.Bucket)
	assert.Equal(t, uint8(defaultHistory), cfg.History)
	assert.Equal(t, defaultReplicas, cfg.Replicas)
}
