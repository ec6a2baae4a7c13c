package natsutil

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/fleetkeeper/pkg/models"
)

var errTestFixture = errors.New("fixture error")

type published struct {
	subject string
	data    []byte
}

type fakePublisher struct {
	msgs []published
	err  error
}

func (f *fakePublisher) Publish(_ context.Context, subject string, data []byte, _ ...jetstream.PublishOpt) (*jetstream.PubAck, error) {
	if f.err != nil {
		return nil, f.err
	}

	f.msgs = append(f.msgs, published{subject: subject, data: data})

	return &jetstream.PubAck{Stream: "events", Sequence: uint64(len(f.msgs))}, nil
}

func TestPublishKeepAliveEvent(t *testing.T) {
	js := &fakePublisher{}
	p := NewEventPublisher(js, "events", []string{KeepAliveSubject}, nil)

	ts := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	data := models.KeepAliveEventData{
		Action:     models.ActionRelaunch,
		DeviceID:   "emulator-5554",
		InstanceID: "com.app.one",
		Identity:   "alice",
		Workload:   &models.WorkloadDescriptor{Target: "https://example.com/a", Name: "a"},
		Reason:     "not_running",
		Success:    true,
		Timestamp:  ts,
	}

	require.NoError(t, p.PublishKeepAliveEvent(context.Background(), data))
	require.Len(t, js.msgs, 1)
	assert.Equal(t, KeepAliveSubject, js.msgs[0].subject)

	var decoded struct {
		SpecVersion string                    `json:"specversion"`
		ID          string                    `json:"id"`
		Type        string                    `json:"type"`
		Source      string                    `json:"source"`
		Time        time.Time                 `json:"time"`
		Data        models.KeepAliveEventData `json:"data"`
	}

	require.NoError(t, json.Unmarshal(js.msgs[0].data, &decoded))
	assert.Equal(t, "1.0", decoded.SpecVersion)
	assert.NotEmpty(t, decoded.ID)
	assert.Equal(t, "com.carverauto.fleetkeeper.keepalive.relaunch", decoded.Type)
	assert.Equal(t, eventSource, decoded.Source)
	assert.True(t, decoded.Time.Equal(ts))
	assert.Equal(t, "alice", decoded.Data.Identity)
	assert.True(t, decoded.Data.Success)
}

func TestPublishKeepAliveEventWithPrefix(t *testing.T) {
	js := &fakePublisher{}
	p := NewEventPublisher(js, "events", nil, nil)
	p.SetSubjectPrefix("site-a.")

	require.NoError(t, p.PublishKeepAliveEvent(context.Background(), models.KeepAliveEventData{Action: models.ActionFleetReboot}))
	require.Len(t, js.msgs, 1)
	assert.Equal(t, "site-a.events.fleet.keepalive", js.msgs[0].subject)

	p.SetSubjectPrefix("")
	require.NoError(t, p.PublishKeepAliveEvent(context.Background(), models.KeepAliveEventData{Action: models.ActionFleetReboot}))
	assert.Equal(t, KeepAliveSubject, js.msgs[1].subject)
}

func TestPublishKeepAliveEventError(t *testing.T) {
	p := NewEventPublisher(&fakePublisher{err: errTestFixture}, "events", nil, nil)

	err := p.PublishKeepAliveEvent(context.Background(), models.KeepAliveEventData{Action: models.ActionRelaunch})
	require.ErrorIs(t, err, errTestFixture)
}

func TestEnsureSubjectList(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		subjects []string
		subject  string
		want     []string
	}{
		{
			name:     "adds subject when list empty",
			subjects: nil,
			subject:  KeepAliveSubject,
			want:     []string{KeepAliveSubject},
		},
		{
			name:     "keeps list when wildcard matches",
			subjects: []string{"events.fleet.*"},
			subject:  KeepAliveSubject,
			want:     []string{"events.fleet.*"},
		},
		{
			name:     "keeps list when greater wildcard matches",
			subjects: []string{"events.>"},
			subject:  KeepAliveSubject,
			want:     []string{"events.>"},
		},
		{
			name:     "appends when unmatched",
			subjects: []string{"events.devices.*"},
			subject:  KeepAliveSubject,
			want:     []string{"events.devices.*", KeepAliveSubject},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			result := ensureSubjectList(append([]string(nil), tc.subjects...), tc.subject)
			assert.Equal(t, tc.want, result)
		})
	}
}

func TestMatchesSubject(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		pattern  string
		subject  string
		expected bool
	}{
		{"exact match", "events.fleet.keepalive", "events.fleet.keepalive", true},
		{"single wildcard", "events.*.keepalive", "events.fleet.keepalive", true},
		{"greater wildcard", "events.>", "events.fleet.keepalive", true},
		{"greater wildcard needs a token", "events.fleet.keepalive.>", "events.fleet.keepalive", false},
		{"no match length", "events.*", "events.fleet.keepalive", false},
		{"no match tokens", "logs.syslog.*", "events.fleet.keepalive", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.expected, matchesSubject(tc.pattern, tc.subject))
		})
	}
}

func TestIsStreamMissingErr(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"jetstream no stream response", jetstream.ErrNoStreamResponse, true},
		{"jetstream stream not found", jetstream.ErrStreamNotFound, true},
		{"nats no stream response", nats.ErrNoStreamResponse, true},
		{"nats stream not found", nats.ErrStreamNotFound, true},
		{"nats no responders", nats.ErrNoResponders, true},
		{"other error", errTestFixture, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.expected, isStreamMissingErr(tc.err))
		})
	}
}

func TestTLSConfigRequiresFiles(t *testing.T) {
	_, err := TLSConfig(nil)
	require.ErrorIs(t, err, ErrTLSRequired)

	_, err = TLSConfig(&models.TLSConfig{CertFile: "cert.pem"})
	require.ErrorIs(t, err, ErrTLSRequired)

	_, err = TLSConfig(&models.TLSConfig{CertFile: "/nonexistent/cert.pem", KeyFile: "/nonexistent/key.pem", CAFile: "/nonexistent/ca.pem"})
	require.Error(t, err)
}
