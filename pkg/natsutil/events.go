package natsutil

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/carverauto/fleetkeeper/pkg/logger"
	"github.com/carverauto/fleetkeeper/pkg/models"
)

const (
	// KeepAliveSubject carries every keep-alive recovery event.
	KeepAliveSubject = "events.fleet.keepalive"
	// DefaultStreamName is the JetStream stream keep-alive events land in.
	DefaultStreamName = "events"

	eventSource     = "fleetkeeper/keepalive"
	eventTypePrefix = "com.carverauto.fleetkeeper.keepalive."
)

// publisher is the subset of jetstream.JetStream the EventPublisher needs.
type publisher interface {
	Publish(ctx context.Context, subject string, data []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// EventPublisher provides methods for publishing CloudEvents to NATS JetStream.
type EventPublisher struct {
	js       publisher
	stream   string
	subjects []string
	logger   logger.Logger

	mu            sync.RWMutex
	subjectPrefix string
}

// NewEventPublisher creates a new EventPublisher for the specified stream.
func NewEventPublisher(js publisher, streamName string, subjects []string, log logger.Logger) *EventPublisher {
	if log == nil {
		log = logger.NewTestLogger()
	}

	return &EventPublisher{
		js:       js,
		stream:   streamName,
		subjects: subjects,
		logger:   log,
	}
}

// SetSubjectPrefix scopes every published subject under prefix, e.g. a site
// name. An empty prefix publishes on the bare subject.
func (p *EventPublisher) SetSubjectPrefix(prefix string) {
	p.mu.Lock()
	p.subjectPrefix = strings.Trim(prefix, ".")
	p.mu.Unlock()
}

func (p *EventPublisher) applySubjectPrefix(subject string) string {
	p.mu.RLock()
	prefix := p.subjectPrefix
	p.mu.RUnlock()

	if prefix == "" {
		return subject
	}

	return prefix + "." + subject
}

// PublishKeepAliveEvent publishes a keep-alive recovery event.
func (p *EventPublisher) PublishKeepAliveEvent(ctx context.Context, data models.KeepAliveEventData) error {
	event := models.CloudEvent{
		SpecVersion:     "1.0",
		ID:              uuid.New().String(),
		Source:          eventSource,
		Type:            eventTypePrefix + string(data.Action),
		DataContentType: "application/json",
		Subject:         p.applySubjectPrefix(KeepAliveSubject),
		Time:            &data.Timestamp,
		Data:            data,
	}

	eventBytes, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal keep-alive event: %w", err)
	}

	ack, err := p.js.Publish(ctx, event.Subject, eventBytes)
	if err != nil {
		return fmt.Errorf("failed to publish keep-alive event: %w", err)
	}

	p.logger.Debug().
		Str("event_id", event.ID).
		Str("subject", event.Subject).
		Uint64("seq", ack.Sequence).
		Msg("Published keep-alive event")

	return nil
}

// CreateEventPublisher creates an EventPublisher for an existing NATS connection.
func CreateEventPublisher(ctx context.Context, nc *nats.Conn, streamName string, subjects []string, log logger.Logger) (*EventPublisher, error) {
	return CreateEventPublisherWithDomain(ctx, nc, "", streamName, subjects, log)
}

// CreateEventPublisherWithDomain creates an EventPublisher with optional NATS
// domain support. The stream is created when missing and widened when it
// does not cover the keep-alive subject.
func CreateEventPublisherWithDomain(
	ctx context.Context, nc *nats.Conn, domain, streamName string, subjects []string, log logger.Logger,
) (*EventPublisher, error) {
	if log == nil {
		log = logger.NewTestLogger()
	}

	var js jetstream.JetStream

	var err error

	if domain != "" {
		js, err = jetstream.NewWithDomain(nc, domain)
		if err != nil {
			return nil, fmt.Errorf("failed to create JetStream context with domain %s: %w", domain, err)
		}

		log.Info().Str("domain", domain).Msg("Created JetStream context with domain")
	} else {
		js, err = jetstream.New(nc)
		if err != nil {
			return nil, fmt.Errorf("failed to create JetStream context: %w", err)
		}
	}

	if streamName == "" {
		streamName = DefaultStreamName
	}

	subjects = ensureSubjectList(append([]string(nil), subjects...), KeepAliveSubject)

	stream, err := js.Stream(ctx, streamName)

	switch {
	case err == nil:
		info, infoErr := stream.Info(ctx)
		if infoErr != nil {
			return nil, fmt.Errorf("failed to read stream %s: %w", streamName, infoErr)
		}

		if !coversSubject(info.Config.Subjects, KeepAliveSubject) {
			cfg := info.Config
			cfg.Subjects = ensureSubjectList(cfg.Subjects, KeepAliveSubject)

			if _, err = js.UpdateStream(ctx, cfg); err != nil {
				return nil, fmt.Errorf("failed to add %s to stream %s: %w", KeepAliveSubject, streamName, err)
			}

			log.Info().Str("stream", streamName).Strs("subjects", cfg.Subjects).Msg("Updated NATS JetStream stream subjects")
		}
	case isStreamMissingErr(err):
		_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
			Name:     streamName,
			Subjects: subjects,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create stream %s: %w", streamName, err)
		}

		log.Info().Str("stream", streamName).Strs("subjects", subjects).Msg("Created NATS JetStream stream")
	default:
		return nil, fmt.Errorf("failed to get stream %s: %w", streamName, err)
	}

	return NewEventPublisher(js, streamName, subjects, log), nil
}

// ensureSubjectList appends subject unless an existing pattern covers it.
func ensureSubjectList(subjects []string, subject string) []string {
	if coversSubject(subjects, subject) {
		return subjects
	}

	return append(subjects, subject)
}

func coversSubject(patterns []string, subject string) bool {
	for _, pattern := range patterns {
		if matchesSubject(pattern, subject) {
			return true
		}
	}

	return false
}

// matchesSubject applies NATS wildcard rules: "*" matches one token and a
// trailing ">" matches one or more.
func matchesSubject(pattern, subject string) bool {
	pTokens := strings.Split(pattern, ".")
	sTokens := strings.Split(subject, ".")

	for i, tok := range pTokens {
		if tok == ">" {
			return i == len(pTokens)-1 && len(sTokens) > i
		}

		if i >= len(sTokens) {
			return false
		}

		if tok != "*" && tok != sTokens[i] {
			return false
		}
	}

	return len(pTokens) == len(sTokens)
}

func isStreamMissingErr(err error) bool {
	return errors.Is(err, jetstream.ErrStreamNotFound) ||
		errors.Is(err, jetstream.ErrNoStreamResponse) ||
		errors.Is(err, nats.ErrStreamNotFound) ||
		errors.Is(err, nats.ErrNoStreamResponse) ||
		errors.Is(err, nats.ErrNoResponders)
}
