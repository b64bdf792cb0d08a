package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/capitalize-ai/flight-concierge/internal/model"
)

const (
	// StreamName is the name of the conversation audit stream.
	StreamName = "FLIGHT_CONVERSATIONS"

	// SubjectPrefix is the prefix for all conversation subjects.
	SubjectPrefix = "flight"
)

// Entry kinds of the audit log.
const (
	KindMessage = "message"
	KindEvent   = "event"
)

// Entry is one record of a session's audit log.
type Entry struct {
	Kind     string                   `json:"kind"`
	Sequence uint64                   `json:"sequence"`
	Message  *model.Message           `json:"message,omitempty"`
	Event    *model.ConversationEvent `json:"event,omitempty"`
}

// StreamManager handles JetStream stream operations.
type StreamManager struct {
	client *Client
	maxAge time.Duration
}

// NewStreamManager creates a new stream manager. maxAge bounds how long audit entries are
// retained; zero keeps the default of one year.
func NewStreamManager(client *Client, maxAge time.Duration) *StreamManager {
	if maxAge <= 0 {
		maxAge = 365 * 24 * time.Hour
	}
	return &StreamManager{client: client, maxAge: maxAge}
}

// EnsureStream ensures the audit stream exists with proper configuration.
func (m *StreamManager) EnsureStream(ctx context.Context) error {
	js := m.client.JetStream()

	if _, err := js.Stream(ctx, StreamName); err == nil {
		return nil
	} else if !errors.Is(err, jetstream.ErrStreamNotFound) {
		return fmt.Errorf("failed to look up stream: %w", err)
	}

	_, err := js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Subjects:    []string{fmt.Sprintf("%s.>", SubjectPrefix)},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      m.maxAge,
		MaxBytes:    10 * 1024 * 1024 * 1024,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Compression: jetstream.S2Compression,
		DenyDelete:  true,
		DenyPurge:   true,
		Description: "Flight booking conversation messages and events",
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}

	return nil
}

// MessageSubject returns the subject for a message.
func MessageSubject(sessionID string, role model.Role) string {
	return fmt.Sprintf("%s.%s.msg.%s", SubjectPrefix, sessionID, role)
}

// EventSubject returns the subject for an event.
func EventSubject(sessionID string, eventType model.EventType) string {
	return fmt.Sprintf("%s.%s.event.%s", SubjectPrefix, sessionID, eventType)
}

// SessionFilter returns the filter subject for every entry of a session.
func SessionFilter(sessionID string) string {
	return fmt.Sprintf("%s.%s.>", SubjectPrefix, sessionID)
}

// kindOf returns the entry kind encoded in a subject.
func kindOf(subject string) string {
	parts := strings.Split(subject, ".")
	if len(parts) < 4 {
		return ""
	}
	switch parts[2] {
	case "msg":
		return KindMessage
	case "event":
		return KindEvent
	}
	return ""
}

// PublishMessage publishes a message to JetStream.
func (m *StreamManager) PublishMessage(ctx context.Context, msg *model.Message) (uint64, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal message: %w", err)
	}

	ack, err := m.client.JetStream().Publish(ctx, MessageSubject(msg.SessionID, msg.Role), data)
	if err != nil {
		return 0, fmt.Errorf("failed to publish message: %w", err)
	}

	return ack.Sequence, nil
}

// PublishEvent publishes an event to JetStream.
func (m *StreamManager) PublishEvent(ctx context.Context, event *model.ConversationEvent) (uint64, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal event: %w", err)
	}

	ack, err := m.client.JetStream().Publish(ctx, EventSubject(event.SessionID, event.Type), data)
	if err != nil {
		return 0, fmt.Errorf("failed to publish event: %w", err)
	}

	return ack.Sequence, nil
}

// Replay reads a session's audit log starting after a sequence.
func (m *StreamManager) Replay(ctx context.Context, sessionID string, afterSequence uint64, limit int) ([]Entry, uint64, bool, error) {
	consumerConfig := jetstream.OrderedConsumerConfig{
		FilterSubjects: []string{SessionFilter(sessionID)},
		DeliverPolicy:  jetstream.DeliverAllPolicy,
	}
	if afterSequence > 0 {
		consumerConfig.DeliverPolicy = jetstream.DeliverByStartSequencePolicy
		consumerConfig.OptStartSeq = afterSequence + 1
	}

	consumer, err := m.client.JetStream().OrderedConsumer(ctx, StreamName, consumerConfig)
	if err != nil {
		return nil, 0, false, fmt.Errorf("failed to create consumer: %w", err)
	}

	batch, err := consumer.Fetch(limit, jetstream.FetchMaxWait(2*time.Second))
	if err != nil {
		return nil, 0, false, fmt.Errorf("failed to fetch entries: %w", err)
	}

	entries := make([]Entry, 0, limit)
	lastSequence := afterSequence

	for msg := range batch.Messages() {
		entry, ok := decodeEntry(msg.Subject(), msg.Data())
		if !ok {
			continue
		}
		if meta, err := msg.Metadata(); err == nil {
			entry.Sequence = meta.Sequence.Stream
			lastSequence = meta.Sequence.Stream
		}
		if entry.Message != nil {
			entry.Message.Sequence = entry.Sequence
		}
		if entry.Event != nil {
			entry.Event.Sequence = entry.Sequence
		}
		entries = append(entries, entry)
	}

	if err := batch.Error(); err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, jetstream.ErrNoMessages) {
		return nil, 0, false, fmt.Errorf("batch error: %w", err)
	}

	return entries, lastSequence, len(entries) == limit, nil
}

func decodeEntry(subject string, data []byte) (Entry, bool) {
	switch kindOf(subject) {
	case KindMessage:
		var msg model.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			return Entry{}, false
		}
		return Entry{Kind: KindMessage, Message: &msg}, true
	case KindEvent:
		var event model.ConversationEvent
		if err := json.Unmarshal(data, &event); err != nil {
			return Entry{}, false
		}
		return Entry{Kind: KindEvent, Event: &event}, true
	}
	return Entry{}, false
}
