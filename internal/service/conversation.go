// Package service drives conversations: every operation is serialized per session, runs the
// state machine and the booking core, persists the result and publishes audit events.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/capitalize-ai/flight-concierge/internal/apperr"
	"github.com/capitalize-ai/flight-concierge/internal/booking"
	"github.com/capitalize-ai/flight-concierge/internal/conversation"
	"github.com/capitalize-ai/flight-concierge/internal/dialogue"
	"github.com/capitalize-ai/flight-concierge/internal/model"
	"github.com/capitalize-ai/flight-concierge/internal/store"
	"github.com/capitalize-ai/flight-concierge/internal/validator"
	"github.com/capitalize-ai/flight-concierge/pkg/logger"
	"github.com/capitalize-ai/flight-concierge/pkg/metrics"
)

// Publisher appends messages and events to the audit log.
type Publisher interface {
	PublishMessage(ctx context.Context, msg *model.Message) (uint64, error)
	PublishEvent(ctx context.Context, event *model.ConversationEvent) (uint64, error)
}

// NopPublisher drops everything. Used when the audit log is disabled.
type NopPublisher struct{}

func (NopPublisher) PublishMessage(context.Context, *model.Message) (uint64, error) { return 0, nil }

func (NopPublisher) PublishEvent(context.Context, *model.ConversationEvent) (uint64, error) {
	return 0, nil
}

// Interpreter turns a free-text turn into a reply and an optional intent.
type Interpreter interface {
	Interpret(ctx context.Context, sc dialogue.SanitizedContext, history []model.Message) (dialogue.Reply, error)
}

// Config holds conversation settings.
type Config struct {
	SessionTTL time.Duration
	// ResultSize is the number of offers presented after a search or filter.
	ResultSize int
	// RequireAuth sends the user through authentication before passenger details.
	RequireAuth bool
	// RequirePassport demands passport details on every itinerary, not only international ones.
	RequirePassport bool
	Limits          conversation.Limits
}

// DefaultConfig returns the settings used when none are configured.
func DefaultConfig() Config {
	return Config{
		SessionTTL: 30 * time.Minute,
		ResultSize: 5,
		Limits:     conversation.DefaultLimits,
	}
}

// Dependencies are the collaborators of a ConversationService. Interpreter and Publisher
// may be nil.
type Dependencies struct {
	Sessions     store.SessionStore
	Bookings     store.BookingRepository
	Locker       *store.Locker
	Orchestrator *booking.Orchestrator
	Validator    *validator.Validator
	Interpreter  Interpreter
	Publisher    Publisher
}

// ConversationService handles conversation operations.
type ConversationService struct {
	sessions     store.SessionStore
	bookings     store.BookingRepository
	locker       *store.Locker
	orchestrator *booking.Orchestrator
	validator    *validator.Validator
	interpreter  Interpreter
	publisher    Publisher
	cfg          Config
	logger       *logger.Logger
	now          func() time.Time
	saveBackoff  time.Duration
}

// Option configures a ConversationService.
type Option func(*ConversationService)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *ConversationService) { s.now = now }
}

// NewConversationService creates a new conversation service.
func NewConversationService(deps Dependencies, cfg Config, log *logger.Logger, opts ...Option) *ConversationService {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = DefaultConfig().SessionTTL
	}
	if cfg.ResultSize <= 0 {
		cfg.ResultSize = DefaultConfig().ResultSize
	}
	if deps.Locker == nil {
		deps.Locker = store.NewLocker()
	}
	if deps.Publisher == nil {
		deps.Publisher = NopPublisher{}
	}
	if deps.Validator == nil {
		deps.Validator = validator.New()
	}

	s := &ConversationService{
		sessions:     deps.Sessions,
		bookings:     deps.Bookings,
		locker:       deps.Locker,
		orchestrator: deps.Orchestrator,
		validator:    deps.Validator,
		interpreter:  deps.Interpreter,
		publisher:    deps.Publisher,
		cfg:          cfg,
		logger:       log.Named("conversation"),
		now:          time.Now,
		saveBackoff:  50 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// session is a loaded conversation plus the audit entries produced while handling one call.
type session struct {
	*conversation.Machine
	events   []*model.ConversationEvent
	messages []model.Message
	warnings []model.ErrorDetail
}

func (s *ConversationService) machine(conv *model.Conversation) *conversation.Machine {
	return conversation.New(conv, s.cfg.SessionTTL,
		conversation.WithClock(s.now), conversation.WithLimits(s.cfg.Limits))
}

func (sess *session) emit(t model.EventType, reason string, meta map[string]any) {
	sess.events = append(sess.events, &model.ConversationEvent{
		ID:        uuid.Must(uuid.NewV7()).String(),
		SessionID: sess.Conversation().SessionID,
		Type:      t,
		Reason:    reason,
		Metadata:  meta,
		CreatedAt: sess.Conversation().UpdatedAt,
	})
}

// transition moves the stage and records the change. Staying in the same stage is not an
// event.
func (sess *session) transition(target model.Stage) error {
	from := sess.Stage()
	err := sess.Transition(target)
	metrics.RecordTransition(string(from), string(target), err == nil)
	if err != nil {
		return err
	}
	if from != target {
		sess.emit(model.EventStageChanged, "", map[string]any{"from": string(from), "to": string(target)})
	}
	return nil
}

func (sess *session) say(role model.Role, content string) {
	if content == "" {
		return
	}
	sess.messages = append(sess.messages, sess.AppendMessage(role, content))
}

func (sess *session) warn(fields ...apperr.FieldError) {
	for _, f := range fields {
		sess.warnings = append(sess.warnings, model.ErrorDetail{
			Code:    string(apperr.CodeValidation),
			Field:   f.Field,
			Message: f.Message,
		})
	}
}

// run loads the session under its lock, applies fn and persists the result. A failed fn
// leaves the stored conversation untouched. Sessions linked to another user are reported
// as not found.
func (s *ConversationService) run(ctx context.Context, sessionID string, fn func(ctx context.Context, sess *session) (*model.Response, error)) (*model.Response, error) {
	unlock := s.locker.Lock(sessionID)
	defer unlock()

	conv, err := s.sessions.Load(ctx, sessionID)
	if err == nil {
		err = checkOwner(ctx, conv)
	}
	if err != nil {
		return Failure(model.StageInitial, err), err
	}
	before, orderBefore := conv.Stage, conv.OrderID

	sess := &session{Machine: s.machine(conv)}
	resp, err := fn(ctx, sess)
	if err != nil {
		s.logFailure(ctx, sessionID, err)
		return Failure(before, err), err
	}

	if err := s.commit(ctx, sess); err != nil {
		return s.saveFailed(ctx, sess, before, orderBefore, resp.Data, err)
	}

	resp.Success = true
	resp.Stage = sess.Stage()
	resp.Warnings = append(resp.Warnings, sess.warnings...)
	return resp, nil
}

// commit saves the conversation, then publishes what was recorded. Audit failures are
// logged and never fail the call.
func (s *ConversationService) commit(ctx context.Context, sess *session) error {
	conv := sess.Conversation()
	if err := s.save(ctx, conv); err != nil {
		return fmt.Errorf("save session %s: %w", conv.SessionID, err)
	}

	for i := range sess.messages {
		if _, err := s.publisher.PublishMessage(ctx, &sess.messages[i]); err != nil {
			s.logger.For(ctx).Warn("failed to publish message", zap.String("session_id", conv.SessionID), zap.Error(err))
		}
	}
	for _, e := range sess.events {
		if _, err := s.publisher.PublishEvent(ctx, e); err != nil {
			s.logger.For(ctx).Warn("failed to publish event",
				zap.String("session_id", conv.SessionID),
				zap.String("event", string(e.Type)),
				zap.Error(err),
			)
		}
	}
	return nil
}

// saveFailed reports a commit that did not persist. If the call created a provider order
// the error becomes an UnsavedOrderError and the response keeps the call's data.
func (s *ConversationService) saveFailed(ctx context.Context, sess *session, stage model.Stage, orderBefore string, data any, err error) (*model.Response, error) {
	conv := sess.Conversation()
	if conv.OrderID == "" || conv.OrderID == orderBefore {
		return Failure(stage, err), err
	}
	err = &UnsavedOrderError{
		SessionID:        conv.SessionID,
		OrderID:          conv.OrderID,
		BookingReference: conv.BookingReference,
		Err:              err,
	}
	s.logger.For(ctx).Error("order created but session not saved",
		zap.String("session_id", conv.SessionID),
		zap.String("order_id", conv.OrderID),
		zap.Error(err),
	)
	failed := Failure(stage, err)
	failed.Data = data
	return failed, err
}

// save retries transient store failures with a linear backoff.
func (s *ConversationService) save(ctx context.Context, conv *model.Conversation) error {
	var err error
	for attempt := 1; attempt <= saveAttempts; attempt++ {
		if err = s.sessions.Save(ctx, conv); err == nil {
			return nil
		}
		if attempt == saveAttempts {
			break
		}
		s.logger.For(ctx).Warn("session save failed, retrying",
			zap.String("session_id", conv.SessionID),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return err
		case <-time.After(s.saveBackoff * time.Duration(attempt)):
		}
	}
	return err
}

func (s *ConversationService) logFailure(ctx context.Context, sessionID string, err error) {
	code := apperr.CodeOf(err)
	log := s.logger.For(ctx)
	if code == apperr.CodeInternal || code == apperr.CodeProvider {
		log.Error("conversation operation failed",
			zap.String("session_id", sessionID),
			zap.String("code", string(code)),
			zap.Error(err),
		)
		return
	}
	log.Debug("conversation operation rejected",
		zap.String("session_id", sessionID),
		zap.String("code", string(code)),
		zap.Error(err),
	)
}

// Start opens a conversation. An empty sessionID gets a generated one.
func (s *ConversationService) Start(ctx context.Context, sessionID, userID string) (*model.Response, error) {
	if sessionID == "" {
		sessionID = uuid.Must(uuid.NewV7()).String()
	}

	unlock := s.locker.Lock(sessionID)
	defer unlock()

	_, err := s.sessions.Load(ctx, sessionID)
	switch {
	case err == nil:
		err = apperr.Conflictf("session %s already exists", sessionID)
		return Failure(model.StageInitial, err), err
	case !errors.Is(err, apperr.ErrNotFound):
		return Failure(model.StageInitial, err), err
	}

	m := conversation.Start(sessionID, userID, s.cfg.SessionTTL,
		conversation.WithClock(s.now), conversation.WithLimits(s.cfg.Limits))
	sess := &session{Machine: m}
	if err := s.commit(ctx, sess); err != nil {
		return Failure(model.StageInitial, err), err
	}

	s.logger.Info("session started", zap.String("session_id", sessionID), zap.Bool("authenticated", userID != ""))
	return &model.Response{
		Success: true,
		Stage:   m.Stage(),
		Message: "Where would you like to fly?",
		Data:    m.Conversation(),
	}, nil
}

// Get returns the conversation if the caller may see it.
func (s *ConversationService) Get(ctx context.Context, sessionID string) (*model.Conversation, error) {
	conv, err := s.sessions.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := checkOwner(ctx, conv); err != nil {
		return nil, err
	}
	return conv, nil
}

// PurgeExpired removes expired sessions that never produced a booking.
func (s *ConversationService) PurgeExpired(ctx context.Context) (int, error) {
	n, err := s.sessions.PurgeExpired(ctx, s.now(), s.locker.Lock)
	if n > 0 {
		metrics.SessionsPurgedTotal.Add(float64(n))
	}
	if err != nil {
		return n, fmt.Errorf("purge expired sessions: %w", err)
	}
	return n, nil
}

// ListBookings returns the bookings of a user, newest first.
func (s *ConversationService) ListBookings(ctx context.Context, userID string) ([]model.Booking, error) {
	return s.bookings.ListByUser(ctx, userID)
}

// clone deep-copies a conversation so a failed dispatch can be discarded.
func clone(conv *model.Conversation) (*model.Conversation, error) {
	data, err := json.Marshal(conv)
	if err != nil {
		return nil, err
	}
	var out model.Conversation
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
