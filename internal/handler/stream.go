package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/capitalize-ai/flight-concierge/internal/apperr"
	"github.com/capitalize-ai/flight-concierge/internal/model"
	natsclient "github.com/capitalize-ai/flight-concierge/internal/nats"
	"github.com/capitalize-ai/flight-concierge/internal/service"
	"github.com/capitalize-ai/flight-concierge/pkg/logger"
	"github.com/capitalize-ai/flight-concierge/pkg/metrics"
)

const replayBatch = 50

// EventLog reads a session's audit log.
type EventLog interface {
	Replay(ctx context.Context, sessionID string, afterSequence uint64, limit int) ([]natsclient.Entry, uint64, bool, error)
}

// StreamHandler handles SSE streaming endpoints.
type StreamHandler struct {
	events    EventLog
	service   *service.ConversationService
	logger    *logger.Logger
	poll      time.Duration
	heartbeat time.Duration
}

// NewStreamHandler creates a new stream handler. events may be nil when the audit log is
// disabled.
func NewStreamHandler(events EventLog, svc *service.ConversationService, log *logger.Logger) *StreamHandler {
	return &StreamHandler{
		events:    events,
		service:   svc,
		logger:    log,
		poll:      2 * time.Second,
		heartbeat: 30 * time.Second,
	}
}

// ReplayCompleteEvent marks the end of the initial replay.
type ReplayCompleteEvent struct {
	LastSequence uint64 `json:"last_sequence"`
	EntryCount   int    `json:"entry_count"`
}

// Events handles GET /api/v1/sessions/{id}/events. It replays the audit log, resuming after
// ?after_sequence=N or Last-Event-ID, then follows new entries until the client leaves.
func (h *StreamHandler) Events(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID := chi.URLParam(r, "id")

	if h.events == nil {
		writeError(w, http.StatusServiceUnavailable, apperr.CodeInternal, "event log is disabled")
		return
	}
	if _, err := h.service.Get(callerContext(r), sessionID); err != nil {
		writeResponse(w, service.Failure(model.StageInitial, err), err)
		return
	}

	afterSequence := parseSequence(r.URL.Query().Get("after_sequence"))
	if afterSequence == 0 {
		afterSequence = parseSequence(r.Header.Get("Last-Event-ID"))
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, apperr.CodeInternal, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	metrics.IncrementSSEConnections()
	defer metrics.DecrementSSEConnections()

	sendSSEEvent(w, flusher, "connected", "", map[string]string{"session_id": sessionID})

	lastSequence, replayed, err := h.drain(ctx, w, flusher, sessionID, afterSequence)
	if err != nil {
		h.logger.Error("failed to replay events", zap.String("session_id", sessionID), zap.Error(err))
		sendSSEEvent(w, flusher, "error", "", map[string]string{"code": "replay_error", "message": "failed to replay events"})
		return
	}
	sendSSEEvent(w, flusher, "replay_complete", "", &ReplayCompleteEvent{LastSequence: lastSequence, EntryCount: replayed})
	h.logger.Debug("event replay complete",
		zap.String("session_id", sessionID),
		zap.Int("entries", replayed),
		zap.Uint64("last_sequence", lastSequence),
	)

	poll := time.NewTicker(h.poll)
	defer poll.Stop()
	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-poll.C:
			next, _, err := h.drain(ctx, w, flusher, sessionID, lastSequence)
			if err != nil {
				if ctx.Err() == nil {
					h.logger.Warn("failed to follow events", zap.String("session_id", sessionID), zap.Error(err))
				}
				continue
			}
			lastSequence = next
		case <-heartbeat.C:
			sendSSEEvent(w, flusher, "heartbeat", "", &model.HeartbeatEvent{Timestamp: time.Now()})
		}
	}
}

// drain sends every entry after afterSequence and returns the last sequence sent.
func (h *StreamHandler) drain(ctx context.Context, w http.ResponseWriter, flusher http.Flusher, sessionID string, afterSequence uint64) (uint64, int, error) {
	sent := 0
	for {
		entries, last, more, err := h.events.Replay(ctx, sessionID, afterSequence, replayBatch)
		if err != nil {
			return afterSequence, sent, err
		}
		for _, e := range entries {
			if ctx.Err() != nil {
				return afterSequence, sent, ctx.Err()
			}
			sendSSEEvent(w, flusher, e.Kind, strconv.FormatUint(e.Sequence, 10), e)
			sent++
		}
		if last > afterSequence {
			afterSequence = last
		}
		if !more {
			return afterSequence, sent, nil
		}
	}
}

func parseSequence(s string) uint64 {
	if s == "" {
		return 0
	}
	seq, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0
	}
	return seq
}

func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, event, id string, data interface{}) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	if id != "" {
		fmt.Fprintf(w, "id: %s\n", id)
	}
	fmt.Fprintf(w, "event: %s\n", event)
	fmt.Fprintf(w, "data: %s\n\n", jsonData)
	flusher.Flush()

	return nil
}
