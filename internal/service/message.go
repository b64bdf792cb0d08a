package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/capitalize-ai/flight-concierge/internal/apperr"
	"github.com/capitalize-ai/flight-concierge/internal/dialogue"
	"github.com/capitalize-ai/flight-concierge/internal/model"
)

// ErrDialogueDisabled is returned by HandleMessage when no interpreter is configured.
var ErrDialogueDisabled = apperr.Conflictf("free-text messages are not enabled")

// HandleMessage records a user turn, asks the interpreter what it means and dispatches the
// resulting intent. A failed intent is reported in the assistant reply; the user turn is
// kept either way.
func (s *ConversationService) HandleMessage(ctx context.Context, sessionID, content string) (*model.Response, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		err := apperr.NewValidationError("content", "is required")
		return Failure(model.StageInitial, err), err
	}
	if s.interpreter == nil {
		return Failure(model.StageInitial, ErrDialogueDisabled), ErrDialogueDisabled
	}

	unlock := s.locker.Lock(sessionID)
	defer unlock()

	conv, err := s.sessions.Load(ctx, sessionID)
	if err == nil {
		err = checkOwner(ctx, conv)
	}
	if err != nil {
		return Failure(model.StageInitial, err), err
	}
	orderBefore := conv.OrderID
	sess := &session{Machine: s.machine(conv)}
	sess.say(model.RoleUser, content)

	reply, err := s.interpreter.Interpret(ctx, dialogue.BuildContext(conv), conv.Messages)
	if err != nil {
		s.logger.For(ctx).Error("interpreter failed", zap.String("session_id", sessionID), zap.Error(err))
		reply = dialogue.Reply{Message: "Sorry, I could not understand that. Could you rephrase?"}
	}

	data := MessageData{}
	var warnings []model.ErrorDetail
	if reply.Intent != nil {
		data.Intent = reply.Intent.Name
		result, next, derr := s.dispatchIsolated(ctx, sess, *reply.Intent)
		switch {
		case derr != nil:
			s.logFailure(ctx, sessionID, derr)
			sess.emit(model.EventError, string(apperr.CodeOf(derr)), map[string]any{"intent": reply.Intent.Name})
			reply.Message = joinMessages(reply.Message, userMessage(derr))
			data.Result = Failure(sess.Stage(), derr)
		default:
			sess = next
			data.Result = result.Data
			warnings = next.warnings
			reply.Message = joinMessages(reply.Message, result.Message)
		}
	}
	if reply.Message == "" {
		reply.Message = "How can I help with your trip?"
	}
	sess.say(model.RoleAssistant, reply.Message)
	data.Reply = sess.messages[len(sess.messages)-1]

	if err := s.commit(ctx, sess); err != nil {
		return s.saveFailed(ctx, sess, conv.Stage, orderBefore, data, err)
	}
	return &model.Response{
		Success:  true,
		Stage:    sess.Stage(),
		Message:  reply.Message,
		Data:     data,
		Warnings: warnings,
	}, nil
}

// dispatchIsolated runs the intent on a copy of the session, so a failure leaves base
// untouched. On success the copy carries base's pending audit entries as well.
func (s *ConversationService) dispatchIsolated(ctx context.Context, base *session, intent dialogue.Intent) (*model.Response, *session, error) {
	conv, err := clone(base.Conversation())
	if err != nil {
		return nil, nil, err
	}
	next := &session{
		Machine:  s.machine(conv),
		events:   append([]*model.ConversationEvent(nil), base.events...),
		messages: append([]model.Message(nil), base.messages...),
	}
	resp, err := s.dispatch(ctx, next, intent)
	if err != nil {
		return nil, nil, err
	}
	return resp, next, nil
}

func (s *ConversationService) dispatch(ctx context.Context, sess *session, intent dialogue.Intent) (*model.Response, error) {
	switch intent.Name {
	case dialogue.IntentSearchFlights:
		params, err := intent.SearchArgs()
		if err != nil {
			return nil, err
		}
		return s.search(ctx, sess, params)

	case dialogue.IntentFilterOffers:
		criteria, err := intent.FilterArgs()
		if err != nil {
			return nil, err
		}
		return s.filter(ctx, sess, criteria)

	case dialogue.IntentSelectOffer:
		var args dialogue.SelectArgs
		if err := intent.Decode(&args); err != nil {
			return nil, err
		}
		return s.selectOffer(ctx, sess, args.OfferID)

	case dialogue.IntentAddPassengers:
		var args dialogue.PassengerArgs
		if err := intent.Decode(&args); err != nil {
			return nil, err
		}
		return s.submitPassengers(ctx, sess, args.Passengers)

	case dialogue.IntentAddServices:
		var args dialogue.ServiceArgs
		if err := intent.Decode(&args); err != nil {
			return nil, err
		}
		return s.addServices(ctx, sess, args.Services)

	case dialogue.IntentBook:
		return s.book(ctx, sess, false)

	case dialogue.IntentHold:
		return s.book(ctx, sess, true)

	case dialogue.IntentPayHold:
		return s.payHold(ctx, sess)

	case dialogue.IntentCancelBooking:
		return s.cancel(ctx, sess)
	}
	return nil, apperr.NewValidationError("intent", "unknown intent "+intent.Name)
}

func joinMessages(parts ...string) string {
	var out []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, " ")
}
