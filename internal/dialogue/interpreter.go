package dialogue

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/capitalize-ai/flight-concierge/internal/llm"
	"github.com/capitalize-ai/flight-concierge/internal/model"
	"github.com/capitalize-ai/flight-concierge/pkg/logger"
	"github.com/capitalize-ai/flight-concierge/pkg/metrics"
)

const systemPrompt = `You are a flight booking assistant. You help the user search, compare and book flights.
Reply with a single JSON object and nothing else:
{"message": "<what to tell the user>", "intent": {"name": "<intent>", "arguments": {...}}}
Omit "intent" when you only need to talk to the user or ask a question.

Intents and arguments:
- search_flights: trip_type (one_way|round_trip|multi_city), origin, destination (IATA codes), departure_date (YYYY-MM-DD),
  return_date, cabin_class (economy|premium_economy|business|first), passengers {adults, children, infants},
  max_connections, departure_time {from, to} (HH:MM), additional_stops [{origin, destination, departure_date}]
- filter_offers: departure_time {from, to}, max_connections, airlines [codes], min_price, max_price,
  max_duration_minutes, sort_by (price|duration|departure), descending
- select_offer: offer_id (one of presented_offers)
- add_passengers: passengers [{type, title, given_name, family_name, born_on, gender, email, phone_number,
  nationality, passport_number, passport_expiry}]
- add_services: services [{id, quantity}] (empty list for no extras)
- book, hold, pay_hold, cancel_booking: no arguments

Only request operations that fit the current stage. Never invent offer ids or prices.`

// Interpreter asks a language model to interpret the latest user turn.
type Interpreter struct {
	client     llm.Client
	model      string
	maxHistory int
	logger     *logger.Logger
}

// NewInterpreter creates an interpreter. maxHistory bounds the number of prior turns sent.
func NewInterpreter(client llm.Client, model string, maxHistory int, log *logger.Logger) *Interpreter {
	if maxHistory <= 0 {
		maxHistory = 12
	}
	if models := client.Models(); model == "" && len(models) > 0 {
		model = models[0]
	}
	return &Interpreter{
		client:     client,
		model:      model,
		maxHistory: maxHistory,
		logger:     log.Named("dialogue"),
	}
}

// Interpret sends the sanitized context and recent turns to the model and parses its reply.
func (i *Interpreter) Interpret(ctx context.Context, sc SanitizedContext, history []model.Message) (Reply, error) {
	contextJSON, err := json.Marshal(sc)
	if err != nil {
		return Reply{}, fmt.Errorf("failed to encode dialogue context: %w", err)
	}

	var system strings.Builder
	system.WriteString(systemPrompt)
	system.WriteString("\n\nConversation state:\n")
	system.Write(contextJSON)

	resp, err := i.client.Complete(ctx, &llm.CompletionRequest{
		Model:       i.model,
		System:      system.String(),
		Messages:    chatMessages(history, i.maxHistory),
		Temperature: 0.2,
		JSON:        true,
	})
	if err != nil {
		return Reply{}, fmt.Errorf("%s completion failed: %w", i.client.Name(), err)
	}

	reply := ParseReply(resp.Content)

	intent := "none"
	if reply.Intent != nil {
		intent = reply.Intent.Name
	}
	metrics.IntentsTotal.WithLabelValues(intent).Inc()
	i.logger.Debug("interpreted user turn",
		zap.String("provider", i.client.Name()),
		zap.String("intent", intent),
		zap.Int("tokens_in", resp.TokensIn),
		zap.Int("tokens_out", resp.TokensOut),
		zap.Int64("latency_ms", resp.LatencyMs),
	)
	return reply, nil
}

// chatMessages keeps the last limit user and assistant turns. The conversation must start
// with a user turn for every provider.
func chatMessages(history []model.Message, limit int) []llm.ChatMessage {
	var out []llm.ChatMessage
	for _, m := range history {
		if m.Role != model.RoleUser && m.Role != model.RoleAssistant {
			continue
		}
		out = append(out, llm.ChatMessage{Role: string(m.Role), Content: m.Content})
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	for len(out) > 0 && out[0].Role != string(model.RoleUser) {
		out = out[1:]
	}
	return out
}
