package model

import (
	"time"
)

// EventType represents the type of conversation event.
type EventType string

const (
	EventStageChanged     EventType = "stage_changed"
	EventSearchCompleted  EventType = "search_completed"
	EventOfferSelected    EventType = "offer_selected"
	EventPassengersAdded  EventType = "passengers_added"
	EventServicesAdded    EventType = "services_added"
	EventBookingCreated   EventType = "booking_created"
	EventHoldCreated      EventType = "hold_created"
	EventPaymentCompleted EventType = "payment_completed"
	EventBookingCancelled EventType = "booking_cancelled"
	EventError            EventType = "error"
)

// ConversationEvent is an audit entry for a conversation.
type ConversationEvent struct {
	ID        string         `json:"id"`
	SessionID string         `json:"session_id"`
	Type      EventType      `json:"type"`
	Reason    string         `json:"reason,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	Sequence  uint64         `json:"sequence,omitempty"`
}
