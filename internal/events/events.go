package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/lexis-api/internal/domain"
)

// Event types.
const (
	TypeRewardGranted = "REWARD_GRANTED"
	TypeStreakBroken  = "STREAK_BROKEN"
	TypeItemMastered  = "ITEM_MASTERED"
)

// Reward sources carried in RewardGrantedPayload.Source.
const (
	SourceSession   = "session"
	SourceCheckIn   = "checkin"
	SourceChallenge = "challenge"
)

// Event is a notification that something happened to a user's learning
// state. Events are emitted only after the unit of work that produced them
// has committed.
type Event struct {
	// ID is a unique identifier for this event
	ID uuid.UUID `json:"id"`

	// Type is one of the Type* constants
	Type string `json:"type"`

	UserID uuid.UUID `json:"user_id"`

	// Payload contains the type-specific data serialized as JSON
	Payload json.RawMessage `json:"payload"`

	OccurredAt time.Time `json:"occurred_at"`
}

// UnmarshalPayload decodes the event payload into the provided structure.
func (e *Event) UnmarshalPayload(v interface{}) error {
	return json.Unmarshal(e.Payload, v)
}

// NewEvent creates an Event with the given type and payload.
func NewEvent(eventType string, userID uuid.UUID, payload interface{}, at time.Time) (*Event, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:         uuid.New(),
		Type:       eventType,
		UserID:     userID,
		Payload:    payloadBytes,
		OccurredAt: at,
	}, nil
}

// RewardGrantedPayload accompanies REWARD_GRANTED.
type RewardGrantedPayload struct {
	Source     string    `json:"source"`
	SourceID   uuid.UUID `json:"source_id"`
	BasePoints int       `json:"base_points"`
	Multiplier float64   `json:"multiplier"`
	Points     int       `json:"points"`
	StreakDays int       `json:"streak_days"`
}

// StreakBrokenPayload accompanies STREAK_BROKEN.
type StreakBrokenPayload struct {
	PreviousStreak int       `json:"previous_streak"`
	Day            time.Time `json:"day"`
}

// ItemMasteredPayload accompanies ITEM_MASTERED.
type ItemMasteredPayload struct {
	ItemID uuid.UUID           `json:"item_id"`
	Level  domain.MasteryLevel `json:"level"`
}

// EventHandler defines an interface for components that can handle events.
type EventHandler interface {
	// HandleEvent processes the given event within the provided context.
	HandleEvent(ctx context.Context, event *Event) error
}

// EventEmitter defines an interface for components that can emit events.
// This allows services to publish events without direct knowledge of handlers.
type EventEmitter interface {
	// EmitEvent publishes the given event to all registered handlers.
	EmitEvent(ctx context.Context, event *Event) error
}

// HandlerFunc adapts a function to the EventHandler interface.
type HandlerFunc func(ctx context.Context, event *Event) error

// HandleEvent calls f.
func (f HandlerFunc) HandleEvent(ctx context.Context, event *Event) error {
	return f(ctx, event)
}
