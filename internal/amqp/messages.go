package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// Actions carried by expense events.
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
)

// ExpenseEvent is the message published after every expense mutation.
// It carries only identifiers; the worker fetches the current row from the
// database, so a stale event never exports stale data.
type ExpenseEvent struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"userId"`
	Action     string    `json:"action"`
	OccurredAt time.Time `json:"occurredAt"`
}

// NewExpenseEvent creates an event for an expense mutation
func NewExpenseEvent(id, userID int64, action string) *ExpenseEvent {
	return &ExpenseEvent{
		ID:         id,
		UserID:     userID,
		Action:     action,
		OccurredAt: time.Now(),
	}
}

// ToJSON converts the event to JSON bytes
func (m *ExpenseEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ExpenseEventFromJSON creates an event from JSON bytes
func ExpenseEventFromJSON(data []byte) (*ExpenseEvent, error) {
	var msg ExpenseEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	switch msg.Action {
	case ActionCreated, ActionUpdated, ActionDeleted:
	default:
		return nil, fmt.Errorf("unknown expense event action %q", msg.Action)
	}
	return &msg, nil
}
