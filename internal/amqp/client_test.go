package amqp

import (
	"testing"
	"time"
)

func TestNewExpenseEvent(t *testing.T) {
	event := NewExpenseEvent(12345, 7, ActionCreated)

	if event.ID != 12345 {
		t.Errorf("NewExpenseEvent() ID = %v, want 12345", event.ID)
	}
	if event.UserID != 7 {
		t.Errorf("NewExpenseEvent() UserID = %v, want 7", event.UserID)
	}
	if event.Action != ActionCreated {
		t.Errorf("NewExpenseEvent() Action = %v, want %v", event.Action, ActionCreated)
	}
	if event.OccurredAt.IsZero() {
		t.Error("NewExpenseEvent() OccurredAt should not be zero")
	}
	if time.Since(event.OccurredAt) > time.Second {
		t.Error("NewExpenseEvent() OccurredAt should be recent")
	}
}

func TestExpenseEvent_JSON(t *testing.T) {
	occurredAt := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	event := &ExpenseEvent{
		ID:         12345,
		UserID:     7,
		Action:     ActionUpdated,
		OccurredAt: occurredAt,
	}

	jsonBytes, err := event.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}

	parsed, err := ExpenseEventFromJSON(jsonBytes)
	if err != nil {
		t.Fatalf("ExpenseEventFromJSON() error = %v", err)
	}

	if parsed.ID != event.ID {
		t.Errorf("Parsed ID = %v, want %v", parsed.ID, event.ID)
	}
	if parsed.UserID != event.UserID {
		t.Errorf("Parsed UserID = %v, want %v", parsed.UserID, event.UserID)
	}
	if parsed.Action != event.Action {
		t.Errorf("Parsed Action = %v, want %v", parsed.Action, event.Action)
	}
	if !parsed.OccurredAt.Equal(event.OccurredAt) {
		t.Errorf("Parsed OccurredAt = %v, want %v", parsed.OccurredAt, event.OccurredAt)
	}
}

func TestExpenseEvent_InvalidJSON(t *testing.T) {
	if _, err := ExpenseEventFromJSON([]byte(`{"id": "not_a_number"}`)); err == nil {
		t.Error("ExpenseEventFromJSON() should fail with invalid JSON")
	}
}

func TestExpenseEvent_UnknownAction(t *testing.T) {
	if _, err := ExpenseEventFromJSON([]byte(`{"id": 1, "userId": 2, "action": "exploded"}`)); err == nil {
		t.Error("ExpenseEventFromJSON() should reject unknown actions")
	}
}
