package events

import (
	"encoding/json"
	"fmt"
	"time"
)

// ChangeAction says what happened to an expense record.
type ChangeAction string

const (
	ChangeCreated ChangeAction = "created"
	ChangeDeleted ChangeAction = "deleted"
)

// ExpenseChangeMessage is the wire form of a change event. It carries only
// the record id and the action; consumers needing the full record read it
// from the store.
type ExpenseChangeMessage struct {
	ID        int64        `json:"id"`
	Action    ChangeAction `json:"action"`
	Timestamp time.Time    `json:"timestamp"`
}

func NewExpenseChangeMessage(id int64, action ChangeAction) *ExpenseChangeMessage {
	return &ExpenseChangeMessage{
		ID:        id,
		Action:    action,
		Timestamp: time.Now(),
	}
}

func (m *ExpenseChangeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ExpenseChangeMessageFromJSON(data []byte) (*ExpenseChangeMessage, error) {
	var msg ExpenseChangeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	switch msg.Action {
	case ChangeCreated, ChangeDeleted:
	default:
		return nil, fmt.Errorf("unknown change action %q", msg.Action)
	}
	return &msg, nil
}
