package amqp

import (
	"encoding/json"
	"time"
)

// Event names carried in budget messages.
const (
	EventMonthCreated   = "month.created"
	EventMonthClosed    = "month.closed"
	EventExpenseCreated = "expense.created"
	EventExpenseUpdated = "expense.updated"
	EventExpenseDeleted = "expense.deleted"
)

// MonthEventMessage announces a month lifecycle change. Consumers fetch
// details themselves; the message only carries identifiers.
type MonthEventMessage struct {
	Event     string    `json:"event"`
	Owner     string    `json:"owner"`
	MonthID   int64     `json:"month_id"`
	Month     string    `json:"month"` // YYYY-MM
	Timestamp time.Time `json:"timestamp"`
}

func NewMonthEventMessage(event, owner string, monthID int64, month string) *MonthEventMessage {
	return &MonthEventMessage{
		Event:     event,
		Owner:     owner,
		MonthID:   monthID,
		Month:     month,
		Timestamp: time.Now(),
	}
}

func (m *MonthEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func MonthEventMessageFromJSON(data []byte) (*MonthEventMessage, error) {
	var msg MonthEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// ExpenseEventMessage announces an expense mutation within a month.
type ExpenseEventMessage struct {
	Event     string    `json:"event"`
	ExpenseID int64     `json:"expense_id"`
	MonthID   int64     `json:"month_id"`
	Timestamp time.Time `json:"timestamp"`
}

func NewExpenseEventMessage(event string, expenseID, monthID int64) *ExpenseEventMessage {
	return &ExpenseEventMessage{
		Event:     event,
		ExpenseID: expenseID,
		MonthID:   monthID,
		Timestamp: time.Now(),
	}
}

func (m *ExpenseEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ExpenseEventMessageFromJSON(data []byte) (*ExpenseEventMessage, error) {
	var msg ExpenseEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
