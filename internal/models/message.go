package models

import (
	"time"
)

// MessageStatus is the terminal outcome of a dispatch attempt.
type MessageStatus string

const (
	MessageStatusCompleted MessageStatus = "COMPLETED"
	MessageStatusFailed    MessageStatus = "FAILED"
)

// HandledBy records whether a human agent or the bot produced a message.
type HandledBy string

const (
	HandledByBot   HandledBy = "BOT"
	HandledByHuman HandledBy = "HUMAN"
)

// MessageCategory classifies the business purpose of an outbound message.
type MessageCategory string

const (
	CategoryNotification    MessageCategory = "notification"
	CategoryManualReply     MessageCategory = "manual-reply"
	CategoryStatusBroadcast MessageCategory = "status-broadcast"
)

// OutboundMessage is the durable record of a single dispatch attempt.
// Every attempt that reaches the gateway produces exactly one record,
// success or failure; records are append-only.
type OutboundMessage struct {
	ID        int64             `db:"id"`
	TenantID  string            `db:"tenant_id"`
	Recipient string            `db:"recipient"`
	Content   string            `db:"content"`
	Category  MessageCategory   `db:"category"`
	HandledBy HandledBy         `db:"handled_by"`
	Status    MessageStatus     `db:"status"`
	Metadata  map[string]string `db:"metadata"`
	CreatedAt time.Time         `db:"created_at"`
}

// LogLevel is the severity of a system log entry.
type LogLevel string

const (
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// SystemLog is an operational failure record, written best-effort and
// independent of the per-message audit trail.
type SystemLog struct {
	ID        string            `db:"id"`
	Level     LogLevel          `db:"level"`
	Message   string            `db:"message"`
	TenantID  *string           `db:"tenant_id"`
	Metadata  map[string]string `db:"metadata"`
	CreatedAt time.Time         `db:"created_at"`
}
