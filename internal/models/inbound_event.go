package models

import (
	"time"

	"gorm.io/datatypes"
)

// Inbound event outcomes recorded on the ledger.
const (
	EventOutcomeProcessed = "PROCESSED"
	EventOutcomeIgnored   = "IGNORED"
	EventOutcomeDuplicate = "DUPLICATE"
	EventOutcomeFailed    = "FAILED"
)

// InboundEvent is the append-only ledger of consumed lifecycle messages,
// keyed by the transport message id. Redelivered messages are detected here
// and recorded as duplicates without re-running their handler.
type InboundEvent struct {
	MessageID    string         `gorm:"primaryKey;size:64" json:"message_id"`
	EventType    string         `gorm:"size:80;not null;index" json:"event_type"`
	PrisonNumber string         `gorm:"size:10;not null;index" json:"prison_number"`
	Payload      datatypes.JSON `gorm:"not null" json:"payload"`
	Outcome      string         `gorm:"size:20;not null" json:"outcome"`
	CreatedAt    time.Time      `json:"created_at"`
}
