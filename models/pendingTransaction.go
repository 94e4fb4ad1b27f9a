package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Pending transaction statuses. Stored as strings.
const (
	PendingStatusPending    = "PENDING"
	PendingStatusProcessing = "PROCESSING"
	PendingStatusSent       = "SENT"
	PendingStatusFailed     = "FAILED"
	PendingStatusDead       = "DEAD"
)

// PendingTransaction is a commit request accepted at the register while the
// backend was unreachable. Payload is the JSON encoded request.
type PendingTransaction struct {
	ID             int             `gorm:"primary_key;index:idx_pending_dispatch,priority:3" json:"id"`
	IdempotencyKey string          `gorm:"size:64;not null;uniqueIndex" json:"idempotency_key"`
	SessionId      string          `gorm:"size:64;index" json:"session_id"`
	StaffId        string          `gorm:"size:64;index" json:"staff_id"`
	GrandTotal     decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"grand_total"`
	Payload        []byte          `gorm:"type:blob" json:"payload"`
	Status         string          `gorm:"size:20;not null;default:'PENDING';index:idx_pending_dispatch,priority:1" json:"status"` // PENDING|PROCESSING|SENT|FAILED|DEAD
	Attempts       int             `gorm:"not null;default:0" json:"attempts"`
	NextAttemptAt  *time.Time      `gorm:"index;index:idx_pending_dispatch,priority:2" json:"next_attempt_at"`
	LockedAt       *time.Time      `gorm:"index" json:"locked_at"`
	LockedBy       *string         `gorm:"size:100" json:"locked_by"`
	LastError      *string         `gorm:"type:text" json:"last_error"`
	TransactionRef *string         `gorm:"size:100" json:"transaction_ref"`
	SentAt         *time.Time      `gorm:"index" json:"sent_at"`
	CorrelationId  string          `gorm:"size:64;index" json:"correlation_id"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}
