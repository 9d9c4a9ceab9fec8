package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is an actual movement of money, optionally allocated to an
// envelope of the same period. A transaction without an envelope is free.
type Transaction struct {
	Base
	PeriodID   string          `gorm:"type:uuid;not null;index" json:"period_id"`
	EnvelopeID *string         `gorm:"type:uuid;index" json:"envelope_id"`
	Name       string          `gorm:"not null" json:"name"`
	Amount     decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"amount"`
	Kind       Kind            `gorm:"not null" json:"kind"`
	OccurredAt time.Time       `gorm:"not null" json:"occurred_at"`
	CheckedAt  *time.Time      `json:"checked_at"`
}

// IsChecked reports whether the transaction is checked.
func (t Transaction) IsChecked() bool {
	return t.CheckedAt != nil
}

// IsFree reports whether the transaction is not allocated to any envelope.
func (t Transaction) IsFree() bool {
	return t.EnvelopeID == nil
}

// AllocatedTo reports whether the transaction is allocated to the envelope.
func (t Transaction) AllocatedTo(envelopeID string) bool {
	return t.EnvelopeID != nil && *t.EnvelopeID == envelopeID
}
