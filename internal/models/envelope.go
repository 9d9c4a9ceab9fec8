package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const rolloverIDPrefix = "rollover-"

// Envelope is a planned budget line of a period.
type Envelope struct {
	Base
	PeriodID      string          `gorm:"type:uuid;not null;index" json:"period_id"`
	Name          string          `gorm:"not null" json:"name"`
	PlannedAmount decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"planned_amount"`
	Kind          Kind            `gorm:"not null" json:"kind"`
	Recurrence    Recurrence      `gorm:"not null" json:"recurrence"`
	CheckedAt     *time.Time      `json:"checked_at"`

	// IsRollover marks the synthetic envelope carrying the previous period's
	// ending balance. It never exists as a row.
	IsRollover bool `gorm:"-" json:"is_rollover"`
}

// IsChecked reports whether the envelope is checked.
func (e Envelope) IsChecked() bool {
	return e.CheckedAt != nil
}

// RolloverEnvelopeID returns the identifier of the synthetic rollover envelope
// of a period.
func RolloverEnvelopeID(periodID string) string {
	return rolloverIDPrefix + periodID
}

// IsRolloverEnvelopeID reports whether id designates a synthetic rollover envelope.
func IsRolloverEnvelopeID(id string) bool {
	return strings.HasPrefix(id, rolloverIDPrefix)
}
