package models

import (
	"github.com/shopspring/decimal"

	"pulpe/internal/period"
)

// BudgetPeriod is one accounting cycle of a user, labelled by month and year.
type BudgetPeriod struct {
	Base
	UserID              string           `gorm:"type:uuid;not null;uniqueIndex:idx_budget_periods_user_label" json:"user_id"`
	Month               int              `gorm:"not null;uniqueIndex:idx_budget_periods_user_label" json:"month"`
	Year                int              `gorm:"not null;uniqueIndex:idx_budget_periods_user_label" json:"year"`
	PreviousPeriodID    *string          `gorm:"type:uuid" json:"previous_period_id"`
	CachedEndingBalance *decimal.Decimal `gorm:"type:numeric(14,2)" json:"cached_ending_balance"`

	// Relationships
	Envelopes    []Envelope    `gorm:"foreignKey:PeriodID" json:"-"`
	Transactions []Transaction `gorm:"foreignKey:PeriodID" json:"-"`
}

// Label returns the period label.
func (p BudgetPeriod) Label() period.Label {
	return period.Label{Month: p.Month, Year: p.Year}
}
