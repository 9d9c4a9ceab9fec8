package calculator

import (
	"fmt"

	"github.com/shopspring/decimal"

	"pulpe/internal/models"
	"pulpe/internal/period"
)

// Rollover is the balance carried into a period from its predecessor.
type Rollover struct {
	Amount           decimal.Decimal `json:"amount"`
	PreviousPeriodID *string         `json:"previous_period_id"`
	From             *period.Label   `json:"from,omitempty"`
}

// ResolveRollover finds the period with the greatest label strictly before the
// target's and returns its cached ending balance. Label order is chronological
// whatever the pay day, so no pay day is needed here.
func ResolveRollover(target models.BudgetPeriod, periods []models.BudgetPeriod) Rollover {
	targetLabel := target.Label()

	var prev *models.BudgetPeriod
	for i := range periods {
		p := &periods[i]
		if p.ID == target.ID || !p.Label().Before(targetLabel) {
			continue
		}
		if prev == nil || prev.Label().Before(p.Label()) {
			prev = p
		}
	}
	if prev == nil {
		return Rollover{Amount: decimal.Zero}
	}

	amount := decimal.Zero
	if prev.CachedEndingBalance != nil {
		amount = *prev.CachedEndingBalance
	}
	id := prev.ID
	from := prev.Label()
	return Rollover{Amount: amount, PreviousPeriodID: &id, From: &from}
}

// RolloverEnvelope materializes a rollover as the synthetic income envelope of
// a period. The envelope must never be persisted.
func RolloverEnvelope(periodID string, rollover Rollover) models.Envelope {
	name := "Rollover"
	if rollover.From != nil {
		name = fmt.Sprintf("Rollover from %s", rollover.From)
	}
	return models.Envelope{
		Base:          models.Base{ID: models.RolloverEnvelopeID(periodID)},
		PeriodID:      periodID,
		Name:          name,
		PlannedAmount: rollover.Amount,
		Kind:          models.KindIncome,
		Recurrence:    models.RecurrenceFixed,
		IsRollover:    true,
	}
}

// WithRollover returns envelopes with the rollover envelope prepended when the
// rollover amount is non-zero. The input slice is not modified.
func WithRollover(periodID string, rollover Rollover, envelopes []models.Envelope) []models.Envelope {
	out := make([]models.Envelope, 0, len(envelopes)+1)
	if !rollover.Amount.IsZero() {
		out = append(out, RolloverEnvelope(periodID, rollover))
	}
	return append(out, envelopes...)
}
