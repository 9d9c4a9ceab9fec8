// Package calculator derives period totals from envelopes and transactions.
//
// Income is never capped: planned income and every income transaction add up.
// Expense and saving envelopes contribute their effective amount, which is the
// larger of what was planned and what was actually allocated to them, so an
// envelope never counts for less than its plan while overspending still shows.
// Free outflow transactions always count in full.
package calculator

import (
	"github.com/shopspring/decimal"

	"pulpe/internal/models"
)

// Totals are the headline numbers of a period.
type Totals struct {
	Income        decimal.Decimal `json:"income"`
	Expenses      decimal.Decimal `json:"expenses"`
	EndingBalance decimal.Decimal `json:"ending_balance"`
}

// EnvelopeUsage details how much of an envelope has been consumed.
type EnvelopeUsage struct {
	EnvelopeID string          `json:"envelope_id"`
	Planned    decimal.Decimal `json:"planned"`
	Consumed   decimal.Decimal `json:"consumed"`
	Effective  decimal.Decimal `json:"effective"`
	Remaining  decimal.Decimal `json:"remaining"`
}

// Usage returns one EnvelopeUsage per envelope, in input order.
func Usage(envelopes []models.Envelope, transactions []models.Transaction) []EnvelopeUsage {
	consumed := consumedByEnvelope(transactions)
	out := make([]EnvelopeUsage, 0, len(envelopes))
	for _, env := range envelopes {
		used := consumed[env.ID]
		out = append(out, EnvelopeUsage{
			EnvelopeID: env.ID,
			Planned:    env.PlannedAmount,
			Consumed:   used,
			Effective:  effective(env.PlannedAmount, used),
			Remaining:  env.PlannedAmount.Sub(used),
		})
	}
	return out
}

// ComputeTotals returns income, expenses and ending balance of a period.
//
// Allocated outflow transactions only count through the effective amount of
// their envelope. Only free outflow transactions are added on their own.
func ComputeTotals(envelopes []models.Envelope, transactions []models.Transaction) Totals {
	consumed := consumedByEnvelope(transactions)

	income := decimal.Zero
	expenses := decimal.Zero
	for _, env := range envelopes {
		switch {
		case env.Kind == models.KindIncome:
			income = income.Add(env.PlannedAmount)
		case env.Kind.IsOutflow():
			expenses = expenses.Add(effective(env.PlannedAmount, consumed[env.ID]))
		}
	}

	for _, tx := range transactions {
		switch {
		case tx.Kind == models.KindIncome:
			income = income.Add(tx.Amount)
		case tx.Kind.IsOutflow() && tx.EnvelopeID == nil:
			expenses = expenses.Add(tx.Amount)
		}
	}

	return Totals{
		Income:        income,
		Expenses:      expenses,
		EndingBalance: income.Sub(expenses),
	}
}

// effective never drops below the plan but lets overspending show.
func effective(planned, consumed decimal.Decimal) decimal.Decimal {
	return decimal.Max(planned, consumed)
}

func consumedByEnvelope(transactions []models.Transaction) map[string]decimal.Decimal {
	consumed := make(map[string]decimal.Decimal)
	for _, tx := range transactions {
		if tx.EnvelopeID == nil {
			continue
		}
		consumed[*tx.EnvelopeID] = consumed[*tx.EnvelopeID].Add(tx.Amount)
	}
	return consumed
}
