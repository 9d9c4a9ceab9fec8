// Package display orders the lines of a period for presentation and computes
// the running balance shown next to each one.
package display

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"pulpe/internal/models"
)

// ItemKind tells envelopes and transactions apart in the ordered list.
type ItemKind string

const (
	ItemEnvelope    ItemKind = "envelope"
	ItemTransaction ItemKind = "transaction"
)

// Item is one line of the ordered period view.
type Item struct {
	ItemKind          ItemKind          `json:"item_kind"`
	ID                string            `json:"id"`
	Name              string            `json:"name"`
	Kind              models.Kind       `json:"kind"`
	Recurrence        models.Recurrence `json:"recurrence,omitempty"`
	Amount            decimal.Decimal   `json:"amount"`
	EnvelopeID        *string           `json:"envelope_id,omitempty"`
	IsRollover        bool              `json:"is_rollover"`
	CheckedAt         *time.Time        `json:"checked_at"`
	CumulativeBalance decimal.Decimal   `json:"cumulative_balance"`
}

// Order returns envelopes followed by transactions with a cumulative balance.
// Envelopes are sorted by recurrence tier (fixed and variable before one_off)
// and then by kind (income, saving, expense); ties keep their input order.
// Transactions keep their input order.
func Order(envelopes []models.Envelope, transactions []models.Transaction) []Item {
	sorted := slices.Clone(envelopes)
	slices.SortStableFunc(sorted, func(a, b models.Envelope) int {
		if d := recurrenceTier(a.Recurrence) - recurrenceTier(b.Recurrence); d != 0 {
			return d
		}
		return kindRank(a.Kind) - kindRank(b.Kind)
	})

	items := make([]Item, 0, len(sorted)+len(transactions))
	for _, e := range sorted {
		items = append(items, Item{
			ItemKind:   ItemEnvelope,
			ID:         e.ID,
			Name:       e.Name,
			Kind:       e.Kind,
			Recurrence: e.Recurrence,
			Amount:     e.PlannedAmount,
			IsRollover: e.IsRollover,
			CheckedAt:  e.CheckedAt,
		})
	}
	for _, t := range transactions {
		items = append(items, Item{
			ItemKind:   ItemTransaction,
			ID:         t.ID,
			Name:       t.Name,
			Kind:       t.Kind,
			Amount:     t.Amount,
			EnvelopeID: t.EnvelopeID,
			CheckedAt:  t.CheckedAt,
		})
	}

	balance := decimal.Zero
	for i := range items {
		balance = balance.Add(Signed(items[i].Kind, items[i].Amount))
		items[i].CumulativeBalance = balance
	}
	return items
}

// Signed returns amount as it affects the balance: positive for income,
// negative for expense and saving.
func Signed(kind models.Kind, amount decimal.Decimal) decimal.Decimal {
	if kind.IsOutflow() {
		return amount.Neg()
	}
	return amount
}

func recurrenceTier(r models.Recurrence) int {
	if r == models.RecurrenceOneOff {
		return 1
	}
	return 0
}

func kindRank(k models.Kind) int {
	switch k {
	case models.KindIncome:
		return 0
	case models.KindSaving:
		return 1
	case models.KindExpense:
		return 2
	}
	return 3
}
