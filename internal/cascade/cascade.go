// Package cascade computes the next check state of a period when an envelope
// or a transaction is checked or unchecked.
//
// An envelope is checked when the user checked it and every transaction
// allocated to it is checked. Toggling an envelope propagates down to its
// transactions; toggling a transaction propagates up to its envelope. The
// reducers never mutate their input and always return whole new collections.
package cascade

import (
	"time"

	"pulpe/internal/models"
)

// Snapshot is the full check state of one period.
type Snapshot struct {
	Envelopes    []models.Envelope    `json:"envelopes"`
	Transactions []models.Transaction `json:"transactions"`
}

// Clone returns a copy of the snapshot that shares no slices or check
// timestamps with s.
func (s Snapshot) Clone() Snapshot {
	return Snapshot{
		Envelopes:    cloneEnvelopes(s.Envelopes),
		Transactions: cloneTransactions(s.Transactions),
	}
}

// EnvelopeResult is the outcome of toggling an envelope.
type EnvelopeResult struct {
	IsChecking   bool
	Envelopes    []models.Envelope
	Transactions []models.Transaction
	// TransactionsToSync holds exactly the transactions whose check state
	// changed, in snapshot order.
	TransactionsToSync []models.Transaction
}

// Snapshot returns the resulting period state.
func (r *EnvelopeResult) Snapshot() Snapshot {
	return Snapshot{Envelopes: r.Envelopes, Transactions: r.Transactions}
}

// TransactionResult is the outcome of toggling a transaction.
type TransactionResult struct {
	IsChecking   bool
	Transactions []models.Transaction
	Envelopes    []models.Envelope
	// ShouldToggleEnvelope is set when the parent envelope changed state as a
	// consequence of the toggle. EnvelopeID is the parent, nil for a free
	// transaction.
	ShouldToggleEnvelope bool
	EnvelopeID           *string
}

// Snapshot returns the resulting period state.
func (r *TransactionResult) Snapshot() Snapshot {
	return Snapshot{Envelopes: r.Envelopes, Transactions: r.Transactions}
}

// ToggleEnvelope flips the envelope identified by id and cascades the new
// state to every transaction allocated to it. It returns nil when the
// envelope does not exist or is the synthetic rollover envelope.
func ToggleEnvelope(id string, snap Snapshot, now time.Time) *EnvelopeResult {
	idx := envelopeIndex(snap.Envelopes, id)
	if idx < 0 || snap.Envelopes[idx].IsRollover {
		return nil
	}

	isChecking := !snap.Envelopes[idx].IsChecked()

	envelopes := cloneEnvelopes(snap.Envelopes)
	envelopes[idx].CheckedAt = stamp(isChecking, now)

	transactions := cloneTransactions(snap.Transactions)
	var toSync []models.Transaction
	for i := range transactions {
		tx := &transactions[i]
		if !tx.AllocatedTo(id) || tx.IsChecked() == isChecking {
			continue
		}
		tx.CheckedAt = stamp(isChecking, now)
		toSync = append(toSync, *tx)
	}

	return &EnvelopeResult{
		IsChecking:         isChecking,
		Envelopes:          envelopes,
		Transactions:       transactions,
		TransactionsToSync: toSync,
	}
}

// ToggleTransaction flips the transaction identified by id and derives the
// state of its parent envelope. It returns nil when the transaction does not
// exist.
func ToggleTransaction(id string, snap Snapshot, now time.Time) *TransactionResult {
	idx := transactionIndex(snap.Transactions, id)
	if idx < 0 {
		return nil
	}

	isChecking := !snap.Transactions[idx].IsChecked()

	transactions := cloneTransactions(snap.Transactions)
	transactions[idx].CheckedAt = stamp(isChecking, now)
	envelopes := cloneEnvelopes(snap.Envelopes)

	result := &TransactionResult{
		IsChecking:   isChecking,
		Transactions: transactions,
		Envelopes:    envelopes,
	}

	parentID := transactions[idx].EnvelopeID
	if parentID == nil {
		return result
	}
	envelopeID := *parentID
	result.EnvelopeID = &envelopeID

	envIdx := envelopeIndex(envelopes, envelopeID)
	if envIdx < 0 {
		return result
	}
	parent := &envelopes[envIdx]

	switch {
	case !isChecking && parent.IsChecked():
		parent.CheckedAt = nil
		result.ShouldToggleEnvelope = true
	case isChecking && !parent.IsChecked() && allAllocatedChecked(transactions, envelopeID):
		parent.CheckedAt = stamp(true, now)
		result.ShouldToggleEnvelope = true
	}

	return result
}

func allAllocatedChecked(transactions []models.Transaction, envelopeID string) bool {
	for _, tx := range transactions {
		if tx.AllocatedTo(envelopeID) && !tx.IsChecked() {
			return false
		}
	}
	return true
}

// stamp returns a fresh timestamp pointer so that no two records share one.
func stamp(checked bool, now time.Time) *time.Time {
	if !checked {
		return nil
	}
	t := now
	return &t
}

func envelopeIndex(envelopes []models.Envelope, id string) int {
	for i := range envelopes {
		if envelopes[i].ID == id {
			return i
		}
	}
	return -1
}

func transactionIndex(transactions []models.Transaction, id string) int {
	for i := range transactions {
		if transactions[i].ID == id {
			return i
		}
	}
	return -1
}

func cloneEnvelopes(in []models.Envelope) []models.Envelope {
	if in == nil {
		return nil
	}
	out := make([]models.Envelope, len(in))
	copy(out, in)
	for i := range out {
		out[i].CheckedAt = cloneTime(out[i].CheckedAt)
	}
	return out
}

func cloneTransactions(in []models.Transaction) []models.Transaction {
	if in == nil {
		return nil
	}
	out := make([]models.Transaction, len(in))
	copy(out, in)
	for i := range out {
		out[i].CheckedAt = cloneTime(out[i].CheckedAt)
		if out[i].EnvelopeID != nil {
			id := *out[i].EnvelopeID
			out[i].EnvelopeID = &id
		}
	}
	return out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
