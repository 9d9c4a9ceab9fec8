package models

// Kind is the direction of money for envelopes and transactions.
type Kind string

const (
	KindIncome  Kind = "income"
	KindExpense Kind = "expense"
	KindSaving  Kind = "saving"
)

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindIncome, KindExpense, KindSaving:
		return true
	}
	return false
}

// IsOutflow reports whether money of this kind leaves the available balance.
// Savings are budgeted like expenses.
func (k Kind) IsOutflow() bool {
	return k == KindExpense || k == KindSaving
}

// Fits reports whether money of kind k may be allocated to an envelope of
// the given kind: income to income envelopes, outflows to outflow envelopes.
func (k Kind) Fits(envelope Kind) bool {
	if k == KindIncome {
		return envelope == KindIncome
	}
	return k.IsOutflow() && envelope.IsOutflow()
}

// Recurrence describes how an envelope repeats across periods.
type Recurrence string

const (
	RecurrenceFixed    Recurrence = "fixed"
	RecurrenceVariable Recurrence = "variable"
	RecurrenceOneOff   Recurrence = "one_off"
)

// Valid reports whether r is one of the known recurrences.
func (r Recurrence) Valid() bool {
	switch r {
	case RecurrenceFixed, RecurrenceVariable, RecurrenceOneOff:
		return true
	}
	return false
}
