package domain

import "math"

// BalanceTolerance is the maximum absolute drift allowed between debits and
// credits in a journal entry. Entries outside it are not exportable.
const BalanceTolerance = 0.01

// Split is a single leg of a journal entry.
// Positive amounts are debits, negative amounts are credits.
type Split struct {
	Account string
	Amount  float64
	Memo    string
}

// JournalEntry is a dated multi-split entry built at export time.
// It is never persisted.
type JournalEntry struct {
	Date        int64 // epoch seconds, UTC
	Description string
	Splits      []Split
}

// IsBalanced reports whether the splits sum to zero within tolerance.
func (e *JournalEntry) IsBalanced() bool {
	var total float64
	for _, s := range e.Splits {
		total += s.Amount
	}
	return math.Abs(total) < BalanceTolerance
}
