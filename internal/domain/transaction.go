package domain

import "time"

// TxnType is the canonical transaction kind, normalized across all sources.
type TxnType string

const (
	TypeRevenue     TxnType = "revenue"      // money earned (charges, sales, payments)
	TypePlatformFee TxnType = "platform_fee" // monthly/billing fees, separate from transaction fees
	TypePayout      TxnType = "payout"       // money moved to the bank
	TypeRefund      TxnType = "refund"       // money returned to a customer
	TypeAdjustment  TxnType = "adjustment"   // catch-all for corrections, disputes, unknowns
)

// IncomeCategory classifies revenue transactions.
type IncomeCategory string

const (
	CategorySubscription IncomeCategory = "subscription"
	CategoryInvoice      IncomeCategory = "invoice"
	CategoryOther        IncomeCategory = "other"
)

// Transaction is the canonical, source-agnostic ledger record. It is created
// once at import and mutated only to set PayoutID or an export marker.
// (Source, SourceID) is the deduplication key and is unique across all time.
type Transaction struct {
	ID             string         `json:"id"`
	Source         string         `json:"source"`
	SourceID       string         `json:"source_id"`
	SourceType     string         `json:"source_type,omitempty"`
	Date           int64          `json:"date"` // epoch seconds, UTC
	Type           TxnType        `json:"type"`
	IncomeCategory IncomeCategory `json:"income_category,omitempty"` // set iff Type == revenue
	Description    string         `json:"description,omitempty"`
	Gross          *float64       `json:"gross,omitempty"` // revenue only
	Fees           *float64       `json:"fees,omitempty"`  // revenue only
	Net            float64        `json:"net"`             // signed: positive = inflow
	Currency       string         `json:"currency"`        // lower-cased ISO code
	AvailableOn    *int64         `json:"available_on,omitempty"`
	PayoutID       string         `json:"payout_id,omitempty"`    // internal id of the settling payout
	TransferRef    string         `json:"transfer_ref,omitempty"` // raw processor transfer reference
	CreatedAt      int64          `json:"created_at"`
}

// TaxCalculation is the persisted withholding for one revenue transaction.
// Total equals the sum of the four components within rounding tolerance.
type TaxCalculation struct {
	TransactionID string  `json:"transaction_id"`
	FICAEmployee  float64 `json:"fica_employee"`
	FICAEmployer  float64 `json:"fica_employer"`
	Federal       float64 `json:"federal"`
	State         float64 `json:"state"`
	Total         float64 `json:"total"`
	CalculatedAt  int64   `json:"calculated_at"`
}

// PayoutLink records which revenue transaction a payout settled. It is an
// audit trail duplicating Transaction.PayoutID; written once, never updated.
type PayoutLink struct {
	PayoutID      string `json:"payout_id"`
	TransactionID string `json:"transaction_id"`
}

// NowEpoch returns the current UTC time as epoch seconds.
func NowEpoch() int64 {
	return time.Now().UTC().Unix()
}

// FormatDate renders an epoch timestamp as a UTC calendar date.
func FormatDate(epoch int64) string {
	return time.Unix(epoch, 0).UTC().Format("2006-01-02")
}
