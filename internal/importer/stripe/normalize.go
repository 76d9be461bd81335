// Package stripe normalizes Stripe balance-history rows into canonical ledger
// transactions and links revenue to the payouts that settle it.
package stripe

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerpress/bookkeeper/internal/domain"
)

// Source is the origin tag stamped on every normalized transaction.
const Source = "stripe"

// Record is one raw row from a balance_history export. Numeric fields stay as
// strings; Stripe quotes and pads them inconsistently.
type Record struct {
	ID            string
	Type          string
	Description   string
	Amount        string
	Fee           string
	Net           string
	Currency      string
	CreatedDate   string
	AvailableDate string
	Transfer      string
}

// typeMapping maps Stripe transaction types to canonical types. Unrecognized
// values are bucketed as adjustment rather than dropped.
var typeMapping = map[string]domain.TxnType{
	"charge":     domain.TypeRevenue,
	"payment":    domain.TypeRevenue,
	"stripe_fee": domain.TypePlatformFee,
	"payout":     domain.TypePayout,
	"transfer":   domain.TypePayout,
	"refund":     domain.TypeRefund,
	"adjustment": domain.TypeAdjustment,
}

// Invoice keywords are checked before subscription keywords: a description
// containing both resolves to invoice.
var invoiceKeywords = []string{
	"payment for invoice",
}

var subscriptionKeywords = []string{
	"subscription update",
	"subscription creation",
	"subscription",
}

// MapType maps a raw Stripe type to the canonical transaction type.
func MapType(sourceType string) domain.TxnType {
	if t, ok := typeMapping[strings.ToLower(sourceType)]; ok {
		return t
	}
	return domain.TypeAdjustment
}

// ClassifyIncome determines the income category from the description, falling
// back to the raw source type. Returns "" for non-revenue source types.
func ClassifyIncome(description, sourceType string) domain.IncomeCategory {
	st := strings.ToLower(sourceType)
	if st != "charge" && st != "payment" {
		return ""
	}

	desc := strings.ToLower(description)
	for _, kw := range invoiceKeywords {
		if strings.Contains(desc, kw) {
			return domain.CategoryInvoice
		}
	}
	for _, kw := range subscriptionKeywords {
		if strings.Contains(desc, kw) {
			return domain.CategorySubscription
		}
	}

	switch st {
	case "payment":
		return domain.CategoryInvoice
	case "charge":
		return domain.CategorySubscription
	}
	return ""
}

// ParseAmount parses a decimal string that may carry surrounding quotes or
// whitespace. The empty string parses to 0.
func ParseAmount(value string) (float64, error) {
	cleaned := strings.Trim(strings.TrimSpace(value), `"'`)
	if cleaned == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", value, err)
	}
	return f, nil
}

// ParseDate parses a date or date-time string to epoch seconds at UTC
// midnight. Only the date portion is significant.
func ParseDate(value string) (int64, error) {
	cleaned := strings.Trim(strings.TrimSpace(value), `"`)
	if cleaned == "" {
		return 0, fmt.Errorf("empty date")
	}

	// "2024-03-01 17:22:05" and "2024-03-01T17:22:05Z" both reduce to the date part.
	datePart := cleaned
	if i := strings.IndexAny(cleaned, " T"); i > 0 {
		datePart = cleaned[:i]
	}

	t, err := time.Parse("2006-01-02", datePart)
	if err != nil {
		return 0, fmt.Errorf("parse date %q: %w", value, err)
	}
	return t.Unix(), nil
}

// ParseOptionalDate is ParseDate for fields that may be absent; an empty value
// yields nil.
func ParseOptionalDate(value string) (*int64, error) {
	if strings.Trim(strings.TrimSpace(value), `"`) == "" {
		return nil, nil
	}
	epoch, err := ParseDate(value)
	if err != nil {
		return nil, err
	}
	return &epoch, nil
}

// Normalize builds a canonical Transaction from a raw record. It assigns a
// fresh id and stamps the import time; persistence is the caller's job.
func Normalize(rec Record) (*domain.Transaction, error) {
	amount, err := ParseAmount(rec.Amount)
	if err != nil {
		return nil, err
	}
	fee, err := ParseAmount(rec.Fee)
	if err != nil {
		return nil, err
	}
	net, err := ParseAmount(rec.Net)
	if err != nil {
		return nil, err
	}
	date, err := ParseDate(rec.CreatedDate)
	if err != nil {
		return nil, fmt.Errorf("created date: %w", err)
	}
	availableOn, err := ParseOptionalDate(rec.AvailableDate)
	if err != nil {
		return nil, fmt.Errorf("available date: %w", err)
	}

	canonical := MapType(rec.Type)

	txn := &domain.Transaction{
		ID:          uuid.NewString(),
		Source:      Source,
		SourceID:    strings.TrimSpace(rec.ID),
		SourceType:  strings.TrimSpace(rec.Type),
		Date:        date,
		Type:        canonical,
		Description: strings.TrimSpace(rec.Description),
		Net:         net,
		Currency:    strings.ToLower(strings.TrimSpace(rec.Currency)),
		AvailableOn: availableOn,
		TransferRef: strings.TrimSpace(rec.Transfer),
		CreatedAt:   domain.NowEpoch(),
	}

	if canonical == domain.TypeRevenue {
		gross := math.Abs(amount)
		fees := math.Abs(fee)
		txn.Gross = &gross
		txn.Fees = &fees
		txn.IncomeCategory = ClassifyIncome(rec.Description, rec.Type)
	}

	return txn, nil
}
