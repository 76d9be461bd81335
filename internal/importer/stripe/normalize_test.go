package stripe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerpress/bookkeeper/internal/domain"
)

func TestMapType(t *testing.T) {
	tests := []struct {
		sourceType string
		want       domain.TxnType
	}{
		{"charge", domain.TypeRevenue},
		{"payment", domain.TypeRevenue},
		{"stripe_fee", domain.TypePlatformFee},
		{"payout", domain.TypePayout},
		{"transfer", domain.TypePayout},
		{"refund", domain.TypeRefund},
		{"adjustment", domain.TypeAdjustment},
		{"CHARGE", domain.TypeRevenue},
		{"mystery_event", domain.TypeAdjustment},
		{"", domain.TypeAdjustment},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.want, MapType(tc.sourceType), "type %q", tc.sourceType)
	}
}

func TestClassifyIncome(t *testing.T) {
	tests := []struct {
		name        string
		description string
		sourceType  string
		want        domain.IncomeCategory
	}{
		{"invoice keyword", "Payment for Invoice #1042", "charge", domain.CategoryInvoice},
		{"subscription keyword", "Subscription creation", "charge", domain.CategorySubscription},
		{"subscription update", "Subscription update", "payment", domain.CategorySubscription},
		// Invoice keywords win when both appear.
		{"both keywords", "payment for invoice subscription", "charge", domain.CategoryInvoice},
		{"payment fallback", "something else", "payment", domain.CategoryInvoice},
		{"charge fallback", "something else", "charge", domain.CategorySubscription},
		{"non-revenue type", "subscription creation", "payout", ""},
		{"empty description payment", "", "payment", domain.CategoryInvoice},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ClassifyIncome(tc.description, tc.sourceType))
		})
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{"19.00", 19.00, false},
		{`"19.00"`, 19.00, false},
		{" -2.75 ", -2.75, false},
		{"'0.30'", 0.30, false},
		{"", 0, false},
		{"  ", 0, false},
		{"abc", 0, true},
	}

	for _, tc := range tests {
		got, err := ParseAmount(tc.in)
		if tc.wantErr {
			assert.Error(t, err, "input %q", tc.in)
			continue
		}
		require.NoError(t, err, "input %q", tc.in)
		assert.InDelta(t, tc.want, got, 1e-9, "input %q", tc.in)
	}
}

func TestParseDate(t *testing.T) {
	// 2024-03-01 00:00:00 UTC
	const want = int64(1709251200)

	for _, in := range []string{
		"2024-03-01",
		"2024-03-01 17:22:05",
		"2024-03-01T17:22:05Z",
		`"2024-03-01 17:22:05"`,
	} {
		got, err := ParseDate(in)
		require.NoError(t, err, "input %q", in)
		assert.Equal(t, want, got, "input %q", in)
	}

	_, err := ParseDate("")
	assert.Error(t, err)
	_, err = ParseDate("03/01/2024")
	assert.Error(t, err)
}

func TestParseOptionalDate(t *testing.T) {
	got, err := ParseOptionalDate("")
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = ParseOptionalDate("2024-03-04")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(1709510400), *got)
}

func TestNormalizeRevenue(t *testing.T) {
	txn, err := Normalize(Record{
		ID:            " txn_1ABC ",
		Type:          "charge",
		Description:   "Subscription creation",
		Amount:        "19.00",
		Fee:           "-2.75",
		Net:           "16.25",
		Currency:      "USD",
		CreatedDate:   "2024-03-01 17:22:05",
		AvailableDate: "2024-03-04",
		Transfer:      "po_1XYZ",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, txn.ID)
	assert.Equal(t, Source, txn.Source)
	assert.Equal(t, "txn_1ABC", txn.SourceID)
	assert.Equal(t, domain.TypeRevenue, txn.Type)
	assert.Equal(t, domain.CategorySubscription, txn.IncomeCategory)
	assert.Equal(t, "usd", txn.Currency)
	assert.Equal(t, "po_1XYZ", txn.TransferRef)

	require.NotNil(t, txn.Gross)
	require.NotNil(t, txn.Fees)
	assert.InDelta(t, 19.00, *txn.Gross, 1e-9)
	// Fee sign varies across exports; revenue stores magnitudes.
	assert.InDelta(t, 2.75, *txn.Fees, 1e-9)
	assert.InDelta(t, 16.25, txn.Net, 1e-9)

	require.NotNil(t, txn.AvailableOn)
	assert.Equal(t, int64(1709510400), *txn.AvailableOn)
}

func TestNormalizePayout(t *testing.T) {
	txn, err := Normalize(Record{
		ID:          "po_1XYZ",
		Type:        "payout",
		Amount:      "-16.25",
		Fee:         "0.00",
		Net:         "-16.25",
		Currency:    "usd",
		CreatedDate: "2024-03-04",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.TypePayout, txn.Type)
	assert.Empty(t, txn.IncomeCategory)
	assert.Nil(t, txn.Gross)
	assert.Nil(t, txn.Fees)
	assert.InDelta(t, -16.25, txn.Net, 1e-9)
	assert.Nil(t, txn.AvailableOn)
}

func TestNormalizeBadDate(t *testing.T) {
	_, err := Normalize(Record{
		ID:          "txn_1",
		Type:        "charge",
		Amount:      "19.00",
		CreatedDate: "not-a-date",
	})
	assert.Error(t, err)
}

func TestNormalizeBadAmount(t *testing.T) {
	_, err := Normalize(Record{
		ID:          "txn_1",
		Type:        "charge",
		Amount:      "nineteen",
		CreatedDate: "2024-03-01",
	})
	assert.Error(t, err)
}
