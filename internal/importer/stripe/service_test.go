package stripe

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerpress/bookkeeper/internal/config"
	"github.com/ledgerpress/bookkeeper/internal/domain"
	"github.com/ledgerpress/bookkeeper/internal/ledger"
	"github.com/ledgerpress/bookkeeper/internal/logger"
)

func testConfig() *config.Config {
	return &config.Config{
		TaxRates: config.TaxRates{
			FICAEmployee:  0.062,
			FICAEmployer:  0.062,
			FederalIncome: 0.12,
			StateIncome:   0.05,
		},
		Options: config.Options{
			AutoWithhold: true,
			SplitFICA:    true,
			RoundToCents: true,
		},
	}
}

func newTestService(t *testing.T) (*Service, *ledger.Store) {
	t.Helper()
	db, err := ledger.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store := ledger.NewStore(db)
	log := logger.NewWithOutput("error", io.Discard)

	return NewService(store, testConfig(), log), store
}

func chargeRecord(id, created, available, transfer string) Record {
	return Record{
		ID:            id,
		Type:          "charge",
		Description:   "Subscription creation",
		Amount:        "19.00",
		Fee:           "2.75",
		Net:           "16.25",
		Currency:      "usd",
		CreatedDate:   created,
		AvailableDate: available,
		Transfer:      transfer,
	}
}

func payoutRecord(id, created string) Record {
	return Record{
		ID:          id,
		Type:        "payout",
		Description: "STRIPE PAYOUT",
		Amount:      "-16.25",
		Fee:         "0.00",
		Net:         "-16.25",
		Currency:    "usd",
		CreatedDate: created,
	}
}

func TestImportBatchIdempotent(t *testing.T) {
	svc, store := newTestService(t)

	records := []Record{
		chargeRecord("txn_1", "2024-03-01", "2024-03-04", ""),
		payoutRecord("po_1", "2024-03-04"),
	}

	res, err := svc.ImportBatch(records)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Imported)
	assert.Equal(t, 0, res.Skipped)

	// Re-importing the same file changes nothing.
	res, err = svc.ImportBatch(records)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Imported)
	assert.Equal(t, 2, res.Skipped)
	assert.Equal(t, 0, res.Errors)

	count, err := store.Count()
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestImportRecordWithholds(t *testing.T) {
	svc, store := newTestService(t)

	imported, err := svc.ImportRecord(chargeRecord("txn_1", "2024-03-01", "", ""))
	require.NoError(t, err)
	require.True(t, imported)

	txn, err := store.BySource(Source, "txn_1")
	require.NoError(t, err)
	require.NotNil(t, txn)

	calc, err := store.TaxCalculation(txn.ID)
	require.NoError(t, err)
	require.NotNil(t, calc)

	// gross 19.00, fees 2.75 at the test rates
	assert.InDelta(t, 1.18, calc.FICAEmployee, 0.001)
	assert.InDelta(t, 1.18, calc.FICAEmployer, 0.001)
	assert.InDelta(t, 1.81, calc.Federal, 0.001)
	assert.InDelta(t, 0.75, calc.State, 0.001)
	assert.InDelta(t, 4.92, calc.Total, 0.001)
}

func TestImportRecordNoWithholdWhenDisabled(t *testing.T) {
	svc, store := newTestService(t)
	svc.cfg.Options.AutoWithhold = false

	imported, err := svc.ImportRecord(chargeRecord("txn_1", "2024-03-01", "", ""))
	require.NoError(t, err)
	require.True(t, imported)

	txn, err := store.BySource(Source, "txn_1")
	require.NoError(t, err)

	calc, err := store.TaxCalculation(txn.ID)
	require.NoError(t, err)
	assert.Nil(t, calc)
}

func TestLinkByTransferRef(t *testing.T) {
	svc, store := newTestService(t)

	res, err := svc.ImportBatch([]Record{
		// available_on points at a day with no payout; the transfer ref must win.
		chargeRecord("txn_1", "2024-03-01", "2024-03-10", "po_1"),
		payoutRecord("po_1", "2024-03-04"),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Linked)
	assert.Empty(t, res.Orphans)

	rev, err := store.BySource(Source, "txn_1")
	require.NoError(t, err)
	payout, err := store.BySource(Source, "po_1")
	require.NoError(t, err)
	assert.Equal(t, payout.ID, rev.PayoutID)
}

func TestLinkByAvailableOn(t *testing.T) {
	svc, store := newTestService(t)

	res, err := svc.ImportBatch([]Record{
		chargeRecord("txn_1", "2024-03-01", "2024-03-04", ""),
		payoutRecord("po_1", "2024-03-04"),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Linked)

	rev, err := store.BySource(Source, "txn_1")
	require.NoError(t, err)
	payout, err := store.BySource(Source, "po_1")
	require.NoError(t, err)
	assert.Equal(t, payout.ID, rev.PayoutID)
}

func TestLinkLaterBatch(t *testing.T) {
	svc, store := newTestService(t)

	// Revenue arrives first; its payout shows up in a later export.
	res, err := svc.ImportBatch([]Record{
		chargeRecord("txn_1", "2024-03-01", "2024-03-04", ""),
	})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Linked)
	require.Len(t, res.Orphans, 1)
	assert.Equal(t, "txn_1", res.Orphans[0].SourceID)

	res, err = svc.ImportBatch([]Record{
		payoutRecord("po_1", "2024-03-04"),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Linked)
	assert.Empty(t, res.Orphans)

	rev, err := store.BySource(Source, "txn_1")
	require.NoError(t, err)
	assert.NotEmpty(t, rev.PayoutID)
}

func TestOrphansExcludeRevenueWithoutAvailableOn(t *testing.T) {
	svc, _ := newTestService(t)

	res, err := svc.ImportBatch([]Record{
		chargeRecord("txn_1", "2024-03-01", "", ""),
	})
	require.NoError(t, err)
	assert.Empty(t, res.Orphans)
}

func TestImportBatchBadRecordContinues(t *testing.T) {
	svc, store := newTestService(t)

	res, err := svc.ImportBatch([]Record{
		{ID: "txn_bad", Type: "charge", Amount: "nineteen", CreatedDate: "2024-03-01"},
		chargeRecord("txn_good", "2024-03-01", "", ""),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Errors)
	assert.Equal(t, 1, res.Imported)

	count, err := store.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestImportBatchStorageFailureAborts(t *testing.T) {
	db, err := ledger.Open(":memory:")
	require.NoError(t, err)

	svc := NewService(ledger.NewStore(db), testConfig(), logger.NewWithOutput("error", io.Discard))

	// A dead store is a fatal failure, not a per-record skip.
	require.NoError(t, db.Close())

	_, err = svc.ImportBatch([]Record{chargeRecord("txn_1", "2024-03-01", "", "")})
	assert.Error(t, err)
}

func TestImportRecordUnknownType(t *testing.T) {
	svc, store := newTestService(t)

	imported, err := svc.ImportRecord(Record{
		ID:          "txn_1",
		Type:        "mystery_event",
		Amount:      "5.00",
		Net:         "5.00",
		Currency:    "usd",
		CreatedDate: "2024-03-01",
	})
	require.NoError(t, err)
	require.True(t, imported)

	txn, err := store.BySource(Source, "txn_1")
	require.NoError(t, err)
	assert.Equal(t, domain.TypeAdjustment, txn.Type)
	// Adjustments carry no tax calculation.
	calc, err := store.TaxCalculation(txn.ID)
	require.NoError(t, err)
	assert.Nil(t, calc)
}
