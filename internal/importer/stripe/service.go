package stripe

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/ledgerpress/bookkeeper/internal/config"
	"github.com/ledgerpress/bookkeeper/internal/domain"
	"github.com/ledgerpress/bookkeeper/internal/ledger"
	"github.com/ledgerpress/bookkeeper/internal/tax"
)

// Service imports Stripe records into the ledger.
type Service struct {
	store *ledger.Store
	cfg   *config.Config
	log   *logrus.Logger
}

// NewService creates an import service.
func NewService(store *ledger.Store, cfg *config.Config, log *logrus.Logger) *Service {
	return &Service{store: store, cfg: cfg, log: log}
}

// errBadRecord marks a per-record parse failure. Batches count and skip these
// records; any other failure is a storage problem and aborts the run.
var errBadRecord = errors.New("bad record")

// Result summarizes one import batch. Orphans are unpaid revenue transactions
// that carry an available_on date but have no resolvable payout yet.
type Result struct {
	Imported int                  `json:"imported"`
	Skipped  int                  `json:"skipped"`
	Errors   int                  `json:"errors"`
	Linked   int                  `json:"linked"`
	Orphans  []domain.Transaction `json:"orphans,omitempty"`
}

// ImportRecord normalizes and persists a single record. Returns true if newly
// imported, false on duplicate. The store's unique constraint stays
// authoritative; the Exists pre-check only saves normalization work.
func (s *Service) ImportRecord(rec Record) (bool, error) {
	exists, err := s.store.Exists(Source, strings.TrimSpace(rec.ID))
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	txn, err := Normalize(rec)
	if err != nil {
		return false, fmt.Errorf("%w: %v", errBadRecord, err)
	}

	inserted, err := s.store.Insert(txn)
	if err != nil {
		return false, err
	}
	if !inserted {
		return false, nil
	}

	if txn.Type == domain.TypeRevenue && s.cfg.Options.AutoWithhold {
		// The transaction is already persisted; a failure here is storage-fatal.
		if err := s.withhold(txn); err != nil {
			return true, fmt.Errorf("tax calculation for %s: %w", txn.SourceID, err)
		}
	}

	return true, nil
}

func (s *Service) withhold(txn *domain.Transaction) error {
	if txn.Gross == nil || txn.Fees == nil {
		return nil
	}

	w := tax.Calculate(*txn.Gross, *txn.Fees, s.cfg.TaxRates.Rates(), s.cfg.Options.RoundToCents)
	return s.store.UpsertTaxCalculation(&domain.TaxCalculation{
		TransactionID: txn.ID,
		FICAEmployee:  w.FICAEmployee,
		FICAEmployer:  w.FICAEmployer,
		Federal:       w.Federal,
		State:         w.State,
		Total:         w.Total(),
		CalculatedAt:  domain.NowEpoch(),
	})
}

// ImportBatch imports records sequentially, then runs the payout linkage pass.
// A parse failure on one record is counted and does not abort the batch;
// storage failures do.
func (s *Service) ImportBatch(records []Record) (*Result, error) {
	res := &Result{}

	for _, rec := range records {
		imported, err := s.ImportRecord(rec)
		if err != nil {
			if !errors.Is(err, errBadRecord) {
				return nil, err
			}
			res.Errors++
			s.log.WithFields(logrus.Fields{
				"source_id": rec.ID,
				"error":     err,
			}).Warn("skipping record")
			continue
		}
		if imported {
			res.Imported++
		} else {
			res.Skipped++
		}
	}

	linked, err := s.LinkPayouts()
	if err != nil {
		return nil, fmt.Errorf("link payouts: %w", err)
	}
	res.Linked = linked

	orphans, err := s.Orphans()
	if err != nil {
		return nil, fmt.Errorf("find orphans: %w", err)
	}
	res.Orphans = orphans

	s.log.WithFields(logrus.Fields{
		"imported": res.Imported,
		"skipped":  res.Skipped,
		"errors":   res.Errors,
		"linked":   res.Linked,
		"orphans":  len(res.Orphans),
	}).Info("import batch complete")

	return res, nil
}

// LinkPayouts links unpaid revenue to payouts, preferring the transfer
// reference and falling back to matching available_on against the payout
// date. Returns the number of transactions newly linked.
func (s *Service) LinkPayouts() (int, error) {
	unpaid, err := s.store.UnpaidRevenue()
	if err != nil {
		return 0, err
	}

	linked := 0
	for _, txn := range unpaid {
		payout, err := s.resolvePayout(&txn)
		if err != nil {
			return linked, err
		}
		if payout == nil {
			continue
		}

		if err := s.store.LinkRevenueToPayout(txn.ID, payout.ID); err != nil {
			return linked, err
		}
		linked++

		s.log.WithFields(logrus.Fields{
			"transaction": txn.SourceID,
			"payout":      payout.SourceID,
		}).Debug("linked revenue to payout")
	}

	return linked, nil
}

func (s *Service) resolvePayout(txn *domain.Transaction) (*domain.Transaction, error) {
	if txn.TransferRef != "" {
		payout, err := s.store.BySource(Source, txn.TransferRef)
		if err != nil {
			return nil, err
		}
		if payout != nil && payout.Type == domain.TypePayout {
			return payout, nil
		}
	}

	if txn.AvailableOn != nil {
		return s.store.PayoutOnDate(*txn.AvailableOn)
	}
	return nil, nil
}

// Orphans returns unpaid revenue that has an available_on date, meaning its
// payout is expected but has not been imported yet.
func (s *Service) Orphans() ([]domain.Transaction, error) {
	unpaid, err := s.store.UnpaidRevenue()
	if err != nil {
		return nil, err
	}

	var orphans []domain.Transaction
	for _, txn := range unpaid {
		if txn.AvailableOn != nil {
			orphans = append(orphans, txn)
		}
	}
	return orphans, nil
}
