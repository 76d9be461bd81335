package gnucash

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/ledgerpress/bookkeeper/internal/config"
	"github.com/ledgerpress/bookkeeper/internal/domain"
	"github.com/ledgerpress/bookkeeper/internal/ledger"
)

// Target is the export-marker name for this exporter.
const Target = "gnucash"

// Exporter drives a full export run: select, build, filter, write, mark.
type Exporter struct {
	store   *ledger.Store
	builder *Builder
	log     *logrus.Logger
}

// NewExporter creates an exporter, resolving the gnucash account mapping from
// config.
func NewExporter(store *ledger.Store, cfg *config.Config, log *logrus.Logger) (*Exporter, error) {
	accounts, err := cfg.AccountsFor(Target)
	if err != nil {
		return nil, err
	}
	return &Exporter{
		store:   store,
		builder: NewBuilder(store, accounts, cfg.Options),
		log:     log,
	}, nil
}

// Result summarizes one export run.
type Result struct {
	Total       int    `json:"total"`
	Revenue     int    `json:"revenue"`
	PlatformFee int    `json:"platform_fee"`
	Payout      int    `json:"payout"`
	Skipped     int    `json:"skipped"`
	File        string `json:"file"`
}

// Export writes all not-yet-exported transactions in the optional date range
// to outputPath as GnuCash CSV. Unbalanced entries are skipped and remain
// export candidates. Transactions are marked exported only after the file is
// written, and only those whose entries made it into the output.
func (e *Exporter) Export(outputPath string, start, end *int64, markExported bool) (*Result, error) {
	txns, err := e.store.Unexported(Target, "", start, end)
	if err != nil {
		return nil, fmt.Errorf("select unexported: %w", err)
	}

	result := &Result{File: outputPath}
	var entries []domain.JournalEntry
	var exportedIDs []string

	for i := range txns {
		txn := &txns[i]

		entry, err := e.builder.BuildEntry(txn)
		if err != nil {
			return nil, fmt.Errorf("build entry for %s: %w", txn.ID, err)
		}
		if entry == nil || !entry.IsBalanced() {
			result.Skipped++
			if entry != nil {
				e.log.WithFields(logrus.Fields{
					"transaction": txn.SourceID,
					"type":        txn.Type,
				}).Warn("unbalanced journal entry, skipping")
			}
			continue
		}

		switch txn.Type {
		case domain.TypeRevenue:
			result.Revenue++
		case domain.TypePlatformFee:
			result.PlatformFee++
		case domain.TypePayout:
			result.Payout++
		}

		entries = append(entries, *entry)
		exportedIDs = append(exportedIDs, txn.ID)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Date < entries[j].Date
	})

	if err := WriteCSV(outputPath, entries); err != nil {
		return nil, fmt.Errorf("write csv: %w", err)
	}
	result.Total = len(entries)

	// Marking happens strictly after the output is durably written, so
	// "exported" always means "the journal was written". Dry runs leave no
	// trace in the audit log either.
	if markExported {
		if _, err := e.store.MarkExported(exportedIDs, Target); err != nil {
			return nil, fmt.Errorf("mark exported: %w", err)
		}
		if err := e.store.LogExport(Target, start, end, result.Total, outputPath); err != nil {
			return nil, fmt.Errorf("log export: %w", err)
		}
	}

	e.log.WithFields(logrus.Fields{
		"total":        result.Total,
		"revenue":      result.Revenue,
		"platform_fee": result.PlatformFee,
		"payout":       result.Payout,
		"skipped":      result.Skipped,
		"file":         outputPath,
	}).Info("export complete")

	return result, nil
}

// Rows flattens entries into ordered output rows: a header row, then one row
// per split, with blank date and description on continuation rows of the same
// entry.
func Rows(entries []domain.JournalEntry) [][]string {
	rows := [][]string{{"Date", "Description", "Account", "Amount", "Notes"}}

	for _, entry := range entries {
		for i, split := range entry.Splits {
			date, description := "", ""
			if i == 0 {
				date = domain.FormatDate(entry.Date)
				description = entry.Description
			}
			rows = append(rows, []string{
				date,
				description,
				split.Account,
				fmt.Sprintf("%.2f", split.Amount),
				split.Memo,
			})
		}
	}
	return rows
}

// WriteCSV writes entries to path, creating parent directories as needed.
func WriteCSV(path string, entries []domain.JournalEntry) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.WriteAll(Rows(entries)); err != nil {
		return fmt.Errorf("write rows: %w", err)
	}

	if err := f.Sync(); err != nil {
		return fmt.Errorf("sync %s: %w", path, err)
	}
	return nil
}
