package ledger

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/ledgerpress/bookkeeper/internal/domain"
)

// Store exposes all ledger operations over an open database handle.
type Store struct {
	db *sql.DB
}

// NewStore wraps an open database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const txnColumns = `id, source, source_id, source_type, date, type, income_category,
	description, gross, fees, net, currency, available_on, payout_id, transfer_ref, created_at`

const txnColumnsT = `t.id, t.source, t.source_id, t.source_type, t.date, t.type, t.income_category,
	t.description, t.gross, t.fees, t.net, t.currency, t.available_on, t.payout_id, t.transfer_ref, t.created_at`

// Insert persists a transaction. Returns true if newly inserted, false if the
// (source, source_id) pair already exists. The unique constraint is the
// authoritative dedup gate; any other storage failure is returned as an error.
func (s *Store) Insert(txn *domain.Transaction) (bool, error) {
	_, err := s.db.Exec(
		`INSERT INTO transactions
		(`+txnColumns+`)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		txn.ID, txn.Source, txn.SourceID, nullStr(txn.SourceType),
		txn.Date, string(txn.Type), nullStr(string(txn.IncomeCategory)),
		nullStr(txn.Description), nullFloat(txn.Gross), nullFloat(txn.Fees),
		txn.Net, txn.Currency, nullInt(txn.AvailableOn),
		nullStr(txn.PayoutID), nullStr(txn.TransferRef), txn.CreatedAt,
	)
	if err != nil {
		if isDedupViolation(err) {
			return false, nil
		}
		return false, fmt.Errorf("insert transaction: %w", err)
	}
	return true, nil
}

// Exists reports whether a transaction with the given dedup key is present.
func (s *Store) Exists(source, sourceID string) (bool, error) {
	var one int
	err := s.db.QueryRow(
		"SELECT 1 FROM transactions WHERE source = ? AND source_id = ?",
		source, sourceID,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("exists: %w", err)
	}
	return true, nil
}

// Get retrieves a transaction by internal id. Returns (nil, nil) if not found.
func (s *Store) Get(id string) (*domain.Transaction, error) {
	row := s.db.QueryRow("SELECT "+txnColumns+" FROM transactions WHERE id = ?", id)
	return scanOne(row)
}

// BySource retrieves a transaction by its dedup key. Returns (nil, nil) if not found.
func (s *Store) BySource(source, sourceID string) (*domain.Transaction, error) {
	row := s.db.QueryRow(
		"SELECT "+txnColumns+" FROM transactions WHERE source = ? AND source_id = ?",
		source, sourceID,
	)
	return scanOne(row)
}

// ByDateRange returns transactions with start <= date <= end in ascending date
// order, optionally filtered by canonical type.
func (s *Store) ByDateRange(start, end int64, typeFilter domain.TxnType) ([]domain.Transaction, error) {
	query := "SELECT " + txnColumns + " FROM transactions WHERE date >= ? AND date <= ?"
	args := []any{start, end}

	if typeFilter != "" {
		query += " AND type = ?"
		args = append(args, string(typeFilter))
	}
	query += " ORDER BY date ASC"

	return s.queryTxns(query, args...)
}

// PendingRevenue returns unlinked revenue that becomes available on the exact
// given date.
func (s *Store) PendingRevenue(availableOn int64) ([]domain.Transaction, error) {
	return s.queryTxns(
		`SELECT `+txnColumns+` FROM transactions
		WHERE type = 'revenue' AND available_on = ? AND payout_id IS NULL
		ORDER BY date ASC`,
		availableOn,
	)
}

// UnpaidRevenue returns all revenue transactions not yet linked to a payout.
func (s *Store) UnpaidRevenue() ([]domain.Transaction, error) {
	return s.queryTxns(
		`SELECT ` + txnColumns + ` FROM transactions
		WHERE type = 'revenue' AND payout_id IS NULL
		ORDER BY date ASC`,
	)
}

// PayoutOnDate returns the payout transaction dated exactly at the given epoch
// day, or (nil, nil) if none exists.
func (s *Store) PayoutOnDate(date int64) (*domain.Transaction, error) {
	row := s.db.QueryRow(
		"SELECT "+txnColumns+" FROM transactions WHERE type = 'payout' AND date = ? LIMIT 1",
		date,
	)
	return scanOne(row)
}

// LinkRevenueToPayout stamps payout_id on a revenue transaction and records
// the audit link. Idempotent: once set, payout_id is never overwritten;
// re-linking the same pair is a no-op, and linking to a different payout is
// silently ignored.
func (s *Store) LinkRevenueToPayout(transactionID, payoutID string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		"UPDATE transactions SET payout_id = ? WHERE id = ? AND payout_id IS NULL",
		payoutID, transactionID,
	)
	if err != nil {
		return fmt.Errorf("set payout_id: %w", err)
	}

	if affected, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("set payout_id: %w", err)
	} else if affected == 0 {
		// Already linked. The audit trail must mirror payout_id exactly, so a
		// divergent payout gets no link row; otherwise TaxesForPayout would
		// count this revenue's withholding under both payouts.
		var current sql.NullString
		if err := tx.QueryRow(
			"SELECT payout_id FROM transactions WHERE id = ?", transactionID,
		).Scan(&current); err != nil {
			return fmt.Errorf("check payout_id: %w", err)
		}
		if current.String != payoutID {
			return nil
		}
	}

	if _, err := tx.Exec(
		"INSERT OR IGNORE INTO payout_links (payout_id, transaction_id) VALUES (?, ?)",
		payoutID, transactionID,
	); err != nil {
		return fmt.Errorf("insert payout link: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Links returns the audit links recorded for a payout.
func (s *Store) Links(payoutID string) ([]domain.PayoutLink, error) {
	rows, err := s.db.Query(
		"SELECT payout_id, transaction_id FROM payout_links WHERE payout_id = ? ORDER BY id",
		payoutID,
	)
	if err != nil {
		return nil, fmt.Errorf("query links: %w", err)
	}
	defer rows.Close()

	var links []domain.PayoutLink
	for rows.Next() {
		var l domain.PayoutLink
		if err := rows.Scan(&l.PayoutID, &l.TransactionID); err != nil {
			return nil, fmt.Errorf("scan link: %w", err)
		}
		links = append(links, l)
	}
	return links, rows.Err()
}

// Unexported returns transactions carrying no marker for the given exporter,
// with optional type and date filters, in ascending date order.
func (s *Store) Unexported(exporter string, typeFilter domain.TxnType, start, end *int64) ([]domain.Transaction, error) {
	query := `SELECT ` + txnColumnsT + ` FROM transactions t
		LEFT JOIN export_markers em ON em.transaction_id = t.id AND em.exporter = ?
		WHERE em.transaction_id IS NULL`
	args := []any{exporter}

	if typeFilter != "" {
		query += " AND t.type = ?"
		args = append(args, string(typeFilter))
	}
	if start != nil {
		query += " AND t.date >= ?"
		args = append(args, *start)
	}
	if end != nil {
		query += " AND t.date <= ?"
		args = append(args, *end)
	}
	query += " ORDER BY t.date ASC"

	return s.queryTxns(query, args...)
}

// MarkExported stamps the current time on the exporter marker for each id,
// atomically. Returns the number of transactions newly marked.
func (s *Store) MarkExported(ids []string, exporter string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		"INSERT OR IGNORE INTO export_markers (transaction_id, exporter, exported_at) VALUES (?, ?, ?)",
	)
	if err != nil {
		return 0, fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	now := domain.NowEpoch()
	marked := 0
	for _, id := range ids {
		res, err := stmt.Exec(id, exporter, now)
		if err != nil {
			return 0, fmt.Errorf("mark %s: %w", id, err)
		}
		ra, _ := res.RowsAffected()
		marked += int(ra)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return marked, nil
}

// ExportedAt returns the export timestamp for a transaction and exporter, or
// nil if the transaction has not been exported to that target.
func (s *Store) ExportedAt(transactionID, exporter string) (*int64, error) {
	var ts int64
	err := s.db.QueryRow(
		"SELECT exported_at FROM export_markers WHERE transaction_id = ? AND exporter = ?",
		transactionID, exporter,
	).Scan(&ts)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("exported at: %w", err)
	}
	return &ts, nil
}

// UpsertTaxCalculation inserts or replaces the calculation keyed by
// transaction id.
func (s *Store) UpsertTaxCalculation(calc *domain.TaxCalculation) error {
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO tax_calculations
		(transaction_id, fica_employee, fica_employer, federal, state, total, calculated_at)
		VALUES (?,?,?,?,?,?,?)`,
		calc.TransactionID, calc.FICAEmployee, calc.FICAEmployer,
		calc.Federal, calc.State, calc.Total, calc.CalculatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert tax calculation: %w", err)
	}
	return nil
}

// TaxCalculation returns the calculation for a transaction, or (nil, nil) if
// none exists.
func (s *Store) TaxCalculation(transactionID string) (*domain.TaxCalculation, error) {
	var calc domain.TaxCalculation
	err := s.db.QueryRow(
		`SELECT transaction_id, fica_employee, fica_employer, federal, state, total, calculated_at
		FROM tax_calculations WHERE transaction_id = ?`,
		transactionID,
	).Scan(&calc.TransactionID, &calc.FICAEmployee, &calc.FICAEmployer,
		&calc.Federal, &calc.State, &calc.Total, &calc.CalculatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get tax calculation: %w", err)
	}
	return &calc, nil
}

// PayoutTaxes aggregates withholding across all revenue linked to one payout.
type PayoutTaxes struct {
	FICAEmployee float64 `json:"fica_employee"`
	FICAEmployer float64 `json:"fica_employer"`
	Federal      float64 `json:"federal"`
	State        float64 `json:"state"`
	Total        float64 `json:"total"`
}

// TaxesForPayout sums tax components across every transaction linked to the
// payout. Returns a zero-valued result when no links exist.
func (s *Store) TaxesForPayout(payoutID string) (PayoutTaxes, error) {
	var t PayoutTaxes
	err := s.db.QueryRow(
		`SELECT
			COALESCE(SUM(tc.fica_employee), 0),
			COALESCE(SUM(tc.fica_employer), 0),
			COALESCE(SUM(tc.federal), 0),
			COALESCE(SUM(tc.state), 0),
			COALESCE(SUM(tc.total), 0)
		FROM tax_calculations tc
		JOIN payout_links pl ON tc.transaction_id = pl.transaction_id
		WHERE pl.payout_id = ?`,
		payoutID,
	).Scan(&t.FICAEmployee, &t.FICAEmployer, &t.Federal, &t.State, &t.Total)
	if err != nil {
		return PayoutTaxes{}, fmt.Errorf("taxes for payout: %w", err)
	}
	return t, nil
}

// LogExport records a completed export run.
func (s *Store) LogExport(exporter string, start, end *int64, count int, outputFile string) error {
	_, err := s.db.Exec(
		`INSERT INTO export_log (exporter, start_date, end_date, transaction_count, exported_at, output_file)
		VALUES (?,?,?,?,?,?)`,
		exporter, nullInt(start), nullInt(end), count, domain.NowEpoch(), nullStr(outputFile),
	)
	if err != nil {
		return fmt.Errorf("log export: %w", err)
	}
	return nil
}

// ExportRun is one recorded export run.
type ExportRun struct {
	Exporter   string `json:"exporter"`
	StartDate  *int64 `json:"start_date,omitempty"`
	EndDate    *int64 `json:"end_date,omitempty"`
	Count      int    `json:"transaction_count"`
	ExportedAt int64  `json:"exported_at"`
	OutputFile string `json:"output_file,omitempty"`
}

// ExportRuns returns the recorded runs for an exporter, most recent first.
func (s *Store) ExportRuns(exporter string) ([]ExportRun, error) {
	rows, err := s.db.Query(
		`SELECT exporter, start_date, end_date, transaction_count, exported_at, output_file
		FROM export_log WHERE exporter = ? ORDER BY id DESC`,
		exporter,
	)
	if err != nil {
		return nil, fmt.Errorf("query export runs: %w", err)
	}
	defer rows.Close()

	var runs []ExportRun
	for rows.Next() {
		var run ExportRun
		var start, end sql.NullInt64
		var file sql.NullString
		if err := rows.Scan(&run.Exporter, &start, &end, &run.Count, &run.ExportedAt, &file); err != nil {
			return nil, fmt.Errorf("scan export run: %w", err)
		}
		if start.Valid {
			v := start.Int64
			run.StartDate = &v
		}
		if end.Valid {
			v := end.Int64
			run.EndDate = &v
		}
		run.OutputFile = file.String
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Summary holds aggregate, read-only ledger statistics.
type Summary struct {
	TotalTransactions int                    `json:"total_transactions"`
	CountsByType      map[domain.TxnType]int `json:"counts_by_type"`
	PendingRevenue    int                    `json:"pending_revenue"`
	MinDate           int64                  `json:"min_date,omitempty"`
	MaxDate           int64                  `json:"max_date,omitempty"`
	TotalGross        float64                `json:"total_gross"`
	TotalFees         float64                `json:"total_fees"`
	TotalNet          float64                `json:"total_net"`
}

// Summary computes ledger-wide statistics.
func (s *Store) Summary() (*Summary, error) {
	sum := &Summary{CountsByType: make(map[domain.TxnType]int)}

	rows, err := s.db.Query("SELECT type, COUNT(*) FROM transactions GROUP BY type")
	if err != nil {
		return nil, fmt.Errorf("count by type: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var typ string
		var count int
		if err := rows.Scan(&typ, &count); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		sum.CountsByType[domain.TxnType(typ)] = count
		sum.TotalTransactions += count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	err = s.db.QueryRow(
		"SELECT COUNT(*) FROM transactions WHERE type = 'revenue' AND payout_id IS NULL",
	).Scan(&sum.PendingRevenue)
	if err != nil {
		return nil, fmt.Errorf("pending revenue: %w", err)
	}

	var minDate, maxDate sql.NullInt64
	if err := s.db.QueryRow("SELECT MIN(date), MAX(date) FROM transactions").Scan(&minDate, &maxDate); err != nil {
		return nil, fmt.Errorf("date range: %w", err)
	}
	if minDate.Valid {
		sum.MinDate = minDate.Int64
		sum.MaxDate = maxDate.Int64
	}

	err = s.db.QueryRow(
		`SELECT COALESCE(SUM(gross), 0), COALESCE(SUM(fees), 0), COALESCE(SUM(net), 0)
		FROM transactions WHERE type = 'revenue'`,
	).Scan(&sum.TotalGross, &sum.TotalFees, &sum.TotalNet)
	if err != nil {
		return nil, fmt.Errorf("revenue totals: %w", err)
	}

	return sum, nil
}

// Count returns the total number of transactions.
func (s *Store) Count() (int, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM transactions").Scan(&count)
	return count, err
}

// --- helpers ---

// isDedupViolation reports whether err is a unique-constraint hit on exactly
// the (source, source_id) dedup key. Other constraint failures stay fatal.
func isDedupViolation(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") &&
		strings.Contains(msg, "transactions.source")
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

func nullInt(i *int64) any {
	if i == nil {
		return nil
	}
	return *i
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*domain.Transaction, error) {
	var txn domain.Transaction
	var sourceType, incomeCategory, description, payoutID, transferRef sql.NullString
	var gross, fees sql.NullFloat64
	var availableOn sql.NullInt64
	var typ string

	err := row.Scan(
		&txn.ID, &txn.Source, &txn.SourceID, &sourceType, &txn.Date, &typ,
		&incomeCategory, &description, &gross, &fees, &txn.Net, &txn.Currency,
		&availableOn, &payoutID, &transferRef, &txn.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	txn.Type = domain.TxnType(typ)
	txn.SourceType = sourceType.String
	txn.IncomeCategory = domain.IncomeCategory(incomeCategory.String)
	txn.Description = description.String
	txn.PayoutID = payoutID.String
	txn.TransferRef = transferRef.String
	if gross.Valid {
		v := gross.Float64
		txn.Gross = &v
	}
	if fees.Valid {
		v := fees.Float64
		txn.Fees = &v
	}
	if availableOn.Valid {
		v := availableOn.Int64
		txn.AvailableOn = &v
	}

	return &txn, nil
}

func scanOne(row *sql.Row) (*domain.Transaction, error) {
	txn, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan transaction: %w", err)
	}
	return txn, nil
}

func (s *Store) queryTxns(query string, args ...any) ([]domain.Transaction, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	var txns []domain.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		txns = append(txns, *txn)
	}
	return txns, rows.Err()
}
