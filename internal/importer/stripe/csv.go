package stripe

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
)

// Column headers of a Stripe balance_history.csv export.
const (
	colID          = "id"
	colType        = "Type"
	colDescription = "Description"
	colAmount      = "Amount"
	colFee         = "Fee"
	colNet         = "Net"
	colCurrency    = "Currency"
	colCreated     = "Created (UTC)"
	colAvailable   = "Available On (UTC)"
	colTransfer    = "Transfer"
)

// ReadCSV reads raw records from a balance_history export. Rows are returned
// as-is; normalization and per-record validation happen at import time.
func ReadCSV(r io.Reader) ([]Record, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(name)] = i
	}
	for _, required := range []string{colID, colType, colAmount, colFee, colNet, colCurrency, colCreated} {
		if _, ok := index[required]; !ok {
			return nil, fmt.Errorf("missing column %q", required)
		}
	}

	field := func(row []string, name string) string {
		i, ok := index[name]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}

	var records []Record
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}

		records = append(records, Record{
			ID:            field(row, colID),
			Type:          field(row, colType),
			Description:   field(row, colDescription),
			Amount:        field(row, colAmount),
			Fee:           field(row, colFee),
			Net:           field(row, colNet),
			Currency:      field(row, colCurrency),
			CreatedDate:   field(row, colCreated),
			AvailableDate: field(row, colAvailable),
			Transfer:      field(row, colTransfer),
		})
	}

	return records, nil
}

// ReadCSVFile is ReadCSV over a file on disk.
func ReadCSVFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return ReadCSV(f)
}
