// Command book is the bookkeeper CLI: import processor exports into the
// ledger, export journal entries for accounting software, inspect status, or
// serve the read-only API.
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ledgerpress/bookkeeper/internal/api"
	"github.com/ledgerpress/bookkeeper/internal/config"
	"github.com/ledgerpress/bookkeeper/internal/domain"
	"github.com/ledgerpress/bookkeeper/internal/exporter/gnucash"
	"github.com/ledgerpress/bookkeeper/internal/importer/stripe"
	"github.com/ledgerpress/bookkeeper/internal/ledger"
	"github.com/ledgerpress/bookkeeper/internal/logger"
)

const defaultDBPath = "processed/bookkeeper.db"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "import":
		err = cmdImport(os.Args[2:])
	case "export":
		err = cmdExport(os.Args[2:])
	case "status":
		err = cmdStatus(os.Args[2:])
	case "serve":
		err = cmdServe(os.Args[2:])
	default:
		usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `Usage: book <command> [flags]

Commands:
  import <file>   Import a Stripe balance_history CSV into the ledger
  export          Export unexported transactions as GnuCash CSV
  status          Show ledger summary and export backlog
  serve           Serve the read-only ledger API`)
}

func cmdImport(args []string) error {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config.toml (default: search upward)")
	dbPath := fs.String("db", defaultDBPath, "path to the ledger database")
	logLevel := fs.String("log-level", "info", "log level")
	fs.Parse(args)

	if fs.NArg() != 1 {
		return fmt.Errorf("import requires exactly one CSV file argument")
	}

	log := logger.New(*logLevel)

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	db, err := ledger.Open(*dbPath)
	if err != nil {
		return err
	}
	defer db.Close()
	store := ledger.NewStore(db)

	records, err := stripe.ReadCSVFile(fs.Arg(0))
	if err != nil {
		return err
	}

	result, err := stripe.NewService(store, cfg, log).ImportBatch(records)
	if err != nil {
		return err
	}

	fmt.Println("Import complete")
	fmt.Printf("  Imported:             %d\n", result.Imported)
	fmt.Printf("  Skipped (duplicates): %d\n", result.Skipped)
	fmt.Printf("  Errors:               %d\n", result.Errors)
	fmt.Printf("  Linked to payouts:    %d\n", result.Linked)

	if result.Imported > 0 {
		summary, err := store.Summary()
		if err != nil {
			return err
		}
		if summary.TotalTransactions > 0 {
			fmt.Printf("  Date range:           %s to %s\n",
				domain.FormatDate(summary.MinDate), domain.FormatDate(summary.MaxDate))
		}
	}

	if len(result.Orphans) > 0 {
		fmt.Printf("\nWarning: %d revenue transactions have no matching payout yet\n", len(result.Orphans))
		fmt.Printf("  %-12s %10s  %-12s\n", "Date", "Amount", "Available On")
		for i, orphan := range result.Orphans {
			if i == 10 {
				fmt.Printf("  ... and %d more\n", len(result.Orphans)-10)
				break
			}
			gross := 0.0
			if orphan.Gross != nil {
				gross = *orphan.Gross
			}
			fmt.Printf("  %-12s %10.2f  %-12s\n",
				domain.FormatDate(orphan.Date), gross, domain.FormatDate(*orphan.AvailableOn))
		}
	}

	return nil
}

func cmdExport(args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config.toml (default: search upward)")
	dbPath := fs.String("db", defaultDBPath, "path to the ledger database")
	output := fs.String("output", "", "output CSV path (default: exports/gnucash-<date>.csv)")
	startStr := fs.String("start", "", "start date filter (YYYY-MM-DD)")
	endStr := fs.String("end", "", "end date filter (YYYY-MM-DD)")
	noMark := fs.Bool("no-mark", false, "do not mark transactions as exported")
	logLevel := fs.String("log-level", "info", "log level")
	fs.Parse(args)

	log := logger.New(*logLevel)

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	start, err := stripe.ParseOptionalDate(*startStr)
	if err != nil {
		return fmt.Errorf("start: %w", err)
	}
	end, err := stripe.ParseOptionalDate(*endStr)
	if err != nil {
		return fmt.Errorf("end: %w", err)
	}

	outputPath := *output
	if outputPath == "" {
		outputPath = fmt.Sprintf("exports/gnucash-%s.csv", time.Now().UTC().Format("2006-01-02"))
	}

	db, err := ledger.Open(*dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	exporter, err := gnucash.NewExporter(ledger.NewStore(db), cfg, log)
	if err != nil {
		return err
	}

	result, err := exporter.Export(outputPath, start, end, !*noMark)
	if err != nil {
		return err
	}

	fmt.Println("Export complete")
	fmt.Printf("  Entries:       %d\n", result.Total)
	fmt.Printf("  Revenue:       %d\n", result.Revenue)
	fmt.Printf("  Platform fees: %d\n", result.PlatformFee)
	fmt.Printf("  Payouts:       %d\n", result.Payout)
	fmt.Printf("  Skipped:       %d\n", result.Skipped)
	fmt.Printf("  File:          %s\n", result.File)

	return nil
}

func cmdStatus(args []string) error {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	dbPath := fs.String("db", defaultDBPath, "path to the ledger database")
	fs.Parse(args)

	db, err := ledger.Open(*dbPath)
	if err != nil {
		return err
	}
	defer db.Close()
	store := ledger.NewStore(db)

	summary, err := store.Summary()
	if err != nil {
		return err
	}

	fmt.Println("Ledger Summary")
	fmt.Printf("  Total transactions: %d\n", summary.TotalTransactions)
	for _, typ := range []domain.TxnType{
		domain.TypeRevenue, domain.TypePlatformFee, domain.TypePayout,
		domain.TypeRefund, domain.TypeAdjustment,
	} {
		if count := summary.CountsByType[typ]; count > 0 {
			fmt.Printf("  %-18s  %d\n", typ+":", count)
		}
	}
	fmt.Printf("  Pending revenue:    %d\n", summary.PendingRevenue)
	if summary.TotalTransactions > 0 {
		fmt.Printf("  Date range:         %s to %s\n",
			domain.FormatDate(summary.MinDate), domain.FormatDate(summary.MaxDate))
	}
	fmt.Printf("  Total gross:        %.2f\n", summary.TotalGross)
	fmt.Printf("  Total fees:         %.2f\n", summary.TotalFees)
	fmt.Printf("  Total net:          %.2f\n", summary.TotalNet)

	unexported, err := store.Unexported(gnucash.Target, "", nil, nil)
	if err != nil {
		return err
	}
	fmt.Println("\nExport Status")
	if len(unexported) > 0 {
		fmt.Printf("  %d transactions not yet exported\n", len(unexported))
	} else {
		fmt.Println("  All transactions exported")
	}

	return nil
}

func cmdServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	dbPath := fs.String("db", defaultDBPath, "path to the ledger database")
	addr := fs.String("addr", ":8080", "listen address")
	logLevel := fs.String("log-level", "info", "log level")
	fs.Parse(args)

	log := logger.New(*logLevel)

	db, err := ledger.Open(*dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	router := api.NewRouter(ledger.NewStore(db), log)

	log.WithFields(logrus.Fields{"addr": *addr, "db": *dbPath}).Info("serving ledger API")
	return http.ListenAndServe(*addr, router)
}
