// Package api exposes a read-only HTTP view of the ledger for inspection
// while imports and exports stay batch CLI operations.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/ledgerpress/bookkeeper/internal/ledger"
)

// NewRouter creates the chi router with all API routes mounted.
func NewRouter(store *ledger.Store, log *logrus.Logger) http.Handler {
	h := &Handlers{store: store, log: log}

	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.SetHeader("Content-Type", "application/json"))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/summary", h.GetSummary)
		r.Get("/transactions", h.ListTransactions)
		r.Get("/transactions/{id}", h.GetTransaction)
		r.Get("/payouts/{id}/taxes", h.GetPayoutTaxes)
		r.Get("/export/backlog", h.GetExportBacklog)
	})

	return r
}
