package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/ledgerpress/bookkeeper/internal/domain"
	"github.com/ledgerpress/bookkeeper/internal/ledger"
)

// Handlers groups all HTTP handler methods and their dependencies.
type Handlers struct {
	store *ledger.Store
	log   *logrus.Logger
}

// --- helpers ---

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.WithError(err).Error("encode response")
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, map[string]string{"error": msg})
}

// parseDate accepts a YYYY-MM-DD query value and returns UTC-midnight epoch
// seconds, or nil when absent or unparseable.
func parseDate(s string) *int64 {
	if s == "" {
		return nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil
	}
	epoch := t.Unix()
	return &epoch
}

// --- handlers ---

func (h *Handlers) GetSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.store.Summary()
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, summary)
}

func (h *Handlers) ListTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	start := parseDate(q.Get("start"))
	end := parseDate(q.Get("end"))

	// Default to the full epoch range when no bounds are given.
	var startAt, endAt int64 = 0, time.Now().UTC().Unix()
	if start != nil {
		startAt = *start
	}
	if end != nil {
		endAt = *end
	}

	txns, err := h.store.ByDateRange(startAt, endAt, domain.TxnType(q.Get("type")))
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"total":        len(txns),
		"transactions": txns,
	})
}

func (h *Handlers) GetTransaction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	txn, err := h.store.Get(id)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if txn == nil {
		h.writeError(w, http.StatusNotFound, "transaction not found")
		return
	}

	resp := map[string]any{"transaction": txn}
	if txn.Type == domain.TypeRevenue {
		calc, err := h.store.TaxCalculation(txn.ID)
		if err != nil {
			h.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if calc != nil {
			resp["tax_calculation"] = calc
		}
	}

	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) GetPayoutTaxes(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	txn, err := h.store.Get(id)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if txn == nil || txn.Type != domain.TypePayout {
		h.writeError(w, http.StatusNotFound, "payout not found")
		return
	}

	taxes, err := h.store.TaxesForPayout(txn.ID)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	links, err := h.store.Links(txn.ID)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"payout_id":    txn.ID,
		"taxes":        taxes,
		"linked_count": len(links),
	})
}

func (h *Handlers) GetExportBacklog(w http.ResponseWriter, r *http.Request) {
	target := r.URL.Query().Get("target")
	if target == "" {
		target = "gnucash"
	}

	txns, err := h.store.Unexported(target, "", nil, nil)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	counts := make(map[domain.TxnType]int)
	for _, txn := range txns {
		counts[txn.Type]++
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"target":         target,
		"pending":        len(txns),
		"counts_by_type": counts,
	})
}
