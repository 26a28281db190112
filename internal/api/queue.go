package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tillsync/tillsync/internal/app/syncer"
	"github.com/tillsync/tillsync/internal/domain"
)

// ─── Queue & Sale Handlers ──────────────────────────────────────────────────
//
// POST /api/sale              — finalize a sale (immediate or queued)
// POST /api/sync              — trigger a manual sync pass
// GET  /api/queue             — list queued transactions (?status= filter)
// GET  /api/queue/summary     — per-status counts
// GET  /api/queue/{id}        — one queued transaction
// POST /api/queue/{id}/retry  — reset a failed record and re-attempt
// POST /api/queue/purge       — delete all synced records
// GET  /api/status            — terminal status snapshot

// handleSale finalizes a sale.
// POST /api/sale
func (s *Server) handleSale(w http.ResponseWriter, r *http.Request) {
	var draft domain.Draft
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		writeError(w, http.StatusBadRequest, "invalid sale payload: "+err.Error())
		return
	}

	receipt, err := s.submitter.Submit(r.Context(), draft)
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, receipt)
	case errors.Is(err, domain.ErrRejected):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case isValidationError(err):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		// Local persistence failure: the terminal cannot guarantee it
		// will remember the sale. Surface loudly.
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// handleSync triggers one sync pass.
// POST /api/sync
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	report, err := s.engine.SyncAll(r.Context(), syncer.TriggerManual)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, report)
	case errors.Is(err, domain.ErrSyncInProgress):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// handleQueueList lists stored transactions.
// GET /api/queue?status=pending
func (s *Server) handleQueueList(w http.ResponseWriter, r *http.Request) {
	status := domain.Status(r.URL.Query().Get("status"))
	if status != "" && !status.Valid() {
		writeError(w, http.StatusBadRequest, "unknown status filter: "+string(status))
		return
	}

	txs, err := s.inspector.List(status)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if txs == nil {
		txs = []*domain.Transaction{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": txs,
		"count":        len(txs),
	})
}

// handleQueueSummary returns per-status counts.
// GET /api/queue/summary
func (s *Server) handleQueueSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := s.inspector.Summary()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// handleQueueGet returns one stored transaction.
// GET /api/queue/{id}
func (s *Server) handleQueueGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	tx, err := s.inspector.Get(id)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, tx)
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// handleQueueRetry resets a failed record and re-attempts it.
// POST /api/queue/{id}/retry
func (s *Server) handleQueueRetry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	err := s.inspector.RetryOne(r.Context(), id)
	switch {
	case err == nil:
		tx, gerr := s.inspector.Get(id)
		if gerr != nil {
			writeError(w, http.StatusInternalServerError, gerr.Error())
			return
		}
		writeJSON(w, http.StatusOK, tx)
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrNotRetryable):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// handleQueuePurge deletes all synced records.
// POST /api/queue/purge
func (s *Server) handleQueuePurge(w http.ResponseWriter, r *http.Request) {
	n, err := s.inspector.PurgeSynced()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"purged": n})
}

// handleStatus returns a terminal status snapshot.
// GET /api/status
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	sum, err := s.inspector.Summary()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"online":  s.conn.Online(),
		"queue":   sum,
		"version": Version,
	})
}

// isValidationError reports whether err is a construction-time
// invariant violation (bad payload, not a system fault).
func isValidationError(err error) bool {
	for _, target := range []error{
		domain.ErrMissingID, domain.ErrEmptyItems, domain.ErrBadQuantity,
		domain.ErrLineTotalMismatch, domain.ErrTotalMismatch, domain.ErrBadPayment,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
