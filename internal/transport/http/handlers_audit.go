package httptransport

import (
	"errors"
	"net/http"
	"time"

	"caretrust/internal/audit"
)

func (h *Handler) handleAuditRecord(w http.ResponseWriter, r *http.Request) {
	var ev audit.Event
	if !decodeJSON(w, r, &ev) {
		return
	}

	rec, err := h.emitAudit(r.Context(), r, ev)
	if err != nil {
		h.log.Error().Err(err).Msg("audit record failed")
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{
		"id":   rec.ID,
		"hash": rec.Hash,
	})
}

func (h *Handler) handleAuditVerify(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	report, err := audit.VerifyChain(h.chain.Path, h.chain.Secret)
	h.metrics.ChainVerifyMs.Observe(float64(time.Since(start).Microseconds()) / 1000.0)

	if err != nil {
		var integrity *audit.IntegrityError
		if errors.As(err, &integrity) {
			h.log.Warn().Int("line", integrity.Line).Msg("audit chain integrity violation")
			// The report carries the violation position; a tampered log
			// is a finding, not a transport failure.
			writeJSON(w, http.StatusOK, report)
			return
		}
		h.log.Error().Err(err).Msg("audit chain verification failed")
		writeErrorCode(w, http.StatusInternalServerError, "verify_failed")
		return
	}

	writeJSON(w, http.StatusOK, report)
}

func (h *Handler) handleAuditList(w http.ResponseWriter, r *http.Request) {
	actor := r.URL.Query().Get("actor")
	if actor == "" {
		writeErrorCode(w, http.StatusBadRequest, "actor_required")
		return
	}
	records, err := h.auditor.ListByActor(r.Context(), actor)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": records})
}
