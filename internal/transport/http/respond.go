package httptransport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mssola/useragent"

	"caretrust/internal/audit"
	"caretrust/internal/crypto"
	"caretrust/internal/session"
	"caretrust/pkg/platform/sentinel"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErrorCode(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}

// writeError translates domain errors into consistent JSON error envelopes.
// Callers branch on kind, so the code strings are part of the contract.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrReuseDetected):
		writeErrorCode(w, http.StatusUnauthorized, "reuse_detected")
	case errors.Is(err, session.ErrTokenExpired):
		writeErrorCode(w, http.StatusUnauthorized, "token_expired")
	case errors.Is(err, session.ErrTokenInvalid):
		writeErrorCode(w, http.StatusUnauthorized, "token_invalid")
	case errors.Is(err, crypto.ErrKeyNotFound):
		writeErrorCode(w, http.StatusNotFound, "key_not_found")
	case errors.Is(err, crypto.ErrAuthentication):
		writeErrorCode(w, http.StatusBadRequest, "authentication_failed")
	case errors.Is(err, audit.ErrInvalidEvent):
		writeErrorCode(w, http.StatusBadRequest, "invalid_event")
	case errors.Is(err, sentinel.ErrNotFound):
		writeErrorCode(w, http.StatusNotFound, "not_found")
	default:
		writeErrorCode(w, http.StatusInternalServerError, "internal")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeErrorCode(w, http.StatusBadRequest, "malformed_json")
		return false
	}
	return true
}

// deviceLabel condenses a User-Agent header into a short human-readable
// device description for audit metadata.
func deviceLabel(uaHeader string) string {
	if uaHeader == "" {
		return ""
	}
	ua := useragent.New(uaHeader)
	name, version := ua.Browser()
	label := name
	if version != "" {
		label += " " + version
	}
	if os := ua.OS(); os != "" {
		label += " on " + os
	}
	return label
}

// emitAudit seals an event enriched with request network metadata. Audit
// append failures fail the request: a sensitive action without its record
// must not be reported as success.
func (h *Handler) emitAudit(ctx context.Context, r *http.Request, ev audit.Event) (audit.Record, error) {
	if ev.IP == "" {
		ev.IP = r.RemoteAddr
	}
	if ev.UserAgent == "" {
		ev.UserAgent = r.UserAgent()
	}
	if label := deviceLabel(r.UserAgent()); label != "" {
		if ev.Metadata == nil {
			ev.Metadata = map[string]any{}
		}
		if _, exists := ev.Metadata["device"]; !exists {
			ev.Metadata["device"] = label
		}
	}
	rec, err := h.auditor.Emit(ctx, ev)
	if err != nil {
		h.metrics.AuditAppends.WithLabelValues("error").Inc()
		return audit.Record{}, err
	}
	h.metrics.AuditAppends.WithLabelValues("ok").Inc()
	return rec, nil
}
