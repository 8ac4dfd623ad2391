package httptransport

import (
	"net/http"

	"caretrust/internal/audit"
)

type consentRequest struct {
	ActorID   string `json:"actorId"`
	SubjectID string `json:"subjectId"`
	Purpose   string `json:"purpose"`
}

func (c consentRequest) valid() bool {
	return c.ActorID != "" && c.SubjectID != "" && c.Purpose != ""
}

func (h *Handler) handleConsentGrant(w http.ResponseWriter, r *http.Request) {
	h.handleConsentChange(w, r, true)
}

func (h *Handler) handleConsentRevoke(w http.ResponseWriter, r *http.Request) {
	h.handleConsentChange(w, r, false)
}

func (h *Handler) handleConsentChange(w http.ResponseWriter, r *http.Request, grant bool) {
	var req consentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !req.valid() {
		writeErrorCode(w, http.StatusBadRequest, "actor_subject_purpose_required")
		return
	}

	var err error
	action := audit.ActionConsentRevoked
	if grant {
		action = audit.ActionConsentGranted
		err = h.consents.Grant(r.Context(), req.SubjectID, req.Purpose)
	} else {
		err = h.consents.Revoke(r.Context(), req.SubjectID, req.Purpose)
	}
	if err != nil {
		h.log.Error().Err(err).Msg("consent update failed")
		writeError(w, err)
		return
	}

	if _, err := h.emitAudit(r.Context(), r, audit.Event{
		Actor:    req.ActorID,
		Action:   action,
		Subject:  req.SubjectID,
		Metadata: map[string]any{"purpose": req.Purpose},
	}); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleConsentCheck(w http.ResponseWriter, r *http.Request) {
	subjectID := r.URL.Query().Get("subject")
	purpose := r.URL.Query().Get("purpose")
	if subjectID == "" || purpose == "" {
		writeErrorCode(w, http.StatusBadRequest, "subject_and_purpose_required")
		return
	}

	granted, err := h.consents.HasConsent(r.Context(), subjectID, purpose)
	if err != nil {
		writeError(w, err)
		return
	}

	result := "denied"
	if granted {
		result = "granted"
	}
	h.metrics.ConsentDecisions.WithLabelValues(result).Inc()

	writeJSON(w, http.StatusOK, map[string]bool{"granted": granted})
}
