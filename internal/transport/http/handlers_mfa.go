package httptransport

import (
	"net/http"

	"caretrust/internal/mfa"
)

type mfaEnrollRequest struct {
	Account string `json:"account"`
}

func (h *Handler) handleMFAEnroll(w http.ResponseWriter, r *http.Request) {
	var req mfaEnrollRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Account == "" {
		writeErrorCode(w, http.StatusBadRequest, "account_required")
		return
	}

	enrollment, err := mfa.Enroll(h.issuer, req.Account)
	if err != nil {
		h.log.Error().Err(err).Msg("mfa enrollment failed")
		writeErrorCode(w, http.StatusInternalServerError, "internal")
		return
	}
	codes, err := mfa.GenerateBackupCodes(10)
	if err != nil {
		writeErrorCode(w, http.StatusInternalServerError, "internal")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"secret":      enrollment.Secret,
		"keyUri":      enrollment.KeyURI,
		"backupCodes": codes,
	})
}

type mfaVerifyRequest struct {
	Secret string `json:"secret"`
	Code   string `json:"code"`
}

func (h *Handler) handleMFAVerify(w http.ResponseWriter, r *http.Request) {
	var req mfaVerifyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"valid": mfa.Verify(req.Secret, req.Code)})
}
