package httptransport

import (
	"net/http"

	"caretrust/internal/audit"
	"caretrust/internal/crypto"
)

type encryptRequest struct {
	Actor     string `json:"actor"`
	Plaintext string `json:"plaintext"`
	AAD       string `json:"aad,omitempty"`
	Resource  string `json:"resource,omitempty"`
}

func (h *Handler) handleEncrypt(w http.ResponseWriter, r *http.Request) {
	var req encryptRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Actor == "" {
		writeErrorCode(w, http.StatusBadRequest, "actor_required")
		return
	}

	payload, err := h.enc.Encrypt(r.Context(), []byte(req.Plaintext), aadBytes(req.AAD))
	if err != nil {
		writeError(w, err)
		return
	}
	h.metrics.EncryptOps.Inc()

	if _, err := h.emitAudit(r.Context(), r, audit.Event{
		Actor:    req.Actor,
		Action:   audit.ActionFieldEncrypted,
		Resource: req.Resource,
		PHI:      true,
		Metadata: map[string]any{"keyId": payload.KeyID},
	}); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, payload)
}

type decryptRequest struct {
	Actor    string         `json:"actor"`
	Payload  crypto.Payload `json:"payload"`
	AAD      string         `json:"aad,omitempty"`
	Resource string         `json:"resource,omitempty"`
}

func (h *Handler) handleDecrypt(w http.ResponseWriter, r *http.Request) {
	var req decryptRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Actor == "" {
		writeErrorCode(w, http.StatusBadRequest, "actor_required")
		return
	}

	plaintext, err := h.enc.Decrypt(r.Context(), &req.Payload, aadBytes(req.AAD))
	h.metrics.DecryptOps.Inc()
	if err != nil {
		h.metrics.DecryptFailures.Inc()
		// Failed reveals are audited too: a stream of authentication
		// failures against PHI fields is a probe.
		if _, auditErr := h.emitAudit(r.Context(), r, audit.Event{
			Actor:    req.Actor,
			Action:   audit.ActionFieldRevealed,
			Resource: req.Resource,
			Outcome:  audit.OutcomeFailure,
			PHI:      true,
			Reason:   "decryption rejected",
			Metadata: map[string]any{"keyId": req.Payload.KeyID},
		}); auditErr != nil {
			writeError(w, auditErr)
			return
		}
		writeError(w, err)
		return
	}

	if _, err := h.emitAudit(r.Context(), r, audit.Event{
		Actor:    req.Actor,
		Action:   audit.ActionFieldRevealed,
		Resource: req.Resource,
		PHI:      true,
		Metadata: map[string]any{"keyId": req.Payload.KeyID},
	}); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"plaintext": string(plaintext)})
}

func (h *Handler) handleKeyList(w http.ResponseWriter, r *http.Request) {
	ids, err := h.keys.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"keyIds": ids})
}

type keyRotateRequest struct {
	Actor string `json:"actor"`
}

func (h *Handler) handleKeyRotate(w http.ResponseWriter, r *http.Request) {
	var req keyRotateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Actor == "" {
		writeErrorCode(w, http.StatusBadRequest, "actor_required")
		return
	}

	key, err := h.keys.Rotate(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	h.metrics.KeyRotations.Inc()

	if _, err := h.emitAudit(r.Context(), r, audit.Event{
		Actor:    req.Actor,
		Action:   audit.ActionKeyRotated,
		Metadata: map[string]any{"keyId": key.ID},
	}); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"keyId": key.ID})
}

func aadBytes(s string) []byte {
	if s == "" {
		return nil
	}
	return []byte(s)
}
