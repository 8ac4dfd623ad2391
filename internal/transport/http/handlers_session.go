package httptransport

import (
	"errors"
	"net/http"

	"caretrust/internal/audit"
	"caretrust/internal/rbac"
	"caretrust/internal/session"
)

type loginRequest struct {
	Subject  string `json:"subject"`
	Role     string `json:"role"`
	DeviceID string `json:"deviceId,omitempty"`
}

type tokenResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	FamilyID     string `json:"familyId"`
	RefreshJTI   string `json:"refreshJti"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Subject == "" || req.Role == "" {
		writeErrorCode(w, http.StatusBadRequest, "subject_and_role_required")
		return
	}

	pair, err := h.sessions.Login(r.Context(), req.Subject, rbac.Role(req.Role), req.DeviceID)
	if err != nil {
		h.log.Error().Err(err).Msg("token issuance failed")
		writeError(w, err)
		return
	}
	h.metrics.TokensIssued.WithLabelValues("access").Inc()
	h.metrics.TokensIssued.WithLabelValues("refresh").Inc()

	if _, err := h.emitAudit(r.Context(), r, audit.Event{
		Actor:    req.Subject,
		Action:   audit.ActionTokenIssued,
		Metadata: map[string]any{"familyId": pair.FamilyID},
	}); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		FamilyID:     pair.FamilyID,
		RefreshJTI:   pair.RefreshJTI,
	})
}

type rotateRequest struct {
	RefreshToken string `json:"refreshToken"`
	Role         string `json:"role"`
	DeviceID     string `json:"deviceId,omitempty"`
}

func (h *Handler) handleRotate(w http.ResponseWriter, r *http.Request) {
	var req rotateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.RefreshToken == "" {
		writeErrorCode(w, http.StatusBadRequest, "refresh_token_required")
		return
	}

	pair, err := h.sessions.Refresh(r.Context(), req.RefreshToken, rbac.Role(req.Role), req.DeviceID)
	if err != nil {
		if errors.Is(err, session.ErrReuseDetected) {
			// The family is already revoked; make sure the theft signal
			// lands in the chain before answering.
			if _, auditErr := h.emitAudit(r.Context(), r, audit.Event{
				Actor:   "unknown",
				Action:  audit.ActionTokenReuse,
				Outcome: audit.OutcomeFailure,
				Reason:  "retired refresh token presented",
			}); auditErr != nil {
				writeError(w, auditErr)
				return
			}
		} else {
			h.metrics.TokenRejections.Inc()
		}
		writeError(w, err)
		return
	}
	h.metrics.TokensIssued.WithLabelValues("access").Inc()
	h.metrics.TokensIssued.WithLabelValues("refresh").Inc()

	if _, err := h.emitAudit(r.Context(), r, audit.Event{
		Actor:    subjectOf(h.sessions, pair.RefreshToken),
		Action:   audit.ActionTokenRefreshed,
		Metadata: map[string]any{"familyId": pair.FamilyID},
	}); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		FamilyID:     pair.FamilyID,
		RefreshJTI:   pair.RefreshJTI,
	})
}

type verifyTokenRequest struct {
	Token string `json:"token"`
	Kind  string `json:"kind"` // "access" or "refresh"
}

func (h *Handler) handleVerifyToken(w http.ResponseWriter, r *http.Request) {
	var req verifyTokenRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	switch req.Kind {
	case "refresh":
		claims, err := h.sessions.Issuer().VerifyRefresh(req.Token)
		if err != nil {
			h.metrics.TokenRejections.Inc()
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"sub":      claims.Subject,
			"familyId": claims.FamilyID,
			"jti":      claims.ID,
		})
	default:
		claims, err := h.sessions.Issuer().VerifyAccess(req.Token)
		if err != nil {
			h.metrics.TokenRejections.Inc()
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"sub":      claims.Subject,
			"role":     claims.Role,
			"deviceId": claims.DeviceID,
			"jti":      claims.ID,
		})
	}
}

type logoutRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	var req logoutRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.sessions.Logout(r.Context(), req.RefreshToken); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// subjectOf extracts the subject from a just-issued refresh token. The token
// was signed moments ago, so failures here mean a programming error; fall
// back to an opaque actor rather than dropping the audit record.
func subjectOf(s *session.Service, refreshToken string) string {
	claims, err := s.Issuer().VerifyRefresh(refreshToken)
	if err != nil {
		return "unknown"
	}
	return claims.Subject
}
