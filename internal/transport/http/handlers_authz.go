package httptransport

import (
	"net/http"

	"caretrust/internal/audit"
	"caretrust/internal/rbac"
)

type authzCheckRequest struct {
	ActorID    string `json:"actorId"`
	Role       string `json:"role"`
	Permission string `json:"permission"`
	OwnerID    string `json:"ownerId,omitempty"`
	Resource   string `json:"resource,omitempty"`
}

type authzCheckResponse struct {
	Allowed bool `json:"allowed"`
	Owner   bool `json:"owner"`
}

// handleAuthzCheck answers a role/permission check. Denial is a normal
// outcome, never an error status: callers combine the role answer with the
// ownership predicate per their own policy.
func (h *Handler) handleAuthzCheck(w http.ResponseWriter, r *http.Request) {
	var req authzCheckRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ActorID == "" || req.Permission == "" {
		writeErrorCode(w, http.StatusBadRequest, "actor_and_permission_required")
		return
	}

	allowed := h.authz.Can(rbac.Role(req.Role), rbac.Permission(req.Permission))
	owner := req.OwnerID != "" && rbac.IsOwner(req.ActorID, req.OwnerID)

	result := "denied"
	outcome := audit.OutcomeFailure
	if allowed {
		result = "allowed"
		outcome = audit.OutcomeSuccess
	}
	h.metrics.AuthzDecisions.WithLabelValues(result).Inc()

	if _, err := h.emitAudit(r.Context(), r, audit.Event{
		Actor:    req.ActorID,
		Action:   audit.ActionAccessChecked,
		Resource: req.Resource,
		Outcome:  outcome,
		Metadata: map[string]any{
			"role":       req.Role,
			"permission": req.Permission,
		},
	}); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, authzCheckResponse{Allowed: allowed, Owner: owner})
}
