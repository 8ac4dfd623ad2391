package audit

import (
	"encoding/json"
	"errors"
)

// Outcome classifies how the recorded action ended.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// Well-known action names emitted by the core itself. Callers may record any
// action string; these exist so emit sites and dashboards agree on spelling.
const (
	ActionTokenIssued    = "token_issued"
	ActionTokenRefreshed = "token_refreshed"
	ActionTokenReuse     = "token_reuse_detected"
	ActionKeyRotated     = "encryption_key_rotated"
	ActionFieldEncrypted = "field_encrypted"
	ActionFieldRevealed  = "field_revealed"
	ActionConsentGranted = "consent_granted"
	ActionConsentRevoked = "consent_revoked"
	ActionConsentChecked = "consent_checked"
	ActionAccessChecked  = "access_checked"
)

// Event captures a single sensitive action. Events are immutable once sealed
// into the chain; optional fields stay off the wire when empty so the
// canonical byte form is stable.
//
// Field order matters: the canonical (pre-hash) serialization is the JSON
// encoding of this struct in declaration order. Reordering fields breaks
// verification of previously written logs.
type Event struct {
	ID        string         `json:"id"`
	TS        int64          `json:"ts"` // unix milliseconds
	Actor     string         `json:"actor"`
	Action    string         `json:"action"`
	Resource  string         `json:"resource,omitempty"`
	Subject   string         `json:"subject,omitempty"`
	Outcome   Outcome        `json:"outcome"`
	PHI       bool           `json:"phi"`
	Reason    string         `json:"reason,omitempty"`
	IP        string         `json:"ip,omitempty"`
	UserAgent string         `json:"userAgent,omitempty"`
	Metadata  map[string]any `json:"metadata"`
}

// Record is one persisted log line: the sealed event plus its chain link.
// PrevHash/Hash/HMAC are never part of the canonical byte form.
type Record struct {
	Event
	PrevHash string `json:"prevHash"`
	Hash     string `json:"hash"`
	HMAC     string `json:"hmac"`
}

// ErrInvalidEvent is returned when an event is missing required fields.
var ErrInvalidEvent = errors.New("audit event requires actor and action")

// Validate checks the fields a caller must supply. Defaults for the rest are
// filled at sealing time.
func (e *Event) Validate() error {
	if e.Actor == "" || e.Action == "" {
		return ErrInvalidEvent
	}
	if e.Outcome != "" && e.Outcome != OutcomeSuccess && e.Outcome != OutcomeFailure {
		return errors.New("audit event outcome must be success or failure")
	}
	return nil
}

// canonicalBytes returns the deterministic byte form hashed into the chain.
// It covers semantic fields only.
func canonicalBytes(e Event) ([]byte, error) {
	return json.Marshal(e)
}
