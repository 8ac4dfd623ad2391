package consent

import "time"

// Record captures a subject's last decision for one processing purpose.
// Records are keyed (subject, purpose) and last-write-wins; no history is
// retained at this layer — the audit chain is the history.
type Record struct {
	SubjectID string    `json:"subjectId"`
	Purpose   string    `json:"purpose"`
	Granted   bool      `json:"granted"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Purposes the platform consults before PHI-adjacent operations. The purpose
// space is open; these are the spellings the core itself uses.
const (
	PurposeVitalsSharing = "vitals_sharing"
	PurposeMedsSharing   = "meds_sharing"
	PurposeCareReports   = "care_reports"
)
