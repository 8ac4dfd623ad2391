package consent

import "context"

// Store is the purpose/grant ledger consulted before PHI-adjacent operations.
// Absent records deny: HasConsent is false unless a grant is on record.
type Store interface {
	Grant(ctx context.Context, subjectID, purpose string) error
	Revoke(ctx context.Context, subjectID, purpose string) error
	HasConsent(ctx context.Context, subjectID, purpose string) (bool, error)
	ListBySubject(ctx context.Context, subjectID string) ([]Record, error)
}
