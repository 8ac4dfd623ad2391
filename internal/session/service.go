package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"caretrust/internal/rbac"
	"caretrust/internal/session/revocation"
	"caretrust/pkg/platform/sentinel"
)

// ErrReuseDetected marks presentation of a refresh token that was already
// rotated past. The whole family is revoked before this is returned; the
// caller must force the subject to re-authenticate.
var ErrReuseDetected = errors.New("refresh token reuse detected")

// TokenPair is what a caller hands to the client after login or refresh.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	AccessJTI    string
	RefreshJTI   string
	FamilyID     string
}

// Service combines the stateless issuer with a revocation store to enforce
// the rotation policy: one current jti per family, and family-wide revocation
// the moment a retired jti reappears.
type Service struct {
	issuer   *Issuer
	families revocation.Store
	log      zerolog.Logger
}

func NewService(issuer *Issuer, families revocation.Store, log zerolog.Logger) *Service {
	return &Service{issuer: issuer, families: families, log: log}
}

// Issuer exposes the underlying issuer for verification-only callers.
func (s *Service) Issuer() *Issuer {
	return s.issuer
}

// Login issues an access token and the first refresh token of a new family.
func (s *Service) Login(ctx context.Context, subject string, role rbac.Role, deviceID string) (TokenPair, error) {
	access, accessJTI, err := s.issuer.AccessToken(subject, role, deviceID)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := s.issuer.RefreshToken(subject, "")
	if err != nil {
		return TokenPair{}, err
	}
	if err := s.families.Bind(ctx, refresh.FamilyID, refresh.JTI, s.issuer.refreshTTL); err != nil {
		return TokenPair{}, fmt.Errorf("bind refresh family: %w", err)
	}
	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh.Token,
		AccessJTI:    accessJTI,
		RefreshJTI:   refresh.JTI,
		FamilyID:     refresh.FamilyID,
	}, nil
}

// Refresh rotates the presented refresh token and issues a new access token
// for the same subject. A retired jti triggers family-wide revocation and
// ErrReuseDetected; a revoked family rejects with ErrTokenInvalid.
func (s *Service) Refresh(ctx context.Context, oldToken string, role rbac.Role, deviceID string) (TokenPair, error) {
	claims, err := s.issuer.VerifyRefresh(oldToken)
	if err != nil {
		return TokenPair{}, err
	}

	revoked, err := s.families.IsFamilyRevoked(ctx, claims.FamilyID)
	if err != nil {
		return TokenPair{}, fmt.Errorf("check family revocation: %w", err)
	}
	if revoked {
		return TokenPair{}, fmt.Errorf("family revoked: %w", ErrTokenInvalid)
	}

	current, err := s.families.Current(ctx, claims.FamilyID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			// No family state: issued before this store existed or the
			// state expired with the tokens. Fail closed.
			return TokenPair{}, fmt.Errorf("unknown family: %w", ErrTokenInvalid)
		}
		return TokenPair{}, err
	}

	if current != claims.ID {
		// A superseded token came back: someone is replaying a stolen
		// credential. Kill the whole family.
		if err := s.families.RevokeFamily(ctx, claims.FamilyID, s.issuer.refreshTTL); err != nil {
			s.log.Error().Err(err).Str("family_id", claims.FamilyID).Msg("family revocation failed after reuse")
		}
		s.log.Warn().
			Str("family_id", claims.FamilyID).
			Str("presented_jti", claims.ID).
			Msg("refresh token reuse detected")
		return TokenPair{}, ErrReuseDetected
	}

	rotation, err := s.issuer.Rotate(oldToken)
	if err != nil {
		return TokenPair{}, err
	}
	if err := s.families.Advance(ctx, claims.FamilyID, rotation.JTI, s.issuer.refreshTTL); err != nil {
		return TokenPair{}, fmt.Errorf("advance refresh family: %w", err)
	}

	access, accessJTI, err := s.issuer.AccessToken(claims.Subject, role, deviceID)
	if err != nil {
		return TokenPair{}, err
	}

	return TokenPair{
		AccessToken:  access,
		RefreshToken: rotation.Token,
		AccessJTI:    accessJTI,
		RefreshJTI:   rotation.JTI,
		FamilyID:     rotation.FamilyID,
	}, nil
}

// Logout revokes the family named by the presented refresh token.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	claims, err := s.issuer.VerifyRefresh(refreshToken)
	if err != nil {
		return err
	}
	return s.families.RevokeFamily(ctx, claims.FamilyID, s.issuer.refreshTTL)
}
