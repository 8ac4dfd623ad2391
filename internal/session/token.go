package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"caretrust/internal/rbac"
)

// Typed rejections for bearer tokens. Any malformed, expired, or
// signature-invalid token yields one of these; there is no partial identity.
var (
	ErrTokenInvalid = errors.New("token invalid")
	ErrTokenExpired = errors.New("token expired")
)

// AccessClaims bind a subject and role for the access token lifetime.
type AccessClaims struct {
	Role     string `json:"role"`
	DeviceID string `json:"deviceId,omitempty"`
	jwt.RegisteredClaims
}

// RefreshClaims bind a subject to a rotation family. Every issuance in the
// family carries a fresh jti; at most one jti per family is current.
type RefreshClaims struct {
	FamilyID string `json:"familyId"`
	jwt.RegisteredClaims
}

// RefreshToken is the result of one refresh issuance.
type RefreshToken struct {
	Token    string
	JTI      string
	FamilyID string
}

// Rotation is the result of retiring one refresh token for its successor.
type Rotation struct {
	RefreshToken
	RetiredJTI string
}

// Issuer signs and verifies session tokens. It is stateless: family
// bookkeeping lives in the token claims, and reuse detection is enforced by
// callers against a revocation store. Secrets are read-only after
// construction, so the issuer is safe for concurrent use.
type Issuer struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

func NewIssuer(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) *Issuer {
	if accessTTL <= 0 {
		accessTTL = 15 * time.Minute
	}
	if refreshTTL <= 0 {
		refreshTTL = 30 * 24 * time.Hour
	}
	return &Issuer{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
	}
}

// AccessToken issues a short-lived signed token binding subject and role.
// Returns the token and its jti.
func (i *Issuer) AccessToken(subject string, role rbac.Role, deviceID string) (string, string, error) {
	now := time.Now()
	jti := uuid.NewString()
	claims := AccessClaims{
		Role:     string(role),
		DeviceID: deviceID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.accessTTL)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.accessSecret)
	if err != nil {
		return "", "", fmt.Errorf("sign access token: %w", err)
	}
	return token, jti, nil
}

// RefreshToken issues a long-lived signed token in the given rotation family.
// An empty familyID starts a new family (first issuance in a new chain).
func (i *Issuer) RefreshToken(subject, familyID string) (RefreshToken, error) {
	if familyID == "" {
		familyID = uuid.NewString()
	}
	now := time.Now()
	jti := uuid.NewString()
	claims := RefreshClaims{
		FamilyID: familyID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.refreshTTL)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.refreshSecret)
	if err != nil {
		return RefreshToken{}, fmt.Errorf("sign refresh token: %w", err)
	}
	return RefreshToken{Token: token, JTI: jti, FamilyID: familyID}, nil
}

// Rotate verifies the presented refresh token and issues its successor in the
// same family, reporting the retired jti. Callers must advance their family
// bookkeeping with the retired and new identifiers; presenting a jti that was
// already rotated past is the caller's reuse signal.
func (i *Issuer) Rotate(oldToken string) (Rotation, error) {
	claims, err := i.VerifyRefresh(oldToken)
	if err != nil {
		return Rotation{}, err
	}
	next, err := i.RefreshToken(claims.Subject, claims.FamilyID)
	if err != nil {
		return Rotation{}, err
	}
	return Rotation{RefreshToken: next, RetiredJTI: claims.ID}, nil
}

// VerifyAccess validates signature and expiry of an access token.
func (i *Issuer) VerifyAccess(token string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := i.parse(token, claims, i.accessSecret); err != nil {
		return nil, err
	}
	return claims, nil
}

// VerifyRefresh validates signature and expiry of a refresh token.
func (i *Issuer) VerifyRefresh(token string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := i.parse(token, claims, i.refreshSecret); err != nil {
		return nil, err
	}
	return claims, nil
}

func (i *Issuer) parse(token string, claims jwt.Claims, secret []byte) error {
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrTokenExpired
		}
		return fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if !parsed.Valid {
		return ErrTokenInvalid
	}
	return nil
}
