package httptransport

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caretrust/internal/audit"
	"caretrust/internal/audit/archive"
	"caretrust/internal/consent"
	"caretrust/internal/crypto"
	"caretrust/internal/platform/metrics"
	"caretrust/internal/rbac"
	"caretrust/internal/session"
	"caretrust/internal/session/revocation"
)

// Prometheus collectors register globally, so the test binary shares one set.
var testMetrics = metrics.New()

const testChainSecret = "k"

type fixture struct {
	router    http.Handler
	chainPath string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	chainPath := filepath.Join(t.TempDir(), "audit.log")
	chain, err := audit.OpenChainLogger(chainPath, testChainSecret)
	require.NoError(t, err)
	t.Cleanup(func() { chain.Close() })

	keys, err := crypto.NewInMemoryKeyStore()
	require.NoError(t, err)

	issuer := session.NewIssuer("access-secret", "refresh-secret", 15*time.Minute, time.Hour)

	h := NewHandler(Deps{
		Log:       zerolog.Nop(),
		Metrics:   testMetrics,
		Auditor:   audit.NewPublisher(chain, archive.NewInMemoryStore(), zerolog.Nop()),
		Chain:     ChainRef{Path: chainPath, Secret: testChainSecret},
		Keys:      keys,
		Encryptor: crypto.NewEncryptor(keys),
		Authz:     rbac.NewDefault(),
		Sessions:  session.NewService(issuer, revocation.NewInMemoryStore(), zerolog.Nop()),
		Consents:  consent.NewInMemoryStore(),
		MFAIssuer: "caretrust",
	})

	return &fixture{router: NewRouter(h), chainPath: chainPath}
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 Chrome/120.0 Safari/537.36")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(rec.Body).Decode(v))
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuditRecordAndVerifyEndToEnd(t *testing.T) {
	f := newFixture(t)

	for _, action := range []string{"profile_viewed", "vitals_written", "meds_viewed"} {
		rec := f.do(t, http.MethodPost, "/audit/events", map[string]any{
			"actor":  "caregiver-1",
			"action": action,
			"phi":    true,
		})
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := f.do(t, http.MethodPost, "/audit/verify", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var report audit.Report
	decodeBody(t, rec, &report)
	assert.True(t, report.OK)
	assert.Equal(t, 3, report.Count)

	// Retroactively edit the second record's action on disk.
	raw, err := os.ReadFile(f.chainPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(raw), "\n"), "\n")
	var obj map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &obj))
	obj["action"] = "nothing_to_see"
	edited, err := json.Marshal(obj)
	require.NoError(t, err)
	lines[1] = string(edited)
	require.NoError(t, os.WriteFile(f.chainPath, []byte(strings.Join(lines, "\n")+"\n"), 0o640))

	rec = f.do(t, http.MethodPost, "/audit/verify", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeBody(t, rec, &report)
	assert.False(t, report.OK)
	assert.Equal(t, 2, report.ErrorLine)
	assert.Equal(t, 1, report.Count)
}

func TestAuditRecordRejectsMissingActor(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/audit/events", map[string]any{"action": "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEncryptDecryptOverHTTP(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/crypto/encrypt", map[string]any{
		"actor":     "caregiver-1",
		"plaintext": "bp 120/80",
		"aad":       "elder-1:vitals",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var payload crypto.Payload
	decodeBody(t, rec, &payload)
	assert.Equal(t, crypto.AlgAES256GCM, payload.Alg)

	rec = f.do(t, http.MethodPost, "/crypto/decrypt", map[string]any{
		"actor":   "caregiver-1",
		"payload": payload,
		"aad":     "elder-1:vitals",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var out map[string]string
	decodeBody(t, rec, &out)
	assert.Equal(t, "bp 120/80", out["plaintext"])

	// Wrong associated data fails closed.
	rec = f.do(t, http.MethodPost, "/crypto/decrypt", map[string]any{
		"actor":   "caregiver-1",
		"payload": payload,
		"aad":     "elder-2:vitals",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var errBody map[string]string
	decodeBody(t, rec, &errBody)
	assert.Equal(t, "authentication_failed", errBody["error"])
}

func TestKeyRotationOverHTTP(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/crypto/encrypt", map[string]any{
		"actor":     "admin-1",
		"plaintext": "old secret",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var before crypto.Payload
	decodeBody(t, rec, &before)

	rec = f.do(t, http.MethodPost, "/crypto/keys/rotate", map[string]any{"actor": "admin-1"})
	require.Equal(t, http.StatusOK, rec.Code)
	var rotated map[string]string
	decodeBody(t, rec, &rotated)
	assert.NotEqual(t, before.KeyID, rotated["keyId"])

	// Old ciphertext still decrypts after rotation.
	rec = f.do(t, http.MethodPost, "/crypto/decrypt", map[string]any{
		"actor":   "admin-1",
		"payload": before,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/crypto/keys", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var keys map[string][]string
	decodeBody(t, rec, &keys)
	assert.Len(t, keys["keyIds"], 2)
}

func TestAuthzCheck(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/authz/check", map[string]any{
		"actorId":    "caregiver-1",
		"role":       "caregiver",
		"permission": "vitals:write",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var resp authzCheckResponse
	decodeBody(t, rec, &resp)
	assert.True(t, resp.Allowed)

	rec = f.do(t, http.MethodPost, "/authz/check", map[string]any{
		"actorId":    "stranger-1",
		"role":       "intruder",
		"permission": "vitals:write",
		"ownerId":    "stranger-1",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	decodeBody(t, rec, &resp)
	assert.False(t, resp.Allowed)
	assert.True(t, resp.Owner)
}

func TestSessionLifecycleOverHTTP(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/session/tokens", map[string]any{
		"subject":  "elder-1",
		"role":     "elder",
		"deviceId": "tablet-1",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var pair tokenResponse
	decodeBody(t, rec, &pair)
	require.NotEmpty(t, pair.RefreshToken)

	rec = f.do(t, http.MethodPost, "/session/verify", map[string]any{
		"token": pair.AccessToken,
		"kind":  "access",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var claims map[string]string
	decodeBody(t, rec, &claims)
	assert.Equal(t, "elder-1", claims["sub"])
	assert.Equal(t, "elder", claims["role"])

	rec = f.do(t, http.MethodPost, "/session/rotate", map[string]any{
		"refreshToken": pair.RefreshToken,
		"role":         "elder",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var next tokenResponse
	decodeBody(t, rec, &next)
	assert.Equal(t, pair.FamilyID, next.FamilyID)
	assert.NotEqual(t, pair.RefreshJTI, next.RefreshJTI)

	// Replaying the retired refresh token reports theft.
	rec = f.do(t, http.MethodPost, "/session/rotate", map[string]any{
		"refreshToken": pair.RefreshToken,
		"role":         "elder",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	var errBody map[string]string
	decodeBody(t, rec, &errBody)
	assert.Equal(t, "reuse_detected", errBody["error"])

	// And the whole family is dead.
	rec = f.do(t, http.MethodPost, "/session/rotate", map[string]any{
		"refreshToken": next.RefreshToken,
		"role":         "elder",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestVerifyTokenRejectsGarbage(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/session/verify", map[string]any{
		"token": "junk",
		"kind":  "access",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestConsentFlowOverHTTP(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/consent/check?subject=elder-1&purpose=vitals_sharing", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var check map[string]bool
	decodeBody(t, rec, &check)
	assert.False(t, check["granted"])

	rec = f.do(t, http.MethodPost, "/consent/grant", map[string]any{
		"actorId":   "elder-1",
		"subjectId": "elder-1",
		"purpose":   "vitals_sharing",
	})
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, http.MethodGet, "/consent/check?subject=elder-1&purpose=vitals_sharing", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeBody(t, rec, &check)
	assert.True(t, check["granted"])

	rec = f.do(t, http.MethodPost, "/consent/revoke", map[string]any{
		"actorId":   "elder-1",
		"subjectId": "elder-1",
		"purpose":   "vitals_sharing",
	})
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, http.MethodGet, "/consent/check?subject=elder-1&purpose=vitals_sharing", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeBody(t, rec, &check)
	assert.False(t, check["granted"])
}

func TestAuditListByActor(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/audit/events", map[string]any{
		"actor":  "caregiver-7",
		"action": "profile_viewed",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = f.do(t, http.MethodGet, "/audit/events?actor=caregiver-7", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string][]audit.Record
	decodeBody(t, rec, &body)
	require.Len(t, body["records"], 1)
	assert.Equal(t, "profile_viewed", body["records"][0].Action)
	// Request metadata was attached by the transport layer.
	assert.NotEmpty(t, body["records"][0].UserAgent)
	assert.Contains(t, body["records"][0].Metadata, "device")
}

func TestMFAEnrollAndVerify(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/mfa/enroll", map[string]any{"account": "elder-1@example.com"})
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Secret      string   `json:"secret"`
		KeyURI      string   `json:"keyUri"`
		BackupCodes []string `json:"backupCodes"`
	}
	decodeBody(t, rec, &body)
	assert.NotEmpty(t, body.Secret)
	assert.Contains(t, body.KeyURI, "otpauth://")
	assert.Len(t, body.BackupCodes, 10)

	rec = f.do(t, http.MethodPost, "/mfa/verify", map[string]any{
		"secret": body.Secret,
		"code":   "000000",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var verify map[string]bool
	decodeBody(t, rec, &verify)
	assert.False(t, verify["valid"])
}
