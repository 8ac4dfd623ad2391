package httptransport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"caretrust/internal/audit"
	"caretrust/internal/consent"
	"caretrust/internal/crypto"
	"caretrust/internal/platform/metrics"
	"caretrust/internal/rbac"
	"caretrust/internal/session"
)

// Handler is the thin HTTP layer exposing the security core to the UI/API
// layers. It delegates to the domain services and emits audit events for the
// actions it carries out; business logic stays out of this package.
type Handler struct {
	log      zerolog.Logger
	metrics  *metrics.Metrics
	auditor  *audit.Publisher
	chain    ChainRef
	keys     crypto.KeyStore
	enc      *crypto.Encryptor
	authz    *rbac.Engine
	sessions *session.Service
	consents consent.Store
	issuer   string // MFA provisioning issuer label
}

// ChainRef names the log target and secret the verify endpoint runs against.
type ChainRef struct {
	Path   string
	Secret string
}

// Deps collects handler dependencies so wiring in main stays readable.
type Deps struct {
	Log       zerolog.Logger
	Metrics   *metrics.Metrics
	Auditor   *audit.Publisher
	Chain     ChainRef
	Keys      crypto.KeyStore
	Encryptor *crypto.Encryptor
	Authz     *rbac.Engine
	Sessions  *session.Service
	Consents  consent.Store
	MFAIssuer string
}

func NewHandler(d Deps) *Handler {
	return &Handler{
		log:      d.Log,
		metrics:  d.Metrics,
		auditor:  d.Auditor,
		chain:    d.Chain,
		keys:     d.Keys,
		enc:      d.Encryptor,
		authz:    d.Authz,
		sessions: d.Sessions,
		consents: d.Consents,
		issuer:   d.MFAIssuer,
	}
}

// NewRouter wires all public endpoints.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", h.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/audit", func(r chi.Router) {
		r.Post("/events", h.handleAuditRecord)
		r.Post("/verify", h.handleAuditVerify)
		r.Get("/events", h.handleAuditList)
	})

	r.Route("/crypto", func(r chi.Router) {
		r.Post("/encrypt", h.handleEncrypt)
		r.Post("/decrypt", h.handleDecrypt)
		r.Get("/keys", h.handleKeyList)
		r.Post("/keys/rotate", h.handleKeyRotate)
	})

	r.Post("/authz/check", h.handleAuthzCheck)

	r.Route("/session", func(r chi.Router) {
		r.Post("/tokens", h.handleLogin)
		r.Post("/rotate", h.handleRotate)
		r.Post("/verify", h.handleVerifyToken)
		r.Post("/logout", h.handleLogout)
	})

	r.Route("/consent", func(r chi.Router) {
		r.Post("/grant", h.handleConsentGrant)
		r.Post("/revoke", h.handleConsentRevoke)
		r.Get("/check", h.handleConsentCheck)
	})

	r.Route("/mfa", func(r chi.Router) {
		r.Post("/enroll", h.handleMFAEnroll)
		r.Post("/verify", h.handleMFAVerify)
	})

	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
