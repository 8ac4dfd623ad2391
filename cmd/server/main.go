package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"caretrust/internal/audit"
	"caretrust/internal/audit/archive"
	"caretrust/internal/consent"
	"caretrust/internal/crypto"
	"caretrust/internal/platform/config"
	"caretrust/internal/platform/httpserver"
	"caretrust/internal/platform/logger"
	"caretrust/internal/platform/metrics"
	"caretrust/internal/platform/postgres"
	platformredis "caretrust/internal/platform/redis"
	"caretrust/internal/rbac"
	"caretrust/internal/session"
	"caretrust/internal/session/revocation"
	httptransport "caretrust/internal/transport/http"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Domain logic lives in the internal packages.
func main() {
	_ = godotenv.Load()
	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	m := metrics.New()

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Fatal().Err(err).Msg("redis connection failed")
	}
	db, err := postgres.Open(cfg.Postgres)
	if err != nil {
		log.Fatal().Err(err).Msg("postgres connection failed")
	}

	ctx := context.Background()

	chain, err := audit.OpenChainLogger(cfg.AuditLogPath, cfg.AuditHMACSecret)
	if err != nil {
		log.Fatal().Err(err).Msg("audit chain logger failed to open")
	}
	defer chain.Close()

	var auditArchive audit.Archive
	if db != nil {
		pg := archive.NewPostgresStore(db)
		if err := pg.EnsureSchema(ctx); err != nil {
			log.Fatal().Err(err).Msg("audit archive schema failed")
		}
		auditArchive = pg
	} else {
		auditArchive = archive.NewInMemoryStore()
	}
	auditor := audit.NewPublisher(chain, auditArchive, log)

	var keys crypto.KeyStore
	if redisClient != nil {
		keys, err = crypto.NewRedisKeyStore(ctx, redisClient.Client)
		if err != nil {
			log.Fatal().Err(err).Msg("redis key store failed")
		}
	} else {
		keys, err = crypto.NewInMemoryKeyStore()
		if err != nil {
			log.Fatal().Err(err).Msg("key store failed")
		}
	}
	encryptor := crypto.NewEncryptor(keys)

	var families revocation.Store
	if redisClient != nil {
		families = revocation.NewRedisStore(redisClient.Client)
	} else {
		families = revocation.NewInMemoryStore()
	}
	issuer := session.NewIssuer(cfg.AccessTokenSecret, cfg.RefreshTokenSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	sessions := session.NewService(issuer, families, log)

	var consents consent.Store
	if db != nil {
		pg := consent.NewPostgresStore(db)
		if err := pg.EnsureSchema(ctx); err != nil {
			log.Fatal().Err(err).Msg("consent schema failed")
		}
		consents = pg
	} else {
		consents = consent.NewInMemoryStore()
	}

	handler := httptransport.NewHandler(httptransport.Deps{
		Log:       log,
		Metrics:   m,
		Auditor:   auditor,
		Chain:     httptransport.ChainRef{Path: cfg.AuditLogPath, Secret: cfg.AuditHMACSecret},
		Keys:      keys,
		Encryptor: encryptor,
		Authz:     rbac.NewDefault(),
		Sessions:  sessions,
		Consents:  consents,
		MFAIssuer: "caretrust",
	})
	srv := httpserver.New(cfg.Addr, httptransport.NewRouter(handler))

	log.Info().Str("addr", cfg.Addr).Str("audit_log", cfg.AuditLogPath).Msg("starting caretrust")

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatal().Err(err).Msg("server error")
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}
	if db != nil {
		_ = db.Close()
	}
	log.Info().Msg("caretrust stopped")
}
