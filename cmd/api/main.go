package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	appaudit "github.com/bryanwahyu/automaton-audit/internal/application/audit"
	"github.com/bryanwahyu/automaton-audit/internal/config"
	domain "github.com/bryanwahyu/automaton-audit/internal/domain/audit"
	"github.com/bryanwahyu/automaton-audit/internal/domain/regulations"
	"github.com/bryanwahyu/automaton-audit/internal/domain/runerrors"
	"github.com/bryanwahyu/automaton-audit/internal/infra/ai/openai"
	"github.com/bryanwahyu/automaton-audit/internal/infra/cache"
	mysqlp "github.com/bryanwahyu/automaton-audit/internal/infra/db/mysql"
	pgp "github.com/bryanwahyu/automaton-audit/internal/infra/db/postgres"
	sqlitep "github.com/bryanwahyu/automaton-audit/internal/infra/db/sqlite"
	"github.com/bryanwahyu/automaton-audit/internal/infra/httpserver"
	minioStore "github.com/bryanwahyu/automaton-audit/internal/infra/storage"
	"github.com/bryanwahyu/automaton-audit/internal/middleware"
)

type repositories struct {
	regulations regulations.Repository
	clauses     domain.ClauseRepository
	reports     domain.ReportRepository
	runErrors   runerrors.Repository
}

func openDatabase(ctx context.Context, cfg *config.Config) (*sql.DB, repositories, error) {
	switch cfg.Database.Driver {
	case "mysql":
		db, err := mysqlp.Connect(ctx, cfg.DSN())
		if err != nil {
			return nil, repositories{}, err
		}
		return db, repositories{
			regulations: mysqlp.NewRegulationRepository(db),
			clauses:     mysqlp.NewClauseRepository(db),
			reports:     mysqlp.NewReportRepository(db),
			runErrors:   mysqlp.NewRunErrorRepository(db),
		}, nil
	case "postgres":
		db, err := pgp.Connect(ctx, cfg.DSN())
		if err != nil {
			return nil, repositories{}, err
		}
		return db, repositories{
			regulations: pgp.NewRegulationRepository(db),
			clauses:     pgp.NewClauseRepository(db),
			reports:     pgp.NewReportRepository(db),
			runErrors:   pgp.NewRunErrorRepository(db),
		}, nil
	default:
		db, err := sqlitep.Open(ctx, cfg.DSN())
		if err != nil {
			return nil, repositories{}, err
		}
		return db, repositories{
			regulations: sqlitep.NewRegulationRepository(db),
			clauses:     sqlitep.NewClauseRepository(db),
			reports:     sqlitep.NewReportRepository(db),
			runErrors:   sqlitep.NewRunErrorRepository(db),
		}, nil
	}
}

func main() {
	// path config.yaml
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}
	logger := config.NewLogger(cfg)

	ctx := context.Background()

	db, repos, err := openDatabase(ctx, cfg)
	if err != nil {
		logger.WithError(err).Fatalf("%s connect error", cfg.Database.Driver)
	}
	defer db.Close()

	health := map[string]middleware.HealthChecker{
		"database": &middleware.DatabaseHealthChecker{DB: db},
	}

	// optional redis: clause cache backend and cross-process run lock
	var runLock domain.RunLock
	if cfg.Redis.Enabled {
		rdb, err := cache.Connect(ctx, cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB, 5)
		if err != nil {
			logger.WithError(err).Fatal("redis connect error")
		}
		defer rdb.Close()
		health["redis"] = middleware.CheckFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() })

		runLock = cache.NewRunLock(cache.NewLocker(rdb), time.Duration(cfg.Redis.LockTTLMinutes)*time.Minute, logger)
		if cfg.Redis.CacheClauses {
			repos.clauses = cache.NewClauseStore(rdb, time.Duration(cfg.Redis.ClauseTTLHours)*time.Hour)
		}
		logger.WithField("addr", cfg.Redis.Address).Info("redis connected")
	}

	// optional minio for archived report workbooks
	var artifacts httpserver.ArtifactStore
	if cfg.Minio.Enabled {
		store, err := minioStore.New(ctx,
			cfg.Minio.Endpoint,
			cfg.Minio.Region,
			cfg.Minio.BucketName,
			cfg.Minio.AccessKey,
			cfg.Minio.SecretKey,
			cfg.Minio.UseSSL,
		)
		if err != nil {
			logger.WithError(err).Fatal("minio init error")
		}
		store.PresignTTL = time.Duration(cfg.Minio.PresignMinutes) * time.Minute
		artifacts = store
	}

	completion := openai.NewClient(cfg.Completion.BaseURL, cfg.Completion.APIKey, cfg.Completion.Model,
		openai.WithSpeedLevel(cfg.Completion.SpeedLevel),
		openai.WithMaxTokens(cfg.Completion.MaxTokens),
		openai.WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.Completion.TimeoutSeconds) * time.Second}),
		openai.WithLogger(logger),
	)

	clauseCache := appaudit.NewClauseCache(repos.clauses, logger)
	deps := appaudit.Deps{
		Regulations:    repos.regulations,
		Cache:          clauseCache,
		Reports:        repos.reports,
		RunErrors:      repos.runErrors,
		Lock:           runLock,
		Categories:     cfg.Audit.CategoryKeywords,
		Expansion:      cfg.Audit.ExpansionKeywords,
		MaxRegulations: cfg.Audit.MaxRegulations,
		ContentLimit:   cfg.Audit.RegulationContentLimit,
		Strategy:       cfg.Audit.Strategy,
		Log:            logger,
	}
	tenants := httpserver.NewTenants(func(tenant string) *httpserver.Tenant {
		client := completion.Fork(openai.NewGate())
		return &httpserver.Tenant{
			Audit:    appaudit.NewOrchestrator(tenant, client, client.Gate(), client.MinInterval, deps),
			SetSpeed: client.SetSpeedLevel,
		}
	})

	router := httpserver.NewRouter(httpserver.Deps{
		Tenants:        tenants,
		Regulations:    repos.regulations,
		Reports:        repos.reports,
		RunErrors:      repos.runErrors,
		Artifacts:      artifacts,
		Health:         health,
		Auth:           cfg.Auth,
		RateCapacity:   cfg.Server.RateLimit.Capacity,
		RateRefill:     cfg.Server.RateLimit.RefillRate,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Log:            logger,
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.WithFields(logrus.Fields{"addr": addr, "driver": cfg.Database.Driver, "strategy": cfg.Audit.Strategy}).Info("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("server error")
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	logger.Info("shutting down server...")

	ctx2, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx2); err != nil {
		logger.WithError(err).Warn("http shutdown error")
	}
	if err := router.Shutdown(ctx2); err != nil {
		logger.WithError(err).Warn("audit runs did not stop in time")
	}
	clauseCache.Wait()
}
