package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"aeroledger/internal/aircraft"
	"aeroledger/internal/audit"
	"aeroledger/internal/flight"
	"aeroledger/internal/maintenance"
	"aeroledger/internal/platform/config"
	"aeroledger/internal/platform/httpserver"
	"aeroledger/internal/platform/logger"
	platformredis "aeroledger/internal/platform/redis"
	"aeroledger/internal/regulator"
	regulatormetrics "aeroledger/internal/regulator/metrics"
	"aeroledger/internal/storage"
	storagepg "aeroledger/internal/storage/postgres"
	httptransport "aeroledger/internal/transport/http"
	"aeroledger/internal/volume"
)

// stores bundles every persistence dependency so the Postgres and in-memory
// backends wire identically.
type stores struct {
	tx         storage.TxRunner
	aircraft   storage.AircraftStore
	components storage.ComponentStore
	snapshots  storage.ComponentSnapshotStore
	volumes    storage.VolumeStore
	stages     storage.FlightStageStore
	audit      audit.Store
}

func main() {
	cfg := config.FromEnv()
	log := logger.New()

	st, db, err := buildStores(cfg, log)
	if err != nil {
		log.Error("storage init failed", "error", err)
		os.Exit(1)
	}
	if db != nil {
		defer db.Close()
	}

	redisClient, err := platformredis.New(cfg.RedisURL)
	if err != nil {
		log.Error("redis init failed", "error", err)
		os.Exit(1)
	}
	cache := platformredis.NewCache(redisClient)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	regMetrics := regulatormetrics.New(registry)
	tokens := regulator.NewSSOTokenProvider(nil,
		cfg.Regulator.TokenURL, cfg.Regulator.ClientID,
		cfg.Regulator.Username, cfg.Regulator.Password, log)
	gateway := regulator.NewClient(nil, cfg.Regulator.APIBaseURL, tokens, regMetrics, log)

	auditMetrics := audit.NewMetrics(registry)
	chain := audit.NewChain(st.audit, auditMetrics)
	recorder := audit.NewAsyncRecorder(256, auditMetrics, log)
	worker := audit.NewWorker(chain, auditMetrics, recorder.Inbox(), log)

	cascade := maintenance.NewCascade(st.tx, st.aircraft, st.components, st.snapshots, log)
	volumes := volume.NewService(st.volumes, st.aircraft, st.components, gateway, cache, cfg.VolumeListCacheTTL, recorder, log)
	flights := flight.NewService(st.stages, st.volumes, st.aircraft, gateway, cascade, recorder, log)
	airframe := aircraft.NewService(st.aircraft, st.components, recorder, log)

	router := httptransport.NewRouter(httptransport.Deps{
		Volumes:          httptransport.NewVolumeHandler(volumes, log),
		Stages:           httptransport.NewStageHandler(flights, log),
		Aircraft:         httptransport.NewAircraftHandler(airframe, log),
		Audit:            httptransport.NewAuditHandler(chain, log),
		Registry:         registry,
		RegulatorMetrics: regMetrics,
		AuditMetrics:     auditMetrics,
	})
	srv := httpserver.New(cfg.Addr, router)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("audit worker stopped", "error", err)
		}
	}()

	go func() {
		log.Info("server listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
}

// buildStores picks Postgres when a DSN is configured and falls back to the
// in-memory backend otherwise. The returned *sql.DB is nil for memory.
func buildStores(cfg config.Config, log *slog.Logger) (stores, *sql.DB, error) {
	if cfg.PostgresDSN == "" {
		log.Warn("no postgres DSN configured, using in-memory storage")
		mem := storage.NewMemory()
		return stores{
			tx:         mem,
			aircraft:   mem.Aircraft(),
			components: mem.Components(),
			snapshots:  mem.Snapshots(),
			volumes:    mem.Volumes(),
			stages:     mem.Stages(),
			audit:      audit.NewMemoryStore(),
		}, nil, nil
	}

	db, err := sql.Open("postgres", cfg.PostgresDSN)
	if err != nil {
		return stores{}, nil, err
	}
	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return stores{}, nil, err
	}

	pg := storagepg.New(db)
	return stores{
		tx:         pg,
		aircraft:   pg.Aircraft(),
		components: pg.Components(),
		snapshots:  pg.Snapshots(),
		volumes:    pg.Volumes(),
		stages:     pg.Stages(),
		// The audit store writes outside business transactions on purpose: a
		// rolled-back cascade must not erase the audit of the attempt.
		audit: audit.NewPostgresStore(db),
	}, db, nil
}
