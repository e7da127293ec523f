package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"net/http"
	"os"

	"github.com/go-redis/redis/v8"
	"github.com/jonboulle/clockwork"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/samlfed/pkg/artifact"
	"github.com/platinummonkey/samlfed/pkg/config"
	"github.com/platinummonkey/samlfed/pkg/host"
	"github.com/platinummonkey/samlfed/pkg/keys"
	"github.com/platinummonkey/samlfed/pkg/logout"
	"github.com/platinummonkey/samlfed/pkg/observability"
	"github.com/platinummonkey/samlfed/pkg/relyingparty"
	"github.com/platinummonkey/samlfed/pkg/response"
	"github.com/platinummonkey/samlfed/pkg/server"
	"github.com/platinummonkey/samlfed/pkg/soap"
	"github.com/platinummonkey/samlfed/pkg/validation"
)

func main() {
	clientsPath := flag.String("clients", getEnv("SAMLFED_CLIENTS_FILE", ""), "Path to the YAML client registry")
	flag.Parse()

	// Startup failures happen before the structured logger is configured.
	startup := logrus.StandardLogger()

	cfg, err := config.LoadConfig()
	if err != nil {
		startup.WithError(err).Fatal("Failed to load configuration")
	}
	if *clientsPath == "" {
		startup.Fatal("No client registry configured, set -clients or SAMLFED_CLIENTS_FILE")
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	if err := run(cfg, *clientsPath, logger); err != nil {
		startup.WithError(err).Fatal("samlfedd failed")
	}
}

func run(cfg *config.Config, clientsPath string, logger *observability.Logger) error {
	clock := clockwork.NewRealClock()

	keySvc, err := keys.LoadStatic(cfg.Engine.CertificatePath, cfg.Engine.PrivateKeyPath, "")
	if err != nil {
		return fmt.Errorf("load signing keys: %w", err)
	}

	clients, err := loadClientStore(clientsPath)
	if err != nil {
		return err
	}
	logger.WithField("clients", len(clients.clients)).Info("client registry loaded")

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	var redisClient *redis.Client
	if cfg.Stores.ArtifactStore == config.StoreRedis || cfg.Stores.MessageStore == config.StoreRedis {
		redisClient, err = connectRedis(cfg.Stores)
		if err != nil {
			return err
		}
		defer redisClient.Close()
	}

	parties, cleanup, err := buildRelyingPartyStore(cfg.Stores, logger)
	if err != nil {
		return err
	}
	if cleanup != nil {
		defer cleanup()
	}

	var artifacts artifact.Store
	if cfg.Stores.ArtifactStore == config.StoreRedis {
		artifacts = artifact.NewRedisStore(redisClient, clock)
	} else {
		artifacts = artifact.NewMemoryStore(clock)
	}

	var messages host.MessageStore
	if cfg.Stores.MessageStore == config.StoreRedis {
		messages = host.NewRedisMessageStore(redisClient, cfg.Stores.MessageTTL)
	} else {
		messages = host.NewMemoryMessageStore()
	}

	defaults := relyingparty.NewDefaults()
	validator := validation.NewRequestValidator(clients, parties, clock, validation.Config{
		ClockSkew:       cfg.Engine.ClockSkew,
		MaxIssuerLength: cfg.Engine.MaxIssuerLength,
	}, logger)
	responses := response.NewSignInResponseGenerator(response.Config{
		Issuer:           cfg.Engine.IssuerEntityID,
		MessageLifetime:  cfg.Engine.MessageLifetime,
		ArtifactLifetime: cfg.Engine.ArtifactLifetime,
	}, keySvc, subjectProfile{}, artifacts, defaults, clock, logger)
	logouts := logout.NewGenerator(logout.Config{
		Issuer:          cfg.Engine.IssuerEntityID,
		MessageLifetime: cfg.Engine.MessageLifetime,
	}, keySvc, defaults, clock)
	fanout := logout.NewOrchestrator(parties, logouts, logger)

	srv := server.NewServer(server.Config{
		IssuerEntityID: cfg.Engine.IssuerEntityID,
		BaseURL:        cfg.Engine.BaseURL,
		MetricsEnabled: cfg.Observability.MetricsEnabled,
	}, server.Deps{
		Validator: validator,
		Responses: responses,
		Logouts:   logouts,
		Fanout:    fanout,
		Artifact:  soap.NewHandler(cfg.Engine.IssuerEntityID, artifacts, clock, logger, metrics),
		Messages:  messages,
		Sessions:  resolveHeaderSession,
		Keys:      keySvc,
		Registry:  registry,
		Metrics:   metrics,
		Logger:    logger,
	})

	httpServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      srv,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	healthServer := newHealthServer(cfg, registry)

	shutdown := observability.NewShutdownManager(logger, httpServer, cfg.Server.ShutdownTimeout)
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		return healthServer.Shutdown(ctx)
	})

	go func() {
		logger.WithField("addr", healthServer.Addr).Info("health server listening")
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("health server failed")
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		logger.WithFields(map[string]interface{}{
			"addr":   httpServer.Addr,
			"issuer": cfg.Engine.IssuerEntityID,
		}).Info("federation server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	shutdownCh := make(chan error, 1)
	go func() {
		shutdownCh <- shutdown.WaitForShutdown()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("federation server failed: %w", err)
	case err := <-shutdownCh:
		return err
	}
}

// newHealthServer serves liveness probes and metrics on a separate port so
// the protocol endpoints never need to be exposed to the probe network.
func newHealthServer(cfg *config.Config, registry *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if cfg.Observability.MetricsEnabled {
		mux.Handle("/metrics", observability.Handler(registry))
	}
	return &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler: mux,
	}
}

func buildRelyingPartyStore(stores config.StoresConfig, logger *observability.Logger) (relyingparty.Store, func() error, error) {
	switch stores.RelyingPartyStore {
	case config.StoreFile:
		fs, err := relyingparty.NewFileStore(stores.RelyingPartyFilePath, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("open relying party file store: %w", err)
		}
		return fs, fs.Close, nil
	case config.StorePostgres:
		db, err := sql.Open("postgres", stores.PostgresURL)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres: %w", err)
		}
		if err := db.Ping(); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("ping postgres: %w", err)
		}
		return relyingparty.NewSQLStore(db), db.Close, nil
	default:
		return relyingparty.NewMemoryStore(), nil, nil
	}
}

func connectRedis(stores config.StoresConfig) (*redis.Client, error) {
	opts, err := redis.ParseURL(stores.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	if stores.RedisPassword != "" {
		opts.Password = stores.RedisPassword
	}
	if stores.RedisDB != 0 {
		opts.DB = stores.RedisDB
	}
	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
