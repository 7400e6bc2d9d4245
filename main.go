package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"iris-api/config"
	"iris-api/db"
	"iris-api/db/mongostore"
	"iris-api/handlers"
	"iris-api/identity"
	"iris-api/notify"
	"iris-api/roster"
	"iris-api/sweep"
	"iris-api/telemetry"
	"iris-api/visibility"
)

func main() {
	configPath := flag.String("config", "iris.yaml", "Path to YAML config (optional)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}
	level, _ := cfg.Level()
	loc, _ := cfg.Location()

	// Setup structured JSON logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	shutdownTracing, err := telemetry.Setup(context.Background(), "iris-api", cfg.OTLPEndpoint)
	if err != nil {
		slog.Error("failed to set up tracing", "error", err)
		os.Exit(1)
	}

	// Store init gets a short deadline so a dead backend fails the boot fast
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	store, err := openStore(ctx, cfg.Store)
	cancel()
	if err != nil {
		slog.Error("failed to open store", "driver", cfg.Store.Driver, "error", err)
		os.Exit(1)
	}
	slog.Info("store ready", "driver", cfg.Store.Driver)

	verifier, err := newVerifier(cfg.Auth)
	if err != nil {
		slog.Error("failed to configure token verification", "error", err)
		os.Exit(1)
	}

	engine := roster.New(store, roster.Options{
		MaxRetries: cfg.Store.MaxRetries,
		Timeout:    cfg.Store.Timeout,
	})

	h := &handlers.Handlers{
		Store:        store,
		Engine:       engine,
		Filter:       visibility.New(store, cfg.Store.Timeout),
		Groups:       identity.NewGroupPolicy(cfg.Groups),
		Verifier:     verifier,
		Location:     loc,
		StoreTimeout: cfg.Store.Timeout,
	}

	var pruners []sweep.Pruner
	if cfg.Directory.Endpoint != "" {
		dir, err := identity.NewDirectory(identity.DirectoryConfig{
			Endpoint:     cfg.Directory.Endpoint,
			TokenURL:     cfg.Directory.TokenURL,
			ClientID:     cfg.Directory.ClientID,
			ClientSecret: cfg.Directory.ClientSecret,
			Pages:        cfg.Directory.Pages,
			PerPage:      cfg.Directory.PerPage,
			CacheTTL:     cfg.Directory.CacheTTL,
			Timeout:      cfg.Directory.Timeout,
		})
		if err != nil {
			slog.Error("failed to configure user directory", "error", err)
			os.Exit(1)
		}
		h.Directory = dir
		pruners = append(pruners, dir)
	} else {
		slog.Warn("user directory not configured; user and email endpoints are unavailable")
	}
	if cfg.MailURL != "" {
		n, err := notify.NewHTTPNotifier(cfg.MailURL, nil, cfg.Directory.Timeout)
		if err != nil {
			slog.Error("failed to configure mail relay", "error", err)
			os.Exit(1)
		}
		h.Notifier = n
	}

	// Background sweep for archiving finished events
	stopSweep := func() {}
	if cfg.Sweep.Schedule != "" {
		sw := sweep.New(store, engine, sweep.Options{
			ArchiveAfter: time.Duration(cfg.Sweep.ArchiveAfterDays) * 24 * time.Hour,
			Pruners:      pruners,
		})
		stopSweep, err = sw.Start(cfg.Sweep.Schedule, loc)
		if err != nil {
			slog.Error("failed to schedule sweep", "error", err)
			os.Exit(1)
		}
		slog.Info("sweep scheduled", "schedule", cfg.Sweep.Schedule)
	}

	// Apply Global Middlewares
	var handler http.Handler = h.Routes()
	handler = RateLimitMiddleware(cfg.RateLimit.Requests, cfg.RateLimit.Window)(handler)
	handler = CORSMiddleware(handler)
	handler = LoggingMiddleware(handler)
	handler = RecoveryMiddleware(handler)

	// Configure Server with Timeouts
	server := &http.Server{
		Addr:         cfg.Listen,
		Handler:      handler,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 2*cfg.Store.Timeout + 10*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Graceful Shutdown Setup
	go func() {
		slog.Info("server starting", "addr", cfg.Listen)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := server.Shutdown(ctxShutdown); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}
	stopSweep()

	if err := shutdownTracing(ctxShutdown); err != nil {
		slog.Error("failed to flush traces", "error", err)
	}

	// Close the store last
	if err := store.Close(); err != nil {
		slog.Error("failed to close store", "error", err)
	}

	slog.Info("server exited cleanly")
}

func openStore(ctx context.Context, cfg config.StoreConfig) (db.Store, error) {
	switch cfg.Driver {
	case "mongo":
		s, err := mongostore.Open(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "sqlite":
		sqlDB, err := db.NewDB(cfg.SQLiteDSN)
		if err != nil {
			return nil, err
		}
		if err := sqlDB.InitSchema(ctx); err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("failed to initialize schema: %w", err)
		}
		return sqlDB, nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
}

func newVerifier(cfg config.AuthConfig) (*identity.Verifier, error) {
	vc := identity.VerifierConfig{
		Issuer:           cfg.Issuer,
		Audience:         cfg.Audience,
		PermissionsClaim: cfg.PermissionsClaim,
	}
	if cfg.PublicKeyFile != "" {
		pem, err := os.ReadFile(cfg.PublicKeyFile)
		if err != nil {
			return nil, fmt.Errorf("read token public key: %w", err)
		}
		vc.PublicKeyPEM = pem
	}
	if cfg.HMACSecret != "" {
		vc.HMACSecret = []byte(cfg.HMACSecret)
	}
	return identity.NewVerifier(vc)
}
