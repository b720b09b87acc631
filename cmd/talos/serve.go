package main

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"syscall"
	"time"

	gosundheit "github.com/AppsFlyer/go-sundheit"
	"github.com/AppsFlyer/go-sundheit/checks"
	"github.com/ghodss/yaml"
	"github.com/oklog/run"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/myquay/talos/engine"
	"github.com/myquay/talos/idp"
	"github.com/myquay/talos/pkg/ssrfhttp"
	"github.com/myquay/talos/server"
	"github.com/myquay/talos/storage"
	"github.com/myquay/talos/storage/memory"
	sqlstorage "github.com/myquay/talos/storage/sql"
	"github.com/myquay/talos/token"
)

func commandServe() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "serve [flags] [config file]",
		Short:   "Launch Talos",
		Example: "talos serve config.yaml",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			cmd.SilenceErrors = true
			return runServe(args[0])
		},
	}
	return cmd
}

const defaultAccessTokenLifetime = 10 * time.Minute

func runServe(configFile string) error {
	configData, err := os.ReadFile(configFile)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", configFile, err)
	}

	var c Config
	if err := yaml.Unmarshal(configData, &c); err != nil {
		return fmt.Errorf("error parsing config file %s: %w", configFile, err)
	}
	if err := c.Validate(); err != nil {
		return err
	}

	logger, err := newLogger(c.Logger.Level, c.Logger.Format)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	logger.Info("starting talos", "issuer", c.Issuer)

	store, err := openStorage(c.Storage, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()

	providers, err := idp.Build(c.Providers)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	secret, err := decodeTokenSecret(c.Token.Secret)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	lifetime := defaultAccessTokenLifetime
	if c.Token.AccessTokenLifetime != "" {
		lifetime, err = time.ParseDuration(c.Token.AccessTokenLifetime)
		if err != nil {
			return fmt.Errorf("invalid config: token.accessTokenLifetime: %w", err)
		}
	}
	tokens := token.NewService(secret, c.Issuer, lifetime)

	expiry := c.Expiry.WithDefaults()

	eng := engine.New(
		engine.Config{
			Issuer:                c.Issuer,
			SessionTTL:            time.Duration(expiry.PendingAuthTTLMinutes) * time.Minute,
			AuthCodeTTL:           time.Duration(expiry.AuthCodeTTLMinutes) * time.Minute,
			RefreshTokenTTL:       time.Duration(expiry.RefreshTokenTTLDays) * 24 * time.Hour,
			RefreshTokenRetention: 24 * time.Hour,
			AllowedProfileHosts:   c.Identity.AllowedProfileHosts,
			IntrospectionSecret:   c.Token.IntrospectionSecret,
		},
		store.PendingAuthentications,
		store.AuthorizationCodes,
		store.RefreshTokens,
		providers,
		ssrfhttp.NewClient(ssrfhttp.Config{Timeout: 10 * time.Second}),
		tokens,
		logger,
	)

	prometheusRegistry := prometheus.NewRegistry()
	if err := prometheusRegistry.Register(prometheus.NewGoCollector()); err != nil {
		return fmt.Errorf("failed to register Go runtime metrics: %w", err)
	}
	if err := prometheusRegistry.Register(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{})); err != nil {
		return fmt.Errorf("failed to register process metrics: %w", err)
	}

	healthChecker := gosundheit.New()
	if err := healthChecker.RegisterCheck(&gosundheit.Config{
		Check: &checks.CustomCheck{
			CheckName: "storage",
			CheckFunc: func(ctx context.Context) (details interface{}, err error) {
				return nil, store.Ping(ctx)
			},
		},
		ExecutionPeriod:  30 * time.Second,
		InitiallyPassing: true,
	}); err != nil {
		return fmt.Errorf("failed to register storage health check: %w", err)
	}

	handler, err := server.New(server.Config{
		Issuer:             c.Issuer,
		AllowedOrigins:     c.Limits.AllowedOrigins,
		PrometheusRegistry: prometheusRegistry,
		HealthChecker:      healthChecker,
		Logger:             logger,
	}, eng)
	if err != nil {
		return fmt.Errorf("failed to build http handler: %w", err)
	}

	httpServer := &http.Server{
		Addr:    c.Web.HTTPAddr,
		Handler: handler,
	}

	var g run.Group

	listener, err := net.Listen("tcp", httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", httpServer.Addr, err)
	}
	g.Add(func() error {
		logger.Info("listening", "addr", httpServer.Addr)
		return httpServer.Serve(listener)
	}, func(error) {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := httpServer.Shutdown(ctx); err != nil {
			logger.Error("graceful shutdown failed", "err", err)
		}
	})

	cleanupCtx, cancelCleanup := context.WithCancel(context.Background())
	g.Add(func() error {
		server.RunCleanup(cleanupCtx, eng, logger, 5*time.Minute)
		return nil
	}, func(error) {
		cancelCleanup()
	})

	g.Add(run.SignalHandler(context.Background(), os.Interrupt, syscall.SIGTERM))

	return g.Run()
}

func openStorage(cfg Storage, logger *slog.Logger) (*storage.Store, error) {
	switch cfg.Type {
	case "memory":
		return memory.New(logger), nil
	case "sqlite":
		return sqlstorage.Open(logger, sqlstorage.Config{File: cfg.File})
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
}

func decodeTokenSecret(s string) ([]byte, error) {
	if decoded, err := base64.StdEncoding.DecodeString(s); err == nil && len(decoded) >= 32 {
		return decoded, nil
	}
	return []byte(s), nil
}
