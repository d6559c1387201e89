package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"connectrpc.com/connect"
	"github.com/spf13/cobra"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mmynk/canteen/internal/auth"
	"github.com/mmynk/canteen/internal/config"
	"github.com/mmynk/canteen/internal/feed"
	"github.com/mmynk/canteen/internal/ledger"
	"github.com/mmynk/canteen/internal/metrics"
	"github.com/mmynk/canteen/internal/middleware"
	"github.com/mmynk/canteen/internal/service"
	"github.com/mmynk/canteen/internal/storage"
	"github.com/mmynk/canteen/internal/storage/sqlstore"
	"github.com/mmynk/canteen/pkg/api"
	"github.com/mmynk/canteen/pkg/api/apiconnect"
	"github.com/mmynk/canteen/pkg/logging"
)

func newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the Connect API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.Addr, _ = cmd.Flags().GetString("addr")
			}
			if cmd.Flags().Changed("db") {
				cfg.Database.DSN, _ = cmd.Flags().GetString("db")
			}
			if cmd.Flags().Changed("log-level") {
				cfg.LogLevel, _ = cmd.Flags().GetString("log-level")
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return serve(ctx, cfg)
		},
	}
	cmd.Flags().String("addr", "", "Listen address (overrides config)")
	cmd.Flags().String("db", "", "Database DSN or SQLite path (overrides config)")
	cmd.Flags().String("log-level", "", "Log level: debug|info|warn|error")
	return cmd
}

func serve(ctx context.Context, cfg config.Config) error {
	logger := logging.SetupWithLevel(logging.ParseLevel(cfg.LogLevel))

	store, err := sqlstore.Open(sqlstore.Config{Driver: cfg.Database.Driver, DSN: cfg.Database.DSN})
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()
	logger.Info("Storage initialized", "driver", cfg.Database.Driver)

	if cfg.Auth.JWTSecret == config.Default().Auth.JWTSecret {
		logger.Warn("Using the built-in JWT secret; set CANTEEN_JWT_SECRET in production")
	}

	m := metrics.New(nil)
	handler := newHandler(cfg, store, m, logger)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           h2c.NewHandler(requestLogger(logger, corsMiddleware(handler)), &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Connect server starting", "address", cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// newHandler mounts every Connect service. Auth endpoints accept anonymous
// calls; everything else requires a bearer token.
func newHandler(cfg config.Config, store storage.Store, m *metrics.Metrics, logger *slog.Logger) http.Handler {
	jwtManager := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.TokenTTL())
	resolver := auth.NewResolver(store)
	l := ledger.New(store, m, logger)
	f := feed.New()

	protected := connect.WithInterceptors(middleware.RequireAuth(jwtManager), middleware.LoggingInterceptor(logger, m))
	public := connect.WithInterceptors(middleware.OptionalAuth(jwtManager), middleware.LoggingInterceptor(logger, m))

	authSvc := service.NewAuthService(auth.NewPasswordAuthenticator(store), jwtManager, store, logger)
	orderSvc := service.NewOrderService(service.OrderServiceConfig{
		Store: store, Ledger: l, Resolver: resolver, Feed: f, Metrics: m, ETA: cfg.ETA, Logger: logger,
	})
	splitSvc := service.NewSplitService(service.SplitServiceConfig{
		Store: store, Ledger: l, Resolver: resolver, Feed: f, Metrics: m, DefaultTTL: cfg.SessionTTL(), Logger: logger,
	})

	mux := http.NewServeMux()
	mux.Handle(apiconnect.NewAuthServiceHandler(authSvc, public))
	mux.Handle(apiconnect.NewInstrumentServiceHandler(service.NewInstrumentService(store, resolver, logger), protected))
	mux.Handle(apiconnect.NewOrderServiceHandler(orderSvc, protected))
	mux.Handle(apiconnect.NewSplitServiceHandler(splitSvc, protected))
	mux.Handle(apiconnect.NewProfileServiceHandler(service.NewProfileService(store, resolver, logger), protected))

	if cfg.Metrics {
		mux.Handle("/metrics", m.Handler())
	}
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})
	return mux
}

// requestLogger logs every HTTP request at debug level. RPC outcomes are
// logged by the Connect interceptor.
func requestLogger(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logger.Debug("Request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

// corsMiddleware adds CORS headers for browser access
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Connect-Protocol-Version, Connect-Timeout-Ms")
		w.Header().Set("Access-Control-Expose-Headers", "Connect-Protocol-Version, Connect-Timeout-Ms, "+api.ErrorKindHeader)

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
