// cmd/refresh-service/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"embedauth/internal/catalog"
	"embedauth/internal/refresh"
	"embedauth/pkg/config"
	"embedauth/pkg/db"
	"embedauth/pkg/logger"
	"embedauth/pkg/middleware"
	"embedauth/pkg/plugins"
	"embedauth/pkg/sessions"
)

func main() {
	// 1. Configuration, logger, tracing.
	cfg := config.Load()
	appLog := logger.New(cfg.Env, cfg.LogLevel)
	defer appLog.Sync()
	shutdownTracing := middleware.InitTracing("embedauth-refresh", appLog)

	// 2. Plugin registry: loaded once before the listener starts. Requests
	// never see a half-built registry; until the first load they get "not configured".
	registry := plugins.NewRegistry(appLog, plugins.HostProvider{
		TokenEndpoint: cfg.OIDCTokenEndpoint,
		ClientID:      cfg.OIDCClientID,
	})
	loader := pluginLoader(cfg)
	registry.Load(context.Background(), loader)

	// 3. Session store (postgres > redis > memory).
	store, closeStore := mustSessionStore(cfg, appLog)
	defer closeStore()

	// 4. Refresh service.
	svc := refresh.NewService(registry, store, appLog, refresh.Options{
		Timeout:    cfg.RefreshTimeout,
		HTTPClient: &http.Client{Transport: middleware.Transport(nil)},
		Metrics:    refresh.NewMetrics(prometheus.DefaultRegisterer),
	})

	// 5. Router.
	router := chi.NewRouter()
	router.Use(middleware.RequestID())
	router.Use(middleware.Recover(appLog))
	router.Use(middleware.CORS(cfg.CORSOrigins))
	router.Use(middleware.Tracing())

	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.Write([]byte("ok")) })
	router.Get("/metrics", promhttp.Handler().ServeHTTP)
	catalog.RegisterRoutes(router, registry, cfg.SessionCookie)
	router.Group(func(r chi.Router) {
		r.Use(middleware.WithSession(store, cfg.SessionCookie, appLog))
		refresh.RegisterRoutes(r, svc, appLog)
	})

	// 6. Serve.
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		// must outlast the provider exchange
		WriteTimeout: cfg.RefreshTimeout + 10*time.Second,
	}
	go func() {
		appLog.Infow("refresh-service listening", "addr", cfg.HTTPAddr, "plugins", len(registry.All()))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLog.Fatalw("ListenAndServe", "err", err)
		}
	}()

	// 7. SIGHUP reloads plugins; SIGINT/SIGTERM shut down.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	for sig := range sigCh {
		if sig == syscall.SIGHUP {
			appLog.Infow("reloading plugins", "dir", cfg.PluginDir)
			registry.Load(context.Background(), loader)
			continue
		}
		break
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(ctx)
	_ = shutdownTracing(ctx)
	fmt.Println("refresh-service stopped")
}

func mustSessionStore(cfg config.Config, log *zap.SugaredLogger) (sessions.Store, func()) {
	ctx := context.Background()
	pool, err := db.Postgres(ctx, cfg, log)
	if err != nil {
		log.Fatalw("postgres", "err", err)
	}
	if pool != nil {
		if err := sessions.EnsureSchema(ctx, pool); err != nil {
			log.Fatalw("session schema", "err", err)
		}
		return sessions.NewPostgresStore(pool), pool.Close
	}
	rdb, err := db.Redis(ctx, cfg, log)
	if err != nil {
		log.Fatalw("redis", "err", err)
	}
	if rdb != nil {
		return sessions.NewRedisStore(rdb, cfg.SessionTTL), func() { _ = rdb.Close() }
	}
	mem := sessions.NewMemoryStore()
	if err := mem.SeedFromJSON(ctx, cfg.SessionSeed, log); err != nil {
		log.Warnw("session seed", "err", err)
	}
	return mem, func() {}
}
