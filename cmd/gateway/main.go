// Command gateway starts the AI gateway's HTTP server: the provider
// registry, workflow engine, and state store are wired together here and
// handed to server.New, matching the teacher's examples/*/main.go shape
// (core.NewConfig, signal-driven graceful shutdown via http.Server.Shutdown)
// rather than the teacher's own core.Framework.Run, since the gateway has
// no Tool/Agent capability surface for that type to wrap.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/aigateway/gateway/core"
	"github.com/aigateway/gateway/engine"
	"github.com/aigateway/gateway/failover"
	"github.com/aigateway/gateway/provider"
	"github.com/aigateway/gateway/server"
	"github.com/aigateway/gateway/state"
	"github.com/aigateway/gateway/telemetry"
	"github.com/aigateway/gateway/workflow"
)

func main() {
	cfg, err := core.NewConfig()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	logger := cfg.Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tp, err := telemetry.Setup(ctx, "gateway", cfg.Telemetry.Endpoint)
	if err != nil {
		log.Fatalf("failed to set up telemetry: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Error("telemetry shutdown error", map[string]interface{}{"error": err.Error()})
		}
	}()
	telemetry.Register(telemetry.NewRegistry(tp.Meter, logger))

	registry := provider.NewRegistry(componentLogger(logger, "gateway/provider"))
	registerProviders(registry, logger)

	store, err := newStateStore(cfg, componentLogger(logger, "gateway/state"))
	if err != nil {
		log.Fatalf("failed to initialize state store: %v", err)
	}
	defer store.Close()

	retry := failover.Config{
		MaxRetries: 3,
		BaseDelay:  500 * time.Millisecond,
		MaxDelay:   10 * time.Second,
	}
	eng := engine.New(engine.Config{
		MaxConcurrent: cfg.Workflow.MaxConcurrent,
		StepTimeout:   cfg.Workflow.StepTimeout,
		TotalTimeout:  cfg.Workflow.TotalTimeout,
		Retry:         retry,
	}, store, registry, componentLogger(logger, "gateway/workflow"))

	for _, def := range registerDefinitions() {
		eng.RegisterDefinition(def)
	}

	var cors *core.CORSConfig
	if cfg.HTTP.CORS.Enabled {
		cors = &cfg.HTTP.CORS
	}

	srv := server.New("gateway", registry, eng, store, retry, cfg.APIKey, cors, componentLogger(logger, "gateway/http"))
	handler := otelhttp.NewHandler(srv.Handler(cfg.Development.Enabled), "gateway")

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		IdleTimeout:       cfg.HTTP.IdleTimeout,
		MaxHeaderBytes:    cfg.HTTP.MaxHeaderBytes,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("starting HTTP server", map[string]interface{}{"addr": httpServer.Addr})
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			return
		}
		serveErr <- nil
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received, draining in-flight requests", nil)
	case err := <-serveErr:
		if err != nil {
			log.Fatalf("HTTP server failed: %v", err)
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}
	logger.Info("shutdown complete", nil)
}

// componentLogger tags logger with component when it implements
// core.ComponentAwareLogger, per the naming convention documented on that
// interface (gateway/provider, gateway/state, gateway/workflow,
// gateway/http, ...). Falls back to the plain logger otherwise, so a
// caller-supplied core.Logger that doesn't implement the extension still
// works.
func componentLogger(logger core.Logger, component string) core.Logger {
	if aware, ok := logger.(core.ComponentAwareLogger); ok {
		return aware.WithComponent(component)
	}
	return logger
}

// newStateStore selects the workflow state backend per spec §4.4: Redis
// when KV_STORE_URL is set, otherwise the in-process memory store.
func newStateStore(cfg *core.Config, logger core.Logger) (state.Store, error) {
	if cfg.State.KVStoreURL != "" {
		return state.NewRedisStore(cfg.State.KVStoreURL, cfg.Workflow.ResultTTL, logger)
	}
	return state.NewMemoryStore(cfg.Workflow.ResultTTL, logger), nil
}

// registerProviders wires concrete AI-provider adapters into registry.
// Per-provider adapter HTTP calls are an explicit external collaborator
// (spec §1 Non-goals), so no adapters ship built in; an operator embeds
// this gateway or forks this function to register the adapters their
// deployment needs, one registry.Register call per provider.
func registerProviders(registry *provider.Registry, logger core.Logger) {
	logger.Info("no AI provider adapters registered at startup; register them in registerProviders", nil)
}

// registerDefinitions returns the workflow definitions the gateway
// starts with. None ship built in: spec §4.5 workflows are
// deployment-specific compositions, registered here the same way
// registerProviders wires in adapters.
func registerDefinitions() []*workflow.Definition {
	return nil
}
