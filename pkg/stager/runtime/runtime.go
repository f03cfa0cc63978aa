// Package runtime assembles and runs the long-lived components of a stager
// daemon: the lifecycle store, the coordinator, the storage element
// backends, the background agents and the auxiliary HTTP servers.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/marmos91/stager/internal/logger"
	"github.com/marmos91/stager/pkg/api"
	"github.com/marmos91/stager/pkg/config"
	"github.com/marmos91/stager/pkg/metrics"
	prommetrics "github.com/marmos91/stager/pkg/metrics/prometheus"
	"github.com/marmos91/stager/pkg/stager/agents"
	"github.com/marmos91/stager/pkg/stager/backend"
	"github.com/marmos91/stager/pkg/stager/notify"
	"github.com/marmos91/stager/pkg/stager/service"
	"github.com/marmos91/stager/pkg/stager/store"
)

// DefaultShutdownTimeout bounds the graceful shutdown when the configuration
// does not set one.
const DefaultShutdownTimeout = 30 * time.Second

// AuxiliaryServer is an HTTP server (API, metrics) managed alongside the
// agents.
type AuxiliaryServer interface {
	// Start serves and blocks until ctx is cancelled or the server fails.
	Start(ctx context.Context) error
	// Stop initiates graceful shutdown.
	Stop(ctx context.Context) error
}

// Runtime owns every component of a running coordinator.
type Runtime struct {
	store       *store.GORMStore
	coordinator *service.Coordinator
	backends    *backend.Registry
	notifier    notify.Notifier
	runner      *agents.Runner

	apiServer     *api.Server
	metricsServer AuxiliaryServer

	shutdownTimeout time.Duration

	serveOnce sync.Once
	closeOnce sync.Once
}

// New builds a runtime from cfg. Nothing is started until Serve is called.
// On error every component created so far is released.
func New(ctx context.Context, cfg *config.Config) (rt *Runtime, err error) {
	rt = &Runtime{shutdownTimeout: cfg.ShutdownTimeout}
	if rt.shutdownTimeout <= 0 {
		rt.shutdownTimeout = DefaultShutdownTimeout
	}
	defer func() {
		if err != nil {
			rt.close()
			rt = nil
		}
	}()

	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		rt.metricsServer = metrics.NewServer(cfg.Metrics)
		logger.Info("Metrics enabled", "port", cfg.Metrics.Port, logger.KeyPath, cfg.Metrics.Path)
	} else {
		logger.Info("Metrics collection disabled")
	}

	rt.store, err = store.New(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}
	logger.Info("Lifecycle store ready", "type", rt.store.Type())

	rt.coordinator = service.New(rt.store, prommetrics.NewCoordinatorMetrics(), cfg.ServiceOptions())

	rt.backends, err = config.InitializeBackends(ctx, cfg, prommetrics.NewBackendMetrics())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize backends: %w", err)
	}

	rt.notifier, err = notify.New(cfg.Notifier)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize notifier: %w", err)
	}

	rt.runner = rt.buildRunner(cfg)

	if cfg.API.IsEnabled() {
		rt.apiServer, err = api.NewServer(cfg.API, api.Dependencies{
			Coordinator: rt.coordinator,
			Backends:    rt.backends,
			Agents:      rt.runner,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create API server: %w", err)
		}
		logger.Info("API server configured", "port", rt.apiServer.Port())
	} else {
		logger.Info("API server disabled")
	}

	return rt, nil
}

// buildRunner schedules every enabled agent.
func (r *Runtime) buildRunner(cfg *config.Config) *agents.Runner {
	agentMetrics := prommetrics.NewAgentMetrics()
	runner := agents.NewRunner(agentMetrics)
	a := cfg.Agents

	if a.Resolve.Enabled {
		runner.Add(agents.NewResolveAgent(r.coordinator, r.backends, a.Resolve), a.Resolve.Interval)
	}
	if a.Submit.Enabled {
		submit := agents.NewSubmitAgent(r.coordinator, r.backends, a.Submit,
			r.coordinator.Options().PinLifetime, cfg.Quotas(), agentMetrics)
		runner.Add(submit, a.Submit.Interval)
	}
	if a.Monitor.Enabled {
		runner.Add(agents.NewMonitorAgent(r.coordinator, r.backends, a.Monitor), a.Monitor.Interval)
	}
	if a.Finalize.Enabled {
		runner.Add(agents.NewFinalizeAgent(r.coordinator, r.notifier, a.Finalize, agentMetrics), a.Finalize.Interval)
	}

	logger.Info("Agents configured",
		"resolve", a.Resolve.Enabled,
		"submit", a.Submit.Enabled,
		"monitor", a.Monitor.Enabled,
		"finalize", a.Finalize.Enabled,
		"notifier", r.notifier.Type())
	return runner
}

// Coordinator returns the lifecycle coordinator.
func (r *Runtime) Coordinator() *service.Coordinator { return r.coordinator }

// Backends returns the storage element registry.
func (r *Runtime) Backends() *backend.Registry { return r.backends }

// Runner returns the agent runner.
func (r *Runtime) Runner() *agents.Runner { return r.runner }

// APIServer returns the API server, or nil when the API is disabled.
func (r *Runtime) APIServer() *api.Server { return r.apiServer }

// Serve starts the agents and the auxiliary servers and blocks until ctx is
// cancelled or a server fails. Every component is shut down before Serve
// returns. Serve may only be called once.
func (r *Runtime) Serve(ctx context.Context) error {
	err := errors.New("runtime already served")
	r.serveOnce.Do(func() {
		err = r.serve(ctx)
	})
	return err
}

func (r *Runtime) serve(ctx context.Context) error {
	logger.Info("Starting stager runtime", "storage_elements", r.backends.Count())

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errChan := make(chan error, 2)
	start := func(name string, s AuxiliaryServer) {
		go func() {
			if err := s.Start(ctx); err != nil {
				logger.Error("Server error", "server", name, logger.KeyError, err)
				errChan <- fmt.Errorf("%s server error: %w", name, err)
			}
		}()
	}
	if r.apiServer != nil {
		start("API", r.apiServer)
	}
	if r.metricsServer != nil {
		start("metrics", r.metricsServer)
	}

	r.runner.Start(ctx)

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received", "reason", ctx.Err())
	case serveErr = <-errChan:
		logger.Error("Server failed, initiating shutdown", logger.KeyError, serveErr)
	}

	cancel()
	r.shutdown()
	logger.Info("Stager runtime stopped")
	return serveErr
}

// shutdown stops the agents first so no cycle runs against a closed store,
// then the servers, then releases the backends and the store.
func (r *Runtime) shutdown() {
	deadline := time.Now().Add(r.shutdownTimeout)

	logger.Debug("Stopping agents")
	r.runner.Stop(r.shutdownTimeout)

	stopCtx, cancel := context.WithDeadline(context.Background(), deadline)
	defer cancel()
	if r.apiServer != nil {
		if err := r.apiServer.Stop(stopCtx); err != nil {
			logger.Warn("API server shutdown error", logger.KeyError, err)
		}
	}
	if r.metricsServer != nil {
		if err := r.metricsServer.Stop(stopCtx); err != nil {
			logger.Warn("Metrics server shutdown error", logger.KeyError, err)
		}
	}

	r.close()
}

// Close releases the backends and the store of a runtime that was never
// served. It is a no-op after Serve has returned.
func (r *Runtime) Close() error {
	return r.close()
}

func (r *Runtime) close() error {
	var err error
	r.closeOnce.Do(func() {
		if r.backends != nil {
			if cerr := r.backends.Close(); cerr != nil {
				logger.Warn("Error closing backends", logger.KeyError, cerr)
				err = errors.Join(err, cerr)
			}
		}
		if r.store != nil {
			if cerr := r.store.Close(); cerr != nil {
				logger.Warn("Error closing store", logger.KeyError, cerr)
				err = errors.Join(err, cerr)
			}
		}
	})
	return err
}
