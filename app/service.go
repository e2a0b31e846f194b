// Package app wires the assignment engine, its collaborators and the HTTP API
// into a runnable service.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kilianp07/courier-dispatch/api"
	"github.com/kilianp07/courier-dispatch/config"
	"github.com/kilianp07/courier-dispatch/core/dispatch"
	"github.com/kilianp07/courier-dispatch/core/dispatch/logging"
	"github.com/kilianp07/courier-dispatch/core/factory"
	coremetrics "github.com/kilianp07/courier-dispatch/core/metrics"
	coremon "github.com/kilianp07/courier-dispatch/core/monitoring"
	"github.com/kilianp07/courier-dispatch/infra/logger"
	_ "github.com/kilianp07/courier-dispatch/infra/metrics"
	"github.com/kilianp07/courier-dispatch/infra/monitoring"
	"github.com/kilianp07/courier-dispatch/infra/reliability"
	"github.com/kilianp07/courier-dispatch/internal/eventbus"
)

const flushTimeout = 2 * time.Second

// Service orchestrates the assignment manager, the audit recorder and the
// HTTP server.
type Service struct {
	Manager *dispatch.AssignmentManager

	server   *http.Server
	bus      *eventbus.TypedBus[dispatch.Run]
	store    logging.LogStore
	recorder *logging.Recorder
	source   reliability.Source
	sink     coremetrics.MetricsSink
	log      logger.Logger
	shutdown time.Duration
}

// New creates a Service from the configuration.
func New(ctx context.Context, cfg *config.Config) (*Service, error) {
	logg := logger.New("service")

	mon, err := monitoring.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		return nil, fmt.Errorf("sentry: %w", err)
	}
	coremon.Init(mon)

	engine, err := dispatch.NewEngine(cfg.Dispatch)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}

	sink, err := coremetrics.NewMetricsSink(sinkConfigs(cfg.Metrics))
	if err != nil {
		return nil, fmt.Errorf("metrics sink: %w", err)
	}

	store, err := logging.NewLogStore(ctx, cfg.Logging)
	if err != nil {
		closeSink(sink)
		return nil, fmt.Errorf("audit log: %w", err)
	}

	svc := &Service{
		bus:      eventbus.NewTyped[dispatch.Run](),
		store:    store,
		recorder: logging.NewRecorder(store, logger.New("audit")),
		sink:     sink,
		log:      logg,
		shutdown: cfg.HTTP.ShutdownTimeout(),
	}

	var source dispatch.ReliabilitySource
	svc.source, err = reliability.NewSource(ctx, cfg.Reliability)
	if err != nil {
		_ = svc.Close()
		return nil, fmt.Errorf("reliability source: %w", err)
	}
	if svc.source != nil {
		if p, ok := svc.source.(interface{ Ping(context.Context) error }); ok {
			if err := p.Ping(ctx); err != nil {
				logg.Warnf("reliability source unreachable: %v", err)
			}
		}
		source = svc.source
	}

	svc.Manager, err = dispatch.NewAssignmentManager(engine, sink, svc.bus, source, logger.New("dispatch"))
	if err != nil {
		_ = svc.Close()
		return nil, fmt.Errorf("assignment manager: %w", err)
	}

	if strings.ToLower(os.Getenv("APP_ENV")) != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	opts := api.Options{
		Assigner:  svc.Manager,
		LogsToken: cfg.HTTP.LogsToken,
		Metrics:   cfg.Metrics.PrometheusEnabled,
		Logger:    logger.New("http"),
	}
	if cfg.Logging.Backend != logging.BackendNone {
		opts.Store = store
	}
	svc.server = &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      api.NewRouter(opts),
		ReadTimeout:  cfg.HTTP.ReadTimeout(),
		WriteTimeout: cfg.HTTP.WriteTimeout(),
	}
	return svc, nil
}

// sinkConfigs adds the Prometheus sink when the exporter is enabled and the
// sink list does not already carry one.
func sinkConfigs(cfg coremetrics.Config) []factory.ModuleConfig {
	sinks := cfg.Sinks
	if !cfg.PrometheusEnabled {
		return sinks
	}
	for _, s := range sinks {
		if s.Type == "prometheus" {
			return sinks
		}
	}
	return append(append([]factory.ModuleConfig(nil), sinks...), factory.ModuleConfig{Type: "prometheus"})
}

// Handler returns the HTTP handler serving the API.
func (s *Service) Handler() http.Handler { return s.server.Handler }

// Run listens on the configured address and blocks until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.server.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve answers requests on ln until ctx is cancelled, then shuts the server
// down and waits for the audit recorder to drain pending runs.
func (s *Service) Serve(ctx context.Context, ln net.Listener) error {
	recorded := s.recorder.Start(context.WithoutCancel(ctx), s.bus)

	errCh := make(chan error, 1)
	go func() {
		s.log.Infof("listening on %s", ln.Addr())
		errCh <- s.server.Serve(ln)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdown)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			serveErr = fmt.Errorf("shutdown: %w", err)
		}
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			serveErr = err
		}
	}

	s.bus.Close()
	<-recorded
	return serveErr
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	s.bus.Close()
	var errs []error
	if s.store != nil {
		errs = append(errs, s.store.Close())
	}
	if s.source != nil {
		errs = append(errs, s.source.Close())
	}
	closeSink(s.sink)
	coremon.Flush(flushTimeout)
	return errors.Join(errs...)
}

// closeSink releases sinks holding a client, such as the Influx writer.
func closeSink(sink coremetrics.MetricsSink) {
	if c, ok := sink.(interface{ Close() }); ok {
		c.Close()
	}
}
