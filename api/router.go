// Package api assembles the HTTP router of the dispatch service.
package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kilianp07/courier-dispatch/api/assign"
	apidispatch "github.com/kilianp07/courier-dispatch/api/dispatch"
	"github.com/kilianp07/courier-dispatch/api/middleware"
	"github.com/kilianp07/courier-dispatch/core/dispatch/logging"
	"github.com/kilianp07/courier-dispatch/core/logger"
)

// Options configures the router.
type Options struct {
	Assigner assign.Assigner
	// Store backs GET /api/dispatch/logs. Nil disables the route.
	Store     logging.LogStore
	LogsToken string
	// Metrics mounts the default Prometheus registry on /metrics.
	Metrics bool
	Logger  logger.Logger
}

// NewRouter returns the gin engine serving every route.
func NewRouter(opts Options) *gin.Engine {
	log := opts.Logger
	if log == nil {
		log = logger.NopLogger{}
	}
	r := gin.New()
	r.Use(middleware.Recovery(log), middleware.AccessLog(log))

	assign.NewHandler(opts.Assigner, log).Register(r)
	if opts.Store != nil {
		r.GET("/api/dispatch/logs", gin.WrapH(apidispatch.NewLogHandler(opts.Store, opts.LogsToken)))
	}
	if opts.Metrics {
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}
	return r
}
