// Package assign exposes the assignment engine over HTTP.
package assign

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kilianp07/courier-dispatch/core/dispatch"
	"github.com/kilianp07/courier-dispatch/core/logger"
	"github.com/kilianp07/courier-dispatch/core/model"
	"github.com/kilianp07/courier-dispatch/core/monitoring"
	"github.com/kilianp07/courier-dispatch/pkg/export"
	"github.com/kilianp07/courier-dispatch/pkg/snapshot"
)

// ServiceName is reported by the health endpoint.
const ServiceName = "dispatch"

// Assigner runs one assignment. *dispatch.AssignmentManager implements it.
type Assigner interface {
	Assign(ctx context.Context, snap model.Snapshot) (dispatch.Run, error)
}

type errorResponse struct {
	Error string `json:"error"`
}

type healthResponse struct {
	OK      bool   `json:"ok"`
	Service string `json:"service"`
}

// Handler serves POST /assign and GET /health.
type Handler struct {
	assigner Assigner
	log      logger.Logger
}

// NewHandler creates a handler. log may be nil.
func NewHandler(a Assigner, log logger.Logger) *Handler {
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Handler{assigner: a, log: log}
}

// Register mounts the routes on r.
func (h *Handler) Register(r gin.IRouter) {
	r.POST("/assign", h.Assign)
	r.GET("/health", h.Health)
}

// Assign decodes a snapshot document and answers with the assignments and
// the orders that were skipped.
func (h *Handler) Assign(c *gin.Context) {
	var doc snapshot.Document
	if err := c.ShouldBindJSON(&doc); err != nil {
		h.log.Debugf("invalid assign payload: %v", err)
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid payload"})
		return
	}
	run, err := h.assigner.Assign(c.Request.Context(), doc.ToModel())
	if err != nil {
		h.log.Errorf("assign failed: %v", err)
		monitoring.CaptureException(err, map[string]string{"route": c.FullPath()})
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}
	c.Header("X-Run-ID", run.ID.String())
	c.JSON(http.StatusOK, export.NewReport(run.Result.Assignments, run.Result.Skipped))
}

// Health reports liveness.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, healthResponse{OK: true, Service: ServiceName})
}
