// Sync HTTP handlers.
//
// This file exposes the pipeline's own surface, consumed by the
// verification harness and external monitoring:
//   - GET    /sync/run     (execute one full pipeline cycle)
//   - DELETE /sync/run     (remove all rows owned by the test identity)
//   - GET    /sync/health  (token cache / upstream reachability state)
//
// Handlers are transport-thin: they call the orchestrator and translate its
// report into HTTP responses.
package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/finvista/go-aa-sync-backend/internal/services"
)

//
// Service contracts (context-aware)
//

// SyncService runs and cleans up sync cycles for a stable external
// identity. Implementations must be safe for concurrent use and must honor
// the provided context for cancellation and timeouts.
type SyncService interface {
	// Run executes one full pipeline cycle and returns the step report.
	Run(ctx context.Context, externalIdentity string) *services.Report
	// Cleanup removes every row owned by the identity, cascading from User.
	Cleanup(ctx context.Context, externalIdentity string) error
}

// UpstreamHealth reports the token cache state for monitoring.
type UpstreamHealth interface {
	// HasToken reports whether a usable bearer token is currently cached.
	HasToken() bool
	// BaseURL returns the configured upstream base URL.
	BaseURL() string
}

//
// DTOs
//

// SyncHealthResponse reflects the token cache state.
type SyncHealthResponse struct {
	Status   string `json:"status"   example:"ok"`
	HasToken bool   `json:"has_token"`
	BaseURL  string `json:"base_url" example:"https://sandbox.api.fiaggregator.com/v1"`
}

//
// Handlers
//

// RunSync godoc
// @ID          runSync
// @Summary     Run one sync pipeline cycle
// @Description Executes the full pipeline for the configured test identity and returns the per-step report.
// @Tags        Sync
// @Produce     json
//
// @Success     200  {object}  services.Report
// @Failure     502  {object}  handlers.ErrorResponse  "Upstream failure"
// @Router      /sync/run [get]
func (h *Handlers) RunSync(c *gin.Context) {
	rep := h.syncSvc.Run(c.Request.Context(), h.syncIdentity)

	// The report is always returned in full; the HTTP status mirrors the
	// run outcome so dashboards can alert on it without parsing steps.
	status := http.StatusOK
	if rep.Summary.Status == services.StatusFail {
		status = http.StatusBadGateway
	}
	ok(c, status, rep)
}

// CleanupSync godoc
// @ID          cleanupSync
// @Summary     Remove the test identity's data
// @Description Deletes every row owned by the configured test identity, cascading from the user.
// @Tags        Sync
// @Produce     json
//
// @Success     204  {string}  string "No Content"
// @Failure     404  {object}  handlers.ErrorResponse "Identity never synced"
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /sync/run [delete]
func (h *Handlers) CleanupSync(c *gin.Context) {
	err := h.syncSvc.Cleanup(c.Request.Context(), h.syncIdentity)
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "identity has no data")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeCleanupFailed, err.Error())
		return
	}
	noContent(c)
}

// SyncHealth godoc
// @ID          syncHealth
// @Summary     Upstream token health
// @Description Reports whether a bearer token for the upstream aggregator is currently cached.
// @Tags        Sync
// @Produce     json
//
// @Success     200  {object}  handlers.SyncHealthResponse
// @Router      /sync/health [get]
func (h *Handlers) SyncHealth(c *gin.Context) {
	ok(c, http.StatusOK, SyncHealthResponse{
		Status:   "ok",
		HasToken: h.upstream.HasToken(),
		BaseURL:  h.upstream.BaseURL(),
	})
}
