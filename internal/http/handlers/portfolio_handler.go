// Portfolio HTTP handlers.
//
// This file exposes the dashboard read endpoints over the pipeline's output
// records:
//   - GET /portfolio/accounts   (canonical accounts + summaries, paginated)
//   - GET /portfolio/snapshots  (snapshot history, paginated)
//   - GET /portfolio/insights   (period insights)
//
// It also hosts the Handlers struct shared by every endpoint group.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/finvista/go-aa-sync-backend/internal/domain"
	"github.com/finvista/go-aa-sync-backend/internal/services"
	"github.com/finvista/go-aa-sync-backend/internal/utils"
)

// PortfolioService defines the dashboard read operations consumed by HTTP
// handlers. Implementations should be safe for concurrent use and must
// honor the provided context for cancellation and timeouts.
type PortfolioService interface {
	// Accounts returns a page of canonical accounts with summaries and the total count.
	Accounts(ctx context.Context, externalIdentity string, page, pageSize int) ([]services.AccountView, int64, error)
	// Snapshots returns a page of snapshot history and the total count.
	Snapshots(ctx context.Context, externalIdentity string, page, pageSize int) ([]domain.PortfolioSnapshot, int64, error)
	// Insights returns the identity's insight rows.
	Insights(ctx context.Context, externalIdentity string) ([]domain.Insight, error)
}

//
// Handler wiring
//

// Handlers groups HTTP endpoints for sync runs, health, and dashboard
// reads. It depends on abstract service interfaces to keep transport
// concerns separate from pipeline logic.
type Handlers struct {
	syncSvc      SyncService
	portfolioSvc PortfolioService
	upstream     UpstreamHealth

	// syncIdentity is the fixed external identity GET/DELETE /sync/run
	// operate on.
	syncIdentity string
}

// New constructs a Handlers instance bound to the given services.
func New(syncSvc SyncService, portfolioSvc PortfolioService, upstream UpstreamHealth, syncIdentity string) *Handlers {
	return &Handlers{
		syncSvc:      syncSvc,
		portfolioSvc: portfolioSvc,
		upstream:     upstream,
		syncIdentity: syncIdentity,
	}
}

// identity extracts the external identity from the X-User-ID header,
// falling back to the configured sync identity. The dashboard passes the
// identity it renders for; the harness omits it.
func (h *Handlers) identity(c *gin.Context) string {
	if c != nil && c.Request != nil {
		if v := strings.TrimSpace(c.GetHeader("X-User-ID")); v != "" {
			return v
		}
	}
	return h.syncIdentity
}

//
// DTOs
//

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// ListAccountsResponse wraps a page of accounts and pagination information.
type ListAccountsResponse struct {
	Accounts   []services.AccountView `json:"accounts"`
	Pagination Pagination             `json:"pagination"`
}

// ListSnapshotsResponse wraps a page of snapshots and pagination information.
type ListSnapshotsResponse struct {
	Snapshots  []domain.PortfolioSnapshot `json:"snapshots"`
	Pagination Pagination                 `json:"pagination"`
}

// ListInsightsResponse wraps the identity's insight rows.
type ListInsightsResponse struct {
	Insights []domain.Insight `json:"insights"`
}

//
// Helpers
//

// clampPagination parses and bounds page and page_size query params to sane
// defaults and limits, returning (page, pageSize).
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.AtoiDefault(c.Query("page_size"), defaultPageSize)
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return
}

func paginate(page, pageSize int, total int64) Pagination {
	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	return Pagination{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
	}
}

//
// Handlers
//

// ListAccounts godoc
// @ID          listAccounts
// @Summary     List canonical accounts (paginated)
// @Description Returns a page of the identity's canonical accounts joined with their derived summaries.
// @Tags        Portfolio
// @Produce     json
//
// @Param       X-User-ID  header  string  false "External identity"  example(8956545791)
// @Param       page       query   int     false "Page number"        minimum(1) default(1)
// @Param       page_size  query   int     false "Items per page"     minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.ListAccountsResponse
// @Failure     404  {object} handlers.ErrorResponse "Identity never synced"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /portfolio/accounts [get]
func (h *Handlers) ListAccounts(c *gin.Context) {
	page, pageSize := clampPagination(c)
	items, total, err := h.portfolioSvc.Accounts(c.Request.Context(), h.identity(c), page, pageSize)
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "identity has no data")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, ListAccountsResponse{
		Accounts:   items,
		Pagination: paginate(page, pageSize, total),
	})
}

// ListSnapshots godoc
// @ID          listSnapshots
// @Summary     List portfolio snapshots (paginated)
// @Description Returns a page of the identity's snapshot history, newest first.
// @Tags        Portfolio
// @Produce     json
//
// @Param       X-User-ID  header  string  false "External identity"  example(8956545791)
// @Param       page       query   int     false "Page number"        minimum(1) default(1)
// @Param       page_size  query   int     false "Items per page"     minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.ListSnapshotsResponse
// @Failure     404  {object} handlers.ErrorResponse "Identity never synced"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /portfolio/snapshots [get]
func (h *Handlers) ListSnapshots(c *gin.Context) {
	page, pageSize := clampPagination(c)
	items, total, err := h.portfolioSvc.Snapshots(c.Request.Context(), h.identity(c), page, pageSize)
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "identity has no data")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, ListSnapshotsResponse{
		Snapshots:  items,
		Pagination: paginate(page, pageSize, total),
	})
}

// ListInsights godoc
// @ID          listInsights
// @Summary     List period insights
// @Description Returns the identity's computed period insights, newest first.
// @Tags        Portfolio
// @Produce     json
//
// @Param       X-User-ID  header  string  false "External identity"  example(8956545791)
//
// @Success     200  {object} handlers.ListInsightsResponse
// @Failure     404  {object} handlers.ErrorResponse "Identity never synced"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /portfolio/insights [get]
func (h *Handlers) ListInsights(c *gin.Context) {
	items, err := h.portfolioSvc.Insights(c.Request.Context(), h.identity(c))
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "identity has no data")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, ListInsightsResponse{Insights: items})
}
