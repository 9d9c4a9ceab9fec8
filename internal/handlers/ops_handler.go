package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "pulpe/internal/errors"
	"pulpe/internal/scheduler"
)

// ChainRefresher runs a full ending-balance refresh.
type ChainRefresher interface {
	RunNow(ctx context.Context) (scheduler.Report, error)
	LastReport() (scheduler.Report, bool)
}

var errRefreshRunning = &apperrors.AppError{Code: "REFRESH_RUNNING", Message: "A refresh is already running", StatusCode: http.StatusConflict}

// OpsHandler exposes operations endpoints.
type OpsHandler struct {
	refresher ChainRefresher
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(refresher ChainRefresher) *OpsHandler {
	return &OpsHandler{refresher: refresher}
}

// RefreshChains recomputes the rollover chain of every active user.
// @Summary     Refresh all ending balances
// @Tags        ops
// @Produce     json
// @Param       X-API-Key header string true "Operations API key"
// @Success     200 {object} scheduler.Report
// @Failure     401 {object} ErrorResponse "Invalid API key"
// @Failure     409 {object} ErrorResponse "Refresh already running"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /ops/refresh [post]
func (h *OpsHandler) RefreshChains(c *gin.Context) {
	report, err := h.refresher.RunNow(c.Request.Context())
	if err != nil {
		if errors.Is(err, scheduler.ErrAlreadyRunning) {
			respondWithError(c, errRefreshRunning)
			return
		}
		respondWithError(c, apperrors.Wrap(apperrors.ErrInternalServer, err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"report": report})
}

// LastRefresh returns the report of the latest completed refresh.
// @Summary     Last refresh report
// @Tags        ops
// @Produce     json
// @Param       X-API-Key header string true "Operations API key"
// @Success     200 {object} scheduler.Report
// @Failure     401 {object} ErrorResponse "Invalid API key"
// @Failure     404 {object} ErrorResponse "No refresh has completed"
// @Router      /ops/refresh [get]
func (h *OpsHandler) LastRefresh(c *gin.Context) {
	report, ok := h.refresher.LastReport()
	if !ok {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrNotFound, "No refresh has completed yet"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"report": report})
}
