package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "pulpe/internal/errors"
	"pulpe/internal/pagination"
	"pulpe/internal/services"
)

// BudgetPeriodHandler handles budget period requests.
type BudgetPeriodHandler struct {
	periodService services.BudgetPeriodServicer
	mutations     services.MutationRecorder
	now           func() time.Time
}

// NewBudgetPeriodHandler creates a new BudgetPeriodHandler.
func NewBudgetPeriodHandler(periodService services.BudgetPeriodServicer, mutations services.MutationRecorder) *BudgetPeriodHandler {
	return &BudgetPeriodHandler{periodService: periodService, mutations: mutations, now: time.Now}
}

// CreatePeriodRequest represents the request payload for opening a period.
type CreatePeriodRequest struct {
	Month int `json:"month" binding:"required,min=1,max=12"`
	Year  int `json:"year" binding:"required,min=1,max=9999"`
}

// CreatePeriod opens a budget period.
// @Summary     Create a budget period
// @Description Open the period with the given label and link it into the rollover chain
// @Tags        budget-periods
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body CreatePeriodRequest true "Period label"
// @Success     201 {object} models.BudgetPeriod "Period created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     409 {object} ErrorResponse "Period already exists"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /budget-periods [post]
func (h *BudgetPeriodHandler) CreatePeriod(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreatePeriodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	p, err := h.periodService.CreatePeriod(userID, req.Month, req.Year)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.mutations.Record(userID, "CREATE_BUDGET_PERIOD", "budget_period", p.ID, c.ClientIP(),
		map[string]interface{}{"month": req.Month, "year": req.Year})

	c.JSON(http.StatusCreated, gin.H{"budget_period": p})
}

// GetPeriods lists the user's periods, most recent first.
// @Summary     List budget periods
// @Tags        budget-periods
// @Produce     json
// @Security    BearerAuth
// @Param       page      query int false "Page number"
// @Param       page_size query int false "Page size"
// @Success     200 {object} pagination.PageResponse[models.BudgetPeriod]
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /budget-periods [get]
func (h *BudgetPeriodHandler) GetPeriods(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	result, err := h.periodService.GetUserPeriods(userID, page)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetCurrentPeriod returns the period containing a date, today by default.
// @Summary     Find the period for a date
// @Description Resolve a date to its period using the user's pay day
// @Tags        budget-periods
// @Produce     json
// @Security    BearerAuth
// @Param       date query string false "Date as YYYY-MM-DD"
// @Success     200 {object} models.BudgetPeriod
// @Failure     400 {object} ErrorResponse "Invalid date"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "No period for that date"
// @Router      /budget-periods/current [get]
func (h *BudgetPeriodHandler) GetCurrentPeriod(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	date := h.now()
	if raw := c.Query("date"); raw != "" {
		date, err = time.Parse(time.DateOnly, raw)
		if err != nil {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "date must be formatted as YYYY-MM-DD"))
			return
		}
	}

	p, err := h.periodService.FindPeriodForDate(userID, date)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"budget_period": p})
}

// GetPeriod returns the computed view of a period.
// @Summary     Get a budget period
// @Description Period window, rollover, totals, envelope usage and display order
// @Tags        budget-periods
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Period ID"
// @Success     200 {object} services.PeriodDetails
// @Failure     400 {object} ErrorResponse "Invalid ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Period not found"
// @Router      /budget-periods/{id} [get]
func (h *BudgetPeriodHandler) GetPeriod(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	periodID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	details, err := h.periodService.GetPeriodDetails(userID, periodID)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, details)
}

// GetSnapshot returns the envelopes and transactions of a period as used by
// client sessions.
// @Summary     Get a period snapshot
// @Tags        budget-periods
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Period ID"
// @Success     200 {object} cascade.Snapshot
// @Failure     400 {object} ErrorResponse "Invalid ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Period not found"
// @Router      /budget-periods/{id}/snapshot [get]
func (h *BudgetPeriodHandler) GetSnapshot(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	periodID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	snap, err := h.periodService.GetSnapshot(userID, periodID)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"snapshot": snap})
}

// DeletePeriod deletes a period with its content.
// @Summary     Delete a budget period
// @Tags        budget-periods
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Period ID"
// @Success     200 {object} map[string]string
// @Failure     400 {object} ErrorResponse "Invalid ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Period not found"
// @Router      /budget-periods/{id} [delete]
func (h *BudgetPeriodHandler) DeletePeriod(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	periodID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.periodService.DeletePeriod(userID, periodID); err != nil {
		respondWithError(c, err)
		return
	}

	h.mutations.Record(userID, "DELETE_BUDGET_PERIOD", "budget_period", periodID, c.ClientIP(), nil)

	c.JSON(http.StatusOK, gin.H{"message": "Budget period deleted successfully"})
}

// RecalculateEndingBalance refreshes the cached ending balance of a period
// and its successors.
// @Summary     Recalculate ending balance
// @Tags        budget-periods
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Period ID"
// @Success     200 {object} models.BudgetPeriod
// @Failure     400 {object} ErrorResponse "Invalid ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Period not found"
// @Router      /budget-periods/{id}/ending-balance [post]
func (h *BudgetPeriodHandler) RecalculateEndingBalance(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	periodID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	p, err := h.periodService.RecalculateEndingBalance(userID, periodID)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"budget_period": p})
}
