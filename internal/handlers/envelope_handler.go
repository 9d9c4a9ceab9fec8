package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "pulpe/internal/errors"
	"pulpe/internal/models"
	"pulpe/internal/services"
)

// EnvelopeHandler handles envelope requests.
type EnvelopeHandler struct {
	envelopeService services.EnvelopeServicer
	mutations       services.MutationRecorder
}

// NewEnvelopeHandler creates a new EnvelopeHandler.
func NewEnvelopeHandler(envelopeService services.EnvelopeServicer, mutations services.MutationRecorder) *EnvelopeHandler {
	return &EnvelopeHandler{envelopeService: envelopeService, mutations: mutations}
}

// CreateEnvelopeRequest represents the request payload for creating an envelope.
type CreateEnvelopeRequest struct {
	PeriodID      string            `json:"period_id" binding:"required,uuid"`
	Name          string            `json:"name" binding:"required,min=1,max=100"`
	PlannedAmount decimal.Decimal   `json:"planned_amount" swaggertype:"string" binding:"amount"`
	Kind          models.Kind       `json:"kind" binding:"required,flow_kind"`
	Recurrence    models.Recurrence `json:"recurrence" binding:"required,recurrence"`
}

// UpdateEnvelopeRequest represents the request payload for updating an envelope.
type UpdateEnvelopeRequest struct {
	Name          *string            `json:"name" binding:"omitempty,min=1,max=100"`
	PlannedAmount *decimal.Decimal   `json:"planned_amount" swaggertype:"string" binding:"omitempty,amount"`
	Kind          *models.Kind       `json:"kind" binding:"omitempty,flow_kind"`
	Recurrence    *models.Recurrence `json:"recurrence" binding:"omitempty,recurrence"`
}

// SetCheckedRequest sets or clears the check timestamp of an item. A null
// checked_at unchecks it.
type SetCheckedRequest struct {
	CheckedAt *time.Time `json:"checked_at"`
}

// EnvelopeToggleResponse is the outcome of an envelope toggle.
type EnvelopeToggleResponse struct {
	IsChecking         bool                 `json:"is_checking"`
	Envelope           models.Envelope      `json:"envelope"`
	SyncedTransactions []models.Transaction `json:"synced_transactions"`
}

// CreateEnvelope handles the creation of an envelope.
// @Summary     Create an envelope
// @Tags        envelopes
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body CreateEnvelopeRequest true "Envelope details"
// @Success     201 {object} models.Envelope "Envelope created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Period not found"
// @Router      /envelopes [post]
func (h *EnvelopeHandler) CreateEnvelope(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreateEnvelopeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	env, err := h.envelopeService.CreateEnvelope(userID, req.PeriodID, services.EnvelopeInput{
		Name:          req.Name,
		PlannedAmount: req.PlannedAmount,
		Kind:          req.Kind,
		Recurrence:    req.Recurrence,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.mutations.Record(userID, "CREATE_ENVELOPE", "envelope", env.ID, c.ClientIP(),
		map[string]interface{}{"name": env.Name, "planned_amount": env.PlannedAmount.String(), "kind": env.Kind})

	c.JSON(http.StatusCreated, gin.H{"envelope": env})
}

// GetEnvelope returns one envelope.
// @Summary     Get an envelope
// @Tags        envelopes
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Envelope ID"
// @Success     200 {object} models.Envelope
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Envelope not found"
// @Failure     422 {object} ErrorResponse "Rollover envelope"
// @Router      /envelopes/{id} [get]
func (h *EnvelopeHandler) GetEnvelope(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	envelopeID, err := parseEnvelopeID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	env, err := h.envelopeService.GetEnvelopeByID(userID, envelopeID)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"envelope": env})
}

// UpdateEnvelope changes an envelope.
// @Summary     Update an envelope
// @Tags        envelopes
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string                true "Envelope ID"
// @Param       request body UpdateEnvelopeRequest true "Fields to change"
// @Success     200 {object} models.Envelope
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Envelope not found"
// @Failure     422 {object} ErrorResponse "Rollover envelope"
// @Router      /envelopes/{id} [put]
func (h *EnvelopeHandler) UpdateEnvelope(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	envelopeID, err := parseEnvelopeID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdateEnvelopeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	env, err := h.envelopeService.UpdateEnvelope(userID, envelopeID, services.EnvelopeUpdate{
		Name:          req.Name,
		PlannedAmount: req.PlannedAmount,
		Kind:          req.Kind,
		Recurrence:    req.Recurrence,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.mutations.Record(userID, "UPDATE_ENVELOPE", "envelope", env.ID, c.ClientIP(), nil)

	c.JSON(http.StatusOK, gin.H{"envelope": env})
}

// DeleteEnvelope deletes an envelope; its transactions become free.
// @Summary     Delete an envelope
// @Tags        envelopes
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Envelope ID"
// @Success     200 {object} map[string]string
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Envelope not found"
// @Failure     422 {object} ErrorResponse "Rollover envelope"
// @Router      /envelopes/{id} [delete]
func (h *EnvelopeHandler) DeleteEnvelope(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	envelopeID, err := parseEnvelopeID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.envelopeService.DeleteEnvelope(userID, envelopeID); err != nil {
		respondWithError(c, err)
		return
	}

	h.mutations.Record(userID, "DELETE_ENVELOPE", "envelope", envelopeID, c.ClientIP(), nil)

	c.JSON(http.StatusOK, gin.H{"message": "Envelope deleted successfully"})
}

// SetChecked stores the check state of one envelope without cascading.
// @Summary     Set envelope check state
// @Tags        envelopes
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string            true "Envelope ID"
// @Param       request body SetCheckedRequest true "Check timestamp, null to uncheck"
// @Success     200 {object} models.Envelope
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Envelope not found"
// @Failure     422 {object} ErrorResponse "Rollover envelope"
// @Router      /envelopes/{id}/check [put]
func (h *EnvelopeHandler) SetChecked(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	envelopeID, err := parseEnvelopeID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req SetCheckedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	env, err := h.envelopeService.SetChecked(userID, envelopeID, req.CheckedAt)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"envelope": env})
}

// ToggleEnvelope flips the check state of an envelope and cascades it to the
// transactions allocated to it.
// @Summary     Toggle an envelope
// @Tags        envelopes
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Envelope ID"
// @Success     200 {object} EnvelopeToggleResponse
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Envelope not found"
// @Failure     422 {object} ErrorResponse "Rollover envelope"
// @Router      /envelopes/{id}/toggle [post]
func (h *EnvelopeHandler) ToggleEnvelope(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	envelopeID, err := parseEnvelopeID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	result, err := h.envelopeService.ToggleEnvelope(userID, envelopeID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	resp := EnvelopeToggleResponse{
		IsChecking:         result.IsChecking,
		SyncedTransactions: result.TransactionsToSync,
	}
	for _, env := range result.Envelopes {
		if env.ID == envelopeID {
			resp.Envelope = env
			break
		}
	}
	if resp.SyncedTransactions == nil {
		resp.SyncedTransactions = []models.Transaction{}
	}

	h.mutations.Record(userID, "TOGGLE_ENVELOPE", "envelope", envelopeID, c.ClientIP(),
		map[string]interface{}{"checked": result.IsChecking, "synced": len(result.TransactionsToSync)})

	c.JSON(http.StatusOK, resp)
}
