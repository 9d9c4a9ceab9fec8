package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "pulpe/internal/errors"
	"pulpe/internal/models"
	"pulpe/internal/pagination"
	"pulpe/internal/services"
)

// TransactionHandler handles transaction requests.
type TransactionHandler struct {
	transactionService services.TransactionServicer
	mutations          services.MutationRecorder
}

// NewTransactionHandler creates a new TransactionHandler.
func NewTransactionHandler(transactionService services.TransactionServicer, mutations services.MutationRecorder) *TransactionHandler {
	return &TransactionHandler{transactionService: transactionService, mutations: mutations}
}

// CreateTransactionRequest represents the request payload for recording a
// transaction. Without envelope_id the transaction is free.
type CreateTransactionRequest struct {
	PeriodID   string          `json:"period_id" binding:"required,uuid"`
	EnvelopeID *string         `json:"envelope_id" binding:"omitempty,uuid"`
	Name       string          `json:"name" binding:"required,min=1,max=100"`
	Amount     decimal.Decimal `json:"amount" swaggertype:"string" binding:"amount"`
	Kind       models.Kind     `json:"kind" binding:"required,flow_kind"`
	OccurredAt string          `json:"occurred_at" binding:"omitempty,datetime=2006-01-02"`
}

// UpdateTransactionRequest represents the request payload for updating a
// transaction. detach_envelope makes it free.
type UpdateTransactionRequest struct {
	EnvelopeID     *string          `json:"envelope_id" binding:"omitempty,uuid"`
	DetachEnvelope bool             `json:"detach_envelope"`
	Name           *string          `json:"name" binding:"omitempty,min=1,max=100"`
	Amount         *decimal.Decimal `json:"amount" swaggertype:"string" binding:"omitempty,amount"`
	Kind           *models.Kind     `json:"kind" binding:"omitempty,flow_kind"`
	OccurredAt     *string          `json:"occurred_at" binding:"omitempty,datetime=2006-01-02"`
}

// TransactionToggleResponse is the outcome of a transaction toggle.
type TransactionToggleResponse struct {
	IsChecking      bool               `json:"is_checking"`
	Transaction     models.Transaction `json:"transaction"`
	EnvelopeToggled bool               `json:"envelope_toggled"`
	Envelope        *models.Envelope   `json:"envelope,omitempty"`
}

// CreateTransaction records a transaction.
// @Summary     Create a transaction
// @Tags        transactions
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body CreateTransactionRequest true "Transaction details"
// @Success     201 {object} models.Transaction "Transaction created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Period not found"
// @Failure     422 {object} ErrorResponse "Envelope outside period or of an incompatible kind"
// @Router      /transactions [post]
func (h *TransactionHandler) CreateTransaction(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreateTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	var occurredAt time.Time
	if req.OccurredAt != "" {
		occurredAt, _ = time.Parse(time.DateOnly, req.OccurredAt)
	}

	tx, err := h.transactionService.CreateTransaction(userID, services.TransactionInput{
		PeriodID:   req.PeriodID,
		EnvelopeID: req.EnvelopeID,
		Name:       req.Name,
		Amount:     req.Amount,
		Kind:       req.Kind,
		OccurredAt: occurredAt,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.mutations.Record(userID, "CREATE_TRANSACTION", "transaction", tx.ID, c.ClientIP(),
		map[string]interface{}{"amount": tx.Amount.String(), "kind": tx.Kind, "envelope_id": tx.EnvelopeID})

	c.JSON(http.StatusCreated, gin.H{"transaction": tx})
}

// GetPeriodTransactions lists the transactions of a period, newest first.
// @Summary     List period transactions
// @Tags        transactions
// @Produce     json
// @Security    BearerAuth
// @Param       id        path  string true  "Period ID"
// @Param       page      query int    false "Page number"
// @Param       page_size query int    false "Page size"
// @Success     200 {object} pagination.PageResponse[models.Transaction]
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Period not found"
// @Router      /budget-periods/{id}/transactions [get]
func (h *TransactionHandler) GetPeriodTransactions(c *gin.Context) {
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

	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	result, err := h.transactionService.GetPeriodTransactions(userID, periodID, page)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetTransaction returns one transaction.
// @Summary     Get a transaction
// @Tags        transactions
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Transaction ID"
// @Success     200 {object} models.Transaction
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Transaction not found"
// @Router      /transactions/{id} [get]
func (h *TransactionHandler) GetTransaction(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	transactionID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	tx, err := h.transactionService.GetTransactionByID(userID, transactionID)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transaction": tx})
}

// UpdateTransaction changes a transaction.
// @Summary     Update a transaction
// @Tags        transactions
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string                   true "Transaction ID"
// @Param       request body UpdateTransactionRequest true "Fields to change"
// @Success     200 {object} models.Transaction
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Transaction not found"
// @Failure     422 {object} ErrorResponse "Envelope outside period or of an incompatible kind"
// @Router      /transactions/{id} [put]
func (h *TransactionHandler) UpdateTransaction(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	transactionID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdateTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	update := services.TransactionUpdate{
		EnvelopeID:     req.EnvelopeID,
		DetachEnvelope: req.DetachEnvelope,
		Name:           req.Name,
		Amount:         req.Amount,
		Kind:           req.Kind,
	}
	if req.OccurredAt != nil {
		occurredAt, _ := time.Parse(time.DateOnly, *req.OccurredAt)
		update.OccurredAt = &occurredAt
	}

	tx, err := h.transactionService.UpdateTransaction(userID, transactionID, update)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.mutations.Record(userID, "UPDATE_TRANSACTION", "transaction", tx.ID, c.ClientIP(), nil)

	c.JSON(http.StatusOK, gin.H{"transaction": tx})
}

// DeleteTransaction deletes a transaction.
// @Summary     Delete a transaction
// @Tags        transactions
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Transaction ID"
// @Success     200 {object} map[string]string
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Transaction not found"
// @Router      /transactions/{id} [delete]
func (h *TransactionHandler) DeleteTransaction(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	transactionID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.transactionService.DeleteTransaction(userID, transactionID); err != nil {
		respondWithError(c, err)
		return
	}

	h.mutations.Record(userID, "DELETE_TRANSACTION", "transaction", transactionID, c.ClientIP(), nil)

	c.JSON(http.StatusOK, gin.H{"message": "Transaction deleted successfully"})
}

// SetChecked stores the check state of one transaction without touching its
// envelope.
// @Summary     Set transaction check state
// @Tags        transactions
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string            true "Transaction ID"
// @Param       request body SetCheckedRequest true "Check timestamp, null to uncheck"
// @Success     200 {object} models.Transaction
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Transaction not found"
// @Router      /transactions/{id}/check [put]
func (h *TransactionHandler) SetChecked(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	transactionID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req SetCheckedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	tx, err := h.transactionService.SetChecked(userID, transactionID, req.CheckedAt)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transaction": tx})
}

// ToggleTransaction flips the check state of a transaction and updates its
// envelope when all of its transactions agree.
// @Summary     Toggle a transaction
// @Tags        transactions
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Transaction ID"
// @Success     200 {object} TransactionToggleResponse
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Transaction not found"
// @Router      /transactions/{id}/toggle [post]
func (h *TransactionHandler) ToggleTransaction(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	transactionID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	result, err := h.transactionService.ToggleTransaction(userID, transactionID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	resp := TransactionToggleResponse{
		IsChecking:      result.IsChecking,
		EnvelopeToggled: result.ShouldToggleEnvelope,
	}
	for _, tx := range result.Transactions {
		if tx.ID == transactionID {
			resp.Transaction = tx
			break
		}
	}
	if result.ShouldToggleEnvelope && result.EnvelopeID != nil {
		for i := range result.Envelopes {
			if result.Envelopes[i].ID == *result.EnvelopeID {
				resp.Envelope = &result.Envelopes[i]
				break
			}
		}
	}

	h.mutations.Record(userID, "TOGGLE_TRANSACTION", "transaction", transactionID, c.ClientIP(),
		map[string]interface{}{"checked": result.IsChecking, "envelope_toggled": result.ShouldToggleEnvelope})

	c.JSON(http.StatusOK, resp)
}
