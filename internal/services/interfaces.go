package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"pulpe/internal/calculator"
	"pulpe/internal/cascade"
	"pulpe/internal/display"
	"pulpe/internal/models"
	"pulpe/internal/pagination"
	"pulpe/internal/period"
)

// UserServicer defines the contract for user-related business logic.
type UserServicer interface {
	CreateUser(email, password, firstName, lastName string, payDay int) (*models.User, error)
	GetUserByEmail(email string) (*models.User, error)
	GetUserByID(id string) (*models.User, error)
	VerifyPassword(user *models.User, password string) bool
	UpdatePayDay(userID string, payDay int) (*models.User, error)
	ListActiveUserIDs(ctx context.Context) ([]string, error)
}

// PeriodDetails is the computed view of a budget period.
type PeriodDetails struct {
	Period       models.BudgetPeriod        `json:"period"`
	Window       period.Window              `json:"window"`
	Rollover     calculator.Rollover        `json:"rollover"`
	Envelopes    []models.Envelope          `json:"envelopes"`
	Transactions []models.Transaction       `json:"transactions"`
	Usage        []calculator.EnvelopeUsage `json:"usage"`
	Totals       calculator.Totals          `json:"totals"`
	Items        []display.Item             `json:"items"`
}

// BudgetPeriodServicer defines the contract for budget period business logic.
type BudgetPeriodServicer interface {
	CreatePeriod(userID string, month, year int) (*models.BudgetPeriod, error)
	GetUserPeriods(userID string, page pagination.PageRequest) (*pagination.PageResponse[models.BudgetPeriod], error)
	GetPeriodByID(userID, periodID string) (*models.BudgetPeriod, error)
	FindPeriodForDate(userID string, date time.Time) (*models.BudgetPeriod, error)
	GetPeriodDetails(userID, periodID string) (*PeriodDetails, error)
	GetSnapshot(userID, periodID string) (*cascade.Snapshot, error)
	DeletePeriod(userID, periodID string) error
	RecalculateEndingBalance(userID, periodID string) (*models.BudgetPeriod, error)
	RecalculateUser(ctx context.Context, userID string) (int, error)
}

// EnvelopeInput holds the fields of a new envelope.
type EnvelopeInput struct {
	Name          string
	PlannedAmount decimal.Decimal
	Kind          models.Kind
	Recurrence    models.Recurrence
}

// EnvelopeUpdate holds the optional fields of an envelope update.
type EnvelopeUpdate struct {
	Name          *string
	PlannedAmount *decimal.Decimal
	Kind          *models.Kind
	Recurrence    *models.Recurrence
}

// EnvelopeServicer defines the contract for envelope business logic.
type EnvelopeServicer interface {
	CreateEnvelope(userID, periodID string, in EnvelopeInput) (*models.Envelope, error)
	GetEnvelopeByID(userID, envelopeID string) (*models.Envelope, error)
	UpdateEnvelope(userID, envelopeID string, in EnvelopeUpdate) (*models.Envelope, error)
	DeleteEnvelope(userID, envelopeID string) error
	SetChecked(userID, envelopeID string, checkedAt *time.Time) (*models.Envelope, error)
	ToggleEnvelope(userID, envelopeID string) (*cascade.EnvelopeResult, error)
}

// TransactionInput holds the fields of a new transaction.
type TransactionInput struct {
	PeriodID   string
	EnvelopeID *string
	Name       string
	Amount     decimal.Decimal
	Kind       models.Kind
	OccurredAt time.Time
}

// TransactionUpdate holds the optional fields of a transaction update.
// DetachEnvelope makes the transaction free and takes precedence over
// EnvelopeID.
type TransactionUpdate struct {
	EnvelopeID     *string
	DetachEnvelope bool
	Name           *string
	Amount         *decimal.Decimal
	Kind           *models.Kind
	OccurredAt     *time.Time
}

// TransactionServicer defines the contract for transaction business logic.
type TransactionServicer interface {
	CreateTransaction(userID string, in TransactionInput) (*models.Transaction, error)
	GetTransactionByID(userID, transactionID string) (*models.Transaction, error)
	GetPeriodTransactions(userID, periodID string, page pagination.PageRequest) (*pagination.PageResponse[models.Transaction], error)
	UpdateTransaction(userID, transactionID string, in TransactionUpdate) (*models.Transaction, error)
	DeleteTransaction(userID, transactionID string) error
	SetChecked(userID, transactionID string, checkedAt *time.Time) (*models.Transaction, error)
	ToggleTransaction(userID, transactionID string) (*cascade.TransactionResult, error)
}

// MutationRecorder defines the contract for recording who changed what.
type MutationRecorder interface {
	Record(userID, action, resourceType, resourceID, ipAddress string, changes map[string]interface{})
}
