package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"pulpe/internal/models"
)

// counter provides unique values across fixtures within a test run.
var counter atomic.Int64

func nextID() int64 {
	return counter.Add(1)
}

// CreateTestUser creates a user with a hashed password and unique email.
func CreateTestUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	email := fmt.Sprintf("user%d@test.com", nextID())
	return CreateTestUserWithEmail(t, db, email)
}

// CreateTestUserWithEmail creates a user with the given email and pay day 1.
func CreateTestUserWithEmail(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	user := &models.User{
		Email:         email,
		Password:      string(hash),
		PayDayOfMonth: 1,
		IsActive:      true,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// CreateTestPeriod creates a budget period without touching the chain
// columns.
func CreateTestPeriod(t *testing.T, db *gorm.DB, userID string, month, year int) *models.BudgetPeriod {
	t.Helper()

	p := &models.BudgetPeriod{UserID: userID, Month: month, Year: year}
	if err := db.Create(p).Error; err != nil {
		t.Fatalf("failed to create test period: %v", err)
	}
	return p
}

// CreateTestEnvelope creates a variable envelope with the given planned amount.
func CreateTestEnvelope(t *testing.T, db *gorm.DB, periodID string, kind models.Kind, planned string) *models.Envelope {
	t.Helper()

	env := &models.Envelope{
		PeriodID:      periodID,
		Name:          fmt.Sprintf("Envelope %d", nextID()),
		PlannedAmount: decimal.RequireFromString(planned),
		Kind:          kind,
		Recurrence:    models.RecurrenceVariable,
	}
	if err := db.Create(env).Error; err != nil {
		t.Fatalf("failed to create test envelope: %v", err)
	}
	return env
}

// CreateTestTransaction creates a transaction. A nil envelopeID makes it free.
func CreateTestTransaction(t *testing.T, db *gorm.DB, periodID string, envelopeID *string, kind models.Kind, amount string) *models.Transaction {
	t.Helper()

	tx := &models.Transaction{
		PeriodID:   periodID,
		EnvelopeID: envelopeID,
		Name:       fmt.Sprintf("Transaction %d", nextID()),
		Amount:     decimal.RequireFromString(amount),
		Kind:       kind,
		OccurredAt: time.Now().UTC(),
	}
	if err := db.Create(tx).Error; err != nil {
		t.Fatalf("failed to create test transaction: %v", err)
	}
	return tx
}
