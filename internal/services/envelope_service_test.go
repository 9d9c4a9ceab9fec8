package services

import (
	"testing"
	"time"

	"pulpe/internal/models"
	"pulpe/internal/testutil"
)

func TestCreateEnvelope(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		user := testutil.CreateTestUser(t, db)
		p := testutil.CreateTestPeriod(t, db, user.ID, 5, 2024)
		svc := NewEnvelopeService(db)

		env, err := svc.CreateEnvelope(user.ID, p.ID, EnvelopeInput{
			Name: "  Groceries ", PlannedAmount: mustDecimal(t, "400"), Kind: models.KindExpense, Recurrence: models.RecurrenceVariable,
		})
		testutil.AssertNoError(t, err)

		if env.Name != "Groceries" {
			t.Errorf("expected trimmed name, got %q", env.Name)
		}
		if env.IsChecked() {
			t.Error("expected a new envelope to be unchecked")
		}
		assertEndingBalance(t, db, p.ID, "-400")
	})

	tests := []struct {
		name string
		in   EnvelopeInput
		code string
	}{
		{"empty_name", EnvelopeInput{Name: " ", Kind: models.KindExpense, Recurrence: models.RecurrenceFixed}, "INVALID_INPUT"},
		{"invalid_kind", EnvelopeInput{Name: "x", Kind: "gift", Recurrence: models.RecurrenceFixed}, "INVALID_INPUT"},
		{"invalid_recurrence", EnvelopeInput{Name: "x", Kind: models.KindSaving, Recurrence: "weekly"}, "INVALID_INPUT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := testutil.SetupTestDB(t)
			defer testutil.TeardownTestDB(t, db)
			user := testutil.CreateTestUser(t, db)
			p := testutil.CreateTestPeriod(t, db, user.ID, 5, 2024)
			svc := NewEnvelopeService(db)

			_, err := svc.CreateEnvelope(user.ID, p.ID, tt.in)
			testutil.AssertAppError(t, err, tt.code)
		})
	}

	t.Run("negative_amount", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		user := testutil.CreateTestUser(t, db)
		p := testutil.CreateTestPeriod(t, db, user.ID, 5, 2024)
		svc := NewEnvelopeService(db)

		_, err := svc.CreateEnvelope(user.ID, p.ID, EnvelopeInput{
			Name: "x", PlannedAmount: mustDecimal(t, "-1"), Kind: models.KindExpense, Recurrence: models.RecurrenceFixed,
		})
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})

	t.Run("foreign_period", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		alice := testutil.CreateTestUser(t, db)
		bob := testutil.CreateTestUser(t, db)
		p := testutil.CreateTestPeriod(t, db, alice.ID, 5, 2024)
		svc := NewEnvelopeService(db)

		_, err := svc.CreateEnvelope(bob.ID, p.ID, EnvelopeInput{
			Name: "x", PlannedAmount: mustDecimal(t, "1"), Kind: models.KindExpense, Recurrence: models.RecurrenceFixed,
		})
		testutil.AssertAppError(t, err, "BUDGET_PERIOD_NOT_FOUND")
	})
}

func TestUpdateEnvelope(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	user := testutil.CreateTestUser(t, db)
	p := testutil.CreateTestPeriod(t, db, user.ID, 5, 2024)
	env := testutil.CreateTestEnvelope(t, db, p.ID, models.KindExpense, "100")
	svc := NewEnvelopeService(db)

	t.Run("partial_update", func(t *testing.T) {
		amount := mustDecimal(t, "250.25")
		updated, err := svc.UpdateEnvelope(user.ID, env.ID, EnvelopeUpdate{PlannedAmount: &amount})
		testutil.AssertNoError(t, err)

		if !updated.PlannedAmount.Equal(amount) {
			t.Errorf("expected planned amount 250.25, got %s", updated.PlannedAmount)
		}
		if updated.Name != env.Name {
			t.Errorf("expected name to be kept, got %q", updated.Name)
		}
		assertEndingBalance(t, db, p.ID, "-250.25")
	})

	t.Run("empty_name", func(t *testing.T) {
		name := ""
		_, err := svc.UpdateEnvelope(user.ID, env.ID, EnvelopeUpdate{Name: &name})
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})

	t.Run("kind_must_fit_transactions", func(t *testing.T) {
		testutil.CreateTestTransaction(t, db, p.ID, &env.ID, models.KindExpense, "10")
		saving := models.KindSaving
		_, err := svc.UpdateEnvelope(user.ID, env.ID, EnvelopeUpdate{Kind: &saving})
		testutil.AssertNoError(t, err)

		income := models.KindIncome
		_, err = svc.UpdateEnvelope(user.ID, env.ID, EnvelopeUpdate{Kind: &income})
		testutil.AssertAppError(t, err, "INVARIANT_VIOLATION")
	})

	t.Run("rollover", func(t *testing.T) {
		amount := mustDecimal(t, "1")
		_, err := svc.UpdateEnvelope(user.ID, models.RolloverEnvelopeID(p.ID), EnvelopeUpdate{PlannedAmount: &amount})
		testutil.AssertAppError(t, err, "ROLLOVER_IMMUTABLE")
	})
}

func TestDeleteEnvelope(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	user := testutil.CreateTestUser(t, db)
	p := testutil.CreateTestPeriod(t, db, user.ID, 5, 2024)
	env := testutil.CreateTestEnvelope(t, db, p.ID, models.KindExpense, "100")
	tx := testutil.CreateTestTransaction(t, db, p.ID, &env.ID, models.KindExpense, "30")
	svc := NewEnvelopeService(db)

	err := svc.DeleteEnvelope(user.ID, env.ID)
	testutil.AssertNoError(t, err)

	_, err = svc.GetEnvelopeByID(user.ID, env.ID)
	testutil.AssertAppError(t, err, "ENVELOPE_NOT_FOUND")

	var reloaded models.Transaction
	if err := db.First(&reloaded, "id = ?", tx.ID).Error; err != nil {
		t.Fatalf("expected transaction to survive: %v", err)
	}
	if !reloaded.IsFree() {
		t.Error("expected the transaction to become free")
	}
	assertEndingBalance(t, db, p.ID, "-30")
}

func TestSetEnvelopeChecked(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	user := testutil.CreateTestUser(t, db)
	p := testutil.CreateTestPeriod(t, db, user.ID, 5, 2024)
	env := testutil.CreateTestEnvelope(t, db, p.ID, models.KindExpense, "100")
	tx := testutil.CreateTestTransaction(t, db, p.ID, &env.ID, models.KindExpense, "30")
	svc := NewEnvelopeService(db)

	now := time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)
	updated, err := svc.SetChecked(user.ID, env.ID, &now)
	testutil.AssertNoError(t, err)
	if !updated.IsChecked() {
		t.Fatal("expected envelope to be checked")
	}

	var reloaded models.Transaction
	db.First(&reloaded, "id = ?", tx.ID)
	if reloaded.IsChecked() {
		t.Error("expected SetChecked not to cascade")
	}

	updated, err = svc.SetChecked(user.ID, env.ID, nil)
	testutil.AssertNoError(t, err)
	if updated.IsChecked() {
		t.Error("expected envelope to be unchecked")
	}
}

func TestToggleEnvelopeService(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	user := testutil.CreateTestUser(t, db)
	p := testutil.CreateTestPeriod(t, db, user.ID, 5, 2024)
	env := testutil.CreateTestEnvelope(t, db, p.ID, models.KindExpense, "100")
	t1 := testutil.CreateTestTransaction(t, db, p.ID, &env.ID, models.KindExpense, "30")
	t2 := testutil.CreateTestTransaction(t, db, p.ID, &env.ID, models.KindExpense, "20")
	other := testutil.CreateTestTransaction(t, db, p.ID, nil, models.KindExpense, "5")
	svc := NewEnvelopeService(db)

	isChecked := func(t *testing.T, id string) bool {
		t.Helper()
		var tx models.Transaction
		if err := db.First(&tx, "id = ?", id).Error; err != nil {
			t.Fatalf("failed to load transaction: %v", err)
		}
		return tx.IsChecked()
	}

	t.Run("checking_cascades", func(t *testing.T) {
		result, err := svc.ToggleEnvelope(user.ID, env.ID)
		testutil.AssertNoError(t, err)

		if !result.IsChecking {
			t.Error("expected a checking toggle")
		}
		if len(result.TransactionsToSync) != 2 {
			t.Errorf("expected 2 transactions to sync, got %d", len(result.TransactionsToSync))
		}
		if !isChecked(t, t1.ID) || !isChecked(t, t2.ID) {
			t.Error("expected allocated transactions to be checked")
		}
		if isChecked(t, other.ID) {
			t.Error("expected free transaction to be untouched")
		}
	})

	t.Run("unchecking_cascades", func(t *testing.T) {
		result, err := svc.ToggleEnvelope(user.ID, env.ID)
		testutil.AssertNoError(t, err)

		if result.IsChecking {
			t.Error("expected an unchecking toggle")
		}
		if isChecked(t, t1.ID) || isChecked(t, t2.ID) {
			t.Error("expected allocated transactions to be unchecked")
		}
		reloaded, err := svc.GetEnvelopeByID(user.ID, env.ID)
		testutil.AssertNoError(t, err)
		if reloaded.IsChecked() {
			t.Error("expected envelope to be unchecked")
		}
	})

	t.Run("rollover", func(t *testing.T) {
		_, err := svc.ToggleEnvelope(user.ID, models.RolloverEnvelopeID(p.ID))
		testutil.AssertAppError(t, err, "ROLLOVER_IMMUTABLE")
	})
}
