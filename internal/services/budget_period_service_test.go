package services

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"pulpe/internal/models"
	"pulpe/internal/pagination"
	"pulpe/internal/testutil"
)

func mustDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("invalid decimal %q: %v", s, err)
	}
	return d
}

func assertEndingBalance(t *testing.T, db *gorm.DB, periodID, want string) {
	t.Helper()
	var p models.BudgetPeriod
	if err := db.First(&p, "id = ?", periodID).Error; err != nil {
		t.Fatalf("failed to load period: %v", err)
	}
	if p.CachedEndingBalance == nil {
		t.Fatalf("expected cached ending balance %s, got nil", want)
	}
	if !p.CachedEndingBalance.Equal(mustDecimal(t, want)) {
		t.Errorf("expected cached ending balance %s, got %s", want, p.CachedEndingBalance)
	}
}

func TestCreatePeriod(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		user := testutil.CreateTestUser(t, db)
		svc := NewBudgetPeriodService(db)

		p, err := svc.CreatePeriod(user.ID, 3, 2024)
		testutil.AssertNoError(t, err)

		if p.ID == "" {
			t.Fatal("expected an ID")
		}
		if p.PreviousPeriodID != nil {
			t.Errorf("expected no previous period, got %s", *p.PreviousPeriodID)
		}
		assertEndingBalance(t, db, p.ID, "0")
	})

	t.Run("invalid_month", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		user := testutil.CreateTestUser(t, db)
		svc := NewBudgetPeriodService(db)

		_, err := svc.CreatePeriod(user.ID, 13, 2024)
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})

	t.Run("duplicate_label", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		user := testutil.CreateTestUser(t, db)
		svc := NewBudgetPeriodService(db)

		_, err := svc.CreatePeriod(user.ID, 3, 2024)
		testutil.AssertNoError(t, err)
		_, err = svc.CreatePeriod(user.ID, 3, 2024)
		testutil.AssertAppError(t, err, "DUPLICATE_PERIOD")
	})

	t.Run("same_label_other_user", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		alice := testutil.CreateTestUser(t, db)
		bob := testutil.CreateTestUser(t, db)
		svc := NewBudgetPeriodService(db)

		_, err := svc.CreatePeriod(alice.ID, 3, 2024)
		testutil.AssertNoError(t, err)
		_, err = svc.CreatePeriod(bob.ID, 3, 2024)
		testutil.AssertNoError(t, err)
	})

	t.Run("links_to_previous_label_with_gap", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		user := testutil.CreateTestUser(t, db)
		svc := NewBudgetPeriodService(db)
		envelopes := NewEnvelopeService(db)

		nov, err := svc.CreatePeriod(user.ID, 11, 2023)
		testutil.AssertNoError(t, err)
		_, err = envelopes.CreateEnvelope(user.ID, nov.ID, EnvelopeInput{
			Name: "Salary", PlannedAmount: mustDecimal(t, "1000"), Kind: models.KindIncome, Recurrence: models.RecurrenceFixed,
		})
		testutil.AssertNoError(t, err)

		feb, err := svc.CreatePeriod(user.ID, 2, 2024)
		testutil.AssertNoError(t, err)

		if feb.PreviousPeriodID == nil || *feb.PreviousPeriodID != nov.ID {
			t.Fatalf("expected previous period %s, got %v", nov.ID, feb.PreviousPeriodID)
		}
		assertEndingBalance(t, db, feb.ID, "1000")
	})

	t.Run("inserted_period_relinks_successor", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		user := testutil.CreateTestUser(t, db)
		svc := NewBudgetPeriodService(db)

		jan, err := svc.CreatePeriod(user.ID, 1, 2024)
		testutil.AssertNoError(t, err)
		mar, err := svc.CreatePeriod(user.ID, 3, 2024)
		testutil.AssertNoError(t, err)
		feb, err := svc.CreatePeriod(user.ID, 2, 2024)
		testutil.AssertNoError(t, err)

		if feb.PreviousPeriodID == nil || *feb.PreviousPeriodID != jan.ID {
			t.Errorf("expected february to follow january")
		}
		reloaded, err := svc.GetPeriodByID(user.ID, mar.ID)
		testutil.AssertNoError(t, err)
		if reloaded.PreviousPeriodID == nil || *reloaded.PreviousPeriodID != feb.ID {
			t.Errorf("expected march to follow february, got %v", reloaded.PreviousPeriodID)
		}
	})
}

func TestRolloverChain(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	user := testutil.CreateTestUser(t, db)
	svc := NewBudgetPeriodService(db)
	envelopes := NewEnvelopeService(db)
	transactions := NewTransactionService(db)

	jan, err := svc.CreatePeriod(user.ID, 1, 2024)
	testutil.AssertNoError(t, err)
	feb, err := svc.CreatePeriod(user.ID, 2, 2024)
	testutil.AssertNoError(t, err)

	_, err = envelopes.CreateEnvelope(user.ID, jan.ID, EnvelopeInput{
		Name: "Salary", PlannedAmount: mustDecimal(t, "5000"), Kind: models.KindIncome, Recurrence: models.RecurrenceFixed,
	})
	testutil.AssertNoError(t, err)
	rent, err := envelopes.CreateEnvelope(user.ID, jan.ID, EnvelopeInput{
		Name: "Rent", PlannedAmount: mustDecimal(t, "4850"), Kind: models.KindExpense, Recurrence: models.RecurrenceFixed,
	})
	testutil.AssertNoError(t, err)

	t.Run("successor_receives_ending_balance", func(t *testing.T) {
		assertEndingBalance(t, db, jan.ID, "150")
		assertEndingBalance(t, db, feb.ID, "150")

		details, err := svc.GetPeriodDetails(user.ID, feb.ID)
		testutil.AssertNoError(t, err)
		if !details.Rollover.Amount.Equal(mustDecimal(t, "150")) {
			t.Errorf("expected rollover 150, got %s", details.Rollover.Amount)
		}
		if len(details.Envelopes) != 1 || !details.Envelopes[0].IsRollover {
			t.Fatalf("expected only the rollover envelope, got %+v", details.Envelopes)
		}
		if details.Envelopes[0].ID != models.RolloverEnvelopeID(feb.ID) {
			t.Errorf("unexpected rollover id %s", details.Envelopes[0].ID)
		}
		if len(details.Items) != 1 || !details.Items[0].CumulativeBalance.Equal(mustDecimal(t, "150")) {
			t.Errorf("expected one item with balance 150, got %+v", details.Items)
		}
	})

	t.Run("overspending_propagates", func(t *testing.T) {
		_, err := transactions.CreateTransaction(user.ID, TransactionInput{
			PeriodID: jan.ID, EnvelopeID: &rent.ID, Name: "Rent + fees", Amount: mustDecimal(t, "4925"), Kind: models.KindExpense,
		})
		testutil.AssertNoError(t, err)

		assertEndingBalance(t, db, jan.ID, "75")
		assertEndingBalance(t, db, feb.ID, "75")
	})

	t.Run("snapshot_includes_rollover_first", func(t *testing.T) {
		snap, err := svc.GetSnapshot(user.ID, feb.ID)
		testutil.AssertNoError(t, err)
		if len(snap.Envelopes) == 0 || !snap.Envelopes[0].IsRollover {
			t.Fatalf("expected rollover envelope first, got %+v", snap.Envelopes)
		}
	})

	t.Run("recalculate_user", func(t *testing.T) {
		if err := db.Model(&models.BudgetPeriod{}).Where("id = ?", feb.ID).Update("cached_ending_balance", nil).Error; err != nil {
			t.Fatalf("failed to clear cache: %v", err)
		}

		n, err := svc.RecalculateUser(context.Background(), user.ID)
		testutil.AssertNoError(t, err)
		if n != 2 {
			t.Errorf("expected 2 periods refreshed, got %d", n)
		}
		assertEndingBalance(t, db, feb.ID, "75")
	})

	t.Run("delete_relinks_successor", func(t *testing.T) {
		err := svc.DeletePeriod(user.ID, jan.ID)
		testutil.AssertNoError(t, err)

		reloaded, err := svc.GetPeriodByID(user.ID, feb.ID)
		testutil.AssertNoError(t, err)
		if reloaded.PreviousPeriodID != nil {
			t.Errorf("expected no previous period, got %s", *reloaded.PreviousPeriodID)
		}
		assertEndingBalance(t, db, feb.ID, "0")

		var count int64
		db.Unscoped().Model(&models.Envelope{}).Where("period_id = ?", jan.ID).Count(&count)
		if count != 0 {
			t.Errorf("expected envelopes of the deleted period to be gone, got %d", count)
		}
	})
}

func TestGetPeriodByID(t *testing.T) {
	t.Run("other_user", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		alice := testutil.CreateTestUser(t, db)
		bob := testutil.CreateTestUser(t, db)
		p := testutil.CreateTestPeriod(t, db, alice.ID, 1, 2024)
		svc := NewBudgetPeriodService(db)

		_, err := svc.GetPeriodByID(bob.ID, p.ID)
		testutil.AssertAppError(t, err, "BUDGET_PERIOD_NOT_FOUND")
	})
}

func TestGetUserPeriods(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	user := testutil.CreateTestUser(t, db)
	testutil.CreateTestPeriod(t, db, user.ID, 12, 2023)
	testutil.CreateTestPeriod(t, db, user.ID, 2, 2024)
	testutil.CreateTestPeriod(t, db, user.ID, 1, 2024)
	svc := NewBudgetPeriodService(db)

	page, err := svc.GetUserPeriods(user.ID, pagination.PageRequest{Page: 1, PageSize: 2})
	testutil.AssertNoError(t, err)

	if page.TotalItems != 3 || page.TotalPages != 2 {
		t.Errorf("expected 3 items on 2 pages, got %d on %d", page.TotalItems, page.TotalPages)
	}
	if len(page.Data) != 2 {
		t.Fatalf("expected 2 periods, got %d", len(page.Data))
	}
	if got := page.Data[0].Label().String(); got != "2024-02" {
		t.Errorf("expected most recent first, got %s", got)
	}
	if got := page.Data[1].Label().String(); got != "2024-01" {
		t.Errorf("expected 2024-01 second, got %s", got)
	}
}

func TestFindPeriodForDate(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	user := testutil.CreateTestUser(t, db)
	if err := db.Model(user).Update("pay_day_of_month", 25).Error; err != nil {
		t.Fatalf("failed to set pay day: %v", err)
	}
	mar := testutil.CreateTestPeriod(t, db, user.ID, 3, 2024)
	apr := testutil.CreateTestPeriod(t, db, user.ID, 4, 2024)
	svc := NewBudgetPeriodService(db)

	t.Run("before_pay_day", func(t *testing.T) {
		p, err := svc.FindPeriodForDate(user.ID, time.Date(2024, 3, 24, 12, 0, 0, 0, time.UTC))
		testutil.AssertNoError(t, err)
		if p.ID != mar.ID {
			t.Errorf("expected march, got %s", p.Label())
		}
	})

	t.Run("on_pay_day", func(t *testing.T) {
		p, err := svc.FindPeriodForDate(user.ID, time.Date(2024, 3, 25, 0, 0, 0, 0, time.UTC))
		testutil.AssertNoError(t, err)
		if p.ID != apr.ID {
			t.Errorf("expected april, got %s", p.Label())
		}
	})

	t.Run("missing_period", func(t *testing.T) {
		_, err := svc.FindPeriodForDate(user.ID, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
		testutil.AssertAppError(t, err, "BUDGET_PERIOD_NOT_FOUND")
	})
}

func TestGetPeriodDetailsWindow(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	user := testutil.CreateTestUser(t, db)
	p := testutil.CreateTestPeriod(t, db, user.ID, 2, 2024)
	svc := NewBudgetPeriodService(db)

	details, err := svc.GetPeriodDetails(user.ID, p.ID)
	testutil.AssertNoError(t, err)

	if details.Window.Days != 29 {
		t.Errorf("expected 29 days in february 2024, got %d", details.Window.Days)
	}
	if !details.Totals.EndingBalance.IsZero() {
		t.Errorf("expected zero ending balance, got %s", details.Totals.EndingBalance)
	}
}
