package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"pulpe/internal/client"
	apperrors "pulpe/internal/errors"
	"pulpe/internal/logger"
	"pulpe/internal/middleware"
	"pulpe/internal/models"
	"pulpe/internal/session"
	"pulpe/internal/testutil"
	"pulpe/internal/validator"
)

const testOpsKey = "ops-secret"

// testApp holds the full application stack backed by SQLite.
type testApp struct {
	DB     *gorm.DB
	Router *gin.Engine
}

func init() {
	gin.SetMode(gin.TestMode)
	logger.Init("test", "error")
	validator.Register()
}

func setupApp(t *testing.T) *testApp {
	t.Helper()

	db := testutil.SetupTestDB(t)
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get underlying DB: %v", err)
	}
	// Requests and sessions share one connection so SQLite never sees two
	// writers.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { testutil.TeardownTestDB(t, db) })

	router := NewRouter(db, Options{
		Tokens:         middleware.NewTokenIssuer("integration-secret", time.Hour),
		DefaultPayDay:  1,
		OpsAPIKey:      testOpsKey,
		RefreshWorkers: 2,
		Ping: func(ctx context.Context) error {
			return sqlDB.PingContext(ctx)
		},
	})
	return &testApp{DB: db, Router: router}
}

// request makes an HTTP request to the test router and returns the recorder.
func (app *testApp) request(method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	return rec
}

func parseJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, rec.Body.String())
	}
	return result
}

// mustStatus fails the test unless rec carries want and returns the body.
func mustStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) map[string]interface{} {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("expected %d, got %d: %s", want, rec.Code, rec.Body.String())
	}
	return parseJSON(t, rec)
}

func (app *testApp) registerUser(t *testing.T, email string) string {
	t.Helper()
	body := fmt.Sprintf(`{"email":%q,"password":"password123","first_name":"Test"}`, email)
	result := mustStatus(t, app.request("POST", "/api/v1/auth/register", body, ""), http.StatusCreated)
	return result["token"].(string)
}

func (app *testApp) createPeriod(t *testing.T, token string, month, year int) string {
	t.Helper()
	body := fmt.Sprintf(`{"month":%d,"year":%d}`, month, year)
	result := mustStatus(t, app.request("POST", "/api/v1/budget-periods", body, token), http.StatusCreated)
	return result["budget_period"].(map[string]interface{})["id"].(string)
}

func (app *testApp) createEnvelope(t *testing.T, token, periodID, name, kind, recurrence, planned string) string {
	t.Helper()
	body := fmt.Sprintf(`{"period_id":%q,"name":%q,"planned_amount":%q,"kind":%q,"recurrence":%q}`,
		periodID, name, planned, kind, recurrence)
	result := mustStatus(t, app.request("POST", "/api/v1/envelopes", body, token), http.StatusCreated)
	return result["envelope"].(map[string]interface{})["id"].(string)
}

func (app *testApp) createTransaction(t *testing.T, token, periodID, envelopeID, kind, amount string) string {
	t.Helper()
	envelope := ""
	if envelopeID != "" {
		envelope = fmt.Sprintf(`"envelope_id":%q,`, envelopeID)
	}
	body := fmt.Sprintf(`{"period_id":%q,%s"name":"Spend","amount":%q,"kind":%q,"occurred_at":"2024-01-15"}`,
		periodID, envelope, amount, kind)
	result := mustStatus(t, app.request("POST", "/api/v1/transactions", body, token), http.StatusCreated)
	return result["transaction"].(map[string]interface{})["id"].(string)
}

func endingBalance(t *testing.T, app *testApp, token, periodID string) string {
	t.Helper()
	result := mustStatus(t, app.request("GET", "/api/v1/budget-periods/"+periodID, "", token), http.StatusOK)
	return result["totals"].(map[string]interface{})["ending_balance"].(string)
}

func TestHealth(t *testing.T) {
	app := setupApp(t)
	result := mustStatus(t, app.request("GET", "/api/health", "", ""), http.StatusOK)
	if result["status"] != "ok" {
		t.Errorf("expected ok, got %v", result["status"])
	}
}

func TestAuthFlow(t *testing.T) {
	app := setupApp(t)

	t.Run("protected routes need a token", func(t *testing.T) {
		rec := app.request("GET", "/api/v1/profile", "", "")
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
	})

	token := app.registerUser(t, "flow@test.com")

	t.Run("login returns a usable token", func(t *testing.T) {
		result := mustStatus(t, app.request("POST", "/api/v1/auth/login",
			`{"email":"FLOW@test.com","password":"password123"}`, ""), http.StatusOK)
		login := result["token"].(string)
		profile := mustStatus(t, app.request("GET", "/api/v1/profile", "", login), http.StatusOK)
		if profile["user"].(map[string]interface{})["email"] != "flow@test.com" {
			t.Errorf("unexpected profile %v", profile)
		}
	})

	t.Run("pay day drives the current period", func(t *testing.T) {
		mustStatus(t, app.request("PUT", "/api/v1/profile/pay-day", `{"pay_day_of_month":25}`, token), http.StatusOK)
		aprilID := app.createPeriod(t, token, 4, 2024)

		result := mustStatus(t, app.request("GET", "/api/v1/budget-periods/current?date=2024-03-26", "", token), http.StatusOK)
		if result["budget_period"].(map[string]interface{})["id"] != aprilID {
			t.Errorf("expected April to contain 2024-03-26, got %v", result["budget_period"])
		}
	})
}

func TestRolloverChainFlow(t *testing.T) {
	app := setupApp(t)
	token := app.registerUser(t, "chain@test.com")

	janID := app.createPeriod(t, token, 1, 2024)
	febID := app.createPeriod(t, token, 2, 2024)

	app.createEnvelope(t, token, janID, "Salary", "income", "fixed", "5000")
	rentID := app.createEnvelope(t, token, janID, "Rent", "expense", "fixed", "4850")

	if got := endingBalance(t, app, token, janID); got != "150" {
		t.Fatalf("expected January to end at 150, got %s", got)
	}

	details := mustStatus(t, app.request("GET", "/api/v1/budget-periods/"+febID, "", token), http.StatusOK)
	rollover := details["rollover"].(map[string]interface{})
	if rollover["amount"] != "150" || rollover["previous_period_id"] != janID {
		t.Errorf("expected a rollover of 150 from January, got %v", rollover)
	}
	items := details["items"].([]interface{})
	if len(items) == 0 {
		t.Fatal("expected the rollover line in the display order")
	}

	t.Run("overspending an envelope flows into the next period", func(t *testing.T) {
		app.createTransaction(t, token, janID, rentID, "expense", "4925")
		if got := endingBalance(t, app, token, febID); got != "75" {
			t.Errorf("expected February to end at 75, got %s", got)
		}
	})

	t.Run("the rollover envelope is read only", func(t *testing.T) {
		rec := app.request("PUT", "/api/v1/envelopes/"+models.RolloverEnvelopeID(febID), `{"name":"x"}`, token)
		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422, got %d", rec.Code)
		}
	})

	t.Run("deleting the predecessor relinks the chain", func(t *testing.T) {
		mustStatus(t, app.request("DELETE", "/api/v1/budget-periods/"+janID, "", token), http.StatusOK)
		result := mustStatus(t, app.request("POST", "/api/v1/budget-periods/"+febID+"/ending-balance", "", token), http.StatusOK)
		p := result["budget_period"].(map[string]interface{})
		if p["previous_period_id"] != nil || p["cached_ending_balance"] != "0" {
			t.Errorf("expected an unlinked period ending at 0, got %v", p)
		}
	})

	t.Run("periods of other users stay hidden", func(t *testing.T) {
		other := app.registerUser(t, "other@test.com")
		rec := app.request("GET", "/api/v1/budget-periods/"+febID, "", other)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
	})
}

func TestToggleFlow(t *testing.T) {
	app := setupApp(t)
	token := app.registerUser(t, "toggle@test.com")
	periodID := app.createPeriod(t, token, 3, 2024)
	groceriesID := app.createEnvelope(t, token, periodID, "Groceries", "expense", "variable", "400")
	first := app.createTransaction(t, token, periodID, groceriesID, "expense", "120")
	second := app.createTransaction(t, token, periodID, groceriesID, "expense", "80")

	// Checking the last open transaction checks its envelope.
	mustStatus(t, app.request("POST", "/api/v1/transactions/"+first+"/toggle", "", token), http.StatusOK)
	result := mustStatus(t, app.request("POST", "/api/v1/transactions/"+second+"/toggle", "", token), http.StatusOK)
	if result["envelope_toggled"] != true {
		t.Fatalf("expected the envelope to be checked, got %v", result)
	}

	// Unchecking the envelope unchecks both transactions.
	result = mustStatus(t, app.request("POST", "/api/v1/envelopes/"+groceriesID+"/toggle", "", token), http.StatusOK)
	if result["is_checking"] != false {
		t.Errorf("expected an uncheck, got %v", result["is_checking"])
	}
	if synced := result["synced_transactions"].([]interface{}); len(synced) != 2 {
		t.Errorf("expected 2 synced transactions, got %d", len(synced))
	}

	snap := mustStatus(t, app.request("GET", "/api/v1/budget-periods/"+periodID+"/snapshot", "", token), http.StatusOK)["snapshot"].(map[string]interface{})
	for _, raw := range snap["transactions"].([]interface{}) {
		if tx := raw.(map[string]interface{}); tx["checked_at"] != nil {
			t.Errorf("expected transaction %v to be unchecked", tx["id"])
		}
	}
}

func TestOpsRefresh(t *testing.T) {
	app := setupApp(t)
	token := app.registerUser(t, "ops@test.com")
	app.createPeriod(t, token, 1, 2024)
	app.createPeriod(t, token, 2, 2024)

	rec := app.request("POST", "/api/v1/ops/refresh", "", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without a key, got %d", rec.Code)
	}

	req := httptest.NewRequest("POST", "/api/v1/ops/refresh", nil)
	req.Header.Set("X-API-Key", testOpsKey)
	rec = httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)

	report := mustStatus(t, rec, http.StatusOK)["report"].(map[string]interface{})
	if report["users"].(float64) != 1 || report["periods"].(float64) != 2 || report["failed"].(float64) != 0 {
		t.Errorf("unexpected report %v", report)
	}
}

func TestSessionOverHTTP(t *testing.T) {
	app := setupApp(t)
	token := app.registerUser(t, "session@test.com")
	periodID := app.createPeriod(t, token, 5, 2024)
	app.createEnvelope(t, token, periodID, "Salary", "income", "fixed", "3000")
	groceriesID := app.createEnvelope(t, token, periodID, "Groceries", "expense", "variable", "400")
	existing := app.createTransaction(t, token, periodID, groceriesID, "expense", "50")

	srv := httptest.NewServer(app.Router)
	defer srv.Close()
	store := client.NewPulpeClient(srv.URL, token, srv.Client())

	ctx := context.Background()
	sess, err := session.Open(ctx, periodID, store)
	if err != nil {
		t.Fatalf("failed to open session: %v", err)
	}
	defer sess.Close()

	if got := sess.View().Totals.EndingBalance; !got.Equal(decimal.NewFromInt(2600)) {
		t.Fatalf("expected ending balance 2600, got %s", got)
	}

	t.Run("envelope toggle reaches the database", func(t *testing.T) {
		job, err := sess.ToggleEnvelope(groceriesID)
		if err != nil {
			t.Fatalf("toggle failed: %v", err)
		}
		if err := job.Wait(ctx); err != nil {
			t.Fatalf("sync failed: %v", err)
		}

		var tx models.Transaction
		if err := app.DB.First(&tx, "id = ?", existing).Error; err != nil {
			t.Fatalf("failed to load transaction: %v", err)
		}
		if tx.CheckedAt == nil {
			t.Error("expected the allocated transaction to be checked")
		}
	})

	t.Run("added transaction gets its durable id", func(t *testing.T) {
		ref, job, err := sess.AddTransaction(models.Transaction{
			EnvelopeID: &groceriesID,
			Name:       "Market",
			Amount:     decimal.NewFromInt(30),
			Kind:       models.KindExpense,
			OccurredAt: time.Date(2024, time.May, 3, 0, 0, 0, 0, time.UTC),
		})
		if err != nil {
			t.Fatalf("add failed: %v", err)
		}
		if !ref.IsPending() {
			t.Fatal("expected a pending ref")
		}
		if err := job.Wait(ctx); err != nil {
			t.Fatalf("sync failed: %v", err)
		}

		persisted, ok := sess.Resolve(ref)
		if !ok || persisted.IsPending() {
			t.Fatalf("expected the ref to be resolved, got %v", persisted)
		}
		var count int64
		app.DB.Model(&models.Transaction{}).Where("id = ?", persisted.ID()).Count(&count)
		if count != 1 {
			t.Errorf("expected the transaction to be stored, got %d rows", count)
		}
		if len(sess.Pending()) != 0 {
			t.Errorf("expected no pending transactions, got %d", len(sess.Pending()))
		}
	})

	t.Run("failed sync reloads the period", func(t *testing.T) {
		mustStatus(t, app.request("DELETE", "/api/v1/transactions/"+existing, "", token), http.StatusOK)

		job, err := sess.ToggleTransaction(session.Persisted(existing))
		if err != nil {
			t.Fatalf("toggle failed: %v", err)
		}
		err = job.Wait(ctx)
		testutil.AssertAppError(t, err, apperrors.ErrSyncFailure.Code)

		for _, tx := range sess.Snapshot().Transactions {
			if tx.ID == existing {
				t.Fatal("expected the deleted transaction to be gone after reload")
			}
		}
	})
}
