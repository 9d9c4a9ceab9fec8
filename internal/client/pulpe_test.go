package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"pulpe/internal/models"
)

func TestLoadSnapshot_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		if r.URL.Path != "/api/v1/budget-periods/p1/snapshot" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-token" {
			t.Errorf("missing or wrong Authorization header")
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"snapshot":{
			"envelopes":[
				{"id":"rollover-p1","period_id":"p1","name":"Rollover from 2026-02","planned_amount":"150","kind":"income","recurrence":"fixed","checked_at":null,"is_rollover":true},
				{"id":"e1","period_id":"p1","name":"Food","planned_amount":"500.50","kind":"expense","recurrence":"variable","checked_at":"2026-03-02T10:00:00Z","is_rollover":false}
			],
			"transactions":[
				{"id":"t1","period_id":"p1","envelope_id":"e1","name":"Market","amount":"42.10","kind":"expense","occurred_at":"2026-03-01T00:00:00Z","checked_at":null}
			]}}`))
	}))
	defer server.Close()

	c := NewPulpeClient(server.URL+"/", "test-token", server.Client())
	snap, err := c.LoadSnapshot(context.Background(), "p1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(snap.Envelopes) != 2 || len(snap.Transactions) != 1 {
		t.Fatalf("unexpected snapshot sizes: %d envelopes, %d transactions", len(snap.Envelopes), len(snap.Transactions))
	}
	if !snap.Envelopes[0].IsRollover {
		t.Error("expected rollover flag decoded")
	}
	if !snap.Envelopes[1].PlannedAmount.Equal(decimal.RequireFromString("500.50")) || !snap.Envelopes[1].IsChecked() {
		t.Errorf("second envelope mismatch: %+v", snap.Envelopes[1])
	}
	tx := snap.Transactions[0]
	if !tx.AllocatedTo("e1") || !tx.Amount.Equal(decimal.RequireFromString("42.10")) || tx.IsChecked() {
		t.Errorf("transaction mismatch: %+v", tx)
	}
}

func TestLoadSnapshot_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"code":"BUDGET_PERIOD_NOT_FOUND","message":"Budget period not found"}}`))
	}))
	defer server.Close()

	c := NewPulpeClient(server.URL, "test-token", server.Client())
	_, err := c.LoadSnapshot(context.Background(), "missing")
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %T", err)
	}
	if apiErr.StatusCode != http.StatusNotFound || apiErr.Code != "BUDGET_PERIOD_NOT_FOUND" {
		t.Errorf("unexpected API error: %+v", apiErr)
	}
}

func TestSetChecked(t *testing.T) {
	var gotPaths []string
	var gotBodies []map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("expected PUT, got %s", r.Method)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decoding body: %v", err)
		}
		gotPaths = append(gotPaths, r.URL.Path)
		gotBodies = append(gotBodies, body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	c := NewPulpeClient(server.URL, "test-token", server.Client())
	at := time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC)

	if err := c.SetEnvelopeChecked(context.Background(), "e1", &at); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := c.SetTransactionChecked(context.Background(), "t1", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(gotPaths) != 2 || gotPaths[0] != "/api/v1/envelopes/e1/check" || gotPaths[1] != "/api/v1/transactions/t1/check" {
		t.Fatalf("unexpected paths: %v", gotPaths)
	}
	if gotBodies[0]["checked_at"] != "2026-03-02T10:00:00Z" {
		t.Errorf("expected checked_at timestamp, got %v", gotBodies[0]["checked_at"])
	}
	if v, ok := gotBodies[1]["checked_at"]; !ok || v != nil {
		t.Errorf("expected explicit null checked_at, got %v", gotBodies[1])
	}
}

func TestSetChecked_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := NewPulpeClient(server.URL, "test-token", server.Client())
	err := c.SetEnvelopeChecked(context.Background(), "e1", nil)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if want := "unexpected status 500"; !strings.Contains(err.Error(), want) {
		t.Errorf("error %q should contain %q", err.Error(), want)
	}
}

func TestCreateTransaction(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/transactions" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var req CreateTransactionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decoding body: %v", err)
			return
		}
		if req.PeriodID != "p1" || req.EnvelopeID == nil || *req.EnvelopeID != "e1" || req.OccurredAt != "2026-03-05" {
			t.Errorf("unexpected request body: %+v", req)
		}
		if !req.Amount.Equal(decimal.RequireFromString("12.34")) {
			t.Errorf("unexpected amount %s", req.Amount)
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"transaction":{"id":"t9","period_id":"p1","envelope_id":"e1","name":"Bakery","amount":"12.34","kind":"expense","occurred_at":"2026-03-05T00:00:00Z","checked_at":null}}`))
	}))
	defer server.Close()

	envelopeID := "e1"
	c := NewPulpeClient(server.URL, "test-token", server.Client())
	created, err := c.CreateTransaction(context.Background(), models.Transaction{
		PeriodID:   "p1",
		EnvelopeID: &envelopeID,
		Name:       "Bakery",
		Amount:     decimal.RequireFromString("12.34"),
		Kind:       models.KindExpense,
		OccurredAt: time.Date(2026, time.March, 5, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created.ID != "t9" {
		t.Errorf("expected id t9, got %q", created.ID)
	}
}
