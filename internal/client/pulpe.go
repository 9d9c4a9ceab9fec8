// Package client provides an HTTP client for the Pulpe API. It implements
// the store a period session pushes its changes to.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"pulpe/internal/cascade"
	"pulpe/internal/models"
)

// APIError is a non-2xx answer of the API.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("unexpected status %d: %s: %s", e.StatusCode, e.Code, e.Message)
}

// CreateTransactionRequest is the payload of POST /transactions.
type CreateTransactionRequest struct {
	PeriodID   string          `json:"period_id"`
	EnvelopeID *string         `json:"envelope_id,omitempty"`
	Name       string          `json:"name"`
	Amount     decimal.Decimal `json:"amount"`
	Kind       models.Kind     `json:"kind"`
	OccurredAt string          `json:"occurred_at"` // YYYY-MM-DD
}

type checkRequest struct {
	CheckedAt *time.Time `json:"checked_at"`
}

// PulpeClient talks to the Pulpe API on behalf of one authenticated user.
type PulpeClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewPulpeClient creates a client authenticating with a bearer token.
func NewPulpeClient(baseURL, token string, httpClient *http.Client) *PulpeClient {
	return &PulpeClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: httpClient,
	}
}

// LoadSnapshot fetches the envelopes, rollover included, and transactions of
// a period.
func (c *PulpeClient) LoadSnapshot(ctx context.Context, periodID string) (cascade.Snapshot, error) {
	var result struct {
		Snapshot cascade.Snapshot `json:"snapshot"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/budget-periods/"+periodID+"/snapshot", nil, &result); err != nil {
		return cascade.Snapshot{}, fmt.Errorf("loading snapshot: %w", err)
	}
	return result.Snapshot, nil
}

// SetEnvelopeChecked stores the check state of an envelope. A nil checkedAt
// unchecks it.
func (c *PulpeClient) SetEnvelopeChecked(ctx context.Context, envelopeID string, checkedAt *time.Time) error {
	if err := c.do(ctx, http.MethodPut, "/api/v1/envelopes/"+envelopeID+"/check", checkRequest{CheckedAt: checkedAt}, nil); err != nil {
		return fmt.Errorf("checking envelope: %w", err)
	}
	return nil
}

// SetTransactionChecked stores the check state of a transaction.
func (c *PulpeClient) SetTransactionChecked(ctx context.Context, transactionID string, checkedAt *time.Time) error {
	if err := c.do(ctx, http.MethodPut, "/api/v1/transactions/"+transactionID+"/check", checkRequest{CheckedAt: checkedAt}, nil); err != nil {
		return fmt.Errorf("checking transaction: %w", err)
	}
	return nil
}

// CreateTransaction creates tx and returns it with its durable id.
func (c *PulpeClient) CreateTransaction(ctx context.Context, tx models.Transaction) (models.Transaction, error) {
	body := CreateTransactionRequest{
		PeriodID:   tx.PeriodID,
		EnvelopeID: tx.EnvelopeID,
		Name:       tx.Name,
		Amount:     tx.Amount,
		Kind:       tx.Kind,
		OccurredAt: tx.OccurredAt.Format(time.DateOnly),
	}
	var result struct {
		Transaction models.Transaction `json:"transaction"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/transactions", body, &result); err != nil {
		return models.Transaction{}, fmt.Errorf("creating transaction: %w", err)
	}
	return result.Transaction, nil
}

func (c *PulpeClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		reader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var envelope struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.NewDecoder(resp.Body).Decode(&envelope) == nil {
			apiErr.Code = envelope.Error.Code
			apiErr.Message = envelope.Error.Message
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
