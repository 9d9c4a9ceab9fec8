package validator

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

type envelopeRequest struct {
	Kind       string          `validate:"required,flow_kind"`
	Recurrence string          `validate:"required,recurrence"`
	Amount     decimal.Decimal `validate:"amount"`
}

func newValidate() *validator.Validate {
	v := validator.New()
	RegisterOn(v)
	return v
}

func TestCustomValidators(t *testing.T) {
	v := newValidate()

	tests := []struct {
		name    string
		req     envelopeRequest
		wantErr bool
	}{
		{"valid", envelopeRequest{"expense", "fixed", decimal.RequireFromString("12.50")}, false},
		{"zero_amount", envelopeRequest{"income", "one_off", decimal.Zero}, false},
		{"unknown_kind", envelopeRequest{"transfer", "fixed", decimal.Zero}, true},
		{"unknown_recurrence", envelopeRequest{"saving", "weekly", decimal.Zero}, true},
		{"negative_amount", envelopeRequest{"expense", "variable", decimal.RequireFromString("-1")}, true},
		{"sub_cent_amount", envelopeRequest{"expense", "variable", decimal.RequireFromString("0.001")}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Struct(tt.req)
			if (err != nil) != tt.wantErr {
				t.Errorf("expected error %v, got %v", tt.wantErr, err)
			}
		})
	}
}
