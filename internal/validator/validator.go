// Package validator provides custom validation functions for Gin's binding engine.
package validator

import (
	"reflect"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"pulpe/internal/models"
)

// Register registers all custom validators with the Gin binding engine.
func Register() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		RegisterOn(v)
	}
}

// RegisterOn registers the custom validators on v.
func RegisterOn(v *validator.Validate) {
	v.RegisterCustomTypeFunc(decimalValue, decimal.Decimal{})
	_ = v.RegisterValidation("flow_kind", validateFlowKind)
	_ = v.RegisterValidation("recurrence", validateRecurrence)
	_ = v.RegisterValidation("amount", validateAmount)
}

// decimalValue lets tags apply to decimals through their string form.
func decimalValue(field reflect.Value) interface{} {
	if d, ok := field.Interface().(decimal.Decimal); ok {
		return d.String()
	}
	return nil
}

func validateFlowKind(fl validator.FieldLevel) bool {
	return models.Kind(fl.Field().String()).Valid()
}

func validateRecurrence(fl validator.FieldLevel) bool {
	return models.Recurrence(fl.Field().String()).Valid()
}

// validateAmount accepts non-negative amounts with at most two decimals.
func validateAmount(fl validator.FieldLevel) bool {
	d, err := decimal.NewFromString(fl.Field().String())
	if err != nil {
		return false
	}
	return !d.IsNegative() && d.Equal(d.Round(2))
}
