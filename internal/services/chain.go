package services

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"pulpe/internal/calculator"
	"pulpe/internal/cascade"
	apperrors "pulpe/internal/errors"
	"pulpe/internal/models"
	"pulpe/internal/period"
)

// findOwnedPeriod loads a period if it belongs to the user.
func findOwnedPeriod(db *gorm.DB, userID, periodID string) (*models.BudgetPeriod, error) {
	var p models.BudgetPeriod
	if err := db.Where("id = ? AND user_id = ?", periodID, userID).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrBudgetPeriodNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &p, nil
}

// userPeriods returns every period of the user in label order.
func userPeriods(db *gorm.DB, userID string) ([]models.BudgetPeriod, error) {
	var periods []models.BudgetPeriod
	if err := db.Where("user_id = ?", userID).Order("year ASC, month ASC").Find(&periods).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return periods, nil
}

// periodContent returns the stored envelopes and transactions of a period in
// creation order.
func periodContent(db *gorm.DB, periodID string) (cascade.Snapshot, error) {
	var snap cascade.Snapshot
	if err := db.Where("period_id = ?", periodID).Order("created_at ASC, id ASC").Find(&snap.Envelopes).Error; err != nil {
		return cascade.Snapshot{}, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if err := db.Where("period_id = ?", periodID).Order("occurred_at ASC, created_at ASC, id ASC").Find(&snap.Transactions).Error; err != nil {
		return cascade.Snapshot{}, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return snap, nil
}

// refreshChain recomputes the previous period link and the cached ending
// balance of every period of the user whose label is not before from. Each
// period's ending balance includes the rollover of its predecessor, so the
// walk runs in label order and reuses the values it just stored.
func refreshChain(db *gorm.DB, userID string, from period.Label) (int, error) {
	periods, err := userPeriods(db, userID)
	if err != nil {
		return 0, err
	}

	refreshed := 0
	for i := range periods {
		p := &periods[i]
		if p.Label().Before(from) {
			continue
		}

		rollover := calculator.ResolveRollover(*p, periods[:i])
		snap, err := periodContent(db, p.ID)
		if err != nil {
			return refreshed, err
		}
		envelopes := calculator.WithRollover(p.ID, rollover, snap.Envelopes)
		ending := calculator.ComputeTotals(envelopes, snap.Transactions).EndingBalance

		p.PreviousPeriodID = rollover.PreviousPeriodID
		p.CachedEndingBalance = &ending
		if err := db.Model(&models.BudgetPeriod{}).Where("id = ?", p.ID).Updates(map[string]interface{}{
			"previous_period_id":    rollover.PreviousPeriodID,
			"cached_ending_balance": ending,
		}).Error; err != nil {
			return refreshed, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		refreshed++
	}
	return refreshed, nil
}

// refreshFromPeriod runs refreshChain starting at the given period.
func refreshFromPeriod(db *gorm.DB, periodID string) error {
	var p models.BudgetPeriod
	if err := db.Select("id", "user_id", "month", "year").Where("id = ?", periodID).First(&p).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	_, err := refreshChain(db, p.UserID, p.Label())
	return err
}

// ownedEnvelope scopes a query on envelopes to the periods of a user.
func ownedEnvelope(db *gorm.DB, userID, envelopeID string) (*models.Envelope, error) {
	if models.IsRolloverEnvelopeID(envelopeID) {
		return nil, apperrors.ErrRolloverImmutable
	}
	var env models.Envelope
	err := db.Joins("JOIN budget_periods ON budget_periods.id = envelopes.period_id AND budget_periods.deleted_at IS NULL").
		Where("envelopes.id = ? AND budget_periods.user_id = ?", envelopeID, userID).
		First(&env).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrEnvelopeNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &env, nil
}

// ownedTransaction scopes a query on transactions to the periods of a user.
func ownedTransaction(db *gorm.DB, userID, transactionID string) (*models.Transaction, error) {
	var tx models.Transaction
	err := db.Joins("JOIN budget_periods ON budget_periods.id = transactions.period_id AND budget_periods.deleted_at IS NULL").
		Where("transactions.id = ? AND budget_periods.user_id = ?", transactionID, userID).
		First(&tx).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrTransactionNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &tx, nil
}

// checkAllocation verifies that envelopeID designates a real envelope of the
// given period that can hold money of the given kind.
func checkAllocation(db *gorm.DB, periodID string, envelopeID *string, kind models.Kind) error {
	if envelopeID == nil {
		return nil
	}
	if models.IsRolloverEnvelopeID(*envelopeID) {
		return apperrors.ErrRolloverImmutable
	}
	var env models.Envelope
	if err := db.Select("id", "kind").Where("id = ? AND period_id = ?", *envelopeID, periodID).First(&env).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrEnvelopeOutsidePeriod
		}
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if !kind.Fits(env.Kind) {
		return apperrors.WithMessage(apperrors.ErrInvariantViolation,
			"A "+string(kind)+" transaction cannot be allocated to a "+string(env.Kind)+" envelope")
	}
	return nil
}

// reopenEnvelope unchecks the envelope an unchecked transaction was just
// allocated to, since it no longer has all of its transactions checked.
func reopenEnvelope(db *gorm.DB, envelopeID *string, checkedAt *time.Time) error {
	if envelopeID == nil || checkedAt != nil {
		return nil
	}
	err := db.Model(&models.Envelope{}).
		Where("id = ? AND checked_at IS NOT NULL", *envelopeID).
		Update("checked_at", nil).Error
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

func validateAmount(field string, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, field+" must not be negative")
	}
	return nil
}
