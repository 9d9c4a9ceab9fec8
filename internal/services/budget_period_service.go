package services

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"pulpe/internal/calculator"
	"pulpe/internal/cascade"
	"pulpe/internal/display"
	apperrors "pulpe/internal/errors"
	"pulpe/internal/logger"
	"pulpe/internal/models"
	"pulpe/internal/pagination"
	"pulpe/internal/period"
)

// budgetPeriodService handles budget period business logic.
type budgetPeriodService struct {
	db *gorm.DB
}

// NewBudgetPeriodService creates a new BudgetPeriodServicer.
func NewBudgetPeriodService(db *gorm.DB) BudgetPeriodServicer {
	return &budgetPeriodService{db: db}
}

// CreatePeriod opens a period for the given label and links it into the
// user's rollover chain.
func (s *budgetPeriodService) CreatePeriod(userID string, month, year int) (*models.BudgetPeriod, error) {
	label := period.Label{Month: month, Year: year}
	if !label.Valid() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "month must be between 1 and 12 and year must be positive")
	}

	var created models.BudgetPeriod
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.BudgetPeriod{}).
			Where("user_id = ? AND month = ? AND year = ?", userID, month, year).
			Count(&count).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if count > 0 {
			return apperrors.ErrDuplicatePeriod
		}

		created = models.BudgetPeriod{UserID: userID, Month: month, Year: year}
		if err := tx.Create(&created).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}

		if _, err := refreshChain(tx, userID, label); err != nil {
			return err
		}
		return tx.First(&created, "id = ?", created.ID).Error
	})
	if err != nil {
		return nil, err
	}

	logger.Get().Infow("Budget period created", "user_id", userID, "period_id", created.ID, "label", label.String())
	return &created, nil
}

// GetUserPeriods returns the user's periods, most recent label first.
func (s *budgetPeriodService) GetUserPeriods(userID string, page pagination.PageRequest) (*pagination.PageResponse[models.BudgetPeriod], error) {
	page.Defaults()

	base := s.db.Model(&models.BudgetPeriod{}).Where("user_id = ?", userID)

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var periods []models.BudgetPeriod
	if err := base.Order(page.OrderBy("year", "month")).Scopes(pagination.Paginate(page)).Find(&periods).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(periods, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// GetPeriodByID returns a period if it belongs to the user.
func (s *budgetPeriodService) GetPeriodByID(userID, periodID string) (*models.BudgetPeriod, error) {
	return findOwnedPeriod(s.db, userID, periodID)
}

// FindPeriodForDate returns the period whose window contains date according
// to the user's pay day.
func (s *budgetPeriodService) FindPeriodForDate(userID string, date time.Time) (*models.BudgetPeriod, error) {
	payDay, err := s.payDay(userID)
	if err != nil {
		return nil, err
	}
	label := period.Resolve(date, payDay)

	var p models.BudgetPeriod
	if err := s.db.Where("user_id = ? AND month = ? AND year = ?", userID, label.Month, label.Year).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.WithMessage(apperrors.ErrBudgetPeriodNotFound, "No budget period for "+label.String())
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &p, nil
}

// GetPeriodDetails computes the full view of a period: its window, rollover,
// totals, envelope usage and display order.
func (s *budgetPeriodService) GetPeriodDetails(userID, periodID string) (*PeriodDetails, error) {
	p, err := findOwnedPeriod(s.db, userID, periodID)
	if err != nil {
		return nil, err
	}
	payDay, err := s.payDay(userID)
	if err != nil {
		return nil, err
	}

	snap, rollover, err := s.snapshotWithRollover(p)
	if err != nil {
		return nil, err
	}

	return &PeriodDetails{
		Period:       *p,
		Window:       period.WindowFor(p.Label(), payDay),
		Rollover:     rollover,
		Envelopes:    snap.Envelopes,
		Transactions: snap.Transactions,
		Usage:        calculator.Usage(snap.Envelopes, snap.Transactions),
		Totals:       calculator.ComputeTotals(snap.Envelopes, snap.Transactions),
		Items:        display.Order(snap.Envelopes, snap.Transactions),
	}, nil
}

// GetSnapshot returns the envelopes, rollover included, and transactions of
// a period.
func (s *budgetPeriodService) GetSnapshot(userID, periodID string) (*cascade.Snapshot, error) {
	p, err := findOwnedPeriod(s.db, userID, periodID)
	if err != nil {
		return nil, err
	}
	snap, _, err := s.snapshotWithRollover(p)
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

// DeletePeriod removes a period with its envelopes and transactions and
// relinks the successors.
func (s *budgetPeriodService) DeletePeriod(userID, periodID string) error {
	p, err := findOwnedPeriod(s.db, userID, periodID)
	if err != nil {
		return err
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Where("period_id = ?", p.ID).Delete(&models.Transaction{}).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if err := tx.Unscoped().Where("period_id = ?", p.ID).Delete(&models.Envelope{}).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if err := tx.Unscoped().Delete(p).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		_, err := refreshChain(tx, userID, p.Label())
		return err
	})
}

// RecalculateEndingBalance recomputes and stores the ending balance of a
// period and of every later period.
func (s *budgetPeriodService) RecalculateEndingBalance(userID, periodID string) (*models.BudgetPeriod, error) {
	p, err := findOwnedPeriod(s.db, userID, periodID)
	if err != nil {
		return nil, err
	}
	err = s.db.Transaction(func(tx *gorm.DB) error {
		_, err := refreshChain(tx, userID, p.Label())
		return err
	})
	if err != nil {
		return nil, err
	}
	return findOwnedPeriod(s.db, userID, periodID)
}

// RecalculateUser refreshes the whole chain of a user and returns the number
// of periods updated.
func (s *budgetPeriodService) RecalculateUser(ctx context.Context, userID string) (int, error) {
	var refreshed int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		refreshed, err = refreshChain(tx, userID, period.Label{Month: 1, Year: 0})
		return err
	})
	if err != nil {
		return 0, err
	}
	return refreshed, nil
}

func (s *budgetPeriodService) payDay(userID string) (int, error) {
	var user models.User
	if err := s.db.Select("id", "pay_day_of_month").Where("id = ?", userID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, apperrors.ErrUserNotFound
		}
		return 0, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return period.ClampPayDay(user.PayDayOfMonth), nil
}

func (s *budgetPeriodService) snapshotWithRollover(p *models.BudgetPeriod) (cascade.Snapshot, calculator.Rollover, error) {
	periods, err := userPeriods(s.db, p.UserID)
	if err != nil {
		return cascade.Snapshot{}, calculator.Rollover{}, err
	}
	snap, err := periodContent(s.db, p.ID)
	if err != nil {
		return cascade.Snapshot{}, calculator.Rollover{}, err
	}
	rollover := calculator.ResolveRollover(*p, periods)
	snap.Envelopes = calculator.WithRollover(p.ID, rollover, snap.Envelopes)
	return snap, rollover, nil
}
