package services

import (
	"strings"
	"time"

	"gorm.io/gorm"

	"pulpe/internal/cascade"
	apperrors "pulpe/internal/errors"
	"pulpe/internal/models"
	"pulpe/internal/pagination"
)

// transactionService handles transaction business logic.
type transactionService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewTransactionService creates a new TransactionServicer.
func NewTransactionService(db *gorm.DB) TransactionServicer {
	return &transactionService{db: db, now: time.Now}
}

// CreateTransaction records a transaction in one of the user's periods,
// optionally allocated to an envelope of the same period.
func (s *transactionService) CreateTransaction(userID string, in TransactionInput) (*models.Transaction, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "name is required")
	}
	if !in.Kind.Valid() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid kind")
	}
	if err := validateAmount("amount", in.Amount); err != nil {
		return nil, err
	}

	p, err := findOwnedPeriod(s.db, userID, in.PeriodID)
	if err != nil {
		return nil, err
	}

	occurredAt := in.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = s.now()
	}

	created := &models.Transaction{
		PeriodID:   p.ID,
		EnvelopeID: in.EnvelopeID,
		Name:       strings.TrimSpace(in.Name),
		Amount:     in.Amount,
		Kind:       in.Kind,
		OccurredAt: occurredAt.UTC(),
	}
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := checkAllocation(tx, p.ID, in.EnvelopeID, in.Kind); err != nil {
			return err
		}
		if err := tx.Create(created).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if err := reopenEnvelope(tx, created.EnvelopeID, created.CheckedAt); err != nil {
			return err
		}
		return refreshFromPeriod(tx, p.ID)
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// GetTransactionByID returns a transaction of one of the user's periods.
func (s *transactionService) GetTransactionByID(userID, transactionID string) (*models.Transaction, error) {
	return ownedTransaction(s.db, userID, transactionID)
}

// GetPeriodTransactions returns a page of the transactions of a period.
func (s *transactionService) GetPeriodTransactions(userID, periodID string, page pagination.PageRequest) (*pagination.PageResponse[models.Transaction], error) {
	page.Defaults()

	p, err := findOwnedPeriod(s.db, userID, periodID)
	if err != nil {
		return nil, err
	}

	base := s.db.Model(&models.Transaction{}).Where("period_id = ?", p.ID)

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var transactions []models.Transaction
	if err := base.Order(page.OrderBy("occurred_at", "created_at")).Scopes(pagination.Paginate(page)).Find(&transactions).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(transactions, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// UpdateTransaction changes the given fields of a transaction.
func (s *transactionService) UpdateTransaction(userID, transactionID string, in TransactionUpdate) (*models.Transaction, error) {
	existing, err := ownedTransaction(s.db, userID, transactionID)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "name must not be empty")
		}
		updates["name"] = name
	}
	if in.Amount != nil {
		if err := validateAmount("amount", *in.Amount); err != nil {
			return nil, err
		}
		updates["amount"] = *in.Amount
	}
	if in.Kind != nil {
		if !in.Kind.Valid() {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid kind")
		}
		updates["kind"] = *in.Kind
	}
	if in.OccurredAt != nil {
		updates["occurred_at"] = in.OccurredAt.UTC()
	}
	kind := existing.Kind
	if in.Kind != nil {
		kind = *in.Kind
	}
	envelopeID := existing.EnvelopeID
	moved := false
	switch {
	case in.DetachEnvelope:
		updates["envelope_id"] = nil
		envelopeID = nil
	case in.EnvelopeID != nil:
		updates["envelope_id"] = *in.EnvelopeID
		envelopeID = in.EnvelopeID
		moved = existing.EnvelopeID == nil || *existing.EnvelopeID != *in.EnvelopeID
	}

	if len(updates) > 0 {
		err = s.db.Transaction(func(tx *gorm.DB) error {
			if in.Kind != nil || in.EnvelopeID != nil {
				if err := checkAllocation(tx, existing.PeriodID, envelopeID, kind); err != nil {
					return err
				}
			}
			if err := tx.Model(existing).Updates(updates).Error; err != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, err)
			}
			if moved {
				if err := reopenEnvelope(tx, envelopeID, existing.CheckedAt); err != nil {
					return err
				}
			}
			return refreshFromPeriod(tx, existing.PeriodID)
		})
		if err != nil {
			return nil, err
		}
	}
	return ownedTransaction(s.db, userID, transactionID)
}

// DeleteTransaction deletes a transaction.
func (s *transactionService) DeleteTransaction(userID, transactionID string) error {
	existing, err := ownedTransaction(s.db, userID, transactionID)
	if err != nil {
		return err
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Delete(existing).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return refreshFromPeriod(tx, existing.PeriodID)
	})
}

// SetChecked stores the check state of a single transaction without
// touching its envelope.
func (s *transactionService) SetChecked(userID, transactionID string, checkedAt *time.Time) (*models.Transaction, error) {
	existing, err := ownedTransaction(s.db, userID, transactionID)
	if err != nil {
		return nil, err
	}
	if err := s.db.Model(existing).Update("checked_at", checkedAt).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	existing.CheckedAt = checkedAt
	return existing, nil
}

// ToggleTransaction runs the check cascade of a transaction and stores the
// transaction and, when it changed, its envelope atomically.
func (s *transactionService) ToggleTransaction(userID, transactionID string) (*cascade.TransactionResult, error) {
	existing, err := ownedTransaction(s.db, userID, transactionID)
	if err != nil {
		return nil, err
	}

	var result *cascade.TransactionResult
	err = s.db.Transaction(func(tx *gorm.DB) error {
		snap, err := periodContent(tx, existing.PeriodID)
		if err != nil {
			return err
		}
		result = cascade.ToggleTransaction(existing.ID, snap, s.now().UTC())
		if result == nil {
			return apperrors.ErrTransactionNotFound
		}

		for _, t := range result.Transactions {
			if t.ID != existing.ID {
				continue
			}
			if err := tx.Model(&models.Transaction{}).Where("id = ?", t.ID).Update("checked_at", t.CheckedAt).Error; err != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, err)
			}
		}
		if result.ShouldToggleEnvelope {
			env := result.Envelopes[indexOfEnvelope(result.Envelopes, *result.EnvelopeID)]
			if err := tx.Model(&models.Envelope{}).Where("id = ?", env.ID).Update("checked_at", env.CheckedAt).Error; err != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
