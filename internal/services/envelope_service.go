package services

import (
	"strings"
	"time"

	"gorm.io/gorm"

	"pulpe/internal/cascade"
	apperrors "pulpe/internal/errors"
	"pulpe/internal/models"
)

// envelopeService handles envelope business logic.
type envelopeService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewEnvelopeService creates a new EnvelopeServicer.
func NewEnvelopeService(db *gorm.DB) EnvelopeServicer {
	return &envelopeService{db: db, now: time.Now}
}

// CreateEnvelope adds a budget line to a period.
func (s *envelopeService) CreateEnvelope(userID, periodID string, in EnvelopeInput) (*models.Envelope, error) {
	if err := validateEnvelope(in.Name, in.Kind, in.Recurrence); err != nil {
		return nil, err
	}
	if err := validateAmount("planned amount", in.PlannedAmount); err != nil {
		return nil, err
	}

	p, err := findOwnedPeriod(s.db, userID, periodID)
	if err != nil {
		return nil, err
	}

	env := &models.Envelope{
		PeriodID:      p.ID,
		Name:          strings.TrimSpace(in.Name),
		PlannedAmount: in.PlannedAmount,
		Kind:          in.Kind,
		Recurrence:    in.Recurrence,
	}
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(env).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return refreshFromPeriod(tx, p.ID)
	})
	if err != nil {
		return nil, err
	}
	return env, nil
}

// GetEnvelopeByID returns an envelope of one of the user's periods.
func (s *envelopeService) GetEnvelopeByID(userID, envelopeID string) (*models.Envelope, error) {
	return ownedEnvelope(s.db, userID, envelopeID)
}

// UpdateEnvelope changes the given fields of an envelope.
func (s *envelopeService) UpdateEnvelope(userID, envelopeID string, in EnvelopeUpdate) (*models.Envelope, error) {
	env, err := ownedEnvelope(s.db, userID, envelopeID)
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
	if in.PlannedAmount != nil {
		if err := validateAmount("planned amount", *in.PlannedAmount); err != nil {
			return nil, err
		}
		updates["planned_amount"] = *in.PlannedAmount
	}
	if in.Kind != nil {
		if !in.Kind.Valid() {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid kind")
		}
		updates["kind"] = *in.Kind
	}
	if in.Recurrence != nil {
		if !in.Recurrence.Valid() {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid recurrence")
		}
		updates["recurrence"] = *in.Recurrence
	}

	if len(updates) > 0 {
		err = s.db.Transaction(func(tx *gorm.DB) error {
			if in.Kind != nil && *in.Kind != env.Kind {
				if err := checkAllocatedKinds(tx, env.ID, *in.Kind); err != nil {
					return err
				}
			}
			if err := tx.Model(env).Updates(updates).Error; err != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, err)
			}
			return refreshFromPeriod(tx, env.PeriodID)
		})
		if err != nil {
			return nil, err
		}
	}
	return ownedEnvelope(s.db, userID, envelopeID)
}

// DeleteEnvelope deletes an envelope. Its transactions become free.
func (s *envelopeService) DeleteEnvelope(userID, envelopeID string) error {
	env, err := ownedEnvelope(s.db, userID, envelopeID)
	if err != nil {
		return err
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Transaction{}).Where("envelope_id = ?", env.ID).Update("envelope_id", nil).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if err := tx.Unscoped().Delete(env).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return refreshFromPeriod(tx, env.PeriodID)
	})
}

// SetChecked stores the check state of a single envelope without cascading.
// Sessions compute the cascade themselves and push each change.
func (s *envelopeService) SetChecked(userID, envelopeID string, checkedAt *time.Time) (*models.Envelope, error) {
	env, err := ownedEnvelope(s.db, userID, envelopeID)
	if err != nil {
		return nil, err
	}
	if err := s.db.Model(env).Update("checked_at", checkedAt).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	env.CheckedAt = checkedAt
	return env, nil
}

// ToggleEnvelope runs the check cascade of an envelope and stores every
// change it produces atomically.
func (s *envelopeService) ToggleEnvelope(userID, envelopeID string) (*cascade.EnvelopeResult, error) {
	env, err := ownedEnvelope(s.db, userID, envelopeID)
	if err != nil {
		return nil, err
	}

	var result *cascade.EnvelopeResult
	err = s.db.Transaction(func(tx *gorm.DB) error {
		snap, err := periodContent(tx, env.PeriodID)
		if err != nil {
			return err
		}
		result = cascade.ToggleEnvelope(env.ID, snap, s.now().UTC())
		if result == nil {
			return apperrors.ErrEnvelopeNotFound
		}

		checkedAt := result.Envelopes[indexOfEnvelope(result.Envelopes, env.ID)].CheckedAt
		if err := tx.Model(&models.Envelope{}).Where("id = ?", env.ID).Update("checked_at", checkedAt).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		for _, t := range result.TransactionsToSync {
			if err := tx.Model(&models.Transaction{}).Where("id = ?", t.ID).Update("checked_at", t.CheckedAt).Error; err != nil {
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

func validateEnvelope(name string, kind models.Kind, recurrence models.Recurrence) error {
	if strings.TrimSpace(name) == "" {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "name is required")
	}
	if !kind.Valid() {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid kind")
	}
	if !recurrence.Valid() {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid recurrence")
	}
	return nil
}

// checkAllocatedKinds rejects an envelope kind that some of the envelope's
// transactions would no longer fit.
func checkAllocatedKinds(db *gorm.DB, envelopeID string, kind models.Kind) error {
	var kinds []models.Kind
	if err := db.Model(&models.Transaction{}).Where("envelope_id = ?", envelopeID).Distinct().Pluck("kind", &kinds).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	for _, k := range kinds {
		if !k.Fits(kind) {
			return apperrors.WithMessage(apperrors.ErrInvariantViolation,
				"The envelope holds "+string(k)+" transactions and cannot become "+string(kind))
		}
	}
	return nil
}

func indexOfEnvelope(envelopes []models.Envelope, id string) int {
	for i := range envelopes {
		if envelopes[i].ID == id {
			return i
		}
	}
	return -1
}
