package offers

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var ErrOfferNotFound = errors.New("offer not found")

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&Offer{}, &OfferHistory{})
}

// CreateWithHistory persists a new offer and its initial history row in one
// transaction.
func (r *Repository) CreateWithHistory(ctx context.Context, offer *Offer, notes string) error {
	if offer.ID == uuid.Nil {
		offer.ID = uuid.New()
	}
	now := time.Now().UTC()
	offer.CreatedAt = now
	offer.UpdatedAt = now

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(offer).Error; err != nil {
			return err
		}
		history := OfferHistory{
			ID:        uuid.New(),
			OfferID:   offer.ID,
			NewStatus: offer.Status,
			ChangedBy: &offer.ProviderID,
			ChangedAt: now,
			Notes:     notes,
		}
		return tx.Create(&history).Error
	})
}

func (r *Repository) FindByID(ctx context.Context, offerID uuid.UUID) (*Offer, error) {
	var offer Offer
	result := r.db.WithContext(ctx).Where("id = ?", offerID).First(&offer)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrOfferNotFound
	}
	if result.Error != nil {
		return nil, result.Error
	}
	return &offer, nil
}

func (r *Repository) ListByPatient(ctx context.Context, patientID uuid.UUID, offset, limit int) ([]Offer, error) {
	var offers []Offer
	result := r.db.WithContext(ctx).
		Where("patient_id = ?", patientID).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&offers)
	return offers, result.Error
}

func (r *Repository) ListByProvider(ctx context.Context, providerID uuid.UUID, offset, limit int) ([]Offer, error) {
	var offers []Offer
	result := r.db.WithContext(ctx).
		Where("provider_id = ?", providerID).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&offers)
	return offers, result.Error
}

// Transition moves the offer to a new status only if its stored status is
// still in the allowed set at commit time, and appends the history row in the
// same transaction. Returns false when the optimistic check lost a race.
func (r *Repository) Transition(ctx context.Context, offer *Offer, from []string, to string, changedBy *uuid.UUID, notes string) (bool, error) {
	now := time.Now().UTC()
	applied := false

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&Offer{}).
			Where("id = ? AND status IN ?", offer.ID, from).
			Updates(map[string]interface{}{"status": to, "updated_at": now})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}

		history := OfferHistory{
			ID:        uuid.New(),
			OfferID:   offer.ID,
			OldStatus: offer.Status,
			NewStatus: to,
			ChangedBy: changedBy,
			ChangedAt: now,
			Notes:     notes,
		}
		if err := tx.Create(&history).Error; err != nil {
			return err
		}
		applied = true
		return nil
	})
	if err != nil {
		return false, err
	}

	if applied {
		offer.Status = to
		offer.UpdatedAt = now
	}
	return applied, nil
}

func (r *Repository) ListExpired(ctx context.Context, now time.Time) ([]Offer, error) {
	var offers []Offer
	result := r.db.WithContext(ctx).
		Where("status = ? AND expires_at < ?", StatusSent, now).
		Find(&offers)
	return offers, result.Error
}

func (r *Repository) ListHistory(ctx context.Context, offerID uuid.UUID) ([]OfferHistory, error) {
	var history []OfferHistory
	result := r.db.WithContext(ctx).
		Where("offer_id = ?", offerID).
		Order("changed_at DESC").
		Find(&history)
	return history, result.Error
}
