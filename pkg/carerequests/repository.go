package carerequests

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrRequestNotFound  = errors.New("care request not found")
	ErrDuplicatePending = errors.New("pending care request already exists for pair")
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) AutoMigrate() error {
	if err := r.db.AutoMigrate(&CareRequest{}); err != nil {
		return err
	}
	// GORM tags cannot express a partial index, so the guard that allows only
	// one PENDING request per pair (while permitting any number of resolved
	// ones) is created directly. Backs up the pre-insert check in Submit
	// against concurrent submissions.
	return r.db.Exec(
		"CREATE UNIQUE INDEX IF NOT EXISTS uq_care_request_pending ON care_requests (patient_id, provider_id) WHERE status = 'PENDING'",
	).Error
}

func (r *Repository) Create(ctx context.Context, request *CareRequest) error {
	if request.ID == uuid.Nil {
		request.ID = uuid.New()
	}
	now := time.Now().UTC()
	request.CreatedAt = now
	request.UpdatedAt = now
	if err := r.db.WithContext(ctx).Create(request).Error; err != nil {
		// The partial unique index rejects a concurrent second PENDING insert
		// that slipped past the pre-insert check.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicatePending
		}
		return err
	}
	return nil
}

func (r *Repository) FindByID(ctx context.Context, requestID uuid.UUID) (*CareRequest, error) {
	var request CareRequest
	result := r.db.WithContext(ctx).Where("id = ?", requestID).First(&request)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrRequestNotFound
	}
	if result.Error != nil {
		return nil, result.Error
	}
	return &request, nil
}

func (r *Repository) FindPendingByPair(ctx context.Context, patientID, providerID uuid.UUID) (*CareRequest, error) {
	var request CareRequest
	result := r.db.WithContext(ctx).
		Where("patient_id = ? AND provider_id = ? AND status = ?", patientID, providerID, StatusPending).
		First(&request)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrRequestNotFound
	}
	if result.Error != nil {
		return nil, result.Error
	}
	return &request, nil
}

func (r *Repository) ListByPatient(ctx context.Context, patientID uuid.UUID, status string, offset, limit int) ([]CareRequest, error) {
	query := r.db.WithContext(ctx).Where("patient_id = ?", patientID)
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var requests []CareRequest
	result := query.Order("created_at DESC").Offset(offset).Limit(limit).Find(&requests)
	return requests, result.Error
}

func (r *Repository) ListByProvider(ctx context.Context, providerID uuid.UUID, status string, offset, limit int) ([]CareRequest, error) {
	query := r.db.WithContext(ctx).Where("provider_id = ?", providerID)
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var requests []CareRequest
	result := query.Order("created_at DESC").Offset(offset).Limit(limit).Find(&requests)
	return requests, result.Error
}

// Decline moves a request to DECLINED only if it is still PENDING at commit
// time. Returns false when the optimistic state check lost the race.
func (r *Repository) Decline(ctx context.Context, requestID uuid.UUID, reason string) (bool, error) {
	now := time.Now().UTC()
	result := r.db.WithContext(ctx).Model(&CareRequest{}).
		Where("id = ? AND status = ?", requestID, StatusPending).
		Updates(map[string]interface{}{
			"status":         StatusDeclined,
			"decline_reason": reason,
			"responded_at":   now,
			"updated_at":     now,
		})
	return result.RowsAffected > 0, result.Error
}

// LinkOffer marks a PENDING request as ACCEPTED and records the answering
// offer. Same optimistic guard as Decline.
func (r *Repository) LinkOffer(ctx context.Context, requestID, offerID uuid.UUID) (bool, error) {
	now := time.Now().UTC()
	result := r.db.WithContext(ctx).Model(&CareRequest{}).
		Where("id = ? AND status = ?", requestID, StatusPending).
		Updates(map[string]interface{}{
			"status":          StatusAccepted,
			"linked_offer_id": offerID,
			"responded_at":    now,
			"updated_at":      now,
		})
	return result.RowsAffected > 0, result.Error
}
