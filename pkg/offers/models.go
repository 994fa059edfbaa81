package offers

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/matchcare/platform/pkg/common/models"
)

const (
	StatusDraft    = "DRAFT"
	StatusSent     = "SENT"
	StatusViewed   = "VIEWED"
	StatusAccepted = "ACCEPTED"
	StatusRejected = "REJECTED"
	StatusExpired  = "EXPIRED"
)

// Offer is a provider's formal proposal to a patient. Transitions run
// DRAFT → SENT → VIEWED → {ACCEPTED, REJECTED, EXPIRED}, with accept/reject
// allowed from both SENT and VIEWED.
type Offer struct {
	ID                  uuid.UUID         `gorm:"primaryKey;column:id"`
	PatientID           uuid.UUID         `gorm:"column:patient_id;index"`
	ProviderID          uuid.UUID         `gorm:"column:provider_id;index"`
	MatchID             *uuid.UUID        `gorm:"column:match_id"`
	Status              string            `gorm:"column:status"`
	Message             string            `gorm:"column:message"`
	AvailabilityDetails datatypes.JSONMap `gorm:"column:availability_details"`
	ExpiresAt           time.Time         `gorm:"column:expires_at"`
	CreatedAt           time.Time         `gorm:"column:created_at"`
	UpdatedAt           time.Time         `gorm:"column:updated_at"`
}

func (Offer) TableName() string {
	return "offers"
}

func (o *Offer) IsExpired(now time.Time) bool {
	return now.After(o.ExpiresAt)
}

func (o *Offer) CanBeAccepted() bool {
	return o.Status == StatusSent || o.Status == StatusViewed
}

func (o *Offer) CanBeRejected() bool {
	return o.Status == StatusSent || o.Status == StatusViewed
}

func (o *Offer) ToResponse() models.OfferResponse {
	return models.OfferResponse{
		ID:                  o.ID,
		PatientID:           o.PatientID,
		ProviderID:          o.ProviderID,
		MatchID:             o.MatchID,
		Status:              o.Status,
		Message:             o.Message,
		AvailabilityDetails: map[string]interface{}(o.AvailabilityDetails),
		ExpiresAt:           o.ExpiresAt,
		CreatedAt:           o.CreatedAt,
	}
}

// OfferHistory is the append-only audit trail: one row per status transition,
// never mutated or deleted.
type OfferHistory struct {
	ID        uuid.UUID  `gorm:"primaryKey;column:id"`
	OfferID   uuid.UUID  `gorm:"column:offer_id;index"`
	OldStatus string     `gorm:"column:old_status"`
	NewStatus string     `gorm:"column:new_status"`
	ChangedBy *uuid.UUID `gorm:"column:changed_by"`
	ChangedAt time.Time  `gorm:"column:changed_at"`
	Notes     string     `gorm:"column:notes"`
}

func (OfferHistory) TableName() string {
	return "offer_history"
}

func (h *OfferHistory) ToResponse() models.OfferHistoryResponse {
	return models.OfferHistoryResponse{
		ID:        h.ID,
		OfferID:   h.OfferID,
		OldStatus: h.OldStatus,
		NewStatus: h.NewStatus,
		ChangedBy: h.ChangedBy,
		ChangedAt: h.ChangedAt,
		Notes:     h.Notes,
	}
}
