package carerequests

import (
	"time"

	"github.com/google/uuid"

	"github.com/matchcare/platform/pkg/common/models"
)

const (
	StatusPending  = "PENDING"
	StatusAccepted = "ACCEPTED"
	StatusDeclined = "DECLINED"
)

// CareRequest is a patient's direct expression of interest in one provider.
// PENDING transitions to ACCEPTED when the provider answers with an offer,
// or DECLINED; both are terminal.
type CareRequest struct {
	ID             uuid.UUID  `gorm:"primaryKey;column:id"`
	PatientID      uuid.UUID  `gorm:"column:patient_id;index:idx_care_request_pair"`
	ProviderID     uuid.UUID  `gorm:"column:provider_id;index:idx_care_request_pair"`
	Status         string     `gorm:"column:status"`
	PatientMessage string     `gorm:"column:patient_message"`
	DeclineReason  string     `gorm:"column:decline_reason"`
	LinkedOfferID  *uuid.UUID `gorm:"column:linked_offer_id"`
	CreatedAt      time.Time  `gorm:"column:created_at"`
	UpdatedAt      time.Time  `gorm:"column:updated_at"`
	RespondedAt    *time.Time `gorm:"column:responded_at"`
}

func (CareRequest) TableName() string {
	return "care_requests"
}

func (c *CareRequest) ToResponse() models.CareRequestResponse {
	return models.CareRequestResponse{
		ID:             c.ID,
		PatientID:      c.PatientID,
		ProviderID:     c.ProviderID,
		Status:         c.Status,
		PatientMessage: c.PatientMessage,
		DeclineReason:  c.DeclineReason,
		LinkedOfferID:  c.LinkedOfferID,
		CreatedAt:      c.CreatedAt,
		RespondedAt:    c.RespondedAt,
	}
}
