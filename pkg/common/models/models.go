package models

import (
	"time"

	"github.com/google/uuid"
)

// Event is the versioned envelope exchanged on every Kafka topic. Type carries
// the event name (e.g. "profile.updated", "match.calculated") and Data the
// event-specific payload.
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Source    string                 `json:"source"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
}

// PatientProfile is the read-only snapshot served by the profile service.
// Coordinates and care level are pointers because the profile may be
// incomplete; the scoring engine falls back to neutral scores for missing data.
type PatientProfile struct {
	ID                  uuid.UUID              `json:"id"`
	UserID              uuid.UUID              `json:"userId"`
	Age                 int                    `json:"age"`
	Gender              string                 `json:"gender"`
	Region              string                 `json:"region"`
	Latitude            *float64               `json:"latitude"`
	Longitude           *float64               `json:"longitude"`
	CareLevel           *int                   `json:"careLevel"`
	CareTypes           []string               `json:"careType"`
	LifestyleAttributes map[string]interface{} `json:"lifestyleAttributes"`
	MedicalRequirements map[string]interface{} `json:"medicalRequirements"`
}

type ProviderProfile struct {
	ID              uuid.UUID              `json:"id"`
	UserID          uuid.UUID              `json:"userId"`
	FacilityName    string                 `json:"facilityName"`
	ProviderType    string                 `json:"providerType"`
	Latitude        *float64               `json:"latitude"`
	Longitude       *float64               `json:"longitude"`
	Address         string                 `json:"address"`
	Capacity        int                    `json:"capacity"`
	AvailableRooms  int                    `json:"availableRooms"`
	Specializations []string               `json:"specializations"`
	StaffCount      int                    `json:"staffCount"`
	Availability    map[string]interface{} `json:"availability"`
}

// SubscriptionStatus is the minimal billing read used to gate offers.
// IsActive is true for ACTIVE and TRIALING subscriptions.
type SubscriptionStatus struct {
	ProviderID uuid.UUID `json:"providerId"`
	IsActive   bool      `json:"isActive"`
	Status     string    `json:"status"`
}

// ---- API request payloads ----

type CalculateMatchRequest struct {
	PatientID  uuid.UUID `json:"patientId"`
	ProviderID uuid.UUID `json:"providerId"`
}

type CreateCareRequestRequest struct {
	ProviderID     uuid.UUID `json:"providerId"`
	PatientMessage string    `json:"patientMessage"`
}

type DeclineCareRequestRequest struct {
	DeclineReason string `json:"declineReason"`
}

type CreateOfferRequest struct {
	PatientID           uuid.UUID              `json:"patientId"`
	Message             string                 `json:"message"`
	AvailabilityDetails map[string]interface{} `json:"availabilityDetails"`
	CareRequestID       *uuid.UUID             `json:"careRequestId"`
}

// ---- API responses ----

type MatchScoreResponse struct {
	ID              uuid.UUID              `json:"id"`
	PatientID       uuid.UUID              `json:"patientId"`
	ProviderID      uuid.UUID              `json:"providerId"`
	Score           float64                `json:"score"`
	Explanation     map[string]interface{} `json:"explanation"`
	ScoreBreakdown  map[string]interface{} `json:"scoreBreakdown"`
	CalculatedAt    time.Time              `json:"calculatedAt"`
	ProviderName    string                 `json:"providerName,omitempty"`
	ProviderType    string                 `json:"providerType,omitempty"`
	ProviderAddress string                 `json:"providerAddress,omitempty"`
}

type CareRequestResponse struct {
	ID              uuid.UUID  `json:"id"`
	PatientID       uuid.UUID  `json:"patientId"`
	ProviderID      uuid.UUID  `json:"providerId"`
	Status          string     `json:"status"`
	PatientMessage  string     `json:"patientMessage"`
	DeclineReason   string     `json:"declineReason,omitempty"`
	LinkedOfferID   *uuid.UUID `json:"linkedOfferId,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	RespondedAt     *time.Time `json:"respondedAt,omitempty"`
	ProviderName    string     `json:"providerName,omitempty"`
	ProviderType    string     `json:"providerType,omitempty"`
	ProviderAddress string     `json:"providerAddress,omitempty"`
}

type OfferResponse struct {
	ID                  uuid.UUID              `json:"id"`
	PatientID           uuid.UUID              `json:"patientId"`
	ProviderID          uuid.UUID              `json:"providerId"`
	MatchID             *uuid.UUID             `json:"matchId,omitempty"`
	MatchScore          *float64               `json:"matchScore,omitempty"`
	Status              string                 `json:"status"`
	Message             string                 `json:"message"`
	AvailabilityDetails map[string]interface{} `json:"availabilityDetails"`
	ExpiresAt           time.Time              `json:"expiresAt"`
	CreatedAt           time.Time              `json:"createdAt"`
}

type OfferHistoryResponse struct {
	ID        uuid.UUID  `json:"id"`
	OfferID   uuid.UUID  `json:"offerId"`
	OldStatus string     `json:"oldStatus,omitempty"`
	NewStatus string     `json:"newStatus"`
	ChangedBy *uuid.UUID `json:"changedBy,omitempty"`
	ChangedAt time.Time  `json:"changedAt"`
	Notes     string     `json:"notes"`
}
