package matching

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/matchcare/platform/pkg/common/models"
)

// MatchScore holds the current compatibility assessment for one
// (patient, provider) pair. The pair is unique; recalculation overwrites the
// row in place.
type MatchScore struct {
	ID             uuid.UUID         `gorm:"primaryKey;column:id"`
	PatientID      uuid.UUID         `gorm:"column:patient_id;uniqueIndex:uq_match_pair"`
	ProviderID     uuid.UUID         `gorm:"column:provider_id;uniqueIndex:uq_match_pair"`
	Score          float64           `gorm:"column:score"`
	Explanation    datatypes.JSONMap `gorm:"column:explanation"`
	ScoreBreakdown datatypes.JSONMap `gorm:"column:score_breakdown"`
	CalculatedAt   time.Time         `gorm:"column:calculated_at"`
}

func (MatchScore) TableName() string {
	return "match_scores"
}

// MatchNotification records that a threshold-crossing notification was
// emitted for a match score. One row per match id, never updated.
type MatchNotification struct {
	ID               uuid.UUID  `gorm:"primaryKey;column:id"`
	MatchID          uuid.UUID  `gorm:"column:match_id;uniqueIndex"`
	NotificationSent bool       `gorm:"column:notification_sent"`
	SentAt           *time.Time `gorm:"column:sent_at"`
	CreatedAt        time.Time  `gorm:"column:created_at"`
}

func (MatchNotification) TableName() string {
	return "match_notifications"
}

func (m *MatchScore) ToResponse() models.MatchScoreResponse {
	return models.MatchScoreResponse{
		ID:             m.ID,
		PatientID:      m.PatientID,
		ProviderID:     m.ProviderID,
		Score:          m.Score,
		Explanation:    map[string]interface{}(m.Explanation),
		ScoreBreakdown: map[string]interface{}(m.ScoreBreakdown),
		CalculatedAt:   m.CalculatedAt,
	}
}
