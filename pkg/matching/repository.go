package matching

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrScoreNotFound = errors.New("match score not found")

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&MatchScore{}, &MatchNotification{})
}

// Upsert inserts or overwrites the score for the (patient, provider) pair in
// one atomic statement keyed by the unique pair index, then returns the
// canonical row. Concurrent upserts to the same pair cannot lose updates.
func (r *Repository) Upsert(ctx context.Context, score *MatchScore) (*MatchScore, error) {
	if score.ID == uuid.Nil {
		score.ID = uuid.New()
	}
	if score.CalculatedAt.IsZero() {
		score.CalculatedAt = time.Now().UTC()
	}

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "patient_id"}, {Name: "provider_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"score", "explanation", "score_breakdown", "calculated_at",
		}),
	}).Create(score).Error
	if err != nil {
		return nil, err
	}

	// On conflict the pre-existing row keeps its id, so re-read by pair.
	return r.FindByPair(ctx, score.PatientID, score.ProviderID)
}

func (r *Repository) FindByPair(ctx context.Context, patientID, providerID uuid.UUID) (*MatchScore, error) {
	var score MatchScore
	result := r.db.WithContext(ctx).
		Where("patient_id = ? AND provider_id = ?", patientID, providerID).
		First(&score)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrScoreNotFound
	}
	if result.Error != nil {
		return nil, result.Error
	}
	return &score, nil
}

func (r *Repository) ListByPatient(ctx context.Context, patientID uuid.UUID, offset, limit int) ([]MatchScore, error) {
	var scores []MatchScore
	result := r.db.WithContext(ctx).
		Where("patient_id = ?", patientID).
		Order("score DESC").
		Offset(offset).
		Limit(limit).
		Find(&scores)
	return scores, result.Error
}

func (r *Repository) ListByProvider(ctx context.Context, providerID uuid.UUID, offset, limit int) ([]MatchScore, error) {
	var scores []MatchScore
	result := r.db.WithContext(ctx).
		Where("provider_id = ?", providerID).
		Order("score DESC").
		Offset(offset).
		Limit(limit).
		Find(&scores)
	return scores, result.Error
}

func (r *Repository) TopForPatient(ctx context.Context, patientID uuid.UUID, minScore float64, limit int) ([]MatchScore, error) {
	if limit <= 0 {
		limit = 10
	}
	var scores []MatchScore
	result := r.db.WithContext(ctx).
		Where("patient_id = ? AND score >= ?", patientID, minScore).
		Order("score DESC").
		Limit(limit).
		Find(&scores)
	return scores, result.Error
}

func (r *Repository) DeleteByPatient(ctx context.Context, patientID uuid.UUID) error {
	return r.db.WithContext(ctx).Where("patient_id = ?", patientID).Delete(&MatchScore{}).Error
}

func (r *Repository) DeleteByProvider(ctx context.Context, providerID uuid.UUID) error {
	return r.db.WithContext(ctx).Where("provider_id = ?", providerID).Delete(&MatchScore{}).Error
}

func (r *Repository) NotificationSent(ctx context.Context, matchID uuid.UUID) (bool, error) {
	var count int64
	result := r.db.WithContext(ctx).Model(&MatchNotification{}).
		Where("match_id = ? AND notification_sent = ?", matchID, true).
		Count(&count)
	return count > 0, result.Error
}

// MarkNotified records the sent marker for a match id. A concurrent duplicate
// insert is a no-op thanks to the unique index on match_id.
func (r *Repository) MarkNotified(ctx context.Context, matchID uuid.UUID) error {
	now := time.Now().UTC()
	notification := MatchNotification{
		ID:               uuid.New(),
		MatchID:          matchID,
		NotificationSent: true,
		SentAt:           &now,
		CreatedAt:        now,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "match_id"}},
		DoNothing: true,
	}).Create(&notification).Error
}
