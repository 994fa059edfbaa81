package matching

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/matchcare/platform/pkg/common/apperr"
	"github.com/matchcare/platform/pkg/common/logger"
	"github.com/matchcare/platform/pkg/common/models"
	"github.com/matchcare/platform/pkg/observability/metrics"
)

const eventSource = "match-service"

// ScoreStore is the persistence seam for match scores and notification
// markers, implemented by Repository.
type ScoreStore interface {
	Upsert(ctx context.Context, score *MatchScore) (*MatchScore, error)
	FindByPair(ctx context.Context, patientID, providerID uuid.UUID) (*MatchScore, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, offset, limit int) ([]MatchScore, error)
	ListByProvider(ctx context.Context, providerID uuid.UUID, offset, limit int) ([]MatchScore, error)
	TopForPatient(ctx context.Context, patientID uuid.UUID, minScore float64, limit int) ([]MatchScore, error)
	DeleteByPatient(ctx context.Context, patientID uuid.UUID) error
	DeleteByProvider(ctx context.Context, providerID uuid.UUID) error
	NotificationSent(ctx context.Context, matchID uuid.UUID) (bool, error)
	MarkNotified(ctx context.Context, matchID uuid.UUID) error
}

// ProfileDirectory is the read-only collaborator boundary to the profile
// service, implemented by the profile client.
type ProfileDirectory interface {
	GetPatient(ctx context.Context, patientID uuid.UUID) (*models.PatientProfile, error)
	GetProvider(ctx context.Context, providerID uuid.UUID) (*models.ProviderProfile, error)
	ListActivePatients(ctx context.Context) ([]models.PatientProfile, error)
	ListActiveProviders(ctx context.Context) ([]models.ProviderProfile, error)
}

type EventPublisher interface {
	PublishEvent(ctx context.Context, eventType string, source string, data map[string]interface{}) error
}

// Service orchestrates score calculation, fan-out recalculation off profile
// events, and threshold notifications.
type Service struct {
	store     ScoreStore
	profiles  ProfileDirectory
	scorer    *Scorer
	producer  EventPublisher
	cache     *Cache
	threshold float64

	// Fan-outs run detached from the triggering event's lifetime, bound to
	// runCtx so shutdown can cancel them mid-population. mu guards stopped
	// so a trigger arriving during Shutdown cannot add to a draining group.
	runCtx  context.Context
	cancel  context.CancelFunc
	mu      sync.Mutex
	stopped bool
	wg      sync.WaitGroup
}

func NewService(store ScoreStore, profiles ProfileDirectory, scorer *Scorer, producer EventPublisher, cache *Cache, threshold int) *Service {
	runCtx, cancel := context.WithCancel(context.Background())
	return &Service{
		store:     store,
		profiles:  profiles,
		scorer:    scorer,
		producer:  producer,
		cache:     cache,
		threshold: float64(threshold),
		runCtx:    runCtx,
		cancel:    cancel,
	}
}

// Shutdown cancels in-flight fan-outs and waits for them to stop. Each pair's
// upsert commits independently, so cancellation leaves no partial state.
// Recalculation triggers arriving after Shutdown are dropped.
func (s *Service) Shutdown() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	s.cancel()
	s.wg.Wait()
}

// launchFanout starts fn on the fan-out group unless the service has been
// shut down. Returns false when the trigger was dropped.
func (s *Service) launchFanout(fn func(ctx context.Context)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return false
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn(s.runCtx)
	}()
	return true
}

// CalculateMatch scores one pair synchronously, upserts the result and
// triggers the threshold notification when crossed.
func (s *Service) CalculateMatch(ctx context.Context, patientID, providerID uuid.UUID) (*models.MatchScoreResponse, error) {
	logger.Log.WithFields(map[string]interface{}{
		"patient_id":  patientID,
		"provider_id": providerID,
	}).Info("Calculating match")

	patient, err := s.profiles.GetPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	provider, err := s.profiles.GetProvider(ctx, providerID)
	if err != nil {
		return nil, err
	}

	saved, err := s.scoreAndStore(ctx, patient, provider)
	if err != nil {
		return nil, err
	}

	response := saved.ToResponse()
	enrichWithProvider(&response, provider)
	return &response, nil
}

// RecalculateForPatient invalidates the patient's cached listings and kicks
// off a detached fan-out across all active providers. The caller (event
// consumer or HTTP trigger) is not blocked on the fan-out's completion.
func (s *Service) RecalculateForPatient(patientID uuid.UUID) {
	s.cache.InvalidatePatient(s.runCtx, patientID)
	if !s.launchFanout(func(ctx context.Context) {
		s.recalculatePatient(ctx, patientID)
	}) {
		logger.Log.WithField("patient_id", patientID).Warn("Service stopping, recalculation trigger dropped")
	}
}

func (s *Service) RecalculateForProvider(providerID uuid.UUID) {
	s.cache.InvalidateAll(s.runCtx)
	if !s.launchFanout(func(ctx context.Context) {
		s.recalculateProvider(ctx, providerID)
	}) {
		logger.Log.WithField("provider_id", providerID).Warn("Service stopping, recalculation trigger dropped")
	}
}

func (s *Service) recalculatePatient(ctx context.Context, patientID uuid.UUID) {
	log := logger.Log.WithField("patient_id", patientID)
	log.Info("Recalculating matches for patient")

	if err := s.store.DeleteByPatient(ctx, patientID); err != nil {
		log.WithError(err).Error("Failed to reset match scores for patient")
		return
	}

	patient, err := s.profiles.GetPatient(ctx, patientID)
	if err != nil {
		if apperr.IsKind(err, apperr.KindNotFound) {
			log.Info("Patient profile no longer exists, skipping fan-out")
		} else {
			log.WithError(err).Error("Failed to fetch patient for fan-out")
		}
		return
	}

	providers, err := s.profiles.ListActiveProviders(ctx)
	if err != nil {
		log.WithError(err).Error("Failed to list active providers for fan-out")
		return
	}

	failures := 0
	for i := range providers {
		select {
		case <-ctx.Done():
			log.Info("Patient fan-out cancelled")
			return
		default:
		}

		if _, err := s.scoreAndStore(ctx, patient, &providers[i]); err != nil {
			failures++
			metrics.AddFanoutPairFailures(1)
			log.WithError(err).WithField("provider_id", providers[i].ID).Error("Failed to score pair, continuing fan-out")
		}
	}

	log.WithFields(map[string]interface{}{
		"providers": len(providers),
		"failures":  failures,
	}).Info("Patient fan-out complete")
}

func (s *Service) recalculateProvider(ctx context.Context, providerID uuid.UUID) {
	log := logger.Log.WithField("provider_id", providerID)
	log.Info("Recalculating matches for provider")

	if err := s.store.DeleteByProvider(ctx, providerID); err != nil {
		log.WithError(err).Error("Failed to reset match scores for provider")
		return
	}

	provider, err := s.profiles.GetProvider(ctx, providerID)
	if err != nil {
		if apperr.IsKind(err, apperr.KindNotFound) {
			log.Info("Provider profile no longer exists, skipping fan-out")
		} else {
			log.WithError(err).Error("Failed to fetch provider for fan-out")
		}
		return
	}

	patients, err := s.profiles.ListActivePatients(ctx)
	if err != nil {
		log.WithError(err).Error("Failed to list active patients for fan-out")
		return
	}

	failures := 0
	for i := range patients {
		select {
		case <-ctx.Done():
			log.Info("Provider fan-out cancelled")
			return
		default:
		}

		if _, err := s.scoreAndStore(ctx, &patients[i], provider); err != nil {
			failures++
			metrics.AddFanoutPairFailures(1)
			log.WithError(err).WithField("patient_id", patients[i].ID).Error("Failed to score pair, continuing fan-out")
		}
	}

	log.WithFields(map[string]interface{}{
		"patients": len(patients),
		"failures": failures,
	}).Info("Provider fan-out complete")
}

func (s *Service) scoreAndStore(ctx context.Context, patient *models.PatientProfile, provider *models.ProviderProfile) (*MatchScore, error) {
	result := s.scorer.Score(patient, provider)

	saved, err := s.store.Upsert(ctx, &MatchScore{
		PatientID:      patient.ID,
		ProviderID:     provider.ID,
		Score:          result.Score,
		Explanation:    datatypes.JSONMap(result.Explanation),
		ScoreBreakdown: datatypes.JSONMap(result.Breakdown),
		CalculatedAt:   time.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}
	metrics.AddMatchesCalculated(1)

	if saved.Score >= s.threshold {
		s.notifyThresholdCrossing(ctx, saved)
	}

	return saved, nil
}

// notifyThresholdCrossing emits a match.calculated event at most once per
// match id, best effort. The marker is written after the emission, so a crash
// in between re-emits on the next trigger: at-least-once, never silently
// dropped.
func (s *Service) notifyThresholdCrossing(ctx context.Context, match *MatchScore) {
	sent, err := s.store.NotificationSent(ctx, match.ID)
	if err != nil {
		logger.Log.WithError(err).WithField("match_id", match.ID).Error("Failed to check notification marker")
		return
	}
	if sent {
		logger.Log.WithField("match_id", match.ID).Debug("Notification already sent for match")
		return
	}

	data := map[string]interface{}{
		"matchId":    match.ID.String(),
		"patientId":  match.PatientID.String(),
		"providerId": match.ProviderID.String(),
		"score":      match.Score,
		"timestamp":  match.CalculatedAt.Format(time.RFC3339),
	}
	if err := s.producer.PublishEvent(ctx, "match.calculated", eventSource, data); err != nil {
		// No marker write on failure; the next trigger retries the emission.
		logger.Log.WithError(err).WithField("match_id", match.ID).Error("Failed to publish match calculated event")
		return
	}
	metrics.AddNotificationsEmitted(1)

	if err := s.store.MarkNotified(ctx, match.ID); err != nil {
		logger.Log.WithError(err).WithField("match_id", match.ID).Error("Failed to write notification marker")
	}
}

// GetMatch returns the stored score for one pair, enriched with provider
// details when the profile service answers.
func (s *Service) GetMatch(ctx context.Context, patientID, providerID uuid.UUID) (*models.MatchScoreResponse, error) {
	match, err := s.store.FindByPair(ctx, patientID, providerID)
	if err != nil {
		if errors.Is(err, ErrScoreNotFound) {
			return nil, apperr.NotFound("match not found for patient and provider")
		}
		return nil, err
	}

	response := match.ToResponse()
	s.enrichFromProfile(ctx, &response)
	return &response, nil
}

func (s *Service) GetMatchesForPatient(ctx context.Context, patientID uuid.UUID, page, size int) ([]models.MatchScoreResponse, error) {
	page, size = normalizePage(page, size)

	if cached, ok := s.cache.GetPatientMatches(ctx, patientID, page, size); ok {
		return cached, nil
	}

	matches, err := s.store.ListByPatient(ctx, patientID, page*size, size)
	if err != nil {
		return nil, err
	}

	responses := make([]models.MatchScoreResponse, 0, len(matches))
	for i := range matches {
		response := matches[i].ToResponse()
		s.enrichFromProfile(ctx, &response)
		responses = append(responses, response)
	}

	s.cache.SetPatientMatches(ctx, patientID, page, size, responses)
	return responses, nil
}

func (s *Service) GetMatchesForProvider(ctx context.Context, providerID uuid.UUID, page, size int) ([]models.MatchScoreResponse, error) {
	page, size = normalizePage(page, size)

	matches, err := s.store.ListByProvider(ctx, providerID, page*size, size)
	if err != nil {
		return nil, err
	}

	responses := make([]models.MatchScoreResponse, 0, len(matches))
	for i := range matches {
		responses = append(responses, matches[i].ToResponse())
	}
	return responses, nil
}

func (s *Service) GetTopMatchesForPatient(ctx context.Context, patientID uuid.UUID, limit int) ([]models.MatchScoreResponse, error) {
	matches, err := s.store.TopForPatient(ctx, patientID, s.threshold, limit)
	if err != nil {
		return nil, err
	}

	responses := make([]models.MatchScoreResponse, 0, len(matches))
	for i := range matches {
		response := matches[i].ToResponse()
		s.enrichFromProfile(ctx, &response)
		responses = append(responses, response)
	}
	return responses, nil
}

func (s *Service) enrichFromProfile(ctx context.Context, response *models.MatchScoreResponse) {
	provider, err := s.profiles.GetProvider(ctx, response.ProviderID)
	if err != nil {
		logger.Log.WithError(err).WithField("provider_id", response.ProviderID).Warn("Could not fetch provider details")
		return
	}
	enrichWithProvider(response, provider)
}

func enrichWithProvider(response *models.MatchScoreResponse, provider *models.ProviderProfile) {
	response.ProviderName = provider.FacilityName
	response.ProviderType = provider.ProviderType
	response.ProviderAddress = provider.Address
}

func normalizePage(page, size int) (int, int) {
	if page < 0 {
		page = 0
	}
	if size <= 0 {
		size = 20
	}
	return page, size
}
