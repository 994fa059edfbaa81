package offers

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/matchcare/platform/pkg/common/apperr"
	"github.com/matchcare/platform/pkg/common/logger"
	"github.com/matchcare/platform/pkg/common/models"
	"github.com/matchcare/platform/pkg/matching"
	"github.com/matchcare/platform/pkg/observability/metrics"
)

const eventSource = "match-service"

type OfferStore interface {
	CreateWithHistory(ctx context.Context, offer *Offer, notes string) error
	FindByID(ctx context.Context, offerID uuid.UUID) (*Offer, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, offset, limit int) ([]Offer, error)
	ListByProvider(ctx context.Context, providerID uuid.UUID, offset, limit int) ([]Offer, error)
	Transition(ctx context.Context, offer *Offer, from []string, to string, changedBy *uuid.UUID, notes string) (bool, error)
	ListExpired(ctx context.Context, now time.Time) ([]Offer, error)
	ListHistory(ctx context.Context, offerID uuid.UUID) ([]OfferHistory, error)
}

// SubscriptionChecker is the read-only billing boundary.
type SubscriptionChecker interface {
	GetSubscriptionStatus(ctx context.Context, providerID uuid.UUID) (*models.SubscriptionStatus, error)
}

// MatchFinder looks up an existing score so a new offer can link back to it.
type MatchFinder interface {
	FindByPair(ctx context.Context, patientID, providerID uuid.UUID) (*matching.MatchScore, error)
}

// RequestLinker marks a care request as answered when an offer references it.
type RequestLinker interface {
	LinkOffer(ctx context.Context, requestID, offerID uuid.UUID) error
}

type EventPublisher interface {
	PublishEvent(ctx context.Context, eventType string, source string, data map[string]interface{}) error
}

type Service struct {
	store      OfferStore
	billing    SubscriptionChecker
	matches    MatchFinder
	requests   RequestLinker
	producer   EventPublisher
	expiration time.Duration
}

func NewService(store OfferStore, billing SubscriptionChecker, matches MatchFinder, requests RequestLinker, producer EventPublisher, expirationDays int) *Service {
	return &Service{
		store:      store,
		billing:    billing,
		matches:    matches,
		requests:   requests,
		producer:   producer,
		expiration: time.Duration(expirationDays) * 24 * time.Hour,
	}
}

// Create drafts a new offer. Requires an active subscription (see
// checkSubscription for the fail-open policy), links an existing match score
// when one exists, and answers the originating care request when given.
func (s *Service) Create(ctx context.Context, providerID uuid.UUID, req models.CreateOfferRequest) (*models.OfferResponse, error) {
	logger.Log.WithFields(map[string]interface{}{
		"provider_id": providerID,
		"patient_id":  req.PatientID,
	}).Info("Creating offer")

	if err := s.checkSubscription(ctx, providerID); err != nil {
		return nil, err
	}

	var matchID *uuid.UUID
	var matchScore *float64
	match, err := s.matches.FindByPair(ctx, req.PatientID, providerID)
	if err == nil {
		matchID = &match.ID
		matchScore = &match.Score
	} else if !errors.Is(err, matching.ErrScoreNotFound) {
		logger.Log.WithError(err).Warn("Could not look up match score for offer, continuing without link")
	}

	offer := &Offer{
		PatientID:           req.PatientID,
		ProviderID:          providerID,
		MatchID:             matchID,
		Status:              StatusDraft,
		Message:             req.Message,
		AvailabilityDetails: datatypes.JSONMap(req.AvailabilityDetails),
		ExpiresAt:           time.Now().UTC().Add(s.expiration),
	}
	if err := s.store.CreateWithHistory(ctx, offer, "Offer created"); err != nil {
		return nil, err
	}

	if req.CareRequestID != nil {
		if err := s.requests.LinkOffer(ctx, *req.CareRequestID, offer.ID); err != nil {
			logger.Log.WithError(err).WithFields(map[string]interface{}{
				"offer_id":   offer.ID,
				"request_id": *req.CareRequestID,
			}).Error("Failed to link offer to care request")
		}
	}

	logger.Log.WithField("offer_id", offer.ID).Info("Offer created")

	response := offer.ToResponse()
	response.MatchScore = matchScore
	return &response, nil
}

// Send transitions a DRAFT offer to SENT. The subscription is re-checked
// because it can lapse between creation and sending.
func (s *Service) Send(ctx context.Context, offerID, providerID uuid.UUID) (*models.OfferResponse, error) {
	offer, err := s.findOffer(ctx, offerID)
	if err != nil {
		return nil, err
	}

	if err := s.checkSubscription(ctx, providerID); err != nil {
		return nil, err
	}

	if offer.ProviderID != providerID {
		return nil, apperr.Unauthorized("you don't have permission to send this offer")
	}
	if offer.Status != StatusDraft {
		return nil, apperr.Validation("only draft offers can be sent, current status: %s", offer.Status)
	}

	ok, err := s.store.Transition(ctx, offer, []string{StatusDraft}, StatusSent, &providerID, "Offer sent to patient")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.Conflict("offer state changed concurrently, please retry")
	}

	logger.Log.WithField("offer_id", offerID).Info("Offer sent")
	s.publishOfferEvent(ctx, "offer.sent", offer)

	response := offer.ToResponse()
	return &response, nil
}

// MarkViewed records that the patient opened a SENT offer.
func (s *Service) MarkViewed(ctx context.Context, offerID, patientID uuid.UUID) (*models.OfferResponse, error) {
	offer, err := s.findOffer(ctx, offerID)
	if err != nil {
		return nil, err
	}

	if offer.PatientID != patientID {
		return nil, apperr.Unauthorized("you don't have permission to view this offer")
	}
	if offer.Status != StatusSent {
		return nil, apperr.Validation("only sent offers can be marked viewed, current status: %s", offer.Status)
	}

	if _, err := s.store.Transition(ctx, offer, []string{StatusSent}, StatusViewed, &patientID, "Offer viewed by patient"); err != nil {
		return nil, err
	}

	response := offer.ToResponse()
	return &response, nil
}

func (s *Service) Accept(ctx context.Context, offerID, patientID uuid.UUID) (*models.OfferResponse, error) {
	return s.respond(ctx, offerID, patientID, StatusAccepted)
}

func (s *Service) Reject(ctx context.Context, offerID, patientID uuid.UUID) (*models.OfferResponse, error) {
	return s.respond(ctx, offerID, patientID, StatusRejected)
}

func (s *Service) respond(ctx context.Context, offerID, patientID uuid.UUID, decision string) (*models.OfferResponse, error) {
	offer, err := s.findOffer(ctx, offerID)
	if err != nil {
		return nil, err
	}

	if offer.PatientID != patientID {
		return nil, apperr.Unauthorized("you don't have permission to respond to this offer")
	}
	if !offer.CanBeAccepted() {
		return nil, apperr.Validation("offer cannot be responded to in current status: %s", offer.Status)
	}

	// Expiry discovered at response time is authoritative even if the sweep
	// has not run yet.
	if offer.IsExpired(time.Now().UTC()) {
		if _, err := s.store.Transition(ctx, offer, []string{StatusSent, StatusViewed}, StatusExpired, nil, "Offer expired"); err != nil {
			logger.Log.WithError(err).WithField("offer_id", offerID).Error("Failed to mark expired offer")
		}
		return nil, apperr.Expired("offer has expired, ask the provider for a new one")
	}

	var eventType, notes string
	if decision == StatusAccepted {
		eventType, notes = "offer.accepted", "Offer accepted by patient"
	} else {
		eventType, notes = "offer.rejected", "Offer rejected by patient"
	}

	ok, err := s.store.Transition(ctx, offer, []string{StatusSent, StatusViewed}, decision, &patientID, notes)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.Conflict("offer state changed concurrently, please retry")
	}

	logger.Log.WithFields(map[string]interface{}{
		"offer_id": offerID,
		"status":   decision,
	}).Info("Offer responded to")
	s.publishOfferEvent(ctx, eventType, offer)

	response := offer.ToResponse()
	return &response, nil
}

func (s *Service) Get(ctx context.Context, offerID uuid.UUID) (*models.OfferResponse, error) {
	offer, err := s.findOffer(ctx, offerID)
	if err != nil {
		return nil, err
	}
	response := offer.ToResponse()
	return &response, nil
}

func (s *Service) ListForPatient(ctx context.Context, patientID uuid.UUID, page, size int) ([]models.OfferResponse, error) {
	page, size = normalizePage(page, size)
	offers, err := s.store.ListByPatient(ctx, patientID, page*size, size)
	if err != nil {
		return nil, err
	}
	return toResponses(offers), nil
}

func (s *Service) ListForProvider(ctx context.Context, providerID uuid.UUID, page, size int) ([]models.OfferResponse, error) {
	page, size = normalizePage(page, size)
	offers, err := s.store.ListByProvider(ctx, providerID, page*size, size)
	if err != nil {
		return nil, err
	}
	return toResponses(offers), nil
}

func (s *Service) History(ctx context.Context, offerID uuid.UUID) ([]models.OfferHistoryResponse, error) {
	history, err := s.store.ListHistory(ctx, offerID)
	if err != nil {
		return nil, err
	}

	responses := make([]models.OfferHistoryResponse, 0, len(history))
	for i := range history {
		responses = append(responses, history[i].ToResponse())
	}
	return responses, nil
}

// ExpireOverdue sweeps SENT offers past their expiry into EXPIRED. Safe to
// run concurrently with accept/reject: the optimistic transition guard lets
// whichever path commits first win.
func (s *Service) ExpireOverdue(ctx context.Context) (int, error) {
	overdue, err := s.store.ListExpired(ctx, time.Now().UTC())
	if err != nil {
		return 0, err
	}

	expired := 0
	for i := range overdue {
		offer := &overdue[i]
		ok, err := s.store.Transition(ctx, offer, []string{StatusSent}, StatusExpired, nil, "Offer expired automatically")
		if err != nil {
			logger.Log.WithError(err).WithField("offer_id", offer.ID).Error("Failed to expire offer, continuing sweep")
			continue
		}
		if ok {
			expired++
			metrics.AddOffersExpired(1)
			logger.Log.WithField("offer_id", offer.ID).Info("Offer expired")
		}
	}

	logger.Log.WithField("count", expired).Info("Offer expiration sweep complete")
	return expired, nil
}

func (s *Service) findOffer(ctx context.Context, offerID uuid.UUID) (*Offer, error) {
	offer, err := s.store.FindByID(ctx, offerID)
	if err != nil {
		if errors.Is(err, ErrOfferNotFound) {
			return nil, apperr.NotFound("offer %s not found", offerID)
		}
		return nil, err
	}
	return offer, nil
}

// checkSubscription gates offer creation and sending on billing status.
// An unreachable billing service fails OPEN with a warning: negotiation
// availability outranks strict billing enforcement. An explicit inactive
// subscription fails closed.
func (s *Service) checkSubscription(ctx context.Context, providerID uuid.UUID) error {
	status, err := s.billing.GetSubscriptionStatus(ctx, providerID)
	if err != nil {
		logger.Log.WithError(err).WithField("provider_id", providerID).Warn("Could not verify subscription, allowing operation")
		return nil
	}
	if !status.IsActive {
		return apperr.Validation("an active subscription is required to create or send offers, please subscribe or renew your plan")
	}
	return nil
}

func (s *Service) publishOfferEvent(ctx context.Context, eventType string, offer *Offer) {
	data := map[string]interface{}{
		"offerId":    offer.ID.String(),
		"patientId":  offer.PatientID.String(),
		"providerId": offer.ProviderID.String(),
		"timestamp":  time.Now().Format(time.RFC3339),
	}
	if err := s.producer.PublishEvent(ctx, eventType, eventSource, data); err != nil {
		logger.Log.WithError(err).WithFields(map[string]interface{}{
			"offer_id":   offer.ID,
			"event_type": eventType,
		}).Error("Failed to publish offer event")
		return
	}
	metrics.AddOfferEvents(1)
}

func toResponses(offers []Offer) []models.OfferResponse {
	responses := make([]models.OfferResponse, 0, len(offers))
	for i := range offers {
		responses = append(responses, offers[i].ToResponse())
	}
	return responses
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
