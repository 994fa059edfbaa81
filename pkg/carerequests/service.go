package carerequests

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/matchcare/platform/pkg/common/apperr"
	"github.com/matchcare/platform/pkg/common/logger"
	"github.com/matchcare/platform/pkg/common/models"
	"github.com/matchcare/platform/pkg/observability/metrics"
)

const eventSource = "match-service"

// fallbackProviderName is used in decline notifications when the profile
// lookup fails; notification must never block on the profile service.
const fallbackProviderName = "Your provider"

type RequestStore interface {
	Create(ctx context.Context, request *CareRequest) error
	FindByID(ctx context.Context, requestID uuid.UUID) (*CareRequest, error)
	FindPendingByPair(ctx context.Context, patientID, providerID uuid.UUID) (*CareRequest, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, status string, offset, limit int) ([]CareRequest, error)
	ListByProvider(ctx context.Context, providerID uuid.UUID, status string, offset, limit int) ([]CareRequest, error)
	Decline(ctx context.Context, requestID uuid.UUID, reason string) (bool, error)
	LinkOffer(ctx context.Context, requestID, offerID uuid.UUID) (bool, error)
}

type ProviderDirectory interface {
	GetProvider(ctx context.Context, providerID uuid.UUID) (*models.ProviderProfile, error)
}

type EventPublisher interface {
	PublishEvent(ctx context.Context, eventType string, source string, data map[string]interface{}) error
}

type Service struct {
	store    RequestStore
	profiles ProviderDirectory
	producer EventPublisher
}

func NewService(store RequestStore, profiles ProviderDirectory, producer EventPublisher) *Service {
	return &Service{store: store, profiles: profiles, producer: producer}
}

// Submit creates a PENDING request unless the patient already has one open
// toward the same provider. Event publication is best effort; the stored
// request is the source of truth.
func (s *Service) Submit(ctx context.Context, patientID uuid.UUID, req models.CreateCareRequestRequest) (*models.CareRequestResponse, error) {
	logger.Log.WithFields(map[string]interface{}{
		"patient_id":  patientID,
		"provider_id": req.ProviderID,
	}).Info("Care request submitted")

	if _, err := s.store.FindPendingByPair(ctx, patientID, req.ProviderID); err == nil {
		return nil, apperr.Conflict("you already have a pending request to this provider, please wait for their response before submitting again")
	} else if !errors.Is(err, ErrRequestNotFound) {
		return nil, err
	}

	request := &CareRequest{
		PatientID:      patientID,
		ProviderID:     req.ProviderID,
		Status:         StatusPending,
		PatientMessage: req.PatientMessage,
	}
	if err := s.store.Create(ctx, request); err != nil {
		if errors.Is(err, ErrDuplicatePending) {
			return nil, apperr.Conflict("you already have a pending request to this provider, please wait for their response before submitting again")
		}
		return nil, err
	}
	metrics.AddCareRequests(1)

	data := map[string]interface{}{
		"requestId":      request.ID.String(),
		"patientId":      patientID.String(),
		"providerId":     req.ProviderID.String(),
		"patientMessage": req.PatientMessage,
		"timestamp":      time.Now().Format(time.RFC3339),
	}
	if err := s.producer.PublishEvent(ctx, "care-request.submitted", eventSource, data); err != nil {
		logger.Log.WithError(err).WithField("request_id", request.ID).Error("Failed to publish care request submitted event")
	}

	response := request.ToResponse()
	return &response, nil
}

// Decline moves a PENDING request to DECLINED. Only the addressed provider
// may decline.
func (s *Service) Decline(ctx context.Context, requestID, providerID uuid.UUID, reason string) (*models.CareRequestResponse, error) {
	request, err := s.store.FindByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, ErrRequestNotFound) {
			return nil, apperr.NotFound("care request %s not found", requestID)
		}
		return nil, err
	}

	if request.ProviderID != providerID {
		return nil, apperr.Unauthorized("you are not authorized to decline this request")
	}
	if request.Status != StatusPending {
		return nil, apperr.Validation("only pending requests can be declined")
	}

	ok, err := s.store.Decline(ctx, requestID, reason)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.Conflict("care request was already responded to")
	}

	now := time.Now().UTC()
	request.Status = StatusDeclined
	request.DeclineReason = reason
	request.RespondedAt = &now

	data := map[string]interface{}{
		"requestId":     requestID.String(),
		"patientId":     request.PatientID.String(),
		"providerId":    providerID.String(),
		"providerName":  s.resolveProviderName(ctx, providerID),
		"declineReason": reason,
		"timestamp":     now.Format(time.RFC3339),
	}
	if err := s.producer.PublishEvent(ctx, "care-request.declined", eventSource, data); err != nil {
		logger.Log.WithError(err).WithField("request_id", requestID).Error("Failed to publish care request declined event")
	}

	response := request.ToResponse()
	return &response, nil
}

// LinkOffer is called by the offer lifecycle when a provider answers a
// request with an offer. Unknown request ids are a no-op so a stale id on an
// offer cannot fail its creation.
func (s *Service) LinkOffer(ctx context.Context, requestID, offerID uuid.UUID) error {
	if _, err := s.store.FindByID(ctx, requestID); err != nil {
		if errors.Is(err, ErrRequestNotFound) {
			logger.Log.WithField("request_id", requestID).Debug("Care request not found for offer link, skipping")
			return nil
		}
		return err
	}

	ok, err := s.store.LinkOffer(ctx, requestID, offerID)
	if err != nil {
		return err
	}
	if !ok {
		logger.Log.WithFields(map[string]interface{}{
			"request_id": requestID,
			"offer_id":   offerID,
		}).Debug("Care request already responded to, offer link skipped")
		return nil
	}

	logger.Log.WithFields(map[string]interface{}{
		"request_id": requestID,
		"offer_id":   offerID,
	}).Info("Care request linked to offer and marked accepted")
	return nil
}

func (s *Service) ListForPatient(ctx context.Context, patientID uuid.UUID, status string, page, size int) ([]models.CareRequestResponse, error) {
	status, err := normalizeStatus(status)
	if err != nil {
		return nil, err
	}
	page, size = normalizePage(page, size)

	requests, err := s.store.ListByPatient(ctx, patientID, status, page*size, size)
	if err != nil {
		return nil, err
	}

	responses := make([]models.CareRequestResponse, 0, len(requests))
	for i := range requests {
		response := requests[i].ToResponse()
		s.enrichWithProvider(ctx, &response)
		responses = append(responses, response)
	}
	return responses, nil
}

func (s *Service) ListForProvider(ctx context.Context, providerID uuid.UUID, status string, page, size int) ([]models.CareRequestResponse, error) {
	status, err := normalizeStatus(status)
	if err != nil {
		return nil, err
	}
	page, size = normalizePage(page, size)

	requests, err := s.store.ListByProvider(ctx, providerID, status, page*size, size)
	if err != nil {
		return nil, err
	}

	responses := make([]models.CareRequestResponse, 0, len(requests))
	for i := range requests {
		responses = append(responses, requests[i].ToResponse())
	}
	return responses, nil
}

func (s *Service) enrichWithProvider(ctx context.Context, response *models.CareRequestResponse) {
	provider, err := s.profiles.GetProvider(ctx, response.ProviderID)
	if err != nil {
		logger.Log.WithError(err).WithField("provider_id", response.ProviderID).Warn("Could not enrich care request with provider details")
		return
	}
	response.ProviderName = provider.FacilityName
	response.ProviderType = provider.ProviderType
	response.ProviderAddress = provider.Address
}

func (s *Service) resolveProviderName(ctx context.Context, providerID uuid.UUID) string {
	provider, err := s.profiles.GetProvider(ctx, providerID)
	if err != nil || provider.FacilityName == "" {
		return fallbackProviderName
	}
	return provider.FacilityName
}

func normalizeStatus(status string) (string, error) {
	if status == "" {
		return "", nil
	}
	status = strings.ToUpper(status)
	switch status {
	case StatusPending, StatusAccepted, StatusDeclined:
		return status, nil
	default:
		return "", apperr.Validation("unknown care request status %q", status)
	}
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
