package carerequests

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/matchcare/platform/pkg/common/apperr"
	"github.com/matchcare/platform/pkg/common/logger"
	"github.com/matchcare/platform/pkg/common/models"
)

func TestMain(m *testing.M) {
	logger.Init()
	os.Exit(m.Run())
}

type fakeRequestStore struct {
	requests  map[uuid.UUID]*CareRequest
	createErr error
}

func newFakeRequestStore() *fakeRequestStore {
	return &fakeRequestStore{requests: make(map[uuid.UUID]*CareRequest)}
}

func (f *fakeRequestStore) Create(ctx context.Context, request *CareRequest) error {
	if f.createErr != nil {
		return f.createErr
	}
	if request.ID == uuid.Nil {
		request.ID = uuid.New()
	}
	request.CreatedAt = time.Now().UTC()
	copied := *request
	f.requests[request.ID] = &copied
	return nil
}

func (f *fakeRequestStore) FindByID(ctx context.Context, requestID uuid.UUID) (*CareRequest, error) {
	if request, ok := f.requests[requestID]; ok {
		copied := *request
		return &copied, nil
	}
	return nil, ErrRequestNotFound
}

func (f *fakeRequestStore) FindPendingByPair(ctx context.Context, patientID, providerID uuid.UUID) (*CareRequest, error) {
	for _, request := range f.requests {
		if request.PatientID == patientID && request.ProviderID == providerID && request.Status == StatusPending {
			copied := *request
			return &copied, nil
		}
	}
	return nil, ErrRequestNotFound
}

func (f *fakeRequestStore) ListByPatient(ctx context.Context, patientID uuid.UUID, status string, offset, limit int) ([]CareRequest, error) {
	var out []CareRequest
	for _, request := range f.requests {
		if request.PatientID == patientID && (status == "" || request.Status == status) {
			out = append(out, *request)
		}
	}
	return out, nil
}

func (f *fakeRequestStore) ListByProvider(ctx context.Context, providerID uuid.UUID, status string, offset, limit int) ([]CareRequest, error) {
	var out []CareRequest
	for _, request := range f.requests {
		if request.ProviderID == providerID && (status == "" || request.Status == status) {
			out = append(out, *request)
		}
	}
	return out, nil
}

func (f *fakeRequestStore) Decline(ctx context.Context, requestID uuid.UUID, reason string) (bool, error) {
	request, ok := f.requests[requestID]
	if !ok || request.Status != StatusPending {
		return false, nil
	}
	now := time.Now().UTC()
	request.Status = StatusDeclined
	request.DeclineReason = reason
	request.RespondedAt = &now
	return true, nil
}

func (f *fakeRequestStore) LinkOffer(ctx context.Context, requestID, offerID uuid.UUID) (bool, error) {
	request, ok := f.requests[requestID]
	if !ok || request.Status != StatusPending {
		return false, nil
	}
	now := time.Now().UTC()
	request.Status = StatusAccepted
	request.LinkedOfferID = &offerID
	request.RespondedAt = &now
	return true, nil
}

type fakeProviders struct {
	providers map[uuid.UUID]*models.ProviderProfile
}

func (f *fakeProviders) GetProvider(ctx context.Context, providerID uuid.UUID) (*models.ProviderProfile, error) {
	if provider, ok := f.providers[providerID]; ok {
		return provider, nil
	}
	return nil, apperr.NotFound("provider not found")
}

type fakeRequestPublisher struct {
	events []string
	data   []map[string]interface{}
}

func (f *fakeRequestPublisher) PublishEvent(ctx context.Context, eventType string, source string, data map[string]interface{}) error {
	f.events = append(f.events, eventType)
	f.data = append(f.data, data)
	return nil
}

func newTestService(store *fakeRequestStore) (*Service, *fakeRequestPublisher, *fakeProviders) {
	publisher := &fakeRequestPublisher{}
	providers := &fakeProviders{providers: make(map[uuid.UUID]*models.ProviderProfile)}
	return NewService(store, providers, publisher), publisher, providers
}

func TestSubmitCreatesPendingRequest(t *testing.T) {
	store := newFakeRequestStore()
	svc, publisher, _ := newTestService(store)

	patientID := uuid.New()
	providerID := uuid.New()

	response, err := svc.Submit(context.Background(), patientID, models.CreateCareRequestRequest{
		ProviderID:     providerID,
		PatientMessage: "Looking for dementia care",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if response.Status != StatusPending {
		t.Fatalf("expected PENDING, got %s", response.Status)
	}
	if len(publisher.events) != 1 || publisher.events[0] != "care-request.submitted" {
		t.Fatalf("expected care-request.submitted event, got %v", publisher.events)
	}
}

func TestSubmitDuplicatePendingRejected(t *testing.T) {
	store := newFakeRequestStore()
	svc, _, _ := newTestService(store)

	patientID := uuid.New()
	providerID := uuid.New()
	req := models.CreateCareRequestRequest{ProviderID: providerID}

	if _, err := svc.Submit(context.Background(), patientID, req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err := svc.Submit(context.Background(), patientID, req)
	if !apperr.IsKind(err, apperr.KindConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if len(store.requests) != 1 {
		t.Fatalf("expected a single request, got %d", len(store.requests))
	}
}

func TestSubmitConcurrentDuplicateMapsToConflict(t *testing.T) {
	store := newFakeRequestStore()
	store.createErr = ErrDuplicatePending
	svc, _, _ := newTestService(store)

	// Simulates losing the insert race: the pre-insert check saw no pending
	// request but the unique pending index rejected the write.
	_, err := svc.Submit(context.Background(), uuid.New(), models.CreateCareRequestRequest{ProviderID: uuid.New()})
	if !apperr.IsKind(err, apperr.KindConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestSubmitAllowedAfterDecline(t *testing.T) {
	store := newFakeRequestStore()
	svc, _, _ := newTestService(store)

	patientID := uuid.New()
	providerID := uuid.New()
	req := models.CreateCareRequestRequest{ProviderID: providerID}

	first, err := svc.Submit(context.Background(), patientID, req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.Decline(context.Background(), first.ID, providerID, "no capacity"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// A declined request does not block a fresh attempt.
	if _, err := svc.Submit(context.Background(), patientID, req); err != nil {
		t.Fatalf("expected resubmission after decline, got %v", err)
	}
	if len(store.requests) != 2 {
		t.Fatalf("expected two requests, got %d", len(store.requests))
	}
}

func TestDeclineRequest(t *testing.T) {
	store := newFakeRequestStore()
	svc, publisher, providers := newTestService(store)

	patientID := uuid.New()
	providerID := uuid.New()
	providers.providers[providerID] = &models.ProviderProfile{ID: providerID, FacilityName: "Sunrise Care Home"}

	submitted, err := svc.Submit(context.Background(), patientID, models.CreateCareRequestRequest{ProviderID: providerID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	response, err := svc.Decline(context.Background(), submitted.ID, providerID, "no capacity")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if response.Status != StatusDeclined {
		t.Fatalf("expected DECLINED, got %s", response.Status)
	}
	if response.DeclineReason != "no capacity" {
		t.Fatalf("unexpected reason: %q", response.DeclineReason)
	}
	if response.RespondedAt == nil {
		t.Fatal("expected respondedAt to be set")
	}

	if len(publisher.events) != 2 || publisher.events[1] != "care-request.declined" {
		t.Fatalf("expected care-request.declined event, got %v", publisher.events)
	}
	if publisher.data[1]["providerName"] != "Sunrise Care Home" {
		t.Fatalf("expected provider name in event, got %v", publisher.data[1]["providerName"])
	}
}

func TestDeclineUsesFallbackProviderName(t *testing.T) {
	store := newFakeRequestStore()
	svc, publisher, _ := newTestService(store)

	patientID := uuid.New()
	providerID := uuid.New()

	submitted, err := svc.Submit(context.Background(), patientID, models.CreateCareRequestRequest{ProviderID: providerID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.Decline(context.Background(), submitted.ID, providerID, "no beds"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if publisher.data[1]["providerName"] != fallbackProviderName {
		t.Fatalf("expected fallback provider name, got %v", publisher.data[1]["providerName"])
	}
}

func TestDeclineWrongProvider(t *testing.T) {
	store := newFakeRequestStore()
	svc, _, _ := newTestService(store)

	submitted, err := svc.Submit(context.Background(), uuid.New(), models.CreateCareRequestRequest{ProviderID: uuid.New()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = svc.Decline(context.Background(), submitted.ID, uuid.New(), "spam")
	if !apperr.IsKind(err, apperr.KindUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestDeclineNonPending(t *testing.T) {
	store := newFakeRequestStore()
	svc, _, _ := newTestService(store)

	providerID := uuid.New()
	submitted, err := svc.Submit(context.Background(), uuid.New(), models.CreateCareRequestRequest{ProviderID: providerID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.Decline(context.Background(), submitted.ID, providerID, "no capacity"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = svc.Decline(context.Background(), submitted.ID, providerID, "again")
	if !apperr.IsKind(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestDeclineUnknownRequest(t *testing.T) {
	store := newFakeRequestStore()
	svc, _, _ := newTestService(store)

	_, err := svc.Decline(context.Background(), uuid.New(), uuid.New(), "n/a")
	if !apperr.IsKind(err, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestLinkOfferAcceptsRequest(t *testing.T) {
	store := newFakeRequestStore()
	svc, _, _ := newTestService(store)

	providerID := uuid.New()
	submitted, err := svc.Submit(context.Background(), uuid.New(), models.CreateCareRequestRequest{ProviderID: providerID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	offerID := uuid.New()
	if err := svc.LinkOffer(context.Background(), submitted.ID, offerID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	linked := store.requests[submitted.ID]
	if linked.Status != StatusAccepted {
		t.Fatalf("expected ACCEPTED, got %s", linked.Status)
	}
	if linked.LinkedOfferID == nil || *linked.LinkedOfferID != offerID {
		t.Fatalf("expected linked offer id %s", offerID)
	}
}

func TestLinkOfferUnknownRequestIsNoOp(t *testing.T) {
	store := newFakeRequestStore()
	svc, _, _ := newTestService(store)

	if err := svc.LinkOffer(context.Background(), uuid.New(), uuid.New()); err != nil {
		t.Fatalf("stale request id must not fail offer creation, got %v", err)
	}
}

func TestLinkOfferAlreadyRespondedIsNoOp(t *testing.T) {
	store := newFakeRequestStore()
	svc, _, _ := newTestService(store)

	providerID := uuid.New()
	submitted, err := svc.Submit(context.Background(), uuid.New(), models.CreateCareRequestRequest{ProviderID: providerID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.Decline(context.Background(), submitted.ID, providerID, "no capacity"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := svc.LinkOffer(context.Background(), submitted.ID, uuid.New()); err != nil {
		t.Fatalf("expected no-op on responded request, got %v", err)
	}
	if store.requests[submitted.ID].Status != StatusDeclined {
		t.Fatalf("declined request must stay DECLINED, got %s", store.requests[submitted.ID].Status)
	}
}

func TestListForPatientFiltersStatus(t *testing.T) {
	store := newFakeRequestStore()
	svc, _, providers := newTestService(store)

	patientID := uuid.New()
	providerID := uuid.New()
	providers.providers[providerID] = &models.ProviderProfile{ID: providerID, FacilityName: "Sunrise Care Home", ProviderType: "NURSING_HOME"}

	first, err := svc.Submit(context.Background(), patientID, models.CreateCareRequestRequest{ProviderID: providerID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.Decline(context.Background(), first.ID, providerID, "full"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.Submit(context.Background(), patientID, models.CreateCareRequestRequest{ProviderID: providerID}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	pending, err := svc.ListForPatient(context.Background(), patientID, "pending", 0, 20)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending request, got %d", len(pending))
	}
	if pending[0].ProviderName != "Sunrise Care Home" {
		t.Fatalf("expected provider enrichment, got %q", pending[0].ProviderName)
	}

	all, err := svc.ListForPatient(context.Background(), patientID, "", 0, 20)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(all))
	}
}

func TestListInvalidStatus(t *testing.T) {
	store := newFakeRequestStore()
	svc, _, _ := newTestService(store)

	_, err := svc.ListForPatient(context.Background(), uuid.New(), "bogus", 0, 20)
	if !apperr.IsKind(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
