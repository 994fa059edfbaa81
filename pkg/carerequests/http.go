package carerequests

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/matchcare/platform/pkg/common/apperr"
	"github.com/matchcare/platform/pkg/common/logger"
	"github.com/matchcare/platform/pkg/common/models"
)

// actorHeader carries the authenticated profile id, injected by the API
// gateway after token validation.
const actorHeader = "X-Profile-Id"

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/care-requests", h.handleSubmit).Methods(http.MethodPost)
	r.HandleFunc("/care-requests/patient/{patientId}", h.handleListForPatient).Methods(http.MethodGet)
	r.HandleFunc("/care-requests/provider/{providerId}", h.handleListForProvider).Methods(http.MethodGet)
	r.HandleFunc("/care-requests/{requestId}/decline", h.handleDecline).Methods(http.MethodPut)
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	patientID, ok := resolveActor(w, r)
	if !ok {
		return
	}

	var req models.CreateCareRequestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	if req.ProviderID == uuid.Nil {
		http.Error(w, "providerId is required", http.StatusBadRequest)
		return
	}

	request, err := h.service.Submit(r.Context(), patientID, req)
	if err != nil {
		writeError(w, err, "failed to submit care request")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"careRequest": request})
}

func (h *Handler) handleDecline(w http.ResponseWriter, r *http.Request) {
	requestID, err := uuid.Parse(mux.Vars(r)["requestId"])
	if err != nil {
		http.Error(w, "invalid request id", http.StatusBadRequest)
		return
	}
	providerID, ok := resolveActor(w, r)
	if !ok {
		return
	}

	var req models.DeclineCareRequestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	request, err := h.service.Decline(r.Context(), requestID, providerID, req.DeclineReason)
	if err != nil {
		writeError(w, err, "failed to decline care request")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"careRequest": request})
}

func (h *Handler) handleListForPatient(w http.ResponseWriter, r *http.Request) {
	patientID, err := uuid.Parse(mux.Vars(r)["patientId"])
	if err != nil {
		http.Error(w, "invalid patient id", http.StatusBadRequest)
		return
	}

	page, size := parsePaging(r)
	requests, err := h.service.ListForPatient(r.Context(), patientID, r.URL.Query().Get("status"), page, size)
	if err != nil {
		writeError(w, err, "failed to list care requests")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": requests})
}

func (h *Handler) handleListForProvider(w http.ResponseWriter, r *http.Request) {
	providerID, err := uuid.Parse(mux.Vars(r)["providerId"])
	if err != nil {
		http.Error(w, "invalid provider id", http.StatusBadRequest)
		return
	}

	page, size := parsePaging(r)
	requests, err := h.service.ListForProvider(r.Context(), providerID, r.URL.Query().Get("status"), page, size)
	if err != nil {
		writeError(w, err, "failed to list care requests")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": requests})
}

func resolveActor(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	actor, err := uuid.Parse(r.Header.Get(actorHeader))
	if err != nil {
		http.Error(w, "missing or invalid "+actorHeader+" header", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return actor, true
}

func parsePaging(r *http.Request) (int, int) {
	page := 0
	size := 20
	if raw := r.URL.Query().Get("page"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v >= 0 {
			page = v
		}
	}
	if raw := r.URL.Query().Get("size"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			size = v
		}
	}
	return page, size
}

func writeError(w http.ResponseWriter, err error, fallback string) {
	status := apperr.HTTPStatus(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		logger.Log.WithError(err).Error(fallback)
		message = fallback
	}
	writeJSON(w, status, map[string]interface{}{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
