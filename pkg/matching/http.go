package matching

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

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/matches/calculate", h.handleCalculate).Methods(http.MethodPost)
	r.HandleFunc("/matches/patient/{patientId}", h.handleListForPatient).Methods(http.MethodGet)
	r.HandleFunc("/matches/patient/{patientId}/top", h.handleTopForPatient).Methods(http.MethodGet)
	r.HandleFunc("/matches/patient/{patientId}/provider/{providerId}", h.handleGetMatch).Methods(http.MethodGet)
	r.HandleFunc("/matches/provider/{providerId}", h.handleListForProvider).Methods(http.MethodGet)
	r.HandleFunc("/matches/recalculate/patient/{patientId}", h.handleRecalculatePatient).Methods(http.MethodPost)
	r.HandleFunc("/matches/recalculate/provider/{providerId}", h.handleRecalculateProvider).Methods(http.MethodPost)
}

func (h *Handler) handleCalculate(w http.ResponseWriter, r *http.Request) {
	var req models.CalculateMatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	if req.PatientID == uuid.Nil || req.ProviderID == uuid.Nil {
		http.Error(w, "patientId and providerId are required", http.StatusBadRequest)
		return
	}

	match, err := h.service.CalculateMatch(r.Context(), req.PatientID, req.ProviderID)
	if err != nil {
		writeError(w, err, "failed to calculate match")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"match": match})
}

func (h *Handler) handleGetMatch(w http.ResponseWriter, r *http.Request) {
	patientID, err := uuid.Parse(mux.Vars(r)["patientId"])
	if err != nil {
		http.Error(w, "invalid patient id", http.StatusBadRequest)
		return
	}
	providerID, err := uuid.Parse(mux.Vars(r)["providerId"])
	if err != nil {
		http.Error(w, "invalid provider id", http.StatusBadRequest)
		return
	}

	match, err := h.service.GetMatch(r.Context(), patientID, providerID)
	if err != nil {
		writeError(w, err, "failed to get match")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"match": match})
}

func (h *Handler) handleListForPatient(w http.ResponseWriter, r *http.Request) {
	patientID, err := uuid.Parse(mux.Vars(r)["patientId"])
	if err != nil {
		http.Error(w, "invalid patient id", http.StatusBadRequest)
		return
	}

	page, size := parsePaging(r)
	matches, err := h.service.GetMatchesForPatient(r.Context(), patientID, page, size)
	if err != nil {
		writeError(w, err, "failed to list matches")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": matches})
}

func (h *Handler) handleListForProvider(w http.ResponseWriter, r *http.Request) {
	providerID, err := uuid.Parse(mux.Vars(r)["providerId"])
	if err != nil {
		http.Error(w, "invalid provider id", http.StatusBadRequest)
		return
	}

	page, size := parsePaging(r)
	matches, err := h.service.GetMatchesForProvider(r.Context(), providerID, page, size)
	if err != nil {
		writeError(w, err, "failed to list matches")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": matches})
}

func (h *Handler) handleTopForPatient(w http.ResponseWriter, r *http.Request) {
	patientID, err := uuid.Parse(mux.Vars(r)["patientId"])
	if err != nil {
		http.Error(w, "invalid patient id", http.StatusBadRequest)
		return
	}

	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			limit = v
		}
	}

	matches, err := h.service.GetTopMatchesForPatient(r.Context(), patientID, limit)
	if err != nil {
		writeError(w, err, "failed to list top matches")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": matches})
}

func (h *Handler) handleRecalculatePatient(w http.ResponseWriter, r *http.Request) {
	patientID, err := uuid.Parse(mux.Vars(r)["patientId"])
	if err != nil {
		http.Error(w, "invalid patient id", http.StatusBadRequest)
		return
	}

	h.service.RecalculateForPatient(patientID)
	writeJSON(w, http.StatusAccepted, map[string]interface{}{"status": "recalculation started"})
}

func (h *Handler) handleRecalculateProvider(w http.ResponseWriter, r *http.Request) {
	providerID, err := uuid.Parse(mux.Vars(r)["providerId"])
	if err != nil {
		http.Error(w, "invalid provider id", http.StatusBadRequest)
		return
	}

	h.service.RecalculateForProvider(providerID)
	writeJSON(w, http.StatusAccepted, map[string]interface{}{"status": "recalculation started"})
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
