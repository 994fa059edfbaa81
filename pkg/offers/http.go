package offers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/matchcare/platform/pkg/common/apperr"
	"github.com/matchcare/platform/pkg/common/logger"
	"github.com/matchcare/platform/pkg/common/models"
)

const actorHeader = "X-Profile-Id"

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/offers", h.handleCreate).Methods(http.MethodPost)
	r.HandleFunc("/offers/patient/{patientId}", h.handleListForPatient).Methods(http.MethodGet)
	r.HandleFunc("/offers/provider/{providerId}", h.handleListForProvider).Methods(http.MethodGet)
	r.HandleFunc("/offers/{offerId}", h.handleGet).Methods(http.MethodGet)
	r.HandleFunc("/offers/{offerId}/history", h.handleHistory).Methods(http.MethodGet)
	r.HandleFunc("/offers/{offerId}/send", h.handleSend).Methods(http.MethodPut)
	r.HandleFunc("/offers/{offerId}/view", h.handleView).Methods(http.MethodPut)
	r.HandleFunc("/offers/{offerId}/accept", h.handleAccept).Methods(http.MethodPut)
	r.HandleFunc("/offers/{offerId}/reject", h.handleReject).Methods(http.MethodPut)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	providerID, ok := resolveActor(w, r)
	if !ok {
		return
	}

	var req models.CreateOfferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	if req.PatientID == uuid.Nil {
		http.Error(w, "patientId is required", http.StatusBadRequest)
		return
	}

	offer, err := h.service.Create(r.Context(), providerID, req)
	if err != nil {
		writeError(w, err, "failed to create offer")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"offer": offer})
}

func (h *Handler) handleSend(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Send)
}

func (h *Handler) handleView(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.MarkViewed)
}

func (h *Handler) handleAccept(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Accept)
}

func (h *Handler) handleReject(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Reject)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, offerID, actorID uuid.UUID) (*models.OfferResponse, error)) {
	offerID, err := uuid.Parse(mux.Vars(r)["offerId"])
	if err != nil {
		http.Error(w, "invalid offer id", http.StatusBadRequest)
		return
	}
	actorID, ok := resolveActor(w, r)
	if !ok {
		return
	}

	offer, err := fn(r.Context(), offerID, actorID)
	if err != nil {
		writeError(w, err, "failed to update offer")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"offer": offer})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	offerID, err := uuid.Parse(mux.Vars(r)["offerId"])
	if err != nil {
		http.Error(w, "invalid offer id", http.StatusBadRequest)
		return
	}

	offer, err := h.service.Get(r.Context(), offerID)
	if err != nil {
		writeError(w, err, "failed to get offer")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"offer": offer})
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	offerID, err := uuid.Parse(mux.Vars(r)["offerId"])
	if err != nil {
		http.Error(w, "invalid offer id", http.StatusBadRequest)
		return
	}

	history, err := h.service.History(r.Context(), offerID)
	if err != nil {
		writeError(w, err, "failed to get offer history")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": history})
}

func (h *Handler) handleListForPatient(w http.ResponseWriter, r *http.Request) {
	patientID, err := uuid.Parse(mux.Vars(r)["patientId"])
	if err != nil {
		http.Error(w, "invalid patient id", http.StatusBadRequest)
		return
	}

	page, size := parsePaging(r)
	offers, err := h.service.ListForPatient(r.Context(), patientID, page, size)
	if err != nil {
		writeError(w, err, "failed to list offers")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": offers})
}

func (h *Handler) handleListForProvider(w http.ResponseWriter, r *http.Request) {
	providerID, err := uuid.Parse(mux.Vars(r)["providerId"])
	if err != nil {
		http.Error(w, "invalid provider id", http.StatusBadRequest)
		return
	}

	page, size := parsePaging(r)
	offers, err := h.service.ListForProvider(r.Context(), providerID, page, size)
	if err != nil {
		writeError(w, err, "failed to list offers")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": offers})
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
