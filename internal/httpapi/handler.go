package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"waitline/internal/models"
	"waitline/internal/store"

	"github.com/google/uuid"
)

// QueueService is the booking side of the API, implemented by
// queue.Manager.
type QueueService interface {
	BookSlot(ctx context.Context, userID, centerID, counterID string) (models.User, error)
	RecalculateWaitTime(ctx context.Context, userID, counterID string) (models.User, error)
	CompleteService(ctx context.Context, centerID, counterID string) (models.User, bool, error)
}

type Handler struct {
	store store.Store
	queue QueueService
}

type createCenterRequest struct {
	Name             string `json:"name"`
	NumberOfCounters int    `json:"number_of_counters"`
}

type createUserRequest struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

type bookSlotRequest struct {
	UserID    string `json:"user_id"`
	CenterID  string `json:"center_id"`
	CounterID string `json:"counter_id"`
}

type recalculateRequest struct {
	UserID    string `json:"user_id"`
	CounterID string `json:"counter_id"`
}

type completeServiceRequest struct {
	CenterID  string `json:"center_id"`
	CounterID string `json:"counter_id"`
}

type completeServiceResponse struct {
	UserFound bool         `json:"user_found"`
	User      *models.User `json:"user,omitempty"`
}

type errorResponse struct {
	Error responseError `json:"error"`
}

type responseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type phoneExistsResponse struct {
	Error responseError `json:"error"`
	User  models.User   `json:"user"`
}

func NewHandler(st store.Store, queue QueueService) *Handler {
	return &Handler{store: st, queue: queue}
}

func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", h.handleHealth)
	mux.HandleFunc("/api/centers", h.handleCenters)
	mux.HandleFunc("/api/centers/", h.handleCenterByID)
	mux.HandleFunc("/api/users", h.handleUsers)
	mux.HandleFunc("/api/users/find", h.handleFindUser)
	mux.HandleFunc("/api/users/", h.handleUserSlots)
	mux.HandleFunc("/api/slots/book", h.handleBookSlot)
	mux.HandleFunc("/api/slots/recalculate", h.handleRecalculate)
	mux.HandleFunc("/api/service/complete", h.handleCompleteService)
	return mux
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) handleCenters(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.handleCreateCenter(w, r)
	case http.MethodGet:
		centers, err := h.store.ListCenters(r.Context())
		if err != nil {
			status, code, msg := mapError(err)
			writeError(w, status, code, msg)
			return
		}
		if centers == nil {
			centers = []models.Center{}
		}
		writeJSON(w, http.StatusOK, centers)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleCreateCenter(w http.ResponseWriter, r *http.Request) {
	var req createCenterRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "name is required")
		return
	}
	if req.NumberOfCounters < 1 {
		writeError(w, http.StatusBadRequest, "invalid_request", "number_of_counters must be at least 1")
		return
	}

	center, err := h.store.CreateCenter(r.Context(), store.CreateCenterInput{
		Name:             req.Name,
		NumberOfCounters: req.NumberOfCounters,
	})
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}

	writeJSON(w, http.StatusCreated, center)
}

func (h *Handler) handleCenterByID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/centers/")
	parts := strings.Split(strings.Trim(path, "/"), "/")

	switch {
	case len(parts) == 1 && parts[0] != "":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleGetCenter(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "counters":
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleAddCounter(w, r, parts[0])
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleGetCenter(w http.ResponseWriter, r *http.Request, centerID string) {
	if !isValidUUID(centerID) {
		writeError(w, http.StatusBadRequest, "invalid_request", "center id must be a UUID")
		return
	}
	center, err := h.store.GetCenter(r.Context(), centerID)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, center)
}

func (h *Handler) handleAddCounter(w http.ResponseWriter, r *http.Request, centerID string) {
	if !isValidUUID(centerID) {
		writeError(w, http.StatusBadRequest, "invalid_request", "center id must be a UUID")
		return
	}
	center, err := h.store.AddCounter(r.Context(), centerID, time.Now().UTC())
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}
	writeJSON(w, http.StatusCreated, center)
}

func (h *Handler) handleUsers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.handleCreateUser(w, r)
	case http.MethodGet:
		users, err := h.store.ListUsers(r.Context())
		if err != nil {
			status, code, msg := mapError(err)
			writeError(w, status, code, msg)
			return
		}
		if users == nil {
			users = []models.User{}
		}
		writeJSON(w, http.StatusOK, users)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Phone = strings.TrimSpace(req.Phone)
	if req.Name == "" || req.Phone == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "name and phone are required")
		return
	}
	if !isValidPhone(req.Phone) {
		writeError(w, http.StatusBadRequest, "invalid_request", "phone must be 8-16 digits")
		return
	}

	user, created, err := h.store.CreateUser(r.Context(), store.CreateUserInput{
		Name:  req.Name,
		Phone: req.Phone,
	})
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}
	if !created {
		writeJSON(w, http.StatusConflict, phoneExistsResponse{
			Error: responseError{
				Code:    "phone_exists",
				Message: "phone already registered",
			},
			User: user,
		})
		return
	}

	writeJSON(w, http.StatusCreated, user)
}

func (h *Handler) handleFindUser(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	phone := strings.TrimSpace(r.URL.Query().Get("phone"))
	name := strings.TrimSpace(r.URL.Query().Get("name"))
	if (phone == "") == (name == "") {
		writeError(w, http.StatusBadRequest, "invalid_request", "exactly one of phone or name is required")
		return
	}

	if phone != "" {
		user, err := h.store.FindUserByPhone(r.Context(), phone)
		if err != nil {
			status, code, msg := mapError(err)
			writeError(w, status, code, msg)
			return
		}
		writeJSON(w, http.StatusOK, user)
		return
	}

	users, err := h.store.FindUsersByName(r.Context(), name)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}
	if users == nil {
		users = []models.User{}
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *Handler) handleUserSlots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/users/")
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != 2 || parts[1] != "slots" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	userID := parts[0]
	if !isValidUUID(userID) {
		writeError(w, http.StatusBadRequest, "invalid_request", "user id must be a UUID")
		return
	}

	slots, err := h.store.ListSlots(r.Context(), userID)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}
	if slots == nil {
		slots = []models.Slot{}
	}
	writeJSON(w, http.StatusOK, slots)
}

func (h *Handler) handleBookSlot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req bookSlotRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}

	req.UserID = strings.TrimSpace(req.UserID)
	req.CenterID = strings.TrimSpace(req.CenterID)
	req.CounterID = strings.TrimSpace(req.CounterID)
	if req.UserID == "" || req.CenterID == "" || req.CounterID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "user_id, center_id, and counter_id are required")
		return
	}
	if !isValidUUID(req.UserID) || !isValidUUID(req.CenterID) {
		writeError(w, http.StatusBadRequest, "invalid_request", "user_id and center_id must be UUIDs")
		return
	}

	user, err := h.queue.BookSlot(r.Context(), req.UserID, req.CenterID, req.CounterID)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

func (h *Handler) handleRecalculate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req recalculateRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}

	req.UserID = strings.TrimSpace(req.UserID)
	req.CounterID = strings.TrimSpace(req.CounterID)
	if req.UserID == "" || req.CounterID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "user_id and counter_id are required")
		return
	}
	if !isValidUUID(req.UserID) {
		writeError(w, http.StatusBadRequest, "invalid_request", "user_id must be a UUID")
		return
	}

	user, err := h.queue.RecalculateWaitTime(r.Context(), req.UserID, req.CounterID)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

func (h *Handler) handleCompleteService(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req completeServiceRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}

	req.CenterID = strings.TrimSpace(req.CenterID)
	req.CounterID = strings.TrimSpace(req.CounterID)
	if req.CenterID == "" || req.CounterID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "center_id and counter_id are required")
		return
	}
	if !isValidUUID(req.CenterID) {
		writeError(w, http.StatusBadRequest, "invalid_request", "center_id must be a UUID")
		return
	}

	user, found, err := h.queue.CompleteService(r.Context(), req.CenterID, req.CounterID)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}

	resp := completeServiceResponse{UserFound: found}
	if found {
		resp.User = &user
	}
	writeJSON(w, http.StatusOK, resp)
}

func isValidUUID(value string) bool {
	_, err := uuid.Parse(value)
	return err == nil
}

func isValidPhone(value string) bool {
	if len(value) < 8 || len(value) > 16 {
		return false
	}
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func mapError(err error) (int, string, string) {
	switch {
	case errors.Is(err, store.ErrCenterNotFound):
		return http.StatusNotFound, "center_not_found", "center not found"
	case errors.Is(err, store.ErrCounterNotFound):
		return http.StatusNotFound, "counter_not_found", "counter not found"
	case errors.Is(err, store.ErrUserNotFound):
		return http.StatusNotFound, "user_not_found", "user not found"
	case errors.Is(err, store.ErrSlotNotFound):
		return http.StatusNotFound, "slot_not_found", "no waiting slot for this counter"
	case errors.Is(err, store.ErrPhoneExists):
		return http.StatusConflict, "phone_exists", "phone already registered"
	case errors.Is(err, store.ErrAlreadyQueued):
		return http.StatusConflict, "already_queued", "user is already in this counter's queue"
	case errors.Is(err, store.ErrEmptyQueue):
		return http.StatusConflict, "queue_empty", "queue is empty"
	default:
		return http.StatusInternalServerError, "internal_error", "internal server error"
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{
		Error: responseError{
			Code:    code,
			Message: message,
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}
