package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"passenger-service/internal/domain/entity"
	"passenger-service/internal/usecase"
	"passenger-service/pkg/logger"

	"github.com/go-chi/chi/v5"
)

// Error codes in response bodies
const (
	CodeInvalidRequest = "invalid_request"
	CodeNotFound       = "not_found"
	CodeConflict       = "conflict"
	CodeInternal       = "internal_error"
)

// LifecycleService is what the handler needs to change passengers
type LifecycleService interface {
	CheckIn(ctx context.Context, passengerID int64) (*entity.Passenger, error)
	Board(ctx context.Context, passengerID int64) (*entity.Passenger, error)
	Offload(ctx context.Context, passengerID int64) (*entity.Passenger, error)
	Create(ctx context.Context, in usecase.CreatePassengerInput) (*entity.Passenger, error)
}

// QueryService is what the handler needs to read passengers
type QueryService interface {
	ListByFlight(ctx context.Context, flightNumber string) ([]*entity.Passenger, error)
	ListByPNR(ctx context.Context, pnr string) ([]*entity.Passenger, error)
	Get(ctx context.Context, passengerID int64) (*entity.Passenger, error)
	History(ctx context.Context, passengerID int64, limit int) ([]*entity.JournalEntry, error)
}

// ErrorResponse is the body of every non-2xx response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type transitionRequest struct {
	PassengerID int64 `json:"passengerId"`
}

// PassengerHandler serves the /passengers routes
type PassengerHandler struct {
	lifecycle LifecycleService
	query     QueryService
	logger    logger.Logger
}

// NewPassengerHandler creates a new handler
func NewPassengerHandler(lifecycle LifecycleService, query QueryService, log logger.Logger) *PassengerHandler {
	return &PassengerHandler{
		lifecycle: lifecycle,
		query:     query,
		logger:    log,
	}
}

// Register mounts the passenger routes on r
func (h *PassengerHandler) Register(r chi.Router) {
	r.Route("/passengers", func(r chi.Router) {
		r.Post("/", h.create)
		r.Get("/flight/{flightNumber}", h.listByFlight)
		r.Get("/pnr/{pnr}", h.listByPNR)
		r.Post("/checkin", h.transition((LifecycleService).CheckIn))
		r.Post("/board", h.transition((LifecycleService).Board))
		r.Post("/offload", h.transition((LifecycleService).Offload))
		r.Get("/{id}", h.get)
		r.Get("/{id}/events", h.history)
	})
}

func (h *PassengerHandler) listByFlight(w http.ResponseWriter, r *http.Request) {
	passengers, err := h.query.ListByFlight(r.Context(), chi.URLParam(r, "flightNumber"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, passengers)
}

func (h *PassengerHandler) listByPNR(w http.ResponseWriter, r *http.Request) {
	passengers, err := h.query.ListByPNR(r.Context(), chi.URLParam(r, "pnr"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, passengers)
}

type transitionFunc func(LifecycleService, context.Context, int64) (*entity.Passenger, error)

func (h *PassengerHandler) transition(apply transitionFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req transitionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{
				Error:   CodeInvalidRequest,
				Message: "request body must be {\"passengerId\": <positive integer>}",
			})
			return
		}

		passenger, err := apply(h.lifecycle, r.Context(), req.PassengerID)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, passenger)
	}
}

func (h *PassengerHandler) create(w http.ResponseWriter, r *http.Request) {
	var in usecase.CreatePassengerInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   CodeInvalidRequest,
			Message: "malformed request body",
		})
		return
	}

	passenger, err := h.lifecycle.Create(r.Context(), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, passenger)
}

func (h *PassengerHandler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	passenger, err := h.query.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, passenger)
}

func (h *PassengerHandler) history(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{
				Error:   CodeInvalidRequest,
				Message: "limit must be a positive integer",
			})
			return
		}
		limit = n
	}

	entries, err := h.query.History(r.Context(), id, limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *PassengerHandler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   CodeInvalidRequest,
			Message: "passenger id must be an integer",
		})
		return 0, false
	}
	return id, true
}

func (h *PassengerHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, usecase.ErrInvalidRequest):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: CodeInvalidRequest, Message: err.Error()})
	case errors.Is(err, usecase.ErrNotFound):
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: CodeNotFound, Message: err.Error()})
	case errors.Is(err, usecase.ErrConflict):
		writeJSON(w, http.StatusConflict, ErrorResponse{Error: CodeConflict, Message: err.Error()})
	default:
		h.logger.Error("Request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error:   CodeInternal,
			Message: "internal error",
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
