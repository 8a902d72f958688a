package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/ecomstream/analytics-pipeline/internal/domain"
	"github.com/ecomstream/analytics-pipeline/internal/ingest"
)

const maxBodyBytes = 1 << 20 // 1 MiB

// simulateMaxCount caps a single synthetic-load request.
const simulateMaxCount = 1000

type EventHandler struct {
	collector *ingest.Collector
	logger    *slog.Logger
}

func NewEventHandler(c *ingest.Collector, logger *slog.Logger) *EventHandler {
	return &EventHandler{collector: c, logger: logger}
}

type createEventRequest struct {
	EventType string          `json:"eventType"`
	UserID    string          `json:"userId,omitempty"`
	SessionID string          `json:"sessionId,omitempty"`
	Data      json.RawMessage `json:"data"`
}

type createEventResponse struct {
	Success bool   `json:"success"`
	EventID string `json:"eventId"`
}

// Create accepts one behavioral event. Identity is derived from the
// nested data object; the top-level userId/sessionId fields are
// accepted for wire compatibility but ignored.
func (h *EventHandler) Create(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req createEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	event, err := h.collector.Submit(r.Context(), ingest.SubmitRequest{
		EventType: domain.EventType(req.EventType),
		Data:      req.Data,
		Metadata:  requestMetadata(r),
	})
	if err != nil {
		if errors.Is(err, ingest.ErrInvalidEventType) {
			respondError(w, http.StatusBadRequest, "Invalid event type")
			return
		}
		h.logger.Error("failed to publish event", "error", err, "event_type", req.EventType)
		respondError(w, http.StatusInternalServerError, "Failed to process event")
		return
	}

	respondJSON(w, http.StatusOK, createEventResponse{Success: true, EventID: event.EventID})
}

type simulateRequest struct {
	Count int `json:"count"`
}

type simulateResponse struct {
	Success bool                    `json:"success"`
	Message string                  `json:"message"`
	Events  []ingest.SimulatedEvent `json:"events"`
}

// Simulate generates synthetic load. Per-event failures are swallowed;
// the response lists only the events that were published.
func (h *EventHandler) Simulate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	req := simulateRequest{Count: 1}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Count < 1 {
		req.Count = 1
	}
	if req.Count > simulateMaxCount {
		req.Count = simulateMaxCount
	}

	events := h.collector.Simulate(r.Context(), req.Count, requestMetadata(r))

	respondJSON(w, http.StatusOK, simulateResponse{
		Success: true,
		Message: fmt.Sprintf("Generated %d events", len(events)),
		Events:  events,
	})
}

func requestMetadata(r *http.Request) domain.Metadata {
	return domain.Metadata{
		UserAgent: r.UserAgent(),
		IPAddress: r.RemoteAddr,
		Referrer:  r.Referer(),
	}
}
