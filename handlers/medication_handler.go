package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"mediTrackAPI/internal/types/medication"
	"mediTrackAPI/services"
)

type MedicationHandler struct {
	medicationService *services.MedicationService
}

func NewMedicationHandler(medicationService *services.MedicationService) *MedicationHandler {
	return &MedicationHandler{
		medicationService: medicationService,
	}
}

// GetLogs serves GET /medication?userId=&startDate=&endDate= (bounds inclusive).
func (h *MedicationHandler) GetLogs(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	q := r.URL.Query()
	userID := q.Get("userId")
	startDate := q.Get("startDate")
	endDate := q.Get("endDate")

	if userID == "" || startDate == "" || endDate == "" {
		respondWithError(w, http.StatusBadRequest, "Missing required parameters")
		return
	}

	start, err := medication.ParseDay(startDate)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid date format")
		return
	}
	end, err := medication.ParseDay(endDate)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid date format")
		return
	}

	logs, err := h.medicationService.ListLogs(ctx, userID, start, end)
	if err != nil {
		respondWithServiceError(w, err, "Failed to fetch medication logs")
		return
	}

	respondWithJSON(w, http.StatusOK, logs)
}

// UpsertLog serves POST /medication with body {userId, date, taken}.
func (h *MedicationHandler) UpsertLog(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var req medication.UpsertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("UpsertLog Handler: Failed to decode request body: %v", err)
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.UserID == "" || req.Date == "" {
		respondWithError(w, http.StatusBadRequest, "Missing required fields")
		return
	}

	date, err := medication.ParseDay(req.Date)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid date format")
		return
	}

	entry, err := h.medicationService.UpsertLog(ctx, req.UserID, date, req.Taken)
	if err != nil {
		respondWithServiceError(w, err, "Failed to update medication log")
		return
	}

	respondWithJSON(w, http.StatusOK, entry)
}

// GetCalendar serves GET /medication/calendar?userId=&year=&month=.
func (h *MedicationHandler) GetCalendar(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	q := r.URL.Query()
	userID := q.Get("userId")
	year := q.Get("year")
	month := q.Get("month")

	if userID == "" || year == "" || month == "" {
		respondWithError(w, http.StatusBadRequest, "Missing required parameters")
		return
	}

	yearInt, err := strconv.Atoi(year)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid year format")
		return
	}
	monthInt, err := strconv.Atoi(month)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid month format")
		return
	}

	cal, err := h.medicationService.GetCalendar(ctx, userID, yearInt, monthInt)
	if err != nil {
		respondWithServiceError(w, err, "Failed to fetch medication calendar")
		return
	}

	respondWithJSON(w, http.StatusOK, cal)
}

func (h *MedicationHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.medicationService.Ping(ctx); err != nil {
		log.Printf("Health Handler: %v", err)
		respondWithJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unhealthy",
			"error":  "database connection failed",
		})
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "meditrack-api",
	})
}

// respondWithServiceError maps service errors to status codes. Failures always
// get a non-2xx status.
func respondWithServiceError(w http.ResponseWriter, err error, fallback string) {
	if errors.Is(err, services.ErrInvalidRequest) {
		respondWithError(w, http.StatusBadRequest, strings.TrimPrefix(err.Error(), services.ErrInvalidRequest.Error()+": "))
		return
	}

	resp := medication.ErrorResponse{Error: fallback}
	var storeErr *services.StoreError
	if errors.As(err, &storeErr) {
		resp.Code = storeErr.Code
		resp.Message = storeErr.Message
		resp.Name = storeErr.Name
		resp.Cause = storeErr.Cause()
	}

	respondWithJSON(w, http.StatusInternalServerError, resp)
}
