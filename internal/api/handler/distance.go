package handler

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/interpretly/booking/internal/api/response"
)

// NewDistanceFeedHandler returns the handler for POST /api/v1/distance-feed.
// An unknown job id answers "Record could not be updated!" rather than an
// error; the distance source retries on its own schedule.
func NewDistanceFeedHandler(svc Booking) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, ok := actor(w, r)
		if !ok {
			return
		}

		var req struct {
			JobID             string  `json:"job_id"`
			DistanceKM        float64 `json:"distance_km"`
			TravelTimeMinutes int     `json:"travel_time_minutes"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "VALIDATION_FAILED", "Invalid JSON body", nil)
			return
		}
		if req.JobID == "" {
			response.Error(w, http.StatusBadRequest, "VALIDATION_FAILED", "job_id is required", nil)
			return
		}
		jobID, err := uuid.Parse(req.JobID)
		if err != nil {
			response.Error(w, http.StatusBadRequest, "VALIDATION_FAILED", "job_id must be a valid UUID", nil)
			return
		}

		updated, err := svc.DistanceFeed(r.Context(), a, jobID, req.DistanceKM, req.TravelTimeMinutes)
		if err != nil {
			serviceError(w, err)
			return
		}
		if !updated {
			response.Message(w, "Record could not be updated!")
			return
		}
		response.Message(w, "Record updated!")
	}
}
