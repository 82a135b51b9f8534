package handler

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/interpretly/booking/internal/api/response"
)

// NewJobHistoryHandler returns the handler for GET /api/v1/jobs/history.
// A user_id query parameter is mandatory, matching the original surface.
func NewJobHistoryHandler(hist History) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := actor(w, r); !ok {
			return
		}

		rawID := r.URL.Query().Get("user_id")
		if rawID == "" {
			response.Error(w, http.StatusBadRequest, "VALIDATION_FAILED", "user_id is required", nil)
			return
		}
		userID, err := uuid.Parse(rawID)
		if err != nil {
			response.Error(w, http.StatusBadRequest, "VALIDATION_FAILED", "user_id must be a valid UUID", nil)
			return
		}

		filter := jobFilterFromQuery(r)
		jobs, total, err := hist.UsersJobsHistory(r.Context(), userID, filter)
		if err != nil {
			serviceError(w, err)
			return
		}
		response.Collection(w, jobs, paginationMeta(filter, total))
	}
}

// NewPotentialJobsHandler returns the handler for GET /api/v1/jobs/potential:
// the open jobs the calling translator is a candidate for.
func NewPotentialJobsHandler(svc Booking) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, ok := actor(w, r)
		if !ok {
			return
		}

		jobs, err := svc.PotentialJobs(r.Context(), a)
		if err != nil {
			serviceError(w, err)
			return
		}
		response.JSON(w, jobs)
	}
}

// NewListAttemptsHandler returns the handler for
// GET /api/v1/jobs/{jobID}/notifications: the append-only delivery audit trail.
func NewListAttemptsHandler(hist History) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, ok := actor(w, r)
		if !ok {
			return
		}
		jobID, ok := jobIDParam(w, r)
		if !ok {
			return
		}

		attempts, err := hist.Attempts(r.Context(), a, jobID)
		if err != nil {
			serviceError(w, err)
			return
		}
		response.JSON(w, attempts)
	}
}
