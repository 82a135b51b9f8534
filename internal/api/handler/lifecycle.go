package handler

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/interpretly/booking/internal/api/response"
)

// NewAcceptJobHandler returns the handler for POST /api/v1/jobs/accept, which
// carries the job id in the body. Losing the accept race answers 409
// JOB_ALREADY_TAKEN, an expected outcome for every translator but one.
func NewAcceptJobHandler(svc Booking) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, ok := actor(w, r)
		if !ok {
			return
		}

		var req struct {
			JobID string `json:"job_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.JobID == "" {
			response.Error(w, http.StatusBadRequest, "VALIDATION_FAILED", "job_id is required", nil)
			return
		}
		jobID, err := uuid.Parse(req.JobID)
		if err != nil {
			response.Error(w, http.StatusBadRequest, "VALIDATION_FAILED", "job_id must be a valid UUID", nil)
			return
		}

		job, err := svc.Accept(r.Context(), a, jobID)
		if err != nil {
			serviceError(w, err)
			return
		}
		response.JSON(w, job)
	}
}

// NewAcceptJobWithIDHandler returns the handler for
// POST /api/v1/jobs/{jobID}/accept. Same accept primitive, id in the path.
func NewAcceptJobWithIDHandler(svc Booking) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, ok := actor(w, r)
		if !ok {
			return
		}
		jobID, ok := jobIDParam(w, r)
		if !ok {
			return
		}

		job, err := svc.Accept(r.Context(), a, jobID)
		if err != nil {
			serviceError(w, err)
			return
		}
		response.JSON(w, job)
	}
}

// NewStartJobHandler returns the handler for POST /api/v1/jobs/{jobID}/start.
func NewStartJobHandler(svc Booking) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, ok := actor(w, r)
		if !ok {
			return
		}
		jobID, ok := jobIDParam(w, r)
		if !ok {
			return
		}
		job, err := svc.Start(r.Context(), a, jobID)
		if err != nil {
			serviceError(w, err)
			return
		}
		response.JSON(w, job)
	}
}

// NewEndJobHandler returns the handler for POST /api/v1/jobs/{jobID}/end.
func NewEndJobHandler(svc Booking) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, ok := actor(w, r)
		if !ok {
			return
		}
		jobID, ok := jobIDParam(w, r)
		if !ok {
			return
		}
		job, err := svc.End(r.Context(), a, jobID)
		if err != nil {
			serviceError(w, err)
			return
		}
		response.JSON(w, job)
	}
}

// NewCancelJobHandler returns the handler for POST /api/v1/jobs/{jobID}/cancel.
func NewCancelJobHandler(svc Booking) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, ok := actor(w, r)
		if !ok {
			return
		}
		jobID, ok := jobIDParam(w, r)
		if !ok {
			return
		}
		job, err := svc.Cancel(r.Context(), a, jobID)
		if err != nil {
			serviceError(w, err)
			return
		}
		response.JSON(w, job)
	}
}

// NewCustomerNoShowHandler returns the handler for
// POST /api/v1/jobs/{jobID}/customer-no-show.
func NewCustomerNoShowHandler(svc Booking) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, ok := actor(w, r)
		if !ok {
			return
		}
		jobID, ok := jobIDParam(w, r)
		if !ok {
			return
		}
		job, err := svc.CustomerNoShow(r.Context(), a, jobID)
		if err != nil {
			serviceError(w, err)
			return
		}
		response.JSON(w, job)
	}
}

// NewReopenJobHandler returns the handler for POST /api/v1/jobs/{jobID}/reopen.
func NewReopenJobHandler(svc Booking) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, ok := actor(w, r)
		if !ok {
			return
		}
		jobID, ok := jobIDParam(w, r)
		if !ok {
			return
		}
		job, report, err := svc.Reopen(r.Context(), a, jobID)
		if err != nil {
			serviceError(w, err)
			return
		}
		response.JSON(w, jobWithReport{Job: job, Report: report})
	}
}
