package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/interpretly/booking/internal/api/response"
	"github.com/interpretly/booking/internal/booking"
	"github.com/interpretly/booking/internal/notify"
	"github.com/interpretly/booking/internal/store"
	"github.com/interpretly/booking/pkg/models"
)

type createJobRequest struct {
	CustomerID   string `json:"customer_id,omitempty"`
	FromLanguage string `json:"from_language"`
	ToLanguage   string `json:"to_language"`
	Immediate    bool   `json:"immediate"`
	ScheduledAt  string `json:"scheduled_at,omitempty"`
	Duration     int    `json:"duration_minutes,omitempty"`
}

func (req *createJobRequest) params(w http.ResponseWriter) (booking.CreateParams, bool) {
	p := booking.CreateParams{
		FromLanguage: req.FromLanguage,
		ToLanguage:   req.ToLanguage,
		Immediate:    req.Immediate,
		Duration:     req.Duration,
	}
	if req.CustomerID != "" {
		id, err := uuid.Parse(req.CustomerID)
		if err != nil {
			response.Error(w, http.StatusBadRequest, "VALIDATION_FAILED",
				"customer_id must be a valid UUID", nil)
			return p, false
		}
		p.CustomerID = id
	}
	if req.ScheduledAt != "" {
		t, err := time.Parse(time.RFC3339, req.ScheduledAt)
		if err != nil {
			response.Error(w, http.StatusBadRequest, "VALIDATION_FAILED",
				"scheduled_at must be a valid RFC3339 timestamp", nil)
			return p, false
		}
		p.ScheduledAt = &t
	}
	return p, true
}

type jobWithReport struct {
	Job    *models.Job    `json:"job"`
	Report *notify.Report `json:"dispatch,omitempty"`
}

// NewCreateJobHandler returns the handler for POST /api/v1/jobs.
func NewCreateJobHandler(svc Booking) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, ok := actor(w, r)
		if !ok {
			return
		}

		var req createJobRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "VALIDATION_FAILED", "Invalid JSON body", nil)
			return
		}
		p, ok := req.params(w)
		if !ok {
			return
		}

		job, report, err := svc.Create(r.Context(), a, p)
		if err != nil {
			serviceError(w, err)
			return
		}
		response.Created(w, jobWithReport{Job: job, Report: report})
	}
}

// NewCreateJobEmailHandler returns the handler for POST /api/v1/jobs/email:
// an immediate booking plus a confirmation email to the customer.
func NewCreateJobEmailHandler(svc Booking) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, ok := actor(w, r)
		if !ok {
			return
		}

		var req createJobRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "VALIDATION_FAILED", "Invalid JSON body", nil)
			return
		}
		p, ok := req.params(w)
		if !ok {
			return
		}

		job, report, err := svc.CreateWithEmail(r.Context(), a, p)
		if err != nil {
			serviceError(w, err)
			return
		}
		response.Created(w, jobWithReport{Job: job, Report: report})
	}
}

// NewUpdateJobHandler returns the handler for PUT /api/v1/jobs/{jobID}.
func NewUpdateJobHandler(svc Booking) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, ok := actor(w, r)
		if !ok {
			return
		}
		jobID, ok := jobIDParam(w, r)
		if !ok {
			return
		}

		var req struct {
			FromLanguage *string `json:"from_language,omitempty"`
			ToLanguage   *string `json:"to_language,omitempty"`
			ScheduledAt  *string `json:"scheduled_at,omitempty"`
			Duration     *int    `json:"duration_minutes,omitempty"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "VALIDATION_FAILED", "Invalid JSON body", nil)
			return
		}

		p := booking.UpdateParams{
			FromLanguage: req.FromLanguage,
			ToLanguage:   req.ToLanguage,
			Duration:     req.Duration,
		}
		if req.ScheduledAt != nil {
			t, err := time.Parse(time.RFC3339, *req.ScheduledAt)
			if err != nil {
				response.Error(w, http.StatusBadRequest, "VALIDATION_FAILED",
					"scheduled_at must be a valid RFC3339 timestamp", nil)
				return
			}
			p.ScheduledAt = &t
		}

		job, err := svc.Update(r.Context(), a, jobID, p)
		if err != nil {
			serviceError(w, err)
			return
		}
		response.JSON(w, job)
	}
}

// NewIndexJobsHandler returns the handler for GET /api/v1/jobs. With a
// user_id query it lists that user's jobs; without one it is the unrestricted
// admin listing.
func NewIndexJobsHandler(hist History) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, ok := actor(w, r)
		if !ok {
			return
		}

		if rawID := r.URL.Query().Get("user_id"); rawID != "" {
			userID, err := uuid.Parse(rawID)
			if err != nil {
				response.Error(w, http.StatusBadRequest, "VALIDATION_FAILED",
					"user_id must be a valid UUID", nil)
				return
			}
			jobs, err := hist.UsersJobs(r.Context(), userID)
			if err != nil {
				serviceError(w, err)
				return
			}
			response.JSON(w, jobs)
			return
		}

		filter := jobFilterFromQuery(r)
		jobs, total, err := hist.All(r.Context(), a, filter)
		if err != nil {
			serviceError(w, err)
			return
		}
		response.Collection(w, jobs, paginationMeta(filter, total))
	}
}

// NewGetJobHandler returns the handler for GET /api/v1/jobs/{jobID}.
func NewGetJobHandler(hist History) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID, ok := jobIDParam(w, r)
		if !ok {
			return
		}
		job, err := hist.Job(r.Context(), jobID)
		if err != nil {
			serviceError(w, err)
			return
		}
		response.JSON(w, job)
	}
}

func jobFilterFromQuery(r *http.Request) store.JobFilter {
	q := r.URL.Query()
	filter := store.JobFilter{
		Status:     q.Get("status"),
		ToLanguage: q.Get("to_language"),
	}
	if rawID := q.Get("customer_id"); rawID != "" {
		if id, err := uuid.Parse(rawID); err == nil {
			filter.CustomerID = id
		}
	}
	if raw := q.Get("since"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			filter.Since = t
		}
	}
	if raw := q.Get("page"); raw != "" {
		if p, err := parsePositiveInt(raw); err == nil {
			filter.Page = p
		}
	}
	if raw := q.Get("limit"); raw != "" {
		if l, err := parsePositiveInt(raw); err == nil {
			filter.Limit = l
		}
	}
	return filter
}

func paginationMeta(filter store.JobFilter, total int) response.PaginationMeta {
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	return response.PaginationMeta{
		Page:    page,
		Limit:   limit,
		Total:   total,
		HasNext: page*limit < total,
	}
}
