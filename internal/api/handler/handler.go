// Package handler contains the HTTP handlers for every booking operation.
// Handlers parse and validate transport concerns, then delegate to the
// lifecycle controller or the history service; they never touch the store.
package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/interpretly/booking/internal/api/middleware"
	"github.com/interpretly/booking/internal/api/response"
	"github.com/interpretly/booking/internal/booking"
	"github.com/interpretly/booking/internal/notify"
	"github.com/interpretly/booking/internal/store"
	"github.com/interpretly/booking/pkg/models"
)

// Booking is the lifecycle-controller surface the handlers depend on.
type Booking interface {
	Create(ctx context.Context, actor booking.Actor, p booking.CreateParams) (*models.Job, *notify.Report, error)
	CreateWithEmail(ctx context.Context, actor booking.Actor, p booking.CreateParams) (*models.Job, *notify.Report, error)
	Update(ctx context.Context, actor booking.Actor, jobID uuid.UUID, p booking.UpdateParams) (*models.Job, error)
	Accept(ctx context.Context, actor booking.Actor, jobID uuid.UUID) (*models.Job, error)
	Start(ctx context.Context, actor booking.Actor, jobID uuid.UUID) (*models.Job, error)
	End(ctx context.Context, actor booking.Actor, jobID uuid.UUID) (*models.Job, error)
	Cancel(ctx context.Context, actor booking.Actor, jobID uuid.UUID) (*models.Job, error)
	CustomerNoShow(ctx context.Context, actor booking.Actor, jobID uuid.UUID) (*models.Job, error)
	Reopen(ctx context.Context, actor booking.Actor, jobID uuid.UUID) (*models.Job, *notify.Report, error)
	PotentialJobs(ctx context.Context, actor booking.Actor) ([]*models.Job, error)
	Resend(ctx context.Context, actor booking.Actor, jobID uuid.UUID, selector string) (*notify.Report, error)
	DistanceFeed(ctx context.Context, actor booking.Actor, jobID uuid.UUID, distanceKM float64, travelTimeMinutes int) (bool, error)
}

// History is the read-side surface the handlers depend on.
type History interface {
	Job(ctx context.Context, jobID uuid.UUID) (*models.Job, error)
	UsersJobs(ctx context.Context, userID uuid.UUID) ([]*models.Job, error)
	All(ctx context.Context, actor booking.Actor, filter store.JobFilter) ([]*models.Job, int, error)
	UsersJobsHistory(ctx context.Context, userID uuid.UUID, filter store.JobFilter) ([]*models.Job, int, error)
	Attempts(ctx context.Context, actor booking.Actor, jobID uuid.UUID) ([]*models.NotificationAttempt, error)
}

// actor pulls the authenticated caller out of the request, answering 401 if
// the auth middleware did not run.
func actor(w http.ResponseWriter, r *http.Request) (booking.Actor, bool) {
	a, ok := middleware.GetActor(r)
	if !ok {
		response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing actor", nil)
	}
	return a, ok
}

// jobIDParam parses the {jobID} route parameter.
func jobIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "jobID"))
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_FAILED", "job id must be a valid UUID", nil)
		return uuid.Nil, false
	}
	return id, true
}

func parsePositiveInt(raw string) (int, error) {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, errors.New("must be positive")
	}
	return n, nil
}

// serviceError maps the error taxonomy onto distinct, stable outcomes so
// callers can discriminate failure modes without matching message strings.
func serviceError(w http.ResponseWriter, err error) {
	var transition *booking.InvalidTransitionError
	var validation *booking.ValidationError

	switch {
	case errors.Is(err, store.ErrNotFound):
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Resource not found", nil)
	case errors.Is(err, store.ErrJobTaken):
		response.Error(w, http.StatusConflict, "JOB_ALREADY_TAKEN",
			"Another translator already accepted this job", nil)
	case errors.As(err, &transition):
		response.Error(w, http.StatusConflict, "INVALID_TRANSITION", transition.Error(),
			map[string]string{"operation": transition.Op, "status": transition.Status})
	case errors.Is(err, booking.ErrInvalidTransition):
		response.Error(w, http.StatusConflict, "INVALID_TRANSITION", "Transition not permitted", nil)
	case errors.As(err, &validation):
		response.Error(w, http.StatusBadRequest, "VALIDATION_FAILED", validation.Error(),
			map[string]string{"field": validation.Field})
	case errors.Is(err, booking.ErrValidation):
		response.Error(w, http.StatusBadRequest, "VALIDATION_FAILED", "Invalid payload", nil)
	case errors.Is(err, booking.ErrForbidden):
		response.Error(w, http.StatusForbidden, "FORBIDDEN", "Operation not permitted for role", nil)
	default:
		response.Error(w, http.StatusInternalServerError, "STORE_UNAVAILABLE",
			"An unexpected error occurred", nil)
	}
}
