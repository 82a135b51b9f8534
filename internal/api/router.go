package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	mw "github.com/interpretly/booking/internal/api/middleware"
	"github.com/interpretly/booking/internal/api/response"
	"github.com/interpretly/booking/pkg/models"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	Auth      *mw.Auth
	RateLimit *mw.RateLimit

	HealthHandler http.HandlerFunc

	CreateJob      http.HandlerFunc
	CreateJobEmail http.HandlerFunc
	IndexJobs      http.HandlerFunc
	GetJob         http.HandlerFunc
	UpdateJob      http.HandlerFunc
	JobHistory     http.HandlerFunc
	PotentialJobs  http.HandlerFunc

	AcceptJob       http.HandlerFunc
	AcceptJobWithID http.HandlerFunc
	StartJob        http.HandlerFunc
	EndJob          http.HandlerFunc
	CancelJob       http.HandlerFunc
	CustomerNoShow  http.HandlerFunc
	DistanceFeed    http.HandlerFunc

	ReopenJob           http.HandlerFunc
	ResendNotifications http.HandlerFunc
	ResendSMS           http.HandlerFunc
	ListAttempts        http.HandlerFunc
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.Recovery)

	// Public health check
	r.Get("/api/v1/health", orNotImplemented(deps.HealthHandler))

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(deps.Auth.Authenticate)
		r.Use(mw.Logger)
		r.Use(deps.RateLimit.Limit)

		r.Post("/api/v1/jobs", orNotImplemented(deps.CreateJob))
		r.Post("/api/v1/jobs/email", orNotImplemented(deps.CreateJobEmail))
		r.Get("/api/v1/jobs", orNotImplemented(deps.IndexJobs))
		r.Get("/api/v1/jobs/history", orNotImplemented(deps.JobHistory))
		r.Get("/api/v1/jobs/potential", orNotImplemented(deps.PotentialJobs))
		r.Post("/api/v1/jobs/accept", orNotImplemented(deps.AcceptJob))
		r.Get("/api/v1/jobs/{jobID}", orNotImplemented(deps.GetJob))
		r.Put("/api/v1/jobs/{jobID}", orNotImplemented(deps.UpdateJob))
		r.Post("/api/v1/jobs/{jobID}/accept", orNotImplemented(deps.AcceptJobWithID))
		r.Post("/api/v1/jobs/{jobID}/start", orNotImplemented(deps.StartJob))
		r.Post("/api/v1/jobs/{jobID}/end", orNotImplemented(deps.EndJob))
		r.Post("/api/v1/jobs/{jobID}/cancel", orNotImplemented(deps.CancelJob))
		r.Post("/api/v1/jobs/{jobID}/customer-no-show", orNotImplemented(deps.CustomerNoShow))
		r.Post("/api/v1/distance-feed", orNotImplemented(deps.DistanceFeed))

		// Admin routes
		r.Group(func(r chi.Router) {
			r.Use(deps.Auth.RequireRole(models.RoleAdmin, models.RoleSuperAdmin))

			r.Post("/api/v1/jobs/{jobID}/reopen", orNotImplemented(deps.ReopenJob))
			r.Post("/api/v1/jobs/{jobID}/notifications/resend", orNotImplemented(deps.ResendNotifications))
			r.Post("/api/v1/jobs/{jobID}/notifications/resend-sms", orNotImplemented(deps.ResendSMS))
			r.Get("/api/v1/jobs/{jobID}/notifications", orNotImplemented(deps.ListAttempts))
		})
	})

	return r
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented", nil)
	}
}
