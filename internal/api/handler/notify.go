package handler

import (
	"net/http"

	"github.com/interpretly/booking/internal/api/response"
	"github.com/interpretly/booking/internal/notify"
	"github.com/interpretly/booking/pkg/models"
)

// NewResendNotificationsHandler returns the handler for
// POST /api/v1/jobs/{jobID}/notifications/resend: a fresh broadcast round on
// both channels against a recomputed candidate set.
func NewResendNotificationsHandler(svc Booking) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, ok := actor(w, r)
		if !ok {
			return
		}
		jobID, ok := jobIDParam(w, r)
		if !ok {
			return
		}

		report, err := svc.Resend(r.Context(), a, jobID, notify.SelectorAll)
		if err != nil {
			serviceError(w, err)
			return
		}
		response.JSON(w, report)
	}
}

// NewResendSMSHandler returns the handler for
// POST /api/v1/jobs/{jobID}/notifications/resend-sms: same primitive, SMS only.
func NewResendSMSHandler(svc Booking) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, ok := actor(w, r)
		if !ok {
			return
		}
		jobID, ok := jobIDParam(w, r)
		if !ok {
			return
		}

		report, err := svc.Resend(r.Context(), a, jobID, models.ChannelSMS)
		if err != nil {
			serviceError(w, err)
			return
		}
		response.JSON(w, report)
	}
}
