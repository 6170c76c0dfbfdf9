package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/clinicdesk/clinic-scheduling/internal/auth"
	"github.com/clinicdesk/clinic-scheduling/internal/metrics"
)

func NewRouter(h *Handlers, health *HealthHandler, authMW *AuthMiddleware, logger zerolog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger))

	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Post("/api/v1/auth/{role}/login", h.login)
	r.Post("/api/v1/patients/register", h.registerPatient)

	r.Get("/api/v1/doctors", h.listDoctors)
	r.Get("/api/v1/doctors/{id}/availability", h.doctorAvailability)

	r.Group(func(r chi.Router) {
		r.Use(authMW.RequireRole(auth.RoleAdmin))

		r.Post("/api/v1/doctors", h.createDoctor)
		r.Put("/api/v1/doctors/{id}", h.updateDoctor)
		r.Delete("/api/v1/doctors/{id}", h.deleteDoctor)
	})

	r.Group(func(r chi.Router) {
		r.Use(authMW.RequireRole(auth.RolePatient))

		r.Post("/api/v1/appointments", h.bookAppointment)
		r.Get("/api/v1/appointments", h.listMyAppointments)
		r.Get("/api/v1/appointments/{id}", h.getAppointment)
		r.Put("/api/v1/appointments/{id}", h.updateAppointment)
		r.Delete("/api/v1/appointments/{id}", h.cancelAppointment)
	})

	r.Group(func(r chi.Router) {
		r.Use(authMW.RequireRole(auth.RoleDoctor))

		r.Get("/api/v1/schedule", h.listDoctorDay)
		r.Patch("/api/v1/appointments/{id}/status", h.changeStatus)
		r.Post("/api/v1/prescriptions", h.createPrescription)
		r.Get("/api/v1/prescriptions/{appointmentID}", h.getPrescription)
	})

	return r
}
