package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/clinicdesk/clinic-scheduling/internal/appointment"
	"github.com/clinicdesk/clinic-scheduling/internal/auth"
	"github.com/clinicdesk/clinic-scheduling/internal/directory"
	"github.com/clinicdesk/clinic-scheduling/internal/metrics"
)

type Handlers struct {
	directory *directory.Service
	booking   *appointment.Service
}

func NewHandlers(dir *directory.Service, booking *appointment.Service) *Handlers {
	return &Handlers{
		directory: dir,
		booking:   booking,
	}
}

// Auth

func (h *Handlers) login(w http.ResponseWriter, r *http.Request) {
	role, err := auth.ParseRole(chi.URLParam(r, "role"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_role", "role must be admin, doctor or patient")
		return
	}

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}

	// Admins log in by username, doctors and patients by email.
	subject := req.Email
	if role == auth.RoleAdmin {
		subject = req.Username
	}
	if subject == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "missing_credentials", "identifier and password are required")
		return
	}

	token, err := h.directory.Login(r.Context(), role, subject, req.Password)
	if err != nil {
		if errors.Is(err, directory.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "invalid_credentials", "")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, TokenResponse{Token: token})
}

func (h *Handlers) registerPatient(w http.ResponseWriter, r *http.Request) {
	var req RegisterPatientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}
	if req.Name == "" || req.Email == "" || req.Phone == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "missing_fields", "name, email, phone and password are required")
		return
	}

	patient, err := h.directory.RegisterPatient(r.Context(), req.Name, req.Email, req.Phone, req.Password)
	if err != nil {
		if errors.Is(err, directory.ErrDuplicatePatient) {
			writeError(w, http.StatusConflict, "patient_already_exists", err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, PatientResponse{
		ID:    patient.ID,
		Name:  patient.Name,
		Email: patient.Email,
		Phone: patient.Phone,
	})
}

// Doctors

func (h *Handlers) listDoctors(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	doctors, err := h.directory.FilterDoctors(r.Context(), q.Get("name"), q.Get("specialty"), q.Get("period"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}

	resp := make([]DoctorResponse, 0, len(doctors))
	for _, d := range doctors {
		resp = append(resp, toDoctorResponse(d))
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) doctorAvailability(w http.ResponseWriter, r *http.Request) {
	doctorID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_doctor_id", "id must be a valid UUID")
		return
	}

	date, err := parseDate(r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_date", "date must be formatted as 2006-01-02")
		return
	}

	slots, err := h.booking.Availability(r.Context(), doctorID, date)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}

	starts := make([]string, 0, len(slots))
	for _, s := range slots {
		starts = append(starts, s.Start.Format("15:04"))
	}

	writeJSON(w, http.StatusOK, AvailabilityResponse{
		DoctorID:       doctorID,
		Date:           date.Format("2006-01-02"),
		AvailableSlots: starts,
	})
}

func (h *Handlers) createDoctor(w http.ResponseWriter, r *http.Request) {
	var req CreateDoctorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}
	if req.Name == "" || req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "missing_fields", "name, email and password are required")
		return
	}

	doctor, err := h.directory.RegisterDoctor(r.Context(), req.Name, req.Email, req.Specialty, req.Password, req.AvailableTimes)
	if err != nil {
		if errors.Is(err, directory.ErrDuplicateDoctor) {
			writeError(w, http.StatusConflict, "doctor_already_exists", err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, toDoctorResponse(*doctor))
}

func (h *Handlers) updateDoctor(w http.ResponseWriter, r *http.Request) {
	doctorID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_doctor_id", "id must be a valid UUID")
		return
	}

	var req UpdateDoctorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}

	doctor, err := h.directory.UpdateDoctor(r.Context(), directory.Doctor{
		ID:             doctorID,
		Name:           req.Name,
		Specialty:      req.Specialty,
		AvailableTimes: req.AvailableTimes,
	})
	if err != nil {
		if errors.Is(err, directory.ErrDoctorNotFound) {
			writeError(w, http.StatusNotFound, "doctor_not_found", err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, toDoctorResponse(*doctor))
}

func (h *Handlers) deleteDoctor(w http.ResponseWriter, r *http.Request) {
	doctorID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_doctor_id", "id must be a valid UUID")
		return
	}

	if err := h.directory.RemoveDoctor(r.Context(), doctorID); err != nil {
		if errors.Is(err, directory.ErrDoctorNotFound) {
			writeError(w, http.StatusNotFound, "doctor_not_found", err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Appointments (patient)

func (h *Handlers) bookAppointment(w http.ResponseWriter, r *http.Request) {
	patient, ok := h.currentPatient(w, r)
	if !ok {
		return
	}

	var req BookAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}

	doctorID, err := uuid.Parse(req.DoctorID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
		return
	}

	startTime, err := parseStartTime(req.Date, req.Time)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_time", "date must be 2006-01-02 and time 15:04")
		return
	}

	// The owning patient is the authenticated caller, never client-supplied.
	appt, err := h.booking.Book(r.Context(), doctorID, patient.ID, startTime, patient.ID)
	if err != nil {
		h.handleBookingError(w, err)
		return
	}

	metrics.BookingsTotal.Inc()
	writeJSON(w, http.StatusCreated, toAppointmentResponse(*appt))
}

func (h *Handlers) updateAppointment(w http.ResponseWriter, r *http.Request) {
	patient, ok := h.currentPatient(w, r)
	if !ok {
		return
	}

	apptID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
		return
	}

	var req UpdateAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}

	startTime, err := parseStartTime(req.Date, req.Time)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_time", "date must be 2006-01-02 and time 15:04")
		return
	}

	appt, err := h.booking.Update(r.Context(), apptID, startTime, patient.ID)
	if err != nil {
		h.handleBookingError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toAppointmentResponse(*appt))
}

func (h *Handlers) cancelAppointment(w http.ResponseWriter, r *http.Request) {
	patient, ok := h.currentPatient(w, r)
	if !ok {
		return
	}

	apptID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
		return
	}

	if err := h.booking.Cancel(r.Context(), apptID, patient.ID); err != nil {
		h.handleBookingError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) getAppointment(w http.ResponseWriter, r *http.Request) {
	patient, ok := h.currentPatient(w, r)
	if !ok {
		return
	}

	apptID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
		return
	}

	appt, err := h.booking.GetAppointment(r.Context(), apptID)
	if err != nil {
		h.handleBookingError(w, err)
		return
	}
	if appt.PatientID != patient.ID {
		writeError(w, http.StatusForbidden, "not_owner", "appointment does not belong to this patient")
		return
	}

	writeJSON(w, http.StatusOK, toAppointmentResponse(*appt))
}

func (h *Handlers) listMyAppointments(w http.ResponseWriter, r *http.Request) {
	patient, ok := h.currentPatient(w, r)
	if !ok {
		return
	}

	details, err := h.booking.ListForPatient(r.Context(), patient.ID, r.URL.Query().Get("condition"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_condition", err.Error())
		return
	}

	resp := make([]AppointmentDetailResponse, 0, len(details))
	for _, d := range details {
		resp = append(resp, toDetailResponse(d))
	}

	writeJSON(w, http.StatusOK, resp)
}

// Appointments (doctor)

func (h *Handlers) listDoctorDay(w http.ResponseWriter, r *http.Request) {
	doctor, ok := h.currentDoctor(w, r)
	if !ok {
		return
	}

	date, err := parseDate(r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_date", "date must be formatted as 2006-01-02")
		return
	}

	details, err := h.booking.ListForDoctorDay(r.Context(), doctor.ID, date, r.URL.Query().Get("patient_name"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}

	resp := make([]AppointmentDetailResponse, 0, len(details))
	for _, d := range details {
		resp = append(resp, toDetailResponse(d))
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) changeStatus(w http.ResponseWriter, r *http.Request) {
	apptID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
		return
	}

	var req ChangeStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}

	status, err := appointment.ParseStatus(req.Status)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_status", err.Error())
		return
	}

	appt, err := h.booking.ChangeStatus(r.Context(), apptID, status)
	if err != nil {
		h.handleBookingError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toAppointmentResponse(*appt))
}

// Prescriptions (doctor)

func (h *Handlers) createPrescription(w http.ResponseWriter, r *http.Request) {
	var req PrescriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}

	apptID, err := uuid.Parse(req.AppointmentID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_appointment_id", "appointment_id must be a valid UUID")
		return
	}
	if req.Medication == "" {
		writeError(w, http.StatusBadRequest, "missing_fields", "medication is required")
		return
	}

	p, err := h.booking.IssuePrescription(r.Context(), apptID, req.Medication, req.Dosage, req.Notes)
	if err != nil {
		h.handleBookingError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toPrescriptionResponse(*p))
}

func (h *Handlers) getPrescription(w http.ResponseWriter, r *http.Request) {
	apptID, err := uuid.Parse(chi.URLParam(r, "appointmentID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_appointment_id", "appointmentID must be a valid UUID")
		return
	}

	p, err := h.booking.GetPrescription(r.Context(), apptID)
	if err != nil {
		h.handleBookingError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toPrescriptionResponse(*p))
}

// Helpers

func (h *Handlers) currentPatient(w http.ResponseWriter, r *http.Request) (*directory.Patient, bool) {
	patient, err := h.directory.PatientByEmail(r.Context(), GetSubject(r.Context()))
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "")
		return nil, false
	}
	return patient, true
}

func (h *Handlers) currentDoctor(w http.ResponseWriter, r *http.Request) (*directory.Doctor, bool) {
	doctor, err := h.directory.DoctorByEmail(r.Context(), GetSubject(r.Context()))
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "")
		return nil, false
	}
	return doctor, true
}

func (h *Handlers) handleBookingError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, directory.ErrDoctorNotFound):
		writeError(w, http.StatusNotFound, "doctor_not_found", err.Error())
	case errors.Is(err, appointment.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, appointment.ErrPrescriptionNotFound):
		writeError(w, http.StatusNotFound, "prescription_not_found", err.Error())
	case errors.Is(err, appointment.ErrNotOwner):
		writeError(w, http.StatusForbidden, "not_owner", err.Error())
	case errors.Is(err, appointment.ErrSlotUnavailable):
		metrics.BookingConflictsTotal.Inc()
		writeError(w, http.StatusConflict, "slot_unavailable", err.Error())
	case errors.Is(err, appointment.ErrSlotContended):
		metrics.BookingConflictsTotal.Inc()
		writeError(w, http.StatusConflict, "slot_contended", "slot is currently being booked, please retry shortly")
	case errors.Is(err, appointment.ErrInvalidStatusTransition):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	case errors.Is(err, appointment.ErrPrescriptionExists):
		writeError(w, http.StatusConflict, "prescription_already_exists", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func parseDate(s string) (time.Time, error) {
	return time.ParseInLocation("2006-01-02", s, time.Local)
}

func parseStartTime(date, clock string) (time.Time, error) {
	return time.ParseInLocation("2006-01-02 15:04", date+" "+clock, time.Local)
}
