package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/clinicdesk/clinic-scheduling/internal/appointment"
	"github.com/clinicdesk/clinic-scheduling/internal/directory"
)

type LoginRequest struct {
	Email    string `json:"email,omitempty"`
	Username string `json:"username,omitempty"`
	Password string `json:"password"`
}

type TokenResponse struct {
	Token string `json:"token"`
}

type RegisterPatientRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

type CreateDoctorRequest struct {
	Name           string   `json:"name"`
	Email          string   `json:"email"`
	Specialty      string   `json:"specialty"`
	Password       string   `json:"password"`
	AvailableTimes []string `json:"available_times,omitempty"`
}

type UpdateDoctorRequest struct {
	Name           string   `json:"name"`
	Specialty      string   `json:"specialty"`
	AvailableTimes []string `json:"available_times,omitempty"`
}

type BookAppointmentRequest struct {
	DoctorID string `json:"doctor_id"`
	Date     string `json:"date"` // 2006-01-02
	Time     string `json:"time"` // 15:04
}

type UpdateAppointmentRequest struct {
	Date string `json:"date"`
	Time string `json:"time"`
}

type ChangeStatusRequest struct {
	Status string `json:"status"`
}

type PrescriptionRequest struct {
	AppointmentID string `json:"appointment_id"`
	Medication    string `json:"medication"`
	Dosage        string `json:"dosage"`
	Notes         string `json:"notes,omitempty"`
}

type DoctorResponse struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	Specialty      string    `json:"specialty"`
	AvailableTimes []string  `json:"available_times"`
}

type PatientResponse struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
	Phone string    `json:"phone"`
}

type AvailabilityResponse struct {
	DoctorID       uuid.UUID `json:"doctor_id"`
	Date           string    `json:"date"`
	AvailableSlots []string  `json:"available_slots"`
}

type AppointmentResponse struct {
	ID        uuid.UUID `json:"id"`
	DoctorID  uuid.UUID `json:"doctor_id"`
	PatientID uuid.UUID `json:"patient_id"`
	StartTime time.Time `json:"start_time"`
	Status    string    `json:"status"`
}

type AppointmentDetailResponse struct {
	AppointmentResponse
	DoctorName  string `json:"doctor_name"`
	PatientName string `json:"patient_name"`
}

type PrescriptionResponse struct {
	ID            uuid.UUID `json:"id"`
	AppointmentID uuid.UUID `json:"appointment_id"`
	Medication    string    `json:"medication"`
	Dosage        string    `json:"dosage"`
	Notes         string    `json:"notes,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func toDoctorResponse(d directory.Doctor) DoctorResponse {
	return DoctorResponse{
		ID:             d.ID,
		Name:           d.Name,
		Email:          d.Email,
		Specialty:      d.Specialty,
		AvailableTimes: d.AvailableTimes,
	}
}

func toAppointmentResponse(a appointment.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:        a.ID,
		DoctorID:  a.DoctorID,
		PatientID: a.PatientID,
		StartTime: a.StartTime,
		Status:    string(a.Status),
	}
}

func toDetailResponse(d appointment.AppointmentDetail) AppointmentDetailResponse {
	return AppointmentDetailResponse{
		AppointmentResponse: toAppointmentResponse(d.Appointment),
		DoctorName:          d.DoctorName,
		PatientName:         d.PatientName,
	}
}

func toPrescriptionResponse(p appointment.Prescription) PrescriptionResponse {
	return PrescriptionResponse{
		ID:            p.ID,
		AppointmentID: p.AppointmentID,
		Medication:    p.Medication,
		Dosage:        p.Dosage,
		Notes:         p.Notes,
	}
}
