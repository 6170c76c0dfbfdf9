package appointment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrAppointmentNotFound  = errors.New("appointment not found")
	ErrPrescriptionNotFound = errors.New("prescription not found")
)

// Repository contains all DB interactions needed by the booking service.
type Repository interface {
	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)

	// ListScheduledByDoctorAndDate feeds the availability engine: all
	// Scheduled appointments for a doctor on a calendar day.
	ListScheduledByDoctorAndDate(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]Appointment, error)

	// CreateScheduled persists a new Scheduled appointment. The store's
	// partial unique index on (doctor_id, start_time) for Scheduled rows is
	// the backstop against double booking; a losing writer gets
	// ErrSlotUnavailable.
	CreateScheduled(ctx context.Context, doctorID, patientID uuid.UUID, startTime time.Time) (*Appointment, error)

	// UpdateStartTime moves a Scheduled appointment to a new slot,
	// compare-and-swap on status.
	UpdateStartTime(ctx context.Context, id uuid.UUID, startTime time.Time) (*Appointment, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error)

	ListDetailByPatient(ctx context.Context, patientID uuid.UUID, statuses []Status) ([]AppointmentDetail, error)
	ListDetailByDoctorAndDate(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]AppointmentDetail, error)

	// Status worker
	FindScheduledBefore(ctx context.Context, cutoff time.Time) ([]Appointment, error)

	CreatePrescription(ctx context.Context, p Prescription) (*Prescription, error)
	GetPrescriptionByAppointment(ctx context.Context, appointmentID uuid.UUID) (*Prescription, error)
}
