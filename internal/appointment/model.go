package appointment

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	// StatusScheduled is an active reservation; only Scheduled rows count
	// against availability.
	StatusScheduled Status = "scheduled"
	// StatusCancelled is terminal; the slot is free again.
	StatusCancelled Status = "cancelled"
	// StatusCompleted marks an appointment whose start time has passed.
	StatusCompleted Status = "completed"
	// StatusPrescriptionIssued is terminal for booking; the record stays
	// queryable alongside its prescription.
	StatusPrescriptionIssued Status = "prescription_issued"
)

// SlotDuration is fixed by the catalog; slots are matched by exact start
// time, never by overlap.
const SlotDuration = time.Hour

func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusScheduled, StatusCancelled, StatusCompleted, StatusPrescriptionIssued:
		return Status(s), nil
	default:
		return "", fmt.Errorf("unknown status %q", s)
	}
}

// Slot is a bookable window in a doctor's day. Value type, no identity.
type Slot struct {
	Start time.Time
	End   time.Time
}

type Appointment struct {
	ID        uuid.UUID
	DoctorID  uuid.UUID
	PatientID uuid.UUID
	StartTime time.Time
	Status    Status
	CreatedAt time.Time
	UpdatedAt time.Time
}

// AppointmentDetail is an appointment hydrated with the names the list
// views need.
type AppointmentDetail struct {
	Appointment
	DoctorName  string
	PatientName string
}

type Prescription struct {
	ID            uuid.UUID
	AppointmentID uuid.UUID
	Medication    string
	Dosage        string
	Notes         string
	CreatedAt     time.Time
}
