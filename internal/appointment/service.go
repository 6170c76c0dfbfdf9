package appointment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/clinicdesk/clinic-scheduling/internal/directory"
	redisclient "github.com/clinicdesk/clinic-scheduling/internal/redis"
)

var (
	ErrSlotUnavailable         = errors.New("slot is not available")
	ErrSlotContended           = errors.New("slot is currently being booked, please retry")
	ErrNotOwner                = errors.New("appointment does not belong to this patient")
	ErrInvalidStatusTransition = errors.New("invalid status transition")
	ErrPrescriptionExists      = errors.New("prescription already exists for this appointment")
)

// DoctorSource is the slice of the directory the booking engine needs.
type DoctorSource interface {
	GetDoctorByID(ctx context.Context, id uuid.UUID) (*directory.Doctor, error)
}

type Service struct {
	repo    Repository
	doctors DoctorSource
	locker  redisclient.Locker
}

func NewService(repo Repository, doctors DoctorSource, locker redisclient.Locker) *Service {
	return &Service{
		repo:    repo,
		doctors: doctors,
		locker:  locker,
	}
}

// Book reserves a slot for a patient. The distributed lock serializes
// concurrent requests for the same doctor/start-time pair, and the store's
// unique index backstops the race either way.
func (s *Service) Book(ctx context.Context, doctorID, patientID uuid.UUID, startTime time.Time, requestingPatientID uuid.UUID) (*Appointment, error) {
	if patientID != requestingPatientID {
		return nil, ErrNotOwner
	}

	if err := s.validateSlot(ctx, doctorID, startTime, uuid.Nil); err != nil {
		return nil, err
	}

	var created *Appointment

	err := s.locker.WithBookingLock(ctx, doctorID, startTime, func(lockCtx context.Context) error {
		// Re-check inside the critical section: another booking may have
		// won between the first validation and lock acquisition.
		if err := s.validateSlot(lockCtx, doctorID, startTime, uuid.Nil); err != nil {
			return err
		}

		appt, err := s.repo.CreateScheduled(lockCtx, doctorID, patientID, startTime)
		if err != nil {
			return err
		}

		created = appt
		return nil
	})

	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrSlotContended
		}
		return nil, err
	}

	return created, nil
}

// Update moves a Scheduled appointment to a new start time. Only the owning
// patient may do this, and the new time is re-validated with the
// appointment's own current slot excluded from the conflict set.
func (s *Service) Update(ctx context.Context, id uuid.UUID, newStart time.Time, requestingPatientID uuid.UUID) (*Appointment, error) {
	existing, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing.PatientID != requestingPatientID {
		return nil, ErrNotOwner
	}
	if existing.Status != StatusScheduled {
		return nil, ErrInvalidStatusTransition
	}

	var updated *Appointment

	err = s.locker.WithBookingLock(ctx, existing.DoctorID, newStart, func(lockCtx context.Context) error {
		if err := s.validateSlot(lockCtx, existing.DoctorID, newStart, existing.ID); err != nil {
			return err
		}

		appt, err := s.repo.UpdateStartTime(lockCtx, existing.ID, newStart)
		if err != nil {
			return err
		}

		updated = appt
		return nil
	})

	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrSlotContended
		}
		return nil, err
	}

	return updated, nil
}

// Cancel transitions a Scheduled appointment to Cancelled. The absence of a
// Scheduled row is what frees the slot; no separate bookkeeping.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, requestingPatientID uuid.UUID) error {
	existing, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return err
	}
	if existing.PatientID != requestingPatientID {
		return ErrNotOwner
	}

	_, err = s.repo.UpdateStatus(ctx, existing.ID, StatusScheduled, StatusCancelled)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			// The row exists but is no longer Scheduled.
			return ErrInvalidStatusTransition
		}
		return fmt.Errorf("cancel appointment: %w", err)
	}

	return nil
}

// ChangeStatus performs an administrative or doctor-triggered transition.
// Ownership is not checked here; the role gate at the boundary already was.
func (s *Service) ChangeStatus(ctx context.Context, id uuid.UUID, to Status) (*Appointment, error) {
	existing, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !canTransition(existing.Status, to) {
		return nil, ErrInvalidStatusTransition
	}

	updated, err := s.repo.UpdateStatus(ctx, existing.ID, existing.Status, to)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, ErrInvalidStatusTransition
		}
		return nil, fmt.Errorf("change status: %w", err)
	}

	return updated, nil
}

func canTransition(from, to Status) bool {
	if from != StatusScheduled {
		return false
	}
	switch to {
	case StatusCancelled, StatusCompleted, StatusPrescriptionIssued:
		return true
	default:
		return false
	}
}

func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.repo.GetAppointmentByID(ctx, id)
}

// ListForPatient returns a patient's appointments, optionally narrowed to
// past (Completed or PrescriptionIssued) or upcoming (Scheduled) ones.
func (s *Service) ListForPatient(ctx context.Context, patientID uuid.UUID, condition string) ([]AppointmentDetail, error) {
	var statuses []Status
	switch condition {
	case "past":
		statuses = []Status{StatusCompleted, StatusPrescriptionIssued}
	case "upcoming":
		statuses = []Status{StatusScheduled}
	case "":
		// all
	default:
		return nil, fmt.Errorf("unknown condition %q", condition)
	}

	details, err := s.repo.ListDetailByPatient(ctx, patientID, statuses)
	if err != nil {
		return nil, fmt.Errorf("list appointments by patient: %w", err)
	}
	return details, nil
}

// ListForDoctorDay returns a doctor's appointments for a calendar day,
// optionally filtered by patient-name substring.
func (s *Service) ListForDoctorDay(ctx context.Context, doctorID uuid.UUID, date time.Time, patientName string) ([]AppointmentDetail, error) {
	details, err := s.repo.ListDetailByDoctorAndDate(ctx, doctorID, date)
	if err != nil {
		return nil, fmt.Errorf("list appointments by doctor: %w", err)
	}

	if patientName == "" {
		return details, nil
	}

	var filtered []AppointmentDetail
	for _, d := range details {
		if strings.Contains(strings.ToLower(d.PatientName), strings.ToLower(patientName)) {
			filtered = append(filtered, d)
		}
	}
	return filtered, nil
}

// IssuePrescription records a prescription for an appointment and moves the
// appointment to PrescriptionIssued. At most one prescription per
// appointment.
func (s *Service) IssuePrescription(ctx context.Context, appointmentID uuid.UUID, medication, dosage, notes string) (*Prescription, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, appointmentID)
	if err != nil {
		return nil, err
	}

	p := Prescription{
		ID:            uuid.New(),
		AppointmentID: appt.ID,
		Medication:    medication,
		Dosage:        dosage,
		Notes:         notes,
	}

	created, err := s.repo.CreatePrescription(ctx, p)
	if err != nil {
		return nil, err
	}

	if appt.Status == StatusScheduled {
		if _, err := s.repo.UpdateStatus(ctx, appt.ID, StatusScheduled, StatusPrescriptionIssued); err != nil {
			log.Warn().Err(err).
				Str("appointment_id", appt.ID.String()).
				Msg("prescription saved but status transition failed")
		}
	}

	return created, nil
}

func (s *Service) GetPrescription(ctx context.Context, appointmentID uuid.UUID) (*Prescription, error) {
	return s.repo.GetPrescriptionByAppointment(ctx, appointmentID)
}

// CompletePastAppointments is called by the status worker: Scheduled
// appointments whose start time has passed become Completed.
func (s *Service) CompletePastAppointments(ctx context.Context, now time.Time) (int, error) {
	candidates, err := s.repo.FindScheduledBefore(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("find past scheduled appointments: %w", err)
	}

	completed := 0
	for _, appt := range candidates {
		_, err := s.repo.UpdateStatus(ctx, appt.ID, StatusScheduled, StatusCompleted)
		if err != nil && !errors.Is(err, ErrAppointmentNotFound) {
			log.Error().Err(err).
				Str("appointment_id", appt.ID.String()).
				Msg("failed to complete appointment")
			continue
		}
		completed++
	}

	return completed, nil
}
