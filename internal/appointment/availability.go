package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/clinicdesk/clinic-scheduling/internal/directory"
)

// Availability computes the bookable slots for a doctor on a calendar day:
// the doctor's slot template minus the start times of Scheduled appointments,
// in template (chronological) order. An unknown doctor yields an empty
// sequence, not an error, so the contract stays total.
func (s *Service) Availability(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]Slot, error) {
	doc, err := s.doctors.GetDoctorByID(ctx, doctorID)
	if err != nil {
		if errors.Is(err, directory.ErrDoctorNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load doctor: %w", err)
	}

	return s.availabilityForDoctor(ctx, doc, date, uuid.Nil)
}

// availabilityForDoctor does the subtraction. excludeAppt removes one
// appointment from the conflict set so an update can re-check a new time
// without colliding with its own current slot.
func (s *Service) availabilityForDoctor(ctx context.Context, doc *directory.Doctor, date time.Time, excludeAppt uuid.UUID) ([]Slot, error) {
	template := doc.AvailableTimes
	if len(template) == 0 {
		template = directory.DefaultAvailableTimes
	}

	booked, err := s.repo.ListScheduledByDoctorAndDate(ctx, doc.ID, date)
	if err != nil {
		return nil, fmt.Errorf("list scheduled appointments: %w", err)
	}

	taken := make(map[string]struct{}, len(booked))
	for _, appt := range booked {
		if excludeAppt != uuid.Nil && appt.ID == excludeAppt {
			continue
		}
		taken[appt.StartTime.Format("15:04")] = struct{}{}
	}

	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())

	var slots []Slot
	for _, ts := range template {
		t, err := time.Parse("15:04", ts)
		if err != nil {
			// A malformed template entry is configuration damage, not a
			// reason to fail the whole day.
			continue
		}
		if _, ok := taken[ts]; ok {
			continue
		}

		start := day.Add(time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute)
		slots = append(slots, Slot{Start: start, End: start.Add(SlotDuration)})
	}

	return slots, nil
}

// ValidateBooking checks a candidate appointment: the doctor must exist and
// the start time must be present in the doctor's availability for that day.
func (s *Service) ValidateBooking(ctx context.Context, doctorID uuid.UUID, startTime time.Time) error {
	return s.validateSlot(ctx, doctorID, startTime, uuid.Nil)
}

func (s *Service) validateSlot(ctx context.Context, doctorID uuid.UUID, startTime time.Time, excludeAppt uuid.UUID) error {
	doc, err := s.doctors.GetDoctorByID(ctx, doctorID)
	if err != nil {
		if errors.Is(err, directory.ErrDoctorNotFound) {
			return directory.ErrDoctorNotFound
		}
		return fmt.Errorf("load doctor: %w", err)
	}

	slots, err := s.availabilityForDoctor(ctx, doc, startTime, excludeAppt)
	if err != nil {
		return err
	}

	for _, slot := range slots {
		if slot.Start.Equal(startTime) {
			return nil
		}
	}

	return ErrSlotUnavailable
}
