package appointment

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBook_OwnershipRequired(t *testing.T) {
	svc, repo, docs := newTestService(t)
	docID := addDoctor(repo, docs, "Dr. Reyes", []string{"09:00"})
	ada := addPatient(repo, "Ada")
	ben := addPatient(repo, "Ben")

	nine := time.Date(2024, 1, 10, 9, 0, 0, 0, time.Local)

	// Ben cannot book on Ada's behalf.
	_, err := svc.Book(context.Background(), docID, ada, nine, ben)
	assert.ErrorIs(t, err, ErrNotOwner)
}

func TestBook_ConcurrentSameSlotOneWinner(t *testing.T) {
	svc, repo, docs := newTestService(t)
	docID := addDoctor(repo, docs, "Dr. Reyes", []string{"09:00"})

	nine := time.Date(2024, 1, 10, 9, 0, 0, 0, time.Local)

	const workers = 16
	var wg sync.WaitGroup
	errs := make([]error, workers)

	for i := 0; i < workers; i++ {
		patID := addPatient(repo, "patient")
		wg.Add(1)
		go func(i int, patID uuid.UUID) {
			defer wg.Done()
			_, errs[i] = svc.Book(context.Background(), docID, patID, nine, patID)
		}(i, patID)
	}
	wg.Wait()

	wins, conflicts := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrSlotUnavailable), errors.Is(err, ErrSlotContended):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	assert.Equal(t, 1, wins, "exactly one booking must win")
	assert.Equal(t, workers-1, conflicts)
}

func TestUpdate_NonOwnerRejected(t *testing.T) {
	svc, repo, docs := newTestService(t)
	docID := addDoctor(repo, docs, "Dr. Reyes", []string{"09:00", "10:00"})
	ada := addPatient(repo, "Ada")
	ben := addPatient(repo, "Ben")

	nine := time.Date(2024, 1, 10, 9, 0, 0, 0, time.Local)
	ten := nine.Add(time.Hour)

	appt, err := svc.Book(context.Background(), docID, ada, nine, ada)
	require.NoError(t, err)

	// Slot validity is irrelevant when the caller does not own the booking.
	_, err = svc.Update(context.Background(), appt.ID, ten, ben)
	assert.ErrorIs(t, err, ErrNotOwner)
}

func TestUpdate_MoveToFreeSlot(t *testing.T) {
	svc, repo, docs := newTestService(t)
	docID := addDoctor(repo, docs, "Dr. Reyes", []string{"09:00", "10:00"})
	ada := addPatient(repo, "Ada")

	nine := time.Date(2024, 1, 10, 9, 0, 0, 0, time.Local)
	ten := nine.Add(time.Hour)

	appt, err := svc.Book(context.Background(), docID, ada, nine, ada)
	require.NoError(t, err)

	updated, err := svc.Update(context.Background(), appt.ID, ten, ada)
	require.NoError(t, err)
	assert.True(t, updated.StartTime.Equal(ten))

	// The old slot is free again, the new one is not.
	slots, err := svc.Availability(context.Background(), docID, nine)
	require.NoError(t, err)
	assert.Equal(t, []string{"09:00"}, slotStarts(slots))
}

func TestUpdate_OwnSlotExcludedFromConflictSet(t *testing.T) {
	svc, repo, docs := newTestService(t)
	docID := addDoctor(repo, docs, "Dr. Reyes", []string{"09:00", "10:00"})
	ada := addPatient(repo, "Ada")

	nine := time.Date(2024, 1, 10, 9, 0, 0, 0, time.Local)

	appt, err := svc.Book(context.Background(), docID, ada, nine, ada)
	require.NoError(t, err)

	// Re-submitting the current time must not collide with itself.
	_, err = svc.Update(context.Background(), appt.ID, nine, ada)
	assert.NoError(t, err)
}

func TestUpdate_TakenSlotRejected(t *testing.T) {
	svc, repo, docs := newTestService(t)
	docID := addDoctor(repo, docs, "Dr. Reyes", []string{"09:00", "10:00"})
	ada := addPatient(repo, "Ada")
	ben := addPatient(repo, "Ben")

	nine := time.Date(2024, 1, 10, 9, 0, 0, 0, time.Local)
	ten := nine.Add(time.Hour)

	_, err := svc.Book(context.Background(), docID, ada, nine, ada)
	require.NoError(t, err)

	appt, err := svc.Book(context.Background(), docID, ben, ten, ben)
	require.NoError(t, err)

	_, err = svc.Update(context.Background(), appt.ID, nine, ben)
	assert.ErrorIs(t, err, ErrSlotUnavailable)
}

func TestUpdate_NotFound(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ada := addPatient(repo, "Ada")

	_, err := svc.Update(context.Background(), uuid.New(), time.Now(), ada)
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
}

func TestCancel(t *testing.T) {
	svc, repo, docs := newTestService(t)
	docID := addDoctor(repo, docs, "Dr. Reyes", []string{"09:00"})
	ada := addPatient(repo, "Ada")
	ben := addPatient(repo, "Ben")

	nine := time.Date(2024, 1, 10, 9, 0, 0, 0, time.Local)

	appt, err := svc.Book(context.Background(), docID, ada, nine, ada)
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Cancel(context.Background(), appt.ID, ben), ErrNotOwner)
	assert.ErrorIs(t, svc.Cancel(context.Background(), uuid.New(), ada), ErrAppointmentNotFound)

	require.NoError(t, svc.Cancel(context.Background(), appt.ID, ada))

	got, err := svc.GetAppointment(context.Background(), appt.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, got.Status)

	// Cancelled is terminal.
	assert.ErrorIs(t, svc.Cancel(context.Background(), appt.ID, ada), ErrInvalidStatusTransition)
}

func TestChangeStatus(t *testing.T) {
	svc, repo, docs := newTestService(t)
	docID := addDoctor(repo, docs, "Dr. Reyes", []string{"09:00"})
	ada := addPatient(repo, "Ada")

	nine := time.Date(2024, 1, 10, 9, 0, 0, 0, time.Local)

	appt, err := svc.Book(context.Background(), docID, ada, nine, ada)
	require.NoError(t, err)

	updated, err := svc.ChangeStatus(context.Background(), appt.ID, StatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, updated.Status)

	// Completed is terminal for booking.
	_, err = svc.ChangeStatus(context.Background(), appt.ID, StatusCancelled)
	assert.ErrorIs(t, err, ErrInvalidStatusTransition)

	_, err = svc.ChangeStatus(context.Background(), uuid.New(), StatusCompleted)
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
}

func TestIssuePrescription(t *testing.T) {
	svc, repo, docs := newTestService(t)
	docID := addDoctor(repo, docs, "Dr. Reyes", []string{"09:00"})
	ada := addPatient(repo, "Ada")

	nine := time.Date(2024, 1, 10, 9, 0, 0, 0, time.Local)

	appt, err := svc.Book(context.Background(), docID, ada, nine, ada)
	require.NoError(t, err)

	p, err := svc.IssuePrescription(context.Background(), appt.ID, "Amoxicillin", "500mg", "after meals")
	require.NoError(t, err)
	assert.Equal(t, appt.ID, p.AppointmentID)

	got, err := svc.GetAppointment(context.Background(), appt.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPrescriptionIssued, got.Status)

	_, err = svc.IssuePrescription(context.Background(), appt.ID, "Amoxicillin", "500mg", "")
	assert.ErrorIs(t, err, ErrPrescriptionExists)

	fetched, err := svc.GetPrescription(context.Background(), appt.ID)
	require.NoError(t, err)
	assert.Equal(t, "Amoxicillin", fetched.Medication)

	_, err = svc.GetPrescription(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrPrescriptionNotFound)
}

func TestCompletePastAppointments(t *testing.T) {
	svc, repo, docs := newTestService(t)
	docID := addDoctor(repo, docs, "Dr. Reyes", []string{"09:00", "10:00"})
	ada := addPatient(repo, "Ada")
	ben := addPatient(repo, "Ben")

	past := time.Date(2024, 1, 10, 9, 0, 0, 0, time.Local)
	future := time.Date(2024, 1, 12, 10, 0, 0, 0, time.Local)

	pastAppt, err := svc.Book(context.Background(), docID, ada, past, ada)
	require.NoError(t, err)
	futureAppt, err := svc.Book(context.Background(), docID, ben, future, ben)
	require.NoError(t, err)

	n, err := svc.CompletePastAppointments(context.Background(), time.Date(2024, 1, 11, 0, 0, 0, 0, time.Local))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, _ := svc.GetAppointment(context.Background(), pastAppt.ID)
	assert.Equal(t, StatusCompleted, got.Status)

	got, _ = svc.GetAppointment(context.Background(), futureAppt.ID)
	assert.Equal(t, StatusScheduled, got.Status)
}

func TestListForPatient(t *testing.T) {
	svc, repo, docs := newTestService(t)
	docID := addDoctor(repo, docs, "Dr. Reyes", []string{"09:00", "10:00"})
	ada := addPatient(repo, "Ada")

	nine := time.Date(2024, 1, 10, 9, 0, 0, 0, time.Local)
	ten := nine.Add(time.Hour)

	a1, err := svc.Book(context.Background(), docID, ada, nine, ada)
	require.NoError(t, err)
	_, err = svc.Book(context.Background(), docID, ada, ten, ada)
	require.NoError(t, err)

	_, err = svc.ChangeStatus(context.Background(), a1.ID, StatusCompleted)
	require.NoError(t, err)

	past, err := svc.ListForPatient(context.Background(), ada, "past")
	require.NoError(t, err)
	assert.Len(t, past, 1)

	upcoming, err := svc.ListForPatient(context.Background(), ada, "upcoming")
	require.NoError(t, err)
	assert.Len(t, upcoming, 1)

	all, err := svc.ListForPatient(context.Background(), ada, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = svc.ListForPatient(context.Background(), ada, "sideways")
	assert.Error(t, err)
}

func TestListForDoctorDay_PatientNameFilter(t *testing.T) {
	svc, repo, docs := newTestService(t)
	docID := addDoctor(repo, docs, "Dr. Reyes", []string{"09:00", "10:00"})
	ada := addPatient(repo, "Ada Lovelace")
	ben := addPatient(repo, "Ben Kingsley")

	date := time.Date(2024, 1, 10, 0, 0, 0, 0, time.Local)

	_, err := svc.Book(context.Background(), docID, ada, date.Add(9*time.Hour), ada)
	require.NoError(t, err)
	_, err = svc.Book(context.Background(), docID, ben, date.Add(10*time.Hour), ben)
	require.NoError(t, err)

	all, err := svc.ListForDoctorDay(context.Background(), docID, date, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	filtered, err := svc.ListForDoctorDay(context.Background(), docID, date, "lovelace")
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "Ada Lovelace", filtered[0].PatientName)
}
