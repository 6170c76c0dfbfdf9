package appointment

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/clinicdesk/clinic-scheduling/internal/directory"
)

// fakeRepo is an in-memory Repository that enforces the same one-scheduled-
// appointment-per-slot constraint the Postgres partial unique index does.
type fakeRepo struct {
	mu            sync.Mutex
	appts         map[uuid.UUID]*Appointment
	prescriptions map[uuid.UUID]*Prescription // keyed by appointment ID
	doctorNames   map[uuid.UUID]string
	patientNames  map[uuid.UUID]string
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		appts:         make(map[uuid.UUID]*Appointment),
		prescriptions: make(map[uuid.UUID]*Prescription),
		doctorNames:   make(map[uuid.UUID]string),
		patientNames:  make(map[uuid.UUID]string),
	}
}

func (f *fakeRepo) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.appts[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	cp := *a
	return &cp, nil
}

func (f *fakeRepo) ListScheduledByDoctorAndDate(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var result []Appointment
	for _, a := range f.appts {
		if a.DoctorID == doctorID && a.Status == StatusScheduled && sameDay(a.StartTime, date) {
			result = append(result, *a)
		}
	}
	return result, nil
}

func (f *fakeRepo) CreateScheduled(ctx context.Context, doctorID, patientID uuid.UUID, startTime time.Time) (*Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, a := range f.appts {
		if a.DoctorID == doctorID && a.Status == StatusScheduled && a.StartTime.Equal(startTime) {
			return nil, ErrSlotUnavailable
		}
	}

	appt := &Appointment{
		ID:        uuid.New(),
		DoctorID:  doctorID,
		PatientID: patientID,
		StartTime: startTime,
		Status:    StatusScheduled,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	f.appts[appt.ID] = appt

	cp := *appt
	return &cp, nil
}

func (f *fakeRepo) UpdateStartTime(ctx context.Context, id uuid.UUID, startTime time.Time) (*Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	a, ok := f.appts[id]
	if !ok || a.Status != StatusScheduled {
		return nil, ErrAppointmentNotFound
	}

	for _, other := range f.appts {
		if other.ID != id && other.DoctorID == a.DoctorID && other.Status == StatusScheduled && other.StartTime.Equal(startTime) {
			return nil, ErrSlotUnavailable
		}
	}

	a.StartTime = startTime
	a.UpdatedAt = time.Now()
	cp := *a
	return &cp, nil
}

func (f *fakeRepo) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	a, ok := f.appts[id]
	if !ok || a.Status != from {
		return nil, ErrAppointmentNotFound
	}

	a.Status = to
	a.UpdatedAt = time.Now()
	cp := *a
	return &cp, nil
}

func (f *fakeRepo) ListDetailByPatient(ctx context.Context, patientID uuid.UUID, statuses []Status) ([]AppointmentDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var result []AppointmentDetail
	for _, a := range f.appts {
		if a.PatientID != patientID {
			continue
		}
		if len(statuses) > 0 && !statusIn(a.Status, statuses) {
			continue
		}
		result = append(result, f.detail(a))
	}
	return result, nil
}

func (f *fakeRepo) ListDetailByDoctorAndDate(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]AppointmentDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var result []AppointmentDetail
	for _, a := range f.appts {
		if a.DoctorID == doctorID && sameDay(a.StartTime, date) {
			result = append(result, f.detail(a))
		}
	}
	return result, nil
}

func (f *fakeRepo) FindScheduledBefore(ctx context.Context, cutoff time.Time) ([]Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var result []Appointment
	for _, a := range f.appts {
		if a.Status == StatusScheduled && a.StartTime.Before(cutoff) {
			result = append(result, *a)
		}
	}
	return result, nil
}

func (f *fakeRepo) CreatePrescription(ctx context.Context, p Prescription) (*Prescription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.prescriptions[p.AppointmentID]; ok {
		return nil, ErrPrescriptionExists
	}
	p.CreatedAt = time.Now()
	f.prescriptions[p.AppointmentID] = &p
	cp := p
	return &cp, nil
}

func (f *fakeRepo) GetPrescriptionByAppointment(ctx context.Context, appointmentID uuid.UUID) (*Prescription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	p, ok := f.prescriptions[appointmentID]
	if !ok {
		return nil, ErrPrescriptionNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeRepo) detail(a *Appointment) AppointmentDetail {
	return AppointmentDetail{
		Appointment: *a,
		DoctorName:  f.doctorNames[a.DoctorID],
		PatientName: f.patientNames[a.PatientID],
	}
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func statusIn(s Status, set []Status) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}

// fakeDoctors implements DoctorSource.
type fakeDoctors struct {
	docs map[uuid.UUID]*directory.Doctor
}

func (f *fakeDoctors) GetDoctorByID(ctx context.Context, id uuid.UUID) (*directory.Doctor, error) {
	d, ok := f.docs[id]
	if !ok {
		return nil, directory.ErrDoctorNotFound
	}
	return d, nil
}

// localLocker serializes critical sections per key with in-process mutexes,
// standing in for the Redis lock.
type localLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newLocalLocker() *localLocker {
	return &localLocker{locks: make(map[string]*sync.Mutex)}
}

func (l *localLocker) WithBookingLock(ctx context.Context, doctorID uuid.UUID, startTime time.Time, fn func(ctx context.Context) error) error {
	key := doctorID.String() + "/" + startTime.Format(time.RFC3339)

	l.mu.Lock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	l.mu.Unlock()

	m.Lock()
	defer m.Unlock()
	return fn(ctx)
}
