package directory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/clinicdesk/clinic-scheduling/internal/auth"
)

type fakeRepo struct {
	admins   map[string]*Admin
	doctors  map[uuid.UUID]*Doctor
	patients map[uuid.UUID]*Patient
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		admins:   make(map[string]*Admin),
		doctors:  make(map[uuid.UUID]*Doctor),
		patients: make(map[uuid.UUID]*Patient),
	}
}

func (r *fakeRepo) GetAdminByUsername(_ context.Context, username string) (*Admin, error) {
	if a, ok := r.admins[username]; ok {
		return a, nil
	}
	return nil, ErrAdminNotFound
}

func (r *fakeRepo) GetDoctorByEmail(_ context.Context, email string) (*Doctor, error) {
	for _, d := range r.doctors {
		if d.Email == email {
			return d, nil
		}
	}
	return nil, ErrDoctorNotFound
}

func (r *fakeRepo) GetPatientByEmail(_ context.Context, email string) (*Patient, error) {
	for _, p := range r.patients {
		if p.Email == email {
			return p, nil
		}
	}
	return nil, ErrPatientNotFound
}

func (r *fakeRepo) GetDoctorByID(_ context.Context, id uuid.UUID) (*Doctor, error) {
	if d, ok := r.doctors[id]; ok {
		return d, nil
	}
	return nil, ErrDoctorNotFound
}

func (r *fakeRepo) ListDoctors(_ context.Context) ([]Doctor, error) {
	out := make([]Doctor, 0, len(r.doctors))
	for _, d := range r.doctors {
		out = append(out, *d)
	}
	return out, nil
}

func (r *fakeRepo) CreateDoctor(_ context.Context, d Doctor) (*Doctor, error) {
	for _, existing := range r.doctors {
		if existing.Email == d.Email {
			return nil, ErrDuplicateDoctor
		}
	}
	d.CreatedAt = time.Now()
	r.doctors[d.ID] = &d
	return &d, nil
}

func (r *fakeRepo) UpdateDoctor(_ context.Context, d Doctor) (*Doctor, error) {
	existing, ok := r.doctors[d.ID]
	if !ok {
		return nil, ErrDoctorNotFound
	}
	existing.Name = d.Name
	existing.Specialty = d.Specialty
	existing.AvailableTimes = d.AvailableTimes
	return existing, nil
}

func (r *fakeRepo) DeleteDoctor(_ context.Context, id uuid.UUID) error {
	if _, ok := r.doctors[id]; !ok {
		return ErrDoctorNotFound
	}
	delete(r.doctors, id)
	return nil
}

func (r *fakeRepo) CreatePatient(_ context.Context, p Patient) (*Patient, error) {
	for _, existing := range r.patients {
		if existing.Email == p.Email || existing.Phone == p.Phone {
			return nil, ErrDuplicatePatient
		}
	}
	p.CreatedAt = time.Now()
	r.patients[p.ID] = &p
	return &p, nil
}

func (r *fakeRepo) SubjectExists(_ context.Context, role auth.Role, subject string) (bool, error) {
	switch role {
	case auth.RoleAdmin:
		_, ok := r.admins[subject]
		return ok, nil
	case auth.RoleDoctor:
		_, err := r.GetDoctorByEmail(context.Background(), subject)
		return err == nil, nil
	case auth.RolePatient:
		_, err := r.GetPatientByEmail(context.Background(), subject)
		return err == nil, nil
	}
	return false, nil
}

func newTestService(t *testing.T) (*Service, *fakeRepo) {
	t.Helper()
	repo := newFakeRepo()
	tokens := auth.NewTokenService("test-secret", time.Hour)
	return NewService(repo, tokens, bcrypt.MinCost), repo
}

func addAdmin(t *testing.T, repo *fakeRepo, username, password string) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	repo.admins[username] = &Admin{ID: uuid.New(), Username: username, PasswordHash: string(hash)}
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	svc, repo := newTestService(t)

	addAdmin(t, repo, "root", "admin-pass")
	_, err := svc.RegisterPatient(ctx, "Ben", "ben@example.com", "555-0100", "patient-pass")
	require.NoError(t, err)

	t.Run("admin by username", func(t *testing.T) {
		token, err := svc.Login(ctx, auth.RoleAdmin, "root", "admin-pass")
		require.NoError(t, err)
		assert.NotEmpty(t, token)
	})

	t.Run("patient by email", func(t *testing.T) {
		token, err := svc.Login(ctx, auth.RolePatient, "ben@example.com", "patient-pass")
		require.NoError(t, err)
		assert.NotEmpty(t, token)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := svc.Login(ctx, auth.RolePatient, "ben@example.com", "nope")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("unknown subject", func(t *testing.T) {
		_, err := svc.Login(ctx, auth.RolePatient, "ghost@example.com", "patient-pass")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("subject in wrong role", func(t *testing.T) {
		_, err := svc.Login(ctx, auth.RoleDoctor, "ben@example.com", "patient-pass")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})
}

func TestRegisterPatient(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	p, err := svc.RegisterPatient(ctx, "Ben", "ben@example.com", "555-0100", "secret")
	require.NoError(t, err)
	assert.NotEqual(t, "secret", p.PasswordHash)

	t.Run("duplicate email", func(t *testing.T) {
		_, err := svc.RegisterPatient(ctx, "Other Ben", "ben@example.com", "555-0199", "secret")
		assert.ErrorIs(t, err, ErrDuplicatePatient)
	})

	t.Run("duplicate phone", func(t *testing.T) {
		_, err := svc.RegisterPatient(ctx, "Other Ben", "other@example.com", "555-0100", "secret")
		assert.ErrorIs(t, err, ErrDuplicatePatient)
	})
}

func TestRegisterDoctor(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	t.Run("custom template", func(t *testing.T) {
		d, err := svc.RegisterDoctor(ctx, "Dr. Wu", "wu@example.com", "Cardiology", "secret", []string{"09:00", "10:00"})
		require.NoError(t, err)
		assert.Equal(t, []string{"09:00", "10:00"}, d.AvailableTimes)
	})

	t.Run("empty template falls back to default", func(t *testing.T) {
		d, err := svc.RegisterDoctor(ctx, "Dr. Lin", "lin@example.com", "Dermatology", "secret", nil)
		require.NoError(t, err)
		assert.Equal(t, DefaultAvailableTimes, d.AvailableTimes)
	})

	t.Run("duplicate email", func(t *testing.T) {
		_, err := svc.RegisterDoctor(ctx, "Dr. Wu II", "wu@example.com", "Cardiology", "secret", nil)
		assert.ErrorIs(t, err, ErrDuplicateDoctor)
	})
}

func TestFilterDoctors(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	_, err := svc.RegisterDoctor(ctx, "Dr. Alice Wu", "wu@example.com", "Cardiology", "secret", []string{"09:00", "10:00"})
	require.NoError(t, err)
	_, err = svc.RegisterDoctor(ctx, "Dr. Bob Lin", "lin@example.com", "Dermatology", "secret", []string{"14:00", "15:00"})
	require.NoError(t, err)

	t.Run("no filters returns everyone", func(t *testing.T) {
		doctors, err := svc.FilterDoctors(ctx, "", "", "")
		require.NoError(t, err)
		assert.Len(t, doctors, 2)
	})

	t.Run("name substring is case insensitive", func(t *testing.T) {
		doctors, err := svc.FilterDoctors(ctx, "alice", "", "")
		require.NoError(t, err)
		require.Len(t, doctors, 1)
		assert.Equal(t, "Dr. Alice Wu", doctors[0].Name)
	})

	t.Run("specialty exact match", func(t *testing.T) {
		doctors, err := svc.FilterDoctors(ctx, "", "dermatology", "")
		require.NoError(t, err)
		require.Len(t, doctors, 1)
		assert.Equal(t, "Dr. Bob Lin", doctors[0].Name)
	})

	t.Run("specialty substring does not match", func(t *testing.T) {
		doctors, err := svc.FilterDoctors(ctx, "", "derm", "")
		require.NoError(t, err)
		assert.Empty(t, doctors)
	})

	t.Run("AM period", func(t *testing.T) {
		doctors, err := svc.FilterDoctors(ctx, "", "", "AM")
		require.NoError(t, err)
		require.Len(t, doctors, 1)
		assert.Equal(t, "Dr. Alice Wu", doctors[0].Name)
	})

	t.Run("PM period", func(t *testing.T) {
		doctors, err := svc.FilterDoctors(ctx, "", "", "pm")
		require.NoError(t, err)
		require.Len(t, doctors, 1)
		assert.Equal(t, "Dr. Bob Lin", doctors[0].Name)
	})
}

func TestUpdateAndRemoveDoctor(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	d, err := svc.RegisterDoctor(ctx, "Dr. Wu", "wu@example.com", "Cardiology", "secret", nil)
	require.NoError(t, err)

	updated, err := svc.UpdateDoctor(ctx, Doctor{
		ID:             d.ID,
		Name:           "Dr. Alice Wu",
		Specialty:      "Cardiac Surgery",
		AvailableTimes: []string{"09:00"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Dr. Alice Wu", updated.Name)
	assert.Equal(t, "Cardiac Surgery", updated.Specialty)

	require.NoError(t, svc.RemoveDoctor(ctx, d.ID))
	_, err = svc.GetDoctor(ctx, d.ID)
	assert.ErrorIs(t, err, ErrDoctorNotFound)

	t.Run("update missing doctor", func(t *testing.T) {
		_, err := svc.UpdateDoctor(ctx, Doctor{ID: uuid.New(), Name: "Nobody"})
		assert.ErrorIs(t, err, ErrDoctorNotFound)
	})
}
