package directory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/clinicdesk/clinic-scheduling/internal/auth"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Service handles principal registration, login and the doctor catalog.
type Service struct {
	repo       Repository
	tokens     *auth.TokenService
	bcryptCost int
}

func NewService(repo Repository, tokens *auth.TokenService, bcryptCost int) *Service {
	return &Service{
		repo:       repo,
		tokens:     tokens,
		bcryptCost: bcryptCost,
	}
}

// Login validates credentials for a role-scoped principal and issues a token.
// Unknown subject and wrong password both come back as ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, role auth.Role, subject, password string) (string, error) {
	var hash string

	switch role {
	case auth.RoleAdmin:
		admin, err := s.repo.GetAdminByUsername(ctx, subject)
		if err != nil {
			return "", loginErr(err)
		}
		hash = admin.PasswordHash
	case auth.RoleDoctor:
		doc, err := s.repo.GetDoctorByEmail(ctx, subject)
		if err != nil {
			return "", loginErr(err)
		}
		hash = doc.PasswordHash
	case auth.RolePatient:
		pat, err := s.repo.GetPatientByEmail(ctx, subject)
		if err != nil {
			return "", loginErr(err)
		}
		hash = pat.PasswordHash
	default:
		return "", fmt.Errorf("unknown role %q", role)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(subject)
	if err != nil {
		return "", fmt.Errorf("issue token: %w", err)
	}
	return token, nil
}

func loginErr(err error) error {
	if isNotFound(err) {
		return ErrInvalidCredentials
	}
	return fmt.Errorf("load principal: %w", err)
}

// RegisterPatient creates a patient with a hashed password. Email and phone
// must both be unused.
func (s *Service) RegisterPatient(ctx context.Context, name, email, phone, password string) (*Patient, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	patient := Patient{
		ID:           uuid.New(),
		Name:         name,
		Email:        email,
		Phone:        phone,
		PasswordHash: string(hash),
	}

	created, err := s.repo.CreatePatient(ctx, patient)
	if err != nil {
		if errors.Is(err, ErrDuplicatePatient) {
			return nil, err
		}
		return nil, fmt.Errorf("create patient: %w", err)
	}
	return created, nil
}

// RegisterDoctor creates a doctor; admin-gated by the caller. An empty slot
// template falls back to the default catalog.
func (s *Service) RegisterDoctor(ctx context.Context, name, email, specialty, password string, availableTimes []string) (*Doctor, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	if len(availableTimes) == 0 {
		availableTimes = DefaultAvailableTimes
	}

	doctor := Doctor{
		ID:             uuid.New(),
		Name:           name,
		Email:          email,
		PasswordHash:   string(hash),
		Specialty:      specialty,
		AvailableTimes: availableTimes,
	}

	created, err := s.repo.CreateDoctor(ctx, doctor)
	if err != nil {
		if errors.Is(err, ErrDuplicateDoctor) {
			return nil, err
		}
		return nil, fmt.Errorf("create doctor: %w", err)
	}
	return created, nil
}

func (s *Service) UpdateDoctor(ctx context.Context, d Doctor) (*Doctor, error) {
	updated, err := s.repo.UpdateDoctor(ctx, d)
	if err != nil {
		if errors.Is(err, ErrDoctorNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("update doctor: %w", err)
	}
	return updated, nil
}

func (s *Service) RemoveDoctor(ctx context.Context, id uuid.UUID) error {
	return s.repo.DeleteDoctor(ctx, id)
}

func (s *Service) GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	return s.repo.GetDoctorByID(ctx, id)
}

// DoctorByEmail and PatientByEmail resolve an authenticated token subject to
// its principal record.
func (s *Service) DoctorByEmail(ctx context.Context, email string) (*Doctor, error) {
	return s.repo.GetDoctorByEmail(ctx, email)
}

func (s *Service) PatientByEmail(ctx context.Context, email string) (*Patient, error) {
	return s.repo.GetPatientByEmail(ctx, email)
}

// FilterDoctors narrows the catalog by name substring, specialty and AM/PM
// period over the availability template. Empty filters match everything.
func (s *Service) FilterDoctors(ctx context.Context, name, specialty, period string) ([]Doctor, error) {
	doctors, err := s.repo.ListDoctors(ctx)
	if err != nil {
		return nil, fmt.Errorf("list doctors: %w", err)
	}

	var result []Doctor
	for _, d := range doctors {
		if name != "" && !strings.Contains(strings.ToLower(d.Name), strings.ToLower(name)) {
			continue
		}
		if specialty != "" && !strings.EqualFold(d.Specialty, specialty) {
			continue
		}
		if period != "" && !availableInPeriod(d.AvailableTimes, period) {
			continue
		}
		result = append(result, d)
	}

	return result, nil
}

func availableInPeriod(times []string, period string) bool {
	am := strings.EqualFold(period, "AM")
	for _, ts := range times {
		t, err := time.Parse("15:04", ts)
		if err != nil {
			continue
		}
		if am == (t.Hour() < 12) {
			return true
		}
	}
	return false
}
