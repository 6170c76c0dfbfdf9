package directory

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/clinicdesk/clinic-scheduling/internal/auth"
)

var (
	ErrAdminNotFound    = errors.New("admin not found")
	ErrDoctorNotFound   = errors.New("doctor not found")
	ErrPatientNotFound  = errors.New("patient not found")
	ErrDuplicateDoctor  = errors.New("doctor with this email already exists")
	ErrDuplicatePatient = errors.New("patient with this email or phone already exists")
)

// Repository contains all DB interactions needed by the directory service
// and the access gate.
type Repository interface {
	GetAdminByUsername(ctx context.Context, username string) (*Admin, error)
	GetDoctorByEmail(ctx context.Context, email string) (*Doctor, error)
	GetPatientByEmail(ctx context.Context, email string) (*Patient, error)

	GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
	ListDoctors(ctx context.Context) ([]Doctor, error)

	CreateDoctor(ctx context.Context, d Doctor) (*Doctor, error)
	UpdateDoctor(ctx context.Context, d Doctor) (*Doctor, error)
	DeleteDoctor(ctx context.Context, id uuid.UUID) error
	CreatePatient(ctx context.Context, p Patient) (*Patient, error)

	// SubjectExists backs the role gate: does this subject exist in the
	// store scoped to the role?
	SubjectExists(ctx context.Context, role auth.Role, subject string) (bool, error)
}
