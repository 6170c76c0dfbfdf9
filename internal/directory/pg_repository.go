package directory

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sony/gobreaker"

	"github.com/clinicdesk/clinic-scheduling/internal/auth"
)

const uniqueViolation = "23505"

type PgRepository struct {
	pool    *pgxpool.Pool
	breaker *gobreaker.CircuitBreaker
}

func NewPgRepository(pool *pgxpool.Pool, breaker *gobreaker.CircuitBreaker) *PgRepository {
	return &PgRepository{pool: pool, breaker: breaker}
}

// Helpers

func scanAdmin(row pgx.Row) (*Admin, error) {
	var a Admin

	err := row.Scan(
		&a.ID,
		&a.Username,
		&a.PasswordHash,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAdminNotFound
		}
		return nil, err
	}

	return &a, nil
}

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor

	err := row.Scan(
		&d.ID,
		&d.Name,
		&d.Email,
		&d.PasswordHash,
		&d.Specialty,
		&d.AvailableTimes,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}

	return &d, nil
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient

	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Email,
		&p.Phone,
		&p.PasswordHash,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}

	return &p, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrAdminNotFound) ||
		errors.Is(err, ErrDoctorNotFound) ||
		errors.Is(err, ErrPatientNotFound)
}

// retryRead retries a read once on transient failure. Not-found is a domain
// outcome, not a failure; writes never go through here.
func retryRead(ctx context.Context, fn func(context.Context) error) error {
	err := fn(ctx)
	if err == nil || isNotFound(err) || ctx.Err() != nil {
		return err
	}
	return fn(ctx)
}

// Interface methods

func (r *PgRepository) GetAdminByUsername(ctx context.Context, username string) (*Admin, error) {
	var admin *Admin
	err := retryRead(ctx, func(ctx context.Context) error {
		row := r.pool.QueryRow(ctx, `
			SELECT id, username, password_hash, created_at, updated_at
			FROM admins
			WHERE username = $1
		`, username)
		var err error
		admin, err = scanAdmin(row)
		return err
	})
	return admin, err
}

func (r *PgRepository) GetDoctorByEmail(ctx context.Context, email string) (*Doctor, error) {
	var doc *Doctor
	err := retryRead(ctx, func(ctx context.Context) error {
		row := r.pool.QueryRow(ctx, `
			SELECT id, name, email, password_hash, specialty, available_times, created_at, updated_at
			FROM doctors
			WHERE email = $1
		`, email)
		var err error
		doc, err = scanDoctor(row)
		return err
	})
	return doc, err
}

func (r *PgRepository) GetPatientByEmail(ctx context.Context, email string) (*Patient, error) {
	var pat *Patient
	err := retryRead(ctx, func(ctx context.Context) error {
		row := r.pool.QueryRow(ctx, `
			SELECT id, name, email, phone, password_hash, created_at, updated_at
			FROM patients
			WHERE email = $1
		`, email)
		var err error
		pat, err = scanPatient(row)
		return err
	})
	return pat, err
}

func (r *PgRepository) GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	var doc *Doctor
	err := retryRead(ctx, func(ctx context.Context) error {
		row := r.pool.QueryRow(ctx, `
			SELECT id, name, email, password_hash, specialty, available_times, created_at, updated_at
			FROM doctors
			WHERE id = $1
		`, id)
		var err error
		doc, err = scanDoctor(row)
		return err
	})
	return doc, err
}

func (r *PgRepository) ListDoctors(ctx context.Context) ([]Doctor, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, email, password_hash, specialty, available_times, created_at, updated_at
		FROM doctors
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Doctor
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *d)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) CreateDoctor(ctx context.Context, d Doctor) (*Doctor, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO doctors (id, name, email, password_hash, specialty, available_times, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now(), now())
		RETURNING id, name, email, password_hash, specialty, available_times, created_at, updated_at
	`, d.ID, d.Name, d.Email, d.PasswordHash, d.Specialty, d.AvailableTimes)

	created, err := scanDoctor(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateDoctor
		}
		return nil, err
	}
	return created, nil
}

func (r *PgRepository) UpdateDoctor(ctx context.Context, d Doctor) (*Doctor, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE doctors
		SET name = $2,
		    specialty = $3,
		    available_times = $4,
		    updated_at = now()
		WHERE id = $1
		RETURNING id, name, email, password_hash, specialty, available_times, created_at, updated_at
	`, d.ID, d.Name, d.Specialty, d.AvailableTimes)

	return scanDoctor(row)
}

func (r *PgRepository) DeleteDoctor(ctx context.Context, id uuid.UUID) error {
	// Appointments go with the doctor via ON DELETE CASCADE.
	tag, err := r.pool.Exec(ctx, `DELETE FROM doctors WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete doctor: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDoctorNotFound
	}
	return nil
}

func (r *PgRepository) CreatePatient(ctx context.Context, p Patient) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO patients (id, name, email, phone, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, now(), now())
		RETURNING id, name, email, phone, password_hash, created_at, updated_at
	`, p.ID, p.Name, p.Email, p.Phone, p.PasswordHash)

	created, err := scanPatient(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicatePatient
		}
		return nil, err
	}
	return created, nil
}

// SubjectExists is the hot path behind the role gate, so it runs behind the
// circuit breaker on top of the usual single read retry.
func (r *PgRepository) SubjectExists(ctx context.Context, role auth.Role, subject string) (bool, error) {
	var query string
	switch role {
	case auth.RoleAdmin:
		query = `SELECT EXISTS (SELECT 1 FROM admins WHERE username = $1)`
	case auth.RoleDoctor:
		query = `SELECT EXISTS (SELECT 1 FROM doctors WHERE email = $1)`
	case auth.RolePatient:
		query = `SELECT EXISTS (SELECT 1 FROM patients WHERE email = $1)`
	default:
		return false, fmt.Errorf("unknown role %q", role)
	}

	result, err := r.breaker.Execute(func() (any, error) {
		var exists bool
		err := retryRead(ctx, func(ctx context.Context) error {
			return r.pool.QueryRow(ctx, query, subject).Scan(&exists)
		})
		return exists, err
	})
	if err != nil {
		return false, fmt.Errorf("subject lookup (%s): %w", role, err)
	}

	return result.(bool), nil
}
