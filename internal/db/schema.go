package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schemaStatements is applied in order by EnsureSchema. Every statement is
// idempotent so the seed binary can run against a fresh or existing database.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS admins (
		id UUID PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE TABLE IF NOT EXISTS doctors (
		id UUID PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		specialty TEXT NOT NULL DEFAULT '',
		available_times TEXT[] NOT NULL DEFAULT '{}',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE TABLE IF NOT EXISTS patients (
		id UUID PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		phone TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE TABLE IF NOT EXISTS appointments (
		id UUID PRIMARY KEY,
		doctor_id UUID NOT NULL REFERENCES doctors(id) ON DELETE CASCADE,
		patient_id UUID NOT NULL REFERENCES patients(id) ON DELETE CASCADE,
		start_time TIMESTAMPTZ NOT NULL,
		status TEXT NOT NULL DEFAULT 'scheduled',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	// At most one scheduled appointment per doctor and start time. Cancelled
	// and completed rows fall out of the index so the slot can be rebooked.
	`CREATE UNIQUE INDEX IF NOT EXISTS appointments_one_scheduled_per_slot
		ON appointments (doctor_id, start_time)
		WHERE status = 'scheduled'`,

	`CREATE INDEX IF NOT EXISTS appointments_patient_idx
		ON appointments (patient_id)`,

	`CREATE INDEX IF NOT EXISTS appointments_doctor_day_idx
		ON appointments (doctor_id, start_time)`,

	`CREATE TABLE IF NOT EXISTS prescriptions (
		id UUID PRIMARY KEY,
		appointment_id UUID NOT NULL UNIQUE REFERENCES appointments(id) ON DELETE CASCADE,
		medication TEXT NOT NULL,
		dosage TEXT NOT NULL DEFAULT '',
		notes TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}

// EnsureSchema creates all tables and indexes if they do not exist yet.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schemaStatements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
