package directory

import (
	"time"

	"github.com/google/uuid"
)

// DefaultAvailableTimes is the slot catalog a doctor gets when none is
// configured: hourly slots through the working day, lunch hour excluded.
var DefaultAvailableTimes = []string{
	"08:00", "09:00", "10:00", "11:00", "12:00",
	"14:00", "15:00", "16:00", "17:00",
}

type Admin struct {
	ID           uuid.UUID
	Username     string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Doctor struct {
	ID           uuid.UUID
	Name         string
	Email        string
	PasswordHash string
	Specialty    string
	// AvailableTimes is the doctor's slot template ("HH:MM" start times,
	// chronological). Configuration, not bookings.
	AvailableTimes []string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type Patient struct {
	ID           uuid.UUID
	Name         string
	Email        string
	Phone        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
