// README: Driver aggregate; status is set externally and gates trip and assignment eligibility.
package driver

import (
	"time"

	"truckmatch/internal/types"
)

type Status string

const (
	StatusActive      Status = "active"
	StatusInactive    Status = "inactive"
	StatusUnderReview Status = "under_review"
)

func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusUnderReview:
		return true
	}
	return false
}

type Driver struct {
	ID                    types.ID  `json:"id"`
	Name                  string    `json:"name"`
	License               string    `json:"license"`
	LicenseExpirationDate time.Time `json:"license_expiration_date"`
	Status                Status    `json:"status"`
	Phone                 string    `json:"phone,omitempty"`
	Email                 string    `json:"email,omitempty"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

// LicenseExpired is true once the expiration instant has been reached.
func (d *Driver) LicenseExpired(now time.Time) bool {
	return !d.LicenseExpirationDate.After(now)
}

var (
	ErrNotFound     = types.NotFound("Driver not found")
	ErrNotActive    = types.InvalidState("Driver is not active")
	ErrLicenseTaken = types.Conflict("Driver license already registered")
)
