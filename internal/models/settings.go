package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Bounds for the per-user polling cadence. The scan loop uses the minimum
// across enabled users, so the floor also protects the source backends.
const (
	MinPollSeconds = 10
	MaxPollSeconds = 3600
)

const (
	DefaultMinDiscountPct = 25.0
	DefaultPollSeconds    = 60
)

var validate = validator.New()

// UserScannerSettings holds one user's deal filters. Created lazily with
// defaults on first read, toggled but never deleted.
type UserScannerSettings struct {
	UserID         int64 `validate:"required"`
	Enabled        bool
	MinDiscountPct float64  `validate:"gte=0,lte=100"`
	MinPriceTON    *float64 `validate:"omitempty,gt=0"`
	MaxPriceTON    *float64 `validate:"omitempty,gt=0"`
	Collections    []string
	PollSeconds    int `validate:"gte=10,lte=3600"`
	UpdatedAt      time.Time
}

// DefaultScannerSettings returns the settings a user starts with.
func DefaultScannerSettings(userID int64) UserScannerSettings {
	return UserScannerSettings{
		UserID:         userID,
		Enabled:        false,
		MinDiscountPct: DefaultMinDiscountPct,
		PollSeconds:    DefaultPollSeconds,
	}
}

// Validate checks field bounds before the settings are persisted.
func (s *UserScannerSettings) Validate() error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("invalid scanner settings: %w", err)
	}
	if s.MinPriceTON != nil && s.MaxPriceTON != nil && *s.MinPriceTON > *s.MaxPriceTON {
		return fmt.Errorf("invalid scanner settings: min price %.3f above max price %.3f", *s.MinPriceTON, *s.MaxPriceTON)
	}
	return nil
}

// AllowsCollection reports case-insensitive membership in the allow-list.
// An empty list allows any collection.
func (s *UserScannerSettings) AllowsCollection(collection string) bool {
	if len(s.Collections) == 0 {
		return true
	}
	for _, c := range s.Collections {
		if strings.EqualFold(c, collection) {
			return true
		}
	}
	return false
}
