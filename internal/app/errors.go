package service

import (
	"errors"
	"fmt"

	"github.com/okian/calpulse/internal/testevents"
)

// Sentinel kinds for service errors.
var (
	ErrAuthNotConfigured = errors.New("sign-in is not configured")
	ErrMissingDates      = errors.New("startDate and endDate are required (YYYY-MM-DD)")
	ErrInvalidDate       = testevents.ErrInvalidDate
	ErrInvalidRange      = testevents.ErrInvalidDateRange
	ErrRangeTooLong      = errors.New("date range too long")
	ErrNoEvents          = errors.New("no events generated")
	ErrDuplicateRequest  = errors.New("duplicate request")
	ErrTokenExpired      = errors.New("token expired")
	ErrPermissionDenied  = errors.New("insufficient permissions")
	ErrInvalidValue      = errors.New("invalid value")
)

// RangeTooLongError reports a generation range wider than allowed.
type RangeTooLongError struct {
	MaxDays int
}

func (e *RangeTooLongError) Error() string {
	return fmt.Sprintf("date range cannot exceed %d days", e.MaxDays)
}

// Is matches ErrRangeTooLong.
func (e *RangeTooLongError) Is(target error) bool { return target == ErrRangeTooLong }
