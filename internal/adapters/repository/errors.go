package repository

import "errors"

// ErrInvalidValue is returned when a display value is NaN or infinite.
var ErrInvalidValue = errors.New("invalid display value")
