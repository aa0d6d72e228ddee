// Package types contains common types used across the application
package types

// User is the signed-in user's profile as kept in the session.
type User struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
}

// DateRange is an inclusive pair of YYYY-MM-DD calendar dates.
type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}
