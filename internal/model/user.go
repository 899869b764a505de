// Package model defines the data structures used throughout the application.
package model

import "time"

// User represents a registered poet.
//
// WHY PasswordHash HAS json:"-"?
// The bcrypt hash must never leave the server. The "-" tag tells encoding/json
// to skip the field entirely, so a User can be written straight to a response
// without leaking credentials.
type User struct {
	ID             string    `json:"id"`
	Username       string    `json:"username"`
	Email          string    `json:"email"`
	PasswordHash   string    `json:"-"`
	ProfilePicture string    `json:"profilePicture"` // URL or storage key, may be empty
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Author is the public projection of a User embedded in poem listings.
type Author struct {
	ID             string `json:"id"`
	Username       string `json:"username"`
	ProfilePicture string `json:"profilePicture"`
}
