// Package auth provides authentication services for CityWander.
package auth

import "time"

// User represents an authenticated user in the system.
type User struct {
	ID        string    `json:"userId"`
	Subject   string    `json:"-"` // external identity subject (never exposed in API)
	Email     string    `json:"email,omitempty"`
	Locale    string    `json:"locale"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// AuthenticateRequest represents the request body for authentication.
// The subject is the stable identity the client obtained from its sign-in
// provider; the server finds or creates the matching user.
type AuthenticateRequest struct {
	// Subject is the external identity subject for the user.
	Subject string `json:"subject"`

	// Email is the user's email address (optional).
	Email string `json:"email,omitempty"`
}

// Validate validates the authenticate request.
func (r *AuthenticateRequest) Validate() []FieldError {
	var errors []FieldError

	if r.Subject == "" {
		errors = append(errors, FieldError{
			Field:   "subject",
			Message: "subject is required",
			Code:    "REQUIRED",
		})
	}

	return errors
}

// FieldError represents a validation error on a specific field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// TokenResponse represents the response after successful authentication.
type TokenResponse struct {
	// AccessToken is the JWT access token for API authentication.
	AccessToken string `json:"accessToken"`

	// TokenType is always "Bearer".
	TokenType string `json:"tokenType"`

	// ExpiresIn is the number of seconds until the access token expires.
	ExpiresIn int64 `json:"expiresIn"`

	// RefreshToken is the opaque token used to obtain new access tokens.
	RefreshToken string `json:"refreshToken,omitempty"`

	// User contains the authenticated user's information.
	User *User `json:"user"`
}

// RefreshTokenRequest represents the request to refresh an access token.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// Validate validates the refresh token request.
func (r *RefreshTokenRequest) Validate() []FieldError {
	var errors []FieldError

	if r.RefreshToken == "" {
		errors = append(errors, FieldError{
			Field:   "refreshToken",
			Message: "refresh token is required",
			Code:    "REQUIRED",
		})
	}

	return errors
}
