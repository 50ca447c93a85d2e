package http

import "time"

// ErrorResponse represents a generic error payload.
type ErrorResponse struct {
	Error string `json:"error" example:"invalid email or password"`
}

// MessageResponse is returned by endpoints that only report an outcome.
type MessageResponse struct {
	Message string `json:"message" example:"password updated"`
}

// SignUpRequest registers a new account.
type SignUpRequest struct {
	Email    string `json:"email" validate:"required,email,max=254" example:"a@x.com"`
	Name     string `json:"name" validate:"required,max=100" example:"A"`
	Password string `json:"password" validate:"required" example:"Passw0rd"`
}

// SignInRequest authenticates with email and password.
type SignInRequest struct {
	Email    string `json:"email" validate:"required,email" example:"a@x.com"`
	Password string `json:"password" validate:"required" example:"Passw0rd"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email" example:"a@x.com"`
}

// RestorePasswordRequest sets a new password with an emailed reset code.
type RestorePasswordRequest struct {
	Code        string `json:"code" validate:"required,numeric,max=32" example:"123456"`
	NewPassword string `json:"new_password" validate:"required" example:"NewPassw0rd"`
}

// AccessTokenResponse carries the access token. The refresh token travels
// only in the refresh_token cookie.
type AccessTokenResponse struct {
	AccessToken string    `json:"access_token" example:"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9..."`
	TokenType   string    `json:"token_type" example:"bearer"`
	ExpiresAt   time.Time `json:"expires_at" example:"2024-01-02T09:30:00Z"`
}

// LogoutAllResponse reports how many sessions were ended.
type LogoutAllResponse struct {
	Message       string `json:"message" example:"logged out from all sessions"`
	SessionsEnded int64  `json:"sessions_ended" example:"3"`
}

// UserResponse is the public profile of the signed-in user.
type UserResponse struct {
	ID        string    `json:"id" example:"9fd13fd2-63c5-4f29-a210-4a1a8e285f74"`
	Email     string    `json:"email" example:"a@x.com"`
	Name      string    `json:"name" example:"A"`
	CreatedAt time.Time `json:"created_at" example:"2024-01-01T12:00:00Z"`
}
