package platform

import (
	"context"
	"errors"
	"net/http"
)

// VerificationTypeEmailConfirmation is the send-code purpose used at registration
const VerificationTypeEmailConfirmation = "EMAIL_CONFIRMATION"

// AuthenticateRequest represents a login request
type AuthenticateRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterRequest represents a registration request
type RegisterRequest struct {
	FirstName            string `json:"firstname"`
	LastName             string `json:"lastname"`
	Email                string `json:"email"`
	Password             string `json:"password"`
	PasswordConfirmation string `json:"passwordConfirmation"`
	TwoFactorEnabled     bool   `json:"twoFactorEnabled"`
	VerificationCode     string `json:"verificationCode"`
}

// SendCodeRequest asks the backend to dispatch a verification code
type SendCodeRequest struct {
	Email string `json:"email"`
	Type  string `json:"type"`
}

// TokenResponse carries the bearer token issued by authenticate and register
type TokenResponse struct {
	Token string `json:"token"`
}

// User represents the current user's profile
type User struct {
	FirstName string `json:"firstname"`
	LastName  string `json:"lastname"`
	Email     string `json:"email"`
	Role      string `json:"role"`
}

// DisplayName returns "First Last", falling back to the email.
func (u User) DisplayName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	case u.LastName != "":
		return u.LastName
	default:
		return u.Email
	}
}

// Authenticate exchanges credentials for a token
func (c *Client) Authenticate(ctx context.Context, req AuthenticateRequest) (*TokenResponse, error) {
	var resp TokenResponse
	if err := c.Do(ctx, http.MethodPost, "/auth/authenticate", "", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Register creates an account and returns its first token
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*TokenResponse, error) {
	var resp TokenResponse
	if err := c.Do(ctx, http.MethodPost, "/auth/register", "", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SendCode requests a verification code for email
func (c *Client) SendCode(ctx context.Context, email string) error {
	req := SendCodeRequest{
		Email: email,
		Type:  VerificationTypeEmailConfirmation,
	}
	return c.Do(ctx, http.MethodPost, "/auth/send-code", "", req, nil)
}

// errEmptyProfile is wrapped in a DecodeError when /users/me answers with a
// body that names no account, such as null or {}.
var errEmptyProfile = errors.New("profile has no email")

// GetCurrentUser retrieves the profile of the token's owner
func (c *Client) GetCurrentUser(ctx context.Context, token string) (*User, error) {
	var user User
	if err := c.Do(ctx, http.MethodGet, "/users/me", token, nil, &user); err != nil {
		return nil, err
	}
	if user.Email == "" {
		return nil, &DecodeError{Err: errEmptyProfile}
	}
	return &user, nil
}
