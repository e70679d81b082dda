// Package auth performs the authentication exchanges with the events backend
// and records their outcome in the session store.
//
// Authentication and profile retrieval are separate calls: a session can hold
// a valid token while its profile is missing or stale, and a failed profile
// fetch never logs the user out.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"golang.org/x/sync/singleflight"

	apperrors "github.com/felixgeelhaar/eventctl/internal/errors"
	"github.com/felixgeelhaar/eventctl/internal/log"
	"github.com/felixgeelhaar/eventctl/internal/platform"
	"github.com/felixgeelhaar/eventctl/internal/session"
)

// API is the subset of the backend used by Client.
type API interface {
	SendCode(ctx context.Context, email string) error
	Register(ctx context.Context, req platform.RegisterRequest) (*platform.TokenResponse, error)
	Authenticate(ctx context.Context, req platform.AuthenticateRequest) (*platform.TokenResponse, error)
	GetCurrentUser(ctx context.Context, token string) (*platform.User, error)
}

// Client runs authentication operations against the backend and writes
// their results into a session store. Every operation makes at most one
// request; there are no retries.
type Client struct {
	api    API
	store  *session.Store
	logger *log.Logger

	profiles singleflight.Group
}

// NewClient creates an auth client bound to store.
func NewClient(api API, store *session.Store, logger *log.Logger) *Client {
	return &Client{
		api:    api,
		store:  store,
		logger: log.OrDefault(logger).WithGroup("auth"),
	}
}

// Store returns the session store the client writes to.
func (c *Client) Store() *session.Store {
	return c.store
}

// SendVerificationCode asks the backend to email a registration code.
func (c *Client) SendVerificationCode(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return apperrors.NewVerificationRequestFailedError(errors.New("email is required"))
	}

	if err := c.api.SendCode(ctx, email); err != nil {
		c.logger.DebugContext(ctx, "send-code failed", "email", email, "status", platform.StatusCode(err))
		return apperrors.NewVerificationRequestFailedError(err)
	}

	c.logger.InfoContext(ctx, "verification code requested", "email", email)
	return nil
}

// RegisterInput holds the registration form.
type RegisterInput struct {
	FirstName            string
	LastName             string
	Email                string
	Password             string
	PasswordConfirmation string
	TwoFactorEnabled     bool
	VerificationCode     string
}

// Validate is the caller-side check run before any request is sent.
func (in RegisterInput) Validate() error {
	var problems []string

	required := []struct {
		name  string
		value string
	}{
		{"first name", in.FirstName},
		{"last name", in.LastName},
		{"email", in.Email},
		{"password", in.Password},
		{"verification code", in.VerificationCode},
	}
	for _, field := range required {
		if strings.TrimSpace(field.value) == "" {
			problems = append(problems, field.name+" is required")
		}
	}

	if in.Email != "" {
		if _, err := mail.ParseAddress(in.Email); err != nil {
			problems = append(problems, fmt.Sprintf("%q is not a valid email address", in.Email))
		}
	}

	if in.Password != in.PasswordConfirmation {
		problems = append(problems, "passwords do not match")
	}

	if len(problems) > 0 {
		return apperrors.NewInvalidRegistrationError(strings.Join(problems, "; "))
	}
	return nil
}

func (in RegisterInput) request() platform.RegisterRequest {
	return platform.RegisterRequest{
		FirstName:            strings.TrimSpace(in.FirstName),
		LastName:             strings.TrimSpace(in.LastName),
		Email:                strings.TrimSpace(in.Email),
		Password:             in.Password,
		PasswordConfirmation: in.PasswordConfirmation,
		TwoFactorEnabled:     in.TwoFactorEnabled,
		VerificationCode:     strings.TrimSpace(in.VerificationCode),
	}
}

// Register creates an account and stores the issued token. Invalid input is
// rejected without contacting the backend. The profile is not fetched.
func (c *Client) Register(ctx context.Context, in RegisterInput) (string, error) {
	if err := in.Validate(); err != nil {
		return "", err
	}

	resp, err := c.api.Register(ctx, in.request())
	if err != nil {
		c.logger.DebugContext(ctx, "registration failed", "email", in.Email, "status", platform.StatusCode(err))
		appErr := apperrors.NewRegistrationFailedError(platform.ServerMessage(err))
		if platform.StatusCode(err) == 0 {
			appErr.Cause = err
		}
		return "", appErr
	}
	if resp.Token == "" {
		return "", apperrors.NewRegistrationFailedError("the server did not issue a token")
	}

	if err := c.store.SetToken(ctx, resp.Token); err != nil {
		return "", err
	}

	c.logger.InfoContext(ctx, "registered", "email", in.Email, "token", session.Fingerprint(resp.Token))
	return resp.Token, nil
}

// Authenticate exchanges credentials for a token and stores it. On failure
// the stored token is left untouched and no server detail is surfaced.
func (c *Client) Authenticate(ctx context.Context, email, password string) (string, error) {
	resp, err := c.api.Authenticate(ctx, platform.AuthenticateRequest{
		Email:    strings.TrimSpace(email),
		Password: password,
	})
	if err != nil {
		status := platform.StatusCode(err)
		c.logger.DebugContext(ctx, "authentication failed", "email", email, "status", status)
		if status == 0 {
			return "", apperrors.Wrap(apperrors.ErrCodeAuthenticationFailed,
				"could not reach the authentication service", err)
		}
		return "", apperrors.NewAuthenticationFailedError()
	}
	if resp.Token == "" {
		return "", apperrors.NewAuthenticationFailedError()
	}

	if err := c.store.SetToken(ctx, resp.Token); err != nil {
		return "", err
	}

	c.logger.InfoContext(ctx, "authenticated", "email", email, "token", session.Fingerprint(resp.Token))
	return resp.Token, nil
}

// FetchCurrentUser retrieves the profile for the current token.
//
// Without a token it returns (nil, nil) and sends nothing. On failure only
// the profile is cleared. The result is applied only while the token used
// for the request is still current; otherwise (nil, nil) is returned.
// Concurrent calls for the same token share one request, which is not
// cancelled when one of its callers gives up.
func (c *Client) FetchCurrentUser(ctx context.Context) (*platform.User, error) {
	token := c.store.Get().Token
	if token == "" {
		return nil, nil
	}

	shared := context.WithoutCancel(ctx)
	ch := c.profiles.DoChan(token, func() (interface{}, error) {
		return c.fetchProfile(shared, token)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Shared {
			c.logger.DebugContext(ctx, "profile fetch shared with in-flight request")
		}
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*platform.User), nil
	}
}

func (c *Client) fetchProfile(ctx context.Context, token string) (*platform.User, error) {
	user, err := c.api.GetCurrentUser(ctx, token)
	if err != nil {
		c.logger.WarnContext(ctx, "profile fetch failed", "status", platform.StatusCode(err), "error", err)
		if _, clearErr := c.store.SetUserIfToken(ctx, token, nil); clearErr != nil {
			c.logger.WarnContext(ctx, "could not clear profile", "error", clearErr)
		}
		return nil, apperrors.NewProfileFetchFailedError(err)
	}

	applied, err := c.store.SetUserIfToken(ctx, token, user)
	if err != nil {
		return nil, err
	}
	if !applied {
		c.logger.DebugContext(ctx, "session changed during profile fetch; result discarded")
		return nil, nil
	}
	return user, nil
}

// LoginResult is the outcome of Login.
type LoginResult struct {
	Token string
	User  *platform.User

	// ProfileErr is set when authentication succeeded but the profile could
	// not be loaded. The session stays authenticated.
	ProfileErr error
}

// Login authenticates and then loads the profile.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	token, err := c.Authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}

	result := &LoginResult{Token: token}
	user, err := c.FetchCurrentUser(ctx)
	if err != nil {
		result.ProfileErr = err
		return result, nil
	}
	result.User = user
	return result, nil
}

// Logout clears the session.
func (c *Client) Logout(ctx context.Context) error {
	if err := c.store.Clear(ctx); err != nil {
		return err
	}
	c.logger.InfoContext(ctx, "logged out")
	return nil
}
