package tui

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/felixgeelhaar/eventctl/internal/auth"
	"github.com/felixgeelhaar/eventctl/internal/platform"
)

// Credentials is what the login form collects.
type Credentials struct {
	Email    string
	Password string
}

// EventInput is what the create-event form collects. Date stays a string
// until the form is submitted so partial input can be edited.
type EventInput struct {
	Title       string
	Description string
	Date        string
	Location    string
}

// Request converts the form input into a wire request.
func (in EventInput) Request() (platform.EventRequest, error) {
	req := platform.EventRequest{
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		Location:    strings.TrimSpace(in.Location),
	}
	if strings.TrimSpace(in.Date) != "" {
		when, err := platform.ParseEventTime(in.Date)
		if err != nil {
			return req, err
		}
		req.EventDate = when
	}
	return req, nil
}

func required(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", field)
		}
		return nil
	}
}

func validEmail(s string) error {
	if err := required("email")(s); err != nil {
		return err
	}
	if _, err := mail.ParseAddress(strings.TrimSpace(s)); err != nil {
		return errors.New("email is not valid")
	}
	return nil
}

func validEventDate(s string) error {
	if err := required("date")(s); err != nil {
		return err
	}
	_, err := platform.ParseEventTime(s)
	return err
}

// matches returns a validator that requires the input to equal *other.
func matches(other *string) func(string) error {
	return func(s string) error {
		if s != *other {
			return errors.New("passwords do not match")
		}
		return nil
	}
}

// LoginForm collects email and password into c.
func LoginForm(c *Credentials) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Email").
				Value(&c.Email).
				Validate(validEmail),
			huh.NewInput().
				Title("Password").
				EchoMode(huh.EchoModePassword).
				Value(&c.Password).
				Validate(required("password")),
		),
	)
}

// EmailForm asks for an email address.
func EmailForm(email *string) *huh.Form {
	return huh.NewForm(huh.NewGroup(
		huh.NewInput().Title("Email").Value(email).Validate(validEmail),
	))
}

// RegisterForm collects a registration into in. The verification code is
// requested in a second group after the account details.
func RegisterForm(in *auth.RegisterInput) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("First name").Value(&in.FirstName).Validate(required("first name")),
			huh.NewInput().Title("Last name").Value(&in.LastName).Validate(required("last name")),
			huh.NewInput().Title("Email").Value(&in.Email).Validate(validEmail),
			huh.NewInput().
				Title("Password").
				EchoMode(huh.EchoModePassword).
				Value(&in.Password).
				Validate(required("password")),
			huh.NewInput().
				Title("Confirm password").
				EchoMode(huh.EchoModePassword).
				Value(&in.PasswordConfirmation).
				Validate(matches(&in.Password)),
		).Title("Account"),
		huh.NewGroup(
			huh.NewConfirm().
				Title("Enable two-factor authentication?").
				Value(&in.TwoFactorEnabled),
			huh.NewInput().
				Title("Verification code").
				Description("Sent to your email by 'eventctl auth send-code'").
				Value(&in.VerificationCode).
				Validate(required("verification code")),
		).Title("Verification"),
	)
}

// EventForm collects a new event into in.
func EventForm(in *EventInput) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Title").Value(&in.Title).Validate(required("title")),
			huh.NewText().Title("Description").Value(&in.Description),
			huh.NewInput().
				Title("Date").
				Placeholder("2025-12-12T15:00").
				Value(&in.Date).
				Validate(validEventDate),
			huh.NewInput().Title("Location").Value(&in.Location),
		).Title("New event"),
	)
}

// DeleteConfirmForm asks before an event is deleted.
func DeleteConfirmForm(ev platform.Event, confirmed *bool) *huh.Form {
	title := fmt.Sprintf("Delete event %d?", ev.ID)
	if ev.Title != "" {
		title = fmt.Sprintf("Delete event %d (%s)?", ev.ID, ev.Title)
	}
	return huh.NewForm(huh.NewGroup(ConfirmField(title, confirmed)))
}

// RunForm runs f and maps a user abort to a plain error.
func RunForm(f *huh.Form) error {
	if err := f.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return errors.New("cancelled")
		}
		return fmt.Errorf("prompt failed: %w", err)
	}
	return nil
}
