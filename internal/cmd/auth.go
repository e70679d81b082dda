package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/eventctl/internal/auth"
	"github.com/felixgeelhaar/eventctl/internal/authz"
	apperrors "github.com/felixgeelhaar/eventctl/internal/errors"
	"github.com/felixgeelhaar/eventctl/internal/platform"
	"github.com/felixgeelhaar/eventctl/internal/session"
	"github.com/felixgeelhaar/eventctl/internal/tui"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage your session with the events service",
	Long: `Register, log in and out, and inspect the current session.

Examples:
  eventctl auth send-code --email ada@example.com
  eventctl auth register --email ada@example.com --code 123456
  eventctl auth login --email ada@example.com
  eventctl auth status`,
}

var authSendCodeCmd = &cobra.Command{
	Use:   "send-code",
	Short: "Email a registration verification code",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := current.connect(ctx); err != nil {
			return err
		}

		email, _ := cmd.Flags().GetString("email")
		if email == "" && tui.ShouldPrompt() {
			if err := tui.RunForm(tui.EmailForm(&email)); err != nil {
				return err
			}
		}

		if err := current.auth.SendVerificationCode(ctx, email); err != nil {
			return err
		}
		fmt.Fprintf(current.out, "Verification code sent to %s\n", strings.TrimSpace(email))
		return nil
	},
}

var authRegisterCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account and start a session",
	Long: `Create an account with a verification code from 'eventctl auth send-code'.
On success the new session is stored; run 'eventctl dashboard' to load your profile.

Missing fields are prompted for when running in a terminal.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := current.connect(ctx); err != nil {
			return err
		}

		in := registerInputFromFlags(cmd)
		if in.Validate() != nil && tui.ShouldPrompt() {
			if err := tui.RunForm(tui.RegisterForm(&in)); err != nil {
				return err
			}
		}

		token, err := current.auth.Register(ctx, in)
		if err != nil {
			return err
		}
		fmt.Fprintf(current.out, "Registered %s (session %s)\n", strings.TrimSpace(in.Email), session.Fingerprint(token))
		return nil
	},
}

func registerInputFromFlags(cmd *cobra.Command) auth.RegisterInput {
	flags := cmd.Flags()
	in := auth.RegisterInput{}
	in.FirstName, _ = flags.GetString("first-name")
	in.LastName, _ = flags.GetString("last-name")
	in.Email, _ = flags.GetString("email")
	in.Password, _ = flags.GetString("password")
	in.PasswordConfirmation, _ = flags.GetString("password-confirmation")
	in.TwoFactorEnabled, _ = flags.GetBool("two-factor")
	in.VerificationCode, _ = flags.GetString("code")
	return in
}

var authLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in and load your profile",
	Long: `Authenticate with email and password. The profile is loaded right after;
if that fails the session is kept and the profile is retried on the next
command that needs it.

The password can come from --password or the EVENTCTL_PASSWORD environment
variable; in a terminal it is prompted for.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := current.connect(ctx); err != nil {
			return err
		}

		creds := tui.Credentials{}
		creds.Email, _ = cmd.Flags().GetString("email")
		creds.Password, _ = cmd.Flags().GetString("password")
		if creds.Password == "" {
			creds.Password = envPassword()
		}
		if (creds.Email == "" || creds.Password == "") && tui.ShouldPrompt() {
			if err := tui.RunForm(tui.LoginForm(&creds)); err != nil {
				return err
			}
		}
		if creds.Email == "" || creds.Password == "" {
			return fmt.Errorf("required flags --email and --password are not set and no terminal is available for prompting")
		}

		result, err := current.auth.Login(ctx, creds.Email, creds.Password)
		if err != nil {
			return err
		}

		if result.ProfileErr != nil {
			fmt.Fprintf(current.errOut, "Warning: %v\n", result.ProfileErr)
		}
		if result.User == nil {
			fmt.Fprintf(current.out, "Logged in (session %s)\n", session.Fingerprint(result.Token))
			return nil
		}
		fmt.Fprintf(current.out, "Logged in as %s (%s)\n", result.User.DisplayName(), roleOrUnknown(result.User))
		return nil
	},
}

var authLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "End the session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := current.connect(ctx); err != nil {
			return err
		}
		if err := current.auth.Logout(ctx); err != nil {
			return err
		}
		fmt.Fprintln(current.out, "Logged out")
		return nil
	},
}

// sessionStatus is what 'auth status' reports.
type sessionStatus struct {
	State       string         `json:"state" yaml:"state"`
	Session     string         `json:"session,omitempty" yaml:"session,omitempty"`
	Backend     string         `json:"backend" yaml:"backend"`
	User        *platform.User `json:"user,omitempty" yaml:"user,omitempty"`
	Views       []string       `json:"views" yaml:"views"`
	APIEndpoint string         `json:"api" yaml:"api"`
}

func (s sessionStatus) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "State:    %s\n", s.State)
	fmt.Fprintf(&b, "API:      %s\n", s.APIEndpoint)
	fmt.Fprintf(&b, "Backend:  %s\n", s.Backend)
	if s.Session == "" {
		b.WriteString("Not logged in. Use 'eventctl auth login' to authenticate.")
		return b.String()
	}
	fmt.Fprintf(&b, "Session:  %s\n", s.Session)
	if s.User != nil {
		fmt.Fprintf(&b, "User:     %s <%s>\n", s.User.DisplayName(), s.User.Email)
		fmt.Fprintf(&b, "Role:     %s\n", roleOrUnknown(s.User))
	} else {
		b.WriteString("User:     (profile not loaded)\n")
	}
	fmt.Fprintf(&b, "Views:    %s", strings.Join(s.Views, ", "))
	return b.String()
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the stored session without contacting the service",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := current.connect(cmd.Context()); err != nil {
			return err
		}

		snap := current.store.Get()
		status := sessionStatus{
			State:       current.gate.State().String(),
			Backend:     current.cfg.Session.Backend,
			User:        snap.User,
			Views:       []string{},
			APIEndpoint: current.cfg.API.BaseURL,
		}
		if snap.HasToken() {
			status.Session = session.Fingerprint(snap.Token)
			for _, v := range authz.VisibleViews(snap) {
				status.Views = append(status.Views, v.Name)
			}
		}
		return current.render(status)
	},
}

var authWhoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Load and show your profile",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := current.require(ctx, authz.ViewProfile); err != nil {
			return err
		}

		user, err := current.auth.FetchCurrentUser(ctx)
		if err != nil {
			return err
		}
		if user == nil {
			return apperrors.NewNoActiveSessionError("whoami")
		}
		if current.structured() {
			return current.render(user)
		}
		fmt.Fprintf(current.out, "%s <%s>\nRole: %s\n", user.DisplayName(), user.Email, roleOrUnknown(user))
		return nil
	},
}

func roleOrUnknown(u *platform.User) string {
	if u == nil || u.Role == "" {
		return "unknown"
	}
	return u.Role
}

func envPassword() string {
	return os.Getenv("EVENTCTL_PASSWORD")
}

func init() {
	authSendCodeCmd.Flags().String("email", "", "email address to verify")

	authRegisterCmd.Flags().String("first-name", "", "first name")
	authRegisterCmd.Flags().String("last-name", "", "last name")
	authRegisterCmd.Flags().String("email", "", "email address")
	authRegisterCmd.Flags().String("password", "", "password")
	authRegisterCmd.Flags().String("password-confirmation", "", "password again")
	authRegisterCmd.Flags().Bool("two-factor", false, "enable two-factor authentication")
	authRegisterCmd.Flags().String("code", "", "verification code from 'auth send-code'")

	authLoginCmd.Flags().String("email", "", "email address")
	authLoginCmd.Flags().String("password", "", "password (or EVENTCTL_PASSWORD)")

	authCmd.AddCommand(authSendCodeCmd)
	authCmd.AddCommand(authRegisterCmd)
	authCmd.AddCommand(authLoginCmd)
	authCmd.AddCommand(authLogoutCmd)
	authCmd.AddCommand(authStatusCmd)
	authCmd.AddCommand(authWhoamiCmd)
	rootCmd.AddCommand(authCmd)
}
