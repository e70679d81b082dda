package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/eventctl/internal/health"
	"github.com/felixgeelhaar/eventctl/internal/platform"
	"github.com/felixgeelhaar/eventctl/internal/session"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check configuration, API reachability, and the stored session",
	Long: `Run diagnostics against everything eventctl depends on.

Checks include:
  config           the effective configuration validates
  api              the events API answers at api.base_url
  session-backend  the configured session backend can be read
  session          a session is stored

Examples:
  eventctl doctor
  eventctl doctor -o json`,
	Args: cobra.NoArgs,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

// doctorCheck is one line of the report.
type doctorCheck struct {
	Name    string                 `json:"name" yaml:"name"`
	Status  health.Status          `json:"status" yaml:"status"`
	Message string                 `json:"message" yaml:"message"`
	Details map[string]interface{} `json:"details,omitempty" yaml:"details,omitempty"`
}

type doctorReport struct {
	Status health.Status `json:"status" yaml:"status"`
	Checks []doctorCheck `json:"checks" yaml:"checks"`
}

func (r doctorReport) String() string {
	var b strings.Builder
	for _, c := range r.Checks {
		fmt.Fprintf(&b, "%-9s %-16s %s\n", "["+c.Status.String()+"]", c.Name, c.Message)
	}
	fmt.Fprintf(&b, "\nOverall: %s", r.Status)
	return b.String()
}

func runDoctor(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := current.cfg

	timeout := cfg.API.Timeout
	if timeout <= 0 {
		timeout = platform.DefaultTimeout
	}
	manager := health.NewManager().WithTimeout(timeout)
	manager.AddChecker(health.NewFuncChecker("config", func(context.Context) *health.Result {
		if err := cfg.Validate(); err != nil {
			return health.Unhealthy(err.Error()).WithDetail("path", current.loader.Path())
		}
		return health.Healthy("valid").WithDetail("path", current.loader.Path())
	}))
	manager.AddChecker(health.NewHTTPChecker("api", cfg.API.BaseURL, &http.Client{Timeout: timeout}))

	opts := cfg.SessionOptions()
	backend, openErr := session.NewBackend(ctx, opts)
	if openErr == nil {
		if closer, ok := backend.(io.Closer); ok {
			defer closer.Close()
		}
	}
	manager.AddChecker(health.NewFuncChecker("session-backend", func(ctx context.Context) *health.Result {
		if openErr != nil {
			return health.Unhealthy(openErr.Error()).WithDetail("backend", opts.Kind)
		}
		if _, err := backend.Get(ctx, session.KeyToken); err != nil && !errors.Is(err, session.ErrNotFound) {
			return health.Unhealthy(err.Error()).WithDetail("backend", opts.Kind)
		}
		return health.Healthy("readable").WithDetail("backend", opts.Kind)
	}))
	manager.AddChecker(health.NewFuncChecker("session", func(ctx context.Context) *health.Result {
		if openErr != nil {
			return health.Degraded("backend unavailable")
		}
		snap := session.NewStore(backend, current.logger).Load(ctx)
		if !snap.HasToken() {
			return health.Degraded("not logged in")
		}
		result := health.Healthy("active").WithDetail("session", session.Fingerprint(snap.Token))
		if snap.User != nil {
			result.WithDetail("role", snap.User.Role)
		}
		return result
	}))

	results := manager.Check(ctx)
	report := doctorReport{Status: manager.OverallStatus(results)}
	for _, name := range manager.CheckNames() {
		r := results[name]
		report.Checks = append(report.Checks, doctorCheck{
			Name:    name,
			Status:  r.Status,
			Message: r.Message,
			Details: r.Details,
		})
	}

	if err := current.render(report); err != nil {
		return err
	}
	if report.Status == health.StatusUnhealthy {
		return errors.New("doctor found failing checks")
	}
	return nil
}
