package cmd

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/term"

	"github.com/felixgeelhaar/eventctl/internal/auth"
	"github.com/felixgeelhaar/eventctl/internal/authz"
	"github.com/felixgeelhaar/eventctl/internal/config"
	apperrors "github.com/felixgeelhaar/eventctl/internal/errors"
	"github.com/felixgeelhaar/eventctl/internal/events"
	"github.com/felixgeelhaar/eventctl/internal/log"
	"github.com/felixgeelhaar/eventctl/internal/platform"
	"github.com/felixgeelhaar/eventctl/internal/session"
	"github.com/felixgeelhaar/eventctl/internal/telemetry"
	"github.com/felixgeelhaar/eventctl/internal/tui"
	"github.com/felixgeelhaar/eventctl/internal/ux"
	"github.com/felixgeelhaar/eventctl/internal/version"
)

// app is the per-invocation wiring. Configuration and logging are set up
// for every command; the session and clients only when a command asks.
type app struct {
	loader *config.Loader
	cfg    *config.Config
	logger *log.Logger
	out    io.Writer
	errOut io.Writer

	span            trace.Span
	shutdownTracing func(context.Context) error

	backend session.Backend
	store   *session.Store
	api     *platform.Client
	auth    *auth.Client
	events  *events.Service
	gate    *authz.Gate
}

var current *app

func initApp(cmd *cobra.Command) error {
	loader := config.NewLoader(flagConfigPath)
	if err := bindFlags(loader.Viper().BindPFlag); err != nil {
		return err
	}

	cfg, err := loader.Load()
	if err != nil {
		return apperrors.NewConfigInvalidError(err.Error())
	}

	logCfg, err := cfg.LogConfig()
	if err != nil {
		logCfg = log.DefaultConfig()
	}
	logCfg.Output = log.NewOutput(cmd.ErrOrStderr())
	logger := log.New(logCfg)
	log.SetDefaultLogger(logger)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	shutdownTracing, err := telemetry.InitProvider(ctx, cfg.TracingConfig(version.GetInfo().Version))
	if err != nil {
		logger.WithError(err).Warn("tracing disabled")
	}
	ctx, span := telemetry.StartCommandSpan(ctx, cmd.CommandPath())
	cmd.SetContext(ctx)

	current = &app{
		loader:          loader,
		cfg:             cfg,
		logger:          logger,
		out:             cmd.OutOrStdout(),
		errOut:          cmd.ErrOrStderr(),
		span:            span,
		shutdownTracing: shutdownTracing,
	}
	return nil
}

// closeApp ends the command span with the command's outcome, flushes
// traces, and closes the session backend.
func closeApp(cmdErr error) {
	if current == nil {
		return
	}
	if current.span != nil {
		if cmdErr != nil {
			telemetry.RecordError(current.span, cmdErr)
		} else {
			telemetry.RecordSuccess(current.span)
		}
		current.span.End()
	}
	if current.shutdownTracing != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := current.shutdownTracing(ctx); err != nil {
			current.logger.WithError(err).Debug("flushing traces")
		}
		cancel()
	}
	if closer, ok := current.backend.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			current.logger.Warn("closing session backend", "error", err)
		}
	}
	current = nil
}

// connect validates the configuration, opens the session backend and
// hydrates the store. It is idempotent.
func (a *app) connect(ctx context.Context) error {
	if a.store != nil {
		return nil
	}
	if err := a.cfg.Validate(); err != nil {
		return err
	}

	opts := a.cfg.SessionOptions()
	backend, err := session.NewBackend(ctx, opts)
	if err != nil {
		return apperrors.NewSessionUnavailableError(opts.Kind, err)
	}

	a.backend = backend
	a.store = session.NewStore(backend, a.logger)
	a.store.Load(ctx)

	a.api = platform.NewClient(a.cfg.API.BaseURL, a.cfg.API.Timeout, a.logger)
	a.auth = auth.NewClient(a.api, a.store, a.logger)
	a.events = events.NewService(a.api, a.store, a.logger)
	a.gate = authz.NewGate(a.store)
	return nil
}

// require opens the session and evaluates view against it. Role-gated
// views load the profile first when the session has none cached.
func (a *app) require(ctx context.Context, view authz.View) error {
	if err := a.connect(ctx); err != nil {
		return err
	}

	snap := a.store.Get()
	if view.Requirement.RequiresRole() && snap.HasToken() && snap.User == nil {
		if _, err := a.auth.FetchCurrentUser(ctx); err != nil {
			a.logger.WithError(err).WarnContext(ctx, "profile unavailable for role check", "view", view.Name)
		}
	}

	decision := a.gate.Evaluate(view.Requirement)
	if decision.Allowed() {
		return nil
	}
	a.logger.InfoContext(ctx, "access denied", "view", view.Name, "state", decision.State.String(), "reason", decision.Reason)
	return apperrors.NewAccessDeniedError(view.Name, decision.Reason, decision.Redirect == authz.RedirectLogin)
}

func (a *app) formatter() (ux.Formatter, error) {
	return ux.NewFormatter(a.cfg.Output.Format, &ux.FormatterOptions{
		Writer:  a.out,
		NoColor: a.cfg.Output.NoColor,
	})
}

// render writes v in the configured output format.
func (a *app) render(v interface{}) error {
	f, err := a.formatter()
	if err != nil {
		return apperrors.NewConfigInvalidError(err.Error())
	}
	return f.Format(v)
}

// structured reports whether output is JSON or YAML.
func (a *app) structured() bool {
	format := strings.ToLower(a.cfg.Output.Format)
	return format == ux.FormatJSON || format == ux.FormatYAML
}

func (a *app) styles() tui.Styles {
	if a.cfg.Output.NoColor || !isTerminal(a.out) {
		return tui.PlainStyles()
	}
	return tui.DefaultStyles()
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(interface{ Fd() uintptr })
	return ok && term.IsTerminal(int(f.Fd()))
}
