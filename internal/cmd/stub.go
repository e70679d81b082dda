package cmd

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/eventctl/internal/apistub"
	"github.com/felixgeelhaar/eventctl/internal/authz"
	"github.com/felixgeelhaar/eventctl/internal/health"
	"github.com/felixgeelhaar/eventctl/internal/metrics"
	"github.com/felixgeelhaar/eventctl/internal/platform"
	"github.com/felixgeelhaar/eventctl/internal/server"
	"github.com/felixgeelhaar/eventctl/internal/version"
)

var stubServerCmd = &cobra.Command{
	Use:   "stub-server",
	Short: "Run an in-memory events service for local development",
	Long: `Serve the events API from memory. Nothing is persisted; verification codes
are printed instead of emailed. Probes are served at /health/live and
/health/ready, Prometheus metrics at /metrics.

Examples:
  eventctl stub-server --addr 127.0.0.1:8080 --user admin@example.com:secret:ADMIN
  eventctl config set api.base_url http://127.0.0.1:8080/api/v1`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		secret, _ := cmd.Flags().GetString("secret")
		seeds, _ := cmd.Flags().GetStringArray("user")
		shutdownTimeout, _ := cmd.Flags().GetDuration("shutdown-timeout")

		reg, m := metrics.NewRegistry()
		stub := apistub.NewServer(apistub.Options{
			Secret:  secret,
			Logger:  current.logger,
			Metrics: m,
			OnCode: func(email, code string) {
				fmt.Fprintf(current.out, "verification code for %s: %s\n", email, code)
			},
		})
		for _, seed := range seeds {
			user, password, err := parseSeedUser(seed)
			if err != nil {
				return err
			}
			if err := stub.AddUser(user, password); err != nil {
				return err
			}
		}

		pm := health.NewProbeManager(version.GetInfo().Version)
		pm.AddChecker(storeChecker(stub))
		srv := server.NewServer(stub.Router(), pm, reg, server.Config{ShutdownTimeout: shutdownTimeout})

		listener, err := net.Listen("tcp", addr)
		if err != nil {
			return fmt.Errorf("failed to listen on %s: %w", addr, err)
		}
		fmt.Fprintf(current.out, "events stub listening on http://%s%s\n", listener.Addr(), apistub.BasePath)

		return srv.Run(cmd.Context(), listener)
	},
}

func storeChecker(stub *apistub.Server) health.Checker {
	return health.NewFuncChecker("store", func(context.Context) *health.Result {
		accounts, events := stub.Counts()
		return health.Healthy("in-memory").
			WithDetail("accounts", accounts).
			WithDetail("events", events)
	})
}

// parseSeedUser parses "email:password[:ROLE]".
func parseSeedUser(s string) (platform.User, string, error) {
	parts := strings.SplitN(s, ":", 3)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return platform.User{}, "", fmt.Errorf("invalid argument %q: --user expects email:password[:ROLE]", s)
	}

	user := platform.User{Email: parts[0], Role: string(authz.RoleUser)}
	if len(parts) == 3 {
		role, known := authz.ParseRole(parts[2])
		if !known {
			return platform.User{}, "", fmt.Errorf("invalid argument %q: unknown role %q", s, parts[2])
		}
		user.Role = string(role)
	}
	if name, _, ok := strings.Cut(user.Email, "@"); ok {
		user.FirstName = name
	}
	return user, parts[1], nil
}

func init() {
	stubServerCmd.Flags().String("addr", "127.0.0.1:8080", "listen address")
	stubServerCmd.Flags().String("secret", "", "token signing secret (random when empty)")
	stubServerCmd.Flags().StringArray("user", nil, "seed an account as email:password[:ROLE]; repeatable")
	stubServerCmd.Flags().Duration("shutdown-timeout", 5*time.Second, "maximum time to drain connections on exit")
	rootCmd.AddCommand(stubServerCmd)
}
