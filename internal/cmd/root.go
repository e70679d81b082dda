package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var rootCmd = &cobra.Command{
	Use:   "eventctl",
	Short: "Command-line client for the events service",
	Long: `eventctl signs you in to the events service, keeps your session between
runs, and lets you list, search, create, and delete events.

Views are gated by session and role: without a session every view asks you
to log in, and creating or deleting events requires the ADMIN or ORGANIZER role.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var (
	flagConfigPath     string
	flagAPIURL         string
	flagSessionBackend string
	flagSessionPath    string
	flagOutput         string
	flagLogLevel       string
	flagNoColor        bool
)

// flagKeys maps persistent flags onto configuration keys.
var flagKeys = map[string]string{
	"api-url":         "api.base_url",
	"session-backend": "session.backend",
	"session-path":    "session.path",
	"output":          "output.format",
	"log-level":       "logging.level",
	"no-color":        "output.no_color",
}

func init() {
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error { return initApp(cmd) }

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&flagConfigPath, "config", "", "config file (default is $HOME/.eventctl/config.yaml)")
	flags.StringVar(&flagAPIURL, "api-url", "", "base URL of the events API")
	flags.StringVar(&flagSessionBackend, "session-backend", "", "session storage: file, encrypted, redis or memory")
	flags.StringVar(&flagSessionPath, "session-path", "", "session file location")
	flags.StringVarP(&flagOutput, "output", "o", "", "output format: text, json or yaml")
	flags.StringVar(&flagLogLevel, "log-level", "", "log level: debug, info, warn or error")
	flags.BoolVar(&flagNoColor, "no-color", false, "disable colored output")
}

func bindFlags(bind func(key string, flag *pflag.Flag) error) error {
	for name, key := range flagKeys {
		f := rootCmd.PersistentFlags().Lookup(name)
		if f == nil {
			continue
		}
		if err := bind(key, f); err != nil {
			return err
		}
	}
	return nil
}

// Execute runs the root command
func Execute() error {
	return ExecuteContext(context.Background())
}

// ExecuteContext runs the root command with ctx and releases whatever the
// command opened.
func ExecuteContext(ctx context.Context) error {
	err := rootCmd.ExecuteContext(ctx)
	closeApp(err)
	return err
}
