package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/eventctl/internal/config"
	apperrors "github.com/felixgeelhaar/eventctl/internal/errors"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and change configuration",
	Long: `Read and write ~/.eventctl/config.yaml.

Every key can be overridden with an EVENTCTL_ environment variable, for
example EVENTCTL_API_BASE_URL. Secrets (session.passphrase, redis.password)
are only read from the environment.`,
}

var configViewCmd = &cobra.Command{
	Use:   "view",
	Short: "Show the effective configuration with secrets masked",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		redacted := current.cfg.Redacted()
		if current.structured() {
			return current.render(redacted)
		}
		data, err := yaml.Marshal(redacted)
		if err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
		fmt.Fprint(current.out, string(data))
		return nil
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get KEY",
	Short: "Print the effective value of a key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := args[0]
		value, ok := current.loader.Get(key)
		if !ok {
			return apperrors.NewConfigInvalidError(fmt.Sprintf("unknown key %q (known keys: %s)", key, strings.Join(config.Keys(), ", ")))
		}
		if config.IsSecret(key) && fmt.Sprint(value) != "" {
			value = "********"
		}
		fmt.Fprintln(current.out, value)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set KEY VALUE",
	Short: "Write a key to the configuration file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := current.loader.Set(args[0], args[1]); err != nil {
			return err
		}
		fmt.Fprintf(current.out, "Set %s = %s in %s\n", args[0], args[1], current.loader.Path())
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the configuration file location",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintln(current.out, current.loader.Path())
		return nil
	},
}

func init() {
	configCmd.AddCommand(configViewCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configPathCmd)
	rootCmd.AddCommand(configCmd)
}
