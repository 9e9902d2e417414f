package cli

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alnah/go-retell/internal/config"
	"github.com/alnah/go-retell/internal/generate"
)

// ConfigCmd creates the config command with subcommands.
// The env parameter provides injectable dependencies for testing.
func ConfigCmd(env *Env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration settings",
		Long: `Manage persistent configuration settings.

Configuration is stored in ~/.config/retell/config.
Settings can also be provided via environment variables.

Supported settings:
  output-dir      Default directory for outputs and artifacts (env: RETELL_OUTPUT_DIR)
  model           Default model (env: RETELL_MODEL)
  fallback-model  Model tried when the primary fails (env: RETELL_FALLBACK_MODEL)`,
		Example: `  retell config set output-dir ~/Documents/retold
  retell config set model deepseek-chat
  retell config get model
  retell config list`,
	}

	cmd.AddCommand(configSetCmd(env))
	cmd.AddCommand(configGetCmd(env))
	cmd.AddCommand(configListCmd(env))

	return cmd
}

func configSetCmd(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Long: `Set a configuration value.

Directories are created if they don't exist. Models must name a known
provider.`,
		Example: `  retell config set output-dir ~/Documents/retold
  retell config set fallback-model gpt-4o-mini`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigSet(env, args[0], args[1])
		},
	}
}

func configGetCmd(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:     "get <key>",
		Short:   "Get a configuration value",
		Long:    `Get a configuration value. Prints nothing if not set.`,
		Example: `  retell config get output-dir`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigGet(env, args[0])
		},
	}
}

func configListCmd(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Short:   "List all configuration values",
		Long:    `List configuration values from the config file and the environment.`,
		Example: `  retell config list`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigList(env)
		},
	}
}

// runConfigSet handles the "config set" command.
func runConfigSet(env *Env, key, value string) error {
	if !config.ValidKey(key) {
		return fmt.Errorf("%w: %q (valid keys: %s)", config.ErrUnknownKey, key, strings.Join(config.Keys(), ", "))
	}

	switch key {
	case config.KeyOutputDir:
		expanded := config.ExpandPath(value)
		if err := config.ValidOutputDir(expanded); err != nil {
			return fmt.Errorf("invalid output-dir: %w", err)
		}
		value = expanded
	case config.KeyModel, config.KeyFallbackModel:
		if _, _, err := generate.ResolveModel(value); err != nil {
			return err
		}
	}

	if err := config.Save(key, value); err != nil {
		return err
	}

	_, _ = fmt.Fprintf(env.Stderr, "Set %s = %s\n", key, value)
	return nil
}

// runConfigGet handles the "config get" command.
func runConfigGet(env *Env, key string) error {
	if !config.ValidKey(key) {
		return fmt.Errorf("%w: %q (valid keys: %s)", config.ErrUnknownKey, key, strings.Join(config.Keys(), ", "))
	}

	value, err := config.Get(key)
	if err != nil {
		return err
	}
	if value == "" {
		value = env.Getenv(config.EnvVar(key))
	}
	if value != "" {
		_, _ = fmt.Fprintln(env.Stdout, value)
	}
	return nil
}

// runConfigList handles the "config list" command.
func runConfigList(env *Env) error {
	data, err := config.List()
	if err != nil {
		return err
	}

	for _, key := range config.Keys() {
		if _, ok := data[key]; ok {
			continue
		}
		if v := env.Getenv(config.EnvVar(key)); v != "" {
			data[key] = v + " (from env)"
		}
	}

	if len(data) == 0 {
		_, _ = fmt.Fprintln(env.Stdout, "No configuration set.")
		_, _ = fmt.Fprintln(env.Stdout, "\nAvailable settings:")
		for _, key := range config.Keys() {
			_, _ = fmt.Fprintf(env.Stdout, "  %s\n", key)
		}
		return nil
	}

	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, key := range keys {
		_, _ = fmt.Fprintf(env.Stdout, "%s=%s\n", key, data[key])
	}
	return nil
}
