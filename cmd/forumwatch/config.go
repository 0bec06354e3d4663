package main

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kball/forumwatch/internal/config"
)

var configCmd = &cobra.Command{
	Use:     "config",
	GroupID: GroupSetup,
	Short:   "Manage configuration settings",
	Long: `Manage forumwatch configuration.

Settings resolve in this order: command-line flags, FORUMWATCH_* environment
variables, config.yaml, built-in defaults. config.yaml is looked up in
./.forumwatch, $XDG_CONFIG_HOME/forumwatch and ~/.config/forumwatch, or taken
from $FORUMWATCH_CONFIG.

Examples:
  forumwatch config set server http://forum.internal:3001
  forumwatch config set viewer.id human:alice
  forumwatch config get stream.debounce
  forumwatch config list`,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value in config.yaml",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]
		path := config.ConfigFileUsed()
		if path == "" {
			path = config.UserConfigPath()
		}
		if err := config.SetInFile(path, key, value); err != nil {
			return err
		}
		if structuredOutput() {
			return outputStructured(cmd.OutOrStdout(), map[string]string{
				"key":      key,
				"value":    value,
				"location": path,
			})
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %s (in %s)\n", key, value, path)
		return nil
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a resolved configuration value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := args[0]
		if config.LookupKey(key) == nil {
			return config.ValidateKey(key, "")
		}
		value := config.GetString(key)
		if structuredOutput() {
			return outputStructured(cmd.OutOrStdout(), map[string]string{"key": key, "value": value})
		}
		if value == "" {
			fmt.Fprintf(cmd.OutOrStdout(), "%s (not set)\n", key)
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n", value)
		}
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every configuration key with its resolved value",
	RunE: func(cmd *cobra.Command, args []string) error {
		values := make(map[string]string, len(config.Keys))
		keys := make([]string, 0, len(config.Keys))
		for _, k := range config.Keys {
			values[k.Key] = config.GetString(k.Key)
			keys = append(keys, k.Key)
		}
		sort.Strings(keys)

		if structuredOutput() {
			return outputStructured(cmd.OutOrStdout(), values)
		}

		w := cmd.OutOrStdout()
		if used := config.ConfigFileUsed(); used != "" {
			fmt.Fprintf(w, "Config file: %s\n\n", used)
		} else {
			fmt.Fprintf(w, "Config file: none (would write %s)\n\n", config.UserConfigPath())
		}
		width := 0
		for _, k := range keys {
			width = max(width, len(k))
		}
		for _, k := range keys {
			source := ""
			if isEnvSet(k) {
				source = "  (env)"
			}
			fmt.Fprintf(w, "%-*s  %s%s\n", width, k, values[k], source)
		}
		return nil
	},
}

func isEnvSet(key string) bool {
	env := "FORUMWATCH_" + strings.ToUpper(strings.NewReplacer("-", "_", ".", "_").Replace(key))
	_, ok := os.LookupEnv(env)
	return ok
}

func init() {
	configCmd.AddCommand(configSetCmd, configGetCmd, configListCmd)
	rootCmd.AddCommand(configCmd)
}
