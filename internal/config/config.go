// Package config loads forumwatch settings from flags, environment and an
// optional config.yaml, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/kball/forumwatch/internal/types"
)

var v *viper.Viper

// Initialize (re)builds the viper instance: defaults, FORUMWATCH_* env vars
// and the first config.yaml found on the search path. A missing config file
// is not an error.
func Initialize() error {
	v = viper.New()
	v.SetConfigType("yaml")

	if explicit := os.Getenv("FORUMWATCH_CONFIG"); explicit != "" {
		v.SetConfigFile(explicit)
	} else {
		v.SetConfigName("config")
		for _, dir := range SearchPaths() {
			v.AddConfigPath(dir)
		}
	}

	v.SetEnvPrefix("FORUMWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	for _, k := range Keys {
		if k.Default != nil {
			v.SetDefault(k.Key, k.Default)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		if os.Getenv("FORUMWATCH_CONFIG") != "" && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("error reading config file: %w", err)
	}
	return nil
}

// SearchPaths lists the directories searched for config.yaml, most specific
// first.
func SearchPaths() []string {
	paths := []string{".forumwatch"}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		paths = append(paths, filepath.Join(xdg, "forumwatch"))
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "forumwatch"))
	}
	return paths
}

// UserConfigPath is where `forumwatch config set` writes when no config file
// was loaded.
func UserConfigPath() string {
	if explicit := os.Getenv("FORUMWATCH_CONFIG"); explicit != "" {
		return explicit
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "forumwatch", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".forumwatch", "config.yaml")
	}
	return filepath.Join(home, ".config", "forumwatch", "config.yaml")
}

func ensure() *viper.Viper {
	if v == nil {
		_ = Initialize()
	}
	return v
}

// ConfigFileUsed returns the path of the loaded config file, or "".
func ConfigFileUsed() string { return ensure().ConfigFileUsed() }

// GetString retrieves a string configuration value
func GetString(key string) string { return ensure().GetString(key) }

// GetBool retrieves a boolean configuration value
func GetBool(key string) bool { return ensure().GetBool(key) }

// GetInt retrieves an integer configuration value
func GetInt(key string) int { return ensure().GetInt(key) }

// GetDuration retrieves a duration configuration value
func GetDuration(key string) time.Duration { return ensure().GetDuration(key) }

// IsSet reports whether key has a value from any source, defaults included.
func IsSet(key string) bool { return ensure().IsSet(key) }

// Set overrides a value for the rest of the process (used for flags).
func Set(key string, value interface{}) { ensure().Set(key, value) }

// AllSettings returns every resolved setting as a nested map.
func AllSettings() map[string]interface{} { return ensure().AllSettings() }

// Settings is the resolved configuration the engine is built from.
type Settings struct {
	Server         string
	ViewerType     types.ViewerType
	ViewerID       string
	Ticket         string
	Run            string
	TopicMode      types.TopicMode
	Agent          string
	Priority       types.Priority
	Query          string
	RequestTimeout time.Duration
	StreamDebounce time.Duration
	DebugInterval  time.Duration
	DebugLimit     int
	QueryLimit     int
}

// Load resolves Settings from the current viper state.
func Load() Settings {
	return Settings{
		Server:         GetString("server"),
		ViewerType:     types.ViewerType(GetString("viewer.type")),
		ViewerID:       GetString("viewer.id"),
		Ticket:         GetString("ticket"),
		Run:            GetString("run"),
		TopicMode:      types.TopicMode(GetString("topic-mode")),
		Agent:          GetString("agent"),
		Priority:       types.Priority(GetString("priority")),
		Query:          GetString("query"),
		RequestTimeout: GetDuration("request-timeout"),
		StreamDebounce: GetDuration("stream.debounce"),
		DebugInterval:  GetDuration("debug.interval"),
		DebugLimit:     GetInt("debug.limit"),
		QueryLimit:     GetInt("search.limit"),
	}
}

// Filter returns the engine filter described by s.
func (s Settings) Filter() types.Filter {
	return types.Filter{
		Query:      s.Query,
		Priority:   s.Priority,
		ViewerType: s.ViewerType,
		ViewerID:   s.ViewerID,
		TopicMode:  s.TopicMode,
		Agent:      s.Agent,
	}
}
