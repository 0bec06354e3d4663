package config

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/kball/forumwatch/internal/types"
)

// Key describes one supported configuration key.
type Key struct {
	Key         string
	Description string
	Default     interface{}
	Validate    func(string) error
}

// Keys lists every configuration key forumwatch reads.
var Keys = []Key{
	{Key: "server", Description: "Forum backend base URL", Default: "http://127.0.0.1:3001", Validate: validateURL},
	{Key: "viewer.type", Description: "Viewer type for queues (human|agent)", Default: string(types.ViewerHuman), Validate: validateViewerType},
	{Key: "viewer.id", Description: "Viewer identity, e.g. human:operator", Default: "human:operator"},
	{Key: "ticket", Description: "Default ticket scope"},
	{Key: "run", Description: "Default run scope"},
	{Key: "topic-mode", Description: "Board grouping (ticket|run|agent)", Default: string(types.TopicTicket), Validate: validateTopicMode},
	{Key: "agent", Description: "Agent filter in agent topic mode"},
	{Key: "priority", Description: "Priority filter (urgent|high|normal|low)", Validate: validatePriority},
	{Key: "query", Description: "Free-text filter"},
	{Key: "request-timeout", Description: "Per-request HTTP timeout", Default: "10s", Validate: validateDuration},
	{Key: "stream.debounce", Description: "Quiet period before a push-triggered refresh", Default: "150ms", Validate: validateDuration},
	{Key: "debug.interval", Description: "Debug snapshot poll interval", Default: "15s", Validate: validateDuration},
	{Key: "debug.limit", Description: "Outbox messages fetched per debug snapshot", Default: 40, Validate: validatePositiveInt},
	{Key: "search.limit", Description: "Row cap per board query", Default: 300, Validate: validatePositiveInt},
	{Key: "json", Description: "Output JSON by default", Default: false, Validate: validateBool},
}

var keyMap map[string]*Key

func init() {
	keyMap = make(map[string]*Key, len(Keys))
	for i := range Keys {
		keyMap[Keys[i].Key] = &Keys[i]
	}
}

// LookupKey returns the definition of key, or nil if it is unknown.
func LookupKey(key string) *Key {
	return keyMap[key]
}

// ValidateKey checks that key is known and value acceptable for it.
func ValidateKey(key, value string) error {
	k := keyMap[key]
	if k == nil {
		known := make([]string, 0, len(Keys))
		for _, k := range Keys {
			known = append(known, k.Key)
		}
		sort.Strings(known)
		return fmt.Errorf("unknown config key %q; valid keys: %s", key, strings.Join(known, ", "))
	}
	if k.Validate != nil && value != "" {
		if err := k.Validate(value); err != nil {
			return fmt.Errorf("invalid value for %s: %w", key, err)
		}
	}
	return nil
}

// Validation helpers

func validateURL(value string) error {
	u, err := url.Parse(value)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("must be an http(s) URL, got %q", value)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host in %q", value)
	}
	return nil
}

func validateViewerType(value string) error {
	switch types.ViewerType(value) {
	case types.ViewerHuman, types.ViewerAgent:
		return nil
	}
	return fmt.Errorf("must be one of: human, agent; got %q", value)
}

func validateTopicMode(value string) error {
	if types.TopicMode(value).IsValid() {
		return nil
	}
	return fmt.Errorf("must be one of: ticket, run, agent; got %q", value)
}

func validatePriority(value string) error {
	if types.Priority(value).IsValid() {
		return nil
	}
	return fmt.Errorf("must be one of: urgent, high, normal, low; got %q", value)
}

func validateDuration(value string) error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("must be a duration like 150ms or 15s, got %q", value)
	}
	if d <= 0 {
		return fmt.Errorf("must be positive, got %s", d)
	}
	return nil
}

func validatePositiveInt(value string) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("must be a number, got %q", value)
	}
	if n < 1 {
		return fmt.Errorf("must be at least 1, got %d", n)
	}
	return nil
}

func validateBool(value string) error {
	switch strings.ToLower(value) {
	case "true", "false", "1", "0", "yes", "no":
		return nil
	default:
		return fmt.Errorf("must be true or false, got %q", value)
	}
}
