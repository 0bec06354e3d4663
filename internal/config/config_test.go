package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/kball/forumwatch/internal/types"
)

func TestInitialize(t *testing.T) {
	require.NoError(t, Initialize())
	require.NotNil(t, v, "viper instance is nil after Initialize()")
	assert.Empty(t, ConfigFileUsed())
}

func TestDefaults(t *testing.T) {
	require.NoError(t, Initialize())

	tests := []struct {
		key      string
		expected interface{}
		getter   func(string) interface{}
	}{
		{"server", "http://127.0.0.1:3001", func(k string) interface{} { return GetString(k) }},
		{"viewer.type", "human", func(k string) interface{} { return GetString(k) }},
		{"viewer.id", "human:operator", func(k string) interface{} { return GetString(k) }},
		{"topic-mode", "ticket", func(k string) interface{} { return GetString(k) }},
		{"ticket", "", func(k string) interface{} { return GetString(k) }},
		{"json", false, func(k string) interface{} { return GetBool(k) }},
		{"request-timeout", 10 * time.Second, func(k string) interface{} { return GetDuration(k) }},
		{"stream.debounce", 150 * time.Millisecond, func(k string) interface{} { return GetDuration(k) }},
		{"debug.interval", 15 * time.Second, func(k string) interface{} { return GetDuration(k) }},
		{"debug.limit", 40, func(k string) interface{} { return GetInt(k) }},
		{"search.limit", 300, func(k string) interface{} { return GetInt(k) }},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.getter(tt.key))
		})
	}
}

func TestEnvironmentBinding(t *testing.T) {
	tests := []struct {
		envVar   string
		key      string
		value    string
		expected interface{}
		getter   func(string) interface{}
	}{
		{"FORUMWATCH_SERVER", "server", "http://forum:9000", "http://forum:9000", func(k string) interface{} { return GetString(k) }},
		{"FORUMWATCH_VIEWER_ID", "viewer.id", "human:alice", "human:alice", func(k string) interface{} { return GetString(k) }},
		{"FORUMWATCH_TOPIC_MODE", "topic-mode", "agent", "agent", func(k string) interface{} { return GetString(k) }},
		{"FORUMWATCH_STREAM_DEBOUNCE", "stream.debounce", "300ms", 300 * time.Millisecond, func(k string) interface{} { return GetDuration(k) }},
		{"FORUMWATCH_JSON", "json", "true", true, func(k string) interface{} { return GetBool(k) }},
	}

	for _, tt := range tests {
		t.Run(tt.envVar, func(t *testing.T) {
			t.Setenv(tt.envVar, tt.value)
			require.NoError(t, Initialize())
			assert.Equal(t, tt.expected, tt.getter(tt.key))
		})
	}
}

func TestConfigFileFromXDG(t *testing.T) {
	dir := filepath.Join(os.Getenv("XDG_CONFIG_HOME"), "forumwatch")
	require.NoError(t, os.MkdirAll(dir, 0750))
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("ticket: T-9\nviewer:\n  id: agent:team-a:worker-7\n"), 0600))
	t.Cleanup(func() { _ = os.Remove(path) })

	require.NoError(t, Initialize())
	assert.Equal(t, path, ConfigFileUsed())
	assert.Equal(t, "T-9", GetString("ticket"))
	assert.Equal(t, "agent:team-a:worker-7", GetString("viewer.id"))
	assert.Equal(t, "human", GetString("viewer.type"), "unset keys keep defaults")
}

func TestExplicitConfigMissingIsTolerated(t *testing.T) {
	t.Setenv("FORUMWATCH_CONFIG", filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, Initialize())
	assert.Equal(t, "human:operator", GetString("viewer.id"))
}

func TestInvalidConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("ticket: [unterminated\n"), 0600))
	t.Setenv("FORUMWATCH_CONFIG", path)

	err := Initialize()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestSetOverridesForProcess(t *testing.T) {
	require.NoError(t, Initialize())
	Set("agent", "worker-7")
	assert.Equal(t, "worker-7", GetString("agent"))
	assert.True(t, IsSet("agent"))
}

func TestLoadSettings(t *testing.T) {
	require.NoError(t, Initialize())
	Set("ticket", "T-1")
	Set("priority", "urgent")
	Set("query", "deploy")

	s := Load()
	assert.Equal(t, "http://127.0.0.1:3001", s.Server)
	assert.Equal(t, "T-1", s.Ticket)
	assert.Equal(t, 150*time.Millisecond, s.StreamDebounce)
	assert.Equal(t, 300, s.QueryLimit)

	f := s.Filter()
	assert.Equal(t, types.Filter{
		Query:      "deploy",
		Priority:   types.PriorityUrgent,
		ViewerType: types.ViewerHuman,
		ViewerID:   "human:operator",
		TopicMode:  types.TopicTicket,
	}, f)
}

func TestQueryFilterAndSearchLimitCoexist(t *testing.T) {
	require.NoError(t, Initialize())
	Set("search.limit", 500)
	Set("query", "deploy")
	assert.Equal(t, 500, GetInt("search.limit"))
	assert.Equal(t, "deploy", GetString("query"))

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("query: deploy\nsearch:\n  limit: 120\n"), 0600))
	t.Setenv("FORUMWATCH_CONFIG", path)
	require.NoError(t, Initialize())

	s := Load()
	assert.Equal(t, "deploy", s.Query)
	assert.Equal(t, 120, s.QueryLimit)
}

func TestValidateKey(t *testing.T) {
	tests := []struct {
		key     string
		value   string
		wantErr string
	}{
		{"server", "https://forum.example.com", ""},
		{"server", "ftp://x", "http(s) URL"},
		{"server", "http://", "missing host"},
		{"viewer.type", "agent", ""},
		{"viewer.type", "robot", "human, agent"},
		{"topic-mode", "run", ""},
		{"topic-mode", "label", "ticket, run, agent"},
		{"priority", "low", ""},
		{"priority", "p0", "urgent, high"},
		{"priority", "", ""},
		{"stream.debounce", "250ms", ""},
		{"stream.debounce", "soon", "duration"},
		{"debug.interval", "-1s", "positive"},
		{"debug.limit", "0", "at least 1"},
		{"search.limit", "many", "number"},
		{"json", "yes", ""},
		{"json", "maybe", "true or false"},
		{"viewer.id", "anything:goes", ""},
		{"no.such.key", "x", "unknown config key"},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			err := ValidateKey(tt.key, tt.value)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLookupKey(t *testing.T) {
	k := LookupKey("stream.debounce")
	require.NotNil(t, k)
	assert.Equal(t, "150ms", k.Default)
	assert.Nil(t, LookupKey("db"))
}

func TestUserConfigPath(t *testing.T) {
	assert.Equal(t, filepath.Join(os.Getenv("XDG_CONFIG_HOME"), "forumwatch", "config.yaml"), UserConfigPath())

	t.Setenv("FORUMWATCH_CONFIG", "/tmp/elsewhere.yaml")
	assert.Equal(t, "/tmp/elsewhere.yaml", UserConfigPath())
}

func TestSetInFileCreatesNestedKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")

	require.NoError(t, SetInFile(path, "viewer.id", "agent:team-a:worker-7"))
	require.NoError(t, SetInFile(path, "debug.limit", "25"))
	require.NoError(t, SetInFile(path, "json", "true"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var got struct {
		Viewer struct {
			ID string `yaml:"id"`
		} `yaml:"viewer"`
		Debug struct {
			Limit int `yaml:"limit"`
		} `yaml:"debug"`
		JSON bool `yaml:"json"`
	}
	require.NoError(t, yaml.Unmarshal(data, &got))
	assert.Equal(t, "agent:team-a:worker-7", got.Viewer.ID)
	assert.Equal(t, 25, got.Debug.Limit)
	assert.True(t, got.JSON)
}

func TestSetInFilePreservesCommentsAndOtherKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	original := "# operator defaults\nticket: T-1 # current sprint\nviewer:\n  type: human\n"
	require.NoError(t, os.WriteFile(path, []byte(original), 0600))

	require.NoError(t, SetInFile(path, "ticket", "T-2"))
	require.NoError(t, SetInFile(path, "viewer.id", "human:bob"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, "# operator defaults")
	assert.Contains(t, text, "ticket: T-2")
	assert.NotContains(t, text, "T-1")
	assert.Contains(t, text, "type: human")
	assert.Contains(t, text, "id: human:bob")
}

func TestSetInFileRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.Error(t, SetInFile(path, "topic-mode", "label"))
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err), "nothing is written for an invalid value")
}

func TestSetInFileThenInitialize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	t.Setenv("FORUMWATCH_CONFIG", path)
	require.NoError(t, SetInFile(path, "stream.debounce", "400ms"))

	require.NoError(t, Initialize())
	assert.Equal(t, 400*time.Millisecond, GetDuration("stream.debounce"))
}
