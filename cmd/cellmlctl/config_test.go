package main

import (
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lookupFrom(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func parseCommon(t *testing.T, args ...string) *commonFlags {
	t.Helper()
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	common := bindCommonFlags(fs)
	require.NoError(t, fs.Parse(args))
	return common
}

func writeConfig(t *testing.T, text string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cellmlhub.yaml")
	require.NoError(t, os.WriteFile(path, []byte(text), 0o644))
	return path
}

func TestResolveDefaults(t *testing.T) {
	s, err := parseCommon(t).resolve(lookupFrom(nil))
	require.NoError(t, err)
	assert.Equal(t, defaultSettings(), s)
}

func TestResolvePrecedence(t *testing.T) {
	path := writeConfig(t, `
store: sqlite
db_path: file.db
actor: file-actor
log_level: debug
metrics_out: file.prom
`)
	env := map[string]string{
		"CELLMLHUB_ACTOR":   "env-actor",
		"CELLMLHUB_DB_PATH": "env.db",
		"CELLMLHUB_TRACE":   "stdout",
	}
	common := parseCommon(t, "-config", path, "-db-path", "flag.db", "-log-format", "json")

	s, err := common.resolve(lookupFrom(env))
	require.NoError(t, err)
	assert.Equal(t, "sqlite", s.Store)
	assert.Equal(t, "flag.db", s.DBPath)
	assert.Equal(t, "env-actor", s.Actor)
	assert.Equal(t, "debug", s.LogLevel)
	assert.Equal(t, "json", s.LogFormat)
	assert.Equal(t, "file.prom", s.MetricsOut)
	assert.Equal(t, "stdout", s.Trace)
}

func TestResolveFlagDefaultsDoNotOverrideFile(t *testing.T) {
	path := writeConfig(t, "store: memory\nlog_level: error\n")
	s, err := parseCommon(t).resolve(lookupFrom(map[string]string{"CELLMLHUB_CONFIG": path}))
	require.NoError(t, err)
	assert.Equal(t, "memory", s.Store)
	assert.Equal(t, "error", s.LogLevel)
}

func TestResolveConfigErrors(t *testing.T) {
	_, err := parseCommon(t, "-config", filepath.Join(t.TempDir(), "missing.yaml")).resolve(lookupFrom(nil))
	require.Error(t, err)

	path := writeConfig(t, "store: memory\ncolour: red\n")
	_, err = parseCommon(t, "-config", path).resolve(lookupFrom(nil))
	require.ErrorContains(t, err, "colour")

	empty := writeConfig(t, "")
	s, err := parseCommon(t, "-config", empty).resolve(lookupFrom(nil))
	require.NoError(t, err)
	assert.Equal(t, defaultSettings(), s)
}
