package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"cellmlhub/internal/storage"
)

const envPrefix = "CELLMLHUB_"

// settings are the options shared by every command. They are resolved from
// defaults, then the config file, then the environment, then flags.
type settings struct {
	Store      string `yaml:"store"`
	DBPath     string `yaml:"db_path"`
	DSN        string `yaml:"dsn"`
	Actor      string `yaml:"actor"`
	LogLevel   string `yaml:"log_level"`
	LogFormat  string `yaml:"log_format"`
	LogFile    string `yaml:"log_file"`
	MetricsOut string `yaml:"metrics_out"`
	Trace      string `yaml:"trace"`
}

func defaultSettings() settings {
	return settings{
		Store:     storage.DefaultStoreKind(),
		DBPath:    "cellmlhub.db",
		LogLevel:  "warn",
		LogFormat: "console",
		Trace:     "none",
	}
}

// commonFlags binds the shared options to a command's flag set. Values are
// only taken from flags the user actually passed.
type commonFlags struct {
	fs     *flag.FlagSet
	config string
	values settings
}

func bindCommonFlags(fs *flag.FlagSet) *commonFlags {
	c := &commonFlags{fs: fs}
	defaults := defaultSettings()
	fs.StringVar(&c.config, "config", "", "YAML config file")
	fs.StringVar(&c.values.Store, "store", defaults.Store, "store backend: memory|sqlite|postgres")
	fs.StringVar(&c.values.DBPath, "db-path", defaults.DBPath, "sqlite database path")
	fs.StringVar(&c.values.DSN, "dsn", "", "postgres connection string")
	fs.StringVar(&c.values.Actor, "actor", "", "identity recorded as owner of new entities")
	fs.StringVar(&c.values.LogLevel, "log-level", defaults.LogLevel, "log level: debug|info|warn|error")
	fs.StringVar(&c.values.LogFormat, "log-format", defaults.LogFormat, "log format: console|json")
	fs.StringVar(&c.values.LogFile, "log-file", "", "append logs to this file instead of stderr")
	fs.StringVar(&c.values.MetricsOut, "metrics-out", "", "write Prometheus metrics to this file on exit")
	fs.StringVar(&c.values.Trace, "trace", defaults.Trace, "span exporter: none|stdout")
	return c
}

// resolve layers the config file and environment under the flags that were
// set explicitly.
func (c *commonFlags) resolve(lookup func(string) (string, bool)) (settings, error) {
	s := defaultSettings()

	path := c.config
	if path == "" {
		path, _ = lookup(envPrefix + "CONFIG")
	}
	if path != "" {
		file, err := loadSettingsFile(path)
		if err != nil {
			return settings{}, err
		}
		s.merge(file)
	}

	applyEnv(&s, lookup)

	c.fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "store":
			s.Store = c.values.Store
		case "db-path":
			s.DBPath = c.values.DBPath
		case "dsn":
			s.DSN = c.values.DSN
		case "actor":
			s.Actor = c.values.Actor
		case "log-level":
			s.LogLevel = c.values.LogLevel
		case "log-format":
			s.LogFormat = c.values.LogFormat
		case "log-file":
			s.LogFile = c.values.LogFile
		case "metrics-out":
			s.MetricsOut = c.values.MetricsOut
		case "trace":
			s.Trace = c.values.Trace
		}
	})
	return s, nil
}

func loadSettingsFile(path string) (settings, error) {
	f, err := os.Open(path)
	if err != nil {
		return settings{}, err
	}
	defer f.Close()

	var s settings
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		if errors.Is(err, io.EOF) {
			return settings{}, nil
		}
		return settings{}, fmt.Errorf("read config %s: %w", path, err)
	}
	return s, nil
}

// merge copies the non-empty fields of other onto s.
func (s *settings) merge(other settings) {
	overlay := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	overlay(&s.Store, other.Store)
	overlay(&s.DBPath, other.DBPath)
	overlay(&s.DSN, other.DSN)
	overlay(&s.Actor, other.Actor)
	overlay(&s.LogLevel, other.LogLevel)
	overlay(&s.LogFormat, other.LogFormat)
	overlay(&s.LogFile, other.LogFile)
	overlay(&s.MetricsOut, other.MetricsOut)
	overlay(&s.Trace, other.Trace)
}

func applyEnv(s *settings, lookup func(string) (string, bool)) {
	var env settings
	for name, dst := range map[string]*string{
		"STORE":       &env.Store,
		"DB_PATH":     &env.DBPath,
		"DSN":         &env.DSN,
		"ACTOR":       &env.Actor,
		"LOG_LEVEL":   &env.LogLevel,
		"LOG_FORMAT":  &env.LogFormat,
		"LOG_FILE":    &env.LogFile,
		"METRICS_OUT": &env.MetricsOut,
		"TRACE":       &env.Trace,
	} {
		if v, ok := lookup(envPrefix + name); ok {
			*dst = v
		}
	}
	s.merge(env)
}
