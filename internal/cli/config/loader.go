package config

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// configKey is used to store the loaded config in a command context.
type configKey struct{}

// loggerKey is used to store the logger in a command context.
type loggerKey struct{}

// configFileUsed tracks which settings file the last load read.
var configFileUsed string

// findConfigFile finds the settings file to use.
// Priority: explicit path > gridrun.yaml > gridrun.yml
func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	for _, name := range []string{"gridrun.yaml", "gridrun.yml"} {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return ""
}

// Load loads configuration from file, environment variables, and flags.
// Precedence (highest to lowest): flags > env vars > config file > defaults
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	// 1. Defaults
	if err := k.Load(confmap.Provider(map[string]interface{}{
		"matrix_file": DefaultMatrixFile,
		"state_path":  DefaultStateFile,
		"env_root":    DefaultEnvRoot,
		"parallel":    DefaultParallel,
		"verbose":     false,
		"output":      DefaultOutput,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Settings file
	configFileUsed = findConfigFile(cfgFile)
	if configFileUsed != "" {
		if err := k.Load(file.Provider(configFileUsed), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFileUsed, err)
		}
	}

	// 3. Environment variables: GRIDRUN_MATRIX_FILE -> matrix_file
	if err := k.Load(env.Provider("GRIDRUN_", ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, "GRIDRUN_"))
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags (highest priority)
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed {
				return "", nil
			}
			// Kebab-case flags map to snake_case config keys; --matrix
			// and --state are short forms of their config keys.
			key := strings.ReplaceAll(f.Name, "-", "_")
			switch key {
			case "matrix":
				key = "matrix_file"
			case "state":
				key = "state_path"
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	return &cfg, nil
}

// FileUsed returns the path to the settings file being used, if any.
func FileUsed() string {
	return configFileUsed
}

// NewContext stores the config in a context.
func NewContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// FromContext retrieves the config from a context, falling back to
// defaults so help paths never dereference nil.
func FromContext(ctx context.Context) *Config {
	if c, ok := ctx.Value(configKey{}).(*Config); ok {
		return c
	}
	return &Config{
		MatrixFile: DefaultMatrixFile,
		StatePath:  DefaultStateFile,
		EnvRoot:    DefaultEnvRoot,
		Parallel:   DefaultParallel,
		Output:     DefaultOutput,
	}
}

// WithLogger stores the logger in a context.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// Logger retrieves the logger from a context.
func Logger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
