package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// EnvPrefix prefixes every environment override, e.g. CRAMDECK_QUIZ_SIZE.
const EnvPrefix = "CRAMDECK_"

// Config is the application configuration.
type Config struct {
	Data     DataConfig     `koanf:"data"`
	Content  ContentConfig  `koanf:"content"`
	Quiz     QuizConfig     `koanf:"quiz"`
	Progress ProgressConfig `koanf:"progress"`
	Schedule ScheduleConfig `koanf:"schedule"`
	HTTP     HTTPConfig     `koanf:"http"`
	Log      LogConfig      `koanf:"log"`
}

// DataConfig locates the local database.
type DataConfig struct {
	Path string `koanf:"path" validate:"required"`
}

// ContentConfig selects the deck. An empty source means the embedded deck.
type ContentConfig struct {
	Source string `koanf:"source"`
	Repos  string `koanf:"repos" validate:"required"`
}

// QuizConfig holds quiz session settings.
type QuizConfig struct {
	Size int `koanf:"size" validate:"gte=1,lte=500"`
}

// ProgressConfig holds progress store settings.
type ProgressConfig struct {
	Strict  bool   `koanf:"strict"`
	Mastery string `koanf:"mastery" validate:"oneof=auto off"`
	Format  string `koanf:"format" validate:"oneof=keyed positional"`
}

// ScheduleConfig tunes the review interval model.
type ScheduleConfig struct {
	Retention float64 `koanf:"retention" validate:"gte=0.5,lte=0.99"`
}

// HTTPConfig holds the API listener settings.
type HTTPConfig struct {
	Addr string `koanf:"addr" validate:"required"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn error"`
	Format string `koanf:"format" validate:"oneof=text json"`
}

// Flags returns the command-line flags. Their defaults are the configuration
// defaults.
func Flags() *pflag.FlagSet {
	f := pflag.NewFlagSet("cramdeck", pflag.ContinueOnError)
	f.String("config", "", "Path to a YAML config file")
	f.String("data.path", "cramdeck.db", "Path to the SQLite database file")
	f.String("content.source", "", "Deck directory or git URL (empty for the built-in deck)")
	f.String("content.repos", "repos", "Directory for cloned content repositories")
	f.Int("quiz.size", 50, "Maximum number of questions per quiz")
	f.Bool("progress.strict", false, "Reject out-of-range card indices instead of ignoring them")
	f.String("progress.mastery", "auto", "Whether mastering a card also marks it reviewed (auto|off)")
	f.String("progress.format", "keyed", "Progress snapshot format (keyed|positional)")
	f.Float64("schedule.retention", 0.9, "Desired retention for review intervals")
	f.String("http.addr", ":8080", "HTTP listen address")
	f.String("log.level", "info", "Log level (debug|info|warn|error)")
	f.String("log.format", "text", "Log format (text|json)")
	return f
}

// Load parses args and merges, in increasing precedence: flag defaults, the
// config file, CRAMDECK_* environment variables, and flags set on the command
// line.
func Load(args []string) (*Config, error) {
	f := Flags()
	if err := f.Parse(args); err != nil {
		return nil, err
	}

	k := koanf.New(".")

	if path, _ := f.GetString("config"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	if err := k.Load(posflag.Provider(f, ".", k), nil); err != nil {
		return nil, fmt.Errorf("failed to load flags: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envKey maps CRAMDECK_QUIZ_SIZE to quiz.size.
func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "_", ".")
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field ranges and enumerations.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, len(verrs))
			for i, fe := range verrs {
				msgs[i] = fmt.Sprintf("%s: failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value())
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Logger builds the slog logger described by the log settings.
func (c LogConfig) Logger() *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
