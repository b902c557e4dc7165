package app

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/vk/seedgrid/internal/scorer"
	"github.com/vk/seedgrid/internal/sequence"
	"gopkg.in/yaml.v3"
)

// Index backends.
const (
	IndexMemory = "memory"
	IndexSQLite = "sqlite"
)

// IndexFile is the SQLite index file inside the corpus directory.
const IndexFile = "index.db"

// Config holds everything a generation run needs. Values are layered:
// DefaultConfig, then an optional YAML run file, then SEEDGRID_*
// environment variables, then command-line flags.
type Config struct {
	Library     string   `yaml:"library"`
	Descriptors []string `yaml:"descriptors"`
	Template    string   `yaml:"template"`
	Count       int      `yaml:"count"`
	OutDir      string   `yaml:"out"`
	Seed        int64    `yaml:"seed"`
	WorkerCount int      `yaml:"workers"`

	Mode          string        `yaml:"mode"`
	ExecCmd       []string      `yaml:"exec_cmd"`
	Timeout       time.Duration `yaml:"timeout"`
	MemoryLimitMB int           `yaml:"mem_mb"`

	Quota int    `yaml:"quota"`
	Index string `yaml:"index"`

	// GenTimeout bounds the whole generation; zero is unbounded.
	GenTimeout time.Duration `yaml:"gen_timeout"`
	// RoundSize is the number of candidates synthesized per round.
	RoundSize     int `yaml:"round_size"`
	NumNewTriples int `yaml:"num_new_triples"`
	QuietRounds   int `yaml:"quiet_rounds"`
	// MaxAttempts caps the candidates of a run; zero means 20 per
	// requested seed.
	MaxAttempts int                `yaml:"max_attempts"`
	Weights     map[string]float64 `yaml:"weights"`

	StatusPort int    `yaml:"status_port"`
	LogFormat  string `yaml:"log_format"`
	LogLevel   string `yaml:"log_level"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		Template:      sequence.DefaultTemplate.String(),
		Count:         10,
		OutDir:        "corpus",
		Seed:          1,
		WorkerCount:   runtime.NumCPU(),
		Mode:          scorer.ModeStatic.String(),
		Timeout:       10 * time.Second,
		Index:         IndexMemory,
		RoundSize:     16,
		NumNewTriples: 3,
		QuietRounds:   3,
		LogFormat:     "text",
		LogLevel:      "info",
	}
}

// LoadConfigFile overlays the YAML run file at path onto cfg. Unknown keys
// are an error.
func LoadConfigFile(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overlays SEEDGRID_* variables onto cfg.
func ApplyEnv(cfg *Config, getenv func(string) string) error {
	var errs []error
	str := func(name string, dst *string) {
		if v := getenv(name); v != "" {
			*dst = v
		}
	}
	num := func(name string, dst *int) {
		if v := getenv(name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				return
			}
			*dst = n
		}
	}
	dur := func(name string, dst *time.Duration) {
		if v := getenv(name); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				return
			}
			*dst = d
		}
	}

	str("SEEDGRID_LIB", &cfg.Library)
	str("SEEDGRID_TEMPLATE", &cfg.Template)
	str("SEEDGRID_OUT", &cfg.OutDir)
	str("SEEDGRID_MODE", &cfg.Mode)
	str("SEEDGRID_INDEX", &cfg.Index)
	str("SEEDGRID_LOG_FORMAT", &cfg.LogFormat)
	str("SEEDGRID_LOG_LEVEL", &cfg.LogLevel)
	num("SEEDGRID_COUNT", &cfg.Count)
	num("SEEDGRID_WORKERS", &cfg.WorkerCount)
	num("SEEDGRID_MEM_MB", &cfg.MemoryLimitMB)
	num("SEEDGRID_QUOTA", &cfg.Quota)
	dur("SEEDGRID_TIMEOUT", &cfg.Timeout)
	dur("SEEDGRID_GEN_TIMEOUT", &cfg.GenTimeout)
	if v := getenv("SEEDGRID_SEED"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("SEEDGRID_SEED: %w", err))
		} else {
			cfg.Seed = n
		}
	}
	if v := getenv("SEEDGRID_EXEC_CMD"); v != "" {
		cfg.ExecCmd = strings.Fields(v)
	}
	if v := getenv("SEEDGRID_DESCRIPTORS"); v != "" {
		cfg.Descriptors = strings.Split(v, string(os.PathListSeparator))
	}
	return errors.Join(errs...)
}

// NewConfig validates cfg and returns it.
func NewConfig(cfg Config) (*Config, error) {
	var errs []error
	if cfg.Library == "" {
		errs = append(errs, errors.New("library is required"))
	}
	if cfg.OutDir == "" {
		errs = append(errs, errors.New("output directory is required"))
	}
	if cfg.Count <= 0 {
		errs = append(errs, fmt.Errorf("count must be positive, got %d", cfg.Count))
	}
	if _, err := sequence.ParseTemplate(cfg.Template); err != nil {
		errs = append(errs, err)
	}
	if _, err := scorer.ParseMode(cfg.Mode); err != nil {
		errs = append(errs, err)
	}
	if cfg.Index != IndexMemory && cfg.Index != IndexSQLite {
		errs = append(errs, fmt.Errorf("index must be %q or %q, got %q", IndexMemory, IndexSQLite, cfg.Index))
	}
	if cfg.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("timeout must be positive, got %s", cfg.Timeout))
	}
	if cfg.MemoryLimitMB < 0 || cfg.Quota < 0 || cfg.GenTimeout < 0 || cfg.MaxAttempts < 0 {
		errs = append(errs, errors.New("mem_mb, quota, gen_timeout and max_attempts must not be negative"))
	}
	if err := validateLogging(cfg.LogFormat, cfg.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 1
	}
	if cfg.RoundSize <= 0 {
		cfg.RoundSize = cfg.WorkerCount
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = 20 * cfg.Count
	}
	return &cfg, nil
}

func validateLogging(format, level string) error {
	if format != "text" && format != "json" {
		return fmt.Errorf("invalid log-format %q: must be 'text' or 'json'", format)
	}
	switch level {
	case "debug", "info", "warn", "error":
		return nil
	}
	return fmt.Errorf("invalid log-level %q: must be 'debug', 'info', 'warn', or 'error'", level)
}
