package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// ServerConfig defines the server configuration.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	MaxUploadBytes  int64         `yaml:"max_upload_bytes"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// LLMConfig selects and configures the text-generation backend.
type LLMConfig struct {
	Backend     string        `yaml:"backend"` // "openai" or "ollama"
	Model       string        `yaml:"model"`
	Host        string        `yaml:"host"`
	APIKey      string        `yaml:"api_key"`
	Temperature float64       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
}

// RulesConfig defines where migration rules are cached.
type RulesConfig struct {
	Store      string `yaml:"store"` // "file", "sqlite" or "memory"
	Dir        string `yaml:"dir"`
	SQLitePath string `yaml:"sqlite_path"`
}

// ProjectsConfig defines the workspace that holds uploaded projects.
type ProjectsConfig struct {
	Root         string        `yaml:"root"`
	BuildCommand []string      `yaml:"build_command"`
	BuildTimeout time.Duration `yaml:"build_timeout"`

	// MaxExtractBytes caps the decompressed size of an uploaded archive.
	MaxExtractBytes int64 `yaml:"max_extract_bytes"`
}

// ScanConfig defines the warning scanner parameters.
type ScanConfig struct {
	IgnoreGlobs []string `yaml:"ignore_globs"`
}

// AnalysisConfig defines the analysis parameters.
type AnalysisConfig struct {
	MaxFileReadSize      int64  `yaml:"max_file_read_size"`
	MaxPromptLength      int    `yaml:"max_prompt_length"`
	DefaultTargetVersion int    `yaml:"default_target_version"`
	DefaultMigrationGoal string `yaml:"default_migration_target"`
}

// ExplorerConfig defines the file explorer configuration.
type ExplorerConfig struct {
	IgnoreDirs        []string `yaml:"ignore_dirs"`
	IgnorePrefixes    []string `yaml:"ignore_prefixes"`
	IncludeExtensions []string `yaml:"include_extensions"`
}

// LoggingConfig defines the logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Config is the top-level configuration struct.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	LLM      LLMConfig      `yaml:"llm"`
	Rules    RulesConfig    `yaml:"rules"`
	Projects ProjectsConfig `yaml:"projects"`
	Scan     ScanConfig     `yaml:"scan"`
	Analysis AnalysisConfig `yaml:"analysis"`
	Explorer ExplorerConfig `yaml:"explorer"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// AppConfig holds the loaded configuration.
var AppConfig *Config

// Default returns a configuration with every field populated.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            4000,
			MaxUploadBytes:  200 << 20,
			ShutdownTimeout: 10 * time.Second,
		},
		LLM: LLMConfig{
			Backend:     "openai",
			Model:       "gpt-4o-mini",
			Host:        "http://localhost:11434",
			Temperature: 0.2,
			Timeout:     120 * time.Second,
		},
		Rules: RulesConfig{
			Store:      "file",
			Dir:        "rules",
			SQLitePath: "rules/rules.db",
		},
		Projects: ProjectsConfig{
			Root:            "projects",
			BuildCommand:    []string{"npm", "run", "build"},
			BuildTimeout:    60 * time.Second,
			MaxExtractBytes: 1 << 30,
		},
		Analysis: AnalysisConfig{
			MaxFileReadSize:      512 << 10,
			MaxPromptLength:      120000,
			DefaultTargetVersion: 17,
			DefaultMigrationGoal: "flutter",
		},
		Explorer: ExplorerConfig{
			IgnoreDirs:        []string{"node_modules", "dist", ".git", ".angular"},
			IgnorePrefixes:    []string{"."},
			IncludeExtensions: []string{".ts", ".html", ".scss", ".css", ".json", ".md"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
	}
}

// LoadConfig loads the configuration from path. An empty path means
// "config.yaml" found by walking up from the working directory; when none is
// found the defaults are used. Environment variables are applied last.
func LoadConfig(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	AppConfig = cfg
	return nil
}

// Load reads the configuration without touching AppConfig.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		found, err := findConfigFile("config.yaml")
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		path = found
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("could not read config file at %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("could not parse config file at %s: %w", path, err)
		}
	}

	if err := applyEnv(cfg, filepath.Dir(path)); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv layers NGMIGRATE_* variables (and an optional .env file next to the
// config) over the file values.
func applyEnv(cfg *Config, dir string) error {
	v := viper.New()
	v.SetEnvPrefix("NGMIGRATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if dir == "" {
		dir = "."
	}
	envFile := filepath.Join(dir, ".env")
	if _, err := os.Stat(envFile); err == nil {
		v.SetConfigFile(envFile)
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("could not read %s: %w", envFile, err)
		}
	}

	// OPENAI_API_KEY is honoured without the prefix, as most tooling expects.
	if err := v.BindEnv("llm.api_key", "NGMIGRATE_LLM_API_KEY", "OPENAI_API_KEY"); err != nil {
		return err
	}

	// Keys read from a dotenv file keep their raw (lowercased) names.
	get := func(key string, fileKeys ...string) string {
		if s := v.GetString(key); s != "" {
			return s
		}
		fileKeys = append(fileKeys, "ngmigrate_"+strings.ReplaceAll(key, ".", "_"))
		for _, k := range fileKeys {
			if s := v.GetString(k); s != "" {
				return s
			}
		}
		return ""
	}

	if s := get("llm.api_key", "openai_api_key"); s != "" {
		cfg.LLM.APIKey = s
	}
	if s := get("llm.backend"); s != "" {
		cfg.LLM.Backend = s
	}
	if s := get("llm.model"); s != "" {
		cfg.LLM.Model = s
	}
	if s := get("llm.host"); s != "" {
		cfg.LLM.Host = s
	}
	if s := get("rules.store"); s != "" {
		cfg.Rules.Store = s
	}
	if s := get("rules.dir"); s != "" {
		cfg.Rules.Dir = s
	}
	if s := get("projects.root"); s != "" {
		cfg.Projects.Root = s
	}
	if s := get("logging.level"); s != "" {
		cfg.Logging.Level = s
	}
	if s := get("server.port"); s != "" {
		port, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("invalid server port %q: %w", s, err)
		}
		cfg.Server.Port = port
	}
	return nil
}

// findConfigFile walks up from the working directory looking for name.
func findConfigFile(name string) (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", os.ErrNotExist
		}
		dir = parent
	}
}
