package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied before any config source.
const (
	DefaultCmd      = "python -m unittest discover"
	DefaultDebounce = 5 * time.Second
	DefaultLogLevel = "info"
)

// DirName is the per-project state directory.
const DirName = ".supcut"

// configFile is the name of the config file
const configFile = "config.yaml"

// emailTemplateFile is the default email template inside DirName.
const emailTemplateFile = "email.tpl"

// EmailConfig holds SMTP settings for failure and fix notifications.
type EmailConfig struct {
	Server     string   `yaml:"server"`
	Port       int      `yaml:"port"`
	Sender     string   `yaml:"sender"`
	Receivers  []string `yaml:"receivers"`
	SubjectTag string   `yaml:"subject_tag"`
	Username   string   `yaml:"username"`
	Password   string   `yaml:"password"`
	Template   string   `yaml:"template"`
}

// Config holds supcut configuration
type Config struct {
	// Root is the project directory: the parent of the closest .supcut
	// directory, or the working directory when none exists.
	Root string `yaml:"-"`

	Cmd                  string        `yaml:"cmd"`
	Files                []string      `yaml:"files"`
	TestFiles            []string      `yaml:"test_files"`
	AppendTestFiles      bool          `yaml:"append_test_files"`
	Debounce             time.Duration `yaml:"debounce"`
	Verbose              bool          `yaml:"verbose"`
	Quiet                bool          `yaml:"quiet"`
	LogLevel             string        `yaml:"log_level"`
	DesktopNotifications bool          `yaml:"desktop_notifications"`
	NotifyRunStart       bool          `yaml:"notify_run_start"`
	IncludeErrors        bool          `yaml:"include_errors"`
	Email                EmailConfig   `yaml:"email"`
}

type fileConfig struct {
	Cmd                  string      `yaml:"cmd"`
	Files                []string    `yaml:"files"`
	TestFiles            []string    `yaml:"test_files"`
	AppendTestFiles      *bool       `yaml:"append_test_files"`
	Debounce             string      `yaml:"debounce"`
	Verbose              *bool       `yaml:"verbose"`
	Quiet                *bool       `yaml:"quiet"`
	LogLevel             string      `yaml:"log_level"`
	DesktopNotifications *bool       `yaml:"desktop_notifications"`
	NotifyRunStart       *bool       `yaml:"notify_run_start"`
	IncludeErrors        *bool       `yaml:"include_errors"`
	Email                EmailConfig `yaml:"email"`
}

// Default returns the built-in configuration rooted at dir.
func Default(dir string) *Config {
	return &Config{
		Root:                 dir,
		Cmd:                  DefaultCmd,
		Debounce:             DefaultDebounce,
		LogLevel:             DefaultLogLevel,
		DesktopNotifications: true,
		Email: EmailConfig{
			Template: filepath.Join(dir, DirName, emailTemplateFile),
		},
	}
}

// Load loads configuration with the following precedence (highest first):
// 1. Repo-local .supcut/config.yaml in the current directory
// 2. Parent .supcut/config.yaml files (searched upward from cwd)
// 3. Environment variables
// 4. Global ~/.config/supcut/config.yaml
//
// CLI flags are applied on top by the caller.
func Load() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	repoPaths, err := findRepoConfigs()
	if err != nil {
		return nil, err
	}
	root := cwd
	if len(repoPaths) > 0 {
		root = filepath.Dir(filepath.Dir(repoPaths[len(repoPaths)-1]))
	}
	cfg := Default(root)

	// Load global config first (lowest precedence)
	globalPath := globalConfigPath()
	if globalPath != "" {
		if err := loadFromFile(globalPath, cfg); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("global config %s: %w", globalPath, err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	for _, repoPath := range repoPaths {
		if err := loadFromFile(repoPath, cfg); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("repo config %s: %w", repoPath, err)
		}
	}

	return cfg, nil
}

// StateDir returns the .supcut directory under Root.
func (c *Config) StateDir() string {
	return filepath.Join(c.Root, DirName)
}

// LogPath returns the path of the log file.
func (c *Config) LogPath() string {
	return filepath.Join(c.StateDir(), "supcut.log")
}

// Validate checks values that cannot be checked while merging.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Cmd) == "" {
		return fmt.Errorf("cmd must not be empty")
	}
	if c.Debounce < 0 {
		return fmt.Errorf("debounce must not be negative, got %s", c.Debounce)
	}
	if c.Verbose && c.Quiet {
		return fmt.Errorf("verbose and quiet are mutually exclusive")
	}
	if c.Email.Server != "" && (c.Email.Sender == "" || len(c.Email.Receivers) == 0) {
		return fmt.Errorf("email: sender and receivers are required when server is set")
	}
	return nil
}

// findRepoConfigs searches upward from cwd for .supcut/config.yaml files.
// Returned paths are ordered from furthest ancestor to closest (highest precedence last).
func findRepoConfigs() ([]string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	dir := cwd
	var paths []string
	for {
		configPath := filepath.Join(dir, DirName, configFile)
		if _, err := os.Stat(configPath); err == nil {
			paths = append(paths, configPath)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	for i, j := 0, len(paths)-1; i < j; i, j = i+1, j-1 {
		paths[i], paths[j] = paths[j], paths[i]
	}

	return paths, nil
}

// globalConfigPath returns the path to global config
func globalConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "supcut", configFile)
}

// loadFromFile loads config from a YAML file, merging into existing cfg.
// The email template path is resolved relative to the repo root for
// .supcut/config.yaml and relative to the file's directory otherwise.
func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var fileCfg fileConfig
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return err
	}

	configDir := filepath.Dir(path)
	baseDir := configDir
	if filepath.Base(configDir) == DirName {
		baseDir = filepath.Dir(configDir)
	}

	if fileCfg.Cmd != "" {
		cfg.Cmd = fileCfg.Cmd
	}
	if len(fileCfg.Files) > 0 {
		cfg.Files = fileCfg.Files
	}
	if len(fileCfg.TestFiles) > 0 {
		cfg.TestFiles = fileCfg.TestFiles
	}
	if fileCfg.AppendTestFiles != nil {
		cfg.AppendTestFiles = *fileCfg.AppendTestFiles
	}
	if fileCfg.Debounce != "" {
		d, err := ParseDebounce(fileCfg.Debounce)
		if err != nil {
			return err
		}
		cfg.Debounce = d
	}
	if fileCfg.Verbose != nil {
		cfg.Verbose = *fileCfg.Verbose
	}
	if fileCfg.Quiet != nil {
		cfg.Quiet = *fileCfg.Quiet
	}
	if fileCfg.LogLevel != "" {
		cfg.LogLevel = fileCfg.LogLevel
	}
	if fileCfg.DesktopNotifications != nil {
		cfg.DesktopNotifications = *fileCfg.DesktopNotifications
	}
	if fileCfg.NotifyRunStart != nil {
		cfg.NotifyRunStart = *fileCfg.NotifyRunStart
	}
	if fileCfg.IncludeErrors != nil {
		cfg.IncludeErrors = *fileCfg.IncludeErrors
	}
	mergeEmail(&cfg.Email, fileCfg.Email, baseDir)

	return nil
}

func mergeEmail(dst *EmailConfig, src EmailConfig, baseDir string) {
	if src.Server != "" {
		dst.Server = src.Server
	}
	if src.Port != 0 {
		dst.Port = src.Port
	}
	if src.Sender != "" {
		dst.Sender = src.Sender
	}
	if len(src.Receivers) > 0 {
		dst.Receivers = src.Receivers
	}
	if src.SubjectTag != "" {
		dst.SubjectTag = src.SubjectTag
	}
	if src.Username != "" {
		dst.Username = src.Username
	}
	if src.Password != "" {
		dst.Password = src.Password
	}
	if src.Template != "" {
		dst.Template = resolvePathFromConfig(src.Template, baseDir)
	}
}

// ParseDebounce accepts a Go duration ("5s", "1m") or a bare number of
// seconds ("5").
func ParseDebounce(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}
	d, err := time.ParseDuration(s + "s")
	if err != nil {
		return 0, fmt.Errorf("invalid debounce %q: %w", s, err)
	}
	return d, nil
}

// resolvePathFromConfig resolves a path from a config file
// - Expands ~ to home directory
// - Makes relative paths absolute relative to baseDir
// - Returns absolute paths unchanged
func resolvePathFromConfig(path, baseDir string) string {
	if path == "" {
		return ""
	}
	return ExpandPath(path, baseDir)
}

// applyEnv applies environment variables to config
func applyEnv(cfg *Config) error {
	if v := os.Getenv("SUPCUT_CMD"); v != "" {
		cfg.Cmd = v
	}
	if v := os.Getenv("SUPCUT_FILES"); v != "" {
		cfg.Files = splitList(v)
	}
	if v := os.Getenv("SUPCUT_DEBOUNCE"); v != "" {
		d, err := ParseDebounce(v)
		if err != nil {
			return fmt.Errorf("SUPCUT_DEBOUNCE: %w", err)
		}
		cfg.Debounce = d
	}
	if v := os.Getenv("SUPCUT_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("SUPCUT_NOTIFY"); v != "" {
		cfg.DesktopNotifications = v == "true" || v == "1" || v == "yes"
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ExpandPath expands ~ and makes path absolute relative to base
func ExpandPath(path, base string) string {
	if path == "" {
		return ""
	}

	if path[0] == '~' {
		home, _ := os.UserHomeDir()
		path = filepath.Join(home, path[1:])
	}

	if !filepath.IsAbs(path) && base != "" {
		path = filepath.Join(base, path)
	}

	return path
}
