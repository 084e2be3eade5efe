// Package config loads the CLI's layered .harvest configuration.
//
// Layers, later wins:
//  1. built-in defaults
//  2. ~/.harvest
//  3. the nearest .harvest above the working directory
//  4. an explicit file (--config)
//  5. HARVEST_* environment variables
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// FileName is the configuration file looked up in $HOME and above the
// working directory.
const FileName = ".harvest"

// EnvPrefix prefixes every environment override.
const EnvPrefix = "HARVEST_"

// Config is the resolved configuration.
type Config struct {
	Login   LoginConfig   `koanf:"Login"`
	Project ProjectConfig `koanf:"Project"`
}

// LoginConfig is the [Login] section.
type LoginConfig struct {
	Domain   string `koanf:"domain"`
	Email    string `koanf:"email"`
	Password string `koanf:"password"`
	Secure   bool   `koanf:"secure"`
}

// ProjectConfig is the [Project] section.
type ProjectConfig struct {
	ProjectID string `koanf:"project_id"`
	TaskID    string `koanf:"task_id"`
}

// MissingFieldError reports a mandatory key that no layer provided.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("missing configuration value %s", e.Field)
}

// Options locate the configuration layers. Empty Home and WorkDir fall back
// to the user's home and the process working directory.
type Options struct {
	Home     string
	WorkDir  string
	Explicit string
}

// Sources lists the files a Load call read, in the order applied.
type Sources []string

func defaultConfig() *Config {
	return &Config{
		Login: LoginConfig{Secure: true},
	}
}

// envMappings maps lower-cased variable names, prefix stripped, to keys.
var envMappings = map[string]string{
	"domain":     "Login.domain",
	"email":      "Login.email",
	"password":   "Login.password",
	"secure":     "Login.secure",
	"project_id": "Project.project_id",
	"task_id":    "Project.task_id",
}

func envTransformFunc(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	return envMappings[key]
}

// Load resolves every layer, then validates the result.
func Load(opts Options) (*Config, Sources, error) {
	home, workDir, err := resolveDirs(opts)
	if err != nil {
		return nil, nil, err
	}

	k := koanf.New(".")
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	var sources Sources
	homeFile := ""
	if home != "" {
		homeFile = filepath.Join(home, FileName)
		if isFile(homeFile) {
			if err := k.Load(file.Provider(homeFile), IniParser()); err != nil {
				return nil, nil, fmt.Errorf("failed to load config file %s: %w", homeFile, err)
			}
			sources = append(sources, homeFile)
		}
	}

	if workDir != "" {
		if nearest, ok := FindUp(workDir, FileName); ok && !samePath(nearest, homeFile) {
			if err := k.Load(file.Provider(nearest), IniParser()); err != nil {
				return nil, nil, fmt.Errorf("failed to load config file %s: %w", nearest, err)
			}
			sources = append(sources, nearest)
		}
	}

	if opts.Explicit != "" {
		if !isFile(opts.Explicit) {
			return nil, nil, fmt.Errorf("config file %s: %w", opts.Explicit, os.ErrNotExist)
		}
		if err := k.Load(file.Provider(opts.Explicit), IniParser()); err != nil {
			return nil, nil, fmt.Errorf("failed to load config file %s: %w", opts.Explicit, err)
		}
		sources = append(sources, opts.Explicit)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envTransformFunc), nil); err != nil {
		return nil, nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, sources, err
	}
	return cfg, sources, nil
}

// Validate returns a *MissingFieldError for the first empty mandatory key.
func (c *Config) Validate() error {
	required := []struct {
		field string
		value string
	}{
		{"Login.domain", c.Login.Domain},
		{"Login.email", c.Login.Email},
		{"Login.password", c.Login.Password},
		{"Project.project_id", c.Project.ProjectID},
		{"Project.task_id", c.Project.TaskID},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return &MissingFieldError{Field: r.field}
		}
	}
	return nil
}

// FindUp looks for name in start and each of its parents, stopping at the
// filesystem root. It returns the first regular file found.
func FindUp(start, name string) (string, bool) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", false
	}
	for {
		candidate := filepath.Join(dir, name)
		if isFile(candidate) {
			return candidate, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

func resolveDirs(opts Options) (home, workDir string, err error) {
	home = opts.Home
	if home == "" {
		// No home directory is not fatal; the other layers may suffice.
		home, _ = os.UserHomeDir()
	}
	workDir = opts.WorkDir
	if workDir == "" {
		workDir, err = os.Getwd()
		if err != nil {
			return "", "", fmt.Errorf("resolve working directory: %w", err)
		}
	}
	return home, workDir, nil
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func samePath(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	ai, errA := os.Stat(a)
	bi, errB := os.Stat(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return os.SameFile(ai, bi)
}
