// Package config manages OVC configuration and the .ovc directory structure.
// It handles loading, saving, and initializing the repository configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

const (
	OVCDir      = ".ovc"
	ConfigFile  = "config"
	OplogFile   = "oplog.db"
	BackendFile = "backend.db"
	GitRefsFile = "git.db"
)

// Config represents the OVC configuration
type Config struct {
	UserName  string `toml:"user_name"`
	UserEmail string `toml:"user_email"`
	// AutoTrackBookmarks controls whether git import creates local bookmarks
	// for newly seen refs.
	AutoTrackBookmarks bool   `toml:"auto_track_bookmarks"`
	path               string // path to .ovc directory
}

// FindOVCRoot finds the .ovc directory by walking up from current directory
func FindOVCRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		ovcPath := filepath.Join(dir, OVCDir)
		if info, err := os.Stat(ovcPath); err == nil && info.IsDir() {
			return ovcPath, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("not an ovc repository (or any parent up to root)")
		}
		dir = parent
	}
}

// Load loads the configuration from the .ovc directory
func Load() (*Config, error) {
	ovcPath, err := FindOVCRoot()
	if err != nil {
		return nil, err
	}
	return LoadFrom(ovcPath)
}

// LoadFrom loads the configuration from a specific .ovc directory.
func LoadFrom(ovcPath string) (*Config, error) {
	configPath := filepath.Join(ovcPath, ConfigFile)
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.path = ovcPath
	return &cfg, nil
}

// Save saves the configuration to disk
func (c *Config) Save() error {
	configPath := filepath.Join(c.path, ConfigFile)
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	return os.WriteFile(configPath, data, 0644)
}

// OVCPath returns the path to the .ovc directory
func (c *Config) OVCPath() string {
	return c.path
}

// OplogPath returns the path to the operation log database
func (c *Config) OplogPath() string {
	return filepath.Join(c.path, OplogFile)
}

// BackendPath returns the path to the commit backend database
func (c *Config) BackendPath() string {
	return filepath.Join(c.path, BackendFile)
}

// GitRefsPath returns the path to the external ref store database
func (c *Config) GitRefsPath() string {
	return filepath.Join(c.path, GitRefsFile)
}

// Actor returns the identity recorded on operations, "name <email>".
func (c *Config) Actor() string {
	name := c.UserName
	if name == "" {
		name = "unknown"
	}
	if c.UserEmail == "" {
		return name
	}
	return fmt.Sprintf("%s <%s>", name, c.UserEmail)
}

// Initialize creates a new .ovc directory with initial configuration
func Initialize(userName, userEmail string) (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	ovcPath := filepath.Join(cwd, OVCDir)

	// Check if already initialized
	if _, err := os.Stat(ovcPath); err == nil {
		return nil, fmt.Errorf("ovc repository already exists")
	}

	if err := os.MkdirAll(ovcPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create .ovc directory: %w", err)
	}

	cfg := &Config{
		UserName:           userName,
		UserEmail:          userEmail,
		AutoTrackBookmarks: true,
		path:               ovcPath,
	}

	if err := cfg.Save(); err != nil {
		// Cleanup on failure
		os.RemoveAll(ovcPath)
		return nil, err
	}

	return cfg, nil
}
