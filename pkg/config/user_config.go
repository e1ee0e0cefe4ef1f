// Package config loads the user-configurable scan/process defaults. The
// fields here are PascalCase in Go but camelCase in config.yml. A loaded
// UserConfig is merged over GetDefaultConfig so an empty or partial file
// never zeroes out a default the user didn't intend to touch.
package config

import (
	"os"
	"path/filepath"

	"github.com/OpenPeeDeeP/xdg"
	"github.com/imdario/mergo"
	yaml "github.com/jesseduffield/yaml"
)

// ScanConfig holds the engine defaults a config file can override.
type ScanConfig struct {
	// DefaultPermissions is the permission filter a scan uses when none is
	// given explicitly on the command line: some combination of
	// "read"/"write" (or the short forms "r"/"w").
	DefaultPermissions []string `yaml:"defaultPermissions,omitempty"`

	// BlockSize overrides the block-read size (bytes) used by init. Must
	// stay a power of two in practice; the engine does not enforce that,
	// it just uses whatever is configured.
	BlockSize int `yaml:"blockSize,omitempty"`

	// ReadSizeBounds overrides the [min,max] a --read-size value must fall
	// within. A two-element [min, max] pair.
	ReadSizeBounds []int `yaml:"readSizeBounds,omitempty"`
}

// ProcessConfig holds the C5 process-listing defaults.
type ProcessConfig struct {
	// NameFilter is the default name-prefix filter applied to --list when
	// the CLI flag isn't given.
	NameFilter string `yaml:"nameFilter,omitempty"`
}

// UserConfig holds all of the user-configurable options.
type UserConfig struct {
	Scan    ScanConfig    `yaml:"scan,omitempty"`
	Process ProcessConfig `yaml:"process,omitempty"`
}

// GetDefaultConfig returns the application's default configuration.
// NOTE: never default a bool to true here: false is the Go zero value, so
// a user config that omits the field would silently revert it to false.
func GetDefaultConfig() UserConfig {
	return UserConfig{
		Scan: ScanConfig{
			DefaultPermissions: []string{"write"},
			BlockSize:          0x10000,
			ReadSizeBounds:     []int{1, 256},
		},
		Process: ProcessConfig{
			NameFilter: "",
		},
	}
}

// AppConfig bundles the loaded UserConfig with build metadata and the
// directory it was loaded from.
type AppConfig struct {
	Debug       bool
	Version     string
	Commit      string
	BuildDate   string
	Name        string
	BuildSource string
	UserConfig  *UserConfig
	ConfigDir   string
}

// NewAppConfig locates (and creates, if absent) the config directory,
// loads config.yml merged over the defaults, and stamps build metadata.
func NewAppConfig(name, version, commit, date, buildSource string, debuggingFlag bool) (*AppConfig, error) {
	configDir, err := findOrCreateConfigDir(name)
	if err != nil {
		return nil, err
	}

	userConfig, err := loadUserConfigWithDefaults(configDir)
	if err != nil {
		return nil, err
	}

	return &AppConfig{
		Name:        name,
		Version:     version,
		Commit:      commit,
		BuildDate:   date,
		Debug:       debuggingFlag || os.Getenv("DEBUG") == "TRUE",
		BuildSource: buildSource,
		UserConfig:  userConfig,
		ConfigDir:   configDir,
	}, nil
}

func configDirForVendor(vendor, projectName string) string {
	if envConfigDir := os.Getenv("CONFIG_DIR"); envConfigDir != "" {
		return envConfigDir
	}
	return xdg.New(vendor, projectName).ConfigHome()
}

func findOrCreateConfigDir(projectName string) (string, error) {
	folder := configDirForVendor("", projectName)
	if err := os.MkdirAll(folder, 0755); err != nil {
		return "", err
	}
	return folder, nil
}

func loadUserConfigWithDefaults(configDir string) (*UserConfig, error) {
	defaults := GetDefaultConfig()
	return loadUserConfig(configDir, &defaults)
}

// loadUserConfig reads configDir/config.yml (creating an empty one if it
// doesn't exist yet), unmarshals it into a fresh UserConfig, then merges
// base's defaults in for any field the file left unset.
func loadUserConfig(configDir string, base *UserConfig) (*UserConfig, error) {
	fileName := filepath.Join(configDir, "config.yml")

	if _, err := os.Stat(fileName); err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		file, err := os.Create(fileName)
		if err != nil {
			return nil, err
		}
		file.Close()
	}

	content, err := os.ReadFile(fileName)
	if err != nil {
		return nil, err
	}

	loaded := UserConfig{}
	if err := yaml.Unmarshal(content, &loaded); err != nil {
		return nil, err
	}

	if err := mergo.Merge(&loaded, base); err != nil {
		return nil, err
	}
	return &loaded, nil
}

// ConfigFilename returns the path of the loaded config file.
func (c *AppConfig) ConfigFilename() string {
	return filepath.Join(c.ConfigDir, "config.yml")
}

// Marshal renders cfg back to YAML, used by --config to print the
// effective defaults.
func Marshal(cfg UserConfig) ([]byte, error) {
	return yaml.Marshal(cfg)
}
