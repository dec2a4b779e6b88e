// Package config loads and saves the YAML settings of noqturne: where provisioned
// tools live, where they are downloaded from, timeouts, logging and hook scripts.
// Missing files and fields fall back to defaults.
package config

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"

	"github.com/noqturne/noqturne/pkg/errors"
	"github.com/noqturne/noqturne/pkg/fsutil"
	"github.com/noqturne/noqturne/pkg/platform"
)

// AppName is the directory name used below the XDG base directories.
const AppName = "noqturne"

// Config represents the application configuration.
type Config struct {
	Settings Settings `yaml:"settings"`
	Tools    Tools    `yaml:"tools"`

	// Hooks maps a dependency name to hook type to script path.
	Hooks map[string]map[string]string `yaml:"hooks,omitempty"`
}

// PlatformConfig overrides platform detection.
type PlatformConfig struct {
	OS   string `yaml:"os,omitempty"`
	Arch string `yaml:"arch,omitempty"`
}

// Settings represents general application settings.
type Settings struct {
	// DataDir holds bin/, config.txt, the resolver script and the error log.
	DataDir string `yaml:"data_dir,omitempty"`

	HTTPTimeout    time.Duration `yaml:"http_timeout"`
	ProcessTimeout time.Duration `yaml:"process_timeout"`
	MaxConcurrent  int           `yaml:"max_concurrent"`
	UserAgent      string        `yaml:"user_agent,omitempty"`

	Platform PlatformConfig `yaml:"platform,omitempty"`

	OutputFormat string `yaml:"output_format"` // text, json
	LogLevel     string `yaml:"log_level"`     // debug, info, warn, error
}

// Tools configures where provisioned tools come from.
type Tools struct {
	// YtDlpBaseURL is the release download prefix the platform asset name is appended to.
	YtDlpBaseURL string `yaml:"yt_dlp_url"`
	// FFmpegBaseURL is the build download prefix the platform archive name is appended to.
	FFmpegBaseURL string `yaml:"ffmpeg_url"`
	// YtDlpMinVersion is an optional version constraint such as ">= 2024.01.01".
	YtDlpMinVersion string `yaml:"yt_dlp_min_version,omitempty"`
	// Python overrides the interpreter used for pip and the resolver script.
	Python string `yaml:"python,omitempty"`
	// ThumbnailHost is the scheme and host cover-art images are fetched from.
	ThumbnailHost string `yaml:"thumbnail_host"`
}

// Default configuration values.
const (
	DefaultHTTPTimeout    = 30 * time.Second
	DefaultProcessTimeout = 30 * time.Minute
	DefaultMaxConcurrent  = 4

	DefaultYtDlpBaseURL  = "https://github.com/yt-dlp/yt-dlp/releases/latest/download/"
	DefaultFFmpegBaseURL = "https://github.com/BtbN/FFmpeg-Builds/releases/download/latest/"
	DefaultThumbnailHost = "https://i.ytimg.com"

	// YAMLIndent is the number of spaces to use for YAML indentation.
	YAMLIndent = 2
)

// File names below the data directory.
const (
	BinDirName     = "bin"
	StateFileName  = "config.txt"
	ScriptFileName = "coverArt.py"
	ErrorLogName   = "errorLog.log"
	HooksDirName   = "hooks"
)

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	current := platform.CurrentPlatform()
	return &Config{
		Settings: Settings{
			DataDir:        filepath.Join(xdg.DataHome, AppName),
			HTTPTimeout:    DefaultHTTPTimeout,
			ProcessTimeout: DefaultProcessTimeout,
			MaxConcurrent:  DefaultMaxConcurrent,
			OutputFormat:   "text",
			LogLevel:       "info",
			Platform: PlatformConfig{
				OS:   current.OS,
				Arch: current.Arch,
			},
		},
		Tools: Tools{
			YtDlpBaseURL:  DefaultYtDlpBaseURL,
			FFmpegBaseURL: DefaultFFmpegBaseURL,
			ThumbnailHost: DefaultThumbnailHost,
		},
	}
}

// LoadConfig loads configuration from a file. A missing file yields DefaultConfig.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, errors.ErrEmptyConfigPath
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrInvalidConfigPath, err.Error())
	}

	file, err := os.Open(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, errors.Wrapf(err, "failed to open config file: %s", path)
	}
	defer func() { _ = file.Close() }()

	return LoadConfigFromReader(file)
}

// LoadConfigFromReader loads configuration from an io.Reader.
func LoadConfigFromReader(reader io.Reader) (*Config, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config data")
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, errors.Wrap(errors.ErrConfigParse, err.Error())
	}

	config.applyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// SaveConfig atomically writes the configuration to path.
func (c *Config) SaveConfig(path string) error {
	if path == "" {
		return errors.ErrEmptyConfigPath
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return errors.Wrap(errors.ErrInvalidConfigPath, err.Error())
	}
	if err := fsutil.EnsureFileDir(absPath); err != nil {
		return errors.Wrap(errors.ErrConfigDirectory, err.Error())
	}

	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(YAMLIndent)
	if err := encoder.Encode(c); err != nil {
		return errors.Wrap(errors.ErrConfigEncode, err.Error())
	}
	if err := encoder.Close(); err != nil {
		return errors.Wrap(errors.ErrConfigEncode, err.Error())
	}

	if err := fsutil.AtomicWriteFile(absPath, buf.Bytes(), fsutil.FileModeDefault); err != nil {
		return errors.Wrap(errors.ErrConfigFileRename, err.Error())
	}
	return nil
}

// ToYAML converts the config to YAML bytes.
func (c *Config) ToYAML() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, errors.Wrap(errors.ErrConfigEncode, err.Error())
	}
	return data, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c == nil {
		return errors.ErrConfigValidation
	}
	if err := validateSettings(c.Settings); err != nil {
		return err
	}
	if err := validateTools(c.Tools); err != nil {
		return err
	}
	for dep, byType := range c.Hooks {
		for typ, script := range byType {
			if typ != "post-install" && typ != "post-update" {
				return errors.Wrapf(errors.ErrConfigValidation, "hooks.%s: unsupported hook type %q", dep, typ)
			}
			if script == "" {
				return errors.Wrapf(errors.ErrConfigValidation, "hooks.%s.%s: empty script path", dep, typ)
			}
		}
	}
	return nil
}

func validateSettings(s Settings) error {
	if s.HTTPTimeout < 0 {
		return errors.Wrap(errors.ErrConfigValidation, "http_timeout cannot be negative")
	}
	if s.ProcessTimeout < 0 {
		return errors.Wrap(errors.ErrConfigValidation, "process_timeout cannot be negative")
	}
	if s.MaxConcurrent < 1 {
		return errors.Wrap(errors.ErrConfigValidation, "max_concurrent must be at least 1")
	}
	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[s.OutputFormat] {
		return errors.Wrapf(errors.ErrConfigValidation, "invalid output format %q (valid: text, json)", s.OutputFormat)
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(s.LogLevel)] {
		return errors.Wrapf(errors.ErrConfigValidation, "invalid log level %q (valid: debug, info, warn, error)", s.LogLevel)
	}
	if s.Platform.OS != "" {
		switch platform.NormalizeOS(s.Platform.OS) {
		case platform.OSWindows, platform.OSLinux, platform.OSMacOS:
		default:
			return errors.Wrapf(errors.ErrConfigValidation, "invalid OS %q", s.Platform.OS)
		}
	}
	if s.Platform.Arch != "" {
		switch platform.NormalizeArch(s.Platform.Arch) {
		case platform.ArchAMD64, platform.ArchARM64, platform.Arch386:
		default:
			return errors.Wrapf(errors.ErrConfigValidation, "invalid Arch %q", s.Platform.Arch)
		}
	}
	return nil
}

func validateTools(t Tools) error {
	for key, u := range map[string]string{"yt_dlp_url": t.YtDlpBaseURL, "ffmpeg_url": t.FFmpegBaseURL, "thumbnail_host": t.ThumbnailHost} {
		if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
			return errors.Wrapf(errors.ErrConfigValidation, "tools.%s must be an http(s) URL, got %q", key, u)
		}
	}
	return nil
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() (string, error) {
	return filepath.Join(xdg.ConfigHome, AppName, "config.yaml"), nil
}

// Platform returns the effective target platform.
func (c *Config) Platform() platform.Platform {
	return platform.Platform{
		OS:   platform.NormalizeOS(c.Settings.Platform.OS),
		Arch: platform.NormalizeArch(c.Settings.Platform.Arch),
	}
}

// BinDir returns the directory provisioned tools are installed into.
func (c *Config) BinDir() string { return filepath.Join(c.Settings.DataDir, BinDirName) }

// StatePath returns the path of the key=value install state record.
func (c *Config) StatePath() string { return filepath.Join(c.Settings.DataDir, StateFileName) }

// ScriptPath returns where the cover-art resolver script is materialized.
func (c *Config) ScriptPath() string { return filepath.Join(c.Settings.DataDir, ScriptFileName) }

// ErrorLogPath returns the path of the persistent diagnostic log.
func (c *Config) ErrorLogPath() string { return filepath.Join(c.Settings.DataDir, ErrorLogName) }

// HooksDir returns the directory scanned for <dependency>/<hook>.tengo scripts.
func (c *Config) HooksDir() string { return filepath.Join(c.Settings.DataDir, HooksDirName) }

// Python returns the interpreter command for pip and the resolver script.
func (c *Config) Python() string {
	if c.Tools.Python != "" {
		return c.Tools.Python
	}
	return c.Platform().PythonInterpreter()
}

// applyDefaults fills in missing values with defaults.
func (c *Config) applyDefaults() {
	defaults := DefaultConfig()

	if c.Settings.DataDir == "" {
		c.Settings.DataDir = defaults.Settings.DataDir
	}
	if c.Settings.HTTPTimeout == 0 {
		c.Settings.HTTPTimeout = defaults.Settings.HTTPTimeout
	}
	if c.Settings.ProcessTimeout == 0 {
		c.Settings.ProcessTimeout = defaults.Settings.ProcessTimeout
	}
	if c.Settings.MaxConcurrent == 0 {
		c.Settings.MaxConcurrent = defaults.Settings.MaxConcurrent
	}
	if c.Settings.OutputFormat == "" {
		c.Settings.OutputFormat = defaults.Settings.OutputFormat
	}
	if c.Settings.LogLevel == "" {
		c.Settings.LogLevel = defaults.Settings.LogLevel
	}
	if c.Settings.Platform.OS == "" {
		c.Settings.Platform.OS = defaults.Settings.Platform.OS
	}
	if c.Settings.Platform.Arch == "" {
		c.Settings.Platform.Arch = defaults.Settings.Platform.Arch
	}
	if c.Tools.YtDlpBaseURL == "" {
		c.Tools.YtDlpBaseURL = defaults.Tools.YtDlpBaseURL
	}
	if c.Tools.FFmpegBaseURL == "" {
		c.Tools.FFmpegBaseURL = defaults.Tools.FFmpegBaseURL
	}
	if c.Tools.ThumbnailHost == "" {
		c.Tools.ThumbnailHost = defaults.Tools.ThumbnailHost
	}
}
