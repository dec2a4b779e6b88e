package config

import (
	"sort"
	"strconv"
	"time"

	"github.com/noqturne/noqturne/pkg/errors"
)

type accessor struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

func stringField(field func(c *Config) *string) accessor {
	return accessor{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error { *field(c) = v; return nil },
	}
}

func durationField(key string, field func(c *Config) *time.Duration) accessor {
	return accessor{
		get: func(c *Config) string { return field(c).String() },
		set: func(c *Config, v string) error {
			d, err := time.ParseDuration(v)
			if err != nil {
				return errors.Wrapf(errors.ErrConfigValidation, "invalid duration for %s: %s", key, v)
			}
			*field(c) = d
			return nil
		},
	}
}

// keys lists every settable configuration key.
var keys = map[string]accessor{
	"data_dir":        stringField(func(c *Config) *string { return &c.Settings.DataDir }),
	"http_timeout":    durationField("http_timeout", func(c *Config) *time.Duration { return &c.Settings.HTTPTimeout }),
	"process_timeout": durationField("process_timeout", func(c *Config) *time.Duration { return &c.Settings.ProcessTimeout }),
	"max_concurrent": {
		get: func(c *Config) string { return strconv.Itoa(c.Settings.MaxConcurrent) },
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return errors.Wrapf(errors.ErrConfigValidation, "invalid integer for max_concurrent: %s", v)
			}
			c.Settings.MaxConcurrent = n
			return nil
		},
	},
	"user_agent":               stringField(func(c *Config) *string { return &c.Settings.UserAgent }),
	"output_format":            stringField(func(c *Config) *string { return &c.Settings.OutputFormat }),
	"log_level":                stringField(func(c *Config) *string { return &c.Settings.LogLevel }),
	"platform.os":              stringField(func(c *Config) *string { return &c.Settings.Platform.OS }),
	"platform.arch":            stringField(func(c *Config) *string { return &c.Settings.Platform.Arch }),
	"tools.yt_dlp_url":         stringField(func(c *Config) *string { return &c.Tools.YtDlpBaseURL }),
	"tools.ffmpeg_url":         stringField(func(c *Config) *string { return &c.Tools.FFmpegBaseURL }),
	"tools.yt_dlp_min_version": stringField(func(c *Config) *string { return &c.Tools.YtDlpMinVersion }),
	"tools.python":             stringField(func(c *Config) *string { return &c.Tools.Python }),
	"tools.thumbnail_host":     stringField(func(c *Config) *string { return &c.Tools.ThumbnailHost }),
}

// SetValue sets a configuration value by key and re-validates the result.
func (c *Config) SetValue(key, value string) error {
	a, ok := keys[key]
	if !ok {
		return errors.Wrapf(errors.ErrUnknownConfigKey, "%s", key)
	}
	prev := a.get(c)
	if err := a.set(c, value); err != nil {
		return err
	}
	if err := c.Validate(); err != nil {
		_ = a.set(c, prev)
		return err
	}
	return nil
}

// GetValue returns the value of key as a string.
func (c *Config) GetValue(key string) (string, error) {
	a, ok := keys[key]
	if !ok {
		return "", errors.Wrapf(errors.ErrUnknownConfigKey, "%s", key)
	}
	return a.get(c), nil
}

// Keys returns the supported configuration keys in sorted order.
func Keys() []string {
	out := make([]string, 0, len(keys))
	for k := range keys {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// ToMap returns every key with its current value. This is useful for displaying
// the configuration.
func (c *Config) ToMap() map[string]string {
	result := make(map[string]string, len(keys))
	for k, a := range keys {
		result[k] = a.get(c)
	}
	return result
}
