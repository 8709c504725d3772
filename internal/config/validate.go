package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"
	"unicode"
)

var validProviders = map[string]bool{
	"local": true,
	"s3":    true,
	"gcs":   true,
	"azure": true,
	"b2":    true,
}

var validLogLevels = map[string]bool{
	"debug":   true,
	"info":    true,
	"warn":    true,
	"warning": true,
	"error":   true,
}

// Validate checks the config for invalid values and returns all errors found.
// Dangerous values that would break the timer loops are clamped to safe
// defaults. Other validation errors are logged as warnings but do not
// prevent startup.
func (c *Config) Validate() []error {
	var errs []error

	if c.ServerURL != "" {
		u, err := url.Parse(c.ServerURL)
		if err != nil {
			errs = append(errs, fmt.Errorf("server_url %q is not a valid URL: %w", c.ServerURL, err))
		} else if u.Scheme != "http" && u.Scheme != "https" {
			errs = append(errs, fmt.Errorf("server_url scheme must be http or https, got %q", u.Scheme))
		}
	}

	if c.LiveURL != "" {
		u, err := url.Parse(c.LiveURL)
		if err != nil {
			errs = append(errs, fmt.Errorf("live_url %q is not a valid URL: %w", c.LiveURL, err))
		} else if u.Scheme != "ws" && u.Scheme != "wss" {
			errs = append(errs, fmt.Errorf("live_url scheme must be ws or wss, got %q", u.Scheme))
		}
	}

	if c.AuthToken != "" {
		for _, r := range c.AuthToken {
			if unicode.IsControl(r) {
				errs = append(errs, fmt.Errorf("auth_token contains control characters"))
				break
			}
		}
	}

	// Clamp intervals to ranges the timer loops can live with.
	if c.PollInterval < time.Second {
		errs = append(errs, fmt.Errorf("poll_interval %v is below minimum 1s, clamping", c.PollInterval))
		c.PollInterval = time.Second
	} else if c.PollInterval > time.Minute {
		errs = append(errs, fmt.Errorf("poll_interval %v exceeds maximum 1m, clamping", c.PollInterval))
		c.PollInterval = time.Minute
	}

	if c.SettleDelay < 100*time.Millisecond {
		errs = append(errs, fmt.Errorf("settle_delay %v is below minimum 100ms, clamping", c.SettleDelay))
		c.SettleDelay = 100 * time.Millisecond
	}
	// The settle re-check has to finish before the next poll observes it.
	if c.SettleDelay >= c.PollInterval {
		errs = append(errs, fmt.Errorf("settle_delay %v must be shorter than poll_interval %v, clamping", c.SettleDelay, c.PollInterval))
		c.SettleDelay = c.PollInterval / 2
	}

	if c.HeartbeatInterval < time.Second {
		errs = append(errs, fmt.Errorf("heartbeat_interval %v is below minimum 1s, clamping", c.HeartbeatInterval))
		c.HeartbeatInterval = time.Second
	} else if c.HeartbeatInterval > 10*time.Minute {
		errs = append(errs, fmt.Errorf("heartbeat_interval %v exceeds maximum 10m, clamping", c.HeartbeatInterval))
		c.HeartbeatInterval = 10 * time.Minute
	}

	if c.QuietWindow < 0 {
		errs = append(errs, fmt.Errorf("quiet_window %v is negative, clamping to 0", c.QuietWindow))
		c.QuietWindow = 0
	}

	if c.DetectInterval < 5*time.Second {
		errs = append(errs, fmt.Errorf("detect_interval %v is below minimum 5s, clamping", c.DetectInterval))
		c.DetectInterval = 5 * time.Second
	}

	if c.InputThreshold < 0 || c.InputThreshold > 1 {
		errs = append(errs, fmt.Errorf("input_threshold %v outside [0,1], resetting to default", c.InputThreshold))
		c.InputThreshold = Default().InputThreshold
	}
	if c.OutputThreshold < 0 || c.OutputThreshold > 1 {
		errs = append(errs, fmt.Errorf("output_threshold %v outside [0,1], resetting to default", c.OutputThreshold))
		c.OutputThreshold = Default().OutputThreshold
	}

	if c.SpeechHold < 0 {
		errs = append(errs, fmt.Errorf("speech_hold %v is negative, clamping to 0", c.SpeechHold))
		c.SpeechHold = 0
	} else if c.SpeechHold > c.HeartbeatInterval {
		errs = append(errs, fmt.Errorf("speech_hold %v exceeds heartbeat_interval %v, clamping", c.SpeechHold, c.HeartbeatInterval))
		c.SpeechHold = c.HeartbeatInterval
	}

	if c.SampleFPS < 1 {
		errs = append(errs, fmt.Errorf("sample_fps %d is below minimum 1, clamping", c.SampleFPS))
		c.SampleFPS = 1
	} else if c.SampleFPS > 30 {
		errs = append(errs, fmt.Errorf("sample_fps %d exceeds maximum 30, clamping", c.SampleFPS))
		c.SampleFPS = 30
	}

	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		errs = append(errs, fmt.Errorf("jpeg_quality %d outside [1,100], resetting to default", c.JPEGQuality))
		c.JPEGQuality = Default().JPEGQuality
	}

	if c.ScaleFactor <= 0 || c.ScaleFactor > 1 {
		errs = append(errs, fmt.Errorf("scale_factor %v outside (0,1], resetting to default", c.ScaleFactor))
		c.ScaleFactor = Default().ScaleFactor
	}

	if c.LogLevel != "" && !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Errorf("log_level %q is not valid (use debug, info, warn, error)", c.LogLevel))
	}

	if c.LogFormat != "" && c.LogFormat != "text" && c.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("log_format %q is not valid (use text or json)", c.LogFormat))
	}

	if c.Archive.Enabled && !validProviders[strings.ToLower(c.Archive.Provider)] {
		errs = append(errs, fmt.Errorf("archive.provider %q is not valid (use local, s3, gcs, azure, b2)", c.Archive.Provider))
	}
	if c.Archive.Retention < 0 {
		errs = append(errs, fmt.Errorf("archive.retention %d is negative, clamping to 0", c.Archive.Retention))
		c.Archive.Retention = 0
	}

	// Log validation errors as warnings
	for _, err := range errs {
		slog.Warn("config validation", "error", err)
	}

	return errs
}
