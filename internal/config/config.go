package config

import (
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	DeviceID  string `mapstructure:"device_id"`
	ServerURL string `mapstructure:"server_url"`
	LiveURL   string `mapstructure:"live_url"`
	AuthToken string `mapstructure:"auth_token"`
	Model     string `mapstructure:"model"`

	// Game pins the active game; empty means auto-detect.
	Game          string `mapstructure:"game"`
	GamesFile     string `mapstructure:"games_file"`
	TemplatesFile string `mapstructure:"templates_file"`
	Muted         bool   `mapstructure:"muted"`

	PollInterval      time.Duration `mapstructure:"poll_interval"`
	SettleDelay       time.Duration `mapstructure:"settle_delay"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
	QuietWindow       time.Duration `mapstructure:"quiet_window"`
	DetectInterval    time.Duration `mapstructure:"detect_interval"`

	InputThreshold  float64       `mapstructure:"input_threshold"`
	OutputThreshold float64       `mapstructure:"output_threshold"`
	SpeechHold      time.Duration `mapstructure:"speech_hold"`

	SampleFPS           int     `mapstructure:"sample_fps"`
	JPEGQuality         int     `mapstructure:"jpeg_quality"`
	ScaleFactor         float64 `mapstructure:"scale_factor"`
	SkipUnchangedFrames bool    `mapstructure:"skip_unchanged_frames"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
	LogFile   string `mapstructure:"log_file"`

	Archive ArchiveConfig `mapstructure:"archive"`
}

// ArchiveConfig controls post-session archive uploads. Disabled unless
// a provider is configured.
type ArchiveConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Provider  string `mapstructure:"provider"`
	Dir       string `mapstructure:"dir"`
	Retention int    `mapstructure:"retention"`

	S3    S3Config    `mapstructure:"s3"`
	GCS   GCSConfig   `mapstructure:"gcs"`
	Azure AzureConfig `mapstructure:"azure"`
	B2    B2Config    `mapstructure:"b2"`
}

type S3Config struct {
	Bucket string `mapstructure:"bucket"`
	Region string `mapstructure:"region"`
	Prefix string `mapstructure:"prefix"`

	// Static credentials. Empty means the SDK's default chain
	// (environment, shared config, instance role).
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
}

type GCSConfig struct {
	Bucket          string `mapstructure:"bucket"`
	Prefix          string `mapstructure:"prefix"`
	CredentialsFile string `mapstructure:"credentials_file"`
}

type AzureConfig struct {
	Container        string `mapstructure:"container"`
	Prefix           string `mapstructure:"prefix"`
	ConnectionString string `mapstructure:"connection_string"`
}

type B2Config struct {
	Bucket         string `mapstructure:"bucket"`
	Prefix         string `mapstructure:"prefix"`
	AccountID      string `mapstructure:"account_id"`
	ApplicationKey string `mapstructure:"application_key"`
}

func Default() *Config {
	return &Config{
		PollInterval:      5 * time.Second,
		SettleDelay:       1 * time.Second,
		HeartbeatInterval: 10 * time.Second,
		QuietWindow:       10 * time.Second,
		DetectInterval:    15 * time.Second,
		InputThreshold:    0.02,
		OutputThreshold:   0.015,
		SpeechHold:        300 * time.Millisecond,
		SampleFPS:         2,
		JPEGQuality:       70,
		ScaleFactor:       0.5,
		LogLevel:          "info",
		LogFormat:         "text",
		Archive: ArchiveConfig{
			Provider:  "local",
			Retention: 20,
		},
	}
}

func Load(cfgFile string) (*Config, error) {
	cfg := Default()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("coach-agent")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(configDir())
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("COACH")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func Save(cfg *Config) error {
	return SaveTo(cfg, "")
}

func SaveTo(cfg *Config, cfgFile string) error {
	viper.Set("device_id", cfg.DeviceID)
	viper.Set("server_url", cfg.ServerURL)
	viper.Set("live_url", cfg.LiveURL)
	viper.Set("auth_token", cfg.AuthToken)
	viper.Set("model", cfg.Model)
	viper.Set("game", cfg.Game)
	viper.Set("games_file", cfg.GamesFile)
	viper.Set("templates_file", cfg.TemplatesFile)
	viper.Set("muted", cfg.Muted)
	viper.Set("poll_interval", cfg.PollInterval.String())
	viper.Set("settle_delay", cfg.SettleDelay.String())
	viper.Set("heartbeat_interval", cfg.HeartbeatInterval.String())
	viper.Set("quiet_window", cfg.QuietWindow.String())
	viper.Set("detect_interval", cfg.DetectInterval.String())
	viper.Set("input_threshold", cfg.InputThreshold)
	viper.Set("output_threshold", cfg.OutputThreshold)
	viper.Set("speech_hold", cfg.SpeechHold.String())
	viper.Set("sample_fps", cfg.SampleFPS)
	viper.Set("jpeg_quality", cfg.JPEGQuality)
	viper.Set("scale_factor", cfg.ScaleFactor)
	viper.Set("skip_unchanged_frames", cfg.SkipUnchangedFrames)
	viper.Set("log_level", cfg.LogLevel)
	viper.Set("log_format", cfg.LogFormat)
	viper.Set("log_file", cfg.LogFile)
	viper.Set("archive.enabled", cfg.Archive.Enabled)
	viper.Set("archive.provider", cfg.Archive.Provider)
	viper.Set("archive.dir", cfg.Archive.Dir)
	viper.Set("archive.retention", cfg.Archive.Retention)

	var cfgPath string
	if cfgFile != "" {
		cfgPath = cfgFile
		dir := filepath.Dir(cfgPath)
		if dir != "." {
			if err := os.MkdirAll(dir, 0700); err != nil {
				return err
			}
		}
	} else {
		cfgPath = filepath.Join(configDir(), "coach-agent.yaml")
		if err := os.MkdirAll(configDir(), 0700); err != nil {
			return err
		}
	}

	if err := viper.WriteConfigAs(cfgPath); err != nil {
		return err
	}

	// Restrict config file to owner-only access (contains auth token)
	return os.Chmod(cfgPath, 0600)
}

// TemplatesPath returns the default location for coaching templates
// synced from the backend.
func TemplatesPath() string {
	return filepath.Join(configDir(), "templates.yaml")
}

// DataDir returns the per-user directory for session archives and logs.
func DataDir() string {
	home, _ := os.UserHomeDir()
	switch runtime.GOOS {
	case "windows":
		if d := os.Getenv("LOCALAPPDATA"); d != "" {
			return filepath.Join(d, "CoachLive", "data")
		}
		return filepath.Join(home, "AppData", "Local", "CoachLive", "data")
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "CoachLive", "data")
	default:
		if d := os.Getenv("XDG_DATA_HOME"); d != "" {
			return filepath.Join(d, "coach-live")
		}
		return filepath.Join(home, ".local", "share", "coach-live")
	}
}

func configDir() string {
	home, _ := os.UserHomeDir()
	switch runtime.GOOS {
	case "windows":
		if d := os.Getenv("LOCALAPPDATA"); d != "" {
			return filepath.Join(d, "CoachLive")
		}
		return filepath.Join(home, "AppData", "Local", "CoachLive")
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "CoachLive")
	default:
		if d := os.Getenv("XDG_CONFIG_HOME"); d != "" {
			return filepath.Join(d, "coach-live")
		}
		return filepath.Join(home, ".config", "coach-live")
	}
}
