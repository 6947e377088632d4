// Package config loads CoreTrack settings from an optional config file and
// CORETRACK_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/999joaquin/CoreTrack/internal/storage"
)

const envPrefix = "CORETRACK"

type Config struct {
	Port           string   `mapstructure:"port"`
	BaseURL        string   `mapstructure:"base_url"`
	DBPath         string   `mapstructure:"db_path"`
	LogLevel       string   `mapstructure:"log_level"`
	LogFormat      string   `mapstructure:"log_format"`
	SecureCookies  bool     `mapstructure:"secure_cookies"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`

	// SecretKey signs MFA challenges and seals TOTP secrets at rest.
	SecretKey string `mapstructure:"secret_key"`

	PostmarkToken string `mapstructure:"postmark_token"`
	FromEmail     string `mapstructure:"from_email"`

	VAPIDPublicKey  string `mapstructure:"vapid_public_key"`
	VAPIDPrivateKey string `mapstructure:"vapid_private_key"`
	VAPIDSubscriber string `mapstructure:"vapid_subscriber"`

	Storage StorageConfig `mapstructure:"storage"`

	SchedulerInterval     time.Duration `mapstructure:"scheduler_interval"`
	ActivityQueueSize     int           `mapstructure:"activity_queue_size"`
	ActivityRetentionDays int           `mapstructure:"activity_retention_days"`

	// BackupInterval enables scheduled backups to file storage when set.
	BackupInterval   time.Duration `mapstructure:"backup_interval"`
	BackupPassphrase string        `mapstructure:"backup_passphrase"`
}

type StorageConfig struct {
	Driver    string `mapstructure:"driver"`
	Endpoint  string `mapstructure:"endpoint"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	PublicURL string `mapstructure:"public_url"`
}

// Store converts the settings for storage.New.
func (s StorageConfig) Store() storage.Config {
	return storage.Config{
		Driver:    s.Driver,
		Endpoint:  s.Endpoint,
		Bucket:    s.Bucket,
		Region:    s.Region,
		AccessKey: s.AccessKey,
		SecretKey: s.SecretKey,
		UseSSL:    s.UseSSL,
		PublicURL: s.PublicURL,
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("base_url", "")
	v.SetDefault("db_path", "coretrack.db")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("secure_cookies", false)
	v.SetDefault("allowed_origins", []string{})
	v.SetDefault("secret_key", "")
	v.SetDefault("postmark_token", "")
	v.SetDefault("from_email", "")
	v.SetDefault("vapid_public_key", "")
	v.SetDefault("vapid_private_key", "")
	v.SetDefault("vapid_subscriber", "")
	v.SetDefault("storage.driver", "")
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.bucket", "coretrack")
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.access_key", "")
	v.SetDefault("storage.secret_key", "")
	v.SetDefault("storage.use_ssl", true)
	v.SetDefault("storage.public_url", "")
	v.SetDefault("scheduler_interval", 15*time.Minute)
	v.SetDefault("activity_queue_size", 1000)
	v.SetDefault("activity_retention_days", 0)
	v.SetDefault("backup_interval", 0)
	v.SetDefault("backup_passphrase", "")
}

// Load reads path if given, otherwise coretrack.yaml from the working
// directory when present. Environment variables override both; nested keys
// use underscores (CORETRACK_STORAGE_DRIVER).
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("coretrack")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() error {
	if c.BaseURL == "" {
		c.BaseURL = "http://localhost:" + c.Port
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")

	// Comma-separated lists arrive from the environment as a single element.
	if len(c.AllowedOrigins) == 1 && strings.Contains(c.AllowedOrigins[0], ",") {
		c.AllowedOrigins = strings.Split(c.AllowedOrigins[0], ",")
	}
	origins := c.AllowedOrigins[:0]
	for _, o := range c.AllowedOrigins {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	c.AllowedOrigins = origins

	if c.VAPIDSubscriber == "" && c.FromEmail != "" {
		c.VAPIDSubscriber = c.FromEmail
	}
	if c.BackupPassphrase == "" {
		c.BackupPassphrase = c.SecretKey
	}
	if c.ActivityQueueSize < 0 || c.ActivityRetentionDays < 0 {
		return errors.New("activity_queue_size and activity_retention_days must not be negative")
	}
	return nil
}

// ActivityRetention returns how long activities are kept, or 0 to keep them
// forever.
func (c *Config) ActivityRetention() time.Duration {
	return time.Duration(c.ActivityRetentionDays) * 24 * time.Hour
}
