package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/dmitrijs2005/profilekeeper/internal/flagx"
	"github.com/dmitrijs2005/profilekeeper/internal/timex"
)

// JsonConfig mirrors Config for JSON files. Pointer fields distinguish
// "absent" from a zero value so a partial file only overrides what it names.
type JsonConfig struct {
	IdentityAPIKey    *string         `json:"identity_api_key"`
	IdentityEndpoint  *string         `json:"identity_endpoint"`
	TokenEndpoint     *string         `json:"token_endpoint"`
	HTTPTimeout       *timex.Duration `json:"http_timeout"`
	RecordDriver      *string         `json:"record_driver"`
	DatabaseDSN       *string         `json:"database_dsn"`
	WatchInterval     *timex.Duration `json:"watch_interval"`
	RedisAddr         *string         `json:"redis_addr"`
	S3RootUser        *string         `json:"s3_root_user"`
	S3RootPassword    *string         `json:"s3_root_password"`
	S3Bucket          *string         `json:"s3_bucket"`
	S3Region          *string         `json:"s3_region"`
	S3BaseEndpoint    *string         `json:"s3_base_endpoint"`
	S3PublicBaseURL   *string         `json:"s3_public_base_url"`
	SessionDBPath     *string         `json:"session_db_path"`
	SessionKeyPath    *string         `json:"session_key_path"`
	ImageSize         *int            `json:"image_size"`
	CaptureCommand    *string         `json:"capture_command"`
	EmailVerification *bool           `json:"email_verification"`
	NameMinLength     *int            `json:"name_min_length"`
	PasswordMinLength *int            `json:"password_min_length"`
	PushToken         *string         `json:"push_token"`
	MessagesPath      *string         `json:"messages_path"`
	LogFormat         *string         `json:"log_format"`
	LogLevel          *string         `json:"log_level"`
}

// parseJson overlays the file named by -c/--config onto config. No flag, no
// change.
func parseJson(config *Config, args []string) error {
	path := flagx.ConfigPath(args)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	c.apply(config)
	return nil
}

func (c *JsonConfig) apply(config *Config) {
	setString(&config.IdentityAPIKey, c.IdentityAPIKey)
	setString(&config.IdentityEndpoint, c.IdentityEndpoint)
	setString(&config.TokenEndpoint, c.TokenEndpoint)
	setDuration(&config.HTTPTimeout, c.HTTPTimeout)
	setString(&config.RecordDriver, c.RecordDriver)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setDuration(&config.WatchInterval, c.WatchInterval)
	setString(&config.RedisAddr, c.RedisAddr)
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&config.S3PublicBaseURL, c.S3PublicBaseURL)
	setString(&config.SessionDBPath, c.SessionDBPath)
	setString(&config.SessionKeyPath, c.SessionKeyPath)
	setInt(&config.ImageSize, c.ImageSize)
	setString(&config.CaptureCommand, c.CaptureCommand)
	if c.EmailVerification != nil {
		config.EmailVerification = *c.EmailVerification
	}
	setInt(&config.NameMinLength, c.NameMinLength)
	setInt(&config.PasswordMinLength, c.PasswordMinLength)
	setString(&config.PushToken, c.PushToken)
	setString(&config.MessagesPath, c.MessagesPath)
	setString(&config.LogFormat, c.LogFormat)
	setString(&config.LogLevel, c.LogLevel)
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v *timex.Duration) {
	if v != nil {
		*dst = v.Duration
	}
}
