package config

import (
	"github.com/spf13/pflag"
)

// BindFlags registers long-form flags on fs that write straight into c. The
// current values of c become the flag defaults, so flags only override what
// the user actually passes.
func BindFlags(fs *pflag.FlagSet, c *Config) {
	// Consumed by the pre-scan in LoadConfig; declared so cobra accepts them.
	fs.StringP("config", "c", "", "path to JSON config file")
	fs.StringSlice("env-file", nil, "additional .env files")

	fs.StringVar(&c.IdentityAPIKey, "identity-api-key", c.IdentityAPIKey, "identity service API key")
	fs.StringVar(&c.IdentityEndpoint, "identity-endpoint", c.IdentityEndpoint, "identity service base URL")
	fs.StringVar(&c.TokenEndpoint, "token-endpoint", c.TokenEndpoint, "token refresh base URL")
	fs.DurationVar(&c.HTTPTimeout, "http-timeout", c.HTTPTimeout, "HTTP client timeout")

	fs.StringVar(&c.RecordDriver, "record-driver", c.RecordDriver, "record store driver (postgres|memory)")
	fs.StringVarP(&c.DatabaseDSN, "database-dsn", "d", c.DatabaseDSN, "PostgreSQL DSN")
	fs.DurationVar(&c.WatchInterval, "watch-interval", c.WatchInterval, "record poll interval")
	fs.StringVar(&c.RedisAddr, "redis-addr", c.RedisAddr, "redis address for change notifications (optional)")

	fs.StringVarP(&c.S3RootUser, "s3-user", "u", c.S3RootUser, "S3 access key")
	fs.StringVarP(&c.S3RootPassword, "s3-password", "p", c.S3RootPassword, "S3 secret key")
	fs.StringVarP(&c.S3Bucket, "s3-bucket", "b", c.S3Bucket, "S3 bucket")
	fs.StringVarP(&c.S3Region, "s3-region", "g", c.S3Region, "S3 region")
	fs.StringVarP(&c.S3BaseEndpoint, "s3-endpoint", "e", c.S3BaseEndpoint, "S3 base endpoint")
	fs.StringVar(&c.S3PublicBaseURL, "s3-public-url", c.S3PublicBaseURL, "public base URL for uploaded images")

	fs.StringVar(&c.SessionDBPath, "session-db", c.SessionDBPath, "local session database path")
	fs.StringVar(&c.SessionKeyPath, "session-key", c.SessionKeyPath, "local session key file")

	fs.IntVar(&c.ImageSize, "image-size", c.ImageSize, "profile photo edge in pixels")
	fs.StringVar(&c.CaptureCommand, "capture-command", c.CaptureCommand, "camera capture command; {out} is replaced by the output path")

	fs.BoolVar(&c.EmailVerification, "email-verification", c.EmailVerification, "require verified email after an email change")
	fs.IntVar(&c.NameMinLength, "name-min-length", c.NameMinLength, "minimum display name length")
	fs.IntVar(&c.PasswordMinLength, "password-min-length", c.PasswordMinLength, "minimum password length")

	fs.StringVar(&c.PushToken, "push-token", c.PushToken, "device push token recorded on open")
	fs.StringVar(&c.MessagesPath, "messages", c.MessagesPath, "YAML file overriding user-facing messages")

	fs.StringVar(&c.LogFormat, "log-format", c.LogFormat, "log format (text|json|zap)")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "log level")
}
