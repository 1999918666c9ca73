package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort         string
	AppEnv          string
	AWSRegion       string
	AWSEndpointURL  string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID  string
	AWSSecretKey    string
	DynamoTables    DynamoTables
	S3BucketName    string
	SnapshotBackend string // "dynamo" | "s3" | "none"
	SnapshotKey     string
	FlushInterval   time.Duration

	JWTPrivateKeyPath string
	JWTPublicKeyPath  string
	JWTExpiry         time.Duration

	SMTPHost     string
	SMTPPort     string
	SMTPFrom     string
	SMTPUsername string
	SMTPPassword string
	SNSRegion    string

	OTPTTL           time.Duration
	OTPMaxAttempts   int
	OTPSendTimeout   time.Duration
	OTPSweepInterval time.Duration // 0 disables the sweep; expiry is then lazy only

	AllowedOrigins []string // CORS allowed origins
	// TrustProxyHeaders keys rate limits by X-Forwarded-For/X-Real-Ip. Enable
	// only behind a proxy that overwrites them.
	TrustProxyHeaders bool

	Device DeviceConfig
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	Snapshots string
}

// DeviceConfig configures the device process (cmd/device).
type DeviceConfig struct {
	ListenPort           string
	AuthorityURL         string
	DeviceID             string
	UserID               string
	Email                string
	CacheBackend         string // "redis" | "dir"
	CacheDir             string
	RedisAddr            string
	RedisPassword        string
	RedisDB              int
	BalancePollInterval  time.Duration
	PolicyPollInterval   time.Duration
	RegistryPollInterval time.Duration
	ForwardTimeout       time.Duration
	RequestTimeout       time.Duration
}

// Load reads all configuration from environment variables.
func Load() *Config {
	return &Config{
		AppPort:        getEnv("APP_PORT", "3000"),
		AppEnv:         getEnv("APP_ENV", "development"),
		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		DynamoTables: DynamoTables{
			Snapshots: getEnv("DYNAMO_TABLE_SNAPSHOTS", "authority_snapshots"),
		},
		S3BucketName:    getEnv("S3_BUCKET_NAME", "bank-sync-snapshots"),
		SnapshotBackend: getEnv("SNAPSHOT_BACKEND", "dynamo"),
		SnapshotKey:     getEnv("SNAPSHOT_KEY", "authority"),
		FlushInterval:   getEnvDuration("FLUSH_INTERVAL", 30*time.Second),

		JWTPrivateKeyPath: getEnv("JWT_PRIVATE_KEY_PATH", "./private_key.pem"),
		JWTPublicKeyPath:  getEnv("JWT_PUBLIC_KEY_PATH", "./public_key.pem"),
		JWTExpiry:         time.Duration(getEnvInt("JWT_EXPIRY_HOURS", 24)) * time.Hour,

		SMTPHost:     getEnv("SMTP_HOST", "localhost"),
		SMTPPort:     getEnv("SMTP_PORT", "1025"),
		SMTPFrom:     getEnv("SMTP_FROM", "noreply@bank.test"),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		SNSRegion:    getEnv("SNS_REGION", "us-east-1"),

		OTPTTL:           getEnvDuration("OTP_TTL", 10*time.Minute),
		OTPMaxAttempts:   getEnvInt("OTP_MAX_ATTEMPTS", 5),
		OTPSendTimeout:   getEnvDuration("OTP_SEND_TIMEOUT", 10*time.Second),
		OTPSweepInterval: getEnvDuration("OTP_SWEEP_INTERVAL", 0),

		AllowedOrigins:    strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ","),
		TrustProxyHeaders: getEnvBool("TRUST_PROXY_HEADERS", false),

		Device: DeviceConfig{
			ListenPort:           getEnv("DEVICE_PORT", "3100"),
			AuthorityURL:         getEnv("AUTHORITY_URL", "http://localhost:3000"),
			DeviceID:             getEnv("DEVICE_ID", ""),
			UserID:               getEnv("DEVICE_USER_ID", ""),
			Email:                getEnv("DEVICE_EMAIL", ""),
			CacheBackend:         getEnv("DEVICE_CACHE_BACKEND", "dir"),
			CacheDir:             getEnv("DEVICE_CACHE_DIR", "./.device-cache"),
			RedisAddr:            getEnv("REDIS_ADDR", "localhost:6379"),
			RedisPassword:        getEnv("REDIS_PASSWORD", ""),
			RedisDB:              getEnvInt("REDIS_DB", 0),
			BalancePollInterval:  getEnvDuration("BALANCE_POLL_INTERVAL", 10*time.Second),
			PolicyPollInterval:   getEnvDuration("POLICY_POLL_INTERVAL", 10*time.Second),
			RegistryPollInterval: getEnvDuration("REGISTRY_POLL_INTERVAL", 15*time.Second),
			ForwardTimeout:       getEnvDuration("SYNC_FORWARD_TIMEOUT", 5*time.Second),
			RequestTimeout:       getEnvDuration("SYNC_REQUEST_TIMEOUT", 5*time.Second),
		},
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

// getEnvDuration accepts Go duration strings ("30s", "10m").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
