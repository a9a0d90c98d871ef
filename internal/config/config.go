package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	pkgcfg "github.com/Skotchmaster/pharmacy/pkg/config"
)

type Config struct {
	ServiceName string
	ServerPort  int
	LogLevel    string

	DBDriver    string
	DatabaseURL string

	JWTAccessSecret  []byte
	JWTRefreshSecret []byte
	AccessTokenTTL   time.Duration
	RefreshTokenTTL  time.Duration

	PasswordResetSecret []byte
	PasswordResetTTL    time.Duration
	PasswordResetURL    string

	CORSOrigins []string

	KafkaBrokers        []string
	KafkaUserTopic      string
	KafkaInventoryTopic string

	ESURL           string
	ESUser          string
	ESPassword      string
	ESMedicineIndex string

	TokenSweepInterval time.Duration
}

var ErrSameSecrets = errors.New("JWT_SECRET and REFRESH_TOKEN_SECRET must differ")

// LoadDotEnv reads an optional .env; the process environment wins. A missing
// file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func Load() Config {
	return Config{
		ServiceName: pkgcfg.EnvDefault("SERVICE_NAME", "pharmacy"),
		ServerPort:  pkgcfg.EnvIntDefault("SERVER_PORT", 5000),
		LogLevel:    pkgcfg.EnvDefault("LOG_LEVEL", "info"),

		DBDriver:    pkgcfg.EnvDefault("DB_DRIVER", "postgres"),
		DatabaseURL: os.Getenv("DATABASE_URL"),

		JWTAccessSecret:  []byte(os.Getenv("JWT_SECRET")),
		JWTRefreshSecret: []byte(os.Getenv("REFRESH_TOKEN_SECRET")),
		AccessTokenTTL:   pkgcfg.EnvDurationDefault("ACCESS_TOKEN_TTL", 15*time.Minute),
		RefreshTokenTTL:  pkgcfg.EnvDurationDefault("REFRESH_TOKEN_TTL", 7*24*time.Hour),

		PasswordResetSecret: []byte(os.Getenv("PASSWORD_RESET_SECRET")),
		PasswordResetTTL:    pkgcfg.EnvDurationDefault("PASSWORD_RESET_TTL", 15*time.Minute),
		PasswordResetURL:    pkgcfg.EnvDefault("PASSWORD_RESET_URL", "http://localhost:5173/reset-password"),

		CORSOrigins: pkgcfg.CSV(pkgcfg.EnvDefault("CORS_ORIGINS", "http://localhost:3000,http://localhost:5173")),

		KafkaBrokers:        pkgcfg.CSV(os.Getenv("KAFKA_BROKERS")),
		KafkaUserTopic:      pkgcfg.EnvDefault("KAFKA_USER_TOPIC", "user_events"),
		KafkaInventoryTopic: pkgcfg.EnvDefault("KAFKA_INVENTORY_TOPIC", "inventory_events"),

		ESURL:           os.Getenv("ES_URL"),
		ESUser:          os.Getenv("ES_USER"),
		ESPassword:      os.Getenv("ES_PASSWORD"),
		ESMedicineIndex: pkgcfg.EnvDefault("ES_MEDICINE_INDEX", "medicines"),

		TokenSweepInterval: pkgcfg.EnvDurationDefault("TOKEN_SWEEP_INTERVAL", time.Hour),
	}
}

// Validate reports the first missing or inconsistent setting. Signing secrets
// are checked here so a misconfigured process dies at startup.
func (c Config) Validate() error {
	if err := pkgcfg.NonEmpty(c.DatabaseURL, "DATABASE_URL"); err != nil {
		return err
	}
	if err := pkgcfg.NonEmptyBytes(c.JWTAccessSecret, "JWT_SECRET"); err != nil {
		return err
	}
	if err := pkgcfg.NonEmptyBytes(c.JWTRefreshSecret, "REFRESH_TOKEN_SECRET"); err != nil {
		return err
	}
	if string(c.JWTAccessSecret) == string(c.JWTRefreshSecret) {
		return ErrSameSecrets
	}
	return nil
}

func (c Config) KafkaEnabled() bool { return len(c.KafkaBrokers) > 0 }

func (c Config) SearchEnabled() bool { return c.ESURL != "" }
