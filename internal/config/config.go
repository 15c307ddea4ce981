package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server  ServerConfig
	DB      DBConfig
	JWT     JWTConfig
	Auth    AuthConfig
	OIDC    OIDCConfig
	Volumes VolumeConfig
}

type ServerConfig struct {
	Port        string
	FrontendURL string
}

type DBConfig struct {
	Driver   string
	Path     string
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

type JWTConfig struct {
	Secret          string
	ExpirationHours int
}

type AuthConfig struct {
	Enabled           bool
	MaxFailedAttempts int
	LockoutMinutes    int
	PasswordCost      int
	AdminEmail        string
	AdminPassword     string
}

type OIDCConfig struct {
	Enabled              bool
	Issuer               string
	ClientID             string
	ClientSecret         string
	RedirectURL          string
	Scopes               string
	AutoCreateUsers      bool
	RequireEmailVerified bool
	AdminGroups          []string
	SessionTTL           time.Duration
}

type VolumeConfig struct {
	RootPath           string
	UserVolumesEnabled bool
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        getEnv("SERVER_PORT", "8080"),
			FrontendURL: getEnv("FRONTEND_URL", "http://localhost:3001"),
		},
		DB: DBConfig{
			Driver:   getEnv("DB_DRIVER", "sqlite"),
			Path:     getEnv("DB_PATH", "fileharbor.db"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "fileharbor"),
			Password: getEnv("DB_PASSWORD", "fileharbor_secret"),
			Name:     getEnv("DB_NAME", "fileharbor"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		JWT: JWTConfig{
			Secret:          getEnv("JWT_SECRET", "change-me-in-production"),
			ExpirationHours: getEnvAsInt("JWT_EXPIRATION_HOURS", 24),
		},
		Auth: AuthConfig{
			Enabled:           getEnvAsBool("AUTH_ENABLED", true),
			MaxFailedAttempts: getEnvAsInt("AUTH_MAX_FAILED", 5),
			LockoutMinutes:    getEnvAsInt("AUTH_LOCK_MINUTES", 15),
			PasswordCost:      getEnvAsInt("AUTH_PASSWORD_COST", 10),
			AdminEmail:        getEnv("ADMIN_EMAIL", ""),
			AdminPassword:     getEnv("ADMIN_PASSWORD", ""),
		},
		OIDC: OIDCConfig{
			Enabled:              getEnvAsBool("OIDC_ENABLED", false),
			Issuer:               getEnv("OIDC_ISSUER", ""),
			ClientID:             getEnv("OIDC_CLIENT_ID", ""),
			ClientSecret:         getEnv("OIDC_CLIENT_SECRET", ""),
			RedirectURL:          getEnv("OIDC_REDIRECT_URL", ""),
			Scopes:               getEnv("OIDC_SCOPES", "openid,profile,email,groups"),
			AutoCreateUsers:      getEnvAsBool("OIDC_AUTO_CREATE_USERS", true),
			RequireEmailVerified: getEnvAsBool("OIDC_REQUIRE_EMAIL_VERIFIED", false),
			AdminGroups:          getEnvAsList("OIDC_ADMIN_GROUPS"),
			SessionTTL:           getEnvAsDuration("OIDC_SESSION_TTL", 12*time.Hour),
		},
		Volumes: VolumeConfig{
			RootPath:           getEnv("VOLUME_ROOT", "./data"),
			UserVolumesEnabled: getEnvAsBool("USER_VOLUMES", false),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.Atoi(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.ParseBool(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := time.ParseDuration(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsList(key string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
