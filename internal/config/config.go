package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port           string
	AllowedOrigins []string
	FrontendURL    string

	DatabaseURL          string
	DBMaxOpenConns       int
	DBMaxIdleConns       int
	DBConnMaxLifetimeMin int

	JWTSecret       string
	TokenSecret     string
	AuthSessionDays int

	// Rotation and token validity.
	RotationInterval     time.Duration
	TokenValiditySeconds int
	GracePeriodSeconds   int

	// Session lifecycle.
	LinkingCodeExpiry      time.Duration
	SessionDurationMinutes int

	// Verification thresholds.
	ConfidenceThreshold  float64
	RadioRSSIThreshold   int
	MinDistinctRadioHits int
	WeightToken          float64
	WeightRadio          float64
	WeightNetwork        float64
	WeightGeo            float64
}

var AppConfig *Config

func LoadConfig() *Config {
	port := GetEnv("PORT", "8080")

	// Frontend & CORS
	frontendURL := GetEnv("FRONTEND_URL", "http://localhost:5173")
	allowedOriginsStr := GetEnv("ALLOWED_ORIGINS", "")

	allowedOrigins := []string{
		frontendURL,
		"http://localhost:5173", // Local development
	}
	if allowedOriginsStr != "" {
		extras := strings.Split(allowedOriginsStr, ",")
		for _, origin := range extras {
			trimmed := strings.TrimSpace(origin)
			if trimmed != "" {
				allowedOrigins = append(allowedOrigins, trimmed)
			}
		}
	}

	AppConfig = &Config{
		Port:           port,
		AllowedOrigins: allowedOrigins,
		FrontendURL:    frontendURL,

		DatabaseURL:          GetEnv("DATABASE_URL", GetEnv("DATABASE_URI", "")),
		DBMaxOpenConns:       GetEnvAsInt("DB_MAX_OPEN_CONNS", 25),
		DBMaxIdleConns:       GetEnvAsInt("DB_MAX_IDLE_CONNS", 25),
		DBConnMaxLifetimeMin: GetEnvAsInt("DB_CONN_MAX_LIFETIME_MINUTES", 5),

		JWTSecret:       GetEnv("JWT_SECRET", "your-secret-key-change-this-in-production"),
		TokenSecret:     GetEnv("TOKEN_SECRET", "qr-signing-key-change-this-in-production"),
		AuthSessionDays: GetEnvAsInt("AUTH_SESSION_DAYS", 30),

		RotationInterval:     time.Duration(GetEnvAsInt("ROTATION_INTERVAL_SECONDS", 5)) * time.Second,
		TokenValiditySeconds: GetEnvAsInt("TOKEN_VALIDITY_SECONDS", 5),
		GracePeriodSeconds:   GetEnvAsInt("GRACE_PERIOD_SECONDS", 2),

		LinkingCodeExpiry:      time.Duration(GetEnvAsInt("LINKING_CODE_EXPIRY_MINUTES", 5)) * time.Minute,
		SessionDurationMinutes: GetEnvAsInt("SESSION_DURATION_MINUTES", 60),

		ConfidenceThreshold:  GetEnvAsFloat("CONFIDENCE_THRESHOLD", 0.6),
		RadioRSSIThreshold:   GetEnvAsInt("RADIO_RSSI_THRESHOLD", -70),
		MinDistinctRadioHits: GetEnvAsInt("MIN_DISTINCT_RADIO_HITS", 2),
		WeightToken:          GetEnvAsFloat("WEIGHT_TOKEN", 0.4),
		WeightRadio:          GetEnvAsFloat("WEIGHT_RADIO", 0.3),
		WeightNetwork:        GetEnvAsFloat("WEIGHT_NETWORK", 0.2),
		WeightGeo:            GetEnvAsFloat("WEIGHT_GEO", 0.1),
	}

	return AppConfig
}

func GetEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func GetEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Invalid integer value for %s: %s, using default: %d", key, valueStr, defaultValue)
		return defaultValue
	}
	return value
}

func GetEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		log.Printf("Invalid float value for %s: %s, using default: %v", key, valueStr, defaultValue)
		return defaultValue
	}
	return value
}
