package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName           string
	AppEnv            string
	AppPort           string
	DatabaseURL       string
	RedisURL          string
	NATSURL           string
	EventSubject      string
	EventQueueGroup   string
	JWTSecret         string
	CORSOrigins       string
	BankHolidaysURL   string
	HolidayCacheTTL   time.Duration
	PlanCreationDays  int
	ReviewDays        int
	PolicyCutoverDate time.Time
	DueWindowDays     int
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
// Malformed policy dates or TTLs are a structural refusal to run, not a
// per-request concern, so Load fails hard on them.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("SAN")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Support Additional Needs API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("nats.subject", "san.domain.events")
	v.SetDefault("nats.queue_group", "san-api")
	v.SetDefault("http.cors_origins", "*")
	v.SetDefault("bank_holidays.url", "https://www.gov.uk/bank-holidays.json")
	v.SetDefault("bank_holidays.cache_ttl", "24h")
	v.SetDefault("schedule.plan_creation_days", 5)
	v.SetDefault("schedule.review_days", 10)
	v.SetDefault("schedule.policy_cutover_date", "2025-10-01")
	v.SetDefault("status.due_window_days", 5)

	ttl, err := time.ParseDuration(v.GetString("bank_holidays.cache_ttl"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid bank holiday cache ttl: %w", err)
	}

	cutover, err := time.Parse("2006-01-02", v.GetString("schedule.policy_cutover_date"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid policy cutover date: %w", err)
	}

	cfg := Config{
		AppName:           v.GetString("app.name"),
		AppEnv:            v.GetString("app.env"),
		AppPort:           v.GetString("app.port"),
		DatabaseURL:       v.GetString("database.url"),
		RedisURL:          v.GetString("redis.url"),
		NATSURL:           v.GetString("nats.url"),
		EventSubject:      v.GetString("nats.subject"),
		EventQueueGroup:   v.GetString("nats.queue_group"),
		JWTSecret:         v.GetString("jwt.secret"),
		CORSOrigins:       v.GetString("http.cors_origins"),
		BankHolidaysURL:   v.GetString("bank_holidays.url"),
		HolidayCacheTTL:   ttl,
		PlanCreationDays:  v.GetInt("schedule.plan_creation_days"),
		ReviewDays:        v.GetInt("schedule.review_days"),
		PolicyCutoverDate: cutover,
		DueWindowDays:     v.GetInt("status.due_window_days"),
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	if cfg.PlanCreationDays <= 0 || cfg.ReviewDays <= 0 {
		return Config{}, fmt.Errorf("schedule day policies must be positive")
	}

	if cfg.DueWindowDays <= 0 {
		cfg.DueWindowDays = 5
	}

	return cfg, nil
}
