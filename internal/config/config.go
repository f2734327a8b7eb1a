package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config keeps runtime settings for the bot.
type Config struct {
	TelegramToken string
	DatabaseURL   string
	AgendaTime    string // daily agenda broadcast, "HH:MM"
	HorizonDays   int    // default /generate horizon
	LogLevel      string
}

// Load reads configuration from the environment (and an optional .env file)
// with sane defaults.
func Load() (Config, error) {
	// Missing .env is fine; real deployments use plain env vars.
	_ = godotenv.Load()

	cfg := Config{
		TelegramToken: strings.TrimSpace(os.Getenv("TELEGRAM_TOKEN")),
		DatabaseURL:   strings.TrimSpace(os.Getenv("DATABASE_URL")),
		AgendaTime:    strings.TrimSpace(os.Getenv("AGENDA_TIME")),
		HorizonDays:   parsePositiveInt(strings.TrimSpace(os.Getenv("HORIZON_DAYS"))),
		LogLevel:      strings.TrimSpace(os.Getenv("LOG_LEVEL")),
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = "study_planner.db"
	}

	if cfg.AgendaTime == "" {
		cfg.AgendaTime = "08:00"
	}

	if cfg.HorizonDays == 0 {
		cfg.HorizonDays = 7
	}

	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	if cfg.TelegramToken == "" {
		return cfg, fmt.Errorf("TELEGRAM_TOKEN is required")
	}

	return cfg, nil
}

func parsePositiveInt(raw string) int {
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0
	}
	return n
}
