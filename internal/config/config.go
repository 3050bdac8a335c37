package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type BotConfig struct {
	TelegramToken   string
	TelegramDebug   bool
	BaseAdminChatID int64
	DatabaseURL     string
	Timezone        string
	Location        *time.Location
	HTTPAddr        string

	AdminEmails    []string
	ExceptionsFile string
	CalendarFile   string

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string

	ReminderRRule       string
	ReminderHorizonDays int

	MinLeadDays   int
	MaxLeadMonths int
	WeekdayQuota  int
	SpecialQuota  int

	LogLevel logrus.Level
}

var instance *BotConfig
var once sync.Once

// GetBotConfig загружает конфиг один раз; при ошибке процесс завершается
func GetBotConfig() *BotConfig {
	once.Do(func() {
		cfg, err := Load()
		if err != nil {
			logrus.Fatalf("error loading config: %s", err.Error())
		}
		instance = cfg
	})

	return instance
}

// Load читает .env (если есть) и переменные окружения
func Load() (*BotConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &BotConfig{
		TelegramToken:   getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramDebug:   getEnvAsBool("TELEGRAM_DEBUG", false),
		BaseAdminChatID: getEnvAsInt("BASE_ADMIN_CHAT_ID", 0),
		DatabaseURL:     getEnv("DATABASE_URL", "personal_days.db"),
		Timezone:        getEnv("TIMEZONE", "Europe/Madrid"),
		HTTPAddr:        getEnv("HTTP_ADDR", ":8080"),

		AdminEmails:    getEnvAsList("ADMIN_EMAILS"),
		ExceptionsFile: getEnv("EXCEPTIONS_FILE", ""),
		CalendarFile:   getEnv("CALENDAR_FILE", "personal_days.ics"),

		SMTPHost:     getEnv("SMTP_HOST", ""),
		SMTPPort:     int(getEnvAsInt("SMTP_PORT", 587)),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		SMTPFrom:     getEnv("SMTP_FROM", ""),

		ReminderRRule:       getEnv("REMINDER_RRULE", "FREQ=DAILY;BYHOUR=8;BYMINUTE=0;BYSECOND=0"),
		ReminderHorizonDays: int(getEnvAsInt("REMINDER_HORIZON_DAYS", 15)),

		MinLeadDays:   int(getEnvAsInt("MIN_LEAD_DAYS", 15)),
		MaxLeadMonths: int(getEnvAsInt("MAX_LEAD_MONTHS", 3)),
		WeekdayQuota:  int(getEnvAsInt("WEEKDAY_QUOTA", 3)),
		SpecialQuota:  int(getEnvAsInt("SPECIAL_QUOTA", 1)),
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("could not get db url")
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", cfg.Timezone, err)
	}
	cfg.Location = loc

	level, err := logrus.ParseLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	cfg.LogLevel = level

	if cfg.ReminderHorizonDays <= 0 {
		return nil, errors.New("REMINDER_HORIZON_DAYS must be positive")
	}
	if cfg.MinLeadDays < 0 || cfg.MaxLeadMonths <= 0 || cfg.WeekdayQuota < 0 || cfg.SpecialQuota < 0 {
		return nil, errors.New("rule limits must not be negative")
	}

	return cfg, nil
}

// MailEnabled - заданы ли хост и отправитель SMTP
func (c *BotConfig) MailEnabled() bool {
	return c.SMTPHost != "" && c.SMTPFrom != ""
}

func getEnv(key string, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}

	return defaultVal
}

func getEnvAsBool(name string, defaultVal bool) bool {
	valStr := getEnv(name, "")
	if val, err := strconv.ParseBool(valStr); err == nil {
		return val
	}

	return defaultVal
}

func getEnvAsInt(name string, defaultVal int64) int64 {
	valStr := getEnv(name, "")
	if val, err := strconv.ParseInt(valStr, 10, 64); err == nil {
		return val
	}

	return defaultVal
}

func getEnvAsList(name string) []string {
	var out []string
	for _, part := range strings.Split(getEnv(name, ""), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
