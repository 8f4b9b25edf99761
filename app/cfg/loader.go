package cfg

import (
	"cmp"
	"fmt"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Storage configuration
	DBPath string `long:"db-path" env:"DB_PATH" default:"./digest.db" description:"Path to the SQLite database file"`

	// Application configuration
	SourcesFile  string `long:"sources-file" env:"SOURCES_FILE" default:"./sources.yml" description:"YAML file describing news sources"`
	Port         string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	BaseUrl      string `long:"base-url" env:"BASE_URL" description:"Public base URL for the service (e.g., https://digest.example.com)"`
	APIAccessKey string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for authentication (optional)"`

	// Enrichment configuration
	OpenAIKey    string `long:"openai-key" env:"OPENAI_API_KEY" description:"OpenAI API key (enrichment disabled when empty)"`
	OpenAIModel  string `long:"openai-model" env:"OPENAI_MODEL" default:"gpt-4o-mini" description:"Model used for article analysis and composition"`
	EnrichLimit  int    `long:"enrich-limit" env:"ENRICH_LIMIT" default:"30" description:"Maximum number of articles analyzed per run"`
	RecencyHours int    `long:"recency-hours" env:"RECENCY_HOURS" default:"24" description:"Recency window in hours for the daily digest"`

	// Delivery configuration
	SMTPHost      string `long:"smtp-host" env:"SMTP_HOST" description:"SMTP server host (email disabled when empty)"`
	SMTPPort      string `long:"smtp-port" env:"SMTP_PORT" default:"587" description:"SMTP server port"`
	SMTPUser      string `long:"smtp-user" env:"SMTP_USER" description:"SMTP user name"`
	SMTPPassword  string `long:"smtp-password" env:"SMTP_PASSWORD" description:"SMTP password"`
	EmailFrom     string `long:"email-from" env:"EMAIL_FROM" description:"From address for outgoing digests"`
	TelegramToken string `long:"telegram-token" env:"TELEGRAM_BOT_TOKEN" description:"Telegram bot token (notifications disabled when empty)"`
	TelegramChat  string `long:"telegram-chat" env:"TELEGRAM_CHAT_ID" description:"Telegram chat or channel ID"`

	// Scheduling configuration
	SchedulerEnabled bool `long:"scheduler" env:"SCHEDULER_ENABLED" description:"Enable the built-in daily/weekly scheduler"`
	DigestHour       int  `long:"digest-hour" env:"DIGEST_HOUR" default:"7" description:"Hour of day (0-23) for the daily digest run"`
	WeeklyHour       int  `long:"weekly-hour" env:"WEEKLY_HOUR" default:"9" description:"Hour of day (0-23) for the Sunday weekly digest"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"AITechDaily/1.0" description:"User agent string for HTTP requests"`
	Timezone  string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, America/New_York)"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

func Load() (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		DBPath:           raw.DBPath,
		SourcesFile:      raw.SourcesFile,
		Port:             raw.Port,
		BaseUrl:          raw.BaseUrl,
		APIAccessKey:     raw.APIAccessKey,
		OpenAIKey:        raw.OpenAIKey,
		OpenAIModel:      raw.OpenAIModel,
		EnrichLimit:      raw.EnrichLimit,
		RecencyHours:     raw.RecencyHours,
		SMTPHost:         raw.SMTPHost,
		SMTPPort:         raw.SMTPPort,
		SMTPUser:         raw.SMTPUser,
		SMTPPassword:     raw.SMTPPassword,
		EmailFrom:        raw.EmailFrom,
		TelegramToken:    raw.TelegramToken,
		TelegramChat:     raw.TelegramChat,
		SchedulerEnabled: raw.SchedulerEnabled,
		DigestHour:       raw.DigestHour,
		WeeklyHour:       raw.WeeklyHour,
		UserAgent:        raw.UserAgent,
		Timezone:         raw.Timezone,
		Debug:            raw.Debug,
		Version:          GetVersion(),
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
		}
	}
	return nil
}
