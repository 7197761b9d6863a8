package main

import (
	"log"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	LLMProvider     string `yaml:"llm_provider"`
	LLMModel        string `yaml:"llm_model"`
	AnthropicAPIKey string `yaml:"anthropic_api_key"`
	OpenAIAPIKey    string `yaml:"openai_api_key"`

	DBPath          string `yaml:"db_path"`
	ReportOutputDir string `yaml:"report_output_dir"`

	ReviewTimeoutSeconds   int     `yaml:"review_timeout_seconds"`
	MaxConcurrentPerClient int     `yaml:"max_concurrent_per_client"`
	ScoreJitter            float64 `yaml:"score_jitter"`

	PollSchedule        string `yaml:"poll_schedule"`
	CleanupSchedule     string `yaml:"cleanup_schedule"`
	StuckRunningMinutes int    `yaml:"stuck_running_minutes"`

	DomainOverlayPath string `yaml:"domain_overlay_path"`

	SlackBotToken   string `yaml:"slack_bot_token"`
	ReportChannelID string `yaml:"report_channel_id"`
}

func LoadConfig() Config {
	var cfg Config

	// Load from config.yaml if it exists
	configPath := "config.yaml"
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		configPath = envPath
	}
	if data, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			log.Fatalf("Error parsing %s: %v", configPath, err)
		}
		log.Printf("Loaded config from %s", configPath)
	}

	// Env vars override YAML values
	envOverride(&cfg.LLMProvider, "LLM_PROVIDER")
	envOverride(&cfg.LLMModel, "LLM_MODEL")
	envOverride(&cfg.AnthropicAPIKey, "ANTHROPIC_API_KEY")
	envOverride(&cfg.OpenAIAPIKey, "OPENAI_API_KEY")
	envOverride(&cfg.DBPath, "DB_PATH")
	envOverride(&cfg.ReportOutputDir, "REPORT_OUTPUT_DIR")
	envOverrideInt(&cfg.ReviewTimeoutSeconds, "REVIEW_TIMEOUT_SECONDS")
	envOverrideInt(&cfg.MaxConcurrentPerClient, "MAX_CONCURRENT_PER_CLIENT")
	envOverrideFloat(&cfg.ScoreJitter, "SCORE_JITTER")
	envOverride(&cfg.PollSchedule, "POLL_SCHEDULE")
	envOverride(&cfg.CleanupSchedule, "CLEANUP_SCHEDULE")
	envOverrideInt(&cfg.StuckRunningMinutes, "STUCK_RUNNING_MINUTES")
	envOverride(&cfg.DomainOverlayPath, "DOMAIN_OVERLAY_PATH")
	envOverride(&cfg.SlackBotToken, "SLACK_BOT_TOKEN")
	envOverride(&cfg.ReportChannelID, "REPORT_CHANNEL_ID")

	// Defaults
	if cfg.LLMProvider == "" {
		cfg.LLMProvider = "anthropic"
	}
	if cfg.DBPath == "" {
		cfg.DBPath = "./reviewbot.db"
	}
	if cfg.ReportOutputDir == "" {
		cfg.ReportOutputDir = "./reports"
	}
	if cfg.ReviewTimeoutSeconds == 0 {
		cfg.ReviewTimeoutSeconds = 300
	}
	if cfg.MaxConcurrentPerClient == 0 {
		cfg.MaxConcurrentPerClient = 2
	}
	if cfg.PollSchedule == "" {
		cfg.PollSchedule = "* * * * *"
	}
	if cfg.CleanupSchedule == "" {
		cfg.CleanupSchedule = "*/10 * * * *"
	}
	if cfg.StuckRunningMinutes == 0 {
		cfg.StuckRunningMinutes = 30
	}

	// Validate required fields
	switch cfg.LLMProvider {
	case "anthropic":
		if cfg.AnthropicAPIKey == "" {
			log.Fatalf("anthropic_api_key is required when llm_provider=anthropic")
		}
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			log.Fatalf("openai_api_key is required when llm_provider=openai")
		}
	default:
		log.Fatalf("llm_provider must be 'anthropic' or 'openai', got '%s'", cfg.LLMProvider)
	}

	if cfg.ReviewTimeoutSeconds < 1 {
		log.Fatalf("invalid review_timeout_seconds '%d': must be >= 1", cfg.ReviewTimeoutSeconds)
	}
	if cfg.MaxConcurrentPerClient < 1 {
		log.Fatalf("invalid max_concurrent_per_client '%d': must be >= 1", cfg.MaxConcurrentPerClient)
	}
	if cfg.ScoreJitter < 0 || cfg.ScoreJitter > 2 {
		log.Fatalf("invalid score_jitter '%f': must be between 0 and 2", cfg.ScoreJitter)
	}
	if cfg.StuckRunningMinutes < 1 {
		log.Fatalf("invalid stuck_running_minutes '%d': must be >= 1", cfg.StuckRunningMinutes)
	}
	if cfg.DomainOverlayPath != "" {
		if _, err := LoadDomainOverlay(cfg.DomainOverlayPath); err != nil {
			log.Fatalf("invalid domain_overlay_path '%s': %v", cfg.DomainOverlayPath, err)
		}
	}
	if cfg.SlackBotToken != "" && cfg.ReportChannelID == "" {
		log.Fatalf("report_channel_id is required when slack_bot_token is set")
	}

	return cfg
}

func envOverride(field *string, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = val
	}
}

func envOverrideInt(field *int, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		parsed, err := strconv.Atoi(val)
		if err != nil {
			log.Fatalf("invalid %s '%s': %v", envKey, val, err)
		}
		*field = parsed
	}
}

func envOverrideFloat(field *float64, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		parsed, err := strconv.ParseFloat(val, 64)
		if err != nil {
			log.Fatalf("invalid %s '%s': %v", envKey, val, err)
		}
		*field = parsed
	}
}
