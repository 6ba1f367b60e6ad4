package config

import (
	"io"
	"log"
	"os"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"
)

// AgentConfig holds the orchestration budgets and model settings.
// Loaded from the YAML config file so deployments can tune them without
// rebuilding.
type AgentConfig struct {
	Model               string  `yaml:"model"`
	Temperature         float32 `yaml:"temperature"`
	Phase1MaxTurns      int     `yaml:"phase1_max_turns"`
	MaxTurns            int     `yaml:"max_turns"`
	RequestTimeoutSecs  int     `yaml:"request_timeout_seconds"`
	StreamTimeoutSecs   int     `yaml:"stream_timeout_seconds"`
	MaxResults          int     `yaml:"max_results"`
	RetryBackoffMillis  int     `yaml:"retry_backoff_millis"`
	ToolTimeoutSeconds  int     `yaml:"tool_timeout_seconds"`
}

// Config is the process-wide configuration.
type Config struct {
	Port    string
	GinMode string

	// Catalog provider (TMDB-compatible)
	CatalogBaseURL     string
	CatalogBearerToken string

	// LLM provider (OpenAI-compatible)
	OpenAIAPIKey  string
	OpenAIBaseURL string

	// Request boundary
	RefererAllowList []string       `yaml:"referer_allow_list"`
	SupportedLocales []string       `yaml:"supported_locales"`
	DefaultLocale    string         `yaml:"default_locale"`
	MovieGenres      map[string]int `yaml:"movie_genres"`
	TVGenres         map[string]int `yaml:"tv_genres"`

	Agent AgentConfig `yaml:"agent"`

	// Logging
	LogLevel  string
	LogFormat string
}

var AppConfig *Config

// LoadConfig populates AppConfig from the environment and the YAML config
// file. Secrets come from the environment; structured settings (genre maps,
// allow-list, agent budgets) come from the file.
func LoadConfig() {
	if err := godotenv.Load(".env"); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	AppConfig = &Config{
		Port:    getEnvOrDefault("PORT", "8080"),
		GinMode: getEnvOrDefault("GIN_MODE", "release"),

		CatalogBaseURL:     getEnvOrDefault("TMDB_BASE_URL", "https://api.themoviedb.org/3"),
		CatalogBearerToken: getEnvOrDefault("TMDB_BEARER_TOKEN", ""),

		OpenAIAPIKey:  getEnvOrDefault("OPENAI_API_KEY", ""),
		OpenAIBaseURL: getEnvOrDefault("OPENAI_BASE_URL", ""),

		LogLevel:  getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat: getEnvOrDefault("LOG_FORMAT", "text"),
	}

	configFilePath := getEnvOrDefault("CONFIG_FILE", "config.yaml")
	log.Printf("Loading config file: %v", configFilePath)

	configFile, err := os.Open(configFilePath)
	if err != nil {
		log.Fatalf("Failed to open config file: %v", err)
	}
	defer configFile.Close()

	if err := LoadConfigFile(configFile, AppConfig); err != nil {
		log.Fatalf("Failed to load config file: %v", err)
	}

	applyDefaults(AppConfig)

	if AppConfig.CatalogBearerToken == "" {
		log.Println("Warning: TMDB bearer token is missing. Please set TMDB_BEARER_TOKEN environment variable.")
	}
	if AppConfig.OpenAIAPIKey == "" {
		log.Println("Warning: OpenAI API key is missing. Please set OPENAI_API_KEY environment variable.")
	}
}

// LoadConfigFile decodes YAML settings into config.
func LoadConfigFile(reader io.Reader, config *Config) error {
	decoder := yaml.NewDecoder(reader)
	return decoder.Decode(config)
}

func applyDefaults(c *Config) {
	if c.DefaultLocale == "" {
		c.DefaultLocale = "en-US"
	}
	if len(c.SupportedLocales) == 0 {
		c.SupportedLocales = []string{"en-US", "fr-FR"}
	}
	if c.Agent.Model == "" {
		c.Agent.Model = "gpt-4o-mini"
	}
	if c.Agent.Phase1MaxTurns <= 0 {
		c.Agent.Phase1MaxTurns = 6
	}
	if c.Agent.MaxTurns <= 0 {
		c.Agent.MaxTurns = 10
	}
	if c.Agent.RequestTimeoutSecs <= 0 {
		c.Agent.RequestTimeoutSecs = 60
	}
	if c.Agent.StreamTimeoutSecs <= 0 {
		c.Agent.StreamTimeoutSecs = 90
	}
	if c.Agent.MaxResults <= 0 {
		c.Agent.MaxResults = 12
	}
	if c.Agent.RetryBackoffMillis <= 0 {
		c.Agent.RetryBackoffMillis = 500
	}
	if c.Agent.ToolTimeoutSeconds <= 0 {
		c.Agent.ToolTimeoutSeconds = 15
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
