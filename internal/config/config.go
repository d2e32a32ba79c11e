package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// Config root configuration. The json tags mirror the mapstructure
// keys so a saved config file reloads under the same names.
type Config struct {
	Store     StoreConfig     `mapstructure:"store" json:"store"`
	Agent     AgentConfig     `mapstructure:"agent" json:"agent"`
	Providers ProvidersConfig `mapstructure:"providers" json:"providers"`
	Shopify   ShopifyConfig   `mapstructure:"shopify" json:"shopify"`
	Facebook  FacebookConfig  `mapstructure:"facebook" json:"facebook"`
	WhatsApp  WhatsAppConfig  `mapstructure:"whatsapp" json:"whatsapp"`
	Gateway   GatewayConfig   `mapstructure:"gateway" json:"gateway"`
	Log       LogConfig       `mapstructure:"log" json:"log"`
	Local     LocalConfig     `mapstructure:"local" json:"local"`
	Schedules []ScheduleJob   `mapstructure:"schedules" json:"schedules"`
}

// AgentConfig core agent behavior
type AgentConfig struct {
	BrandName        string `mapstructure:"brand_name" json:"brand_name"`
	DryRun           bool   `mapstructure:"dry_run" json:"dry_run"`
	ApprovalsEnabled bool   `mapstructure:"approvals_enabled" json:"approvals_enabled"`
	StoreNiche       string `mapstructure:"store_niche" json:"store_niche"`
	DefaultInventory int    `mapstructure:"default_inventory_qty" json:"default_inventory_qty"`
}

// StoreConfig persistence settings
type StoreConfig struct {
	Path string `mapstructure:"path" json:"path"`
}

// LocalConfig local-filesystem tool settings
type LocalConfig struct {
	ActionsEnabled bool   `mapstructure:"actions_enabled" json:"actions_enabled"`
	Workspace      string `mapstructure:"workspace" json:"workspace"`
	ExecTimeout    int    `mapstructure:"exec_timeout" json:"exec_timeout"` // seconds
}

// ProvidersConfig LLM provider settings
type ProvidersConfig struct {
	OpenAI OpenAIConfig `mapstructure:"openai" json:"openai"`
	Ollama OllamaConfig `mapstructure:"ollama" json:"ollama"`
}

// OpenAIConfig openai-compatible provider settings
type OpenAIConfig struct {
	APIKey  string `mapstructure:"api_key" json:"api_key"`
	BaseURL string `mapstructure:"base_url" json:"base_url"`
	Model   string `mapstructure:"model" json:"model"`
}

// OllamaConfig local ollama settings
type OllamaConfig struct {
	Enabled bool   `mapstructure:"enabled" json:"enabled"`
	BaseURL string `mapstructure:"base_url" json:"base_url"`
	Model   string `mapstructure:"model" json:"model"`
}

// ShopifyConfig Shopify Admin API settings
type ShopifyConfig struct {
	Shop        string `mapstructure:"shop" json:"shop"`
	AccessToken string `mapstructure:"access_token" json:"access_token"`
	APIVersion  string `mapstructure:"api_version" json:"api_version"`
}

// FacebookConfig Facebook Graph API settings
type FacebookConfig struct {
	GraphVersion string `mapstructure:"graph_version" json:"graph_version"`
	PageID       string `mapstructure:"page_id" json:"page_id"`
	AccessToken  string `mapstructure:"access_token" json:"access_token"`
	VerifyToken  string `mapstructure:"verify_token" json:"verify_token"`
}

// WhatsAppConfig WhatsApp Cloud API settings
type WhatsAppConfig struct {
	PhoneNumberID string `mapstructure:"phone_number_id" json:"phone_number_id"`
	AccessToken   string `mapstructure:"access_token" json:"access_token"`
	VerifyToken   string `mapstructure:"verify_token" json:"verify_token"`
}

// GatewayConfig server settings
type GatewayConfig struct {
	Host  string `mapstructure:"host" json:"host"`
	Port  int    `mapstructure:"port" json:"port"`
	Token string `mapstructure:"token" json:"token"`
}

// LogConfig application logging settings
type LogConfig struct {
	Level string `mapstructure:"level" json:"level"`
	File  string `mapstructure:"file" json:"file"`
}

// ScheduleJob one periodic command submission
type ScheduleJob struct {
	Name    string `mapstructure:"name" json:"name"`
	Expr    string `mapstructure:"expr" json:"expr"` // 5-field cron expression
	Command string `mapstructure:"command" json:"command"`
	Enabled bool   `mapstructure:"enabled" json:"enabled"`
}

// DefaultConfig returns config with sensible defaults
func DefaultConfig() *Config {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}
	return &Config{
		Store: StoreConfig{
			Path: filepath.Join(homeDir, ".merx", "merx.db"),
		},
		Agent: AgentConfig{
			BrandName:        "Acme",
			DryRun:           true,
			ApprovalsEnabled: false,
			StoreNiche:       "general",
			DefaultInventory: 100,
		},
		Local: LocalConfig{
			ActionsEnabled: false,
			Workspace:      filepath.Join(homeDir, ".merx", "workspace"),
			ExecTimeout:    30,
		},
		Providers: ProvidersConfig{
			OpenAI: OpenAIConfig{
				BaseURL: "https://api.openai.com/v1",
				Model:   "gpt-4o-mini",
			},
			Ollama: OllamaConfig{
				Enabled: false,
				BaseURL: "http://localhost:11434",
				Model:   "llama3.1",
			},
		},
		Shopify: ShopifyConfig{
			APIVersion: "2026-01",
		},
		Facebook: FacebookConfig{
			GraphVersion: "v19.0",
			VerifyToken:  "dev-verify-token",
		},
		WhatsApp: WhatsAppConfig{
			VerifyToken: "dev-verify-token",
		},
		Gateway: GatewayConfig{
			Host:  "0.0.0.0",
			Port:  18890,
			Token: "",
		},
		Log: LogConfig{
			Level: "info",
			File:  "",
		},
		Schedules: []ScheduleJob{
			{Name: "nightly_inbox_triage", Expr: "10 2 * * *", Command: "Triage inbox", Enabled: true},
			{Name: "nightly_product_research", Expr: "20 2 * * *", Command: "Add a winning product and prepare it to sell", Enabled: true},
			{Name: "nightly_content_generation", Expr: "30 2 * * *", Command: "Generate 7 posts and queue for approval", Enabled: true},
			{Name: "daily_report", Expr: "0 9 * * *", Command: "Show me system status", Enabled: true},
		},
	}
}

// ConfigDir returns the merx config directory
func ConfigDir() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".merx")
}

// ConfigPath returns the config file path
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.json")
}

// Load loads config from file or returns defaults
func Load() (*Config, error) {
	return LoadFrom(ConfigPath())
}

// LoadFrom loads config from an explicit path, creating it with defaults
// when missing.
func LoadFrom(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := SaveTo(cfg, configPath); err != nil {
			return cfg, fmt.Errorf("failed to create default config: %w", err)
		}
		return cfg, nil
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("json")
	v.SetEnvPrefix("MERX")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return cfg, err
	}

	if err := v.Unmarshal(cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.MatchName = func(mapKey, fieldName string) bool {
			return normalizeKey(mapKey) == normalizeKey(fieldName)
		}
	}); err != nil {
		return cfg, err
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func normalizeKey(input string) string {
	input = strings.ReplaceAll(input, "_", "")
	input = strings.ReplaceAll(input, "-", "")
	return strings.ToLower(input)
}

// Save saves config to the default path
func Save(cfg *Config) error {
	return SaveTo(cfg, ConfigPath())
}

// SaveTo saves config to an explicit path
func SaveTo(cfg *Config, configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(configPath, data, 0600)
}

// Validate checks that the configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Agent.BrandName) == "" {
		c.Agent.BrandName = "Acme"
	}
	if c.Agent.DefaultInventory <= 0 {
		c.Agent.DefaultInventory = 100
	}
	if strings.TrimSpace(c.Agent.StoreNiche) == "" {
		c.Agent.StoreNiche = "general"
	}

	if strings.TrimSpace(c.Store.Path) == "" {
		return fmt.Errorf("store.path must not be empty")
	}

	if c.Local.ExecTimeout <= 0 {
		c.Local.ExecTimeout = 30
	}
	if strings.TrimSpace(c.Local.Workspace) == "" {
		return fmt.Errorf("local.workspace must not be empty")
	}

	if c.Gateway.Port <= 0 || c.Gateway.Port > 65535 {
		return fmt.Errorf("gateway.port must be between 1 and 65535, got %d", c.Gateway.Port)
	}

	level := strings.ToLower(strings.TrimSpace(c.Log.Level))
	if level == "" {
		c.Log.Level = "info"
	} else {
		validLevels := map[string]bool{
			"debug": true,
			"info":  true,
			"warn":  true,
			"error": true,
		}
		if !validLevels[level] {
			return fmt.Errorf("log.level must be one of debug, info, warn, error; got %q", c.Log.Level)
		}
		c.Log.Level = level
	}

	for i := range c.Schedules {
		job := &c.Schedules[i]
		if strings.TrimSpace(job.Name) == "" {
			return fmt.Errorf("schedules[%d].name must not be empty", i)
		}
		if strings.TrimSpace(job.Expr) == "" {
			return fmt.Errorf("schedules[%d].expr must not be empty", i)
		}
		if strings.TrimSpace(job.Command) == "" {
			return fmt.Errorf("schedules[%d].command must not be empty", i)
		}
	}

	return nil
}
