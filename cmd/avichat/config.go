package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the avichat configuration file. Every secret can also come
// from the environment, so a committed config file never needs to hold
// keys.
type Config struct {
	UserID       string `yaml:"user_id"`
	SystemPrompt string `yaml:"system_prompt"`

	OpenAI struct {
		APIKey         string `yaml:"api_key"`
		BaseURL        string `yaml:"base_url"`
		Model          string `yaml:"model"`
		EmbeddingModel string `yaml:"embedding_model"`
	} `yaml:"openai"`

	Store struct {
		Type        string `yaml:"type"` // memory | supabase
		SupabaseURL string `yaml:"supabase_url"`
		SupabaseKey string `yaml:"supabase_key"`
		Table       string `yaml:"table"`
	} `yaml:"store"`

	Session struct {
		Type          string `yaml:"type"` // memory | redis
		RedisAddr     string `yaml:"redis_addr"`
		RedisPassword string `yaml:"redis_password"`
	} `yaml:"session"`

	Search struct {
		QdrantURL    string `yaml:"qdrant_url"`
		QdrantAPIKey string `yaml:"qdrant_api_key"`
		Collection   string `yaml:"collection"`
	} `yaml:"search"`
}

const defaultSystemPrompt = "You are an aviation exam tutor. Answer questions about " +
	"regulations, meteorology, navigation and flight planning accurately and concisely."

// LoadConfig reads the YAML config at path (if any), then applies
// environment fallbacks and defaults. A missing file is not an error;
// the environment alone can configure a memory-backed run.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(&cfg.UserID, "AVICHAT_USER")
	applyEnv(&cfg.OpenAI.APIKey, "OPENAI_API_KEY")
	applyEnv(&cfg.OpenAI.BaseURL, "OPENAI_BASE_URL")
	applyEnv(&cfg.Store.SupabaseURL, "SUPABASE_URL")
	applyEnv(&cfg.Store.SupabaseKey, "SUPABASE_KEY")
	applyEnv(&cfg.Session.RedisAddr, "REDIS_ADDR")
	applyEnv(&cfg.Session.RedisPassword, "REDIS_PASSWORD")
	applyEnv(&cfg.Search.QdrantURL, "QDRANT_URL")
	applyEnv(&cfg.Search.QdrantAPIKey, "QDRANT_API_KEY")

	if cfg.UserID == "" {
		cfg.UserID = "local"
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = defaultSystemPrompt
	}
	if cfg.Store.Type == "" {
		cfg.Store.Type = "memory"
	}
	if cfg.Session.Type == "" {
		cfg.Session.Type = "memory"
	}
	if cfg.Search.Collection == "" {
		cfg.Search.Collection = "messages"
	}

	if cfg.OpenAI.APIKey == "" {
		return nil, fmt.Errorf("an OpenAI API key is required (config openai.api_key or OPENAI_API_KEY)")
	}
	return cfg, nil
}

func applyEnv(target *string, key string) {
	if *target == "" {
		if v := os.Getenv(key); v != "" {
			*target = v
		}
	}
}
