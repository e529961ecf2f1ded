package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port            string `yaml:"port"`
		ShutdownTimeout string `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Gemini struct {
		APIKey     string `yaml:"api_key"`
		BaseURL    string `yaml:"base_url"`
		Model      string `yaml:"model"`
		ThemeModel string `yaml:"theme_model"`
		ImageModel string `yaml:"image_model"`
		Timeout    string `yaml:"timeout"`
	} `yaml:"gemini"`
	Storage struct {
		// Performance selects the slot backend: memory, redis, postgres or sqlite.
		Performance string `yaml:"performance"`
		Key         string `yaml:"key"`
	} `yaml:"storage"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	SQLite struct {
		Path string `yaml:"path"`
	} `yaml:"sqlite"`
	RabbitMQ struct {
		URL      string `yaml:"url"`
		Exchange string `yaml:"exchange"`
	} `yaml:"rabbitmq"`
	Quiz struct {
		TickInterval    string `yaml:"tick_interval"`
		PrefetchTimeout string `yaml:"prefetch_timeout"`
		// IdleTimeout is how long an unwatched, idle session is kept.
		IdleTimeout string `yaml:"idle_timeout"`
		// OfflineBank serves seeded questions instead of calling the generative API.
		OfflineBank bool `yaml:"offline_bank"`
	} `yaml:"quiz"`
	Tools struct {
		TTL string `yaml:"ttl"`
	} `yaml:"tools"`
}

// Load reads YAML config from path. Environment variables override secrets.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	cfg.applyEnv()
	return cfg, nil
}

// Default is used when no config file exists: in-memory everything.
func Default() Config {
	cfg := Config{}
	cfg.applyEnv()
	return cfg
}

func (c *Config) applyEnv() {
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.Gemini.APIKey = key
	} else if key := os.Getenv("API_KEY"); key != "" && c.Gemini.APIKey == "" {
		c.Gemini.APIKey = key
	}
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
