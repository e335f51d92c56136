package config

import (
	"strings"
	"time"
)

// ProvidersConfig configures both language-model providers.
type ProvidersConfig struct {
	OpenAI OpenAIConfig `envPrefix:"OPENAI_"`
	Gemini GeminiConfig `envPrefix:"GEMINI_"`
}

// Sanitize applies guardrails to both providers.
func (p *ProvidersConfig) Sanitize() {
	p.OpenAI.Sanitize()
	p.Gemini.Sanitize()
}

// OpenAIConfig configures the ChatGPT generator.
type OpenAIConfig struct {
	APIKey            string        `env:"API_KEY"`
	BaseURL           string        `env:"BASE_URL"`
	Model             string        `env:"MODEL"               envDefault:"gpt-4o"`
	Timeout           time.Duration `env:"TIMEOUT"             envDefault:"60s"`
	RequestsPerSecond float64       `env:"REQUESTS_PER_SECOND" envDefault:"2"`
	Burst             int           `env:"BURST"               envDefault:"2"`
}

// Sanitize trims credentials and enforces a positive timeout.
func (c *OpenAIConfig) Sanitize() {
	c.APIKey = strings.TrimSpace(c.APIKey)
	c.Model = orDefault(c.Model, "gpt-4o")
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
	if c.Burst < 1 {
		c.Burst = 1
	}
}

// GeminiConfig configures the Gemini generator.
type GeminiConfig struct {
	APIKey            string        `env:"API_KEY"`
	Model             string        `env:"MODEL"               envDefault:"gemini-2.0-flash"`
	Timeout           time.Duration `env:"TIMEOUT"             envDefault:"60s"`
	RequestsPerSecond float64       `env:"REQUESTS_PER_SECOND" envDefault:"2"`
	Burst             int           `env:"BURST"               envDefault:"2"`
}

// Sanitize trims credentials and enforces a positive timeout.
func (c *GeminiConfig) Sanitize() {
	c.APIKey = strings.TrimSpace(c.APIKey)
	c.Model = orDefault(c.Model, "gemini-2.0-flash")
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
	if c.Burst < 1 {
		c.Burst = 1
	}
}
