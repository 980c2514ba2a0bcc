// Copyright 2025 Tarick Lorran
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config holds the environment driven configuration for the
// orchestrator service. Every knob comes from the process environment,
// optionally seeded from a .env file.
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration shared by the API server, the queue
// worker and the batch jobs.
type Config struct {
	AppName    string
	APIVersion string
	Debug      bool

	Server        ServerConfig
	Gemini        GeminiConfig
	Mongo         MongoConfig
	Qdrant        QdrantConfig
	Redis         RedisConfig
	Orchestrator  OrchestratorConfig
	Worker        WorkerConfig
	Prompts       PromptsConfig
	Memory        MemoryConfig
	Observability ObservabilityConfig
}

type ServerConfig struct {
	Host string
	Port int
}

func (c *ServerConfig) SetDefaults() {
	if c.Host == "" {
		c.Host = "0.0.0.0"
	}
	if c.Port == 0 {
		c.Port = 8000
	}
}

func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type GeminiConfig struct {
	APIKey         string
	Model          string
	EmbeddingModel string
}

func (c *GeminiConfig) SetDefaults() {
	if c.Model == "" {
		c.Model = "gemini-2.5-flash-preview-05-20"
	}
	if c.EmbeddingModel == "" {
		c.EmbeddingModel = "models/embedding-001"
	}
}

func (c *GeminiConfig) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is required")
	}
	return nil
}

type MongoConfig struct {
	URI      string
	Database string
	Timeout  time.Duration
}

func (c *MongoConfig) SetDefaults() {
	if c.URI == "" {
		c.URI = "mongodb://localhost:27017"
	}
	if c.Database == "" {
		c.Database = "ai_agents"
	}
	if c.Timeout == 0 {
		c.Timeout = 10 * time.Second
	}
}

type QdrantConfig struct {
	Host   string
	Port   int
	APIKey string
	UseTLS bool
}

func (c *QdrantConfig) SetDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 6334
	}
}

type RedisConfig struct {
	Addr     string
	Password string
}

func (c *RedisConfig) SetDefaults() {
	if c.Addr == "" {
		c.Addr = "localhost:6379"
	}
}

// OrchestratorConfig bounds the delegation and reason-act loops.
type OrchestratorConfig struct {
	MaxCycles      int
	MaxReactCycles int
	HistoryWindow  int
}

func (c *OrchestratorConfig) SetDefaults() {
	if c.MaxCycles == 0 {
		c.MaxCycles = 5
	}
	if c.MaxReactCycles == 0 {
		c.MaxReactCycles = 2
	}
	if c.HistoryWindow == 0 {
		c.HistoryWindow = 10
	}
}

func (c *OrchestratorConfig) Validate() error {
	if c.MaxCycles < 1 {
		return fmt.Errorf("MAX_CYCLES must be at least 1, got %d", c.MaxCycles)
	}
	if c.MaxReactCycles < 1 {
		return fmt.Errorf("MAX_REACT_CYCLES must be at least 1, got %d", c.MaxReactCycles)
	}
	return nil
}

type WorkerConfig struct {
	Concurrency     int
	MaxRetries      int
	TimeLimit       time.Duration
	CallbackTimeout time.Duration
	Stream          string
	Group           string
}

func (c *WorkerConfig) SetDefaults() {
	if c.Concurrency == 0 {
		c.Concurrency = 4
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.TimeLimit == 0 {
		c.TimeLimit = 10 * time.Minute
	}
	if c.CallbackTimeout == 0 {
		c.CallbackTimeout = 15 * time.Second
	}
	if c.Stream == "" {
		c.Stream = "agent_tasks"
	}
	if c.Group == "" {
		c.Group = "agent_workers"
	}
}

type PromptsConfig struct {
	Dir   string
	Watch bool
}

func (c *PromptsConfig) SetDefaults() {
	if c.Dir == "" {
		c.Dir = "prompts"
	}
}

type MemoryConfig struct {
	Collection   string
	MinIdle      time.Duration
	SummaryModel string
	TokenBudget  int
}

func (c *MemoryConfig) SetDefaults() {
	if c.Collection == "" {
		c.Collection = "long_term_memory"
	}
	if c.MinIdle == 0 {
		c.MinIdle = 24 * time.Hour
	}
	if c.SummaryModel == "" {
		c.SummaryModel = "gemini-1.5-flash"
	}
	if c.TokenBudget == 0 {
		c.TokenBudget = 100000
	}
}

type ObservabilityConfig struct {
	TracingEnabled  bool
	TracingEndpoint string
	SamplingRate    float64
	MetricsEnabled  bool
}

func (c *ObservabilityConfig) SetDefaults() {
	if c.TracingEndpoint == "" {
		c.TracingEndpoint = "localhost:4317"
	}
	if c.SamplingRate == 0 {
		c.SamplingRate = 1.0
	}
}

// SetDefaults fills every unset field with its default value.
func (c *Config) SetDefaults() {
	if c.AppName == "" {
		c.AppName = "IA Agent Orchestrator"
	}
	if c.APIVersion == "" {
		c.APIVersion = "1.0.0"
	}
	c.Server.SetDefaults()
	c.Gemini.SetDefaults()
	c.Mongo.SetDefaults()
	c.Qdrant.SetDefaults()
	c.Redis.SetDefaults()
	c.Orchestrator.SetDefaults()
	c.Worker.SetDefaults()
	c.Prompts.SetDefaults()
	c.Memory.SetDefaults()
	c.Observability.SetDefaults()
}

// Validate checks the parts that have no sensible default.
func (c *Config) Validate() error {
	if err := c.Gemini.Validate(); err != nil {
		return err
	}
	if err := c.Orchestrator.Validate(); err != nil {
		return err
	}
	return nil
}

// Load reads the configuration from the environment. An optional env file
// is loaded first; values already present in the environment win.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := LoadEnvFiles(envFile); err != nil {
			return nil, err
		}
	} else if err := LoadEnvFiles(); err != nil {
		return nil, err
	}

	cfg := &Config{
		AppName:    envOr("APP_NAME", ""),
		APIVersion: envOr("API_VERSION", ""),
		Debug:      envBoolOr("DEBUG", false),
		Server: ServerConfig{
			Host: envOr("SERVER_HOST", ""),
			Port: envIntOr("SERVER_PORT", 0),
		},
		Gemini: GeminiConfig{
			APIKey:         envOr("GEMINI_API_KEY", ""),
			Model:          envOr("GEMINI_MODEL", ""),
			EmbeddingModel: envOr("GEMINI_EMBEDDING_MODEL", ""),
		},
		Mongo: MongoConfig{
			URI:      envOr("MONGO_URI", ""),
			Database: envOr("MONGO_DB", ""),
			Timeout:  envDurationOr("MONGO_TIMEOUT", 0),
		},
		Qdrant: QdrantConfig{
			Host:   envOr("QDRANT_HOST", ""),
			Port:   envIntOr("QDRANT_PORT", 0),
			APIKey: envOr("QDRANT_API_KEY", ""),
			UseTLS: envBoolOr("QDRANT_USE_TLS", false),
		},
		Redis: RedisConfig{
			Addr:     envOr("REDIS_ADDR", ""),
			Password: envOr("REDIS_PASSWORD", ""),
		},
		Orchestrator: OrchestratorConfig{
			MaxCycles:      envIntOr("MAX_CYCLES", 0),
			MaxReactCycles: envIntOr("MAX_REACT_CYCLES", 0),
			HistoryWindow:  envIntOr("HISTORY_WINDOW", 0),
		},
		Worker: WorkerConfig{
			Concurrency:     envIntOr("WORKER_CONCURRENCY", 0),
			MaxRetries:      envIntOr("JOB_MAX_RETRIES", 0),
			TimeLimit:       envDurationOr("JOB_TIME_LIMIT", 0),
			CallbackTimeout: envDurationOr("CALLBACK_TIMEOUT", 0),
			Stream:          envOr("JOB_STREAM", ""),
			Group:           envOr("JOB_GROUP", ""),
		},
		Prompts: PromptsConfig{
			Dir:   envOr("PROMPTS_DIR", ""),
			Watch: envBoolOr("PROMPTS_WATCH", false),
		},
		Memory: MemoryConfig{
			Collection:   envOr("MEMORY_COLLECTION", ""),
			MinIdle:      envDurationOr("MEMORY_MIN_IDLE", 0),
			SummaryModel: envOr("MEMORY_SUMMARY_MODEL", ""),
			TokenBudget:  envIntOr("MEMORY_TOKEN_BUDGET", 0),
		},
		Observability: ObservabilityConfig{
			TracingEnabled:  envBoolOr("TRACING_ENABLED", false),
			TracingEndpoint: envOr("TRACING_ENDPOINT", ""),
			SamplingRate:    envFloatOr("TRACING_SAMPLING_RATE", 0),
			MetricsEnabled:  envBoolOr("METRICS_ENABLED", false),
		},
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
