// Package config loads service configuration from a YAML or TOML file and
// applies environment overrides on top.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// OpenAIConfig configures the embedding and chat providers.
type OpenAIConfig struct {
	APIKey         string  `yaml:"api_key" toml:"api_key"`
	BaseURL        string  `yaml:"base_url" toml:"base_url"`
	EmbeddingModel string  `yaml:"embedding_model" toml:"embedding_model"`
	ChatModel      string  `yaml:"chat_model" toml:"chat_model"`
	Temperature    float64 `yaml:"temperature" toml:"temperature"`
	RequestsPerSec float64 `yaml:"requests_per_second" toml:"requests_per_second"`
	TimeoutSecs    int     `yaml:"timeout_secs" toml:"timeout_secs"`
	BatchSize      int     `yaml:"batch_size" toml:"batch_size"`
	MockEmbeddings bool    `yaml:"mock_embeddings" toml:"mock_embeddings"`
	EmbeddingDims  int     `yaml:"embedding_dimensions" toml:"embedding_dimensions"`
}

// QdrantConfig contains connection details for the vector store. Host
// "memory" selects the in-process store.
type QdrantConfig struct {
	Host       string `yaml:"host" toml:"host"`
	Port       int    `yaml:"port" toml:"port"`
	APIKey     string `yaml:"api_key" toml:"api_key"`
	UseTLS     bool   `yaml:"use_tls" toml:"use_tls"`
	Collection string `yaml:"collection" toml:"collection"`
}

// Neo4jConfig contains connection details for the graph store. An empty URI
// selects the in-memory graph store.
type Neo4jConfig struct {
	URI      string `yaml:"uri" toml:"uri"`
	Username string `yaml:"username" toml:"username"`
	Password string `yaml:"password" toml:"password"`
	Database string `yaml:"database" toml:"database"`
}

// SplitterConfig holds chunking parameters.
type SplitterConfig struct {
	ChunkSize    int `yaml:"chunk_size" toml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap" toml:"chunk_overlap"`
}

// ExtractionConfig bounds the external tools used by the extractor.
type ExtractionConfig struct {
	MinTextLength  int `yaml:"min_text_length" toml:"min_text_length"`
	ToolTimeoutSec int `yaml:"tool_timeout_secs" toml:"tool_timeout_secs"`
	MaxOCRPages    int `yaml:"max_ocr_pages" toml:"max_ocr_pages"`
	OCRDPI         int `yaml:"ocr_dpi" toml:"ocr_dpi"`

	// LanguageProfiles optionally points at a YAML profile table that
	// replaces the built-in one.
	LanguageProfiles string `yaml:"language_profiles" toml:"language_profiles"`
}

// TaskConfig configures the worker pool and the stale-processing sweep.
type TaskConfig struct {
	Workers          int `yaml:"workers" toml:"workers"`
	MaxAttempts      int `yaml:"max_attempts" toml:"max_attempts"`
	RetryDelaySecs   int `yaml:"retry_delay_secs" toml:"retry_delay_secs"`
	StaleAfterMins   int `yaml:"stale_after_mins" toml:"stale_after_mins"`
	SweepIntervalSec int `yaml:"sweep_interval_secs" toml:"sweep_interval_secs"`
	QueueSize        int `yaml:"queue_size" toml:"queue_size"`
}

// Config is the root configuration.
type Config struct {
	DataDir        string           `yaml:"data_dir" toml:"data_dir"`
	DatabasePath   string           `yaml:"database_path" toml:"database_path"`
	DiagnosticsDir string           `yaml:"diagnostics_dir" toml:"diagnostics_dir"`
	ServerAddr     string           `yaml:"server_addr" toml:"server_addr"`
	WatchDocuments bool             `yaml:"watch_documents" toml:"watch_documents"`
	GitHubToken    string           `yaml:"github_token" toml:"github_token"`
	OpenAI         OpenAIConfig     `yaml:"openai" toml:"openai"`
	Qdrant         QdrantConfig     `yaml:"qdrant" toml:"qdrant"`
	Neo4j          Neo4jConfig      `yaml:"neo4j" toml:"neo4j"`
	Splitter       SplitterConfig   `yaml:"splitter" toml:"splitter"`
	Extraction     ExtractionConfig `yaml:"extraction" toml:"extraction"`
	Tasks          TaskConfig       `yaml:"tasks" toml:"tasks"`
}

// Load reads the config file at path. A missing file yields defaults. The
// format is chosen by extension: .toml for TOML, anything else for YAML.
// Environment overrides are applied last.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := decode(path, data, cfg); err != nil {
				return nil, err
			}
		}
	}
	applyDefaults(cfg)
	applyEnv(cfg)
	return cfg, nil
}

// Default returns a configuration with defaults and environment overrides.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	applyEnv(cfg)
	return cfg
}

func decode(path string, data []byte, cfg *Config) error {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if err := toml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("parse toml config: %w", err)
		}
		return nil
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse yaml config: %w", err)
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.DataDir == "" {
		cfg.DataDir = "data"
	}
	if cfg.DatabasePath == "" {
		cfg.DatabasePath = filepath.Join(cfg.DataDir, "raglens.db")
	}
	if cfg.DiagnosticsDir == "" {
		cfg.DiagnosticsDir = filepath.Join(cfg.DataDir, "diagnostics")
	}
	if cfg.ServerAddr == "" {
		cfg.ServerAddr = ":8080"
	}

	o := &cfg.OpenAI
	if o.EmbeddingModel == "" {
		o.EmbeddingModel = "text-embedding-3-small"
	}
	if o.ChatModel == "" {
		o.ChatModel = "gpt-4o"
	}
	if o.Temperature == 0 {
		o.Temperature = 0.3
	}
	if o.RequestsPerSec <= 0 {
		o.RequestsPerSec = 5
	}
	if o.TimeoutSecs <= 0 {
		o.TimeoutSecs = 60
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 100
	}
	if o.EmbeddingDims <= 0 {
		o.EmbeddingDims = 1536
	}

	q := &cfg.Qdrant
	if q.Host == "" {
		q.Host = "localhost"
	}
	if q.Port == 0 {
		q.Port = 6334
	}
	if q.Collection == "" {
		q.Collection = "documents"
	}

	if cfg.Neo4j.Username == "" {
		cfg.Neo4j.Username = "neo4j"
	}
	if cfg.Neo4j.Database == "" {
		cfg.Neo4j.Database = "neo4j"
	}

	if cfg.Splitter.ChunkSize <= 0 {
		cfg.Splitter.ChunkSize = 1000
	}
	if cfg.Splitter.ChunkOverlap <= 0 || cfg.Splitter.ChunkOverlap >= cfg.Splitter.ChunkSize {
		cfg.Splitter.ChunkOverlap = 200
	}

	e := &cfg.Extraction
	if e.MinTextLength <= 0 {
		e.MinTextLength = 100
	}
	if e.ToolTimeoutSec <= 0 {
		e.ToolTimeoutSec = 120
	}
	if e.MaxOCRPages <= 0 {
		e.MaxOCRPages = 50
	}
	if e.OCRDPI <= 0 {
		e.OCRDPI = 300
	}

	t := &cfg.Tasks
	if t.Workers <= 0 {
		t.Workers = 4
	}
	if t.MaxAttempts <= 0 {
		t.MaxAttempts = 3
	}
	if t.RetryDelaySecs <= 0 {
		t.RetryDelaySecs = 30
	}
	if t.StaleAfterMins <= 0 {
		t.StaleAfterMins = 30
	}
	if t.SweepIntervalSec <= 0 {
		t.SweepIntervalSec = 300
	}
	if t.QueueSize <= 0 {
		t.QueueSize = 256
	}
}

func applyEnv(cfg *Config) {
	setString(&cfg.OpenAI.APIKey, "OPENAI_API_KEY")
	setString(&cfg.OpenAI.BaseURL, "OPENAI_BASE_URL")
	setString(&cfg.OpenAI.EmbeddingModel, "EMBEDDING_MODEL")
	setString(&cfg.OpenAI.ChatModel, "LLM_MODEL")
	setBool(&cfg.OpenAI.MockEmbeddings, "USE_MOCK_EMBEDDINGS")
	setString(&cfg.Qdrant.Host, "QDRANT_HOST")
	setInt(&cfg.Qdrant.Port, "QDRANT_PORT")
	setString(&cfg.Qdrant.APIKey, "QDRANT_API_KEY")
	setString(&cfg.Qdrant.Collection, "QDRANT_COLLECTION")
	setString(&cfg.Neo4j.URI, "NEO4J_URI")
	setString(&cfg.Neo4j.Username, "NEO4J_USERNAME")
	setString(&cfg.Neo4j.Password, "NEO4J_PASSWORD")
	setString(&cfg.DataDir, "DATA_DIR")
	setString(&cfg.DatabasePath, "DATABASE_PATH")
	setString(&cfg.DiagnosticsDir, "DIAGNOSTICS_DIR")
	setString(&cfg.ServerAddr, "SERVER_ADDR")
	setInt(&cfg.Tasks.Workers, "WORKERS")
	setString(&cfg.GitHubToken, "GITHUB_TOKEN")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

// DocumentsRoot is the on-disk root of the folder tree.
func (c *Config) DocumentsRoot() string {
	return filepath.Join(c.DataDir, "Documents")
}

// ToolTimeout is the wall-clock budget for one external tool invocation.
func (c *Config) ToolTimeout() time.Duration {
	return time.Duration(c.Extraction.ToolTimeoutSec) * time.Second
}

// RetryDelay is the fixed delay between task attempts.
func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.Tasks.RetryDelaySecs) * time.Second
}

// StaleAfter is how long a document may stay in processing before the sweep
// marks it as failed.
func (c *Config) StaleAfter() time.Duration {
	return time.Duration(c.Tasks.StaleAfterMins) * time.Minute
}

// SweepInterval is the period of the stale-processing sweep.
func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.Tasks.SweepIntervalSec) * time.Second
}

// LLMTimeout is the wall-clock budget for one provider call.
func (c *Config) LLMTimeout() time.Duration {
	return time.Duration(c.OpenAI.TimeoutSecs) * time.Second
}
