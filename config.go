package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	LogFile        string   `yaml:"log"`
	Source         string   `yaml:"source"`
	SourceName     string   `yaml:"source_name"`
	ProgressFile   string   `yaml:"progress_file"`
	MergeEventsMs  int      `yaml:"write_debounce_ms"`
	ChunkSize      int      `yaml:"chunk_size"`
	Encoding       string   `yaml:"encoding"`
	EmbedBatchSize int      `yaml:"embed_batch_size"`
	IndexBatchSize int      `yaml:"index_batch_size"`
	Results        int      `yaml:"results"`
	ServerAddr     string   `yaml:"server_addr"`
	MCPAddr        string   `yaml:"mcp_addr"`
	CORSOrigins    []string `yaml:"cors_origins"`
	StaticDir      string   `yaml:"static_dir"`
	Retry          struct {
		MaxAttempts int     `yaml:"max_attempts"`
		DelayMs     int     `yaml:"delay_ms"`
		Multiplier  float64 `yaml:"multiplier"`
	} `yaml:"retry"`
	Index struct {
		Type       string `yaml:"type"`
		Path       string `yaml:"path"`
		Dimensions int    `yaml:"dimensions"`
		ChromaAddr string `yaml:"chroma_addr"`
		Collection string `yaml:"collection"`
	} `yaml:"index"`
	Generation struct {
		Temperature *float64 `yaml:"temperature"`
		MaxTokens   int      `yaml:"max_tokens"`
	} `yaml:"generation"`
	OpenAI *struct {
		Model          string `yaml:"model"`
		EmbeddingModel string `yaml:"embedding_model"`
		ApiKey         string `yaml:"api_key"`
		BaseURL        string `yaml:"base_url"`
	} `yaml:"open_ai"`
	Gemini *struct {
		Model          string `yaml:"model"`
		EmbeddingModel string `yaml:"embedding_model"`
		ApiKey         string `yaml:"api_key"`
	} `yaml:"gemini"`
}

func readConfig(cfgPath string) (*Config, error) {
	cfgFile, err := os.Open(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("unable to open config file: %w", err)
	}
	defer cfgFile.Close()

	cfg := &Config{}
	dec := yaml.NewDecoder(cfgFile)
	err = dec.Decode(cfg)
	if err != nil {
		return nil, fmt.Errorf("unable to parse config file: %w", err)
	}

	applyDefaults(cfg)
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.LogFile == "" {
		cfg.LogFile = "chatbot.log"
	}
	if cfg.SourceName == "" {
		cfg.SourceName = "book"
	}
	if cfg.ProgressFile == "" {
		cfg.ProgressFile = "progress.json"
	}
	if cfg.MergeEventsMs == 0 {
		cfg.MergeEventsMs = 500
	}
	if cfg.ChunkSize == 0 {
		cfg.ChunkSize = 1000
	}
	if cfg.Encoding == "" {
		cfg.Encoding = "cl100k_base"
	}
	if cfg.EmbedBatchSize == 0 {
		cfg.EmbedBatchSize = 100
	}
	if cfg.IndexBatchSize == 0 {
		cfg.IndexBatchSize = 500
	}
	if cfg.Results == 0 {
		cfg.Results = 5
	}
	if cfg.ServerAddr == "" {
		cfg.ServerAddr = "localhost:8080"
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry.MaxAttempts = 3
	}
	if cfg.Retry.DelayMs == 0 {
		cfg.Retry.DelayMs = 1000
	}
	if cfg.Retry.Multiplier == 0 {
		cfg.Retry.Multiplier = 2
	}
	if cfg.Index.Type == "" {
		cfg.Index.Type = "sqlite"
	}
	if cfg.Index.Path == "" {
		cfg.Index.Path = "rag.db"
	}
	if cfg.Index.ChromaAddr == "" {
		cfg.Index.ChromaAddr = "http://localhost:8000"
	}
	if cfg.Index.Collection == "" {
		cfg.Index.Collection = "book_embeddings"
	}
	if cfg.Generation.Temperature == nil {
		t := 0.7
		cfg.Generation.Temperature = &t
	}
	if cfg.Generation.MaxTokens == 0 {
		cfg.Generation.MaxTokens = 500
	}

	if cfg.OpenAI != nil {
		if cfg.OpenAI.ApiKey == "" {
			cfg.OpenAI.ApiKey = os.Getenv("OPENAI_API_KEY")
		}
		if cfg.OpenAI.Model == "" {
			cfg.OpenAI.Model = "gpt-4-turbo-preview"
		}
		if cfg.OpenAI.EmbeddingModel == "" {
			cfg.OpenAI.EmbeddingModel = "text-embedding-3-small"
		}
	}
	if cfg.Gemini != nil {
		if cfg.Gemini.ApiKey == "" {
			cfg.Gemini.ApiKey = os.Getenv("GEMINI_API_KEY")
		}
		if cfg.Gemini.Model == "" {
			cfg.Gemini.Model = "gemini-2.0-flash"
		}
		if cfg.Gemini.EmbeddingModel == "" {
			cfg.Gemini.EmbeddingModel = "text-embedding-004"
		}
	}

	if cfg.Index.Dimensions == 0 {
		cfg.Index.Dimensions = embeddingDimensions[embeddingModel(cfg)]
	}
}

// embeddingDimensions holds the vector sizes of the known embedding models.
var embeddingDimensions = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
	"text-embedding-004":     768,
	"gemini-embedding-001":   3072,
}

// embeddingModel names the model the index is built with; OpenAI wins when
// both providers are configured.
func embeddingModel(cfg *Config) string {
	if cfg.OpenAI != nil {
		return cfg.OpenAI.EmbeddingModel
	}
	if cfg.Gemini != nil {
		return cfg.Gemini.EmbeddingModel
	}

	return ""
}

func validateConfig(cfg *Config) error {
	if cfg.Source == "" {
		return fmt.Errorf("invalid config: source document is not set")
	}
	if cfg.OpenAI == nil && cfg.Gemini == nil {
		return fmt.Errorf("invalid config: either open_ai or gemini must be configured")
	}
	if cfg.Index.Type != "sqlite" && cfg.Index.Type != "chroma" {
		return fmt.Errorf("invalid config: unknown index type %q", cfg.Index.Type)
	}
	if cfg.Index.Type == "sqlite" && cfg.Index.Dimensions <= 0 {
		return fmt.Errorf("invalid config: index.dimensions must be set for embedding model %q", embeddingModel(cfg))
	}
	if cfg.ChunkSize < 0 || cfg.EmbedBatchSize < 0 || cfg.IndexBatchSize < 0 {
		return fmt.Errorf("invalid config: sizes must be positive")
	}

	return nil
}
