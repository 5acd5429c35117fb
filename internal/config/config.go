// Package config loads the typed configuration tree for the retrieval,
// embedding, auto-fix, and learning subsystems from a YAML file overlaid
// with environment variables, the way manifold's internal/config does for
// its own service tree.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// EmbeddingConfig configures backend selection for internal/embedding.
type EmbeddingConfig struct {
	// Backend is one of "voyage", "openai", "deepinfra", "local", or "auto".
	Backend string `yaml:"backend"`
	Model   string `yaml:"model,omitempty"`
	// LocalModelPath overrides the default local model weights location.
	LocalModelPath string `yaml:"local_model_path,omitempty"`
}

// LLMConfig configures internal/llmprovider.
type LLMConfig struct {
	// Backend is one of "openai" or "anthropic".
	Backend     string        `yaml:"backend"`
	Model       string        `yaml:"model"`
	Temperature float64       `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
	Timeout     time.Duration `yaml:"timeout"`
}

// SandboxConfig configures internal/sandbox verification runs.
type SandboxConfig struct {
	RootDir            string        `yaml:"root_dir"`
	TestTimeout         time.Duration `yaml:"test_timeout"`
	MaxConcurrentRuns   int           `yaml:"max_concurrent_runs"`
	BlockedBinaries     []string      `yaml:"blocked_binaries,omitempty"`
}

// RetrievalConfig configures internal/retrieve.
type RetrievalConfig struct {
	TopK              int           `yaml:"top_k"`
	FusionAlgorithm   string        `yaml:"fusion_algorithm"` // "rrf" or "linear"
	RRFK              int           `yaml:"rrf_k"`
	LinearAlpha       float64       `yaml:"linear_alpha"`
	MaxHops           int           `yaml:"max_hops"`
	MaxRelationships  int           `yaml:"max_relationships"`
	CacheSize         int           `yaml:"cache_size"`
	CacheTTL          time.Duration `yaml:"cache_ttl"`
	RedisAddr         string        `yaml:"redis_addr,omitempty"`
	RerankEnabled     bool          `yaml:"rerank_enabled"`
	ContextLines      int           `yaml:"context_lines"`
}

// EntitlementsConfig configures internal/entitlements.
type EntitlementsConfig struct {
	UpgradeURL string `yaml:"upgrade_url"`
	AddonURL   string `yaml:"addon_url"`
}

// DecisionStoreConfig configures internal/learning's append-only store.
type DecisionStoreConfig struct {
	Path string `yaml:"path"`
}

// AutofixConfig configures internal/autofix's best-of-N generator.
type AutofixConfig struct {
	N                      int     `yaml:"n"`
	MaxConcurrentSandboxes int     `yaml:"max_concurrent_sandboxes"`
	RequireAllTestsPass    bool    `yaml:"require_all_tests_pass"`
	MinScore               float64 `yaml:"min_score"`
}

// Config is the full configuration tree for this module's core.
type Config struct {
	Embedding    EmbeddingConfig     `yaml:"embedding"`
	LLM          LLMConfig           `yaml:"llm"`
	Sandbox      SandboxConfig       `yaml:"sandbox"`
	Retrieval    RetrievalConfig     `yaml:"retrieval"`
	Entitlements EntitlementsConfig  `yaml:"entitlements"`
	Decisions    DecisionStoreConfig `yaml:"decisions"`
	Autofix      AutofixConfig       `yaml:"autofix"`
	LogLevel     string              `yaml:"log_level"`
}

func defaults() Config {
	return Config{
		Embedding: EmbeddingConfig{Backend: "auto"},
		LLM: LLMConfig{
			Backend:     "anthropic",
			Temperature: 0.2,
			MaxTokens:   4096,
			Timeout:     60 * time.Second,
		},
		Sandbox: SandboxConfig{
			RootDir:           os.TempDir(),
			TestTimeout:       120 * time.Second,
			MaxConcurrentRuns: 5,
		},
		Retrieval: RetrievalConfig{
			TopK:             10,
			FusionAlgorithm:  "rrf",
			RRFK:             60,
			LinearAlpha:      0.7,
			MaxHops:          1,
			MaxRelationships: 20,
			CacheSize:        1000,
			CacheTTL:         10 * time.Minute,
			RerankEnabled:    false,
			ContextLines:     5,
		},
		Decisions: DecisionStoreConfig{Path: "decisions.jsonl"},
		Autofix: AutofixConfig{
			N:                      5,
			MaxConcurrentSandboxes: 5,
			RequireAllTestsPass:    false,
			MinScore:               0,
		},
		LogLevel: "info",
	}
}

// Load reads cfgPath (if non-empty) into a Config seeded with defaults, then
// applies environment variable overrides. It loads a local .env file first
// (best-effort, matching the teacher's godotenv convention) so credential
// env vars referenced by backend selection are populated for dev use.
func Load(cfgPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Msg("failed to load .env file")
	}

	cfg := defaults()

	if cfgPath != "" {
		data, err := os.ReadFile(cfgPath)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("unmarshal config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)

	if cfg.Retrieval.TopK <= 0 {
		return nil, fmt.Errorf("retrieval.top_k must be positive")
	}
	if cfg.Autofix.N <= 0 {
		return nil, fmt.Errorf("autofix.n must be positive")
	}

	return &cfg, nil
}

// applyEnvOverrides mirrors the teacher's habit of letting a handful of
// well-known environment variables win over file config, for deploys that
// inject config via env rather than a mounted YAML file.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("EMBEDDING_BACKEND"); v != "" {
		cfg.Embedding.Backend = v
	}
	if v := os.Getenv("LLM_BACKEND"); v != "" {
		cfg.LLM.Backend = v
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
	if v := os.Getenv("RETRIEVAL_TOP_K"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Retrieval.TopK = n
		}
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Retrieval.RedisAddr = v
	}
	if v := os.Getenv("DECISION_STORE_PATH"); v != "" {
		cfg.Decisions.Path = v
	}
}
