// Package config loads application configuration from viper.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Veraticus/wantnot/internal/common"
	"github.com/Veraticus/wantnot/internal/embedding"
	"github.com/Veraticus/wantnot/internal/engine"
	"github.com/Veraticus/wantnot/internal/llm"
	"github.com/Veraticus/wantnot/internal/model"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment variable overrides, e.g.
// WANTNOT_LLM_PROVIDER.
const EnvPrefix = "WANTNOT"

// Corpus drivers.
const (
	CorpusDriverSQLite   = "sqlite"
	CorpusDriverPostgres = "postgres"
)

// Config is the resolved application configuration.
type Config struct {
	Logging        LoggingConfig
	Database       DatabaseConfig
	User           UserConfig
	Corpus         CorpusConfig
	LLM            LLMConfig
	Embedding      EmbeddingConfig
	Categorization CategorizationConfig
	Learning       LearningConfig
	Server         ServerConfig
	Schedule       ScheduleConfig
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	Level  string
	Format string
}

// DatabaseConfig locates the SQLite database.
type DatabaseConfig struct {
	Path string
}

// UserConfig holds the default user for CLI commands.
type UserConfig struct {
	ID string
}

// CorpusConfig selects where the anonymized corpus lives.
type CorpusConfig struct {
	Driver      string
	PostgresDSN string
	Dimensions  int
}

// LLMConfig configures the generative tier.
type LLMConfig struct {
	Provider    string
	Model       string
	APIKey      string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
	MaxRetries  int
	RateLimit   int
	CacheTTL    time.Duration
}

// EmbeddingConfig configures the embedding provider.
type EmbeddingConfig struct {
	Model     string
	APIKey    string
	Timeout   time.Duration
	RateLimit int
}

// CategorizationConfig holds the cascade thresholds and limits.
type CategorizationConfig struct {
	RuleThreshold        float64
	VectorThreshold      float64
	LLMThreshold         float64
	BatchRuleThreshold   float64
	BatchVectorThreshold float64
	MinSimilarity        float64
	NeighborLimit        int
	LLMBatchLimit        int
	Contribute           bool
}

// LearningConfig holds the reinforcement tunables.
type LearningConfig struct {
	RuleSeed      float64
	RuleStep      float64
	CorpusSeed    float64
	CorpusStep    float64
	ConfidenceCap float64
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr        string
	CORSOrigins []string
}

// ScheduleConfig configures periodic auto-categorization.
type ScheduleConfig struct {
	Cron string
}

// SetDefaults registers every key with its default value.
func SetDefaults(v *viper.Viper) {
	defaults := engine.DefaultConfig()

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("database.path", "~/.local/share/wantnot/wantnot.db")
	v.SetDefault("user.id", "")

	v.SetDefault("corpus.driver", CorpusDriverSQLite)
	v.SetDefault("corpus.postgres_dsn", "")
	v.SetDefault("corpus.dimensions", 1536)

	v.SetDefault("llm.provider", llm.ProviderAnthropic)
	v.SetDefault("llm.model", "")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.max_tokens", 200)
	v.SetDefault("llm.temperature", 0.1)
	v.SetDefault("llm.timeout", defaults.LLMTimeout)
	v.SetDefault("llm.max_retries", 2)
	v.SetDefault("llm.rate_limit", 60)
	v.SetDefault("llm.cache_ttl", 15*time.Minute)

	v.SetDefault("embedding.model", embedding.DefaultModel)
	v.SetDefault("embedding.api_key", "")
	v.SetDefault("embedding.timeout", defaults.EmbeddingTimeout)
	v.SetDefault("embedding.rate_limit", 300)

	v.SetDefault("categorization.rule_threshold", defaults.Thresholds.Rule)
	v.SetDefault("categorization.vector_threshold", defaults.Thresholds.Vector)
	v.SetDefault("categorization.llm_threshold", defaults.Thresholds.LLM)
	v.SetDefault("categorization.batch_rule_threshold", defaults.BatchThresholds.Rule)
	v.SetDefault("categorization.batch_vector_threshold", defaults.BatchThresholds.Vector)
	v.SetDefault("categorization.min_similarity", defaults.MinSimilarity)
	v.SetDefault("categorization.neighbor_limit", defaults.NeighborLimit)
	v.SetDefault("categorization.llm_batch_limit", defaults.LLMBatchLimit)
	v.SetDefault("categorization.contribute", defaults.Contribute)

	v.SetDefault("learning.rule_seed", defaults.RuleTuning.Seed)
	v.SetDefault("learning.rule_step", defaults.RuleTuning.Step)
	v.SetDefault("learning.corpus_seed", defaults.CorpusTuning.Seed)
	v.SetDefault("learning.corpus_step", defaults.CorpusTuning.Step)
	v.SetDefault("learning.confidence_cap", defaults.RuleTuning.Cap)

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.cors_origins", []string{"http://localhost:3000"})

	v.SetDefault("schedule.cron", "*/15 * * * *")
}

// BindEnv makes every key overridable through WANTNOT_* variables.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load reads the configuration from v and validates it. Provider API keys
// fall back to the conventional environment variables.
func Load(v *viper.Viper) (Config, error) {
	cfg := Config{
		Logging: LoggingConfig{
			Level:  v.GetString("logging.level"),
			Format: v.GetString("logging.format"),
		},
		Database: DatabaseConfig{Path: ExpandPath(v.GetString("database.path"))},
		User:     UserConfig{ID: v.GetString("user.id")},
		Corpus: CorpusConfig{
			Driver:      strings.ToLower(v.GetString("corpus.driver")),
			PostgresDSN: v.GetString("corpus.postgres_dsn"),
			Dimensions:  v.GetInt("corpus.dimensions"),
		},
		LLM: LLMConfig{
			Provider:    strings.ToLower(v.GetString("llm.provider")),
			Model:       v.GetString("llm.model"),
			APIKey:      v.GetString("llm.api_key"),
			MaxTokens:   v.GetInt("llm.max_tokens"),
			Temperature: v.GetFloat64("llm.temperature"),
			Timeout:     v.GetDuration("llm.timeout"),
			MaxRetries:  v.GetInt("llm.max_retries"),
			RateLimit:   v.GetInt("llm.rate_limit"),
			CacheTTL:    v.GetDuration("llm.cache_ttl"),
		},
		Embedding: EmbeddingConfig{
			Model:     v.GetString("embedding.model"),
			APIKey:    v.GetString("embedding.api_key"),
			Timeout:   v.GetDuration("embedding.timeout"),
			RateLimit: v.GetInt("embedding.rate_limit"),
		},
		Categorization: CategorizationConfig{
			RuleThreshold:        v.GetFloat64("categorization.rule_threshold"),
			VectorThreshold:      v.GetFloat64("categorization.vector_threshold"),
			LLMThreshold:         v.GetFloat64("categorization.llm_threshold"),
			BatchRuleThreshold:   v.GetFloat64("categorization.batch_rule_threshold"),
			BatchVectorThreshold: v.GetFloat64("categorization.batch_vector_threshold"),
			MinSimilarity:        v.GetFloat64("categorization.min_similarity"),
			NeighborLimit:        v.GetInt("categorization.neighbor_limit"),
			LLMBatchLimit:        v.GetInt("categorization.llm_batch_limit"),
			Contribute:           v.GetBool("categorization.contribute"),
		},
		Learning: LearningConfig{
			RuleSeed:      v.GetFloat64("learning.rule_seed"),
			RuleStep:      v.GetFloat64("learning.rule_step"),
			CorpusSeed:    v.GetFloat64("learning.corpus_seed"),
			CorpusStep:    v.GetFloat64("learning.corpus_step"),
			ConfidenceCap: v.GetFloat64("learning.confidence_cap"),
		},
		Server: ServerConfig{
			Addr:        v.GetString("server.addr"),
			CORSOrigins: v.GetStringSlice("server.cors_origins"),
		},
		Schedule: ScheduleConfig{Cron: v.GetString("schedule.cron")},
	}

	if cfg.LLM.APIKey == "" {
		switch cfg.LLM.Provider {
		case llm.ProviderOpenAI:
			cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
		default:
			cfg.LLM.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		}
	}
	if cfg.Embedding.APIKey == "" {
		cfg.Embedding.APIKey = os.Getenv("OPENAI_API_KEY")
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks ranges and enumerations.
func (c Config) Validate() error {
	if _, err := common.ParseLevel(c.Logging.Level); err != nil {
		return err
	}
	switch c.Logging.Format {
	case "", "console", "text", "json":
	default:
		return fmt.Errorf("%w: unknown log format %q", common.ErrInvalidConfig, c.Logging.Format)
	}

	if strings.TrimSpace(c.Database.Path) == "" {
		return fmt.Errorf("%w: database.path", common.ErrInvalidConfig)
	}

	switch c.Corpus.Driver {
	case CorpusDriverSQLite:
	case CorpusDriverPostgres:
		if c.Corpus.PostgresDSN == "" {
			return fmt.Errorf("%w: corpus.postgres_dsn is required for the postgres driver", common.ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown corpus driver %q", common.ErrInvalidConfig, c.Corpus.Driver)
	}
	if c.Corpus.Dimensions <= 0 {
		return fmt.Errorf("%w: corpus.dimensions must be positive", common.ErrInvalidConfig)
	}

	switch c.LLM.Provider {
	case llm.ProviderAnthropic, llm.ProviderOpenAI:
	default:
		return fmt.Errorf("%w: unknown llm provider %q", common.ErrInvalidConfig, c.LLM.Provider)
	}
	if c.LLM.MaxTokens <= 0 || c.LLM.Timeout <= 0 || c.LLM.RateLimit <= 0 || c.LLM.MaxRetries < 0 {
		return fmt.Errorf("%w: llm limits and timeouts must be positive", common.ErrInvalidConfig)
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("%w: llm.temperature must be within [0,2]", common.ErrInvalidConfig)
	}
	if c.LLM.CacheTTL < 0 {
		return fmt.Errorf("%w: llm.cache_ttl must not be negative", common.ErrInvalidConfig)
	}
	if c.Embedding.Timeout <= 0 || c.Embedding.RateLimit <= 0 {
		return fmt.Errorf("%w: embedding limits and timeouts must be positive", common.ErrInvalidConfig)
	}

	if strings.TrimSpace(c.Server.Addr) == "" {
		return fmt.Errorf("%w: server.addr", common.ErrInvalidConfig)
	}
	if strings.TrimSpace(c.Schedule.Cron) == "" {
		return fmt.Errorf("%w: schedule.cron", common.ErrInvalidConfig)
	}

	return c.Engine().Validate()
}

// Engine returns the categorization engine configuration.
func (c Config) Engine() engine.Config {
	cfg := engine.DefaultConfig()
	cfg.Thresholds = engine.Thresholds{
		Rule:   c.Categorization.RuleThreshold,
		Vector: c.Categorization.VectorThreshold,
		LLM:    c.Categorization.LLMThreshold,
	}
	cfg.BatchThresholds = engine.Thresholds{
		Rule:   c.Categorization.BatchRuleThreshold,
		Vector: c.Categorization.BatchVectorThreshold,
		LLM:    c.Categorization.LLMThreshold,
	}
	cfg.RuleTuning = model.Reinforcement{
		Seed: c.Learning.RuleSeed,
		Step: c.Learning.RuleStep,
		Cap:  c.Learning.ConfidenceCap,
	}
	cfg.CorpusTuning = model.Reinforcement{
		Seed: c.Learning.CorpusSeed,
		Step: c.Learning.CorpusStep,
		Cap:  c.Learning.ConfidenceCap,
	}
	cfg.MinSimilarity = c.Categorization.MinSimilarity
	cfg.NeighborLimit = c.Categorization.NeighborLimit
	cfg.LLMBatchLimit = c.Categorization.LLMBatchLimit
	cfg.Contribute = c.Categorization.Contribute
	cfg.EmbeddingTimeout = c.Embedding.Timeout
	cfg.LLMTimeout = c.LLM.Timeout
	return cfg
}

// Classifier returns the generative model client configuration.
func (c Config) Classifier() llm.Config {
	return llm.Config{
		Provider:    c.LLM.Provider,
		APIKey:      c.LLM.APIKey,
		Model:       c.LLM.Model,
		MaxRetries:  c.LLM.MaxRetries,
		RetryDelay:  time.Second,
		CacheTTL:    c.LLM.CacheTTL,
		RateLimit:   c.LLM.RateLimit,
		Temperature: c.LLM.Temperature,
		MaxTokens:   c.LLM.MaxTokens,
	}
}

// Embedder returns the embedding client configuration.
func (c Config) Embedder() embedding.Config {
	return embedding.Config{
		APIKey:     c.Embedding.APIKey,
		Model:      c.Embedding.Model,
		Timeout:    c.Embedding.Timeout,
		MaxRetries: c.LLM.MaxRetries,
		RateLimit:  c.Embedding.RateLimit,
	}
}
