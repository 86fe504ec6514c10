package engine

import (
	"fmt"
	"time"

	"github.com/Veraticus/wantnot/internal/common"
	"github.com/Veraticus/wantnot/internal/model"
)

// Thresholds are the acceptance bars of the three tiers. A tier's result is
// accepted when its confidence is at or above the bar.
type Thresholds struct {
	Rule   float64
	Vector float64
	LLM    float64
}

func (t Thresholds) byTier() [tierCount]float64 {
	return [tierCount]float64{t.Rule, t.Vector, t.LLM}
}

// Config holds the engine tunables.
type Config struct {
	Thresholds       Thresholds
	BatchThresholds  Thresholds
	RuleTuning       model.Reinforcement
	CorpusTuning     model.Reinforcement
	MinSimilarity    float64
	NeighborLimit    int
	LLMBatchLimit    int
	BatchWorkers     int
	DefaultLimit     int
	EmbeddingTimeout time.Duration
	LLMTimeout       time.Duration
	Contribute       bool
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{
		Thresholds:       Thresholds{Rule: 0.9, Vector: 0.75, LLM: 0.7},
		BatchThresholds:  Thresholds{Rule: 0.85, Vector: 0.75, LLM: 0.7},
		RuleTuning:       model.Reinforcement{Seed: 0.8, Step: 0.1, Cap: 1.0},
		CorpusTuning:     model.Reinforcement{Seed: 0.8, Step: 0.05, Cap: 1.0},
		MinSimilarity:    0.75,
		NeighborLimit:    5,
		LLMBatchLimit:    25,
		BatchWorkers:     4,
		DefaultLimit:     50,
		EmbeddingTimeout: 10 * time.Second,
		LLMTimeout:       30 * time.Second,
		Contribute:       true,
	}
}

// Validate checks that every tunable is in range.
func (c Config) Validate() error {
	for name, v := range map[string]float64{
		"thresholds.rule":         c.Thresholds.Rule,
		"thresholds.vector":       c.Thresholds.Vector,
		"thresholds.llm":          c.Thresholds.LLM,
		"batch_thresholds.rule":   c.BatchThresholds.Rule,
		"batch_thresholds.vector": c.BatchThresholds.Vector,
		"batch_thresholds.llm":    c.BatchThresholds.LLM,
		"min_similarity":          c.MinSimilarity,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%w: %s must be within [0,1], got %v", common.ErrInvalidConfig, name, v)
		}
	}
	for name, r := range map[string]model.Reinforcement{"rule": c.RuleTuning, "corpus": c.CorpusTuning} {
		if r.Seed < 0 || r.Step < 0 || r.Cap <= 0 || r.Cap > 1 || r.Seed > r.Cap {
			return fmt.Errorf("%w: invalid %s reinforcement %+v", common.ErrInvalidConfig, name, r)
		}
	}
	if c.NeighborLimit < 1 {
		return fmt.Errorf("%w: neighbor_limit must be positive", common.ErrInvalidConfig)
	}
	if c.LLMBatchLimit < 1 {
		return fmt.Errorf("%w: llm_batch_limit must be positive", common.ErrInvalidConfig)
	}
	if c.BatchWorkers < 1 {
		return fmt.Errorf("%w: batch_workers must be positive", common.ErrInvalidConfig)
	}
	if c.EmbeddingTimeout <= 0 || c.LLMTimeout <= 0 {
		return fmt.Errorf("%w: provider timeouts must be positive", common.ErrInvalidConfig)
	}
	return nil
}
