package engine

import (
	"context"
	"log/slog"

	"github.com/Veraticus/wantnot/internal/common"
	"github.com/Veraticus/wantnot/internal/model"
)

// State is a step of the cascade.
type State int

// Cascade states in transition order.
const (
	StateStart State = iota
	StateTryRule
	StateTryVector
	StateTryLLM
	StateResolveBest
	StateAccept
	StateDone
)

func (s State) String() string {
	switch s {
	case StateStart:
		return "START"
	case StateTryRule:
		return "TRY_RULE"
	case StateTryVector:
		return "TRY_VECTOR"
	case StateTryLLM:
		return "TRY_LLM"
	case StateResolveBest:
		return "RESOLVE_BEST"
	case StateAccept:
		return "ACCEPT"
	case StateDone:
		return "DONE"
	}
	return "UNKNOWN"
}

var tierStates = [tierCount]State{StateTryRule, StateTryVector, StateTryLLM}

var tierNames = [tierCount]string{"rule", "vector", "llm"}

// Outcome is the full record of one cascade run.
type Outcome struct {
	Result     model.Categorization
	Candidates [tierCount]Candidate
	Trace      []State
}

// Cascade runs the three tiers in order and stops at the first result that
// clears its tier's bar. When none does, the best retained candidate wins.
// Tier failures are logged and treated as no match.
type Cascade struct {
	matchers   [tierCount]Matcher
	thresholds Thresholds
	logger     *slog.Logger
}

// NewCascade creates a cascade. A nil matcher disables its tier.
func NewCascade(rule, vector, generative Matcher, thresholds Thresholds, logger *slog.Logger) *Cascade {
	return &Cascade{
		matchers:   [tierCount]Matcher{rule, vector, generative},
		thresholds: thresholds,
		logger:     common.LoggerOrDefault(logger),
	}
}

// Run categorizes one transaction. It never fails; the worst case is the
// empty result.
func (c *Cascade) Run(ctx context.Context, userID string, txn model.Transaction) model.Categorization {
	return c.Evaluate(ctx, userID, txn).Result
}

// Evaluate is Run with the visited states and retained candidates exposed.
func (c *Cascade) Evaluate(ctx context.Context, userID string, txn model.Transaction) Outcome {
	r := c.newRun(userID, txn, c.thresholds)
	c.drive(ctx, r, StateDone)
	return r.outcome()
}

// run is the mutable state of one cascade execution.
type run struct {
	txn        model.Transaction
	userID     string
	matchers   [tierCount]Matcher
	thresholds [tierCount]float64
	candidates [tierCount]Candidate
	result     model.Categorization
	trace      []State
	state      State
}

func (c *Cascade) newRun(userID string, txn model.Transaction, thresholds Thresholds) *run {
	return &run{
		txn:        txn,
		userID:     userID,
		matchers:   c.matchers,
		thresholds: thresholds.byTier(),
		state:      StateStart,
		trace:      []State{StateStart},
	}
}

func (r *run) outcome() Outcome {
	return Outcome{Result: r.result, Candidates: r.candidates, Trace: r.trace}
}

// drive steps the run until it reaches DONE or the pause state.
func (c *Cascade) drive(ctx context.Context, r *run, pause State) {
	for r.state != StateDone && r.state != pause {
		c.step(ctx, r)
		r.trace = append(r.trace, r.state)
	}
}

// step performs exactly one transition.
func (c *Cascade) step(ctx context.Context, r *run) {
	switch r.state {
	case StateStart:
		r.state = StateTryRule
	case StateTryRule, StateTryVector, StateTryLLM:
		tier := tierOf(r.state)
		candidate := c.attempt(ctx, r, tier)
		r.candidates[tier] = candidate
		if result, ok := candidate.Get(); ok && result.Confidence >= r.thresholds[tier] {
			r.result = result
			r.state = StateAccept
			return
		}
		if tier+1 < tierCount {
			r.state = tierStates[tier+1]
		} else {
			r.state = StateResolveBest
		}
	case StateResolveBest:
		r.result = ResolveBest(r.candidates)
		r.state = StateDone
	case StateAccept:
		r.state = StateDone
	default:
		r.state = StateDone
	}
}

func tierOf(s State) int {
	for i, ts := range tierStates {
		if ts == s {
			return i
		}
	}
	return -1
}

func (c *Cascade) attempt(ctx context.Context, r *run, tier int) Candidate {
	matcher := r.matchers[tier]
	if matcher == nil {
		return NoMatch()
	}
	if ctx.Err() != nil {
		return NoMatch()
	}

	candidate, err := matcher.Match(ctx, r.userID, r.txn)
	if err != nil {
		c.logger.Warn("categorization tier failed",
			"user_id", r.userID,
			"tier", tierNames[tier],
			"transaction_id", r.txn.ID,
			"error", err)
		return NoMatch()
	}

	if result, ok := candidate.Get(); ok {
		c.logger.Debug("categorization tier matched",
			"tier", tierNames[tier],
			"transaction_id", r.txn.ID,
			"category", result.CategoryName,
			"confidence", result.Confidence)
	}
	return candidate
}
