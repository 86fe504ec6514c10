package model

import "time"

// Rule remembers that a user filed a normalized merchant under a category.
// There is at most one rule per (UserID, MerchantPattern).
type Rule struct {
	LastMatched     time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
	ID              string
	UserID          string
	MerchantPattern string
	CategoryID      string
	Confidence      float64
	MatchCount      int
}

// Reinforcement describes how a confidence score grows with confirmations.
type Reinforcement struct {
	Seed float64 // confidence of a newly created record
	Step float64 // added on every later confirmation
	Cap  float64 // upper bound
}

// Initial returns the confidence for a new record.
func (r Reinforcement) Initial() float64 {
	return min(r.Seed, r.Cap)
}

// Next returns the confidence after one more confirmation.
func (r Reinforcement) Next(current float64) float64 {
	return min(current+r.Step, r.Cap)
}
