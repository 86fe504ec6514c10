package engine

import "github.com/Veraticus/wantnot/internal/model"

const (
	tierRule = iota
	tierVector
	tierLLM
	tierCount
)

// Candidate is the optional result of one tier. The zero value means the
// tier produced nothing.
type Candidate struct {
	result model.Categorization
	ok     bool
}

// Found wraps a tier result.
func Found(result model.Categorization) Candidate {
	return Candidate{result: result, ok: true}
}

// NoMatch is the absent candidate.
func NoMatch() Candidate {
	return Candidate{}
}

// Get returns the wrapped result and whether one is present.
func (c Candidate) Get() (model.Categorization, bool) {
	return c.result, c.ok
}

// ResolveBest picks the highest-confidence present candidate. Ties go to the
// earlier tier. With no candidates it returns the empty result.
func ResolveBest(candidates [tierCount]Candidate) model.Categorization {
	var best model.Categorization
	found := false
	for _, c := range candidates {
		result, ok := c.Get()
		if !ok {
			continue
		}
		if !found || result.Confidence > best.Confidence {
			best = result
			found = true
		}
	}
	return best
}
