package model

import "encoding/json"

// Method records how a transaction's category was assigned.
type Method string

const (
	// MethodNone marks an uncategorized transaction.
	MethodNone Method = ""
	// MethodRule is a match from the user's own rule memory.
	MethodRule Method = "rule"
	// MethodVector is a match from the community similarity corpus.
	MethodVector Method = "vector"
	// MethodLLM is a generative model classification.
	MethodLLM Method = "llm"
	// MethodManual is an explicit user assignment.
	MethodManual Method = "manual"
)

// Valid reports whether m is a known method, including MethodNone.
func (m Method) Valid() bool {
	switch m {
	case MethodNone, MethodRule, MethodVector, MethodLLM, MethodManual:
		return true
	}
	return false
}

// ManualConfidence is the fixed confidence of a manual assignment.
const ManualConfidence = 1.0

// Categorization is the outcome of categorizing one transaction.
// The zero value is the empty result: no category, no method, confidence 0.
type Categorization struct {
	CategoryID   string
	CategoryName string
	Method       Method
	Confidence   float64
}

// IsEmpty reports whether no category was assigned.
func (c Categorization) IsEmpty() bool {
	return c.CategoryID == ""
}

// Manual returns the categorization recorded for a user's explicit choice.
func Manual(category Category) Categorization {
	return Categorization{
		CategoryID:   category.ID,
		CategoryName: category.Name,
		Method:       MethodManual,
		Confidence:   ManualConfidence,
	}
}

type categorizationJSON struct {
	CategoryID   *string `json:"categoryId"`
	CategoryName *string `json:"categoryName"`
	Method       *Method `json:"method"`
	Confidence   float64 `json:"confidence"`
}

// MarshalJSON renders the empty result with null fields.
func (c Categorization) MarshalJSON() ([]byte, error) {
	out := categorizationJSON{Confidence: c.Confidence}
	if !c.IsEmpty() {
		out.CategoryID = &c.CategoryID
		out.CategoryName = &c.CategoryName
		out.Method = &c.Method
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts the form produced by MarshalJSON.
func (c *Categorization) UnmarshalJSON(data []byte) error {
	var in categorizationJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*c = Categorization{Confidence: in.Confidence}
	if in.CategoryID != nil {
		c.CategoryID = *in.CategoryID
	}
	if in.CategoryName != nil {
		c.CategoryName = *in.CategoryName
	}
	if in.Method != nil {
		c.Method = *in.Method
	}
	return nil
}
