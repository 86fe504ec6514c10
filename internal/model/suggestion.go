package model

// Suggestion is a proposed categorization produced by batch mode.
type Suggestion struct {
	TransactionID string  `json:"transactionId"`
	CategoryID    string  `json:"categoryId"`
	CategoryName  string  `json:"categoryName"`
	Method        Method  `json:"method"`
	Confidence    float64 `json:"confidence"`
}

// Categorization returns the suggestion as a categorization result.
func (s Suggestion) Categorization() Categorization {
	return Categorization{
		CategoryID:   s.CategoryID,
		CategoryName: s.CategoryName,
		Method:       s.Method,
		Confidence:   s.Confidence,
	}
}

// NewCategoryRecommendation proposes a category the user does not have yet.
type NewCategoryRecommendation struct {
	Name           string       `json:"name"`
	Description    string       `json:"description"`
	Type           CategoryType `json:"type"`
	TransactionIDs []string     `json:"transactionIds"`
}

// BatchStats counts batch suggestions by the tier that produced them.
type BatchStats struct {
	Rule       int `json:"rule"`
	Vector     int `json:"vector"`
	LLM        int `json:"llm"`
	Unresolved int `json:"unresolved"`
}

// Record counts one categorization result.
func (s *BatchStats) Record(method Method) {
	switch method {
	case MethodRule:
		s.Rule++
	case MethodVector:
		s.Vector++
	case MethodLLM:
		s.LLM++
	default:
		s.Unresolved++
	}
}

// BatchResult is the outcome of a batch suggestion pass.
type BatchResult struct {
	Suggestions                []Suggestion                `json:"suggestions"`
	NewCategoryRecommendations []NewCategoryRecommendation `json:"newCategoryRecommendations"`
	Stats                      BatchStats                  `json:"stats"`
}
