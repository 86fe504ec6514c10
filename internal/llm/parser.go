package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/Veraticus/wantnot/internal/model"
)

// ErrMalformedResponse marks model output that could not be parsed.
var ErrMalformedResponse = errors.New("malformed model response")

// Decision is a model's answer for one transaction. An empty Category means
// the model declined to pick one.
type Decision struct {
	Category   string
	Confidence float64
}

// Declined reports whether the model returned no category.
func (d Decision) Declined() bool {
	return d.Category == ""
}

// BatchDecision is one TXN line of a batch response. Index is 1-based.
type BatchDecision struct {
	Category   string
	Index      int
	Confidence float64
}

// NewCategorySuggestion is one NEW line of a batch response.
type NewCategorySuggestion struct {
	Name        string
	Description string
	Type        model.CategoryType
	Indexes     []int
}

// BatchResponse is the parsed batch output.
type BatchResponse struct {
	Decisions     []BatchDecision
	NewCategories []NewCategorySuggestion
	Skipped       int
}

// cleanMarkdownWrapper strips a surrounding ``` fence, with or without a
// language tag.
func cleanMarkdownWrapper(content string) string {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "```") {
		return content
	}
	content = strings.TrimPrefix(content, "```")
	if nl := strings.IndexByte(content, '\n'); nl >= 0 {
		first := strings.TrimSpace(content[:nl])
		if first == "" || !strings.ContainsAny(first, "{|") {
			content = content[nl+1:]
		}
	}
	content = strings.TrimSpace(content)
	content = strings.TrimSuffix(content, "```")
	return strings.TrimSpace(content)
}

// parseScore reads a confidence written as 0.83, 83% or 83 and clamps it to
// [0, 1].
func parseScore(raw string) (float64, error) {
	s := strings.TrimSpace(raw)
	percent := strings.HasSuffix(s, "%")
	s = strings.TrimSpace(strings.TrimSuffix(s, "%"))

	score, err := strconv.ParseFloat(s, 64)
	if err != nil {
		cleaned := strings.Map(func(r rune) rune {
			if (r >= '0' && r <= '9') || r == '.' {
				return r
			}
			return -1
		}, s)
		score, err = strconv.ParseFloat(cleaned, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: confidence %q", ErrMalformedResponse, raw)
		}
	}
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return 0, fmt.Errorf("%w: confidence %q", ErrMalformedResponse, raw)
	}

	if percent || (score > 1 && score <= 100) {
		score /= 100
	}
	return clamp01(score), nil
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func isNoneCategory(name string) bool {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "none", "null", "n/a", "uncategorized":
		return true
	}
	return false
}

// parseDecision extracts the JSON decision object from a single-transaction
// response.
func parseDecision(content string) (Decision, error) {
	content = cleanMarkdownWrapper(content)

	start := strings.IndexByte(content, '{')
	end := strings.LastIndexByte(content, '}')
	if start < 0 || end <= start {
		return Decision{}, fmt.Errorf("%w: no JSON object found", ErrMalformedResponse)
	}

	var raw struct {
		Category   *string `json:"category"`
		Confidence any     `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(content[start:end+1]), &raw); err != nil {
		return Decision{}, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}

	if raw.Category == nil || isNoneCategory(*raw.Category) {
		return Decision{}, nil
	}

	var confidence float64
	switch v := raw.Confidence.(type) {
	case float64:
		if math.IsNaN(v) {
			return Decision{}, fmt.Errorf("%w: confidence is NaN", ErrMalformedResponse)
		}
		if v > 1 && v <= 100 {
			v /= 100
		}
		confidence = clamp01(v)
	case string:
		score, err := parseScore(v)
		if err != nil {
			return Decision{}, err
		}
		confidence = score
	case nil:
		return Decision{}, fmt.Errorf("%w: missing confidence", ErrMalformedResponse)
	default:
		return Decision{}, fmt.Errorf("%w: confidence has type %T", ErrMalformedResponse, v)
	}

	return Decision{Category: strings.TrimSpace(*raw.Category), Confidence: confidence}, nil
}

// parseBatchResponse reads TXN and NEW lines from a batch response. Lines
// that do not match the expected shape, reference a transaction outside
// 1..count, or repeat an index already seen are counted in Skipped.
func parseBatchResponse(content string, count int) BatchResponse {
	var resp BatchResponse
	seen := make(map[int]bool)

	for _, line := range strings.Split(cleanMarkdownWrapper(content), "\n") {
		line = strings.Trim(strings.TrimSpace(line), "`")
		line = strings.TrimLeft(line, "-* ")
		if line == "" {
			continue
		}

		parts := strings.Split(line, "|")
		switch strings.ToUpper(strings.TrimSpace(parts[0])) {
		case "TXN":
			decision, ok := parseTxnLine(parts, count)
			if !ok || seen[decision.Index] {
				resp.Skipped++
				continue
			}
			seen[decision.Index] = true
			if decision.Category != "" {
				resp.Decisions = append(resp.Decisions, decision)
			}
		case "NEW":
			suggestion, ok := parseNewLine(parts, count)
			if !ok {
				resp.Skipped++
				continue
			}
			resp.NewCategories = append(resp.NewCategories, suggestion)
		default:
			resp.Skipped++
		}
	}

	return resp
}

func parseIndex(raw string, count int) (int, bool) {
	idx, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(raw), "#")))
	if err != nil || idx < 1 || idx > count {
		return 0, false
	}
	return idx, true
}

// parseTxnLine handles TXN|<n>|<category or NONE>|<confidence>.
func parseTxnLine(parts []string, count int) (BatchDecision, bool) {
	if len(parts) != 4 {
		return BatchDecision{}, false
	}
	idx, ok := parseIndex(parts[1], count)
	if !ok {
		return BatchDecision{}, false
	}

	category := strings.TrimSpace(parts[2])
	if isNoneCategory(category) {
		return BatchDecision{Index: idx}, true
	}

	score, err := parseScore(parts[3])
	if err != nil {
		return BatchDecision{}, false
	}

	return BatchDecision{Index: idx, Category: category, Confidence: score}, true
}

// parseNewLine handles NEW|<name>|<n,n,...>|<income|expense>[|<description>].
// The description may itself contain '|'.
func parseNewLine(parts []string, count int) (NewCategorySuggestion, bool) {
	if len(parts) < 4 {
		return NewCategorySuggestion{}, false
	}

	name := strings.TrimSpace(parts[1])
	if isNoneCategory(name) {
		return NewCategorySuggestion{}, false
	}

	var indexes []int
	seen := make(map[int]bool)
	for _, raw := range strings.Split(parts[2], ",") {
		idx, ok := parseIndex(raw, count)
		if !ok || seen[idx] {
			continue
		}
		seen[idx] = true
		indexes = append(indexes, idx)
	}
	if len(indexes) == 0 {
		return NewCategorySuggestion{}, false
	}

	categoryType := model.CategoryType(strings.ToLower(strings.TrimSpace(parts[3])))
	if !categoryType.Valid() {
		categoryType = model.CategoryTypeExpense
	}

	var description string
	if len(parts) > 4 {
		description = strings.TrimSpace(strings.Join(parts[4:], "|"))
	}

	return NewCategorySuggestion{
		Name:        name,
		Description: description,
		Type:        categoryType,
		Indexes:     indexes,
	}, true
}
