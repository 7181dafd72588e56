package genai

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/sakif/promptcraft/internal/apperror"
	"github.com/sakif/promptcraft/internal/model"
	"github.com/tidwall/jsonc"
)

// Output is the structured content of a model reply.
//
// TOLERANT PARSING:
// Models are asked for one JSON object but do not always comply exactly:
// they wrap it in ``` fences, add comments or trailing commas, quote numbers,
// or leave fields out. Only "is this a JSON object at all" is fatal. Each
// field is then read on its own, and a field that is missing or has the
// wrong shape becomes nil instead of failing the whole reply.
type Output struct {
	Title            *string
	GeneratedContent *string
	Analysis         model.Analysis
}

// ParseOutput extracts an Output from raw model text.
// Text that is not a JSON object fails with apperror.ErrMalformedModelOutput,
// carrying raw for diagnostics.
func ParseOutput(raw string) (*Output, error) {
	cleaned := jsonc.ToJSON([]byte(StripCodeFence(raw)))

	var doc map[string]any
	if err := json.Unmarshal(cleaned, &doc); err != nil || doc == nil {
		return nil, apperror.MalformedModelOutput(raw)
	}

	out := &Output{
		Title:            stringField(doc, "title"),
		GeneratedContent: stringField(doc, "generated_content"),
	}

	analysis, _ := doc["analysis"].(map[string]any)
	out.Analysis = model.Analysis{
		OverallScore:          scoreField(analysis, "overall_score"),
		Clarity:               scoreField(analysis, "clarity"),
		Specificity:           scoreField(analysis, "specificity"),
		Effectiveness:         scoreField(analysis, "effectiveness"),
		ImprovementsMade:      stringListField(analysis, "improvements_made"),
		AdditionalSuggestions: stringListField(analysis, "additional_suggestions"),
		RefinedPrompt:         stringField(doc, "refined_prompt"),
	}
	// Some replies nest refined_prompt inside the analysis block.
	if out.Analysis.RefinedPrompt == nil {
		out.Analysis.RefinedPrompt = stringField(analysis, "refined_prompt")
	}

	return out, nil
}

// StripCodeFence removes a surrounding markdown code fence (``` or ```json)
// and surrounding whitespace. Text without a fence is returned trimmed.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}

	// Drop the opening fence line, including any language tag.
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	} else {
		s = strings.TrimPrefix(s, "```")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func stringField(m map[string]any, key string) *string {
	s, ok := m[key].(string)
	if !ok {
		return nil
	}
	return &s
}

// scoreField reads a 0–10 integer score. JSON numbers and numeric strings
// are accepted; fractions, out-of-range values and other shapes give nil.
func scoreField(m map[string]any, key string) *int {
	var f float64
	switch v := m[key].(type) {
	case float64:
		f = v
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil
		}
		f = parsed
	default:
		return nil
	}

	if f != math.Trunc(f) || f < 0 || f > 10 {
		return nil
	}
	n := int(f)
	return &n
}

// stringListField reads a list of strings, skipping non-string elements.
// A single string is accepted as a one-element list.
func stringListField(m map[string]any, key string) []string {
	switch v := m[key].(type) {
	case []any:
		list := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				list = append(list, s)
			}
		}
		return list
	case string:
		return []string{v}
	default:
		return nil
	}
}
