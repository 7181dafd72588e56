package model

import "time"

// Analysis is the structured critique returned by the generative model.
//
// Every field is optional: the model's output is loosely structured, and a
// field it omitted (or returned in an unusable shape) is stored as NULL
// rather than failing the whole generation.
type Analysis struct {
	OverallScore          *int     `json:"overall_score"`
	Clarity               *int     `json:"clarity"`
	Specificity           *int     `json:"specificity"`
	Effectiveness         *int     `json:"effectiveness"`
	RefinedPrompt         *string  `json:"refined_prompt"`
	ImprovementsMade      []string `json:"improvements_made"`
	AdditionalSuggestions []string `json:"additional_suggestions"`
}

// UsageMetadata holds the token counters reported by the provider.
type UsageMetadata struct {
	PromptTokenCount     *int `json:"prompt_token_count"`
	CandidatesTokenCount *int `json:"candidates_token_count"`
}

// GeneratedPrompt is one persisted result of a generation call.
// Rows are append-only; a prompt's history is ordered by creation.
type GeneratedPrompt struct {
	ID            string        `json:"id"`
	PromptID      string        `json:"prompt_id"`
	GeneratedText string        `json:"generated_text"`
	Analysis      Analysis      `json:"analysis"`
	UsageMetadata UsageMetadata `json:"usage_metadata"`
	CreatedAt     time.Time     `json:"created_at"`
}
