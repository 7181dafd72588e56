package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/promptcraft/internal/model"
	"github.com/sakif/promptcraft/internal/repository"
)

var _ repository.GenerationRepository = (*DB)(nil)

// CreateGeneration stores a generation result and, optionally, adopts a title.
//
// ATOMICITY:
// The title update and the insert share one transaction: either both land or
// neither does. The UPDATE only touches prompts whose title is still empty,
// so when two generations race the first committed title wins and the second
// UPDATE matches zero rows.
func (db *DB) CreateGeneration(ctx context.Context, gen *model.GeneratedPrompt, adoptTitle string) error {
	improvements, err := marshalList(gen.Analysis.ImprovementsMade)
	if err != nil {
		return fmt.Errorf("sqlite: encoding improvements_made: %w", err)
	}
	suggestions, err := marshalList(gen.Analysis.AdditionalSuggestions)
	if err != nil {
		return fmt.Errorf("sqlite: encoding additional_suggestions: %w", err)
	}

	gen.ID = xid.New().String()
	gen.CreatedAt = time.Now().UTC()

	return db.withTx(ctx, func(tx *sql.Tx) error {
		if adoptTitle != "" {
			_, err := tx.ExecContext(ctx,
				`UPDATE prompts SET title = ?, updated_at = ?
				 WHERE id = ? AND (title IS NULL OR title = '')`,
				adoptTitle, gen.CreatedAt, gen.PromptID,
			)
			if err != nil {
				return fmt.Errorf("sqlite: adopting title for prompt %s: %w", gen.PromptID, err)
			}
		}

		_, err := tx.ExecContext(ctx,
			`INSERT INTO generated_prompts (
				id, prompt_id, generated_text,
				overall_score, clarity, specificity, effectiveness,
				refined_prompt, improvements_made, additional_suggestions,
				prompt_token_count, candidates_token_count, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			gen.ID,
			gen.PromptID,
			gen.GeneratedText,
			gen.Analysis.OverallScore,
			gen.Analysis.Clarity,
			gen.Analysis.Specificity,
			gen.Analysis.Effectiveness,
			gen.Analysis.RefinedPrompt,
			improvements,
			suggestions,
			gen.UsageMetadata.PromptTokenCount,
			gen.UsageMetadata.CandidatesTokenCount,
			gen.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("sqlite: inserting generation for prompt %s: %w", gen.PromptID, err)
		}
		return nil
	})
}

// ListGenerations returns a prompt's generation history, oldest first.
func (db *DB) ListGenerations(ctx context.Context, promptID string) ([]model.GeneratedPrompt, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, prompt_id, generated_text,
		        overall_score, clarity, specificity, effectiveness,
		        refined_prompt, improvements_made, additional_suggestions,
		        prompt_token_count, candidates_token_count, created_at
		 FROM generated_prompts
		 WHERE prompt_id = ?
		 ORDER BY rowid ASC`,
		promptID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing generations for %s: %w", promptID, err)
	}
	defer rows.Close()

	gens := make([]model.GeneratedPrompt, 0)
	for rows.Next() {
		var (
			g                         model.GeneratedPrompt
			improvements, suggestions *string
		)
		if err := rows.Scan(
			&g.ID, &g.PromptID, &g.GeneratedText,
			&g.Analysis.OverallScore, &g.Analysis.Clarity,
			&g.Analysis.Specificity, &g.Analysis.Effectiveness,
			&g.Analysis.RefinedPrompt, &improvements, &suggestions,
			&g.UsageMetadata.PromptTokenCount, &g.UsageMetadata.CandidatesTokenCount,
			&g.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning generation row: %w", err)
		}
		if g.Analysis.ImprovementsMade, err = unmarshalList(improvements); err != nil {
			return nil, fmt.Errorf("sqlite: decoding improvements_made of %s: %w", g.ID, err)
		}
		if g.Analysis.AdditionalSuggestions, err = unmarshalList(suggestions); err != nil {
			return nil, fmt.Errorf("sqlite: decoding additional_suggestions of %s: %w", g.ID, err)
		}
		gens = append(gens, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating generations: %w", err)
	}
	return gens, nil
}

// String lists are stored as JSON text; a nil list is stored as NULL.
func marshalList(list []string) (*string, error) {
	if list == nil {
		return nil, nil
	}
	b, err := json.Marshal(list)
	if err != nil {
		return nil, err
	}
	s := string(b)
	return &s, nil
}

func unmarshalList(s *string) ([]string, error) {
	if s == nil {
		return nil, nil
	}
	var list []string
	if err := json.Unmarshal([]byte(*s), &list); err != nil {
		return nil, err
	}
	return list, nil
}
