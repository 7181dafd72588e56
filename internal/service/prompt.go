// Package service contains the business logic layer of the application.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (Business layer) → validates, enforces rules, orchestrates
//	Repository (Data layer)  → reads/writes to the database
//
// Services accept plain Go values and return apperror values; they know
// nothing about HTTP. Every operation that touches an existing prompt goes
// through Guard first, so the ownership and visibility rules live in one
// place.
//
// DEPENDENCY INJECTION:
// Services take repository interfaces, NOT a *sqlite.DB. Tests pass the
// in-memory fakes from fakes_test.go.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/promptcraft/internal/apperror"
	"github.com/sakif/promptcraft/internal/model"
	"github.com/sakif/promptcraft/internal/repository"
)

// PromptService handles prompt CRUD, listing and publishing.
type PromptService struct {
	prompts repository.PromptRepository
	guard   *Guard
	logger  *slog.Logger
}

func NewPromptService(prompts repository.PromptRepository, guard *Guard, logger *slog.Logger) *PromptService {
	return &PromptService{
		prompts: prompts,
		guard:   guard,
		logger:  logger,
	}
}

// PromptInput is the data for a new prompt. Only Text is required.
type PromptInput struct {
	Text            string
	Title           *string
	IntendedUse     *string
	TargetAudience  *string
	ExpectedOutcome *string
	Tags            []string
}

// PromptPatch is a partial update. Fields that are not Set keep their value;
// a Set field with a nil Value clears it. Text can never be cleared.
type PromptPatch struct {
	Text            model.Optional[string]
	Title           model.Optional[string]
	IntendedUse     model.Optional[string]
	TargetAudience  model.Optional[string]
	ExpectedOutcome model.Optional[string]
	Tags            model.Optional[[]string]
}

// Create validates and saves a new, private prompt owned by actor.
func (s *PromptService) Create(ctx context.Context, actor *model.User, in PromptInput) (*model.Prompt, error) {
	if strings.TrimSpace(in.Text) == "" {
		return nil, apperror.MissingField("text")
	}

	p := &model.Prompt{
		UserID:          actor.ID,
		Text:            in.Text,
		Title:           normalizeTitle(in.Title),
		IntendedUse:     in.IntendedUse,
		TargetAudience:  in.TargetAudience,
		ExpectedOutcome: in.ExpectedOutcome,
		Tags:            normalizeTags(in.Tags),
	}

	if err := s.prompts.CreatePrompt(ctx, p); err != nil {
		s.logger.Error("failed to create prompt",
			slog.String("userID", actor.ID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("creating prompt: %w", err)
	}

	s.logger.Info("prompt created",
		slog.String("promptID", p.ID),
		slog.String("userID", actor.ID),
	)
	return p, nil
}

// Get returns a prompt the actor may view.
func (s *PromptService) Get(ctx context.Context, actor *model.User, id string) (*model.Prompt, error) {
	return s.guard.CanView(ctx, actor, id)
}

// Update merges patch into an owned prompt.
//
// STRATEGY: "Fetch then update"
// The guard fetch doubles as the existence check, the patch is applied to the
// fetched copy, and the full row is written back. Ownership and sharing are
// never part of a patch.
func (s *PromptService) Update(ctx context.Context, actor *model.User, id string, patch PromptPatch) (*model.Prompt, error) {
	p, err := s.guard.RequireOwner(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	if patch.Text.Set {
		if patch.Text.Value == nil || strings.TrimSpace(*patch.Text.Value) == "" {
			return nil, apperror.MissingField("text")
		}
		p.Text = *patch.Text.Value
	}
	if patch.Title.Set {
		p.Title = normalizeTitle(patch.Title.Value)
	}
	if patch.IntendedUse.Set {
		p.IntendedUse = patch.IntendedUse.Value
	}
	if patch.TargetAudience.Set {
		p.TargetAudience = patch.TargetAudience.Value
	}
	if patch.ExpectedOutcome.Set {
		p.ExpectedOutcome = patch.ExpectedOutcome.Value
	}
	if patch.Tags.Set {
		var tags []string
		if patch.Tags.Value != nil {
			tags = *patch.Tags.Value
		}
		p.Tags = normalizeTags(tags)
	}

	if err := s.prompts.UpdatePrompt(ctx, p); err != nil {
		s.logger.Error("failed to update prompt",
			slog.String("promptID", id),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("updating prompt: %w", err)
	}

	s.logger.Info("prompt updated", slog.String("promptID", id))
	return p, nil
}

// Delete removes an owned prompt together with its votes and generations.
func (s *PromptService) Delete(ctx context.Context, actor *model.User, id string) error {
	if _, err := s.guard.RequireOwner(ctx, actor, id); err != nil {
		return err
	}

	if err := s.prompts.DeletePrompt(ctx, id); err != nil {
		return fmt.Errorf("deleting prompt: %w", err)
	}

	s.logger.Info("prompt deleted", slog.String("promptID", id))
	return nil
}

// ListOwn returns the actor's prompts. sort is "newest" (also the default
// when empty) or "oldest".
func (s *PromptService) ListOwn(ctx context.Context, actor *model.User, sort string) ([]model.Prompt, error) {
	order := model.PromptSort(strings.ToLower(strings.TrimSpace(sort)))
	switch order {
	case "":
		order = model.SortNewest
	case model.SortNewest, model.SortOldest:
	default:
		return nil, apperror.ValidationFailed("sort", "sort must be 'newest' or 'oldest'")
	}

	prompts, err := s.prompts.ListPromptsByOwner(ctx, actor.ID, order)
	if err != nil {
		return nil, fmt.Errorf("listing prompts: %w", err)
	}
	return prompts, nil
}

// ListPublic returns every shared prompt, newest first.
func (s *PromptService) ListPublic(ctx context.Context) ([]model.Prompt, error) {
	return s.SearchPublic(ctx, model.PromptFilter{})
}

// SearchPublic returns shared prompts matching every non-empty filter field.
func (s *PromptService) SearchPublic(ctx context.Context, filter model.PromptFilter) ([]model.Prompt, error) {
	filter.Tags = strings.TrimSpace(filter.Tags)
	filter.IntendedUse = strings.TrimSpace(filter.IntendedUse)
	filter.TargetAudience = strings.TrimSpace(filter.TargetAudience)

	prompts, err := s.prompts.ListSharedPrompts(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("listing shared prompts: %w", err)
	}
	return prompts, nil
}

// Publish makes an owned prompt visible to everyone. It cannot be undone.
// Publishing a prompt that is already shared succeeds without a write.
func (s *PromptService) Publish(ctx context.Context, actor *model.User, id string) (*model.Prompt, error) {
	p, err := s.guard.RequireOwner(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if p.IsShared {
		return p, nil
	}

	if err := s.prompts.PublishPrompt(ctx, id); err != nil {
		return nil, fmt.Errorf("publishing prompt: %w", err)
	}
	p.IsShared = true

	s.logger.Info("prompt published", slog.String("promptID", id))
	return p, nil
}

// normalizeTitle trims a title; a blank title is stored as NULL.
func normalizeTitle(title *string) *string {
	if title == nil {
		return nil
	}
	t := strings.TrimSpace(*title)
	if t == "" {
		return nil
	}
	return &t
}

// normalizeTags trims every tag and drops empty ones. Commas inside a tag
// would split it on the next read, so they are treated as separators here too.
func normalizeTags(tags []string) []string {
	out := []string{}
	for _, tag := range tags {
		for _, part := range strings.Split(tag, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
