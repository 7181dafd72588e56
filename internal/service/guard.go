package service

import (
	"context"

	"github.com/sakif/promptcraft/internal/apperror"
	"github.com/sakif/promptcraft/internal/model"
	"github.com/sakif/promptcraft/internal/repository"
)

// Guard is the access-control layer between an authenticated user and a
// prompt. Every method loads the prompt first, so a missing prompt is
// reported as NotFound before any permission check runs.
//
// RULES:
//
//	view   (get, generate, history)    shared OR owner
//	modify (update, delete, publish)   owner
//	vote                               shared AND NOT owner
type Guard struct {
	prompts repository.PromptRepository
}

func NewGuard(prompts repository.PromptRepository) *Guard {
	return &Guard{prompts: prompts}
}

// CanView returns the prompt if actor may read it.
func (g *Guard) CanView(ctx context.Context, actor *model.User, promptID string) (*model.Prompt, error) {
	p, err := g.prompts.GetPrompt(ctx, promptID)
	if err != nil {
		return nil, err
	}
	if !p.IsShared && p.UserID != actor.ID {
		return nil, apperror.Forbidden("you do not have permission to view this prompt")
	}
	return p, nil
}

// RequireOwner returns the prompt if actor owns it.
func (g *Guard) RequireOwner(ctx context.Context, actor *model.User, promptID string) (*model.Prompt, error) {
	p, err := g.prompts.GetPrompt(ctx, promptID)
	if err != nil {
		return nil, err
	}
	if p.UserID != actor.ID {
		return nil, apperror.Forbidden("only the owner can modify this prompt")
	}
	return p, nil
}

// RequireVotable returns the prompt if actor may vote on it.
func (g *Guard) RequireVotable(ctx context.Context, actor *model.User, promptID string) (*model.Prompt, error) {
	p, err := g.prompts.GetPrompt(ctx, promptID)
	if err != nil {
		return nil, err
	}
	if !p.IsShared {
		return nil, apperror.Forbidden("only shared prompts can be voted on")
	}
	if p.UserID == actor.ID {
		return nil, apperror.Forbidden("you cannot vote on your own prompt")
	}
	return p, nil
}
