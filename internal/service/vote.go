package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sakif/promptcraft/internal/apperror"
	"github.com/sakif/promptcraft/internal/model"
	"github.com/sakif/promptcraft/internal/repository"
)

// VoteService is the voting ledger: at most one vote per user per prompt.
type VoteService struct {
	votes  repository.VoteRepository
	guard  *Guard
	logger *slog.Logger
}

func NewVoteService(votes repository.VoteRepository, guard *Guard, logger *slog.Logger) *VoteService {
	return &VoteService{
		votes:  votes,
		guard:  guard,
		logger: logger,
	}
}

// VoteResult is what CastVote did, plus the prompt's tally afterwards.
type VoteResult struct {
	Outcome model.VoteOutcome `json:"outcome"`
	Tally   model.VoteTally   `json:"tally"`
}

// CastVote records actor's vote on a shared prompt.
//
//	value  existing vote   action   outcome
//	0      yes             delete   removed
//	0      no              none     not_found
//	±1     no              insert   created
//	±1     yes             update   updated
//
// RACE WITH A CONCURRENT FIRST VOTE:
// Two requests from the same user can both see "no vote" and both INSERT.
// The UNIQUE(user_id, prompt_id) constraint lets exactly one win; the loser
// gets repository.ErrDuplicateVote and retries as an update. The mirror case,
// a concurrent removal between the lookup and the update, falls back to an
// insert.
func (s *VoteService) CastVote(ctx context.Context, actor *model.User, promptID string, value int) (*VoteResult, error) {
	if value < -1 || value > 1 {
		return nil, apperror.InvalidVote(value)
	}
	if _, err := s.guard.RequireVotable(ctx, actor, promptID); err != nil {
		return nil, err
	}

	outcome, err := s.apply(ctx, actor.ID, promptID, value)
	if err != nil {
		s.logger.Error("failed to cast vote",
			slog.String("promptID", promptID),
			slog.String("userID", actor.ID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("casting vote: %w", err)
	}

	tally, err := s.votes.Tally(ctx, promptID)
	if err != nil {
		return nil, fmt.Errorf("tallying votes: %w", err)
	}

	s.logger.Info("vote cast",
		slog.String("promptID", promptID),
		slog.String("userID", actor.ID),
		slog.Int("value", value),
		slog.String("outcome", string(outcome)),
	)
	return &VoteResult{Outcome: outcome, Tally: tally}, nil
}

func (s *VoteService) apply(ctx context.Context, userID, promptID string, value int) (model.VoteOutcome, error) {
	if value == 0 {
		removed, err := s.votes.DeleteVote(ctx, userID, promptID)
		if err != nil {
			return "", err
		}
		if !removed {
			return model.VoteNotFound, nil
		}
		return model.VoteRemoved, nil
	}

	_, err := s.votes.GetVote(ctx, userID, promptID)
	if err == nil {
		err = s.votes.UpdateVoteValue(ctx, userID, promptID, value)
		if err == nil {
			return model.VoteUpdated, nil
		}
		// A concurrent removal deleted the row after GetVote saw it;
		// fall through and insert.
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return "", err
	}

	err = s.votes.InsertVote(ctx, &model.PromptVote{UserID: userID, PromptID: promptID, Value: value})
	if errors.Is(err, repository.ErrDuplicateVote) {
		if err := s.votes.UpdateVoteValue(ctx, userID, promptID, value); err != nil {
			return "", err
		}
		return model.VoteUpdated, nil
	}
	if err != nil {
		return "", err
	}
	return model.VoteCreated, nil
}
