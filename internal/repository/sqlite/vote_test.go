package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/sakif/promptcraft/internal/apperror"
	"github.com/sakif/promptcraft/internal/model"
	"github.com/sakif/promptcraft/internal/repository"
)

func TestInsertVote(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	owner := createTestUser(t, db, "john.doe")
	voter := createTestUser(t, db, "sally.smith")
	p := createTestPrompt(t, db, owner, "text")

	vote := &model.PromptVote{UserID: voter.ID, PromptID: p.ID, Value: -1}
	if err := db.InsertVote(ctx, vote); err != nil {
		t.Fatalf("InsertVote() error = %v", err)
	}
	if vote.ID == "" {
		t.Error("InsertVote() did not set ID")
	}

	found, err := db.GetVote(ctx, voter.ID, p.ID)
	if err != nil {
		t.Fatalf("GetVote() error = %v", err)
	}
	if found.Value != -1 {
		t.Errorf("Value = %d, want -1", found.Value)
	}
}

func TestInsertVote_Duplicate(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	owner := createTestUser(t, db, "john.doe")
	voter := createTestUser(t, db, "sally.smith")
	p := createTestPrompt(t, db, owner, "text")

	if err := db.InsertVote(ctx, &model.PromptVote{UserID: voter.ID, PromptID: p.ID, Value: 1}); err != nil {
		t.Fatalf("first InsertVote() error = %v", err)
	}

	err := db.InsertVote(ctx, &model.PromptVote{UserID: voter.ID, PromptID: p.ID, Value: -1})
	if !errors.Is(err, repository.ErrDuplicateVote) {
		t.Errorf("second InsertVote() error = %v, want ErrDuplicateVote", err)
	}

	// The first vote is untouched.
	found, _ := db.GetVote(ctx, voter.ID, p.ID)
	if found.Value != 1 {
		t.Errorf("Value = %d, want 1", found.Value)
	}
}

func TestGetVote_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.GetVote(context.Background(), "u", "p")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetVote() error = %v, want ErrNotFound", err)
	}
}

func TestUpdateVoteValue(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	owner := createTestUser(t, db, "john.doe")
	voter := createTestUser(t, db, "sally.smith")
	p := createTestPrompt(t, db, owner, "text")

	if err := db.InsertVote(ctx, &model.PromptVote{UserID: voter.ID, PromptID: p.ID, Value: 1}); err != nil {
		t.Fatalf("InsertVote() error = %v", err)
	}
	if err := db.UpdateVoteValue(ctx, voter.ID, p.ID, -1); err != nil {
		t.Fatalf("UpdateVoteValue() error = %v", err)
	}

	tally, err := db.Tally(ctx, p.ID)
	if err != nil {
		t.Fatalf("Tally() error = %v", err)
	}
	if tally.Upvotes != 0 || tally.Downvotes != 1 {
		t.Errorf("Tally() = %+v, want {0 1}", tally)
	}
}

func TestUpdateVoteValue_NotFound(t *testing.T) {
	db := newTestDB(t)

	err := db.UpdateVoteValue(context.Background(), "u", "p", 1)
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("UpdateVoteValue() error = %v, want ErrNotFound", err)
	}
}

func TestDeleteVote(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	owner := createTestUser(t, db, "john.doe")
	voter := createTestUser(t, db, "sally.smith")
	p := createTestPrompt(t, db, owner, "text")

	if err := db.InsertVote(ctx, &model.PromptVote{UserID: voter.ID, PromptID: p.ID, Value: 1}); err != nil {
		t.Fatalf("InsertVote() error = %v", err)
	}

	deleted, err := db.DeleteVote(ctx, voter.ID, p.ID)
	if err != nil {
		t.Fatalf("DeleteVote() error = %v", err)
	}
	if !deleted {
		t.Error("DeleteVote() = false, want true")
	}

	deleted, err = db.DeleteVote(ctx, voter.ID, p.ID)
	if err != nil {
		t.Fatalf("second DeleteVote() error = %v", err)
	}
	if deleted {
		t.Error("second DeleteVote() = true, want false")
	}
}

func TestTally_Empty(t *testing.T) {
	db := newTestDB(t)
	owner := createTestUser(t, db, "john.doe")
	p := createTestPrompt(t, db, owner, "text")

	tally, err := db.Tally(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("Tally() error = %v", err)
	}
	if tally != (model.VoteTally{}) {
		t.Errorf("Tally() = %+v, want zero", tally)
	}
}
