package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sakif/promptcraft/internal/apperror"
	"github.com/sakif/promptcraft/internal/auth"
	"github.com/sakif/promptcraft/internal/genai"
	"github.com/sakif/promptcraft/internal/model"
	"github.com/sakif/promptcraft/internal/repository"
)

// =========================================================================
// FAKE STORE
// =========================================================================

// fakeStore is an in-memory implementation of every repository interface.
// Using a fake (not a mock framework) keeps tests easy to read: you can see
// exactly what the fake does.
type fakeStore struct {
	mu sync.Mutex

	users   map[string]*model.User
	prompts map[string]*model.Prompt
	order   []string // prompt ids in creation order
	votes   map[string]*model.PromptVote
	gens    []model.GeneratedPrompt
	revoked map[string]bool
	nextID  int

	// failure injection
	createGenErr error
	revokeErr    error

	// raceOnInsert makes the next InsertVote behave as if a concurrent
	// request had inserted the same (user, prompt) pair first.
	raceOnInsert bool

	// removeBeforeUpdate makes the next UpdateVoteValue find its row gone,
	// as if a concurrent vote of 0 had deleted it.
	removeBeforeUpdate bool
}

var (
	_ repository.UserRepository       = (*fakeStore)(nil)
	_ repository.PromptRepository     = (*fakeStore)(nil)
	_ repository.VoteRepository       = (*fakeStore)(nil)
	_ repository.GenerationRepository = (*fakeStore)(nil)
	_ repository.TokenBlacklist       = (*fakeStore)(nil)
)

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:   make(map[string]*model.User),
		prompts: make(map[string]*model.Prompt),
		votes:   make(map[string]*model.PromptVote),
		revoked: make(map[string]bool),
	}
}

func (f *fakeStore) id(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s-%d", prefix, f.nextID)
}

func voteKey(userID, promptID string) string { return userID + "|" + promptID }

// --- users ---

func (f *fakeStore) CreateUser(_ context.Context, user *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Username == user.Username || u.Email == user.Email {
			return &apperror.AppError{Err: apperror.ErrConflict, Message: "username or email is already registered"}
		}
	}
	user.ID = f.id("user")
	user.CreatedAt = time.Now()
	copied := *user
	f.users[user.ID] = &copied
	return nil
}

func (f *fakeStore) GetUserByID(_ context.Context, id string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	copied := *u
	return &copied, nil
}

func (f *fakeStore) GetUserByUsername(_ context.Context, username string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Username == username {
			copied := *u
			return &copied, nil
		}
	}
	return nil, apperror.NotFound("user", username)
}

// --- prompts ---

func (f *fakeStore) withTally(p *model.Prompt) *model.Prompt {
	copied := *p
	copied.Upvotes, copied.Downvotes = 0, 0
	for _, v := range f.votes {
		if v.PromptID != p.ID {
			continue
		}
		if v.Value == 1 {
			copied.Upvotes++
		} else {
			copied.Downvotes++
		}
	}
	return &copied
}

func (f *fakeStore) CreatePrompt(_ context.Context, p *model.Prompt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p.ID = f.id("prompt")
	p.IsShared = false
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	copied := *p
	f.prompts[p.ID] = &copied
	f.order = append(f.order, p.ID)
	return nil
}

func (f *fakeStore) GetPrompt(_ context.Context, id string) (*model.Prompt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.prompts[id]
	if !ok {
		return nil, apperror.NotFound("prompt", id)
	}
	return f.withTally(p), nil
}

func (f *fakeStore) UpdatePrompt(_ context.Context, p *model.Prompt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing, ok := f.prompts[p.ID]
	if !ok {
		return apperror.NotFound("prompt", p.ID)
	}
	copied := *p
	copied.UserID = existing.UserID
	copied.IsShared = existing.IsShared
	f.prompts[p.ID] = &copied
	return nil
}

func (f *fakeStore) DeletePrompt(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.prompts[id]; !ok {
		return apperror.NotFound("prompt", id)
	}
	delete(f.prompts, id)
	for k, v := range f.votes {
		if v.PromptID == id {
			delete(f.votes, k)
		}
	}
	kept := f.gens[:0]
	for _, g := range f.gens {
		if g.PromptID != id {
			kept = append(kept, g)
		}
	}
	f.gens = kept
	return nil
}

func (f *fakeStore) PublishPrompt(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.prompts[id]
	if !ok {
		return apperror.NotFound("prompt", id)
	}
	p.IsShared = true
	return nil
}

func (f *fakeStore) ListPromptsByOwner(_ context.Context, userID string, sort model.PromptSort) ([]model.Prompt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.Prompt{}
	for _, id := range f.order {
		if p, ok := f.prompts[id]; ok && p.UserID == userID {
			out = append(out, *f.withTally(p))
		}
	}
	if sort != model.SortOldest {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	return out, nil
}

func (f *fakeStore) ListSharedPrompts(_ context.Context, filter model.PromptFilter) ([]model.Prompt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	contains := func(field *string, term string) bool {
		if term == "" {
			return true
		}
		return field != nil && strings.Contains(strings.ToLower(*field), strings.ToLower(term))
	}
	out := []model.Prompt{}
	for i := len(f.order) - 1; i >= 0; i-- {
		p, ok := f.prompts[f.order[i]]
		if !ok || !p.IsShared {
			continue
		}
		tags := strings.Join(p.Tags, ",")
		if contains(&tags, filter.Tags) &&
			contains(p.IntendedUse, filter.IntendedUse) &&
			contains(p.TargetAudience, filter.TargetAudience) {
			out = append(out, *f.withTally(p))
		}
	}
	return out, nil
}

// --- votes ---

func (f *fakeStore) GetVote(_ context.Context, userID, promptID string) (*model.PromptVote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.votes[voteKey(userID, promptID)]
	if !ok {
		return nil, apperror.NotFound("vote", voteKey(userID, promptID))
	}
	copied := *v
	return &copied, nil
}

func (f *fakeStore) InsertVote(_ context.Context, vote *model.PromptVote) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := voteKey(vote.UserID, vote.PromptID)
	if f.raceOnInsert {
		f.raceOnInsert = false
		f.votes[key] = &model.PromptVote{ID: f.id("vote"), UserID: vote.UserID, PromptID: vote.PromptID, Value: -vote.Value}
	}
	if _, ok := f.votes[key]; ok {
		return fmt.Errorf("fake: %w", repository.ErrDuplicateVote)
	}
	vote.ID = f.id("vote")
	copied := *vote
	f.votes[key] = &copied
	return nil
}

func (f *fakeStore) UpdateVoteValue(_ context.Context, userID, promptID string, value int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := voteKey(userID, promptID)
	if f.removeBeforeUpdate {
		f.removeBeforeUpdate = false
		delete(f.votes, key)
	}
	v, ok := f.votes[key]
	if !ok {
		return apperror.NotFound("vote", key)
	}
	v.Value = value
	return nil
}

func (f *fakeStore) DeleteVote(_ context.Context, userID, promptID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := voteKey(userID, promptID)
	if _, ok := f.votes[key]; !ok {
		return false, nil
	}
	delete(f.votes, key)
	return true, nil
}

func (f *fakeStore) Tally(_ context.Context, promptID string) (model.VoteTally, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var t model.VoteTally
	for _, v := range f.votes {
		if v.PromptID != promptID {
			continue
		}
		if v.Value == 1 {
			t.Upvotes++
		} else {
			t.Downvotes++
		}
	}
	return t, nil
}

func (f *fakeStore) voteCount(promptID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, v := range f.votes {
		if v.PromptID == promptID {
			n++
		}
	}
	return n
}

// --- generations ---

func (f *fakeStore) CreateGeneration(_ context.Context, gen *model.GeneratedPrompt, adoptTitle string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createGenErr != nil {
		return f.createGenErr
	}
	if adoptTitle != "" {
		if p, ok := f.prompts[gen.PromptID]; ok && !p.HasTitle() {
			t := adoptTitle
			p.Title = &t
		}
	}
	gen.ID = f.id("gen")
	gen.CreatedAt = time.Now()
	f.gens = append(f.gens, *gen)
	return nil
}

func (f *fakeStore) ListGenerations(_ context.Context, promptID string) ([]model.GeneratedPrompt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.GeneratedPrompt{}
	for _, g := range f.gens {
		if g.PromptID == promptID {
			out = append(out, g)
		}
	}
	return out, nil
}

// --- blacklist ---

func (f *fakeStore) RevokeToken(_ context.Context, jti string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.revokeErr != nil {
		return f.revokeErr
	}
	f.revoked[jti] = true
	return nil
}

func (f *fakeStore) IsTokenRevoked(_ context.Context, jti string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.revoked[jti], nil
}

// =========================================================================
// FAKE GENERATOR
// =========================================================================

// fakeGenerator returns a canned reply. If block is set it waits for the
// context to end, to exercise the timeout.
type fakeGenerator struct {
	reply *genai.Response
	err   error
	block bool

	calls    int
	lastText string
}

func (g *fakeGenerator) Generate(ctx context.Context, text string) (*genai.Response, error) {
	g.calls++
	g.lastText = text
	if g.block {
		<-ctx.Done()
		return nil, fmt.Errorf("fake: %w", ctx.Err())
	}
	if g.err != nil {
		return nil, g.err
	}
	return g.reply, nil
}

// =========================================================================
// HELPERS
// =========================================================================

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

// testEnv bundles every service over one fake store.
type testEnv struct {
	store       *fakeStore
	tokens      *auth.TokenService
	auth        *AuthService
	prompts     *PromptService
	votes       *VoteService
	generations *GenerationService
	generator   *fakeGenerator
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	tokens, err := auth.NewTokenService("test-secret-at-least-16-chars!!", 0)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}

	store := newFakeStore()
	logger := testLogger()
	guard := NewGuard(store)
	gen := &fakeGenerator{}

	return &testEnv{
		store:       store,
		tokens:      tokens,
		auth:        NewAuthService(store, store, tokens, auth.NewPasswordServiceWithCost(4), logger),
		prompts:     NewPromptService(store, guard, logger),
		votes:       NewVoteService(store, guard, logger),
		generations: NewGenerationService(store, guard, gen, time.Second, logger),
		generator:   gen,
	}
}

// mustRegister creates a user with password "password123".
func (e *testEnv) mustRegister(t *testing.T, username string) *model.User {
	t.Helper()
	u, err := e.auth.Register(context.Background(), RegisterInput{
		Username: username,
		Email:    username + "@promptify.com",
		Password: "password123",
	})
	if err != nil {
		t.Fatalf("Register(%s): %v", username, err)
	}
	return u
}

func (e *testEnv) mustCreatePrompt(t *testing.T, owner *model.User, text string) *model.Prompt {
	t.Helper()
	p, err := e.prompts.Create(context.Background(), owner, PromptInput{Text: text})
	if err != nil {
		t.Fatalf("Create prompt: %v", err)
	}
	return p
}

func (e *testEnv) mustPublish(t *testing.T, owner *model.User, p *model.Prompt) {
	t.Helper()
	if _, err := e.prompts.Publish(context.Background(), owner, p.ID); err != nil {
		t.Fatalf("Publish: %v", err)
	}
}
