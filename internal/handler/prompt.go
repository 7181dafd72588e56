package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/sakif/promptcraft/internal/apperror"
	"github.com/sakif/promptcraft/internal/auth"
	"github.com/sakif/promptcraft/internal/model"
	"github.com/sakif/promptcraft/internal/service"
)

// PromptHandler exposes prompts, votes and generations over HTTP.
//
// Every route is behind RequireAuth; the handler reads the acting user from
// the context and leaves all permission decisions to the services.
type PromptHandler struct {
	prompts     *service.PromptService
	votes       *service.VoteService
	generations *service.GenerationService
	logger      *slog.Logger
}

func NewPromptHandler(
	prompts *service.PromptService,
	votes *service.VoteService,
	generations *service.GenerationService,
	logger *slog.Logger,
) *PromptHandler {
	return &PromptHandler{
		prompts:     prompts,
		votes:       votes,
		generations: generations,
		logger:      logger,
	}
}

// tagList accepts either a JSON array of strings or one comma-separated string.
type tagList []string

func (t *tagList) UnmarshalJSON(b []byte) error {
	var list []string
	if err := json.Unmarshal(b, &list); err == nil {
		*t = list
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*t = strings.Split(s, ",")
	return nil
}

// promptRequest is the body of create and update. Each field records whether
// its key was sent, so update can tell "leave alone" (absent) from "clear"
// (null).
type promptRequest struct {
	Text            model.Optional[string]  `json:"text"`
	Title           model.Optional[string]  `json:"title"`
	IntendedUse     model.Optional[string]  `json:"intended_use"`
	TargetAudience  model.Optional[string]  `json:"target_audience"`
	ExpectedOutcome model.Optional[string]  `json:"expected_outcome"`
	Tags            model.Optional[tagList] `json:"tags"`
}

func (req promptRequest) tags() model.Optional[[]string] {
	if req.Tags.Value == nil {
		return model.Optional[[]string]{Set: req.Tags.Set}
	}
	return model.Some([]string(*req.Tags.Value))
}

type voteRequest struct {
	Vote *int `json:"vote"`
}

// actor returns the authenticated user, writing a 401 if there is none.
func actor(w http.ResponseWriter, r *http.Request) (*model.User, bool) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		auth.WriteUnauthorized(w, nil)
	}
	return user, ok
}

// HandleCreate creates a private prompt.
//
// HTTP: POST /prompts
// REQUEST BODY: {"text": "...", "title": "...", "intended_use": "...", "tags": ["..."]}
func (h *PromptHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	user, ok := actor(w, r)
	if !ok {
		return
	}

	var req promptRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Text.Value == nil {
		writeError(w, apperror.MissingField("text"))
		return
	}

	in := service.PromptInput{
		Text:            *req.Text.Value,
		Title:           req.Title.Value,
		IntendedUse:     req.IntendedUse.Value,
		TargetAudience:  req.TargetAudience.Value,
		ExpectedOutcome: req.ExpectedOutcome.Value,
	}
	if tags := req.tags(); tags.Value != nil {
		in.Tags = *tags.Value
	}

	p, err := h.prompts.Create(r.Context(), user, in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// HandleGet returns one prompt.
//
// HTTP: GET /prompts/{id}
func (h *PromptHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	user, ok := actor(w, r)
	if !ok {
		return
	}

	p, err := h.prompts.Get(r.Context(), user, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// HandleUpdate applies a partial update. Fields missing from the body keep
// their current value; fields sent as null are cleared.
//
// HTTP: PUT /prompts/{id}
func (h *PromptHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	user, ok := actor(w, r)
	if !ok {
		return
	}

	var req promptRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	patch := service.PromptPatch{
		Text:            req.Text,
		Title:           req.Title,
		IntendedUse:     req.IntendedUse,
		TargetAudience:  req.TargetAudience,
		ExpectedOutcome: req.ExpectedOutcome,
		Tags:            req.tags(),
	}

	p, err := h.prompts.Update(r.Context(), user, chi.URLParam(r, "id"), patch)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// HandleDelete removes a prompt with its votes and generations.
//
// HTTP: DELETE /prompts/{id}
// RESPONSE: 204 No Content
func (h *PromptHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	user, ok := actor(w, r)
	if !ok {
		return
	}

	if err := h.prompts.Delete(r.Context(), user, chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleListOwn lists the caller's prompts.
//
// HTTP: GET /prompts?sort=newest|oldest
func (h *PromptHandler) HandleListOwn(w http.ResponseWriter, r *http.Request) {
	user, ok := actor(w, r)
	if !ok {
		return
	}

	prompts, err := h.prompts.ListOwn(r.Context(), user, r.URL.Query().Get("sort"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, prompts)
}

// HandleListPublic lists every shared prompt.
//
// HTTP: GET /prompts/public
func (h *PromptHandler) HandleListPublic(w http.ResponseWriter, r *http.Request) {
	prompts, err := h.prompts.ListPublic(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, prompts)
}

// HandleSearchPublic filters shared prompts.
//
// HTTP: GET /prompts/public/search?tags=&intended_use=&target_audience=
func (h *PromptHandler) HandleSearchPublic(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	prompts, err := h.prompts.SearchPublic(r.Context(), model.PromptFilter{
		Tags:           q.Get("tags"),
		IntendedUse:    q.Get("intended_use"),
		TargetAudience: q.Get("target_audience"),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, prompts)
}

// HandlePublish shares a prompt. There is no unpublish.
//
// HTTP: PUT /prompts/{id}/publish
func (h *PromptHandler) HandlePublish(w http.ResponseWriter, r *http.Request) {
	user, ok := actor(w, r)
	if !ok {
		return
	}

	p, err := h.prompts.Publish(r.Context(), user, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// HandleVote casts, changes or removes the caller's vote.
//
// HTTP: POST /prompts/{id}/vote
// REQUEST BODY: {"vote": -1 | 0 | 1}
// RESPONSE: {"outcome": "created", "tally": {"upvotes": 1, "downvotes": 0}}
func (h *PromptHandler) HandleVote(w http.ResponseWriter, r *http.Request) {
	user, ok := actor(w, r)
	if !ok {
		return
	}

	var req voteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Vote == nil {
		writeError(w, apperror.MissingField("vote"))
		return
	}

	result, err := h.votes.CastVote(r.Context(), user, chi.URLParam(r, "id"), *req.Vote)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// HandleGenerate runs the prompt through the generative model and stores the
// analysis.
//
// HTTP: POST /prompts/{id}/generate
// RESPONSE: 201 with the stored generation
func (h *PromptHandler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	user, ok := actor(w, r)
	if !ok {
		return
	}

	gen, err := h.generations.Generate(r.Context(), user, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, gen)
}

// HandleHistory lists a prompt's generations, oldest first.
//
// HTTP: GET /prompts/{id}/history
func (h *PromptHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	user, ok := actor(w, r)
	if !ok {
		return
	}

	gens, err := h.generations.History(r.Context(), user, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, gens)
}
