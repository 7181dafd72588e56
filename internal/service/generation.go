package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sakif/promptcraft/internal/apperror"
	"github.com/sakif/promptcraft/internal/genai"
	"github.com/sakif/promptcraft/internal/model"
	"github.com/sakif/promptcraft/internal/repository"
)

const (
	// MaxTitleRunes is the longest title adopted from a model reply.
	MaxTitleRunes = 25

	DefaultGenerationTimeout = 60 * time.Second
)

// GenerationService sends prompts to the generative model and stores the
// structured result.
//
// A single call moves through:
//
//	Idle → Requesting → Persisted
//	                  ↘ ParseFailure      (reply is not a JSON object, 502)
//	                  ↘ TransportFailure  (network, provider status, storage, 500)
//
// Every failure leaves storage untouched. Nothing is retried here.
type GenerationService struct {
	generations repository.GenerationRepository
	guard       *Guard
	generator   genai.Generator
	timeout     time.Duration
	logger      *slog.Logger
}

// NewGenerationService wires the orchestrator. generator may be nil, in which
// case Generate reports apperror.ErrServiceUnavailable. A non-positive
// timeout means DefaultGenerationTimeout.
func NewGenerationService(
	generations repository.GenerationRepository,
	guard *Guard,
	generator genai.Generator,
	timeout time.Duration,
	logger *slog.Logger,
) *GenerationService {
	if timeout <= 0 {
		timeout = DefaultGenerationTimeout
	}
	return &GenerationService{
		generations: generations,
		guard:       guard,
		generator:   generator,
		timeout:     timeout,
		logger:      logger,
	}
}

// Generate runs one generation for a prompt the actor may view.
func (s *GenerationService) Generate(ctx context.Context, actor *model.User, promptID string) (*model.GeneratedPrompt, error) {
	p, err := s.guard.CanView(ctx, actor, promptID)
	if err != nil {
		return nil, err
	}

	if s.generator == nil {
		return nil, apperror.ServiceUnavailable("generative model not available, check GENAI_API_KEY")
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.generator.Generate(callCtx, BuildGenerationPayload(p))
	if err != nil {
		s.logger.Error("generation request failed",
			slog.String("promptID", promptID),
			slog.String("error", err.Error()),
		)
		return nil, apperror.GenerationFailed(err)
	}

	out, err := genai.ParseOutput(resp.Text)
	if err != nil {
		s.logger.Warn("model returned malformed output",
			slog.String("promptID", promptID),
			slog.Int("length", len(resp.Text)),
		)
		return nil, err
	}

	gen := &model.GeneratedPrompt{
		PromptID: p.ID,
		Analysis: out.Analysis,
		UsageMetadata: model.UsageMetadata{
			PromptTokenCount:     resp.PromptTokens,
			CandidatesTokenCount: resp.CandidateTokens,
		},
	}
	if out.GeneratedContent != nil {
		gen.GeneratedText = *out.GeneratedContent
	}

	var adoptTitle string
	if !p.HasTitle() && out.Title != nil {
		adoptTitle = truncateRunes(strings.TrimSpace(*out.Title), MaxTitleRunes)
	}

	if err := s.generations.CreateGeneration(ctx, gen, adoptTitle); err != nil {
		s.logger.Error("failed to store generation",
			slog.String("promptID", promptID),
			slog.String("error", err.Error()),
		)
		return nil, apperror.GenerationFailed(err)
	}

	s.logger.Info("generation stored",
		slog.String("promptID", promptID),
		slog.String("generationID", gen.ID),
		slog.Bool("titleAdopted", adoptTitle != ""),
	)
	return gen, nil
}

// History returns the generations of a prompt the actor may view, oldest first.
func (s *GenerationService) History(ctx context.Context, actor *model.User, promptID string) ([]model.GeneratedPrompt, error) {
	if _, err := s.guard.CanView(ctx, actor, promptID); err != nil {
		return nil, err
	}

	gens, err := s.generations.ListGenerations(ctx, promptID)
	if err != nil {
		return nil, fmt.Errorf("listing generations: %w", err)
	}
	return gens, nil
}

const generationInstructions = `You are an expert prompt engineer. Analyse the prompt below and reply with a single JSON object and nothing else, using exactly these keys:

{
  "title": "a short title for the prompt, at most 25 characters",
  "analysis": {
    "overall_score": 0-10,
    "clarity": 0-10,
    "specificity": 0-10,
    "effectiveness": 0-10,
    "improvements_made": ["..."],
    "additional_suggestions": ["..."]
  },
  "refined_prompt": "an improved version of the prompt",
  "generated_content": "the output of running the refined prompt"
}
`

// BuildGenerationPayload composes the text sent to the model: the fixed
// instructions followed by the prompt and its metadata.
func BuildGenerationPayload(p *model.Prompt) string {
	var sb strings.Builder
	sb.WriteString(generationInstructions)
	sb.WriteString("\nPrompt: ")
	sb.WriteString(p.Text)
	fmt.Fprintf(&sb, "\nIntended Use: %s", orUnspecified(p.IntendedUse))
	fmt.Fprintf(&sb, "\nTarget Audience: %s", orUnspecified(p.TargetAudience))
	fmt.Fprintf(&sb, "\nExpected Outcome: %s", orUnspecified(p.ExpectedOutcome))
	tags := "not specified"
	if len(p.Tags) > 0 {
		tags = strings.Join(p.Tags, ", ")
	}
	fmt.Fprintf(&sb, "\nTags: %s\n", tags)
	return sb.String()
}

func orUnspecified(s *string) string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return "not specified"
	}
	return *s
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n]))
}
