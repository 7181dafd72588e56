package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/sakif/promptcraft/internal/apperror"
	"github.com/sakif/promptcraft/internal/genai"
)

const haikuReply = "```json\n" + `{
  "title": "Autumn Haiku",
  "analysis": {
    "overall_score": 8,
    "clarity": 9,
    "specificity": 6,
    "effectiveness": 8,
    "improvements_made": ["added a season word"],
    "additional_suggestions": ["specify a mood"]
  },
  "refined_prompt": "Write a 5-7-5 haiku about falling maple leaves",
  "generated_content": "Crimson leaves drifting"
}` + "\n```"

func TestGenerate_StoresResultAndAdoptsTitle(t *testing.T) {
	env := newTestEnv(t)
	owner := env.mustRegister(t, "john.doe")
	ctx := context.Background()
	p := env.mustCreatePrompt(t, owner, "Write a haiku about autumn")

	env.generator.reply = &genai.Response{Text: haikuReply, PromptTokens: intPtr(120), CandidateTokens: intPtr(80)}

	gen, err := env.generations.Generate(ctx, owner, p.ID)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	if gen.GeneratedText != "Crimson leaves drifting" {
		t.Errorf("GeneratedText = %q", gen.GeneratedText)
	}
	if gen.Analysis.OverallScore == nil || *gen.Analysis.OverallScore != 8 {
		t.Errorf("OverallScore = %v, want 8", gen.Analysis.OverallScore)
	}
	if gen.Analysis.RefinedPrompt == nil || !strings.Contains(*gen.Analysis.RefinedPrompt, "maple") {
		t.Errorf("RefinedPrompt = %v", gen.Analysis.RefinedPrompt)
	}
	if gen.UsageMetadata.PromptTokenCount == nil || *gen.UsageMetadata.PromptTokenCount != 120 {
		t.Errorf("PromptTokenCount = %v, want 120", gen.UsageMetadata.PromptTokenCount)
	}

	got, _ := env.prompts.Get(ctx, owner, p.ID)
	if got.Title == nil || *got.Title != "Autumn Haiku" {
		t.Errorf("Title = %v, want adopted %q", got.Title, "Autumn Haiku")
	}

	history, err := env.generations.History(ctx, owner, p.ID)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 1 || history[0].ID != gen.ID {
		t.Errorf("History() = %v, want the one generation", history)
	}
}

func TestGenerate_KeepsExistingTitle(t *testing.T) {
	env := newTestEnv(t)
	owner := env.mustRegister(t, "john.doe")
	ctx := context.Background()
	p, _ := env.prompts.Create(ctx, owner, PromptInput{Text: "haiku", Title: strPtr("Mine")})

	env.generator.reply = &genai.Response{Text: haikuReply}
	if _, err := env.generations.Generate(ctx, owner, p.ID); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	got, _ := env.prompts.Get(ctx, owner, p.ID)
	if got.Title == nil || *got.Title != "Mine" {
		t.Errorf("Title = %v, want unchanged %q", got.Title, "Mine")
	}
}

func TestGenerate_TitleTruncated(t *testing.T) {
	env := newTestEnv(t)
	owner := env.mustRegister(t, "john.doe")
	ctx := context.Background()
	p := env.mustCreatePrompt(t, owner, "long title please")

	env.generator.reply = &genai.Response{
		Text: `{"title": "Ünïcödé títle that goes on well past the limit", "generated_content": "x"}`,
	}
	if _, err := env.generations.Generate(ctx, owner, p.ID); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	got, _ := env.prompts.Get(ctx, owner, p.ID)
	if got.Title == nil {
		t.Fatal("Title was not adopted")
	}
	if n := utf8.RuneCountInString(*got.Title); n > MaxTitleRunes {
		t.Errorf("title has %d runes, want at most %d", n, MaxTitleRunes)
	}
	if !strings.HasPrefix(*got.Title, "Ünïcödé") {
		t.Errorf("Title = %q, truncation broke the runes", *got.Title)
	}
}

func TestGenerate_MalformedOutput(t *testing.T) {
	env := newTestEnv(t)
	owner := env.mustRegister(t, "john.doe")
	ctx := context.Background()
	p := env.mustCreatePrompt(t, owner, "haiku")

	env.generator.reply = &genai.Response{Text: "Sure! Here is a haiku about autumn."}

	_, err := env.generations.Generate(ctx, owner, p.ID)
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) || !errors.Is(err, apperror.ErrMalformedModelOutput) {
		t.Fatalf("Generate() error = %v, want ErrMalformedModelOutput", err)
	}
	if appErr.Detail != "Sure! Here is a haiku about autumn." {
		t.Errorf("Detail = %q, want the raw reply", appErr.Detail)
	}

	history, _ := env.generations.History(ctx, owner, p.ID)
	if len(history) != 0 {
		t.Errorf("malformed reply stored %d generations", len(history))
	}
	got, _ := env.prompts.Get(ctx, owner, p.ID)
	if got.Title != nil {
		t.Errorf("Title = %q, want nil after failed generation", *got.Title)
	}
}

func TestGenerate_Failures(t *testing.T) {
	tests := []struct {
		name  string
		setup func(env *testEnv)
		want  error
	}{
		{
			name:  "provider error",
			setup: func(env *testEnv) { env.generator.err = &genai.ProviderError{StatusCode: 500, Message: "boom"} },
			want:  apperror.ErrGenerationFailed,
		},
		{
			name: "storage error",
			setup: func(env *testEnv) {
				env.generator.reply = &genai.Response{Text: haikuReply}
				env.store.createGenErr = errors.New("disk full")
			},
			want: apperror.ErrGenerationFailed,
		},
		{
			name: "no generator configured",
			setup: func(env *testEnv) {
				env.generations = NewGenerationService(env.store, NewGuard(env.store), nil, 0, testLogger())
			},
			want: apperror.ErrServiceUnavailable,
		},
		{
			name: "timeout",
			setup: func(env *testEnv) {
				env.generator.block = true
				env.generations = NewGenerationService(env.store, NewGuard(env.store), env.generator, 20*time.Millisecond, testLogger())
			},
			want: apperror.ErrGenerationFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			owner := env.mustRegister(t, "john.doe")
			p := env.mustCreatePrompt(t, owner, "haiku")
			tt.setup(env)

			_, err := env.generations.Generate(context.Background(), owner, p.ID)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Generate() error = %v, want %v", err, tt.want)
			}

			env.store.createGenErr = nil
			history, _ := env.generations.History(context.Background(), owner, p.ID)
			if len(history) != 0 {
				t.Errorf("failed generation stored %d rows", len(history))
			}
		})
	}
}

func TestGenerate_Visibility(t *testing.T) {
	env := newTestEnv(t)
	owner := env.mustRegister(t, "john.doe")
	other := env.mustRegister(t, "sally.smith")
	ctx := context.Background()
	p := env.mustCreatePrompt(t, owner, "private haiku")
	env.generator.reply = &genai.Response{Text: haikuReply}

	if _, err := env.generations.Generate(ctx, other, p.ID); !errors.Is(err, apperror.ErrForbidden) {
		t.Errorf("Generate(other) error = %v, want ErrForbidden", err)
	}
	if env.generator.calls != 0 {
		t.Error("the model was called for a forbidden prompt")
	}
	if _, err := env.generations.History(ctx, other, p.ID); !errors.Is(err, apperror.ErrForbidden) {
		t.Errorf("History(other) error = %v, want ErrForbidden", err)
	}

	// Once shared, anyone may generate from it.
	env.mustPublish(t, owner, p)
	if _, err := env.generations.Generate(ctx, other, p.ID); err != nil {
		t.Errorf("Generate(other, shared) error = %v", err)
	}
}

func TestBuildGenerationPayload(t *testing.T) {
	env := newTestEnv(t)
	owner := env.mustRegister(t, "john.doe")
	p, _ := env.prompts.Create(context.Background(), owner, PromptInput{
		Text:           "Write a haiku about autumn",
		TargetAudience: strPtr("children"),
		Tags:           []string{"poetry", "nature"},
	})

	payload := BuildGenerationPayload(p)

	for _, want := range []string{
		"Prompt: Write a haiku about autumn",
		"Intended Use: not specified",
		"Target Audience: children",
		"Expected Outcome: not specified",
		"Tags: poetry, nature",
		`"generated_content"`,
	} {
		if !strings.Contains(payload, want) {
			t.Errorf("payload missing %q", want)
		}
	}
}
