package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/spigell/job-agent/internal/ai"
	"github.com/spigell/job-agent/internal/logger"
)

const (
	defaultModel        = "gemini-2.5-flash"
	defaultMaxLogLength = 200
)

// modelCaller matches the subset of genai.Models used by the generator.
// *genai.Models satisfies it; tests substitute a fake.
type modelCaller interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Generator wraps the Google GenAI client behind the ai.Generator interface.
// It is constructed once and injected into every component that needs the
// model; there is no lazily-initialized global handle.
type Generator struct {
	models    modelCaller
	model     string
	logger    *zap.Logger
	maxLogLen int
}

// NewGenerator creates a Generator for the Gemini API backend.
func NewGenerator(ctx context.Context, apiKey, model string, maxLogLength int, log *zap.Logger) (*Generator, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key: %w", ai.ErrConfigurationMissing)
	}

	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	if model = strings.TrimSpace(model); model == "" {
		model = defaultModel
	}

	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}

	return &Generator{
		models:    client.Models,
		model:     model,
		logger:    log,
		maxLogLen: maxLogLength,
	}, nil
}

// Generate sends the prompt to Gemini and maps the outcome onto the closed
// ai error kinds. There is no automatic retry; the caller decides.
func (g *Generator) Generate(ctx context.Context, prompt string) (*ai.Completion, error) {
	if g == nil || g.models == nil {
		return nil, fmt.Errorf("gemini generator is not initialized: %w", ai.ErrConfigurationMissing)
	}

	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, fmt.Errorf("prompt must not be empty: %w", ai.ErrGenerationFailed)
	}

	g.logger.Debug("gemini request",
		zap.String("model", g.model),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", logger.TruncateForLog(prompt, g.maxLogLen)),
	)

	resp, err := g.models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			return nil, fmt.Errorf("gemini api status %d: %s: %w", apiErr.Code, apiErr.Status, ai.ErrTransport)
		}
		return nil, fmt.Errorf("%v: %w", err, ai.ErrTransport)
	}

	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return nil, fmt.Errorf("prompt blocked by %s: %w", resp.PromptFeedback.BlockReason, ai.ErrResponseBlocked)
	}

	candidate := firstCandidate(resp)
	if candidate == nil {
		return nil, fmt.Errorf("no candidates in response: %w", ai.ErrGenerationFailed)
	}

	text := joinParts(candidate)

	switch candidate.FinishReason {
	case genai.FinishReasonStop, "":
		if text == "" {
			return nil, fmt.Errorf("empty response text: %w", ai.ErrGenerationFailed)
		}
		return &ai.Completion{Text: text}, nil
	case genai.FinishReasonMaxTokens:
		if text == "" {
			return nil, fmt.Errorf("response truncated with no text: %w", ai.ErrGenerationFailed)
		}
		g.logger.Warn("gemini response truncated at token limit",
			zap.String("model", g.model),
			zap.Int("partial_length", utf8.RuneCountInString(text)),
		)
		return &ai.Completion{Text: text, Truncated: true}, nil
	case genai.FinishReasonSafety, genai.FinishReasonRecitation,
		genai.FinishReasonBlocklist, genai.FinishReasonProhibitedContent,
		genai.FinishReasonSPII:
		return nil, fmt.Errorf("response blocked by %s: %w", candidate.FinishReason, ai.ErrResponseBlocked)
	default:
		return nil, fmt.Errorf("generation finished with %s: %w", candidate.FinishReason, ai.ErrGenerationFailed)
	}
}

func (g *Generator) Model() string {
	if g == nil {
		return ""
	}
	return g.model
}

func firstCandidate(resp *genai.GenerateContentResponse) *genai.Candidate {
	for _, candidate := range resp.Candidates {
		if candidate != nil {
			return candidate
		}
	}
	return nil
}

func joinParts(candidate *genai.Candidate) string {
	if candidate.Content == nil {
		return ""
	}

	var builder strings.Builder
	for _, part := range candidate.Content.Parts {
		if part == nil {
			continue
		}
		text := strings.TrimSpace(part.Text)
		if text == "" {
			continue
		}
		if builder.Len() > 0 {
			builder.WriteString("\n")
		}
		builder.WriteString(text)
	}

	return strings.TrimSpace(builder.String())
}
