package profile

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	_ "embed"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"

	"github.com/spigell/job-agent/internal/ai"
	"github.com/spigell/job-agent/internal/logger"
)

//go:embed analyze_prompt.md
var analyzePromptTemplate string

//go:embed questions_prompt.md
var questionsPromptTemplate string

// maxQuestions is a prompt-level hint only. The model may return any number
// of questions and every returned length is accepted.
const maxQuestions = 11

const defaultMaxLogLength = 200

// contentGenerator is the narrow slice of the model surface the analyzer
// needs. Satisfied by ai.Generator implementations; tests use a stub.
type contentGenerator interface {
	Generate(ctx context.Context, prompt string) (*ai.Completion, error)
}

// Analyzer runs the structured-extraction and question-generation prompts.
type Analyzer struct {
	generator contentGenerator
	logger    *zap.Logger
	maxLogLen int
}

func NewAnalyzer(generator contentGenerator, log *zap.Logger, maxLogLength int) *Analyzer {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}

	return &Analyzer{
		generator: generator,
		logger:    log,
		maxLogLen: maxLogLength,
	}
}

// Analyze sends the resume text to the model and parses the JSON reply into
// an Analysis. A malformed reply yields ai.ErrInvalidResponse; no retry is
// attempted here.
func (a *Analyzer) Analyze(ctx context.Context, text string) (*Analysis, error) {
	prompt := strings.ReplaceAll(analyzePromptTemplate, "{{CV_TEXT}}", text)

	a.logger.Debug("resume analysis request",
		zap.Int("resume_length", utf8.RuneCountInString(text)),
	)

	completion, err := a.generator.Generate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	a.logResponse("resume analysis response", completion)

	cleaned := extractJSON(completion.Text)

	// Decoded via an intermediate map so weakly-typed values survive: the
	// model occasionally returns numbers where the schema says string
	// (graduation years most of all).
	var data map[string]any
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		return nil, fmt.Errorf("parse analysis response: %v: %w", err, ai.ErrInvalidResponse)
	}

	var analysis Analysis
	cfg := &mapstructure.DecoderConfig{
		Result:           &analysis,
		TagName:          "json",
		WeaklyTypedInput: true,
	}
	decoder, err := mapstructure.NewDecoder(cfg)
	if err != nil {
		return nil, fmt.Errorf("build analysis decoder: %w", err)
	}
	if err := decoder.Decode(data); err != nil {
		return nil, fmt.Errorf("decode analysis response: %v: %w", err, ai.ErrInvalidResponse)
	}

	return &analysis, nil
}

// GenerateQuestions asks the model for clarification questions about job
// preferences. The reply must be a JSON array of strings; an empty array is a
// valid, successful outcome.
func (a *Analyzer) GenerateQuestions(ctx context.Context, analysis *Analysis) ([]string, error) {
	analysisJSON, err := json.MarshalIndent(analysis, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal analysis payload: %w", err)
	}

	prompt := strings.ReplaceAll(questionsPromptTemplate, "{{CV_ANALYSIS}}", string(analysisJSON))
	prompt = strings.ReplaceAll(prompt, "{{MAX_QUESTIONS}}", strconv.Itoa(maxQuestions))

	completion, err := a.generator.Generate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	a.logResponse("question generation response", completion)

	cleaned := extractJSON(completion.Text)

	var raw any
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		return nil, fmt.Errorf("parse questions response: %v: %w", err, ai.ErrInvalidResponse)
	}

	items, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("questions response is not a list: %w", ai.ErrInvalidResponse)
	}

	questions := make([]string, 0, len(items))
	for _, item := range items {
		question, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("questions response contains a non-string entry: %w", ai.ErrInvalidResponse)
		}
		if question = strings.TrimSpace(question); question != "" {
			questions = append(questions, question)
		}
	}

	a.logger.Info("generated clarification questions", zap.Int("count", len(questions)))

	return questions, nil
}

func (a *Analyzer) logResponse(msg string, completion *ai.Completion) {
	fields := []zap.Field{
		zap.Int("response_length", utf8.RuneCountInString(completion.Text)),
		zap.String("response_preview", logger.TruncateForLog(completion.Text, a.maxLogLen)),
	}

	if completion.Truncated {
		// Truncated output is accepted as long as it still parses.
		a.logger.Warn(msg+" truncated at token limit", fields...)
		return
	}

	a.logger.Debug(msg, fields...)
}

// extractJSON strips markdown code fences the model sometimes wraps around
// JSON payloads.
func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}
