package profile

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	_ "embed"

	"go.uber.org/zap"

	"github.com/spigell/job-agent/internal/ai"
	"github.com/spigell/job-agent/internal/logger"
)

//go:embed fit_prompt.md
var fitPromptTemplate string

//go:embed coverletter_prompt.md
var coverLetterPromptTemplate string

// FitAssessment is the model's judgement of how well a profile matches a job.
type FitAssessment struct {
	Fit           bool
	Score         float64
	Justification string
	Raw           string
}

// Assessor evaluates job fit and drafts application snippets for a stored
// profile.
type Assessor struct {
	generator contentGenerator
	minScore  float64
	logger    *zap.Logger
	maxLogLen int
}

func NewAssessor(generator contentGenerator, minScore float64, maxLogLength int, log *zap.Logger) *Assessor {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}

	return &Assessor{
		generator: generator,
		minScore:  minScore,
		logger:    log,
		maxLogLen: maxLogLength,
	}
}

// Evaluate scores the analysis/preferences pair against a job description.
// Fit is false whenever the score falls below the configured threshold.
func (m *Assessor) Evaluate(ctx context.Context, analysis *Analysis, prefs map[string]string, jobDescription string) (*FitAssessment, error) {
	if analysis == nil {
		return nil, fmt.Errorf("profile analysis is required")
	}
	if strings.TrimSpace(jobDescription) == "" {
		return nil, fmt.Errorf("job description is required")
	}

	prompt, err := buildJobPrompt(fitPromptTemplate, analysis, prefs, jobDescription)
	if err != nil {
		return nil, err
	}

	m.logger.Debug("fit assessment request",
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", logger.TruncateForLog(prompt, m.maxLogLen)),
	)

	completion, err := m.generator.Generate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	m.logger.Debug("fit assessment response",
		zap.Int("response_length", utf8.RuneCountInString(completion.Text)),
		zap.String("response_preview", logger.TruncateForLog(completion.Text, m.maxLogLen)),
	)

	assessment, err := parseFitResponse(completion.Text)
	if err != nil {
		return nil, err
	}

	if m.minScore > 0 && assessment.Score < m.minScore {
		m.logger.Debug("set fit to false by score threshold",
			zap.Float64("score", assessment.Score),
			zap.Float64("threshold", m.minScore),
		)
		assessment.Fit = false
	}

	assessment.Raw = completion.Text
	return assessment, nil
}

// CoverLetterSnippet drafts a short cover-letter paragraph tailored to the
// job description. The reply is plain text, not JSON.
func (m *Assessor) CoverLetterSnippet(ctx context.Context, analysis *Analysis, prefs map[string]string, jobDescription string) (string, error) {
	prompt, err := buildJobPrompt(coverLetterPromptTemplate, analysis, prefs, jobDescription)
	if err != nil {
		return "", err
	}

	completion, err := m.generator.Generate(ctx, prompt)
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(completion.Text), nil
}

func buildJobPrompt(template string, analysis *Analysis, prefs map[string]string, jobDescription string) (string, error) {
	analysisJSON, err := json.MarshalIndent(analysis, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal analysis payload: %w", err)
	}

	prefsJSON, err := json.MarshalIndent(prefs, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal preferences payload: %w", err)
	}

	prompt := strings.ReplaceAll(template, "{{CV_ANALYSIS}}", string(analysisJSON))
	prompt = strings.ReplaceAll(prompt, "{{USER_PREFERENCES}}", string(prefsJSON))
	prompt = strings.ReplaceAll(prompt, "{{JOB_DESCRIPTION}}", jobDescription)
	return prompt, nil
}

func parseFitResponse(raw string) (*FitAssessment, error) {
	cleaned := extractJSON(raw)

	var data map[string]any
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		return nil, fmt.Errorf("parse fit response: %v: %w", err, ai.ErrInvalidResponse)
	}

	score := coerceFloat(data["fit_score"])
	if math.IsNaN(score) || score < 0 || score > 1 {
		return nil, fmt.Errorf("fit_score out of range: %w", ai.ErrInvalidResponse)
	}

	justification := coerceString(data["justification"])
	if justification == "" {
		return nil, fmt.Errorf("missing justification: %w", ai.ErrInvalidResponse)
	}

	return &FitAssessment{
		Fit:           score >= 0.5,
		Score:         score,
		Justification: justification,
	}, nil
}

func coerceFloat(v any) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case int:
		return float64(val)
	case string:
		trimmed := strings.TrimSpace(val)
		if trimmed == "" {
			return math.NaN()
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}

func coerceString(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case fmt.Stringer:
		return strings.TrimSpace(val.String())
	default:
		if v == nil {
			return ""
		}
		bytes, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(bytes)
	}
}
