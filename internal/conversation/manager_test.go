package conversation

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spigell/job-agent/internal/ai"
	"github.com/spigell/job-agent/internal/document"
	"github.com/spigell/job-agent/internal/jobboard"
	"github.com/spigell/job-agent/internal/profile"
)

type fakeReplier struct {
	messages []string
	err      error
}

func (f *fakeReplier) Send(_ int64, text string) error {
	f.messages = append(f.messages, text)
	return f.err
}

func (f *fakeReplier) last() string {
	if len(f.messages) == 0 {
		return ""
	}
	return f.messages[len(f.messages)-1]
}

type fakeExtractor struct {
	text string
	err  error
}

func (f *fakeExtractor) ExtractText(doc document.RawDocument) (document.ExtractedText, error) {
	if f.err != nil {
		return document.ExtractedText{}, f.err
	}
	return document.ExtractedText{Text: f.text, Filename: doc.Filename}, nil
}

type fakeAnalyzer struct {
	analysis     *profile.Analysis
	analyzeErr   error
	questions    []string
	questionsErr error
}

func (f *fakeAnalyzer) Analyze(context.Context, string) (*profile.Analysis, error) {
	if f.analyzeErr != nil {
		return nil, f.analyzeErr
	}
	return f.analysis, nil
}

func (f *fakeAnalyzer) GenerateQuestions(context.Context, *profile.Analysis) ([]string, error) {
	if f.questionsErr != nil {
		return nil, f.questionsErr
	}
	return f.questions, nil
}

type savedProfile struct {
	userID   string
	analysis *profile.Analysis
	prefs    map[string]string
}

type fakeStore struct {
	saves    []savedProfile
	failures int
}

func (f *fakeStore) SaveProfile(userID string, analysis *profile.Analysis, prefs map[string]string) error {
	if f.failures > 0 {
		f.failures--
		return fmt.Errorf("disk full: %w", errors.New("write failed"))
	}
	f.saves = append(f.saves, savedProfile{userID: userID, analysis: analysis, prefs: prefs})
	return nil
}

type fakeSearcher struct {
	calls   int
	lastCtx context.Context
}

func (f *fakeSearcher) Search(ctx context.Context, _ *profile.Analysis, _ map[string]string) ([]jobboard.Listing, error) {
	f.calls++
	f.lastCtx = ctx
	return nil, jobboard.ErrNotImplemented
}

type fixture struct {
	manager   *Manager
	replier   *fakeReplier
	extractor *fakeExtractor
	analyzer  *fakeAnalyzer
	store     *fakeStore
	searcher  *fakeSearcher
}

func newFixture() *fixture {
	f := &fixture{
		replier:   &fakeReplier{},
		extractor: &fakeExtractor{text: "resume text"},
		analyzer: &fakeAnalyzer{
			analysis:  &profile.Analysis{Summary: "dev"},
			questions: []string{"Preferred location?", "Salary expectations?"},
		},
		store:    &fakeStore{},
		searcher: &fakeSearcher{},
	}
	f.manager = NewManager(f.extractor, f.analyzer, f.store, f.searcher, f.replier, zap.NewNop())
	return f
}

func TestFullConversationFlow(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	state := f.manager.HandleStart(ctx, 42)
	assert.Equal(t, StateAwaitingDocument, state)

	state = f.manager.HandleDocument(ctx, 42, []byte("pdf"), "resume.pdf")
	require.Equal(t, StateAwaitingAnswers, state)
	assert.Contains(t, f.replier.messages, "Preferred location?")

	state = f.manager.HandleMessage(ctx, 42, "Berlin or remote")
	require.Equal(t, StateAwaitingAnswers, state)
	assert.Equal(t, "Salary expectations?", f.replier.last())

	state = f.manager.HandleMessage(ctx, 42, "90k EUR")
	require.Equal(t, StateCompleted, state)

	require.Len(t, f.store.saves, 1, "profile must be persisted exactly once")
	saved := f.store.saves[0]
	assert.Equal(t, "42", saved.userID)
	assert.Equal(t, "dev", saved.analysis.Summary)
	assert.Equal(t, map[string]string{
		answerKey(0, "Preferred location?"): "Berlin or remote",
		answerKey(1, "Salary expectations?"): "90k EUR",
	}, saved.prefs)

	assert.Equal(t, 1, f.searcher.calls)

	// The session is gone; the next message is a fresh-start nudge.
	f.manager.HandleMessage(ctx, 42, "hello again")
	assert.Equal(t, msgStartPrompt, f.replier.last())
	assert.Len(t, f.store.saves, 1)
}

func TestDocumentErrorsAreRecoverable(t *testing.T) {
	ctx := context.Background()

	t.Run("unsupported format", func(t *testing.T) {
		f := newFixture()
		f.extractor.err = fmt.Errorf(".txt: %w", document.ErrUnsupportedFormat)

		f.manager.HandleStart(ctx, 1)
		state := f.manager.HandleDocument(ctx, 1, []byte("x"), "resume.txt")

		assert.Equal(t, StateAwaitingDocument, state)
		assert.Equal(t, msgUnsupportedFormat, f.replier.last())
	})

	t.Run("extraction failure", func(t *testing.T) {
		f := newFixture()
		f.extractor.err = fmt.Errorf("resume.pdf: bad xref: %w", document.ErrExtractionFailed)

		f.manager.HandleStart(ctx, 1)
		state := f.manager.HandleDocument(ctx, 1, []byte("x"), "resume.pdf")

		assert.Equal(t, StateAwaitingDocument, state)
		assert.Equal(t, msgParseFailure, f.replier.last())
	})

	t.Run("no usable text", func(t *testing.T) {
		f := newFixture()
		f.extractor.text = ""

		f.manager.HandleStart(ctx, 1)
		state := f.manager.HandleDocument(ctx, 1, []byte("x"), "scan.pdf")

		assert.Equal(t, StateAwaitingDocument, state)
		assert.Equal(t, msgNoText, f.replier.last())
	})

	// After a recoverable error a good upload still succeeds.
	f := newFixture()
	f.manager.HandleStart(ctx, 1)
	f.extractor.err = fmt.Errorf(".txt: %w", document.ErrUnsupportedFormat)
	f.manager.HandleDocument(ctx, 1, []byte("x"), "resume.txt")

	f.extractor.err = nil
	state := f.manager.HandleDocument(ctx, 1, []byte("x"), "resume.pdf")
	assert.Equal(t, StateAwaitingAnswers, state)
}

func TestModelErrorsEndTheSession(t *testing.T) {
	ctx := context.Background()

	t.Run("analysis fails", func(t *testing.T) {
		f := newFixture()
		f.analyzer.analyzeErr = fmt.Errorf("model: %w", ai.ErrGenerationFailed)

		f.manager.HandleStart(ctx, 1)
		state := f.manager.HandleDocument(ctx, 1, []byte("x"), "resume.pdf")

		assert.Equal(t, StateCancelled, state)
		assert.Equal(t, msgModelFailure, f.replier.last())
		assert.Empty(t, f.store.saves)

		// Session is discarded, not stuck.
		f.manager.HandleMessage(ctx, 1, "hello?")
		assert.Equal(t, msgStartPrompt, f.replier.last())
	})

	t.Run("question generation fails", func(t *testing.T) {
		f := newFixture()
		f.analyzer.questionsErr = fmt.Errorf("model: %w", ai.ErrInvalidResponse)

		f.manager.HandleStart(ctx, 1)
		state := f.manager.HandleDocument(ctx, 1, []byte("x"), "resume.pdf")

		assert.Equal(t, StateCancelled, state)
		assert.Empty(t, f.store.saves)
	})
}

func TestNoQuestionsPersistsProfileImmediately(t *testing.T) {
	f := newFixture()
	f.analyzer.questions = nil
	ctx := context.Background()

	f.manager.HandleStart(ctx, 7)
	state := f.manager.HandleDocument(ctx, 7, []byte("x"), "resume.pdf")

	assert.Equal(t, StateCompleted, state)
	require.Len(t, f.store.saves, 1)
	assert.Equal(t, "7", f.store.saves[0].userID)
	assert.Empty(t, f.store.saves[0].prefs)
	assert.Equal(t, 1, f.searcher.calls)
}

func TestCancelDiscardsSessionData(t *testing.T) {
	ctx := context.Background()

	t.Run("while awaiting document", func(t *testing.T) {
		f := newFixture()
		f.manager.HandleStart(ctx, 1)

		state := f.manager.HandleCancel(ctx, 1)
		assert.Equal(t, StateCancelled, state)
		assert.Equal(t, msgCancelled, f.replier.last())
		assert.Empty(t, f.store.saves)
	})

	t.Run("while awaiting answers", func(t *testing.T) {
		f := newFixture()
		f.manager.HandleStart(ctx, 1)
		f.manager.HandleDocument(ctx, 1, []byte("x"), "resume.pdf")
		f.manager.HandleMessage(ctx, 1, "first answer")

		state := f.manager.HandleCancel(ctx, 1)
		assert.Equal(t, StateCancelled, state)
		assert.Empty(t, f.store.saves, "cancel must not persist partial answers")

		f.manager.HandleMessage(ctx, 1, "late answer")
		assert.Equal(t, msgStartPrompt, f.replier.last())
		assert.Empty(t, f.store.saves)
	})

	t.Run("nothing in progress", func(t *testing.T) {
		f := newFixture()
		f.manager.HandleCancel(ctx, 1)
		assert.Equal(t, msgNothingToCancel, f.replier.last())
	})
}

func TestSearchReceivesTurnContext(t *testing.T) {
	f := newFixture()

	type ctxKey struct{}
	ctx := context.WithValue(context.Background(), ctxKey{}, "turn")

	f.manager.HandleStart(ctx, 1)
	f.manager.HandleDocument(ctx, 1, []byte("x"), "resume.pdf")
	f.manager.HandleMessage(ctx, 1, "a1")
	state := f.manager.HandleMessage(ctx, 1, "a2")

	require.Equal(t, StateCompleted, state)
	require.NotNil(t, f.searcher.lastCtx)
	assert.Equal(t, "turn", f.searcher.lastCtx.Value(ctxKey{}))
}

func TestDocumentWithoutSessionRequiresStart(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	state := f.manager.HandleDocument(ctx, 1, []byte("x"), "resume.pdf")
	assert.Equal(t, StateCancelled, state)
	assert.Equal(t, msgStartPrompt, f.replier.last())
	assert.Empty(t, f.store.saves)
}

func TestMessageOutsideQALoopNudges(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.manager.HandleMessage(ctx, 1, "hi")
	assert.Equal(t, msgStartPrompt, f.replier.last())

	f.manager.HandleStart(ctx, 1)
	f.manager.HandleMessage(ctx, 1, "here is my cv pasted as text")
	assert.Equal(t, msgUploadPrompt, f.replier.last())
	assert.Empty(t, f.store.saves)
}

func TestDocumentDuringQALoopIsRejected(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.manager.HandleStart(ctx, 1)
	f.manager.HandleDocument(ctx, 1, []byte("x"), "resume.pdf")

	state := f.manager.HandleDocument(ctx, 1, []byte("y"), "other.pdf")
	assert.Equal(t, StateAwaitingAnswers, state)
	assert.Equal(t, msgAnswerCurrent, f.replier.last())
}

func TestStartDuringQALoopRestarts(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.manager.HandleStart(ctx, 1)
	f.manager.HandleDocument(ctx, 1, []byte("x"), "resume.pdf")
	f.manager.HandleMessage(ctx, 1, "answer one")

	state := f.manager.HandleStart(ctx, 1)
	assert.Equal(t, StateAwaitingDocument, state)

	// Old answers are gone; a fresh run collects only the new ones.
	f.manager.HandleDocument(ctx, 1, []byte("x"), "resume.pdf")
	f.manager.HandleMessage(ctx, 1, "new first")
	f.manager.HandleMessage(ctx, 1, "new second")

	require.Len(t, f.store.saves, 1)
	assert.Equal(t, map[string]string{
		answerKey(0, "Preferred location?"): "new first",
		answerKey(1, "Salary expectations?"): "new second",
	}, f.store.saves[0].prefs)
}

func TestStorageFailureRetriesOnNextMessage(t *testing.T) {
	f := newFixture()
	f.store.failures = 1
	ctx := context.Background()

	f.manager.HandleStart(ctx, 1)
	f.manager.HandleDocument(ctx, 1, []byte("x"), "resume.pdf")
	f.manager.HandleMessage(ctx, 1, "answer one")
	state := f.manager.HandleMessage(ctx, 1, "answer two")

	assert.Equal(t, StateAwaitingAnswers, state, "session must survive the failed write")
	assert.Equal(t, msgSaveFailure, f.replier.last())
	assert.Empty(t, f.store.saves)

	state = f.manager.HandleMessage(ctx, 1, "anything")
	assert.Equal(t, StateCompleted, state)

	require.Len(t, f.store.saves, 1)
	prefs := f.store.saves[0].prefs
	assert.Len(t, prefs, 2, "the retry trigger must not be recorded as an answer")
	assert.Equal(t, "answer two", prefs[answerKey(1, "Salary expectations?")])
}

func TestInconsistentSessionRecovers(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	// A session claiming to await answers with no questions loaded.
	slot := f.manager.slot(1)
	slot.session = &session{state: StateAwaitingAnswers}

	state := f.manager.HandleMessage(ctx, 1, "answer to nothing")
	assert.Equal(t, StateAwaitingDocument, state)
	assert.Equal(t, msgInconsistent, f.replier.last())
	assert.Empty(t, f.store.saves)
}

func TestUsersAreIndependent(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.manager.HandleStart(ctx, 1)
	f.manager.HandleStart(ctx, 2)
	f.manager.HandleDocument(ctx, 1, []byte("x"), "resume.pdf")

	// User 2 is still waiting for a document.
	state := f.manager.HandleMessage(ctx, 2, "some text")
	assert.Equal(t, StateAwaitingDocument, state)

	// User 1 finishes independently.
	f.manager.HandleMessage(ctx, 1, "a1")
	state = f.manager.HandleMessage(ctx, 1, "a2")
	assert.Equal(t, StateCompleted, state)

	require.Len(t, f.store.saves, 1)
	assert.Equal(t, "1", f.store.saves[0].userID)
}

func TestAnswerKey(t *testing.T) {
	assert.Equal(t, "q01_preferred_location", answerKey(0, "Preferred location?"))
	assert.Equal(t, "q03_salary_expectations", answerKey(2, "Salary expectations?"))
	assert.Equal(t, "q01_answer", answerKey(0, "???"))

	long := answerKey(0, "What kind of company culture and team size do you thrive in the most")
	assert.LessOrEqual(t, len(long), 4+32)
}
