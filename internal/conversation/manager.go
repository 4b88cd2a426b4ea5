package conversation

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"github.com/spigell/job-agent/internal/document"
	"github.com/spigell/job-agent/internal/jobboard"
	"github.com/spigell/job-agent/internal/profile"
)

// User-visible message texts.
const (
	msgWelcome = "Welcome to the Job Application Agent!\n\n" +
		"I can help you find and apply for jobs. To begin, please upload your CV " +
		"(PDF or DOCX format).\n\n" +
		"You can send /cancel at any time to stop our current conversation."
	msgHelp = "Here's how to use the Job Application Agent:\n" +
		"- /start: begin the process by uploading your CV.\n" +
		"- /cancel: stop the current operation.\n" +
		"- /help: show this help message.\n\n" +
		"Simply follow the prompts after starting. I'll guide you through!"
	msgUploadPrompt      = "Please upload your CV as a PDF or DOCX document."
	msgStartPrompt       = "Send /start to begin, then upload your CV as a PDF or DOCX document."
	msgUnsupportedFormat = "Unsupported file type. Please upload your CV in PDF or DOCX format."
	msgParseFailure      = "I couldn't read that file. Please try a different CV or make sure it isn't corrupted."
	msgNoText            = "I couldn't extract any text from your CV. It might be an image-based file or corrupted. Please try a different CV file."
	msgAnalyzing         = "Received your CV. Analyzing it with AI to understand your skills and experience..."
	msgModelFailure      = "There was an issue with the AI model while processing your CV. Please try again later by sending /start."
	msgQuestionsIntro    = "Great! Let's clarify a few things to personalize your job search."
	msgAnswerCurrent     = "We're in the middle of your preference questions. Please answer the question above, or send /cancel to start over."
	msgQuestionsDone     = "Thanks! That's all the questions I have for now."
	msgProfileSaved      = "I have your preferences. I'll start looking for suitable jobs soon! (Job searching functionality is under development.)"
	msgProfileOnlySaved  = "I have analyzed your CV and saved your profile. For now, I don't have any further questions."
	msgSaveFailure       = "I couldn't save your profile just now. Send me any message and I'll try again."
	msgInconsistent      = "Hmm, something went wrong with the questions. Let's restart: please upload your CV again."
	msgCancelled         = "Okay, the current operation has been cancelled. You can start over by sending /start anytime."
	msgNothingToCancel   = "There's nothing in progress to cancel. Send /start to begin."
)

// Replier delivers outbound messages to the user. The chat transport
// implements it.
type Replier interface {
	Send(userID int64, text string) error
}

// TextExtractor turns an uploaded document into plain text.
type TextExtractor interface {
	ExtractText(doc document.RawDocument) (document.ExtractedText, error)
}

// ProfileAnalyzer runs the model-backed extraction steps.
type ProfileAnalyzer interface {
	Analyze(ctx context.Context, text string) (*profile.Analysis, error)
	GenerateQuestions(ctx context.Context, analysis *profile.Analysis) ([]string, error)
}

// ProfileStore persists the compiled profile at session end.
type ProfileStore interface {
	SaveProfile(userID string, analysis *profile.Analysis, prefs map[string]string) error
}

// userSlot pairs a session with the mutex serializing that user's turns.
type userSlot struct {
	mu      sync.Mutex
	session *session
}

// Manager owns every active session and applies one inbound event per user
// at a time. Turns for different users proceed independently.
type Manager struct {
	extractor TextExtractor
	analyzer  ProfileAnalyzer
	store     ProfileStore
	searcher  jobboard.Searcher
	replier   Replier
	logger    *zap.Logger

	mu    sync.Mutex
	slots map[int64]*userSlot
}

func NewManager(extractor TextExtractor, analyzer ProfileAnalyzer, store ProfileStore, searcher jobboard.Searcher, replier Replier, log *zap.Logger) *Manager {
	return &Manager{
		extractor: extractor,
		analyzer:  analyzer,
		store:     store,
		searcher:  searcher,
		replier:   replier,
		logger:    log,
		slots:     make(map[int64]*userSlot),
	}
}

func (m *Manager) slot(userID int64) *userSlot {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.slots[userID]
	if !ok {
		s = &userSlot{}
		m.slots[userID] = s
	}
	return s
}

// HandleStart begins a fresh session, discarding any previous one.
func (m *Manager) HandleStart(ctx context.Context, userID int64) State {
	slot := m.slot(userID)
	slot.mu.Lock()
	defer slot.mu.Unlock()

	slot.session = newSession()
	m.logger.Info("session started", zap.Int64("user_id", userID))

	m.send(userID, msgWelcome)
	return slot.session.state
}

// HandleHelp replies with usage instructions. Session state is untouched.
func (m *Manager) HandleHelp(_ context.Context, userID int64) {
	m.send(userID, msgHelp)
}

// HandleCancel discards the user's session data from any non-terminal state.
func (m *Manager) HandleCancel(_ context.Context, userID int64) State {
	slot := m.slot(userID)
	slot.mu.Lock()
	defer slot.mu.Unlock()

	if slot.session == nil {
		m.send(userID, msgNothingToCancel)
		return StateCancelled
	}

	slot.session = nil
	m.logger.Info("session cancelled", zap.Int64("user_id", userID))

	m.send(userID, msgCancelled)
	return StateCancelled
}

// HandleDocument runs the full ingestion pipeline: extraction, analysis and
// question generation, all synchronously within the turn.
func (m *Manager) HandleDocument(ctx context.Context, userID int64, data []byte, filename string) State {
	slot := m.slot(userID)
	slot.mu.Lock()
	defer slot.mu.Unlock()

	if slot.session == nil {
		m.send(userID, msgStartPrompt)
		return StateCancelled
	}
	sess := slot.session

	if sess.state == StateAwaitingAnswers {
		m.send(userID, msgAnswerCurrent)
		return sess.state
	}

	log := m.logger.With(zap.Int64("user_id", userID), zap.String("filename", filename))

	extracted, err := m.extractor.ExtractText(document.RawDocument{Data: data, Filename: filename})
	if err != nil {
		// Document-layer errors are recoverable in place.
		switch {
		case errors.Is(err, document.ErrUnsupportedFormat):
			log.Warn("unsupported document format")
			m.send(userID, msgUnsupportedFormat)
		default:
			log.Error("document extraction failed", zap.Error(err))
			m.send(userID, msgParseFailure)
		}
		return sess.state
	}

	if extracted.Empty() {
		log.Warn("document produced no usable text")
		m.send(userID, msgNoText)
		return sess.state
	}

	m.send(userID, msgAnalyzing)

	analysis, err := m.analyzer.Analyze(ctx, extracted.Text)
	if err != nil {
		return m.failSession(slot, userID, "resume analysis failed", err)
	}

	questions, err := m.analyzer.GenerateQuestions(ctx, analysis)
	if err != nil {
		return m.failSession(slot, userID, "question generation failed", err)
	}

	sess.analysis = analysis

	if len(questions) == 0 {
		log.Info("no clarification questions, persisting profile only")
		return m.complete(ctx, slot, userID, msgProfileOnlySaved)
	}

	sess.questions = questions
	sess.answers = make(map[string]string, len(questions))
	sess.next = 0
	sess.state = StateAwaitingAnswers

	log.Info("asking clarification questions", zap.Int("count", len(questions)))

	m.send(userID, msgQuestionsIntro)
	m.send(userID, questions[0])
	return sess.state
}

// HandleMessage records an answer during the Q&A loop. Outside that loop it
// only nudges the user toward the next expected action.
func (m *Manager) HandleMessage(ctx context.Context, userID int64, text string) State {
	slot := m.slot(userID)
	slot.mu.Lock()
	defer slot.mu.Unlock()

	sess := slot.session
	if sess == nil {
		m.send(userID, msgStartPrompt)
		return StateCancelled
	}

	if sess.awaitingPersist {
		doneMsg := msgProfileSaved
		if sess.state == StateAwaitingDocument {
			doneMsg = msgProfileOnlySaved
		}
		return m.complete(ctx, slot, userID, doneMsg)
	}

	if sess.state == StateAwaitingDocument {
		m.send(userID, msgUploadPrompt)
		return sess.state
	}

	if len(sess.questions) == 0 || sess.next >= len(sess.questions) {
		// Inconsistent state: recover by starting the ingestion over.
		m.logger.Warn("answer received with no pending question",
			zap.Int64("user_id", userID),
			zap.Int("question_count", len(sess.questions)),
			zap.Int("index", sess.next),
		)
		slot.session = newSession()
		m.send(userID, msgInconsistent)
		return slot.session.state
	}

	question := sess.questions[sess.next]
	sess.answers[answerKey(sess.next, question)] = text
	sess.next++

	m.logger.Info("recorded answer",
		zap.Int64("user_id", userID),
		zap.Int("question", sess.next),
		zap.Int("remaining", len(sess.questions)-sess.next),
	)

	if sess.next < len(sess.questions) {
		m.send(userID, sess.questions[sess.next])
		return sess.state
	}

	m.send(userID, msgQuestionsDone)
	return m.complete(ctx, slot, userID, msgProfileSaved)
}

// complete persists the compiled profile and ends the session. On storage
// failure the session is retained so the next message can retry.
func (m *Manager) complete(ctx context.Context, slot *userSlot, userID int64, doneMsg string) State {
	sess := slot.session

	prefs := sess.answers
	if prefs == nil {
		prefs = map[string]string{}
	}

	if err := m.store.SaveProfile(strconv.FormatInt(userID, 10), sess.analysis, prefs); err != nil {
		m.logger.Error("persisting profile failed", zap.Int64("user_id", userID), zap.Error(err))
		sess.awaitingPersist = true
		m.send(userID, msgSaveFailure)
		return sess.state
	}

	m.logger.Info("session completed",
		zap.Int64("user_id", userID),
		zap.Int("preferences", len(prefs)),
	)

	m.send(userID, doneMsg)
	m.kickOffSearch(ctx, userID, sess.analysis, prefs)

	slot.session = nil
	return StateCompleted
}

// failSession handles terminal model/config errors: the user gets one generic
// failure message and the session ends without persisting anything.
func (m *Manager) failSession(slot *userSlot, userID int64, msg string, err error) State {
	m.logger.Error(msg, zap.Int64("user_id", userID), zap.Error(err))
	slot.session = nil
	m.send(userID, msgModelFailure)
	return StateCancelled
}

func (m *Manager) kickOffSearch(ctx context.Context, userID int64, analysis *profile.Analysis, prefs map[string]string) {
	if m.searcher == nil {
		return
	}

	_, err := m.searcher.Search(ctx, analysis, prefs)
	if errors.Is(err, jobboard.ErrNotImplemented) {
		m.logger.Info("job board search pending implementation", zap.Int64("user_id", userID))
		return
	}
	if err != nil {
		m.logger.Error("job board search failed", zap.Int64("user_id", userID), zap.Error(err))
	}
}

func (m *Manager) send(userID int64, text string) {
	if err := m.replier.Send(userID, text); err != nil {
		m.logger.Error("sending reply failed", zap.Int64("user_id", userID), zap.Error(err))
	}
}
