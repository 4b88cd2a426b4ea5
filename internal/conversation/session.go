// Package conversation drives the per-user dialogue that turns an uploaded
// resume into a persisted profile with job preferences.
package conversation

import (
	"fmt"
	"strings"

	"github.com/spigell/job-agent/internal/profile"
)

// State identifies where a session stands in the dialogue.
type State int

const (
	// StateAwaitingDocument waits for a resume upload.
	StateAwaitingDocument State = iota
	// StateAwaitingAnswers collects clarification answers one turn at a time.
	StateAwaitingAnswers
	// StateCompleted is terminal: the profile has been persisted.
	StateCompleted
	// StateCancelled is terminal: the session was abandoned, nothing persisted.
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateAwaitingDocument:
		return "awaiting_document"
	case StateAwaitingAnswers:
		return "awaiting_answers"
	case StateCompleted:
		return "completed"
	case StateCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// session holds in-progress dialogue data for one user. The session owns this
// data exclusively; it is discarded when the session reaches a terminal state.
type session struct {
	state State

	analysis  *profile.Analysis
	questions []string
	answers   map[string]string
	// next is the index of the question currently awaiting an answer.
	next int
	// awaitingPersist is set when every answer is collected but the final
	// write failed; the next inbound message retries it.
	awaitingPersist bool
}

func newSession() *session {
	return &session{state: StateAwaitingDocument}
}

// answerKey derives a stable label for an answer from the question's position
// and text, e.g. "q03_salary_expectations".
func answerKey(index int, question string) string {
	const maxSlugLen = 32

	var b strings.Builder
	for _, r := range strings.ToLower(question) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '-', r == '_':
			b.WriteRune('_')
		}
		if b.Len() >= maxSlugLen {
			break
		}
	}

	slug := strings.Trim(b.String(), "_")
	if slug == "" {
		slug = "answer"
	}

	return fmt.Sprintf("q%02d_%s", index+1, slug)
}
