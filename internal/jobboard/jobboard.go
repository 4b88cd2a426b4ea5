// Package jobboard will search job boards for openings matching a compiled
// profile. The search itself is not built yet; the conversation layer treats
// it as an optional collaborator.
package jobboard

import (
	"context"
	"errors"

	"github.com/spigell/job-agent/internal/profile"
)

// ErrNotImplemented is returned while the board integrations are pending.
var ErrNotImplemented = errors.New("job board search is not implemented yet")

// Listing is a single job opening returned by a search.
type Listing struct {
	Title       string
	Company     string
	URL         string
	Description string
}

// Searcher finds openings for the given profile and preferences.
type Searcher interface {
	Search(ctx context.Context, analysis *profile.Analysis, prefs map[string]string) ([]Listing, error)
}

// Unimplemented is the placeholder Searcher wired in until real board
// clients land.
type Unimplemented struct{}

func (Unimplemented) Search(context.Context, *profile.Analysis, map[string]string) ([]Listing, error) {
	return nil, ErrNotImplemented
}
