// Package store persists user profiles and application history as JSON files
// under a configurable storage root.
package store

import (
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/job-agent/internal/profile"
)

// ErrStorage is the generic persistence-layer error kind. Every failure
// surfaced by this package wraps it.
var ErrStorage = errors.New("storage failure")

const (
	profilesDir     = "user_profiles"
	applicationsDir = "job_applications"
)

// now is swapped by tests that pin timestamps.
var now = time.Now

// UserProfileRecord is the durable per-user record written at session end.
type UserProfileRecord struct {
	UserID      string            `json:"user_id"`
	Analysis    *profile.Analysis `json:"cv_analysis"`
	Preferences map[string]string `json:"preferences"`
	LastUpdated time.Time         `json:"last_updated"`
}

// ApplicationRecord tracks one job application for a user.
type ApplicationRecord struct {
	JobID     string            `json:"job_id"`
	Details   map[string]string `json:"details"`
	Status    Status            `json:"status"`
	AppliedAt time.Time         `json:"applied_at"`
	UpdatedAt time.Time         `json:"last_updated_status_at"`
}

type applicationHistory struct {
	Applications []ApplicationRecord `json:"applications"`
}

// JobID derives a stable identifier from a canonical job reference (usually
// its URL).
func JobID(ref string) string {
	sum := sha256.Sum256([]byte(ref))
	return fmt.Sprintf("%x", sum[:8])
}

// FileStore keeps one profile file and one application-history file per user.
// Writes go through a temp file plus rename, so each write is atomic from the
// caller's perspective. Turns for one user never overlap (the conversation
// manager serializes them), so no file locking is needed.
type FileStore struct {
	root   string
	logger *zap.Logger
}

// NewFileStore creates the storage directories if they do not exist.
func NewFileStore(root string, log *zap.Logger) (*FileStore, error) {
	for _, dir := range []string{profilesDir, applicationsDir} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0o755); err != nil {
			return nil, fmt.Errorf("create storage directory %s: %v: %w", dir, err, ErrStorage)
		}
	}

	return &FileStore{root: root, logger: log}, nil
}

// SaveProfile creates or overwrites the user's profile record wholesale.
func (s *FileStore) SaveProfile(userID string, analysis *profile.Analysis, prefs map[string]string) error {
	record := UserProfileRecord{
		UserID:      userID,
		Analysis:    analysis,
		Preferences: prefs,
		LastUpdated: now().UTC(),
	}

	if err := s.writeJSON(s.profilePath(userID), record); err != nil {
		return err
	}

	s.logger.Info("stored user profile", zap.String("user_id", userID))
	return nil
}

// LoadProfile returns the user's profile record, or nil when none exists.
func (s *FileStore) LoadProfile(userID string) (*UserProfileRecord, error) {
	var record UserProfileRecord
	found, err := s.readJSON(s.profilePath(userID), &record)
	if err != nil || !found {
		return nil, err
	}
	return &record, nil
}

// LogApplication records a job application, upserting by job ID. On update
// the details and status are replaced while the original applied_at is
// preserved.
func (s *FileStore) LogApplication(userID, jobID string, details map[string]string, status Status) error {
	history, err := s.loadHistory(userID)
	if err != nil {
		return err
	}

	ts := now().UTC()
	entry := ApplicationRecord{
		JobID:     jobID,
		Details:   details,
		Status:    status,
		AppliedAt: ts,
		UpdatedAt: ts,
	}

	updated := false
	for i, existing := range history.Applications {
		if existing.JobID == jobID {
			entry.AppliedAt = existing.AppliedAt
			history.Applications[i] = entry
			updated = true
			break
		}
	}
	if !updated {
		history.Applications = append(history.Applications, entry)
	}

	if err := s.writeJSON(s.historyPath(userID), history); err != nil {
		return err
	}

	s.logger.Info("logged job application",
		zap.String("user_id", userID),
		zap.String("job_id", jobID),
		zap.String("status", string(entry.Status)),
		zap.Bool("updated_existing", updated),
	)
	return nil
}

// UpdateStatus changes the status of an existing application. It returns
// false, without touching storage, when the job ID is unknown.
func (s *FileStore) UpdateStatus(userID, jobID string, status Status) (bool, error) {
	history, err := s.loadHistory(userID)
	if err != nil {
		return false, err
	}

	for i := range history.Applications {
		if history.Applications[i].JobID != jobID {
			continue
		}

		history.Applications[i].Status = status
		history.Applications[i].UpdatedAt = now().UTC()

		if err := s.writeJSON(s.historyPath(userID), history); err != nil {
			return false, err
		}
		return true, nil
	}

	s.logger.Warn("status update for unknown application",
		zap.String("user_id", userID),
		zap.String("job_id", jobID),
	)
	return false, nil
}

// ListApplications returns the user's application history, oldest first.
// A user without history gets an empty list.
func (s *FileStore) ListApplications(userID string) ([]ApplicationRecord, error) {
	history, err := s.loadHistory(userID)
	if err != nil {
		return nil, err
	}
	return history.Applications, nil
}

func (s *FileStore) profilePath(userID string) string {
	return filepath.Join(s.root, profilesDir, userID+"_profile.json")
}

func (s *FileStore) historyPath(userID string) string {
	return filepath.Join(s.root, applicationsDir, userID+"_applications.json")
}

func (s *FileStore) loadHistory(userID string) (*applicationHistory, error) {
	var history applicationHistory
	if _, err := s.readJSON(s.historyPath(userID), &history); err != nil {
		return nil, err
	}
	return &history, nil
}

func (s *FileStore) readJSON(path string, target any) (bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read %s: %v: %w", path, err, ErrStorage)
	}

	if err := json.Unmarshal(data, target); err != nil {
		return false, fmt.Errorf("decode %s: %v: %w", path, err, ErrStorage)
	}
	return true, nil
}

func (s *FileStore) writeJSON(path string, data any) error {
	payload, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %v: %w", path, err, ErrStorage)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %v: %w", path, err, ErrStorage)
	}

	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %v: %w", path, err, ErrStorage)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close %s: %v: %w", path, err, ErrStorage)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace %s: %v: %w", path, err, ErrStorage)
	}
	return nil
}
