package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"voicefit/log"
)

const (
	// snapshotVersion guards against silent corruption when the
	// persisted schema changes. A mismatch is treated like a corrupt
	// file: empty store, failure logged.
	snapshotVersion = 1

	snapshotFileMode = 0o600
	snapshotDirMode  = 0o700
	tempFilePattern  = ".sessions-*.json.tmp"
)

type snapshot struct {
	Version  int              `json:"version"`
	Sessions []WorkoutSession `json:"sessions"`
}

// Store owns the canonical session list, mirrored to a JSON snapshot on
// every mutation. Load failures recover to an empty store; write
// failures are returned so the UI can warn without losing the in-memory
// state.
type Store struct {
	path string

	mu       sync.RWMutex
	sessions []WorkoutSession
	now      func() time.Time
	newID    func() string
}

// Open loads the snapshot at path. A missing, corrupt, or
// wrong-version snapshot yields an empty store and a log entry, never
// an error.
func Open(path string) *Store {
	s := &Store{
		path:  path,
		now:   time.Now,
		newID: uuid.NewString,
	}
	s.load()
	return s
}

func (s *Store) load() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.StoreLoadError(s.path, err)
		}
		return
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		log.StoreLoadError(s.path, err)
		return
	}
	if snap.Version != snapshotVersion {
		log.StoreLoadError(s.path, fmt.Errorf("snapshot version %d, want %d", snap.Version, snapshotVersion))
		return
	}

	for i := range snap.Sessions {
		if snap.Sessions[i].Exercises == nil {
			snap.Sessions[i].Exercises = []Exercise{}
		}
	}
	s.sessions = snap.Sessions
}

// List returns a copy of all sessions. Order is insertion order
// (newest first); consumers sort as needed.
func (s *Store) List() []WorkoutSession {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]WorkoutSession, len(s.sessions))
	copy(out, s.sessions)
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Add assigns a fresh identifier and creation timestamp, prepends the
// session, and persists the whole collection. The returned session is
// the stored value. A persistence error does not roll back the
// in-memory addition.
func (s *Store) Add(draft Draft) (WorkoutSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	exercises := draft.Exercises
	if exercises == nil {
		exercises = []Exercise{}
	}
	sess := WorkoutSession{
		ID:               s.newID(),
		Date:             draft.Date,
		Exercises:        exercises,
		RawTranscription: draft.RawTranscription,
		Notes:            draft.Notes,
		CreatedAt:        s.now().UnixMilli(),
	}
	s.sessions = append([]WorkoutSession{sess}, s.sessions...)

	if err := s.persist(); err != nil {
		log.StoreWriteError(s.path, err)
		return sess, fmt.Errorf("persisting sessions: %w", err)
	}
	log.SessionSaved(sess.ID, sess.Date, len(sess.Exercises))
	return sess, nil
}

// Delete removes the session with the given identifier. Deleting an
// unknown identifier is a no-op, not an error.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i := range s.sessions {
		if s.sessions[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}
	s.sessions = append(s.sessions[:idx], s.sessions[idx+1:]...)

	if err := s.persist(); err != nil {
		log.StoreWriteError(s.path, err)
		return fmt.Errorf("persisting sessions: %w", err)
	}
	log.SessionDeleted(id)
	return nil
}

// persist re-serializes the full collection to the snapshot file via a
// temp file + rename so a partial write never clobbers the snapshot.
// Caller holds s.mu.
func (s *Store) persist() error {
	data, err := json.MarshalIndent(snapshot{
		Version:  snapshotVersion,
		Sessions: s.sessions,
	}, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, snapshotDirMode); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, tempFilePattern)
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, snapshotFileMode); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
