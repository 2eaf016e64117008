// Package workspace holds the per-session quiz state: the uploaded source
// text, the current item list and an optional API key.
package workspace

import (
	"context"
	"errors"
	"sync"
	"time"

	"docquiz/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var ErrNotFound = errors.New("workspace not found")

// Workspace is one user's editing state.
type Workspace struct {
	ID        string
	Source    *models.Source
	Items     []models.QuizItem
	APIKey    string
	Warnings  []string
	UpdatedAt time.Time
}

// HasSource reports whether a document has been uploaded.
func (w *Workspace) HasSource() bool {
	return w.Source != nil && w.Source.Text != ""
}

// SourceText returns the extracted text, or "" before any upload.
func (w *Workspace) SourceText() string {
	if w.Source == nil {
		return ""
	}
	return w.Source.Text
}

func (w *Workspace) clone() *Workspace {
	c := *w
	if w.Source != nil {
		src := *w.Source
		c.Source = &src
	}
	c.Items = models.CloneItems(w.Items)
	if w.Warnings != nil {
		c.Warnings = append([]string(nil), w.Warnings...)
	}
	return &c
}

// Store keeps workspaces in memory and drops the ones left idle for
// longer than the configured timeout.
type Store struct {
	mu         sync.Mutex
	workspaces map[string]*Workspace
	idle       time.Duration
	log        *zap.Logger

	now func() time.Time
}

// NewStore creates a Store. An idle timeout of zero keeps workspaces
// until they are deleted.
func NewStore(idle time.Duration, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{
		workspaces: make(map[string]*Workspace),
		idle:       idle,
		log:        log.Named("workspace"),
		now:        time.Now,
	}
}

// Create starts an empty workspace and returns a copy of it.
func (s *Store) Create() *Workspace {
	s.mu.Lock()
	defer s.mu.Unlock()

	w := &Workspace{ID: uuid.NewString(), UpdatedAt: s.now()}
	s.workspaces[w.ID] = w
	s.log.Debug("Workspace created", zap.String("workspace_id", w.ID))
	return w.clone()
}

// Get returns a copy of the workspace. Changes to the copy are not
// stored; use Update for that.
func (s *Store) Get(id string) (*Workspace, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.live(id)
	if !ok {
		return nil, ErrNotFound
	}
	return w.clone(), nil
}

// Update runs fn on the stored workspace under the store lock. When fn
// returns an error the workspace is left as it was.
func (s *Store) Update(id string, fn func(w *Workspace) error) (*Workspace, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.live(id)
	if !ok {
		return nil, ErrNotFound
	}

	draft := w.clone()
	if err := fn(draft); err != nil {
		return nil, err
	}
	draft.ID = w.ID
	draft.UpdatedAt = s.now()
	s.workspaces[id] = draft
	return draft.clone(), nil
}

// Delete drops the workspace. Deleting an unknown ID is a no-op.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.workspaces, id)
}

// Len returns the number of stored workspaces, expired ones included.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.workspaces)
}

// Sweep removes idle workspaces and returns how many were removed.
func (s *Store) Sweep() int {
	if s.idle <= 0 {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-s.idle)
	removed := 0
	for id, w := range s.workspaces {
		if w.UpdatedAt.Before(cutoff) {
			delete(s.workspaces, id)
			removed++
		}
	}
	if removed > 0 {
		s.log.Info("Expired idle workspaces", zap.Int("removed", removed), zap.Int("remaining", len(s.workspaces)))
	}
	return removed
}

// Run sweeps every interval until ctx is done.
func (s *Store) Run(ctx context.Context, every time.Duration) {
	if every <= 0 {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// live must be called with s.mu held.
func (s *Store) live(id string) (*Workspace, bool) {
	w, ok := s.workspaces[id]
	if !ok {
		return nil, false
	}
	if s.idle > 0 && w.UpdatedAt.Before(s.now().Add(-s.idle)) {
		delete(s.workspaces, id)
		return nil, false
	}
	return w, true
}
