package workspace

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"docquiz/internal/models"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestStore(idle time.Duration) (*Store, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	s := NewStore(idle, zap.NewNop())
	s.now = clock.Now
	return s, clock
}

func TestCreateAndGet(t *testing.T) {
	s, _ := newTestStore(time.Hour)
	w := s.Create()
	require.NotEmpty(t, w.ID)
	assert.False(t, w.HasSource())
	assert.Equal(t, "", w.SourceText())

	got, err := s.Get(w.ID)
	require.NoError(t, err)
	assert.Equal(t, w.ID, got.ID)

	_, err = s.Get("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetReturnsCopy(t *testing.T) {
	s, _ := newTestStore(time.Hour)
	w := s.Create()
	_, err := s.Update(w.ID, func(w *Workspace) error {
		w.Items = []models.QuizItem{{Question: "Q", Options: []string{"a", "b", "c", "d"}}}
		w.Source = &models.Source{Name: "doc.txt", Text: "hello"}
		return nil
	})
	require.NoError(t, err)

	got, err := s.Get(w.ID)
	require.NoError(t, err)
	got.Items[0].Options[0] = "changed"
	got.Source.Text = "changed"

	again, err := s.Get(w.ID)
	require.NoError(t, err)
	assert.Equal(t, "a", again.Items[0].Options[0])
	assert.Equal(t, "hello", again.SourceText())
	assert.True(t, again.HasSource())
}

func TestUpdateErrorLeavesStateUnchanged(t *testing.T) {
	s, _ := newTestStore(time.Hour)
	w := s.Create()
	_, err := s.Update(w.ID, func(w *Workspace) error {
		w.APIKey = "first"
		return nil
	})
	require.NoError(t, err)

	boom := errors.New("boom")
	_, err = s.Update(w.ID, func(w *Workspace) error {
		w.APIKey = "second"
		w.Items = append(w.Items, models.QuizItem{Question: "Q"})
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := s.Get(w.ID)
	require.NoError(t, err)
	assert.Equal(t, "first", got.APIKey)
	assert.Empty(t, got.Items)
}

func TestUpdateKeepsID(t *testing.T) {
	s, clock := newTestStore(time.Hour)
	w := s.Create()
	clock.Advance(time.Minute)

	got, err := s.Update(w.ID, func(w *Workspace) error {
		w.ID = "hijack"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, w.ID, got.ID)
	assert.Equal(t, clock.Now(), got.UpdatedAt)

	_, err = s.Update("missing", func(*Workspace) error { return nil })
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDelete(t *testing.T) {
	s, _ := newTestStore(time.Hour)
	w := s.Create()
	s.Delete(w.ID)
	s.Delete(w.ID)
	_, err := s.Get(w.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Zero(t, s.Len())
}

func TestIdleExpiry(t *testing.T) {
	s, clock := newTestStore(time.Hour)
	stale := s.Create()
	clock.Advance(50 * time.Minute)
	fresh := s.Create()
	clock.Advance(20 * time.Minute)

	_, err := s.Get(stale.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Get(fresh.ID)
	assert.NoError(t, err)

	clock.Advance(2 * time.Hour)
	assert.Equal(t, 1, s.Sweep())
	assert.Zero(t, s.Len())
}

func TestSweepWithoutTimeout(t *testing.T) {
	s, clock := newTestStore(0)
	w := s.Create()
	clock.Advance(1000 * time.Hour)
	assert.Zero(t, s.Sweep())
	_, err := s.Get(w.ID)
	assert.NoError(t, err)
}

func TestRunStopsWithContext(t *testing.T) {
	s, _ := newTestStore(time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx, time.Millisecond)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestConcurrentUpdates(t *testing.T) {
	s, _ := newTestStore(time.Hour)
	w := s.Create()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.Update(w.ID, func(w *Workspace) error {
				w.Items = append(w.Items, models.QuizItem{Question: "Q"})
				return nil
			})
		}()
	}
	wg.Wait()

	got, err := s.Get(w.ID)
	require.NoError(t, err)
	assert.Len(t, got.Items, 50)
}
