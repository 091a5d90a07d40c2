package rotation

import (
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/smartattend/backend/internal/domain"
)

type fakeRotationRegistry struct {
	mu       sync.Mutex
	active   []string
	failures map[string]error
	rotated  map[string]int64
	expired  int
}

func (f *fakeRotationRegistry) ActiveSessionIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.active...)
}

func (f *fakeRotationRegistry) Rotate(sessionID string) (domain.TokenUpdate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failures[sessionID]; ok {
		return domain.TokenUpdate{}, err
	}
	if f.rotated == nil {
		f.rotated = make(map[string]int64)
	}
	f.rotated[sessionID]++
	return domain.TokenUpdate{SessionID: sessionID, Sequence: f.rotated[sessionID] + 1}, nil
}

func (f *fakeRotationRegistry) ExpireAll() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.expired++
	n := len(f.active)
	f.active = nil
	return n
}

type fakeSink struct {
	mu        sync.Mutex
	published []domain.TokenUpdate
}

func (f *fakeSink) Publish(sessionID string, update domain.TokenUpdate) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, update)
}

func (f *fakeSink) sessionIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, 0, len(f.published))
	for _, u := range f.published {
		ids = append(ids, u.SessionID)
	}
	sort.Strings(ids)
	return ids
}

type fakeStore struct {
	expired int64
	err     error
	calls   int
}

func (f *fakeStore) ExpireStaleActive() (int64, error) {
	f.calls++
	return f.expired, f.err
}

func TestTickRotatesAndPublishesEverySession(t *testing.T) {
	t.Parallel()
	registry := &fakeRotationRegistry{active: []string{"SESS_A", "SESS_B", "SESS_C"}}
	sink := &fakeSink{}
	s := NewScheduler(registry, sink, nil, time.Second)

	s.tick()

	want := []string{"SESS_A", "SESS_B", "SESS_C"}
	got := sink.sessionIDs()
	if len(got) != len(want) {
		t.Fatalf("published %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("published %v, want %v", got, want)
		}
	}
}

func TestTickIsolatesPerSessionFailures(t *testing.T) {
	t.Parallel()
	registry := &fakeRotationRegistry{
		active:   []string{"SESS_A", "SESS_B", "SESS_C"},
		failures: map[string]error{"SESS_B": errors.New("session ended mid-tick")},
	}
	sink := &fakeSink{}
	s := NewScheduler(registry, sink, nil, time.Second)

	s.tick()

	got := sink.sessionIDs()
	if len(got) != 2 || got[0] != "SESS_A" || got[1] != "SESS_C" {
		t.Errorf("published %v, want [SESS_A SESS_C]", got)
	}
}

func TestStartupSweep(t *testing.T) {
	t.Parallel()
	registry := &fakeRotationRegistry{active: []string{"SESS_LEFTOVER"}}
	store := &fakeStore{expired: 2}
	s := NewScheduler(registry, &fakeSink{}, store, time.Hour)

	s.sweep()

	if registry.expired != 1 {
		t.Errorf("registry ExpireAll calls: got %d, want 1", registry.expired)
	}
	if store.calls != 1 {
		t.Errorf("store sweep calls: got %d, want 1", store.calls)
	}
	if len(registry.ActiveSessionIDs()) != 0 {
		t.Error("leftover registry entries survived the sweep")
	}
}

func TestStartupSweepSurvivesStoreError(t *testing.T) {
	t.Parallel()
	store := &fakeStore{err: errors.New("db unreachable")}
	s := NewScheduler(&fakeRotationRegistry{}, &fakeSink{}, store, time.Hour)

	// Must not panic or abort; the error is logged and startup proceeds.
	s.sweep()

	if store.calls != 1 {
		t.Errorf("store sweep calls: got %d, want 1", store.calls)
	}
}

func TestStartStopTicks(t *testing.T) {
	t.Parallel()
	registry := &fakeRotationRegistry{}
	registry.active = []string{"SESS_A"}
	// ExpireAll in Start's sweep clears the set; re-add after Start.
	sink := &fakeSink{}
	s := NewScheduler(registry, sink, nil, 10*time.Millisecond)

	s.Start()
	registry.mu.Lock()
	registry.active = []string{"SESS_A"}
	registry.mu.Unlock()

	time.Sleep(50 * time.Millisecond)
	s.Stop()

	registry.mu.Lock()
	rotations := registry.rotated["SESS_A"]
	registry.mu.Unlock()
	if rotations == 0 {
		t.Error("no rotations observed while scheduler was running")
	}
}
