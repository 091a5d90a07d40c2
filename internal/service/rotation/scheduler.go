package rotation

import (
	"log"
	"time"

	"github.com/smartattend/backend/internal/domain"
)

// Registry is the slice of the token registry the scheduler drives.
type Registry interface {
	ActiveSessionIDs() []string
	Rotate(sessionID string) (domain.TokenUpdate, error)
	ExpireAll() int
}

// BroadcastSink receives every freshly minted token. Implementations must
// bound their own write time; a slow display connection must never stall a
// tick.
type BroadcastSink interface {
	Publish(sessionID string, update domain.TokenUpdate)
}

// StaleSessionStore lets the startup sweep settle sessions a previous
// process left ACTIVE in the database. Token state is process-local, so an
// ACTIVE row without registry state is unserveable and gets expired.
type StaleSessionStore interface {
	ExpireStaleActive() (int64, error)
}

// Scheduler is the periodic driver of token rotation. It owns no lifecycle
// decisions: it rotates whatever the registry currently holds and fans each
// new token out to the sink.
type Scheduler struct {
	registry Registry
	sink     BroadcastSink
	store    StaleSessionStore
	interval time.Duration
	stop     chan struct{}
}

func NewScheduler(registry Registry, sink BroadcastSink, store StaleSessionStore, interval time.Duration) *Scheduler {
	return &Scheduler{
		registry: registry,
		sink:     sink,
		store:    store,
		interval: interval,
		stop:     make(chan struct{}),
	}
}

// Start runs the one-time stale-session sweep and begins ticking in the
// background.
func (s *Scheduler) Start() {
	s.sweep()

	ticker := time.NewTicker(s.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.tick()
			case <-s.stop:
				return
			}
		}
	}()
	log.Printf("[ROTATION] Scheduler started (%s interval)", s.interval)
}

// Stop halts the ticker. Already-running tick work completes.
func (s *Scheduler) Stop() {
	close(s.stop)
	log.Println("[ROTATION] Scheduler stopped")
}

// sweep reclaims state left over from a previous process lifetime.
func (s *Scheduler) sweep() {
	if n := s.registry.ExpireAll(); n > 0 {
		log.Printf("[ROTATION] Startup sweep dropped %d leftover registry entries", n)
	}
	if s.store == nil {
		return
	}
	n, err := s.store.ExpireStaleActive()
	if err != nil {
		log.Printf("[ROTATION] Startup sweep failed to settle stale sessions: %v", err)
		return
	}
	if n > 0 {
		log.Printf("[ROTATION] Startup sweep expired %d stale active sessions", n)
	}
}

// tick rotates every registered session. One session's failure (ended
// mid-tick, registry race) is logged and never aborts the rest of the
// sweep.
func (s *Scheduler) tick() {
	for _, sessionID := range s.registry.ActiveSessionIDs() {
		update, err := s.registry.Rotate(sessionID)
		if err != nil {
			log.Printf("[ROTATION] Rotate failed for session %s: %v", sessionID, err)
			continue
		}
		s.sink.Publish(sessionID, update)
	}
}
