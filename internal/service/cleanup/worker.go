package cleanup

import (
	"log"
	"time"

	"github.com/smartattend/backend/internal/config"
)

// LoginSessionStore purges stale login sessions.
type LoginSessionStore interface {
	CleanupOldSessions(olderThanDays int) (int64, error)
}

type Worker struct {
	Store LoginSessionStore
}

func NewWorker(store LoginSessionStore) *Worker {
	return &Worker{Store: store}
}

// Start initiates the background ticker
func (w *Worker) Start() {
	go w.runCleanup()

	// Then run periodically (every 1 hour)
	ticker := time.NewTicker(1 * time.Hour)
	go func() {
		for range ticker.C {
			w.runCleanup()
		}
	}()
	log.Println("[CLEANUP] Background worker started")
}

// runCleanup executes the actual cleanup logic
func (w *Worker) runCleanup() {
	log.Println("[CLEANUP] Starting scheduled cleanup task...")

	deletedCount, err := w.Store.CleanupOldSessions(config.AppConfig.AuthSessionDays)
	if err != nil {
		log.Printf("[CLEANUP] Error cleaning up login sessions: %v", err)
	} else {
		if deletedCount > 0 {
			log.Printf("[CLEANUP] Removed %d expired login sessions from database", deletedCount)
		}
	}
}
