package store

import (
	"log/slog"
	"time"

	"github.com/btouchard/switchboard/internal/call"
	"github.com/btouchard/switchboard/internal/notify"
)

// Recorder is a notify.Notifier that persists every call event and keeps the
// call row in step with the latest snapshot.
type Recorder struct {
	store Store
}

// NewRecorder creates a Recorder writing to s.
func NewRecorder(s Store) *Recorder {
	return &Recorder{store: s}
}

// Notify records the event. Storage errors are logged, not returned: a failed
// write must not break call handling.
func (r *Recorder) Notify(event notify.Event) {
	if err := r.store.UpsertCall(RecordFromSnapshot(event.Call)); err != nil {
		slog.Error("recording call failed",
			"call_id", event.Call.ID,
			"event", string(event.Kind),
			"error", err)
		return
	}

	e := &CallEvent{
		CallID:    event.Call.ID,
		EventType: string(event.Kind),
		Message:   event.Message(),
		CreatedAt: event.At,
	}
	if err := r.store.AddEvent(e); err != nil {
		slog.Error("recording call event failed",
			"call_id", event.Call.ID,
			"event", string(event.Kind),
			"error", err)
	}
}

// RecordFromSnapshot converts an in-memory call snapshot into its stored form.
func RecordFromSnapshot(s call.Snapshot) *CallRecord {
	return &CallRecord{
		ID:               s.ID,
		Remote:           s.Remote,
		Direction:        string(s.Direction),
		Status:           string(s.Status),
		DisconnectReason: string(s.DisconnectReason),
		CreatedAt:        s.CreatedAt,
		ConnectedAt:      s.ConnectedAt,
		EndedAt:          s.EndedAt,
	}
}

// StartCleanupLoop periodically deletes calls older than retention until done
// is closed.
func StartCleanupLoop(done <-chan struct{}, s Store, retention, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			n, err := s.Cleanup(time.Now().Add(-retention))
			if err != nil {
				slog.Warn("call history cleanup failed", "error", err)
				continue
			}
			if n > 0 {
				slog.Info("call history cleaned", "removed", n)
			}
		case <-done:
			return
		}
	}
}
