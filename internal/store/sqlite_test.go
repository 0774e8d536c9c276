package store

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/btouchard/switchboard/internal/call"
	"github.com/btouchard/switchboard/internal/notify"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteStore_Migration_CreatesTablesAndVersion(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	var version int
	err := s.db.QueryRow("SELECT MAX(version) FROM schema_version").Scan(&version)
	require.NoError(t, err)
	assert.Equal(t, len(migrations), version)
}

func TestSQLiteStore_UpsertAndGetCall(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	now := time.Now()
	rec := &CallRecord{
		ID:        "call-abc12345",
		Remote:    "alice@example.com",
		Direction: "outgoing",
		Status:    "initiated",
		CreatedAt: now,
	}
	require.NoError(t, s.UpsertCall(rec))

	got, err := s.GetCall("call-abc12345")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", got.Remote)
	assert.Equal(t, "outgoing", got.Direction)
	assert.Equal(t, "initiated", got.Status)
	assert.True(t, now.Equal(got.CreatedAt), "created_at should round-trip")
	assert.True(t, got.EndedAt.IsZero())

	rec.Status = "disconnected"
	rec.DisconnectReason = "remote_left"
	rec.ConnectedAt = now.Add(time.Second)
	rec.EndedAt = now.Add(time.Minute)
	require.NoError(t, s.UpsertCall(rec))

	got, err = s.GetCall("call-abc12345")
	require.NoError(t, err)
	assert.Equal(t, "disconnected", got.Status)
	assert.Equal(t, "remote_left", got.DisconnectReason)
	assert.True(t, rec.EndedAt.Equal(got.EndedAt))
}

func TestSQLiteStore_GetCall_NotFound(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	_, err := s.GetCall("call-nonexist")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func seedCalls(t *testing.T, s *SQLiteStore) time.Time {
	t.Helper()
	base := time.Now().Add(-time.Hour)
	for i, r := range []struct {
		id, remote, status string
	}{
		{"call-00000001", "alice", "disconnected"},
		{"call-00000002", "bob", "connected"},
		{"call-00000003", "alice", "ringing"},
	} {
		require.NoError(t, s.UpsertCall(&CallRecord{
			ID:        r.id,
			Remote:    r.remote,
			Direction: "outgoing",
			Status:    r.status,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}
	return base
}

func TestSQLiteStore_ListCalls_Filters(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	base := seedCalls(t, s)

	all, err := s.ListCalls(CallFilter{Status: "all"})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "call-00000003", all[0].ID, "newest first")

	byStatus, err := s.ListCalls(CallFilter{Status: "connected"})
	require.NoError(t, err)
	require.Len(t, byStatus, 1)
	assert.Equal(t, "bob", byStatus[0].Remote)

	byRemote, err := s.ListCalls(CallFilter{Remote: "alice"})
	require.NoError(t, err)
	assert.Len(t, byRemote, 2)

	limited, err := s.ListCalls(CallFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	since, err := s.ListCalls(CallFilter{Since: base.Add(90 * time.Second)})
	require.NoError(t, err)
	require.Len(t, since, 1)
	assert.Equal(t, "call-00000003", since[0].ID)
}

func TestSQLiteStore_AddAndGetEvents(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	seedCalls(t, s)

	for _, kind := range []string{"call.ringing", "call.connected", "call.disconnected"} {
		e := &CallEvent{CallID: "call-00000001", EventType: kind, Message: kind, CreatedAt: time.Now()}
		require.NoError(t, s.AddEvent(e))
		assert.NotZero(t, e.ID)
	}

	events, err := s.GetEvents("call-00000001", 0)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, "call.disconnected", events[0].EventType, "newest first")

	limited, err := s.GetEvents("call-00000001", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	none, err := s.GetEvents("call-00000002", 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSQLiteStore_GetAverageCallDuration(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	avg, count, err := s.GetAverageCallDuration("")
	require.NoError(t, err)
	assert.Equal(t, time.Duration(0), avg)
	assert.Equal(t, 0, count)

	start := time.Now().Add(-time.Hour)
	for i, d := range []time.Duration{time.Minute, 3 * time.Minute} {
		require.NoError(t, s.UpsertCall(&CallRecord{
			ID:          call.GenerateID(),
			Remote:      "alice",
			Direction:   "outgoing",
			Status:      "disconnected",
			CreatedAt:   start.Add(time.Duration(i) * time.Second),
			ConnectedAt: start,
			EndedAt:     start.Add(d),
		}))
	}

	avg, count, err = s.GetAverageCallDuration("alice")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Equal(t, 2*time.Minute, avg)

	_, count, err = s.GetAverageCallDuration("bob")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestSQLiteStore_Cleanup_RemovesOldEndedCalls(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	old := time.Now().Add(-48 * time.Hour)
	require.NoError(t, s.UpsertCall(&CallRecord{
		ID: "call-old00001", Remote: "a", Direction: "outgoing", Status: "disconnected",
		CreatedAt: old, EndedAt: old,
	}))
	require.NoError(t, s.AddEvent(&CallEvent{CallID: "call-old00001", EventType: "call.disconnected", CreatedAt: old}))
	require.NoError(t, s.UpsertCall(&CallRecord{
		ID: "call-live0001", Remote: "b", Direction: "outgoing", Status: "connected",
		CreatedAt: old,
	}))

	n, err := s.Cleanup(time.Now().Add(-24 * time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = s.GetCall("call-old00001")
	require.ErrorIs(t, err, ErrNotFound)
	events, err := s.GetEvents("call-old00001", 0)
	require.NoError(t, err)
	assert.Empty(t, events)

	_, err = s.GetCall("call-live0001")
	require.NoError(t, err, "calls that never ended are kept")
}

func TestNewSQLiteStore_SetsFilePermissions(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "switchboard.db")
	s, err := NewSQLiteStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	dirInfo, err := os.Stat(filepath.Dir(path))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0700), dirInfo.Mode().Perm())
}

func TestNewSQLiteStore_FixesLoosePermissions(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "switchboard.db")
	require.NoError(t, os.WriteFile(path, nil, 0644))

	s, err := NewSQLiteStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestRecorder_PersistsCallAndEvents(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	rec := NewRecorder(s)

	c := call.New("alice", call.DirectionIncoming)
	rec.Notify(notify.Event{Kind: notify.EventCallRinging, Call: c.Snapshot(), At: time.Now()})
	_, ok := c.Transition(call.StatusConnected, call.StatusInitiated)
	require.True(t, ok)
	rec.Notify(notify.Event{Kind: notify.EventCallConnected, Call: c.Snapshot(), At: time.Now()})

	got, err := s.GetCall(c.ID)
	require.NoError(t, err)
	assert.Equal(t, "connected", got.Status)
	assert.Equal(t, "incoming", got.Direction)
	assert.False(t, got.ConnectedAt.IsZero())

	events, err := s.GetEvents(c.ID, 0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "call.connected", events[0].EventType)
	assert.Equal(t, "call with alice connected", events[0].Message)
}

func TestRecordFromSnapshot(t *testing.T) {
	t.Parallel()

	c := call.New("bob", call.DirectionOutgoing)
	c.Disconnect(call.DisconnectRemoteDecline)

	rec := RecordFromSnapshot(c.Snapshot())
	assert.Equal(t, c.ID, rec.ID)
	assert.Equal(t, "disconnected", rec.Status)
	assert.Equal(t, "remote_decline", rec.DisconnectReason)
	assert.False(t, rec.EndedAt.IsZero())
}
