package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/btouchard/switchboard/internal/auth"
	"github.com/btouchard/switchboard/internal/call"
	"github.com/btouchard/switchboard/internal/notify"
	"github.com/btouchard/switchboard/internal/session"
	"github.com/btouchard/switchboard/internal/store"
)

const testToken = "test-token"

type testEnv struct {
	router http.Handler
	calls  *session.Manager
	store  *store.SQLiteStore
}

func newTestEnv(t *testing.T, maxActive int) *testEnv {
	t.Helper()

	st, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	center := notify.NewCenter()
	fwd := notify.NewForwarder(store.NewRecorder(st))
	notify.Register(center, fwd)
	t.Cleanup(func() { runtime.KeepAlive(fwd) })

	calls := session.NewManager(center, maxActive)
	router := NewRouter(&Deps{
		Calls:   calls,
		History: st,
		Auth:    auth.NewVerifier(testToken),
		MCP: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		}),
	})
	return &testEnv{router: router, calls: calls, store: st}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+testToken)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeSnapshot(t *testing.T, rec *httptest.ResponseRecorder) call.Snapshot {
	t.Helper()
	var snap call.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap), rec.Body.String())
	return snap
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body["error"]
}

func (e *testEnv) dial(t *testing.T, remote string) call.Snapshot {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/calls", `{"remote":"`+remote+`"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeSnapshot(t, rec)
}

func TestHealth_IsPublic(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, 4)

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestAPI_RequiresToken(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, 4)

	for _, path := range []string{"/api/calls", "/mcp"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Authorization", "Bearer wrong")
		rec := httptest.NewRecorder()
		env.router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
}

func TestMCP_MountedBehindToken(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, 4)

	rec := env.do(t, http.MethodPost, "/mcp", `{}`)
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestCreateCall_OutgoingAndIncoming(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, 4)

	out := env.dial(t, "alice")
	assert.Equal(t, call.StatusInitiated, out.Status)
	assert.Equal(t, call.DirectionOutgoing, out.Direction)

	rec := env.do(t, http.MethodPost, "/api/calls", `{"remote":"bob","direction":"incoming"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, call.DirectionIncoming, decodeSnapshot(t, rec).Direction)
}

func TestCreateCall_BadInput(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, 4)

	tests := []struct {
		name string
		body string
	}{
		{"empty remote", `{"remote":"  "}`},
		{"unknown direction", `{"remote":"a","direction":"sideways"}`},
		{"unknown field", `{"remote":"a","colour":"red"}`},
		{"not json", `remote=a`},
	}
	for _, tt := range tests {
		rec := env.do(t, http.MethodPost, "/api/calls", tt.body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, tt.name)
		assert.NotEmpty(t, errorMessage(t, rec), tt.name)
	}
}

func TestCreateCall_LimitReached(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, 1)

	env.dial(t, "alice")
	rec := env.do(t, http.MethodPost, "/api/calls", `{"remote":"bob"}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestCallLifecycle_OverHTTP(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, 4)

	snap := env.dial(t, "alice")
	base := "/api/calls/" + snap.ID

	rec := env.do(t, http.MethodPost, base+"/ring", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, call.StatusRinging, decodeSnapshot(t, rec).Status)

	rec = env.do(t, http.MethodPost, base+"/answer", "")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeSnapshot(t, rec)
	assert.Equal(t, call.StatusConnected, got.Status)
	assert.True(t, got.SendingDTMF)

	rec = env.do(t, http.MethodPost, base+"/media", `{"video":false}`)
	require.Equal(t, http.StatusOK, rec.Code)
	got = decodeSnapshot(t, rec)
	assert.False(t, got.SendingVideo)
	assert.True(t, got.SendingAudio)

	rec = env.do(t, http.MethodPost, base+"/remote-media", `{"kind":"remote_sending_audio","on":false}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decodeSnapshot(t, rec).RemoteSendingAudio)

	rec = env.do(t, http.MethodPost, base+"/camera", `{"facing_mode":"environment"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, call.FacingModeEnvironment, decodeSnapshot(t, rec).FacingMode)

	rec = env.do(t, http.MethodPost, base+"/speaker", `{"on":true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeSnapshot(t, rec).LoudSpeaker)

	rec = env.do(t, http.MethodPost, base+"/view-size", `{"view":"remote","height":720,"width":1280}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, call.ViewSize{Height: 720, Width: 1280}, decodeSnapshot(t, rec).RemoteView)

	rec = env.do(t, http.MethodPost, base+"/dtmf-send", `{"digits":"12#"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, base+"/dtmf", `{"on":false}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decodeSnapshot(t, rec).SendingDTMF)

	rec = env.do(t, http.MethodPost, base+"/dtmf-send", `{"digits":"1"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(t, http.MethodPost, base+"/hangup", `{"reason":"remote_left"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	got = decodeSnapshot(t, rec)
	assert.Equal(t, call.StatusDisconnected, got.Status)
	assert.Equal(t, call.DisconnectRemoteLeft, got.DisconnectReason)

	rec = env.do(t, http.MethodPost, base+"/speaker", `{"on":false}`)
	assert.Equal(t, http.StatusConflict, rec.Code, "terminal calls reject changes")

	rec = env.do(t, http.MethodGet, base+"/events", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Events []store.CallEvent `json:"events"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotEmpty(t, body.Events)
	assert.Equal(t, string(notify.EventCallDisconnected), body.Events[0].EventType, "DTMF was already off, so disconnect is last")
	assert.Equal(t, string(notify.EventDTMFChanged), body.Events[1].EventType)
}

func TestMedia_AppliesVideoAndAudioTogether(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, 4)

	snap := env.dial(t, "alice")
	base := "/api/calls/" + snap.ID

	rec := env.do(t, http.MethodPost, base+"/media", `{"video":false,"audio":false}`)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeSnapshot(t, rec)
	assert.False(t, got.SendingVideo)
	assert.False(t, got.SendingAudio)

	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, base+"/hangup", "").Code)

	rec = env.do(t, http.MethodPost, base+"/media", `{"video":true,"audio":true}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	c, err := env.calls.Get(snap.ID)
	require.NoError(t, err)
	after := c.Snapshot()
	assert.False(t, after.SendingVideo, "rejected request leaves video untouched")
	assert.False(t, after.SendingAudio, "rejected request leaves audio untouched")
}

func TestHangup_EmptyBodyDefaultsToLocalLeft(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, 4)

	snap := env.dial(t, "alice")
	rec := env.do(t, http.MethodPost, "/api/calls/"+snap.ID+"/hangup", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, call.DisconnectLocalLeft, decodeSnapshot(t, rec).DisconnectReason)
}

func TestActions_ErrorMapping(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, 4)

	snap := env.dial(t, "alice")
	base := "/api/calls/" + snap.ID

	tests := []struct {
		name   string
		path   string
		body   string
		status int
	}{
		{"unknown call", "/api/calls/call-nonexist/ring", "", http.StatusNotFound},
		{"bad hangup reason", base + "/hangup", `{"reason":"bored"}`, http.StatusBadRequest},
		{"view size kind via remote-media", base + "/remote-media", `{"kind":"remote_video_view_size","on":true}`, http.StatusBadRequest},
		{"bad facing mode", base + "/camera", `{"facing_mode":"sideways"}`, http.StatusBadRequest},
		{"zero view size", base + "/view-size", `{"view":"local","height":0,"width":10}`, http.StatusBadRequest},
		{"bad view", base + "/view-size", `{"view":"both","height":1,"width":1}`, http.StatusBadRequest},
		{"speaker missing on", base + "/speaker", `{}`, http.StatusBadRequest},
		{"media empty", base + "/media", `{}`, http.StatusBadRequest},
		{"dtmf before connect", base + "/dtmf-send", `{"digits":"1"}`, http.StatusConflict},
		{"bad dtmf digits", base + "/dtmf-send", `{"digits":"9x"}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		rec := env.do(t, http.MethodPost, tt.path, tt.body)
		assert.Equal(t, tt.status, rec.Code, "%s: %s", tt.name, rec.Body.String())
	}

	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, base+"/answer", "").Code)
	rec := env.do(t, http.MethodPost, base+"/ring", "")
	assert.Equal(t, http.StatusConflict, rec.Code, "cannot ring a connected call")
	assert.Contains(t, errorMessage(t, rec), "invalid call state transition")
}

func TestListCalls_FiltersAndLimit(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, 4)

	a := env.dial(t, "alice")
	env.dial(t, "bob")
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/api/calls/"+a.ID+"/answer", "").Code)

	var body struct {
		Calls []call.Snapshot `json:"calls"`
	}

	rec := env.do(t, http.MethodGet, "/api/calls?status=connected", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Calls, 1)
	assert.Equal(t, a.ID, body.Calls[0].ID)

	rec = env.do(t, http.MethodGet, "/api/calls?limit=1", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Calls, 1)

	rec = env.do(t, http.MethodGet, "/api/calls?remote=nobody", "")
	assert.JSONEq(t, `{"calls":[]}`, rec.Body.String())

	rec = env.do(t, http.MethodGet, "/api/calls?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetCall_FallsBackToHistory(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, 4)

	snap := env.dial(t, "alice")
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/api/calls/"+snap.ID+"/ring", "").Code)
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/api/calls/"+snap.ID+"/hangup", `{"reason":"local_cancel"}`).Code)

	rec := env.do(t, http.MethodGet, "/api/calls/"+snap.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, call.StatusDisconnected, decodeSnapshot(t, rec).Status)

	require.Equal(t, 1, env.calls.PruneEnded(-time.Second))

	rec = env.do(t, http.MethodGet, "/api/calls/"+snap.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var stored store.CallRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stored))
	assert.Equal(t, "disconnected", stored.Status)
	assert.Equal(t, "local_cancel", stored.DisconnectReason)

	rec = env.do(t, http.MethodGet, "/api/calls/call-nonexist", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetEvents_BadLimit(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, 4)

	rec := env.do(t, http.MethodGet, "/api/calls/call-aaaaaaaa/events?limit=0", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/calls/call-aaaaaaaa/events", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"call_id":"call-aaaaaaaa","events":[]}`, rec.Body.String())
}
