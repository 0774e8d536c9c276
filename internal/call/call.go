package call

import (
	"crypto/rand"
	"fmt"
	"slices"
	"sync"
	"time"
)

// Status represents the lifecycle state of a call.
type Status string

const (
	StatusInitiated    Status = "initiated"
	StatusRinging      Status = "ringing"
	StatusConnected    Status = "connected"
	StatusDisconnected Status = "disconnected"
)

// Direction tells whether the call was placed locally or received.
type Direction string

const (
	DirectionOutgoing Direction = "outgoing"
	DirectionIncoming Direction = "incoming"
)

// ViewSize is the pixel size of a rendered video view.
type ViewSize struct {
	Height uint32 `json:"height"`
	Width  uint32 `json:"width"`
}

// Call is a single call owned by the session layer.
// All fields are guarded by mu; read them through Snapshot.
type Call struct {
	mu sync.RWMutex

	ID        string
	Remote    string
	Direction Direction

	status           Status
	disconnectReason DisconnectionType

	sendingVideo       bool
	sendingAudio       bool
	receivingVideo     bool
	receivingAudio     bool
	remoteSendingVideo bool
	remoteSendingAudio bool
	facingMode         FacingMode
	loudSpeaker        bool
	sendingDTMF        bool
	remoteView         ViewSize
	localView          ViewSize

	createdAt   time.Time
	connectedAt time.Time
	endedAt     time.Time

	done chan struct{}
}

// GenerateID creates a new call ID in the format call-{8 hex chars}.
func GenerateID() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return fmt.Sprintf("call-%x", b)
}

// New creates a call in StatusInitiated with audio and video flowing both ways
// and the front camera selected.
func New(remote string, dir Direction) *Call {
	if dir == "" {
		dir = DirectionOutgoing
	}
	return &Call{
		ID:                 GenerateID(),
		Remote:             remote,
		Direction:          dir,
		status:             StatusInitiated,
		sendingVideo:       true,
		sendingAudio:       true,
		receivingVideo:     true,
		receivingAudio:     true,
		remoteSendingVideo: true,
		remoteSendingAudio: true,
		facingMode:         FacingModeUser,
		createdAt:          time.Now(),
		done:               make(chan struct{}),
	}
}

// Done returns a channel that is closed once the call is disconnected.
func (c *Call) Done() <-chan struct{} {
	return c.done
}

// Status returns the current lifecycle state.
func (c *Call) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

// IsTerminal returns true once the call is disconnected.
func (c *Call) IsTerminal() bool {
	return c.Status() == StatusDisconnected
}

// SendingDTMFEnabled reports whether DTMF tones can currently be sent.
func (c *Call) SendingDTMFEnabled() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sendingDTMF
}

// Transition moves the call to next if its current status is one of from.
// It returns the status seen before the attempt and whether the call moved.
func (c *Call) Transition(next Status, from ...Status) (Status, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	prev := c.status
	if !slices.Contains(from, prev) {
		return prev, false
	}
	c.setStatusLocked(next)
	return prev, true
}

// Disconnect ends a live call with the given reason. It returns the status
// seen before the attempt, whether DTMF was enabled when it was cleared, and
// whether the call was still live.
func (c *Call) Disconnect(reason DisconnectionType) (prev Status, hadDTMF, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	prev = c.status
	if prev == StatusDisconnected {
		return prev, false, false
	}
	hadDTMF = c.sendingDTMF
	c.disconnectReason = reason
	c.setStatusLocked(StatusDisconnected)
	return prev, hadDTMF, true
}

func (c *Call) setStatusLocked(s Status) {
	c.status = s
	switch s {
	case StatusConnected:
		c.connectedAt = time.Now()
	case StatusDisconnected:
		c.endedAt = time.Now()
		c.sendingDTMF = false
		select {
		case <-c.done:
		default:
			close(c.done)
		}
	}
}

// SetSendingDTMF toggles DTMF capability and reports whether it changed.
// A disconnected call keeps DTMF disabled.
func (c *Call) SetSendingDTMF(on bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendingDTMF == on || (on && c.status == StatusDisconnected) {
		return false
	}
	c.sendingDTMF = on
	return true
}

// SetSendingVideo toggles the local video stream and reports whether it changed.
func (c *Call) SetSendingVideo(on bool) bool {
	return c.swap(&c.sendingVideo, on)
}

// SetSendingAudio toggles the local audio stream and reports whether it changed.
func (c *Call) SetSendingAudio(on bool) bool {
	return c.swap(&c.sendingAudio, on)
}

// SetLoudSpeaker selects or deselects the loudspeaker and reports whether it changed.
func (c *Call) SetLoudSpeaker(on bool) bool {
	return c.swap(&c.loudSpeaker, on)
}

// SetRemoteMedia applies a remote media flag change. The view size kind carries
// no flag and always reports a change.
func (c *Call) SetRemoteMedia(kind RemoteMediaChangeType, on bool) bool {
	switch kind {
	case RemoteMediaRemoteSendingVideo:
		return c.swap(&c.remoteSendingVideo, on)
	case RemoteMediaRemoteSendingAudio:
		return c.swap(&c.remoteSendingAudio, on)
	case RemoteMediaReceivingVideo:
		return c.swap(&c.receivingVideo, on)
	case RemoteMediaReceivingAudio:
		return c.swap(&c.receivingAudio, on)
	default:
		return true
	}
}

// SetFacingMode selects the camera and reports whether it changed.
func (c *Call) SetFacingMode(m FacingMode) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.facingMode == m {
		return false
	}
	c.facingMode = m
	return true
}

// SetRemoteView stores the size of the remote video view.
func (c *Call) SetRemoteView(height, width uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.remoteView = ViewSize{Height: height, Width: width}
}

// SetLocalView stores the size of the local preview.
func (c *Call) SetLocalView(height, width uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.localView = ViewSize{Height: height, Width: width}
}

func (c *Call) swap(field *bool, on bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if *field == on {
		return false
	}
	*field = on
	return true
}

// Snapshot returns a read-consistent copy of the call state.
func (c *Call) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return Snapshot{
		ID:                 c.ID,
		Remote:             c.Remote,
		Direction:          c.Direction,
		Status:             c.status,
		DisconnectReason:   c.disconnectReason,
		SendingVideo:       c.sendingVideo,
		SendingAudio:       c.sendingAudio,
		ReceivingVideo:     c.receivingVideo,
		ReceivingAudio:     c.receivingAudio,
		RemoteSendingVideo: c.remoteSendingVideo,
		RemoteSendingAudio: c.remoteSendingAudio,
		FacingMode:         c.facingMode,
		LoudSpeaker:        c.loudSpeaker,
		SendingDTMF:        c.sendingDTMF,
		RemoteView:         c.remoteView,
		LocalView:          c.localView,
		CreatedAt:          c.createdAt,
		ConnectedAt:        c.connectedAt,
		EndedAt:            c.endedAt,
	}
}

// Snapshot is a read-only copy of a Call's state at a point in time.
type Snapshot struct {
	ID                 string            `json:"id"`
	Remote             string            `json:"remote"`
	Direction          Direction         `json:"direction"`
	Status             Status            `json:"status"`
	DisconnectReason   DisconnectionType `json:"disconnect_reason,omitempty"`
	SendingVideo       bool              `json:"sending_video"`
	SendingAudio       bool              `json:"sending_audio"`
	ReceivingVideo     bool              `json:"receiving_video"`
	ReceivingAudio     bool              `json:"receiving_audio"`
	RemoteSendingVideo bool              `json:"remote_sending_video"`
	RemoteSendingAudio bool              `json:"remote_sending_audio"`
	FacingMode         FacingMode        `json:"facing_mode"`
	LoudSpeaker        bool              `json:"loud_speaker"`
	SendingDTMF        bool              `json:"sending_dtmf"`
	RemoteView         ViewSize          `json:"remote_view"`
	LocalView          ViewSize          `json:"local_view"`
	CreatedAt          time.Time         `json:"created_at"`
	ConnectedAt        time.Time         `json:"connected_at,omitzero"`
	EndedAt            time.Time         `json:"ended_at,omitzero"`
}

// Duration returns the connected time, up to now if the call is still up.
func (s Snapshot) Duration() time.Duration {
	if s.ConnectedAt.IsZero() {
		return 0
	}
	end := s.EndedAt
	if end.IsZero() {
		end = time.Now()
	}
	return end.Sub(s.ConnectedAt)
}

// FormatDuration returns a human-readable duration string.
func (s Snapshot) FormatDuration() string {
	d := s.Duration()
	if d < time.Second {
		return "< 1s"
	}
	minutes := int(d.Minutes())
	seconds := int(d.Seconds()) % 60
	if minutes > 0 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	return fmt.Sprintf("%ds", seconds)
}
