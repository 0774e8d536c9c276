package session

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/btouchard/switchboard/internal/call"
)

var (
	ErrNotFound          = errors.New("call not found")
	ErrInvalidTransition = errors.New("invalid call state transition")
	ErrLimitReached      = errors.New("active call limit reached")
	ErrDTMFDisabled      = errors.New("DTMF sending is disabled")
	ErrInvalidArgument   = errors.New("invalid argument")
)

// Dispatcher receives call events as the manager produces them.
// notify.Center implements it; defined consumer-side per Go convention.
type Dispatcher interface {
	NotifyCallRinging(c *call.Call)
	NotifyCallConnected(c *call.Call)
	NotifyCallDisconnected(c *call.Call, t call.DisconnectionType)
	NotifyRemoteMediaChanged(c *call.Call, t call.RemoteMediaChangeType)
	NotifyLocalMediaChanged(c *call.Call, t call.LocalMediaChangeType)
	NotifyFacingModeChanged(c *call.Call, m call.FacingMode)
	NotifyLoudSpeakerChanged(c *call.Call, isLoudSpeakerSelected bool)
	NotifyRemoteViewSizeChanged(c *call.Call, height, width uint32)
	NotifyLocalViewSizeChanged(c *call.Call, height, width uint32)
	NotifyEnableDTMFChanged(c *call.Call)
}

// Manager owns the calls of this process and decides when call events fire.
type Manager struct {
	mu    sync.RWMutex
	calls map[string]*call.Call

	events    Dispatcher
	maxActive int
}

// NewManager creates a Manager that reports events to d.
func NewManager(d Dispatcher, maxActive int) *Manager {
	if maxActive < 1 {
		maxActive = 4
	}
	return &Manager{
		calls:     make(map[string]*call.Call),
		events:    d,
		maxActive: maxActive,
	}
}

// Dial places an outgoing call.
func (m *Manager) Dial(remote string) (*call.Call, error) {
	return m.create(remote, call.DirectionOutgoing)
}

// Incoming registers a call received from remote.
func (m *Manager) Incoming(remote string) (*call.Call, error) {
	return m.create(remote, call.DirectionIncoming)
}

func (m *Manager) create(remote string, dir call.Direction) (*call.Call, error) {
	remote = strings.TrimSpace(remote)
	if remote == "" {
		return nil, fmt.Errorf("%w: remote address is required", ErrInvalidArgument)
	}

	m.mu.Lock()
	active := m.activeLocked()
	if active >= m.maxActive {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w (%d/%d)", ErrLimitReached, active, m.maxActive)
	}
	c := call.New(remote, dir)
	m.calls[c.ID] = c
	m.mu.Unlock()

	slog.Info("call created",
		"call_id", c.ID,
		"remote", remote,
		"direction", string(dir))

	return c, nil
}

// Get returns a call by ID.
func (m *Manager) Get(id string) (*call.Call, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.calls[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	return c, nil
}

// Filter specifies criteria for listing calls.
type Filter struct {
	Status string
	Remote string
	Limit  int
}

// List returns snapshots of the calls matching f, newest first.
func (m *Manager) List(f Filter) []call.Snapshot {
	m.mu.RLock()
	var results []call.Snapshot
	for _, c := range m.calls {
		snap := c.Snapshot()

		if f.Status != "" && f.Status != "all" && snap.Status != call.Status(f.Status) {
			continue
		}
		if f.Remote != "" && snap.Remote != f.Remote {
			continue
		}
		results = append(results, snap)
	}
	m.mu.RUnlock()

	slices.SortFunc(results, func(a, b call.Snapshot) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})

	if f.Limit > 0 && len(results) > f.Limit {
		results = results[:f.Limit]
	}
	return results
}

// ActiveCount returns the number of calls not yet disconnected.
func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.activeLocked()
}

func (m *Manager) activeLocked() int {
	n := 0
	for _, c := range m.calls {
		if !c.IsTerminal() {
			n++
		}
	}
	return n
}

// PruneEnded forgets disconnected calls that ended more than maxAge ago.
// It returns how many were removed.
func (m *Manager) PruneEnded(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, c := range m.calls {
		snap := c.Snapshot()
		if snap.Status == call.StatusDisconnected && !snap.EndedAt.After(cutoff) {
			delete(m.calls, id)
			removed++
		}
	}
	return removed
}

// Ring moves an initiated call to ringing.
func (m *Manager) Ring(id string) error {
	c, err := m.Get(id)
	if err != nil {
		return err
	}

	if prev, ok := c.Transition(call.StatusRinging, call.StatusInitiated); !ok {
		return fmt.Errorf("%w: cannot ring a %s call", ErrInvalidTransition, prev)
	}

	slog.Info("call ringing", "call_id", id)
	m.events.NotifyCallRinging(c)
	return nil
}

// Answer connects an initiated or ringing call and enables DTMF on it.
func (m *Manager) Answer(id string) error {
	c, err := m.Get(id)
	if err != nil {
		return err
	}

	if prev, ok := c.Transition(call.StatusConnected, call.StatusInitiated, call.StatusRinging); !ok {
		return fmt.Errorf("%w: cannot answer a %s call", ErrInvalidTransition, prev)
	}

	slog.Info("call connected", "call_id", id)
	m.events.NotifyCallConnected(c)

	if c.SetSendingDTMF(true) {
		m.events.NotifyEnableDTMFChanged(c)
	}
	return nil
}

// Hangup disconnects a live call for the given reason.
func (m *Manager) Hangup(id string, reason call.DisconnectionType) error {
	if !reason.Valid() {
		return fmt.Errorf("%w: unknown disconnection type %q", ErrInvalidArgument, reason)
	}
	c, err := m.Get(id)
	if err != nil {
		return err
	}

	prev, hadDTMF, ok := c.Disconnect(reason)
	if !ok {
		return fmt.Errorf("%w: call is already %s", ErrInvalidTransition, prev)
	}

	slog.Info("call disconnected", "call_id", id, "reason", string(reason))
	m.events.NotifyCallDisconnected(c, reason)

	if hadDTMF {
		m.events.NotifyEnableDTMFChanged(c)
	}
	return nil
}

// live returns the call if it exists and is not disconnected.
func (m *Manager) live(id string) (*call.Call, error) {
	c, err := m.Get(id)
	if err != nil {
		return nil, err
	}
	if c.IsTerminal() {
		return nil, fmt.Errorf("%w: call %q is disconnected", ErrInvalidTransition, id)
	}
	return c, nil
}

// SetSendingVideo starts or stops the local video stream.
func (m *Manager) SetSendingVideo(id string, on bool) error {
	return m.SetLocalMedia(id, &on, nil)
}

// SetSendingAudio mutes or unmutes the local audio stream.
func (m *Manager) SetSendingAudio(id string, on bool) error {
	return m.SetLocalMedia(id, nil, &on)
}

// SetLocalMedia applies the non-nil video and audio flags together. The call
// is resolved once, so either both flags are applied or neither is.
func (m *Manager) SetLocalMedia(id string, video, audio *bool) error {
	c, err := m.live(id)
	if err != nil {
		return err
	}
	if video != nil && c.SetSendingVideo(*video) {
		m.events.NotifyLocalMediaChanged(c, call.LocalMediaSendingVideo)
	}
	if audio != nil && c.SetSendingAudio(*audio) {
		m.events.NotifyLocalMediaChanged(c, call.LocalMediaSendingAudio)
	}
	return nil
}

// UpdateRemoteMedia applies a media change reported by the remote side.
// View size changes go through ResizeRemoteView instead.
func (m *Manager) UpdateRemoteMedia(id string, kind call.RemoteMediaChangeType, on bool) error {
	if !kind.Valid() || kind == call.RemoteMediaVideoViewSize {
		return fmt.Errorf("%w: unsupported remote media change %q", ErrInvalidArgument, kind)
	}
	c, err := m.live(id)
	if err != nil {
		return err
	}
	if c.SetRemoteMedia(kind, on) {
		m.events.NotifyRemoteMediaChanged(c, kind)
	}
	return nil
}

// SwitchCamera selects the front or back camera.
func (m *Manager) SwitchCamera(id string, mode call.FacingMode) error {
	if !mode.Valid() {
		return fmt.Errorf("%w: unknown facing mode %q", ErrInvalidArgument, mode)
	}
	c, err := m.live(id)
	if err != nil {
		return err
	}
	if c.SetFacingMode(mode) {
		m.events.NotifyFacingModeChanged(c, mode)
	}
	return nil
}

// SetLoudSpeaker routes audio to or away from the loudspeaker.
func (m *Manager) SetLoudSpeaker(id string, on bool) error {
	c, err := m.live(id)
	if err != nil {
		return err
	}
	if c.SetLoudSpeaker(on) {
		m.events.NotifyLoudSpeakerChanged(c, on)
	}
	return nil
}

// ResizeRemoteView records a new remote video size.
func (m *Manager) ResizeRemoteView(id string, height, width uint32) error {
	if height == 0 || width == 0 {
		return fmt.Errorf("%w: view size must be non-zero", ErrInvalidArgument)
	}
	c, err := m.live(id)
	if err != nil {
		return err
	}
	c.SetRemoteView(height, width)
	m.events.NotifyRemoteViewSizeChanged(c, height, width)
	m.events.NotifyRemoteMediaChanged(c, call.RemoteMediaVideoViewSize)
	return nil
}

// ResizeLocalView records a new local preview size.
func (m *Manager) ResizeLocalView(id string, height, width uint32) error {
	if height == 0 || width == 0 {
		return fmt.Errorf("%w: view size must be non-zero", ErrInvalidArgument)
	}
	c, err := m.live(id)
	if err != nil {
		return err
	}
	c.SetLocalView(height, width)
	m.events.NotifyLocalViewSizeChanged(c, height, width)
	m.events.NotifyLocalMediaChanged(c, call.LocalMediaVideoViewSize)
	return nil
}

// SetDTMFEnabled toggles whether DTMF tones may be sent on a call.
func (m *Manager) SetDTMFEnabled(id string, on bool) error {
	c, err := m.live(id)
	if err != nil {
		return err
	}
	if c.SetSendingDTMF(on) {
		m.events.NotifyEnableDTMFChanged(c)
	}
	return nil
}

// SendDTMF sends a sequence of DTMF tones on a connected call.
func (m *Manager) SendDTMF(id, digits string) error {
	if digits == "" || strings.Trim(digits, "0123456789*#ABCD") != "" {
		return fmt.Errorf("%w: DTMF digits must match [0-9*#A-D]", ErrInvalidArgument)
	}
	c, err := m.live(id)
	if err != nil {
		return err
	}
	if c.Status() != call.StatusConnected {
		return fmt.Errorf("%w: DTMF requires a connected call", ErrInvalidTransition)
	}
	if !c.SendingDTMFEnabled() {
		return ErrDTMFDisabled
	}

	slog.Info("dtmf sent", "call_id", id, "digits", len(digits))
	return nil
}
