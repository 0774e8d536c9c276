package notify

import (
	"fmt"
	"time"

	"github.com/btouchard/switchboard/internal/call"
)

// EventKind names one of the call events a Center dispatches.
type EventKind string

const (
	EventCallRinging           EventKind = "call.ringing"
	EventCallConnected         EventKind = "call.connected"
	EventCallDisconnected      EventKind = "call.disconnected"
	EventRemoteMediaChanged    EventKind = "media.remote_changed"
	EventLocalMediaChanged     EventKind = "media.local_changed"
	EventFacingModeChanged     EventKind = "camera.facing_mode_changed"
	EventLoudSpeakerChanged    EventKind = "audio.loud_speaker_changed"
	EventRemoteViewSizeChanged EventKind = "view.remote_size_changed"
	EventLocalViewSizeChanged  EventKind = "view.local_size_changed"
	EventDTMFChanged           EventKind = "dtmf.enabled_changed"
)

// Event is a flattened record of one observer callback.
type Event struct {
	Kind EventKind
	Call call.Snapshot

	Detail  string // disconnection type, media change type or facing mode
	Enabled bool   // loudspeaker selected / DTMF enabled
	Height  uint32
	Width   uint32

	At time.Time
}

// Message renders a short human-readable description of the event.
func (e Event) Message() string {
	switch e.Kind {
	case EventCallRinging:
		return fmt.Sprintf("call with %s is ringing", e.Call.Remote)
	case EventCallConnected:
		return fmt.Sprintf("call with %s connected", e.Call.Remote)
	case EventCallDisconnected:
		return fmt.Sprintf("call with %s disconnected (%s)", e.Call.Remote, e.Detail)
	case EventRemoteMediaChanged:
		return fmt.Sprintf("remote media changed: %s", e.Detail)
	case EventLocalMediaChanged:
		return fmt.Sprintf("local media changed: %s", e.Detail)
	case EventFacingModeChanged:
		return fmt.Sprintf("camera switched to %s", e.Detail)
	case EventLoudSpeakerChanged:
		return fmt.Sprintf("loudspeaker %s", onOff(e.Enabled))
	case EventRemoteViewSizeChanged:
		return fmt.Sprintf("remote view resized to %dx%d", e.Width, e.Height)
	case EventLocalViewSizeChanged:
		return fmt.Sprintf("local view resized to %dx%d", e.Width, e.Height)
	case EventDTMFChanged:
		return fmt.Sprintf("DTMF sending %s", onOff(e.Enabled))
	default:
		return string(e.Kind)
	}
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

// Notifier consumes flattened call events.
type Notifier interface {
	Notify(event Event)
}

// Hub dispatches events to multiple notifiers, in order.
type Hub struct {
	notifiers []Notifier
}

// NewHub creates a Hub with the given notifiers.
func NewHub(notifiers ...Notifier) *Hub {
	return &Hub{notifiers: notifiers}
}

// Notify sends an event to all registered notifiers.
func (h *Hub) Notify(event Event) {
	for _, n := range h.notifiers {
		n.Notify(event)
	}
}

// Forwarder is an Observer that turns every callback into an Event for a
// Notifier. Register it with a Center and keep a reference to it for as long
// as events should flow.
type Forwarder struct {
	next Notifier
}

// NewForwarder creates a Forwarder feeding next.
func NewForwarder(next Notifier) *Forwarder {
	return &Forwarder{next: next}
}

func (f *Forwarder) emit(c *call.Call, e Event) {
	e.Call = c.Snapshot()
	e.At = time.Now()
	f.next.Notify(e)
}

func (f *Forwarder) CallDidBeginRinging(c *call.Call) {
	f.emit(c, Event{Kind: EventCallRinging})
}

func (f *Forwarder) CallDidConnect(c *call.Call) {
	f.emit(c, Event{Kind: EventCallConnected})
}

func (f *Forwarder) CallDidDisconnect(c *call.Call, t call.DisconnectionType) {
	f.emit(c, Event{Kind: EventCallDisconnected, Detail: string(t)})
}

func (f *Forwarder) RemoteMediaDidChange(c *call.Call, t call.RemoteMediaChangeType) {
	f.emit(c, Event{Kind: EventRemoteMediaChanged, Detail: string(t)})
}

func (f *Forwarder) LocalMediaDidChange(c *call.Call, t call.LocalMediaChangeType) {
	f.emit(c, Event{Kind: EventLocalMediaChanged, Detail: string(t)})
}

func (f *Forwarder) FacingModeDidChange(c *call.Call, m call.FacingMode) {
	f.emit(c, Event{Kind: EventFacingModeChanged, Detail: string(m)})
}

func (f *Forwarder) LoudSpeakerDidChange(c *call.Call, isLoudSpeakerSelected bool) {
	f.emit(c, Event{Kind: EventLoudSpeakerChanged, Enabled: isLoudSpeakerSelected})
}

func (f *Forwarder) RemoteViewSizeDidChange(c *call.Call, height, width uint32) {
	f.emit(c, Event{Kind: EventRemoteViewSizeChanged, Height: height, Width: width})
}

func (f *Forwarder) LocalViewSizeDidChange(c *call.Call, height, width uint32) {
	f.emit(c, Event{Kind: EventLocalViewSizeChanged, Height: height, Width: width})
}

func (f *Forwarder) EnableDTMFDidChange(c *call.Call, sendingDTMFEnabled bool) {
	f.emit(c, Event{Kind: EventDTMFChanged, Enabled: sendingDTMFEnabled})
}
