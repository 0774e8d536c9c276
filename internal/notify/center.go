package notify

import (
	"fmt"
	"log/slog"
	"sync"
	"unsafe"
	"weak"

	"github.com/btouchard/switchboard/internal/call"
)

// entry is a non-owning handle to a registered observer.
type entry struct {
	key  any // weak.Pointer to the observer's concrete type; comparable
	load func() Observer
}

// Center fans call events out to registered observers.
//
// Observers are held weakly: the Center never keeps one alive, and an observer
// that is garbage collected is skipped and pruned on the next dispatch. Owners
// must keep their observers reachable for as long as they want callbacks.
//
// Dispatch is synchronous. The observer list is snapshotted under the lock and
// callbacks run without it, in registration order, so an observer may register
// or unregister from inside a callback.
type Center struct {
	mu      sync.Mutex
	entries []entry

	recoverPanics bool
}

// Option configures a Center.
type Option func(*Center)

// WithPanicRecovery isolates observer failures: a panicking callback is logged
// and the remaining observers are still notified. Without it the panic
// propagates to the caller of the Notify method.
func WithPanicRecovery() Option {
	return func(nc *Center) {
		nc.recoverPanics = true
	}
}

// NewCenter creates an empty Center.
func NewCenter(opts ...Option) *Center {
	nc := &Center{}
	for _, opt := range opts {
		opt(nc)
	}
	return nc
}

// observerPtr restricts registration to pointer observers, which is what a
// weak reference needs.
type observerPtr[T any] interface {
	*T
	Observer
}

// Register adds a weak reference to o. Registering the same observer twice
// creates two entries and doubles its callbacks. A nil observer is ignored.
//
// o must be a pointer to a concrete type with a non-zero size. Observers are
// identified by address, and distinct zero-size values may share one, so
// Register panics on them. An interface value cannot be registered either:
// pass the concrete pointer the owner keeps alive.
func Register[T any, P observerPtr[T]](nc *Center, o P) {
	p := (*T)(o)
	if p == nil {
		return
	}
	if unsafe.Sizeof(*p) == 0 {
		panic(fmt.Sprintf("notify: cannot register zero-size observer %T; give it a field", o))
	}
	wp := weak.Make(p)

	nc.mu.Lock()
	nc.entries = append(nc.entries, entry{
		key: wp,
		load: func() Observer {
			if v := wp.Value(); v != nil {
				return P(v)
			}
			return nil
		},
	})
	n := len(nc.entries)
	nc.mu.Unlock()

	slog.Debug("call observer registered", "observer", fmt.Sprintf("%T", o), "entries", n)
}

// Unregister removes every entry referring to o. Unknown observers, including
// the zero-size ones Register refuses, are a no-op.
func Unregister[T any, P observerPtr[T]](nc *Center, o P) {
	p := (*T)(o)
	if p == nil || unsafe.Sizeof(*p) == 0 {
		return
	}
	key := weak.Make(p)

	nc.mu.Lock()
	kept := nc.entries[:0]
	for _, e := range nc.entries {
		if e.key == key {
			continue
		}
		kept = append(kept, e)
	}
	removed := len(nc.entries) - len(kept)
	clear(nc.entries[len(kept):])
	nc.entries = kept
	nc.mu.Unlock()

	if removed > 0 {
		slog.Debug("call observer unregistered", "observer", fmt.Sprintf("%T", o), "removed", removed)
	}
}

// Len returns the number of live registrations.
func (nc *Center) Len() int {
	return len(nc.snapshot())
}

// snapshot resolves every entry, drops the collected ones and returns the live
// observers in registration order.
func (nc *Center) snapshot() []Observer {
	nc.mu.Lock()
	defer nc.mu.Unlock()

	live := make([]Observer, 0, len(nc.entries))
	kept := nc.entries[:0]
	for _, e := range nc.entries {
		if o := e.load(); o != nil {
			live = append(live, o)
			kept = append(kept, e)
		}
	}
	if pruned := len(nc.entries) - len(kept); pruned > 0 {
		slog.Debug("pruned collected call observers", "count", pruned)
	}
	clear(nc.entries[len(kept):])
	nc.entries = kept
	return live
}

func (nc *Center) each(kind EventKind, fn func(Observer)) {
	for _, o := range nc.snapshot() {
		if nc.recoverPanics {
			nc.safeCall(kind, o, fn)
			continue
		}
		fn(o)
	}
}

func (nc *Center) safeCall(kind EventKind, o Observer, fn func(Observer)) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("call observer panicked",
				"event", string(kind),
				"observer", fmt.Sprintf("%T", o),
				"panic", r)
		}
	}()
	fn(o)
}

func (nc *Center) NotifyCallRinging(c *call.Call) {
	nc.each(EventCallRinging, func(o Observer) {
		o.CallDidBeginRinging(c)
	})
}

func (nc *Center) NotifyCallConnected(c *call.Call) {
	nc.each(EventCallConnected, func(o Observer) {
		o.CallDidConnect(c)
	})
}

func (nc *Center) NotifyCallDisconnected(c *call.Call, t call.DisconnectionType) {
	nc.each(EventCallDisconnected, func(o Observer) {
		o.CallDidDisconnect(c, t)
	})
}

func (nc *Center) NotifyRemoteMediaChanged(c *call.Call, t call.RemoteMediaChangeType) {
	nc.each(EventRemoteMediaChanged, func(o Observer) {
		o.RemoteMediaDidChange(c, t)
	})
}

func (nc *Center) NotifyLocalMediaChanged(c *call.Call, t call.LocalMediaChangeType) {
	nc.each(EventLocalMediaChanged, func(o Observer) {
		o.LocalMediaDidChange(c, t)
	})
}

func (nc *Center) NotifyFacingModeChanged(c *call.Call, m call.FacingMode) {
	nc.each(EventFacingModeChanged, func(o Observer) {
		o.FacingModeDidChange(c, m)
	})
}

func (nc *Center) NotifyLoudSpeakerChanged(c *call.Call, isLoudSpeakerSelected bool) {
	nc.each(EventLoudSpeakerChanged, func(o Observer) {
		o.LoudSpeakerDidChange(c, isLoudSpeakerSelected)
	})
}

func (nc *Center) NotifyRemoteViewSizeChanged(c *call.Call, height, width uint32) {
	nc.each(EventRemoteViewSizeChanged, func(o Observer) {
		o.RemoteViewSizeDidChange(c, height, width)
	})
}

func (nc *Center) NotifyLocalViewSizeChanged(c *call.Call, height, width uint32) {
	nc.each(EventLocalViewSizeChanged, func(o Observer) {
		o.LocalViewSizeDidChange(c, height, width)
	})
}

// NotifyEnableDTMFChanged passes each observer the call's DTMF flag as it
// stands when the callback runs.
func (nc *Center) NotifyEnableDTMFChanged(c *call.Call) {
	nc.each(EventDTMFChanged, func(o Observer) {
		o.EnableDTMFDidChange(c, c.SendingDTMFEnabled())
	})
}
