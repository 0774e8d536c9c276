package notify

import "github.com/btouchard/switchboard/internal/call"

// Observer receives call-state callbacks from a Center.
// Callbacks run synchronously on the goroutine that triggered the event and
// must not block for long.
type Observer interface {
	CallDidBeginRinging(c *call.Call)
	CallDidConnect(c *call.Call)
	CallDidDisconnect(c *call.Call, t call.DisconnectionType)
	RemoteMediaDidChange(c *call.Call, t call.RemoteMediaChangeType)
	LocalMediaDidChange(c *call.Call, t call.LocalMediaChangeType)
	FacingModeDidChange(c *call.Call, m call.FacingMode)
	LoudSpeakerDidChange(c *call.Call, isLoudSpeakerSelected bool)
	RemoteViewSizeDidChange(c *call.Call, height, width uint32)
	LocalViewSizeDidChange(c *call.Call, height, width uint32)
	EnableDTMFDidChange(c *call.Call, sendingDTMFEnabled bool)
}

// NopObserver implements every Observer method as a no-op.
// Embed it to handle only the events you care about. The embedding type must
// carry at least one field of its own, since Register refuses zero-size
// observers.
type NopObserver struct{}

func (NopObserver) CallDidBeginRinging(*call.Call) {}
func (NopObserver) CallDidConnect(*call.Call) {}
func (NopObserver) CallDidDisconnect(*call.Call, call.DisconnectionType) {}
func (NopObserver) RemoteMediaDidChange(*call.Call, call.RemoteMediaChangeType) {}
func (NopObserver) LocalMediaDidChange(*call.Call, call.LocalMediaChangeType) {}
func (NopObserver) FacingModeDidChange(*call.Call, call.FacingMode) {}
func (NopObserver) LoudSpeakerDidChange(*call.Call, bool) {}
func (NopObserver) RemoteViewSizeDidChange(*call.Call, uint32, uint32) {}
func (NopObserver) LocalViewSizeDidChange(*call.Call, uint32, uint32) {}
func (NopObserver) EnableDTMFDidChange(*call.Call, bool) {}
