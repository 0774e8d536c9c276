package call

// DisconnectionType is the reason a call ended.
type DisconnectionType string

const (
	DisconnectLocalCancel    DisconnectionType = "local_cancel"    // we hung up before it connected
	DisconnectLocalDecline   DisconnectionType = "local_decline"   // we rejected an incoming call
	DisconnectLocalLeft      DisconnectionType = "local_left"      // we left a connected call
	DisconnectOtherConnected DisconnectionType = "other_connected" // answered on another device
	DisconnectOtherDeclined  DisconnectionType = "other_declined"  // declined on another device
	DisconnectRemoteCancel   DisconnectionType = "remote_cancel"
	DisconnectRemoteDecline  DisconnectionType = "remote_decline"
	DisconnectRemoteLeft     DisconnectionType = "remote_left"
	DisconnectError          DisconnectionType = "error"
)

// Valid reports whether t is one of the known disconnection types.
func (t DisconnectionType) Valid() bool {
	switch t {
	case DisconnectLocalCancel, DisconnectLocalDecline, DisconnectLocalLeft,
		DisconnectOtherConnected, DisconnectOtherDeclined,
		DisconnectRemoteCancel, DisconnectRemoteDecline, DisconnectRemoteLeft,
		DisconnectError:
		return true
	}
	return false
}

// RemoteMediaChangeType identifies what changed on the remote side of the media session.
type RemoteMediaChangeType string

const (
	RemoteMediaRemoteSendingVideo RemoteMediaChangeType = "remote_sending_video"
	RemoteMediaRemoteSendingAudio RemoteMediaChangeType = "remote_sending_audio"
	RemoteMediaReceivingVideo     RemoteMediaChangeType = "receiving_video"
	RemoteMediaReceivingAudio     RemoteMediaChangeType = "receiving_audio"
	RemoteMediaVideoViewSize      RemoteMediaChangeType = "remote_video_view_size"
)

// Valid reports whether t is one of the known remote media change types.
func (t RemoteMediaChangeType) Valid() bool {
	switch t {
	case RemoteMediaRemoteSendingVideo, RemoteMediaRemoteSendingAudio,
		RemoteMediaReceivingVideo, RemoteMediaReceivingAudio, RemoteMediaVideoViewSize:
		return true
	}
	return false
}

// LocalMediaChangeType identifies what changed on the local side of the media session.
type LocalMediaChangeType string

const (
	LocalMediaSendingVideo  LocalMediaChangeType = "sending_video"
	LocalMediaSendingAudio  LocalMediaChangeType = "sending_audio"
	LocalMediaVideoViewSize LocalMediaChangeType = "local_video_view_size"
)

// Valid reports whether t is one of the known local media change types.
func (t LocalMediaChangeType) Valid() bool {
	switch t {
	case LocalMediaSendingVideo, LocalMediaSendingAudio, LocalMediaVideoViewSize:
		return true
	}
	return false
}

// FacingMode is the selected camera.
type FacingMode string

const (
	FacingModeUser        FacingMode = "user"        // front camera
	FacingModeEnvironment FacingMode = "environment" // back camera
)

// Valid reports whether m is a known facing mode.
func (m FacingMode) Valid() bool {
	return m == FacingModeUser || m == FacingModeEnvironment
}
