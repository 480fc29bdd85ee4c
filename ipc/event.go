package ipc

import "time"

// Event types carried on the stream.
const (
	EventTypeProgress = "progress"
	EventTypeFrame    = "frame"
	EventTypeResult   = "result"
)

// Event is one message on the petframes event stream.
// Exactly one of Progress, Frame or Result is set, matching Type.
type Event struct {
	ContractVersion string           `msgpack:"contract_version"`
	Type            string           `msgpack:"type"`
	Seq             uint64           `msgpack:"seq"`
	Ts              string           `msgpack:"ts"`
	Progress        *ProgressPayload `msgpack:"progress,omitempty"`
	Frame           *FramePayload    `msgpack:"frame,omitempty"`
	Result          *ResultPayload   `msgpack:"result,omitempty"`
}

// ProgressPayload mirrors a download progress update.
type ProgressPayload struct {
	SessionID     string  `msgpack:"session_id"`
	IsDownloading bool    `msgpack:"is_downloading"`
	Completed     int     `msgpack:"completed"`
	Total         int     `msgpack:"total"`
	Progress      float64 `msgpack:"progress"`
	Message       string  `msgpack:"message"`
}

// FramePayload describes the frame currently shown by the playback engine.
// FrameIndex is 1-based; 0 means nothing is shown.
type FramePayload struct {
	CharacterType string `msgpack:"character_type"`
	Phase         string `msgpack:"phase"`
	Clip          string `msgpack:"clip"`
	FrameIndex    int    `msgpack:"frame_index"`
	FrameCount    int    `msgpack:"frame_count"`
	IsAnimating   bool   `msgpack:"is_animating"`
	Status        string `msgpack:"status"`
}

// ResultPayload is the terminal summary of a download session.
type ResultPayload struct {
	SessionID       string `msgpack:"session_id"`
	CharacterType   string `msgpack:"character_type"`
	Phase           string `msgpack:"phase"`
	Status          string `msgpack:"status"`
	TotalFrames     int    `msgpack:"total_frames"`
	SucceededFrames int    `msgpack:"succeeded_frames"`
	FailedFrames    int    `msgpack:"failed_frames"`
	DurationMs      int64  `msgpack:"duration_ms"`
}

func timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
