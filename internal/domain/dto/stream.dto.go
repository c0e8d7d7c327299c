package dto

// Media stream frame events. One bidirectional channel carries caller audio in
// and synthesized agent audio out, framed as JSON messages.
const (
	FrameEventStart = "start"
	FrameEventMedia = "media"
	FrameEventMark  = "mark"
	FrameEventStop  = "stop"
)

// MarkTurnEnd is sent outbound after the last media frame of an agent utterance.
const MarkTurnEnd = "turn-end"

type MediaFrame struct {
	Event     string       `json:"event"`
	SessionID string       `json:"session_id,omitempty"`
	Seq       int64        `json:"seq,omitempty"`
	Payload   string       `json:"payload,omitempty"` // base64 encoded audio
	Energy    *float64     `json:"energy,omitempty"`  // voice-activity estimate; nil when the transport supplies none
	Mark      string       `json:"mark,omitempty"`
	Format    *MediaFormat `json:"format,omitempty"`
}

type MediaFormat struct {
	Encoding   string `json:"encoding"`
	SampleRate int    `json:"sample_rate"`
	Channels   int    `json:"channels"`
}
