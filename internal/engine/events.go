package engine

import (
	"time"
	"voice-ai/internal/domain/entities"
)

type EventType int

const (
	// EventTurnStart is an explicit "caller turn start" signal from the transport.
	EventTurnStart EventType = iota
	// EventAudioChunk carries one chunk of caller audio.
	EventAudioChunk
	// EventTextTurn carries caller input already in text form (demo probe path).
	EventTextTurn
)

// AudioChunk is one inbound piece of caller audio. Energy is the transport's
// voice-activity estimate; negative when the transport supplies none, in which
// case the turn buffer falls back to its own RMS estimate.
type AudioChunk struct {
	Seq       int64
	Payload   []byte
	Timestamp time.Time
	Energy    float64
}

// InboundEvent is the unit of message passing between a transport and one
// session. The session goroutine consumes events strictly in order.
type InboundEvent struct {
	Type  EventType
	Chunk AudioChunk
	Text  string
	Reply chan TextTurnResult
}

// TextTurnResult answers a synchronous text turn.
type TextTurnResult struct {
	UserMessage  entities.Transcript
	AgentMessage entities.Transcript
	Err          error
}
