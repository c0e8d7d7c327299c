package entities

import "time"

type SessionState string

const (
	StateIdle         SessionState = "idle"
	StateListening    SessionState = "listening"
	StateTranscribing SessionState = "transcribing"
	StateThinking     SessionState = "thinking"
	StateSpeaking     SessionState = "speaking"
	StateEnded        SessionState = "ended"
)

type SessionMode string

const (
	ModeDemo       SessionMode = "demo"
	ModeProduction SessionMode = "production"
)

type TerminationReason string

const (
	ReasonHangup      TerminationReason = "hangup"
	ReasonIdleTimeout TerminationReason = "idle_timeout"
	ReasonFatalError  TerminationReason = "fatal_error"
	ReasonShutdown    TerminationReason = "shutdown"
)

const (
	SpeakerCaller = "caller"
	SpeakerAgent  = "agent"
)

// CallSession is the lifecycle state of one phone call, from answer to termination.
type CallSession struct {
	SessionID      string            `json:"session_id" bson:"session_id"`
	PhoneNumber    string            `json:"phone_number" bson:"phone_number"`
	State          SessionState      `json:"state" bson:"state"`
	Mode           SessionMode       `json:"mode" bson:"mode"`
	Transcript     []Transcript      `json:"transcript" bson:"transcript"`
	EndReason      TerminationReason `json:"end_reason,omitempty" bson:"end_reason,omitempty"`
	CreatedAt      time.Time         `json:"createdAt" bson:"created_at"`
	LastActivityAt time.Time         `json:"lastActivityAt" bson:"last_activity_at"`
}

type Transcript struct {
	Speaker   string    `json:"speaker" bson:"speaker"`
	Message   string    `json:"message" bson:"message"`
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`
}
