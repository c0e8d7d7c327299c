package engine

import (
	"math"
	"time"
)

type TurnBufferConfig struct {
	// SilenceThreshold is how much trailing silence completes a turn.
	SilenceThreshold time.Duration
	// MaxTurnDuration caps a turn so a stuck caller cannot block the pipeline.
	MaxTurnDuration time.Duration
	// EnergyThreshold is the voice-activity cutoff; a chunk whose energy
	// estimate falls below it counts as silence.
	EnergyThreshold float64
}

// TurnSegment is an immutable drained caller turn handed to STT.
type TurnSegment struct {
	Audio    []byte
	Duration time.Duration
	Chunks   int
}

// TurnBuffer accumulates inbound audio for one caller turn and decides when
// the caller has finished speaking. Not safe for concurrent use; each session
// owns one buffer and touches it only from its own goroutine.
type TurnBuffer struct {
	cfg TurnBufferConfig

	chunks      []AudioChunk
	firstAt     time.Time
	lastVoiced  time.Time
	lastSeq     int64
	sawAnyVoice bool
}

func NewTurnBuffer(cfg TurnBufferConfig) *TurnBuffer {
	return &TurnBuffer{cfg: cfg}
}

// Append adds a chunk to the current turn. Chunks with a sequence marker at or
// below the last accepted one are duplicates or stale reorders and are dropped,
// so redelivery never produces a second history entry downstream.
func (tb *TurnBuffer) Append(chunk AudioChunk) bool {
	if chunk.Seq != 0 && chunk.Seq <= tb.lastSeq {
		return false
	}
	if chunk.Seq != 0 {
		tb.lastSeq = chunk.Seq
	}

	if len(tb.chunks) == 0 {
		tb.firstAt = chunk.Timestamp
	}
	tb.chunks = append(tb.chunks, chunk)

	if tb.isVoiced(chunk) {
		tb.lastVoiced = chunk.Timestamp
		tb.sawAnyVoice = true
	}
	return true
}

// CompleteAt reports whether the turn is finished as of now: trailing silence
// reached the threshold, or the turn hit the duration cap. It is evaluated on
// every chunk arrival and on the session's tick so a caller that simply stops
// sending frames still completes.
func (tb *TurnBuffer) CompleteAt(now time.Time) bool {
	if len(tb.chunks) == 0 {
		return false
	}
	if now.Sub(tb.firstAt) >= tb.cfg.MaxTurnDuration {
		return true
	}
	ref := tb.lastVoiced
	if ref.IsZero() {
		ref = tb.firstAt
	}
	return now.Sub(ref) >= tb.cfg.SilenceThreshold
}

// SilenceElapsed is the accumulated no-voice duration as of now.
func (tb *TurnBuffer) SilenceElapsed(now time.Time) time.Duration {
	if len(tb.chunks) == 0 {
		return 0
	}
	ref := tb.lastVoiced
	if ref.IsZero() {
		ref = tb.firstAt
	}
	return now.Sub(ref)
}

func (tb *TurnBuffer) Len() int {
	return len(tb.chunks)
}

// Drain returns the completed turn as an immutable segment and resets the
// buffer for the next turn. The second return is false for an empty turn (all
// silence, no voiced chunks), which must be signaled as "no speech detected"
// instead of being forwarded to STT.
func (tb *TurnBuffer) Drain() (TurnSegment, bool) {
	var total int
	for _, c := range tb.chunks {
		total += len(c.Payload)
	}

	audio := make([]byte, 0, total)
	for _, c := range tb.chunks {
		audio = append(audio, c.Payload...)
	}

	segment := TurnSegment{Audio: audio, Chunks: len(tb.chunks)}
	if len(tb.chunks) > 0 {
		last := tb.chunks[len(tb.chunks)-1].Timestamp
		segment.Duration = last.Sub(tb.firstAt)
	}
	voiced := tb.sawAnyVoice

	tb.chunks = nil
	tb.firstAt = time.Time{}
	tb.lastVoiced = time.Time{}
	tb.sawAnyVoice = false

	return segment, voiced
}

func (tb *TurnBuffer) isVoiced(chunk AudioChunk) bool {
	if chunk.Energy >= 0 {
		return chunk.Energy >= tb.cfg.EnergyThreshold
	}
	return rmsEnergy(chunk.Payload) >= tb.cfg.EnergyThreshold
}

// rmsEnergy computes the normalized RMS of 16-bit little-endian PCM samples.
// This is the trivial fallback voice-activity estimate used when the transport
// does not supply one.
func rmsEnergy(payload []byte) float64 {
	if len(payload) < 2 {
		return 0
	}
	var sum float64
	samples := len(payload) / 2
	for i := 0; i < samples; i++ {
		s := int16(uint16(payload[2*i]) | uint16(payload[2*i+1])<<8)
		v := float64(s) / 32768.0
		sum += v * v
	}
	return math.Sqrt(sum / float64(samples))
}
