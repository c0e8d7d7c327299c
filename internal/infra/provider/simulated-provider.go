package provider

import (
	"context"
	"fmt"
	"sync"
	"time"
	Iprovider "voice-ai/internal/domain/interfaces/provider"
	"voice-ai/internal/engine"
	"voice-ai/internal/infra/logger"
)

var _ Iprovider.ITransportProvider = (*SimulatedProvider)(nil)

// SimulatedProvider is the demo transport. It makes no outbound network
// calls: call control reports immediate canned success and outbound audio is
// captured in memory, where the demo endpoints and tests can inspect it.
type SimulatedProvider struct {
	Logger *logger.Logger

	mu       sync.Mutex
	playback map[string][][]byte
	seq      map[string]int64
}

func NewSimulatedProvider(log *logger.Logger) *SimulatedProvider {
	return &SimulatedProvider{
		Logger:   log,
		playback: make(map[string][][]byte),
		seq:      make(map[string]int64),
	}
}

func (sp *SimulatedProvider) Name() string {
	return "simulated"
}

func (sp *SimulatedProvider) PlaceCall(ctx context.Context, sessionID string, phoneNumber string) error {
	sp.Logger.Info(fmt.Sprintf("Demo call initiated to %s (session %s)", phoneNumber, sessionID))
	return nil
}

func (sp *SimulatedProvider) SendAudio(sessionID string, audio []byte) error {
	buffered := make([]byte, len(audio))
	copy(buffered, audio)

	sp.mu.Lock()
	sp.playback[sessionID] = append(sp.playback[sessionID], buffered)
	sp.mu.Unlock()
	return nil
}

func (sp *SimulatedProvider) Hangup(sessionID string) error {
	sp.mu.Lock()
	delete(sp.playback, sessionID)
	delete(sp.seq, sessionID)
	sp.mu.Unlock()
	return nil
}

// Playback returns the audio streams sent to the simulated caller so far.
func (sp *SimulatedProvider) Playback(sessionID string) [][]byte {
	sp.mu.Lock()
	defer sp.mu.Unlock()

	streams := make([][]byte, len(sp.playback[sessionID]))
	copy(streams, sp.playback[sessionID])
	return streams
}

// FeedUtterance delivers caller audio to a session as ordered chunks stamped
// at delivery time. Stamping with the arrival clock keeps the chunks inside
// one turn; the turn then completes through the session's tick once the
// silence threshold elapses with no further chunks.
func (sp *SimulatedProvider) FeedUtterance(session *engine.Session, audio []byte, chunkBytes int) {
	if chunkBytes <= 0 {
		chunkBytes = 1600
	}

	for offset := 0; offset < len(audio); offset += chunkBytes {
		end := offset + chunkBytes
		if end > len(audio) {
			end = len(audio)
		}

		sp.mu.Lock()
		sp.seq[session.ID()]++
		seq := sp.seq[session.ID()]
		sp.mu.Unlock()

		_ = session.Deliver(engine.InboundEvent{
			Type: engine.EventAudioChunk,
			Chunk: engine.AudioChunk{
				Seq:       seq,
				Payload:   audio[offset:end],
				Timestamp: time.Now(),
				Energy:    -1,
			},
		})
	}
}
