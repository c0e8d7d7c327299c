package provider

import (
	"context"
	"testing"
	"time"
	"voice-ai/internal/domain/entities"
	Iprovider "voice-ai/internal/domain/interfaces/provider"
	"voice-ai/internal/engine"
	"voice-ai/internal/infra/logger"
	"voice-ai/internal/infra/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func demoRegistry(t *testing.T, transport Iprovider.ITransportProvider) *engine.Registry {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	cfg := engine.RegistryConfig{
		Ceiling:      20,
		IdleTimeout:  time.Minute,
		ReapInterval: time.Second,
		Session: engine.SessionConfig{
			Greeting:      "Hello! How can I help you today?",
			ClarifyPrompt: "Could you please repeat?",
			FallbackReply: "I apologize for the technical difficulty. How can I assist you?",
			TurnBuffer: engine.TurnBufferConfig{
				SilenceThreshold: 50 * time.Millisecond,
				MaxTurnDuration:  5 * time.Second,
				EnergyThreshold:  0.01,
			},
			TickInterval:   5 * time.Millisecond,
			EventQueueSize: 64,
		},
	}

	return engine.NewRegistry(ctx, logger.NewLogger(false), cfg, engine.SessionServices{
		Stt:       services.NewMockSttService(),
		Dialogue:  services.NewMockDialogueService(),
		Tts:       services.NewMockTtsService(),
		Transport: transport,
	}, nil)
}

func waitForPlayback(t *testing.T, transport *SimulatedProvider, sessionID string, streams int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(transport.Playback(sessionID)) >= streams {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected %d playback streams for session %s, got %d", streams, sessionID, len(transport.Playback(sessionID)))
}

func TestSimulatedCallRunsWithoutNetwork(t *testing.T) {
	transport := NewSimulatedProvider(logger.NewLogger(false))
	registry := demoRegistry(t, transport)

	session, err := registry.CreateSession("+15550001111", entities.ModeDemo, "")
	require.NoError(t, err)
	require.NoError(t, transport.PlaceCall(context.Background(), session.ID(), "+15550001111"))

	// The greeting lands in the playback buffer.
	waitForPlayback(t, transport, session.ID(), 1)

	// One spoken caller turn runs the whole mock pipeline.
	utterance, err := services.NewMockTtsService().Synthesize(context.Background(), "caller speech")
	require.NoError(t, err)
	transport.FeedUtterance(session, utterance, 1600)

	waitForPlayback(t, transport, session.ID(), 2)

	history := session.History()
	require.Len(t, history, 2)
	assert.Equal(t, entities.SpeakerCaller, history[0].Speaker)
	assert.Equal(t, entities.SpeakerAgent, history[1].Speaker)
}

func TestFeedUtteranceProducesOneTurn(t *testing.T) {
	transport := NewSimulatedProvider(logger.NewLogger(false))
	registry := demoRegistry(t, transport)

	session, err := registry.CreateSession("+15550001111", entities.ModeDemo, "")
	require.NoError(t, err)
	waitForPlayback(t, transport, session.ID(), 1)

	// A multi-chunk utterance is still one caller turn.
	utterance, err := services.NewMockTtsService().Synthesize(context.Background(), "one single caller turn spanning several chunks")
	require.NoError(t, err)
	require.Greater(t, len(utterance), 3*1600, "utterance must span multiple chunks")
	transport.FeedUtterance(session, utterance, 1600)

	waitForHistory := func(entries int) {
		deadline := time.Now().Add(2 * time.Second)
		for time.Now().Before(deadline) {
			if len(session.History()) >= entries {
				return
			}
			time.Sleep(5 * time.Millisecond)
		}
		t.Fatalf("expected %d history entries, got %d", entries, len(session.History()))
	}
	waitForHistory(2)

	// Let several silence windows pass; no further turns may appear.
	time.Sleep(200 * time.Millisecond)
	history := session.History()
	require.Len(t, history, 2)
	assert.Equal(t, entities.SpeakerCaller, history[0].Speaker)
	assert.Equal(t, entities.SpeakerAgent, history[1].Speaker)
	assert.Len(t, transport.Playback(session.ID()), 2)
}

func TestSimulatedHangupClearsPlayback(t *testing.T) {
	transport := NewSimulatedProvider(logger.NewLogger(false))

	require.NoError(t, transport.SendAudio("session-1", []byte("audio")))
	require.Len(t, transport.Playback("session-1"), 1)

	require.NoError(t, transport.Hangup("session-1"))
	assert.Empty(t, transport.Playback("session-1"))
}

func TestPlaybackReturnsCopies(t *testing.T) {
	transport := NewSimulatedProvider(logger.NewLogger(false))

	original := []byte("audio")
	require.NoError(t, transport.SendAudio("session-1", original))
	original[0] = 'X'

	streams := transport.Playback("session-1")
	require.Len(t, streams, 1)
	assert.Equal(t, []byte("audio"), streams[0])
}
