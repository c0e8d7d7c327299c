package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
	"voice-ai/internal/domain/dto"
	"voice-ai/internal/domain/entities"
	Iservices "voice-ai/internal/domain/interfaces/services"
	"voice-ai/internal/infra/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStt struct {
	mu    sync.Mutex
	text  string
	err   error
	calls int
}

func (f *fakeStt) Transcribe(ctx context.Context, audio []byte) (dto.TranscriptResult, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return dto.TranscriptResult{}, f.err
	}
	if f.text == "" {
		return dto.TranscriptResult{NoSpeech: true}, nil
	}
	return dto.TranscriptResult{Text: f.text}, nil
}

func (f *fakeStt) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeDialogue struct {
	mu        sync.Mutex
	reply     string
	err       error
	inflight  int32
	overlap   int32
	block     chan struct{}
	histories [][]entities.Transcript
}

func (f *fakeDialogue) GenerateReply(ctx context.Context, history []entities.Transcript) (string, error) {
	if atomic.AddInt32(&f.inflight, 1) > 1 {
		atomic.StoreInt32(&f.overlap, 1)
	}
	defer atomic.AddInt32(&f.inflight, -1)

	f.mu.Lock()
	f.histories = append(f.histories, history)
	f.mu.Unlock()

	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func (f *fakeDialogue) lastHistory() []entities.Transcript {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.histories) == 0 {
		return nil
	}
	return f.histories[len(f.histories)-1]
}

type fakeTts struct {
	err error
}

func (f *fakeTts) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []byte("pcm:" + text), nil
}

type fakeTransport struct {
	mu    sync.Mutex
	sent  map[string][][]byte
	hung  []string
	calls []string
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{sent: make(map[string][][]byte)}
}

func (f *fakeTransport) Name() string { return "fake" }

func (f *fakeTransport) PlaceCall(ctx context.Context, sessionID string, phoneNumber string) error {
	f.mu.Lock()
	f.calls = append(f.calls, sessionID)
	f.mu.Unlock()
	return nil
}

func (f *fakeTransport) SendAudio(sessionID string, audio []byte) error {
	f.mu.Lock()
	f.sent[sessionID] = append(f.sent[sessionID], audio)
	f.mu.Unlock()
	return nil
}

func (f *fakeTransport) Hangup(sessionID string) error {
	f.mu.Lock()
	f.hung = append(f.hung, sessionID)
	f.mu.Unlock()
	return nil
}

func (f *fakeTransport) sentTo(sessionID string) [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	streams := make([][]byte, len(f.sent[sessionID]))
	copy(streams, f.sent[sessionID])
	return streams
}

type fakeRecords struct {
	mu    sync.Mutex
	saved []entities.CallSession
}

func (f *fakeRecords) SaveCallRecord(ctx context.Context, session entities.CallSession) error {
	f.mu.Lock()
	f.saved = append(f.saved, session)
	f.mu.Unlock()
	return nil
}

func (f *fakeRecords) all() []entities.CallSession {
	f.mu.Lock()
	defer f.mu.Unlock()
	records := make([]entities.CallSession, len(f.saved))
	copy(records, f.saved)
	return records
}

func testRegistryConfig() RegistryConfig {
	return RegistryConfig{
		Ceiling:      20,
		IdleTimeout:  time.Minute,
		ReapInterval: 10 * time.Millisecond,
		Session: SessionConfig{
			Greeting:      "Hello! How can I help you today?",
			ClarifyPrompt: "Could you please repeat?",
			FallbackReply: "I apologize for the technical difficulty. How can I assist you?",
			FallbackAudio: []byte("fallback-clip"),
			TurnBuffer: TurnBufferConfig{
				SilenceThreshold: 50 * time.Millisecond,
				MaxTurnDuration:  5 * time.Second,
				EnergyThreshold:  0.01,
			},
			TickInterval:   5 * time.Millisecond,
			EventQueueSize: 64,
		},
	}
}

func newTestRegistry(t *testing.T, services SessionServices, records Iservices.ICallRecordService) *Registry {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	return NewRegistry(ctx, logger.NewLogger(false), testRegistryConfig(), services, records)
}

// feedVoicedTurn delivers one backdated voiced utterance so the session's next
// tick sees a completed turn.
func feedVoicedTurn(t *testing.T, session *Session, seq int64) {
	t.Helper()
	err := session.Deliver(InboundEvent{
		Type: EventAudioChunk,
		Chunk: AudioChunk{
			Seq:       seq,
			Payload:   []byte{0x40, 0x1f, 0x40, 0x1f},
			Timestamp: time.Now().Add(-time.Second),
			Energy:    1.0,
		},
	})
	require.NoError(t, err)
}

func waitFor(t *testing.T, timeout time.Duration, condition func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s: %s", timeout, msg)
}

func TestSessionSpeaksGreetingBeforeCallerAudio(t *testing.T) {
	transport := newFakeTransport()
	registry := newTestRegistry(t, SessionServices{
		Stt:       &fakeStt{text: "hi"},
		Dialogue:  &fakeDialogue{reply: "hello"},
		Tts:       &fakeTts{},
		Transport: transport,
	}, nil)

	session, err := registry.CreateSession("+15550001111", entities.ModeDemo, "")
	require.NoError(t, err)

	waitFor(t, time.Second, func() bool {
		return len(transport.sentTo(session.ID())) == 1
	}, "greeting not spoken")

	sent := transport.sentTo(session.ID())
	assert.Equal(t, []byte("pcm:Hello! How can I help you today?"), sent[0])
	assert.Equal(t, entities.StateListening, session.State())
	assert.Empty(t, session.History())
}

func TestAudioTurnRunsFullPipeline(t *testing.T) {
	transport := newFakeTransport()
	dialogue := &fakeDialogue{reply: "Happy to help with billing."}
	registry := newTestRegistry(t, SessionServices{
		Stt:       &fakeStt{text: "I have a billing question"},
		Dialogue:  dialogue,
		Tts:       &fakeTts{},
		Transport: transport,
	}, nil)

	session, err := registry.CreateSession("+15550001111", entities.ModeProduction, "")
	require.NoError(t, err)

	feedVoicedTurn(t, session, 1)

	waitFor(t, time.Second, func() bool {
		return len(session.History()) == 2
	}, "turn did not produce caller and agent entries")

	history := session.History()
	assert.Equal(t, entities.SpeakerCaller, history[0].Speaker)
	assert.Equal(t, "I have a billing question", history[0].Message)
	assert.Equal(t, entities.SpeakerAgent, history[1].Speaker)
	assert.Equal(t, "Happy to help with billing.", history[1].Message)

	// Dialogue saw the caller entry but not its own reply.
	require.Len(t, dialogue.lastHistory(), 1)
	assert.Equal(t, entities.SpeakerCaller, dialogue.lastHistory()[0].Speaker)

	waitFor(t, time.Second, func() bool {
		return len(transport.sentTo(session.ID())) == 2
	}, "reply audio not sent")
	assert.Equal(t, entities.StateListening, session.State())
}

func TestNoSpeechTurnRepromptsWithoutDialogue(t *testing.T) {
	transport := newFakeTransport()
	stt := &fakeStt{}
	registry := newTestRegistry(t, SessionServices{
		Stt:       stt,
		Dialogue:  &fakeDialogue{reply: "should not be called"},
		Tts:       &fakeTts{},
		Transport: transport,
	}, nil)

	session, err := registry.CreateSession("+15550001111", entities.ModeDemo, "")
	require.NoError(t, err)

	// All-silent chunks never reach STT at all.
	err = session.Deliver(InboundEvent{
		Type: EventAudioChunk,
		Chunk: AudioChunk{
			Seq:       1,
			Payload:   []byte{0x00, 0x00},
			Timestamp: time.Now().Add(-time.Second),
			Energy:    0,
		},
	})
	require.NoError(t, err)

	waitFor(t, time.Second, func() bool {
		return len(transport.sentTo(session.ID())) == 2
	}, "clarification prompt not spoken")

	sent := transport.sentTo(session.ID())
	assert.Equal(t, []byte("pcm:Could you please repeat?"), sent[1])
	assert.Empty(t, session.History())
	assert.Equal(t, 0, stt.callCount())
	assert.Equal(t, entities.StateListening, session.State())
}

func TestSttFailureSpeaksApologyAndKeepsListening(t *testing.T) {
	transport := newFakeTransport()
	registry := newTestRegistry(t, SessionServices{
		Stt:       &fakeStt{err: errors.New("stt unreachable")},
		Dialogue:  &fakeDialogue{reply: "unused"},
		Tts:       &fakeTts{},
		Transport: transport,
	}, nil)

	session, err := registry.CreateSession("+15550001111", entities.ModeProduction, "")
	require.NoError(t, err)

	feedVoicedTurn(t, session, 1)

	waitFor(t, time.Second, func() bool {
		return len(transport.sentTo(session.ID())) == 2
	}, "apology not spoken")

	sent := transport.sentTo(session.ID())
	assert.Equal(t, []byte("pcm:I apologize for the technical difficulty. How can I assist you?"), sent[1])
	// Nothing transcribed, so nothing entered history.
	assert.Empty(t, session.History())
	assert.Equal(t, entities.StateListening, session.State())

	// The session still takes the next turn.
	feedVoicedTurn(t, session, 2)
	waitFor(t, time.Second, func() bool {
		return len(transport.sentTo(session.ID())) == 3
	}, "session stopped taking turns after failure")
}

func TestDialogueFailurePairsApologyWithCallerEntry(t *testing.T) {
	transport := newFakeTransport()
	registry := newTestRegistry(t, SessionServices{
		Stt:       &fakeStt{text: "hello there"},
		Dialogue:  &fakeDialogue{err: errors.New("model down")},
		Tts:       &fakeTts{},
		Transport: transport,
	}, nil)

	session, err := registry.CreateSession("+15550001111", entities.ModeProduction, "")
	require.NoError(t, err)

	feedVoicedTurn(t, session, 1)

	waitFor(t, time.Second, func() bool {
		return len(session.History()) == 2
	}, "apology entry not appended")

	history := session.History()
	assert.Equal(t, "hello there", history[0].Message)
	assert.Equal(t, entities.SpeakerAgent, history[1].Speaker)
	assert.Equal(t, "I apologize for the technical difficulty. How can I assist you?", history[1].Message)
	assert.Equal(t, entities.StateListening, session.State())
}

func TestTtsFailurePlaysFallbackClip(t *testing.T) {
	transport := newFakeTransport()
	registry := newTestRegistry(t, SessionServices{
		Stt:       &fakeStt{text: "hi"},
		Dialogue:  &fakeDialogue{reply: "hello"},
		Tts:       &fakeTts{err: errors.New("tts unreachable")},
		Transport: transport,
	}, nil)

	session, err := registry.CreateSession("+15550001111", entities.ModeProduction, "")
	require.NoError(t, err)

	waitFor(t, time.Second, func() bool {
		return len(transport.sentTo(session.ID())) == 1
	}, "fallback clip not played")

	assert.Equal(t, []byte("fallback-clip"), transport.sentTo(session.ID())[0])
}

func TestTextTurnsAppendInOrder(t *testing.T) {
	transport := newFakeTransport()
	registry := newTestRegistry(t, SessionServices{
		Stt:       &fakeStt{},
		Dialogue:  &fakeDialogue{reply: "How can I help?"},
		Tts:       &fakeTts{},
		Transport: transport,
	}, nil)

	session, err := registry.CreateSession("", entities.ModeDemo, "")
	require.NoError(t, err)

	result, err := session.SubmitText(context.Background(), "I need help with my account")
	require.NoError(t, err)
	assert.Equal(t, "I need help with my account", result.UserMessage.Message)
	assert.Equal(t, "How can I help?", result.AgentMessage.Message)

	_, err = session.SubmitText(context.Background(), "Thanks")
	require.NoError(t, err)

	history := session.History()
	require.Len(t, history, 4)
	for i, speaker := range []string{entities.SpeakerCaller, entities.SpeakerAgent, entities.SpeakerCaller, entities.SpeakerAgent} {
		assert.Equal(t, speaker, history[i].Speaker, fmt.Sprintf("entry %d", i))
	}
}

func TestTextTurnDialogueFailureReturnsFallbackReply(t *testing.T) {
	transport := newFakeTransport()
	registry := newTestRegistry(t, SessionServices{
		Stt:       &fakeStt{},
		Dialogue:  &fakeDialogue{err: errors.New("model down")},
		Tts:       &fakeTts{},
		Transport: transport,
	}, nil)

	session, err := registry.CreateSession("", entities.ModeDemo, "")
	require.NoError(t, err)

	result, err := session.SubmitText(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "I apologize for the technical difficulty. How can I assist you?", result.AgentMessage.Message)
}

func TestPipelineStagesNeverOverlap(t *testing.T) {
	transport := newFakeTransport()
	dialogue := &fakeDialogue{reply: "ok"}
	registry := newTestRegistry(t, SessionServices{
		Stt:       &fakeStt{text: "turn"},
		Dialogue:  dialogue,
		Tts:       &fakeTts{},
		Transport: transport,
	}, nil)

	session, err := registry.CreateSession("+15550001111", entities.ModeProduction, "")
	require.NoError(t, err)

	// Pile up audio turns and text turns concurrently.
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = session.SubmitText(context.Background(), fmt.Sprintf("text turn %d", i))
		}(i)
	}
	for seq := int64(1); seq <= 5; seq++ {
		feedVoicedTurn(t, session, seq)
	}
	wg.Wait()

	assert.Equal(t, int32(0), atomic.LoadInt32(&dialogue.overlap), "dialogue calls overlapped for one session")
}

func TestHangupCancelsInFlightTurn(t *testing.T) {
	transport := newFakeTransport()
	dialogue := &fakeDialogue{reply: "never delivered", block: make(chan struct{})}
	records := &fakeRecords{}
	registry := newTestRegistry(t, SessionServices{
		Stt:       &fakeStt{text: "hi"},
		Dialogue:  dialogue,
		Tts:       &fakeTts{},
		Transport: transport,
	}, records)

	session, err := registry.CreateSession("+15550001111", entities.ModeProduction, "")
	require.NoError(t, err)

	feedVoicedTurn(t, session, 1)
	waitFor(t, time.Second, func() bool {
		return session.State() == entities.StateThinking
	}, "turn never reached the dialogue stage")

	require.NoError(t, registry.Terminate(context.Background(), session.ID(), entities.ReasonHangup))

	select {
	case <-session.Done():
	case <-time.After(time.Second):
		t.Fatal("session goroutine did not stop after hangup")
	}

	assert.Equal(t, entities.StateEnded, session.State())

	// The canceled dialogue call produced no agent entry.
	history := session.History()
	require.Len(t, history, 1)
	assert.Equal(t, entities.SpeakerCaller, history[0].Speaker)

	require.Len(t, records.all(), 1)
	assert.Equal(t, entities.ReasonHangup, records.all()[0].EndReason)
}

func TestDeliverAfterEndReturnsSessionEnded(t *testing.T) {
	transport := newFakeTransport()
	registry := newTestRegistry(t, SessionServices{
		Stt:       &fakeStt{},
		Dialogue:  &fakeDialogue{reply: "ok"},
		Tts:       &fakeTts{},
		Transport: transport,
	}, nil)

	session, err := registry.CreateSession("", entities.ModeDemo, "")
	require.NoError(t, err)

	require.NoError(t, registry.Terminate(context.Background(), session.ID(), entities.ReasonHangup))

	err = session.Deliver(InboundEvent{Type: EventAudioChunk})
	assert.ErrorIs(t, err, ErrSessionEnded)

	_, err = session.SubmitText(context.Background(), "anyone there?")
	assert.ErrorIs(t, err, ErrSessionEnded)
}
