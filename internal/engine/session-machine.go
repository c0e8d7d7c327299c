package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
	"voice-ai/internal/domain/entities"
	Iprovider "voice-ai/internal/domain/interfaces/provider"
	Iservices "voice-ai/internal/domain/interfaces/services"
	"voice-ai/internal/infra/logger"
)

type SessionConfig struct {
	// Greeting is spoken on entering Listening, before any caller audio.
	Greeting string
	// ClarifyPrompt is spoken when a turn contains no recognizable speech.
	ClarifyPrompt string
	// FallbackReply is the canned apology spoken when a pipeline service
	// stays down after retries.
	FallbackReply string
	// FallbackAudio is a pre-recorded clip played when TTS itself is unreachable.
	FallbackAudio []byte

	TurnBuffer TurnBufferConfig

	// TickInterval drives turn-completion checks when the transport goes
	// quiet between chunks.
	TickInterval time.Duration
	// EventQueueSize bounds the inbound event channel.
	EventQueueSize int
}

// Session drives one call through the buffer -> STT -> dialogue -> TTS ->
// playback pipeline. A single goroutine consumes the inbound event channel,
// so pipeline stages for one session never overlap and conversation history
// is appended in strict turn order. Chunks arriving while a turn is in flight
// sit in the channel until the machine is back in Listening; chunks beyond
// the queue size are dropped.
type Session struct {
	mu     sync.RWMutex
	entity *entities.CallSession

	events    chan InboundEvent
	buffer    *TurnBuffer
	stt       Iservices.ISttService
	dialogue  Iservices.IDialogueService
	tts       Iservices.ITtsService
	transport Iprovider.ITransportProvider
	logger    *logger.Logger
	cfg       SessionConfig

	cancel  context.CancelFunc
	done    chan struct{}
	endOnce sync.Once
}

func (s *Session) ID() string {
	return s.entity.SessionID
}

func (s *Session) PhoneNumber() string {
	return s.entity.PhoneNumber
}

func (s *Session) Mode() entities.SessionMode {
	return s.entity.Mode
}

func (s *Session) State() entities.SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entity.State
}

func (s *Session) LastActivity() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entity.LastActivityAt
}

// History returns a copy of the conversation transcript.
func (s *Session) History() []entities.Transcript {
	s.mu.RLock()
	defer s.mu.RUnlock()
	history := make([]entities.Transcript, len(s.entity.Transcript))
	copy(history, s.entity.Transcript)
	return history
}

// Snapshot returns a copy of the session entity, safe to persist or serialize.
func (s *Session) Snapshot() entities.CallSession {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snapshot := *s.entity
	snapshot.Transcript = make([]entities.Transcript, len(s.entity.Transcript))
	copy(snapshot.Transcript, s.entity.Transcript)
	return snapshot
}

// Done is closed once the session goroutine has fully stopped.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Deliver hands an inbound transport event to the session. It never blocks
// the transport: when the queue is full the chunk is dropped.
func (s *Session) Deliver(ev InboundEvent) error {
	select {
	case <-s.done:
		return ErrSessionEnded
	default:
	}

	select {
	case s.events <- ev:
		return nil
	default:
		s.logger.Debug(fmt.Sprintf("Session %s inbound queue full, dropping event", s.ID()))
		return nil
	}
}

// SubmitText runs one caller turn from already-transcribed text, bypassing the
// audio path. It goes through the same event channel as audio turns, which
// keeps the one-turn-in-flight invariant.
func (s *Session) SubmitText(ctx context.Context, text string) (TextTurnResult, error) {
	reply := make(chan TextTurnResult, 1)
	ev := InboundEvent{Type: EventTextTurn, Text: text, Reply: reply}

	select {
	case s.events <- ev:
	case <-s.done:
		return TextTurnResult{}, ErrSessionEnded
	case <-ctx.Done():
		return TextTurnResult{}, ctx.Err()
	}

	select {
	case result := <-reply:
		return result, result.Err
	case <-s.done:
		return TextTurnResult{}, ErrSessionEnded
	case <-ctx.Done():
		return TextTurnResult{}, ctx.Err()
	}
}

// end records the termination reason once and cancels the session context,
// aborting any in-flight STT/dialogue/TTS call.
func (s *Session) end(reason entities.TerminationReason) {
	s.endOnce.Do(func() {
		s.mu.Lock()
		s.entity.EndReason = reason
		s.mu.Unlock()
		s.cancel()
	})
}

func (s *Session) run(ctx context.Context) {
	defer close(s.done)
	defer s.setState(entities.StateEnded)

	// The caller always hears the agent first.
	s.setState(entities.StateListening)
	s.speak(ctx, s.cfg.Greeting)

	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-s.events:
			s.handleEvent(ctx, ev)
		case now := <-ticker.C:
			if s.buffer.CompleteAt(now) {
				s.processTurn(ctx)
			}
		}
	}
}

func (s *Session) handleEvent(ctx context.Context, ev InboundEvent) {
	switch ev.Type {
	case EventTurnStart:
		s.touch()
	case EventAudioChunk:
		s.touch()
		if s.buffer.Append(ev.Chunk) && s.buffer.CompleteAt(time.Now()) {
			s.processTurn(ctx)
		}
	case EventTextTurn:
		s.touch()
		s.processTextTurn(ctx, ev)
	}
}

// processTurn runs one drained caller turn through STT, dialogue and TTS.
// Stages execute sequentially; each service client applies its own deadline
// and bounded retries, so a failure here means retries are exhausted.
func (s *Session) processTurn(ctx context.Context) {
	segment, voiced := s.buffer.Drain()

	if !voiced || len(segment.Audio) == 0 {
		s.logger.Info(fmt.Sprintf("Session %s: no speech detected, re-prompting", s.ID()))
		s.setState(entities.StateSpeaking)
		s.speak(ctx, s.cfg.ClarifyPrompt)
		s.setState(entities.StateListening)
		return
	}

	s.setState(entities.StateTranscribing)
	result, err := s.stt.Transcribe(ctx, segment.Audio)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.logger.Error(fmt.Sprintf("Session %s: transcription failed: %v", s.ID(), err))
		s.recoverWithApology(ctx, false)
		return
	}

	text := strings.TrimSpace(result.Text)
	if result.NoSpeech || text == "" {
		// Caller said nothing: re-prompt without consulting dialogue.
		s.setState(entities.StateSpeaking)
		s.speak(ctx, s.cfg.ClarifyPrompt)
		s.setState(entities.StateListening)
		return
	}

	s.appendTranscript(entities.SpeakerCaller, text)

	s.setState(entities.StateThinking)
	reply, err := s.dialogue.GenerateReply(ctx, s.History())
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.logger.Error(fmt.Sprintf("Session %s: dialogue failed: %v", s.ID(), err))
		s.recoverWithApology(ctx, true)
		return
	}

	s.appendTranscript(entities.SpeakerAgent, reply)

	s.setState(entities.StateSpeaking)
	s.speak(ctx, reply)
	s.setState(entities.StateListening)
}

// processTextTurn is the demo-probe variant of processTurn: the caller turn
// arrives as text, so the buffer and STT stages are skipped.
func (s *Session) processTextTurn(ctx context.Context, ev InboundEvent) {
	userMessage := s.appendTranscript(entities.SpeakerCaller, ev.Text)

	s.setState(entities.StateThinking)
	reply, err := s.dialogue.GenerateReply(ctx, s.History())
	if err != nil {
		if ctx.Err() != nil {
			s.answer(ev, TextTurnResult{Err: ctx.Err()})
			return
		}
		s.logger.Error(fmt.Sprintf("Session %s: dialogue failed: %v", s.ID(), err))
		reply = s.cfg.FallbackReply
	}

	agentMessage := s.appendTranscript(entities.SpeakerAgent, reply)

	s.setState(entities.StateSpeaking)
	s.speak(ctx, reply)
	s.setState(entities.StateListening)

	s.answer(ev, TextTurnResult{UserMessage: userMessage, AgentMessage: agentMessage})
}

// recoverWithApology keeps the call alive after an exhausted pipeline failure:
// the caller hears a canned apology and the session returns to Listening.
// appendEntry pairs the apology with an already-appended caller entry.
func (s *Session) recoverWithApology(ctx context.Context, appendEntry bool) {
	if ctx.Err() != nil {
		return
	}
	if appendEntry {
		s.appendTranscript(entities.SpeakerAgent, s.cfg.FallbackReply)
	}
	s.setState(entities.StateSpeaking)
	s.speak(ctx, s.cfg.FallbackReply)
	s.setState(entities.StateListening)
}

// speak synthesizes text and hands the audio to the transport. When TTS is
// unreachable the pre-recorded fallback clip is played instead, so the caller
// never gets silence.
func (s *Session) speak(ctx context.Context, text string) {
	if text == "" {
		return
	}

	audio, err := s.tts.Synthesize(ctx, text)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.logger.Error(fmt.Sprintf("Session %s: synthesis failed, playing fallback clip: %v", s.ID(), err))
		audio = s.cfg.FallbackAudio
	}
	if len(audio) == 0 {
		return
	}

	if err := s.transport.SendAudio(s.ID(), audio); err != nil {
		s.logger.Error(fmt.Sprintf("Session %s: failed to send audio: %v", s.ID(), err))
	}
}

func (s *Session) answer(ev InboundEvent, result TextTurnResult) {
	if ev.Reply == nil {
		return
	}
	select {
	case ev.Reply <- result:
	default:
	}
}

func (s *Session) appendTranscript(speaker string, text string) entities.Transcript {
	entry := entities.Transcript{Speaker: speaker, Message: text, Timestamp: time.Now()}
	s.mu.Lock()
	s.entity.Transcript = append(s.entity.Transcript, entry)
	s.entity.LastActivityAt = entry.Timestamp
	s.mu.Unlock()
	return entry
}

func (s *Session) setState(state entities.SessionState) {
	s.mu.Lock()
	s.entity.State = state
	s.mu.Unlock()
}

func (s *Session) touch() {
	s.mu.Lock()
	s.entity.LastActivityAt = time.Now()
	s.mu.Unlock()
}
