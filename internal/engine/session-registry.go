package engine

import (
	"context"
	"fmt"
	"sync"
	"time"
	"voice-ai/internal/domain/entities"
	Iprovider "voice-ai/internal/domain/interfaces/provider"
	Iservices "voice-ai/internal/domain/interfaces/services"
	"voice-ai/internal/infra/logger"

	"github.com/google/uuid"
)

type RegistryConfig struct {
	// Ceiling bounds the number of live sessions, protecting shared service
	// quotas and local resources.
	Ceiling int
	// IdleTimeout terminates sessions with no activity, even when a transport
	// disconnects without signaling hangup.
	IdleTimeout time.Duration
	// ReapInterval is how often the background reaper scans for idle sessions.
	ReapInterval time.Duration

	Session SessionConfig
}

// SessionServices are the process-wide, immutably-configured collaborators
// handed to every session task. All of them are safe for concurrent use.
type SessionServices struct {
	Stt       Iservices.ISttService
	Dialogue  Iservices.IDialogueService
	Tts       Iservices.ITtsService
	Transport Iprovider.ITransportProvider
}

// terminateDrainWait is how long Terminate waits for a session goroutine to
// unwind its canceled in-flight call before the record is persisted.
const terminateDrainWait = 2 * time.Second

// Registry is the process-wide table of active sessions keyed by session id.
// It is the only state shared across session tasks; every create, terminate
// and reap goes through it.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	logger   *logger.Logger
	cfg      RegistryConfig
	services SessionServices
	records  Iservices.ICallRecordService

	baseCtx context.Context
}

// NewRegistry creates a registry. ctx is the parent of every session context;
// records may be nil when call persistence is not configured.
func NewRegistry(ctx context.Context, log *logger.Logger, cfg RegistryConfig, services SessionServices, records Iservices.ICallRecordService) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		logger:   log,
		cfg:      cfg,
		services: services,
		records:  records,
		baseCtx:  ctx,
	}
}

// CreateSession registers a new session and starts its pipeline goroutine.
// The ceiling check and the insert happen under one lock, so a rejected
// create never leaves a partially-constructed session registered.
func (r *Registry) CreateSession(phoneNumber string, mode entities.SessionMode, greeting string) (*Session, error) {
	cfg := r.cfg.Session
	if greeting != "" {
		cfg.Greeting = greeting
	}

	now := time.Now()
	sctx, cancel := context.WithCancel(r.baseCtx)
	session := &Session{
		entity: &entities.CallSession{
			SessionID:      uuid.NewString(),
			PhoneNumber:    phoneNumber,
			State:          entities.StateIdle,
			Mode:           mode,
			Transcript:     []entities.Transcript{},
			CreatedAt:      now,
			LastActivityAt: now,
		},
		events:    make(chan InboundEvent, cfg.EventQueueSize),
		buffer:    NewTurnBuffer(cfg.TurnBuffer),
		stt:       r.services.Stt,
		dialogue:  r.services.Dialogue,
		tts:       r.services.Tts,
		transport: r.services.Transport,
		logger:    r.logger,
		cfg:       cfg,
		cancel:    cancel,
		done:      make(chan struct{}),
	}

	r.mu.Lock()
	if len(r.sessions) >= r.cfg.Ceiling {
		r.mu.Unlock()
		cancel()
		return nil, ErrCapacityExceeded
	}
	r.sessions[session.ID()] = session
	r.mu.Unlock()

	go session.run(sctx)

	r.logger.Info(fmt.Sprintf("Session %s created for %s (mode=%s)", session.ID(), phoneNumber, mode))
	return session, nil
}

func (r *Registry) Get(sessionID string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	session, ok := r.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Terminate moves a session to Ended, runs the persistence hook and removes
// it from the live table. Canceling one session never affects the others.
func (r *Registry) Terminate(ctx context.Context, sessionID string, reason entities.TerminationReason) error {
	r.mu.Lock()
	session, ok := r.sessions[sessionID]
	if ok {
		delete(r.sessions, sessionID)
	}
	r.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}

	session.end(reason)

	select {
	case <-session.Done():
	case <-time.After(terminateDrainWait):
		r.logger.Warn(fmt.Sprintf("Session %s did not drain within %s", sessionID, terminateDrainWait))
	}

	if r.services.Transport != nil {
		// Idempotent on the transport side; for caller-side hangups the
		// stream is already gone.
		_ = r.services.Transport.Hangup(sessionID)
	}

	if r.records != nil {
		if err := r.records.SaveCallRecord(ctx, session.Snapshot()); err != nil {
			r.logger.Error(fmt.Sprintf("Failed to persist call record for session %s: %v", sessionID, err))
		}
	}

	r.logger.Info(fmt.Sprintf("Session %s terminated (%s)", sessionID, reason))
	return nil
}

// StartReaper launches the background scan that terminates sessions whose
// last activity exceeds the idle timeout.
func (r *Registry) StartReaper(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(r.cfg.ReapInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				for _, sessionID := range r.expired(now) {
					if err := r.Terminate(ctx, sessionID, entities.ReasonIdleTimeout); err == nil {
						r.logger.Info(fmt.Sprintf("Reaped idle session %s", sessionID))
					}
				}
			}
		}
	}()
}

func (r *Registry) expired(now time.Time) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var expired []string
	for sessionID, session := range r.sessions {
		if now.Sub(session.LastActivity()) > r.cfg.IdleTimeout {
			expired = append(expired, sessionID)
		}
	}
	return expired
}

// Shutdown terminates every live session, persisting each record.
func (r *Registry) Shutdown(ctx context.Context) {
	r.mu.RLock()
	ids := make([]string, 0, len(r.sessions))
	for sessionID := range r.sessions {
		ids = append(ids, sessionID)
	}
	r.mu.RUnlock()

	for _, sessionID := range ids {
		_ = r.Terminate(ctx, sessionID, entities.ReasonShutdown)
	}
}
