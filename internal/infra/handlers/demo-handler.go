package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"voice-ai/internal/domain/dto"
	"voice-ai/internal/domain/entities"
	"voice-ai/internal/engine"
	"voice-ai/internal/infra/logger"
)

type DemoHandlers struct {
	Logger   *logger.Logger
	Registry *engine.Registry
	DemoMode bool
}

func NewDemoHandlers(log *logger.Logger, registry *engine.Registry, demoMode bool) *DemoHandlers {
	return &DemoHandlers{Logger: log, Registry: registry, DemoMode: demoMode}
}

// DemoChat runs one conversation turn from typed text, creating a session
// when no conversation_id is supplied. The reply carries the session id for
// follow-up probes.
func (th *DemoHandlers) DemoChat(w http.ResponseWriter, r *http.Request) {
	if !th.DemoMode {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "demo mode not enabled"})
		return
	}

	var request dto.DemoChatRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "invalid JSON payload"})
		return
	}
	defer r.Body.Close()

	input := strings.TrimSpace(request.UserInput)
	if input == "" {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "user_input is required"})
		return
	}

	var session *engine.Session
	var err error
	if request.ConversationID != "" {
		session, err = th.Registry.Get(request.ConversationID)
		if err != nil {
			writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "session not found"})
			return
		}
	} else {
		session, err = th.Registry.CreateSession("", entities.ModeDemo, "")
		if err != nil {
			if errors.Is(err, engine.ErrCapacityExceeded) {
				writeJSON(w, http.StatusServiceUnavailable, dto.ErrorResponse{Error: "capacity exceeded"})
				return
			}
			th.Logger.Error(fmt.Sprintf("Failed to create demo session: %v", err))
			writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "failed to create session"})
			return
		}
	}

	result, err := session.SubmitText(r.Context(), input)
	if err != nil {
		th.Logger.Error(fmt.Sprintf("Demo turn failed for session %s: %v", session.ID(), err))
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "chat turn failed"})
		return
	}

	th.Logger.Info(fmt.Sprintf("User: %s", result.UserMessage.Message))
	th.Logger.Info(fmt.Sprintf("Agent: %s", result.AgentMessage.Message))

	writeJSON(w, http.StatusOK, dto.DemoChatResponse{
		ConversationID:      session.ID(),
		UserMessage:         result.UserMessage,
		AIResponse:          result.AgentMessage,
		ConversationHistory: session.History(),
	})
}
