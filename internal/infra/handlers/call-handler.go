package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"voice-ai/internal/domain/dto"
	"voice-ai/internal/domain/entities"
	Iprovider "voice-ai/internal/domain/interfaces/provider"
	"voice-ai/internal/engine"
	"voice-ai/internal/infra/logger"
)

type CallHandlers struct {
	Logger    *logger.Logger
	Registry  *engine.Registry
	Transport Iprovider.ITransportProvider
	DemoMode  bool
}

func NewCallHandlers(log *logger.Logger, registry *engine.Registry, transport Iprovider.ITransportProvider, demoMode bool) *CallHandlers {
	return &CallHandlers{Logger: log, Registry: registry, Transport: transport, DemoMode: demoMode}
}

// MakeCall triggers an outbound call: the session is registered first, then
// the transport dials. A registry at capacity rejects the call before the
// carrier is ever contacted.
func (th *CallHandlers) MakeCall(w http.ResponseWriter, r *http.Request) {
	var request dto.CallRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "invalid JSON payload"})
		return
	}
	defer r.Body.Close()

	if strings.TrimSpace(request.PhoneNumber) == "" {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "phone_number is required"})
		return
	}

	mode := entities.ModeProduction
	if th.DemoMode {
		mode = entities.ModeDemo
	}

	session, err := th.Registry.CreateSession(request.PhoneNumber, mode, request.Message)
	if err != nil {
		if errors.Is(err, engine.ErrCapacityExceeded) {
			writeJSON(w, http.StatusServiceUnavailable, dto.ErrorResponse{Error: "capacity exceeded"})
			return
		}
		th.Logger.Error(fmt.Sprintf("Failed to create session: %v", err))
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "failed to create session"})
		return
	}

	if err := th.Transport.PlaceCall(r.Context(), session.ID(), request.PhoneNumber); err != nil {
		th.Logger.Error(fmt.Sprintf("Failed to place call for session %s: %v", session.ID(), err))
		_ = th.Registry.Terminate(r.Context(), session.ID(), entities.ReasonFatalError)
		writeJSON(w, http.StatusBadGateway, dto.ErrorResponse{Error: "call failed"})
		return
	}

	message := "Call initiated"
	if th.DemoMode {
		message = "Demo call simulated"
	}
	writeJSON(w, http.StatusOK, dto.CallResponse{
		Success:  true,
		CallID:   session.ID(),
		DemoMode: th.DemoMode,
		Message:  message,
	})
}
