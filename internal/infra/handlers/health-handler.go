package handlers

import (
	"net/http"
	"time"
	"voice-ai/internal/domain/dto"
	"voice-ai/internal/engine"
	"voice-ai/internal/infra/logger"
)

type HealthHandlers struct {
	Logger     *logger.Logger
	Registry   *engine.Registry
	DemoMode   bool
	Components dto.HealthComponents
}

func NewHealthHandlers(log *logger.Logger, registry *engine.Registry, demoMode bool, components dto.HealthComponents) *HealthHandlers {
	return &HealthHandlers{Logger: log, Registry: registry, DemoMode: demoMode, Components: components}
}

func (th *HealthHandlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, dto.HealthResponse{
		Status:         "healthy",
		DemoMode:       th.DemoMode,
		Timestamp:      time.Now().Format(time.RFC3339),
		ActiveSessions: th.Registry.Count(),
		Components:     th.Components,
	})
}
