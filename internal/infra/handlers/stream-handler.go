package handlers

import (
	"net/http"
	"voice-ai/internal/infra/logger"
	"voice-ai/internal/infra/provider"
)

type StreamHandlers struct {
	Logger   *logger.Logger
	Carrier  *provider.CarrierProvider
	DemoMode bool
}

func NewStreamHandlers(log *logger.Logger, carrier *provider.CarrierProvider, demoMode bool) *StreamHandlers {
	return &StreamHandlers{Logger: log, Carrier: carrier, DemoMode: demoMode}
}

// MediaStream is the carrier's entry point for per-call audio streaming.
func (th *StreamHandlers) MediaStream(w http.ResponseWriter, r *http.Request) {
	if th.DemoMode || th.Carrier == nil {
		http.Error(w, "media streaming only available in production mode", http.StatusBadRequest)
		return
	}
	th.Carrier.HandleMediaStream(w, r)
}
