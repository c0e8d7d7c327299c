package routes

import (
	"net/http"
	"voice-ai/internal/infra/handlers"

	"github.com/gorilla/mux"
)

type Routes struct {
	Mux            *mux.Router
	HomeHandlers   *handlers.HomeHandlers
	CallHandlers   *handlers.CallHandlers
	DemoHandlers   *handlers.DemoHandlers
	HealthHandlers *handlers.HealthHandlers
	StreamHandlers *handlers.StreamHandlers
}

func NewRoutes(mux *mux.Router, home *handlers.HomeHandlers, call *handlers.CallHandlers, demo *handlers.DemoHandlers, health *handlers.HealthHandlers, stream *handlers.StreamHandlers) *Routes {
	return &Routes{mux, home, call, demo, health, stream}
}

func (r *Routes) Init() {
	r.Mux.HandleFunc("/", r.HomeHandlers.Index).Methods(http.MethodGet)
	r.Mux.HandleFunc("/health", r.HealthHandlers.HealthCheck).Methods(http.MethodGet)
	r.Mux.HandleFunc("/call", r.CallHandlers.MakeCall).Methods(http.MethodPost)
	r.Mux.HandleFunc("/demo/chat", r.DemoHandlers.DemoChat).Methods(http.MethodPost)
	r.Mux.HandleFunc("/ws/call", r.StreamHandlers.MediaStream)
}
