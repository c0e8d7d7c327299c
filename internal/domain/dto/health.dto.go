package dto

type HealthResponse struct {
	Status         string           `json:"status"`
	DemoMode       bool             `json:"demo_mode"`
	Timestamp      string           `json:"timestamp"`
	ActiveSessions int              `json:"active_sessions"`
	Components     HealthComponents `json:"components"`
}

// HealthComponents names the backing implementation of each collaborator
// ("mock"/"simulated" in demo mode, "http"/"carrier" in production).
type HealthComponents struct {
	Stt      string `json:"stt"`
	Dialogue string `json:"dialogue"`
	Tts      string `json:"tts"`
	Carrier  string `json:"carrier"`
}
