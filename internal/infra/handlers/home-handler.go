package handlers

import (
	"fmt"
	"net/http"
)

type HomeHandlers struct {
	DemoMode bool
}

func NewHomeHandlers(demoMode bool) *HomeHandlers {
	return &HomeHandlers{DemoMode: demoMode}
}

func (th *HomeHandlers) Index(w http.ResponseWriter, r *http.Request) {
	mode := "Production Mode - Connected to carrier"
	if th.DemoMode {
		mode = "Demo Mode - Test locally without a carrier"
	}

	page := fmt.Sprintf(`<!DOCTYPE html>
<html lang="en">
<head><meta charset="UTF-8"><title>Voice AI System</title></head>
<body>
<h1>Voice AI System</h1>
<p>%s</p>
<h2>API Endpoints</h2>
<ul>
<li><strong>GET /health</strong> - System health check</li>
<li><strong>POST /demo/chat</strong> - Demo conversation ({"user_input": "...", "conversation_id": "..."})</li>
<li><strong>POST /call</strong> - Make a call ({"phone_number": "+91XXXXXXXXXX"})</li>
<li><strong>WS /ws/call</strong> - Media stream for call audio</li>
</ul>
</body>
</html>`, mode)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(page))
}
