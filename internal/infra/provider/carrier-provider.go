package provider

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
	"voice-ai/internal/domain/dto"
	"voice-ai/internal/domain/entities"
	Iprovider "voice-ai/internal/domain/interfaces/provider"
	"voice-ai/internal/engine"
	"voice-ai/internal/infra/logger"

	"github.com/gorilla/websocket"
)

var _ Iprovider.ITransportProvider = (*CarrierProvider)(nil)

// outboundFrameBytes is 200ms of 16-bit PCM at 8kHz per media frame.
const outboundFrameBytes = 3200

// CarrierProvider is the production transport. Call control goes to the
// telephony provider's REST API; caller audio arrives over a bidirectional
// WebSocket media stream the carrier opens against /ws/call. Every
// carrier-specific request format stays inside this type.
type CarrierProvider struct {
	Logger     *logger.Logger
	HttpClient *http.Client
	BaseURL    string
	AuthID     string
	AuthToken  string
	FromNumber string
	PublicURL  string

	registry *engine.Registry
	upgrader websocket.Upgrader

	mu    sync.RWMutex
	conns map[string]*mediaConn
	calls map[string]string
}

// carrierCallResponse is the carrier's acknowledgment of a placed call. The
// call UUID is the carrier's identifier for the leg, required for call
// control requests such as hangup.
type carrierCallResponse struct {
	CallUUID    string `json:"call_uuid"`
	RequestUUID string `json:"request_uuid"`
}

type mediaConn struct {
	ws  *websocket.Conn
	mu  sync.Mutex
	seq int64
}

func NewCarrierProvider(log *logger.Logger, httpClient *http.Client, baseURL, authID, authToken, fromNumber, publicURL string) *CarrierProvider {
	return &CarrierProvider{
		Logger:     log,
		HttpClient: httpClient,
		BaseURL:    baseURL,
		AuthID:     authID,
		AuthToken:  authToken,
		FromNumber: fromNumber,
		PublicURL:  publicURL,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		conns: make(map[string]*mediaConn),
		calls: make(map[string]string),
	}
}

// AttachRegistry wires the session registry after construction; the registry
// needs the transport to send audio and the transport needs the registry to
// deliver inbound media.
func (cp *CarrierProvider) AttachRegistry(registry *engine.Registry) {
	cp.registry = registry
}

func (cp *CarrierProvider) Name() string {
	return "carrier"
}

// PlaceCall asks the carrier to dial the number and open a bidirectional
// media stream back to this service for the session.
func (cp *CarrierProvider) PlaceCall(ctx context.Context, sessionID string, phoneNumber string) error {
	wsURL := strings.Replace(cp.PublicURL, "http", "ws", 1) + "/ws/call?session_id=" + sessionID

	answerXML := fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<Response>
    <Stream bidirectional="true" keepCallAlive="true" contentType="audio/x-l16" sampleRate="8000">%s</Stream>
</Response>`, wsURL)

	payload, err := json.Marshal(map[string]string{
		"from":          cp.FromNumber,
		"to":            phoneNumber,
		"answer_url":    "data:application/xml;charset=utf-8," + answerXML,
		"answer_method": "GET",
	})
	if err != nil {
		return fmt.Errorf("failed to marshal call payload: %w", err)
	}

	url := fmt.Sprintf("%s/Account/%s/Call/", cp.BaseURL, cp.AuthID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create call request: %w", err)
	}
	req.SetBasicAuth(cp.AuthID, cp.AuthToken)
	req.Header.Set("Content-Type", "application/json")

	res, err := cp.HttpClient.Do(req)
	if err != nil {
		cp.Logger.Error(fmt.Sprintf("Carrier call request failed: %v", err))
		return fmt.Errorf("carrier call request failed: %w", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return fmt.Errorf("failed to read carrier response: %w", err)
	}

	if res.StatusCode < http.StatusOK || res.StatusCode >= http.StatusMultipleChoices {
		cp.Logger.Error(fmt.Sprintf("Carrier rejected call: %s response_body %s", res.Status, string(body)))
		return fmt.Errorf("carrier rejected call: %s", res.Status)
	}

	var ack carrierCallResponse
	if err := json.Unmarshal(body, &ack); err != nil {
		cp.Logger.Warn(fmt.Sprintf("Could not parse carrier call response for session %s: %v", sessionID, err))
	}
	callUUID := ack.CallUUID
	if callUUID == "" {
		callUUID = ack.RequestUUID
	}
	if callUUID != "" {
		cp.mu.Lock()
		cp.calls[sessionID] = callUUID
		cp.mu.Unlock()
	}

	cp.Logger.Info(fmt.Sprintf("Call initiated to %s (session %s, call %s)", phoneNumber, sessionID, callUUID))
	return nil
}

// HandleMediaStream serves the carrier's WebSocket connection for one call.
// It reads media frames and delivers them to the session in arrival order;
// a stop frame is the caller's hangup signal.
func (cp *CarrierProvider) HandleMediaStream(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		http.Error(w, "session_id is required", http.StatusBadRequest)
		return
	}

	session, err := cp.registry.Get(sessionID)
	if err != nil {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	ws, err := cp.upgrader.Upgrade(w, r, nil)
	if err != nil {
		cp.Logger.Error(fmt.Sprintf("WebSocket upgrade failed for session %s: %v", sessionID, err))
		return
	}

	conn := &mediaConn{ws: ws}
	cp.mu.Lock()
	cp.conns[sessionID] = conn
	cp.mu.Unlock()

	cp.Logger.Info(fmt.Sprintf("Media stream connected for session %s", sessionID))
	cp.readLoop(session, conn)

	cp.mu.Lock()
	delete(cp.conns, sessionID)
	cp.mu.Unlock()
	_ = ws.Close()
}

func (cp *CarrierProvider) readLoop(session *engine.Session, conn *mediaConn) {
	for {
		_, data, err := conn.ws.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				cp.Logger.Warn(fmt.Sprintf("Media stream read error for session %s: %v", session.ID(), err))
			}
			return
		}

		var frame dto.MediaFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			continue
		}

		switch frame.Event {
		case dto.FrameEventStart:
			_ = session.Deliver(engine.InboundEvent{Type: engine.EventTurnStart})

		case dto.FrameEventMedia:
			if frame.Payload == "" {
				continue
			}
			audio, err := base64.StdEncoding.DecodeString(frame.Payload)
			if err != nil {
				continue
			}
			// An explicit zero means the transport heard silence; only a
			// missing estimate falls back to the buffer's own RMS.
			energy := -1.0
			if frame.Energy != nil {
				energy = *frame.Energy
			}
			_ = session.Deliver(engine.InboundEvent{
				Type: engine.EventAudioChunk,
				Chunk: engine.AudioChunk{
					Seq:       frame.Seq,
					Payload:   audio,
					Timestamp: time.Now(),
					Energy:    energy,
				},
			})

		case dto.FrameEventStop:
			_ = cp.registry.Terminate(context.Background(), session.ID(), entities.ReasonHangup)
			return
		}
	}
}

// SendAudio streams a synthesized utterance to the caller as ordered media
// frames, closed by a turn-end mark.
func (cp *CarrierProvider) SendAudio(sessionID string, audio []byte) error {
	cp.mu.RLock()
	conn, ok := cp.conns[sessionID]
	cp.mu.RUnlock()
	if !ok {
		return fmt.Errorf("no media stream for session %s", sessionID)
	}

	conn.mu.Lock()
	defer conn.mu.Unlock()

	for offset := 0; offset < len(audio); offset += outboundFrameBytes {
		end := offset + outboundFrameBytes
		if end > len(audio) {
			end = len(audio)
		}
		conn.seq++
		frame := dto.MediaFrame{
			Event:     dto.FrameEventMedia,
			SessionID: sessionID,
			Seq:       conn.seq,
			Payload:   base64.StdEncoding.EncodeToString(audio[offset:end]),
		}
		if err := conn.ws.WriteJSON(frame); err != nil {
			return fmt.Errorf("failed to write media frame: %w", err)
		}
	}

	conn.seq++
	mark := dto.MediaFrame{
		Event:     dto.FrameEventMark,
		SessionID: sessionID,
		Seq:       conn.seq,
		Mark:      dto.MarkTurnEnd,
	}
	if err := conn.ws.WriteJSON(mark); err != nil {
		return fmt.Errorf("failed to write mark frame: %w", err)
	}
	return nil
}

// Hangup closes the media stream and asks the carrier to end the call. It is
// tolerant of the stream already being gone, since caller-side hangups close
// it first.
func (cp *CarrierProvider) Hangup(sessionID string) error {
	cp.mu.Lock()
	conn, ok := cp.conns[sessionID]
	if ok {
		delete(cp.conns, sessionID)
	}
	callUUID, placed := cp.calls[sessionID]
	delete(cp.calls, sessionID)
	cp.mu.Unlock()

	if ok {
		conn.mu.Lock()
		_ = conn.ws.WriteJSON(dto.MediaFrame{Event: dto.FrameEventStop, SessionID: sessionID})
		_ = conn.ws.Close()
		conn.mu.Unlock()
	}

	// Call control needs the carrier's identifier for the leg; without one
	// there is nothing to hang up on the carrier side.
	if !placed {
		return nil
	}

	url := fmt.Sprintf("%s/Account/%s/Call/%s/", cp.BaseURL, cp.AuthID, callUUID)
	req, err := http.NewRequest(http.MethodDelete, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create hangup request: %w", err)
	}
	req.SetBasicAuth(cp.AuthID, cp.AuthToken)

	res, err := cp.HttpClient.Do(req)
	if err != nil {
		cp.Logger.Warn(fmt.Sprintf("Carrier hangup request failed for session %s: %v", sessionID, err))
		return nil
	}
	defer res.Body.Close()
	return nil
}
