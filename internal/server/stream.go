package server

import (
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"voiceauth/internal/audio"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  16 * 1024,
	WriteBufferSize: 4 * 1024,
	// Cross-origin policy is the reverse proxy's concern; the engine sits
	// behind an authenticated internal boundary.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleStream runs a live verification capture over a websocket. The client
// sends binary PCM-16 frames; a text "stop" message ends the recording. The
// capture session's own max-duration timer closes the window if the client
// never stops. The assembled buffer then flows through the ordinary
// verification path.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request, p *principal) {
	sampleRate := 16000
	if v := r.URL.Query().Get("rate"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid rate parameter")
			return
		}
		sampleRate = parsed
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[Stream] upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	maxDur := time.Duration(s.cfg.Audio.MaxDurationSec * float64(time.Second))
	session := audio.NewCaptureSession(sampleRate, maxDur)
	if err := session.Start(); err != nil {
		conn.WriteJSON(map[string]string{"error": err.Error()})
		return
	}

	conn.SetReadLimit(maxUploadBytes)
	for {
		conn.SetReadDeadline(time.Now().Add(maxDur + 10*time.Second))
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			// Client went away mid-capture: abandon, nothing is committed.
			if session.State() == audio.CaptureRecording {
				session.Discard()
			}
			return
		}

		if msgType == websocket.TextMessage && string(data) == "stop" {
			break
		}
		if msgType != websocket.BinaryMessage {
			continue
		}
		if err := session.AppendPCM16(data); err != nil {
			// Recording window already closed by the timer.
			break
		}
	}

	if session.State() == audio.CaptureRecording {
		if err := session.Stop(); err != nil {
			conn.WriteJSON(map[string]string{"error": "empty capture"})
			return
		}
	}

	sample, err := session.Submit()
	if err != nil {
		conn.WriteJSON(map[string]string{"error": err.Error()})
		return
	}

	result, err := s.verifier.Verify(r.Context(), p.userID, sample)
	if err != nil {
		conn.WriteJSON(map[string]string{"error": err.Error()})
		return
	}
	s.metrics.RecordVerification(result.Decision.String(), string(result.Reason))
	conn.WriteJSON(s.verifyResponseFor(result, p))
}
