package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"media-transcriber/pkg/pipeline"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type WebSocketMessage struct {
	Type           string          `json:"type"`
	URL            string          `json:"url,omitempty"`
	Language       string          `json:"language,omitempty"`
	DetectLanguage bool            `json:"detect_language,omitempty"`
	Fingerprint    string          `json:"fingerprint,omitempty"`
	Status         string          `json:"status,omitempty"`
	SegmentIndex   int             `json:"segment_index,omitempty"`
	SegmentCount   int             `json:"segment_count,omitempty"`
	Data           json.RawMessage `json:"data,omitempty"`
	Error          string          `json:"error,omitempty"`
}

// wsConn serialises writes; gorilla connections allow one writer at a time.
type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsConn) send(msg WebSocketMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.WriteJSON(msg)
}

// WebSocketHandler runs "process" requests and streams each state
// transition back. Closing the socket cancels runs it started.
func (h *Handlers) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	ws := &wsConn{conn: conn}

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	defer func() {
		cancel()
		wg.Wait()
	}()

	for {
		var msg WebSocketMessage
		if err := conn.ReadJSON(&msg); err != nil {
			break
		}

		switch msg.Type {
		case "process":
			if msg.URL == "" {
				ws.send(WebSocketMessage{Type: "error", Error: "url is required"})
				continue
			}
			wg.Add(1)
			go func(msg WebSocketMessage) {
				defer wg.Done()
				h.handleProcess(ctx, ws, msg)
			}(msg)
		case "ping":
			ws.send(WebSocketMessage{Type: "pong"})
		default:
			ws.send(WebSocketMessage{Type: "error", Error: "Unknown message type"})
		}
	}
}

func (h *Handlers) handleProcess(ctx context.Context, ws *wsConn, msg WebSocketMessage) {
	req := pipeline.Request{URL: msg.URL, Language: msg.Language, DetectLanguage: msg.DetectLanguage}
	h.logger.Info("ws processing started", "url", req.URL)

	res, err := h.orch.Process(ctx, req, func(ev pipeline.Event) {
		ws.send(WebSocketMessage{
			Type:         "status_update",
			URL:          req.URL,
			Fingerprint:  ev.Fingerprint,
			Status:       string(ev.Status),
			SegmentIndex: ev.SegmentIndex,
			SegmentCount: ev.SegmentCount,
		})
	})
	if err != nil {
		h.logger.Warn("ws processing failed", "url", req.URL, "error", err)
		ws.send(WebSocketMessage{Type: "processing_failed", URL: req.URL, Error: err.Error()})
		return
	}

	data, err := json.Marshal(newProcessResponse(res))
	if err != nil {
		ws.send(WebSocketMessage{Type: "processing_failed", URL: req.URL, Error: err.Error()})
		return
	}
	ws.send(WebSocketMessage{
		Type:        "processing_complete",
		URL:         req.URL,
		Fingerprint: res.Record.Fingerprint,
		Data:        data,
	})
}
