package websocket

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"chatspeak/core"
	"chatspeak/handlers/chat"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// HandleFunc runs one chat turn.
type HandleFunc func(ctx context.Context, req chat.Request) (*chat.Result, error)

type (
	// audioHeader precedes every binary WAV message.
	audioHeader struct {
		Type       string `json:"type"`
		RequestID  string `json:"requestId"`
		SessionID  string `json:"sessionId"`
		Text       string `json:"text"`
		SampleRate int    `json:"sampleRate"`
		Channels   int    `json:"channels"`
		Format     string `json:"format"`
		Size       int    `json:"size"`
	}

	errorMessage struct {
		Type      string `json:"type"`
		RequestID string `json:"requestId,omitempty"`
		Status    int    `json:"status"`
		Error     string `json:"error"`
	}
)

const (
	writeWait = 10 * time.Second
	// defaultPongWait bounds how long the peer may stay silent between reads.
	defaultPongWait = 60 * time.Second
)

// WebSocketService serves chat turns over one client connection. Each text
// message is a request, either a JSON body {"prompt", "session_id"} or a
// plain-text prompt for the connection's default session. Each reply is a
// JSON header followed by one binary message holding a complete WAV file.
type WebSocketService struct {
	conn           *websocket.Conn
	mu             sync.Mutex // protects writes
	defaultSession string
	pongWait       time.Duration
	logger         *core.Logger
}

// NewWebSocketService creates a new WebSocketService with an existing connection
func NewWebSocketService(conn *websocket.Conn, defaultSession string, logger *core.Logger) *WebSocketService {
	if logger == nil {
		logger = core.GetLogger()
	}
	return &WebSocketService{
		conn:           conn,
		defaultSession: defaultSession,
		pongWait:       defaultPongWait,
		logger:         logger.With(map[string]interface{}{"component": "websocket", "remote": conn.RemoteAddr().String()}),
	}
}

// Serve reads requests until the client disconnects or ctx is done. Turns on
// one connection run in order.
func (ws *WebSocketService) Serve(ctx context.Context, handle HandleFunc) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ws.conn.SetPongHandler(func(string) error {
		return ws.conn.SetReadDeadline(time.Now().Add(ws.pongWait))
	})
	go ws.heartbeat(ctx)

	// unblocks ReadMessage when the server shuts down
	stop := context.AfterFunc(ctx, func() { ws.conn.Close() })
	defer stop()

	for {
		// Pong handling only runs inside ReadMessage; refresh before each read.
		ws.conn.SetReadDeadline(time.Now().Add(ws.pongWait))
		messageType, msg, err := ws.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		if messageType != websocket.TextMessage {
			ws.SendError("", core.NewValidationError("binary messages are not supported"))
			continue
		}

		req, err := ws.parseRequest(msg)
		if err != nil {
			ws.SendError(req.RequestID, err)
			continue
		}

		res, err := handle(ctx, req)
		if err != nil {
			ws.SendError(req.RequestID, err)
			continue
		}
		if err := ws.SendResult(req, res); err != nil {
			return err
		}
	}
}

func (ws *WebSocketService) parseRequest(msg []byte) (chat.Request, error) {
	req := chat.Request{RequestID: uuid.NewString()}

	trimmed := strings.TrimSpace(string(msg))
	if strings.HasPrefix(trimmed, "{") {
		var body chat.Request
		if err := sonic.Unmarshal(msg, &body); err != nil {
			return req, core.NewValidationError("Invalid JSON body")
		}
		req.Prompt = body.Prompt
		req.SessionID = body.SessionID
	} else {
		req.Prompt = trimmed
	}
	if req.SessionID == "" {
		req.SessionID = ws.defaultSession
	}
	return req, nil
}

// SendResult writes the audio header and the WAV payload.
func (ws *WebSocketService) SendResult(req chat.Request, res *chat.Result) error {
	header, err := sonic.Marshal(audioHeader{
		Type:       "audio",
		RequestID:  req.RequestID,
		SessionID:  req.SessionID,
		Text:       res.CleanText,
		SampleRate: res.SampleRate,
		Channels:   1,
		Format:     res.ContentType,
		Size:       len(res.Audio),
	})
	if err != nil {
		return err
	}

	ws.mu.Lock()
	defer ws.mu.Unlock()

	ws.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := ws.conn.WriteMessage(websocket.TextMessage, header); err != nil {
		return err
	}
	return ws.conn.WriteMessage(websocket.BinaryMessage, res.Audio)
}

// SendError reports a failed request without closing the connection.
func (ws *WebSocketService) SendError(requestID string, cause error) {
	data, err := sonic.Marshal(errorMessage{
		Type:      "error",
		RequestID: requestID,
		Status:    chat.StatusCode(cause),
		Error:     cause.Error(),
	})
	if err != nil {
		ws.logger.Error("failed to encode error message", "error", err)
		return
	}

	ws.mu.Lock()
	defer ws.mu.Unlock()
	ws.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := ws.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		ws.logger.Warn("failed to send error message", "error", err)
	}
}

func (ws *WebSocketService) heartbeat(ctx context.Context) {
	ticker := time.NewTicker(ws.pongWait * 9 / 10)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ws.mu.Lock()
			err := ws.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			ws.mu.Unlock()
			if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
				ws.logger.Debug("ping failed", "error", err)
				return
			}
		}
	}
}

// Close shuts down the WebSocket connection
func (ws *WebSocketService) Close() error {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	_ = ws.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
	return ws.conn.Close()
}
