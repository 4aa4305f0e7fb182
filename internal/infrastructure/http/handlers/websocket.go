package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/alchemorsel/recipegen/internal/application/generation"
	"github.com/alchemorsel/recipegen/internal/domain/recipe"
	apperrors "github.com/alchemorsel/recipegen/pkg/errors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Websocket message types
const (
	MessageGenerate = "generate"
	MessageCancel   = "cancel"
	MessageSession  = "session"
	MessageFragment = "fragment"
	MessageRecipe   = "recipe"
	MessageError    = "error"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 << 10
)

// ClientMessage is sent by the browser
type ClientMessage struct {
	Type    string          `json:"type"`
	Request *recipe.Request `json:"request,omitempty"`
}

// ServerMessage is sent to the browser
type ServerMessage struct {
	Type      string          `json:"type"`
	SessionID string          `json:"session_id,omitempty"`
	Text      string          `json:"text,omitempty"`
	Result    *RecipeResponse `json:"result,omitempty"`
	Code      string          `json:"code,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// SessionMetrics counts open websocket sessions
type SessionMetrics interface {
	SessionOpened()
	SessionClosed()
}

// WebSocketHandler streams generations over a websocket, one session per
// connection
type WebSocketHandler struct {
	sessions *SessionStore
	metrics  SessionMetrics
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

// NewWebSocketHandler creates a new websocket handler. Connections are
// accepted from allowedOrigins ("*" allows any) and from the serving host.
func NewWebSocketHandler(sessions *SessionStore, metrics SessionMetrics, allowedOrigins []string, logger *zap.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		sessions: sessions,
		metrics:  metrics,
		logger:   logger.Named("websocket"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || strings.EqualFold(a, origin) {
				return true
			}
		}
		u, err := url.Parse(origin)
		return err == nil && strings.EqualFold(u.Host, r.Host)
	}
}

// wsConn serializes writes and tags fragments with the generation that
// produced them
type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
	seq  uint64
}

func (w *wsConn) send(msg ServerMessage) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.write(msg)
}

// sendFor drops msg when generation seq is no longer the latest
func (w *wsConn) sendFor(seq uint64, msg ServerMessage) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if seq != w.seq {
		return nil
	}
	return w.write(msg)
}

func (w *wsConn) next() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.seq++
	return w.seq
}

func (w *wsConn) write(msg ServerMessage) error {
	_ = w.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return w.conn.WriteJSON(msg)
}

func (w *wsConn) ping() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

// Serve handles GET /api/recipes/ws
func (h *WebSocketHandler) Serve(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	var wg sync.WaitGroup
	defer wg.Wait()

	ws := &wsConn{conn: conn}
	session := h.sessions.Open(func() { _ = conn.Close() })
	defer h.sessions.Close(session.ID())

	if h.metrics != nil {
		h.metrics.SessionOpened()
		defer h.metrics.SessionClosed()
	}

	logger := h.logger.With(zap.String("session_id", session.ID().String()))
	logger.Info("WebSocket session started", zap.String("ip", c.ClientIP()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.keepAlive(ctx, ws, logger)

	if err := ws.send(ServerMessage{Type: MessageSession, SessionID: session.ID().String()}); err != nil {
		return
	}

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg ClientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				logger.Warn("WebSocket read failed", zap.Error(err))
			}
			session.Cancel()
			return
		}

		switch msg.Type {
		case MessageGenerate:
			if msg.Request == nil {
				_ = ws.send(errorMessage(apperrors.NewValidationError("request is required")))
				continue
			}
			// Claim the session here so generations supersede each other
			// in the order their messages arrived.
			gen, err := session.Begin(ctx, *msg.Request)
			if err != nil {
				_ = ws.send(errorMessage(err))
				continue
			}
			seq := ws.next()
			wg.Add(1)
			go func() {
				defer wg.Done()
				h.generate(ws, gen, seq, logger)
			}()
		case MessageCancel:
			ws.next()
			session.Cancel()
		default:
			_ = ws.send(errorMessage(apperrors.NewBadRequestError("Unknown message type: " + msg.Type)))
		}
	}
}

func (h *WebSocketHandler) generate(ws *wsConn, gen *generation.Generation, seq uint64, logger *zap.Logger) {
	result, err := gen.Run(func(text string) {
		_ = ws.sendFor(seq, ServerMessage{Type: MessageFragment, Text: text})
	})
	if err != nil {
		if errors.Is(err, generation.ErrSuperseded) || errors.Is(err, context.Canceled) {
			return
		}
		_ = ws.sendFor(seq, errorMessage(err))
		return
	}

	response := NewRecipeResponse(result, logger)
	if err := ws.sendFor(seq, ServerMessage{Type: MessageRecipe, Result: &response}); err != nil {
		logger.Debug("Failed to deliver recipe", zap.Error(err))
	}
}

func (h *WebSocketHandler) keepAlive(ctx context.Context, ws *wsConn, logger *zap.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := ws.ping(); err != nil {
				logger.Debug("WebSocket ping failed", zap.Error(err))
				return
			}
		}
	}
}

func errorMessage(err error) ServerMessage {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		appErr = apperrors.NewAppError(apperrors.CodeGenerationFailed, apperrors.GenerationFailedMessage, "")
	}
	text := appErr.Message
	if appErr.Details != "" {
		text += ": " + appErr.Details
	}
	return ServerMessage{Type: MessageError, Code: string(appErr.Code), Error: text}
}
