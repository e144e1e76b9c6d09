package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"chatspeak/core"
	"chatspeak/handlers/chat"
	wstransport "chatspeak/transports/websocket"

	"github.com/bytedance/sonic"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const requestIDKey = "request_id"

// ChatHandler runs one chat-and-speak turn.
type ChatHandler interface {
	Handle(ctx context.Context, req chat.Request) (*chat.Result, error)
}

// SessionCounter reports how many sessions are live.
type SessionCounter interface {
	Len() int
}

// Server exposes the chat pipeline over HTTP and WebSocket and serves the
// static front end.
type Server struct {
	config   ServerConfig
	handler  ChatHandler
	sessions SessionCounter
	logger   *core.Logger
	router   *gin.Engine
	server   *http.Server
	upgrader websocket.Upgrader

	// baseCtx outlives individual requests so hijacked websocket
	// connections stop on Shutdown.
	baseCtx    context.Context
	cancelBase context.CancelFunc
}

// NewServer builds the router. sessions may be nil.
func NewServer(config ServerConfig, handler ChatHandler, sessions SessionCounter, logger *core.Logger) *Server {
	if logger == nil {
		logger = core.GetLogger()
	}
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = DefaultConfig().MaxBodyBytes
	}
	if config.GinMode != "" {
		gin.SetMode(config.GinMode)
	}

	baseCtx, cancel := context.WithCancel(context.Background())
	s := &Server{
		config:     config,
		handler:    handler,
		sessions:   sessions,
		logger:     logger.With(map[string]interface{}{"component": "http"}),
		baseCtx:    baseCtx,
		cancelBase: cancel,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
	s.router = s.buildRouter()
	s.server = &http.Server{
		Addr:              config.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Router exposes the handler for tests and embedding.
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) buildRouter() *gin.Engine {
	router := gin.New()
	_ = router.SetTrustedProxies(nil)

	router.Use(s.recovery())
	router.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:    []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders:   []string{"X-Request-Id", "X-Sample-Rate"},
		MaxAge:          12 * time.Hour,
	}))
	router.Use(s.requestID())
	router.Use(s.accessLog())

	api := router.Group("/api")
	api.POST("/chat-and-speak", s.chatAndSpeak)
	api.GET("/ws", s.serveWebSocket)

	router.GET("/healthz", s.health)
	router.NoRoute(s.static)
	return router
}

// Start listens until Shutdown. It returns nil after a clean shutdown.
func (s *Server) Start() error {
	s.logger.Info("listening", "addr", s.config.Addr, "static_dir", s.config.StaticDir)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancelBase()
	return s.server.Shutdown(ctx)
}

func (s *Server) chatAndSpeak(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.config.MaxBodyBytes)
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Request body too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "Could not read request body"})
		return
	}

	var req chat.Request
	if len(strings.TrimSpace(string(body))) > 0 {
		if err := sonic.Unmarshal(body, &req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON body"})
			return
		}
	}
	req.RequestID = c.GetString(requestIDKey)

	res, err := s.handler.Handle(c.Request.Context(), req)
	if err != nil {
		c.JSON(chat.StatusCode(err), gin.H{"error": err.Error()})
		return
	}

	c.Header("X-Sample-Rate", strconv.Itoa(res.SampleRate))
	c.Data(http.StatusOK, res.ContentType, res.Audio)
}

func (s *Server) serveWebSocket(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the error response.
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	ws := wstransport.NewWebSocketService(conn, c.Query("session_id"), s.logger)
	defer ws.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	stop := context.AfterFunc(s.baseCtx, cancel)
	defer stop()

	if err := ws.Serve(ctx, s.handler.Handle); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Debug("websocket closed", "error", err)
	}
}

func (s *Server) health(c *gin.Context) {
	body := gin.H{"status": "ok"}
	if s.sessions != nil {
		body["sessions"] = s.sessions.Len()
	}
	c.JSON(http.StatusOK, body)
}

// static serves the front end: "/" is index.html, anything else is a file
// under StaticDir. Paths cannot escape the directory.
func (s *Server) static(c *gin.Context) {
	if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
		return
	}

	rel := filepath.Clean("/" + c.Request.URL.Path)
	if rel == "/" {
		rel = "/index.html"
	}
	path := filepath.Join(s.config.StaticDir, filepath.FromSlash(rel))

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
		return
	}
	c.File(path)
}

func (s *Server) requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := uuid.NewString()
		c.Set(requestIDKey, id)
		c.Header("X-Request-Id", id)
		c.Next()
	}
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()
		s.logger.Info("request",
			"request_id", c.GetString(requestIDKey),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"bytes", c.Writer.Size(),
			"latency_ms", time.Since(started).Milliseconds(),
		)
	}
}

// recovery turns a panic into a 500 and logs the stack.
func (s *Server) recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if p := recover(); p != nil {
				s.logger.Error("panic while handling request",
					"request_id", c.GetString(requestIDKey),
					"path", c.Request.URL.Path,
					"panic", fmt.Sprint(p),
					"stack", string(debug.Stack()),
				)
				if !c.Writer.Written() {
					c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprint(p)})
					return
				}
				c.Abort()
			}
		}()
		c.Next()
	}
}
