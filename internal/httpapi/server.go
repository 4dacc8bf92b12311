package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/elitedev/sdr-agent/internal/agent"
	"github.com/elitedev/sdr-agent/internal/config"
	"github.com/elitedev/sdr-agent/internal/model"
	"github.com/elitedev/sdr-agent/internal/observability"
	"github.com/elitedev/sdr-agent/internal/session"
)

// TurnRunner executes one conversation turn.
type TurnRunner interface {
	RunTurn(ctx context.Context, message string, history []model.Content) (string, []model.Content, error)
}

// TranscriptStore persists and serves conversation transcripts.
type TranscriptStore interface {
	RecordTurn(ctx context.Context, sessionID, role, message string)
	RecentTurns(ctx context.Context, sessionID string, limit int) ([]session.Turn, error)
	Ping(ctx context.Context) error
}

// ChatRequest is the body of POST /chat and of each websocket frame.
type ChatRequest struct {
	Prompt    string          `json:"prompt" binding:"required"`
	History   []model.Content `json:"history"`
	SessionID string          `json:"session_id"`
}

// ChatResponse carries the reply and the updated history back to the client.
type ChatResponse struct {
	Response string          `json:"response"`
	History  []model.Content `json:"history"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Server exposes the agent over HTTP and websocket.
type Server struct {
	runner TurnRunner
	store  TranscriptStore // nil when transcripts are disabled
	cfg    *config.Config
	logger zerolog.Logger
}

// NewServer creates the HTTP surface over the given turn runner.
func NewServer(runner TurnRunner, store TranscriptStore, cfg *config.Config) *Server {
	return &Server{
		runner: runner,
		store:  store,
		cfg:    cfg,
		logger: observability.GetLogger(),
	}
}

// Router builds the gin engine with all routes mounted.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "SDR agent API running"})
	})

	router.POST("/chat", s.handleChat)
	router.GET("/chat/stream", s.handleChatStream)
	if s.store != nil {
		router.GET("/chat/history", s.handleChatHistory)
	}

	router.GET("/health", gin.WrapF(observability.HealthCheckHandler()))
	router.GET("/ready", gin.WrapF(observability.ReadinessHandler(s.readinessChecks())))

	if s.cfg.MetricsEnabled {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, errorResponse{Error: "route not found"})
	})

	return router
}

func (s *Server) readinessChecks() map[string]observability.HealthCheckFunc {
	checks := map[string]observability.HealthCheckFunc{}
	if s.store != nil {
		checks["transcript_store"] = func(ctx context.Context) (bool, error) {
			if err := s.store.Ping(ctx); err != nil {
				return false, err
			}
			return true, nil
		}
	}
	return checks
}

func (s *Server) handleChat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	reply, history, err := s.runner.RunTurn(c.Request.Context(), req.Prompt, req.History)
	if err != nil {
		status := http.StatusInternalServerError
		msg := err.Error()
		if errors.Is(err, agent.ErrModelUnavailable) {
			status = http.StatusServiceUnavailable
			msg = "O modelo está temporariamente indisponível. Tente novamente em alguns segundos."
		}
		c.JSON(status, errorResponse{Error: msg})
		return
	}

	s.recordTranscript(c.Request.Context(), req.SessionID, req.Prompt, reply)
	c.JSON(http.StatusOK, ChatResponse{Response: reply, History: history})
}

// handleChatHistory serves a session's stored transcript, oldest first.
func (s *Server) handleChatHistory(c *gin.Context) {
	sessionID := c.Query("session_id")
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "session_id is required"})
		return
	}

	limit := 50
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, errorResponse{Error: "limit must be a positive integer"})
			return
		}
		limit = n
	}

	turns, err := s.store.RecentTurns(c.Request.Context(), sessionID, limit)
	if err != nil {
		s.logger.Error().Err(err).Str("session_id", sessionID).Msg("Failed to load transcript")
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "failed to load transcript"})
		return
	}
	if turns == nil {
		turns = []session.Turn{}
	}

	c.JSON(http.StatusOK, gin.H{"session_id": sessionID, "turns": turns})
}

func (s *Server) recordTranscript(ctx context.Context, sessionID, prompt, reply string) {
	if s.store == nil || sessionID == "" {
		return
	}
	s.store.RecordTurn(ctx, sessionID, "user", prompt)
	s.store.RecordTurn(ctx, sessionID, "model", reply)
}
