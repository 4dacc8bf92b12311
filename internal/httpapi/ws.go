package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/elitedev/sdr-agent/internal/agent"
	"github.com/elitedev/sdr-agent/internal/model"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Browser clients are served cross-origin; the HTTP layer already
		// allows any origin
		return true
	},
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

type streamFrame struct {
	Response string          `json:"response,omitempty"`
	History  []model.Content `json:"history,omitempty"`
	Error    string          `json:"error,omitempty"`
}

// handleChatStream upgrades to a websocket and runs one turn per inbound
// frame. The connection closes on the first read error.
func (s *Server) handleChatStream(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}
	defer conn.Close()

	s.logger.Info().Str("remote", conn.RemoteAddr().String()).Msg("Chat stream opened")

	for {
		var req ChatRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Warn().Err(err).Msg("Chat stream read error")
			}
			return
		}

		if req.Prompt == "" {
			if err := conn.WriteJSON(streamFrame{Error: "prompt is required"}); err != nil {
				return
			}
			continue
		}

		reply, history, err := s.runner.RunTurn(c.Request.Context(), req.Prompt, req.History)
		if err != nil {
			msg := err.Error()
			if errors.Is(err, agent.ErrModelUnavailable) {
				msg = "O modelo está temporariamente indisponível. Tente novamente em alguns segundos."
			}
			if werr := conn.WriteJSON(streamFrame{Error: msg}); werr != nil {
				return
			}
			continue
		}

		s.recordTranscript(c.Request.Context(), req.SessionID, req.Prompt, reply)
		if err := conn.WriteJSON(ChatResponse{Response: reply, History: history}); err != nil {
			return
		}
	}
}
