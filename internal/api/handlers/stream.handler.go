package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	gorillaws "github.com/gorilla/websocket"

	"github.com/platformbuilds/mirador-rollout/internal/api/websocket"
	"github.com/platformbuilds/mirador-rollout/internal/config"
	"github.com/platformbuilds/mirador-rollout/internal/models"
	"github.com/platformbuilds/mirador-rollout/internal/services"
	"github.com/platformbuilds/mirador-rollout/pkg/logger"
)

// StreamHandler serves GET /analyze/stream: every text frame is a realtime
// analysis request and gets exactly one reply frame, in order.
type StreamHandler struct {
	service  *services.RolloutService
	hub      *websocket.Hub
	upgrader gorillaws.Upgrader
	cfg      config.WebSocketConfig
	logger   logger.Logger
}

func NewStreamHandler(service *services.RolloutService, hub *websocket.Hub, cfg config.WebSocketConfig, logger logger.Logger) *StreamHandler {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = config.DefaultWSPingInterval
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = config.DefaultWSMessageSize
	}
	return &StreamHandler{
		service: service,
		hub:     hub,
		upgrader: gorillaws.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			// Origin policy is enforced by the CORS middleware.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		cfg:    cfg,
		logger: logger,
	}
}

// GET /api/v1/rollout-intelligence/analyze/stream (upgrades to WS)
func (h *StreamHandler) Stream(c *gin.Context) {
	if !gorillaws.IsWebSocketUpgrade(c.Request) {
		c.JSON(http.StatusUpgradeRequired, gin.H{
			"status":  "error",
			"error":   "WebSocket upgrade required",
			"details": "Connect with a WebSocket client and send one RealtimeAnalysisRequest JSON object per message",
		})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("WebSocket upgrade failed", "error", err)
		return
	}

	client := h.hub.NewClient(conn, uuid.NewString())
	if err := h.hub.Register(client); err != nil {
		_ = conn.WriteControl(gorillaws.CloseMessage,
			gorillaws.FormatCloseMessage(gorillaws.CloseTryAgainLater, err.Error()),
			time.Now().Add(time.Second))
		_ = conn.Close()
		return
	}

	ping := time.Duration(h.cfg.PingInterval) * time.Second
	go client.WritePump(ping)

	// The request context ends when the handler returns, so analyses run on
	// a context bound to the connection instead.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	client.ReadPump(int64(h.cfg.MaxMessageSize), ping, func(frame []byte) {
		client.Send(h.handleFrame(ctx, frame))
	})
}

func (h *StreamHandler) handleFrame(ctx context.Context, frame []byte) websocket.Message {
	var req models.RealtimeAnalysisRequest
	err := json.Unmarshal(frame, &req)
	if err == nil {
		err = req.Validate()
	}
	if err != nil {
		h.logger.Debug("Rejected stream frame", "error", err)
		return websocket.Message{Type: "error", Error: "Invalid request format", Details: err.Error()}
	}

	resp, meta := h.service.AnalyzeRealtime(ctx, req)
	return websocket.Message{
		Type: "analysis",
		Data: gin.H{
			"analysisId": meta.ID,
			"flag":       req.FlagRef,
			"result":     resp,
		},
	}
}
