package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Akash-Srinivasan/ShotDoctor/server/models"
	"github.com/Akash-Srinivasan/ShotDoctor/server/pose"
	"github.com/Akash-Srinivasan/ShotDoctor/server/segmenter"
	"github.com/Akash-Srinivasan/ShotDoctor/server/session"
)

// WebSocketHandler runs live shot detection: the client streams pose
// frames as it captures them and gets a detection event the moment a
// release is recognized. Coaching verdicts are not part of the live
// path; clients re-submit the recording for the full analysis.
type WebSocketHandler struct {
	cfg      session.Config
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

type ClientMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type ServerMessage struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type liveConfig struct {
	ShootingSide models.ShootingSide `json:"shooting_side"`
}

func NewWebSocketHandler(cfg session.Config, logger *zap.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		cfg:    cfg,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// liveSession is the per-connection detection state.
type liveSession struct {
	calc      *pose.Calculator
	seg       *segmenter.Segmenter
	builder   *session.RecordBuilder
	shotCount int
}

func (h *WebSocketHandler) newLiveSession(side models.ShootingSide) *liveSession {
	calc := pose.NewCalculator(side, h.cfg.MinVisibility)
	return &liveSession{
		calc:    calc,
		seg:     segmenter.New(calc, h.cfg.Segmenter, h.logger),
		builder: session.NewRecordBuilder(calc, nil, h.cfg.ThumbnailHeight, h.logger),
	}
}

func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade websocket connection", zap.Error(err))
		return
	}
	defer conn.Close()

	clientIP := c.ClientIP()
	h.logger.Info("WebSocket client connected", zap.String("client_ip", clientIP))

	conn.SetReadLimit(10 * 1024 * 1024)
	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(appData string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	ticker := time.NewTicker(54 * time.Second)
	defer ticker.Stop()

	done := make(chan struct{})
	go h.pingRoutine(conn, ticker, done)
	defer close(done)

	live := h.newLiveSession(models.SideRight)

	for {
		var message ClientMessage
		if err := conn.ReadJSON(&message); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Error("WebSocket read failed", zap.Error(err))
			}
			return
		}
		live = h.handleMessage(conn, live, &message)
	}
}

func (h *WebSocketHandler) handleMessage(conn *websocket.Conn, live *liveSession, message *ClientMessage) *liveSession {
	switch message.Type {
	case "frame":
		h.processPoseFrame(conn, live, message.Data)
	case "config":
		var cfg liveConfig
		if err := json.Unmarshal(message.Data, &cfg); err != nil || (cfg.ShootingSide != models.SideLeft && cfg.ShootingSide != models.SideRight) {
			h.sendError(conn, "Invalid config")
			return live
		}
		// New side means new detection state from scratch.
		live = h.newLiveSession(cfg.ShootingSide)
		h.sendMessage(conn, "config_ok", map[string]any{"shooting_side": cfg.ShootingSide})
	case "ping":
		// Pong doubles as a status report so clients can surface the
		// detector state between shots.
		h.sendMessage(conn, "pong", map[string]any{
			"timestamp":      time.Now().Unix(),
			"detector_phase": live.seg.Phase().String(),
			"shots_detected": live.shotCount,
		})
	default:
		h.logger.Warn("Unknown message type received", zap.String("type", message.Type))
		h.sendError(conn, "Unknown message type: "+message.Type)
	}
	return live
}

func (h *WebSocketHandler) processPoseFrame(conn *websocket.Conn, live *liveSession, data json.RawMessage) {
	var frame models.PoseFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		h.sendError(conn, "Invalid pose frame")
		return
	}

	interval := live.seg.Observe(&frame)
	if interval == nil {
		return
	}

	live.shotCount++
	metrics := live.builder.MeasureShot(*interval, live.seg.Frame)

	h.sendMessage(conn, "shot_detected", map[string]any{
		"shot_number":   live.shotCount,
		"load_frame":    interval.LoadFrame,
		"release_frame": interval.ReleaseFrame,
		"metrics":       metrics,
	})
}

func (h *WebSocketHandler) pingRoutine(conn *websocket.Conn, ticker *time.Ticker, done chan struct{}) {
	for {
		select {
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second)); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

func (h *WebSocketHandler) sendMessage(conn *websocket.Conn, messageType string, data any) {
	message := ServerMessage{Type: messageType, Data: data}
	if err := conn.WriteJSON(message); err != nil {
		h.logger.Error("Failed to send websocket message", zap.Error(err))
	}
}

func (h *WebSocketHandler) sendError(conn *websocket.Conn, errorMessage string) {
	h.sendMessage(conn, "error", map[string]any{"message": errorMessage})
}
