package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/tillsteinbach/CarConnectivity-connector-skoda/internal/garage"
	"github.com/tillsteinbach/CarConnectivity-connector-skoda/internal/service"
	"github.com/tillsteinbach/CarConnectivity-connector-skoda/pkg/ws"
)

// Handler HTTP 处理器
type Handler struct {
	logger    *zap.Logger
	garage    *garage.Garage
	connector *service.Connector
	wsHub     *ws.Hub
	upgrader  websocket.Upgrader
}

// NewHandler 创建处理器
func NewHandler(
	logger *zap.Logger,
	g *garage.Garage,
	connector *service.Connector,
	wsHub *ws.Hub,
) *Handler {
	return &Handler{
		logger:    logger,
		garage:    g,
		connector: connector,
		wsHub:     wsHub,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // 开发环境允许所有来源
			},
		},
	}
}

// RegisterRoutes 注册路由
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	// API 路由
	api := r.Group("/api")
	{
		// 车辆
		api.GET("/vehicles", h.ListVehicles)
		api.GET("/vehicles/:vin", h.GetVehicle)
		api.GET("/vehicles/:vin/capabilities", h.GetCapabilities)
		api.POST("/vehicles/:vin/commands/:name", h.InvokeCommand)

		// 连接状态
		api.GET("/status", h.GetStatus)
	}

	// WebSocket
	r.GET("/ws", h.HandleWebSocket)

	// 健康检查
	r.GET("/health", h.HealthCheck)
}

// GetStatus 连接器运行状态
func (h *Handler) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"data": gin.H{
			"state":            h.connector.State(),
			"healthy":          h.connector.Healthy(),
			"interval_seconds": int(h.connector.Interval().Seconds()),
			"last_update":      h.connector.LastUpdate(),
			"vehicle_count":    len(h.garage.VINs()),
		},
	})
}

// HandleWebSocket WebSocket 处理
func (h *Handler) HandleWebSocket(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade websocket", zap.Error(err))
		return
	}

	client := ws.NewClient(h.wsHub, conn)
	client.Register()

	// 启动读写协程
	go client.ReadPump()
	go client.WritePump()
}

// HealthCheck 健康检查
func (h *Handler) HealthCheck(c *gin.Context) {
	status := http.StatusOK
	if !h.connector.Healthy() {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{
		"status":     h.connector.State(),
		"ws_clients": h.wsHub.ClientCount(),
	})
}
