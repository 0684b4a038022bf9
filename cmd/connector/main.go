package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/tillsteinbach/CarConnectivity-connector-skoda/internal/api/handlers"
	"github.com/tillsteinbach/CarConnectivity-connector-skoda/internal/auth"
	"github.com/tillsteinbach/CarConnectivity-connector-skoda/internal/config"
	"github.com/tillsteinbach/CarConnectivity-connector-skoda/internal/garage"
	"github.com/tillsteinbach/CarConnectivity-connector-skoda/internal/service"
	"github.com/tillsteinbach/CarConnectivity-connector-skoda/pkg/ws"
)

func main() {
	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志
	logger := initLogger(cfg.Debug)
	defer logger.Sync()

	logger.Info("Starting Skoda connector", zap.String("port", cfg.ServerPort))

	// 创建 context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 会话管理器负责令牌和缓存的落盘
	manager := auth.NewManager(cfg.SessionFile, logger)

	// 创建车库
	g := garage.New()

	// 创建连接器
	connector := service.NewConnector(cfg, g, manager, logger)

	// 创建 WebSocket Hub
	wsHub := ws.NewHub(logger)
	wsHub.SetInitDataProvider(func() *ws.InitData {
		return &ws.InitData{
			Vehicles:        connector.Snapshots(),
			ConnectionState: connector.State(),
		}
	})
	go wsHub.Run()

	// 车辆更新和状态变化广播到 WebSocket
	connector.SetOnVehicleUpdate(func(vin string) {
		if snap, ok := connector.Snapshot(vin); ok {
			wsHub.BroadcastVehicleUpdate(snap)
		}
	})
	connector.SetOnStateChange(func(from, to string) {
		wsHub.BroadcastConnectionState(to)
	})

	// 启动连接器
	if err := connector.Startup(ctx); err != nil {
		logger.Fatal("Failed to start connector", zap.Error(err))
	}

	// 创建 HTTP 处理器
	handler := handlers.NewHandler(logger, g, connector, wsHub)

	// 设置 Gin 模式
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	// 创建路由
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	// 注册路由
	handler.RegisterRoutes(router)

	// 启动 HTTP 服务器
	server := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: router,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	logger.Info("Server started", zap.String("addr", server.Addr))

	// 等待退出信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// 停止连接器，内部会持久化会话
	connector.Shutdown()

	// 优雅关闭
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

// initLogger 初始化日志
func initLogger(debug bool) *zap.Logger {
	var config zap.Config
	if debug {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		config = zap.NewProductionConfig()
	}

	logger, _ := config.Build()
	return logger
}

// corsMiddleware CORS 中间件
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
