package main

import (
	"fmt"
	"os"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	sam "github.com/pypae/KMP-SAM"
)

var (
	Version   = "dev"
	GitCommit = "unknown"
)

func main() {
	// 加载配置
	cfg := New()

	// 初始化日志
	if err := initLogger(cfg.Server.Mode); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer syncLogger()

	logger.Info("starting sam server",
		zap.String("version", Version),
		zap.String("git_commit", GitCommit),
		zap.String("encoder", cfg.Model.EncoderPath),
		zap.String("decoder", cfg.Model.DecoderPath))

	// 加载分割引擎
	engine, err := sam.NewEngine(cfg.Model.EngineConfig())
	if err != nil {
		logger.Fatal("failed to load segmentation engine", zap.Error(err))
	}
	defer engine.Close()

	// 可选的文本绘制
	var drawer *sam.TextDrawer
	if cfg.Model.FontPath != "" {
		drawer, err = sam.NewTextDrawer(cfg.Model.FontPath)
		if err != nil {
			logger.Warn("font unavailable, overlay text disabled", zap.Error(err))
		} else {
			defer drawer.Close()
		}
	}

	// 会话存储与过期回收
	store := newSessionStore(engine, cfg.Session.TTL)
	stop := make(chan struct{})
	go store.cleanupLoop(cfg.Session.CleanupInterval, stop)
	defer close(stop)

	handler := NewSegmentHandler(cfg, store, drawer)

	// 设置Gin模式
	gin.SetMode(cfg.Server.Mode)
	r := newRouter(handler, store)

	// 启动服务器
	logger.Info("server starting", zap.String("port", cfg.Server.Port))
	if err := r.Run(cfg.Server.Port); err != nil {
		logger.Fatal("failed to start server", zap.Error(err))
	}
}

// newRouter 创建路由
func newRouter(handler *SegmentHandler, store *sessionStore) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":   "ok",
			"version":  Version,
			"sessions": store.count(),
		})
	})

	// API路由
	api := r.Group("/api/v1")
	{
		api.POST("/sessions", handler.CreateSession)
		api.DELETE("/sessions/:id", handler.DeleteSession)
		api.POST("/sessions/:id/image", handler.SetImage)
		api.DELETE("/sessions/:id/image", handler.ClearImage)
		api.POST("/sessions/:id/points", handler.AddPoint)
		api.DELETE("/sessions/:id/points", handler.ClearPoints)
		api.POST("/sessions/:id/box", handler.AddBox)
		api.GET("/sessions/:id/mask", handler.GetMask)
		api.GET("/sessions/:id/overlay", handler.GetOverlay)
	}
	return r
}
