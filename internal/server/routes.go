package server

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	slogGin "github.com/samber/slog-gin"

	"github.com/keyhouse-ops/watchdog/internal/version"
)

func (s *Server) setupRoutes() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	httpLogger := s.logger.WithGroup("http")
	r.Use(slogGin.NewWithConfig(httpLogger, slogGin.Config{
		DefaultLevel:     slog.LevelInfo,
		ClientErrorLevel: slog.LevelWarn,
		ServerErrorLevel: slog.LevelError,
	}))
	r.Use(gin.Recovery())

	r.GET("/healthz", func(ctx *gin.Context) {
		ctx.PureJSON(http.StatusOK, gin.H{
			"status":  "ok",
			"version": version.Version,
		})
	})

	v1 := r.Group("/v1")
	v1.Use(TokenAuth(s.config.Token))
	{
		v1.POST("/webhook", s.handleWebhook)
		v1.POST("/group", s.handleGroupRequest)
		v1.GET("/status", s.handleStatus)
		v1.GET("/runs", s.handleRuns)
	}

	return r
}
