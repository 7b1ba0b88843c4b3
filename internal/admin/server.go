// Package admin 提供版主裁决与运维观测的 HTTP 面。
// 分类本身由 Kafka 驱动；这里只承载人工裁决回传、状态统计与指标暴露。
package admin

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/featheredtoast/discourse-sift/internal/moderation"
	"github.com/featheredtoast/discourse-sift/internal/store"
)

// Server 管理面 HTTP 服务。
type Server struct {
	engine *moderation.Engine
	logger *zap.Logger
	echo   *echo.Echo
}

func NewServer(engine *moderation.Engine, logger *zap.Logger) *Server {
	s := &Server{
		engine: engine,
		logger: logger,
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: "method=${method} uri=${uri} status=${status} latency=${latency_human}\n",
	}))
	e.Use(middleware.Recover())

	e.GET("/healthz", s.handleHealthz)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.GET("/sift/stats", s.handleStats)
	e.POST("/sift/posts/:id/confirm-failed", s.handleConfirmFailed)
	e.POST("/sift/posts/:id/confirm-passed", s.handleConfirmPassed)
	e.POST("/sift/posts/:id/ignore", s.handleIgnore)

	s.echo = e
	return s
}

// Start 阻塞监听，直到 Shutdown 或监听失败。
func (s *Server) Start(addr string) error {
	s.logger.Info("管理面 HTTP 服务启动", zap.String("addr", addr))
	return s.echo.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) handleHealthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStats(c echo.Context) error {
	stats, err := s.engine.Stats(c.Request().Context())
	if err != nil {
		s.logger.Error("读取审核状态统计失败", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "读取统计失败")
	}
	return c.JSON(http.StatusOK, stats)
}

// verdictRequest 裁决请求体。reason 与 extra_reason_remarks
// 只在否决 (confirm-passed) 时有意义。
type verdictRequest struct {
	ModeratorID        int64  `json:"moderator_id"`
	Reason             string `json:"reason,omitempty"`
	ExtraReasonRemarks string `json:"extra_reason_remarks,omitempty"`
}

func (s *Server) handleConfirmFailed(c echo.Context) error {
	postID, req, err := s.bindVerdict(c)
	if err != nil {
		return err
	}
	return s.verdictResult(c, postID, s.engine.ConfirmFailed(c.Request().Context(), postID, req.ModeratorID))
}

func (s *Server) handleConfirmPassed(c echo.Context) error {
	postID, req, err := s.bindVerdict(c)
	if err != nil {
		return err
	}
	return s.verdictResult(c, postID, s.engine.ConfirmPassed(c.Request().Context(), postID, req.ModeratorID, req.Reason, req.ExtraReasonRemarks))
}

func (s *Server) handleIgnore(c echo.Context) error {
	postID, req, err := s.bindVerdict(c)
	if err != nil {
		return err
	}
	return s.verdictResult(c, postID, s.engine.IgnorePost(c.Request().Context(), postID, req.ModeratorID))
}

func (s *Server) bindVerdict(c echo.Context) (uint64, *verdictRequest, error) {
	postID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || postID == 0 {
		return 0, nil, echo.NewHTTPError(http.StatusBadRequest, "无效的帖子ID")
	}
	var req verdictRequest
	if err := c.Bind(&req); err != nil {
		return 0, nil, echo.NewHTTPError(http.StatusBadRequest, "无效的请求体")
	}
	if req.ModeratorID == 0 {
		return 0, nil, echo.NewHTTPError(http.StatusBadRequest, "moderator_id 不能为空")
	}
	return postID, &req, nil
}

// verdictResult 把引擎错误映射到 HTTP 状态码。
func (s *Server) verdictResult(c echo.Context, postID uint64, err error) error {
	switch {
	case err == nil:
		return c.JSON(http.StatusOK, map[string]any{"post_id": postID, "status": "ok"})
	case errors.Is(err, store.ErrPostNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "帖子不存在")
	case errors.Is(err, moderation.ErrNotAwaitingVerdict):
		return echo.NewHTTPError(http.StatusConflict, "帖子不在等待人工裁决的状态")
	case errors.Is(err, moderation.ErrUnknownReason):
		return echo.NewHTTPError(http.StatusBadRequest, "无效的否决理由")
	default:
		s.logger.Error("裁决处理失败", zap.Uint64("post_id", postID), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "裁决处理失败")
	}
}
