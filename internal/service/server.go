package service

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Server HTTP 服务
type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
}

// NewServer 创建 HTTP 服务，addr 形如 ":8080"
func NewServer(addr string, handler http.Handler, logger *zap.Logger) *Server {
	s := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return &Server{httpServer: s, logger: logger}
}

// Start 阻塞监听；Stop 之后返回 http.ErrServerClosed
func (s *Server) Start() error {
	s.logger.Info("Starting wms-budget HTTP server", zap.String("addr", s.httpServer.Addr))
	return s.httpServer.ListenAndServe()
}

// Stop 优雅关闭，等待进行中的请求直到 ctx 超时
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping wms-budget HTTP server")
	return s.httpServer.Shutdown(ctx)
}
