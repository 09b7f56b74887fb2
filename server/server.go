package server

import (
	"context"
	"net"
	"net/http"
	"time"
)

type Server struct {
	HTTP *http.Server
}

// NewServer は baseCtx をリクエストの親コンテキストにした HTTP サーバーを作ります。
// baseCtx が終了すると、websocket 接続も終了します。
func NewServer(baseCtx context.Context, addr string, handler http.Handler) *Server {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return baseCtx
		},
	}
	return &Server{
		HTTP: httpServer,
	}
}

func (s *Server) Serve() error                       { return s.HTTP.ListenAndServe() }
func (s *Server) Shutdown(ctx context.Context) error { return s.HTTP.Shutdown(ctx) }
func (s *Server) Close() error                       { return s.HTTP.Close() }
func (s *Server) Addr() string                       { return s.HTTP.Addr }
