package server

import (
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"skirmish/server/domain"
	"skirmish/server/handler"
)

// Dependencies はルーティングに必要なコンポーネントです。
type Dependencies struct {
	Lobby  *domain.Lobby
	Stats  handler.StatsSource
	Accept *handler.AcceptHandler
}

func Route(deps Dependencies) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /ws", deps.Accept)
	mux.Handle("GET /healthz", handler.NewHealthHandler(deps.Stats, deps.Lobby))
	return otelhttp.NewHandler(mux, "skirmish",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
}
