package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"skirmish/server/scheduler"
)

// StatsSource はヘルスチェックに載せる集計値を提供します。
type StatsSource interface {
	Stats() scheduler.Stats
}

type healthResponse struct {
	Status string `json:"status"`
	scheduler.Stats
	Lobby int `json:"lobby"`
}

func NewHealthHandler(stats StatsSource, lobby interface{ Len() int }) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{Status: "ok", Stats: stats.Stats(), Lobby: lobby.Len()}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			slog.WarnContext(r.Context(), "failed to write health response", "err", err)
		}
	}
}
