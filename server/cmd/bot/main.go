package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/coder/websocket"

	"skirmish/server/application"
	"skirmish/server/domain"
	"skirmish/server/scheduler"
	"skirmish/utils"
)

const reconnectDelay = 2 * time.Second

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	addr := utils.GetEnvDefault("ADDR", "localhost")
	port := utils.GetEnvDefault("PORT", "8080")
	token := utils.GetEnvDefault("BOT_TOKEN", "")
	botCount, err := utils.GetEnvInt("BOT_COUNT", 3)
	if err != nil {
		slog.Error("invalid BOT_COUNT", "err", err)
		os.Exit(1)
	}

	serverURL := fmt.Sprintf("ws://%s:%s/ws", addr, port)
	slog.Info("starting bots", "count", botCount, "server", serverURL)

	var wg sync.WaitGroup
	for i := range botCount {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			runBot(ctx, serverURL, token, id)
		}(i)
	}

	wg.Wait()
	slog.Info("all bots stopped")
}

func runBot(ctx context.Context, serverURL, token string, id int) {
	logger := slog.With("botID", id)
	rng := rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), uint64(id)))

	for {
		if ctx.Err() != nil {
			return
		}
		err := botSession(ctx, serverURL, token, fmt.Sprintf("bot-%d", id), rng, logger)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			logger.Warn("bot session ended, reconnecting", "err", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnectDelay):
		}
	}
}

type envelope struct {
	Type scheduler.FrameType `json:"type"`
}

// botSession は1マッチ分の接続を処理します。結果を受け取るかサーバーが切断すると戻ります。
func botSession(ctx context.Context, serverURL, token, name string, rng *rand.Rand, logger *slog.Logger) error {
	u, err := url.Parse(serverURL)
	if err != nil {
		return err
	}
	q := u.Query()
	q.Set("name", name)
	u.RawQuery = q.Encode()

	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	conn, _, err := websocket.Dial(ctx, u.String(), &websocket.DialOptions{
		Subprotocols: []string{domain.SubprotocolJSON},
		HTTPHeader:   header,
	})
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.CloseNow()

	logger.Info("connected")

	controller := application.NewRuleBotController(rng)
	var (
		self           application.PlayerID
		actionsPerTurn = 1
	)

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				conn.Close(websocket.StatusNormalClosure, "shutdown")
				return nil
			}
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}

		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			logger.Warn("malformed frame", "err", err)
			continue
		}

		switch env.Type {
		case scheduler.FrameAccept:
			logger.Debug("accepted by server")

		case scheduler.FrameMatch:
			var frame scheduler.MatchFrame
			if err := json.Unmarshal(data, &frame); err != nil {
				return fmt.Errorf("match frame: %w", err)
			}
			self = frame.PlayerID
			actionsPerTurn = frame.ActionsPerTurn
			logger.Info("matched", "matchID", frame.MatchID, "playerID", self, "players", len(frame.Roster))

		case scheduler.FrameState:
			var frame scheduler.StateFrame
			if err := json.Unmarshal(data, &frame); err != nil {
				return fmt.Errorf("state frame: %w", err)
			}
			if frame.Snapshot == nil {
				continue
			}
			batch := scheduler.ActionBatch{Actions: controller.Decide(self, frame.Snapshot, actionsPerTurn)}
			payload, err := json.Marshal(batch)
			if err != nil {
				return err
			}
			if err := conn.Write(ctx, websocket.MessageText, payload); err != nil {
				return fmt.Errorf("write: %w", err)
			}

		case scheduler.FrameResult:
			var frame scheduler.ResultFrame
			if err := json.Unmarshal(data, &frame); err != nil {
				return fmt.Errorf("result frame: %w", err)
			}
			logger.Info("match finished", "matchID", frame.MatchID, "outcome", frame.Outcome, "reason", frame.Reason)
			// サーバーが "game over" で閉じるまで読み続ける
		}
	}
}
