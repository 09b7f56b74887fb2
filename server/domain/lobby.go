package domain

import (
	"context"
	"errors"
	"log/slog"
)

var ErrLobbyFull = errors.New("lobby is full")

// Lobby はハンドシェイク済みでスケジューラにまだ取り込まれていない接続の待ち行列です。
// Admit はHTTPハンドラのgoroutineから、TryAccept はスケジューラからのみ呼ばれます。
type Lobby struct {
	pending chan *Connection
}

func NewLobby(capacity int) *Lobby {
	return &Lobby{pending: make(chan *Connection, capacity)}
}

// Admit は接続を待ち行列に追加します。満杯なら ErrLobbyFull を返します。
func (l *Lobby) Admit(ctx context.Context, conn *Connection) error {
	select {
	case l.pending <- conn:
		slog.DebugContext(ctx, "lobby: admitted", "sessionID", conn.ID())
		return nil
	default:
		return ErrLobbyFull
	}
}

// TryAccept はブロックせずに次の接続を取り出します。
func (l *Lobby) TryAccept(ctx context.Context) (*Connection, bool) {
	select {
	case conn := <-l.pending:
		return conn, true
	default:
		return nil, false
	}
}

func (l *Lobby) Len() int {
	return len(l.pending)
}
