package scheduler

import (
	"context"
	"time"

	"skirmish/server/domain"
)

//go:generate go tool mockgen -destination=./mocks/participant_mock.go -package=mocks . Participant,Acceptor

// Participant はスケジューラから見た1人の接続済み参加者です。
// すべての操作はブロックしません。
type Participant interface {
	ID() string
	// Send は v を送信キューに積みます。
	Send(ctx context.Context, v any) error
	// Poll は受信済みのフレームがあれば v にデコードして true を返します。
	Poll(ctx context.Context, v any) (bool, error)
	// Closed は接続が終了した、または終了処理中なら true を返します。
	Closed() bool
	Close(reason string)
}

// Acceptor は新しい参加者を供給します。待ちがなければ false を返します。
type Acceptor interface {
	TryAccept(ctx context.Context) (Participant, bool)
}

type AcceptorFunc func(ctx context.Context) (Participant, bool)

func (f AcceptorFunc) TryAccept(ctx context.Context) (Participant, bool) {
	return f(ctx)
}

// LobbyAcceptor は Lobby を Acceptor として扱います。
func LobbyAcceptor(lobby *domain.Lobby) Acceptor {
	return AcceptorFunc(func(ctx context.Context) (Participant, bool) {
		conn, ok := lobby.TryAccept(ctx)
		if !ok {
			return nil, false
		}
		return conn, true
	})
}

// Clock はデッドライン計算に使う時刻源です。
type Clock interface {
	Now() time.Time
	Since(time.Time) time.Duration
}

type realClock struct{}

func (realClock) Now() time.Time                  { return time.Now() }
func (realClock) Since(t time.Time) time.Duration { return time.Since(t) }

// RealClock はシステム時刻を返す Clock です。
func RealClock() Clock {
	return realClock{}
}
