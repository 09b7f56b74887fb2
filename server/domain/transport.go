package domain

import (
	"context"
)

//go:generate go tool mockgen -destination=./mocks/transport_mock.go -package=mocks . Transport

// Transport は Connection（物理接続）が依存するI/O境界です。
type Transport interface {
	Read(ctx context.Context) (data []byte, err error)
	Write(ctx context.Context, data []byte) error
	// Ping は相手からの応答を待ちます。応答があれば nil を返します。
	Ping(ctx context.Context) error
	Close(code int32, reason string) error
}

// クローズコード
const (
	CloseNormal      int32 = 1000
	CloseGoingAway   int32 = 1001
	ClosePolicy      int32 = 1008
	CloseTryAgain    int32 = 1013
	CloseInternalErr int32 = 1011
)
