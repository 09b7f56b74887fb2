package domain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

var (
	// ErrBackpressure は書き込みチャネルが満杯の場合に返されるエラーです。
	ErrBackpressure = errors.New("write channel is full, apply backpressure")
	// ErrConnectionClosed は終了済み、または終了処理中の接続に対する操作で返されるエラーです。
	ErrConnectionClosed = errors.New("connection closed")
	// ErrInitializationFailed は接続の初期化に失敗した場合に返されるエラーです。
	ErrInitializationFailed = errors.New("failed to initialize connection")
)

const (
	inboxSize   = 4
	writeChSize = 64
)

// ConnectionOptions は接続ごとの死活監視設定です。0以下の値は無効を意味します。
type ConnectionOptions struct {
	HeartbeatInterval time.Duration
	IdleTimeout       time.Duration
}

// Connection は1参加者の物理接続です。
// 受信フレームは inbox に、送信フレームは writeCh に積まれ、Run が起動するループが実際のI/Oを行います。
// Send と Poll はブロックしないため、スケジューラの単一ループから安全に呼べます。
type Connection struct {
	session   *Session
	transport Transport
	codec     Codec
	opts      ConnectionOptions

	inbox   chan []byte
	writeCh chan []byte
	ctrlCh  chan connectionEvent

	closing   atomic.Bool
	closed    atomic.Bool
	closeOnce sync.Once
	closeCh   chan string
	done      chan struct{}
}

func NewConnection(session *Session, transport Transport, codec Codec, opts ConnectionOptions) (*Connection, error) {
	if session == nil || transport == nil || codec == nil {
		return nil, ErrInitializationFailed
	}
	return &Connection{
		session:   session,
		transport: transport,
		codec:     codec,
		opts:      opts,
		inbox:     make(chan []byte, inboxSize),
		writeCh:   make(chan []byte, writeChSize),
		ctrlCh:    make(chan connectionEvent, 16),
		closeCh:   make(chan string, 1),
		done:      make(chan struct{}),
	}, nil
}

func (c *Connection) ID() string {
	return c.session.ID().String()
}

// Name はハンドシェイク時に指定された表示名です。
func (c *Connection) Name() string {
	return c.session.Name
}

func (c *Connection) Session() *Session {
	return c.session
}

func (c *Connection) Codec() Codec {
	return c.codec
}

// Run は接続のI/Oループを起動し、接続が終了するまでブロックします。
// サーバー側からの Close や ctx のキャンセルによる終了では nil を返します。
func (c *Connection) Run(ctx context.Context) error {
	defer c.finish()

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return c.ownerLoop(ctx)
	})
	eg.Go(func() error {
		c.readLoop(ctx)
		return nil
	})
	eg.Go(func() error {
		return c.writeLoop(ctx)
	})
	eg.Go(func() error {
		NewHeartbeatService(c.opts.HeartbeatInterval, c.session, c.transport).Run(ctx)
		return nil
	})

	err := eg.Wait()
	if errors.Is(err, ErrConnectionClosed) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Send は v をエンコードして送信キューに積みます。
func (c *Connection) Send(ctx context.Context, v any) error {
	if c.Closed() {
		return ErrConnectionClosed
	}
	data, err := c.codec.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	select {
	case c.writeCh <- data:
		return nil
	default:
		slog.WarnContext(ctx, "connection: writeCh full", "sessionID", c.session.ID())
		return ErrBackpressure
	}
}

// Poll は受信済みのフレームを1つ取り出して v にデコードします。
// フレームがなければ false を返します。デコードに失敗したフレームは破棄されます。
func (c *Connection) Poll(ctx context.Context, v any) (bool, error) {
	select {
	case data := <-c.inbox:
		if err := c.codec.Unmarshal(data, v); err != nil {
			return false, fmt.Errorf("decode: %w", err)
		}
		return true, nil
	default:
		return false, nil
	}
}

// Close は送信キューを書き切ってから接続を閉じるよう要求します。
// 2回目以降の呼び出しは何もしません。
func (c *Connection) Close(reason string) {
	c.closeOnce.Do(func() {
		c.closing.Store(true)
		c.closeCh <- reason
	})
}

// Closed は終了処理中または終了済みなら true を返します。
func (c *Connection) Closed() bool {
	return c.closing.Load() || c.closed.Load()
}

// Done は Run が終了すると閉じられます。
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

// ownerLoop は接続の状態を監視し、制御イベントを処理する唯一のループです。
func (c *Connection) ownerLoop(ctx context.Context) error {
	var tick <-chan time.Time
	if c.opts.IdleTimeout > 0 {
		ticker := time.NewTicker(min(c.opts.IdleTimeout/2, time.Second))
		defer ticker.Stop()
		tick = ticker.C
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-c.ctrlCh:
			if err := c.handleControlEvent(ctx, ev); err != nil {
				return err
			}
		case <-tick:
			if idle, reason := c.session.IsIdle(c.opts.IdleTimeout); idle {
				slog.InfoContext(ctx, "connection: idle timeout", "sessionID", c.session.ID(), "reason", reason)
				c.Close(reason.String())
			}
		}
	}
}

func (c *Connection) readLoop(ctx context.Context) {
	for {
		data, err := c.transport.Read(ctx)
		if err != nil {
			c.sendCtrlEvent(ctx, connectionEvent{kind: evReadError, err: err})
			return
		}
		c.session.TouchRead()
		select {
		case c.inbox <- data:
		default:
			slog.WarnContext(ctx, "connection: inbox full, frame dropped", "sessionID", c.session.ID())
		}
	}
}

func (c *Connection) writeLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case data := <-c.writeCh:
			if err := c.transport.Write(ctx, data); err != nil {
				c.sendCtrlEvent(ctx, connectionEvent{kind: evWriteError, err: err})
				return nil
			}
			c.session.TouchWrite()
		case reason := <-c.closeCh:
			c.flush(ctx)
			c.sendCtrlEvent(ctx, connectionEvent{kind: evClose, reason: reason})
			return nil
		}
	}
}

// flush は送信キューに残っているフレームを書き切ります。
func (c *Connection) flush(ctx context.Context) {
	for {
		select {
		case data := <-c.writeCh:
			if err := c.transport.Write(ctx, data); err != nil {
				return
			}
			c.session.TouchWrite()
		default:
			return
		}
	}
}

func (c *Connection) handleControlEvent(ctx context.Context, ev connectionEvent) error {
	switch ev.kind {
	case evClose:
		c.session.Close(ev.reason)
		if err := c.transport.Close(CloseNormal, ev.reason); err != nil {
			slog.DebugContext(ctx, "connection: close handshake failed", "sessionID", c.session.ID(), "err", err)
		}
		return ErrConnectionClosed
	case evReadError, evWriteError:
		c.session.Close(ev.kind.String())
		return fmt.Errorf("%s: %w", ev.kind, ev.err)
	default:
		slog.WarnContext(ctx, "unknown connection event kind", "kind", ev.kind)
		return nil
	}
}

func (c *Connection) sendCtrlEvent(ctx context.Context, ev connectionEvent) {
	select {
	case c.ctrlCh <- ev:
	case <-ctx.Done():
	}
}

// finish は Run の終了時に1度だけ呼ばれます。
func (c *Connection) finish() {
	if !c.closed.CompareAndSwap(false, true) {
		return
	}
	c.session.Close("shutdown")
	_ = c.transport.Close(CloseGoingAway, "shutdown")
	close(c.done)
}
