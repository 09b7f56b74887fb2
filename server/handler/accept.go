package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"unicode/utf8"

	"github.com/coder/websocket"

	adapterwebsocket "skirmish/server/adapter/websocket"
	"skirmish/server/domain"
)

const maxNameLength = 32

type AcceptHandler struct {
	lobby *domain.Lobby
	auth  *Authenticator
	opts  domain.ConnectionOptions

	active sync.WaitGroup
}

func NewAcceptHandler(lobby *domain.Lobby, auth *Authenticator, opts domain.ConnectionOptions) *AcceptHandler {
	return &AcceptHandler{lobby: lobby, auth: auth, opts: opts}
}

func (h *AcceptHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.active.Add(1)
	defer h.active.Done()
	ctx := r.Context()

	subject, err := h.auth.Authenticate(r)
	if err != nil {
		slog.WarnContext(ctx, "rejected connection", "remote", r.RemoteAddr, "err", err)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	name := displayName(r.URL.Query().Get("name"), subject)

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:       domain.Subprotocols(),
		InsecureSkipVerify: true, // 開発用: Origin チェックをスキップ
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to accept", "err", err)
		return
	}

	codec := domain.CodecFor(conn.Subprotocol())
	session := domain.NewSession(name)
	transport := adapterwebsocket.NewTransportFrom(conn, codec.Binary())
	connection, err := domain.NewConnection(session, transport, codec, h.opts)
	if err != nil {
		slog.ErrorContext(ctx, "failed to create connection", "err", err)
		_ = transport.Close(domain.CloseInternalErr, "internal error")
		return
	}

	if err := h.lobby.Admit(ctx, connection); err != nil {
		slog.WarnContext(ctx, "lobby rejected connection", "sessionID", session.ID(), "err", err)
		_ = transport.Close(domain.CloseTryAgain, "lobby is full")
		return
	}
	slog.DebugContext(ctx, "accepted new connection", "sessionID", session.ID(), "codec", codec.Name(), "name", name)

	if err := connection.Run(ctx); err != nil && !errors.Is(err, domain.ErrConnectionClosed) {
		slog.WarnContext(ctx, "connection ended with error", "sessionID", session.ID(), "err", err)
	}
}

// Wait は処理中の接続がすべて終了するか ctx が終了するまで待ちます。
// http.Server.Shutdown はハイジャック済みの websocket 接続を待たないため、終了時はこちらで待ちます。
func (h *AcceptHandler) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		h.active.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// displayName はクエリの name を優先し、なければトークンの subject を使います。
// maxNameLength バイトを超える分は文字単位で切り詰めます。
func displayName(query, subject string) string {
	name := query
	if name == "" {
		name = subject
	}
	if len(name) <= maxNameLength {
		return name
	}
	// マルチバイト文字の途中で切らない
	cut := maxNameLength
	for cut > 0 && !utf8.RuneStart(name[cut]) {
		cut--
	}
	return name[:cut]
}
