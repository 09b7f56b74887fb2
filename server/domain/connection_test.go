package domain_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/mock/gomock"

	domain "skirmish/server/domain"
	"skirmish/server/domain/mocks"
)

type testFrame struct {
	Type string `json:"type"`
}

// blockingRead は ctx が終了するまでブロックする Read を返します。
func blockingRead(ctx context.Context) ([]byte, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func runConnection(t *testing.T, c *domain.Connection) <-chan error {
	t.Helper()
	errCh := make(chan error, 1)
	go func() {
		errCh <- c.Run(context.Background())
	}()
	return errCh
}

func waitRun(t *testing.T, errCh <-chan error) error {
	t.Helper()
	select {
	case err := <-errCh:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
		return nil
	}
}

func TestNewConnection_Invalid(t *testing.T) {
	_, err := domain.NewConnection(nil, nil, domain.JSONCodec, domain.ConnectionOptions{})
	if !errors.Is(err, domain.ErrInitializationFailed) {
		t.Errorf("err = %v, want %v", err, domain.ErrInitializationFailed)
	}
}

func TestConnection_CloseFlushesPendingWrites(t *testing.T) {
	ctrl := gomock.NewController(t)
	tr := mocks.NewMockTransport(ctrl)

	written := make(chan []byte, 4)
	tr.EXPECT().Read(gomock.Any()).DoAndReturn(blockingRead).AnyTimes()
	tr.EXPECT().Write(gomock.Any(), gomock.Any()).DoAndReturn(func(ctx context.Context, data []byte) error {
		written <- data
		return nil
	}).Times(1)
	tr.EXPECT().Close(domain.CloseNormal, "game over").Return(nil).Times(1)
	tr.EXPECT().Close(domain.CloseGoingAway, gomock.Any()).Return(nil).AnyTimes()

	c := newTestConnection(t, tr)
	ctx := context.Background()
	if err := c.Send(ctx, testFrame{Type: "result"}); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	errCh := runConnection(t, c)
	c.Close("game over")

	if err := waitRun(t, errCh); err != nil {
		t.Errorf("Run() = %v, want nil", err)
	}
	select {
	case data := <-written:
		if string(data) != `{"type":"result"}` {
			t.Errorf("written = %s", data)
		}
	default:
		t.Fatal("pending frame was not written")
	}
	if !c.Closed() {
		t.Error("Closed() = false, want true")
	}
	if err := c.Send(ctx, testFrame{Type: "state"}); !errors.Is(err, domain.ErrConnectionClosed) {
		t.Errorf("Send after close = %v, want %v", err, domain.ErrConnectionClosed)
	}
	if got := c.Session().CloseReason(); got != "game over" {
		t.Errorf("CloseReason() = %q, want %q", got, "game over")
	}
}

func TestConnection_Poll(t *testing.T) {
	ctrl := gomock.NewController(t)
	tr := mocks.NewMockTransport(ctrl)

	gomock.InOrder(
		tr.EXPECT().Read(gomock.Any()).Return([]byte(`{"type":"actions"}`), nil),
		tr.EXPECT().Read(gomock.Any()).Return([]byte(`not json`), nil),
		tr.EXPECT().Read(gomock.Any()).DoAndReturn(blockingRead).AnyTimes(),
	)
	tr.EXPECT().Close(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()

	c := newTestConnection(t, tr)
	errCh := runConnection(t, c)
	ctx := context.Background()

	var frame testFrame
	deadline := time.Now().Add(time.Second)
	for {
		ok, err := c.Poll(ctx, &frame)
		if err != nil {
			t.Fatalf("Poll failed: %v", err)
		}
		if ok {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for frame")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if frame.Type != "actions" {
		t.Errorf("Type = %q, want %q", frame.Type, "actions")
	}

	var malformed error
	for malformed == nil && time.Now().Before(deadline) {
		_, malformed = c.Poll(ctx, &frame)
		time.Sleep(5 * time.Millisecond)
	}
	if malformed == nil {
		t.Error("Poll accepted a malformed frame")
	}

	if ok, err := c.Poll(ctx, &frame); ok || err != nil {
		t.Errorf("Poll on empty inbox = %v, %v, want false, nil", ok, err)
	}

	c.Close("done")
	waitRun(t, errCh)
}

func TestConnection_ReadErrorEndsRun(t *testing.T) {
	ctrl := gomock.NewController(t)
	tr := mocks.NewMockTransport(ctrl)

	readErr := errors.New("peer gone")
	tr.EXPECT().Read(gomock.Any()).Return(nil, readErr)
	tr.EXPECT().Close(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()

	c := newTestConnection(t, tr)
	err := waitRun(t, runConnection(t, c))

	if !errors.Is(err, readErr) {
		t.Errorf("Run() = %v, want %v", err, readErr)
	}
	if !c.Closed() {
		t.Error("Closed() = false, want true")
	}
	select {
	case <-c.Done():
	default:
		t.Error("Done() is not closed")
	}
}

func TestConnection_Backpressure(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := newTestConnection(t, mocks.NewMockTransport(ctrl))
	ctx := context.Background()

	var err error
	for range 1024 {
		if err = c.Send(ctx, testFrame{Type: "state"}); err != nil {
			break
		}
	}
	if !errors.Is(err, domain.ErrBackpressure) {
		t.Errorf("err = %v, want %v", err, domain.ErrBackpressure)
	}
}
