package telemetry

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestSetup_Disabled(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	shutdown, err := Setup(context.Background(), Options{ServiceName: "test", Level: slog.LevelWarn, Output: &buf})
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}

	slog.Info("hidden")
	slog.Warn("shown", "matchID", "m1")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info record written at warn level: %q", out)
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, "matchID=m1") {
		t.Errorf("output = %q, want warn record", out)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown = %v, want nil", err)
	}
}

func TestLevelHandler(t *testing.T) {
	var buf bytes.Buffer
	base := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	logger := slog.New(LevelHandler(slog.LevelInfo, base)).With("sessionID", "s1").WithGroup("g")

	logger.Debug("dropped")
	logger.Info("kept", "k", "v")

	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Errorf("debug record passed the filter: %q", out)
	}
	if !strings.Contains(out, "sessionID=s1") || !strings.Contains(out, "g.k=v") {
		t.Errorf("output = %q, want attrs and group", out)
	}
}
