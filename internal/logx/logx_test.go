package logx

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"pkt.systems/consoleshell/schema"
	"pkt.systems/pslog"
)

func newCaptureLogger(capture *logCapture) pslog.Logger {
	return pslog.NewWithOptions(capture, pslog.Options{
		Mode:          pslog.ModeStructured,
		NoColor:       true,
		MinLevel:      pslog.InfoLevel,
		VerboseFields: true,
	})
}

func TestWithSessionAddsFields(t *testing.T) {
	capture := &logCapture{}
	ctx := pslog.ContextWithLogger(context.Background(), newCaptureLogger(capture))
	log := WithSession(ctx, schema.Session{ID: "s1", User: "alice", Room: "shell-1"})
	log.Info("hello")

	entry := capture.firstEntry(t)
	if entry["user"] != "alice" {
		t.Fatalf("expected user field, got %+v", entry)
	}
	if entry["room"] != "shell-1" {
		t.Fatalf("expected room field, got %+v", entry)
	}
	if entry["session"] != "s1" {
		t.Fatalf("expected session field, got %+v", entry)
	}
}

func TestWithUserSkipsDuplicateField(t *testing.T) {
	capture := &logCapture{}
	logger := newCaptureLogger(capture).With("user", "alice")
	ctx := ContextWithUserLogger(context.Background(), logger, "alice")
	WithUser(ctx, "alice").Info("hello")

	line := capture.buf.String()
	if bytes.Count([]byte(line), []byte(`"user"`)) != 1 {
		t.Fatalf("expected a single user field, got %s", line)
	}
}

func TestWithSessionSkipsRoomFromContext(t *testing.T) {
	capture := &logCapture{}
	logger := newCaptureLogger(capture).With("room", "shell-1")
	ctx := ContextWithRoom(pslog.ContextWithLogger(context.Background(), logger), "shell-1")
	WithSession(ctx, schema.Session{Room: "shell-1"}).Info("hello")

	line := capture.buf.String()
	if bytes.Count([]byte(line), []byte(`"room"`)) != 1 {
		t.Fatalf("expected a single room field, got %s", line)
	}
}

type logCapture struct {
	buf bytes.Buffer
}

func (c *logCapture) Write(p []byte) (int, error) {
	return c.buf.Write(p)
}

func (c *logCapture) firstEntry(t *testing.T) map[string]any {
	t.Helper()
	data := c.buf.Bytes()
	idx := bytes.IndexByte(data, '\n')
	if idx == -1 {
		idx = len(data)
	}
	line := bytes.TrimSpace(data[:idx])
	entry := map[string]any{}
	if err := json.Unmarshal(line, &entry); err != nil {
		t.Fatalf("parse log entry: %v", err)
	}
	return entry
}
