package core

import (
	"context"
	"strings"
	"testing"

	"pkt.systems/consoleshell/emulator"
	"pkt.systems/consoleshell/schema"
)

func newTestHost(tr *fakeTransport, buf *emulator.Buffer) *Host {
	return NewHost(func(session schema.Session) (*Controller, error) {
		return NewController(context.Background(), ControllerConfig{
			Session:   session,
			Transport: tr,
			Emulator:  buf,
		})
	}, nil)
}

func TestHostRoomChangeLeavesFirst(t *testing.T) {
	tr := &fakeTransport{}
	buf := emulator.NewBuffer(0)
	host := newTestHost(tr, buf)

	first, err := host.Mount(schema.Session{Room: "shell-1"})
	if err != nil {
		t.Fatalf("mount: %v", err)
	}
	tr.last().ack()
	if tr.liveJoined() != 1 {
		t.Fatalf("expected one joined channel")
	}

	second, err := host.Mount(schema.Session{Room: "shell-2"})
	if err != nil {
		t.Fatalf("mount: %v", err)
	}
	if first.State() != schema.StateLeft {
		t.Fatalf("expected first session left, got %s", first.State())
	}
	if tr.liveJoined() != 0 {
		t.Fatalf("old channel still joined after room change")
	}
	tr.last().ack()
	if tr.liveJoined() != 1 {
		t.Fatalf("expected exactly one joined channel, got %d", tr.liveJoined())
	}
	want := "join:shell-1,leave:shell-1,join:shell-2"
	if got := strings.Join(tr.entries(), ","); got != want {
		t.Fatalf("want %s, got %s", want, got)
	}
	if host.Current() != second {
		t.Fatalf("expected second controller current")
	}

	buf.Type("ls\n")
	if pushes := tr.channels[0].pushed(); len(pushes) != 0 {
		t.Fatalf("old channel received input")
	}
	if pushes := tr.channels[1].pushed(); len(pushes) != 1 {
		t.Fatalf("expected one push on new channel, got %d", len(pushes))
	}
}

func TestHostSameTargetIsNoop(t *testing.T) {
	tr := &fakeTransport{}
	host := newTestHost(tr, emulator.NewBuffer(0))
	first, err := host.Mount(schema.Session{Room: "shell-1", InitialCommand: "top"})
	if err != nil {
		t.Fatalf("mount: %v", err)
	}
	again, err := host.Mount(schema.Session{Room: "shell-1", InitialCommand: "top", Header: "other"})
	if err != nil {
		t.Fatalf("mount: %v", err)
	}
	if first != again {
		t.Fatalf("expected the same controller")
	}
	if len(tr.channels) != 1 {
		t.Fatalf("expected one channel, got %d", len(tr.channels))
	}

	if _, err := host.Mount(schema.Session{Room: "shell-1", InitialCommand: "htop"}); err != nil {
		t.Fatalf("mount: %v", err)
	}
	if len(tr.channels) != 2 || first.State() != schema.StateLeft {
		t.Fatalf("changed command should replace the session")
	}
}

func TestHostUnmount(t *testing.T) {
	tr := &fakeTransport{}
	host := newTestHost(tr, emulator.NewBuffer(0))
	ctrl, err := host.Mount(schema.Session{Room: "shell-1"})
	if err != nil {
		t.Fatalf("mount: %v", err)
	}
	host.Unmount()
	host.Unmount()
	if ctrl.State() != schema.StateLeft {
		t.Fatalf("expected left, got %s", ctrl.State())
	}
	if host.Current() != nil {
		t.Fatalf("expected no current controller")
	}
	if _, leaves := tr.channels[0].counts(); leaves != 1 {
		t.Fatalf("expected one leave, got %d", leaves)
	}
}

func TestHostFactoryError(t *testing.T) {
	host := newTestHost(&fakeTransport{}, emulator.NewBuffer(0))
	if _, err := host.Mount(schema.Session{Room: ""}); err == nil {
		t.Fatalf("expected error for empty room")
	}
	if host.Current() != nil {
		t.Fatalf("expected no current controller")
	}
}
