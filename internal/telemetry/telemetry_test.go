package telemetry

import (
	"log/slog"
	"net"
	"testing"
)

func TestNilEmitterPlotIsSafe(t *testing.T) {
	var e *Emitter
	e.Plot("system.message.dropped:1") // must not panic
}

func TestPlotSendsDatagram(t *testing.T) {
	addr, err := net.ResolveUDPAddr("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	listener, err := net.ListenUDP("udp", addr)
	if err != nil {
		t.Fatal(err)
	}
	defer listener.Close()

	e, err := New(listener.LocalAddr().String(), slog.Default())
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()

	e.Plot("system.actor.spawned:1")

	buf := make([]byte, 256)
	n, _, err := listener.ReadFromUDP(buf)
	if err != nil {
		t.Fatalf("expected datagram: %v", err)
	}
	if got := string(buf[:n]); got != "system.actor.spawned:1" {
		t.Fatalf("got %q", got)
	}
}
