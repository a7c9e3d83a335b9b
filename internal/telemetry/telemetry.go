// Package telemetry emits fire-and-forget UDP datagrams in the
// `metric:value` text format (spec section 6.3), grounded on the Rust
// original's `teleplot()` (_examples/original_source/eos/src/common.rs).
package telemetry

import (
	"log/slog"
	"net"
)

// Emitter sends one UDP datagram per Plot call. A send failure (no
// listener, network unreachable) is logged and otherwise ignored: per
// spec section 6.3, telemetry never blocks or fails the caller.
type Emitter struct {
	conn *net.UDPConn
	addr *net.UDPAddr
	log  *slog.Logger
}

// New resolves addr (e.g. "127.0.0.1:47269") and opens an ephemeral UDP
// socket to send from, matching the original's per-call ephemeral bind.
func New(addr string, log *slog.Logger) (*Emitter, error) {
	raddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenUDP("udp", nil)
	if err != nil {
		return nil, err
	}
	return &Emitter{conn: conn, addr: raddr, log: log}, nil
}

// Plot sends line (already in "metric:value" form) as a single
// datagram.
func (e *Emitter) Plot(line string) {
	if e == nil || e.conn == nil {
		return
	}
	if _, err := e.conn.WriteToUDP([]byte(line), e.addr); err != nil {
		e.log.Warn("telemetry send failed", slog.Any("error", err))
	}
}

func (e *Emitter) Close() error {
	if e == nil || e.conn == nil {
		return nil
	}
	return e.conn.Close()
}
