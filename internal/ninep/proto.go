// Package ninep implements a minimal 9P2000.L server, wrapping
// internal/vfs in the wire protocol a 9pfuse-style client speaks over a
// unix domain socket (spec section 6.2).
//
// No 9P library exists anywhere in the dependency set available to this
// project, so the codec here is hand-rolled from the wire layout in the
// 9P2000.L draft, grounded on the Rust original's rs9p-based
// file_overlay.rs for which operations to implement and how each one
// should behave against the actor tree.
package ninep

import (
	"encoding/binary"
	"errors"
	"io"
	"strings"
)

// Message types, the subset of 9P2000.L this server answers.
const (
	msgTversion = 100
	msgRversion = 101
	msgTattach  = 104
	msgRattach  = 105
	msgRlerror  = 7
	msgTwalk    = 110
	msgRwalk    = 111
	msgTreadlink = 22
	msgTgetattr = 24
	msgRgetattr = 25
	msgTsetattr = 26
	msgRsetattr = 27
	msgTreaddir = 40
	msgRreaddir = 41
	msgTfsync   = 50
	msgRfsync   = 51
	msgTlopen   = 12
	msgRlopen   = 13
	msgTreadmsg = 116 // Tread
	msgRread    = 117
	msgTwrite   = 118
	msgRwrite   = 119
	msgTclunk   = 120
	msgRclunk   = 121
)

// errno values rsetattr/rread/etc. report via Rlerror, matching the
// ones the Rust original returns from file_overlay.rs.
const (
	ENOENT  = 2
	EIO     = 5
	EBADF   = 9
	EACCES  = 13
	EEXIST  = 17
	ENOTDIR = 20
	EISDIR  = 21
	EINVAL  = 22
	EROFS   = 30
)

const noTag = 0xffff

// QID identifies a file instance on the wire: type, version, path.
type QID struct {
	Type    uint8
	Version uint32
	Path    uint64
}

func (q QID) encode(w *writer) {
	w.u8(q.Type)
	w.u32(q.Version)
	w.u64(q.Path)
}

func decodeQID(r *reader) QID {
	return QID{Type: r.u8(), Version: r.u32(), Path: r.u64()}
}

const (
	qtDir  uint8 = 0x80
	qtFile uint8 = 0x00
)

// frame is one decoded 9P message: header plus raw body reader.
type frame struct {
	size uint32
	typ  uint8
	tag  uint16
	body *reader
}

func readFrame(r io.Reader) (frame, error) {
	var hdr [7]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return frame{}, err
	}
	size := binary.LittleEndian.Uint32(hdr[0:4])
	typ := hdr[4]
	tag := binary.LittleEndian.Uint16(hdr[5:7])
	if size < 7 {
		return frame{}, errors.New("ninep: frame shorter than header")
	}
	body := make([]byte, size-7)
	if _, err := io.ReadFull(r, body); err != nil {
		return frame{}, err
	}
	return frame{size: size, typ: typ, tag: tag, body: newReader(body)}, nil
}

func writeFrame(w io.Writer, typ uint8, tag uint16, body []byte) error {
	buf := make([]byte, 7+len(body))
	binary.LittleEndian.PutUint32(buf[0:4], uint32(7+len(body)))
	buf[4] = typ
	binary.LittleEndian.PutUint16(buf[5:7], tag)
	copy(buf[7:], body)
	_, err := w.Write(buf)
	return err
}

// reader unpacks 9P wire primitives from a fixed byte slice.
type reader struct {
	buf []byte
	pos int
}

func newReader(buf []byte) *reader { return &reader{buf: buf} }

func (r *reader) u8() uint8 {
	v := r.buf[r.pos]
	r.pos++
	return v
}

func (r *reader) u16() uint16 {
	v := binary.LittleEndian.Uint16(r.buf[r.pos:])
	r.pos += 2
	return v
}

func (r *reader) u32() uint32 {
	v := binary.LittleEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v
}

func (r *reader) u64() uint64 {
	v := binary.LittleEndian.Uint64(r.buf[r.pos:])
	r.pos += 8
	return v
}

func (r *reader) str() string {
	n := int(r.u16())
	s := string(r.buf[r.pos : r.pos+n])
	r.pos += n
	return s
}

func (r *reader) bytes(n int) []byte {
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b
}

func (r *reader) remaining() []byte { return r.buf[r.pos:] }

// writer packs 9P wire primitives into a growing byte buffer.
type writer struct {
	buf []byte
}

func (w *writer) u8(v uint8)   { w.buf = append(w.buf, v) }
func (w *writer) u32(v uint32) { w.buf = append(w.buf, 0, 0, 0, 0); binary.LittleEndian.PutUint32(w.buf[len(w.buf)-4:], v) }
func (w *writer) u64(v uint64) {
	w.buf = append(w.buf, 0, 0, 0, 0, 0, 0, 0, 0)
	binary.LittleEndian.PutUint64(w.buf[len(w.buf)-8:], v)
}

func (w *writer) u16(v uint16) {
	w.buf = append(w.buf, 0, 0)
	binary.LittleEndian.PutUint16(w.buf[len(w.buf)-2:], v)
}

func (w *writer) str(s string) {
	w.u16(uint16(len(s)))
	w.buf = append(w.buf, s...)
}

func (w *writer) raw(b []byte) { w.buf = append(w.buf, b...) }

func rerror(code uint32) []byte {
	w := &writer{}
	w.u32(code)
	return w.buf
}

func errnoFor(msg string) uint32 {
	switch {
	case strings.Contains(msg, "EINVAL"):
		return EINVAL
	case strings.Contains(msg, "EROFS"):
		return EROFS
	case strings.Contains(msg, "EISDIR"):
		return EISDIR
	case strings.Contains(msg, "ENOTDIR"):
		return ENOTDIR
	case strings.Contains(msg, "NotFound"), strings.Contains(msg, "not found"):
		return ENOENT
	default:
		return EIO
	}
}
