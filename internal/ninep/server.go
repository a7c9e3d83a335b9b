package ninep

import (
	"log/slog"
	"net"
	"os"
	"path"
	"sync"

	"eos/internal/vfs"
)

// Server listens on a unix domain socket and serves the actor overlay
// tree to any 9P2000.L client (spec section 6.2), e.g. `9pfuse
// 'unix!/path/to.sock:0' /mnt/eos`.
type Server struct {
	fs         *vfs.FS
	socketPath string
	log        *slog.Logger

	listener net.Listener
	wg       sync.WaitGroup
}

func New(fs *vfs.FS, socketPath string, log *slog.Logger) *Server {
	return &Server{fs: fs, socketPath: socketPath, log: log}
}

// ListenAndServe accepts connections until Close is called.
func (s *Server) ListenAndServe() error {
	_ = os.Remove(s.socketPath)
	ln, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return err
	}
	s.listener = ln

	for {
		conn, err := ln.Accept()
		if err != nil {
			return nil // listener closed
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.serveConn(conn)
		}()
	}
}

func (s *Server) Close() error {
	var err error
	if s.listener != nil {
		err = s.listener.Close()
	}
	s.wg.Wait()
	_ = os.Remove(s.socketPath)
	return err
}

// fidState tracks one attached file id: its resolved virtual path,
// whether it is a directory, and a write buffer
// accumulated across Twrite calls and committed on Tfsync/Tclunk,
// matching the original's editor-friendly buffering.
type fidState struct {
	path        string
	isDir       bool
	writeBuf    []byte
	hasWriteBuf bool
}

func (s *Server) serveConn(conn net.Conn) {
	defer conn.Close()
	fids := make(map[uint32]*fidState)

	for {
		f, err := readFrame(conn)
		if err != nil {
			return
		}
		resp, typ := s.dispatch(f, fids)
		if err := writeFrame(conn, typ, f.tag, resp); err != nil {
			return
		}
	}
}

func (s *Server) dispatch(f frame, fids map[uint32]*fidState) ([]byte, uint8) {
	switch f.typ {
	case msgTversion:
		return s.rversion(f.body)
	case msgTattach:
		return s.rattach(f.body, fids)
	case msgTwalk:
		return s.rwalk(f.body, fids)
	case msgTgetattr:
		return s.rgetattr(f.body, fids)
	case msgTsetattr:
		return []byte{}, msgRsetattr // no-op, matches the original
	case msgTlopen:
		return s.rlopen(f.body, fids)
	case msgTreaddir:
		return s.rreaddir(f.body, fids)
	case msgTreadmsg:
		return s.rread(f.body, fids)
	case msgTwrite:
		return s.rwrite(f.body, fids)
	case msgTfsync:
		return s.rfsync(f.body, fids)
	case msgTclunk:
		return s.rclunk(f.body, fids)
	default:
		return rerror(EIO), msgRlerror
	}
}

func (s *Server) rversion(body *reader) ([]byte, uint8) {
	msize := body.u32()
	_ = body.str() // version string, unused: we only speak 9P2000.L
	w := &writer{}
	w.u32(msize)
	w.str("9P2000.L")
	return w.buf, msgRversion
}

func (s *Server) rattach(body *reader, fids map[uint32]*fidState) ([]byte, uint8) {
	fid := body.u32()
	_ = body.u32() // afid
	_ = body.str()  // uname
	_ = body.str()  // aname
	_ = body.u32()  // n_uname

	fids[fid] = &fidState{path: "/", isDir: true}

	w := &writer{}
	QID{Type: qtDir, Version: 1, Path: vfs.QID("/")}.encode(w)
	return w.buf, msgRattach
}

func (s *Server) rwalk(body *reader, fids map[uint32]*fidState) ([]byte, uint8) {
	fid := body.u32()
	newfid := body.u32()
	nwname := body.u16()
	names := make([]string, nwname)
	for i := range names {
		names[i] = body.str()
	}

	cur, ok := fids[fid]
	if !ok {
		return rerror(EBADF), msgRlerror
	}

	if len(names) == 0 {
		fids[newfid] = &fidState{path: cur.path, isDir: cur.isDir}
		w := &writer{}
		w.u16(0)
		return w.buf, msgRwalk
	}

	walked := cur.path
	var qids []QID
	for _, name := range names {
		if name == ".." {
			walked = path.Dir(walked)
			if walked == "." {
				walked = "/"
			}
		} else {
			walked = path.Join(walked, name)
		}
		attr, err := s.fs.Attrs(walked)
		if err != nil {
			break
		}
		typ := qtFile
		if attr.Kind == vfs.KindDir {
			typ = qtDir
		}
		qids = append(qids, QID{Type: typ, Version: 1, Path: attr.Qid})
	}

	w := &writer{}
	w.u16(uint16(len(qids)))
	for _, q := range qids {
		q.encode(w)
	}

	if len(qids) == len(names) {
		isDir := len(qids) == 0 || qids[len(qids)-1].Type == qtDir
		fids[newfid] = &fidState{path: walked, isDir: isDir}
	} else if len(qids) == 0 {
		fids[newfid] = &fidState{path: cur.path, isDir: cur.isDir}
	}
	return w.buf, msgRwalk
}

func (s *Server) rgetattr(body *reader, fids map[uint32]*fidState) ([]byte, uint8) {
	fid := body.u32()
	_ = body.u64() // request mask, we always return everything we have

	st, ok := fids[fid]
	if !ok {
		return rerror(EBADF), msgRlerror
	}
	attr, err := s.fs.Attrs(st.path)
	if err != nil {
		return rerror(errnoFor(err.Error())), msgRlerror
	}

	typ := qtFile
	if attr.Kind == vfs.KindDir {
		typ = qtDir
	}

	w := &writer{}
	w.u64(0x3fff) // valid: report every field
	QID{Type: typ, Version: 1, Path: attr.Qid}.encode(w)
	w.u32(attr.Mode)
	w.u32(attr.UID)
	w.u32(attr.GID)
	w.u64(attr.Nlink)
	w.u64(0) // rdev
	w.u64(attr.Size)
	w.u64(uint64(attr.BlkSize))
	w.u64(attr.Blocks)
	for i := 0; i < 6; i++ {
		w.u64(0) // atime/mtime/ctime sec/nsec pairs, synthetic filesystem has no real clock
	}
	return w.buf, msgRgetattr
}

func (s *Server) rlopen(body *reader, fids map[uint32]*fidState) ([]byte, uint8) {
	fid := body.u32()
	_ = body.u32() // flags

	st, ok := fids[fid]
	if !ok {
		return rerror(EBADF), msgRlerror
	}
	attr, err := s.fs.Attrs(st.path)
	if err != nil {
		return rerror(errnoFor(err.Error())), msgRlerror
	}
	typ := qtFile
	if attr.Kind == vfs.KindDir {
		typ = qtDir
	}

	w := &writer{}
	QID{Type: typ, Version: 1, Path: attr.Qid}.encode(w)
	w.u32(8192) // iounit
	return w.buf, msgRlopen
}

func (s *Server) rreaddir(body *reader, fids map[uint32]*fidState) ([]byte, uint8) {
	fid := body.u32()
	offset := body.u64()
	count := body.u32()

	st, ok := fids[fid]
	if !ok {
		return rerror(EBADF), msgRlerror
	}
	if !st.isDir {
		return rerror(ENOTDIR), msgRlerror
	}

	listing, err := s.fs.ReadDir(st.path)
	if err != nil {
		return rerror(errnoFor(err.Error())), msgRlerror
	}

	data := sliceWithin(listing, offset, count)
	w := &writer{}
	w.u32(uint32(len(data)))
	w.raw(data)
	return w.buf, msgRreaddir
}

func (s *Server) rread(body *reader, fids map[uint32]*fidState) ([]byte, uint8) {
	fid := body.u32()
	offset := body.u64()
	count := body.u32()

	st, ok := fids[fid]
	if !ok {
		return rerror(EBADF), msgRlerror
	}
	if st.isDir {
		return rerror(EISDIR), msgRlerror
	}

	content, err := s.fs.Read(st.path)
	if err != nil {
		return rerror(errnoFor(err.Error())), msgRlerror
	}

	data := sliceWithin(content, offset, count)
	w := &writer{}
	w.u32(uint32(len(data)))
	w.raw(data)
	return w.buf, msgRread
}

func sliceWithin(data []byte, offset uint64, count uint32) []byte {
	start := int(offset)
	if start >= len(data) {
		return nil
	}
	end := start + int(count)
	if end > len(data) {
		end = len(data)
	}
	return data[start:end]
}

func (s *Server) rwrite(body *reader, fids map[uint32]*fidState) ([]byte, uint8) {
	fid := body.u32()
	offset := body.u64()
	count := body.u32()
	data := body.bytes(int(count))

	st, ok := fids[fid]
	if !ok {
		return rerror(EBADF), msgRlerror
	}
	if st.isDir {
		return rerror(EISDIR), msgRlerror
	}

	end := int(offset) + len(data)
	if end > len(st.writeBuf) {
		grown := make([]byte, end)
		copy(grown, st.writeBuf)
		st.writeBuf = grown
	}
	copy(st.writeBuf[offset:], data)
	st.hasWriteBuf = true

	w := &writer{}
	w.u32(count)
	return w.buf, msgRwrite
}

func (s *Server) rfsync(body *reader, fids map[uint32]*fidState) ([]byte, uint8) {
	fid := body.u32()
	st, ok := fids[fid]
	if !ok {
		return rerror(EBADF), msgRlerror
	}
	if err := s.flush(st); err != nil {
		return rerror(errnoFor(err.Error())), msgRlerror
	}
	return []byte{}, msgRfsync
}

func (s *Server) rclunk(body *reader, fids map[uint32]*fidState) ([]byte, uint8) {
	fid := body.u32()
	st, ok := fids[fid]
	if ok {
		if err := s.flush(st); err != nil {
			s.log.Warn("ninep: write flush failed on clunk", slog.String("path", st.path), slog.Any("error", err))
		}
		delete(fids, fid)
	}
	return []byte{}, msgRclunk
}

func (s *Server) flush(st *fidState) error {
	if !st.hasWriteBuf {
		return nil
	}
	buf := st.writeBuf
	st.writeBuf = nil
	st.hasWriteBuf = false
	return s.fs.Write(st.path, buf)
}
