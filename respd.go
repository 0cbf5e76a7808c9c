// Package respd implements an in-memory RESP2 key/value server: the
// connection handler (C6) and acceptor (C7) that sit on top of pkg/resp,
// pkg/command, pkg/txn, and pkg/store.
//
// Unlike the gnet-based reactor this package is adapted from, respd runs
// one goroutine per accepted connection, each performing blocking reads
// and writes directly: a connection may suspend at a socket read, a
// socket write, or briefly while waiting for the store's lock, but never
// holds the store lock across a suspension that waits on network I/O.
package respd

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"runtime/debug"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/nanokv/respd/pkg/command"
	"github.com/nanokv/respd/pkg/logger"
	"github.com/nanokv/respd/pkg/resp"
	"github.com/nanokv/respd/pkg/store"
	"github.com/nanokv/respd/pkg/txn"
)

// Action reports what a connection's event should do next. It is returned
// by the optional OnOpen hook, mirroring a classic event-handler shape
// even though the dispatch loop itself is fixed.
type Action int

const (
	None Action = iota
	Close
)

// Conn identifies one accepted connection to the optional OnOpen/OnClose
// hooks. It does not expose the raw net.Conn: hook code observes the
// connection's identity and address, not its bytes.
type Conn struct {
	ID         uuid.UUID
	RemoteAddr net.Addr
}

// Options configures a Server. Zero values fall back to the defaults
// noted per field.
type Options struct {
	// Addr is the host:port to listen on.
	Addr string

	// ReadBufferCap sizes each connection's read(2) buffer, in bytes.
	// Default 64KiB.
	ReadBufferCap int

	// TCPKeepAlive sets the keep-alive probe interval on accepted TCP
	// connections. Zero disables keep-alive probing.
	TCPKeepAlive time.Duration

	// TLSCertFile / TLSKeyFile, when both set, start a second listener on
	// TLSAddr (derived from Addr when TLSAddr is empty) speaking RESP2
	// over TLS instead of plaintext TCP.
	TLSCertFile string
	TLSKeyFile  string
	TLSAddr     string

	// OnOpen and OnClose, if set, observe connection lifecycle events.
	// Returning Close from OnOpen immediately closes the new connection
	// without processing any frames.
	OnOpen  func(c Conn) Action
	OnClose func(c Conn, err error)
}

const defaultReadBufferCap = 64 * 1024

// Server owns the shared Store and the listener(s) built from Options. It
// is the acceptor (C7): accept, spawn one handler per socket, repeat.
type Server struct {
	opts  Options
	store *store.Store

	mu          sync.Mutex
	listener    net.Listener
	tlsListener net.Listener
	running     bool
}

// New builds a Server with its own empty Store.
func New(opts Options) *Server {
	if opts.ReadBufferCap <= 0 {
		opts.ReadBufferCap = defaultReadBufferCap
	}
	return &Server{opts: opts, store: store.New()}
}

// ListenAndServe binds the configured address (and, if TLS is configured,
// the TLS address) and runs the accept loop(s) until ctx is canceled or an
// unrecoverable listener error occurs. It blocks until every accept loop
// has returned.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if (s.opts.TLSCertFile == "") != (s.opts.TLSKeyFile == "") {
		return errors.New("respd: TLSCertFile and TLSKeyFile must be set together")
	}

	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.listener = ln
	s.running = true
	s.mu.Unlock()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.acceptLoop(ctx, ln) })

	if s.opts.TLSCertFile != "" {
		tlsLn, err := s.listenTLS()
		if err != nil {
			_ = ln.Close()
			return err
		}
		s.mu.Lock()
		s.tlsListener = tlsLn
		s.mu.Unlock()
		g.Go(func() error { return s.acceptLoop(ctx, tlsLn) })
	}

	g.Go(func() error {
		<-ctx.Done()
		s.closeListeners()
		return nil
	})

	err = g.Wait()

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	return err
}

func (s *Server) listenTLS() (net.Listener, error) {
	cert, err := tls.LoadX509KeyPair(s.opts.TLSCertFile, s.opts.TLSKeyFile)
	if err != nil {
		return nil, err
	}
	addr := s.opts.TLSAddr
	if addr == "" {
		addr, err = deriveTLSAddr(s.opts.Addr)
		if err != nil {
			return nil, err
		}
	}
	return tls.Listen("tcp", addr, &tls.Config{Certificates: []tls.Certificate{cert}})
}

// deriveTLSAddr derives a TLS listen address from the plaintext one by
// incrementing the port when no explicit TLSAddr was given.
func deriveTLSAddr(addr string) (string, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return "", err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", err
	}
	return net.JoinHostPort(host, strconv.Itoa(port+1)), nil
}

func (s *Server) closeListeners() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	if s.tlsListener != nil {
		_ = s.tlsListener.Close()
	}
}

// Close stops the server by closing its listener(s); in-flight connection
// handlers are left to finish naturally, matching the no-forced-abort
// shutdown policy.
func (s *Server) Close() error {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()
	if !running {
		return errors.New("respd: server not running")
	}
	s.closeListeners()
	return nil
}

// acceptLoop is the acceptor (C7): accept, spawn one handler goroutine per
// socket, repeat. Once ctx is canceled an accept error ends the loop with a
// nil return; otherwise the error is logged, and the loop continues for a
// temporary error and returns it for any other.
func (s *Server) acceptLoop(ctx context.Context, ln net.Listener) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			logger.Errorf("accept error: %v", err)
			var ne net.Error
			if errors.As(err, &ne) && ne.Temporary() {
				continue
			}
			return err
		}
		go s.handle(conn)
	}
}

// handle is the connection handler (C6): one goroutine, one decoder
// buffer, one transaction state, driving read-decode-dispatch-write until
// EOF, a write/read error, or a protocol error.
func (s *Server) handle(raw net.Conn) {
	id := uuid.New()
	c := Conn{ID: id, RemoteAddr: raw.RemoteAddr()}

	if tcpConn, ok := raw.(*net.TCPConn); ok {
		if s.opts.TCPKeepAlive > 0 {
			_ = tcpConn.SetKeepAlive(true)
			_ = tcpConn.SetKeepAlivePeriod(s.opts.TCPKeepAlive)
		} else {
			_ = tcpConn.SetKeepAlive(false)
		}
	}

	if s.opts.OnOpen != nil {
		if s.opts.OnOpen(c) == Close {
			_ = raw.Close()
			return
		}
	}

	logger.Infof("connection opened id=%s remote=%s", id, c.RemoteAddr)

	err := s.serveRecovered(raw, id)

	_ = raw.Close()
	if s.opts.OnClose != nil {
		s.opts.OnClose(c, err)
	}
	if err != nil {
		logger.Errorf("connection closed id=%s remote=%s err=%v", id, c.RemoteAddr, err)
	} else {
		logger.Infof("connection closed id=%s remote=%s", id, c.RemoteAddr)
	}
}

// serveRecovered runs serve and converts a panic escaping it (a decoder bug,
// an unanticipated nil, arithmetic on attacker-controlled input slipping
// past validation) into an error local to this connection, so one
// connection's bug cannot take down every other connection's goroutine.
func (s *Server) serveRecovered(raw net.Conn, id uuid.UUID) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("recovered panic id=%s: %v\n%s", id, r, debug.Stack())
			err = fmt.Errorf("recovered panic: %v", r)
		}
	}()
	return s.serve(raw)
}

// serve drives the read-decode-dispatch-write pipeline for one connection
// until it terminates. A nil return means a clean EOF.
func (s *Server) serve(raw net.Conn) error {
	state := txn.New()
	read := make([]byte, s.opts.ReadBufferCap)
	var pending []byte

	for {
		n, rerr := raw.Read(read)
		if n > 0 {
			pending = append(pending, read[:n]...)

			frames, leftover, derr := resp.ReadFrames(pending)
			pending = leftover

			for _, frame := range frames {
				reply := s.dispatch(state, frame)
				if _, werr := raw.Write(resp.ToBytes(nil, reply)); werr != nil {
					return werr
				}
			}

			if derr != nil {
				return derr
			}
		}
		if rerr != nil {
			if errors.Is(rerr, io.EOF) {
				return nil
			}
			return rerr
		}
	}
}

// dispatch parses one frame into a Command and routes it through the
// connection's transaction state, clearing any pending MULTI queue if the
// frame itself failed to parse.
func (s *Server) dispatch(state *txn.State, frame resp.Frame) resp.Value {
	cmd, err := command.Parse(frame)
	if err != nil {
		if state.Active() {
			state.ResetOnParseError()
		}
		return resp.NewSimpleError(err.Error())
	}
	return state.Dispatch(cmd, s.store)
}
