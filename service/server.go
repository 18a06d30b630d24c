// Package service is the client-facing TCP listener. Each connection gets its
// own goroutine and Session; a bad frame only ever affects its own
// connection.
package service

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"sync"

	"warehouse/protocol"
)

type LogFunc func(format string, args ...any)

type Config struct {
	Addr         string
	MaxFrameSize uint32
	LogFunc      LogFunc
}

type Server struct {
	cfg  Config
	core *Core

	mu       sync.Mutex
	listener net.Listener
	conns    map[net.Conn]struct{}
	nextID   int
	wg       sync.WaitGroup
}

func NewServer(cfg Config, core *Core) *Server {
	if cfg.LogFunc == nil {
		cfg.LogFunc = log.Printf
	}
	if core.LogFunc == nil {
		core.LogFunc = cfg.LogFunc
	}
	return &Server{cfg: cfg, core: core, conns: make(map[net.Conn]struct{})}
}

// Listen binds the listener. It is separate from Serve so a bind failure
// surfaces at startup.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("service: listen %s: %w", s.cfg.Addr, err)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()
	s.cfg.LogFunc("service: listening on %s", ln.Addr())
	return nil
}

// Addr returns the bound address, or "" before Listen.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Sessions returns the number of connected clients.
func (s *Server) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// Serve accepts clients until ctx is done, then closes every connection and
// waits for their sessions to hand back their holds.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()
	if ln == nil {
		if err := s.Listen(); err != nil {
			return err
		}
		s.mu.Lock()
		ln = s.listener
		s.mu.Unlock()
	}

	stop := context.AfterFunc(ctx, func() {
		ln.Close()
		s.mu.Lock()
		for c := range s.conns {
			c.Close()
		}
		s.mu.Unlock()
	})
	defer stop()

	for {
		conn, err := ln.Accept()
		if err != nil {
			s.wg.Wait()
			if ctx.Err() != nil {
				s.cfg.LogFunc("service: stopped")
				return nil
			}
			return fmt.Errorf("service: accept: %w", err)
		}
		s.mu.Lock()
		s.nextID++
		id := s.nextID
		s.conns[conn] = struct{}{}
		s.mu.Unlock()
		if ctx.Err() != nil {
			conn.Close()
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.serveConn(id, conn)
		}()
	}
}

func (s *Server) serveConn(id int, conn net.Conn) {
	sess := s.core.NewSession(id)
	defer func() {
		sess.Close()
		conn.Close()
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		s.cfg.LogFunc("service: client %d disconnected", id)
	}()
	s.cfg.LogFunc("service: client %d connected from %s", id, conn.RemoteAddr())

	r := bufio.NewReader(conn)
	for {
		msg, err := protocol.ReadMessage(r, s.cfg.MaxFrameSize)
		if err != nil {
			if !protocol.Recoverable(err) {
				if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
					s.cfg.LogFunc("service: client %d: %v", id, err)
				}
				return
			}
			s.cfg.LogFunc("service: client %d: %v", id, err)
			var de *protocol.DecodeError
			if errors.As(err, &de) {
				if reply := protocol.ErrorReply(de.Tag, infoMalformed); reply != nil {
					if err := protocol.WriteMessage(conn, reply); err != nil {
						return
					}
				}
			}
			continue
		}

		if reply := protocol.Dispatch(sess, msg); reply != nil {
			if err := protocol.WriteMessage(conn, reply); err != nil {
				s.cfg.LogFunc("service: client %d: %v", id, err)
				return
			}
		}
		if sess.Done() {
			return
		}
	}
}
