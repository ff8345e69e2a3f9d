package sync

import (
	"bufio"
	"errors"
	"net"
	"sync"

	"mangashelf/pkg/logging"
)

// Server streams hub events to plain TCP clients, one JSON object per line.
type Server struct {
	Addr string
	Hub  *Hub

	mu sync.Mutex
	ln net.Listener
}

func NewServer(addr string, hub *Hub) *Server {
	return &Server{Addr: addr, Hub: hub}
}

func (s *Server) Run() error {
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve accepts on ln until Close is called.
func (s *Server) Serve(ln net.Listener) error {
	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()
	logging.Info().Str("addr", ln.Addr().String()).Msg("tcp event stream listening")

	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			continue
		}

		s.Hub.Add(conn)
		s.Hub.Welcome(conn)
		logging.Debug().Str("remote", conn.RemoteAddr().String()).Msg("tcp client connected")

		go func(c net.Conn) {
			defer func() {
				s.Hub.Remove(c)
				logging.Debug().Str("remote", c.RemoteAddr().String()).Msg("tcp client disconnected")
			}()
			sc := bufio.NewScanner(c)
			for sc.Scan() {
			}
		}(conn)
	}
}

func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Close()
}
