package registry

import (
	"bufio"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fodormate111/NetCopy/pkg/logging"
)

// Server answers registry requests over TCP. Each accepted connection
// carries exactly one request: read the line, write the reply, close.
// All connections share the one store; the store's own lock is the
// only synchronization between them.
type Server struct {
	store       *Store
	readTimeout time.Duration

	mu       sync.Mutex
	listener net.Listener
	running  bool

	log *logrus.Entry
}

// NewServer wraps a store in the wire protocol. readTimeout bounds how
// long an accepted connection may sit without delivering its request
// line; zero disables the deadline (the base protocol has none).
func NewServer(store *Store, readTimeout time.Duration) *Server {
	return &Server{
		store:       store,
		readTimeout: readTimeout,
		log:         logging.WithComponent("registry"),
	}
}

// Start binds the listener and begins accepting in the background.
func (s *Server) Start(bindAddr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("registry server already running")
	}

	ln, err := net.Listen("tcp", bindAddr)
	if err != nil {
		return fmt.Errorf("failed to bind registry listener: %w", err)
	}
	s.listener = ln
	s.running = true

	go s.acceptLoop()

	s.log.Infof("checksum registry listening on %s", ln.Addr())
	return nil
}

// Addr reports the bound address, useful when binding to port 0.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop closes the listener. In-flight requests finish on their own.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return nil
	}
	s.running = false
	return s.listener.Close()
}

func (s *Server) isRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Server) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.isRunning() {
				s.log.Warnf("accept failed: %v", err)
				continue
			}
			return
		}
		go s.handleConn(conn)
	}
}

// handleConn serves one request-response exchange, then closes.
func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	if s.readTimeout > 0 {
		conn.SetReadDeadline(time.Now().Add(s.readTimeout))
	}

	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil && line == "" {
		// Peer went away before sending anything; nothing to answer.
		s.log.Debugf("connection from %s closed before request", conn.RemoteAddr())
		return
	}

	line = strings.TrimRight(line, "\r\n")
	reply := Dispatch(s.store, line)
	if reply == replyErr {
		s.log.Warnf("malformed request from %s: %q", conn.RemoteAddr(), line)
	}

	if _, err := conn.Write([]byte(reply)); err != nil {
		s.log.Warnf("failed to write reply to %s: %v", conn.RemoteAddr(), err)
	}
}
