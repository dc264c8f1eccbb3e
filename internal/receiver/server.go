package receiver

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fodormate111/NetCopy/internal/checksum"
	"github.com/fodormate111/NetCopy/internal/journal"
	"github.com/fodormate111/NetCopy/internal/registry"
	"github.com/fodormate111/NetCopy/pkg/logging"
)

// ErrSessionAbandoned reports a peer that disconnected before the
// transfer finished. No verdict is emitted for such a session.
var ErrSessionAbandoned = errors.New("session abandoned by peer")

// Server accepts inbound transfers, one session per connection.
// Sessions are fully independent: the only thing they share is the
// registry client (stateless) and the journal (its own locking).
type Server struct {
	registry  *registry.Client
	journal   *journal.Journal // nil disables the audit log
	outPath   string
	blockSize int

	mu       sync.Mutex
	listener net.Listener
	running  bool

	log *logrus.Entry
}

// NewServer builds a receiver writing to outPath. If outPath is an
// existing directory, each session writes to <outPath>/<fileID>;
// otherwise every session writes to outPath itself.
func NewServer(reg *registry.Client, jnl *journal.Journal, outPath string) *Server {
	return &Server{
		registry:  reg,
		journal:   jnl,
		outPath:   outPath,
		blockSize: checksum.BlockSize,
		log:       logging.WithComponent("receiver"),
	}
}

// Listen binds the receiver without accepting yet.
func (s *Server) Listen(bindAddr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("receiver already running")
	}
	ln, err := net.Listen("tcp", bindAddr)
	if err != nil {
		return fmt.Errorf("failed to bind receiver listener: %w", err)
	}
	s.listener = ln
	s.running = true
	s.log.Infof("receiver listening on %s", ln.Addr())
	return nil
}

// Serve accepts connections until Stop, one goroutine per session.
func (s *Server) Serve() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.isRunning() {
				s.log.Warnf("accept failed: %v", err)
				continue
			}
			return
		}
		go func() {
			if _, err := s.runSession(conn); err != nil {
				s.log.Warnf("session ended without verdict: %v", err)
			}
		}()
	}
}

// ServeOne accepts a single connection, runs its session to a terminal
// verdict and returns it. Used by the one-shot daemon mode and tests.
func (s *Server) ServeOne() (Verdict, error) {
	conn, err := s.listener.Accept()
	if err != nil {
		return "", fmt.Errorf("accept failed: %w", err)
	}
	return s.runSession(conn)
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

// Stop closes the listener. Running sessions finish on their own.
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

// runSession drives one connection through the session lifecycle:
// read the fileID line, consume the payload to EOF, verify against the
// registry, report. A peer disconnect before end-of-stream abandons
// the session with no verdict.
func (s *Server) runSession(conn net.Conn) (Verdict, error) {
	defer conn.Close()

	sess := newSession(conn, s.log)
	reader := bufio.NewReaderSize(conn, s.blockSize)

	fileID, err := reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("%w: no file id received", ErrSessionAbandoned)
	}
	fileID = strings.TrimRight(fileID, "\r\n")
	if fileID == "" {
		return "", fmt.Errorf("%w: empty file id", ErrSessionAbandoned)
	}
	sess.fileID = fileID
	sess.state = stateReceiving
	sess.log = sess.log.WithField("file_id", fileID)
	sess.log.Debug("receiving payload")

	outPath := s.outputPath(fileID)
	out, err := os.Create(outPath)
	if err != nil {
		return "", fmt.Errorf("failed to create output file: %w", err)
	}

	recvErr := s.receivePayload(sess, reader, out)
	if closeErr := out.Close(); recvErr == nil {
		recvErr = closeErr
	}
	if recvErr != nil {
		// Keep the partial file for inspection; the transfer itself
		// yields no verdict.
		return "", fmt.Errorf("%w: %v", ErrSessionAbandoned, recvErr)
	}

	sess.state = stateVerifying
	verdict := s.verify(sess)
	sess.state = stateDone

	s.report(sess, verdict, outPath)
	return verdict, nil
}

// receivePayload consumes the connection in blockSize blocks until the
// peer half-closes. Every block is persisted, then accumulated; no
// block is dropped or reordered. A read error is a mid-transfer
// disconnect, distinct from a clean end-of-stream.
func (s *Server) receivePayload(sess *session, r *bufio.Reader, out *os.File) error {
	buf := make([]byte, s.blockSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			if _, werr := out.Write(buf[:n]); werr != nil {
				return fmt.Errorf("failed to persist block: %w", werr)
			}
			sess.digest.Write(buf[:n])
			sess.received += int64(n)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read failed after %d bytes: %w", sess.received, err)
		}
	}
}

// verify cross-checks the accumulated digest against the registry.
// The three failure shapes stay separate: a differing checksum is
// corruption, the not-found sentinel is unverifiable, and a registry
// contact failure is an infrastructure fault.
func (s *Server) verify(sess *session) Verdict {
	local := checksum.Sum(sess.digest)

	length, want, err := s.registry.Query(sess.fileID)
	switch {
	case errors.Is(err, registry.ErrNotFound):
		return VerdictUnverifiable
	case err != nil:
		sess.log.Warnf("registry unreachable: %v", err)
		return VerdictRegistryUnreachable
	}

	if length != sess.received {
		sess.log.Warnf("registered length %d differs from received %d", length, sess.received)
	}
	if want == local {
		return VerdictOK
	}
	sess.log.Debugf("checksum mismatch: registered %s, computed %s", want, local)
	return VerdictCorrupted
}

// report logs the verdict and, when a journal is attached, persists it.
func (s *Server) report(sess *session, verdict Verdict, outPath string) {
	sess.log.WithFields(logrus.Fields{
		"verdict": string(verdict),
		"bytes":   sess.received,
		"out":     outPath,
	}).Info(string(verdict))

	if s.journal == nil {
		return
	}
	entry := journal.Entry{
		SessionID:  sess.id,
		FileID:     sess.fileID,
		Verdict:    string(verdict),
		Bytes:      sess.received,
		Digest:     checksum.Sum(sess.digest),
		Remote:     sess.conn.RemoteAddr().String(),
		FinishedAt: time.Now().Unix(),
	}
	if err := s.journal.Append(entry); err != nil {
		sess.log.Warnf("failed to journal verdict: %v", err)
	}
}

// outputPath resolves where a session's payload lands. A directory
// target gets one file per fileID; path separators in the fileID are
// stripped so a peer cannot escape it.
func (s *Server) outputPath(fileID string) string {
	info, err := os.Stat(s.outPath)
	if err == nil && info.IsDir() {
		return filepath.Join(s.outPath, filepath.Base(fileID))
	}
	return s.outPath
}
