package sender

import (
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fodormate111/NetCopy/internal/checksum"
	"github.com/fodormate111/NetCopy/internal/registry"
	"github.com/fodormate111/NetCopy/pkg/logging"
)

// Sender pushes one local file to a receiver after registering its
// checksum. The register call completes before any payload byte is
// written, so a receiver that queries after end-of-stream observes the
// registration (the protocol itself does not enforce this ordering).
type Sender struct {
	registry     *registry.Client
	receiverAddr string
	ttl          time.Duration
	blockSize    int
	dialTimeout  time.Duration

	log *logrus.Entry
}

// New builds a sender targeting receiverAddr ("host:port"). ttl is the
// checksum time-to-live requested at registration.
func New(reg *registry.Client, receiverAddr string, ttl, dialTimeout time.Duration) *Sender {
	return &Sender{
		registry:     reg,
		receiverAddr: receiverAddr,
		ttl:          ttl,
		blockSize:    checksum.BlockSize,
		dialTimeout:  dialTimeout,
		log:          logging.WithComponent("sender"),
	}
}

// Transfer digests the file, registers the checksum, then streams the
// bytes to the receiver.
func (s *Sender) Transfer(fileID, filePath string) error {
	digest, length, err := checksum.File(filePath)
	if err != nil {
		return fmt.Errorf("failed to digest %s: %w", filePath, err)
	}
	s.log.WithFields(logrus.Fields{
		"file_id": fileID,
		"bytes":   length,
		"digest":  digest,
	}).Debug("file digested")

	if err := s.registry.Register(fileID, s.ttl, length, digest); err != nil {
		return fmt.Errorf("failed to register checksum: %w", err)
	}

	if err := s.stream(fileID, filePath); err != nil {
		return fmt.Errorf("failed to send file: %w", err)
	}

	s.log.Infof("transferred %s (%d bytes) as %q", filePath, length, fileID)
	return nil
}

// stream writes the fileID line, then the payload in blockSize blocks,
// then half-closes to signal end-of-file.
func (s *Sender) stream(fileID, filePath string) error {
	f, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	conn, err := net.DialTimeout("tcp", s.receiverAddr, s.dialTimeout)
	if err != nil {
		return fmt.Errorf("failed to connect to receiver %s: %w", s.receiverAddr, err)
	}
	defer conn.Close()

	if _, err := fmt.Fprintf(conn, "%s\n", fileID); err != nil {
		return fmt.Errorf("failed to send file id: %w", err)
	}
	if _, err := io.CopyBuffer(conn, f, make([]byte, s.blockSize)); err != nil {
		return fmt.Errorf("failed to stream payload: %w", err)
	}

	// Half-close tells the receiver the file is complete; there is no
	// acknowledgment coming back on this connection.
	if tc, ok := conn.(*net.TCPConn); ok {
		return tc.CloseWrite()
	}
	return nil
}
