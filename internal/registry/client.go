package registry

import (
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"
)

// ErrNotFound reports the registry's zero sentinel: the checksum was
// never registered, or it expired. The wire cannot tell the two apart.
var ErrNotFound = errors.New("checksum not found or expired")

// Client talks to the checksum registry. Every call opens a fresh
// connection, because the protocol allows one request per connection.
// A dial or read failure is surfaced as-is so callers can distinguish
// an unreachable registry from a negative answer.
type Client struct {
	addr        string
	dialTimeout time.Duration
	readTimeout time.Duration
}

// NewClient points at a registry address ("host:port"). Timeouts of
// zero disable the respective bound.
func NewClient(addr string, dialTimeout, readTimeout time.Duration) *Client {
	return &Client{
		addr:        addr,
		dialTimeout: dialTimeout,
		readTimeout: readTimeout,
	}
}

// Register stores a checksum under fileID with the given time-to-live.
func (c *Client) Register(fileID string, ttl time.Duration, length int64, sum string) error {
	if err := validateFileID(fileID); err != nil {
		return err
	}
	req := fmt.Sprintf("%s|%s|%d|%d|%s\n", cmdRegister, fileID, int(ttl.Seconds()), length, sum)
	reply, err := c.roundTrip(req)
	if err != nil {
		return err
	}
	if reply != replyOK {
		return fmt.Errorf("registry rejected registration: %q", reply)
	}
	return nil
}

// Query looks up fileID and returns the registered length and
// checksum. ErrNotFound covers both absent and expired entries.
func (c *Client) Query(fileID string) (int64, string, error) {
	if err := validateFileID(fileID); err != nil {
		return 0, "", err
	}
	reply, err := c.roundTrip(cmdQuery + "|" + fileID + "\n")
	if err != nil {
		return 0, "", err
	}

	parts := strings.SplitN(reply, "|", 2)
	if len(parts) != 2 {
		return 0, "", fmt.Errorf("malformed registry reply: %q", reply)
	}
	length, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("malformed length in registry reply %q: %w", reply, err)
	}
	if length == 0 && parts[1] == "" {
		return 0, "", ErrNotFound
	}
	return length, parts[1], nil
}

// roundTrip sends one request line and reads the reply up to the
// server's close.
func (c *Client) roundTrip(req string) (string, error) {
	conn, err := net.DialTimeout("tcp", c.addr, c.dialTimeout)
	if err != nil {
		return "", fmt.Errorf("failed to connect to registry %s: %w", c.addr, err)
	}
	defer conn.Close()

	if c.readTimeout > 0 {
		conn.SetDeadline(time.Now().Add(c.readTimeout))
	}

	if _, err := conn.Write([]byte(req)); err != nil {
		return "", fmt.Errorf("failed to send registry request: %w", err)
	}

	reply, err := io.ReadAll(conn)
	if err != nil {
		return "", fmt.Errorf("failed to read registry reply: %w", err)
	}
	return string(reply), nil
}

// validateFileID rejects identifiers that would corrupt the framing.
func validateFileID(fileID string) error {
	if fileID == "" {
		return errors.New("file id must not be empty")
	}
	if strings.ContainsAny(fileID, "|\r\n") {
		return fmt.Errorf("file id %q contains protocol delimiters", fileID)
	}
	return nil
}
