package receiver

import (
	"hash"
	"net"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/fodormate111/NetCopy/internal/checksum"
)

// Verdict is the terminal classification of a transfer session.
type Verdict string

const (
	// VerdictOK: the registered checksum matches the received bytes.
	VerdictOK Verdict = "CSUM OK"
	// VerdictCorrupted: a checksum was registered and it differs from
	// the received bytes.
	VerdictCorrupted Verdict = "CSUM CORRUPTED"
	// VerdictUnverifiable: the registry answered its not-found
	// sentinel. The transfer may be fine; there is nothing to check it
	// against. Deliberately distinct from corruption.
	VerdictUnverifiable Verdict = "CSUM UNVERIFIABLE"
	// VerdictRegistryUnreachable: the registry could not be contacted.
	// An infrastructure fault, never reported as corruption.
	VerdictRegistryUnreachable Verdict = "REGISTRY UNREACHABLE"
)

// sessionState tracks where a session is in its lifecycle:
// awaitingFileID -> receiving -> verifying -> done. All verdicts are
// terminal; a session never leaves done.
type sessionState int

const (
	stateAwaitingFileID sessionState = iota
	stateReceiving
	stateVerifying
	stateDone
)

// session is the per-connection transfer state. It is owned entirely
// by the goroutine handling the connection and shares nothing with
// other sessions.
type session struct {
	id       string
	conn     net.Conn
	state    sessionState
	fileID   string
	digest   hash.Hash
	received int64
	log      *logrus.Entry
}

func newSession(conn net.Conn, log *logrus.Entry) *session {
	id := uuid.New().String()
	return &session{
		id:     id,
		conn:   conn,
		state:  stateAwaitingFileID,
		digest: checksum.New(),
		log: log.WithFields(logrus.Fields{
			"session": id,
			"remote":  conn.RemoteAddr().String(),
		}),
	}
}
