package receiver

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fodormate111/NetCopy/internal/journal"
	"github.com/fodormate111/NetCopy/internal/registry"
)

type sessionResult struct {
	verdict Verdict
	err     error
}

// startRegistry runs a real registry server on a loopback port.
func startRegistry(t *testing.T) (*registry.Store, string) {
	t.Helper()
	store := registry.NewStore()
	srv := registry.NewServer(store, time.Second)
	if err := srv.Start("127.0.0.1:0"); err != nil {
		t.Fatalf("failed to start registry: %v", err)
	}
	t.Cleanup(func() { srv.Stop() })
	return store, srv.Addr().String()
}

// startReceiver listens on a loopback port and runs exactly one
// session, delivering its outcome on the returned channel.
func startReceiver(t *testing.T, registryAddr, outPath string, jnl *journal.Journal) (string, <-chan sessionResult) {
	t.Helper()
	reg := registry.NewClient(registryAddr, time.Second, time.Second)
	srv := NewServer(reg, jnl, outPath)
	if err := srv.Listen("127.0.0.1:0"); err != nil {
		t.Fatalf("failed to start receiver: %v", err)
	}
	t.Cleanup(func() { srv.Stop() })

	results := make(chan sessionResult, 1)
	go func() {
		v, err := srv.ServeOne()
		results <- sessionResult{verdict: v, err: err}
	}()
	return srv.Addr().String(), results
}

// push plays the sender's role on the wire: fileID line, payload,
// half-close.
func push(t *testing.T, addr, fileID string, payload []byte) {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial receiver failed: %v", err)
	}
	defer conn.Close()
	if _, err := conn.Write([]byte(fileID + "\n")); err != nil {
		t.Fatalf("failed to write file id: %v", err)
	}
	if _, err := conn.Write(payload); err != nil {
		t.Fatalf("failed to write payload: %v", err)
	}
	if err := conn.(*net.TCPConn).CloseWrite(); err != nil {
		t.Fatalf("failed to half-close: %v", err)
	}
}

func waitResult(t *testing.T, results <-chan sessionResult) sessionResult {
	t.Helper()
	select {
	case r := <-results:
		return r
	case <-time.After(5 * time.Second):
		t.Fatalf("session did not finish")
		return sessionResult{}
	}
}

func md5hex(b []byte) string {
	sum := md5.Sum(b)
	return hex.EncodeToString(sum[:])
}

func TestReceiveMatchingChecksum(t *testing.T) {
	payload := bytes.Repeat([]byte("netcopy payload "), 600) // spans multiple blocks
	store, regAddr := startRegistry(t)
	store.Put("report", md5hex(payload), int64(len(payload)), time.Minute)

	outPath := filepath.Join(t.TempDir(), "out.bin")
	addr, results := startReceiver(t, regAddr, outPath, nil)
	push(t, addr, "report", payload)

	r := waitResult(t, results)
	if r.err != nil {
		t.Fatalf("session failed: %v", r.err)
	}
	if r.verdict != VerdictOK {
		t.Fatalf("verdict = %q, want %q", r.verdict, VerdictOK)
	}

	got, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("failed to read output file: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("output file differs from sent payload (%d vs %d bytes)", len(got), len(payload))
	}
}

func TestReceiveTamperedPayload(t *testing.T) {
	payload := []byte("hello")
	store, regAddr := startRegistry(t)
	// Registered checksum belongs to different content.
	store.Put("report", md5hex([]byte("goodbye")), 7, time.Minute)

	addr, results := startReceiver(t, regAddr, filepath.Join(t.TempDir(), "out.bin"), nil)
	push(t, addr, "report", payload)

	r := waitResult(t, results)
	if r.err != nil {
		t.Fatalf("session failed: %v", r.err)
	}
	if r.verdict != VerdictCorrupted {
		t.Errorf("verdict = %q, want %q", r.verdict, VerdictCorrupted)
	}
}

func TestReceiveQueryBeforeRegister(t *testing.T) {
	// Nothing registered: the latent register/send race resolves to an
	// unverifiable session, not a corruption claim and not a crash.
	_, regAddr := startRegistry(t)

	addr, results := startReceiver(t, regAddr, filepath.Join(t.TempDir(), "out.bin"), nil)
	push(t, addr, "report", []byte("hello"))

	r := waitResult(t, results)
	if r.err != nil {
		t.Fatalf("session failed: %v", r.err)
	}
	if r.verdict != VerdictUnverifiable {
		t.Errorf("verdict = %q, want %q", r.verdict, VerdictUnverifiable)
	}
}

func TestReceiveExpiredRegistration(t *testing.T) {
	payload := []byte("hello")
	store, regAddr := startRegistry(t)
	store.Put("report", md5hex(payload), int64(len(payload)), -time.Second)

	addr, results := startReceiver(t, regAddr, filepath.Join(t.TempDir(), "out.bin"), nil)
	push(t, addr, "report", payload)

	r := waitResult(t, results)
	if r.err != nil {
		t.Fatalf("session failed: %v", r.err)
	}
	if r.verdict != VerdictUnverifiable {
		t.Errorf("verdict = %q, want %q", r.verdict, VerdictUnverifiable)
	}
}

func TestReceiveRegistryUnreachable(t *testing.T) {
	// Point the receiver at a port nothing listens on.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen failed: %v", err)
	}
	deadAddr := ln.Addr().String()
	ln.Close()

	addr, results := startReceiver(t, deadAddr, filepath.Join(t.TempDir(), "out.bin"), nil)
	push(t, addr, "report", []byte("hello"))

	r := waitResult(t, results)
	if r.err != nil {
		t.Fatalf("session failed: %v", r.err)
	}
	if r.verdict != VerdictRegistryUnreachable {
		t.Errorf("verdict = %q, want %q", r.verdict, VerdictRegistryUnreachable)
	}
}

func TestAbandonedBeforeFileID(t *testing.T) {
	_, regAddr := startRegistry(t)
	addr, results := startReceiver(t, regAddr, filepath.Join(t.TempDir(), "out.bin"), nil)

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	conn.Close()

	r := waitResult(t, results)
	if !errors.Is(r.err, ErrSessionAbandoned) {
		t.Fatalf("expected ErrSessionAbandoned, got verdict=%q err=%v", r.verdict, r.err)
	}
}

func TestDirectoryOutputUsesFileID(t *testing.T) {
	payload := []byte("hello")
	store, regAddr := startRegistry(t)
	store.Put("report", md5hex(payload), int64(len(payload)), time.Minute)

	outDir := t.TempDir()
	addr, results := startReceiver(t, regAddr, outDir, nil)
	push(t, addr, "report", payload)

	r := waitResult(t, results)
	if r.err != nil || r.verdict != VerdictOK {
		t.Fatalf("verdict=%q err=%v", r.verdict, r.err)
	}
	if _, err := os.Stat(filepath.Join(outDir, "report")); err != nil {
		t.Errorf("expected per-fileID output file: %v", err)
	}
}

func TestVerdictJournaled(t *testing.T) {
	payload := []byte("hello")
	store, regAddr := startRegistry(t)
	store.Put("report", md5hex(payload), int64(len(payload)), time.Minute)

	jnl, err := journal.Open(t.TempDir())
	if err != nil {
		t.Fatalf("failed to open journal: %v", err)
	}
	defer jnl.Close()

	addr, results := startReceiver(t, regAddr, filepath.Join(t.TempDir(), "out.bin"), jnl)
	push(t, addr, "report", payload)

	r := waitResult(t, results)
	if r.err != nil || r.verdict != VerdictOK {
		t.Fatalf("verdict=%q err=%v", r.verdict, r.err)
	}

	entries, err := jnl.List()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("journaled %d entries, want 1", len(entries))
	}
	e := entries[0]
	if e.FileID != "report" || e.Verdict != string(VerdictOK) || e.Bytes != int64(len(payload)) {
		t.Errorf("journal entry does not match session: %+v", e)
	}
}
