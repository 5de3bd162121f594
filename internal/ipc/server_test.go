package ipc

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"keyspeakd/internal/keys"
)

func startTestServer(t *testing.T) (*Server, *DaemonHandler, string) {
	t.Helper()

	h, _ := newTestHandler(t)
	sock := filepath.Join(t.TempDir(), "keyspeakd.sock")

	srv := NewServer(ServerConfig{SocketPath: sock, Version: "test"}, h, nil)
	if err := srv.Start(); err != nil {
		t.Fatalf("server start: %v", err)
	}
	t.Cleanup(func() { srv.Stop() })

	return srv, h, sock
}

func TestServerClientRoundTrip(t *testing.T) {
	srv, _, sock := startTestServer(t)

	c := NewClient(DefaultClientConfig(sock))
	if err := c.Connect(); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer c.Close()

	if err := c.Ping(); err != nil {
		t.Fatalf("ping: %v", err)
	}

	status, err := c.Status(false)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.Version != "test" {
		t.Errorf("Version = %q, want %q", status.Version, "test")
	}
	if !status.AccessibilityEnabled {
		t.Error("AccessibilityEnabled = false over the wire")
	}

	speak, err := c.Speak("over the socket")
	if err != nil {
		t.Fatalf("speak: %v", err)
	}
	if !speak.Spoken {
		t.Errorf("Spoken = false, reason %q", speak.Reason)
	}

	desc, err := c.DescribeKey(keys.CodeDelete, "")
	if err != nil {
		t.Fatalf("describe key: %v", err)
	}
	if !desc.Described || desc.Text != "Delete" {
		t.Errorf("DescribeKey = %+v, want Delete", desc)
	}

	// The connection should be visible server side.
	deadline := time.Now().Add(time.Second)
	for srv.ClientCount() != 1 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if got := srv.ClientCount(); got != 1 {
		t.Errorf("ClientCount = %d, want 1", got)
	}
}

func TestClientConnectNoDaemon(t *testing.T) {
	c := NewClient(DefaultClientConfig(filepath.Join(t.TempDir(), "missing.sock")))

	err := c.Connect()
	if !errors.Is(err, ErrDaemonNotRunning) {
		t.Errorf("Connect error = %v, want ErrDaemonNotRunning", err)
	}
}

func TestIsSocketListening(t *testing.T) {
	sock := filepath.Join(t.TempDir(), "probe.sock")
	if IsSocketListening(sock) {
		t.Error("missing socket reported as listening")
	}

	_, _, live := startTestServer(t)
	if !IsSocketListening(live) {
		t.Error("running server not reported as listening")
	}
}

func TestServerStopRemovesSocket(t *testing.T) {
	srv, _, sock := startTestServer(t)

	if err := srv.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if IsSocketListening(sock) {
		t.Error("socket still listening after Stop")
	}

	// Stop is idempotent.
	if err := srv.Stop(); err != nil {
		t.Errorf("second Stop errored: %v", err)
	}
}
