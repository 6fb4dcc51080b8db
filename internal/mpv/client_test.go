package mpv

import (
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestClientClosedOnSocketDeath(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "mpv.sock")
	ln, err := net.Listen("unix", socketPath)
	require.NoError(t, err)
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			accepted <- conn
		}
	}()

	client, err := Connect(socketPath)
	require.NoError(t, err)
	defer client.Close()

	// The player dying closes the socket without any shutdown event.
	conn := <-accepted
	conn.Close()

	select {
	case <-client.Closed():
	case <-time.After(2 * time.Second):
		t.Fatal("socket death was not surfaced through Closed")
	}
}
