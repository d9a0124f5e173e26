package tcpserver

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestServeHandsConnectionsToHandler(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- New(listener.Addr().String(), testLogger()).Serve(ctx, listener, func(conn net.Conn) {
			defer conn.Close()
			scanner := bufio.NewScanner(conn)
			for scanner.Scan() {
				fmt.Fprintf(conn, "echo: %s\n", scanner.Text())
			}
		})
	}()

	conn, err := net.Dial("tcp", listener.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	fmt.Fprintln(conn, "ping")
	reply, err := bufio.NewReader(conn).ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, "echo: ping\n", reply)

	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for Serve to return")
	}

	_, err = net.Dial("tcp", listener.Addr().String())
	require.Error(t, err, "the listener must be closed after cancellation")
}

func TestServeRunsHandlersConcurrently(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	started := make(chan struct{}, 2)
	release := make(chan struct{})
	go New(listener.Addr().String(), testLogger()).Serve(ctx, listener, func(conn net.Conn) {
		started <- struct{}{}
		<-release
		conn.Close()
	})

	for i := 0; i < 2; i++ {
		conn, err := net.Dial("tcp", listener.Addr().String())
		require.NoError(t, err)
		defer conn.Close()
	}

	// Both handlers must be running at once; a serial accept loop would
	// still be stuck inside the first one.
	for i := 0; i < 2; i++ {
		select {
		case <-started:
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for handlers to start")
		}
	}
	close(release)
}

func TestServeRequiresHandler(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	err = New(listener.Addr().String(), testLogger()).Serve(context.Background(), listener, nil)
	require.Error(t, err)
}

func TestListenAndServeRejectsBadAddress(t *testing.T) {
	err := New("256.0.0.1:99999", testLogger()).ListenAndServe(context.Background(), func(net.Conn) {})
	require.Error(t, err)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
