package chat

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBroadcastExceptSkipsExcludedConn(t *testing.T) {
	reg := NewRegistry(4, 32)
	a, b, c := &fakeConn{}, &fakeConn{}, &fakeConn{}
	for _, conn := range []*fakeConn{a, b, c} {
		_, _, err := reg.Add(conn)
		require.NoError(t, err)
	}

	NewBroadcaster(reg).BroadcastExcept("hello", b)

	require.Equal(t, "hello\n", a.received())
	require.Equal(t, "", b.received(), "excluded conn must receive nothing")
	require.Equal(t, "hello\n", c.received())
}

func TestBroadcastExceptNilReachesEveryone(t *testing.T) {
	reg := NewRegistry(4, 32)
	a, b := &fakeConn{}, &fakeConn{}
	for _, conn := range []*fakeConn{a, b} {
		_, _, err := reg.Add(conn)
		require.NoError(t, err)
	}

	NewBroadcaster(reg).BroadcastExcept("notice", nil)

	require.Equal(t, "notice\n", a.received())
	require.Equal(t, "notice\n", b.received())
}

func TestBroadcastSkipsFailingRecipient(t *testing.T) {
	reg := NewRegistry(4, 32)
	dead, live := &fakeConn{}, &fakeConn{}
	for _, conn := range []*fakeConn{dead, live} {
		_, _, err := reg.Add(conn)
		require.NoError(t, err)
	}

	// A closed conn rejects writes; delivery must carry on past it.
	require.NoError(t, dead.Close())

	NewBroadcaster(reg).BroadcastExcept("still here", nil)

	require.Equal(t, "", dead.received())
	require.Equal(t, "still here\n", live.received())
}

func TestSendToReachesOnlyTheTarget(t *testing.T) {
	reg := NewRegistry(4, 32)
	a, b := &fakeConn{}, &fakeConn{}
	for _, conn := range []*fakeConn{a, b} {
		_, _, err := reg.Add(conn)
		require.NoError(t, err)
	}

	require.NoError(t, NewBroadcaster(reg).SendTo(a, "just you"))

	require.Equal(t, "just you\n", a.received())
	require.Equal(t, "", b.received())
}

func TestWriteLineResumesShortWrites(t *testing.T) {
	w := &chunkWriter{max: 3}
	require.NoError(t, writeLine(w, "hello world"))
	require.Equal(t, "hello world\n", w.buf.String())
}

// chunkWriter accepts at most max bytes per call, forcing callers to resume.
type chunkWriter struct {
	buf bytes.Buffer
	max int
}

func (w *chunkWriter) Write(p []byte) (int, error) {
	if len(p) > w.max {
		p = p[:w.max]
	}
	return w.buf.Write(p)
}
