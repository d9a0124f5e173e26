package chat

import (
	"io"
	"net"
)

// Broadcaster fans one formatted line out to the registry's live connections.
type Broadcaster struct {
	registry *Registry
}

// NewBroadcaster creates a broadcaster over the given registry.
func NewBroadcaster(registry *Registry) *Broadcaster {
	return &Broadcaster{registry: registry}
}

// BroadcastExcept writes the line to every live connection except the given
// one; a nil conn excludes nobody. Delivery is attempted against a snapshot
// taken at call time, in slot order, with no lock held during the writes. A
// recipient whose write fails is skipped, not removed: that peer's own
// session notices the dead connection on its next read and tears itself down.
func (b *Broadcaster) BroadcastExcept(line string, except net.Conn) {
	for _, e := range b.registry.Snapshot() {
		if except != nil && e.Conn == except {
			continue
		}
		writeLine(e.Conn, line)
	}
}

// SendTo writes the line to one connection with the same framing and
// short-write handling as a broadcast.
func (b *Broadcaster) SendTo(conn net.Conn, line string) error {
	return writeLine(conn, line)
}

// writeLine frames one wire line, retrying until the whole line is written or
// the writer reports a real error. Partial writes are resumed rather than
// treated as failures.
func writeLine(w io.Writer, line string) error {
	buf := []byte(line + "\n")
	for len(buf) > 0 {
		n, err := w.Write(buf)
		if err != nil {
			return err
		}
		buf = buf[n:]
	}
	return nil
}
