package chat

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"unicode/utf8"
)

var (
	// ErrRegistryFull is returned by Add when every slot is taken.
	ErrRegistryFull = errors.New("chat: registry full")

	// ErrRegistryClosed is returned by Add once CloseAll has run.
	ErrRegistryClosed = errors.New("chat: registry closed")

	// ErrEmptyName is returned by Rename when the new name is empty after sanitizing.
	ErrEmptyName = errors.New("chat: empty name")

	// ErrStaleSlot is returned by Rename when the slot is no longer alive.
	ErrStaleSlot = errors.New("chat: slot no longer alive")
)

// Entry is a point-in-time copy of one live slot, safe to use outside the
// registry lock.
type Entry struct {
	Conn net.Conn
	ID   int64
	Name string
}

// clientSlot is one fixed position in the registry arena. While alive it is
// the sole owner of its connection.
type clientSlot struct {
	conn  net.Conn
	id    int64
	name  string
	alive bool
}

// Registry is a bounded store of connected clients. It is the only mutable
// state shared between sessions; one mutex covers every read and write, and
// no peer write ever happens under it except in CloseAll.
//
// Slots live in a fixed arena with an explicit free-list, so admission and
// removal cost O(1) rather than a scan of the whole arena. Slot indexes are
// reused; client ids never are.
type Registry struct {
	mu        sync.Mutex
	slots     []clientSlot
	free      []int         // stack of vacant slot indexes
	byID      map[int64]int // live client id -> slot index
	nextID    int64
	nameLimit int
	closed    bool
}

// NewRegistry creates an empty registry with the given capacity and display
// name byte limit. Non-positive values fall back to the smallest usable ones.
func NewRegistry(capacity, nameLimit int) *Registry {
	if capacity < 1 {
		capacity = 1
	}
	if nameLimit < 1 {
		nameLimit = 1
	}
	free := make([]int, capacity)
	for i := range free {
		// Descending, so the first admissions pop the lowest slot indexes.
		free[i] = capacity - 1 - i
	}
	return &Registry{
		slots:     make([]clientSlot, capacity),
		free:      free,
		byID:      make(map[int64]int, capacity),
		nextID:    1,
		nameLimit: nameLimit,
	}
}

// Add admits a connection into a free slot, assigns it the next client id and
// the default display name derived from that id. It fails with
// ErrRegistryFull when no slot is vacant and with ErrRegistryClosed once the
// registry has been shut down; the connection is never closed here.
func (r *Registry) Add(conn net.Conn) (int, Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return 0, Entry{}, ErrRegistryClosed
	}
	n := len(r.free)
	if n == 0 {
		return 0, Entry{}, ErrRegistryFull
	}
	slot := r.free[n-1]
	r.free = r.free[:n-1]

	id := r.nextID
	r.nextID++

	s := &r.slots[slot]
	s.conn = conn
	s.id = id
	s.name = fmt.Sprintf("Client-%d", id)
	s.alive = true
	r.byID[id] = slot

	return slot, Entry{Conn: conn, ID: id, Name: s.name}, nil
}

// Remove vacates the slot, closing the owned connection. It reports whether
// the slot was still alive; removing a vacated slot is a safe no-op, so the
// connection is never double-closed.
func (r *Registry) Remove(slot int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.aliveSlot(slot) {
		return false
	}
	s := &r.slots[slot]
	s.conn.Close()
	delete(r.byID, s.id)
	*s = clientSlot{}
	r.free = append(r.free, slot)
	return true
}

// FindByID returns a copy of the live slot holding the given client id. The
// sentinel id 0 (and any other unknown id) reports ok=false.
func (r *Registry) FindByID(id int64) (Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	slot, ok := r.byID[id]
	if !ok {
		return Entry{}, false
	}
	s := &r.slots[slot]
	return Entry{Conn: s.conn, ID: s.id, Name: s.name}, true
}

// Rename replaces the slot's display name with the sanitized new name and
// returns the updated entry. An empty result after sanitizing is rejected
// with ErrEmptyName and mutates nothing; renaming a slot that is no longer
// alive fails with ErrStaleSlot.
func (r *Registry) Rename(slot int, name string) (Entry, error) {
	name = sanitizeName(name, r.nameLimit)
	if name == "" {
		return Entry{}, ErrEmptyName
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.aliveSlot(slot) {
		return Entry{}, ErrStaleSlot
	}
	s := &r.slots[slot]
	s.name = name
	return Entry{Conn: s.conn, ID: s.id, Name: s.name}, nil
}

// Snapshot copies every live slot in slot-index order. Broadcasting and the
// listing command work against this copy so no peer write happens under the
// registry lock.
func (r *Registry) Snapshot() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries := make([]Entry, 0, len(r.slots)-len(r.free))
	for i := range r.slots {
		if s := &r.slots[i]; s.alive {
			entries = append(entries, Entry{Conn: s.conn, ID: s.id, Name: s.name})
		}
	}
	return entries
}

// Len reports the number of live slots.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.slots) - len(r.free)
}

// CloseAll writes the notice to every live connection, closes it and vacates
// its slot, then refuses all further admissions. Each alive flag is
// checked-and-cleared under the lock, so invoking CloseAll again is a no-op.
// This is the one place peer writes happen under the lock: the registry is
// terminal afterwards, so nothing can be stalled behind a slow peer.
func (r *Registry) CloseAll(notice string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = true
	closed := 0
	for i := range r.slots {
		s := &r.slots[i]
		if !s.alive {
			continue
		}
		writeLine(s.conn, notice)
		s.conn.Close()
		delete(r.byID, s.id)
		*s = clientSlot{}
		r.free = append(r.free, i)
		closed++
	}
	return closed
}

func (r *Registry) aliveSlot(slot int) bool {
	return slot >= 0 && slot < len(r.slots) && r.slots[slot].alive
}

// sanitizeName bounds a requested display name: anything from the first NUL
// byte on is dropped, surrounding whitespace is trimmed, and the result is
// truncated to the byte limit without splitting a rune.
func sanitizeName(name string, limit int) string {
	if i := strings.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}
	name = strings.TrimSpace(name)
	if len(name) <= limit {
		return name
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(name[cut]) {
		cut--
	}
	return strings.TrimRight(name[:cut], " ")
}
