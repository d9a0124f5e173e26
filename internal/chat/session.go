package chat

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Wire text sent back to the issuing client. Broadcast and notice shapes
// live next to the code that emits them.
const (
	commandsHint = "Commands: /name <new>, /list, /msg <id> <text>, /quit"
	renameUsage  = "Usage: /name <newname>"
	userNotFound = "User not found."
	unknownReply = "Unknown command."
	privateAck   = "[PM sent]"
	listHeader   = "=== Connected Users ==="
	listFooter   = "======================="
	fullNotice   = "Server full."
)

// HandleSession owns one accepted connection for its entire lifetime:
// admission, greeting, the read loop, and the exit path. When the registry
// refuses the connection (full or shutting down) the caller's conn is told
// why and closed without a session ever starting.
func HandleSession(room *Room, conn net.Conn) {
	slot, self, err := room.registry.Add(conn)
	if err != nil {
		room.bcast.SendTo(conn, fullNotice)
		conn.Close()
		room.logger.Info("connection refused",
			"remote", conn.RemoteAddr().String(),
			"reason", err,
		)
		return
	}
	newSession(room, slot, self, conn).run()
}

// session is the per-connection state machine. id and name are private
// copies of the registry entry; name is refreshed after a successful rename
// so outgoing messages never need a registry lookup.
type session struct {
	room *Room
	conn net.Conn

	slot int
	id   int64
	name string

	logger  *slog.Logger
	cleanup sync.Once
}

func newSession(room *Room, slot int, self Entry, conn net.Conn) *session {
	return &session{
		room: room,
		conn: conn,
		slot: slot,
		id:   self.ID,
		name: self.Name,
		logger: room.logger.With(
			"session", uuid.NewString(),
			"client_id", self.ID,
			"remote", conn.RemoteAddr().String(),
		),
	}
}

func (s *session) run() {
	defer s.finish()

	s.logger.Info("session started", "name", s.name)

	s.reply(fmt.Sprintf("Welcome %s (ID:%d)", s.name, s.id))
	s.reply(commandsHint)
	s.room.bcast.BroadcastExcept(fmt.Sprintf("[Server] %s (ID:%d) joined.", s.name, s.id), s.conn)
	s.room.events.Connect(s.id, s.name)

	s.readLoop()
}

// readLoop blocks on the connection until EOF, a read error, or /quit.
// Lines longer than the room's line limit surface as a scanner error and
// end the session like any other transport failure.
func (s *session) readLoop() {
	// The scanner only reports ErrTooLong once its buffer is full, so the
	// initial capacity must not exceed the line limit.
	initial := s.room.lineLimit
	if initial > 1024 {
		initial = 1024
	}
	scanner := bufio.NewScanner(s.conn)
	scanner.Buffer(make([]byte, 0, initial), s.room.lineLimit)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			continue
		}
		if !s.dispatch(parseCommand(line)) {
			return
		}
	}
	if err := scanner.Err(); err != nil {
		s.logger.Debug("read loop ended", "error", err)
	}
}

// dispatch acts on one parsed line and reports whether the session should
// keep reading.
func (s *session) dispatch(cmd Command) bool {
	switch cmd.Kind {
	case CmdQuit:
		return false
	case CmdRename:
		s.rename(cmd.Name)
	case CmdList:
		s.list()
	case CmdPrivate:
		s.private(cmd.TargetID, cmd.Text)
	case CmdChat:
		s.chat(cmd.Text)
	default:
		s.reply(unknownReply)
	}
	return true
}

func (s *session) rename(requested string) {
	entry, err := s.room.registry.Rename(s.slot, requested)
	switch {
	case errors.Is(err, ErrEmptyName):
		s.reply(renameUsage)
	case err != nil:
		// Slot already vacated by shutdown; the read loop ends on its own.
		s.logger.Debug("rename raced shutdown", "error", err)
	default:
		s.name = entry.Name
		s.room.bcast.BroadcastExcept(fmt.Sprintf("[Server] ID %d is now known as %s", s.id, s.name), nil)
		s.room.events.Rename(s.id, s.name)
	}
}

// list sends the roster as a single write so concurrent broadcasts cannot
// interleave between its lines.
func (s *session) list() {
	var b strings.Builder
	b.WriteString(listHeader)
	b.WriteByte('\n')
	for _, e := range s.room.registry.Snapshot() {
		fmt.Fprintf(&b, "ID:%d  %s\n", e.ID, e.Name)
	}
	b.WriteString(listFooter)
	s.reply(b.String())
}

func (s *session) private(target int64, text string) {
	recipient, ok := s.room.registry.FindByID(target)
	if !ok {
		s.reply(userNotFound)
		return
	}
	s.room.bcast.SendTo(recipient.Conn, fmt.Sprintf("[PM from %s (ID:%d)]: %s", s.name, s.id, text))
	s.reply(privateAck)
	s.room.events.Private(s.id, recipient.ID, text)
}

func (s *session) chat(text string) {
	s.room.bcast.BroadcastExcept(fmt.Sprintf("%s (ID:%d): %s", s.name, s.id, text), s.conn)
	s.room.events.Message(s.id, s.name, text)
}

// reply writes one line back to this session's client. Errors are ignored;
// a broken connection surfaces as a read error moments later.
func (s *session) reply(line string) {
	_ = s.room.bcast.SendTo(s.conn, line)
}

// finish runs the exit path exactly once regardless of how the session
// ended: departure notice first, then the disconnect event, then the slot
// is vacated (which also closes the connection). After a forced shutdown
// every step degrades to a no-op.
func (s *session) finish() {
	s.cleanup.Do(func() {
		s.room.bcast.BroadcastExcept(fmt.Sprintf("[Server] %s (ID:%d) disconnected.", s.name, s.id), s.conn)
		s.room.events.Disconnect(s.id, s.name)
		s.room.registry.Remove(s.slot)
		s.logger.Info("session ended", "name", s.name)
	})
}
