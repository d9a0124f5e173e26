package chat

import (
	"strconv"
	"strings"
)

// commandMarker starts every command line; anything else is plain chat.
const commandMarker = "/"

// CommandKind tags one classified line of session input.
type CommandKind int

const (
	// CmdChat is a plain message broadcast to everyone else.
	CmdChat CommandKind = iota
	// CmdQuit ends the session cleanly.
	CmdQuit
	// CmdRename requests a new display name.
	CmdRename
	// CmdList requests the roster of connected clients.
	CmdList
	// CmdPrivate addresses one recipient by client id.
	CmdPrivate
	// CmdUnknown is any unrecognized command word.
	CmdUnknown
)

// Command is the parsed form of one input line, produced once before
// dispatch so acting on a line never re-inspects its raw text.
type Command struct {
	Kind     CommandKind
	Name     string // CmdRename: requested display name, unvalidated
	TargetID int64  // CmdPrivate: recipient id; 0 when the token did not parse
	Text     string // CmdChat and CmdPrivate payload
}

// parseCommand classifies one line with its terminators already stripped.
// Matching is case-sensitive and the marker must be the first byte, so a
// line with leading whitespace stays a chat message.
func parseCommand(line string) Command {
	if !strings.HasPrefix(line, commandMarker) {
		return Command{Kind: CmdChat, Text: line}
	}

	word, rest := splitWord(line)
	switch word {
	case "/quit":
		return Command{Kind: CmdQuit}
	case "/name":
		return Command{Kind: CmdRename, Name: rest}
	case "/list":
		return Command{Kind: CmdList}
	case "/msg":
		token, text := splitWord(rest)
		id, err := strconv.ParseInt(token, 10, 64)
		if err != nil {
			// Unparseable ids resolve to the sentinel 0, which no live
			// client ever holds, so they surface as "not found".
			id = 0
		}
		return Command{Kind: CmdPrivate, TargetID: id, Text: text}
	}
	return Command{Kind: CmdUnknown}
}

// splitWord cuts the first space-delimited word off the line, consuming the
// single delimiter after it. Anything beyond that one space is payload and
// kept verbatim.
func splitWord(s string) (word, rest string) {
	if i := strings.IndexByte(s, ' '); i >= 0 {
		return s[:i], s[i+1:]
	}
	return s, ""
}
