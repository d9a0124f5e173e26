// Package eventlog persists one timestamped line per chat lifecycle event.
// Records from concurrent sessions are fed through a bounded queue and
// written by a single goroutine, so lines never interleave mid-record.
package eventlog

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

const (
	timeLayout = "2006-01-02 15:04:05"
	queueSize  = 256
)

// Log is an append-only event log. A nil *Log is valid and discards every
// record, which keeps call sites free of guards.
type Log struct {
	w      io.Writer
	closer io.Closer // set when Open owns the underlying file
	queue  chan string
	done   chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

// New starts an event log writing to w and returns it ready for use.
func New(w io.Writer) *Log {
	l := &Log{
		w:     w,
		queue: make(chan string, queueSize),
		done:  make(chan struct{}),
	}
	l.wg.Add(1)
	go l.drain()
	return l
}

// Open starts an event log appending to the file at path, creating it when
// missing.
func Open(path string) (*Log, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("eventlog: open %q: %w", path, err)
	}
	l := New(f)
	l.closer = f
	return l, nil
}

// Connect records a client admission.
func (l *Log) Connect(id int64, name string) {
	l.record("CONNECT id=%d name=%s", id, name)
}

// Rename records a display name change.
func (l *Log) Rename(id int64, name string) {
	l.record("RENAME id=%d name=%s", id, name)
}

// Message records a broadcast chat message.
func (l *Log) Message(id int64, name, text string) {
	l.record("MSG id=%d name=%s text=%s", id, name, text)
}

// Private records a delivered private message. Failed deliveries are never
// recorded, so undeliverable text stays out of the log.
func (l *Log) Private(from, to int64, text string) {
	l.record("PM from=%d to=%d text=%s", from, to, text)
}

// Disconnect records a session ending for any reason.
func (l *Log) Disconnect(id int64, name string) {
	l.record("DISCONNECT id=%d name=%s", id, name)
}

// Shutdown records the server terminating.
func (l *Log) Shutdown() {
	l.record("SERVER SHUTDOWN")
}

// Close drains every queued record, then closes the file when the log owns
// one. Records issued after Close are silently dropped; calling Close again
// is a no-op.
func (l *Log) Close() error {
	if l == nil {
		return nil
	}
	var err error
	l.once.Do(func() {
		close(l.done)
		l.wg.Wait()
		if l.closer != nil {
			err = l.closer.Close()
		}
	})
	return err
}

// record queues one timestamped line. It blocks when the queue is full so no
// event is lost while the log is open; once Close has begun, the line is
// dropped instead.
func (l *Log) record(format string, args ...any) {
	if l == nil {
		return
	}
	line := time.Now().Format(timeLayout) + "  " + fmt.Sprintf(format, args...)
	select {
	case l.queue <- line:
	case <-l.done:
	}
}

func (l *Log) drain() {
	defer l.wg.Done()
	for {
		select {
		case line := <-l.queue:
			l.write(line)
		case <-l.done:
			// Flush whatever made it into the queue before Close.
			for {
				select {
				case line := <-l.queue:
					l.write(line)
				default:
					return
				}
			}
		}
	}
}

func (l *Log) write(line string) {
	_, _ = io.WriteString(l.w, line+"\n")
}
