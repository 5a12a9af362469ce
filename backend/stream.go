package backend

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/apex/log"

	"ollama_relay/models"
)

// maxLineSize is the longest NDJSON line decoded from the backend. Longer
// lines are discarded like any other malformed line.
const maxLineSize = 1024 * 1024

// ErrStreamIdle is returned by Next when the backend sent nothing for longer
// than the idle timeout
var ErrStreamIdle = errors.New("Ollama stream idle timeout")

// EventKind tells content events from error events
type EventKind int

const (
	// EventContent carries a piece of generated text
	EventContent EventKind = iota
	// EventError carries an error reported inside the stream
	EventError
)

// Event is one relayable item read from the chat stream
type Event struct {
	Kind EventKind
	Text string
}

// ChatStream reads Ollama's NDJSON chat response one line at a time. Nothing
// is read ahead: each call to Next blocks until the next event is available.
// The idle timer only runs while Next is waiting on the backend.
type ChatStream struct {
	body     io.ReadCloser
	reader   *bufio.Reader
	line     []byte
	cancel   context.CancelFunc
	idle     time.Duration
	timer    *time.Timer
	timedOut atomic.Bool
	skipped  int
}

func newChatStream(body io.ReadCloser, cancel context.CancelFunc, idle time.Duration) *ChatStream {
	s := &ChatStream{
		body:   body,
		reader: bufio.NewReaderSize(body, 64*1024),
		cancel: cancel,
		idle:   idle,
	}
	if idle > 0 {
		s.timer = time.AfterFunc(idle, func() {
			s.timedOut.Store(true)
			s.cancel()
		})
	}
	return s
}

// readLine returns the next line without its terminator. tooLong is set when
// the line exceeded maxLineSize; its bytes are dropped, not returned.
func (s *ChatStream) readLine() ([]byte, bool, error) {
	s.line = s.line[:0]
	tooLong := false
	for {
		frag, err := s.reader.ReadSlice('\n')
		if !tooLong {
			if len(s.line)+len(frag) > maxLineSize+1 {
				tooLong = true
				s.line = s.line[:0]
			} else {
				s.line = append(s.line, frag...)
			}
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		return bytes.TrimSuffix(s.line, []byte("\n")), tooLong, err
	}
}

func (s *ChatStream) resetTimer() {
	if s.timer != nil {
		s.timer.Reset(s.idle)
	}
}

func (s *ChatStream) stopTimer() {
	if s.timer != nil {
		s.timer.Stop()
	}
}

// Next returns the next content or error event. It returns io.EOF once the
// backend closes the stream. Blank lines, lines without content and lines
// that are not valid JSON are skipped.
func (s *ChatStream) Next() (Event, error) {
	s.resetTimer()

	for {
		line, tooLong, err := s.readLine()
		if err != nil && !errors.Is(err, io.EOF) {
			if s.timedOut.Load() {
				return Event{}, ErrStreamIdle
			}
			return Event{}, fmt.Errorf("failed to read stream: %w", err)
		}
		s.resetTimer()

		if event, ok := s.decode(line, tooLong); ok {
			s.stopTimer()
			return event, nil
		}
		if err != nil {
			s.stopTimer()
			return Event{}, io.EOF
		}
	}
}

func (s *ChatStream) decode(line []byte, tooLong bool) (Event, bool) {
	if tooLong {
		s.skipped++
		log.WithField("max_bytes", maxLineSize).Warn("skipping oversized stream line")
		return Event{}, false
	}
	if len(bytes.TrimSpace(line)) == 0 {
		return Event{}, false
	}

	var chunk models.OllamaChatChunk
	if err := json.Unmarshal(line, &chunk); err != nil {
		s.skipped++
		log.WithError(err).WithField("line", string(line)).Warn("skipping malformed stream line")
		return Event{}, false
	}

	if chunk.Message != nil && chunk.Message.Content != "" {
		return Event{Kind: EventContent, Text: chunk.Message.Content}, true
	}
	if chunk.Error != "" {
		log.WithField("error", chunk.Error).Error("Ollama API error")
		return Event{Kind: EventError, Text: chunk.Error}, true
	}
	return Event{}, false
}

// Skipped returns the number of malformed lines dropped so far
func (s *ChatStream) Skipped() int {
	return s.skipped
}

// Close stops the idle timer and releases the backend connection
func (s *ChatStream) Close() error {
	s.stopTimer()
	s.cancel()
	return s.body.Close()
}
