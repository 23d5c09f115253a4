package streaming

import (
	"bufio"
	"io"
	"strings"
)

// Scanner reads SSE frames incrementally from a live stream and yields each
// frame's data payload. It follows the SSE specification's field rules:
// an empty line terminates a frame, multiple "data:" lines join with "\n",
// lines starting with ":" are comments, other fields are ignored (the live
// quota channel carries everything in data payloads).
type Scanner struct {
	r       *bufio.Reader
	pending []string
	done    bool
}

// NewScanner wraps a stream reader. The reader is not closed by the scanner.
func NewScanner(r io.Reader) *Scanner {
	return &Scanner{r: bufio.NewReader(r)}
}

// Next blocks until a complete frame arrives and returns its data payload.
// Frames with no data field are skipped. Returns io.EOF when the stream ends
// cleanly, or the underlying read error otherwise. A frame left unterminated
// at EOF is returned before the EOF surfaces.
func (s *Scanner) Next() ([]byte, error) {
	for {
		if s.done {
			return nil, io.EOF
		}

		line, err := s.r.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				s.done = true
				if data := s.flush(); data != nil {
					return data, nil
				}
				return nil, io.EOF
			}
			return nil, err
		}

		line = strings.TrimRight(line, "\r\n")

		// Empty line terminates the current frame.
		if line == "" {
			if data := s.flush(); data != nil {
				return data, nil
			}
			continue
		}

		// Comment line.
		if strings.HasPrefix(line, ":") {
			continue
		}

		// A line with no colon is a field name with an empty value.
		field, value, found := strings.Cut(line, ":")
		if !found {
			field, value = line, ""
		}
		// The SSE spec strips one leading space from the value.
		value = strings.TrimPrefix(value, " ")

		if field == "data" {
			s.pending = append(s.pending, value)
		}
	}
}

func (s *Scanner) flush() []byte {
	if len(s.pending) == 0 {
		return nil
	}
	data := []byte(strings.Join(s.pending, "\n"))
	s.pending = nil
	return data
}
