package russh

import (
	"bytes"
	"io"
)

// streamState is the lifecycle of one channel stream. It only moves forward.
type streamState int

const (
	streamUnconsumed streamState = iota
	streamConsumed
)

// outputStream collects a remote output stream in the background so stdout
// and stderr can never block each other on the shared channel window.
type outputStream struct {
	state streamState
	buf   bytes.Buffer
	err   error
	done  chan struct{}
}

func newOutputStream(r io.Reader) *outputStream {
	s := &outputStream{done: make(chan struct{})}

	go func() {
		defer close(s.done)

		_, s.err = io.Copy(&s.buf, r)
	}()

	return s
}

// drain waits for EOF and returns everything the stream produced.
// Once consumed it returns "" forever.
func (s *outputStream) drain() (string, error) {
	if s.state == streamConsumed {
		return "", nil
	}

	<-s.done

	s.state = streamConsumed
	out := s.buf.String()
	s.buf = bytes.Buffer{}

	return out, s.err
}

// discard marks the stream consumed without reading it.
func (s *outputStream) discard() {
	s.state = streamConsumed
}

// inputStream is a one-shot stdin: one write followed by EOF.
type inputStream struct {
	state streamState
	w     io.WriteCloser
}

func newInputStream(w io.WriteCloser) *inputStream {
	return &inputStream{w: w}
}

// send writes data and closes the stream. Later calls drop their data.
func (s *inputStream) send(data string) error {
	if s.state == streamConsumed {
		return nil
	}

	s.state = streamConsumed

	_, werr := io.WriteString(s.w, data)
	cerr := s.w.Close()

	if werr != nil {
		return werr
	}

	return cerr
}

// discard closes the stream without sending anything.
func (s *inputStream) discard() {
	if s.state == streamConsumed {
		return
	}

	s.state = streamConsumed
	_ = s.w.Close()
}
