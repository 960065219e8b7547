package kube

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"k8s.io/client-go/tools/remotecommand"

	"github.com/gluufederation/shibwatcher/pkg/errors"
	"github.com/gluufederation/shibwatcher/pkg/target"
)

type sessionState int

const (
	sessionOpen sessionState = iota
	sessionStreaming
	sessionFlushed
	sessionClosed
)

func (s sessionState) String() string {
	switch s {
	case sessionOpen:
		return "open"
	case sessionStreaming:
		return "streaming"
	case sessionFlushed:
		return "flushed"
	case sessionClosed:
		return "closed"
	}
	return fmt.Sprintf("sessionState(%d)", int(s))
}

// uploadSession is a remote command whose stdin is fed by the caller. The
// remote stdout and stderr are drained into buffers by the exec goroutine for
// the whole lifetime of the session, so the remote process never blocks on a
// full pipe while we write.
//
// The session moves strictly forward through open, streaming, flushed and
// closed. Write is allowed until Flush, and Wait is the only way to reach
// closed.
type uploadSession struct {
	state sessionState
	cmd   []string

	stdin  *io.PipeWriter
	stdout lockedBuffer
	stderr lockedBuffer

	// done receives the result of the exec once the remote command exits.
	done chan error
}

func openUploadSession(ctx context.Context, exec execFunc, t target.Target, cmd []string) *uploadSession {
	stdinReader, stdinWriter := io.Pipe()
	s := &uploadSession{
		state: sessionOpen,
		cmd:   cmd,
		stdin: stdinWriter,
		done:  make(chan error, 1),
	}

	go func() {
		err := exec(ctx, t, cmd, remotecommand.StreamOptions{
			Stdin:  stdinReader,
			Stdout: &s.stdout,
			Stderr: &s.stderr,
		})

		// Unblock any pending Write if the remote side exited early.
		stdinReader.CloseWithError(io.ErrClosedPipe)
		s.done <- err
	}()
	return s
}

// Write streams `p` into the remote command's stdin.
func (s *uploadSession) Write(p []byte) (int, error) {
	if s.state != sessionOpen && s.state != sessionStreaming {
		return 0, errors.New("write to %s upload session", s.state)
	}
	s.state = sessionStreaming
	return s.stdin.Write(p)
}

// Flush closes the remote stdin, signalling that the upload is complete.
func (s *uploadSession) Flush() error {
	if s.state != sessionOpen && s.state != sessionStreaming {
		return errors.New("flush %s upload session", s.state)
	}
	s.state = sessionFlushed
	return s.stdin.Close()
}

// Abort closes the remote stdin with `cause`, waits for the remote command to
// exit, and returns its result.
func (s *uploadSession) Abort(cause error) error {
	if s.state == sessionClosed {
		return nil
	}
	_ = s.stdin.CloseWithError(cause)
	s.state = sessionFlushed
	return s.Wait()
}

// Wait blocks until the remote command exits, and closes the session.
func (s *uploadSession) Wait() error {
	if s.state != sessionFlushed {
		return errors.New("wait on %s upload session", s.state)
	}
	err := <-s.done
	s.state = sessionClosed
	return remoteError(err, s.cmd, s.stderr.String())
}

// lockedBuffer collects the output of a remote command. The exec streams may
// keep writing after the exec returns on a timeout, so reads and writes are
// serialized.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
