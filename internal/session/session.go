// Package session owns the adapter child process for one run: exactly one
// process, written to and read from one command/response pair at a time.
package session

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nomercy-sim/nomercy/internal/protocol"
)

// DefaultTimeout is the default per-command protocol deadline.
const DefaultTimeout = 5 * time.Second

// Session owns one adapter child process's stdin/stdout for the lifetime
// of a run.
type Session struct {
	id      string
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	timeout time.Duration
	log     *slog.Logger

	reads chan readResult
	done  chan struct{}

	mu     sync.Mutex
	closed bool
}

// readResult is one completed read handed from readLoop to a waiting Send.
type readResult struct {
	line []byte
	err  error
}

// Start spawns the adapter process named by argv[0] with argv[1:] as
// arguments. Stderr is captured to stderrSink (the CLI passes a per-run
// in-memory buffer); it is never consulted by control flow.
func Start(ctx context.Context, argv []string, timeout time.Duration, stderrSink io.Writer, log *slog.Logger) (*Session, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("session: empty adapter command")
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		log = slog.Default()
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stderr = stderrSink

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("session: stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("session: stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("session: start adapter: %w", err)
	}

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, protocol.MaxLineBytes), protocol.MaxLineBytes+1)

	id := uuid.NewString()
	log.Info("session starting", "session_id", id, "adapter", argv[0])

	s := &Session{
		id:      id,
		cmd:     cmd,
		stdin:   stdin,
		timeout: timeout,
		log:     log,
		reads:   make(chan readResult, 1),
		done:    make(chan struct{}),
	}
	go s.readLoop(scanner)
	return s, nil
}

// readLoop is the sole goroutine that ever calls scanner.Scan(): bufio.Scanner
// is not safe for concurrent use, and Send may be called again on the same
// command after a timeout abandons the read that was waiting on it. Running
// one read loop for the session's whole lifetime, rather than spawning a
// fresh goroutine per Send, means a late response from a timed-out read and
// the read for its replay can never race on the scanner.
func (s *Session) readLoop(scanner *bufio.Scanner) {
	for {
		if scanner.Scan() {
			res := readResult{line: append([]byte(nil), scanner.Bytes()...)}
			select {
			case s.reads <- res:
				continue
			case <-s.done:
				return
			}
		}
		err := scanner.Err()
		if err == nil {
			err = io.EOF
		}
		select {
		case s.reads <- readResult{err: err}:
		case <-s.done:
		}
		return
	}
}

// ID returns the session's correlation identifier.
func (s *Session) ID() string { return s.id }

// Send writes one command line and reads exactly one response line,
// subject to the per-command deadline. It returns the raw response bytes
// (sans trailing newline) for the caller to decode via protocol.DecodeLine,
// or a classified error.
func (s *Session) Send(ctx context.Context, line []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, &ClosedError{}
	}

	// A prior Send on this same command may have timed out while its read
	// was still in flight; readLoop delivered that read here after the
	// fact. It no longer answers anything a caller is waiting on, so
	// discard it before writing the next command.
	select {
	case <-s.reads:
	default:
	}

	if _, err := s.stdin.Write(line); err != nil {
		return nil, fmt.Errorf("session: write: %w", err)
	}

	deadline := time.Now().Add(s.timeout)
	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	select {
	case <-ctx.Done():
		return nil, &TimeoutError{}
	case res := <-s.reads:
		if res.err != nil {
			if res.err == io.EOF {
				return nil, &ClosedError{}
			}
			return nil, fmt.Errorf("session: read: %w", res.err)
		}
		return res.line, nil
	}
}

// Terminate kills the child process and waits for it to exit. Safe to
// call multiple times. At most one child exists at any moment: callers
// must Terminate the previous session before Start-ing a new one.
func (s *Session) Terminate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.done)
	_ = s.stdin.Close()
	if s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
	_ = s.cmd.Wait()
	s.log.Info("session stopping", "session_id", s.id)
}

// TimeoutError reports a protocol_timeout outcome.
type TimeoutError struct{}

func (*TimeoutError) Error() string { return "session: protocol_timeout" }

// ClosedError reports the child process exiting before a response was
// produced (protocol_closed).
type ClosedError struct{}

func (*ClosedError) Error() string { return "session: protocol_closed" }
