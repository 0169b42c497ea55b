package subprocess

import (
	"bufio"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/studioflow/toolbridge/internal/errors"
)

const (
	// maxScanTokenSize is the maximum buffer size for reading peer output lines.
	maxScanTokenSize = 1024 * 1024 // 1MB
	// maxStderrBufferSize is the maximum size for the stderr buffer.
	// Stderr reading continues indefinitely (callback receives all lines),
	// but the buffer stops growing after this limit to prevent unbounded
	// memory usage.
	maxStderrBufferSize = 10 * 1024 * 1024 // 10MB
)

// Environment variables consumed by the peer binary at spawn time. Their
// values are opaque to the transport.
const (
	envProjectID   = "TOOLBRIDGE_PROJECT_ID"
	envFullToolset = "TOOLBRIDGE_FULL_TOOLSET"
)

// Config holds spawn configuration for the peer process.
type Config struct {
	// PeerPath is an explicit peer binary path that skips the search.
	PeerPath string

	// ProjectID is the project/tenant identifier passed to the peer.
	ProjectID string

	// FullToolset enables the peer's full capability set.
	FullToolset bool

	// Env holds additional environment variables for the peer process.
	Env map[string]string

	// Cwd is the working directory for the peer process.
	Cwd string

	// StderrCallback receives each line of peer stderr output, if set.
	StderrCallback func(string)
}

// PeerTransport owns one peer subprocess and its three byte streams.
//
// It knows nothing about capabilities or RPC semantics: it spawns the
// process, writes newline-terminated messages to stdin, and yields parsed
// line-delimited JSON from stdout. Request correlation lives in the rpc
// package on top of this.
type PeerTransport struct {
	log         *slog.Logger
	cfg         *Config
	peerPath    string
	cmd         *exec.Cmd
	stdin       io.WriteCloser
	stdout      io.ReadCloser
	stderr      io.ReadCloser
	mu          sync.Mutex // Protects stdin writes and lifecycle flags
	closing     bool
	stdinClosed bool
}

// NewPeerTransport creates a transport with the given spawn configuration.
// Binary discovery is deferred to Start.
func NewPeerTransport(log *slog.Logger, cfg *Config) *PeerTransport {
	if cfg == nil {
		cfg = &Config{}
	}

	return &PeerTransport{
		log: log.With("component", "peer_transport"),
		cfg: cfg,
	}
}

// Start locates the peer binary and spawns the process.
//
// Returns PeerNotFoundError if the binary cannot be located; callers must
// treat that as a normal, recoverable state. Returns ConnectionError if
// pipe setup or process start fails.
func (t *PeerTransport) Start(ctx context.Context) error {
	peerPath, err := FindPeerBinary(t.log, t.cfg.PeerPath)
	if err != nil {
		return err
	}

	t.peerPath = peerPath

	cwd := t.cfg.Cwd
	if cwd == "" {
		cwd, err = os.Getwd()
		if err != nil {
			return fmt.Errorf("get working directory: %w", err)
		}
	}

	t.log.Info("Starting peer subprocess", "peer_path", peerPath, "cwd", cwd)

	//nolint:gosec // G204: launching the discovered peer binary is the whole point
	cmd := exec.CommandContext(ctx, peerPath)
	cmd.Dir = cwd
	cmd.Env = t.buildEnvironment()

	stdin, err := cmd.StdinPipe()
	if err != nil {
		t.log.Error("Failed to create stdin pipe", "error", err)

		return &errors.ConnectionError{Err: fmt.Errorf("stdin pipe: %w", err)}
	}

	t.stdin = stdin

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		t.log.Error("Failed to create stdout pipe", "error", err)

		return &errors.ConnectionError{Err: fmt.Errorf("stdout pipe: %w", err)}
	}

	t.stdout = stdout

	stderr, err := cmd.StderrPipe()
	if err != nil {
		t.log.Error("Failed to create stderr pipe", "error", err)

		return &errors.ConnectionError{Err: fmt.Errorf("stderr pipe: %w", err)}
	}

	t.stderr = stderr

	if err := cmd.Start(); err != nil {
		t.log.Error("Failed to start peer process", "error", err)

		return &errors.ConnectionError{Err: fmt.Errorf("start process: %w", err)}
	}

	t.cmd = cmd
	t.log.Info("Peer subprocess started", "pid", cmd.Process.Pid)

	return nil
}

// buildEnvironment merges the host environment with peer configuration.
func (t *PeerTransport) buildEnvironment() []string {
	env := os.Environ()

	if t.cfg.ProjectID != "" {
		env = append(env, envProjectID+"="+t.cfg.ProjectID)
	}

	if t.cfg.FullToolset {
		env = append(env, envFullToolset+"=1")
	}

	for k, v := range t.cfg.Env {
		env = append(env, k+"="+v)
	}

	return env
}

// ReadMessages reads line-delimited JSON messages from the peer stdout.
//
// A goroutine scans stdout line by line; bytes may arrive in arbitrary
// chunks and a trailing incomplete line is retained until completed. Each
// complete line is parsed independently. Malformed lines produce a
// JSONDecodeError on the error channel but do not stop message processing;
// the peer may emit non-protocol diagnostic text on stdout in some
// configurations.
//
// The goroutine exits when the peer terminates or the context is
// cancelled, and closes both channels. Abnormal process exit is reported
// as a ProcessError carrying captured stderr.
func (t *PeerTransport) ReadMessages(
	ctx context.Context,
) (<-chan map[string]any, <-chan error) {
	messages := make(chan map[string]any)
	errs := make(chan error, 1)

	var stderrWg sync.WaitGroup

	var stderrBuffer strings.Builder

	var stderrMu sync.Mutex

	// Stderr must be drained before cmd.Wait(); see os/exec StderrPipe docs.
	stderrWg.Go(func() {
		scanner := bufio.NewScanner(t.stderr)
		for scanner.Scan() {
			select {
			case <-ctx.Done():
				return
			default:
			}

			line := scanner.Text()

			stderrMu.Lock()

			if stderrBuffer.Len() < maxStderrBufferSize {
				if stderrBuffer.Len() > 0 {
					stderrBuffer.WriteString("\n")
				}

				stderrBuffer.WriteString(line)
			}

			stderrMu.Unlock()

			if t.cfg.StderrCallback != nil {
				t.cfg.StderrCallback(line)
			}
		}

		if err := scanner.Err(); err != nil {
			t.log.Debug("Stderr scanner error", "error", err)
		}
	})

	go func() {
		defer close(messages)
		defer close(errs)
		defer t.log.Debug("ReadMessages goroutine stopped")

		scanner := bufio.NewScanner(t.stdout)
		buf := make([]byte, maxScanTokenSize)
		scanner.Buffer(buf, maxScanTokenSize)

		for scanner.Scan() {
			select {
			case <-ctx.Done():
				errs <- ctx.Err()

				return
			default:
			}

			line := scanner.Bytes()

			var msg map[string]any

			if err := json.Unmarshal(line, &msg); err != nil {
				// Tolerated as noise; the session layer decides whether
				// to log it.
				errs <- &errors.JSONDecodeError{
					RawData: string(line),
					Err:     err,
				}

				continue
			}

			select {
			case messages <- msg:
			case <-ctx.Done():
				errs <- ctx.Err()

				return
			}
		}

		if err := scanner.Err(); err != nil {
			t.log.Error("Scanner error while reading peer output", "error", err)

			errs <- fmt.Errorf("scanner error: %w", err)
		}

		stderrWg.Wait()

		t.log.Debug("Waiting for peer process to exit")

		if err := t.cmd.Wait(); err != nil {
			t.mu.Lock()
			isClosing := t.closing
			t.mu.Unlock()

			if isClosing {
				t.log.Debug("Peer process terminated during shutdown")

				return
			}

			stderrMu.Lock()

			stderrOutput := strings.TrimSpace(stderrBuffer.String())

			stderrMu.Unlock()

			exitCode := 0

			if exitErr, ok := stderrors.AsType[*exec.ExitError](err); ok {
				exitCode = exitErr.ExitCode()
			}

			t.log.Error("Peer process exited with error", "exit_code", exitCode, "stderr", stderrOutput)

			errs <- &errors.ProcessError{
				ExitCode: exitCode,
				Stderr:   stderrOutput,
				Err:      err,
			}
		} else {
			t.log.Info("Peer process exited")
		}
	}()

	return messages, errs
}

// SendMessage writes a JSON message to the peer stdin.
//
// A trailing newline is appended if missing. Safe for concurrent use and
// respects context cancellation even during blocking writes: if the context
// is cancelled mid-write, stdin is closed to unblock the write goroutine
// and subsequent calls return ErrStdinClosed.
func (t *PeerTransport) SendMessage(ctx context.Context, data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stdin == nil {
		return errors.ErrNotConnected
	}

	if t.stdinClosed {
		return errors.ErrStdinClosed
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	t.log.Debug("Sending message to peer", "data_len", len(data))

	// Explicit copy so the caller's backing array is never mutated.
	if len(data) == 0 || data[len(data)-1] != '\n' {
		newData := make([]byte, len(data)+1)
		copy(newData, data)
		newData[len(data)] = '\n'
		data = newData
	}

	done := make(chan error, 1)

	go func() {
		_, err := t.stdin.Write(data)
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			t.log.Error("Failed to write message to peer", "error", err)

			return fmt.Errorf("write to stdin: %w", err)
		}

		return nil

	case <-ctx.Done():
		t.log.Debug("Context cancelled during write, closing stdin")

		if t.stdin != nil {
			_ = t.stdin.Close()
			t.stdinClosed = true
		}

		select {
		case <-done:
		case <-time.After(1 * time.Second):
			t.log.Warn("Write goroutine did not exit after stdin close, potential leak")
		}

		return ctx.Err()
	}
}

// IsReady reports whether the peer process is running and stdin is open.
func (t *PeerTransport) IsReady() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.cmd != nil && t.cmd.Process != nil && t.stdin != nil && !t.stdinClosed
}

// Close terminates the peer process.
//
// The process is killed with SIGKILL. Safe to call multiple times or on an
// already-terminated process.
func (t *PeerTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.closing = true
	t.stdinClosed = true

	if t.cmd != nil && t.cmd.Process != nil {
		t.log.Debug("Killing peer process", "pid", t.cmd.Process.Pid)

		if err := t.cmd.Process.Kill(); err != nil {
			return fmt.Errorf("kill peer process (pid %d): %w", t.cmd.Process.Pid, err)
		}
	}

	return nil
}
