package rpc

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/studioflow/toolbridge/internal/errors"
)

// DefaultCallTimeout is the per-call deadline applied when no explicit
// timeout is configured.
const DefaultCallTimeout = 30 * time.Second

// Transport defines the minimal interface needed for session operations.
//
// This interface is satisfied by subprocess.PeerTransport but allows for
// testing with mock transports.
type Transport interface {
	ReadMessages(ctx context.Context) (<-chan map[string]any, <-chan error)
	SendMessage(ctx context.Context, data []byte) error
}

// Session correlates JSON-RPC requests with responses over one Transport.
//
// The Session handles:
//   - Assigning monotonically increasing integer request ids
//   - Routing response envelopes to waiting calls by id
//   - Per-call timeout enforcement
//   - Immediate rejection of all outstanding calls on peer exit
//
// A Session must be started with Start() before use and manages its own
// goroutine for reading and routing messages. Each settlement is delivered
// exactly once: a pending call is claimed by the first of matching
// response, timeout, or session shutdown.
type Session struct {
	log       *slog.Logger
	transport Transport
	timeout   time.Duration

	nextID atomic.Int64

	pendingMu sync.Mutex
	pending   map[int64]*pendingCall

	errMu    sync.RWMutex
	fatalErr error

	closing   atomic.Bool
	closeOnce sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

// pendingCall tracks an outgoing request awaiting its response.
type pendingCall struct {
	method   string
	response chan *response
}

// response is the settled outcome of a call as read off the wire.
type response struct {
	result map[string]any
	err    error
}

// request is the outgoing JSON-RPC envelope, one per line.
type request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// NewSession creates a session over the given transport.
//
// timeout is the per-call deadline; zero means DefaultCallTimeout. Each
// session gets a ULID used to correlate its log lines; the wire-level
// request ids are plain integers starting at 1 and are never reused within
// a session.
func NewSession(log *slog.Logger, transport Transport, timeout time.Duration) *Session {
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}

	return &Session{
		log:       log.With("component", "rpc_session", "session_id", ulid.Make().String()),
		transport: transport,
		timeout:   timeout,
		pending:   make(map[int64]*pendingCall, 10),
		done:      make(chan struct{}),
	}
}

// Start begins reading messages from the transport and routing responses.
//
// Start must be called exactly once, before any Call.
func (s *Session) Start(ctx context.Context) {
	s.log.Debug("Starting RPC session")

	messages, errs := s.transport.ReadMessages(ctx)

	s.wg.Add(1)

	go s.readLoop(ctx, messages, errs)
}

// Close shuts down the session.
//
// Every outstanding call settles immediately with ErrDisconnected. Safe to
// call multiple times. Close does not terminate the peer process; that is
// the transport owner's job.
func (s *Session) Close() {
	s.log.Debug("Closing RPC session")

	s.closing.Store(true)
	s.closeDone()
	s.wg.Wait()
}

// Done returns a channel that is closed when the session stops.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// FatalError returns the transport error that stopped the session, if any.
func (s *Session) FatalError() error {
	s.errMu.RLock()
	defer s.errMu.RUnlock()

	return s.fatalErr
}

// Call sends a request and waits for the matching response.
//
// The call settles by exactly one of: a response envelope with a matching
// id, the per-call timeout, session shutdown (peer exit or Close), or
// context cancellation. Concurrent calls are independent; responses may
// arrive in any order and are matched purely by id.
//
// The peer may still be processing a timed-out request; no cancellation
// notice is sent.
func (s *Session) Call(ctx context.Context, method string, params any) (map[string]any, error) {
	select {
	case <-s.done:
		return nil, s.shutdownError()
	default:
	}

	id := s.nextID.Add(1)

	s.log.Debug("Sending call", "id", id, "method", method)

	pc := &pendingCall{
		method:   method,
		response: make(chan *response, 1),
	}

	s.pendingMu.Lock()
	s.pending[id] = pc
	s.pendingMu.Unlock()

	data, err := json.Marshal(&request{
		JSONRPC: "2.0",
		ID:      id,
		Method:  method,
		Params:  params,
	})
	if err != nil {
		s.removePending(id)

		return nil, fmt.Errorf("marshal request: %w", err)
	}

	if err := s.transport.SendMessage(ctx, data); err != nil {
		s.removePending(id)
		s.log.Debug("Failed to send call", "id", id, "error", err)

		return nil, fmt.Errorf("send request: %w", err)
	}

	select {
	case resp := <-pc.response:
		if resp.err != nil {
			s.log.Debug("Call returned error", "id", id, "method", method, "error", resp.err)

			return nil, resp.err
		}

		s.log.Debug("Call completed", "id", id, "method", method)

		return resp.result, nil

	case <-time.After(s.timeout):
		s.removePending(id)
		s.log.Warn("Call timed out", "id", id, "method", method, "timeout", s.timeout)

		return nil, fmt.Errorf("%w: %s after %s", errors.ErrCallTimeout, method, s.timeout)

	case <-s.done:
		s.removePending(id)

		return nil, s.shutdownError()

	case <-ctx.Done():
		s.removePending(id)
		s.log.Debug("Call cancelled", "id", id, "method", method)

		return nil, ctx.Err()
	}
}

// shutdownError reports why the session is no longer usable.
func (s *Session) shutdownError() error {
	if s.closing.Load() {
		return errors.ErrDisconnected
	}

	if err := s.FatalError(); err != nil {
		if stderrors.Is(err, errors.ErrPeerExited) {
			return err
		}

		return fmt.Errorf("%w: %w", errors.ErrPeerExited, err)
	}

	return errors.ErrSessionClosed
}

// readLoop reads messages from the transport and routes responses by id.
func (s *Session) readLoop(
	ctx context.Context,
	messages <-chan map[string]any,
	errs <-chan error,
) {
	defer s.wg.Done()
	defer s.log.Debug("RPC session read loop stopped")

	for messages != nil || errs != nil {
		select {
		case msg, ok := <-messages:
			if !ok {
				messages = nil

				continue
			}

			s.dispatch(msg)

		case err, ok := <-errs:
			if !ok {
				errs = nil

				continue
			}

			if decErr, ok := stderrors.AsType[*errors.JSONDecodeError](err); ok {
				// Diagnostic noise on the protocol stream; logged in case
				// it is actually protocol desynchronization.
				s.log.Debug("Ignoring unparsable peer output line", "raw_data", decErr.RawData)

				continue
			}

			s.setFatalError(err)

		case <-s.done:
			return

		case <-ctx.Done():
			s.setFatalError(ctx.Err())
			s.closeDone()

			return
		}
	}

	// Both streams closed: the peer is gone. Waking waiters via done
	// settles every outstanding call now rather than at its timeout.
	s.setFatalError(errors.ErrPeerExited)
	s.closeDone()
}

// dispatch routes a parsed line to its pending call, if any.
//
// Lines with an unrecognized id, a non-integer id, or no id at all are
// dropped: they do not correspond to any live request.
func (s *Session) dispatch(msg map[string]any) {
	idVal, ok := msg["id"].(float64)
	if !ok {
		s.log.Debug("Dropping message without usable id")

		return
	}

	id := int64(idVal)

	s.pendingMu.Lock()

	pc, exists := s.pending[id]
	if exists {
		delete(s.pending, id)
	}

	s.pendingMu.Unlock()

	if !exists {
		s.log.Debug("No pending call for response id", "id", id)

		return
	}

	resp := &response{}

	if errVal, ok := msg["error"].(map[string]any); ok {
		message, _ := errVal["message"].(string)
		resp.err = fmt.Errorf("peer error for %s: %s", pc.method, message)
	} else {
		result, _ := msg["result"].(map[string]any)
		resp.result = result
	}

	// We claimed the pending call above; the channel is buffered so this
	// never blocks even if the caller already gave up.
	pc.response <- resp
}

// removePending drops a pending call that settled without a response.
func (s *Session) removePending(id int64) {
	s.pendingMu.Lock()
	delete(s.pending, id)
	s.pendingMu.Unlock()
}

// setFatalError stores the first fatal error.
func (s *Session) setFatalError(err error) {
	s.errMu.Lock()

	if s.fatalErr == nil {
		s.fatalErr = err
	}

	s.errMu.Unlock()
}

// closeDone closes the done channel exactly once.
func (s *Session) closeDone() {
	s.closeOnce.Do(func() {
		close(s.done)
	})
}
