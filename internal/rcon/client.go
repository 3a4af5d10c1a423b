package rcon

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"geovoxel.dev/internal/geo"
	"geovoxel.dev/internal/protocol"
	"geovoxel.dev/internal/script"
)

// State of the connection. Transitions:
// Disconnected -> Connecting -> Authenticating -> Ready <-> Executing -> Closed,
// with Faulted reachable from anywhere on an unrecoverable I/O error.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateAuthenticating
	StateReady
	StateExecuting
	StateFaulted
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateAuthenticating:
		return "AUTHENTICATING"
	case StateReady:
		return "READY"
	case StateExecuting:
		return "EXECUTING"
	case StateFaulted:
		return "FAULTED"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

type Options struct {
	Host   string
	Port   int
	Secret string

	// Timeout bounds each socket operation (connect, one request/response).
	Timeout time.Duration

	// MaxRetries is the number of re-attempts after the first try for
	// timeout and connection errors. Auth and command failures never retry.
	MaxRetries int

	BackoffBase time.Duration
	BackoffMax  time.Duration

	// Dial overrides the dialer in tests.
	Dial func(ctx context.Context, addr string) (net.Conn, error)
}

func (o *Options) normalize() error {
	if o.Host == "" {
		return protocol.Faultf(protocol.KindConfig, "empty host")
	}
	if o.Port <= 0 || o.Port > 65535 {
		return protocol.Faultf(protocol.KindConfig, "bad port %d", o.Port)
	}
	if o.Timeout <= 0 {
		o.Timeout = 5 * time.Second
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.BackoffBase <= 0 {
		o.BackoffBase = 250 * time.Millisecond
	}
	if o.BackoffMax <= 0 {
		o.BackoffMax = 4 * time.Second
	}
	return nil
}

// Client executes commands over one persistent connection. Exactly one
// command is in flight at a time; the mutex serializes all public entry
// points. Callers needing parallelism use independent clients.
type Client struct {
	opts Options
	log  *log.Logger

	mu     sync.Mutex
	conn   net.Conn
	state  atomic.Int32
	nextID atomic.Int32
}

func NewClient(opts Options, logger *log.Logger) (*Client, error) {
	if err := opts.normalize(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.New(os.Stdout, "[rcon] ", log.LstdFlags|log.Lmicroseconds)
	}
	c := &Client{opts: opts, log: logger}
	c.state.Store(int32(StateDisconnected))
	return c, nil
}

func (c *Client) State() State { return State(c.state.Load()) }

func (c *Client) setState(s State) { c.state.Store(int32(s)) }

// Connect dials and authenticates. Execute connects lazily, so calling
// Connect first is optional but surfaces auth errors early.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectLocked(ctx)
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setState(StateClosed)
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

func (c *Client) connectLocked(ctx context.Context) error {
	if c.State() == StateClosed {
		return protocol.Faultf(protocol.KindConnect, "client closed")
	}
	if c.conn != nil && c.State() == StateReady {
		return nil
	}
	c.teardownLocked()

	addr := fmt.Sprintf("%s:%d", c.opts.Host, c.opts.Port)
	c.setState(StateConnecting)

	dial := c.opts.Dial
	if dial == nil {
		d := &net.Dialer{Timeout: c.opts.Timeout}
		dial = func(ctx context.Context, addr string) (net.Conn, error) {
			return d.DialContext(ctx, "tcp", addr)
		}
	}
	conn, err := dial(ctx, addr)
	if err != nil {
		c.setState(StateFaulted)
		return protocol.Faultf(protocol.KindConnect, "dial %s: %v", addr, err)
	}

	c.setState(StateAuthenticating)
	id := c.nextID.Add(1)
	deadline := time.Now().Add(c.opts.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetDeadline(deadline)

	if err := writeFrame(conn, id, typeLogin, c.opts.Secret); err != nil {
		_ = conn.Close()
		c.setState(StateFaulted)
		return protocol.Faultf(protocol.KindConnect, "login write: %v", err)
	}

	// Some servers emit an empty response frame before the auth response.
	for {
		gotID, typ, _, err := readFrame(conn)
		if err != nil {
			_ = conn.Close()
			c.setState(StateFaulted)
			return protocol.Faultf(protocol.KindConnect, "login read: %v", err)
		}
		if typ != typeAuthResponse {
			continue
		}
		if gotID != id {
			// -1 (or any mismatch) signals a rejected secret. Fatal.
			_ = conn.Close()
			c.setState(StateFaulted)
			return protocol.Faultf(protocol.KindAuth, "authentication rejected (id %d)", gotID)
		}
		break
	}

	_ = conn.SetDeadline(time.Time{})
	c.conn = conn
	c.setState(StateReady)
	c.log.Printf("connected to %s", addr)
	return nil
}

func (c *Client) teardownLocked() {
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	if c.State() != StateClosed {
		c.setState(StateDisconnected)
	}
}

// Execute runs one command and classifies the response. Failures are
// returned as values: the result is failed with an error kind, never a
// panic or an error past the call boundary.
func (c *Client) Execute(ctx context.Context, command string) protocol.CommandResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.executeLocked(ctx, command)
}

func (c *Client) executeLocked(ctx context.Context, command string) protocol.CommandResult {
	start := time.Now()
	fail := func(kind, detail string) protocol.CommandResult {
		return protocol.CommandResult{
			Success:   false,
			ErrKind:   kind,
			ErrDetail: detail,
			Elapsed:   time.Since(start),
		}
	}

	var lastErr *protocol.Fault
	for attempt := 0; attempt <= c.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := c.backoff(ctx, attempt); err != nil {
				return fail(protocol.KindTimeout, err.Error())
			}
		}
		if err := ctx.Err(); err != nil {
			return fail(protocol.KindTimeout, err.Error())
		}

		if err := c.connectLocked(ctx); err != nil {
			f, _ := err.(*protocol.Fault)
			if f != nil && f.Kind == protocol.KindAuth {
				// Bad secret cannot succeed on retry.
				return fail(protocol.KindAuth, f.Msg)
			}
			if f == nil {
				f = protocol.Faultf(protocol.KindConnect, "%v", err)
			}
			lastErr = f
			continue
		}

		raw, err := c.roundTripLocked(ctx, command)
		if err != nil {
			kind := protocol.KindConnect
			if isTimeout(err) {
				kind = protocol.KindTimeout
			}
			lastErr = protocol.Faultf(kind, "%v", err)
			c.setState(StateFaulted)
			c.teardownLocked()
			continue
		}

		res := protocol.CommandResult{
			Success:     ClassifySuccess(raw),
			RawResponse: raw,
			Elapsed:     time.Since(start),
		}
		if res.Success {
			res.BlocksAffected = ParseBlocksAffected(raw)
			res.ParsedValue = ParseGameruleValue(raw)
		} else {
			// Semantically rejected commands do not retry.
			res.ErrKind = protocol.KindCommand
			res.ErrDetail = raw
		}
		return res
	}

	if lastErr == nil {
		lastErr = protocol.Faultf(protocol.KindConnect, "no attempt made")
	}
	return fail(lastErr.Kind, lastErr.Msg)
}

func (c *Client) roundTripLocked(ctx context.Context, command string) (string, error) {
	c.setState(StateExecuting)
	defer func() {
		if c.State() == StateExecuting {
			c.setState(StateReady)
		}
	}()

	deadline := time.Now().Add(c.opts.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = c.conn.SetDeadline(deadline)
	defer func() { _ = c.conn.SetDeadline(time.Time{}) }()

	id := c.nextID.Add(1)
	if err := writeFrame(c.conn, id, typeCommand, command); err != nil {
		return "", err
	}
	for {
		gotID, typ, payload, err := readFrame(c.conn)
		if err != nil {
			return "", err
		}
		// Skip stale frames left over from a previously timed-out command.
		if typ != typeResponse || gotID != id {
			continue
		}
		return payload, nil
	}
}

func (c *Client) backoff(ctx context.Context, attempt int) error {
	d := c.opts.BackoffBase << uint(attempt-1)
	if d > c.opts.BackoffMax {
		d = c.opts.BackoffMax
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func isTimeout(err error) bool {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return errors.Is(err, os.ErrDeadlineExceeded) || errors.Is(err, context.DeadlineExceeded)
}

// ExecuteFill renders and runs a fill command, parsing the block count.
func (c *Client) ExecuteFill(ctx context.Context, min, max geo.VoxelPoint, block, replace string) protocol.CommandResult {
	cmd := script.Command{Kind: script.KindFill, Min: min, Max: max, Block: block, Replace: replace}
	return c.Execute(ctx, cmd.Text())
}

// ProgressFunc observes batch execution, one call per executed command.
type ProgressFunc func(runID string, index, total int, cmd script.Command, res protocol.CommandResult)

// ExecuteBatch runs a script sequentially with a continue-on-error policy.
// A failed command marked Critical aborts the remainder.
func (c *Client) ExecuteBatch(ctx context.Context, s script.Script, onProgress ProgressFunc) protocol.ExecutionReport {
	c.mu.Lock()
	defer c.mu.Unlock()

	start := time.Now()
	report := protocol.ExecutionReport{
		RunID:   uuid.NewString(),
		Success: true,
	}
	for i, cmd := range s {
		res := c.executeLocked(ctx, cmd.Text())
		report.CommandsExecuted++
		report.Results = append(report.Results, res)
		if res.BlocksAffected != nil {
			report.BlocksAffectedTotal += *res.BlocksAffected
		}
		if onProgress != nil {
			onProgress(report.RunID, i, len(s), cmd, res)
		}
		if !res.Success {
			report.Success = false
			report.Failures = append(report.Failures, protocol.CommandFailure{
				Command: cmd.Text(),
				Error:   res.ErrKind + ": " + res.ErrDetail,
			})
			if cmd.Critical {
				c.log.Printf("critical command failed, aborting batch: %s", cmd.Text())
				break
			}
		}
	}
	report.ElapsedTotal = time.Since(start)
	return report
}
