package rcon

import (
	"context"
	"log"
	"net"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"geovoxel.dev/internal/protocol"
	"geovoxel.dev/internal/script"
)

func newPipe(t *testing.T) (net.Conn, net.Conn) {
	t.Helper()
	client, server := net.Pipe()
	t.Cleanup(func() {
		_ = client.Close()
		_ = server.Close()
	})
	return client, server
}

// fakeServer speaks the wire protocol over in-memory pipes.
type fakeServer struct {
	secret  string
	handler func(cmd string) (resp string, reply bool)
	dials   atomic.Int32
}

func (f *fakeServer) dial(ctx context.Context, addr string) (net.Conn, error) {
	f.dials.Add(1)
	client, server := net.Pipe()
	go f.serve(server)
	return client, nil
}

func (f *fakeServer) serve(c net.Conn) {
	defer c.Close()
	for {
		id, typ, payload, err := readFrame(c)
		if err != nil {
			return
		}
		switch typ {
		case typeLogin:
			respID := id
			if payload != f.secret {
				respID = -1
			}
			if err := writeFrame(c, respID, typeAuthResponse, ""); err != nil {
				return
			}
		default:
			resp, reply := "ok", true
			if f.handler != nil {
				resp, reply = f.handler(payload)
			}
			if !reply {
				continue
			}
			if err := writeFrame(c, id, typeResponse, resp); err != nil {
				return
			}
		}
	}
}

func newTestClient(t *testing.T, f *fakeServer, opts Options) *Client {
	t.Helper()
	opts.Host = "fake"
	opts.Port = 25575
	if opts.Timeout == 0 {
		opts.Timeout = 200 * time.Millisecond
	}
	opts.BackoffBase = time.Millisecond
	opts.Dial = f.dial
	logger := log.New(os.Stdout, "[rcon-test] ", log.LstdFlags)
	c, err := NewClient(opts, logger)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestClient_ExecuteSuccess(t *testing.T) {
	f := &fakeServer{secret: "s3cret", handler: func(cmd string) (string, bool) {
		if cmd != "fill 0 0 0 1 1 1 stone" {
			return "Error: unexpected command", true
		}
		return "Successfully filled 8 blocks", true
	}}
	c := newTestClient(t, f, Options{Secret: "s3cret"})

	res := c.Execute(context.Background(), "fill 0 0 0 1 1 1 stone")
	if !res.Success {
		t.Fatalf("execute failed: %+v", res)
	}
	if res.BlocksAffected == nil || *res.BlocksAffected != 8 {
		t.Fatalf("blocks affected = %v, want 8", res.BlocksAffected)
	}
	if got := c.State(); got != StateReady {
		t.Fatalf("state = %v, want READY", got)
	}
}

func TestClient_AuthFailureFatal(t *testing.T) {
	f := &fakeServer{secret: "right"}
	c := newTestClient(t, f, Options{Secret: "wrong", MaxRetries: 3})

	if err := c.Connect(context.Background()); err == nil {
		t.Fatalf("expected auth error")
	} else if protocol.KindOf(err) != protocol.KindAuth {
		t.Fatalf("kind = %s, want E_AUTH", protocol.KindOf(err))
	}

	res := c.Execute(context.Background(), "say hi")
	if res.Success || res.ErrKind != protocol.KindAuth {
		t.Fatalf("result = %+v, want E_AUTH failure", res)
	}
	// Auth failures never retry: one dial for Connect, one for Execute.
	if n := f.dials.Load(); n != 2 {
		t.Fatalf("dials = %d, want 2", n)
	}
}

func TestClient_TimeoutRetriesThenRecovers(t *testing.T) {
	var calls atomic.Int32
	f := &fakeServer{secret: "s", handler: func(cmd string) (string, bool) {
		if calls.Add(1) == 1 {
			return "", false // swallow the first command
		}
		return "ok", true
	}}
	c := newTestClient(t, f, Options{Secret: "s", Timeout: 50 * time.Millisecond, MaxRetries: 2})

	res := c.Execute(context.Background(), "say hi")
	if !res.Success {
		t.Fatalf("expected recovery after retry, got %+v", res)
	}
	if n := f.dials.Load(); n != 2 {
		t.Fatalf("dials = %d, want reconnect after fault", n)
	}
}

func TestClient_TimeoutExhaustionIsValue(t *testing.T) {
	f := &fakeServer{secret: "s", handler: func(cmd string) (string, bool) {
		return "", false // never reply
	}}
	c := newTestClient(t, f, Options{Secret: "s", Timeout: 30 * time.Millisecond, MaxRetries: 1})

	res := c.Execute(context.Background(), "say hi")
	if res.Success {
		t.Fatalf("expected failure")
	}
	if res.ErrKind != protocol.KindTimeout {
		t.Fatalf("kind = %s, want E_TIMEOUT", res.ErrKind)
	}
}

func TestClient_CommandErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	f := &fakeServer{secret: "s", handler: func(cmd string) (string, bool) {
		calls.Add(1)
		return "Error: Unknown block type: invalid_block", true
	}}
	c := newTestClient(t, f, Options{Secret: "s", MaxRetries: 3})

	res := c.Execute(context.Background(), "setblock 0 0 0 invalid_block")
	if res.Success || res.ErrKind != protocol.KindCommand {
		t.Fatalf("result = %+v, want E_COMMAND failure", res)
	}
	if n := calls.Load(); n != 1 {
		t.Fatalf("command sent %d times, semantic failures must not retry", n)
	}
}

func TestClient_ExecuteBatchContinueOnError(t *testing.T) {
	f := &fakeServer{secret: "s", handler: func(cmd string) (string, bool) {
		if cmd == "bad" {
			return "Error: nope", true
		}
		return "Successfully filled 10 blocks", true
	}}
	c := newTestClient(t, f, Options{Secret: "s"})

	s := script.Script{
		script.NewRaw("first"),
		script.NewRaw("bad"),
		script.NewRaw("last"),
	}
	var seen []string
	report := c.ExecuteBatch(context.Background(), s,
		func(runID string, i, total int, cmd script.Command, res protocol.CommandResult) {
			seen = append(seen, cmd.Text())
		})

	if report.Success {
		t.Fatalf("report should be failed")
	}
	if report.CommandsExecuted != 3 {
		t.Fatalf("executed = %d, want all 3 despite the failure", report.CommandsExecuted)
	}
	if len(report.Failures) != 1 || report.Failures[0].Command != "bad" {
		t.Fatalf("failures = %+v", report.Failures)
	}
	if report.BlocksAffectedTotal != 20 {
		t.Fatalf("blocks total = %d, want 20", report.BlocksAffectedTotal)
	}
	if report.RunID == "" {
		t.Fatalf("missing run id")
	}
	if len(seen) != 3 {
		t.Fatalf("progress calls = %d, want 3", len(seen))
	}
}

func TestClient_ExecuteBatchCriticalAborts(t *testing.T) {
	f := &fakeServer{secret: "s", handler: func(cmd string) (string, bool) {
		if cmd == "clear" {
			return "Error: cannot clear", true
		}
		return "ok", true
	}}
	c := newTestClient(t, f, Options{Secret: "s"})

	clear := script.NewRaw("clear")
	clear.Critical = true
	s := script.Script{clear, script.NewRaw("build")}

	report := c.ExecuteBatch(context.Background(), s, nil)
	if report.Success {
		t.Fatalf("report should be failed")
	}
	if report.CommandsExecuted != 1 {
		t.Fatalf("executed = %d, critical failure must abort", report.CommandsExecuted)
	}
}

func TestClient_CloseThenExecute(t *testing.T) {
	f := &fakeServer{secret: "s"}
	c := newTestClient(t, f, Options{Secret: "s"})
	_ = c.Close()
	res := c.Execute(context.Background(), "say hi")
	if res.Success {
		t.Fatalf("expected failure on closed client")
	}
	if got := c.State(); got != StateClosed {
		t.Fatalf("state = %v, want CLOSED", got)
	}
}
