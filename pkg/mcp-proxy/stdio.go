package mcpproxy

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/plexmcp/plexmcp/pkg/protocol"
)

// process is the OS-facing surface of a spawned child. Tests inject fakes
// that track Wait invocations; production code wraps exec.Cmd.
type process interface {
	Stdin() io.WriteCloser
	Stdout() io.Reader
	Stderr() io.Reader
	Kill() error
	Wait() error
}

// launcher spawns a child process for a stdio upstream.
type launcher func(cfg *StdioConfig) (process, error)

type execProcess struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	stderr io.ReadCloser

	waitOnce sync.Once
	waitErr  error
}

func launchCommand(cfg *StdioConfig) (process, error) {
	cmd := exec.Command(cfg.Command, cfg.Args...)
	if len(cfg.Env) > 0 {
		env := os.Environ()
		for k, v := range cfg.Env {
			env = append(env, fmt.Sprintf("%s=%s", k, v))
		}
		cmd.Env = env
	}
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return &execProcess{cmd: cmd, stdin: stdin, stdout: stdout, stderr: stderr}, nil
}

func (p *execProcess) Stdin() io.WriteCloser { return p.stdin }
func (p *execProcess) Stdout() io.Reader { return p.stdout }
func (p *execProcess) Stderr() io.Reader { return p.stderr }

func (p *execProcess) Kill() error {
	if p.cmd.Process == nil {
		return nil
	}
	return p.cmd.Process.Kill()
}

// Wait reaps the child exactly once; exec.Cmd.Wait must not be called twice.
func (p *execProcess) Wait() error {
	p.waitOnce.Do(func() { p.waitErr = p.cmd.Wait() })
	return p.waitErr
}

// stdioProcess is an entry in the client's process table. The zero entry is
// a placeholder reserving the upstream's slot while the starter spawns and
// handshakes; waiters block on ready.
type stdioProcess struct {
	upstream string

	ready    chan struct{}
	startErr error

	proc   process
	stdin  io.WriteCloser
	reader *bufio.Reader

	// ioMu serializes the write-request/read-response exchange. The
	// line-framed protocol has no multiplexing; a second concurrent writer
	// would corrupt framing.
	ioMu sync.Mutex

	cancelDrain context.CancelFunc

	initResult json.RawMessage
}

// getProcess returns the live process for upstreamID, spawning and
// handshaking one if needed. The table lock is held only while mutating the
// map: the placeholder entry reserves the slot so at most one process per
// upstream id ever exists, and slow spawn work happens outside the lock.
func (c *Client) getProcess(ctx context.Context, upstreamID string, cfg *StdioConfig) (*stdioProcess, error) {
	for {
		c.stdioMu.Lock()
		if p, ok := c.procs[upstreamID]; ok {
			c.stdioMu.Unlock()
			select {
			case <-ctx.Done():
				return nil, newError(KindTransport, upstreamID, "spawn", ctx.Err())
			case <-p.ready:
			}
			if p.startErr != nil {
				// The starter removed its failed placeholder; try again.
				continue
			}
			return p, nil
		}
		placeholder := &stdioProcess{upstream: upstreamID, ready: make(chan struct{})}
		c.procs[upstreamID] = placeholder
		c.stdioMu.Unlock()

		if err := c.startProcess(placeholder, cfg); err != nil {
			c.stdioMu.Lock()
			if c.procs[upstreamID] == placeholder {
				delete(c.procs, upstreamID)
			}
			c.stdioMu.Unlock()
			placeholder.startErr = err
			close(placeholder.ready)
			return nil, err
		}
		close(placeholder.ready)
		return placeholder, nil
	}
}

// startProcess spawns the child, wires its pipes, starts the stderr drain,
// and runs the initialize handshake over the fresh pipe.
func (c *Client) startProcess(p *stdioProcess, cfg *StdioConfig) error {
	proc, err := c.launch(cfg)
	if err != nil {
		return newError(KindProcess, p.upstream, "spawn", err)
	}
	p.proc = proc
	p.stdin = proc.Stdin()
	p.reader = bufio.NewReader(proc.Stdout())

	drainCtx, cancel := context.WithCancel(context.Background())
	p.cancelDrain = cancel
	c.background.Add(1)
	go func() {
		defer c.background.Done()
		c.drainStderr(drainCtx, p.upstream, proc.Stderr())
	}()

	handshakeCtx, cancelHandshake := context.WithTimeout(context.Background(), c.opts.RequestTimeout)
	defer cancelHandshake()
	resp, err := c.exchange(handshakeCtx, p, c.initializeRequest())
	if err != nil {
		// exchange already destroyed the process; drop the table entry in
		// getProcess via the error path.
		return err
	}
	p.initResult = resp.Result

	note := protocol.NewNotification(protocol.MethodInitializedNotify, nil)
	if err := c.writeFrame(p, note); err != nil {
		c.logger.Warn("initialized notification failed", "upstream", p.upstream, "error", err)
	}
	c.logger.Info("stdio upstream started", "upstream", p.upstream, "command", cfg.Command)
	return nil
}

// sendStdio executes one request/response exchange against a stdio
// upstream, spawning the child on first use.
func (c *Client) sendStdio(ctx context.Context, upstreamID string, cfg *StdioConfig, req *protocol.Request) (*protocol.Response, error) {
	p, err := c.getProcess(ctx, upstreamID, cfg)
	if err != nil {
		return nil, err
	}
	if req.IsNotification() {
		p.ioMu.Lock()
		defer p.ioMu.Unlock()
		if err := c.writeFrame(p, req); err != nil {
			c.faultCleanup(p, err)
			return nil, err
		}
		return nil, nil
	}
	return c.exchange(ctx, p, req)
}

// exchange writes one newline-framed request and reads one newline-framed
// response under the request timeout. Any fault (write error, read error,
// timeout, EOF) removes the process from the table and unconditionally
// reaps it before the error propagates.
func (c *Client) exchange(ctx context.Context, p *stdioProcess, req *protocol.Request) (*protocol.Response, error) {
	p.ioMu.Lock()
	defer p.ioMu.Unlock()

	if err := c.writeFrame(p, req); err != nil {
		c.faultCleanup(p, err)
		return nil, err
	}

	line, err := c.readFrame(ctx, p, req.Method)
	if err != nil {
		c.faultCleanup(p, err)
		return nil, err
	}

	var resp protocol.Response
	if err := json.Unmarshal(line, &resp); err != nil {
		return nil, newError(KindProtocol, p.upstream, req.Method, fmt.Errorf("malformed response: %w", err))
	}
	if !resp.Valid() {
		return nil, newError(KindProtocol, p.upstream, req.Method,
			fmt.Errorf("malformed response: result and error are mutually exclusive"))
	}
	if resp.Error != nil {
		return &resp, &UpstreamError{Upstream: p.upstream, RPC: resp.Error}
	}
	return &resp, nil
}

func (c *Client) writeFrame(p *stdioProcess, req *protocol.Request) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return newError(KindProtocol, p.upstream, req.Method, err)
	}
	payload = append(payload, '\n')
	if _, err := p.stdin.Write(payload); err != nil {
		return newError(KindProcess, p.upstream, req.Method, fmt.Errorf("writing to child: %w", err))
	}
	return nil
}

type readOutcome struct {
	line []byte
	err  error
}

func (c *Client) readFrame(ctx context.Context, p *stdioProcess, op string) ([]byte, error) {
	ch := make(chan readOutcome, 1)
	go func() {
		line, err := p.reader.ReadBytes('\n')
		ch <- readOutcome{line: line, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, newError(KindTransport, p.upstream, op, fmt.Errorf("awaiting response: %w", ctx.Err()))
	case out := <-ch:
		if out.err != nil {
			if errors.Is(out.err, io.EOF) && len(out.line) == 0 {
				return nil, newError(KindProcess, p.upstream, op, fmt.Errorf("child closed stdout: %w", io.EOF))
			}
			return nil, newError(KindTransport, p.upstream, op, fmt.Errorf("reading from child: %w", out.err))
		}
		return out.line, nil
	}
}

// faultCleanup removes p from the process table, then kills and reaps the
// child after the lock is released, so no zombie survives regardless of
// which failure mode got us here.
func (c *Client) faultCleanup(p *stdioProcess, cause error) {
	c.stdioMu.Lock()
	if c.procs[p.upstream] == p {
		delete(c.procs, p.upstream)
	}
	c.stdioMu.Unlock()

	c.logger.Warn("stdio upstream fault, reaping child", "upstream", p.upstream, "error", cause)
	c.destroyProcess(p)
}

// destroyProcess force-kills and reaps a process. Safe to call on a process
// already exiting: Wait is idempotent at the handle level.
func (c *Client) destroyProcess(p *stdioProcess) {
	if p.cancelDrain != nil {
		p.cancelDrain()
	}
	_ = p.stdin.Close()
	_ = p.proc.Kill()
	_ = p.proc.Wait()
}

// gracefulStop closes the child's stdin to request an orderly exit, waits up
// to the shutdown grace period, force-kills on timeout, and always performs
// the final wait so the child is reaped on every path.
func (c *Client) gracefulStop(p *stdioProcess) {
	if p.cancelDrain != nil {
		p.cancelDrain()
	}
	_ = p.stdin.Close()

	done := make(chan error, 1)
	go func() { done <- p.proc.Wait() }()

	select {
	case <-done:
	case <-time.After(c.opts.ShutdownGrace):
		c.logger.Warn("stdio upstream ignored graceful stop, killing", "upstream", p.upstream)
		_ = p.proc.Kill()
		<-done
	}
	c.logger.Info("stdio upstream stopped", "upstream", p.upstream)
}

// drainStderr relays the child's stderr into the gateway log for the life of
// the process, classifying lines by content markers. The context is
// cancelled together with the process so the drain cannot outlive it.
func (c *Client) drainStderr(ctx context.Context, upstreamID string, stderr io.Reader) {
	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := scanner.Text()
		if line == "" {
			continue
		}
		lower := strings.ToLower(line)
		switch {
		case strings.Contains(lower, "error") || strings.Contains(lower, "fatal") || strings.Contains(lower, "panic"):
			c.logger.Error("upstream stderr", "upstream", upstreamID, "line", line)
		case strings.Contains(lower, "warn"):
			c.logger.Warn("upstream stderr", "upstream", upstreamID, "line", line)
		default:
			c.logger.Debug("upstream stderr", "upstream", upstreamID, "line", line)
		}
	}
}
