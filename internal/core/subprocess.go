package core

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/robjohncolson/doge-grid-bot-sub002/internal/codec"
	"github.com/robjohncolson/doge-grid-bot-sub002/internal/domain"
	"github.com/robjohncolson/doge-grid-bot-sub002/internal/event"
)

// SubprocessBackend reaches an external decision-core executable over
// line-delimited JSON on stdio. Preferred mode keeps one long-lived server
// child; when the server misbehaves the call retries once against a fresh
// one-shot invocation before the error reaches the caller.
type SubprocessBackend struct {
	exePath    string
	timeout    time.Duration
	persistent bool

	mu   sync.Mutex
	proc *serverProc
}

// NewSubprocessBackend wires a backend for the given executable. A zero or
// negative timeout gets a conservative default.
func NewSubprocessBackend(exePath string, timeout time.Duration, persistent bool) *SubprocessBackend {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &SubprocessBackend{exePath: exePath, timeout: timeout, persistent: persistent}
}

func (b *SubprocessBackend) Name() string { return "subprocess" }

func (b *SubprocessBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stopLocked()
	return nil
}

func (b *SubprocessBackend) Transition(ctx context.Context, state domain.PairState, ev event.Event, cfg domain.EngineConfig) (TransitionResult, error) {
	wev := codec.EncodeEvent(ev)
	req := codec.Request{
		Method: codec.MethodTransition,
		State:  codec.ToPortable(state),
		Event:  &wev,
		Config: &cfg,
	}
	raw, err := b.call(ctx, req)
	if err != nil {
		return TransitionResult{}, err
	}

	var resp codec.TransitionResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return TransitionResult{}, &domain.ProtocolError{Detail: "transition response", Err: err}
	}
	next, err := codec.FromPortable(resp.State)
	if err != nil {
		return TransitionResult{}, &domain.ProtocolError{Detail: "transition state", Err: err}
	}
	out := TransitionResult{State: next, Diagnostics: resp.Diagnostics}
	for _, wa := range resp.Actions {
		act, err := codec.DecodeAction(wa)
		if err != nil {
			return TransitionResult{}, &domain.ProtocolError{Detail: "transition action", Err: err}
		}
		out.Actions = append(out.Actions, act)
	}
	return out, nil
}

func (b *SubprocessBackend) CheckInvariants(ctx context.Context, state domain.PairState, cfg domain.EngineConfig) ([]domain.Violation, error) {
	req := codec.Request{
		Method: codec.MethodCheckInvariants,
		State:  codec.ToPortable(state),
		Config: &cfg,
	}
	raw, err := b.call(ctx, req)
	if err != nil {
		return nil, err
	}
	var resp codec.CheckResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, &domain.ProtocolError{Detail: "check_invariants response", Err: err}
	}
	violations := make([]domain.Violation, 0, len(resp.Violations))
	for _, v := range resp.Violations {
		violations = append(violations, domain.Violation(v))
	}
	return violations, nil
}

// call runs one request with the configured deadline, preferring the
// persistent server.
func (b *SubprocessBackend) call(ctx context.Context, req codec.Request) (json.RawMessage, error) {
	if b.exePath == "" {
		return nil, domain.NewTransportError("spawn", domain.ErrBackendUnavailable)
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, &domain.ProtocolError{Detail: "encode request", Err: err}
	}

	if b.persistent {
		raw, err := b.callServer(payload)
		if err == nil {
			return checkWireError(raw)
		}
		slog.Warn("persistent core backend failed, retrying one-shot",
			slog.String("error", err.Error()))
	}

	raw, err := b.callOneshot(ctx, payload)
	if err != nil {
		return nil, err
	}
	return checkWireError(raw)
}

// checkWireError surfaces an in-band {"error": ...} response as a failure.
func checkWireError(raw json.RawMessage) (json.RawMessage, error) {
	var probe struct {
		Error *string `json:"error"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, &domain.ProtocolError{Detail: "malformed response", Err: err}
	}
	if probe.Error != nil {
		return nil, &domain.ProtocolError{Detail: *probe.Error}
	}
	return raw, nil
}

func (b *SubprocessBackend) callOneshot(ctx context.Context, payload []byte) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, b.exePath)
	cmd.Stdin = bytes.NewReader(payload)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail != "" {
			err = fmt.Errorf("%w: %s", err, detail)
		}
		return nil, domain.NewTransportError("oneshot", err)
	}
	out := bytes.TrimSpace(stdout.Bytes())
	if len(out) == 0 {
		return nil, &domain.ProtocolError{Detail: "empty response"}
	}
	return json.RawMessage(out), nil
}

func (b *SubprocessBackend) callServer(payload []byte) (json.RawMessage, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.ensureStartedLocked(); err != nil {
		return nil, err
	}
	proc := b.proc

	if _, err := proc.stdin.Write(append(payload, '\n')); err != nil {
		b.stopLocked()
		return nil, domain.NewTransportError("server write", err)
	}

	select {
	case line, ok := <-proc.lines:
		if !ok {
			detail := proc.stderrDetails()
			b.stopLocked()
			if detail != "" {
				return nil, domain.NewTransportError("server", fmt.Errorf("exited unexpectedly: %s", detail))
			}
			return nil, domain.NewTransportError("server", fmt.Errorf("exited unexpectedly"))
		}
		return json.RawMessage(line), nil
	case <-time.After(b.timeout):
		b.stopLocked()
		return nil, domain.NewTransportError("server", fmt.Errorf("timeout after %s", b.timeout))
	}
}

type serverProc struct {
	cmd   *exec.Cmd
	stdin io.WriteCloser
	lines chan string

	stderrMu   sync.Mutex
	stderrTail []string
}

func (p *serverProc) appendStderr(line string) {
	p.stderrMu.Lock()
	defer p.stderrMu.Unlock()
	p.stderrTail = append(p.stderrTail, line)
	if len(p.stderrTail) > 20 {
		p.stderrTail = p.stderrTail[len(p.stderrTail)-20:]
	}
}

func (p *serverProc) stderrDetails() string {
	p.stderrMu.Lock()
	defer p.stderrMu.Unlock()
	return strings.Join(p.stderrTail, " | ")
}

func (b *SubprocessBackend) ensureStartedLocked() error {
	if b.proc != nil {
		return nil
	}

	cmd := exec.Command(b.exePath, "--server")
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return domain.NewFatalTransportError("server stdin", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return domain.NewFatalTransportError("server stdout", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return domain.NewFatalTransportError("server stderr", err)
	}
	if err := cmd.Start(); err != nil {
		return domain.NewTransportError("server start", err)
	}

	proc := &serverProc{
		cmd:   cmd,
		stdin: stdin,
		lines: make(chan string, 16),
	}
	b.proc = proc

	go func() {
		scanner := bufio.NewScanner(stdout)
		scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
		for scanner.Scan() {
			proc.lines <- scanner.Text()
		}
		close(proc.lines)
	}()
	go func() {
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			if line := strings.TrimSpace(scanner.Text()); line != "" {
				proc.appendStderr(line)
			}
		}
	}()

	return nil
}

func (b *SubprocessBackend) stopLocked() {
	proc := b.proc
	b.proc = nil
	if proc == nil {
		return
	}

	_ = proc.stdin.Close()

	done := make(chan struct{})
	go func() {
		_ = proc.cmd.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		_ = proc.cmd.Process.Kill()
		<-done
	}
}
