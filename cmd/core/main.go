package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/robjohncolson/doge-grid-bot-sub002/internal/codec"
	"github.com/robjohncolson/doge-grid-bot-sub002/internal/domain"
	"github.com/robjohncolson/doge-grid-bot-sub002/internal/engine"
	"github.com/robjohncolson/doge-grid-bot-sub002/internal/event"
)

// Lines can carry full slot snapshots with deep cycle history.
const maxLineBytes = 16 * 1024 * 1024

// This binary exposes the reducer over stdin/stdout so any host can run
// it out of process. One-shot mode reads one request and exits; --server
// mode answers one JSON line per request until stdin closes. All errors
// travel in-band as {"error": "..."} so the host never has to parse
// stderr.
func main() {
	server := flag.Bool("server", false, "serve line-delimited requests until stdin closes")
	flag.Parse()

	if *server {
		runServer(os.Stdin, os.Stdout)
		return
	}

	raw, err := io.ReadAll(os.Stdin)
	if err != nil {
		writeError(os.Stdout, fmt.Errorf("read request: %w", err))
		os.Exit(1)
	}
	os.Stdout.Write(append(handle(raw), '\n'))
}

func runServer(in io.Reader, out io.Writer) {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	w := bufio.NewWriter(out)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		w.Write(handle(line))
		w.WriteByte('\n')
		w.Flush()
	}
}

func handle(raw []byte) []byte {
	var req codec.Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return errorBody(fmt.Errorf("malformed request: %w", err))
	}

	state, err := codec.FromPortable(req.State)
	if err != nil {
		return errorBody(fmt.Errorf("malformed state: %w", err))
	}

	cfg := domain.DefaultEngineConfig()
	if req.Config != nil {
		cfg = *req.Config
	}

	switch req.Method {
	case codec.MethodTransition:
		if req.Event == nil {
			return errorBody(fmt.Errorf("transition requires an event"))
		}
		ev, err := codec.DecodeEvent(*req.Event)
		if err != nil {
			return errorBody(fmt.Errorf("malformed event: %w", err))
		}
		return transitionBody(state, ev, cfg)

	case codec.MethodCheckInvariants:
		violations := engine.CheckInvariants(state, cfg)
		resp := codec.CheckResponse{Violations: make([]string, 0, len(violations))}
		for _, v := range violations {
			resp.Violations = append(resp.Violations, string(v))
		}
		return mustMarshal(resp)

	default:
		return errorBody(fmt.Errorf("unknown method %q", req.Method))
	}
}

func transitionBody(state domain.PairState, ev event.Event, cfg domain.EngineConfig) []byte {
	next, actions, diags := engine.Transition(state, ev, cfg)
	resp := codec.TransitionResponse{
		State:       codec.ToPortable(next),
		Actions:     make([]codec.WireAction, 0, len(actions)),
		Diagnostics: diags,
	}
	for _, act := range actions {
		resp.Actions = append(resp.Actions, codec.EncodeAction(act))
	}
	return mustMarshal(resp)
}

func errorBody(err error) []byte {
	return mustMarshal(map[string]string{"error": err.Error()})
}

func writeError(w io.Writer, err error) {
	w.Write(append(errorBody(err), '\n'))
}

func mustMarshal(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		// Only reachable on unmarshalable values, which the wire types are not.
		return []byte(fmt.Sprintf(`{"error":%q}`, err.Error()))
	}
	return b
}
