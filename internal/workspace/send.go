package workspace

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/artpar/apiary/internal/core"
	"github.com/artpar/apiary/internal/interpolate"
)

var (
	// ErrNoExecutor is returned by Send when no executor is configured.
	ErrNoExecutor = errors.New("no executor configured")
	// ErrStaleResponse is returned when a newer send of the same request was
	// started before this one finished. The stale response is discarded.
	ErrStaleResponse = errors.New("stale response discarded")
)

// Executor performs a resolved request.
type Executor interface {
	Execute(ctx context.Context, def core.RequestDefinition) (*core.Response, error)
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, def core.RequestDefinition) (*core.Response, error)

// Execute calls f.
func (f ExecutorFunc) Execute(ctx context.Context, def core.RequestDefinition) (*core.Response, error) {
	return f(ctx, def)
}

// PrepareRequest returns the definition of a request as it would be sent:
// the project's default auth and base URL are applied and every placeholder
// is resolved against the active environment.
func (s *Store) PrepareRequest(id string) (core.RequestDefinition, error) {
	req, p := s.State().Request(id)
	if req == nil {
		return core.RequestDefinition{}, fmt.Errorf("request %s: %w", id, ErrNotFound)
	}
	return prepare(req, p), nil
}

func prepare(req *core.Request, p *core.Project) core.RequestDefinition {
	def := req.Definition()
	if def.Auth.Type == core.AuthTypeNone && p.DefaultAuth != nil {
		def.Auth = *p.DefaultAuth
	}
	if p.BaseURL != "" && !hasScheme(def.URL) && !strings.HasPrefix(def.URL, "{{") {
		def.URL = strings.TrimRight(p.BaseURL, "/") + "/" + strings.TrimLeft(def.URL, "/")
	}
	return interpolate.NewEngine(activeVariables(p)).ResolveDefinition(def)
}

func hasScheme(rawURL string) bool {
	i := strings.Index(rawURL, "://")
	return i > 0 && !strings.ContainsAny(rawURL[:i], "/?#{")
}

// Send resolves and executes a request, then attaches the response. Each send
// takes a new sequence number; a response arriving after a newer send of the
// same request has started is discarded and ErrStaleResponse is returned
// along with it. Execution errors leave the workspace untouched.
func (s *Store) Send(ctx context.Context, id string) (*core.Response, error) {
	if s.executor == nil {
		return nil, ErrNoExecutor
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	req, p := s.state.Request(id)
	if req == nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("request %s: %w", id, ErrNotFound)
	}
	s.sendSeq[id]++
	seq := s.sendSeq[id]
	def := prepare(req, p)
	s.mu.Unlock()

	s.logger.Debug("sending request", "id", id, "seq", seq, "method", def.Method, "url", def.URL)
	resp, err := s.executor.Execute(ctx, def)
	if err != nil {
		s.logger.Warn("request failed", "id", id, "seq", seq, "error", err)
		return nil, fmt.Errorf("send %s: %w", id, err)
	}

	stale := false
	attached := s.update("set_response", func(st *State) bool {
		if s.sendSeq[id] != seq {
			stale = true
			return false
		}
		target, _ := st.Request(id)
		if target == nil {
			return false
		}
		target.SetResponse(resp)
		return true
	})

	if stale {
		s.logger.Warn("discarding stale response", "id", id, "seq", seq)
		return resp, ErrStaleResponse
	}
	if !attached {
		return resp, fmt.Errorf("request %s: %w", id, ErrNotFound)
	}
	return resp, nil
}
