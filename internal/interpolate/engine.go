package interpolate

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/artpar/apiary/internal/core"
	"github.com/google/uuid"
)

// BuiltinFunc is a function that generates a dynamic value.
type BuiltinFunc func() string

// Engine resolves placeholders against an ordered variable list plus dynamic
// built-ins such as {{$uuid}}. User variables take precedence over built-ins.
type Engine struct {
	mu        sync.RWMutex
	variables []core.Variable
	builtins  map[string]BuiltinFunc
}

// NewEngine creates an engine bound to the given variables.
func NewEngine(vars []core.Variable) *Engine {
	e := &Engine{
		builtins: make(map[string]BuiltinFunc),
	}
	e.SetVariables(vars)
	e.registerDefaultBuiltins()
	return e
}

func (e *Engine) registerDefaultBuiltins() {
	e.builtins["$uuid"] = func() string {
		return uuid.New().String()
	}

	e.builtins["$timestamp"] = func() string {
		return fmt.Sprintf("%d", time.Now().Unix())
	}

	e.builtins["$isoTimestamp"] = func() string {
		return time.Now().UTC().Format(time.RFC3339)
	}

	e.builtins["$randomInt"] = func() string {
		return fmt.Sprintf("%d", time.Now().UnixNano()%1000)
	}

	e.builtins["$date"] = func() string {
		return time.Now().Format("2006-01-02")
	}
}

// SetVariables replaces the variable list.
func (e *Engine) SetVariables(vars []core.Variable) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.variables = append([]core.Variable(nil), vars...)
}

// RegisterBuiltin registers a custom builtin. Names start with "$".
func (e *Engine) RegisterBuiltin(name string, fn BuiltinFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.builtins[name] = fn
}

// Keys returns the enabled variable keys followed by the builtin names.
func (e *Engine) Keys() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	keys := make([]string, 0, len(e.variables)+len(e.builtins))
	for _, v := range e.variables {
		if v.Enabled {
			keys = append(keys, v.Key)
		}
	}
	for name := range e.builtins {
		keys = append(keys, name)
	}
	return keys
}

// Resolve expands user variables, then any remaining built-in placeholders.
func (e *Engine) Resolve(text string) string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	text = Resolve(text, e.variables)
	if !strings.Contains(text, "{{$") {
		return text
	}
	return placeholderPattern.ReplaceAllStringFunc(text, func(match string) string {
		name := match[2 : len(match)-2]
		if fn, ok := e.builtins[name]; ok {
			return fn()
		}
		return match
	})
}

// Unknown returns the placeholder names in text that neither a variable nor a
// builtin resolves.
func (e *Engine) Unknown(text string) []string {
	keys := e.Keys()
	var unknown []string
	for _, name := range ExtractVariables(text) {
		if !IsKnownVariable(name, keys) {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// ResolveDefinition returns a copy of def with every user-editable text field
// resolved: URL, headers, query parameters, cookies, body and auth.
func (e *Engine) ResolveDefinition(def core.RequestDefinition) core.RequestDefinition {
	out := def.Clone()
	out.URL = e.Resolve(out.URL)
	e.resolvePairs(out.Headers)
	e.resolvePairs(out.QueryParams)

	for i := range out.Cookies {
		out.Cookies[i].Name = e.Resolve(out.Cookies[i].Name)
		out.Cookies[i].Value = e.Resolve(out.Cookies[i].Value)
	}

	switch out.Body.Type {
	case core.BodyRaw:
		out.Body.Content = e.Resolve(out.Body.Content)
	case core.BodyFormURLEncoded:
		e.resolvePairs(out.Body.Fields)
	case core.BodyMultipart:
		for i := range out.Body.Parts {
			out.Body.Parts[i].Name = e.Resolve(out.Body.Parts[i].Name)
			if !out.Body.Parts[i].IsFile {
				out.Body.Parts[i].Value = e.Resolve(out.Body.Parts[i].Value)
			}
		}
	}

	out.Auth.Username = e.Resolve(out.Auth.Username)
	out.Auth.Password = e.Resolve(out.Auth.Password)
	out.Auth.Token = e.Resolve(out.Auth.Token)
	out.Auth.Key = e.Resolve(out.Auth.Key)
	out.Auth.Value = e.Resolve(out.Auth.Value)

	if out.Settings.Proxy != nil {
		out.Settings.Proxy.URL = e.Resolve(out.Settings.Proxy.URL)
	}

	return out
}

func (e *Engine) resolvePairs(pairs []core.KeyValue) {
	for i := range pairs {
		pairs[i].Key = e.Resolve(pairs[i].Key)
		pairs[i].Value = e.Resolve(pairs[i].Value)
	}
}
