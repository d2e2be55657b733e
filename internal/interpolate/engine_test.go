package interpolate

import (
	"regexp"
	"testing"

	"github.com/artpar/apiary/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngine_Resolve(t *testing.T) {
	t.Run("resolves user variables", func(t *testing.T) {
		engine := NewEngine(vars("host", "api.example.com"))
		assert.Equal(t, "https://api.example.com/v1", engine.Resolve("https://{{host}}/v1"))
	})

	t.Run("resolves uuid builtin", func(t *testing.T) {
		engine := NewEngine(nil)
		result := engine.Resolve("{{$uuid}}")
		assert.Regexp(t, regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`), result)
	})

	t.Run("generates a fresh value per occurrence", func(t *testing.T) {
		engine := NewEngine(nil)
		counter := 0
		engine.RegisterBuiltin("$counter", func() string {
			counter++
			return string(rune('0' + counter))
		})
		assert.Equal(t, "1-2", engine.Resolve("{{$counter}}-{{$counter}}"))
	})

	t.Run("user variables shadow builtins", func(t *testing.T) {
		engine := NewEngine(vars("$uuid", "fixed"))
		assert.Equal(t, "fixed", engine.Resolve("{{$uuid}}"))
	})

	t.Run("leaves unknown builtins verbatim", func(t *testing.T) {
		engine := NewEngine(nil)
		assert.Equal(t, "{{$nope}}", engine.Resolve("{{$nope}}"))
	})

	t.Run("timestamp is numeric", func(t *testing.T) {
		engine := NewEngine(nil)
		assert.Regexp(t, `^\d+$`, engine.Resolve("{{$timestamp}}"))
	})

	t.Run("picks up replaced variables", func(t *testing.T) {
		engine := NewEngine(vars("env", "dev"))
		engine.SetVariables(vars("env", "prod"))
		assert.Equal(t, "prod", engine.Resolve("{{env}}"))
	})
}

func TestEngine_Unknown(t *testing.T) {
	engine := NewEngine(vars("host", "h"))
	assert.Equal(t, []string{"missing"}, engine.Unknown("{{host}}{{$uuid}}{{missing}}"))
}

func TestEngine_ResolveDefinition(t *testing.T) {
	engine := NewEngine(vars("host", "api.test", "token", "secret", "id", "42"))

	def := core.NewRequestDefinition("post", "https://{{host}}/users/{{id}}")
	def.Headers = []core.KeyValue{{Key: "X-Id", Value: "{{id}}", Enabled: true}}
	def.QueryParams = []core.KeyValue{{Key: "q", Value: "{{missing}}", Enabled: true}}
	def.Body = core.RawBody(`{"id": "{{id}}"}`, "application/json")
	def.Auth = core.NewBearerAuth("{{token}}")

	resolved := engine.ResolveDefinition(def)

	assert.Equal(t, "POST", resolved.Method)
	assert.Equal(t, "https://api.test/users/42", resolved.URL)
	assert.Equal(t, "42", resolved.Headers[0].Value)
	assert.Equal(t, "{{missing}}", resolved.QueryParams[0].Value)
	assert.Equal(t, `{"id": "42"}`, resolved.Body.Content)
	assert.Equal(t, "secret", resolved.Auth.Token)

	t.Run("leaves the input untouched", func(t *testing.T) {
		require.Len(t, def.Headers, 1)
		assert.Equal(t, "{{id}}", def.Headers[0].Value)
		assert.Equal(t, "https://{{host}}/users/{{id}}", def.URL)
	})

	t.Run("resolves form fields", func(t *testing.T) {
		form := core.NewRequestDefinition("POST", "/")
		form.Body = core.Body{
			Type:   core.BodyFormURLEncoded,
			Fields: []core.KeyValue{{Key: "user", Value: "{{id}}", Enabled: true}},
		}
		out := engine.ResolveDefinition(form)
		assert.Equal(t, "42", out.Body.Fields[0].Value)
		assert.Equal(t, "{{id}}", form.Body.Fields[0].Value)
	})
}
