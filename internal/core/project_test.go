package core

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/artpar/apiary/internal/ident"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProject(t *testing.T) {
	p := NewProject(ident.NewSequence("p"), "My API")

	require.NotNil(t, p.Root)
	require.Len(t, p.Environments, 1)
	assert.Equal(t, DefaultEnvironmentName, p.Environments[0].Name)
	assert.Equal(t, p.Environments[0].ID, p.ActiveEnvironmentID)
	assert.Same(t, p.Environments[0], p.ActiveEnvironment())
	assert.NotEqual(t, p.ID, p.Root.ID())
}

func TestProject_Clone(t *testing.T) {
	p := NewProject(ident.NewSequence("p"), "My API")
	auth := NewBearerAuth("t")
	p.DefaultAuth = &auth
	p.Environments[0].Variables = append(p.Environments[0].Variables, Variable{ID: "v", Key: "host", Value: "a", Enabled: true})
	p.Root.Append(NewRequest("r", "R", "GET", "/"))

	clone := p.Clone()
	clone.Environments[0].Variables[0].Value = "b"
	clone.DefaultAuth.Token = "changed"
	clone.Root.RemoveAt(0)

	assert.Equal(t, "a", p.Environments[0].Variables[0].Value)
	assert.Equal(t, "t", p.DefaultAuth.Token)
	assert.Equal(t, 1, p.Root.Len())
	assert.Equal(t, p.ID, clone.ID)
}

func TestEnvironment(t *testing.T) {
	env := NewEnvironment("e", "Staging")
	env.Variables = []Variable{
		{ID: "1", Key: "host", Value: "a", Enabled: true},
		{ID: "2", Key: "token", Value: "b", Enabled: false},
	}

	assert.Equal(t, []string{"host"}, env.Keys())
	assert.Len(t, env.Enabled(), 1)
	v := env.Variable("2")
	require.NotNil(t, v)
	v.Enabled = true
	assert.True(t, env.Variables[1].Enabled)
	assert.Nil(t, env.Variable("3"))
}

func TestRequestDefinition(t *testing.T) {
	t.Run("full url appends enabled params", func(t *testing.T) {
		def := NewRequestDefinition("GET", "https://api.example.com/users")
		def.SetQueryParam("page", "2")
		def.QueryParams = append(def.QueryParams, KeyValue{Key: "off", Value: "x"})
		assert.Equal(t, "https://api.example.com/users?page=2", def.FullURL())
	})

	t.Run("set header replaces case-insensitively", func(t *testing.T) {
		def := NewRequestDefinition("GET", "/")
		def.SetHeader("Content-Type", "text/plain")
		def.SetHeader("content-type", "application/json")
		require.Len(t, def.Headers, 1)
		assert.Equal(t, "application/json", def.Header("CONTENT-TYPE"))
	})

	t.Run("clone is deep", func(t *testing.T) {
		follow := false
		def := NewRequestDefinition("POST", "/")
		def.Body = Body{Type: BodyFormURLEncoded, Fields: []KeyValue{{Key: "a", Value: "1", Enabled: true}}}
		def.Settings.FollowRedirects = &follow

		clone := def.Clone()
		clone.Body.Fields[0].Value = "2"
		*clone.Settings.FollowRedirects = true

		assert.Equal(t, "1", def.Body.Fields[0].Value)
		assert.False(t, def.Settings.ShouldFollowRedirects())
	})

	t.Run("settings default to follow and verify", func(t *testing.T) {
		var s Settings
		assert.True(t, s.ShouldFollowRedirects())
		assert.True(t, s.ShouldVerifyTLS())
	})
}

func TestAuth_Apply(t *testing.T) {
	tests := []struct {
		name       string
		auth       Auth
		wantHeader string
		wantValue  string
		wantQuery  string
	}{
		{"basic", NewBasicAuth("user", "pass"), "Authorization", "Basic dXNlcjpwYXNz", ""},
		{"bearer", NewBearerAuth("tok"), "Authorization", "Bearer tok", ""},
		{"api key header", NewAPIKeyAuth("X-Key", "k", APIKeyInHeader), "X-Key", "k", ""},
		{"api key query", NewAPIKeyAuth("key", "k", APIKeyInQuery), "", "", "key=k"},
		{"none", NoAuth(), "", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			headers := http.Header{}
			query := url.Values{}
			tt.auth.Apply(headers, query)

			if tt.wantHeader != "" {
				assert.Equal(t, tt.wantValue, headers.Get(tt.wantHeader))
			} else {
				assert.Empty(t, headers)
			}
			assert.Equal(t, tt.wantQuery, query.Encode())
		})
	}
}
