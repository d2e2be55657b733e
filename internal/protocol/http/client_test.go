package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/artpar/apiary/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func boolPtr(b bool) *bool { return &b }

func TestNewClient(t *testing.T) {
	t.Run("creates client with defaults", func(t *testing.T) {
		client := NewClient()
		assert.NotNil(t, client)
		assert.Equal(t, "http", client.Protocol())
		assert.True(t, client.config.FollowRedirect)
		assert.Equal(t, DefaultMaxRedirects, client.config.MaxRedirects)
		assert.NotNil(t, client.httpClient.Jar)
	})

	t.Run("applies options", func(t *testing.T) {
		transport := &http.Transport{MaxIdleConns: 100}
		client := NewClient(WithTimeout(5*time.Second), WithTransport(transport), WithNoRedirects(), WithoutCookieJar())
		assert.Equal(t, 5*time.Second, client.config.Timeout)
		assert.Equal(t, transport, client.httpClient.Transport)
		assert.False(t, client.config.FollowRedirect)
		assert.Nil(t, client.httpClient.Jar)
	})
}

func TestClient_Execute_GET(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "GET", r.Method)
		assert.Equal(t, "/users", r.URL.Path)
		assert.Equal(t, "2", r.URL.Query().Get("page"))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"name": "John"})
	}))
	defer server.Close()

	def := core.NewRequestDefinition("GET", server.URL+"/users")
	def.QueryParams = []core.KeyValue{
		{Key: "page", Value: "2", Enabled: true},
		{Key: "skip", Value: "me", Enabled: false},
	}

	resp, err := NewClient().Execute(context.Background(), def)
	require.NoError(t, err)

	assert.Equal(t, 200, resp.Status)
	assert.Equal(t, "200 OK", resp.StatusText)
	assert.Equal(t, "application/json", resp.Header("Content-Type"))
	assert.Equal(t, "application/json", resp.DetectedContentType)
	assert.Equal(t, []core.Renderer{core.RendererRaw, core.RendererJSON}, resp.Renderers)
	assert.Equal(t, "HTTP/1.1", resp.HTTPVersion)
	assert.Equal(t, "tcp", resp.ProtocolUsed)
	assert.NotEmpty(t, resp.RemoteAddr)
	assert.False(t, resp.ReceivedAt.IsZero())

	var body map[string]string
	require.NoError(t, json.Unmarshal(resp.Body(), &body))
	assert.Equal(t, "John", body["name"])

	assert.Equal(t, len(resp.Body()), resp.ResponseSize.BodyBytes)
	assert.Equal(t, resp.ResponseSize.HeadersBytes+resp.ResponseSize.BodyBytes, resp.ResponseSize.TotalBytes)
	assert.Greater(t, resp.RequestSize.HeadersBytes, 0)
	assert.Zero(t, resp.RequestSize.BodyBytes)
	assert.GreaterOrEqual(t, resp.Timing.TotalMs, resp.Timing.TTFBMs)
}

func TestClient_Execute_HeadersAndAuth(t *testing.T) {
	t.Run("sends enabled headers only", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "application/json", r.Header.Get("Accept"))
			assert.Empty(t, r.Header.Get("X-Disabled"))
			assert.Equal(t, "api.example.com", r.Host)
			w.WriteHeader(http.StatusNoContent)
		}))
		defer server.Close()

		def := core.NewRequestDefinition("GET", server.URL)
		def.Headers = []core.KeyValue{
			{Key: "Accept", Value: "application/json", Enabled: true},
			{Key: "X-Disabled", Value: "1", Enabled: false},
			{Key: "Host", Value: "api.example.com", Enabled: true},
		}

		resp, err := NewClient().Execute(context.Background(), def)
		require.NoError(t, err)
		assert.Equal(t, 204, resp.Status)
	})

	t.Run("applies basic auth", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, pass, ok := r.BasicAuth()
			assert.True(t, ok)
			assert.Equal(t, "alice", user)
			assert.Equal(t, "secret", pass)
		}))
		defer server.Close()

		def := core.NewRequestDefinition("GET", server.URL)
		def.Auth = core.NewBasicAuth("alice", "secret")

		_, err := NewClient().Execute(context.Background(), def)
		require.NoError(t, err)
	})

	t.Run("applies bearer auth", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "Bearer token123", r.Header.Get("Authorization"))
		}))
		defer server.Close()

		def := core.NewRequestDefinition("GET", server.URL)
		def.Auth = core.NewBearerAuth("token123")

		_, err := NewClient().Execute(context.Background(), def)
		require.NoError(t, err)
	})

	t.Run("applies api key in query", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "k-1", r.URL.Query().Get("api_key"))
			assert.Equal(t, "1", r.URL.Query().Get("page"))
		}))
		defer server.Close()

		def := core.NewRequestDefinition("GET", server.URL+"/items?page=1")
		def.Auth = core.NewAPIKeyAuth("api_key", "k-1", core.APIKeyInQuery)

		_, err := NewClient().Execute(context.Background(), def)
		require.NoError(t, err)
	})

	t.Run("sends request cookies", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session, err := r.Cookie("session")
			require.NoError(t, err)
			assert.Equal(t, "abc", session.Value)
			theme, err := r.Cookie("theme")
			require.NoError(t, err)
			assert.Equal(t, "dark", theme.Value)
		}))
		defer server.Close()

		def := core.NewRequestDefinition("GET", server.URL)
		def.Cookies = []core.Cookie{{Name: "session", Value: "abc"}, {Name: "theme", Value: "dark"}}

		_, err := NewClient().Execute(context.Background(), def)
		require.NoError(t, err)
	})
}

func TestClient_Execute_Bodies(t *testing.T) {
	t.Run("raw body with content type", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "POST", r.Method)
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			body, _ := io.ReadAll(r.Body)
			assert.JSONEq(t, `{"name":"Jane"}`, string(body))
			w.WriteHeader(http.StatusCreated)
		}))
		defer server.Close()

		def := core.NewRequestDefinition("POST", server.URL)
		def.Body = core.RawBody(`{"name":"Jane"}`, "application/json")

		resp, err := NewClient().Execute(context.Background(), def)
		require.NoError(t, err)
		assert.Equal(t, 201, resp.Status)
		assert.Equal(t, len(`{"name":"Jane"}`), resp.RequestSize.BodyBytes)
	})

	t.Run("explicit content type header wins", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "text/plain", r.Header.Get("Content-Type"))
		}))
		defer server.Close()

		def := core.NewRequestDefinition("POST", server.URL)
		def.Body = core.RawBody("hi", "application/json")
		def.SetHeader("Content-Type", "text/plain")

		_, err := NewClient().Execute(context.Background(), def)
		require.NoError(t, err)
	})

	t.Run("urlencoded form", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, r.ParseForm())
			assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
			assert.Equal(t, "bob", r.PostForm.Get("user"))
			assert.Empty(t, r.PostForm.Get("off"))
		}))
		defer server.Close()

		def := core.NewRequestDefinition("POST", server.URL)
		def.Body = core.Body{Type: core.BodyFormURLEncoded, Fields: []core.KeyValue{
			{Key: "user", Value: "bob", Enabled: true},
			{Key: "off", Value: "x", Enabled: false},
		}}

		_, err := NewClient().Execute(context.Background(), def)
		require.NoError(t, err)
	})

	t.Run("multipart with inline file", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, r.ParseMultipartForm(1<<20))
			assert.Equal(t, "invoice", r.FormValue("kind"))

			file, header, err := r.FormFile("file")
			require.NoError(t, err)
			defer file.Close()
			assert.Equal(t, "report.csv", header.Filename)
			assert.Equal(t, "text/csv", header.Header.Get("Content-Type"))
			data, _ := io.ReadAll(file)
			assert.Equal(t, "a,b\n1,2\n", string(data))
		}))
		defer server.Close()

		def := core.NewRequestDefinition("POST", server.URL)
		def.Body = core.Body{Type: core.BodyMultipart, Parts: []core.MultipartPart{
			{Name: "kind", Value: "invoice"},
			{Name: "file", IsFile: true, Filename: "uploads/report.csv", ContentType: "text/csv", Data: []byte("a,b\n1,2\n")},
		}}

		_, err := NewClient().Execute(context.Background(), def)
		require.NoError(t, err)
	})

	t.Run("binary body read from file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "payload.bin")
		require.NoError(t, os.WriteFile(path, []byte{0x01, 0x02, 0x03}, 0o644))

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "application/octet-stream", r.Header.Get("Content-Type"))
			data, _ := io.ReadAll(r.Body)
			assert.Equal(t, []byte{0x01, 0x02, 0x03}, data)
		}))
		defer server.Close()

		def := core.NewRequestDefinition("PUT", server.URL)
		def.Body = core.Body{Type: core.BodyBinary, Filename: path}

		_, err := NewClient().Execute(context.Background(), def)
		require.NoError(t, err)
	})

	t.Run("missing binary file fails", func(t *testing.T) {
		def := core.NewRequestDefinition("PUT", "http://127.0.0.1:1")
		def.Body = core.Body{Type: core.BodyBinary, Filename: filepath.Join(t.TempDir(), "missing.bin")}

		_, err := NewClient().Execute(context.Background(), def)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to read body file")
	})
}

func redirectServer() *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/start", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/middle", http.StatusFound)
	})
	mux.HandleFunc("/middle", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/end", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/end", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "done")
	})
	mux.HandleFunc("/loop", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/loop", http.StatusFound)
	})
	return httptest.NewServer(mux)
}

func TestClient_Execute_Redirects(t *testing.T) {
	server := redirectServer()
	defer server.Close()

	t.Run("follows and records the chain", func(t *testing.T) {
		resp, err := NewClient().Execute(context.Background(), core.NewRequestDefinition("GET", server.URL+"/start"))
		require.NoError(t, err)

		assert.Equal(t, 200, resp.Status)
		assert.Equal(t, "done", string(resp.Body()))
		require.Len(t, resp.Redirects, 2)
		assert.Equal(t, core.Redirect{URL: server.URL + "/middle", Status: 302}, resp.Redirects[0])
		assert.Equal(t, core.Redirect{URL: server.URL + "/end", Status: 301}, resp.Redirects[1])
	})

	t.Run("request setting disables following", func(t *testing.T) {
		def := core.NewRequestDefinition("GET", server.URL+"/start")
		def.Settings.FollowRedirects = boolPtr(false)

		resp, err := NewClient().Execute(context.Background(), def)
		require.NoError(t, err)
		assert.Equal(t, 302, resp.Status)
		assert.Equal(t, "/middle", resp.Header("Location"))
		assert.Empty(t, resp.Redirects)
	})

	t.Run("client option disables following", func(t *testing.T) {
		resp, err := NewClient(WithNoRedirects()).Execute(context.Background(), core.NewRequestDefinition("GET", server.URL+"/start"))
		require.NoError(t, err)
		assert.Equal(t, 302, resp.Status)
	})

	t.Run("stops after max redirects", func(t *testing.T) {
		def := core.NewRequestDefinition("GET", server.URL+"/loop")
		def.Settings.MaxRedirects = 2

		_, err := NewClient().Execute(context.Background(), def)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "stopped after 2 redirects")
	})
}

func TestClient_Execute_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer server.Close()

	def := core.NewRequestDefinition("GET", server.URL)
	def.Settings.TimeoutMs = 50

	start := time.Now()
	_, err := NewClient().Execute(context.Background(), def)
	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestClient_Execute_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewClient().Execute(ctx, core.NewRequestDefinition("GET", server.URL))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClient_Execute_Cookies(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/login" {
			http.SetCookie(w, &http.Cookie{Name: "session", Value: "s-42", Path: "/", HttpOnly: true})
			return
		}
		session, err := r.Cookie("session")
		if err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, session.Value)
	}))
	defer server.Close()

	t.Run("response cookies are captured and kept for the session", func(t *testing.T) {
		client := NewClient()

		resp, err := client.Execute(context.Background(), core.NewRequestDefinition("POST", server.URL+"/login"))
		require.NoError(t, err)
		require.Len(t, resp.Cookies, 1)
		assert.Equal(t, "session", resp.Cookies[0].Name)
		assert.Equal(t, "s-42", resp.Cookies[0].Value)
		assert.True(t, resp.Cookies[0].HTTPOnly)

		resp, err = client.Execute(context.Background(), core.NewRequestDefinition("GET", server.URL+"/me"))
		require.NoError(t, err)
		assert.Equal(t, 200, resp.Status)
		assert.Equal(t, "s-42", string(resp.Body()))
	})

	t.Run("without jar cookies are not replayed", func(t *testing.T) {
		client := NewClient(WithoutCookieJar())

		_, err := client.Execute(context.Background(), core.NewRequestDefinition("POST", server.URL+"/login"))
		require.NoError(t, err)

		resp, err := client.Execute(context.Background(), core.NewRequestDefinition("GET", server.URL+"/me"))
		require.NoError(t, err)
		assert.Equal(t, 401, resp.Status)
	})
}

func TestClient_Execute_QUIC(t *testing.T) {
	def := core.NewRequestDefinition("GET", "https://example.com")
	def.Settings.Protocol = core.ProtocolQUIC

	_, err := NewClient().Execute(context.Background(), def)
	assert.ErrorIs(t, err, ErrProtocolUnsupported)
}

func TestClient_Execute_TLS(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "secure")
	}))
	defer server.Close()

	t.Run("rejects untrusted certificate by default", func(t *testing.T) {
		_, err := NewClient().Execute(context.Background(), core.NewRequestDefinition("GET", server.URL))
		require.Error(t, err)
	})

	t.Run("skips verification when disabled", func(t *testing.T) {
		def := core.NewRequestDefinition("GET", server.URL)
		def.Settings.VerifyTLS = boolPtr(false)

		resp, err := NewClient().Execute(context.Background(), def)
		require.NoError(t, err)
		assert.Equal(t, "secure", string(resp.Body()))
	})
}

func TestClient_Execute_Proxy(t *testing.T) {
	proxy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "upstream.invalid", r.Host)
		assert.Equal(t, "/path", r.URL.Path)
		assert.True(t, strings.HasPrefix(r.Header.Get("Proxy-Authorization"), "Basic "))
		fmt.Fprint(w, "via proxy")
	}))
	defer proxy.Close()

	def := core.NewRequestDefinition("GET", "http://upstream.invalid/path")
	def.Settings.Proxy = &core.Proxy{URL: proxy.URL, Username: "u", Password: "p"}

	resp, err := NewClient().Execute(context.Background(), def)
	require.NoError(t, err)
	assert.Equal(t, "via proxy", string(resp.Body()))

	t.Run("invalid proxy URL", func(t *testing.T) {
		def := core.NewRequestDefinition("GET", "http://upstream.invalid/path")
		def.Settings.Proxy = &core.Proxy{URL: "://bad"}

		_, err := NewClient().Execute(context.Background(), def)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid proxy URL")
	})
}
