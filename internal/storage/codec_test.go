package storage

import (
	"context"
	"testing"
	"time"

	"github.com/artpar/apiary/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertSampleRoundTrip(t *testing.T, want, got *Snapshot) {
	t.Helper()

	require.Len(t, got.Projects, 1)
	assert.Equal(t, want.ActiveProjectID, got.ActiveProjectID)
	assert.Equal(t, want.ActiveRequestID, got.ActiveRequestID)
	assert.Equal(t, want.SelectedItemID, got.SelectedItemID)
	assert.Equal(t, want.Dirty, got.Dirty)
	assert.Equal(t, want.Clipboard, got.Clipboard)
	assert.True(t, want.SavedAt.Equal(got.SavedAt))

	wp, gp := want.Projects[0], got.Projects[0]
	assert.Equal(t, wp.ID, gp.ID)
	assert.Equal(t, wp.Name, gp.Name)
	assert.Equal(t, wp.Description, gp.Description)
	assert.Equal(t, wp.BaseURL, gp.BaseURL)
	assert.Equal(t, wp.DefaultAuth, gp.DefaultAuth)
	assert.Equal(t, wp.ActiveEnvironmentID, gp.ActiveEnvironmentID)
	require.Len(t, gp.Environments, 1)
	assert.Equal(t, wp.Environments[0].Variables, gp.Environments[0].Variables)

	require.Equal(t, wp.Root.ID(), gp.Root.ID())
	require.Equal(t, 2, gp.Root.Len())

	auth, ok := gp.Root.ChildAt(0).(*core.Folder)
	require.True(t, ok)
	assert.Equal(t, "Auth", auth.Name())
	assert.False(t, auth.Expanded())

	wantLogin := wp.Root.ChildAt(0).(*core.Folder).ChildAt(0).(*core.Request)
	login, ok := auth.ChildAt(0).(*core.Request)
	require.True(t, ok)
	assert.Equal(t, wantLogin.ID(), login.ID())
	assert.Equal(t, wantLogin.Description(), login.Description())
	assert.Equal(t, wantLogin.Definition(), login.Definition())
	require.NotNil(t, login.Response())
	assert.Equal(t, 200, login.Response().Status)
	assert.Equal(t, []byte(`{"ok":true}`), login.Response().Body())
	assert.True(t, wantLogin.Response().ReceivedAt.Equal(login.Response().ReceivedAt))

	wantUpload := wp.Root.ChildAt(1).(*core.Request)
	upload := gp.Root.ChildAt(1).(*core.Request)
	assert.Equal(t, wantUpload.Definition().Body, upload.Definition().Body)
}

func TestCodec_JSONRoundTrip(t *testing.T) {
	snap := SampleSnapshot()

	data, err := EncodeJSON(snap)
	require.NoError(t, err)

	got, err := DecodeJSON(data)
	require.NoError(t, err)
	assertSampleRoundTrip(t, snap, got)
}

func TestCodec_YAMLRoundTrip(t *testing.T) {
	snap := SampleSnapshot()

	data, err := EncodeYAML(snap)
	require.NoError(t, err)
	assert.Contains(t, string(data), "name: Billing API")

	got, err := DecodeYAML(data)
	require.NoError(t, err)
	assertSampleRoundTrip(t, snap, got)
}

func TestCodec_Lenient(t *testing.T) {
	t.Run("weakly typed scalars", func(t *testing.T) {
		doc := []byte(`
version: "1"
projects:
  - id: p1
    name: API
    root:
      kind: folder
      id: r1
      name: API
      expanded: "false"
      children:
        - kind: request
          id: q1
          name: Ping
          request:
            method: get
            url: https://example.com
            settings:
              timeout_ms: "1500"
            headers:
              - key: Accept
                value: 1
                enabled: 1
`)
		snap, err := DecodeYAML(doc)
		require.NoError(t, err)
		require.Len(t, snap.Projects, 1)

		root := snap.Projects[0].Root
		assert.False(t, root.Expanded())
		req := root.ChildAt(0).(*core.Request)
		def := req.Definition()
		assert.Equal(t, "GET", def.Method)
		assert.Equal(t, 1500, def.Settings.TimeoutMs)
		assert.Equal(t, []core.KeyValue{{Key: "Accept", Value: "1", Enabled: true}}, def.Headers)
		assert.Equal(t, core.BodyNone, def.Body.Type)
		assert.Equal(t, core.AuthTypeNone, def.Auth.Type)
	})

	t.Run("legacy variable list becomes the default environment", func(t *testing.T) {
		doc := []byte(`{"projects":[{"id":"p1","name":"API","variables":[
			{"key":"host","value":"example.com"},
			{"key":"port","value":8080,"enabled":false}]}]}`)
		snap, err := DecodeJSON(doc)
		require.NoError(t, err)

		p := snap.Projects[0]
		assert.Nil(t, p.Root)
		require.Len(t, p.Environments, 1)
		env := p.Environments[0]
		assert.Equal(t, core.DefaultEnvironmentName, env.Name)
		assert.Equal(t, "", env.ID)
		assert.Equal(t, []core.Variable{
			{Key: "host", Value: "example.com", Enabled: true},
			{Key: "port", Value: "8080", Enabled: false},
		}, env.Variables)
	})

	t.Run("legacy variable map is sorted by key", func(t *testing.T) {
		doc := []byte(`
projects:
  - id: p1
    name: API
    environments:
      - id: e1
        name: Prod
        variables: []
    variables:
      b: two
      a: one
`)
		snap, err := DecodeYAML(doc)
		require.NoError(t, err)

		envs := snap.Projects[0].Environments
		require.Len(t, envs, 2)
		assert.Equal(t, "Prod", envs[0].Name)
		assert.Equal(t, LegacyEnvironmentName, envs[1].Name)
		assert.Equal(t, "a", envs[1].Variables[0].Key)
		assert.Equal(t, "two", envs[1].Variables[1].Value)
	})

	t.Run("rejects unparseable input", func(t *testing.T) {
		_, err := DecodeJSON([]byte("{not json"))
		assert.ErrorIs(t, err, ErrInvalidDocument)

		_, err = DecodeYAML([]byte("projects: [unterminated"))
		assert.ErrorIs(t, err, ErrInvalidDocument)
	})

	t.Run("rejects structurally wrong input", func(t *testing.T) {
		_, err := DecodeJSON([]byte(`{"projects":"nope"}`))
		assert.ErrorIs(t, err, ErrInvalidDocument)
	})
}

func TestMemory(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	snap, err := m.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, snap)

	sample := SampleSnapshot()
	require.NoError(t, m.Save(ctx, sample))
	assert.Equal(t, 1, m.Saves())

	loaded, err := m.Load(ctx)
	require.NoError(t, err)
	assertSampleRoundTrip(t, sample, loaded)

	loaded.Projects[0].Name = "changed"
	again, err := m.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Billing API", again.Projects[0].Name)
	assert.WithinDuration(t, sample.SavedAt, again.SavedAt, time.Second)
}
