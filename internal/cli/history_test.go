package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/artpar/apiary/internal/app"
	"github.com/artpar/apiary/internal/ident"
	"github.com/artpar/apiary/internal/storage/sqlite"
	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistoryCommand(t *testing.T) {
	dir := t.TempDir()
	alloc := ident.NewSequence("h")

	exec := func(args ...string) (string, error) {
		cmd := NewRootCommand("test", app.WithAllocator(alloc), app.WithLogger(hclog.NewNullLogger()))
		out := &bytes.Buffer{}
		cmd.SetOut(out)
		cmd.SetErr(&bytes.Buffer{})
		cmd.SetArgs(append([]string{"--backend", "sqlite", "--data-dir", dir}, args...))
		err := cmd.ExecuteContext(context.Background())
		return strings.TrimSpace(out.String()), err
	}
	run := func(t *testing.T, args ...string) string {
		t.Helper()
		out, err := exec(args...)
		require.NoError(t, err, strings.Join(args, " "))
		return out
	}

	run(t, "project", "add", "First")
	run(t, "project", "add", "Second")

	lines := strings.Split(run(t, "history"), "\n")
	require.Len(t, lines, 2, "listing does not add a version")
	assert.True(t, strings.HasPrefix(lines[0], "* "))
	assert.Contains(t, lines[0], "3 projects")
	assert.Contains(t, lines[1], "2 projects")
	oldest := strings.Fields(lines[1])[0]

	t.Run("restore an earlier version", func(t *testing.T) {
		out := run(t, "history", "restore", oldest)
		assert.Equal(t, "Restored version "+oldest+": 2 projects", out)

		list := run(t, "project", "list")
		assert.Contains(t, list, "First")
		assert.NotContains(t, list, "Second")

		lines := strings.Split(run(t, "history"), "\n")
		require.Len(t, lines, 3)
		assert.Contains(t, lines[0], "2 projects")
		assert.Contains(t, lines[1], "3 projects")
	})

	t.Run("unknown version", func(t *testing.T) {
		_, err := exec("history", "restore", "999")
		assert.ErrorIs(t, err, sqlite.ErrVersionNotFound)

		_, err = exec("history", "restore", "latest")
		assert.Error(t, err)
	})

	t.Run("backend without history", func(t *testing.T) {
		_, _, err := newHarness(t).exec("history")
		assert.ErrorIs(t, err, errNoHistory)
	})
}
