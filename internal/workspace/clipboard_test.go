package workspace

import (
	"testing"

	"github.com/artpar/apiary/internal/core"
	"github.com/artpar/apiary/internal/tree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClipboard_CutPaste(t *testing.T) {
	s := newTestStore()
	p := project(s)
	target, _ := s.AddFolder(p.ID, "Target")
	s.AddRequest(target, "Existing")
	req, _ := s.AddRequest(p.ID, "Login")

	require.True(t, s.Cut(req))
	assert.Equal(t, 2, project(s).Root.Len(), "cut leaves the tree untouched")

	pasted, ok := s.Paste(target)
	require.True(t, ok)
	assert.Equal(t, req, pasted)

	f, _ := s.State().Folder(target)
	assert.Equal(t, []string{"Login", "Existing"}, childNames(f))
	assert.Equal(t, 1, project(s).Root.Len())
	assert.Nil(t, s.State().Clipboard)

	_, ok = s.Paste(target)
	assert.False(t, ok, "clipboard is empty after a cut is pasted")
}

func TestClipboard_CopyPaste(t *testing.T) {
	s := newTestStore()
	p := project(s)
	folder, _ := s.AddFolder(p.ID, "Auth")
	s.AddRequest(folder, "Login")
	target, _ := s.AddFolder(p.ID, "Target")

	require.True(t, s.Copy(folder))

	first, ok := s.Paste(target)
	require.True(t, ok)
	second, ok := s.Paste(target)
	require.True(t, ok)
	assert.NotEqual(t, first, second)

	f, _ := s.State().Folder(target)
	assert.Equal(t, []string{"Auth", "Auth"}, childNames(f))
	require.NotNil(t, s.State().Clipboard)
	assert.Equal(t, core.ClipboardCopy, s.State().Clipboard.Mode)

	original, _ := s.State().Folder(folder)
	for id := range tree.CollectIDs(f.ChildAt(0)) {
		assert.NotContains(t, tree.CollectIDs(original), id)
	}
	assert.NoError(t, Validate(s.State()))
}

func TestClipboard_NoOps(t *testing.T) {
	s := newTestStore()
	p := project(s)
	req, _ := s.AddRequest(p.ID, "Login")
	folder, _ := s.AddFolder(p.ID, "Auth")

	_, ok := s.Paste(folder)
	assert.False(t, ok, "empty clipboard")

	assert.False(t, s.Cut("missing"))
	assert.False(t, s.Copy(p.Root.ID()), "the root cannot be copied")

	require.True(t, s.Copy(req))
	_, ok = s.Paste(req)
	assert.False(t, ok, "target is not a folder")

	require.True(t, s.ClearClipboard())
	assert.False(t, s.ClearClipboard())
}

func TestClipboard_RejectedCutStillClears(t *testing.T) {
	s := newTestStore()
	p := project(s)
	folder, _ := s.AddFolder(p.ID, "Auth")
	inner, _ := s.AddFolder(folder, "Inner")
	layout := func() []string {
		var ids []string
		for _, fi := range tree.Flatten(project(s).Root) {
			ids = append(ids, fi.ParentID+"/"+fi.Item.ID())
		}
		return ids
	}
	before := layout()

	require.True(t, s.Cut(folder))
	id, ok := s.Paste(inner)
	assert.False(t, ok, "a folder cannot be pasted into its own child")
	assert.Empty(t, id)
	assert.Nil(t, s.State().Clipboard)
	assert.Equal(t, before, layout())

	_, ok = s.Paste(p.ID)
	assert.False(t, ok, "the slot was consumed")
}

func TestClipboard_PasteIntoAnotherProject(t *testing.T) {
	s := newTestStore()
	req, _ := s.AddRequest(project(s).ID, "Login")
	other := s.AddProject("Other")

	require.True(t, s.Cut(req))
	_, ok := s.Paste(other)
	require.True(t, ok)

	_, owner := s.State().Request(req)
	require.NotNil(t, owner)
	assert.Equal(t, other, owner.ID)
	assert.NoError(t, Validate(s.State()))
}
