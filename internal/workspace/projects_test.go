package workspace

import (
	"testing"

	"github.com/artpar/apiary/internal/core"
	"github.com/artpar/apiary/internal/ident"
	"github.com/artpar/apiary/internal/tree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProjects_AddRenameInfo(t *testing.T) {
	s := newTestStore()

	id := s.AddProject("Billing")
	require.NotEmpty(t, id)
	assert.Equal(t, id, s.State().ActiveProjectID)

	require.True(t, s.RenameProject(id, "Payments"))
	p := s.State().Project(id)
	assert.Equal(t, "Payments", p.Name)
	assert.Equal(t, "Payments", p.Root.Name())
	assert.False(t, s.RenameProject(id, "Payments"))

	auth := core.NewBearerAuth("{{token}}")
	require.True(t, s.UpdateProjectInfo(id, ProjectInfo{Description: "Money", BaseURL: "https://pay.example.com", DefaultAuth: &auth}))
	p = s.State().Project(id)
	assert.Equal(t, "Money", p.Description)
	assert.Equal(t, "https://pay.example.com", p.BaseURL)
	require.NotNil(t, p.DefaultAuth)
	assert.NotSame(t, &auth, p.DefaultAuth)
	assert.False(t, s.UpdateProjectInfo("missing", ProjectInfo{}))
}

func TestProjects_DeleteReselects(t *testing.T) {
	s := newTestStore()
	first := project(s).ID
	second := s.AddProject("Second")
	req, _ := s.AddRequest(second, "Login")
	s.SelectRequest(req)
	s.MarkUnsaved(req)

	require.True(t, s.DeleteProject(second))

	st := s.State()
	require.Len(t, st.Projects, 1)
	assert.Equal(t, first, st.ActiveProjectID)
	assert.Empty(t, st.ActiveRequestID)
	assert.Empty(t, st.DirtyIDs())
	assert.False(t, s.DeleteProject(second))
}

func TestProjects_DeleteLastRecreatesDefault(t *testing.T) {
	s := newTestStore()
	only := project(s).ID

	require.True(t, s.DeleteProject(only))

	st := s.State()
	require.Len(t, st.Projects, 1)
	assert.NotEqual(t, only, st.Projects[0].ID)
	assert.Equal(t, DefaultProjectName, st.Projects[0].Name)
	assert.Equal(t, st.Projects[0].ID, st.ActiveProjectID)
	assert.NoError(t, Validate(st))
}

func TestProjects_SetActive(t *testing.T) {
	s := newTestStore()
	first := project(s).ID
	s.AddProject("Second")

	require.True(t, s.SetActiveProject(first))
	assert.Equal(t, first, s.State().ActiveProjectID)
	assert.False(t, s.SetActiveProject(first))
	assert.False(t, s.SetActiveProject("missing"))
	assert.Equal(t, first, s.State().ActiveProject().ID)
}

func TestProjects_ImportRekeysCollisions(t *testing.T) {
	s := newTestStore()
	existing, _ := s.AddRequest(project(s).ID, "Existing")

	// A converter using its own sequence produces ids that collide with ours.
	imported := core.NewProject(ident.NewSequence("t"), "Imported")
	imported.Root.Append(core.NewRequest(existing, "Clash", "GET", "https://example.com"))

	id := s.ImportProject(imported)
	require.NotEmpty(t, id)

	st := s.State()
	require.Len(t, st.Projects, 2)
	assert.Equal(t, id, st.ActiveProjectID)
	assert.NoError(t, Validate(st))

	p := st.Project(id)
	requests := tree.Requests(p.Root)
	require.Len(t, requests, 1)
	assert.Equal(t, "Clash", requests[0].Name())
	assert.NotEqual(t, existing, requests[0].ID())

	assert.Equal(t, "t-1", imported.Environments[0].ID, "the caller's project is not modified")
	assert.Equal(t, "", s.ImportProject(nil))
}

func TestProjects_ImportWithNilEnvironment(t *testing.T) {
	s := newTestStore()

	imported := core.NewProject(ident.NewSequence("x"), "Imported")
	imported.Environments = []*core.Environment{nil}
	imported.ActiveEnvironmentID = ""

	id := s.ImportProject(imported)
	require.NotEmpty(t, id)
	require.NoError(t, Validate(s.State()))

	p := s.State().Project(id)
	require.Len(t, p.Environments, 1)
	assert.Equal(t, core.DefaultEnvironmentName, p.Environments[0].Name)
	assert.Equal(t, p.Environments[0].ID, p.ActiveEnvironmentID)
}
