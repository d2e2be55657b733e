package workspace

import (
	"github.com/artpar/apiary/internal/core"
	"github.com/artpar/apiary/internal/tree"
)

// ProjectInfo holds the descriptive fields of a project.
type ProjectInfo struct {
	Description string
	Icon        string
	BaseURL     string
	DefaultAuth *core.Auth
}

// AddProject appends a new empty project and makes it active.
func (s *Store) AddProject(name string) string {
	var id string
	s.update("add_project", func(st *State) bool {
		p := core.NewProject(s.alloc, name)
		st.Projects = append(st.Projects, p)
		st.ActiveProjectID = p.ID
		id = p.ID
		return true
	})
	return id
}

// RenameProject renames a project and its root folder.
func (s *Store) RenameProject(id, name string) bool {
	return s.update("rename_project", func(st *State) bool {
		p := st.Project(id)
		if p == nil || p.Name == name {
			return false
		}
		p.Name = name
		p.Root.SetName(name)
		return true
	})
}

// UpdateProjectInfo replaces the descriptive fields of a project.
func (s *Store) UpdateProjectInfo(id string, info ProjectInfo) bool {
	return s.update("update_project_info", func(st *State) bool {
		p := st.Project(id)
		if p == nil {
			return false
		}
		p.Description = info.Description
		p.Icon = info.Icon
		p.BaseURL = info.BaseURL
		p.DefaultAuth = nil
		if info.DefaultAuth != nil {
			auth := *info.DefaultAuth
			p.DefaultAuth = &auth
		}
		return true
	})
}

// DeleteProject removes a project. Deleting the last project recreates a
// default one; deleting the active project activates the first remaining.
func (s *Store) DeleteProject(id string) bool {
	return s.update("delete_project", func(st *State) bool {
		idx := st.ProjectIndex(id)
		if idx < 0 {
			return false
		}
		p := st.Projects[idx]
		st.Projects = append(st.Projects[:idx], st.Projects[idx+1:]...)
		st.prune(tree.CollectIDs(p.Root))

		if len(st.Projects) == 0 {
			st.Projects = []*core.Project{core.NewProject(s.alloc, DefaultProjectName)}
		}
		if st.ActiveProjectID == id {
			st.ActiveProjectID = st.Projects[0].ID
		}
		return true
	})
}

// SetActiveProject activates a project. Unknown ids are ignored.
func (s *Store) SetActiveProject(id string) bool {
	return s.update("set_active_project", func(st *State) bool {
		if st.ActiveProjectID == id || st.Project(id) == nil {
			return false
		}
		st.ActiveProjectID = id
		return true
	})
}

// ImportProject adds a project produced by a converter and activates it. The
// project is repaired first; ids colliding with the workspace are re-keyed.
func (s *Store) ImportProject(p *core.Project) string {
	if p == nil {
		return ""
	}
	p = p.Clone()

	var id string
	s.update("import_project", func(st *State) bool {
		seen := st.ids()
		for _, r := range repairProject(p, s.alloc, seen) {
			s.logger.Debug("repaired imported project", "fix", r)
		}
		st.Projects = append(st.Projects, p)
		st.ActiveProjectID = p.ID
		id = p.ID
		return true
	})
	return id
}
