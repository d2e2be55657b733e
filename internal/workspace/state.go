package workspace

import (
	"sort"

	"github.com/artpar/apiary/internal/core"
	"github.com/artpar/apiary/internal/storage"
	"github.com/artpar/apiary/internal/tree"
)

// DefaultProjectName names the project created for an empty workspace.
const DefaultProjectName = "My Project"

// State is one immutable snapshot of the workspace. Values returned by the
// Store are shared; callers must not mutate them.
type State struct {
	Version         uint64
	Projects        []*core.Project
	ActiveProjectID string
	ActiveRequestID string
	SelectedItemID  string
	Dirty           map[string]struct{}
	Clipboard       *core.Clipboard
}

func newState() *State {
	return &State{Dirty: make(map[string]struct{})}
}

// Clone creates a deep copy that keeps every id.
func (s *State) Clone() *State {
	out := &State{
		Version:         s.Version,
		Projects:        make([]*core.Project, len(s.Projects)),
		ActiveProjectID: s.ActiveProjectID,
		ActiveRequestID: s.ActiveRequestID,
		SelectedItemID:  s.SelectedItemID,
		Dirty:           make(map[string]struct{}, len(s.Dirty)),
	}
	for i, p := range s.Projects {
		out.Projects[i] = p.Clone()
	}
	for id := range s.Dirty {
		out.Dirty[id] = struct{}{}
	}
	if s.Clipboard != nil {
		cb := *s.Clipboard
		out.Clipboard = &cb
	}
	return out
}

// Project returns the project with the given id.
func (s *State) Project(id string) *core.Project {
	if i := s.ProjectIndex(id); i >= 0 {
		return s.Projects[i]
	}
	return nil
}

// ProjectIndex returns the position of the project, or -1.
func (s *State) ProjectIndex(id string) int {
	for i, p := range s.Projects {
		if p.ID == id {
			return i
		}
	}
	return -1
}

// ActiveProject returns the active project, or nil.
func (s *State) ActiveProject() *core.Project {
	return s.Project(s.ActiveProjectID)
}

// Locate finds the item with the given id in any project. A project id
// resolves to that project's root folder.
func (s *State) Locate(id string) (core.Item, *core.Project) {
	if id == "" {
		return nil, nil
	}
	for _, p := range s.Projects {
		if p.ID == id && p.Root != nil {
			return p.Root, p
		}
	}
	for _, p := range s.Projects {
		if item := tree.FindItem(p.Root, id); item != nil {
			return item, p
		}
	}
	return nil, nil
}

// Request returns the request with the given id and its owning project.
func (s *State) Request(id string) (*core.Request, *core.Project) {
	item, p := s.Locate(id)
	if req, ok := item.(*core.Request); ok {
		return req, p
	}
	return nil, nil
}

// Folder returns the folder with the given id (or a project's root when id is
// a project id) and its owning project.
func (s *State) Folder(id string) (*core.Folder, *core.Project) {
	item, p := s.Locate(id)
	if f, ok := item.(*core.Folder); ok {
		return f, p
	}
	return nil, nil
}

// Environment returns the environment with the given id and its project.
func (s *State) Environment(id string) (*core.Environment, *core.Project) {
	for _, p := range s.Projects {
		if env := p.Environment(id); env != nil {
			return env, p
		}
	}
	return nil, nil
}

// ActiveRequest returns the active request, or nil.
func (s *State) ActiveRequest() *core.Request {
	req, _ := s.Request(s.ActiveRequestID)
	return req
}

// IsDirty reports whether the request has unsaved edits.
func (s *State) IsDirty(id string) bool {
	_, ok := s.Dirty[id]
	return ok
}

// DirtyIDs returns the dirty request ids in sorted order.
func (s *State) DirtyIDs() []string {
	ids := make([]string, 0, len(s.Dirty))
	for id := range s.Dirty {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// prune drops every reference to a removed id.
func (s *State) prune(removed map[string]struct{}) {
	if _, ok := removed[s.ActiveRequestID]; ok {
		s.ActiveRequestID = ""
	}
	if _, ok := removed[s.SelectedItemID]; ok {
		s.SelectedItemID = ""
	}
	for id := range removed {
		delete(s.Dirty, id)
	}
	if s.Clipboard != nil {
		if _, ok := removed[s.Clipboard.ItemID]; ok {
			s.Clipboard = nil
		}
	}
}

func (s *State) toSnapshot() *storage.Snapshot {
	snap := &storage.Snapshot{
		Projects:        s.Projects,
		ActiveProjectID: s.ActiveProjectID,
		ActiveRequestID: s.ActiveRequestID,
		SelectedItemID:  s.SelectedItemID,
		Dirty:           s.DirtyIDs(),
	}
	if s.Clipboard != nil {
		cb := *s.Clipboard
		snap.Clipboard = &cb
	}
	return snap
}

// ids returns every id in use: projects, items, environments and variables.
func (s *State) ids() map[string]struct{} {
	ids := make(map[string]struct{})
	for _, p := range s.Projects {
		ids[p.ID] = struct{}{}
		if p.Root != nil {
			for id := range tree.CollectIDs(p.Root) {
				ids[id] = struct{}{}
			}
		}
		for _, env := range p.Environments {
			ids[env.ID] = struct{}{}
			for _, v := range env.Variables {
				ids[v.ID] = struct{}{}
			}
		}
	}
	return ids
}
