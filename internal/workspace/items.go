package workspace

import (
	"github.com/artpar/apiary/internal/core"
	"github.com/artpar/apiary/internal/tree"
)

// AddRequest appends a new request to a folder. A project id addresses the
// project's root folder.
func (s *Store) AddRequest(parentID, name string) (string, bool) {
	var id string
	ok := s.update("add_request", func(st *State) bool {
		parent, p := st.Folder(parentID)
		if parent == nil {
			return false
		}
		var added bool
		id, added = s.engine.AddRequest(p.Root, parent.ID(), name)
		return added
	})
	return id, ok
}

// AddFolder appends a new folder to a folder.
func (s *Store) AddFolder(parentID, name string) (string, bool) {
	var id string
	ok := s.update("add_folder", func(st *State) bool {
		parent, p := st.Folder(parentID)
		if parent == nil {
			return false
		}
		var added bool
		id, added = s.engine.AddFolder(p.Root, parent.ID(), name)
		return added
	})
	return id, ok
}

// Rename renames a folder or request. A project id or a project root is
// rejected; RenameProject keeps the project and its root in sync.
func (s *Store) Rename(id, name string) bool {
	return s.update("rename", func(st *State) bool {
		item, p := st.Locate(id)
		if p == nil || item == core.Item(p.Root) {
			return false
		}
		return s.engine.Rename(p.Root, id, name)
	})
}

// Delete removes an item and its subtree, and drops every selection, dirty
// entry and clipboard slot that pointed into it.
func (s *Store) Delete(id string) bool {
	return s.update("delete", func(st *State) bool {
		_, p := st.Locate(id)
		if p == nil {
			return false
		}
		removed := s.engine.Delete(p.Root, id)
		if removed == nil {
			return false
		}
		st.prune(removed)
		return true
	})
}

// Duplicate inserts a re-keyed copy of an item right after it.
func (s *Store) Duplicate(id string) (string, bool) {
	var copyID string
	ok := s.update("duplicate", func(st *State) bool {
		_, p := st.Locate(id)
		if p == nil {
			return false
		}
		var done bool
		copyID, done = s.engine.Duplicate(p.Root, id)
		return done
	})
	return copyID, ok
}

// Sort reorders the direct children of a folder.
func (s *Store) Sort(folderID string, mode tree.SortMode) bool {
	return s.update("sort", func(st *State) bool {
		folder, p := st.Folder(folderID)
		if folder == nil {
			return false
		}
		return s.engine.Sort(p.Root, folder.ID(), mode)
	})
}

// Move relocates an item into a folder at targetIndex, counted after the
// item has been removed from its current parent. The target may belong to
// another project.
func (s *Store) Move(id, targetFolderID string, targetIndex int) bool {
	return s.update("move", func(st *State) bool {
		return s.move(st, id, targetFolderID, targetIndex)
	})
}

func (s *Store) move(st *State, id, targetFolderID string, targetIndex int) bool {
	_, src := st.Locate(id)
	target, dst := st.Folder(targetFolderID)
	if src == nil || target == nil {
		return false
	}
	if src == dst {
		return s.engine.Move(src.Root, id, target.ID(), targetIndex)
	}
	return s.engine.Transplant(src.Root, dst.Root, id, target.ID(), targetIndex)
}

// MoveBefore moves an item directly before anchorID.
func (s *Store) MoveBefore(id, anchorID string) bool {
	return s.update("move_before", func(st *State) bool {
		return s.moveNextTo(st, id, anchorID, 0)
	})
}

// MoveAfter moves an item directly after anchorID.
func (s *Store) MoveAfter(id, anchorID string) bool {
	return s.update("move_after", func(st *State) bool {
		return s.moveNextTo(st, id, anchorID, 1)
	})
}

func (s *Store) moveNextTo(st *State, id, anchorID string, offset int) bool {
	_, src := st.Locate(id)
	_, dst := st.Locate(anchorID)
	if src == nil || dst == nil {
		return false
	}
	if src == dst {
		if offset == 0 {
			return s.engine.MoveBefore(src.Root, id, anchorID)
		}
		return s.engine.MoveAfter(src.Root, id, anchorID)
	}
	parent := tree.FindParent(dst.Root, anchorID)
	if parent == nil {
		return false
	}
	return s.engine.Transplant(src.Root, dst.Root, id, parent.ID(), parent.IndexOf(anchorID)+offset)
}

// ToggleExpanded flips the expanded flag of a folder.
func (s *Store) ToggleExpanded(folderID string) bool {
	return s.update("toggle_expanded", func(st *State) bool {
		folder, p := st.Folder(folderID)
		if folder == nil {
			return false
		}
		return s.engine.SetExpanded(p.Root, folder.ID(), !folder.Expanded())
	})
}

// SetExpanded sets the expanded flag of a folder.
func (s *Store) SetExpanded(folderID string, expanded bool) bool {
	return s.update("set_expanded", func(st *State) bool {
		folder, p := st.Folder(folderID)
		if folder == nil {
			return false
		}
		return s.engine.SetExpanded(p.Root, folder.ID(), expanded)
	})
}

// SelectRequest makes a request active and selected, and activates its project.
func (s *Store) SelectRequest(id string) bool {
	return s.update("select_request", func(st *State) bool {
		req, p := st.Request(id)
		if req == nil {
			return false
		}
		if st.ActiveRequestID == id && st.SelectedItemID == id && st.ActiveProjectID == p.ID {
			return false
		}
		st.ActiveRequestID = id
		st.SelectedItemID = id
		st.ActiveProjectID = p.ID
		return true
	})
}

// SelectItem selects a folder or request. An empty id clears the selection.
func (s *Store) SelectItem(id string) bool {
	return s.update("select_item", func(st *State) bool {
		if st.SelectedItemID == id {
			return false
		}
		if id != "" {
			if item, _ := st.Locate(id); item == nil {
				return false
			}
		}
		st.SelectedItemID = id
		return true
	})
}

// UpdateRequest applies fn to the definition of a request and marks it dirty.
func (s *Store) UpdateRequest(id string, fn func(def *core.RequestDefinition)) bool {
	return s.update("update_request", func(st *State) bool {
		req, _ := st.Request(id)
		if req == nil {
			return false
		}
		def := req.Definition()
		fn(&def)
		req.SetDefinition(def)
		st.Dirty[id] = struct{}{}
		return true
	})
}

// SetDescription updates the description of a request and marks it dirty.
func (s *Store) SetDescription(id, description string) bool {
	return s.update("set_description", func(st *State) bool {
		req, _ := st.Request(id)
		if req == nil || req.Description() == description {
			return false
		}
		req.SetDescription(description)
		st.Dirty[id] = struct{}{}
		return true
	})
}

// MarkSaved removes a request from the dirty set.
func (s *Store) MarkSaved(id string) bool {
	return s.update("mark_saved", func(st *State) bool {
		if !st.IsDirty(id) {
			return false
		}
		delete(st.Dirty, id)
		return true
	})
}

// MarkUnsaved adds a request to the dirty set.
func (s *Store) MarkUnsaved(id string) bool {
	return s.update("mark_unsaved", func(st *State) bool {
		if st.IsDirty(id) {
			return false
		}
		if req, _ := st.Request(id); req == nil {
			return false
		}
		st.Dirty[id] = struct{}{}
		return true
	})
}

// IsDirty reports whether a request has unsaved edits.
func (s *Store) IsDirty(id string) bool {
	return s.State().IsDirty(id)
}

// DirtyIDs returns the dirty request ids in sorted order.
func (s *Store) DirtyIDs() []string {
	return s.State().DirtyIDs()
}

// SetResponse attaches the latest execution result to a request. The dirty
// set is not touched.
func (s *Store) SetResponse(id string, resp *core.Response) bool {
	return s.update("set_response", func(st *State) bool {
		req, _ := st.Request(id)
		if req == nil {
			return false
		}
		req.SetResponse(resp)
		return true
	})
}
