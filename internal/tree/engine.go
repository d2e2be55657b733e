package tree

import (
	"sort"
	"strings"

	"github.com/artpar/apiary/internal/core"
	"github.com/artpar/apiary/internal/ident"
)

// CopySuffix is appended to the name of a duplicated item.
const CopySuffix = " (copy)"

// SortMode selects how Sort orders the children of a folder.
type SortMode string

const (
	SortManual       SortMode = "manual"
	SortAlphabetical SortMode = "alphabetical"
	SortMethod       SortMode = "method"
)

// Engine applies structural mutations to a project tree. Every operation is a
// no-op when its arguments do not resolve, and reports whether the tree changed.
type Engine struct {
	alloc ident.Allocator
}

// NewEngine creates an engine that allocates ids with alloc.
func NewEngine(alloc ident.Allocator) *Engine {
	return &Engine{alloc: ident.OrDefault(alloc)}
}

// AddRequest appends a new GET request to the folder parentID.
func (e *Engine) AddRequest(root *core.Folder, parentID, name string) (string, bool) {
	parent := FindFolder(root, parentID)
	if parent == nil {
		return "", false
	}
	req := core.NewRequest(e.alloc.NewID(), name, "GET", "")
	parent.Append(req)
	return req.ID(), true
}

// AddFolder appends a new empty folder to the folder parentID.
func (e *Engine) AddFolder(root *core.Folder, parentID, name string) (string, bool) {
	parent := FindFolder(root, parentID)
	if parent == nil {
		return "", false
	}
	folder := core.NewFolder(e.alloc.NewID(), name)
	parent.Append(folder)
	return folder.ID(), true
}

// Rename updates the name of an item in place. Empty names are accepted;
// callers validate.
func (e *Engine) Rename(root *core.Folder, itemID, name string) bool {
	item := FindItem(root, itemID)
	if item == nil || item.Name() == name {
		return false
	}
	item.SetName(name)
	return true
}

// SetExpanded sets the display flag of a folder.
func (e *Engine) SetExpanded(root *core.Folder, folderID string, expanded bool) bool {
	folder := FindFolder(root, folderID)
	if folder == nil || folder.Expanded() == expanded {
		return false
	}
	folder.SetExpanded(expanded)
	return true
}

// Delete removes an item and its subtree. It returns the removed ids, or nil
// when nothing was removed. The root cannot be deleted.
func (e *Engine) Delete(root *core.Folder, itemID string) map[string]struct{} {
	parent := FindParent(root, itemID)
	if parent == nil {
		return nil
	}
	item := parent.RemoveAt(parent.IndexOf(itemID))
	return CollectIDs(item)
}

// Duplicate inserts a re-keyed copy of the item right after the original and
// returns the id of the copy.
func (e *Engine) Duplicate(root *core.Folder, itemID string) (string, bool) {
	parent := FindParent(root, itemID)
	if parent == nil {
		return "", false
	}
	idx := parent.IndexOf(itemID)
	clone := core.CopyItem(parent.ChildAt(idx), e.alloc)
	clone.SetName(clone.Name() + CopySuffix)
	parent.Insert(idx+1, clone)
	return clone.ID(), true
}

// InsertCopy appends a re-keyed copy of item to the folder targetFolderID of
// root. The item may come from another tree.
func (e *Engine) InsertCopy(root *core.Folder, item core.Item, targetFolderID string) (string, bool) {
	target := FindFolder(root, targetFolderID)
	if item == nil || target == nil {
		return "", false
	}
	clone := core.CopyItem(item, e.alloc)
	target.Append(clone)
	return clone.ID(), true
}

// Move relocates an item into targetFolderID at targetIndex. The index refers
// to the target's children after the item has been removed from its current
// parent, and is clamped to [0, len].
func (e *Engine) Move(root *core.Folder, itemID, targetFolderID string, targetIndex int) bool {
	item := FindItem(root, itemID)
	if item == nil {
		return false
	}
	if itemID == targetFolderID {
		return false
	}
	if _, isFolder := item.(*core.Folder); isFolder {
		if _, inside := CollectIDs(item)[targetFolderID]; inside {
			return false
		}
	}

	parent := FindParent(root, itemID)
	target := FindFolder(root, targetFolderID)
	if parent == nil || target == nil {
		return false
	}

	from := parent.IndexOf(itemID)
	parent.RemoveAt(from)
	to := clamp(targetIndex, 0, target.Len())
	target.Insert(to, item)

	return parent != target || from != to
}

// MoveBefore moves an item to the position directly before anchorID.
func (e *Engine) MoveBefore(root *core.Folder, itemID, anchorID string) bool {
	return e.moveNextTo(root, itemID, anchorID, 0)
}

// MoveAfter moves an item to the position directly after anchorID.
func (e *Engine) MoveAfter(root *core.Folder, itemID, anchorID string) bool {
	return e.moveNextTo(root, itemID, anchorID, 1)
}

func (e *Engine) moveNextTo(root *core.Folder, itemID, anchorID string, offset int) bool {
	if itemID == anchorID {
		return false
	}
	parent := FindParent(root, anchorID)
	if parent == nil {
		return false
	}
	idx := parent.IndexOf(anchorID)
	if cur := parent.IndexOf(itemID); cur >= 0 && cur < idx {
		idx--
	}
	return e.Move(root, itemID, parent.ID(), idx+offset)
}

// Transplant moves an item from the tree src into the folder targetFolderID
// of the tree dst. When both roots are the same tree it behaves like Move.
func (e *Engine) Transplant(src, dst *core.Folder, itemID, targetFolderID string, targetIndex int) bool {
	if src == dst {
		return e.Move(src, itemID, targetFolderID, targetIndex)
	}
	parent := FindParent(src, itemID)
	target := FindFolder(dst, targetFolderID)
	if parent == nil || target == nil {
		return false
	}
	item := parent.RemoveAt(parent.IndexOf(itemID))
	target.Insert(clamp(targetIndex, 0, target.Len()), item)
	return true
}

// Sort reorders the direct children of a folder.
func (e *Engine) Sort(root *core.Folder, folderID string, mode SortMode) bool {
	folder := FindFolder(root, folderID)
	if folder == nil {
		return false
	}

	children := folder.Children()
	var less func(a, b core.Item) bool
	switch mode {
	case SortAlphabetical:
		less = byName
	case SortMethod:
		less = byMethod
	default:
		return false
	}

	sort.SliceStable(children, func(i, j int) bool {
		return less(children[i], children[j])
	})

	changed := false
	for i, c := range children {
		if folder.ChildAt(i) != c {
			changed = true
			break
		}
	}
	if changed {
		folder.SetChildren(children)
	}
	return changed
}

func byName(a, b core.Item) bool {
	return strings.ToLower(a.Name()) < strings.ToLower(b.Name())
}

// byMethod orders requests by method precedence and name; folders follow all
// requests, ordered by name.
func byMethod(a, b core.Item) bool {
	ra, aIsReq := a.(*core.Request)
	rb, bIsReq := b.(*core.Request)
	switch {
	case aIsReq && !bIsReq:
		return true
	case !aIsReq && bIsReq:
		return false
	case !aIsReq && !bIsReq:
		return byName(a, b)
	}
	pa, pb := methodRank(ra.Method()), methodRank(rb.Method())
	if pa != pb {
		return pa < pb
	}
	return byName(a, b)
}

func methodRank(method string) int {
	method = strings.ToUpper(method)
	for i, m := range core.Methods {
		if m == method {
			return i
		}
	}
	return len(core.Methods)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
