// Package tree implements read-only traversal and structural mutation of a
// project's folder tree.
package tree

import (
	"github.com/artpar/apiary/internal/core"
)

// FlatItem is one row of a flattened tree.
type FlatItem struct {
	Item     core.Item
	Depth    int
	ParentID string
}

// FindItem searches the tree depth-first for an item by id. The root counts.
func FindItem(root *core.Folder, id string) core.Item {
	if root == nil {
		return nil
	}
	if root.ID() == id {
		return root
	}
	for _, child := range root.Children() {
		if child.ID() == id {
			return child
		}
		if f, ok := child.(*core.Folder); ok {
			if found := FindItem(f, id); found != nil {
				return found
			}
		}
	}
	return nil
}

// FindParent returns the folder whose children directly contain id.
func FindParent(root *core.Folder, id string) *core.Folder {
	if root == nil {
		return nil
	}
	if root.IndexOf(id) >= 0 {
		return root
	}
	for _, child := range root.Children() {
		if f, ok := child.(*core.Folder); ok {
			if parent := FindParent(f, id); parent != nil {
				return parent
			}
		}
	}
	return nil
}

// FindFolder returns the folder with the given id. The root counts.
func FindFolder(root *core.Folder, id string) *core.Folder {
	f, _ := FindItem(root, id).(*core.Folder)
	return f
}

// FindRequest returns the request with the given id.
func FindRequest(root *core.Folder, id string) *core.Request {
	r, _ := FindItem(root, id).(*core.Request)
	return r
}

// CollectIDs returns the id of item and of every descendant.
func CollectIDs(item core.Item) map[string]struct{} {
	ids := make(map[string]struct{})
	collectIDs(item, ids)
	return ids
}

func collectIDs(item core.Item, ids map[string]struct{}) {
	if item == nil {
		return
	}
	ids[item.ID()] = struct{}{}
	if f, ok := item.(*core.Folder); ok {
		for _, child := range f.Children() {
			collectIDs(child, ids)
		}
	}
}

// Flatten lists the children of root in display order, descending only into
// expanded folders. The root itself is not listed.
func Flatten(root *core.Folder) []FlatItem {
	var out []FlatItem
	flatten(root, 0, &out)
	return out
}

func flatten(folder *core.Folder, depth int, out *[]FlatItem) {
	if folder == nil {
		return
	}
	for _, child := range folder.Children() {
		*out = append(*out, FlatItem{Item: child, Depth: depth, ParentID: folder.ID()})
		if f, ok := child.(*core.Folder); ok && f.Expanded() {
			flatten(f, depth+1, out)
		}
	}
}

// Walk visits every item below root depth-first, parents before children.
func Walk(root *core.Folder, fn func(item core.Item, parent *core.Folder)) {
	if root == nil {
		return
	}
	for _, child := range root.Children() {
		fn(child, root)
		if f, ok := child.(*core.Folder); ok {
			Walk(f, fn)
		}
	}
}

// Requests returns every request in the tree in depth-first order.
func Requests(root *core.Folder) []*core.Request {
	var out []*core.Request
	Walk(root, func(item core.Item, _ *core.Folder) {
		if r, ok := item.(*core.Request); ok {
			out = append(out, r)
		}
	})
	return out
}
