package core

import (
	"github.com/artpar/apiary/internal/ident"
)

// Kind distinguishes the two node types of a project tree.
type Kind string

const (
	KindFolder  Kind = "folder"
	KindRequest Kind = "request"
)

// Item is a node of a project tree: a *Folder or a *Request.
type Item interface {
	ID() string
	Name() string
	SetName(name string)
	Kind() Kind
}

// Folder is a container of folders and requests.
type Folder struct {
	id       string
	name     string
	expanded bool
	children []Item
}

// NewFolder creates an empty, expanded folder.
func NewFolder(id, name string) *Folder {
	return &Folder{
		id:       id,
		name:     name,
		expanded: true,
		children: make([]Item, 0),
	}
}

func (f *Folder) ID() string          { return f.id }
func (f *Folder) Name() string        { return f.name }
func (f *Folder) Kind() Kind          { return KindFolder }
func (f *Folder) Expanded() bool      { return f.expanded }
func (f *Folder) Len() int            { return len(f.children) }
func (f *Folder) SetName(name string) { f.name = name }

func (f *Folder) SetExpanded(expanded bool) {
	f.expanded = expanded
}

// Children returns a copy of the ordered child list.
func (f *Folder) Children() []Item {
	out := make([]Item, len(f.children))
	copy(out, f.children)
	return out
}

// ChildAt returns the child at index i, or nil when out of range.
func (f *Folder) ChildAt(i int) Item {
	if i < 0 || i >= len(f.children) {
		return nil
	}
	return f.children[i]
}

// IndexOf returns the position of the direct child with the given id, or -1.
func (f *Folder) IndexOf(id string) int {
	for i, c := range f.children {
		if c.ID() == id {
			return i
		}
	}
	return -1
}

// Append adds a child at the end.
func (f *Folder) Append(item Item) {
	f.children = append(f.children, item)
}

// Insert adds a child at index i, clamped to [0, Len()].
func (f *Folder) Insert(i int, item Item) {
	if i < 0 {
		i = 0
	}
	if i > len(f.children) {
		i = len(f.children)
	}
	f.children = append(f.children, nil)
	copy(f.children[i+1:], f.children[i:])
	f.children[i] = item
}

// RemoveAt removes and returns the child at index i.
func (f *Folder) RemoveAt(i int) Item {
	if i < 0 || i >= len(f.children) {
		return nil
	}
	item := f.children[i]
	f.children = append(f.children[:i], f.children[i+1:]...)
	return item
}

// SetChildren replaces the child list. Used for reordering.
func (f *Folder) SetChildren(children []Item) {
	f.children = make([]Item, len(children))
	copy(f.children, children)
}

// Request is a saved request: always a leaf.
type Request struct {
	id          string
	name        string
	description string
	definition  RequestDefinition
	response    *Response
}

// NewRequest creates a request with the given method and URL.
func NewRequest(id, name, method, rawURL string) *Request {
	return &Request{
		id:         id,
		name:       name,
		definition: NewRequestDefinition(method, rawURL),
	}
}

func (r *Request) ID() string          { return r.id }
func (r *Request) Name() string        { return r.name }
func (r *Request) Kind() Kind          { return KindRequest }
func (r *Request) Description() string { return r.description }
func (r *Request) Method() string      { return r.definition.Method }
func (r *Request) URL() string         { return r.definition.URL }
func (r *Request) Response() *Response { return r.response }
func (r *Request) SetName(name string) { r.name = name }

func (r *Request) SetDescription(desc string) {
	r.description = desc
}

// Definition returns a deep copy of the request definition.
func (r *Request) Definition() RequestDefinition {
	return r.definition.Clone()
}

// SetDefinition replaces the request definition.
func (r *Request) SetDefinition(def RequestDefinition) {
	r.definition = def.Clone()
}

// SetResponse attaches the latest execution result; nil clears it.
func (r *Request) SetResponse(resp *Response) {
	r.response = resp
}

// CopyItem deep-copies an item and its subtree. With a nil allocator ids and
// responses are preserved; otherwise every node of the copy gets a fresh id
// and responses are dropped.
func CopyItem(item Item, alloc ident.Allocator) Item {
	switch v := item.(type) {
	case *Folder:
		return copyFolder(v, alloc)
	case *Request:
		return copyRequest(v, alloc)
	}
	return nil
}

func copyFolder(f *Folder, alloc ident.Allocator) *Folder {
	id := f.id
	if alloc != nil {
		id = alloc.NewID()
	}
	out := &Folder{
		id:       id,
		name:     f.name,
		expanded: f.expanded,
		children: make([]Item, 0, len(f.children)),
	}
	for _, c := range f.children {
		out.children = append(out.children, CopyItem(c, alloc))
	}
	return out
}

func copyRequest(r *Request, alloc ident.Allocator) *Request {
	out := &Request{
		id:          r.id,
		name:        r.name,
		description: r.description,
		definition:  r.definition.Clone(),
		response:    r.response,
	}
	if alloc != nil {
		out.id = alloc.NewID()
		out.response = nil
	}
	return out
}
