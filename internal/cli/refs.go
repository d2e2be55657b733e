package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/artpar/apiary/internal/core"
	"github.com/artpar/apiary/internal/workspace"
)

// errNoChange reports a store operation that left the workspace untouched.
var errNoChange = errors.New("nothing changed")

// findProject resolves a project by id or name. An empty ref is the active
// project.
func findProject(st *workspace.State, ref string) (*core.Project, error) {
	if ref == "" {
		if p := st.ActiveProject(); p != nil {
			return p, nil
		}
		return nil, fmt.Errorf("no active project: %w", workspace.ErrNotFound)
	}
	if p := st.Project(ref); p != nil {
		return p, nil
	}
	for _, p := range st.Projects {
		if p.Name == ref {
			return p, nil
		}
	}
	return nil, fmt.Errorf("project %q: %w", ref, workspace.ErrNotFound)
}

// findItem resolves an item by id, or by a slash separated path of names
// inside the active project. An empty ref or "/" is the project root.
func findItem(st *workspace.State, ref string) (core.Item, error) {
	if item, _ := st.Locate(ref); item != nil {
		return item, nil
	}

	p, err := findProject(st, "")
	if err != nil {
		return nil, err
	}

	var current core.Item = p.Root
	for _, name := range strings.Split(strings.Trim(ref, "/"), "/") {
		if name == "" {
			continue
		}
		folder, ok := current.(*core.Folder)
		if !ok {
			return nil, fmt.Errorf("item %q: %w", ref, workspace.ErrNotFound)
		}
		current = nil
		for _, child := range folder.Children() {
			if child.Name() == name {
				current = child
				break
			}
		}
		if current == nil {
			return nil, fmt.Errorf("item %q: %w", ref, workspace.ErrNotFound)
		}
	}
	return current, nil
}

func findFolder(st *workspace.State, ref string) (*core.Folder, error) {
	item, err := findItem(st, ref)
	if err != nil {
		return nil, err
	}
	folder, ok := item.(*core.Folder)
	if !ok {
		return nil, fmt.Errorf("%q is not a folder", ref)
	}
	return folder, nil
}

func findRequest(st *workspace.State, ref string) (*core.Request, error) {
	item, err := findItem(st, ref)
	if err != nil {
		return nil, err
	}
	req, ok := item.(*core.Request)
	if !ok {
		return nil, fmt.Errorf("%q is not a request", ref)
	}
	return req, nil
}

// findEnvironment resolves an environment of p by id or name.
func findEnvironment(p *core.Project, ref string) (*core.Environment, error) {
	if env := p.Environment(ref); env != nil {
		return env, nil
	}
	for _, env := range p.Environments {
		if env.Name == ref {
			return env, nil
		}
	}
	return nil, fmt.Errorf("environment %q: %w", ref, workspace.ErrNotFound)
}

// changed turns a store result into an error for the user.
func changed(ok bool, what string) error {
	if !ok {
		return fmt.Errorf("%s: %w", what, errNoChange)
	}
	return nil
}
