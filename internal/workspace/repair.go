package workspace

import (
	"fmt"

	"github.com/artpar/apiary/internal/core"
	"github.com/artpar/apiary/internal/ident"
	"github.com/artpar/apiary/internal/storage"
	"github.com/artpar/apiary/internal/tree"
	"github.com/hashicorp/go-multierror"
)

// Repair turns a loaded snapshot into a valid State. Structural damage is
// fixed with safe defaults instead of failing; each fix is described in the
// returned list.
func Repair(snap *storage.Snapshot, alloc ident.Allocator) (*State, []string) {
	alloc = ident.OrDefault(alloc)
	st := newState()
	var fixes []string

	seen := make(map[string]struct{})
	for _, p := range snap.Projects {
		if p == nil {
			fixes = append(fixes, "dropped empty project entry")
			continue
		}
		fixes = append(fixes, repairProject(p, alloc, seen)...)
		st.Projects = append(st.Projects, p)
	}
	if len(st.Projects) == 0 {
		st.Projects = []*core.Project{core.NewProject(alloc, DefaultProjectName)}
		fixes = append(fixes, "created default project")
	}

	st.ActiveProjectID = snap.ActiveProjectID
	if st.Project(st.ActiveProjectID) == nil {
		if snap.ActiveProjectID != "" {
			fixes = append(fixes, fmt.Sprintf("reset dangling active project %q", snap.ActiveProjectID))
		}
		st.ActiveProjectID = st.Projects[0].ID
	}

	if req, _ := st.Request(snap.ActiveRequestID); req != nil {
		st.ActiveRequestID = snap.ActiveRequestID
	} else if snap.ActiveRequestID != "" {
		fixes = append(fixes, fmt.Sprintf("cleared dangling active request %q", snap.ActiveRequestID))
	}

	if item, _ := st.Locate(snap.SelectedItemID); item != nil {
		st.SelectedItemID = snap.SelectedItemID
	} else if snap.SelectedItemID != "" {
		fixes = append(fixes, fmt.Sprintf("cleared dangling selection %q", snap.SelectedItemID))
	}

	for _, id := range snap.Dirty {
		if req, _ := st.Request(id); req != nil {
			st.Dirty[id] = struct{}{}
		} else {
			fixes = append(fixes, fmt.Sprintf("dropped dirty entry %q", id))
		}
	}

	if cb := snap.Clipboard; cb != nil {
		item, p := st.Locate(cb.ItemID)
		validMode := cb.Mode == core.ClipboardCut || cb.Mode == core.ClipboardCopy
		if item != nil && item != core.Item(p.Root) && validMode {
			c := *cb
			st.Clipboard = &c
		} else {
			fixes = append(fixes, "cleared invalid clipboard")
		}
	}

	return st, fixes
}

// repairProject fixes a single project in place. Ids that are empty or
// already in seen are re-keyed; every id kept is added to seen.
func repairProject(p *core.Project, alloc ident.Allocator, seen map[string]struct{}) []string {
	var fixes []string
	claim := func(id, what string) string {
		if _, dup := seen[id]; id == "" || dup {
			newID := alloc.NewID()
			if id != "" {
				fixes = append(fixes, fmt.Sprintf("re-keyed duplicate %s id %q", what, id))
			}
			id = newID
		}
		seen[id] = struct{}{}
		return id
	}

	p.ID = claim(p.ID, "project")

	if p.Root == nil {
		p.Root = core.NewFolder(alloc.NewID(), p.Name)
		fixes = append(fixes, fmt.Sprintf("project %q: created missing root folder", p.Name))
	}
	p.Root = rekeyTree(p.Root, claim).(*core.Folder)

	envs := p.Environments[:0]
	for _, env := range p.Environments {
		if env == nil {
			continue
		}
		env.ID = claim(env.ID, "environment")
		for i := range env.Variables {
			env.Variables[i].ID = claim(env.Variables[i].ID, "variable")
		}
		envs = append(envs, env)
	}
	p.Environments = envs

	if len(p.Environments) == 0 {
		env := core.NewEnvironment(claim("", "environment"), core.DefaultEnvironmentName)
		p.Environments = []*core.Environment{env}
		fixes = append(fixes, fmt.Sprintf("project %q: synthesized %s environment", p.Name, core.DefaultEnvironmentName))
	}

	if p.Environment(p.ActiveEnvironmentID) == nil {
		if p.ActiveEnvironmentID != "" {
			fixes = append(fixes, fmt.Sprintf("project %q: reset dangling active environment", p.Name))
		}
		p.ActiveEnvironmentID = p.Environments[0].ID
	}

	return fixes
}

// rekeyTree returns item with every id passed through claim. Nodes whose id
// changes are rebuilt, since items expose no id setter.
func rekeyTree(item core.Item, claim func(id, what string) string) core.Item {
	switch it := item.(type) {
	case *core.Folder:
		id := claim(it.ID(), "folder")
		folder := it
		if id != it.ID() {
			folder = core.NewFolder(id, it.Name())
			folder.SetExpanded(it.Expanded())
		}
		children := it.Children()
		for i, child := range children {
			children[i] = rekeyTree(child, claim)
		}
		folder.SetChildren(children)
		return folder
	case *core.Request:
		id := claim(it.ID(), "request")
		if id == it.ID() {
			return it
		}
		req := core.NewRequest(id, it.Name(), it.Method(), it.URL())
		req.SetDescription(it.Description())
		req.SetDefinition(it.Definition())
		req.SetResponse(it.Response())
		return req
	}
	return item
}

// Validate reports every invariant violation of a state.
func Validate(st *State) error {
	var result *multierror.Error

	if len(st.Projects) == 0 {
		result = multierror.Append(result, fmt.Errorf("workspace has no projects"))
	}

	seen := make(map[string]struct{})
	check := func(id, what string) {
		if id == "" {
			result = multierror.Append(result, fmt.Errorf("%s has an empty id", what))
			return
		}
		if _, dup := seen[id]; dup {
			result = multierror.Append(result, fmt.Errorf("duplicate id %q (%s)", id, what))
		}
		seen[id] = struct{}{}
	}

	for _, p := range st.Projects {
		check(p.ID, "project")
		if p.Root == nil {
			result = multierror.Append(result, fmt.Errorf("project %q has no root folder", p.ID))
		} else {
			check(p.Root.ID(), "folder")
			tree.Walk(p.Root, func(item core.Item, _ *core.Folder) {
				check(item.ID(), string(item.Kind()))
			})
		}
		if len(p.Environments) == 0 {
			result = multierror.Append(result, fmt.Errorf("project %q has no environments", p.ID))
		}
		for _, env := range p.Environments {
			check(env.ID, "environment")
			for _, v := range env.Variables {
				check(v.ID, "variable")
			}
		}
		if p.ActiveEnvironmentID != "" && p.Environment(p.ActiveEnvironmentID) == nil {
			result = multierror.Append(result, fmt.Errorf("project %q: active environment %q does not exist", p.ID, p.ActiveEnvironmentID))
		}
	}

	if st.Project(st.ActiveProjectID) == nil {
		result = multierror.Append(result, fmt.Errorf("active project %q does not exist", st.ActiveProjectID))
	}
	if st.ActiveRequestID != "" {
		if req, _ := st.Request(st.ActiveRequestID); req == nil {
			result = multierror.Append(result, fmt.Errorf("active request %q does not exist", st.ActiveRequestID))
		}
	}
	if st.SelectedItemID != "" {
		if item, _ := st.Locate(st.SelectedItemID); item == nil {
			result = multierror.Append(result, fmt.Errorf("selected item %q does not exist", st.SelectedItemID))
		}
	}
	for _, id := range st.DirtyIDs() {
		if req, _ := st.Request(id); req == nil {
			result = multierror.Append(result, fmt.Errorf("dirty id %q is not a request", id))
		}
	}
	if st.Clipboard != nil {
		if item, _ := st.Locate(st.Clipboard.ItemID); item == nil {
			result = multierror.Append(result, fmt.Errorf("clipboard item %q does not exist", st.Clipboard.ItemID))
		}
	}

	return result.ErrorOrNil()
}
