package core

import (
	"github.com/artpar/apiary/internal/ident"
)

// DefaultEnvironmentName names environments synthesized for new or repaired projects.
const DefaultEnvironmentName = "Default"

// Project is a named tree of folders and requests with its own environments.
type Project struct {
	ID                  string
	Name                string
	Description         string
	Icon                string
	BaseURL             string
	DefaultAuth         *Auth
	Root                *Folder
	Environments        []*Environment
	ActiveEnvironmentID string
}

// NewProject creates a project with an empty root folder and one active
// environment.
func NewProject(alloc ident.Allocator, name string) *Project {
	alloc = ident.OrDefault(alloc)
	env := NewEnvironment(alloc.NewID(), DefaultEnvironmentName)
	return &Project{
		ID:                  alloc.NewID(),
		Name:                name,
		Root:                NewFolder(alloc.NewID(), name),
		Environments:        []*Environment{env},
		ActiveEnvironmentID: env.ID,
	}
}

// Environment returns the environment with the given id.
func (p *Project) Environment(id string) *Environment {
	for _, e := range p.Environments {
		if e.ID == id {
			return e
		}
	}
	return nil
}

// EnvironmentIndex returns the position of the environment, or -1.
func (p *Project) EnvironmentIndex(id string) int {
	for i, e := range p.Environments {
		if e.ID == id {
			return i
		}
	}
	return -1
}

// ActiveEnvironment returns the active environment, or nil.
func (p *Project) ActiveEnvironment() *Environment {
	if p.ActiveEnvironmentID == "" {
		return nil
	}
	return p.Environment(p.ActiveEnvironmentID)
}

// Clone creates a deep copy that keeps every id.
func (p *Project) Clone() *Project {
	out := *p
	if p.DefaultAuth != nil {
		auth := *p.DefaultAuth
		out.DefaultAuth = &auth
	}
	if p.Root != nil {
		out.Root = copyFolder(p.Root, nil)
	}
	out.Environments = make([]*Environment, len(p.Environments))
	for i, e := range p.Environments {
		out.Environments[i] = e.Clone()
	}
	return &out
}
