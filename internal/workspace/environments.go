package workspace

import (
	"github.com/artpar/apiary/internal/core"
)

// AddEnvironment appends an empty environment to a project. It becomes active
// when the project has no active environment.
func (s *Store) AddEnvironment(projectID, name string) (string, bool) {
	var id string
	ok := s.update("add_environment", func(st *State) bool {
		p := st.Project(projectID)
		if p == nil {
			return false
		}
		env := core.NewEnvironment(s.alloc.NewID(), name)
		p.Environments = append(p.Environments, env)
		if p.ActiveEnvironmentID == "" {
			p.ActiveEnvironmentID = env.ID
		}
		id = env.ID
		return true
	})
	return id, ok
}

// RenameEnvironment renames an environment of a project.
func (s *Store) RenameEnvironment(projectID, envID, name string) bool {
	return s.update("rename_environment", func(st *State) bool {
		p := st.Project(projectID)
		if p == nil {
			return false
		}
		env := p.Environment(envID)
		if env == nil || env.Name == name {
			return false
		}
		env.Name = name
		return true
	})
}

// DeleteEnvironment removes an environment. The last environment of a project
// cannot be deleted. Deleting the active environment activates the first
// remaining one.
func (s *Store) DeleteEnvironment(projectID, envID string) bool {
	return s.update("delete_environment", func(st *State) bool {
		p := st.Project(projectID)
		if p == nil || len(p.Environments) <= 1 {
			return false
		}
		idx := p.EnvironmentIndex(envID)
		if idx < 0 {
			return false
		}
		p.Environments = append(p.Environments[:idx], p.Environments[idx+1:]...)
		if p.ActiveEnvironmentID == envID {
			p.ActiveEnvironmentID = ""
			if len(p.Environments) > 0 {
				p.ActiveEnvironmentID = p.Environments[0].ID
			}
		}
		return true
	})
}

// SetActiveEnvironment activates an environment of a project. Ids that are
// not environments of the project are ignored.
func (s *Store) SetActiveEnvironment(projectID, envID string) bool {
	return s.update("set_active_environment", func(st *State) bool {
		p := st.Project(projectID)
		if p == nil || p.ActiveEnvironmentID == envID || p.Environment(envID) == nil {
			return false
		}
		p.ActiveEnvironmentID = envID
		return true
	})
}

// AddVariable appends an enabled variable to an environment, whichever
// project it belongs to and whether or not it is active.
func (s *Store) AddVariable(envID, key, value string) (string, bool) {
	var id string
	ok := s.update("add_variable", func(st *State) bool {
		env, _ := st.Environment(envID)
		if env == nil {
			return false
		}
		id = s.alloc.NewID()
		env.Variables = append(env.Variables, core.Variable{ID: id, Key: key, Value: value, Enabled: true})
		return true
	})
	return id, ok
}

// UpdateVariable replaces the key, value and enabled flag of the variable v.ID.
func (s *Store) UpdateVariable(envID string, v core.Variable) bool {
	return s.update("update_variable", func(st *State) bool {
		env, _ := st.Environment(envID)
		if env == nil {
			return false
		}
		existing := env.Variable(v.ID)
		if existing == nil || *existing == v {
			return false
		}
		*existing = v
		return true
	})
}

// DeleteVariable removes a variable from an environment.
func (s *Store) DeleteVariable(envID, varID string) bool {
	return s.update("delete_variable", func(st *State) bool {
		env, _ := st.Environment(envID)
		if env == nil {
			return false
		}
		for i, v := range env.Variables {
			if v.ID == varID {
				env.Variables = append(env.Variables[:i], env.Variables[i+1:]...)
				return true
			}
		}
		return false
	})
}

// ActiveVariables returns the enabled variables of a project's active
// environment, in order.
func (s *Store) ActiveVariables(projectID string) []core.Variable {
	p := s.State().Project(projectID)
	if p == nil {
		return nil
	}
	return activeVariables(p)
}

func activeVariables(p *core.Project) []core.Variable {
	env := p.ActiveEnvironment()
	if env == nil {
		return nil
	}
	return env.Enabled()
}
