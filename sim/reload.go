package sim

import (
	"path/filepath"
	"strings"

	"github.com/milk9111/pathsteer/prefabs"
)

// ApplyConfig pushes edited tunables onto the running agents. Agents are
// matched by name; geometry and the agent list itself are not rebuilt.
func (s *Scene) ApplyConfig(spec prefabs.ScenarioSpec) error {
	if err := spec.Validate(); err != nil {
		return err
	}

	updated := 0
	for _, as := range spec.Agents {
		a, ok := s.Agent(as.Name)
		if !ok {
			s.logger.Warn("reload skipped unknown agent", "agent", as.Name)
			continue
		}
		loc, ok := s.Locomotion(a)
		if !ok || loc.Steering == nil {
			continue
		}
		loc.Steering.SetConfig(as.Steering)
		loc.RunSpeed = runSpeed(as, loc.Steering)
		loc.MaxRunSpeed = maxRunSpeed(as)
		if b, ok := s.Brain(a); ok && as.Brain != "" && b.Script != as.Brain {
			b.Script = as.Brain
			b.State = ""
		}
		updated++
	}
	s.spec.Agents = spec.Agents
	s.logger.Info("config applied", "scenario", spec.Name, "agents", updated)
	return nil
}

// Reload reacts to an edited file from the prefab watcher. Scripts are
// recompiled on their next tick; the scene's own scenario file is reapplied.
func (s *Scene) Reload(path string) error {
	base := filepath.Base(path)
	switch strings.ToLower(filepath.Ext(base)) {
	case ".tengo":
		name := strings.TrimSuffix(base, filepath.Ext(base))
		s.brains.Reload(name)
		s.logger.Info("script reloaded", "script", name)
		return nil
	case ".yaml", ".yml":
		if s.source == "" || filepath.Base(s.source) != base {
			return nil
		}
		spec, err := prefabs.LoadScenario(s.source)
		if err != nil {
			return err
		}
		return s.ApplyConfig(spec)
	}
	return nil
}
