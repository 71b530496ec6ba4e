// Package policy hosts the agents that adapt the device to the current
// scene.
package policy

import (
	"sort"
	"sync"

	"codeberg.org/mutker/scened/internal/errors"
	"codeberg.org/mutker/scened/internal/monitor"
)

// Registry keeps agents by name and subscribes each of them to the scene.
type Registry struct {
	source SceneSource

	mu     sync.Mutex
	agents map[string]Agent
	subs   map[string]monitor.Subscription
}

func NewRegistry(source SceneSource) *Registry {
	return &Registry{
		source: source,
		agents: make(map[string]Agent),
		subs:   make(map[string]monitor.Subscription),
	}
}

// Add registers agent and hands it the current scene before any change.
func (r *Registry) Add(agent Agent) error {
	r.mu.Lock()
	if _, ok := r.agents[agent.Name()]; ok {
		r.mu.Unlock()
		return errors.New().WithData(ErrDuplicateAgent, agent.Name())
	}
	r.agents[agent.Name()] = agent
	r.subs[agent.Name()] = r.source.Subscribe(agent.OnScene)
	r.mu.Unlock()

	agent.OnScene(r.source.Snapshot())

	return nil
}

// Remove unsubscribes and forgets the named agent.
func (r *Registry) Remove(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.agents[name]; !ok {
		return false
	}
	r.source.Unsubscribe(r.subs[name])
	delete(r.agents, name)
	delete(r.subs, name)

	return true
}

func (r *Registry) Get(name string) (Agent, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	agent, ok := r.agents[name]
	return agent, ok
}

func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.agents))
	for name := range r.agents {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

// Close removes every agent.
func (r *Registry) Close() {
	for _, name := range r.Names() {
		r.Remove(name)
	}
}
