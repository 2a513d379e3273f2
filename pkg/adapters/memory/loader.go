package memory

import (
	"sort"
	"sync"

	"github.com/videlboga/scenarium/pkg/domain"
)

// Loader implements ports.ScenarioLoader over an in-memory map.
// Handy for tests and embedded use.
type Loader struct {
	mu        sync.RWMutex
	scenarios map[string]*domain.Scenario
}

// NewLoader creates a loader with the given scenarios.
func NewLoader(scenarios ...*domain.Scenario) *Loader {
	l := &Loader{scenarios: make(map[string]*domain.Scenario, len(scenarios))}
	for _, sc := range scenarios {
		l.scenarios[sc.ID] = sc
	}
	return l
}

// Add registers or replaces a scenario.
func (l *Loader) Add(sc *domain.Scenario) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.scenarios[sc.ID] = sc
}

// Get returns the scenario with the given id.
func (l *Loader) Get(id string) (*domain.Scenario, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	sc, ok := l.scenarios[id]
	if !ok {
		return nil, domain.ErrScenarioNotFound
	}
	return sc, nil
}

// List returns all scenario ids in deterministic order.
func (l *Loader) List() ([]string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	ids := make([]string, 0, len(l.scenarios))
	for id := range l.scenarios {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
