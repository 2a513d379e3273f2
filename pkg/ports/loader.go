package ports

import "github.com/videlboga/scenarium/pkg/domain"

// ScenarioLoader retrieves immutable scenario definitions. Loaders are
// read-only from the engine's perspective and safe for concurrent reads.
type ScenarioLoader interface {
	// Get returns the scenario with the given id.
	// Returns domain.ErrScenarioNotFound if the id is unknown.
	Get(id string) (*domain.Scenario, error)

	// List returns the ids of all loadable scenarios.
	List() ([]string, error)
}
