// Package file loads scenario definitions from a directory of YAML
// documents, one scenario per file. Documents are parsed and validated
// once at construction; the loader is read-only afterwards.
package file

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/videlboga/scenarium/pkg/domain"
	"github.com/videlboga/scenarium/pkg/validator"
)

// Loader implements ports.ScenarioLoader over a directory of YAML files.
type Loader struct {
	scenarios map[string]*domain.Scenario
}

// NewLoader reads every *.yaml / *.yml file under dir. A document that
// fails to parse or validate aborts loading: a bad scenario on disk is a
// deployment defect, not a runtime condition.
func NewLoader(dir string) (*Loader, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario directory: %w", err)
	}

	scenarios := make(map[string]*domain.Scenario)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		sc, err := Parse(path)
		if err != nil {
			return nil, err
		}
		if _, dup := scenarios[sc.ID]; dup {
			return nil, fmt.Errorf("duplicate scenario id %q (file %s)", sc.ID, entry.Name())
		}
		scenarios[sc.ID] = sc
	}

	return &Loader{scenarios: scenarios}, nil
}

// Parse reads and validates a single scenario document.
func Parse(path string) (*domain.Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var sc domain.Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if err := validator.Validate(&sc); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &sc, nil
}

// Get returns the scenario with the given id.
func (l *Loader) Get(id string) (*domain.Scenario, error) {
	sc, ok := l.scenarios[id]
	if !ok {
		return nil, domain.ErrScenarioNotFound
	}
	return sc, nil
}

// List returns all scenario ids in deterministic order.
func (l *Loader) List() ([]string, error) {
	ids := make([]string, 0, len(l.scenarios))
	for id := range l.scenarios {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
