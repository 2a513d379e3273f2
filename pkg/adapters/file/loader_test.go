package file

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/videlboga/scenarium/pkg/domain"
)

const onboardingYAML = `
scenario_id: onboarding
initial_context:
  greeted: false
steps:
  - id: start
    type: start
    next: greet
  - id: greet
    type: log
    params:
      message: "Hi {user_name}"
    next: ask
  - id: ask
    type: input
    params:
      prompt: "Continue?"
      save_to: answer
    next: decide
  - id: decide
    type: branch
    branches:
      - when: "answer == 'yes'"
        to: done
    default: ask
  - id: done
    type: end
`

func writeScenario(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestLoader_LoadsDirectory(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "onboarding.yaml", onboardingYAML)
	writeScenario(t, dir, "notes.txt", "not a scenario")

	loader, err := NewLoader(dir)
	require.NoError(t, err)

	ids, err := loader.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"onboarding"}, ids)

	sc, err := loader.Get("onboarding")
	require.NoError(t, err)
	assert.Equal(t, false, sc.InitialContext["greeted"])
	require.Len(t, sc.Steps, 5)

	decide := sc.Step("decide")
	require.NotNil(t, decide)
	assert.Equal(t, domain.StepBranch, decide.Type)
	require.Len(t, decide.Branches, 1)
	assert.Equal(t, "done", decide.Branches[0].To)
	assert.Equal(t, "ask", decide.Default)

	greet := sc.Step("greet")
	require.NotNil(t, greet)
	assert.Equal(t, "Hi {user_name}", greet.Params["message"])
}

func TestLoader_RejectsInvalidGraph(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "bad.yaml", `
scenario_id: bad
steps:
  - id: start
    type: start
    next: missing
`)

	_, err := NewLoader(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing")
}

func TestLoader_RejectsDuplicateIDs(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "a.yaml", onboardingYAML)
	writeScenario(t, dir, "b.yaml", onboardingYAML)

	_, err := NewLoader(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate scenario id")
}

func TestLoader_GetUnknown(t *testing.T) {
	loader, err := NewLoader(t.TempDir())
	require.NoError(t, err)

	_, err = loader.Get("ghost")
	assert.ErrorIs(t, err, domain.ErrScenarioNotFound)
}
