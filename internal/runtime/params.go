package runtime

import (
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/videlboga/scenarium/pkg/domain"
)

// decodeParams maps a step's parameter bag onto a typed struct. Weak
// typing tolerates the scalar drift YAML and JSON round-trips produce
// (numbers as strings, ints as floats).
func decodeParams(params map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return err
	}
	return dec.Decode(params)
}

// inputParams shapes an input step's parameters.
type inputParams struct {
	Prompt string   `mapstructure:"prompt"`
	SaveTo string   `mapstructure:"save_to"`
	Expect []string `mapstructure:"expect"`
}

// accepts reports whether the given input satisfies the step's expected
// answers. An empty expect list accepts anything non-nil.
func (p inputParams) accepts(input any) bool {
	if input == nil {
		return false
	}
	if len(p.Expect) == 0 {
		return true
	}
	got, ok := input.(string)
	if !ok {
		return false
	}
	for _, want := range p.Expect {
		if strings.EqualFold(got, want) {
			return true
		}
	}
	return false
}

// repromptCount reads the re-prompt counter back out of the context. A
// JSON round trip through a durable session store turns the stored int
// into a float64, so both arrivals must count.
func repromptCount(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}

// subScenarioParams shapes an execute_sub_scenario step's parameters.
// Input maps callee-key -> template expression resolved on the parent
// context; Output maps parent-key -> callee context path read on return.
type subScenarioParams struct {
	Scenario        string            `mapstructure:"scenario"`
	Input           map[string]string `mapstructure:"input"`
	Output          map[string]string `mapstructure:"output"`
	PreserveContext bool              `mapstructure:"preserve_context"`
}

// switchParams shapes a switch_scenario step's parameters. Unlike a
// sub-scenario call the context carries over unless preserve_context is
// explicitly false.
type switchParams struct {
	Scenario        string `mapstructure:"scenario"`
	Step            string `mapstructure:"step"`
	PreserveContext *bool  `mapstructure:"preserve_context"`
}

func (p switchParams) preserveContext() bool {
	return p.PreserveContext == nil || *p.PreserveContext
}

// scheduleParams shapes a schedule_run step's parameters. Exactly one of
// at / delay / interval selects the fire policy.
type scheduleParams struct {
	At       string        `mapstructure:"at"`
	Delay    time.Duration `mapstructure:"delay"`
	Interval time.Duration `mapstructure:"interval"`
	MaxRuns  int           `mapstructure:"max_runs"`

	Scenario string         `mapstructure:"scenario"`
	Step     string         `mapstructure:"step"`
	Payload  map[string]any `mapstructure:"payload"`
	SaveTo   string         `mapstructure:"save_to"`
}

func (p scheduleParams) policy() (domain.FirePolicy, error) {
	switch {
	case p.At != "":
		at, err := time.Parse(time.RFC3339, p.At)
		if err != nil {
			return domain.FirePolicy{}, fmt.Errorf("invalid at time %q: %w", p.At, err)
		}
		return domain.FirePolicy{Kind: domain.FireAt, At: at}, nil
	case p.Interval > 0:
		return domain.FirePolicy{Kind: domain.FireEvery, Interval: p.Interval, MaxRuns: p.MaxRuns}, nil
	case p.Delay > 0:
		return domain.FirePolicy{Kind: domain.FireAfter, Delay: p.Delay}, nil
	}
	return domain.FirePolicy{}, fmt.Errorf("schedule params set none of at, delay, interval")
}
