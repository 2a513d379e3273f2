package scenarium_test

import (
	"context"
	"fmt"
	"log"

	"github.com/videlboga/scenarium"
	"github.com/videlboga/scenarium/pkg/adapters/memory"
	"github.com/videlboga/scenarium/pkg/dsl"
)

// Example builds a scenario in code, runs it to the input step, and
// resumes it with an answer.
func Example() {
	sc := dsl.New("onboarding").
		Context("user_name", "Ann").
		Start("ask").
		Input("ask").Prompt("Ready, {user_name}?").SaveTo("answer").Next("done").
		End("done").
		MustBuild()

	engine, err := scenarium.New("", scenarium.WithLoader(memory.NewLoader(sc)))
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	sess, err := engine.Start(ctx, "user-42", "onboarding", nil)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println("status:", sess.Status)

	sess, err = engine.Input(ctx, "user-42", "yes")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println("status:", sess.Status)
	fmt.Println("answer:", sess.Context["answer"])

	// Output:
	// status: waiting_input
	// status: terminated
	// answer: yes
}
