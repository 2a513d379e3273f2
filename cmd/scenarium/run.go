package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/videlboga/scenarium"
	"github.com/videlboga/scenarium/pkg/domain"
	"github.com/videlboga/scenarium/pkg/template"
)

var runCmd = &cobra.Command{
	Use:   "run <scenario-dir>",
	Short: "Run a scenario interactively",
	Long:  `Runs a scenario with in-memory stores, answering input steps from stdin.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		scenarioID, _ := cmd.Flags().GetString("scenario")
		sessionKey, _ := cmd.Flags().GetString("session")

		if err := runInteractive(args[0], scenarioID, sessionKey); err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringP("scenario", "s", "", "Scenario id to run (required)")
	runCmd.Flags().String("session", "local", "Session key")
	runCmd.MarkFlagRequired("scenario")
}

func runInteractive(dir, scenarioID, sessionKey string) error {
	engine, err := scenarium.New(dir, scenarium.WithLogger(newLogger()))
	if err != nil {
		return err
	}

	ctx := context.Background()
	sess, err := engine.Start(ctx, sessionKey, scenarioID, nil)
	if err != nil {
		return err
	}

	reader := bufio.NewReader(os.Stdin)
	for sess.Status == domain.StatusWaitingInput {
		printPrompt(engine, ctx, sess)

		text, err := reader.ReadString('\n')
		if err != nil {
			return err
		}
		input := strings.TrimSpace(text)
		if input == "exit" || input == "quit" {
			fmt.Println("Bye!")
			return nil
		}

		sess, err = engine.Input(ctx, sessionKey, input)
		if err != nil {
			return err
		}
	}

	switch sess.Status {
	case domain.StatusTerminated:
		fmt.Println("Scenario finished.")
	case domain.StatusError:
		return fmt.Errorf("scenario failed at step %v: %v",
			sess.Context[domain.KeyErrorStep], sess.Context[domain.KeyError])
	}
	return nil
}

// printPrompt renders the waiting input step's prompt, if it declares one.
func printPrompt(engine *scenarium.Engine, ctx context.Context, sess *domain.Session) {
	sc, err := engine.Loader().Get(sess.ScenarioID)
	if err != nil {
		fmt.Print("> ")
		return
	}
	step := sc.Step(sess.StepID)
	if step != nil {
		if prompt, ok := step.Params["prompt"].(string); ok && prompt != "" {
			fmt.Println(template.ResolveString(prompt, sess.Context))
		}
	}
	fmt.Print("> ")
}
