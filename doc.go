// Package scenarium is a scenario execution engine: it interprets
// declarative step-graph documents as long-lived, resumable conversations.
//
// A scenario is a directed graph of typed steps (YAML on disk, or built
// programmatically). The engine walks the graph one session at a time,
// dispatching each step to a registered handler, suspending on input
// steps and resuming when the matching external event arrives. Session
// state is a single persistent record per conversation; with the redis
// adapters the whole system survives process restarts, including
// scheduled future firings.
//
// The root package is a facade over the building blocks in pkg/: the
// template resolver, condition evaluator, handler registry, session
// manager, scheduler and store adapters all work standalone for
// embedders that need a different assembly.
//
// Minimal usage:
//
//	engine, err := scenarium.New("./scenarios")
//	if err != nil {
//		log.Fatal(err)
//	}
//	engine.RegisterHandlerFunc("send_message", sendMessage)
//
//	sess, err := engine.Start(ctx, "user-42", "onboarding", nil)
//	...
//	sess, err = engine.Input(ctx, "user-42", "yes")
package scenarium
