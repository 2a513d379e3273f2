// Package dsl builds scenarios in code instead of YAML. It is the
// natural fit for tests and for applications that generate flows
// dynamically; the result is a plain domain.Scenario, validated with
// the same rules the file loader applies.
//
// Example:
//
//	sc, err := dsl.New("onboarding").
//		Context("user_name", "friend").
//		Start("greet").
//		Step("greet", "log").Param("message", "Hi {user_name}").Next("ask").
//		Input("ask").Prompt("Ready?").SaveTo("answer").Next("decide").
//		Branch("decide").When("answer == 'yes'", "welcome").Default("bye").
//		Step("welcome", "log").Param("message", "Welcome!").Next("bye").
//		End("bye").
//		Build()
package dsl
