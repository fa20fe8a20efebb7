// Package dynamo provides the core simulation primitives shared by the
// steering-tool models, controllers and the simulation driver.
//
// The package defines the data that crosses component boundaries:
//
//   - [Params]: scenario, gains, physical constants and time horizon
//   - [Series]: the four output sequences produced by a run
//   - [Sample]: one step of a run, handed to observers and metrics
//   - [Observer], [Metric]: per-step hooks that never touch state
//
// # Example
//
//	p := dynamo.DefaultParams()
//	p.Scenario = dynamo.ScenarioDisturbance
//	series, err := sim.Run(ctx, p, nil)
//
// # Thread Safety
//
// Values in this package are plain data. A [Series] is owned by the run that
// produced it and must not be appended to from more than one goroutine.
package dynamo
