// Package control provides the two layers of the steering controller.
//
//   - [FuzzyEngine]: Mamdani inference from (attitude error, error rate) to a
//     commanded valve angle
//   - [PID]: discrete PID from valve angle error to motor voltage, with output
//     clamping and conditional anti-windup
//
// # Usage
//
//	engine := control.DefaultFuzzyEngine()
//	pid := control.NewPID(40, 5, 5, dt, 10)
//	target := engine.Compute(err, errRate)
//	voltage := pid.Compute(target - valveAngle)
//
// A [FuzzyEngine] holds only immutable configuration and may be shared by
// concurrent runs. A [PID] carries integrator state and belongs to one run.
//
// [PID] implements [dynamo.Configurable] for live tuning.
package control
