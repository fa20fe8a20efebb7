// Package physics provides the actuation models of the steering tool.
//
// The cascade converts a motor voltage into a bit-deflection angle:
//
//   - [ValvePositioner]: 2nd-order torque balance, voltage to spool angle
//   - [HydraulicActuator]: 1st-order lag, normalized spool angle to deflection
//   - [Cascade]: positioner and actuator in series with the spool travel stop
//
// Every model integrates with forward Euler at the step size passed to Step
// and keeps only its current state. Constructors reject non-positive time
// constants, inertias and travel limits with [dynamo.ErrParameterBounds].
//
// # Travel Stop
//
// The cascade clamps the spool angle to ±SpoolMax and writes the clamped value
// back into the positioner, so the next step integrates from the stop:
//
//	c, _ := physics.NewCascade(p.Physical, 0)
//	phi := c.Step(voltage, dt)
//	theta := c.ValveAngle() // always within ±SpoolMax
package physics
