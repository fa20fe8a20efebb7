// Package sim runs closed-loop steering simulations: fuzzy outer loop, PID
// inner loop and the valve/hydraulic cascade, stepped at a fixed dt.
package sim
