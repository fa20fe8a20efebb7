// Package viz renders steering runs in the terminal.
//
// Charts are drawn with asciigraph, panels and status lines with lipgloss,
// and the two interactive programs use Bubble Tea:
//
//   - [ProgressModel]: a progress bar fed by a running [sim.Driver]
//   - [LiveModel]: steps a run in real time and retunes the PID while it runs
//
// All angles are shown in degrees and force is derived as 1000*phi.
//
// # Live key bindings
//
//	Space - Pause/Resume
//	R     - Restart the run with the original gains
//	Tab   - Select the next PID parameter
//	Up/K  - Increase the selected parameter (+5%)
//	Down/J- Decrease the selected parameter (-5%)
//	+/-   - Change steps per frame
//	T     - Cycle color themes
//	Q     - Quit
package viz
