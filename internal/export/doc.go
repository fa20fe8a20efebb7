// Package export renders a run's series to PNG or SVG charts.
//
// Angles are drawn in degrees and force as 1000*phi. Four chart styles are
// available: line, scatter, area and bold.
package export
