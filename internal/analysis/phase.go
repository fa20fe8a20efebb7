package analysis

import (
	"fmt"
	"strings"

	"github.com/san-kum/steersim/internal/dynamo"
)

// PhasePortrait2D holds data for a 2D phase space plot
type PhasePortrait2D struct {
	XLabel, YLabel string
	Points         []struct{ X, Y float64 }
}

// ErrorPhasePortrait traces the tracking error against its finite-difference
// rate, the plane the fuzzy rule table partitions.
func ErrorPhasePortrait(s *dynamo.Series) *PhasePortrait2D {
	portrait := &PhasePortrait2D{
		XLabel: "error",
		YLabel: "error_dot",
		Points: make([]struct{ X, Y float64 }, 0, s.Len()),
	}
	for i := 1; i < s.Len(); i++ {
		dt := s.Time[i] - s.Time[i-1]
		if dt <= 0 {
			continue
		}
		e := s.Error(i)
		portrait.Points = append(portrait.Points, struct{ X, Y float64 }{
			X: e,
			Y: (e - s.Error(i-1)) / dt,
		})
	}
	return portrait
}

// DeflectionPhasePortrait traces the valve angle against the deflection.
func DeflectionPhasePortrait(s *dynamo.Series) *PhasePortrait2D {
	portrait := &PhasePortrait2D{
		XLabel: "phi",
		YLabel: "theta",
		Points: make([]struct{ X, Y float64 }, s.Len()),
	}
	for i := range portrait.Points {
		portrait.Points[i].X = s.Deflection[i]
		portrait.Points[i].Y = s.ValveAngle[i]
	}
	return portrait
}

// PhasePortraitToASCII renders the portrait on a width x height character
// grid, with axes drawn where zero is in range.
func PhasePortraitToASCII(portrait *PhasePortrait2D, width, height int) string {
	if portrait == nil || len(portrait.Points) == 0 {
		return ""
	}

	// Find bounds
	minX, maxX := portrait.Points[0].X, portrait.Points[0].X
	minY, maxY := portrait.Points[0].Y, portrait.Points[0].Y

	for _, p := range portrait.Points {
		if p.X < minX {
			minX = p.X
		}
		if p.X > maxX {
			maxX = p.X
		}
		if p.Y < minY {
			minY = p.Y
		}
		if p.Y > maxY {
			maxY = p.Y
		}
	}

	// Add padding
	rangeX := maxX - minX
	rangeY := maxY - minY
	if rangeX == 0 {
		rangeX = 1
	}
	if rangeY == 0 {
		rangeY = 1
	}
	minX -= rangeX * 0.1
	maxX += rangeX * 0.1
	minY -= rangeY * 0.1
	maxY += rangeY * 0.1
	rangeX = maxX - minX
	rangeY = maxY - minY

	// Create canvas
	canvas := make([][]rune, height)
	for i := range canvas {
		canvas[i] = make([]rune, width)
		for j := range canvas[i] {
			canvas[i][j] = ' '
		}
	}

	// Plot points
	for _, p := range portrait.Points {
		col := int((p.X - minX) / rangeX * float64(width-1))
		row := height - 1 - int((p.Y-minY)/rangeY*float64(height-1))

		if row >= 0 && row < height && col >= 0 && col < width {
			canvas[row][col] = '•'
		}
	}

	// Draw axes if they cross the visible area
	if minX <= 0 && maxX >= 0 {
		col := int((0 - minX) / rangeX * float64(width-1))
		for row := 0; row < height; row++ {
			if col >= 0 && col < width && canvas[row][col] == ' ' {
				canvas[row][col] = '│'
			}
		}
	}
	if minY <= 0 && maxY >= 0 {
		row := height - 1 - int((0-minY)/rangeY*float64(height-1))
		for col := 0; col < width; col++ {
			if row >= 0 && row < height && canvas[row][col] == ' ' {
				canvas[row][col] = '─'
			}
		}
	}

	var sb strings.Builder
	if portrait.XLabel != "" {
		fmt.Fprintf(&sb, "%s vs %s  x:[%.4g, %.4g] y:[%.4g, %.4g]\n",
			portrait.YLabel, portrait.XLabel, minX, maxX, minY, maxY)
	}
	for _, row := range canvas {
		sb.WriteString(string(row))
		sb.WriteRune('\n')
	}
	return sb.String()
}
