package export

import (
	"fmt"
	"strings"

	"github.com/san-kum/odeint/internal/sim"
)

// TrajectoryToSVG draws component ix against component iy as a path. An
// index of -1 selects the independent variable.
func TrajectoryToSVG(tr *sim.Trajectory, ix, iy, width, height int, strokeColor string) string {
	if tr == nil || tr.Len() < 2 {
		return ""
	}
	at := func(i, c int) float64 {
		if c < 0 {
			return tr.X[i]
		}
		return tr.Row(i)[c]
	}

	minX, maxX := at(0, ix), at(0, ix)
	minY, maxY := at(0, iy), at(0, iy)
	for i := 1; i < tr.Len(); i++ {
		x, y := at(i, ix), at(i, iy)
		minX, maxX = min(minX, x), max(maxX, x)
		minY, maxY = min(minY, y), max(maxY, y)
	}

	rangeX := maxX - minX
	rangeY := maxY - minY
	if rangeX == 0 {
		rangeX = 1
	}
	if rangeY == 0 {
		rangeY = 1
	}
	minX -= rangeX * 0.1
	minY -= rangeY * 0.1
	rangeX *= 1.2
	rangeY *= 1.2

	var sb strings.Builder
	fmt.Fprintf(&sb, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
<path fill="none" stroke="%s" stroke-width="1.5" d="M`,
		width, height, width, height, strokeColor)

	for i := 0; i < tr.Len(); i++ {
		x := (at(i, ix) - minX) / rangeX * float64(width)
		y := float64(height) - (at(i, iy)-minY)/rangeY*float64(height)
		if i == 0 {
			fmt.Fprintf(&sb, "%.1f,%.1f", x, y)
		} else {
			fmt.Fprintf(&sb, " L%.1f,%.1f", x, y)
		}
	}

	sb.WriteString(`"/>
</svg>`)
	return sb.String()
}
