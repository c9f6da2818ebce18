// Package layout computes the deterministic fan-out placement of mind-map nodes.
// Existing nodes never move: a child's position depends only on its parent's
// position, its depth and its sibling index.
package layout

import "math"

// Fan-out defaults.
const (
	BaseAngleDeg   = -60.0
	AngleStepDeg   = 40.0
	BaseRadius     = 180.0
	RadiusPerLevel = 30.0
)

// Palette is the cyclic color palette indexed by depth.
var Palette = []string{
	"#6366F1", // root
	"#0EA5E9",
	"#10B981",
	"#F59E0B",
	"#EF4444",
	"#8B5CF6",
	"#EC4899",
}

// Position is a 2D canvas coordinate.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Radius returns the parent-to-child distance for a child at the given level.
// First-level children sit BaseRadius away from the root; every deeper level
// adds RadiusPerLevel.
func Radius(level int) float64 {
	if level < 1 {
		level = 1
	}
	return BaseRadius + float64(level-1)*RadiusPerLevel
}

// Angle returns the fan-out angle in radians for the given sibling index.
func Angle(siblingIndex int) float64 {
	deg := BaseAngleDeg + float64(siblingIndex)*AngleStepDeg
	return deg * math.Pi / 180
}

// ChildPosition places the siblingIndex-th child (0-based) at the given level
// around its parent.
func ChildPosition(parent Position, level, siblingIndex int) Position {
	r := Radius(level)
	theta := Angle(siblingIndex)
	return Position{
		X: parent.X + r*math.Cos(theta),
		Y: parent.Y + r*math.Sin(theta),
	}
}

// ColorForLevel returns the palette color for a depth.
func ColorForLevel(level int) string {
	if level < 0 {
		level = -level
	}
	return Palette[level%len(Palette)]
}
