package layout

import (
	"math"
	"testing"
)

func almost(a, b, eps float64) bool {
	return math.Abs(a-b) < eps
}

func TestChildPosition_FirstChildOfRoot(t *testing.T) {
	p := ChildPosition(Position{}, 1, 0)
	if !almost(p.X, 90, 1e-9) || !almost(p.Y, -155.884572681, 1e-6) {
		t.Fatalf("want (90,-155.88) got (%f,%f)", p.X, p.Y)
	}
}

func TestChildPosition_MatchesFormula(t *testing.T) {
	parent := Position{X: 120, Y: -40}
	for level := 1; level <= 4; level++ {
		for k := 0; k < 9; k++ {
			got := ChildPosition(parent, level, k)
			r := 180 + float64(level-1)*30
			theta := (-60 + float64(k)*40) * math.Pi / 180
			want := Position{X: parent.X + r*math.Cos(theta), Y: parent.Y + r*math.Sin(theta)}
			if got != want {
				t.Fatalf("level=%d k=%d: got %+v want %+v", level, k, got, want)
			}
		}
	}
}

func TestChildPosition_Deterministic(t *testing.T) {
	a := ChildPosition(Position{X: 3, Y: 4}, 2, 5)
	b := ChildPosition(Position{X: 3, Y: 4}, 2, 5)
	if a != b {
		t.Fatalf("expected identical positions, got %+v and %+v", a, b)
	}
}

func TestRadius(t *testing.T) {
	tests := []struct {
		level int
		want  float64
	}{
		{0, 180},
		{1, 180},
		{2, 210},
		{3, 240},
	}
	for _, tc := range tests {
		if got := Radius(tc.level); got != tc.want {
			t.Errorf("Radius(%d) = %f, want %f", tc.level, got, tc.want)
		}
	}
}

func TestColorForLevel_Cycles(t *testing.T) {
	n := len(Palette)
	if ColorForLevel(1) != ColorForLevel(1+n) {
		t.Fatal("expected palette to cycle")
	}
	if ColorForLevel(0) == ColorForLevel(1) {
		t.Fatal("expected adjacent levels to differ")
	}
}
