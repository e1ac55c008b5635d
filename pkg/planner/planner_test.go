package planner

import (
	"errors"
	"testing"
)

func TestPlanFastPath(t *testing.T) {
	for _, d := range []float64{0.5, 59, 600} {
		segs, err := Plan(d, 600, 540)
		if err != nil {
			t.Fatalf("Plan(%v): %v", d, err)
		}
		if len(segs) != 1 {
			t.Fatalf("Plan(%v) gave %d segments", d, len(segs))
		}
		if segs[0].Start != 0 || segs[0].Duration != d {
			t.Fatalf("Plan(%v) = %+v", d, segs[0])
		}
	}
}

func TestPlanCoverage(t *testing.T) {
	cases := []struct {
		total, target float64
		want          int
	}{
		{601, 540, 2},
		{1080, 540, 2},
		{3700.5, 600, 7},
		{7200, 540, 14},
		{1000.3, 333.3, 4},
	}
	for _, tc := range cases {
		segs, err := Plan(tc.total, 600, tc.target)
		if err != nil {
			t.Fatalf("Plan(%v, %v): %v", tc.total, tc.target, err)
		}
		if len(segs) != tc.want {
			t.Errorf("Plan(%v, %v): %d segments, want %d", tc.total, tc.target, len(segs), tc.want)
		}
		if segs[0].Start != 0 {
			t.Errorf("first segment starts at %v", segs[0].Start)
		}
		for i, s := range segs {
			if s.Index != i {
				t.Errorf("segment %d has index %d", i, s.Index)
			}
			if s.Duration <= 0 || s.Duration > tc.target+1e-9 {
				t.Errorf("segment %d duration %v", i, s.Duration)
			}
			if i+1 < len(segs) && s.Start+s.Duration != segs[i+1].Start {
				t.Errorf("gap between %d and %d: %v vs %v", i, i+1, s.End(), segs[i+1].Start)
			}
		}
		last := segs[len(segs)-1]
		if last.Start+last.Duration != tc.total {
			t.Errorf("last segment ends at %v, want %v", last.End(), tc.total)
		}
	}
}

func TestPlanInvalid(t *testing.T) {
	if _, err := Plan(0, 600, 540); !errors.Is(err, ErrInvalidDuration) {
		t.Fatalf("zero duration: %v", err)
	}
	if _, err := Plan(-3, 600, 540); !errors.Is(err, ErrInvalidDuration) {
		t.Fatalf("negative duration: %v", err)
	}
	if _, err := Plan(1200, 600, 0); !errors.Is(err, ErrInvalidDuration) {
		t.Fatalf("zero target: %v", err)
	}
}

func TestNeedsSplit(t *testing.T) {
	if NeedsSplit(600, 600) {
		t.Fatal("600 at threshold 600 should not split")
	}
	if !NeedsSplit(600.1, 600) {
		t.Fatal("600.1 at threshold 600 should split")
	}
}
