package math

import (
	"testing"
)

func TestVec2Distance(t *testing.T) {
	a := Vec2{1, 2}
	b := Vec2{4, 6}
	got := a.Distance(b)
	want := float32(5)
	if got != want {
		t.Errorf("Vec2.Distance() = %v, want %v", got, want)
	}
}

func TestVec3Cross(t *testing.T) {
	x := Vec3{1, 0, 0}
	y := Vec3{0, 1, 0}
	got := x.Cross(y)
	want := Vec3{0, 0, 1}
	if got != want {
		t.Errorf("Vec3.Cross() = %v, want %v", got, want)
	}
}

func TestVec3Normalize(t *testing.T) {
	v := Vec3{3, 0, 4}
	l := v.Normalize().Length()
	if l < 0.999 || l > 1.001 {
		t.Errorf("Vec3.Normalize().Length() = %v, want ~1", l)
	}
	if got := (Vec3{}).Normalize(); got != (Vec3{}) {
		t.Errorf("zero Normalize() = %v, want zero", got)
	}
}

func TestVec3MinMax(t *testing.T) {
	a := Vec3{1, -2, 3}
	b := Vec3{-1, 2, 3}

	if got, want := a.Min(b), (Vec3{-1, -2, 3}); got != want {
		t.Errorf("Vec3.Min() = %v, want %v", got, want)
	}
	if got, want := a.Max(b), (Vec3{1, 2, 3}); got != want {
		t.Errorf("Vec3.Max() = %v, want %v", got, want)
	}
	if got := a.MinComponent(); got != -2 {
		t.Errorf("Vec3.MinComponent() = %v, want -2", got)
	}
}

func TestVec3ApproxEqual(t *testing.T) {
	a := Vec3{1, 1, 1}
	if !a.ApproxEqual(Vec3{1.0005, 0.9995, 1}, 0.001) {
		t.Error("expected vectors within tolerance to be equal")
	}
	if a.ApproxEqual(Vec3{1.01, 1, 1}, 0.001) {
		t.Error("expected vectors outside tolerance to differ")
	}
}
