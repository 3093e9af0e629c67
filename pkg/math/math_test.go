package math

import (
	"testing"

	"github.com/chewxy/math32"
)

func near(a, b float32) bool {
	return math32.Abs(a-b) < 1e-4
}

func nearVec(a, b Vec3) bool {
	return near(a.X, b.X) && near(a.Y, b.Y) && near(a.Z, b.Z)
}

func TestVec3Cross(t *testing.T) {
	x := Vec3{1, 0, 0}
	y := Vec3{0, 1, 0}
	if got, want := x.Cross(y), (Vec3{0, 0, 1}); got != want {
		t.Errorf("Cross() = %v, want %v", got, want)
	}
}

func TestVec3Normalize(t *testing.T) {
	n := Vec3{3, 4, 12}.Normalize()
	if !near(n.Length(), 1) {
		t.Errorf("Normalize().Length() = %v, want 1", n.Length())
	}
	if got := (Vec3{}).Normalize(); got != (Vec3{}) {
		t.Errorf("zero Normalize() = %v, want zero", got)
	}
}

func TestVec3At(t *testing.T) {
	pos := []float32{0, 1, 2, 3, 4, 5}
	if got := Vec3At(pos, 1); got != (Vec3{3, 4, 5}) {
		t.Errorf("Vec3At(1) = %v", got)
	}
}

func TestVec3IsFinite(t *testing.T) {
	if !(Vec3{1, 2, 3}).IsFinite() {
		t.Error("finite vector reported non-finite")
	}
	if (Vec3{math32.NaN(), 0, 0}).IsFinite() {
		t.Error("NaN reported finite")
	}
	if (Vec3{0, math32.Inf(1), 0}).IsFinite() {
		t.Error("Inf reported finite")
	}
}

func TestMulIdentity(t *testing.T) {
	m := Translate(1, 2, 3)
	if got := m.Mul(Identity()); got != m {
		t.Errorf("M * I = %v, want %v", got, m)
	}
}

func TestTransformPoint(t *testing.T) {
	m := Translate(10, 20, 30).Mul(Scale(2, 2, 2))
	got := m.TransformPoint(Vec3{1, 2, 3})
	if want := (Vec3{12, 24, 36}); got != want {
		t.Errorf("TransformPoint() = %v, want %v", got, want)
	}
}

func TestTransformDirectionIgnoresTranslation(t *testing.T) {
	m := Translate(10, 20, 30)
	if got := m.TransformDirection(Vec3{0, 1, 0}); got != (Vec3{0, 1, 0}) {
		t.Errorf("TransformDirection() = %v", got)
	}
}

func TestRotateY90(t *testing.T) {
	got := RotateY(math32.Pi / 2).TransformPoint(Vec3{1, 0, 0})
	if want := (Vec3{0, 0, -1}); !nearVec(got, want) {
		t.Errorf("RotateY 90: got %v, want %v", got, want)
	}
}

func TestRotateX90(t *testing.T) {
	got := RotateX(math32.Pi / 2).TransformPoint(Vec3{0, 1, 0})
	if want := (Vec3{0, 0, 1}); !nearVec(got, want) {
		t.Errorf("RotateX 90: got %v, want %v", got, want)
	}
}

func TestBounds(t *testing.T) {
	b := EmptyBounds()
	if !b.IsEmpty() {
		t.Fatal("EmptyBounds should be empty")
	}

	b = b.Extend(Vec3{-1, 0, 2}).Extend(Vec3{3, 4, -2})
	if b.IsEmpty() {
		t.Fatal("extended bounds should not be empty")
	}
	if b.Min != (Vec3{-1, 0, -2}) || b.Max != (Vec3{3, 4, 2}) {
		t.Errorf("bounds = %+v", b)
	}
	if got := b.Center(); got != (Vec3{1, 2, 0}) {
		t.Errorf("Center() = %v", got)
	}
	if got := b.Size(); got != (Vec3{4, 4, 4}) {
		t.Errorf("Size() = %v", got)
	}
}
