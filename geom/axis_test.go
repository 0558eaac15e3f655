package geom

import (
	"testing"
)

func TestAxisConversion(t *testing.T) {
	const eps = 0.000001

	m, err := NewAxisConversionMatrix4(AxisY, AxisZ, AxisNegZ, AxisY)
	if err != nil {
		t.Fatal(err)
	}
	if !m.ApproxEqual(NewRotationXMatrix4(-90), eps) {
		t.Error("Z-up to Y-up: ", m)
	}

	up := m.ApplyTo(NewVector3(0, 0, 1))
	if !up.ApproxEqual(NewVector3(0, 1, 0), eps) {
		t.Error("up: ", up)
	}

	id, err := NewAxisConversionMatrix4(AxisX, AxisY, AxisX, AxisY)
	if err != nil {
		t.Fatal(err)
	}
	if !id.IsIdentity() {
		t.Error("identity: ", id)
	}

	if _, err := NewAxisConversionMatrix4(AxisX, AxisNegX, AxisX, AxisY); err == nil {
		t.Error("same axis should be rejected")
	}

	if _, err := ParseAxis("W"); err == nil {
		t.Error("ParseAxis(W)")
	}
}

func TestRotationXMatrix(t *testing.T) {
	const eps = 0.000001

	m := NewRotationXMatrix4(-90).Mul(NewRotationXMatrix4(90))
	if !m.IsIdentity() {
		t.Error("-90 * 90 != identity: ", m)
	}

	m2 := NewAxisAngleMatrix4(NewVector3(1, 0, 0), 0.3)
	if !m2.ApproxEqual(NewEulerRotationMatrix4(0.3, 0, 0, 0), eps) {
		t.Error("axis angle: ", m2)
	}

	inv := m2.Inverse().Mul(m2)
	if !inv.ApproxEqual(NewMatrix4(), eps) {
		t.Error("inverse: ", inv)
	}
}
