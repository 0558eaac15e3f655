package geom

import "fmt"

// Axis is one of the six signed axis tokens: X, Y, Z, -X, -Y, -Z.
type Axis string

const (
	AxisX    Axis = "X"
	AxisY    Axis = "Y"
	AxisZ    Axis = "Z"
	AxisNegX Axis = "-X"
	AxisNegY Axis = "-Y"
	AxisNegZ Axis = "-Z"
)

var Axes = []Axis{AxisX, AxisY, AxisZ, AxisNegX, AxisNegY, AxisNegZ}

func ParseAxis(s string) (Axis, error) {
	for _, a := range Axes {
		if string(a) == s {
			return a, nil
		}
	}
	return "", fmt.Errorf("invalid axis: %q", s)
}

func (a Axis) Vector() *Vector3 {
	switch a {
	case AxisX:
		return &Vector3{X: 1}
	case AxisY:
		return &Vector3{Y: 1}
	case AxisZ:
		return &Vector3{Z: 1}
	case AxisNegX:
		return &Vector3{X: -1}
	case AxisNegY:
		return &Vector3{Y: -1}
	case AxisNegZ:
		return &Vector3{Z: -1}
	}
	return nil
}

// Index returns 0, 1 or 2 for the unsigned axis, -1 when invalid.
func (a Axis) Index() int {
	switch a {
	case AxisX, AxisNegX:
		return 0
	case AxisY, AxisNegY:
		return 1
	case AxisZ, AxisNegZ:
		return 2
	}
	return -1
}

func axisBasis(forward, up Axis) (*Matrix4, error) {
	if forward.Index() < 0 || up.Index() < 0 {
		return nil, fmt.Errorf("invalid axis: %q, %q", forward, up)
	}
	if forward.Index() == up.Index() {
		return nil, fmt.Errorf("forward and up must be different axes: %q, %q", forward, up)
	}
	f := forward.Vector()
	u := up.Vector()
	r := f.Cross(u)
	return &Matrix4{
		r.X, r.Y, r.Z, 0,
		f.X, f.Y, f.Z, 0,
		u.X, u.Y, u.Z, 0,
		0, 0, 0, 1,
	}, nil
}

// NewAxisConversionMatrix4 returns the rotation that maps fromForward to toForward
// and fromUp to toUp.
func NewAxisConversionMatrix4(fromForward, fromUp, toForward, toUp Axis) (*Matrix4, error) {
	from, err := axisBasis(fromForward, fromUp)
	if err != nil {
		return nil, err
	}
	to, err := axisBasis(toForward, toUp)
	if err != nil {
		return nil, err
	}
	// bases are orthonormal, so the inverse is the transpose.
	return to.Mul(from.Transposed()), nil
}
