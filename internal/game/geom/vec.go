// Package geom provides the small vector type shared by the simulation engines.
// Y is up; the playing field is the X/Z ground plane.
package geom

import "math"

// Vec3 is a 3-component vector.
type Vec3 struct {
	X float64 `msgpack:"x" yaml:"x"`
	Y float64 `msgpack:"y" yaml:"y"`
	Z float64 `msgpack:"z" yaml:"z"`
}

// V returns the vector (x, y, z).
func V(x, y, z float64) Vec3 { return Vec3{X: x, Y: y, Z: z} }

// Ground returns the ground-plane vector (x, 0, z).
func Ground(x, z float64) Vec3 { return Vec3{X: x, Z: z} }

// Add returns v + o.
func (v Vec3) Add(o Vec3) Vec3 { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }

// Sub returns v - o.
func (v Vec3) Sub(o Vec3) Vec3 { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }

// Scale returns v * s.
func (v Vec3) Scale(s float64) Vec3 { return Vec3{v.X * s, v.Y * s, v.Z * s} }

// Dot returns the dot product of v and o.
func (v Vec3) Dot(o Vec3) float64 { return v.X*o.X + v.Y*o.Y + v.Z*o.Z }

// Len returns the Euclidean length of v.
func (v Vec3) Len() float64 { return math.Sqrt(v.Dot(v)) }

// Dist returns the Euclidean distance between v and o.
func (v Vec3) Dist(o Vec3) float64 { return v.Sub(o).Len() }

// GroundDist returns the distance between v and o ignoring height.
func (v Vec3) GroundDist(o Vec3) float64 { return math.Hypot(v.X-o.X, v.Z-o.Z) }

// Normalize returns v scaled to unit length, or the zero vector if v is zero.
func (v Vec3) Normalize() Vec3 {
	l := v.Len()
	if l == 0 {
		return Vec3{}
	}
	return v.Scale(1 / l)
}

// Lerp returns the linear interpolation from v toward o by t.
func (v Vec3) Lerp(o Vec3, t float64) Vec3 {
	return Vec3{
		v.X + (o.X-v.X)*t,
		v.Y + (o.Y-v.Y)*t,
		v.Z + (o.Z-v.Z)*t,
	}
}

// RotateY rotates v around the Y axis by angle radians.
func (v Vec3) RotateY(angle float64) Vec3 {
	sin, cos := math.Sincos(angle)
	return Vec3{
		X: v.X*cos + v.Z*sin,
		Y: v.Y,
		Z: -v.X*sin + v.Z*cos,
	}
}

// IsZero reports whether every component is zero.
func (v Vec3) IsZero() bool { return v.X == 0 && v.Y == 0 && v.Z == 0 }
