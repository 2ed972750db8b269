// Package geom holds the integer geometry of the pixel coordinate space.
package geom

import (
	"fmt"
	"iter"
)

type Point struct{ X, Y int32 }

func Pt(x, y int32) Point { return Point{X: x, Y: y} }

func (p Point) Add(v Vector) Point {
	p.X += v.X
	p.Y += v.Y
	return p
}

// ToVector returns the vector from the origin to p.
func (p Point) ToVector() Vector { return Vector(p) }

func (p Point) String() string { return fmt.Sprintf("(%d,%d)", p.X, p.Y) }

type Vector struct{ X, Y int32 }

func Vec(x, y int32) Vector { return Vector{X: x, Y: y} }

type Size struct{ Width, Height int32 }

func Sz(w, h int32) Size { return Size{Width: w, Height: h} }

func (s Size) Area() int32 { return s.Width * s.Height }

func (s Size) Mul(k int32) Size {
	s.Width *= k
	s.Height *= k
	return s
}

func (s Size) Empty() bool { return s.Width <= 0 || s.Height <= 0 }

// Points iterates over every point of [0,s) in row-major order.
func (s Size) Points() iter.Seq[Point] {
	return Rect{Size: s}.Points()
}

func (s Size) String() string { return fmt.Sprintf("%dx%d", s.Width, s.Height) }

// Rect is an axis-aligned rectangle; Origin is its top-left corner.
type Rect struct {
	Origin Point
	Size   Size
}

func R(x, y, w, h int32) Rect {
	return Rect{Origin: Pt(x, y), Size: Sz(w, h)}
}

func (r Rect) MinX() int32 { return r.Origin.X }
func (r Rect) MinY() int32 { return r.Origin.Y }
func (r Rect) MaxX() int32 { return r.Origin.X + r.Size.Width }
func (r Rect) MaxY() int32 { return r.Origin.Y + r.Size.Height }

// Contains reports whether p lies in [origin, origin+size).
func (r Rect) Contains(p Point) bool {
	return p.X >= r.MinX() && p.X < r.MaxX() && p.Y >= r.MinY() && p.Y < r.MaxY()
}

func (r Rect) Intersects(other Rect) bool {
	return r.MinX() < other.MaxX() && other.MinX() < r.MaxX() &&
		r.MinY() < other.MaxY() && other.MinY() < r.MaxY()
}

// Intersect returns the overlap of r and other, or an empty rect at r's
// origin when they do not overlap.
func (r Rect) Intersect(other Rect) Rect {
	if !r.Intersects(other) {
		return Rect{Origin: r.Origin}
	}
	minX := max(r.MinX(), other.MinX())
	minY := max(r.MinY(), other.MinY())
	maxX := min(r.MaxX(), other.MaxX())
	maxY := min(r.MaxY(), other.MaxY())
	return R(minX, minY, maxX-minX, maxY-minY)
}

func (r Rect) Translate(v Vector) Rect {
	r.Origin = r.Origin.Add(v)
	return r
}

// Points iterates over every point of r in row-major order.
func (r Rect) Points() iter.Seq[Point] {
	return func(yield func(Point) bool) {
		if r.Size.Empty() {
			return
		}
		for y := r.MinY(); y < r.MaxY(); y++ {
			for x := r.MinX(); x < r.MaxX(); x++ {
				if !yield(Pt(x, y)) {
					return
				}
			}
		}
	}
}

func (r Rect) String() string { return fmt.Sprintf("%v+%v", r.Origin, r.Size) }
