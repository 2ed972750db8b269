package geom_test

import (
	"frogquest/internal/geom"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRect_Points(t *testing.T) {
	r := geom.R(2, 3, 2, 2)
	assert.Equal(t, []geom.Point{
		{2, 3}, {3, 3},
		{2, 4}, {3, 4},
	}, slices.Collect(r.Points()))

	assert.Empty(t, slices.Collect(geom.R(0, 0, 0, 5).Points()))
}

func TestRect_Contains(t *testing.T) {
	r := geom.R(0, 0, 315, 143)
	assert.True(t, r.Contains(geom.Pt(0, 0)))
	assert.True(t, r.Contains(geom.Pt(314, 142)))
	assert.False(t, r.Contains(geom.Pt(315, 0)))
	assert.False(t, r.Contains(geom.Pt(0, 143)))
	assert.False(t, r.Contains(geom.Pt(-1, 5)))
}

func TestRect_Intersect(t *testing.T) {
	screen := geom.R(0, 0, 315, 143)

	assert.Equal(t, geom.R(0, 5, 3, 10), geom.R(-7, 5, 10, 10).Intersect(screen))
	assert.Equal(t, geom.R(310, 138, 5, 5), geom.R(310, 138, 10, 10).Intersect(screen))
	assert.True(t, geom.R(400, 0, 10, 10).Intersect(screen).Size.Empty())
}

func TestPoint_Add(t *testing.T) {
	p := geom.Pt(10, 1).Add(geom.Vec(0, -4))
	assert.Equal(t, geom.Pt(10, -3), p)
	assert.Equal(t, geom.R(3, -1, 2, 2), geom.R(1, 2, 2, 2).Translate(geom.Vec(2, -3)))
}
