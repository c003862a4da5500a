package flag

import (
	"testing"

	"github.com/formiko/flagsh/internal/vec"
	"github.com/stretchr/testify/assert"
)

const eps = 1e-5

func assertPos(t *testing.T, want, got vec.Vec3Float, msg string) {
	t.Helper()
	assert.InDelta(t, want.X, got.X, eps, msg+": X")
	assert.InDelta(t, want.Y, got.Y, eps, msg+": Y")
	assert.InDelta(t, want.Z, got.Z, eps, msg+": Z")
}

func TestLayout_Panels(t *testing.T) {
	anchor := vec.Vec3{X: 0, Y: 64, Z: 0}

	tests := []struct {
		yaw   int
		front vec.Vec3Float
		back  vec.Vec3Float
	}{
		{0, vec.Vec3Float{X: 0.93, Y: 64.5, Z: 0.52}, vec.Vec3Float{X: 0.93, Y: 64.5, Z: 0.48}},
		{180, vec.Vec3Float{X: 0.07, Y: 64.5, Z: 0.48}, vec.Vec3Float{X: 0.07, Y: 64.5, Z: 0.52}},
		{90, vec.Vec3Float{X: 0.48, Y: 64.5, Z: 0.93}, vec.Vec3Float{X: 0.52, Y: 64.5, Z: 0.93}},
		{-90, vec.Vec3Float{X: 0.52, Y: 64.5, Z: 0.07}, vec.Vec3Float{X: 0.48, Y: 64.5, Z: 0.07}},
	}

	for _, tt := range tests {
		p := Layout(anchor, tt.yaw, 0.43, 1)
		assertPos(t, tt.front, p.Front.Pos, "front")
		assertPos(t, tt.back, p.Back.Pos, "back")
		assert.Equal(t, float32(tt.yaw), p.Front.Yaw)
		assert.Equal(t, float32(tt.yaw), p.Back.Yaw)
	}
}

func TestLayout_Transforms(t *testing.T) {
	p := Layout(vec.Vec3{}, 0, 0.43, 2)

	assert.Equal(t, float32(-1), p.Front.Transform[1])
	assert.Equal(t, float32(-1), p.Front.Transform[4])
	assert.Equal(t, float32(1), p.Front.Transform[10])
	assert.InDelta(t, 0.5, p.Front.Transform[15], eps, "w = 1/size")

	assert.Equal(t, float32(1), p.Back.Transform[1])
	assert.Equal(t, float32(1), p.Back.Transform[4])
	assert.InDelta(t, -0.5, p.Back.Transform[15], eps, "w = -1/size у обратной стороны")

	// Обратная сторона - отражение лицевой: X и Y меняются местами со сменой знака
	for i := 0; i < 16; i++ {
		if i == 10 {
			continue
		}
		assert.InDelta(t, -p.Front.Transform[i], p.Back.Transform[i], eps, "элемент %d", i)
	}
}

func TestLayout_HitboxStrip(t *testing.T) {
	anchor := vec.Vec3{X: 4, Y: 70, Z: -8}

	for _, size := range []float32{1, 1.5, 2, 3.25} {
		for _, yaw := range []int{0, 180, 90, -90} {
			p := Layout(anchor, yaw, 0.43, size)
			hs := 0.2 * float64(size)

			origin := p.Hitboxes[2].Pos
			for i, hb := range p.Hitboxes {
				assert.InDelta(t, hs, hb.Width, eps)
				assert.InDelta(t, 0.95*float64(size), hb.Height, eps)
				assert.InDelta(t, float64(anchor.Y)+0.5-float64(size)/2, hb.Pos.Y, eps)

				shift := hs * float64(i-2)
				want := origin
				switch yaw {
				case 0:
					want.X -= shift
				case 180:
					want.X += shift
				case 90:
					want.Z -= shift
				case -90:
					want.Z += shift
				}
				assertPos(t, want, hb.Pos, "hitbox")
			}

			// Хитбокс 2 стоит на точке лицевой стороны по горизонтали
			assert.InDelta(t, p.Front.Pos.X, origin.X, eps)
			assert.InDelta(t, p.Front.Pos.Z, origin.Z, eps)
		}
	}
}

func TestLayout_SizeShiftsOffWall(t *testing.T) {
	p := Layout(vec.Vec3{X: 0, Y: 64, Z: 0}, 0, 0.43, 2)

	// wall = 0.43 - 0.335, merge = 0.04
	assertPos(t, vec.Vec3Float{X: 0.595, Y: 64.5, Z: 0.54}, p.Front.Pos, "front")
	assertPos(t, vec.Vec3Float{X: 0.595, Y: 64.5, Z: 0.46}, p.Back.Pos, "back")
	assertPos(t, vec.Vec3Float{X: 0.595, Y: 63.5, Z: 0.54}, p.Hitboxes[2].Pos, "hitbox 2")
	assertPos(t, vec.Vec3Float{X: 1.395, Y: 63.5, Z: 0.54}, p.Hitboxes[0].Pos, "hitbox 0")
}
