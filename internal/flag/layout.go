package flag

import (
	"github.com/formiko/flagsh/internal/vec"
	"github.com/go-gl/mathgl/mgl32"
)

const (
	// HitboxCount - число хитбоксов в полосе
	HitboxCount = 10
	// VisualCount - число дисплеев (лицевая и обратная стороны)
	VisualCount = 2

	hitboxWidth     = 0.2   // ширина хитбокса при size = 1
	hitboxHeight    = 0.95  // высота хитбокса при size = 1
	wallShiftByStep = 0.335 // на сколько панель отходит от стены при росте size на 1
	mergeOffset     = 0.02  // сдвиг сторон друг от друга, чтобы текстуры не мерцали
	hitboxOrigin    = 2     // индекс хитбокса, стоящего на базовой точке
)

// Panel - одна сторона флага
type Panel struct {
	Pos       vec.Vec3Float
	Yaw       float32
	Transform mgl32.Mat4
}

// Hitbox - один хитбокс полосы
type Hitbox struct {
	Pos    vec.Vec3Float
	Width  float32
	Height float32
}

// Placement - полная геометрия флага для заданного размера
type Placement struct {
	Front    Panel
	Back     Panel
	Hitboxes [HitboxCount]Hitbox
}

// Layout вычисляет положения дисплеев и хитбоксов флага.
// Обе стороны стоят на одном расстоянии от стены и разнесены на mergeOffset·size
// вдоль плоскости стены. Хитбокс i сдвинут на 0.2·size·(i-2) вдоль стены.
func Layout(anchor vec.Vec3, yaw int, wallOffset, size float32) Placement {
	s := float64(size)
	wall := float64(wallOffset) - wallShiftByStep*(s-1)
	merge := mergeOffset * s

	var off, along vec.Vec3Float
	wallAlongX := false
	switch yaw {
	case YawEast:
		off.Z = merge
		along.X = -1
		wallAlongX = true
	case YawWest:
		off.Z = -merge
		along.X = 1
		wallAlongX = true
		wall = -wall
	case YawSouth:
		off.X = -merge
		along.Z = -1
	case YawNorth:
		off.X = merge
		along.Z = 1
		wall = -wall
	}

	// У обратной стороны тот же отступ от стены и противоположный сдвиг merge
	backOff := off
	if wallAlongX {
		off.X += wall
		backOff.X -= wall
	} else {
		off.Z += wall
		backOff.Z -= wall
	}

	center := anchor.Center()
	front := center.Add(off)

	var p Placement
	hitboxSize := hitboxWidth * s
	base := front.Sub(vec.Vec3Float{Y: s / 2})
	for i := 0; i < HitboxCount; i++ {
		p.Hitboxes[i] = Hitbox{
			Pos:    base.Add(along.Mul(hitboxSize * float64(i-hitboxOrigin))),
			Width:  float32(hitboxSize),
			Height: float32(hitboxHeight * s),
		}
	}

	p.Front = Panel{
		Pos:       front,
		Yaw:       float32(yaw),
		Transform: frontTransform(size),
	}
	p.Back = Panel{
		Pos:       center.Sub(backOff),
		Yaw:       float32(yaw),
		Transform: backTransform(size),
	}
	return p
}

// frontTransform поворачивает предмет в плоскость флага.
// Матрица задана по столбцам; w = 1/size масштабирует дисплей в size раз.
func frontTransform(size float32) mgl32.Mat4 {
	return mgl32.Mat4{
		0, -1, 0, 0,
		-1, 0, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1 / size,
	}
}

// backTransform - отражение frontTransform; отрицательный w разворачивает сторону
func backTransform(size float32) mgl32.Mat4 {
	return mgl32.Mat4{
		0, 1, 0, 0,
		1, 0, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, -1 / size,
	}
}
